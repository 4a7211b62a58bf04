package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFile(t *testing.T) {
	s := Load(filepath.Join(t.TempDir(), "checkpoint.json"))
	c, f := s.Counts()
	assert.Zero(t, c)
	assert.Zero(t, f)
}

func TestLoad_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"completed": [`), 0o644))

	s := Load(path)
	c, f := s.Counts()
	assert.Zero(t, c)
	assert.Zero(t, f)
}

func TestLoad_OverlapCompletedWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	raw := `{"completed": ["leonhard_euler", "leonhard_euler"], "failed": ["leonhard_euler", "maria_gaetana_agnesi"], "last_updated": "2024-01-01T00:00:00Z"}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	s := Load(path)
	assert.Equal(t, []string{"leonhard_euler"}, s.Completed())
	assert.Equal(t, []string{"maria_gaetana_agnesi"}, s.Failed())
	assert.Equal(t, 2024, s.LastUpdated().Year())
}

func TestRecord_MutuallyExclusive(t *testing.T) {
	s := Load(filepath.Join(t.TempDir(), "checkpoint.json"))

	s.RecordFailure("a")
	assert.True(t, s.IsFailed("a"))
	assert.False(t, s.IsCompleted("a"))

	s.RecordSuccess("a")
	assert.True(t, s.IsCompleted("a"))
	assert.False(t, s.IsFailed("a"))

	s.RecordFailure("a")
	assert.True(t, s.IsFailed("a"))
	assert.False(t, s.IsCompleted("a"))

	c, f := s.Counts()
	assert.Equal(t, 0, c)
	assert.Equal(t, 1, f)
}

func TestRemaining_PreservesOrder(t *testing.T) {
	s := Load(filepath.Join(t.TempDir(), "checkpoint.json"))
	s.RecordSuccess("b")
	s.RecordFailure("d")

	got := s.Remaining([]string{"e", "b", "a", "d", "c"})
	assert.Equal(t, []string{"e", "a", "d", "c"}, got)
}

func TestSave_RoundTripAndShape(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "checkpoint.json")

	s := Load(path)
	s.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }
	s.RecordSuccess("z_last")
	s.RecordSuccess("a_first")
	s.RecordFailure("m_middle")
	require.NoError(t, s.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var shape map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &shape))
	assert.Len(t, shape, 3)
	assert.Contains(t, shape, "completed")
	assert.Contains(t, shape, "failed")
	assert.Contains(t, shape, "last_updated")

	var rec Record
	require.NoError(t, json.Unmarshal(data, &rec))
	// insertion order on disk
	assert.Equal(t, []string{"z_last", "a_first"}, rec.Completed)
	assert.Equal(t, []string{"m_middle"}, rec.Failed)

	reloaded := Load(path)
	assert.Equal(t, []string{"a_first", "z_last"}, reloaded.Completed())
	assert.Equal(t, []string{"m_middle"}, reloaded.Failed())

	// no temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSave_EmptyListsNotNull(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	require.NoError(t, Load(path).Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"completed": []`)
	assert.Contains(t, string(data), `"failed": []`)
}

func TestSave_UnwritableDir(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	// parent is a regular file, so the directory cannot be created
	s := Load(filepath.Join(blocker, "checkpoint.json"))
	s.RecordSuccess("a")
	assert.Error(t, s.Save())
}

func TestFailedInOrder(t *testing.T) {
	s := Load(filepath.Join(t.TempDir(), "checkpoint.json"))
	s.RecordFailure("c")
	s.RecordFailure("a")
	s.RecordFailure("b")
	s.RecordSuccess("a")

	assert.Equal(t, []string{"c", "b"}, s.FailedInOrder())
	assert.Equal(t, []string{"b", "c"}, s.Failed())
}
