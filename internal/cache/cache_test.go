package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestKey_NamespacedAndStable(t *testing.T) {
	a := Key("sparql", "SELECT 1")
	b := Key("sparql", "SELECT 1")
	c := Key("pageviews", "SELECT 1")

	if a != b {
		t.Errorf("expected stable key, got %s and %s", a, b)
	}
	if a == c {
		t.Error("expected different namespaces to produce different keys")
	}
	if !strings.HasPrefix(a, "scimap:v1:sparql:") {
		t.Errorf("unexpected key prefix: %s", a)
	}
}

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	if err := c.Set("k", []byte("v"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok := c.Get("k")
	if !ok || string(got) != "v" {
		t.Errorf("expected v, got %q (found=%v)", got, ok)
	}

	_ = c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after delete")
	}
}

func TestDiskCache_Expiry(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	key := Key("geo", "Basel")
	if err := c.Set(key, []byte(`{"lat":47.5}`), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if got, ok := c.Get(key); !ok || string(got) != `{"lat":47.5}` {
		t.Errorf("expected hit, got %q (found=%v)", got, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get(key); ok {
		t.Error("expected expired entry to miss")
	}
}

func TestDiskCache_SetLeavesOnlyEntries(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "articles")
	c := NewDiskCache(dir, time.Hour)

	for _, k := range []string{"a", "b", "a"} {
		if err := c.Set(k, []byte("v-"+k), 0); err != nil {
			t.Fatalf("Set(%s) failed: %v", k, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entry files and no temp files, found %d", len(entries))
	}
	if got, ok := c.Get("a"); !ok || string(got) != "v-a" {
		t.Errorf("expected v-a, got %q (found=%v)", got, ok)
	}
}

func TestDiskCache_CorruptEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)
	key := "broken"
	if err := c.Set(key, []byte("x"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := os.WriteFile(c.path(key), []byte("{not json"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, ok := c.Get(key); ok {
		t.Error("expected corrupt entry to miss")
	}
}

func TestLayeredCache_PromotesPersistentHits(t *testing.T) {
	persistent := NewDiskCache(t.TempDir(), time.Hour)
	_ = persistent.Set("k", []byte("disk"), 0)

	layered := NewLayeredCache(time.Minute, persistent)
	got, ok := layered.Get("k")
	if !ok || string(got) != "disk" {
		t.Fatalf("expected disk hit, got %q", got)
	}

	// Remove from disk; the memory layer should still serve it.
	_ = persistent.Delete("k")
	if got, ok := layered.Get("k"); !ok || string(got) != "disk" {
		t.Errorf("expected promoted memory hit, got %q (found=%v)", got, ok)
	}
}

func TestSQLiteCache_RoundTripAndPrune(t *testing.T) {
	c, err := NewSQLiteCache(filepath.Join(t.TempDir(), "lookups.db"), time.Hour)
	if err != nil {
		t.Fatalf("NewSQLiteCache failed: %v", err)
	}
	defer c.Close()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if err := c.Set("a", []byte("1"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := c.Set("a", []byte("2"), time.Minute); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if err := c.Set("b", []byte("3"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if got, ok := c.Get("a"); !ok || string(got) != "2" {
		t.Errorf("expected upserted value 2, got %q (found=%v)", got, ok)
	}

	now = now.Add(10 * time.Minute)
	removed, err := c.Prune()
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 pruned entry, got %d", removed)
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("expected b (default TTL) to survive")
	}
}

func TestNop(t *testing.T) {
	var c Cache = Nop{}
	_ = c.Set("k", []byte("v"), time.Hour)
	if _, ok := c.Get("k"); ok {
		t.Error("Nop cache should never hit")
	}
}
