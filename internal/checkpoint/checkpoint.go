// Package checkpoint persists which entities a run has completed or
// failed so an interrupted run can resume without repeating work.
package checkpoint

import (
	"encoding/json"
	"errors"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ppiankov/scimap/internal/util"
)

// Record is the on-disk shape of the checkpoint file
type Record struct {
	Completed   []string  `json:"completed"`
	Failed      []string  `json:"failed"`
	LastUpdated time.Time `json:"last_updated"`
}

// Store tracks completed and failed entity keys. The two sets are
// mutually exclusive at all times.
type Store struct {
	mu          sync.Mutex
	path        string
	completed   *orderedSet
	failed      *orderedSet
	lastUpdated time.Time
	now         func() time.Time
}

// Load reads the checkpoint at path. A missing or unreadable file yields an
// empty store; a corrupt one is logged and also treated as empty.
func Load(path string) *Store {
	s := &Store{
		path:      path,
		completed: newOrderedSet(),
		failed:    newOrderedSet(),
		now:       func() time.Time { return time.Now().UTC() },
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			zap.L().Warn("checkpoint unreadable, starting empty", zap.String("path", path), zap.Error(err))
		}
		return s
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		zap.L().Warn("checkpoint corrupt, starting empty", zap.String("path", path), zap.Error(err))
		return s
	}

	for _, id := range rec.Completed {
		s.completed.add(id)
	}
	for _, id := range rec.Failed {
		// completed wins over a hand-edited overlap
		if !s.completed.has(id) {
			s.failed.add(id)
		}
	}
	s.lastUpdated = rec.LastUpdated

	return s
}

// Path returns the checkpoint file location
func (s *Store) Path() string {
	return s.path
}

// RecordSuccess marks id completed and clears any earlier failure
func (s *Store) RecordSuccess(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed.remove(id)
	s.completed.add(id)
}

// RecordFailure marks id failed
func (s *Store) RecordFailure(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed.remove(id)
	s.failed.add(id)
}

// IsCompleted reports whether id finished successfully in any run
func (s *Store) IsCompleted(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed.has(id)
}

// IsFailed reports whether id's most recent attempt failed
func (s *Store) IsFailed(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed.has(id)
}

// Remaining returns the ids in all that are not completed, in input order
func (s *Store) Remaining(all []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(all))
	for _, id := range all {
		if !s.completed.has(id) {
			out = append(out, id)
		}
	}
	return out
}

// Completed returns a sorted copy of the completed set
func (s *Store) Completed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed.sorted()
}

// Failed returns a sorted copy of the failed set
func (s *Store) Failed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed.sorted()
}

// FailedInOrder returns the failed set in the order failures were recorded
func (s *Store) FailedInOrder() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed.list()
}

// Counts returns the sizes of the completed and failed sets
func (s *Store) Counts() (completed, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed.len(), s.failed.len()
}

// LastUpdated is the timestamp of the most recent successful save
func (s *Store) LastUpdated() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUpdated
}

// Save writes the checkpoint atomically: a temp file in the same directory
// is renamed over the old one, so readers never see a partial file.
func (s *Store) Save() error {
	s.mu.Lock()
	rec := Record{
		Completed:   s.completed.list(),
		Failed:      s.failed.list(),
		LastUpdated: s.now(),
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return eris.Wrap(err, "checkpoint: marshal")
	}

	if err := util.WriteFileAtomic(s.path, data); err != nil {
		return eris.Wrap(err, "checkpoint: save")
	}

	s.mu.Lock()
	s.lastUpdated = rec.LastUpdated
	s.mu.Unlock()
	return nil
}

// orderedSet is a string set that remembers insertion order
type orderedSet struct {
	index map[string]int
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{index: make(map[string]int)}
}

func (o *orderedSet) add(id string) {
	if _, ok := o.index[id]; ok {
		return
	}
	o.index[id] = len(o.items)
	o.items = append(o.items, id)
}

func (o *orderedSet) remove(id string) {
	pos, ok := o.index[id]
	if !ok {
		return
	}
	o.items = append(o.items[:pos], o.items[pos+1:]...)
	delete(o.index, id)
	for i := pos; i < len(o.items); i++ {
		o.index[o.items[i]] = i
	}
}

func (o *orderedSet) has(id string) bool {
	_, ok := o.index[id]
	return ok
}

func (o *orderedSet) len() int {
	return len(o.items)
}

func (o *orderedSet) list() []string {
	out := make([]string, len(o.items))
	copy(out, o.items)
	return out
}

func (o *orderedSet) sorted() []string {
	out := o.list()
	sort.Strings(out)
	return out
}
