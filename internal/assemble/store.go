package assemble

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ppiankov/scimap/internal/model"
	"github.com/ppiankov/scimap/internal/util"
)

// Aggregate file names inside the output directory
const (
	FrontendFile  = "frontend.json"
	ReferenceFile = "reference.json"

	extractionMethod = "wikidata_sparql_wikipedia_llm_pageview_pipeline"
)

// ErrNoEntity means no per-entity file exists for the key
var ErrNoEntity = errors.New("entity record not found")

// Store reads and writes assembled records under one output directory
type Store struct {
	dir string
	now func() time.Time
}

// NewStore creates a store rooted at dir. Entities live in dir/entities.
func NewStore(dir string) *Store {
	return &Store{dir: dir, now: func() time.Time { return time.Now().UTC() }}
}

// Dir returns the output directory
func (s *Store) Dir() string {
	return s.dir
}

// EntityPath returns the per-entity file for key
func (s *Store) EntityPath(key string) string {
	return filepath.Join(s.dir, "entities", key+".json")
}

// WriteEntity durably writes one record. The checkpoint may mark the
// entity completed only after this returns nil.
func (s *Store) WriteEntity(rec model.FinalRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "marshal entity %s", rec.ID)
	}
	if err := util.WriteFileAtomic(s.EntityPath(rec.ID), data); err != nil {
		return eris.Wrapf(err, "write entity %s", rec.ID)
	}
	return nil
}

// LoadEntity reads a record written by an earlier run
func (s *Store) LoadEntity(key string) (*model.FinalRecord, error) {
	data, err := os.ReadFile(s.EntityPath(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, eris.Wrapf(ErrNoEntity, "load entity %s", key)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "load entity %s", key)
	}

	var rec model.FinalRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, eris.Wrapf(err, "decode entity %s", key)
	}
	return &rec, nil
}

// WriteDataset overwrites both aggregate files with records. It is safe to
// call repeatedly with the same input.
func (s *Store) WriteDataset(records []model.FinalRecord) error {
	byID := make(map[string]model.FinalRecord, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}

	frontend, err := json.MarshalIndent(byID, "", "  ")
	if err != nil {
		return eris.Wrap(err, "marshal frontend dataset")
	}
	if err := util.WriteFileAtomic(filepath.Join(s.dir, FrontendFile), frontend); err != nil {
		return eris.Wrap(err, "write frontend dataset")
	}

	reference, err := json.MarshalIndent(model.Dataset{
		Metadata: model.DatasetMetadata{
			Source:              DataSource,
			GeneratedAt:         s.now(),
			TotalMathematicians: len(byID),
			ExtractionMethod:    extractionMethod,
		},
		Mathematicians: byID,
	}, "", "  ")
	if err != nil {
		return eris.Wrap(err, "marshal reference dataset")
	}
	if err := util.WriteFileAtomic(filepath.Join(s.dir, ReferenceFile), reference); err != nil {
		return eris.Wrap(err, "write reference dataset")
	}
	return nil
}
