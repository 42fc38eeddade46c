// Package store provides file-based JSON document storage for the
// pipeline collections: targets, hosts, findings, and job runs.
//
// Data is stored as one JSON array per collection for portability and
// simplicity. For high-volume production use, consider upgrading to a
// database backend.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/muralikrish9/cyberroomba/pkg/jsonutil"
)

// Collection names used by the pipeline.
const (
	Targets  = "targets"
	Hosts    = "hosts"
	Findings = "findings"
	Jobs     = "jobs"
)

// ErrPersist wraps any failure to read or write the backing files.
// Stage code treats persistence failures on its own collections as
// fatal to the job run.
var ErrPersist = errors.New("store: persistence failed")

// NotFoundError reports an id that is absent from a collection.
type NotFoundError struct {
	Collection string
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("store: %s/%s not found", e.Collection, e.ID)
}

// Document is one stored record. Every document carries an "id" field.
type Document map[string]any

// ID returns the document's id, or empty when unset.
func (d Document) ID() string {
	id, _ := d["id"].(string)
	return id
}

// Store is a file-backed document store. All operations are safe for
// concurrent use; each mutating call flushes the affected collection
// before returning.
type Store struct {
	mu   sync.Mutex
	dir  string
	data map[string][]Document
}

// Open loads (or creates) a store rooted at dir. Collections are
// loaded lazily on first access.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return &Store{dir: dir, data: make(map[string][]Document)}, nil
}

// InsertMany appends docs to the collection, assigning ids where
// absent, and flushes.
func (s *Store) InsertMany(collection string, docs ...Document) error {
	if len(docs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(collection); err != nil {
		return err
	}
	for _, doc := range docs {
		if doc.ID() == "" {
			doc["id"] = uuid.NewString()
		}
		s.data[collection] = append(s.data[collection], doc)
	}
	return s.flush(collection)
}

// Find returns every document whose fields equal all filter entries.
// A nil filter returns the whole collection. The returned slice is a
// shallow copy; callers must not mutate the documents.
func (s *Store) Find(collection string, filter map[string]any) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(collection); err != nil {
		return nil, err
	}

	var out []Document
	for _, doc := range s.data[collection] {
		if matches(doc, filter) {
			out = append(out, doc)
		}
	}
	return out, nil
}

// FindOne returns the single document with the given id.
func (s *Store) FindOne(collection, id string) (Document, error) {
	docs, err := s.Find(collection, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, &NotFoundError{Collection: collection, ID: id}
	}
	return docs[0], nil
}

// UpdateByID merges fields into the document with the given id and
// flushes. Returns NotFoundError when the id is absent.
func (s *Store) UpdateByID(collection, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(collection); err != nil {
		return err
	}
	for _, doc := range s.data[collection] {
		if doc.ID() == id {
			for k, v := range fields {
				doc[k] = v
			}
			return s.flush(collection)
		}
	}
	return &NotFoundError{Collection: collection, ID: id}
}

// Upsert inserts doc, or replaces the existing document whose values
// match doc on every key field. Lookup, replace, and flush happen
// under one lock so concurrent upserts of the same logical document
// serialize cleanly. A replaced document keeps its original id.
func (s *Store) Upsert(collection string, keys []string, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(collection); err != nil {
		return err
	}

	filter := make(map[string]any, len(keys))
	for _, k := range keys {
		filter[k] = doc[k]
	}

	for i, existing := range s.data[collection] {
		if matches(existing, filter) {
			if id := existing.ID(); id != "" {
				doc["id"] = id
			}
			s.data[collection][i] = doc
			return s.flush(collection)
		}
	}

	if doc.ID() == "" {
		doc["id"] = uuid.NewString()
	}
	s.data[collection] = append(s.data[collection], doc)
	return s.flush(collection)
}

// Count returns the number of documents matching the filter.
func (s *Store) Count(collection string, filter map[string]any) (int, error) {
	docs, err := s.Find(collection, filter)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

func matches(doc Document, filter map[string]any) bool {
	for k, v := range filter {
		if doc[k] != v {
			return false
		}
	}
	return true
}

// load reads the collection file on first access. Caller holds mu.
func (s *Store) load(collection string) error {
	if _, ok := s.data[collection]; ok {
		return nil
	}
	raw, err := os.ReadFile(s.path(collection))
	if errors.Is(err, os.ErrNotExist) {
		s.data[collection] = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	var docs []Document
	if err := jsonutil.Unmarshal(raw, &docs); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPersist, collection, err)
	}
	s.data[collection] = docs
	return nil
}

// flush writes the collection via temp file and rename so a crash
// mid-write never truncates the previous state. Caller holds mu.
func (s *Store) flush(collection string) error {
	raw, err := jsonutil.MarshalIndent(s.data[collection], "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	tmp := s.path(collection) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if err := os.Rename(tmp, s.path(collection)); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

func (s *Store) path(collection string) string {
	return filepath.Join(s.dir, collection+".json")
}

// ToDoc converts any model value into a Document via its JSON form.
func ToDoc(v any) (Document, error) {
	raw, err := jsonutil.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := jsonutil.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// FromDoc decodes a Document back into a typed model value.
func FromDoc(doc Document, v any) error {
	raw, err := jsonutil.Marshal(doc)
	if err != nil {
		return err
	}
	return jsonutil.Unmarshal(raw, v)
}
