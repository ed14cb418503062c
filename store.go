package serde

import (
	"context"
	"fmt"
	"sync"
)

// SchemaStore resolves schemas for serializers. Implementations typically
// front a schema registry.
type SchemaStore interface {
	// Latest returns the newest schema registered under subject.
	Latest(ctx context.Context, subject string) (*Schema, error)

	// ByID returns the schema with the given id.
	ByID(ctx context.Context, id int) (*Schema, error)
}

// SubjectName returns the subject for a topic's keys or values.
func SubjectName(topic string, isKey bool) string {
	if isKey {
		return topic + "-key"
	}
	return topic + "-value"
}

// MemoryStore is an in-process SchemaStore. Safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   int
	subjects map[string][]*Schema
	ids      map[int]*Schema
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:   1,
		subjects: make(map[string][]*Schema),
		ids:      make(map[int]*Schema),
	}
}

// Register adds schema as the newest version of subject and returns its id.
// A schema with a zero ID is assigned the next free id.
func (s *MemoryStore) Register(subject string, schema *Schema) (int, error) {
	if !IsValidSchemaType(schema.Type) {
		return 0, fmt.Errorf("register %s: unknown schema type %q", subject, schema.Type)
	}
	if err := schema.RuleSet.Validate(); err != nil {
		return 0, fmt.Errorf("register %s: %w", subject, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if schema.ID == 0 {
		for s.ids[s.nextID] != nil {
			s.nextID++
		}
		schema.ID = s.nextID
		s.nextID++
	}
	s.ids[schema.ID] = schema
	s.subjects[subject] = append(s.subjects[subject], schema)
	return schema.ID, nil
}

// Latest returns the newest schema registered under subject.
func (s *MemoryStore) Latest(_ context.Context, subject string) (*Schema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.subjects[subject]
	if len(versions) == 0 {
		return nil, fmt.Errorf("%w: subject %s", ErrSchemaNotFound, subject)
	}
	return versions[len(versions)-1], nil
}

// ByID returns the schema with the given id.
func (s *MemoryStore) ByID(_ context.Context, id int) (*Schema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	schema, ok := s.ids[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrSchemaNotFound, id)
	}
	return schema, nil
}
