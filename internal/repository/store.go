package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ValidationError is returned by the Save methods when a collection is
// rejected. Nothing is written when it is returned.
type ValidationError struct {
	Collection string
	Message    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Collection, e.Message)
}

// IsValidationError reports whether err carries a *ValidationError.
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// Store validates collections before handing them to a Documents backend.
type Store struct {
	docs    Documents
	schemas *schemaSet
}

func NewStore(docs Documents) (*Store, error) {
	schemas, err := compileSchemas()
	if err != nil {
		return nil, err
	}
	return &Store{docs: docs, schemas: schemas}, nil
}

// InvalidateCache drops cached reads if the backend keeps any. Call it at
// the start of every logical operation.
func (s *Store) InvalidateCache() {
	if inv, ok := s.docs.(cacheInvalidator); ok {
		inv.InvalidateCache()
	}
}

func (s *Store) Close() error {
	return s.docs.Close()
}

func (s *Store) load(ctx context.Context, name string, out any) error {
	data, err := s.docs.Load(ctx, name)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// save is the validate-then-persist template shared by every collection.
// ids must be the record ids in order; they are checked for duplicates.
func (s *Store) save(ctx context.Context, name string, in any, ids []string) error {
	data, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := s.schemas.validate(name, data); err != nil {
		return &ValidationError{Collection: name, Message: err.Error()}
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return &ValidationError{Collection: name, Message: fmt.Sprintf("duplicate id %q", id)}
		}
		seen[id] = struct{}{}
	}
	return s.docs.Save(ctx, name, data)
}
