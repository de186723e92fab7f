// Package outcome records what happened to each candidate after it left
// the pipeline. Records are append-only and never read back by the sniper
// itself.
package outcome

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"raysniper/internal/domain"
)

// Store is the outcome sink interface.
type Store interface {
	Record(ctx context.Context, rec *domain.OutcomeRecord) error
	Close() error
}

// FileStore appends records as JSON lines to a local file.
type FileStore struct {
	mu   sync.Mutex
	file *os.File
}

var _ Store = (*FileStore)(nil)

// NewFileStore opens (creating if needed) the JSONL file at path.
func NewFileStore(path string) (*FileStore, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open outcome file %s: %w", path, err)
	}
	return &FileStore{file: file}, nil
}

func (s *FileStore) Record(_ context.Context, rec *domain.OutcomeRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.file.Write(line); err != nil {
		return fmt.Errorf("append outcome: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// Tee duplicates every record into multiple sinks. A failing sink does not
// block the others; the first error is returned.
type Tee struct {
	stores []Store
}

var _ Store = (*Tee)(nil)

// NewTee combines sinks into one.
func NewTee(stores ...Store) *Tee {
	return &Tee{stores: stores}
}

func (t *Tee) Record(ctx context.Context, rec *domain.OutcomeRecord) error {
	var firstErr error
	for _, s := range t.stores {
		if err := s.Record(ctx, rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *Tee) Close() error {
	var firstErr error
	for _, s := range t.stores {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
