// Package progress persists the single "attempt in flight" marker.
// The marker is a hint: callers reconcile it against the backend before trusting it.
package progress

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/victornm/quizclient/internal/domain"
	"github.com/victornm/quizclient/internal/errors"
	"github.com/victornm/quizclient/internal/storage"
)

const StorageKey = "inProgressQuiz"

type Store struct {
	storage storage.Store
}

func NewStore(s storage.Store) *Store {
	return &Store{storage: s}
}

// Save overwrites any existing marker; at most one exists at a time.
func (s *Store) Save(ctx context.Context, m domain.ProgressMarker) error {
	if m.StudentID == "" || m.AttemptID == "" {
		return errors.InvalidArgument("progress marker needs both student and attempt: %+v", m)
	}

	if err := storage.SetJSON(ctx, s.storage, StorageKey, m); err != nil {
		return fmt.Errorf("progress: save: %w", err)
	}

	return nil
}

// Get returns the marker, or nil when there is none or it cannot be decoded.
func (s *Store) Get(ctx context.Context) (*domain.ProgressMarker, error) {
	var m domain.ProgressMarker
	err := storage.GetJSON(ctx, s.storage, StorageKey, &m)
	if errors.Is(err, errors.CodeNotFound) {
		return nil, nil
	}
	if errors.Is(err, errors.CodeInvalidArgument) {
		slog.WarnContext(ctx, "progress: ignore unreadable marker", "error", err)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("progress: get: %w", err)
	}

	if m.StudentID == "" || m.AttemptID == "" {
		return nil, nil
	}

	return &m, nil
}

// For returns the marker only when it belongs to studentID.
func (s *Store) For(ctx context.Context, studentID string) (*domain.ProgressMarker, error) {
	m, err := s.Get(ctx)
	if err != nil || m == nil || m.StudentID != studentID {
		return nil, err
	}

	return m, nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.storage.Delete(ctx, StorageKey); err != nil {
		return fmt.Errorf("progress: clear: %w", err)
	}

	return nil
}
