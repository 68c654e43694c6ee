// Package session holds the authenticated student across restarts.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/victornm/quizclient/internal/domain"
	"github.com/victornm/quizclient/internal/errors"
	"github.com/victornm/quizclient/internal/event"
	"github.com/victornm/quizclient/internal/storage"
)

// StorageKey is where the persisted part of the session lives.
const StorageKey = "auth-storage"

type Config struct {
	Storage  storage.Store
	EventBus *event.Bus
}

// State is a snapshot of the session. IsAuthenticated is true iff Student is non-nil.
type State struct {
	Student         *domain.Student
	IsAuthenticated bool
	IsLoading       bool
	Error           string
}

// persisted is exactly what survives a restart; loading and error flags never do.
type persisted struct {
	Student         *domain.Student `json:"student"`
	IsAuthenticated bool            `json:"isAuthenticated"`
}

type Store struct {
	storage storage.Store
	eb      *event.Bus

	mu    sync.RWMutex
	state State
}

// NewStore rehydrates the session from storage. A missing or unreadable record starts logged out.
func NewStore(ctx context.Context, c Config) *Store {
	s := &Store{
		storage: c.Storage,
		eb:      c.EventBus,
	}

	var p persisted
	err := storage.GetJSON(ctx, s.storage, StorageKey, &p)
	switch {
	case err == nil:
		s.setStudent(p.Student)
	case errors.Is(err, errors.CodeNotFound):
	default:
		slog.WarnContext(ctx, "session: discard unreadable session", "error", err)
	}

	return s
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := s.state
	if st.Student != nil {
		cp := *st.Student
		st.Student = &cp
	}

	return st
}

// Student returns the logged-in student, or nil.
func (s *Store) Student() *domain.Student {
	return s.State().Student
}

// Login replaces the identity wholesale and clears any auth error.
func (s *Store) Login(ctx context.Context, student domain.Student) error {
	s.mu.Lock()
	s.setStudent(&student)
	s.state.Error = ""
	s.mu.Unlock()

	return s.persist(ctx)
}

// Logout clears the identity. It is valid from any state.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	prev := s.state.Student
	s.setStudent(nil)
	s.state.Error = ""
	s.mu.Unlock()

	if err := s.persist(ctx); err != nil {
		return err
	}

	if prev != nil && s.eb != nil {
		s.eb.Publish(ctx, domain.EventSessionLoggedOut{Student: *prev})
	}

	return nil
}

func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.IsLoading = loading
}

// SetError sets the auth error shown to the student; an empty message clears it.
func (s *Store) SetError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Error = msg
}

func (s *Store) ClearError() {
	s.SetError("")
}

// setStudent is the only place Student and IsAuthenticated change, so they never diverge.
func (s *Store) setStudent(st *domain.Student) {
	s.state.Student = st
	s.state.IsAuthenticated = st != nil
}

func (s *Store) persist(ctx context.Context) error {
	s.mu.RLock()
	p := persisted{
		Student:         s.state.Student,
		IsAuthenticated: s.state.IsAuthenticated,
	}
	s.mu.RUnlock()

	if err := storage.SetJSON(ctx, s.storage, StorageKey, p); err != nil {
		return fmt.Errorf("session: persist: %w", err)
	}

	return nil
}
