package session_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizclient/internal/domain"
	"github.com/victornm/quizclient/internal/event"
	"github.com/victornm/quizclient/internal/session"
	"github.com/victornm/quizclient/internal/storage"
)

var ada = domain.Student{ID: 7, Name: "Ada", Email: "ada@example.com"}

func TestStore_Login(t *testing.T) {
	ctx := context.Background()
	s := session.NewStore(ctx, session.Config{Storage: storage.NewMemory()})

	s.SetError("Student not found. Please register first.")
	require.NoError(t, s.Login(ctx, ada))

	st := s.State()
	require.True(t, st.IsAuthenticated)
	require.Equal(t, &ada, st.Student)
	require.Empty(t, st.Error, "login clears the auth error")
}

func TestStore_Logout(t *testing.T) {
	tests := map[string]struct {
		arrange func(t *testing.T, s *session.Store)
	}{
		"after login": {
			arrange: func(t *testing.T, s *session.Store) {
				require.NoError(t, s.Login(context.Background(), ada))
			},
		},
		"when never logged in": {
			arrange: func(*testing.T, *session.Store) {},
		},
		"with a pending error and loading flag": {
			arrange: func(t *testing.T, s *session.Store) {
				require.NoError(t, s.Login(context.Background(), ada))
				s.SetLoading(true)
				s.SetError("boom")
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s := session.NewStore(context.Background(), session.Config{Storage: storage.NewMemory()})
			tt.arrange(t, s)

			require.NoError(t, s.Logout(context.Background()))

			st := s.State()
			assert.False(t, st.IsAuthenticated)
			assert.Nil(t, st.Student)
			assert.Empty(t, st.Error)
		})
	}
}

func TestStore_PersistsOnlyIdentity(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()

	s := session.NewStore(ctx, session.Config{Storage: mem})
	require.NoError(t, s.Login(ctx, ada))
	s.SetLoading(true)
	s.SetError("transient")

	b, err := mem.Get(ctx, session.StorageKey)
	require.NoError(t, err)
	require.JSONEq(t, `{"student":{"id":7,"name":"Ada","email":"ada@example.com"},"isAuthenticated":true}`, string(b))

	reloaded := session.NewStore(ctx, session.Config{Storage: mem}).State()
	require.Equal(t, session.State{Student: &ada, IsAuthenticated: true}, reloaded)
}

func TestStore_RehydrateKeepsInvariant(t *testing.T) {
	tests := map[string]struct {
		stored string
		want   session.State
	}{
		"flag without student is not authenticated": {
			stored: `{"student":null,"isAuthenticated":true}`,
			want:   session.State{},
		},
		"student without flag is authenticated": {
			stored: `{"student":{"id":7,"name":"Ada","email":"ada@example.com"},"isAuthenticated":false}`,
			want:   session.State{Student: &ada, IsAuthenticated: true},
		},
		"garbage starts logged out": {
			stored: `not json`,
			want:   session.State{},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			mem := storage.NewMemory()
			require.NoError(t, mem.Set(ctx, session.StorageKey, []byte(tt.stored)))

			require.Equal(t, tt.want, session.NewStore(ctx, session.Config{Storage: mem}).State())
		})
	}
}

func TestStore_LogoutPublishesEvent(t *testing.T) {
	ctx := context.Background()
	eb := event.NewBus()

	var (
		mu  sync.Mutex
		got []domain.EventSessionLoggedOut
	)
	eb.Subscribe(domain.EventNameSessionLoggedOut, func(_ context.Context, e event.Event) error {
		mu.Lock()
		got = append(got, e.(domain.EventSessionLoggedOut))
		mu.Unlock()
		return nil
	})

	s := session.NewStore(ctx, session.Config{Storage: storage.NewMemory(), EventBus: eb})
	require.NoError(t, s.Login(ctx, ada))
	require.NoError(t, s.Logout(ctx))
	require.NoError(t, s.Logout(ctx))
	eb.Stop()

	require.Equal(t, []domain.EventSessionLoggedOut{{Student: ada}}, got, "only a real logout is announced")
}
