package storage_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizclient/internal/errors"
	"github.com/victornm/quizclient/internal/storage"
)

func TestStore(t *testing.T) {
	stores := map[string]func(t *testing.T) storage.Store{
		"memory": func(*testing.T) storage.Store {
			return storage.NewMemory()
		},

		"file": func(t *testing.T) storage.Store {
			s, err := storage.NewFile(t.TempDir())
			require.NoError(t, err)
			return s
		},

		"redis": func(t *testing.T) storage.Store {
			return storage.NewRedis(makeRedis(t), "quiz")
		},

		"postgres": func(*testing.T) storage.Store {
			return storage.NewPostgres(newFakeDB())
		},
	}

	for name, makeStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := makeStore(t)

			_, err := s.Get(ctx, "inProgressQuiz")
			require.True(t, errors.Is(err, errors.CodeNotFound), "missing key should be not found, got %v", err)

			require.NoError(t, s.Set(ctx, "inProgressQuiz", []byte(`{"studentId":"7","attemptId":"abc"}`)))
			b, err := s.Get(ctx, "inProgressQuiz")
			require.NoError(t, err)
			require.JSONEq(t, `{"studentId":"7","attemptId":"abc"}`, string(b))

			require.NoError(t, s.Set(ctx, "inProgressQuiz", []byte(`{"studentId":"7","attemptId":"def"}`)))
			b, err = s.Get(ctx, "inProgressQuiz")
			require.NoError(t, err)
			require.JSONEq(t, `{"studentId":"7","attemptId":"def"}`, string(b), "set should overwrite wholesale")

			require.NoError(t, s.Delete(ctx, "inProgressQuiz"))
			_, err = s.Get(ctx, "inProgressQuiz")
			require.True(t, errors.Is(err, errors.CodeNotFound))

			require.NoError(t, s.Delete(ctx, "inProgressQuiz"), "deleting a missing key is not an error")
		})
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemory()

	type marker struct {
		StudentID string `json:"studentId"`
	}

	require.NoError(t, storage.SetJSON(ctx, s, "k", marker{StudentID: "7"}))

	var got marker
	require.NoError(t, storage.GetJSON(ctx, s, "k", &got))
	require.Equal(t, "7", got.StudentID)

	require.NoError(t, s.Set(ctx, "k", []byte("{not json")))
	require.Error(t, storage.GetJSON(ctx, s, "k", &got))
}

func TestFile_KeysAreSanitized(t *testing.T) {
	ctx := context.Background()
	s, err := storage.NewFile(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, "../escape", []byte("1")))
	b, err := s.Get(ctx, "../escape")
	require.NoError(t, err)
	require.Equal(t, "1", string(b))
}

func makeRedis(t *testing.T) redis.UniversalClient {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	t.Cleanup(func() { rc.Close() })
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	return rc
}

// fakeDB understands the three statements issued by storage.Postgres.
type fakeDB struct {
	mu   sync.Mutex
	rows map[string][]byte
}

func newFakeDB() *fakeDB {
	return &fakeDB{rows: make(map[string][]byte)}
}

func (db *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	key := args[0].(string)
	if len(args) == 2 {
		db.rows[key] = append([]byte(nil), args[1].([]byte)...)
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	}

	delete(db.rows, key)
	return pgconn.NewCommandTag("DELETE 1"), nil
}

func (db *fakeDB) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	db.mu.Lock()
	defer db.mu.Unlock()

	b, ok := db.rows[args[0].(string)]
	return fakeRow{value: b, ok: ok}
}

type fakeRow struct {
	value []byte
	ok    bool
}

func (r fakeRow) Scan(dest ...any) error {
	if !r.ok {
		return pgx.ErrNoRows
	}

	*dest[0].(*[]byte) = append([]byte(nil), r.value...)
	return nil
}
