package progress_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/victornm/quizclient/internal/domain"
	"github.com/victornm/quizclient/internal/errors"
	"github.com/victornm/quizclient/internal/progress"
	"github.com/victornm/quizclient/internal/storage"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	s := progress.NewStore(mem)

	m, err := s.Get(ctx)
	require.NoError(t, err)
	require.Nil(t, m)

	require.NoError(t, s.Save(ctx, domain.ProgressMarker{StudentID: "7", AttemptID: "abc"}))
	require.NoError(t, s.Save(ctx, domain.ProgressMarker{StudentID: "7", AttemptID: "def"}))

	m, err = s.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, &domain.ProgressMarker{StudentID: "7", AttemptID: "def"}, m, "only one marker exists at a time")

	b, err := mem.Get(ctx, progress.StorageKey)
	require.NoError(t, err)
	require.JSONEq(t, `{"studentId":"7","attemptId":"def"}`, string(b))

	require.NoError(t, s.Clear(ctx))
	m, err = s.Get(ctx)
	require.NoError(t, err)
	require.Nil(t, m)
}

func TestStore_For(t *testing.T) {
	ctx := context.Background()
	s := progress.NewStore(storage.NewMemory())
	require.NoError(t, s.Save(ctx, domain.ProgressMarker{StudentID: "7", AttemptID: "abc"}))

	m, err := s.For(ctx, "7")
	require.NoError(t, err)
	require.Equal(t, "abc", m.AttemptID)

	m, err = s.For(ctx, "8")
	require.NoError(t, err)
	require.Nil(t, m, "a marker of another student is ignored")
}

func TestStore_UnreadableMarker(t *testing.T) {
	tests := map[string]string{
		"not json":        `{"studentId":`,
		"missing attempt": `{"studentId":"7"}`,
		"wrong shape":     `[1,2,3]`,
	}

	for name, raw := range tests {
		raw := raw
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			mem := storage.NewMemory()
			require.NoError(t, mem.Set(ctx, progress.StorageKey, []byte(raw)))

			m, err := progress.NewStore(mem).Get(ctx)
			require.NoError(t, err)
			require.Nil(t, m)
		})
	}
}

func TestStore_SaveRejectsIncompleteMarker(t *testing.T) {
	err := progress.NewStore(storage.NewMemory()).Save(context.Background(), domain.ProgressMarker{StudentID: "7"})
	require.True(t, errors.Is(err, errors.CodeInvalidArgument))
}
