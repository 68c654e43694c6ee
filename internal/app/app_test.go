package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizclient/internal/app"
	"github.com/victornm/quizclient/internal/domain"
)

var ada = domain.Student{ID: 7, Name: "Ada", Email: "ada@example.com"}

func TestInit_Storage(t *testing.T) {
	tests := map[string]struct {
		arrange func(t *testing.T, c *app.Config)
		// restarts reports whether state survives a new App on the same config.
		restarts bool
	}{
		"file": {
			arrange: func(t *testing.T, c *app.Config) {
				c.Storage.Driver = app.DriverFile
				c.Storage.File.Dir = t.TempDir()
			},
			restarts: true,
		},
		"redis": {
			arrange: func(t *testing.T, c *app.Config) {
				c.Storage.Driver = app.DriverRedis
				c.Storage.Redis.Addrs = []string{miniredis.RunT(t).Addr()}
			},
			restarts: true,
		},
		"memory": {
			arrange: func(_ *testing.T, c *app.Config) {
				c.Storage.Driver = app.DriverMemory
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			c := app.DefaultConfig()
			tt.arrange(t, &c)

			a, err := app.Init(ctx, c)
			require.NoError(t, err)
			require.NoError(t, a.Session().Login(ctx, ada))
			require.Equal(t, "7", a.AttemptConfig("a1", nil).StudentID)
			a.Close()

			b, err := app.Init(ctx, c)
			require.NoError(t, err)
			t.Cleanup(b.Close)

			assert.Equal(t, tt.restarts, b.Session().State().IsAuthenticated)
		})
	}
}

func TestInit_UnknownDriver(t *testing.T) {
	c := app.DefaultConfig()
	c.Storage.Driver = "floppy"

	_, err := app.Init(context.Background(), c)
	require.ErrorContains(t, err, "floppy")
}

func TestOps(t *testing.T) {
	ctx := context.Background()
	c := app.DefaultConfig()
	c.Storage.Driver = app.DriverMemory

	a, err := app.Init(ctx, c)
	require.NoError(t, err)

	a.EventBus().Publish(ctx, domain.EventAttemptCompleted{StudentID: "7", AttemptID: "a1"})
	a.Close()

	n, err := testutil.GatherAndCount(a.Registry(), "quizclient_attempt_completed_total")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	tests := map[string]struct {
		path   string
		assert func(t *testing.T, w *httptest.ResponseRecorder)
	}{
		"health": {
			path: "/healthz",
			assert: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.Equal(t, http.StatusOK, w.Code)
				assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
			},
		},
		"metrics": {
			path: "/metrics",
			assert: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.Equal(t, http.StatusOK, w.Code)
				assert.Contains(t, w.Body.String(), "quizclient_attempt_completed_total 1")
			},
		},
		"pprof": {
			path: "/debug/pprof/cmdline",
			assert: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.Equal(t, http.StatusOK, w.Code)
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			a.OpsHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			tt.assert(t, w)
		})
	}
}

func TestServeOps_NothingConfigured(t *testing.T) {
	c := app.DefaultConfig()
	c.Storage.Driver = app.DriverMemory

	a, err := app.Init(context.Background(), c)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	require.NoError(t, a.ServeOps(context.Background()))
}
