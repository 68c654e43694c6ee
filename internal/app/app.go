// Package app wires the client together: local storage, the backend gateway, the session,
// catalog and progress stores, notifications and the optional ops surface.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/quizclient/internal/attempt"
	"github.com/victornm/quizclient/internal/catalog"
	"github.com/victornm/quizclient/internal/domain"
	"github.com/victornm/quizclient/internal/event"
	"github.com/victornm/quizclient/internal/gateway"
	"github.com/victornm/quizclient/internal/notify"
	"github.com/victornm/quizclient/internal/progress"
	"github.com/victornm/quizclient/internal/session"
	"github.com/victornm/quizclient/internal/storage"
	"github.com/victornm/quizclient/internal/telemetry"
)

const (
	DriverFile     = "file"
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

type Config struct {
	API struct {
		BaseURL string
		Timeout time.Duration
	}

	Storage struct {
		Driver string

		File struct {
			Dir string
		}

		Redis struct {
			Addrs  []string
			Pass   string
			Prefix string
		}

		Postgres struct {
			Addr string
			User string
			Pass string
			Name string
		}
	}

	Log struct {
		Level  string
		Format string
	}

	Ops struct {
		HTTPPort int32
		GRPCPort int32
	}

	Notify struct {
		Redis struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}
}

// DefaultConfig is the configuration used before the file and environment are applied.
func DefaultConfig() Config {
	var c Config
	c.API.BaseURL = gateway.DefaultBaseURL
	c.Storage.Driver = DriverFile
	c.Storage.File.Dir = defaultStateDir()
	c.Storage.Redis.Prefix = "quizclient"
	c.Log.Level = "info"
	c.Log.Format = "text"
	c.Notify.Redis.Prefix = "quizclient"
	return c
}

func defaultStateDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".quizclient"
	}
	return filepath.Join(dir, "quizclient")
}

type App struct {
	c Config

	eb       *event.Bus
	registry *prometheus.Registry
	metrics  *telemetry.Metrics

	infra struct {
		redis struct {
			storage redis.UniversalClient
			notify  redis.UniversalClient
		}

		postgres *pgxpool.Pool
	}

	storage storage.Store

	service struct {
		gateway  *gateway.Client
		session  *session.Store
		progress *progress.Store
		catalog  *catalog.Service
		notify   *notify.Publisher
	}

	ops *ops
}

func Init(ctx context.Context, c Config) (*App, error) {
	a := &App{c: c}

	a.eb = event.NewBus(event.WithPoolSize(16), event.WithTimeout(10*time.Second))

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = telemetry.NewMetrics(a.registry)

	if err := a.initInfra(ctx); err != nil {
		return nil, fmt.Errorf("app: init infra: %w", err)
	}

	a.initService(ctx)
	a.initOps()
	return a, nil
}

func (a *App) initInfra(ctx context.Context) error {
	if err := a.initStorage(ctx); err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	if len(a.c.Notify.Redis.Addrs) > 0 {
		r, err := connectRedis(ctx, "notify", a.c.Notify.Redis.Addrs, a.c.Notify.Redis.Pass)
		if err != nil {
			return fmt.Errorf("notify: %w", err)
		}
		a.infra.redis.notify = r
	}

	return nil
}

func (a *App) initStorage(ctx context.Context) error {
	switch a.c.Storage.Driver {
	case DriverFile, "":
		s, err := storage.NewFile(a.c.Storage.File.Dir)
		if err != nil {
			return err
		}
		a.storage = s

	case DriverMemory:
		a.storage = storage.NewMemory()

	case DriverRedis:
		r, err := connectRedis(ctx, "storage", a.c.Storage.Redis.Addrs, a.c.Storage.Redis.Pass)
		if err != nil {
			return err
		}
		a.infra.redis.storage = r
		a.storage = storage.NewRedis(r, a.c.Storage.Redis.Prefix)

	case DriverPostgres:
		pg := a.c.Storage.Postgres
		db, err := connectPostgres(ctx, pg.Addr, pg.User, pg.Pass, pg.Name)
		if err != nil {
			return err
		}
		a.infra.postgres = db
		a.storage = storage.NewPostgres(db)

	default:
		return fmt.Errorf("unknown driver %q", a.c.Storage.Driver)
	}

	return nil
}

func connectRedis(ctx context.Context, name string, addrs []string, pass string) (redis.UniversalClient, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    addrs,
		Password: pass,
	})

	if err := telemetry.MonitorRedis(r, name); err != nil {
		return nil, err
	}

	if err := r.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return r, nil
}

func connectPostgres(ctx context.Context, addr, user, pass, name string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", user, pass, addr, name))
	if err != nil {
		return nil, err
	}

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(ctx); err != nil {
		return nil, err
	}

	return db, nil
}

func (a *App) initService(ctx context.Context) {
	a.service.gateway = gateway.New(gateway.Config{
		BaseURL: a.c.API.BaseURL,
		Timeout: a.c.API.Timeout,
		Metrics: a.metrics,
	})

	a.service.session = session.NewStore(ctx, session.Config{
		Storage:  a.storage,
		EventBus: a.eb,
	})

	a.service.progress = progress.NewStore(a.storage)

	a.service.catalog = catalog.NewService(catalog.Config{
		Backend:  a.service.gateway,
		EventBus: a.eb,
	})

	if a.infra.redis.notify != nil {
		a.service.notify = notify.New(notify.Config{
			EventBus: a.eb,
			Redis:    a.infra.redis.notify,
			Prefix:   a.c.Notify.Redis.Prefix,
		})
	}

	a.eb.Subscribe(domain.EventNameAttemptCompleted, func(context.Context, event.Event) error {
		a.metrics.AttemptCompleted()
		return nil
	})
}

func (a *App) Gateway() *gateway.Client { return a.service.gateway }
func (a *App) Session() *session.Store { return a.service.session }
func (a *App) Progress() *progress.Store { return a.service.progress }
func (a *App) Catalog() *catalog.Service { return a.service.catalog }
func (a *App) EventBus() *event.Bus { return a.eb }
func (a *App) Registry() *prometheus.Registry { return a.registry }

// AttemptConfig is the controller configuration for an attempt of the logged-in student.
func (a *App) AttemptConfig(attemptID string, quiz *domain.Quiz) attempt.Config {
	c := attempt.Config{
		Backend:   a.service.gateway,
		Progress:  a.service.progress,
		EventBus:  a.eb,
		AttemptID: attemptID,
		Quiz:      quiz,
	}

	if s := a.service.session.Student(); s != nil {
		c.StudentID = strconv.FormatInt(s.ID, 10)
	}

	return c
}

// Close stops the ops servers, waits for event handlers and releases connections.
func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.ops != nil {
		a.ops.shutdown(ctx)
	}

	a.eb.Stop()

	for name, r := range map[string]redis.UniversalClient{
		"storage": a.infra.redis.storage,
		"notify":  a.infra.redis.notify,
	} {
		if r == nil {
			continue
		}
		if err := r.Close(); err != nil {
			slog.ErrorContext(ctx, "app: close redis failed", "client", name, "error", err)
		}
	}

	if a.infra.postgres != nil {
		a.infra.postgres.Close()
	}

	slog.DebugContext(ctx, "app: closed")
}
