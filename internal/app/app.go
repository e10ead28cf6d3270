// Package app wires configuration, storage, services and the HTTP router
// into a runnable server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/taskmanager/task-api/internal/api"
	"github.com/taskmanager/task-api/internal/core/ports"
	"github.com/taskmanager/task-api/internal/core/service"
	"github.com/taskmanager/task-api/internal/infrastructure/db/jsonfile"
	mongostore "github.com/taskmanager/task-api/internal/infrastructure/db/mongo"
	redisstore "github.com/taskmanager/task-api/internal/infrastructure/db/redis"
	"github.com/taskmanager/task-api/internal/infrastructure/db/sqlite"
	"github.com/taskmanager/task-api/internal/infrastructure/http/handlers"
	"github.com/taskmanager/task-api/internal/infrastructure/queue"
	"github.com/taskmanager/task-api/internal/pkg/config"
)

// closer releases one resource on shutdown.
type closer struct {
	name string
	fn   func(context.Context) error
}

// stores is the set of repositories backing one STORE_DRIVER.
type stores struct {
	users    ports.UserRepository
	tasks    ports.TaskRepository
	activity ports.ActivityRepository
	checks   map[string]handlers.Check
	closers  []closer
}

// App is a fully wired server. Build it with New, run it with Start and
// stop it with Shutdown.
type App struct {
	cfg        *config.Config
	log        zerolog.Logger
	echo       *echo.Echo
	dispatcher *queue.Dispatcher
	stopWorker context.CancelFunc
	closers    []closer
}

// New opens the configured store and builds the services and router. Any
// resource opened before a failure is released before returning.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	var opts []service.TaskServiceOption
	if cfg.Redis.Addr != "" {
		client, err := redisstore.Connect(ctx, redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Timeout:  cfg.Redis.Timeout,
		})
		if err != nil {
			closeAll(ctx, log, st.closers)
			return nil, err
		}
		opts = append(opts,
			service.WithIdempotencyStore(redisstore.NewIdempotencyStore(client, cfg.Redis.IdempotencyTTL)),
			service.WithIdempotencyWait(cfg.Redis.IdempotencyWait, 25*time.Millisecond),
		)
		st.checks["redis"] = redisstore.Ping(client)
		st.closers = append(st.closers, closer{"redis", func(context.Context) error { return client.Close() }})
		log.Info().Str("addr", cfg.Redis.Addr).Msg("idempotency keys enabled")
	}

	activity := service.NewActivityService(st.activity, log.With().Str("component", "activity").Logger())
	dispatcher := queue.NewDispatcher(cfg.ActivityWorkers, activity, log.With().Str("component", "dispatcher").Logger())
	opts = append(opts, service.WithActivityPublisher(dispatcher))

	tokens := service.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL, nil)
	authService := service.NewAuthService(st.users, tokens, cfg.BcryptCost, nil, log.With().Str("component", "auth").Logger())
	taskService := service.NewTaskService(st.tasks, st.users, log.With().Str("component", "tasks").Logger(), opts...)

	e := api.NewRouter(api.Deps{
		AuthService:    authService,
		TaskService:    taskService,
		TokenVerifier:  tokens,
		HealthChecks:   st.checks,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         log.With().Str("component", "http").Logger(),
	})

	return &App{
		cfg:        cfg,
		log:        log,
		echo:       e,
		dispatcher: dispatcher,
		closers:    st.closers,
	}, nil
}

func openStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*stores, error) {
	switch cfg.Store.Driver {
	case config.DriverMongo:
		client, db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		if err := mongostore.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		log.Info().Str("database", cfg.Mongo.Database).Msg("using mongo store")
		return &stores{
			users:    mongostore.NewUserRepository(db),
			tasks:    mongostore.NewTaskRepository(db),
			activity: mongostore.NewActivityRepository(db),
			checks:   map[string]handlers.Check{"store": mongostore.Ping(client)},
			closers:  []closer{{"mongo", client.Disconnect}},
		}, nil

	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.SQLite.Path, cfg.LogLevel == "debug")
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.SQLite.Path).Msg("using sqlite store")
		return &stores{
			users:    sqlite.NewUserRepository(db),
			tasks:    sqlite.NewTaskRepository(db),
			activity: sqlite.NewActivityRepository(db),
			checks:   map[string]handlers.Check{"store": db.Ping},
			closers:  []closer{{"sqlite", db.Close}},
		}, nil

	case config.DriverFile:
		st, err := jsonfile.Open(cfg.Store.DataFile)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", st.Path()).Msg("using file store")
		return &stores{
			users:    jsonfile.NewUserRepository(st),
			tasks:    jsonfile.NewTaskRepository(st),
			activity: jsonfile.NewActivityLog(log),
			checks:   map[string]handlers.Check{"store": st.Ping},
			closers:  []closer{{"file", st.Close}},
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// Handler exposes the router, mainly for tests.
func (a *App) Handler() http.Handler { return a.echo }

// Start launches the activity workers and begins serving on the configured
// port. It returns once the listener is bound; the server keeps running in
// the background.
func (a *App) Start(ctx context.Context) (net.Addr, error) {
	ln, err := net.Listen("tcp", ":"+a.cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("listen on port %s: %w", a.cfg.Port, err)
	}

	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.stopWorker = cancel
	a.dispatcher.Start(workerCtx)

	a.echo.Listener = ln
	go func() {
		if err := a.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error().Err(err).Msg("http server stopped")
		}
	}()

	a.log.Info().Str("addr", ln.Addr().String()).Str("env", a.cfg.Env).Msg("server started")
	return ln.Addr(), nil
}

// Shutdown stops accepting requests, lets in-flight ones finish, drains the
// activity queue and closes the stores, in that order.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error

	if err := a.echo.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http: %w", err))
	}

	if a.stopWorker != nil {
		a.stopWorker()
		if err := a.dispatcher.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("activity workers: %w", err))
		}
	}

	if err := closeAll(ctx, a.log, a.closers); err != nil {
		errs = append(errs, err)
	}

	a.log.Info().Msg("server stopped")
	return errors.Join(errs...)
}

func closeAll(ctx context.Context, log zerolog.Logger, closers []closer) error {
	var errs []error
	for _, c := range closers {
		if err := c.fn(ctx); err != nil {
			log.Error().Err(err).Str("resource", c.name).Msg("close failed")
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	return errors.Join(errs...)
}
