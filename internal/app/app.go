package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/fundtracer/fundtracer-backend/internal/data/db"
	"github.com/fundtracer/fundtracer-backend/internal/domain/ledger"
	"github.com/fundtracer/fundtracer-backend/internal/http"
	"github.com/fundtracer/fundtracer-backend/internal/observability"
	"github.com/fundtracer/fundtracer-backend/internal/platform/logger"
)

type store interface {
	DB() *gorm.DB
	AutoMigrateAll() error
	Close() error
}

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Metrics  *observability.Metrics
	Repos    Repos
	Clients  Clients
	Services Services

	store        store
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

// New loads configuration and wires the whole process. Nothing is served until Run.
func New(ctx context.Context) (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	return NewWithConfig(ctx, cfg)
}

func NewWithConfig(ctx context.Context, cfg Config) (*App, error) {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	st, err := openStore(log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}
	if err := st.AutoMigrateAll(); err != nil {
		_ = st.Close()
		log.Sync()
		return nil, fmt.Errorf("%s automigrate: %w", cfg.DBDriver, err)
	}
	theDB := st.DB()

	metrics := observability.Init(log, observability.Options{
		Enabled:          cfg.Metrics.Enabled,
		LatencyThreshold: cfg.Metrics.LatencyThreshold,
		ScrapeInterval:   cfg.Metrics.ScrapeInterval,
	})
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		Enabled:     cfg.Otel.Enabled,
		ServiceName: cfg.Otel.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
		Endpoint:    cfg.Otel.Endpoint,
		Insecure:    cfg.Otel.Insecure,
		SampleRatio: cfg.Otel.SampleRatio,
		Headers:     cfg.Otel.Headers,
	})

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = st.Close()
		log.Sync()
		return nil, err
	}

	reposet := wireRepos(theDB, log)
	serviceset, err := wireServices(theDB, log, cfg, metrics, reposet, clients)
	if err != nil {
		clients.Close()
		_ = st.Close()
		log.Sync()
		return nil, err
	}

	handlerset := wireHandlers(log, theDB, serviceset)
	middleware := wireMiddleware(log, cfg)
	router := wireRouter(log, cfg, metrics, handlerset, middleware)

	return &App{
		Log:          log,
		DB:           theDB,
		Router:       router,
		Cfg:          cfg,
		Metrics:      metrics,
		Repos:        reposet,
		Clients:      clients,
		Services:     serviceset,
		store:        st,
		otelShutdown: otelShutdown,
	}, nil
}

func openStore(log *logger.Logger, cfg Config) (store, error) {
	switch cfg.DBDriver {
	case "sqlite":
		st, err := db.NewSQLiteService(log, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
		return st, nil
	default:
		st, err := db.NewPostgresService(log, db.PostgresOptions{
			Host:            cfg.Postgres.Host,
			Port:            cfg.Postgres.Port,
			User:            cfg.Postgres.User,
			Password:        cfg.Postgres.Password,
			Name:            cfg.Postgres.Name,
			SSLMode:         cfg.Postgres.SSLMode,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		return st, nil
	}
}

// Start launches the background collectors and the metrics listener.
func (a *App) Start(ctx context.Context) {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if a.Clients.Redis != nil && a.Clients.Events != nil {
		if err := a.Clients.Events.StartForwarder(ctx, a.onDonationEvent); err != nil {
			a.Log.Warn("donation event forwarder not started", "error", err)
		}
	}
	if a.Metrics == nil {
		return
	}
	a.Metrics.StartServer(ctx, a.Log, a.Cfg.Metrics.Addr)
	a.Metrics.StartDonationStatusCollector(ctx, a.Log, a.DB)
	if a.Cfg.DBDriver == "postgres" {
		a.Metrics.StartPostgresCollector(ctx, a.Log, a.DB)
	}
	if a.Clients.Redis != nil {
		a.Metrics.StartRedisCollector(ctx, a.Log, a.Clients.Redis)
	}
}

// onDonationEvent counts events read back from the bus, confirming end-to-end delivery.
func (a *App) onDonationEvent(ev ledger.StatusChangedEvent) {
	a.Metrics.IncEventReceived(ev.Type, string(ev.To))
	a.Log.Debug("donation event received", "donation_id", ev.DonationID, "to_status", ev.To)
}

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Start(ctx)
	srv := &http.Server{Engine: a.Router}
	a.Log.Info("Serving HTTP", "addr", a.Cfg.ListenAddr())
	return srv.Run(ctx, a.Cfg.ListenAddr())
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.Clients.Close()
	a.Clients = Clients{}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otelShutdown(ctx); err != nil && a.Log != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		cancel()
		a.otelShutdown = nil
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil && a.Log != nil {
			a.Log.Warn("db close failed", "error", err)
		}
		a.store = nil
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
