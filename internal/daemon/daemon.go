package daemon

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/driftwatch/driftwatch/internal/api"
	"github.com/driftwatch/driftwatch/internal/domain"
	"github.com/driftwatch/driftwatch/internal/health"
	"github.com/driftwatch/driftwatch/internal/infra/baseline"
	"github.com/driftwatch/driftwatch/internal/infra/drift"
	"github.com/driftwatch/driftwatch/internal/infra/gateway"
	"github.com/driftwatch/driftwatch/internal/infra/logging"
	_ "github.com/driftwatch/driftwatch/internal/infra/metrics" // Register Prometheus metrics
	"github.com/driftwatch/driftwatch/internal/infra/monitor"
	"github.com/driftwatch/driftwatch/internal/infra/registry"
	"github.com/driftwatch/driftwatch/internal/infra/sqlite"
	"github.com/driftwatch/driftwatch/internal/infra/validator"
)

// Daemon is the core DriftWatch runtime. It wires together all services.
type Daemon struct {
	Config    Config
	DB        *sqlite.DB
	Models    *registry.Manager
	Validator *validator.Validator
	Baselines *baseline.Builder
	Gateway   *gateway.Gateway
	Engine    *drift.Engine
	Monitor   *monitor.Scheduler
	Server    *api.Server
	Health    *health.Checker
	Log       *zap.Logger

	cancel context.CancelFunc
}

// New creates and initializes a Daemon with all services wired.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration. The mock
// loader serves predictions until a real model runtime is plugged in
// behind the Loader interface.
func NewWithConfig(cfg Config) (*Daemon, error) {
	log, err := logging.New(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	dataDir := cfg.Storage.Dir
	if dataDir == "" {
		dataDir = driftwatchHome()
	}
	db, err := sqlite.Open(dataDir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	var loader domain.Loader = validator.NewMockLoader()

	models := registry.NewManager(db, log)
	v := validator.New(loader, log)
	builder := baseline.New(db, log)

	gwCfg := gateway.DefaultConfig()
	if cfg.Gateway.QueueSize > 0 {
		gwCfg.QueueSize = cfg.Gateway.QueueSize
	}
	gwCfg.PredictTimeout = parseDuration(cfg.Gateway.PredictTimeout, gwCfg.PredictTimeout)
	gw := gateway.New(gwCfg, db, db, log)

	engCfg := drift.DefaultConfig()
	if cfg.Drift.PSIThreshold > 0 {
		engCfg.PSIThreshold = cfg.Drift.PSIThreshold
	}
	if cfg.Drift.KLThreshold > 0 {
		engCfg.KLThreshold = cfg.Drift.KLThreshold
	}
	if cfg.Drift.MinSamples > 0 {
		engCfg.MinSamples = cfg.Drift.MinSamples
	}
	engCfg.Window = parseDuration(cfg.Drift.Window, engCfg.Window)
	engine := drift.New(engCfg, db, db, log)

	monCfg := monitor.DefaultConfig()
	monCfg.Interval = parseDuration(cfg.Drift.CheckInterval, monCfg.Interval)
	if cfg.Drift.MaxParallel > 0 {
		monCfg.MaxParallel = cfg.Drift.MaxParallel
	}
	if cfg.Storage.RetentionDays > 0 {
		monCfg.RetentionDays = cfg.Storage.RetentionDays
	}
	mon := monitor.New(monCfg, db, engine, db, db, monitor.NewLogNotifier(log), log)

	restorePredictors(db, loader, gw, log)

	deployer := api.NewDeployer(models, v, loader, builder, gw, log)
	srv := api.NewServer(models, gw, deployer, mon, db, db, db, db, log)
	srv.SetCORSOrigins(cfg.API.CORSOrigins)
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}

	return &Daemon{
		Config:    cfg,
		DB:        db,
		Models:    models,
		Validator: v,
		Baselines: builder,
		Gateway:   gw,
		Engine:    engine,
		Monitor:   mon,
		Server:    srv,
		Health:    health.NewChecker(db, dataDir, gw),
		Log:       log,
	}, nil
}

// restorePredictors reloads every deployed model's predictor into the
// gateway after a restart. A model whose artifact no longer loads is
// skipped; it stays deployed in the registry and its predict endpoint
// errors until the next push.
func restorePredictors(store domain.ModelStore, loader domain.Loader, gw *gateway.Gateway, log *zap.Logger) {
	deployed, err := store.ListByStatus(domain.StatusDeployed)
	if err != nil {
		log.Warn("listing deployed models for restore", zap.Error(err))
		return
	}
	for _, m := range deployed {
		p, err := loader.Load(context.Background(), domain.ArtifactRef{
			Name:    m.Name,
			Version: m.Version,
			Repo:    m.SourceRepo,
		})
		if err != nil {
			log.Warn("predictor restore failed",
				zap.String("model_id", m.ID),
				zap.String("version", m.Version),
				zap.Error(err))
			continue
		}
		gw.Install(m.ID, p)
		log.Info("predictor restored",
			zap.String("model_id", m.ID),
			zap.String("version", m.Version))
	}
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	// Start the log drain and background loops
	d.Gateway.Start()
	go d.Health.Run(ctx)
	if d.Config.Drift.AutoCheck {
		go d.Monitor.Run(ctx)
	}

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		_ = httpServer.Shutdown(shutdownCtx)
		d.Gateway.Close() // flush pending inference logs
		_ = d.DB.Close()
	}()

	d.Log.Info("driftwatch serving",
		zap.String("addr", addr),
		zap.Bool("metrics", d.Config.Telemetry.Prometheus))

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
}
