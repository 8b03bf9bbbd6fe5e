// Package app wires configuration, logging, telemetry, the catalogue backend
// and tick reporting, and opens battle sessions on top of them.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/OCAP2/warcore/internal/battle"
	"github.com/OCAP2/warcore/internal/config"
	"github.com/OCAP2/warcore/internal/influx"
	"github.com/OCAP2/warcore/internal/logging"
	intOtel "github.com/OCAP2/warcore/internal/otel"
	"github.com/OCAP2/warcore/internal/storage"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// Name is used for log file names and the OTel service default.
const Name = "warcore"

// App holds the process-wide services battle sessions are built on.
type App struct {
	SessionStart time.Time
	LogFilePath  string
	SlogManager  *logging.SlogManager
	Logger       *slog.Logger
	OTel         *intOtel.Provider
	Backend      storage.Backend
	Reporter     influx.Reporter

	engine  config.EngineConfig
	logFile *os.File
}

// Option adjusts how Start brings services up.
type Option func(*startOptions)

type startOptions struct {
	defaultSQLitePath string
}

// WithDefaultSQLitePath sets the SQLite catalogue file used when
// storage.sqlite.path is not configured. Without it an unset path means an
// in-memory catalogue that is gone when the process exits.
func WithDefaultSQLitePath(path string) Option {
	return func(o *startOptions) { o.defaultSQLitePath = path }
}

// Start loads configuration from configDir and brings up every service.
// A missing config file is logged and defaults are used.
func Start(ctx context.Context, configDir string, opts ...Option) (*App, error) {
	var o startOptions
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		SessionStart: time.Now(),
		SlogManager:  logging.NewSlogManager(),
	}

	// stdout until the log file exists
	a.SlogManager.Setup(nil, "info", nil)
	a.Logger = a.SlogManager.Logger()

	if err := config.Load(configDir); err != nil {
		a.Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		a.Logger.Info("Loaded config", "dir", configDir)
	}
	a.engine = config.GetEngineConfig()

	var out io.Writer
	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		a.Logger.Error("Failed to create logs directory", "error", err, "path", logsDir)
	} else {
		a.LogFilePath = logging.LogFilePath(logsDir, Name, a.SessionStart)
		if _, err := os.Stat(a.LogFilePath); err == nil {
			os.Rename(a.LogFilePath, a.LogFilePath+".old")
		}
		f, err := os.OpenFile(a.LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			a.Logger.Error("Failed to create/open log file!", "error", err, "path", a.LogFilePath)
		} else {
			a.logFile = f
			out = f
		}
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		p, err := intOtel.New(intOtel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			Writer:       out,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			a.Logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			a.OTel = p
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if a.OTel != nil {
		otelLogProvider = a.OTel.LoggerProvider()
	}
	a.SlogManager.Setup(out, config.GetString("logLevel"), otelLogProvider)
	a.Logger = a.SlogManager.ContextLogger(nil)
	a.Logger.Info("Logging to file", "path", a.LogFilePath)

	storageCfg := config.GetStorageConfig()
	if storageCfg.SQLite.Path == "" {
		storageCfg.SQLite.Path = o.defaultSQLitePath
	}
	if storageCfg.SQLite.Path == "" && storageCfg.Type != BackendPostgres {
		a.Logger.Warn("SQLite catalogue is in-memory, seeded battles are lost on exit")
	}

	backend, err := NewBackend(storageCfg, config.GetDatabaseConfig(), a.SlogManager.Zerolog("storage"))
	if err != nil {
		a.Shutdown(ctx)
		return nil, err
	}
	if err := backend.Init(); err != nil {
		backend.Close()
		a.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	a.Backend = backend

	a.Reporter = a.startReporter(ctx, logsDir)

	a.Logger.Info("Started", "storage", config.GetString("storage.type"), "visionRange", a.engine.VisionRange, "scanWorkers", a.engine.ScanWorkers)
	return a, nil
}

func (a *App) startReporter(ctx context.Context, logsDir string) influx.Reporter {
	cfg := config.GetInfluxConfig()
	if !cfg.Enabled {
		return influx.NopReporter{}
	}

	m := influx.NewManager(cfg, a.SlogManager.Zerolog("influx"), filepath.Join(logsDir, Name+"_ticks.lp.gz"))
	if err := m.Connect(ctx); err != nil {
		a.Logger.Error("Failed to set up InfluxDB, tick reporting disabled", "error", err)
		if cerr := m.Close(); cerr != nil {
			a.Logger.Error("Failed to close InfluxDB manager", "error", cerr)
		}
		return influx.NopReporter{}
	}
	return m
}

// OpenSession loads the battle's terrain and roster from the backend and
// opens a session over them.
func (a *App) OpenSession(ctx context.Context, battleID string) (*battle.Session, error) {
	terrain, err := a.Backend.LoadTerrain(ctx, battleID)
	if err != nil {
		return nil, fmt.Errorf("load terrain: %w", err)
	}
	roster, err := a.Backend.LoadRoster(ctx, battleID)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}

	return battle.New(battleID, terrain, roster, a.Backend, battle.Options{
		Engine:   a.engine,
		Reporter: a.Reporter,
		Logger:   a.Logger,
	})
}

// Shutdown releases every service started by Start.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.Reporter != nil {
		errs = append(errs, a.Reporter.Close())
	}
	if a.Backend != nil {
		errs = append(errs, a.Backend.Close())
	}
	if err := a.SlogManager.Flush(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.OTel != nil {
		errs = append(errs, a.OTel.Shutdown(ctx))
	}
	if a.logFile != nil {
		errs = append(errs, a.logFile.Close())
		a.logFile = nil
	}
	return errors.Join(errs...)
}
