package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/groundupworks/wings/internal/api"
	"github.com/groundupworks/wings/internal/endpoint"
	"github.com/groundupworks/wings/internal/lockfile"
	"github.com/groundupworks/wings/internal/outbox"
	"github.com/groundupworks/wings/internal/retry"
	"github.com/groundupworks/wings/internal/scheduler"
	"github.com/groundupworks/wings/internal/store"
	"github.com/groundupworks/wings/internal/util"
	"github.com/groundupworks/wings/internal/worker"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for Wings state data
	DefaultStateDir = "/var/lib/wings"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "wings.db"
	// DefaultAPIAddr is the default API listen address
	DefaultAPIAddr = ":8080"
	// DefaultDrainSchedule is the periodic safety-net drain schedule. Even
	// if a one-shot retry timer is lost, this guarantees a future drain.
	DefaultDrainSchedule = "*/15 * * * *"
)

// Config holds environment configuration
type Config struct {
	DBDriver      string
	DBDSN         string
	StateDir      string
	APIAddr       string
	DrainSchedule string
	DropboxURL    string
	CloudPrintURL string
	DrainOnStart  bool
}

// Flags holds command line flag values
type Flags struct {
	stateDir      *string
	dbDriver      *string
	dbDSN         *string
	apiAddr       *string
	drainSchedule *string
}

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	st, err := openStore(flags)
	if err != nil {
		slog.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	policy := retry.NewPolicy(st)
	queue := outbox.NewQueue(st, policy)

	registry, err := endpoint.NewRegistry(
		endpoint.NewAlbum(queue, st),
		endpoint.NewDropbox(queue, st, config.DropboxURL),
		endpoint.NewCloudPrint(queue, st, config.CloudPrintURL),
	)
	if err != nil {
		slog.Error("Failed to build endpoint registry", "error", err)
		os.Exit(1)
	}

	// The wake-up timer and the worker reference each other; the timer only
	// fires after the worker exists.
	var w *worker.Worker
	wakeup := scheduler.NewTimerWakeup(func() { w.Drain() })
	defer wakeup.Stop()
	w = worker.New(st, registry, policy, wakeup, nil)
	queue.SetTrigger(w.Drain)

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	if err := sched.AddJob(*flags.drainSchedule, w.Drain); err != nil {
		slog.Error("Failed to schedule periodic drain", "schedule", *flags.drainSchedule, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go w.Run(ctx)
	if config.DrainOnStart {
		// Recover any records stranded by the previous process.
		w.Drain()
	}

	slog.Info("Bootstrapping Wings", "state_dir", *flags.stateDir, "driver", *flags.dbDriver, "api_addr", *flags.apiAddr, "drain_schedule", *flags.drainSchedule)
	server := api.NewServer(*flags.apiAddr, queue, w, registry)
	if err := server.Run(ctx); err != nil {
		slog.Error("Wings failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Wings exited successfully")
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DBDriver:      os.Getenv("WINGS_DB_DRIVER"),
		DBDSN:         os.Getenv("WINGS_DB_DSN"),
		StateDir:      os.Getenv("WINGS_STATE_DIR"),
		APIAddr:       os.Getenv("API_ADDR"),
		DrainSchedule: os.Getenv("DRAIN_SCHEDULE"),
		DropboxURL:    os.Getenv("DROPBOX_API_BASE_URL"),
		CloudPrintURL: os.Getenv("CLOUDPRINT_API_BASE_URL"),
		DrainOnStart:  util.ParseBoolEnv("WINGS_DRAIN_ON_START", true),
	}

	if config.DBDSN == "" {
		config.DBDSN = os.Getenv("DATABASE_URL")
	}
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No WINGS_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.APIAddr == "" {
		config.APIAddr = DefaultAPIAddr
	}
	if config.DrainSchedule == "" {
		config.DrainSchedule = DefaultDrainSchedule
	}
	if config.DBDriver == "" {
		config.DBDriver = "sqlite3"
	}
	return config
}

// parseCommandLineFlags parses command line flags with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:      flag.String("state-dir", config.StateDir, "directory for Wings state data"),
		dbDriver:      flag.String("db-driver", config.DBDriver, "database driver: sqlite3 or postgres"),
		dbDSN:         flag.String("db-dsn", config.DBDSN, "database DSN (file path for sqlite3, connection string for postgres)"),
		apiAddr:       flag.String("api-addr", config.APIAddr, "API listen address"),
		drainSchedule: flag.String("drain-schedule", config.DrainSchedule, "cron expression for the periodic drain"),
	}
	flag.Parse()
	return flags
}

// openStore selects and opens the configured storage backend.
func openStore(flags Flags) (store.Store, error) {
	switch *flags.dbDriver {
	case "postgres":
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	default:
		dsn := *flags.dbDSN
		if dsn == "" {
			dsn = filepath.Join(*flags.stateDir, DefaultDBFileName)
		}
		return store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
	}
}
