// Command motion-trace runs the IMU simulation service: a signal
// generator feeding the movement tracker on a fixed cadence, with an
// HTTP API for lifecycle control, trajectory access, charts, live
// streaming and recordings.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/motion.trace/internal/api"
	"github.com/banshee-data/motion.trace/internal/config"
	"github.com/banshee-data/motion.trace/internal/fsutil"
	"github.com/banshee-data/motion.trace/internal/session"
	sig "github.com/banshee-data/motion.trace/internal/signal"
	"github.com/banshee-data/motion.trace/internal/store"
	"github.com/banshee-data/motion.trace/internal/timeutil"
	"github.com/banshee-data/motion.trace/internal/tracking"
	"github.com/banshee-data/motion.trace/internal/version"
)

var (
	listen        = flag.String("listen", ":8080", "Listen address")
	configPath    = flag.String("config", "", "Path to a simulation config JSON (built-in defaults when empty)")
	dbFile        = flag.String("db", "motion_trace.db", "Path to the recordings database (empty disables recordings)")
	modeFlag      = flag.String("mode", "", "Initial signal mode: demo or random (overrides config)")
	autostart     = flag.Bool("autostart", false, "Start the session immediately")
	recordingsDir = flag.String("recordings-dir", "recordings", "Directory for recording file import/export")
	migrateCmd    = flag.String("migrate", "", "Run a schema migration against -db and exit: up, down or status")
)

// runMigrate executes a migration action against the recordings
// database and exits. The database is opened without schema setup so
// the migration files stay the only schema authority.
func runMigrate(action, path string) {
	db, err := store.OpenDB(path)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	switch action {
	case "up":
		if err := db.MigrateUp(); err != nil {
			log.Fatalf("Migration up failed: %v", err)
		}
		log.Println("✓ All migrations applied")
	case "down":
		if err := db.MigrateDown(); err != nil {
			log.Fatalf("Migration down failed: %v", err)
		}
		log.Println("✓ Rolled back one migration")
	case "status":
		version, dirty, err := db.MigrateVersion()
		if err != nil {
			log.Fatalf("Migration status failed: %v", err)
		}
		log.Printf("schema version %d (dirty=%v)", version, dirty)
	default:
		log.Fatalf("Unknown migrate action %q (want up, down or status)", action)
	}
}

func loadConfig() (*config.SimConfig, error) {
	if *configPath != "" {
		return config.LoadSimConfig(*configPath)
	}
	// Pick up the canonical defaults file when running from a checkout.
	if _, err := os.Stat(config.DefaultConfigPath); err == nil {
		return config.LoadSimConfig(config.DefaultConfigPath)
	}
	return config.EmptySimConfig(), nil
}

func buildGenerator(cfg *config.SimConfig) (sig.Generator, error) {
	switch mode := sig.Mode(cfg.GetMode()); mode {
	case sig.ModeDemo:
		return sig.NewDemoGenerator(sig.DefaultDemoConfig())
	case sig.ModeRandom:
		return sig.NewRandomGenerator(sig.DefaultRandomConfig(cfg.GetRandomSeed()))
	case sig.ModeReplay:
		return nil, fmt.Errorf("replay mode is armed at runtime via the recordings API, not at startup")
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
}

func main() {
	flag.Parse()

	if *migrateCmd != "" {
		if *dbFile == "" {
			log.Fatal("-migrate requires a database path via -db")
		}
		runMigrate(*migrateCmd, *dbFile)
		return
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *modeFlag != "" {
		cfg.Mode = modeFlag
		if err := cfg.Validate(); err != nil {
			log.Fatalf("invalid mode flag: %v", err)
		}
	}

	gen, err := buildGenerator(cfg)
	if err != nil {
		log.Fatalf("failed to build generator: %v", err)
	}

	tracker, err := tracking.NewTracker(tracking.Config{
		SmoothingAlpha:         cfg.GetSmoothingAlpha(),
		Gravity:                cfg.GetGravity(),
		DriftDecayFactor:       cfg.GetDriftDecayFactor(),
		DriftDecayEverySamples: cfg.GetDriftDecayEverySamples(),
		MaxTrajectoryPoints:    cfg.GetMaxTrajectoryPoints(),
		MinTimestampDelta:      cfg.GetMinTimestampDelta(),
	})
	if err != nil {
		log.Fatalf("failed to build tracker: %v", err)
	}

	sessCfg := session.DefaultConfig()
	sessCfg.TickInterval = cfg.GetTickInterval()
	sessCfg.Speed = cfg.GetSpeed()
	sessCfg.SubscriberBuffer = cfg.GetSubscriberBuffer()
	sess, err := session.New(gen, tracker, sessCfg, timeutil.RealClock{})
	if err != nil {
		log.Fatalf("failed to build session: %v", err)
	}
	defer sess.Close()

	var db *store.DB
	if *dbFile != "" {
		db, err = store.NewDB(*dbFile)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("motion-trace %s starting: mode=%s listen=%s", version.String(), cfg.GetMode(), *listen)

	if *autostart {
		if err := sess.Start(); err != nil {
			log.Fatalf("failed to start session: %v", err)
		}
		log.Printf("session %s started", sess.ID())
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		apiServer := api.NewServer(sess, db, cfg)
		fs := fsutil.OSFileSystem{}
		if err := fs.MkdirAll(*recordingsDir, 0o755); err != nil {
			log.Printf("failed to create recordings directory: %v", err)
		}
		apiServer.SetRecordingsDir(*recordingsDir, fs)

		mux := apiServer.ServeMux()
		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}()

	wg.Wait()

	if err := sess.Stop(); err != nil {
		log.Printf("session stop error: %v", err)
	}
	log.Println("motion-trace terminated")
}
