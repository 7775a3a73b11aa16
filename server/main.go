package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"skill-duel/server/config"
	"skill-duel/server/engine"
	"skill-duel/server/logging"
	"skill-duel/server/session"
	"skill-duel/server/store"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.NoColor != "" {
		color.NoColor = true
	}

	var migrate, duel, bench bool
	for _, a := range args {
		switch a {
		case "--migrate":
			migrate = true
		case "--duel":
			duel = true
		case "--bench":
			bench = true
		default:
			return fmt.Errorf("unknown flag %q (want --migrate, --duel or --bench)", a)
		}
	}

	rules, err := config.LoadRules(cfg.RulesFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	base := cfg.DeckSeed
	if base == 0 {
		base = engine.SecureBaseSeed()
	}

	if bench {
		bcfg := benchConfig{
			Rules:     rules,
			PolicyA:   cfg.BenchPolicyA,
			PolicyB:   cfg.BenchPolicyB,
			Pairs:     (cfg.BenchMatches + 1) / 2,
			Workers:   cfg.BenchWorkers,
			MaxRounds: cfg.BenchMaxRounds,
			BaseSeed:  base,
		}
		log.Info("bench starting", zap.Uint64("seed", base), zap.Int("pairs", bcfg.Pairs), zap.Int("workers", bcfg.Workers))
		rep, err := runBench(ctx, bcfg)
		if err != nil {
			return err
		}
		printBench(os.Stdout, bcfg, rep)
		return nil
	}

	var db *store.DB
	if cfg.DatabaseURL != "" {
		db, err = openArchive(ctx, cfg, migrate, log)
		if err != nil {
			if migrate || !duel {
				return err
			}
			log.Warn("archive disabled", zap.Error(err))
			db = nil
		}
		if db != nil {
			defer db.Close()
		}
	} else if migrate {
		return errors.New("--migrate needs DATABASE_URL")
	}
	if migrate {
		log.Info("migrated")
		return nil
	}

	opts := session.Options{
		Rules:          rules,
		SelectionDelay: cfg.SelectionDelay,
		NextRoundDelay: cfg.NextRoundDelay,
		Seeds:          engine.NewSeedStream(base),
		Logger:         log,
	}
	if db != nil {
		opts.Recorder = db
	}

	if duel {
		opts.Scheduler = engine.Immediate{}
		mgr := session.NewManager(opts)
		defer mgr.Close()
		return runDuel(ctx, mgr, os.Stdin, os.Stdout)
	}

	opts.Scheduler = engine.TimerScheduler{}
	mgr := session.NewManager(opts)
	defer mgr.Close()

	var archive archiveLister
	if db != nil {
		archive = db
	}
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           Router(mgr, archive, log),
		ReadHeaderTimeout: 15 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", "http://localhost:"+cfg.Port), zap.Bool("archive", db != nil))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openArchive connects to Postgres and migrates when asked to.
func openArchive(ctx context.Context, cfg config.Config, migrate bool, log *zap.Logger) (*store.DB, error) {
	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.Ping(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if migrate || cfg.AutoMigrate {
		if err := store.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("schema applied")
	}
	return db, nil
}
