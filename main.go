package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/app"
	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/config"
	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/database"
	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/pkg/logger"
)

func main() {
	migrateCmd := flag.NewFlagSet("migrate", flag.ExitOnError)
	migrateDirection := migrateCmd.String("direction", "up", "direction of migration (up/down)")
	migrateForce := migrateCmd.Int("force", -1, "force schema version after a failed migration")

	consumeOnly := false
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			migrateCmd.Parse(os.Args[2:])
			runMigrations(*migrateDirection, *migrateForce)
			return
		case "worker":
			consumeOnly = true
		case "serve":
		default:
			bootLog := logger.New()
			bootLog.Fatal().Str("command", os.Args[1]).Msg("Unknown command. Use 'serve', 'worker' or 'migrate'")
		}
	}

	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.NewWithConfig(cfg.Logging.Level, cfg.Logging.Pretty, cfg.Logging.NoColor)

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}

	log.Info().Msg("Database connection established")

	application, err := app.New(cfg, log, db, consumeOnly)
	if err != nil {
		db.Close()
		log.Fatal().Err(err).Msg("Failed to create application")
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	if err := application.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start evaluation pipeline")
	}

	if !consumeOnly {
		go func() {
			if err := application.Run(); err != nil {
				log.Error().Err(err).Msg("HTTP server failed")
				stop()
			}
		}()
	}

	log.Info().Bool("worker_only", consumeOnly).Msg("Evaluation service started")

	<-ctx.Done()
	shutdown(log, application, cfg.Server.ShutdownTimeout)
}

func shutdown(log zerolog.Logger, application *app.App, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := application.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown gracefully")
	}

	log.Info().Msg("Evaluation service stopped")
}

func runMigrations(direction string, force int) {
	log := logger.New()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	migrator, err := database.NewMigrator(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create migrator")
	}

	if force >= 0 {
		if err := migrator.Force(force); err != nil {
			log.Fatal().Err(err).Msg("Failed to force migration version")
		}
		log.Info().Int("version", force).Msg("Migration version forced")
		return
	}

	switch direction {
	case "up":
		if err := migrator.Up(); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
		log.Info().Msg("Migrations applied successfully")
	case "down":
		if err := migrator.Down(); err != nil {
			log.Fatal().Err(err).Msg("Failed to rollback migrations")
		}
		log.Info().Msg("Migrations rolled back successfully")
	default:
		log.Fatal().Msg("Invalid migration direction. Use 'up' or 'down'")
	}
}
