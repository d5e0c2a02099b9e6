// FolioSync aggregates portfolios from multiple brokers into one
// consolidated view. It syncs each configured broker connection on a
// schedule, caches the last-known-good portfolio per connection and serves
// the consolidated result over HTTP.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/foliolabs/foliosync/internal/brokers"
	"github.com/foliolabs/foliosync/internal/config"
	"github.com/foliolabs/foliosync/internal/database"
	"github.com/foliolabs/foliosync/internal/domain"
	"github.com/foliolabs/foliosync/internal/events"
	"github.com/foliolabs/foliosync/internal/orchestrator"
	"github.com/foliolabs/foliosync/internal/registry"
	"github.com/foliolabs/foliosync/internal/reliability"
	"github.com/foliolabs/foliosync/internal/scheduler"
	"github.com/foliolabs/foliosync/internal/server"
	"github.com/foliolabs/foliosync/internal/storage"
	"github.com/foliolabs/foliosync/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger is not configured yet, write directly and bail.
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Int("port", cfg.Port).
		Str("data_dir", cfg.DataDir).
		Str("sync_schedule", cfg.SyncSchedule).
		Msg("Starting FolioSync")

	db, err := database.New(filepath.Join(cfg.DataDir, "store.db"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate store database")
	}

	store := storage.New(db.Conn())

	deps := brokers.Deps{
		Store:               store,
		TradernetServiceURL: cfg.TradernetServiceURL,
		Log:                 log,
	}

	// Every enumerated broker type must have a constructor and a capability
	// entry before we accept connections against them.
	if err := brokers.VerifyFactory(deps); err != nil {
		log.Fatal().Err(err).Msg("Broker factory verification failed")
	}

	eventManager := events.NewManager(log)

	reg := registry.New(store, deps, eventManager, log)
	reg.InitializeAdapters()

	if cfg.TradernetAPIKey != "" && cfg.TradernetAPISecret != "" {
		reg.ConnectAPIConnections(domain.BrokerTradernet, domain.Credentials{
			APIKey:    cfg.TradernetAPIKey,
			APISecret: cfg.TradernetAPISecret,
		})
	}

	orch := orchestrator.New(reg, eventManager, cfg.SyncDeadline, log)

	snapshotPath := filepath.Join(cfg.DataDir, "portfolio_cache.msgpack")
	if err := orch.RestoreCache(snapshotPath); err != nil {
		log.Warn().Err(err).Msg("Failed to restore portfolio cache snapshot")
	}

	sched := scheduler.New(log)

	syncJob := scheduler.NewSyncJob(orch, snapshotPath, log)
	if err := sched.AddJob(cfg.SyncSchedule, syncJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register sync job")
	}

	if cfg.Backup.Enabled {
		backupService, err := reliability.NewBackupService(
			context.Background(),
			reliability.BackupConfig{
				Endpoint:  cfg.Backup.Endpoint,
				Bucket:    cfg.Backup.Bucket,
				AccessKey: cfg.Backup.AccessKey,
				SecretKey: cfg.Backup.SecretKey,
			},
			db.Path(),
			cfg.DataDir,
			eventManager,
			log,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create backup service")
		}
		backupJob := scheduler.NewBackupJob(backupService, log)
		if err := sched.AddJob(cfg.Backup.Schedule, backupJob); err != nil {
			log.Fatal().Err(err).Msg("Failed to register backup job")
		}
	} else {
		log.Info().Msg("Backups disabled, no object storage configured")
	}

	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Port:         cfg.Port,
		Log:          log,
		Registry:     reg,
		Orchestrator: orch,
		Events:       eventManager,
		DevMode:      cfg.DevMode,
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	if err := orch.PersistCache(snapshotPath); err != nil {
		log.Warn().Err(err).Msg("Failed to persist portfolio cache snapshot")
	}

	log.Info().Msg("Shutdown complete")
}
