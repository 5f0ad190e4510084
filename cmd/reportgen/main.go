package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/smookymolina/formulario-doxx/internal/config"
	"github.com/smookymolina/formulario-doxx/internal/logging"
	"github.com/smookymolina/formulario-doxx/internal/report"
	spg "github.com/smookymolina/formulario-doxx/internal/storage/postgres"
)

// reportgen materializes the read-side JSON artifacts under DATA_DIR and
// exits. Run it from cron or after a batch of submissions.
func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.Init("info", "console")
		boot.Fatal().Err(err).Msg("config")
	}
	log := logging.Init(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := spg.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	mig := filepath.Join(cfg.MigrationsDir, "0001_init.sql")
	if err := db.RunMigration(ctx, mig); err != nil {
		log.Fatal().Err(err).Str("path", mig).Msg("migration")
	}

	gen := report.NewGenerator(spg.NewStore(db), cfg.DataDir, cfg.PageSize, cfg.IOTimeout, log)
	if err := gen.Run(ctx); err != nil {
		log.Error().Err(err).Msg("generation failed")
		os.Exit(1)
	}
	log.Info().Str("dir", cfg.DataDir).Msg("artifacts written")
}
