package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/smookymolina/formulario-doxx/internal/config"
	"github.com/smookymolina/formulario-doxx/internal/ingest"
	"github.com/smookymolina/formulario-doxx/internal/logging"
	"github.com/smookymolina/formulario-doxx/internal/media"
	spg "github.com/smookymolina/formulario-doxx/internal/storage/postgres"
	transport "github.com/smookymolina/formulario-doxx/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.Init("info", "console")
		boot.Fatal().Err(err).Msg("config")
	}
	log := logging.Init(cfg.LogLevel, cfg.LogFormat)
	log.Info().Str("port", cfg.Port).Str("videos_dir", cfg.VideosDir).Msg("starting")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := spg.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()
	log.Info().Msg("db connected")

	mig := filepath.Join(cfg.MigrationsDir, "0001_init.sql")
	if err := db.RunMigration(ctx, mig); err != nil {
		log.Fatal().Err(err).Str("path", mig).Msg("migration")
	}
	log.Info().Msg("migration applied")

	blobs, err := media.NewStore(cfg.VideosDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.VideosDir).Msg("videos dir")
	}

	store := spg.NewStore(db)
	pipeline := ingest.NewPipeline(blobs, store)

	deps := &transport.ServerDeps{
		Cfg:       cfg,
		Reader:    store,
		Submitter: pipeline,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           deps.Router(log),
		ReadHeaderTimeout: 5 * time.Second,
		// Uploads run to 50MB, so the body timeouts stay generous.
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server")
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	_ = srv.Shutdown(shutdownCtx)
}
