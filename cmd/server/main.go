package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dukapos/internal/config"
	"dukapos/internal/infra"
	"dukapos/internal/repository"
	"dukapos/internal/router"
	"dukapos/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Structured logger — dev: pretty, prod: JSON
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Infrastructure shared by the HTTP layer and the background goroutines.
	mpesa := infra.NewMpesaClient(cfg)
	gatewayCB := infra.NewCircuitBreaker(infra.DefaultCBConfig())
	mailer := infra.NewMailer(cfg)
	dispatcher := worker.NewDispatcher(rdb)

	// Worker pool for async jobs (receipt emails, low-stock alerts). Wired
	// here at the composition root so workers see full infrastructure.
	worker.StartWorkerPool(ctx, rdb, worker.Workers{
		Receipt: worker.NewReceiptWorker(mailer),
		Alert:   worker.NewAlertWorker(mailer, cfg.AlertEmail),
	}, cfg.WorkerPoolSize)

	r, posSvc := router.New(router.Deps{
		Config:     cfg,
		DB:         db,
		RDB:        rdb,
		Mpesa:      mpesa,
		GatewayCB:  gatewayCB,
		Dispatcher: dispatcher,
	})

	// Sweeps payment attempts whose webhook never arrived.
	worker.StartPaymentReconciler(ctx, worker.ReconcilerConfig{
		PaymentRepo:     repository.NewPaymentRepository(db),
		Mpesa:           mpesa,
		CB:              gatewayCB,
		Settler:         posSvc,
		PendingDeadline: time.Duration(cfg.PaymentPendingDeadlineSecs) * time.Second,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("DukaPOS backend listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
