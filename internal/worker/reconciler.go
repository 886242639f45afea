package worker

// reconciler.go
// Background goroutine that sweeps payment attempts stuck in
// initiated/pending past the deadline. For each one it asks the gateway for
// the final verdict through the Circuit Breaker and hands the result to the
// settler; attempts the gateway cannot account for are timed out. The STK
// callback may never arrive (customer ignored the prompt, Safaricom dropped
// the webhook), so this sweep is what guarantees every attempt reaches a
// terminal state.

import (
	"context"
	"time"

	"dukapos/internal/infra"
	"dukapos/internal/model"
	"dukapos/internal/repository"

	"github.com/rs/zerolog/log"
)

const (
	reconcileTickInterval = 30 * time.Second
	reconcileBatchSize    = 20
)

// PaymentSettler is the slice of the POS service the reconciler drives.
type PaymentSettler interface {
	SettleFromStatus(ctx context.Context, checkoutRequestID string, status *infra.STKStatusResult) error
	MarkTimeout(ctx context.Context, checkoutRequestID string, reason string) error
}

// ReconcilerConfig holds all dependencies for the reconcile goroutine.
type ReconcilerConfig struct {
	PaymentRepo     repository.PaymentRepository
	Mpesa           *infra.MpesaClient
	CB              *infra.CircuitBreaker
	Settler         PaymentSettler
	PendingDeadline time.Duration
}

// StartPaymentReconciler launches a background goroutine that ticks every 30s
// and resolves stale attempts. It respects the context for graceful shutdown.
func StartPaymentReconciler(ctx context.Context, cfg ReconcilerConfig) {
	go func() {
		ticker := time.NewTicker(reconcileTickInterval)
		defer ticker.Stop()

		log.Info().Msg("payment_reconciler: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("payment_reconciler: shutting down")
				return
			case <-ticker.C:
				reconcileStale(ctx, cfg)
			}
		}
	}()
}

func reconcileStale(ctx context.Context, cfg ReconcilerConfig) {
	// If CB is open, skip entirely — don't hammer a downed gateway
	if cfg.CB.State() == infra.CBOpen {
		log.Debug().Msg("payment_reconciler: circuit breaker is open, skipping tick")
		return
	}

	cutoff := time.Now().Add(-cfg.PendingDeadline)
	attempts, err := cfg.PaymentRepo.ListStuckPending(ctx, cutoff, reconcileBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("payment_reconciler: failed to query stale attempts")
		return
	}
	if len(attempts) == 0 {
		return
	}

	log.Info().Int("count", len(attempts)).Msg("payment_reconciler: resolving stale attempts")

	for i := range attempts {
		attempt := &attempts[i]

		// Check CB state before each call — it may have tripped mid-batch
		if cfg.CB.State() == infra.CBOpen {
			log.Debug().Msg("payment_reconciler: circuit breaker opened mid-batch, stopping")
			return
		}

		// Attempts that never left "initiated" have no gateway-side record to
		// query; past the deadline they can only be timed out.
		if attempt.Status == model.PaymentInitiated {
			timeoutAttempt(ctx, cfg, attempt, "no STK push acknowledgement before deadline")
			continue
		}

		var status *infra.STKStatusResult
		cbErr := cfg.CB.Execute(func() error {
			s, err := cfg.Mpesa.QuerySTKStatus(ctx, attempt.CheckoutRequestID)
			if err != nil {
				return err
			}
			status = s
			return nil
		})
		if cbErr != nil {
			log.Warn().Err(cbErr).
				Str("checkout_request_id", attempt.CheckoutRequestID).
				Msg("payment_reconciler: status query failed, will retry next tick")
			continue
		}

		if err := cfg.Settler.SettleFromStatus(ctx, attempt.CheckoutRequestID, status); err != nil {
			log.Error().Err(err).
				Str("checkout_request_id", attempt.CheckoutRequestID).
				Msg("payment_reconciler: settlement failed")
		}
	}
}

func timeoutAttempt(ctx context.Context, cfg ReconcilerConfig, attempt *model.PaymentAttempt, reason string) {
	if err := cfg.Settler.MarkTimeout(ctx, attempt.CheckoutRequestID, reason); err != nil {
		log.Error().Err(err).
			Str("checkout_request_id", attempt.CheckoutRequestID).
			Msg("payment_reconciler: timeout mark failed")
		return
	}
	log.Info().
		Str("checkout_request_id", attempt.CheckoutRequestID).
		Str("transaction_ref", attempt.TransactionRef).
		Msg("payment_reconciler: attempt timed out")
}
