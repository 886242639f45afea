package worker

// email_worker.go
// Processes receipt emails from QueueReceipts and low-stock alerts from
// QueueAlerts. Both go out over SMTP; receipts carry the PDF as attachment.

import (
	"context"
	"encoding/json"
	"fmt"

	"dukapos/internal/infra"

	"github.com/rs/zerolog/log"
)

// ReceiptJobPayload is the job envelope sent to QueueReceipts.
type ReceiptJobPayload struct {
	ToEmail        string `json:"to_email"`
	Branch         string `json:"branch"`
	MpesaReference string `json:"mpesa_reference"`
	Total          string `json:"total"`
	PDFPath        string `json:"pdf_path"`
}

// LowStockAlertPayload is the job envelope sent to QueueAlerts.
type LowStockAlertPayload struct {
	Branch       string `json:"branch"`
	Product      string `json:"product"`
	CurrentStock int    `json:"current_stock"`
	Threshold    int    `json:"threshold"`
}

// ReceiptWorker emails PDF receipts to customers after a confirmed sale.
type ReceiptWorker struct {
	mailer *infra.Mailer
}

func NewReceiptWorker(mailer *infra.Mailer) *ReceiptWorker {
	return &ReceiptWorker{mailer: mailer}
}

func (w *ReceiptWorker) Process(_ context.Context, raw json.RawMessage) error {
	var payload ReceiptJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("receipt_worker: invalid payload")
		return nil // malformed jobs are unrecoverable, don't DLQ-loop them
	}
	if payload.ToEmail == "" {
		log.Warn().Msg("receipt_worker: empty to_email — skipping")
		return nil
	}

	subject := fmt.Sprintf("Your receipt — %s", payload.MpesaReference)
	body := fmt.Sprintf(
		"Thank you for shopping at %s.\n\nM-Pesa reference: %s\nTotal: KES %s\n\nYour receipt is attached.",
		payload.Branch, payload.MpesaReference, payload.Total,
	)

	if err := w.mailer.Send(payload.ToEmail, subject, body, payload.PDFPath); err != nil {
		log.Error().Err(err).Str("to", payload.ToEmail).Msg("receipt_worker: failed to send email")
		return err
	}
	log.Info().Str("to", payload.ToEmail).Str("reference", payload.MpesaReference).
		Msg("receipt_worker: receipt sent")
	return nil
}

// AlertWorker emails low-stock alerts to the configured operations address.
type AlertWorker struct {
	mailer  *infra.Mailer
	alertTo string
}

func NewAlertWorker(mailer *infra.Mailer, alertTo string) *AlertWorker {
	return &AlertWorker{mailer: mailer, alertTo: alertTo}
}

func (w *AlertWorker) Process(_ context.Context, raw json.RawMessage) error {
	var payload LowStockAlertPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("alert_worker: invalid payload")
		return nil
	}
	if w.alertTo == "" {
		log.Warn().Msg("alert_worker: no alert email configured — skipping")
		return nil
	}

	subject := fmt.Sprintf("Low stock: %s at %s", payload.Product, payload.Branch)
	body := fmt.Sprintf(
		"%s at %s is below its reorder threshold.\n\nCurrent stock: %d\nThreshold: %d\n\nConsider restocking soon.",
		payload.Product, payload.Branch, payload.CurrentStock, payload.Threshold,
	)

	if err := w.mailer.Send(w.alertTo, subject, body, ""); err != nil {
		log.Error().Err(err).Str("product", payload.Product).Msg("alert_worker: failed to send alert")
		return err
	}
	log.Info().Str("product", payload.Product).Str("branch", payload.Branch).
		Msg("alert_worker: low-stock alert sent")
	return nil
}
