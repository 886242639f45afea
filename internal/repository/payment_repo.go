package repository

import (
	"context"
	"time"

	"dukapos/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaymentRepository is the data access contract for STK push checkout state.
type PaymentRepository interface {
	Create(ctx context.Context, attempt *model.PaymentAttempt) error
	FindByCheckoutID(ctx context.Context, checkoutRequestID string) (*model.PaymentAttempt, error)

	// FindByCheckoutIDForUpdateTx locks the attempt row for the duration of
	// the settle transaction. The lock is what makes concurrent confirmations
	// of the same checkout id serialise into exactly one settlement.
	FindByCheckoutIDForUpdateTx(tx *gorm.DB, checkoutRequestID string) (*model.PaymentAttempt, error)

	UpdateTx(tx *gorm.DB, attempt *model.PaymentAttempt) error
	ListStuckPending(ctx context.Context, olderThan time.Time, limit int) ([]model.PaymentAttempt, error)
	DB() *gorm.DB
}

type paymentRepo struct{ db *gorm.DB }

func NewPaymentRepository(db *gorm.DB) PaymentRepository { return &paymentRepo{db: db} }

func (r *paymentRepo) Create(ctx context.Context, attempt *model.PaymentAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *paymentRepo) FindByCheckoutID(ctx context.Context, checkoutRequestID string) (*model.PaymentAttempt, error) {
	var a model.PaymentAttempt
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("checkout_request_id = ?", checkoutRequestID).
		First(&a).Error
	return &a, err
}

func (r *paymentRepo) FindByCheckoutIDForUpdateTx(tx *gorm.DB, checkoutRequestID string) (*model.PaymentAttempt, error) {
	var a model.PaymentAttempt
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("checkout_request_id = ?", checkoutRequestID).
		First(&a).Error; err != nil {
		return nil, err
	}
	// Items are immutable after initiate, so loading them outside the lock
	// clause is fine.
	if err := tx.Where("attempt_id = ?", a.ID).Find(&a.Items).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *paymentRepo) UpdateTx(tx *gorm.DB, attempt *model.PaymentAttempt) error {
	return tx.Omit("Items", "Branch").Save(attempt).Error
}

func (r *paymentRepo) ListStuckPending(ctx context.Context, olderThan time.Time, limit int) ([]model.PaymentAttempt, error) {
	var attempts []model.PaymentAttempt
	err := r.db.WithContext(ctx).
		Where("status IN ? AND created_at < ?", []string{model.PaymentInitiated, model.PaymentPending}, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&attempts).Error
	return attempts, err
}

func (r *paymentRepo) DB() *gorm.DB { return r.db }
