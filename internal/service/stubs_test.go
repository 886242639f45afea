package service

// Shared in-memory repository stubs for service unit tests. The *Tx methods
// accept a nil transaction handle — runTx short-circuits when DB() is nil, so
// services exercise their full transactional flow against plain maps.

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dukapos/internal/dto"
	"dukapos/internal/model"
	"dukapos/internal/repository"
	"dukapos/internal/worker"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var errInsufficientStub = repository.ErrInsufficientStock

func decimalFromInt(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// ── Branch repository stub ────────────────────────────────────────────────────

type stubBranchRepo struct {
	branches map[uuid.UUID]*model.Branch
}

func newStubBranchRepo() *stubBranchRepo {
	return &stubBranchRepo{branches: make(map[uuid.UUID]*model.Branch)}
}

func (r *stubBranchRepo) add(name, location string, isHQ bool) *model.Branch {
	b := &model.Branch{ID: uuid.New(), Name: name, Location: location, IsHQ: isHQ}
	r.branches[b.ID] = b
	return b
}

func (r *stubBranchRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Branch, error) {
	b, ok := r.branches[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return b, nil
}

func (r *stubBranchRepo) FindHQ(_ context.Context) (*model.Branch, error) {
	for _, b := range r.branches {
		if b.IsHQ {
			return b, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubBranchRepo) List(_ context.Context) ([]model.Branch, error) {
	out := make([]model.Branch, 0, len(r.branches))
	for _, b := range r.branches {
		out = append(out, *b)
	}
	return out, nil
}

// ── Product repository stub ───────────────────────────────────────────────────

type stubProductRepo struct {
	products map[uuid.UUID]*model.Product
}

func newStubProductRepo() *stubProductRepo {
	return &stubProductRepo{products: make(map[uuid.UUID]*model.Product)}
}

func (r *stubProductRepo) add(name string, price int64) *model.Product {
	p := &model.Product{ID: uuid.New(), Name: name, Price: decimalFromInt(price)}
	r.products[p.ID] = p
	return p
}

func (r *stubProductRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (r *stubProductRepo) List(_ context.Context) ([]model.Product, error) {
	out := make([]model.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, *p)
	}
	return out, nil
}

// ── Inventory repository stub ─────────────────────────────────────────────────

type stubInventoryRepo struct {
	mu   sync.Mutex
	rows map[string]*model.Inventory
}

func newStubInventoryRepo() *stubInventoryRepo {
	return &stubInventoryRepo{rows: make(map[string]*model.Inventory)}
}

func invKey(branchID, productID uuid.UUID) string {
	return fmt.Sprintf("%s|%s", branchID, productID)
}

func (r *stubInventoryRepo) set(branchID, productID uuid.UUID, qty, threshold int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[invKey(branchID, productID)] = &model.Inventory{
		ID: uuid.New(), BranchID: branchID, ProductID: productID,
		Quantity: qty, LowStockThreshold: threshold,
	}
}

func (r *stubInventoryRepo) quantity(branchID, productID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[invKey(branchID, productID)]
	if !ok {
		return 0
	}
	return row.Quantity
}

func (r *stubInventoryRepo) Find(_ context.Context, branchID, productID uuid.UUID) (*model.Inventory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[invKey(branchID, productID)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *row
	return &copied, nil
}

func (r *stubInventoryRepo) List(_ context.Context, filter dto.InventoryFilter) ([]model.Inventory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Inventory
	for _, row := range r.rows {
		if filter.BranchID != "" && row.BranchID.String() != filter.BranchID {
			continue
		}
		if filter.LowStock && row.Quantity >= row.LowStockThreshold {
			continue
		}
		out = append(out, *row)
	}
	return out, nil
}

func (r *stubInventoryRepo) ListLowStock(_ context.Context) ([]model.Inventory, error) {
	return r.List(context.Background(), dto.InventoryFilter{LowStock: true})
}

func (r *stubInventoryRepo) ListInStockByBranch(_ context.Context, branchID uuid.UUID) ([]model.Inventory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Inventory
	for _, row := range r.rows {
		if row.BranchID == branchID && row.Quantity > 0 {
			out = append(out, *row)
		}
	}
	return out, nil
}

// FindForUpdateTx returns a snapshot, matching GORM's behavior of loading a
// fresh copy rather than a live row.
func (r *stubInventoryRepo) FindForUpdateTx(_ *gorm.DB, branchID, productID uuid.UUID) (*model.Inventory, error) {
	return r.Find(context.Background(), branchID, productID)
}

func (r *stubInventoryRepo) DecrementTx(_ *gorm.DB, branchID, productID uuid.UUID, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[invKey(branchID, productID)]
	if !ok || row.Quantity < qty {
		return errInsufficientStub
	}
	row.Quantity -= qty
	return nil
}

func (r *stubInventoryRepo) UpsertIncrementTx(_ *gorm.DB, branchID, productID uuid.UUID, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := invKey(branchID, productID)
	now := time.Now()
	if row, ok := r.rows[key]; ok {
		row.Quantity += qty
		row.LastRestocked = &now
		return nil
	}
	r.rows[key] = &model.Inventory{
		ID: uuid.New(), BranchID: branchID, ProductID: productID,
		Quantity: qty, LowStockThreshold: 10, LastRestocked: &now,
	}
	return nil
}

func (r *stubInventoryRepo) DB() *gorm.DB { return nil }

// ── Restock repository stub ───────────────────────────────────────────────────

type stubRestockRepo struct {
	logs   []*model.RestockLog
	hqLogs []*model.HqRestockLog
}

func newStubRestockRepo() *stubRestockRepo { return &stubRestockRepo{} }

func (r *stubRestockRepo) CreateLogTx(_ *gorm.DB, log *model.RestockLog) error {
	log.ID = uuid.New()
	log.CreatedAt = time.Now()
	r.logs = append(r.logs, log)
	return nil
}

func (r *stubRestockRepo) CreateHqLogTx(_ *gorm.DB, log *model.HqRestockLog) error {
	log.ID = uuid.New()
	log.CreatedAt = time.Now()
	r.hqLogs = append(r.hqLogs, log)
	return nil
}

func (r *stubRestockRepo) ListLogs(_ context.Context, limit int) ([]model.RestockLog, error) {
	out := make([]model.RestockLog, 0, len(r.logs))
	for _, l := range r.logs {
		out = append(out, *l)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// ── Sale repository stub ──────────────────────────────────────────────────────

type stubSaleRepo struct {
	sales []*model.Sale
}

func newStubSaleRepo() *stubSaleRepo { return &stubSaleRepo{} }

func (r *stubSaleRepo) CreateTx(_ *gorm.DB, sale *model.Sale) error {
	sale.ID = uuid.New()
	for i := range sale.Items {
		sale.Items[i].ID = uuid.New()
		sale.Items[i].SaleID = sale.ID
	}
	r.sales = append(r.sales, sale)
	return nil
}

func (r *stubSaleRepo) FindByMpesaReference(_ context.Context, ref string) (*model.Sale, error) {
	for _, s := range r.sales {
		if s.MpesaReference == ref {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubSaleRepo) ListRecent(_ context.Context, limit int) ([]model.Sale, error) {
	out := make([]model.Sale, 0, len(r.sales))
	for i := len(r.sales) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *r.sales[i])
	}
	return out, nil
}

func (r *stubSaleRepo) DB() *gorm.DB { return nil }

// ── Payment repository stub ───────────────────────────────────────────────────

type stubPaymentRepo struct {
	mu       sync.Mutex
	attempts map[string]*model.PaymentAttempt
}

func newStubPaymentRepo() *stubPaymentRepo {
	return &stubPaymentRepo{attempts: make(map[string]*model.PaymentAttempt)}
}

func (r *stubPaymentRepo) Create(_ context.Context, a *model.PaymentAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	for i := range a.Items {
		a.Items[i].ID = uuid.New()
		a.Items[i].AttemptID = a.ID
	}
	copied := *a
	r.attempts[a.CheckoutRequestID] = &copied
	return nil
}

func (r *stubPaymentRepo) FindByCheckoutID(_ context.Context, id string) (*model.PaymentAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *a
	return &copied, nil
}

func (r *stubPaymentRepo) FindByCheckoutIDForUpdateTx(_ *gorm.DB, id string) (*model.PaymentAttempt, error) {
	return r.FindByCheckoutID(context.Background(), id)
}

func (r *stubPaymentRepo) UpdateTx(_ *gorm.DB, a *model.PaymentAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *a
	r.attempts[a.CheckoutRequestID] = &copied
	return nil
}

func (r *stubPaymentRepo) ListStuckPending(_ context.Context, olderThan time.Time, limit int) ([]model.PaymentAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.PaymentAttempt
	for _, a := range r.attempts {
		if !a.Settled() && a.CreatedAt.Before(olderThan) {
			out = append(out, *a)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *stubPaymentRepo) DB() *gorm.DB { return nil }

// ── User repository stub ──────────────────────────────────────────────────────

type stubUserRepo struct {
	users map[uuid.UUID]*model.User
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[uuid.UUID]*model.User)}
}

func (r *stubUserRepo) add(email, role string) *model.User {
	u := &model.User{ID: uuid.New(), Email: email, Role: role, CreatedAt: time.Now()}
	r.users[u.ID] = u
	return u
}

func (r *stubUserRepo) Create(_ context.Context, u *model.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt = time.Now()
	r.users[u.ID] = u
	return nil
}

func (r *stubUserRepo) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubUserRepo) List(_ context.Context, filter dto.UserFilter) ([]model.User, error) {
	var out []model.User
	for _, u := range r.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		out = append(out, *u)
	}
	return out, nil
}

func (r *stubUserRepo) Update(_ context.Context, u *model.User) error {
	r.users[u.ID] = u
	return nil
}

func (r *stubUserRepo) CountByRole(_ context.Context, role string) (int64, error) {
	var n int64
	for _, u := range r.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (r *stubUserRepo) Count(_ context.Context) (int64, error) {
	return int64(len(r.users)), nil
}

func (r *stubUserRepo) CountCreatedSince(_ context.Context, since time.Time) (int64, error) {
	var n int64
	for _, u := range r.users {
		if u.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (r *stubUserRepo) TouchLastLogin(_ context.Context, id uuid.UUID) error {
	if u, ok := r.users[id]; ok {
		now := time.Now()
		u.LastLoginAt = &now
	}
	return nil
}

// ── Job dispatcher stub ───────────────────────────────────────────────────────

type stubDispatcher struct {
	mu       sync.Mutex
	receipts []worker.ReceiptJobPayload
	alerts   []worker.LowStockAlertPayload
}

func newStubDispatcher() *stubDispatcher { return &stubDispatcher{} }

func (d *stubDispatcher) EnqueueReceipt(_ context.Context, payload worker.ReceiptJobPayload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.receipts = append(d.receipts, payload)
	return nil
}

func (d *stubDispatcher) EnqueueLowStockAlert(_ context.Context, payload worker.LowStockAlertPayload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alerts = append(d.alerts, payload)
	return nil
}

func (d *stubDispatcher) receiptCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.receipts)
}
