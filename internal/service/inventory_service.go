package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dukapos/internal/dto"
	"dukapos/internal/model"
	"dukapos/internal/repository"
	"dukapos/internal/worker"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrHQNotFound is surfaced as a 404 by the handler.
var ErrHQNotFound = errors.New("HQ branch not found")

// ErrBranchNotFound is surfaced as a 404 by the handler.
var ErrBranchNotFound = errors.New("branch not found")

type InventoryService interface {
	ListInventory(ctx context.Context, filter dto.InventoryFilter) ([]dto.InventoryRow, error)
	ListLowStock(ctx context.Context) ([]dto.LowStockRow, error)
	ListBranches(ctx context.Context) ([]dto.BranchResponse, error)
	ListProducts(ctx context.Context) ([]dto.ProductResponse, error)
	ListRestockLogs(ctx context.Context, limit int) ([]dto.RestockLogRow, error)
	Restock(ctx context.Context, performedBy uuid.UUID, req dto.RestockRequest) (*dto.RestockResponse, error)
	RestockHQ(ctx context.Context, performedBy uuid.UUID, req dto.HqRestockRequest) (*dto.HqRestockResponse, error)
}

type inventoryService struct {
	invRepo     repository.InventoryRepository
	branchRepo  repository.BranchRepository
	productRepo repository.ProductRepository
	restockRepo repository.RestockRepository
	dispatcher  worker.JobDispatcher
}

func NewInventoryService(
	invRepo repository.InventoryRepository,
	branchRepo repository.BranchRepository,
	productRepo repository.ProductRepository,
	restockRepo repository.RestockRepository,
	dispatcher worker.JobDispatcher,
) InventoryService {
	return &inventoryService{
		invRepo:     invRepo,
		branchRepo:  branchRepo,
		productRepo: productRepo,
		restockRepo: restockRepo,
		dispatcher:  dispatcher,
	}
}

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

// ── Restock (HQ → branch) ─────────────────────────────────────────────────────
// Contract:
//  1. Resolve target branch and HQ; reject unknown branches with 404.
//  2. Resolve product names up front (error messages name the product).
//  3. ONE transaction: for each line, lock the HQ row FOR UPDATE, re-check
//     sufficiency, guarded-decrement HQ, upsert-increment the target, then
//     write the RestockLog with its items.
//  4. Any insufficient line aborts the whole transfer — no partial writes.
//
// The FOR UPDATE lock closes the check-then-act race: two concurrent restocks
// of the same HQ product serialise on the row, so the second sees the first
// one's decrement and fails cleanly when stock has run out.

func (s *inventoryService) Restock(ctx context.Context, performedBy uuid.UUID, req dto.RestockRequest) (*dto.RestockResponse, error) {
	targetID, err := uuid.Parse(req.BranchID)
	if err != nil {
		return nil, fmt.Errorf("invalid branch_id: %w", err)
	}

	target, err := s.branchRepo.FindByID(ctx, targetID)
	if err != nil {
		return nil, ErrBranchNotFound
	}
	hq, err := s.branchRepo.FindHQ(ctx)
	if err != nil {
		return nil, ErrHQNotFound
	}
	if target.ID == hq.ID {
		return nil, errors.New("cannot restock HQ from itself — use the supplier restock endpoint")
	}

	type resolvedLine struct {
		productID uuid.UUID
		name      string
		quantity  int
	}
	resolved := make([]resolvedLine, 0, len(req.Products))
	for _, line := range req.Products {
		if line.Quantity <= 0 {
			return nil, errors.New("quantity must be greater than zero for every product")
		}
		pid, err := uuid.Parse(line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("invalid product_id: %w", err)
		}
		p, err := s.productRepo.FindByID(ctx, pid)
		if err != nil {
			return nil, fmt.Errorf("product %s not found", line.ProductID)
		}
		resolved = append(resolved, resolvedLine{productID: pid, name: p.Name, quantity: line.Quantity})
	}

	type lowAfter struct {
		product   string
		remaining int
		threshold int
	}
	var restockLog model.RestockLog
	hqLowAfter := make([]lowAfter, 0)

	txErr := runTx(ctx, s.invRepo.DB(), func(tx *gorm.DB) error {
		for _, line := range resolved {
			hqInv, err := s.invRepo.FindForUpdateTx(tx, hq.ID, line.productID)
			if err != nil {
				return fmt.Errorf("insufficient stock in HQ for %s", line.name)
			}
			if hqInv.Quantity < line.quantity {
				return fmt.Errorf("insufficient stock in HQ for %s (available: %d, requested: %d)",
					line.name, hqInv.Quantity, line.quantity)
			}

			if err := s.invRepo.DecrementTx(tx, hq.ID, line.productID, line.quantity); err != nil {
				if errors.Is(err, repository.ErrInsufficientStock) {
					return fmt.Errorf("insufficient stock in HQ for %s", line.name)
				}
				return err
			}
			if err := s.invRepo.UpsertIncrementTx(tx, target.ID, line.productID, line.quantity); err != nil {
				return err
			}

			if after := hqInv.Quantity - line.quantity; after < hqInv.LowStockThreshold {
				hqLowAfter = append(hqLowAfter, lowAfter{
					product: line.name, remaining: after, threshold: hqInv.LowStockThreshold,
				})
			}
		}

		restockLog = model.RestockLog{
			FromBranchID:  hq.ID,
			ToBranchID:    target.ID,
			PerformedByID: performedBy,
			Notes:         req.Notes,
		}
		for _, line := range resolved {
			restockLog.Items = append(restockLog.Items, model.RestockItem{
				ProductID: line.productID,
				Quantity:  line.quantity,
			})
		}
		return s.restockRepo.CreateLogTx(tx, &restockLog)
	})
	if txErr != nil {
		return nil, txErr
	}

	// Post-commit, best-effort: alert on HQ rows the transfer pushed below
	// their threshold.
	if s.dispatcher != nil {
		for _, low := range hqLowAfter {
			_ = s.dispatcher.EnqueueLowStockAlert(ctx, worker.LowStockAlertPayload{
				Branch:       hq.Name,
				Product:      low.product,
				CurrentStock: low.remaining,
				Threshold:    low.threshold,
			})
		}
	}

	items := make([]dto.RestockItemResponse, 0, len(resolved))
	for _, line := range resolved {
		items = append(items, dto.RestockItemResponse{Product: line.name, Quantity: line.quantity})
	}
	return &dto.RestockResponse{
		Message:     "Restock completed successfully",
		LogID:       restockLog.ID.String(),
		FromBranch:  hq.Name,
		ToBranch:    target.Name,
		Items:       items,
		PerformedAt: restockLog.CreatedAt.Format(time.RFC3339),
	}, nil
}

// ── RestockHQ (supplier → HQ) ─────────────────────────────────────────────────
// Pure inbound: no source-side deduction, so no sufficiency check. Upsert
// semantics create the HQ row on a product's first delivery.

func (s *inventoryService) RestockHQ(ctx context.Context, performedBy uuid.UUID, req dto.HqRestockRequest) (*dto.HqRestockResponse, error) {
	hq, err := s.branchRepo.FindHQ(ctx)
	if err != nil {
		return nil, ErrHQNotFound
	}

	type resolvedLine struct {
		productID uuid.UUID
		name      string
		line      dto.HqRestockLine
	}
	resolved := make([]resolvedLine, 0, len(req.Products))
	for _, line := range req.Products {
		if line.Quantity <= 0 {
			return nil, errors.New("quantity must be greater than zero for every product")
		}
		pid, err := uuid.Parse(line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("invalid product_id: %w", err)
		}
		p, err := s.productRepo.FindByID(ctx, pid)
		if err != nil {
			return nil, fmt.Errorf("product %s not found", line.ProductID)
		}
		resolved = append(resolved, resolvedLine{productID: pid, name: p.Name, line: line})
	}

	var hqLog model.HqRestockLog
	txErr := runTx(ctx, s.invRepo.DB(), func(tx *gorm.DB) error {
		for _, r := range resolved {
			if err := s.invRepo.UpsertIncrementTx(tx, hq.ID, r.productID, r.line.Quantity); err != nil {
				return err
			}
		}

		hqLog = model.HqRestockLog{
			HqBranchID:    hq.ID,
			PerformedByID: performedBy,
			SupplierName:  req.SupplierName,
			ReferenceNo:   req.ReferenceNo,
			Notes:         req.Notes,
		}
		for _, r := range resolved {
			hqLog.Items = append(hqLog.Items, model.HqRestockItem{
				ProductID: r.productID,
				Quantity:  r.line.Quantity,
				UnitCost:  r.line.UnitCost,
			})
		}
		return s.restockRepo.CreateHqLogTx(tx, &hqLog)
	})
	if txErr != nil {
		return nil, txErr
	}

	items := make([]dto.RestockItemResponse, 0, len(resolved))
	for _, r := range resolved {
		items = append(items, dto.RestockItemResponse{Product: r.name, Quantity: r.line.Quantity})
	}
	return &dto.HqRestockResponse{
		Message:     "HQ restocked successfully",
		LogID:       hqLog.ID.String(),
		Branch:      hq.Name,
		Items:       items,
		PerformedAt: hqLog.CreatedAt.Format(time.RFC3339),
	}, nil
}

// ── Read side ─────────────────────────────────────────────────────────────────

func (s *inventoryService) ListInventory(ctx context.Context, filter dto.InventoryFilter) ([]dto.InventoryRow, error) {
	rows, err := s.invRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]dto.InventoryRow, 0, len(rows))
	for _, inv := range rows {
		row := dto.InventoryRow{
			ID:                inv.ID.String(),
			Quantity:          inv.Quantity,
			LowStockThreshold: inv.LowStockThreshold,
			IsLowStock:        inv.IsLowStock(),
		}
		if inv.Branch != nil {
			row.Branch = inv.Branch.Name
			row.IsHQ = inv.Branch.IsHQ
		}
		if inv.Product != nil {
			row.Product = inv.Product.Name
			row.Price = inv.Product.Price
		}
		if inv.LastRestocked != nil {
			ts := inv.LastRestocked.Format(time.RFC3339)
			row.LastRestocked = &ts
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *inventoryService) ListLowStock(ctx context.Context) ([]dto.LowStockRow, error) {
	rows, err := s.invRepo.ListLowStock(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.LowStockRow, 0, len(rows))
	for _, inv := range rows {
		row := dto.LowStockRow{
			CurrentStock: inv.Quantity,
			Threshold:    inv.LowStockThreshold,
			Deficit:      inv.LowStockThreshold - inv.Quantity,
		}
		if inv.Branch != nil {
			row.Branch = inv.Branch.Name
		}
		if inv.Product != nil {
			row.Product = inv.Product.Name
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *inventoryService) ListBranches(ctx context.Context) ([]dto.BranchResponse, error) {
	branches, err := s.branchRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.BranchResponse, 0, len(branches))
	for _, b := range branches {
		out = append(out, dto.BranchResponse{
			ID: b.ID.String(), Name: b.Name, Location: b.Location, IsHQ: b.IsHQ,
		})
	}
	return out, nil
}

func (s *inventoryService) ListProducts(ctx context.Context) ([]dto.ProductResponse, error) {
	products, err := s.productRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ProductResponse, 0, len(products))
	for _, p := range products {
		out = append(out, dto.ProductResponse{
			ID: p.ID.String(), Name: p.Name, Price: p.Price, Description: p.Description,
		})
	}
	return out, nil
}

func (s *inventoryService) ListRestockLogs(ctx context.Context, limit int) ([]dto.RestockLogRow, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	logs, err := s.restockRepo.ListLogs(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]dto.RestockLogRow, 0, len(logs))
	for _, l := range logs {
		row := dto.RestockLogRow{
			ID:          l.ID.String(),
			Notes:       l.Notes,
			PerformedAt: l.CreatedAt.Format(time.RFC3339),
		}
		if l.FromBranch != nil {
			row.FromBranch = l.FromBranch.Name
		}
		if l.ToBranch != nil {
			row.ToBranch = l.ToBranch.Name
		}
		for _, item := range l.Items {
			name := ""
			if item.Product != nil {
				name = item.Product.Name
			}
			row.Items = append(row.Items, dto.RestockItemResponse{Product: name, Quantity: item.Quantity})
		}
		out = append(out, row)
	}
	return out, nil
}
