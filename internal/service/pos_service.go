package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dukapos/internal/dto"
	"dukapos/internal/infra"
	"dukapos/internal/model"
	"dukapos/internal/repository"
	"dukapos/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	// ErrAttemptNotFound is surfaced as a 404 by the handler.
	ErrAttemptNotFound = errors.New("payment attempt not found")
	// ErrSaleNotFound is surfaced as a 404 by the handler.
	ErrSaleNotFound = errors.New("sale not found")
	// ErrCallbackInvalid marks a malformed gateway callback payload.
	ErrCallbackInvalid = errors.New("invalid callback payload")
)

type POSService interface {
	ListBranches(ctx context.Context) ([]dto.BranchResponse, error)
	BranchProducts(ctx context.Context, branchID string) (*dto.BranchProductsResponse, error)
	Preview(ctx context.Context, req dto.PreviewRequest) (*dto.PreviewResponse, error)
	Initiate(ctx context.Context, req dto.InitiatePaymentRequest) (*dto.InitiatePaymentResponse, error)
	HandleCallback(ctx context.Context, raw []byte) error
	Confirm(ctx context.Context, checkoutRequestID string) (*dto.PaymentStatusResponse, error)
	Status(ctx context.Context, checkoutRequestID string) (*dto.PaymentStatusResponse, error)
	Receipt(ctx context.Context, mpesaReference string) (*dto.ReceiptResponse, error)
	ReceiptPDF(ctx context.Context, mpesaReference string) (string, error)

	// Reconciler hooks — same settle transaction as the callback path.
	SettleFromStatus(ctx context.Context, checkoutRequestID string, status *infra.STKStatusResult) error
	MarkTimeout(ctx context.Context, checkoutRequestID, reason string) error
}

type posService struct {
	branchRepo  repository.BranchRepository
	productRepo repository.ProductRepository
	invRepo     repository.InventoryRepository
	saleRepo    repository.SaleRepository
	paymentRepo repository.PaymentRepository
	mpesa       *infra.MpesaClient
	cb          *infra.CircuitBreaker
	dispatcher  worker.JobDispatcher
	pdfPath     string
}

func NewPOSService(
	branchRepo repository.BranchRepository,
	productRepo repository.ProductRepository,
	invRepo repository.InventoryRepository,
	saleRepo repository.SaleRepository,
	paymentRepo repository.PaymentRepository,
	mpesa *infra.MpesaClient,
	cb *infra.CircuitBreaker,
	dispatcher worker.JobDispatcher,
	pdfPath string,
) POSService {
	return &posService{
		branchRepo:  branchRepo,
		productRepo: productRepo,
		invRepo:     invRepo,
		saleRepo:    saleRepo,
		paymentRepo: paymentRepo,
		mpesa:       mpesa,
		cb:          cb,
		dispatcher:  dispatcher,
		pdfPath:     pdfPath,
	}
}

// ── Catalog ───────────────────────────────────────────────────────────────────

func (s *posService) ListBranches(ctx context.Context) ([]dto.BranchResponse, error) {
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

func (s *posService) BranchProducts(ctx context.Context, branchID string) (*dto.BranchProductsResponse, error) {
	bid, err := uuid.Parse(branchID)
	if err != nil {
		return nil, fmt.Errorf("invalid branch id: %w", err)
	}
	branch, err := s.branchRepo.FindByID(ctx, bid)
	if err != nil {
		return nil, ErrBranchNotFound
	}

	rows, err := s.invRepo.ListInStockByBranch(ctx, bid)
	if err != nil {
		return nil, err
	}

	resp := &dto.BranchProductsResponse{
		Branch: dto.BranchResponse{
			ID: branch.ID.String(), Name: branch.Name, Location: branch.Location, IsHQ: branch.IsHQ,
		},
		Products: make([]dto.BranchProduct, 0, len(rows)),
	}
	for _, inv := range rows {
		if inv.Product == nil {
			continue
		}
		resp.Products = append(resp.Products, dto.BranchProduct{
			ID:             inv.Product.ID.String(),
			Name:           inv.Product.Name,
			Price:          inv.Product.Price,
			Description:    inv.Product.Description,
			AvailableStock: inv.Quantity,
		})
	}
	return resp, nil
}

// ── Checkout ──────────────────────────────────────────────────────────────────

// pricedLine is a cart line with the product and branch stock resolved.
type pricedLine struct {
	product   *model.Product
	quantity  int
	available int
	subtotal  decimal.Decimal
}

// priceCart resolves every cart line against the catalog and the branch's
// stock. Fail-fast: the first unknown product or insufficient line rejects
// the whole cart with an error naming the product.
func (s *posService) priceCart(ctx context.Context, branchID uuid.UUID, items []dto.CartLine) ([]pricedLine, decimal.Decimal, error) {
	lines := make([]pricedLine, 0, len(items))
	total := decimal.Zero

	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, decimal.Zero, errors.New("quantity must be greater than zero for every item")
		}
		pid, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("invalid product_id: %w", err)
		}
		product, err := s.productRepo.FindByID(ctx, pid)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("product %s not found", item.ProductID)
		}

		inv, err := s.invRepo.Find(ctx, branchID, pid)
		available := 0
		if err == nil {
			available = inv.Quantity
		}
		if available < item.Quantity {
			return nil, decimal.Zero, fmt.Errorf("insufficient stock for %s (available: %d, requested: %d)",
				product.Name, available, item.Quantity)
		}

		subtotal := product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		lines = append(lines, pricedLine{
			product:   product,
			quantity:  item.Quantity,
			available: available,
			subtotal:  subtotal,
		})
		total = total.Add(subtotal)
	}
	return lines, total, nil
}

func (s *posService) Preview(ctx context.Context, req dto.PreviewRequest) (*dto.PreviewResponse, error) {
	bid, err := uuid.Parse(req.BranchID)
	if err != nil {
		return nil, fmt.Errorf("invalid branch id: %w", err)
	}
	branch, err := s.branchRepo.FindByID(ctx, bid)
	if err != nil {
		return nil, ErrBranchNotFound
	}

	lines, total, err := s.priceCart(ctx, bid, req.Items)
	if err != nil {
		return nil, err
	}

	resp := &dto.PreviewResponse{
		Branch: dto.BranchResponse{
			ID: branch.ID.String(), Name: branch.Name, Location: branch.Location, IsHQ: branch.IsHQ,
		},
		Items: make([]dto.PreviewLine, 0, len(lines)),
		Total: total,
	}
	for _, l := range lines {
		resp.Items = append(resp.Items, dto.PreviewLine{
			ProductID: l.product.ID.String(),
			Name:      l.product.Name,
			Quantity:  l.quantity,
			Price:     l.product.Price,
			Subtotal:  l.subtotal,
		})
	}
	return resp, nil
}

// Initiate prices the cart, pushes the STK prompt to the customer's phone and
// persists the attempt with a frozen copy of the cart. Stock is verified here
// but only decremented at settlement — the customer may still cancel.
func (s *posService) Initiate(ctx context.Context, req dto.InitiatePaymentRequest) (*dto.InitiatePaymentResponse, error) {
	bid, err := uuid.Parse(req.BranchID)
	if err != nil {
		return nil, fmt.Errorf("invalid branch id: %w", err)
	}
	branch, err := s.branchRepo.FindByID(ctx, bid)
	if err != nil {
		return nil, ErrBranchNotFound
	}

	lines, total, err := s.priceCart(ctx, bid, req.Items)
	if err != nil {
		return nil, err
	}

	txRef := infra.NewTransactionRef()

	var push *infra.STKPushResult
	cbErr := s.cb.Execute(func() error {
		result, err := s.mpesa.InitiateSTKPush(ctx, req.PhoneNumber, total, txRef,
			fmt.Sprintf("Payment at %s", branch.Name))
		if err != nil {
			return err
		}
		push = result
		return nil
	})
	if cbErr != nil {
		if errors.Is(cbErr, infra.ErrCircuitOpen) {
			return nil, errors.New("payment gateway temporarily unavailable, try again shortly")
		}
		return nil, cbErr
	}

	attempt := &model.PaymentAttempt{
		BranchID:          bid,
		TransactionRef:    txRef,
		CheckoutRequestID: push.CheckoutRequestID,
		MerchantRequestID: push.MerchantRequestID,
		PhoneNumber:       infra.FormatPhoneNumber(req.PhoneNumber),
		CustomerEmail:     req.CustomerEmail,
		Amount:            total,
		Status:            model.PaymentPending,
	}
	for _, l := range lines {
		attempt.Items = append(attempt.Items, model.PaymentAttemptItem{
			ProductID:   l.product.ID,
			Quantity:    l.quantity,
			PriceAtSale: l.product.Price,
			Subtotal:    l.subtotal,
		})
	}
	if err := s.paymentRepo.Create(ctx, attempt); err != nil {
		return nil, fmt.Errorf("persist payment attempt: %w", err)
	}

	log.Info().
		Str("transaction_ref", txRef).
		Str("checkout_request_id", push.CheckoutRequestID).
		Str("amount", total.StringFixed(2)).
		Msg("stk push initiated")

	return &dto.InitiatePaymentResponse{
		TransactionRef:    txRef,
		CheckoutRequestID: push.CheckoutRequestID,
		MerchantRequestID: push.MerchantRequestID,
		Amount:            total,
		Message:           push.CustomerMessage,
	}, nil
}

// ── Settlement ────────────────────────────────────────────────────────────────

// settleOutcome is the gateway verdict being applied to an attempt.
type settleOutcome struct {
	status       string // confirmed | failed | timeout
	resultDesc   string
	mpesaReceipt string
}

// settle applies a gateway verdict to an attempt in one transaction:
// lock the attempt row, no-op if already terminal, then either record the
// failure or create the Sale with its items and decrement branch stock.
// Every path that learns the payment outcome — webhook, confirm poll,
// reconciler — funnels through here, so replays and races collapse into a
// single settlement.
func (s *posService) settle(ctx context.Context, checkoutRequestID string, outcome settleOutcome) (*model.PaymentAttempt, error) {
	var settled *model.PaymentAttempt
	var newlySettled bool
	var lowStock []worker.LowStockAlertPayload
	var branchName string

	txErr := runTx(ctx, s.paymentRepo.DB(), func(tx *gorm.DB) error {
		attempt, err := s.paymentRepo.FindByCheckoutIDForUpdateTx(tx, checkoutRequestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAttemptNotFound
			}
			return err
		}
		if attempt.Settled() {
			// Already terminal — replayed webhook or concurrent confirm.
			settled = attempt
			return nil
		}

		now := time.Now()
		attempt.SettledAt = &now
		if outcome.resultDesc != "" {
			desc := outcome.resultDesc
			attempt.ResultDesc = &desc
		}

		if outcome.status != model.PaymentConfirmed {
			attempt.Status = outcome.status
			if err := s.paymentRepo.UpdateTx(tx, attempt); err != nil {
				return err
			}
			settled = attempt
			newlySettled = true
			return nil
		}

		// Success path: build the Sale from the frozen cart.
		reference := outcome.mpesaReceipt
		if reference == "" {
			// Sandbox status queries carry no receipt number.
			reference = attempt.TransactionRef
		}
		sale := &model.Sale{
			BranchID:        attempt.BranchID,
			CustomerEmail:   attempt.CustomerEmail,
			TotalAmount:     attempt.Amount,
			PaymentMethod:   "MPESA",
			MpesaReference:  reference,
			TransactionDate: now,
		}
		for _, item := range attempt.Items {
			sale.Items = append(sale.Items, model.SaleItem{
				ProductID:   item.ProductID,
				Quantity:    item.Quantity,
				PriceAtSale: item.PriceAtSale,
				Subtotal:    item.Subtotal,
			})
		}
		if err := s.saleRepo.CreateTx(tx, sale); err != nil {
			return err
		}

		for _, item := range attempt.Items {
			inv, err := s.invRepo.FindForUpdateTx(tx, attempt.BranchID, item.ProductID)
			if err != nil {
				log.Warn().
					Str("product_id", item.ProductID.String()).
					Msg("settle: no inventory row for sold product")
				continue
			}
			// Stock was verified at initiate, but it may have been sold
			// through since. The money is already taken, so the sale stands;
			// the decrement floors at zero and the oversell is logged.
			qty := item.Quantity
			if inv.Quantity < qty {
				log.Warn().
					Str("product_id", item.ProductID.String()).
					Int("available", inv.Quantity).
					Int("sold", qty).
					Msg("settle: stock oversold between initiate and settlement")
				qty = inv.Quantity
			}
			if qty > 0 {
				if err := s.invRepo.DecrementTx(tx, attempt.BranchID, item.ProductID, qty); err != nil {
					return err
				}
			}
			if after := inv.Quantity - qty; after < inv.LowStockThreshold {
				name := item.ProductID.String()
				if p, err := s.productRepo.FindByID(ctx, item.ProductID); err == nil {
					name = p.Name
				}
				lowStock = append(lowStock, worker.LowStockAlertPayload{
					Product:      name,
					CurrentStock: after,
					Threshold:    inv.LowStockThreshold,
				})
			}
		}

		attempt.Status = model.PaymentConfirmed
		if outcome.mpesaReceipt != "" {
			receipt := outcome.mpesaReceipt
			attempt.MpesaReceipt = &receipt
		}
		attempt.SaleID = &sale.ID
		if err := s.paymentRepo.UpdateTx(tx, attempt); err != nil {
			return err
		}
		settled = attempt
		newlySettled = true
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	// Side effects fire only when this call transitioned the attempt — a
	// replayed webhook that found it already terminal must not re-send the
	// receipt or the alerts.
	if newlySettled && settled.Status == model.PaymentConfirmed && settled.SaleID != nil {
		if b, err := s.branchRepo.FindByID(ctx, settled.BranchID); err == nil {
			branchName = b.Name
		}
		s.afterConfirm(ctx, settled, branchName, lowStock)
	}
	return settled, nil
}

// afterConfirm runs post-commit side effects: PDF receipt, email job, low
// stock alerts. All best-effort — the sale is already durable.
func (s *posService) afterConfirm(ctx context.Context, attempt *model.PaymentAttempt, branchName string, lowStock []worker.LowStockAlertPayload) {
	if s.dispatcher == nil {
		return
	}

	for i := range lowStock {
		lowStock[i].Branch = branchName
		_ = s.dispatcher.EnqueueLowStockAlert(ctx, lowStock[i])
	}

	if attempt.CustomerEmail == nil || *attempt.CustomerEmail == "" {
		return
	}
	reference := attempt.TransactionRef
	if attempt.MpesaReceipt != nil {
		reference = *attempt.MpesaReceipt
	}

	pdfPath := ""
	if sale, err := s.saleRepo.FindByMpesaReference(ctx, reference); err == nil {
		if path, err := infra.GenerateReceiptPDF(sale, s.pdfPath); err == nil {
			pdfPath = path
		} else {
			log.Error().Err(err).Str("reference", reference).Msg("receipt PDF generation failed")
		}
	}

	if err := s.dispatcher.EnqueueReceipt(ctx, worker.ReceiptJobPayload{
		ToEmail:        *attempt.CustomerEmail,
		Branch:         branchName,
		MpesaReference: reference,
		Total:          attempt.Amount.StringFixed(2),
		PDFPath:        pdfPath,
	}); err != nil {
		log.Error().Err(err).Str("reference", reference).Msg("failed to enqueue receipt email")
	}
}

// HandleCallback processes the asynchronous stkCallback webhook. The gateway
// verdict it carries is the source of truth for the payment outcome.
func (s *posService) HandleCallback(ctx context.Context, raw []byte) error {
	result := infra.ValidateCallback(raw)
	if !result.Valid {
		return ErrCallbackInvalid
	}

	outcome := settleOutcome{
		status:       model.PaymentFailed,
		resultDesc:   result.ResultDesc,
		mpesaReceipt: result.MpesaReceipt,
	}
	if result.Success {
		outcome.status = model.PaymentConfirmed
	}

	_, err := s.settle(ctx, result.CheckoutRequestID, outcome)
	if errors.Is(err, ErrAttemptNotFound) {
		// Unknown checkout id: log and swallow — Daraja retries on non-200
		// and a replay will never match an attempt we did not create.
		log.Warn().
			Str("checkout_request_id", result.CheckoutRequestID).
			Msg("callback for unknown payment attempt")
		return nil
	}
	return err
}

// Confirm resolves an attempt's outcome on customer request. A still-pending
// attempt triggers a status query so the customer is not left waiting on a
// webhook that may be delayed.
func (s *posService) Confirm(ctx context.Context, checkoutRequestID string) (*dto.PaymentStatusResponse, error) {
	attempt, err := s.paymentRepo.FindByCheckoutID(ctx, checkoutRequestID)
	if err != nil {
		return nil, ErrAttemptNotFound
	}
	if attempt.Settled() {
		return statusResponse(attempt), nil
	}

	var status *infra.STKStatusResult
	cbErr := s.cb.Execute(func() error {
		result, err := s.mpesa.QuerySTKStatus(ctx, checkoutRequestID)
		if err != nil {
			return err
		}
		status = result
		return nil
	})
	if cbErr != nil {
		// Gateway unreachable or prompt still open — report pending, the
		// webhook or the reconciler will finish the job.
		return statusResponse(attempt), nil
	}

	outcome := settleOutcome{status: model.PaymentFailed, resultDesc: status.ResultDesc}
	if status.Success {
		outcome.status = model.PaymentConfirmed
	}
	settled, err := s.settle(ctx, checkoutRequestID, outcome)
	if err != nil {
		return nil, err
	}
	return statusResponse(settled), nil
}

func (s *posService) Status(ctx context.Context, checkoutRequestID string) (*dto.PaymentStatusResponse, error) {
	attempt, err := s.paymentRepo.FindByCheckoutID(ctx, checkoutRequestID)
	if err != nil {
		return nil, ErrAttemptNotFound
	}
	return statusResponse(attempt), nil
}

func statusResponse(attempt *model.PaymentAttempt) *dto.PaymentStatusResponse {
	resp := &dto.PaymentStatusResponse{
		Status:         attempt.Status,
		TransactionRef: attempt.TransactionRef,
		MpesaReference: attempt.MpesaReceipt,
		ResultDesc:     attempt.ResultDesc,
	}
	if attempt.Status == model.PaymentInitiated {
		resp.Status = model.PaymentPending
	}
	if attempt.SaleID != nil {
		id := attempt.SaleID.String()
		resp.SaleID = &id
	}
	return resp
}

// SettleFromStatus lets the reconciler apply a gateway status query verdict.
func (s *posService) SettleFromStatus(ctx context.Context, checkoutRequestID string, status *infra.STKStatusResult) error {
	outcome := settleOutcome{status: model.PaymentFailed, resultDesc: status.ResultDesc}
	if status.Success {
		outcome.status = model.PaymentConfirmed
	}
	_, err := s.settle(ctx, checkoutRequestID, outcome)
	return err
}

// MarkTimeout closes an attempt the gateway never resolved.
func (s *posService) MarkTimeout(ctx context.Context, checkoutRequestID, reason string) error {
	_, err := s.settle(ctx, checkoutRequestID, settleOutcome{
		status:     model.PaymentTimeout,
		resultDesc: reason,
	})
	return err
}

// ── Receipt ───────────────────────────────────────────────────────────────────

func (s *posService) Receipt(ctx context.Context, mpesaReference string) (*dto.ReceiptResponse, error) {
	sale, err := s.saleRepo.FindByMpesaReference(ctx, mpesaReference)
	if err != nil {
		return nil, ErrSaleNotFound
	}

	resp := &dto.ReceiptResponse{
		TransactionRef: sale.MpesaReference,
		Date:           sale.TransactionDate.Format(time.RFC3339),
		Total:          sale.TotalAmount,
		PaymentMethod:  sale.PaymentMethod,
		Items:          make([]dto.ReceiptLine, 0, len(sale.Items)),
	}
	if sale.Branch != nil {
		resp.Branch = sale.Branch.Name
		resp.Location = sale.Branch.Location
	}
	for _, item := range sale.Items {
		name := ""
		if item.Product != nil {
			name = item.Product.Name
		}
		resp.Items = append(resp.Items, dto.ReceiptLine{
			Name:     name,
			Quantity: item.Quantity,
			Price:    item.PriceAtSale,
			Subtotal: item.Subtotal,
		})
	}
	return resp, nil
}

// ReceiptPDF renders the PDF receipt for a settled sale and returns its path
// on disk. Re-rendering an already generated receipt just overwrites the file.
func (s *posService) ReceiptPDF(ctx context.Context, mpesaReference string) (string, error) {
	sale, err := s.saleRepo.FindByMpesaReference(ctx, mpesaReference)
	if err != nil {
		return "", ErrSaleNotFound
	}
	return infra.GenerateReceiptPDF(sale, s.pdfPath)
}
