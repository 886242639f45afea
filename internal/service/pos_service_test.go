package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"dukapos/internal/config"
	"dukapos/internal/dto"
	"dukapos/internal/infra"
	"dukapos/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type posFixture struct {
	svc      POSService
	branches *stubBranchRepo
	products *stubProductRepo
	inv      *stubInventoryRepo
	sales    *stubSaleRepo
	payments *stubPaymentRepo
	pdfDir   string
}

func newPOSFixture(t *testing.T) *posFixture {
	t.Helper()
	return newPOSFixtureWithDispatcher(t, nil)
}

func newPOSFixtureWithDispatcher(t *testing.T, dispatcher *stubDispatcher) *posFixture {
	t.Helper()
	f := &posFixture{
		branches: newStubBranchRepo(),
		products: newStubProductRepo(),
		inv:      newStubInventoryRepo(),
		sales:    newStubSaleRepo(),
		payments: newStubPaymentRepo(),
		pdfDir:   t.TempDir(),
	}
	mpesa := infra.NewMpesaClient(&config.Config{MpesaEnvironment: "mock"})
	cb := infra.NewCircuitBreaker(infra.DefaultCBConfig())
	if dispatcher == nil {
		f.svc = NewPOSService(f.branches, f.products, f.inv, f.sales, f.payments, mpesa, cb, nil, f.pdfDir)
	} else {
		f.svc = NewPOSService(f.branches, f.products, f.inv, f.sales, f.payments, mpesa, cb, dispatcher, f.pdfDir)
	}
	return f
}

func successCallback(checkoutID, receipt string, amount int) []byte {
	return []byte(fmt.Sprintf(`{
		"Body": {"stkCallback": {
			"MerchantRequestID": "merchant_1",
			"CheckoutRequestID": %q,
			"ResultCode": 0,
			"ResultDesc": "The service request is processed successfully.",
			"CallbackMetadata": {"Item": [
				{"Name": "Amount", "Value": %d},
				{"Name": "MpesaReceiptNumber", "Value": %q},
				{"Name": "PhoneNumber", "Value": 254712345678}
			]}
		}}
	}`, checkoutID, amount, receipt))
}

func failureCallback(checkoutID string) []byte {
	return []byte(fmt.Sprintf(`{
		"Body": {"stkCallback": {
			"MerchantRequestID": "merchant_1",
			"CheckoutRequestID": %q,
			"ResultCode": 1032,
			"ResultDesc": "Request cancelled by user"
		}}
	}`, checkoutID))
}

func TestPreviewPricesCart(t *testing.T) {
	f := newPOSFixture(t)
	branch := f.branches.add("Westlands", "Waiyaki Way", false)
	soap := f.products.add("Bar Soap 800g", 50)
	milk := f.products.add("Milk 500ml", 60)
	f.inv.set(branch.ID, soap.ID, 20, 10)
	f.inv.set(branch.ID, milk.ID, 20, 10)

	resp, err := f.svc.Preview(context.Background(), dto.PreviewRequest{
		BranchID: branch.ID.String(),
		Items: []dto.CartLine{
			{ProductID: soap.ID.String(), Quantity: 2},
			{ProductID: milk.ID.String(), Quantity: 1},
		},
	})
	require.NoError(t, err)
	assert.True(t, resp.Total.Equal(decimalFromInt(160)), "2x50 + 1x60 = 160, got %s", resp.Total)
	require.Len(t, resp.Items, 2)
	assert.True(t, resp.Items[0].Subtotal.Equal(decimalFromInt(100)))
}

func TestPreviewFailsFastOnInsufficientStock(t *testing.T) {
	f := newPOSFixture(t)
	branch := f.branches.add("Westlands", "Waiyaki Way", false)
	soap := f.products.add("Bar Soap 800g", 50)
	f.inv.set(branch.ID, soap.ID, 1, 10)

	_, err := f.svc.Preview(context.Background(), dto.PreviewRequest{
		BranchID: branch.ID.String(),
		Items:    []dto.CartLine{{ProductID: soap.ID.String(), Quantity: 2}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Bar Soap 800g")
	assert.Contains(t, err.Error(), "available: 1")
}

func TestInitiateFreezesCartIntoAttempt(t *testing.T) {
	f := newPOSFixture(t)
	branch := f.branches.add("Westlands", "Waiyaki Way", false)
	soap := f.products.add("Bar Soap 800g", 50)
	f.inv.set(branch.ID, soap.ID, 20, 10)

	resp, err := f.svc.Initiate(context.Background(), dto.InitiatePaymentRequest{
		BranchID:    branch.ID.String(),
		PhoneNumber: "0712345678",
		Items:       []dto.CartLine{{ProductID: soap.ID.String(), Quantity: 3}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.CheckoutRequestID)
	assert.True(t, resp.Amount.Equal(decimalFromInt(150)))

	attempt, err := f.payments.FindByCheckoutID(context.Background(), resp.CheckoutRequestID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, attempt.Status)
	assert.Equal(t, "254712345678", attempt.PhoneNumber)
	require.Len(t, attempt.Items, 1, "cart must be frozen on the attempt")
	assert.Equal(t, 3, attempt.Items[0].Quantity)

	// Stock is only verified at this point, never decremented.
	assert.Equal(t, 20, f.inv.quantity(branch.ID, soap.ID))
}

func TestCallbackSettlesSaleAndDecrementsStock(t *testing.T) {
	f := newPOSFixture(t)
	branch := f.branches.add("Westlands", "Waiyaki Way", false)
	soap := f.products.add("Bar Soap 800g", 50)
	milk := f.products.add("Milk 500ml", 60)
	f.inv.set(branch.ID, soap.ID, 20, 5)
	f.inv.set(branch.ID, milk.ID, 20, 5)

	resp, err := f.svc.Initiate(context.Background(), dto.InitiatePaymentRequest{
		BranchID:    branch.ID.String(),
		PhoneNumber: "0712345678",
		Items: []dto.CartLine{
			{ProductID: soap.ID.String(), Quantity: 2},
			{ProductID: milk.ID.String(), Quantity: 1},
		},
	})
	require.NoError(t, err)

	err = f.svc.HandleCallback(context.Background(),
		successCallback(resp.CheckoutRequestID, "SBK12XYZ99", 160))
	require.NoError(t, err)

	require.Len(t, f.sales.sales, 1, "settlement creates exactly one sale")
	sale := f.sales.sales[0]
	assert.Equal(t, "SBK12XYZ99", sale.MpesaReference)
	assert.True(t, sale.TotalAmount.Equal(decimalFromInt(160)))

	sum := decimalFromInt(0)
	for _, item := range sale.Items {
		sum = sum.Add(item.Subtotal)
	}
	assert.True(t, sum.Equal(sale.TotalAmount), "item subtotals must sum to the sale total")

	assert.Equal(t, 18, f.inv.quantity(branch.ID, soap.ID))
	assert.Equal(t, 19, f.inv.quantity(branch.ID, milk.ID))

	status, err := f.svc.Status(context.Background(), resp.CheckoutRequestID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentConfirmed, status.Status)
	require.NotNil(t, status.MpesaReference)
	assert.Equal(t, "SBK12XYZ99", *status.MpesaReference)
	assert.NotNil(t, status.SaleID)
}

func TestReplayedCallbackSettlesOnlyOnce(t *testing.T) {
	f := newPOSFixture(t)
	branch := f.branches.add("Westlands", "Waiyaki Way", false)
	soap := f.products.add("Bar Soap 800g", 50)
	f.inv.set(branch.ID, soap.ID, 20, 5)

	resp, err := f.svc.Initiate(context.Background(), dto.InitiatePaymentRequest{
		BranchID:    branch.ID.String(),
		PhoneNumber: "0712345678",
		Items:       []dto.CartLine{{ProductID: soap.ID.String(), Quantity: 2}},
	})
	require.NoError(t, err)

	payload := successCallback(resp.CheckoutRequestID, "SBK12XYZ99", 100)
	require.NoError(t, f.svc.HandleCallback(context.Background(), payload))
	require.NoError(t, f.svc.HandleCallback(context.Background(), payload))
	require.NoError(t, f.svc.HandleCallback(context.Background(), payload))

	assert.Len(t, f.sales.sales, 1, "replays must not create more sales")
	assert.Equal(t, 18, f.inv.quantity(branch.ID, soap.ID), "replays must not decrement twice")
}

func TestReplayedCallbackDoesNotRepeatSideEffects(t *testing.T) {
	dispatcher := newStubDispatcher()
	f := newPOSFixtureWithDispatcher(t, dispatcher)
	branch := f.branches.add("Westlands", "Waiyaki Way", false)
	soap := f.products.add("Bar Soap 800g", 50)
	f.inv.set(branch.ID, soap.ID, 20, 5)

	email := "jane@duka.co.ke"
	resp, err := f.svc.Initiate(context.Background(), dto.InitiatePaymentRequest{
		BranchID:      branch.ID.String(),
		PhoneNumber:   "0712345678",
		CustomerEmail: &email,
		Items:         []dto.CartLine{{ProductID: soap.ID.String(), Quantity: 2}},
	})
	require.NoError(t, err)

	payload := successCallback(resp.CheckoutRequestID, "SBKSIDE01", 100)
	require.NoError(t, f.svc.HandleCallback(context.Background(), payload))
	require.Equal(t, 1, dispatcher.receiptCount())

	pdfPath := filepath.Join(f.pdfDir, "receipt_SBKSIDE01.pdf")
	_, err = os.Stat(pdfPath)
	require.NoError(t, err, "first settlement renders the receipt PDF")
	require.NoError(t, os.Remove(pdfPath))

	// A replayed webhook finds the attempt already terminal: no second email
	// job, no re-rendered PDF.
	require.NoError(t, f.svc.HandleCallback(context.Background(), payload))
	assert.Equal(t, 1, dispatcher.receiptCount(), "replay must not enqueue the receipt email again")
	_, err = os.Stat(pdfPath)
	assert.True(t, os.IsNotExist(err), "replay must not re-render the receipt PDF")
	assert.Len(t, f.sales.sales, 1)
}

func TestFailedCallbackLeavesStockUntouched(t *testing.T) {
	f := newPOSFixture(t)
	branch := f.branches.add("Westlands", "Waiyaki Way", false)
	soap := f.products.add("Bar Soap 800g", 50)
	f.inv.set(branch.ID, soap.ID, 20, 5)

	resp, err := f.svc.Initiate(context.Background(), dto.InitiatePaymentRequest{
		BranchID:    branch.ID.String(),
		PhoneNumber: "0712345678",
		Items:       []dto.CartLine{{ProductID: soap.ID.String(), Quantity: 2}},
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.HandleCallback(context.Background(), failureCallback(resp.CheckoutRequestID)))

	assert.Empty(t, f.sales.sales)
	assert.Equal(t, 20, f.inv.quantity(branch.ID, soap.ID))

	status, err := f.svc.Status(context.Background(), resp.CheckoutRequestID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentFailed, status.Status)
	require.NotNil(t, status.ResultDesc)
	assert.Equal(t, "Request cancelled by user", *status.ResultDesc)
}

func TestTimeoutIsDistinctFromFailure(t *testing.T) {
	f := newPOSFixture(t)
	branch := f.branches.add("Westlands", "Waiyaki Way", false)
	soap := f.products.add("Bar Soap 800g", 50)
	f.inv.set(branch.ID, soap.ID, 20, 5)

	resp, err := f.svc.Initiate(context.Background(), dto.InitiatePaymentRequest{
		BranchID:    branch.ID.String(),
		PhoneNumber: "0712345678",
		Items:       []dto.CartLine{{ProductID: soap.ID.String(), Quantity: 1}},
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.MarkTimeout(context.Background(), resp.CheckoutRequestID, "no STK push acknowledgement before deadline"))

	status, err := f.svc.Status(context.Background(), resp.CheckoutRequestID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentTimeout, status.Status, "timeout and failed are different terminal states")
	assert.Empty(t, f.sales.sales)

	// A late success callback after timeout must be a no-op: the attempt is
	// already terminal.
	require.NoError(t, f.svc.HandleCallback(context.Background(),
		successCallback(resp.CheckoutRequestID, "SBKLATE01", 50)))
	assert.Empty(t, f.sales.sales)
	assert.Equal(t, 20, f.inv.quantity(branch.ID, soap.ID))
}

func TestCallbackForUnknownAttemptIsSwallowed(t *testing.T) {
	f := newPOSFixture(t)
	err := f.svc.HandleCallback(context.Background(), successCallback("ws_CO_unknown", "SBKX", 100))
	assert.NoError(t, err, "unknown checkout ids are logged, not erred — the gateway should not retry")
}

func TestMalformedCallbackIsRejected(t *testing.T) {
	f := newPOSFixture(t)
	err := f.svc.HandleCallback(context.Background(), []byte(`{"Body": {}}`))
	assert.ErrorIs(t, err, ErrCallbackInvalid)
}

func TestConfirmReturnsSettledStateWithoutGateway(t *testing.T) {
	f := newPOSFixture(t)
	branch := f.branches.add("Westlands", "Waiyaki Way", false)
	soap := f.products.add("Bar Soap 800g", 50)
	f.inv.set(branch.ID, soap.ID, 20, 5)

	resp, err := f.svc.Initiate(context.Background(), dto.InitiatePaymentRequest{
		BranchID:    branch.ID.String(),
		PhoneNumber: "0712345678",
		Items:       []dto.CartLine{{ProductID: soap.ID.String(), Quantity: 1}},
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.HandleCallback(context.Background(),
		successCallback(resp.CheckoutRequestID, "SBKCONF1", 50)))

	// Repeated confirms of a settled attempt return the stored verdict.
	for i := 0; i < 3; i++ {
		status, err := f.svc.Confirm(context.Background(), resp.CheckoutRequestID)
		require.NoError(t, err)
		assert.Equal(t, model.PaymentConfirmed, status.Status)
	}
	assert.Len(t, f.sales.sales, 1)
}

func TestReceiptReflectsSettledSale(t *testing.T) {
	f := newPOSFixture(t)
	branch := f.branches.add("Westlands", "Waiyaki Way", false)
	soap := f.products.add("Bar Soap 800g", 50)
	f.inv.set(branch.ID, soap.ID, 20, 5)

	resp, err := f.svc.Initiate(context.Background(), dto.InitiatePaymentRequest{
		BranchID:    branch.ID.String(),
		PhoneNumber: "0712345678",
		Items:       []dto.CartLine{{ProductID: soap.ID.String(), Quantity: 2}},
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.HandleCallback(context.Background(),
		successCallback(resp.CheckoutRequestID, "SBKRCPT1", 100)))

	receipt, err := f.svc.Receipt(context.Background(), "SBKRCPT1")
	require.NoError(t, err)
	assert.Equal(t, "SBKRCPT1", receipt.TransactionRef)
	assert.True(t, receipt.Total.Equal(decimalFromInt(100)))
	require.Len(t, receipt.Items, 1)
	assert.Equal(t, 2, receipt.Items[0].Quantity)

	_, err = f.svc.Receipt(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrSaleNotFound)

	path, err := f.svc.ReceiptPDF(context.Background(), "SBKRCPT1")
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0), "the PDF file must be written to disk")
}
