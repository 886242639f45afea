package service

import (
	"context"
	"sync"
	"testing"

	"dukapos/internal/dto"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inventoryFixture struct {
	svc InventoryService
}

func newInventoryFixture(t *testing.T) (inventoryFixture, *stubBranchRepo, *stubProductRepo, *stubInventoryRepo, *stubRestockRepo) {
	t.Helper()
	branches := newStubBranchRepo()
	products := newStubProductRepo()
	inv := newStubInventoryRepo()
	restocks := newStubRestockRepo()
	svc := NewInventoryService(inv, branches, products, restocks, nil)
	return inventoryFixture{svc: svc}, branches, products, inv, restocks
}

func TestRestockMovesStockFromHQToBranch(t *testing.T) {
	f, branches, products, inv, restocks := newInventoryFixture(t)
	hq := branches.add("Nairobi CBD", "Moi Avenue", true)
	west := branches.add("Westlands", "Waiyaki Way", false)
	flour := products.add("Maize Flour 2kg", 180)
	admin := newStubUserRepo().add("admin@dukapos.co.ke", "ADMIN")

	inv.set(hq.ID, flour.ID, 500, 10)

	resp, err := f.svc.Restock(context.Background(), admin.ID, dto.RestockRequest{
		BranchID: west.ID.String(),
		Products: []dto.RestockLine{{ProductID: flour.ID.String(), Quantity: 50}},
	})
	require.NoError(t, err)

	assert.Equal(t, 450, inv.quantity(hq.ID, flour.ID), "HQ should lose exactly the transferred units")
	assert.Equal(t, 50, inv.quantity(west.ID, flour.ID), "branch should gain exactly the transferred units")
	assert.Equal(t, "Nairobi CBD", resp.FromBranch)
	assert.Equal(t, "Westlands", resp.ToBranch)
	require.Len(t, restocks.logs, 1, "transfer must leave an audit row")
	assert.Len(t, restocks.logs[0].Items, 1)
}

func TestRestockMultiProductIsAtomic(t *testing.T) {
	f, branches, products, inv, restocks := newInventoryFixture(t)
	hq := branches.add("Nairobi CBD", "Moi Avenue", true)
	west := branches.add("Westlands", "Waiyaki Way", false)
	flour := products.add("Maize Flour 2kg", 180)
	rice := products.add("Rice 1kg", 160)

	inv.set(hq.ID, flour.ID, 100, 10)
	inv.set(hq.ID, rice.ID, 5, 10) // not enough for the second line

	_, err := f.svc.Restock(context.Background(), newStubUserRepo().add("a@x.co", "ADMIN").ID, dto.RestockRequest{
		BranchID: west.ID.String(),
		Products: []dto.RestockLine{
			{ProductID: flour.ID.String(), Quantity: 50},
			{ProductID: rice.ID.String(), Quantity: 20},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Rice 1kg", "error must name the offending product")

	// First line must not have been applied: whole transfer aborts together.
	assert.Equal(t, 100, inv.quantity(hq.ID, flour.ID))
	assert.Equal(t, 5, inv.quantity(hq.ID, rice.ID))
	assert.Equal(t, 0, inv.quantity(west.ID, flour.ID))
	assert.Empty(t, restocks.logs, "aborted transfer must not leave an audit row")
}

func TestRestockRejectsNonPositiveQuantity(t *testing.T) {
	f, branches, products, inv, _ := newInventoryFixture(t)
	hq := branches.add("Nairobi CBD", "Moi Avenue", true)
	west := branches.add("Westlands", "Waiyaki Way", false)
	flour := products.add("Maize Flour 2kg", 180)
	inv.set(hq.ID, flour.ID, 100, 10)

	for _, qty := range []int{0, -5} {
		_, err := f.svc.Restock(context.Background(), newStubUserRepo().add("a@x.co", "ADMIN").ID, dto.RestockRequest{
			BranchID: west.ID.String(),
			Products: []dto.RestockLine{{ProductID: flour.ID.String(), Quantity: qty}},
		})
		require.Error(t, err, "quantity %d must be rejected", qty)
	}
	assert.Equal(t, 100, inv.quantity(hq.ID, flour.ID))
}

func TestRestockRejectsUnknownBranchAndProduct(t *testing.T) {
	f, branches, products, inv, _ := newInventoryFixture(t)
	hq := branches.add("Nairobi CBD", "Moi Avenue", true)
	west := branches.add("Westlands", "Waiyaki Way", false)
	flour := products.add("Maize Flour 2kg", 180)
	inv.set(hq.ID, flour.ID, 100, 10)
	actor := newStubUserRepo().add("a@x.co", "ADMIN").ID

	_, err := f.svc.Restock(context.Background(), actor, dto.RestockRequest{
		BranchID: "4c9a4b2e-0000-0000-0000-000000000000",
		Products: []dto.RestockLine{{ProductID: flour.ID.String(), Quantity: 10}},
	})
	assert.ErrorIs(t, err, ErrBranchNotFound)

	_, err = f.svc.Restock(context.Background(), actor, dto.RestockRequest{
		BranchID: west.ID.String(),
		Products: []dto.RestockLine{{ProductID: "4c9a4b2e-0000-0000-0000-000000000001", Quantity: 10}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRestockRejectsHQAsTarget(t *testing.T) {
	f, branches, products, inv, _ := newInventoryFixture(t)
	hq := branches.add("Nairobi CBD", "Moi Avenue", true)
	flour := products.add("Maize Flour 2kg", 180)
	inv.set(hq.ID, flour.ID, 100, 10)

	_, err := f.svc.Restock(context.Background(), newStubUserRepo().add("a@x.co", "ADMIN").ID, dto.RestockRequest{
		BranchID: hq.ID.String(),
		Products: []dto.RestockLine{{ProductID: flour.ID.String(), Quantity: 10}},
	})
	require.Error(t, err)
	assert.Equal(t, 100, inv.quantity(hq.ID, flour.ID))
}

func TestSequentialRestocksDrainHQExactlyOnce(t *testing.T) {
	f, branches, products, inv, restocks := newInventoryFixture(t)
	hq := branches.add("Nairobi CBD", "Moi Avenue", true)
	west := branches.add("Westlands", "Waiyaki Way", false)
	flour := products.add("Maize Flour 2kg", 180)
	actor := newStubUserRepo().add("a@x.co", "ADMIN").ID

	inv.set(hq.ID, flour.ID, 60, 10)

	req := dto.RestockRequest{
		BranchID: west.ID.String(),
		Products: []dto.RestockLine{{ProductID: flour.ID.String(), Quantity: 50}},
	}

	_, err1 := f.svc.Restock(context.Background(), actor, req)
	_, err2 := f.svc.Restock(context.Background(), actor, req)

	require.NoError(t, err1)
	require.Error(t, err2, "second transfer must fail — HQ only had stock for one")

	assert.Equal(t, 10, inv.quantity(hq.ID, flour.ID))
	assert.Equal(t, 50, inv.quantity(west.ID, flour.ID))
	assert.Len(t, restocks.logs, 1)
}

func TestRestockHQUpsertsInventory(t *testing.T) {
	f, branches, products, inv, restocks := newInventoryFixture(t)
	hq := branches.add("Nairobi CBD", "Moi Avenue", true)
	flour := products.add("Maize Flour 2kg", 180)
	oil := products.add("Cooking Oil 1L", 320)
	inv.set(hq.ID, flour.ID, 500, 10)
	// oil has no HQ row yet — first delivery must create it

	supplier := "Unga Holdings"
	resp, err := f.svc.RestockHQ(context.Background(), newStubUserRepo().add("a@x.co", "ADMIN").ID, dto.HqRestockRequest{
		Products: []dto.HqRestockLine{
			{ProductID: flour.ID.String(), Quantity: 200},
			{ProductID: oil.ID.String(), Quantity: 80},
		},
		SupplierName: &supplier,
	})
	require.NoError(t, err)

	assert.Equal(t, 700, inv.quantity(hq.ID, flour.ID))
	assert.Equal(t, 80, inv.quantity(hq.ID, oil.ID), "first delivery creates the row")
	assert.Equal(t, "Nairobi CBD", resp.Branch)
	require.Len(t, restocks.hqLogs, 1)
	assert.Equal(t, &supplier, restocks.hqLogs[0].SupplierName)
}

func TestListLowStockReportsDeficit(t *testing.T) {
	f, branches, products, inv, _ := newInventoryFixture(t)
	hq := branches.add("Nairobi CBD", "Moi Avenue", true)
	flour := products.add("Maize Flour 2kg", 180)
	inv.set(hq.ID, flour.ID, 3, 10)

	rows, err := f.svc.ListLowStock(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 3, rows[0].CurrentStock)
	assert.Equal(t, 7, rows[0].Deficit)
}

func TestConcurrentRestocksCannotOversellHQ(t *testing.T) {
	f, branches, products, inv, restocks := newInventoryFixture(t)
	hq := branches.add("Nairobi CBD", "Moi Avenue", true)
	west := branches.add("Westlands", "Waiyaki Way", false)
	momb := branches.add("Mombasa Road", "Mombasa Road", false)
	flour := products.add("Maize Flour 2kg", 180)
	admin := newStubUserRepo().add("admin@dukapos.co.ke", "ADMIN")

	inv.set(hq.ID, flour.ID, 60, 10)

	// Two transfers racing for the same HQ stock, combined demand 100 > 60.
	targets := []uuid.UUID{west.ID, momb.ID}
	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i := range targets {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Restock(context.Background(), admin.ID, dto.RestockRequest{
				BranchID: targets[i].String(),
				Products: []dto.RestockLine{{ProductID: flour.ID.String(), Quantity: 50}},
			})
		}(i)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			failures++
			assert.Contains(t, err.Error(), "insufficient stock in HQ")
		}
	}
	assert.Equal(t, 1, failures, "exactly one transfer may win the remaining stock")
	assert.Equal(t, 10, inv.quantity(hq.ID, flour.ID), "HQ quantity must never go negative")
	assert.Equal(t, 50, inv.quantity(west.ID, flour.ID)+inv.quantity(momb.ID, flour.ID),
		"only the winning transfer moves units")
	assert.Len(t, restocks.logs, 1, "only the winning transfer leaves an audit row")
}
