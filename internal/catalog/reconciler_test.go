package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/models"
)

// fakeInventory is an in-memory InventoryWriter for reconciliation tests.
type fakeInventory struct {
	items      map[int64]*models.InventoryItem
	nextID     int64
	failCreate map[string]error // keyed by item name
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{
		items:      make(map[int64]*models.InventoryItem),
		nextID:     1,
		failCreate: make(map[string]error),
	}
}

func (f *fakeInventory) FindByNameBrand(_ context.Context, storeID, itemName, brand string) ([]*models.InventoryItem, error) {
	var out []*models.InventoryItem
	for _, item := range f.items {
		if item.StoreID != storeID || item.ItemName != itemName {
			continue
		}
		if brand != "" && item.Brand != brand {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (f *fakeInventory) Create(_ context.Context, item *models.InventoryItem) error {
	if err := f.failCreate[item.ItemName]; err != nil {
		return err
	}
	item.ID = f.nextID
	f.nextID++
	clone := *item
	f.items[item.ID] = &clone
	return nil
}

func (f *fakeInventory) IncrementQuantity(_ context.Context, itemID int64, storeID string, delta float64) (float64, error) {
	item, ok := f.items[itemID]
	if !ok || item.StoreID != storeID {
		return 0, errors.New("not found")
	}
	item.Quantity += delta
	return item.Quantity, nil
}

func (f *fakeInventory) UpdateProvenance(_ context.Context, itemID int64, storeID string, billID int64, dealer models.DealerRef) error {
	item, ok := f.items[itemID]
	if !ok || item.StoreID != storeID {
		return errors.New("not found")
	}
	item.SourceBillID = billID
	item.Dealer = dealer
	return nil
}

type fakeChangeLog struct {
	entries []*models.InventoryChangeLog
	fail    bool
}

func (f *fakeChangeLog) Create(_ context.Context, entry *models.InventoryChangeLog) error {
	if f.fail {
		return errors.New("changelog unavailable")
	}
	entry.QuantityChange = entry.NewQuantity - entry.OldQuantity
	f.entries = append(f.entries, entry)
	return nil
}

func newTestReconciler(inv *fakeInventory, changes *fakeChangeLog) *Reconciler {
	logger := zap.NewNop()
	return NewReconciler(inv, changes, NewMatcher(inv, logger), logger)
}

func lineItem(name, brand string, qty, price float64) models.ParsedLineItem {
	return models.ParsedLineItem{
		ItemName: name,
		Brand:    brand,
		Quantity: qty,
		Price:    models.Price{MRP: price, SellingPrice: price},
	}
}

func TestReconcileCreatesNewItem(t *testing.T) {
	inv := newFakeInventory()
	changes := &fakeChangeLog{}
	r := newTestReconciler(inv, changes)

	result, err := r.Reconcile(context.Background(), lineItem("Tap X", "Jaquar", 10, 500), Provenance{
		StoreID: "store-1",
		Actor:   "user-1",
		BillID:  7,
		Dealer:  models.DealerRef{Name: "Acme Traders"},
	})
	require.NoError(t, err)

	assert.Equal(t, ActionCreated, result.Action)
	assert.Equal(t, float64(0), result.OldQuantity)
	assert.Equal(t, float64(10), result.NewQuantity)
	assert.Equal(t, "tap x", result.Item.ItemName)
	assert.Equal(t, "jaquar", result.Item.Brand)
	assert.Equal(t, int64(7), result.Item.SourceBillID)

	require.Len(t, changes.entries, 1)
	assert.Equal(t, models.ChangeTypeBillUpload, changes.entries[0].ChangeType)
	assert.Equal(t, float64(10), changes.entries[0].QuantityChange)
}

func TestReconcileIncrementsMatchingItem(t *testing.T) {
	inv := newFakeInventory()
	changes := &fakeChangeLog{}
	r := newTestReconciler(inv, changes)
	prov := Provenance{
		StoreID: "store-1",
		Actor:   "user-1",
		BillID:  1,
		Dealer:  models.DealerRef{Name: "Acme Traders"},
	}

	first, err := r.Reconcile(context.Background(), lineItem("Tap X", "Jaquar", 10, 500), prov)
	require.NoError(t, err)

	prov.BillID = 2
	second, err := r.Reconcile(context.Background(), lineItem("tap  x", "JAQUAR", 5, 500), prov)
	require.NoError(t, err)

	assert.Equal(t, ActionUpdated, second.Action)
	assert.Equal(t, first.Item.ID, second.Item.ID, "re-upload must merge, not duplicate")
	assert.Equal(t, float64(10), second.OldQuantity)
	assert.Equal(t, float64(15), second.NewQuantity)
	assert.Equal(t, int64(2), inv.items[first.Item.ID].SourceBillID)
	assert.Len(t, inv.items, 1)
}

func TestReconcilePriceChangeCreatesNewLot(t *testing.T) {
	inv := newFakeInventory()
	changes := &fakeChangeLog{}
	r := newTestReconciler(inv, changes)
	prov := Provenance{StoreID: "store-1", BillID: 1, Dealer: models.DealerRef{Name: "Acme Traders"}}

	_, err := r.Reconcile(context.Background(), lineItem("Tap X", "Jaquar", 10, 500), prov)
	require.NoError(t, err)

	result, err := r.Reconcile(context.Background(), lineItem("Tap X", "Jaquar", 5, 550), prov)
	require.NoError(t, err)

	assert.Equal(t, ActionCreated, result.Action)
	assert.Len(t, inv.items, 2, "different price must create a separate lot")
}

func TestReconcileDifferentDealerCreatesNewLot(t *testing.T) {
	inv := newFakeInventory()
	changes := &fakeChangeLog{}
	r := newTestReconciler(inv, changes)

	_, err := r.Reconcile(context.Background(), lineItem("Tap X", "Jaquar", 10, 500),
		Provenance{StoreID: "store-1", BillID: 1, Dealer: models.DealerRef{Name: "Acme Traders"}})
	require.NoError(t, err)

	result, err := r.Reconcile(context.Background(), lineItem("Tap X", "Jaquar", 5, 500),
		Provenance{StoreID: "store-1", BillID: 2, Dealer: models.DealerRef{Name: "Apex Traders"}})
	require.NoError(t, err)

	assert.Equal(t, ActionCreated, result.Action)
	assert.Len(t, inv.items, 2, "same product from a different dealer is a separate lot")
}

func TestReconcileBatchSkipsFailures(t *testing.T) {
	inv := newFakeInventory()
	inv.failCreate["Broken Item"] = errors.New("constraint violation")
	changes := &fakeChangeLog{}
	r := newTestReconciler(inv, changes)

	lines := []models.ParsedLineItem{
		lineItem("Item A", "B1", 1, 10),
		lineItem("Item B", "B1", 2, 20),
		lineItem("Broken Item", "B1", 3, 30),
		lineItem("Item C", "B1", 4, 40),
	}

	summary := r.ReconcileBatch(context.Background(), lines, Provenance{
		StoreID: "store-1",
		BillID:  1,
		Dealer:  models.DealerRef{Name: "Acme Traders"},
	})

	assert.Equal(t, 3, summary.Created)
	assert.Equal(t, 0, summary.Updated)
	assert.Equal(t, 1, summary.Failed)
	assert.Len(t, summary.ItemIDs, 3)
}

func TestReconcileChangeLogFailureDoesNotAbort(t *testing.T) {
	inv := newFakeInventory()
	changes := &fakeChangeLog{fail: true}
	r := newTestReconciler(inv, changes)

	result, err := r.Reconcile(context.Background(), lineItem("Tap X", "Jaquar", 10, 500),
		Provenance{StoreID: "store-1", BillID: 1, Dealer: models.DealerRef{Name: "Acme Traders"}})
	require.NoError(t, err, "audit failure must not roll back the inventory write")
	assert.Equal(t, ActionCreated, result.Action)
	assert.Len(t, inv.items, 1)
}

func TestReconcileBatchManyItems(t *testing.T) {
	inv := newFakeInventory()
	changes := &fakeChangeLog{}
	r := newTestReconciler(inv, changes)
	prov := Provenance{StoreID: "store-1", BillID: 1, Dealer: models.DealerRef{Name: "Acme Traders"}}

	var lines []models.ParsedLineItem
	for i := 0; i < 25; i++ {
		lines = append(lines, lineItem(fmt.Sprintf("Item %d", i), "Brand", 1, float64(10+i)))
	}

	summary := r.ReconcileBatch(context.Background(), lines, prov)
	assert.Equal(t, 25, summary.Created)

	// Same bill again: every line merges into its existing lot.
	summary = r.ReconcileBatch(context.Background(), lines, prov)
	assert.Equal(t, 0, summary.Created)
	assert.Equal(t, 25, summary.Updated)
	assert.Len(t, inv.items, 25)
}
