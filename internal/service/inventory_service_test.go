package service

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/models"
	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/repository"
)

func newInventoryFixture(t *testing.T) (*InventoryService, *models.InventoryItem) {
	t.Helper()

	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	require.NoError(t, err)
	// An in-memory database exists per connection; a second pooled
	// connection would see an empty schema.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile(filepath.Join("..", "..", "migrations", "0001_init.sql"))
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)

	items := repository.NewInventoryRepository(db, zap.NewNop())
	changes := repository.NewChangeLogRepository(db, zap.NewNop())
	svc := NewInventoryService(items, changes, zap.NewNop())

	item := &models.InventoryItem{
		StoreID:  "store-1",
		ItemName: "tap x",
		Brand:    "jaquar",
		Quantity: 10,
		Unit:     "pcs",
		Price:    models.Price{MRP: 550, SellingPrice: 500},
		Status:   models.ItemStatusActive,
	}
	require.NoError(t, items.Create(context.Background(), item))
	return svc, item
}

func qty(v float64) *float64 { return &v }

func TestAdjustQuantitySetToZero(t *testing.T) {
	svc, item := newInventoryFixture(t)
	ctx := context.Background()

	got, err := svc.AdjustQuantity(ctx, item.ID, "store-1", "user-1", AdjustRequest{
		Mode:     AdjustModeSet,
		Quantity: qty(0),
		Reason:   "stock audit",
	})
	require.NoError(t, err)
	assert.Zero(t, got.Quantity, "zeroing out stock is a valid correction")

	entries, err := svc.GetChangeLog(ctx, item.ID, "store-1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ChangeTypeQuantitySet, entries[0].ChangeType)
	assert.Equal(t, float64(10), entries[0].OldQuantity)
	assert.Zero(t, entries[0].NewQuantity)
	assert.Equal(t, float64(-10), entries[0].QuantityChange)
}

func TestAdjustQuantityIncreaseAndDecrease(t *testing.T) {
	svc, item := newInventoryFixture(t)
	ctx := context.Background()

	got, err := svc.AdjustQuantity(ctx, item.ID, "store-1", "user-1", AdjustRequest{
		Mode:     AdjustModeIncrease,
		Quantity: qty(5),
	})
	require.NoError(t, err)
	assert.Equal(t, float64(15), got.Quantity)

	got, err = svc.AdjustQuantity(ctx, item.ID, "store-1", "user-1", AdjustRequest{
		Mode:     AdjustModeDecrease,
		Quantity: qty(3),
	})
	require.NoError(t, err)
	assert.Equal(t, float64(12), got.Quantity)

	entries, err := svc.GetChangeLog(ctx, item.ID, "store-1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestAdjustQuantityDecreaseBelowZero(t *testing.T) {
	svc, item := newInventoryFixture(t)
	ctx := context.Background()

	_, err := svc.AdjustQuantity(ctx, item.ID, "store-1", "user-1", AdjustRequest{
		Mode:     AdjustModeDecrease,
		Quantity: qty(100),
	})
	assert.ErrorIs(t, err, ErrInvalidAdjustment)

	got, err := svc.Get(ctx, item.ID, "store-1")
	require.NoError(t, err)
	assert.Equal(t, float64(10), got.Quantity, "a failed decrease must not change stock")
}

func TestAdjustQuantityRejectsBadRequests(t *testing.T) {
	svc, item := newInventoryFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  AdjustRequest
	}{
		{"missing quantity", AdjustRequest{Mode: AdjustModeSet}},
		{"negative quantity", AdjustRequest{Mode: AdjustModeIncrease, Quantity: qty(-1)}},
		{"unknown mode", AdjustRequest{Mode: "multiply", Quantity: qty(2)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AdjustQuantity(ctx, item.ID, "store-1", "user-1", tt.req)
			assert.ErrorIs(t, err, ErrInvalidAdjustment)
		})
	}
}
