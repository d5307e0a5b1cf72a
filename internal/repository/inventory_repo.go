package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/models"
)

// InventoryRepository handles inventory item database operations. Every
// query is scoped by store_id; omitting that scope would be a cross-tenant
// data leak.
type InventoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInventoryRepository creates a new inventory repository.
func NewInventoryRepository(db *sql.DB, logger *zap.Logger) *InventoryRepository {
	return &InventoryRepository{
		db:     db,
		logger: logger,
	}
}

const inventoryColumns = `
	id, store_id, item_name, brand, category, quantity, unit,
	specifications, price_mrp, price_selling, price_owner_deal, status,
	dealer_name, dealer_gstin, dealer_bill_id, source_bill_id,
	created_by, created_at, updated_at
`

// Create inserts a new inventory row and sets the item's ID and timestamps.
func (r *InventoryRepository) Create(ctx context.Context, item *models.InventoryItem) error {
	specs, err := json.Marshal(item.Specifications)
	if err != nil {
		return fmt.Errorf("failed to marshal specifications: %w", err)
	}

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO inventory_items (
			store_id, item_name, brand, category, quantity, unit,
			specifications, price_mrp, price_selling, price_owner_deal, status,
			dealer_name, dealer_gstin, dealer_bill_id, source_bill_id,
			created_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		item.StoreID, item.ItemName, item.Brand, item.Category, item.Quantity, item.Unit,
		string(specs), item.Price.MRP, item.Price.SellingPrice, item.Price.OwnerDealPrice, item.Status,
		item.Dealer.Name, item.Dealer.GSTIN, item.Dealer.BillID, item.SourceBillID,
		item.CreatedBy, now, now,
	)
	if err != nil {
		r.logger.Error("Failed to create inventory item",
			zap.String("item_name", item.ItemName),
			zap.Error(err))
		return fmt.Errorf("failed to create inventory item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	item.ID = id
	item.CreatedAt = now
	item.UpdatedAt = now
	return nil
}

// FindByNameBrand returns candidate rows by normalized name, and brand when
// brand is non-empty. Callers normalize before querying; rows are stored
// normalized at write time, so equality here is the case-insensitive,
// whitespace-collapsed match the matcher requires.
func (r *InventoryRepository) FindByNameBrand(ctx context.Context, storeID, itemName, brand string) ([]*models.InventoryItem, error) {
	query := `SELECT ` + inventoryColumns + ` FROM inventory_items WHERE store_id = ? AND item_name = ?`
	args := []interface{}{storeID, itemName}
	if brand != "" {
		query += ` AND brand = ?`
		args = append(args, brand)
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query inventory items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// IncrementQuantity atomically adds delta to an item's quantity in the
// database and returns the new value. This is deliberately not a
// read-modify-write: concurrent bill uploads for the same store must not
// lose increments. Decrements that would push quantity below zero fail the
// table's CHECK constraint and surface as ErrQuantityBelowZero.
func (r *InventoryRepository) IncrementQuantity(ctx context.Context, itemID int64, storeID string, delta float64) (float64, error) {
	var newQuantity float64
	err := r.db.QueryRowContext(ctx, `
		UPDATE inventory_items
		SET quantity = quantity + ?, updated_at = ?
		WHERE id = ? AND store_id = ?
		RETURNING quantity
	`, delta, time.Now().UTC(), itemID, storeID).Scan(&newQuantity)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintCheck {
		return 0, ErrQuantityBelowZero
	}
	if err != nil {
		r.logger.Error("Failed to increment quantity",
			zap.Int64("item_id", itemID),
			zap.Float64("delta", delta),
			zap.Error(err))
		return 0, fmt.Errorf("failed to increment quantity: %w", err)
	}
	return newQuantity, nil
}

// SetQuantity overwrites an item's quantity and returns the previous value.
// Runs in a transaction so the returned old quantity is the one actually
// replaced.
func (r *InventoryRepository) SetQuantity(ctx context.Context, itemID int64, storeID string, quantity float64) (oldQuantity float64, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	err = tx.QueryRowContext(ctx,
		`SELECT quantity FROM inventory_items WHERE id = ? AND store_id = ?`,
		itemID, storeID).Scan(&oldQuantity)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read current quantity: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE inventory_items SET quantity = ?, updated_at = ? WHERE id = ? AND store_id = ?`,
		quantity, time.Now().UTC(), itemID, storeID)
	if err != nil {
		return 0, fmt.Errorf("failed to set quantity: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return oldQuantity, nil
}

// UpdateProvenance refreshes an item's source bill and dealer lot reference
// to the latest bill that touched it.
func (r *InventoryRepository) UpdateProvenance(ctx context.Context, itemID int64, storeID string, billID int64, dealer models.DealerRef) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE inventory_items
		SET source_bill_id = ?, dealer_name = ?, dealer_gstin = ?, dealer_bill_id = ?, updated_at = ?
		WHERE id = ? AND store_id = ?
	`, billID, dealer.Name, dealer.GSTIN, dealer.BillID, time.Now().UTC(), itemID, storeID)
	if err != nil {
		return fmt.Errorf("failed to update provenance: %w", err)
	}
	return nil
}

// GetByID loads one item, store-scoped.
func (r *InventoryRepository) GetByID(ctx context.Context, itemID int64, storeID string) (*models.InventoryItem, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+inventoryColumns+` FROM inventory_items WHERE id = ? AND store_id = ?`,
		itemID, storeID)

	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory item: %w", err)
	}
	return item, nil
}

// GetByIDs loads the given items in one query, store-scoped. Missing IDs are
// silently absent from the result.
func (r *InventoryRepository) GetByIDs(ctx context.Context, itemIDs []int64, storeID string) ([]*models.InventoryItem, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}

	query := `SELECT ` + inventoryColumns + ` FROM inventory_items WHERE store_id = ? AND id IN (`
	args := make([]interface{}, 0, len(itemIDs)+1)
	args = append(args, storeID)
	for i, id := range itemIDs {
		if i > 0 {
			query += ","
		}
		query += "?"
		args = append(args, id)
	}
	query += `) ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query inventory items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// List returns a page of a store's inventory, optionally filtered by status.
func (r *InventoryRepository) List(ctx context.Context, storeID, status string, limit, offset int) ([]*models.InventoryItem, int, error) {
	where := `WHERE store_id = ?`
	args := []interface{}{storeID}
	if status != "" {
		where += ` AND status = ?`
		args = append(args, status)
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM inventory_items `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count inventory items: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+inventoryColumns+` FROM inventory_items `+where+` ORDER BY updated_at DESC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query inventory items: %w", err)
	}
	defer rows.Close()

	items, err := scanItems(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row rowScanner) (*models.InventoryItem, error) {
	var (
		item  models.InventoryItem
		specs string
	)
	err := row.Scan(
		&item.ID, &item.StoreID, &item.ItemName, &item.Brand, &item.Category,
		&item.Quantity, &item.Unit, &specs,
		&item.Price.MRP, &item.Price.SellingPrice, &item.Price.OwnerDealPrice,
		&item.Status, &item.Dealer.Name, &item.Dealer.GSTIN, &item.Dealer.BillID,
		&item.SourceBillID, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if specs != "" {
		if err := json.Unmarshal([]byte(specs), &item.Specifications); err != nil {
			return nil, fmt.Errorf("failed to unmarshal specifications: %w", err)
		}
	}
	return &item, nil
}

func scanItems(rows *sql.Rows) ([]*models.InventoryItem, error) {
	var items []*models.InventoryItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inventory item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate inventory items: %w", err)
	}
	return items, nil
}
