package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/models"
	"go.uber.org/zap"
)

// ChangeLogRepository appends and reads inventory audit rows. The table is
// append-only: there are no update or delete operations by design.
type ChangeLogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewChangeLogRepository creates a new change log repository.
func NewChangeLogRepository(db *sql.DB, logger *zap.Logger) *ChangeLogRepository {
	return &ChangeLogRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends one audit row. The quantityChange invariant
// (newQuantity - oldQuantity) is enforced here rather than trusted from the
// caller.
func (r *ChangeLogRepository) Create(ctx context.Context, entry *models.InventoryChangeLog) error {
	entry.QuantityChange = entry.NewQuantity - entry.OldQuantity

	metadata := "{}"
	if len(entry.Metadata) > 0 {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadata = string(raw)
	}

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO inventory_change_logs (
			item_id, store_id, changed_by, change_type,
			old_quantity, new_quantity, quantity_change,
			reason, source_bill_id, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ItemID, entry.StoreID, entry.ChangedBy, entry.ChangeType,
		entry.OldQuantity, entry.NewQuantity, entry.QuantityChange,
		entry.Reason, entry.SourceBillID, metadata, now,
	)
	if err != nil {
		r.logger.Error("Failed to create change log entry",
			zap.Int64("item_id", entry.ItemID),
			zap.String("change_type", entry.ChangeType),
			zap.Error(err))
		return fmt.Errorf("failed to create change log entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	entry.ID = id
	entry.CreatedAt = now
	return nil
}

// ListByItem returns an item's audit history, newest first, store-scoped.
func (r *ChangeLogRepository) ListByItem(ctx context.Context, itemID int64, storeID string, limit int) ([]*models.InventoryChangeLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, item_id, store_id, changed_by, change_type,
		       old_quantity, new_quantity, quantity_change,
		       reason, source_bill_id, metadata, created_at
		FROM inventory_change_logs
		WHERE item_id = ? AND store_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, itemID, storeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query change log: %w", err)
	}
	defer rows.Close()

	var entries []*models.InventoryChangeLog
	for rows.Next() {
		var (
			entry    models.InventoryChangeLog
			metadata string
		)
		if err := rows.Scan(
			&entry.ID, &entry.ItemID, &entry.StoreID, &entry.ChangedBy, &entry.ChangeType,
			&entry.OldQuantity, &entry.NewQuantity, &entry.QuantityChange,
			&entry.Reason, &entry.SourceBillID, &metadata, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan change log entry: %w", err)
		}
		if metadata != "" && metadata != "{}" {
			if err := json.Unmarshal([]byte(metadata), &entry.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate change log: %w", err)
	}
	return entries, nil
}
