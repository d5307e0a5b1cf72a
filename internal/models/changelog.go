package models

import "time"

// Change type constants for the inventory change log
const (
	ChangeTypeQuantityIncrease = "quantity_increase"
	ChangeTypeQuantityDecrease = "quantity_decrease"
	ChangeTypeQuantitySet      = "quantity_set"
	ChangeTypeItemCreated      = "item_created"
	ChangeTypeItemUpdated      = "item_updated"
	ChangeTypeItemDeleted      = "item_deleted"
	ChangeTypeBillUpload       = "bill_upload"
)

// InventoryChangeLog is one immutable audit row per inventory mutation.
// Rows are append-only: never updated, never deleted.
// Invariant: QuantityChange == NewQuantity - OldQuantity.
type InventoryChangeLog struct {
	ID             int64             `json:"id"`
	ItemID         int64             `json:"item_id"`
	StoreID        string            `json:"store_id"`
	ChangedBy      string            `json:"changed_by"`
	ChangeType     string            `json:"change_type"`
	OldQuantity    float64           `json:"old_quantity"`
	NewQuantity    float64           `json:"new_quantity"`
	QuantityChange float64           `json:"quantity_change"`
	Reason         string            `json:"reason,omitempty"`
	SourceBillID   int64             `json:"source_bill_id,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}
