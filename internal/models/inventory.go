package models

import "time"

// Inventory item status constants
const (
	ItemStatusActive    = "active"
	ItemStatusLowDemand = "low-demand"
	ItemStatusStale     = "stale"
	ItemStatusArchived  = "archived"
)

// DealerRef records which dealer lot an inventory row came from.
type DealerRef struct {
	Name   string `json:"name,omitempty"`
	GSTIN  string `json:"gstin,omitempty"`
	BillID int64  `json:"billId,omitempty"`
}

// InventoryItem is one store-scoped stock-keeping entry. Identity is
// (storeId, normalized itemName, normalized brand) combined with price and
// dealer equality; the same product may legitimately exist as several rows
// when it arrives from different dealers or at different prices.
type InventoryItem struct {
	ID             int64          `json:"id"`
	StoreID        string         `json:"store_id"`
	ItemName       string         `json:"item_name"` // normalized: lowercase, collapsed whitespace
	Brand          string         `json:"brand"`
	Category       string         `json:"category"`
	Quantity       float64        `json:"quantity"`
	Unit           string         `json:"unit"`
	Specifications Specifications `json:"specifications"`
	Price          Price          `json:"price"`
	Status         string         `json:"status"`
	Dealer         DealerRef      `json:"dealer"`
	SourceBillID   int64          `json:"source_bill_id,omitempty"`
	CreatedBy      string         `json:"created_by"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
