package catalog

import (
	"context"
	"fmt"

	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/models"
	"go.uber.org/zap"
)

// Reconcile actions
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
)

// InventoryWriter is the persistence contract the reconciler needs. Quantity
// updates must be atomic increments in the store, not read-modify-write in
// application code: two bills for the same store may reconcile concurrently.
type InventoryWriter interface {
	InventoryFinder
	Create(ctx context.Context, item *models.InventoryItem) error
	IncrementQuantity(ctx context.Context, itemID int64, storeID string, delta float64) (newQuantity float64, err error)
	UpdateProvenance(ctx context.Context, itemID int64, storeID string, billID int64, dealer models.DealerRef) error
}

// ChangeLogWriter appends audit rows for inventory mutations.
type ChangeLogWriter interface {
	Create(ctx context.Context, entry *models.InventoryChangeLog) error
}

// Provenance identifies who and which bill caused a reconciliation.
type Provenance struct {
	StoreID string
	Actor   string
	BillID  int64
	Dealer  models.DealerRef
}

// Result reports the outcome of reconciling one line item.
type Result struct {
	Item        *models.InventoryItem
	Action      string
	OldQuantity float64
	NewQuantity float64
}

// BatchSummary aggregates a whole bill's reconciliation.
type BatchSummary struct {
	Created int
	Updated int
	Failed  int
	ItemIDs []int64
}

// Reconciler applies merge-or-create decisions to the store catalog and
// appends one change-log row per mutation.
type Reconciler struct {
	items   InventoryWriter
	changes ChangeLogWriter
	matcher *Matcher
	logger  *zap.Logger
}

// NewReconciler creates a new reconciliation engine.
func NewReconciler(items InventoryWriter, changes ChangeLogWriter, matcher *Matcher, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		items:   items,
		changes: changes,
		matcher: matcher,
		logger:  logger,
	}
}

// Reconcile applies one parsed line item to the catalog: on a match the
// existing row's quantity is incremented (never overwritten) and its source
// bill provenance refreshed; otherwise a new row is created. Both paths
// append a bill_upload change-log entry.
func (r *Reconciler) Reconcile(ctx context.Context, line models.ParsedLineItem, prov Provenance) (*Result, error) {
	existing, err := r.matcher.FindMatch(ctx, line, prov.Dealer, prov.StoreID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		return r.mergeInto(ctx, existing, line, prov)
	}
	return r.createNew(ctx, line, prov)
}

// ReconcileBatch reconciles every line item of a bill. A failing item is
// logged, counted and skipped; it never aborts its siblings.
func (r *Reconciler) ReconcileBatch(ctx context.Context, lines []models.ParsedLineItem, prov Provenance) BatchSummary {
	var summary BatchSummary
	for _, line := range lines {
		result, err := r.Reconcile(ctx, line, prov)
		if err != nil {
			summary.Failed++
			r.logger.Warn("Skipping line item after reconcile failure",
				zap.String("item_name", line.ItemName),
				zap.String("store_id", prov.StoreID),
				zap.Int64("bill_id", prov.BillID),
				zap.Error(err))
			continue
		}

		summary.ItemIDs = append(summary.ItemIDs, result.Item.ID)
		switch result.Action {
		case ActionCreated:
			summary.Created++
		case ActionUpdated:
			summary.Updated++
		}
	}
	return summary
}

func (r *Reconciler) mergeInto(ctx context.Context, existing *models.InventoryItem, line models.ParsedLineItem, prov Provenance) (*Result, error) {
	newQuantity, err := r.items.IncrementQuantity(ctx, existing.ID, prov.StoreID, line.Quantity)
	if err != nil {
		return nil, fmt.Errorf("failed to increment quantity: %w", err)
	}
	oldQuantity := newQuantity - line.Quantity

	dealer := prov.Dealer
	dealer.BillID = prov.BillID
	if err := r.items.UpdateProvenance(ctx, existing.ID, prov.StoreID, prov.BillID, dealer); err != nil {
		// Quantity is already applied; provenance refresh is secondary.
		r.logger.Warn("Failed to refresh item provenance",
			zap.Int64("item_id", existing.ID),
			zap.Error(err))
	}

	existing.Quantity = newQuantity
	existing.SourceBillID = prov.BillID
	existing.Dealer = dealer

	r.appendChangeLog(ctx, &models.InventoryChangeLog{
		ItemID:         existing.ID,
		StoreID:        prov.StoreID,
		ChangedBy:      prov.Actor,
		ChangeType:     models.ChangeTypeBillUpload,
		OldQuantity:    oldQuantity,
		NewQuantity:    newQuantity,
		QuantityChange: newQuantity - oldQuantity,
		Reason:         "Bill upload - quantity updated",
		SourceBillID:   prov.BillID,
		Metadata:       map[string]string{"dealerName": prov.Dealer.Name},
	})

	return &Result{
		Item:        existing,
		Action:      ActionUpdated,
		OldQuantity: oldQuantity,
		NewQuantity: newQuantity,
	}, nil
}

func (r *Reconciler) createNew(ctx context.Context, line models.ParsedLineItem, prov Provenance) (*Result, error) {
	brand := Normalize(line.Brand)
	if brand == "" {
		brand = "unknown"
	}
	category := Normalize(line.Category)
	if category == "" {
		category = "uncategorized"
	}
	unit := line.Unit
	if unit == "" {
		unit = "pcs"
	}

	dealer := prov.Dealer
	dealer.BillID = prov.BillID

	item := &models.InventoryItem{
		StoreID:        prov.StoreID,
		ItemName:       Normalize(line.ItemName),
		Brand:          brand,
		Category:       category,
		Quantity:       line.Quantity,
		Unit:           unit,
		Specifications: line.Specifications,
		Price:          line.Price,
		Status:         models.ItemStatusActive,
		Dealer:         dealer,
		SourceBillID:   prov.BillID,
		CreatedBy:      prov.Actor,
	}

	if err := r.items.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create inventory item: %w", err)
	}

	r.appendChangeLog(ctx, &models.InventoryChangeLog{
		ItemID:         item.ID,
		StoreID:        prov.StoreID,
		ChangedBy:      prov.Actor,
		ChangeType:     models.ChangeTypeBillUpload,
		OldQuantity:    0,
		NewQuantity:    line.Quantity,
		QuantityChange: line.Quantity,
		Reason:         "Bill upload - new item created",
		SourceBillID:   prov.BillID,
		Metadata:       map[string]string{"dealerName": prov.Dealer.Name},
	})

	return &Result{
		Item:        item,
		Action:      ActionCreated,
		OldQuantity: 0,
		NewQuantity: line.Quantity,
	}, nil
}

// appendChangeLog writes the audit row best-effort. The inventory mutation is
// never rolled back when the audit write fails.
func (r *Reconciler) appendChangeLog(ctx context.Context, entry *models.InventoryChangeLog) {
	if err := r.changes.Create(ctx, entry); err != nil {
		r.logger.Warn("Failed to log inventory change",
			zap.Int64("item_id", entry.ItemID),
			zap.String("change_type", entry.ChangeType),
			zap.Error(err))
	}
}
