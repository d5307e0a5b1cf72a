package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/models"
	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/repository"
	"go.uber.org/zap"
)

// Quantity adjustment modes
const (
	AdjustModeSet      = "set"
	AdjustModeIncrease = "increase"
	AdjustModeDecrease = "decrease"
)

// ErrInvalidAdjustment rejects malformed manual quantity adjustments.
var ErrInvalidAdjustment = errors.New("invalid quantity adjustment")

// AdjustRequest is one manual quantity correction. Quantity is a pointer
// so that a "set to zero" survives the required binding check; the zero
// value of a float64 would fail it.
type AdjustRequest struct {
	Mode     string   `json:"mode" binding:"required"`
	Quantity *float64 `json:"quantity" binding:"required"`
	Reason   string   `json:"reason"`
}

// InventoryService exposes catalog reads and manual quantity corrections.
// Every mutation it performs is recorded in the change log.
type InventoryService struct {
	items   *repository.InventoryRepository
	changes *repository.ChangeLogRepository
	logger  *zap.Logger
}

// NewInventoryService creates a new inventory service.
func NewInventoryService(items *repository.InventoryRepository, changes *repository.ChangeLogRepository, logger *zap.Logger) *InventoryService {
	return &InventoryService{
		items:   items,
		changes: changes,
		logger:  logger,
	}
}

// List returns a page of a store's inventory.
func (s *InventoryService) List(ctx context.Context, storeID, status string, limit, offset int) ([]*models.InventoryItem, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.items.List(ctx, storeID, status, limit, offset)
}

// Get loads one item, store-scoped.
func (s *InventoryService) Get(ctx context.Context, itemID int64, storeID string) (*models.InventoryItem, error) {
	return s.items.GetByID(ctx, itemID, storeID)
}

// AdjustQuantity applies a manual quantity correction and appends the audit
// row. Increase and decrease are atomic increments; set replaces the value
// outright. A decrease below zero fails the table constraint and is rejected.
func (s *InventoryService) AdjustQuantity(ctx context.Context, itemID int64, storeID, userID string, req AdjustRequest) (*models.InventoryItem, error) {
	if req.Quantity == nil {
		return nil, fmt.Errorf("%w: quantity is required", ErrInvalidAdjustment)
	}
	value := *req.Quantity
	if value < 0 {
		return nil, fmt.Errorf("%w: quantity must be non-negative", ErrInvalidAdjustment)
	}

	var (
		oldQuantity float64
		newQuantity float64
		changeType  string
		err         error
	)

	switch req.Mode {
	case AdjustModeIncrease:
		changeType = models.ChangeTypeQuantityIncrease
		newQuantity, err = s.items.IncrementQuantity(ctx, itemID, storeID, value)
		oldQuantity = newQuantity - value
	case AdjustModeDecrease:
		changeType = models.ChangeTypeQuantityDecrease
		newQuantity, err = s.items.IncrementQuantity(ctx, itemID, storeID, -value)
		oldQuantity = newQuantity + value
	case AdjustModeSet:
		changeType = models.ChangeTypeQuantitySet
		newQuantity = value
		oldQuantity, err = s.items.SetQuantity(ctx, itemID, storeID, value)
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidAdjustment, req.Mode)
	}
	if errors.Is(err, repository.ErrQuantityBelowZero) {
		return nil, fmt.Errorf("%w: insufficient stock for decrease", ErrInvalidAdjustment)
	}
	if err != nil {
		return nil, err
	}

	reason := req.Reason
	if reason == "" {
		reason = "Manual adjustment"
	}
	if logErr := s.changes.Create(ctx, &models.InventoryChangeLog{
		ItemID:      itemID,
		StoreID:     storeID,
		ChangedBy:   userID,
		ChangeType:  changeType,
		OldQuantity: oldQuantity,
		NewQuantity: newQuantity,
		Reason:      reason,
	}); logErr != nil {
		// The adjustment already happened; the audit miss is logged, not
		// propagated.
		s.logger.Warn("Failed to log manual adjustment",
			zap.Int64("item_id", itemID),
			zap.String("mode", req.Mode),
			zap.Error(logErr))
	}

	return s.items.GetByID(ctx, itemID, storeID)
}

// GetChangeLog returns an item's audit history, newest first. The item must
// exist in the store.
func (s *InventoryService) GetChangeLog(ctx context.Context, itemID int64, storeID string, limit int) ([]*models.InventoryChangeLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if _, err := s.items.GetByID(ctx, itemID, storeID); err != nil {
		return nil, err
	}
	return s.changes.ListByItem(ctx, itemID, storeID, limit)
}
