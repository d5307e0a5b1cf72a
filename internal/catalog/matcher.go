package catalog

import (
	"context"
	"fmt"

	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/models"
	"go.uber.org/zap"
)

// InventoryFinder is the lookup the matcher needs from the persistence layer.
// Brand may be empty, in which case candidates are filtered by name only.
type InventoryFinder interface {
	FindByNameBrand(ctx context.Context, storeID, itemName, brand string) ([]*models.InventoryItem, error)
}

// Matcher decides whether a parsed line item refers to an existing inventory
// row in the store. Identity is composite: normalized name and brand must
// match exactly AND the price and dealer must be equal. Exact normalized
// equality is a known limitation against OCR noise (pluralization, minor
// spelling variance); no similarity threshold is applied.
type Matcher struct {
	items  InventoryFinder
	logger *zap.Logger
}

// NewMatcher creates a new catalog matcher.
func NewMatcher(items InventoryFinder, logger *zap.Logger) *Matcher {
	return &Matcher{
		items:  items,
		logger: logger,
	}
}

// FindMatch returns the first existing inventory row in the store that
// matches the line item's name, brand, price and dealer, or nil when the
// item should be created as a new row. Every lookup is store-scoped.
func (m *Matcher) FindMatch(ctx context.Context, line models.ParsedLineItem, dealer models.DealerRef, storeID string) (*models.InventoryItem, error) {
	name := Normalize(line.ItemName)
	brand := Normalize(line.Brand)

	candidates, err := m.items.FindByNameBrand(ctx, storeID, name, brand)
	if err != nil {
		return nil, fmt.Errorf("failed to load match candidates: %w", err)
	}

	for _, existing := range candidates {
		if !PriceEqual(existing.Price, line.Price) {
			continue
		}
		if !DealerEqual(existing.Dealer.Name, dealer.Name) {
			continue
		}

		m.logger.Debug("Matched existing inventory item",
			zap.Int64("item_id", existing.ID),
			zap.String("store_id", storeID),
			zap.String("item_name", name))
		return existing, nil
	}

	return nil, nil
}
