package catalog

import (
	"math"
	"strings"

	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/models"
)

// priceTolerance is the strict upper bound for treating two prices as equal.
// A difference of exactly 0.01 is NOT equal.
const priceTolerance = 0.01

// Normalize lowercases, trims and collapses internal whitespace so that
// header and OCR variations of the same name compare equal. Idempotent:
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// PriceEqual compares the effective price (selling price, falling back to
// MRP) of two price blocks within the tolerance.
func PriceEqual(a, b models.Price) bool {
	return math.Abs(a.Effective()-b.Effective()) < priceTolerance
}

// DealerEqual compares dealer names case-insensitively after whitespace
// collapse.
func DealerEqual(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
