package extract

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/catalog"
	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/models"
	"github.com/Pegais/Sretails-RetailStore-Management-Application/pkg/utils"
	"github.com/xuri/excelize/v2"
)

// Default line-item values when a column is absent
const (
	defaultUnit       = "pcs"
	defaultTaxPercent = 18
)

// ParseDealerWorkbook turns a two-sheet dealer workbook into dealer metadata
// plus structured line items. Sheet 1 must hold a single metadata row, sheet
// 2 the item rows. Header variations (`Dealer Name`, `dealer_name`) resolve
// to the same field after key normalization.
//
// Dealer-level validation is strict (ErrMissingRequiredField aborts the
// bill); item rows are lenient — a row missing item name, quantity or rate is
// skipped rather than aborting the batch.
func ParseDealerWorkbook(r io.Reader) (*models.ExtractedBill, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedWorkbook, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) < 2 {
		return nil, fmt.Errorf("%w: need dealer metadata and item sheets, got %d sheet(s)", ErrMalformedWorkbook, len(sheets))
	}

	dealerRows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read dealer sheet: %w", err)
	}
	if len(dealerRows) < 2 {
		return nil, fmt.Errorf("%w: dealer metadata sheet is empty", ErrMalformedWorkbook)
	}

	dealerRow := rowToRecord(dealerRows[0], dealerRows[1])
	dealer := models.DealerInfo{
		DealerName:    utils.SanitizeString(strings.TrimSpace(dealerRow["dealername"])),
		DealerGSTIN:   strings.ToUpper(strings.TrimSpace(dealerRow["dealergstin"])),
		InvoiceNumber: strings.TrimSpace(dealerRow["invoicenumber"]),
		InvoiceDate:   strings.TrimSpace(dealerRow["invoicedate"]),
		TotalAmount:   parseFloatOr(dealerRow["totalamount"], 0),
	}
	if dealer.DealerName == "" || dealer.InvoiceDate == "" {
		return nil, fmt.Errorf("%w: dealer name or invoice date absent in metadata sheet", ErrMissingRequiredField)
	}
	// A malformed GSTIN is dropped, not fatal: it would otherwise poison the
	// dealer-equality check on every future bill from this supplier.
	if dealer.DealerGSTIN != "" && utils.ValidateGSTIN(dealer.DealerGSTIN) != nil {
		dealer.DealerGSTIN = ""
	}

	itemRows, err := f.GetRows(sheets[1])
	if err != nil {
		return nil, fmt.Errorf("failed to read items sheet: %w", err)
	}
	if len(itemRows) < 2 {
		return nil, fmt.Errorf("%w: inventory items sheet is empty", ErrMalformedWorkbook)
	}

	header := itemRows[0]
	items := make([]models.ParsedLineItem, 0, len(itemRows)-1)
	for _, cells := range itemRows[1:] {
		record := rowToRecord(header, cells)

		name := strings.TrimSpace(record["itemname"])
		qty, qtyOK := parseFloat(record["quantity"])
		rate, rateOK := parseFloat(record["rate"])
		if name == "" || !qtyOK || !rateOK {
			continue
		}

		items = append(items, models.ParsedLineItem{
			ItemName: name,
			Brand:    strings.TrimSpace(record["brand"]),
			Category: strings.TrimSpace(record["category"]),
			Quantity: qty,
			Unit:     valueOr(record["unit"], defaultUnit),
			Specifications: models.Specifications{
				Size:     catalog.Normalize(record["size"]),
				Color:    catalog.Normalize(record["color"]),
				Material: catalog.Normalize(record["material"]),
				Variant:  catalog.Normalize(record["variant"]),
			},
			Price: models.Price{
				MRP:            parseFloatOr(record["mrp"], rate),
				SellingPrice:   rate,
				OwnerDealPrice: parseFloatOr(record["ownerdealprice"], 0),
			},
			HSN:        strings.TrimSpace(record["hsn"]),
			Discount:   parseFloatOr(record["discount"], 0),
			TaxPercent: parseFloatOr(record["taxpercent"], defaultTaxPercent),
		})
	}

	return &models.ExtractedBill{
		Dealer:   dealer,
		Items:    items,
		RowCount: len(itemRows) - 1,
	}, nil
}

// normalizeHeaderKey lowercases a column header and strips whitespace and
// punctuation so `Dealer Name`, `dealer_name` and `dealername` collide.
func normalizeHeaderKey(key string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(key) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// rowToRecord zips a header row and a data row into a normalized-key map.
func rowToRecord(header, cells []string) map[string]string {
	record := make(map[string]string, len(header))
	for i, key := range header {
		k := normalizeHeaderKey(key)
		if k == "" {
			continue
		}
		if i < len(cells) {
			record[k] = cells[i]
		} else {
			record[k] = ""
		}
	}
	return record
}

// parseFloat tolerantly parses a numeric cell, accepting thousands
// separators and currency prefixes.
func parseFloat(raw string) (float64, bool) {
	cleaned := strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	cleaned = strings.TrimLeft(cleaned, "₹$ ")
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseFloatOr(raw string, fallback float64) float64 {
	if v, ok := parseFloat(raw); ok {
		return v
	}
	return fallback
}

func valueOr(raw, fallback string) string {
	if v := strings.TrimSpace(raw); v != "" {
		return v
	}
	return fallback
}
