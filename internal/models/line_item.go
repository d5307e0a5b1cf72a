package models

// DealerInfo is the supplier metadata extracted once per bill. It is derived
// during extraction and never mutated afterwards.
type DealerInfo struct {
	DealerName    string  `json:"dealerName"`
	DealerGSTIN   string  `json:"dealerGSTIN,omitempty"`
	InvoiceNumber string  `json:"invoiceNumber,omitempty"`
	InvoiceDate   string  `json:"invoiceDate"`
	TotalAmount   float64 `json:"totalAmount"`
}

// Specifications captures free-form product attributes from a bill line.
type Specifications struct {
	Size       string `json:"size,omitempty"`
	Color      string `json:"color,omitempty"`
	Material   string `json:"material,omitempty"`
	Variant    string `json:"variant,omitempty"`
	Weight     string `json:"weight,omitempty"`
	Dimensions string `json:"dimensions,omitempty"`
}

// Price is the price block shared by parsed lines and inventory rows.
type Price struct {
	MRP            float64 `json:"mrp"`
	SellingPrice   float64 `json:"sellingPrice"`
	OwnerDealPrice float64 `json:"ownerDealPrice,omitempty"`
}

// Effective returns the selling price when present, falling back to MRP.
func (p Price) Effective() float64 {
	if p.SellingPrice != 0 {
		return p.SellingPrice
	}
	return p.MRP
}

// ParsedLineItem is one structured line from a dealer bill. It exists only
// during ingestion and is never persisted as-is.
type ParsedLineItem struct {
	ItemName        string         `json:"itemName"`
	Brand           string         `json:"brand,omitempty"`
	Category        string         `json:"category,omitempty"`
	Quantity        float64        `json:"quantity"`
	Unit            string         `json:"unit,omitempty"`
	Specifications  Specifications `json:"specifications"`
	Price           Price          `json:"price"`
	HSN             string         `json:"hsn,omitempty"`
	Discount        float64        `json:"discount,omitempty"`
	TaxPercent      float64        `json:"taxPercent,omitempty"`
	ConfidenceScore float64        `json:"confidenceScore,omitempty"`
}

// ExtractedBill is the output of either extractor: dealer metadata plus the
// structured line items. RowCount reports how many raw rows or candidate items
// the extractor saw before validation dropped any.
type ExtractedBill struct {
	Dealer   DealerInfo       `json:"dealer"`
	Items    []ParsedLineItem `json:"items"`
	RowCount int              `json:"rowCount"`
}
