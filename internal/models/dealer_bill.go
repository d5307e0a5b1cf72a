package models

import "time"

// Bill type constants
const (
	BillTypeImage = "image"
	BillTypeExcel = "excel"
	BillTypePDF   = "pdf"
	BillTypeCSV   = "csv"
)

// Bill status constants. pending and processing are transient; the other
// four are terminal and never revert.
const (
	BillStatusPending            = "pending"
	BillStatusProcessing         = "processing"
	BillStatusCompleted          = "completed"
	BillStatusFailed             = "failed"
	BillStatusManualReviewNeeded = "manual_review_needed"
	BillStatusParsingFailed      = "parsing_failed"
)

// IsTerminalBillStatus reports whether no further automatic transition may
// occur from the given status.
func IsTerminalBillStatus(status string) bool {
	switch status {
	case BillStatusCompleted, BillStatusFailed, BillStatusManualReviewNeeded, BillStatusParsingFailed:
		return true
	}
	return false
}

// canTransitionBillStatus documents the monotonic bill state machine:
// pending -> processing -> {completed | manual_review_needed | parsing_failed | failed}.
// A pending bill may also jump straight to a terminal state (the synchronous
// spreadsheet path and queue-exhaustion failures do this). The repository
// enforces the same policy with status guards on its UPDATEs; this function
// pins the policy down for tests.
func canTransitionBillStatus(from, to string) bool {
	if from == to {
		return false
	}
	if IsTerminalBillStatus(from) {
		return false
	}
	switch from {
	case BillStatusPending:
		return to == BillStatusProcessing || IsTerminalBillStatus(to)
	case BillStatusProcessing:
		return IsTerminalBillStatus(to)
	}
	return false
}

// BillMeta carries free-form processing diagnostics on a bill.
type BillMeta struct {
	OCRConfidence  float64 `json:"ocrConfidence,omitempty"`
	ItemsExtracted int     `json:"itemsExtracted,omitempty"`
	ItemsSaved     int     `json:"itemsSaved,omitempty"`
	ItemsCreated   int     `json:"itemsCreated,omitempty"`
	ItemsUpdated   int     `json:"itemsUpdated,omitempty"`
	ItemsFailed    int     `json:"itemsFailed,omitempty"`
	FileSize       int64   `json:"fileSize,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// DealerBill is the persistent record of one uploaded purchase bill. Exactly
// one row exists per upload and it ends in exactly one terminal state.
type DealerBill struct {
	ID               int64      `json:"id"`
	StoreID          string     `json:"store_id"`
	UploadedBy       string     `json:"uploaded_by"`
	BillType         string     `json:"bill_type"`
	FileURL          string     `json:"file_url"`
	StorageKey       string     `json:"storage_key,omitempty"`
	OriginalFileName string     `json:"original_file_name"`
	Status           string     `json:"status"`
	DealerName       string     `json:"dealer_name,omitempty"`
	DealerGSTIN      string     `json:"dealer_gstin,omitempty"`
	InvoiceNumber    string     `json:"invoice_number,omitempty"`
	InvoiceDate      string     `json:"invoice_date,omitempty"`
	TotalAmount      float64    `json:"total_amount,omitempty"`
	ExtractedText    string     `json:"extracted_text,omitempty"`
	ItemsParsed      []int64    `json:"items_parsed,omitempty"`
	Meta             BillMeta   `json:"meta"`
	UploadedAt       time.Time  `json:"uploaded_at"`
	ProcessedAt      *time.Time `json:"processed_at,omitempty"`
}
