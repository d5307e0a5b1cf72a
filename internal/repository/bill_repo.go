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

// BillRepository handles dealer bill database operations. Status writes are
// guarded so the monotonic state machine holds: transient statuses can only
// move forward and terminal statuses are written exactly once.
type BillRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewBillRepository creates a new bill repository.
func NewBillRepository(db *sql.DB, logger *zap.Logger) *BillRepository {
	return &BillRepository{
		db:     db,
		logger: logger,
	}
}

const billColumns = `
	id, store_id, uploaded_by, bill_type, file_url, storage_key,
	original_file_name, status, dealer_name, dealer_gstin, invoice_number,
	invoice_date, total_amount, extracted_text, items_parsed, meta,
	uploaded_at, processed_at
`

// Create inserts the bill row and sets its ID and upload timestamp.
func (r *BillRepository) Create(ctx context.Context, bill *models.DealerBill) error {
	itemsParsed, meta, err := marshalBillJSON(bill)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO dealer_bills (
			store_id, uploaded_by, bill_type, file_url, storage_key,
			original_file_name, status, dealer_name, dealer_gstin, invoice_number,
			invoice_date, total_amount, extracted_text, items_parsed, meta,
			uploaded_at, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		bill.StoreID, bill.UploadedBy, bill.BillType, bill.FileURL, bill.StorageKey,
		bill.OriginalFileName, bill.Status, bill.DealerName, bill.DealerGSTIN, bill.InvoiceNumber,
		bill.InvoiceDate, bill.TotalAmount, bill.ExtractedText, itemsParsed, meta,
		now, bill.ProcessedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create dealer bill",
			zap.String("store_id", bill.StoreID),
			zap.String("file_name", bill.OriginalFileName),
			zap.Error(err))
		return fmt.Errorf("failed to create dealer bill: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	bill.ID = id
	bill.UploadedAt = now
	return nil
}

// GetByID loads one bill, store-scoped.
func (r *BillRepository) GetByID(ctx context.Context, billID int64, storeID string) (*models.DealerBill, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+billColumns+` FROM dealer_bills WHERE id = ? AND store_id = ?`,
		billID, storeID)

	bill, err := scanBill(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load dealer bill: %w", err)
	}
	return bill, nil
}

// Get loads one bill by ID without store scoping. Only the ingestion worker
// uses this; HTTP paths must use GetByID.
func (r *BillRepository) Get(ctx context.Context, billID int64) (*models.DealerBill, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+billColumns+` FROM dealer_bills WHERE id = ?`, billID)

	bill, err := scanBill(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load dealer bill: %w", err)
	}
	return bill, nil
}

// SetProcessing moves a bill to processing. Re-entry from processing is
// allowed so that a retried job can resume; terminal bills are never
// touched.
func (r *BillRepository) SetProcessing(ctx context.Context, billID int64) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE dealer_bills SET status = ?
		WHERE id = ? AND status IN (?, ?)
	`, models.BillStatusProcessing, billID, models.BillStatusPending, models.BillStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to set bill processing: %w", err)
	}
	return requireAffected(result)
}

// Finalize writes a terminal outcome: status, extraction results and
// diagnostics in one update. It refuses to touch a bill that already reached
// a terminal state, which keeps terminal transitions exactly-once.
func (r *BillRepository) Finalize(ctx context.Context, bill *models.DealerBill) error {
	if !models.IsTerminalBillStatus(bill.Status) {
		return fmt.Errorf("%w: finalize to non-terminal status %q", ErrIllegalTransition, bill.Status)
	}

	itemsParsed, meta, err := marshalBillJSON(bill)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	bill.ProcessedAt = &now
	result, err := r.db.ExecContext(ctx, `
		UPDATE dealer_bills SET
			status = ?, dealer_name = ?, dealer_gstin = ?, invoice_number = ?,
			invoice_date = ?, total_amount = ?, extracted_text = ?,
			items_parsed = ?, meta = ?, processed_at = ?
		WHERE id = ? AND status IN (?, ?)
	`,
		bill.Status, bill.DealerName, bill.DealerGSTIN, bill.InvoiceNumber,
		bill.InvoiceDate, bill.TotalAmount, bill.ExtractedText,
		itemsParsed, meta, now,
		bill.ID, models.BillStatusPending, models.BillStatusProcessing,
	)
	if err != nil {
		r.logger.Error("Failed to finalize bill",
			zap.Int64("bill_id", bill.ID),
			zap.String("status", bill.Status),
			zap.Error(err))
		return fmt.Errorf("failed to finalize bill: %w", err)
	}
	return requireAffected(result)
}

// BillFilter narrows List results.
type BillFilter struct {
	Status   string
	BillType string
	Limit    int
	Offset   int
}

// List returns a page of a store's bills, newest first.
func (r *BillRepository) List(ctx context.Context, storeID string, filter BillFilter) ([]*models.DealerBill, int, error) {
	where := `WHERE store_id = ?`
	args := []interface{}{storeID}
	if filter.Status != "" {
		where += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.BillType != "" {
		where += ` AND bill_type = ?`
		args = append(args, filter.BillType)
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM dealer_bills `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count dealer bills: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+billColumns+` FROM dealer_bills `+where+` ORDER BY uploaded_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query dealer bills: %w", err)
	}
	defer rows.Close()

	var bills []*models.DealerBill
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan dealer bill: %w", err)
		}
		bills = append(bills, bill)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate dealer bills: %w", err)
	}
	return bills, total, nil
}

func marshalBillJSON(bill *models.DealerBill) (itemsParsed, meta string, err error) {
	rawItems, err := json.Marshal(bill.ItemsParsed)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal items parsed: %w", err)
	}
	rawMeta, err := json.Marshal(bill.Meta)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal bill meta: %w", err)
	}
	return string(rawItems), string(rawMeta), nil
}

func scanBill(row rowScanner) (*models.DealerBill, error) {
	var (
		bill        models.DealerBill
		itemsParsed string
		meta        string
		processedAt sql.NullTime
	)
	err := row.Scan(
		&bill.ID, &bill.StoreID, &bill.UploadedBy, &bill.BillType, &bill.FileURL, &bill.StorageKey,
		&bill.OriginalFileName, &bill.Status, &bill.DealerName, &bill.DealerGSTIN, &bill.InvoiceNumber,
		&bill.InvoiceDate, &bill.TotalAmount, &bill.ExtractedText, &itemsParsed, &meta,
		&bill.UploadedAt, &processedAt,
	)
	if err != nil {
		return nil, err
	}
	if itemsParsed != "" && itemsParsed != "null" {
		if err := json.Unmarshal([]byte(itemsParsed), &bill.ItemsParsed); err != nil {
			return nil, fmt.Errorf("failed to unmarshal items parsed: %w", err)
		}
	}
	if meta != "" && meta != "null" {
		if err := json.Unmarshal([]byte(meta), &bill.Meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal bill meta: %w", err)
		}
	}
	if processedAt.Valid {
		t := processedAt.Time
		bill.ProcessedAt = &t
	}
	return &bill, nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrIllegalTransition
	}
	return nil
}
