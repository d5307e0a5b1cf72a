package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/catalog"
	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/extract"
	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/models"
	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/queue"
	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/repository"
	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/storage"
	"go.uber.org/zap"
)

// Service-level errors surfaced to the HTTP layer.
var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrEmptyUpload         = errors.New("uploaded file is empty")
)

// UploadResult is the outcome of one bill upload. Async is true when the bill
// was queued for background processing rather than ingested inline.
type UploadResult struct {
	Bill    *models.DealerBill    `json:"bill"`
	Async   bool                  `json:"async"`
	Summary *catalog.BatchSummary `json:"summary,omitempty"`
	Items   []*ItemPreview        `json:"items,omitempty"`
}

// ItemPreview is the trimmed inventory view embedded in bill responses.
type ItemPreview struct {
	ID       int64        `json:"id"`
	ItemName string       `json:"item_name"`
	Brand    string       `json:"brand"`
	Quantity float64      `json:"quantity"`
	Unit     string       `json:"unit"`
	Price    models.Price `json:"price"`
}

// BillStatus is the polling view of a bill.
type BillStatus struct {
	Bill  *models.DealerBill `json:"bill"`
	Items []*ItemPreview     `json:"items,omitempty"`
}

// BillService orchestrates bill uploads. Spreadsheets are ingested
// synchronously in the request; images and PDFs are stored, recorded as
// pending and handed to the durable queue.
type BillService struct {
	bills      *repository.BillRepository
	items      *repository.InventoryRepository
	store      storage.ObjectStore
	jobs       *queue.Queue
	reconciler *catalog.Reconciler
	logger     *zap.Logger
}

// NewBillService creates a new bill service.
func NewBillService(
	bills *repository.BillRepository,
	items *repository.InventoryRepository,
	store storage.ObjectStore,
	jobs *queue.Queue,
	reconciler *catalog.Reconciler,
	logger *zap.Logger,
) *BillService {
	return &BillService{
		bills:      bills,
		items:      items,
		store:      store,
		jobs:       jobs,
		reconciler: reconciler,
		logger:     logger,
	}
}

// billTypeFor maps a file extension to the bill type, or "" when unsupported.
func billTypeFor(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".jpg", ".jpeg", ".png", ".webp":
		return models.BillTypeImage
	case ".pdf":
		return models.BillTypePDF
	case ".xls", ".xlsx":
		return models.BillTypeExcel
	}
	return ""
}

// UploadBill accepts one dealer bill file for a store. The uploaded bytes are
// always persisted to object storage first so that async processing and
// manual review can re-read the original file.
func (s *BillService) UploadBill(ctx context.Context, storeID, userID, fileName, contentType string, content []byte) (*UploadResult, error) {
	if len(content) == 0 {
		return nil, ErrEmptyUpload
	}

	billType := billTypeFor(fileName)
	if billType == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, filepath.Ext(fileName))
	}

	key := storage.BillKey(storeID, fileName)
	stored, err := s.store.Put(ctx, key, content, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to store uploaded file: %w", err)
	}

	if billType == models.BillTypeExcel {
		return s.ingestSpreadsheet(ctx, storeID, userID, fileName, stored, content)
	}
	return s.enqueueBill(ctx, storeID, userID, fileName, billType, stored, int64(len(content)))
}

// ingestSpreadsheet parses and reconciles a workbook inline. The bill row is
// created before reconciliation so change-log rows reference a real bill ID,
// then finalized to its terminal status in the same request.
func (s *BillService) ingestSpreadsheet(ctx context.Context, storeID, userID, fileName string, stored *storage.StoredObject, content []byte) (*UploadResult, error) {
	extracted, parseErr := extract.ParseDealerWorkbook(bytes.NewReader(content))

	bill := &models.DealerBill{
		StoreID:          storeID,
		UploadedBy:       userID,
		BillType:         models.BillTypeExcel,
		FileURL:          stored.URL,
		StorageKey:       stored.Key,
		OriginalFileName: fileName,
		Meta:             models.BillMeta{FileSize: stored.Size},
	}

	if parseErr != nil {
		bill.Status = models.BillStatusParsingFailed
		bill.Meta.Error = parseErr.Error()
		if err := s.bills.Create(ctx, bill); err != nil {
			return nil, err
		}
		s.logger.Warn("Spreadsheet parsing failed",
			zap.String("store_id", storeID),
			zap.String("file_name", fileName),
			zap.Error(parseErr))
		return &UploadResult{Bill: bill}, parseErr
	}

	bill.Status = models.BillStatusPending
	if err := s.bills.Create(ctx, bill); err != nil {
		return nil, err
	}

	summary := s.reconciler.ReconcileBatch(ctx, extracted.Items, catalog.Provenance{
		StoreID: storeID,
		Actor:   userID,
		BillID:  bill.ID,
		Dealer: models.DealerRef{
			Name:  extracted.Dealer.DealerName,
			GSTIN: extracted.Dealer.DealerGSTIN,
		},
	})

	bill.Status = models.BillStatusCompleted
	bill.DealerName = extracted.Dealer.DealerName
	bill.DealerGSTIN = extracted.Dealer.DealerGSTIN
	bill.InvoiceNumber = extracted.Dealer.InvoiceNumber
	bill.InvoiceDate = extracted.Dealer.InvoiceDate
	bill.TotalAmount = extracted.Dealer.TotalAmount
	bill.ItemsParsed = summary.ItemIDs
	bill.Meta.ItemsExtracted = len(extracted.Items)
	bill.Meta.ItemsSaved = len(summary.ItemIDs)
	bill.Meta.ItemsCreated = summary.Created
	bill.Meta.ItemsUpdated = summary.Updated
	bill.Meta.ItemsFailed = summary.Failed

	if err := s.bills.Finalize(ctx, bill); err != nil {
		return nil, fmt.Errorf("failed to finalize spreadsheet bill: %w", err)
	}

	previews, err := s.itemPreviews(ctx, summary.ItemIDs, storeID)
	if err != nil {
		s.logger.Warn("Failed to load item previews",
			zap.Int64("bill_id", bill.ID),
			zap.Error(err))
	}

	s.logger.Info("Spreadsheet bill ingested",
		zap.Int64("bill_id", bill.ID),
		zap.String("store_id", storeID),
		zap.Int("items_created", summary.Created),
		zap.Int("items_updated", summary.Updated),
		zap.Int("items_failed", summary.Failed))

	return &UploadResult{Bill: bill, Summary: &summary, Items: previews}, nil
}

// enqueueBill records the bill as pending and puts an ingestion job on the
// durable queue.
func (s *BillService) enqueueBill(ctx context.Context, storeID, userID, fileName, billType string, stored *storage.StoredObject, size int64) (*UploadResult, error) {
	bill := &models.DealerBill{
		StoreID:          storeID,
		UploadedBy:       userID,
		BillType:         billType,
		FileURL:          stored.URL,
		StorageKey:       stored.Key,
		OriginalFileName: fileName,
		Status:           models.BillStatusPending,
		Meta:             models.BillMeta{FileSize: size},
	}
	if err := s.bills.Create(ctx, bill); err != nil {
		return nil, err
	}

	if err := s.jobs.Enqueue(ctx, &queue.Job{
		BillID:     bill.ID,
		StoreID:    storeID,
		UserID:     userID,
		StorageKey: stored.Key,
	}); err != nil {
		// The bill row stays pending; without a job it will never advance, so
		// surface the failure instead of returning a bill nobody will process.
		return nil, fmt.Errorf("failed to enqueue bill %d: %w", bill.ID, err)
	}

	s.logger.Info("Bill queued for processing",
		zap.Int64("bill_id", bill.ID),
		zap.String("store_id", storeID),
		zap.String("bill_type", billType))

	return &UploadResult{Bill: bill, Async: true}, nil
}

// GetBillStatus returns a bill with previews of the inventory rows it
// produced.
func (s *BillService) GetBillStatus(ctx context.Context, billID int64, storeID string) (*BillStatus, error) {
	bill, err := s.bills.GetByID(ctx, billID, storeID)
	if err != nil {
		return nil, err
	}

	previews, err := s.itemPreviews(ctx, bill.ItemsParsed, storeID)
	if err != nil {
		s.logger.Warn("Failed to load item previews",
			zap.Int64("bill_id", billID),
			zap.Error(err))
		previews = nil
	}
	return &BillStatus{Bill: bill, Items: previews}, nil
}

// ListBills returns a page of a store's bills.
func (s *BillService) ListBills(ctx context.Context, storeID string, filter repository.BillFilter) ([]*models.DealerBill, int, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	return s.bills.List(ctx, storeID, filter)
}

func (s *BillService) itemPreviews(ctx context.Context, itemIDs []int64, storeID string) ([]*ItemPreview, error) {
	items, err := s.items.GetByIDs(ctx, itemIDs, storeID)
	if err != nil {
		return nil, err
	}
	previews := make([]*ItemPreview, 0, len(items))
	for _, item := range items {
		previews = append(previews, &ItemPreview{
			ID:       item.ID,
			ItemName: item.ItemName,
			Brand:    item.Brand,
			Quantity: item.Quantity,
			Unit:     item.Unit,
			Price:    item.Price,
		})
	}
	return previews, nil
}
