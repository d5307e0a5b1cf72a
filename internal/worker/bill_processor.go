package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/catalog"
	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/extract"
	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/models"
	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/queue"
	"go.uber.org/zap"
)

// JobQueue is the ingestion queue contract.
type JobQueue interface {
	Claim(ctx context.Context) (*queue.Job, error)
	Ack(ctx context.Context, jobID int64) error
	Nack(ctx context.Context, job *queue.Job, cause error) (requeued bool, err error)
}

// BillStore is the bill persistence contract the processor needs.
type BillStore interface {
	Get(ctx context.Context, billID int64) (*models.DealerBill, error)
	SetProcessing(ctx context.Context, billID int64) error
	Finalize(ctx context.Context, bill *models.DealerBill) error
}

// ObjectGetter fetches uploaded bill bytes from object storage.
type ObjectGetter interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// BillStructurer turns OCR text into a structured bill.
type BillStructurer interface {
	StructureBillText(ctx context.Context, ocrText string) (*models.ExtractedBill, error)
}

// BatchReconciler applies a bill's line items to the store catalog.
type BatchReconciler interface {
	ReconcileBatch(ctx context.Context, lines []models.ParsedLineItem, prov catalog.Provenance) catalog.BatchSummary
}

// ProcessorConfig tunes the ingestion worker.
type ProcessorConfig struct {
	PollInterval     time.Duration
	JobTimeout       time.Duration
	OCRConfidenceMin float64
	MaxPDFPages      int
}

// BillProcessor drives uploaded image and PDF bills through OCR, LLM
// structuring and catalog reconciliation, advancing each bill to exactly one
// terminal status.
//
// Delivery is at-least-once and retries are NOT idempotent: a bill that
// partially reconciled before a crash will re-run matching on redelivery and
// may double-increment quantities for already-applied rows. The queue's
// bounded attempts cap the blast radius; the change log records every
// applied increment for manual correction.
type BillProcessor struct {
	cfg        ProcessorConfig
	jobs       JobQueue
	bills      BillStore
	store      ObjectGetter
	ocr        extract.OCRClient
	structurer BillStructurer
	reconciler BatchReconciler
	logger     *zap.Logger

	mu             sync.RWMutex
	ctx            context.Context
	cancel         context.CancelFunc
	isRunning      bool
	processedCount int
	failedCount    int
}

// NewBillProcessor creates a new ingestion worker.
func NewBillProcessor(
	cfg ProcessorConfig,
	jobs JobQueue,
	bills BillStore,
	store ObjectGetter,
	ocr extract.OCRClient,
	structurer BillStructurer,
	reconciler BatchReconciler,
	logger *zap.Logger,
) *BillProcessor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 2 * time.Minute
	}
	if cfg.MaxPDFPages <= 0 {
		cfg.MaxPDFPages = 2
	}
	return &BillProcessor{
		cfg:        cfg,
		jobs:       jobs,
		bills:      bills,
		store:      store,
		ocr:        ocr,
		structurer: structurer,
		reconciler: reconciler,
		logger:     logger,
	}
}

// Name implements Worker.
func (p *BillProcessor) Name() string { return "bill-processor" }

// Start begins the polling loop.
func (p *BillProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.isRunning {
		p.mu.Unlock()
		return fmt.Errorf("bill processor already running")
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.isRunning = true
	p.mu.Unlock()

	p.logger.Info("BillProcessor started",
		zap.Duration("poll_interval", p.cfg.PollInterval),
		zap.Float64("ocr_confidence_min", p.cfg.OCRConfidenceMin))

	go p.pollLoop()
	return nil
}

// Stop terminates the polling loop. A job already in flight runs to its
// terminal state; there is no mid-flight cancellation beyond the job
// timeout.
func (p *BillProcessor) Stop() {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return
	}
	p.isRunning = false
	p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}

	p.logger.Info("BillProcessor stopped",
		zap.Int("processed_count", p.processedCount),
		zap.Int("failed_count", p.failedCount))
}

func (p *BillProcessor) pollLoop() {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.drainQueue()
		}
	}
}

// drainQueue claims and runs jobs until the queue has nothing due.
func (p *BillProcessor) drainQueue() {
	for {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		job, err := p.jobs.Claim(p.ctx)
		if err != nil {
			p.logger.Error("Failed to claim job", zap.Error(err))
			return
		}
		if job == nil {
			return
		}
		p.runJob(job)
	}
}

// runJob executes one claimed job and settles it with the queue.
func (p *BillProcessor) runJob(job *queue.Job) {
	err := p.processJob(job)
	if err == nil {
		if ackErr := p.jobs.Ack(p.ctx, job.ID); ackErr != nil {
			p.logger.Error("Failed to ack job",
				zap.Int64("job_id", job.ID),
				zap.Error(ackErr))
		}
		p.mu.Lock()
		p.processedCount++
		p.mu.Unlock()
		return
	}

	p.mu.Lock()
	p.failedCount++
	p.mu.Unlock()
	p.logger.Warn("Bill processing attempt failed",
		zap.Int64("job_id", job.ID),
		zap.Int64("bill_id", job.BillID),
		zap.Int("attempt", job.Attempts),
		zap.Error(err))

	requeued, nackErr := p.jobs.Nack(p.ctx, job, err)
	if nackErr != nil {
		p.logger.Error("Failed to nack job",
			zap.Int64("job_id", job.ID),
			zap.Error(nackErr))
		return
	}
	if !requeued {
		// Retries exhausted: the bill stays failed permanently. Inventory
		// mutations already applied by earlier attempts are kept; the
		// change log is the audit trail for manual correction.
		p.failBill(job.BillID, err)
	}
}

// processJob runs the ingestion pipeline for one bill. A nil return means
// the bill reached a terminal status and the job can be acked; an error
// return means a retryable infrastructure failure.
func (p *BillProcessor) processJob(job *queue.Job) error {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.JobTimeout)
	defer cancel()

	bill, err := p.bills.Get(ctx, job.BillID)
	if err != nil {
		return fmt.Errorf("failed to load bill: %w", err)
	}
	if models.IsTerminalBillStatus(bill.Status) {
		// Stale redelivery after a crash between finalize and ack.
		p.logger.Info("Skipping already-finalized bill",
			zap.Int64("bill_id", bill.ID),
			zap.String("status", bill.Status))
		return nil
	}

	if err := p.bills.SetProcessing(ctx, bill.ID); err != nil {
		return fmt.Errorf("failed to mark bill processing: %w", err)
	}

	data, err := p.store.Get(ctx, job.StorageKey)
	if err != nil {
		return fmt.Errorf("failed to fetch bill file: %w", err)
	}

	text, confidence, err := p.recognize(ctx, bill, data)
	if err != nil {
		return err
	}

	bill.ExtractedText = text
	bill.Meta.OCRConfidence = confidence

	if confidence < p.cfg.OCRConfidenceMin {
		p.logger.Info("OCR confidence below threshold, routing to manual review",
			zap.Int64("bill_id", bill.ID),
			zap.Float64("confidence", confidence))
		bill.Status = models.BillStatusManualReviewNeeded
		bill.Meta.Error = "Low OCR quality"
		return p.bills.Finalize(ctx, bill)
	}

	extracted, err := p.structurer.StructureBillText(ctx, text)
	if err != nil {
		if errors.Is(err, extract.ErrStructuring) {
			bill.Status = models.BillStatusParsingFailed
			bill.Meta.Error = err.Error()
			return p.bills.Finalize(ctx, bill)
		}
		return fmt.Errorf("structuring call failed: %w", err)
	}
	if len(extracted.Items) == 0 {
		bill.Status = models.BillStatusParsingFailed
		bill.Meta.Error = "No items extracted"
		return p.bills.Finalize(ctx, bill)
	}

	summary := p.reconciler.ReconcileBatch(ctx, extracted.Items, catalog.Provenance{
		StoreID: job.StoreID,
		Actor:   job.UserID,
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

	if err := p.bills.Finalize(ctx, bill); err != nil {
		return fmt.Errorf("failed to finalize bill: %w", err)
	}

	p.logger.Info("Bill processed",
		zap.Int64("bill_id", bill.ID),
		zap.Int("items_created", summary.Created),
		zap.Int("items_updated", summary.Updated),
		zap.Int("items_failed", summary.Failed))
	return nil
}

// recognize OCRs the uploaded file. PDF bills are rasterized page by page;
// image bills are recognized directly.
func (p *BillProcessor) recognize(ctx context.Context, bill *models.DealerBill, data []byte) (string, float64, error) {
	pages := [][]byte{data}
	if bill.BillType == models.BillTypePDF {
		rendered, err := extract.RenderPDFPages(data, p.cfg.MaxPDFPages)
		if err != nil {
			return "", 0, fmt.Errorf("failed to render PDF: %w", err)
		}
		pages = rendered
	}

	var (
		texts   []string
		confSum float64
	)
	for i, page := range pages {
		result, err := p.ocr.Recognize(ctx, page)
		if err != nil {
			return "", 0, fmt.Errorf("OCR failed on page %d: %w", i+1, err)
		}
		texts = append(texts, result.Text)
		confSum += result.Confidence
	}

	return strings.Join(texts, "\n\n"), confSum / float64(len(pages)), nil
}

// failBill writes the permanent failure outcome after retries exhaust.
func (p *BillProcessor) failBill(billID int64, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	bill, err := p.bills.Get(ctx, billID)
	if err != nil {
		p.logger.Error("Failed to load bill for failure update",
			zap.Int64("bill_id", billID),
			zap.Error(err))
		return
	}
	if models.IsTerminalBillStatus(bill.Status) {
		return
	}

	bill.Status = models.BillStatusFailed
	bill.Meta.Error = cause.Error()
	if err := p.bills.Finalize(ctx, bill); err != nil {
		p.logger.Error("Failed to mark bill failed",
			zap.Int64("bill_id", billID),
			zap.Error(err))
	}
}

// ProcessNow drains the queue immediately (for testing).
func (p *BillProcessor) ProcessNow(ctx context.Context) {
	p.mu.Lock()
	if p.ctx == nil {
		p.ctx = ctx
	}
	p.mu.Unlock()
	p.drainQueue()
}
