package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/catalog"
	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/extract"
	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/models"
	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/queue"
)

type fakeJobQueue struct {
	jobs        []*queue.Job
	acked       []int64
	nacked      []int64
	maxAttempts int
}

func (f *fakeJobQueue) Claim(_ context.Context) (*queue.Job, error) {
	if len(f.jobs) == 0 {
		return nil, nil
	}
	job := f.jobs[0]
	f.jobs = f.jobs[1:]
	job.Attempts++
	return job, nil
}

func (f *fakeJobQueue) Ack(_ context.Context, jobID int64) error {
	f.acked = append(f.acked, jobID)
	return nil
}

func (f *fakeJobQueue) Nack(_ context.Context, job *queue.Job, _ error) (bool, error) {
	f.nacked = append(f.nacked, job.ID)
	if job.Attempts >= f.maxAttempts {
		return false, nil
	}
	f.jobs = append(f.jobs, job)
	return true, nil
}

type fakeBillStore struct {
	bills map[int64]*models.DealerBill
}

func (f *fakeBillStore) Get(_ context.Context, billID int64) (*models.DealerBill, error) {
	bill, ok := f.bills[billID]
	if !ok {
		return nil, errors.New("bill not found")
	}
	clone := *bill
	return &clone, nil
}

func (f *fakeBillStore) SetProcessing(_ context.Context, billID int64) error {
	bill := f.bills[billID]
	if models.IsTerminalBillStatus(bill.Status) {
		return errors.New("illegal transition")
	}
	bill.Status = models.BillStatusProcessing
	return nil
}

func (f *fakeBillStore) Finalize(_ context.Context, bill *models.DealerBill) error {
	current := f.bills[bill.ID]
	if models.IsTerminalBillStatus(current.Status) {
		return errors.New("illegal transition")
	}
	clone := *bill
	f.bills[bill.ID] = &clone
	return nil
}

type fakeObjectStore struct {
	data map[string][]byte
}

func (f *fakeObjectStore) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := f.data[key]
	if !ok {
		return nil, fmt.Errorf("no object for key %s", key)
	}
	return data, nil
}

type fakeOCR struct {
	text       string
	confidence float64
	err        error
}

func (f *fakeOCR) Recognize(_ context.Context, _ []byte) (*extract.OCRResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &extract.OCRResult{Text: f.text, Confidence: f.confidence}, nil
}

type fakeStructurer struct {
	bill *models.ExtractedBill
	err  error
}

func (f *fakeStructurer) StructureBillText(_ context.Context, _ string) (*models.ExtractedBill, error) {
	return f.bill, f.err
}

type fakeReconciler struct {
	summary  catalog.BatchSummary
	lastProv catalog.Provenance
}

func (f *fakeReconciler) ReconcileBatch(_ context.Context, _ []models.ParsedLineItem, prov catalog.Provenance) catalog.BatchSummary {
	f.lastProv = prov
	return f.summary
}

type pipelineFixture struct {
	processor  *BillProcessor
	jobs       *fakeJobQueue
	bills      *fakeBillStore
	ocr        *fakeOCR
	structurer *fakeStructurer
	reconciler *fakeReconciler
}

func newPipeline(t *testing.T) *pipelineFixture {
	t.Helper()

	jobs := &fakeJobQueue{maxAttempts: 3}
	bills := &fakeBillStore{bills: map[int64]*models.DealerBill{
		1: {ID: 1, StoreID: "store-1", BillType: models.BillTypeImage, Status: models.BillStatusPending},
	}}
	jobs.jobs = []*queue.Job{{
		ID: 10, BillID: 1, StoreID: "store-1", UserID: "user-1",
		StorageKey: "bills/store-1/key", MaxAttempts: 3,
	}}

	ocr := &fakeOCR{text: "ACME TRADERS\nTap X 10 500", confidence: 90}
	structurer := &fakeStructurer{bill: &models.ExtractedBill{
		Dealer: models.DealerInfo{DealerName: "Acme Traders", InvoiceDate: "2024-03-12", TotalAmount: 5000},
		Items: []models.ParsedLineItem{
			{ItemName: "Tap X", Brand: "Jaquar", Quantity: 10, Price: models.Price{MRP: 500}},
		},
	}}
	reconciler := &fakeReconciler{summary: catalog.BatchSummary{Created: 1, ItemIDs: []int64{100}}}

	processor := NewBillProcessor(
		ProcessorConfig{OCRConfidenceMin: 60},
		jobs, bills,
		&fakeObjectStore{data: map[string][]byte{"bills/store-1/key": []byte("jpeg bytes")}},
		ocr, structurer, reconciler,
		zap.NewNop(),
	)

	return &pipelineFixture{
		processor:  processor,
		jobs:       jobs,
		bills:      bills,
		ocr:        ocr,
		structurer: structurer,
		reconciler: reconciler,
	}
}

func TestProcessBillCompleted(t *testing.T) {
	f := newPipeline(t)

	f.processor.ProcessNow(context.Background())

	bill := f.bills.bills[1]
	assert.Equal(t, models.BillStatusCompleted, bill.Status)
	assert.Equal(t, "Acme Traders", bill.DealerName)
	assert.Equal(t, []int64{100}, bill.ItemsParsed)
	assert.Equal(t, 1, bill.Meta.ItemsCreated)
	assert.Equal(t, 1, bill.Meta.ItemsExtracted)
	assert.InDelta(t, 90.0, bill.Meta.OCRConfidence, 0.001)

	assert.Equal(t, []int64{10}, f.jobs.acked)
	assert.Empty(t, f.jobs.nacked)

	assert.Equal(t, "store-1", f.reconciler.lastProv.StoreID)
	assert.Equal(t, int64(1), f.reconciler.lastProv.BillID)
	assert.Equal(t, "Acme Traders", f.reconciler.lastProv.Dealer.Name)
}

func TestProcessBillLowConfidence(t *testing.T) {
	f := newPipeline(t)
	f.ocr.confidence = 59.9

	f.processor.ProcessNow(context.Background())

	bill := f.bills.bills[1]
	assert.Equal(t, models.BillStatusManualReviewNeeded, bill.Status)
	assert.InDelta(t, 59.9, bill.Meta.OCRConfidence, 0.001)
	assert.Equal(t, []int64{10}, f.jobs.acked, "manual review is terminal, job must ack")
}

func TestProcessBillConfidenceAtThreshold(t *testing.T) {
	f := newPipeline(t)
	f.ocr.confidence = 60

	f.processor.ProcessNow(context.Background())

	assert.Equal(t, models.BillStatusCompleted, f.bills.bills[1].Status,
		"confidence exactly at the threshold proceeds to structuring")
}

func TestProcessBillStructuringFailure(t *testing.T) {
	f := newPipeline(t)
	f.structurer.bill = nil
	f.structurer.err = fmt.Errorf("%w: response was prose", extract.ErrStructuring)

	f.processor.ProcessNow(context.Background())

	bill := f.bills.bills[1]
	assert.Equal(t, models.BillStatusParsingFailed, bill.Status)
	assert.Equal(t, []int64{10}, f.jobs.acked, "parse failure is terminal, not retryable")
}

func TestProcessBillNoItemsExtracted(t *testing.T) {
	f := newPipeline(t)
	f.structurer.bill = &models.ExtractedBill{
		Dealer: models.DealerInfo{DealerName: "Acme"},
	}

	f.processor.ProcessNow(context.Background())

	bill := f.bills.bills[1]
	assert.Equal(t, models.BillStatusParsingFailed, bill.Status)
	assert.Equal(t, "No items extracted", bill.Meta.Error)
}

func TestProcessBillTransientFailureRetries(t *testing.T) {
	f := newPipeline(t)
	f.ocr.err = errors.New("tesseract crashed")

	f.processor.ProcessNow(context.Background())
	// First attempt nacked and requeued; second claim fails the same way.
	require.NotEmpty(t, f.jobs.nacked)

	bill := f.bills.bills[1]
	assert.Equal(t, models.BillStatusFailed, bill.Status,
		"after retries exhaust the bill is permanently failed")
	assert.Contains(t, bill.Meta.Error, "tesseract crashed")
	assert.Empty(t, f.jobs.acked)
	assert.Len(t, f.jobs.nacked, 3, "bounded attempts")
}

func TestProcessBillSkipsFinalizedBill(t *testing.T) {
	f := newPipeline(t)
	f.bills.bills[1].Status = models.BillStatusCompleted

	f.processor.ProcessNow(context.Background())

	assert.Equal(t, []int64{10}, f.jobs.acked, "stale redelivery must ack without reprocessing")
	assert.Equal(t, models.BillStatusCompleted, f.bills.bills[1].Status)
}

func TestManagerLifecycle(t *testing.T) {
	logger := zap.NewNop()
	m := NewManager(logger)
	f := newPipeline(t)

	m.Register(f.processor)
	assert.Equal(t, 1, m.Count())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, m.StartAll(ctx))
	assert.Error(t, f.processor.Start(ctx), "double start must fail")

	require.NoError(t, m.Shutdown(context.Background()))
	// Stop is idempotent.
	f.processor.Stop()
}

type stuckWorker struct {
	block chan struct{}
}

func (w *stuckWorker) Start(context.Context) error { return nil }
func (w *stuckWorker) Stop()                       { <-w.block }
func (w *stuckWorker) Name() string                { return "stuck" }

func TestManagerShutdownDeadline(t *testing.T) {
	m := NewManager(zap.NewNop())
	w := &stuckWorker{block: make(chan struct{})}
	m.Register(w)
	defer close(w.block)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := m.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
