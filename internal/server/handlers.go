package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/extract"
	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/repository"
	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/service"
)

// Tenant headers. Every /api/v1 request is scoped to one store.
const (
	headerStoreID = "X-Store-ID"
	headerUserID  = "X-User-ID"
)

// maxUploadBytes caps bill uploads at 20 MiB.
const maxUploadBytes = 20 << 20

// Response is the standard JSON envelope.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Handlers contains all HTTP request handlers.
type Handlers struct {
	bills     *service.BillService
	inventory *service.InventoryService
	logger    *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(bills *service.BillService, inventory *service.InventoryService, logger *zap.Logger) *Handlers {
	return &Handlers{
		bills:     bills,
		inventory: inventory,
		logger:    logger,
	}
}

// requireStore rejects API requests without a store scope. The user header is
// optional; unattributed writes are recorded as "anonymous".
func requireStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		storeID := c.GetHeader(headerStoreID)
		if storeID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, Response{
				Success: false,
				Error:   "missing " + headerStoreID + " header",
			})
			return
		}
		userID := c.GetHeader(headerUserID)
		if userID == "" {
			userID = "anonymous"
		}
		c.Set("storeID", storeID)
		c.Set("userID", userID)
		c.Next()
	}
}

func tenant(c *gin.Context) (storeID, userID string) {
	return c.GetString("storeID"), c.GetString("userID")
}

// HealthCheck handles GET /health.
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// UploadBill handles POST /api/v1/bills. Spreadsheets are ingested in the
// request and answered with 201; images and PDFs are queued and answered
// with 202.
func (h *Handlers) UploadBill(c *gin.Context) {
	storeID, userID := tenant(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "missing file field"})
		return
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, Response{Success: false, Error: "file too large"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "unreadable file"})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "failed to read file"})
		return
	}
	if len(content) > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, Response{Success: false, Error: "file too large"})
		return
	}

	result, err := h.bills.UploadBill(c.Request.Context(), storeID, userID,
		fileHeader.Filename, fileHeader.Header.Get("Content-Type"), content)
	if err != nil {
		h.respondUploadError(c, result, err)
		return
	}

	status := http.StatusCreated
	if result.Async {
		status = http.StatusAccepted
	}
	c.JSON(status, Response{Success: true, Data: result})
}

func (h *Handlers) respondUploadError(c *gin.Context, result *service.UploadResult, err error) {
	switch {
	case errors.Is(err, service.ErrUnsupportedFileType),
		errors.Is(err, service.ErrEmptyUpload):
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
	case errors.Is(err, extract.ErrMalformedWorkbook),
		errors.Is(err, extract.ErrMissingRequiredField):
		// The parsing_failed bill row is returned so the client can inspect it.
		c.JSON(http.StatusUnprocessableEntity, Response{
			Success: false,
			Data:    result,
			Error:   err.Error(),
		})
	default:
		h.logger.Error("Bill upload failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to process upload"})
	}
}

// GetBillStatus handles GET /api/v1/bills/:id/status.
func (h *Handlers) GetBillStatus(c *gin.Context) {
	storeID, _ := tenant(c)
	billID, ok := pathID(c)
	if !ok {
		return
	}

	status, err := h.bills.GetBillStatus(c.Request.Context(), billID, storeID)
	if err != nil {
		h.respondError(c, err, "failed to load bill")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: status})
}

// ListBills handles GET /api/v1/bills.
func (h *Handlers) ListBills(c *gin.Context) {
	storeID, _ := tenant(c)

	filter := repository.BillFilter{
		Status:   c.Query("status"),
		BillType: c.Query("type"),
		Limit:    queryInt(c, "limit", 20),
		Offset:   queryInt(c, "offset", 0),
	}

	bills, total, err := h.bills.ListBills(c.Request.Context(), storeID, filter)
	if err != nil {
		h.respondError(c, err, "failed to list bills")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{
		"bills": bills,
		"total": total,
	}})
}

// ListInventory handles GET /api/v1/inventory.
func (h *Handlers) ListInventory(c *gin.Context) {
	storeID, _ := tenant(c)

	items, total, err := h.inventory.List(c.Request.Context(), storeID,
		c.Query("status"), queryInt(c, "limit", 20), queryInt(c, "offset", 0))
	if err != nil {
		h.respondError(c, err, "failed to list inventory")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{
		"items": items,
		"total": total,
	}})
}

// GetInventoryItem handles GET /api/v1/inventory/:id.
func (h *Handlers) GetInventoryItem(c *gin.Context) {
	storeID, _ := tenant(c)
	itemID, ok := pathID(c)
	if !ok {
		return
	}

	item, err := h.inventory.Get(c.Request.Context(), itemID, storeID)
	if err != nil {
		h.respondError(c, err, "failed to load item")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: item})
}

// AdjustQuantity handles POST /api/v1/inventory/:id/adjust.
func (h *Handlers) AdjustQuantity(c *gin.Context) {
	storeID, userID := tenant(c)
	itemID, ok := pathID(c)
	if !ok {
		return
	}

	var req service.AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	item, err := h.inventory.AdjustQuantity(c.Request.Context(), itemID, storeID, userID, req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidAdjustment) {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
			return
		}
		h.respondError(c, err, "failed to adjust quantity")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: item})
}

// GetChangeLog handles GET /api/v1/inventory/:id/changelog.
func (h *Handlers) GetChangeLog(c *gin.Context) {
	storeID, _ := tenant(c)
	itemID, ok := pathID(c)
	if !ok {
		return
	}

	entries, err := h.inventory.GetChangeLog(c.Request.Context(), itemID, storeID, queryInt(c, "limit", 50))
	if err != nil {
		h.respondError(c, err, "failed to load change log")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"entries": entries}})
}

// respondError maps service errors to status codes with a generic message for
// unexpected failures.
func (h *Handlers) respondError(c *gin.Context, err error, fallback string) {
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "not found"})
		return
	}
	h.logger.Error(fallback, zap.Error(err))
	c.JSON(http.StatusInternalServerError, Response{Success: false, Error: fallback})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid id"})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
