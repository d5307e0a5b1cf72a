package server

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/models"
	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/repository"
	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/service"
)

func newInventoryRouter(t *testing.T) (*gin.Engine, *models.InventoryItem) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	require.NoError(t, err)
	// An in-memory database exists per connection; a second pooled
	// connection would see an empty schema.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile(filepath.Join("..", "..", "migrations", "0001_init.sql"))
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)

	items := repository.NewInventoryRepository(db, zap.NewNop())
	changes := repository.NewChangeLogRepository(db, zap.NewNop())
	inventory := service.NewInventoryService(items, changes, zap.NewNop())
	h := NewHandlers(nil, inventory, zap.NewNop())

	router := gin.New()
	group := router.Group("/api/v1", requireStore())
	group.POST("/inventory/:id/adjust", h.AdjustQuantity)

	item := &models.InventoryItem{
		StoreID:  "store-1",
		ItemName: "tap x",
		Brand:    "jaquar",
		Quantity: 10,
		Unit:     "pcs",
		Price:    models.Price{MRP: 550, SellingPrice: 500},
		Status:   models.ItemStatusActive,
	}
	require.NoError(t, items.Create(context.Background(), item))
	return router, item
}

func postAdjust(router *gin.Engine, itemID int64, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/api/v1/inventory/%d/adjust", itemID), bytes.NewBufferString(body))
	req.Header.Set(headerStoreID, "store-1")
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAdjustQuantityHandlerSetToZero(t *testing.T) {
	router, item := newInventoryRouter(t)

	w := postAdjust(router, item.ID, `{"mode":"set","quantity":0,"reason":"stock audit"}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"quantity":0`)
}

func TestAdjustQuantityHandlerMissingQuantity(t *testing.T) {
	router, item := newInventoryRouter(t)

	w := postAdjust(router, item.ID, `{"mode":"set"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdjustQuantityHandlerDecreaseBelowZero(t *testing.T) {
	router, item := newInventoryRouter(t)

	w := postAdjust(router, item.ID, `{"mode":"decrease","quantity":100}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "insufficient stock is a client error, not a 500")
}

func TestAdjustQuantityHandlerUnknownItem(t *testing.T) {
	router, _ := newInventoryRouter(t)

	w := postAdjust(router, 9999, `{"mode":"increase","quantity":1}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
