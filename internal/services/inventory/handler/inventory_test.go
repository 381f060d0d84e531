package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"branchline-system/internal/database/models"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := models.Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func setupRouter(db *gorm.DB, role, branchID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewInventoryHandler(db, nil)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("staff_id", int64(1))
		c.Set("role", role)
		c.Set("branch_id", branchID)
		c.Next()
	})
	r.POST("/inventory", h.AddItem)
	r.GET("/inventory/:branch_id", h.ListItems)
	r.GET("/inventory/:branch_id/:pid", h.GetItem)
	r.PUT("/inventory/:branch_id/:pid", h.UpdateItem)
	r.POST("/inventory/:branch_id/:pid/adjust", h.AdjustQuantity)
	r.DELETE("/inventory/:branch_id/:pid", h.RemoveItem)
	return r
}

func seedBranch(t *testing.T, db *gorm.DB, branchID string) {
	t.Helper()
	if err := db.Create(&models.Branch{
		ID:         branchID,
		BranchName: "Branch " + branchID,
		IsActive:   true,
	}).Error; err != nil {
		t.Fatalf("failed to seed branch: %v", err)
	}
}

func doRequest(t *testing.T, r *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return w, env
}

func addItemBody(branchID, pid, price string, quantity int32) map[string]interface{} {
	return map[string]interface{}{
		"branch_id": branchID,
		"pid":       pid,
		"name":      "Item " + pid,
		"brand":     "Acme",
		"category":  "general",
		"price":     price,
		"quantity":  quantity,
	}
}

func TestAddItemAndDuplicateSKU(t *testing.T) {
	db := setupTestDB(t)
	seedBranch(t, db, "BR1")
	r := setupRouter(db, models.RoleStaff, "BR1")

	w, env := doRequest(t, r, http.MethodPost, "/inventory", addItemBody("BR1", "P1", "99.9", 10))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var item models.InventoryItem
	if err := json.Unmarshal(env.Data, &item); err != nil {
		t.Fatalf("failed to decode item: %v", err)
	}
	if item.Price != "99.90" {
		t.Errorf("price = %s, want 99.90", item.Price)
	}

	w, env = doRequest(t, r, http.MethodPost, "/inventory", addItemBody("BR1", "P1", "50.00", 1))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on duplicate, got %d: %s", w.Code, w.Body.String())
	}
	if env.Error != "DUPLICATE_SKU" {
		t.Errorf("error = %s, want DUPLICATE_SKU", env.Error)
	}
}

func TestSamePidAcrossBranches(t *testing.T) {
	db := setupTestDB(t)
	seedBranch(t, db, "BR1")
	seedBranch(t, db, "BR2")
	r := setupRouter(db, models.RoleSuperadmin, "")

	w, _ := doRequest(t, r, http.MethodPost, "/inventory", addItemBody("BR1", "P1", "10.00", 5))
	if w.Code != http.StatusCreated {
		t.Fatalf("BR1 add: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	w, _ = doRequest(t, r, http.MethodPost, "/inventory", addItemBody("BR2", "P1", "12.00", 7))
	if w.Code != http.StatusCreated {
		t.Fatalf("BR2 add: expected 201, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAddItemUnknownBranch(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db, models.RoleSuperadmin, "")

	w, env := doRequest(t, r, http.MethodPost, "/inventory", addItemBody("GHOST", "P1", "10.00", 5))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
	if env.Error != "NOT_FOUND" {
		t.Errorf("error = %s, want NOT_FOUND", env.Error)
	}
}

func TestAdjustQuantity(t *testing.T) {
	db := setupTestDB(t)
	seedBranch(t, db, "BR1")
	r := setupRouter(db, models.RoleStaff, "BR1")
	doRequest(t, r, http.MethodPost, "/inventory", addItemBody("BR1", "P1", "10.00", 5))

	w, env := doRequest(t, r, http.MethodPost, "/inventory/BR1/P1/adjust",
		map[string]interface{}{"delta": -3})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var item models.InventoryItem
	if err := json.Unmarshal(env.Data, &item); err != nil {
		t.Fatalf("failed to decode item: %v", err)
	}
	if item.Quantity != 2 {
		t.Errorf("quantity = %d, want 2", item.Quantity)
	}

	w, env = doRequest(t, r, http.MethodPost, "/inventory/BR1/P1/adjust",
		map[string]interface{}{"delta": -5})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on over-draw, got %d: %s", w.Code, w.Body.String())
	}
	if env.Error != "INSUFFICIENT_STOCK" {
		t.Errorf("error = %s, want INSUFFICIENT_STOCK", env.Error)
	}

	w, env = doRequest(t, r, http.MethodPost, "/inventory/BR1/NOPE/adjust",
		map[string]interface{}{"delta": -1})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown pid, got %d: %s", w.Code, w.Body.String())
	}
	if env.Error != "NOT_FOUND" {
		t.Errorf("error = %s, want NOT_FOUND", env.Error)
	}
}

func TestUpdateItemFields(t *testing.T) {
	db := setupTestDB(t)
	seedBranch(t, db, "BR1")
	r := setupRouter(db, models.RoleStaff, "BR1")
	doRequest(t, r, http.MethodPost, "/inventory", addItemBody("BR1", "P1", "10.00", 5))

	w, env := doRequest(t, r, http.MethodPut, "/inventory/BR1/P1",
		map[string]interface{}{"price": "12.5", "name": "Renamed"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var item models.InventoryItem
	if err := json.Unmarshal(env.Data, &item); err != nil {
		t.Fatalf("failed to decode item: %v", err)
	}
	if item.Price != "12.50" {
		t.Errorf("price = %s, want 12.50", item.Price)
	}
	if item.Name != "Renamed" {
		t.Errorf("name = %s, want Renamed", item.Name)
	}
	if item.Quantity != 5 {
		t.Errorf("quantity = %d, want 5 (untouched)", item.Quantity)
	}

	w, env = doRequest(t, r, http.MethodPut, "/inventory/BR1/P1",
		map[string]interface{}{"price": "-1"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative price, got %d", w.Code)
	}
	if env.Error != "VALIDATION" {
		t.Errorf("error = %s, want VALIDATION", env.Error)
	}
}

func TestListItemsSearchAndPagination(t *testing.T) {
	db := setupTestDB(t)
	seedBranch(t, db, "BR1")
	r := setupRouter(db, models.RoleStaff, "BR1")
	doRequest(t, r, http.MethodPost, "/inventory", addItemBody("BR1", "P1", "10.00", 5))
	doRequest(t, r, http.MethodPost, "/inventory", addItemBody("BR1", "P2", "10.00", 5))
	doRequest(t, r, http.MethodPost, "/inventory", addItemBody("BR1", "Q1", "10.00", 5))

	w, env := doRequest(t, r, http.MethodGet, "/inventory/BR1?search=P", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var items []models.InventoryItem
	if err := json.Unmarshal(env.Data, &items); err != nil {
		t.Fatalf("failed to decode items: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("search result count = %d, want 2", len(items))
	}

	w, env = doRequest(t, r, http.MethodGet, "/inventory/BR1?page=1&page_size=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if err := json.Unmarshal(env.Data, &items); err != nil {
		t.Fatalf("failed to decode items: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("page result count = %d, want 2", len(items))
	}
	var meta struct {
		Total int64 `json:"total"`
	}
	if err := json.Unmarshal(env.Meta, &meta); err != nil {
		t.Fatalf("failed to decode meta: %v", err)
	}
	if meta.Total != 3 {
		t.Errorf("meta total = %d, want 3", meta.Total)
	}

	w, env = doRequest(t, r, http.MethodGet, "/inventory/BR1?page=2&page_size=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if err := json.Unmarshal(env.Data, &items); err != nil {
		t.Fatalf("failed to decode items: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("last page count = %d, want 1", len(items))
	}

	w, env = doRequest(t, r, http.MethodGet, "/inventory/BR1?page=5&page_size=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if err := json.Unmarshal(env.Data, &items); err != nil {
		t.Fatalf("failed to decode items: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("past-the-end page count = %d, want 0", len(items))
	}
}

func TestRemoveItem(t *testing.T) {
	db := setupTestDB(t)
	seedBranch(t, db, "BR1")
	r := setupRouter(db, models.RoleStaff, "BR1")
	doRequest(t, r, http.MethodPost, "/inventory", addItemBody("BR1", "P1", "10.00", 5))

	w, _ := doRequest(t, r, http.MethodDelete, "/inventory/BR1/P1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	w, env := doRequest(t, r, http.MethodDelete, "/inventory/BR1/P1", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on repeated delete, got %d", w.Code)
	}
	if env.Error != "NOT_FOUND" {
		t.Errorf("error = %s, want NOT_FOUND", env.Error)
	}
}

func TestCrossBranchInventoryDenied(t *testing.T) {
	db := setupTestDB(t)
	seedBranch(t, db, "BR1")
	r := setupRouter(db, models.RoleStaff, "BR2")

	w, env := doRequest(t, r, http.MethodGet, "/inventory/BR1", nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body.String())
	}
	if env.Error != "ACCESS_DENIED" {
		t.Errorf("error = %s, want ACCESS_DENIED", env.Error)
	}
}
