package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"branchline-system/internal/database/models"
)

type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
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

func setupRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewBranchHandler(db, nil)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("staff_id", int64(1))
		c.Set("role", models.RoleSuperadmin)
		c.Set("branch_id", "")
		c.Next()
	})
	r.POST("/branches", h.CreateBranch)
	r.GET("/branches", h.ListBranches)
	r.GET("/branches/:branch_id", h.GetBranch)
	r.DELETE("/branches/:branch_id", h.DeleteBranch)
	return r
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

func TestCreateBranchAndDuplicate(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)

	body := map[string]interface{}{"branch_id": "BR1", "branch_name": "Main Street"}
	w, _ := doRequest(t, r, http.MethodPost, "/branches", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w, env := doRequest(t, r, http.MethodPost, "/branches", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on duplicate, got %d", w.Code)
	}
	if env.Error != "DUPLICATE_BRANCH" {
		t.Errorf("error = %s, want DUPLICATE_BRANCH", env.Error)
	}
}

func TestDeleteBranchCascadesInventoryKeepsBills(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)

	if err := db.Create(&models.Branch{ID: "BR1", BranchName: "Main Street", IsActive: true}).Error; err != nil {
		t.Fatalf("failed to seed branch: %v", err)
	}
	if err := db.Create(&models.InventoryItem{
		BranchID: "BR1", Pid: "P1", Name: "Item P1", Price: "10.00", Quantity: 5,
	}).Error; err != nil {
		t.Fatalf("failed to seed item: %v", err)
	}
	if err := db.Create(&models.Bill{
		BillNumber: "BR1-1-1", BranchID: "BR1", BranchName: "Main Street",
		StaffID: 1, BillDate: time.Now(),
		CustomerName: "Asha Rao", CustomerPhone: "9876500000",
		GstRate: "18.00", Discount: "0.00",
		Subtotal: "10.00", DiscountAmount: "0.00", TaxableAmount: "10.00",
		GstAmount: "1.80", Total: "11.80",
		PaymentMethod: "Cash", Status: models.BillStatusCompleted,
	}).Error; err != nil {
		t.Fatalf("failed to seed bill: %v", err)
	}

	w, _ := doRequest(t, r, http.MethodDelete, "/branches/BR1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var itemCount, billCount int64
	db.Model(&models.InventoryItem{}).Where("branch_id = ?", "BR1").Count(&itemCount)
	db.Model(&models.Bill{}).Where("branch_id = ?", "BR1").Count(&billCount)
	if itemCount != 0 {
		t.Errorf("inventory count = %d, want 0", itemCount)
	}
	if billCount != 1 {
		t.Errorf("bill count = %d, want 1 (bills survive branch deletion)", billCount)
	}

	w, env := doRequest(t, r, http.MethodDelete, "/branches/BR1", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on repeated delete, got %d", w.Code)
	}
	if env.Error != "NOT_FOUND" {
		t.Errorf("error = %s, want NOT_FOUND", env.Error)
	}
}
