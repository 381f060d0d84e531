package handler

import (
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
	h := NewReportsHandler(db, nil)

	r := gin.New()
	r.GET("/reports/revenue", h.RevenueSummary)
	return r
}

func seedBill(t *testing.T, db *gorm.DB, branchID, payment, total, status string, billDate time.Time, itemQty int32) {
	t.Helper()
	bill := models.Bill{
		BillNumber:     branchID + "-" + total + "-" + status + "-" + billDate.Format("150405.000000000"),
		BranchID:       branchID,
		BranchName:     "Branch " + branchID,
		StaffID:        1,
		BillDate:       billDate,
		CustomerName:   "Asha Rao",
		CustomerPhone:  "9876500000",
		GstRate:        "18.00",
		Discount:       "0.00",
		Subtotal:       total,
		DiscountAmount: "0.00",
		TaxableAmount:  total,
		GstAmount:      "0.00",
		Total:          total,
		PaymentMethod:  payment,
		Status:         status,
		CreatedAt:      billDate,
		UpdatedAt:      billDate,
		Items: []models.BillItem{
			{Pid: "P1", Name: "Item P1", Price: total, Quantity: itemQty, Amount: total},
		},
	}
	if err := db.Create(&bill).Error; err != nil {
		t.Fatalf("failed to seed bill: %v", err)
	}
}

func fetchGroups(t *testing.T, r *gin.Engine, path string) (int, []RevenueGroup, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	var groups []RevenueGroup
	if env.Data != nil {
		if err := json.Unmarshal(env.Data, &groups); err != nil {
			t.Fatalf("failed to decode groups: %v", err)
		}
	}
	return w.Code, groups, env.Error
}

func TestRevenueSummaryByBranch(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now()
	seedBill(t, db, "BR1", "Cash", "100.00", models.BillStatusCompleted, now, 1)
	seedBill(t, db, "BR1", "Card", "200.00", models.BillStatusCompleted, now, 2)
	seedBill(t, db, "BR2", "Cash", "50.00", models.BillStatusCompleted, now, 1)
	seedBill(t, db, "BR2", "Cash", "999.00", models.BillStatusCancelled, now, 1)
	r := setupRouter(db)

	code, groups, _ := fetchGroups(t, r, "/reports/revenue")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(groups) != 2 {
		t.Fatalf("group count = %d, want 2", len(groups))
	}

	if groups[0].Key != "BR1" || groups[0].TotalRevenue != "300.00" {
		t.Errorf("BR1 group = %+v, want total 300.00", groups[0])
	}
	if groups[0].BillCount != 2 || groups[0].TotalItems != 3 {
		t.Errorf("BR1 counts = %+v, want 2 bills, 3 items", groups[0])
	}
	if groups[0].AvgBillValue != "150.00" {
		t.Errorf("BR1 avg = %s, want 150.00", groups[0].AvgBillValue)
	}
	if groups[1].Key != "BR2" || groups[1].TotalRevenue != "50.00" {
		t.Errorf("BR2 group = %+v, want total 50.00 (cancelled excluded)", groups[1])
	}
}

func TestRevenueSummaryByPaymentMethod(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now()
	seedBill(t, db, "BR1", "Cash", "100.00", models.BillStatusCompleted, now, 1)
	seedBill(t, db, "BR2", "Cash", "50.00", models.BillStatusCompleted, now, 1)
	seedBill(t, db, "BR1", "UPI", "200.00", models.BillStatusCompleted, now, 1)
	r := setupRouter(db)

	code, groups, _ := fetchGroups(t, r, "/reports/revenue?group_by=payment_method")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(groups) != 2 {
		t.Fatalf("group count = %d, want 2", len(groups))
	}
	if groups[0].Key != "Cash" || groups[0].TotalRevenue != "150.00" {
		t.Errorf("Cash group = %+v, want total 150.00", groups[0])
	}
	if groups[1].Key != "UPI" || groups[1].TotalRevenue != "200.00" {
		t.Errorf("UPI group = %+v, want total 200.00", groups[1])
	}
}

func TestRevenueSummaryDateRange(t *testing.T) {
	db := setupTestDB(t)
	seedBill(t, db, "BR1", "Cash", "100.00", models.BillStatusCompleted,
		time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC), 1)
	seedBill(t, db, "BR1", "Cash", "200.00", models.BillStatusCompleted,
		time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC), 1)
	r := setupRouter(db)

	code, groups, _ := fetchGroups(t, r, "/reports/revenue?start_date=2026-01-01&end_date=2026-01-31")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(groups) != 1 || groups[0].TotalRevenue != "100.00" {
		t.Errorf("groups = %+v, want single BR1 total 100.00", groups)
	}

	code, _, errCode := fetchGroups(t, r, "/reports/revenue?start_date=not-a-date")
	if code != http.StatusBadRequest || errCode != "VALIDATION" {
		t.Errorf("expected 400 VALIDATION, got %d %s", code, errCode)
	}
}

func TestRevenueSummaryRejectsBadGroupBy(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)

	code, _, errCode := fetchGroups(t, r, "/reports/revenue?group_by=staff")
	if code != http.StatusBadRequest || errCode != "VALIDATION" {
		t.Errorf("expected 400 VALIDATION, got %d %s", code, errCode)
	}
}
