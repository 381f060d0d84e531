package handler

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"branchline-system/internal/database/models"
)

const (
	REVENUE_BRANCH_CACHE_KEY  = "reports:revenue:branch"
	REVENUE_PAYMENT_CACHE_KEY = "reports:revenue:payment_method"
)

// --- Helpers ---

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

func successResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	}
}

func successWithMetaResponse(message string, data interface{}, meta interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    meta,
	}
}

func errorResponse(code, message string) APIResponse {
	return APIResponse{
		Success: false,
		Message: message,
		Error:   code,
	}
}

func canAccessBranch(c *gin.Context, branchID string) bool {
	if c.GetString("role") == models.RoleSuperadmin {
		return true
	}
	return c.GetString("branch_id") == branchID
}

var validPaymentMethods = map[string]bool{
	"Cash":        true,
	"Card":        true,
	"UPI":         true,
	"Net Banking": true,
	"Other":       true,
}

var validStatuses = map[string]bool{
	models.BillStatusCompleted: true,
	models.BillStatusCancelled: true,
	models.BillStatusRefunded:  true,
}

// --- Handler ---

type BillingHandler struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewBillingHandler(db *gorm.DB, redisClient *redis.Client) *BillingHandler {
	return &BillingHandler{
		db:    db,
		redis: redisClient,
	}
}

func (s *BillingHandler) invalidateRevenueCaches(c *gin.Context) {
	if s.redis == nil {
		return
	}
	_ = s.redis.Del(c.Request.Context(), REVENUE_BRANCH_CACHE_KEY, REVENUE_PAYMENT_CACHE_KEY)
}

// --- Requests ---

type CartLine struct {
	Pid      string `json:"pid" binding:"required"`
	Quantity int32  `json:"quantity" binding:"required,min=1"`
}

type CustomerInfo struct {
	Name    string  `json:"name" binding:"required"`
	Phone   string  `json:"phone" binding:"required"`
	Email   *string `json:"email,omitempty"`
	Address *string `json:"address,omitempty"`
}

type CreateBillRequest struct {
	BranchID      string       `json:"branch_id" binding:"required"`
	Items         []CartLine   `json:"items" binding:"required,min=1,dive"`
	GstRate       *float64     `json:"gst_rate,omitempty"`
	Discount      *float64     `json:"discount,omitempty"`
	PaymentMethod string       `json:"payment_method" binding:"required"`
	Notes         *string      `json:"notes,omitempty"`
	Customer      CustomerInfo `json:"customer" binding:"required"`
}

type UpdateBillStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// -- Billing --

// CreateBill runs the whole sale as one transaction: validate every cart line
// against current stock, compute totals, persist the bill and decrement
// inventory. Each decrement is a conditional UPDATE guarded by
// quantity >= requested, so a concurrent sale of the same pid rolls the whole
// bill back instead of driving stock negative.
func (s *BillingHandler) CreateBill(c *gin.Context) {
	var req CreateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("VALIDATION", "Invalid request format"))
		return
	}

	if !canAccessBranch(c, req.BranchID) {
		c.JSON(http.StatusForbidden, errorResponse("ACCESS_DENIED", "Access denied"))
		return
	}

	gstRate := decimal.NewFromInt(18)
	if req.GstRate != nil {
		if *req.GstRate < 0 {
			c.JSON(http.StatusBadRequest, errorResponse("VALIDATION", "gst_rate must not be negative"))
			return
		}
		gstRate = decimal.NewFromFloat(*req.GstRate)
	}

	discount := decimal.Zero
	if req.Discount != nil {
		if *req.Discount < 0 || *req.Discount > 100 {
			c.JSON(http.StatusBadRequest, errorResponse("VALIDATION", "discount must be between 0 and 100"))
			return
		}
		discount = decimal.NewFromFloat(*req.Discount)
	}

	if !validPaymentMethods[req.PaymentMethod] {
		c.JSON(http.StatusBadRequest, errorResponse("VALIDATION",
			"payment_method must be one of Cash, Card, UPI, Net Banking, Other"))
		return
	}

	var branch models.Branch
	if err := s.db.Where("id = ?", req.BranchID).First(&branch).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, errorResponse("BRANCH_INVENTORY_NOT_FOUND",
				fmt.Sprintf("No inventory found for branch %s", req.BranchID)))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Database error"))
		return
	}

	staffID := c.GetInt64("staff_id")
	staffName := ""
	var staff models.Staff
	if err := s.db.Where("id = ?", staffID).First(&staff).Error; err == nil {
		staffName = staff.StaffName
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var inventory []models.InventoryItem
	if err := tx.Where("branch_id = ?", req.BranchID).Find(&inventory).Error; err != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Database error"))
		return
	}
	if len(inventory) == 0 {
		tx.Rollback()
		c.JSON(http.StatusNotFound, errorResponse("BRANCH_INVENTORY_NOT_FOUND",
			fmt.Sprintf("No inventory found for branch %s", req.BranchID)))
		return
	}

	byPid := make(map[string]models.InventoryItem, len(inventory))
	for _, item := range inventory {
		byPid[item.Pid] = item
	}

	// Validation pass: every line must resolve and have sufficient stock
	// before anything is written.
	for _, line := range req.Items {
		item, ok := byPid[line.Pid]
		if !ok {
			tx.Rollback()
			c.JSON(http.StatusBadRequest, errorResponse("PRODUCT_NOT_FOUND",
				fmt.Sprintf("Product %s not found in branch %s", line.Pid, req.BranchID)))
			return
		}
		if item.Quantity < line.Quantity {
			tx.Rollback()
			c.JSON(http.StatusBadRequest, errorResponse("INSUFFICIENT_STOCK",
				fmt.Sprintf("Insufficient stock for %s. Available: %d, Requested: %d",
					item.Pid, item.Quantity, line.Quantity)))
			return
		}
	}

	now := time.Now()
	subtotal := decimal.Zero
	billItems := make([]models.BillItem, 0, len(req.Items))
	for _, line := range req.Items {
		item := byPid[line.Pid]
		price, err := decimal.NewFromString(item.Price)
		if err != nil {
			tx.Rollback()
			c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR",
				fmt.Sprintf("Invalid stored price for %s", item.Pid)))
			return
		}
		amount := price.Mul(decimal.NewFromInt32(line.Quantity))
		subtotal = subtotal.Add(amount)

		billItems = append(billItems, models.BillItem{
			Pid:      item.Pid,
			Name:     item.Name,
			Brand:    item.Brand,
			Price:    price.StringFixed(2),
			Quantity: line.Quantity,
			Amount:   amount.StringFixed(2),
		})
	}

	// Totals chain, full precision throughout; rounding happens only when the
	// five values are serialized below.
	hundred := decimal.NewFromInt(100)
	discountAmount := subtotal.Mul(discount).Div(hundred)
	taxableAmount := subtotal.Sub(discountAmount)
	gstAmount := taxableAmount.Mul(gstRate).Div(hundred)
	total := taxableAmount.Add(gstAmount)

	seq, err := s.nextBillSequence(tx, req.BranchID)
	if err != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Failed to allocate bill number"))
		return
	}
	billNumber := fmt.Sprintf("%s-%d-%d", req.BranchID, now.UnixMilli(), seq)

	bill := models.Bill{
		BillNumber:      billNumber,
		BranchID:        req.BranchID,
		BranchName:      branch.BranchName,
		StaffID:         staffID,
		StaffName:       staffName,
		BillDate:        now,
		CustomerName:    req.Customer.Name,
		CustomerPhone:   req.Customer.Phone,
		CustomerEmail:   req.Customer.Email,
		CustomerAddress: req.Customer.Address,
		GstRate:         gstRate.StringFixed(2),
		Discount:        discount.StringFixed(2),
		Subtotal:        subtotal.StringFixed(2),
		DiscountAmount:  discountAmount.StringFixed(2),
		TaxableAmount:   taxableAmount.StringFixed(2),
		GstAmount:       gstAmount.StringFixed(2),
		Total:           total.StringFixed(2),
		PaymentMethod:   req.PaymentMethod,
		Status:          models.BillStatusCompleted,
		Notes:           req.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
		Items:           billItems,
	}

	if err := tx.Create(&bill).Error; err != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Failed to create bill: "+err.Error()))
		return
	}

	for _, line := range req.Items {
		result := tx.Model(&models.InventoryItem{}).
			Where("branch_id = ? AND pid = ? AND quantity >= ?", req.BranchID, line.Pid, line.Quantity).
			Updates(map[string]interface{}{
				"quantity":     gorm.Expr("quantity - ?", line.Quantity),
				"last_updated": now,
			})
		if result.Error != nil {
			tx.Rollback()
			c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Failed to update inventory"))
			return
		}
		if result.RowsAffected == 0 {
			// Lost the race against a concurrent sale of the same pid.
			tx.Rollback()
			c.JSON(http.StatusBadRequest, errorResponse("INSUFFICIENT_STOCK",
				fmt.Sprintf("Insufficient stock for %s. Requested: %d", line.Pid, line.Quantity)))
			return
		}
	}

	if err := tx.Commit().Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Failed to commit transaction: "+err.Error()))
		return
	}

	if err := s.db.Where("id = ?", bill.ID).Preload("Items").First(&bill).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Failed to reload bill"))
		return
	}

	s.invalidateRevenueCaches(c)

	c.JSON(http.StatusCreated, successResponse("Bill created successfully", bill))
}

func (s *BillingHandler) nextBillSequence(tx *gorm.DB, branchID string) (int64, error) {
	var seq models.BillSequence
	err := tx.Where("branch_id = ?", branchID).First(&seq).Error
	if err == gorm.ErrRecordNotFound {
		seq = models.BillSequence{BranchID: branchID, NextSeq: 0}
		if err := tx.Create(&seq).Error; err != nil {
			return 0, err
		}
	} else if err != nil {
		return 0, err
	}

	if err := tx.Model(&models.BillSequence{}).
		Where("branch_id = ?", branchID).
		Update("next_seq", gorm.Expr("next_seq + 1")).Error; err != nil {
		return 0, err
	}

	if err := tx.Where("branch_id = ?", branchID).First(&seq).Error; err != nil {
		return 0, err
	}
	return seq.NextSeq, nil
}

// UpdateBillStatus transitions a bill between completed, cancelled and
// refunded. Inventory is restored only on the completed -> cancelled/refunded
// edge; cancelled and refunded are terminal, so a repeated cancellation can
// never double-restore.
func (s *BillingHandler) UpdateBillStatus(c *gin.Context) {
	billNumber := c.Param("bill_id")

	var req UpdateBillStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_STATUS", "status is required"))
		return
	}
	if !validStatuses[req.Status] {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_STATUS",
			"status must be one of completed, cancelled, refunded"))
		return
	}

	var bill models.Bill
	if err := s.db.Where("bill_number = ?", billNumber).Preload("Items").First(&bill).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, errorResponse("NOT_FOUND", "Bill not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Database error"))
		return
	}

	if !canAccessBranch(c, bill.BranchID) {
		c.JSON(http.StatusForbidden, errorResponse("ACCESS_DENIED", "Access denied"))
		return
	}

	if bill.Status == req.Status {
		c.JSON(http.StatusOK, successResponse("Bill status unchanged", bill))
		return
	}

	if bill.Status != models.BillStatusCompleted {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_STATUS",
			fmt.Sprintf("Bill is already %s and cannot change status", bill.Status)))
		return
	}

	restore := req.Status == models.BillStatusCancelled || req.Status == models.BillStatusRefunded

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	now := time.Now()
	result := tx.Model(&models.Bill{}).
		Where("id = ? AND status = ?", bill.ID, models.BillStatusCompleted).
		Updates(map[string]interface{}{
			"status":     req.Status,
			"updated_at": now,
		})
	if result.Error != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Failed to update bill status"))
		return
	}
	if result.RowsAffected == 0 {
		// Another request moved the bill off completed after our read; a
		// restore here would double-count.
		tx.Rollback()
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_STATUS",
			"Bill is no longer completed and cannot change status"))
		return
	}

	if restore {
		// Best-effort restoration: items removed from inventory since the
		// sale are skipped.
		for _, item := range bill.Items {
			if err := tx.Model(&models.InventoryItem{}).
				Where("branch_id = ? AND pid = ?", bill.BranchID, item.Pid).
				Updates(map[string]interface{}{
					"quantity":     gorm.Expr("quantity + ?", item.Quantity),
					"last_updated": now,
				}).Error; err != nil {
				tx.Rollback()
				c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Failed to restore inventory"))
				return
			}
		}
	}

	if err := tx.Commit().Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Failed to commit transaction: "+err.Error()))
		return
	}

	if err := s.db.Where("id = ?", bill.ID).Preload("Items").First(&bill).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Failed to reload bill"))
		return
	}

	s.invalidateRevenueCaches(c)

	c.JSON(http.StatusOK, successResponse("Bill status updated", bill))
}

func (s *BillingHandler) GetBill(c *gin.Context) {
	billNumber := c.Param("bill_id")

	var bill models.Bill
	if err := s.db.Where("bill_number = ?", billNumber).Preload("Items").First(&bill).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, errorResponse("NOT_FOUND", "Bill not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Database error"))
		return
	}

	if !canAccessBranch(c, bill.BranchID) {
		c.JSON(http.StatusForbidden, errorResponse("ACCESS_DENIED", "Access denied"))
		return
	}

	c.JSON(http.StatusOK, successResponse("Bill fetched", bill))
}

func (s *BillingHandler) ListBills(c *gin.Context) {
	branchID := c.Param("branch_id")
	if branchID == "" {
		c.JSON(http.StatusBadRequest, errorResponse("VALIDATION", "branch_id is required"))
		return
	}
	if !canAccessBranch(c, branchID) {
		c.JSON(http.StatusForbidden, errorResponse("ACCESS_DENIED", "Access denied"))
		return
	}

	query := s.db.Model(&models.Bill{}).Preload("Items").Where("branch_id = ?", branchID)

	if status := c.Query("status"); status != "" {
		if !validStatuses[status] {
			c.JSON(http.StatusBadRequest, errorResponse("INVALID_STATUS",
				"status must be one of completed, cancelled, refunded"))
			return
		}
		query = query.Where("status = ?", status)
	}

	if start := c.Query("start_date"); start != "" {
		startDate, err := time.Parse("2006-01-02", start)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("VALIDATION", "start_date must be YYYY-MM-DD"))
			return
		}
		query = query.Where("bill_date >= ?", startDate)
	}
	if end := c.Query("end_date"); end != "" {
		endDate, err := time.Parse("2006-01-02", end)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("VALIDATION", "end_date must be YYYY-MM-DD"))
			return
		}
		query = query.Where("bill_date < ?", endDate.AddDate(0, 0, 1))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Database error counting bills"))
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page <= 0 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if pageSize <= 0 {
		pageSize = 20
	}

	var bills []models.Bill
	offset := (page - 1) * pageSize
	if err := query.Order("bill_date DESC").Offset(offset).Limit(pageSize).Find(&bills).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Database error fetching bills"))
		return
	}

	c.JSON(http.StatusOK, successWithMetaResponse("Bills fetched", bills, gin.H{
		"page":      page,
		"page_size": pageSize,
		"total":     total,
	}))
}

// DeleteBill is an audited administrative correction. Completed bills are
// refused outright: they must be cancelled or refunded first so the stock
// accounting stays explicit.
func (s *BillingHandler) DeleteBill(c *gin.Context) {
	billNumber := c.Param("bill_id")

	var bill models.Bill
	if err := s.db.Where("bill_number = ?", billNumber).First(&bill).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, errorResponse("NOT_FOUND", "Bill not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Database error"))
		return
	}

	if bill.Status == models.BillStatusCompleted {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_STATUS",
			"Completed bills cannot be deleted. Cancel or refund the bill first."))
		return
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Where("bill_id = ?", bill.ID).Delete(&models.BillItem{}).Error; err != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Failed to delete bill items"))
		return
	}
	if err := tx.Delete(&models.Bill{}, bill.ID).Error; err != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Failed to delete bill"))
		return
	}

	if err := tx.Commit().Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Failed to commit transaction: "+err.Error()))
		return
	}

	log.Printf("AUDIT: bill %s (branch %s, status %s) deleted by staff %d",
		bill.BillNumber, bill.BranchID, bill.Status, c.GetInt64("staff_id"))

	c.JSON(http.StatusOK, successResponse("Bill deleted", nil))
}

// -- Revenue --

func (s *BillingHandler) BranchRevenue(c *gin.Context) {
	branchID := c.Param("branch_id")
	if !canAccessBranch(c, branchID) {
		c.JSON(http.StatusForbidden, errorResponse("ACCESS_DENIED", "Access denied"))
		return
	}

	start := c.Query("start_date")
	end := c.Query("end_date")
	if start == "" || end == "" {
		c.JSON(http.StatusBadRequest, errorResponse("VALIDATION", "start_date and end_date are required"))
		return
	}
	startDate, err := time.Parse("2006-01-02", start)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("VALIDATION", "start_date must be YYYY-MM-DD"))
		return
	}
	endDate, err := time.Parse("2006-01-02", end)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("VALIDATION", "end_date must be YYYY-MM-DD"))
		return
	}

	var bills []models.Bill
	if err := s.db.Preload("Items").
		Where("branch_id = ? AND status = ?", branchID, models.BillStatusCompleted).
		Where("bill_date >= ? AND bill_date < ?", startDate, endDate.AddDate(0, 0, 1)).
		Find(&bills).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Database error"))
		return
	}

	totalRevenue := decimal.Zero
	var totalItems int64
	for _, bill := range bills {
		amount, err := decimal.NewFromString(bill.Total)
		if err != nil {
			continue
		}
		totalRevenue = totalRevenue.Add(amount)
		for _, item := range bill.Items {
			totalItems += int64(item.Quantity)
		}
	}

	avgBillValue := decimal.Zero
	if len(bills) > 0 {
		avgBillValue = totalRevenue.Div(decimal.NewFromInt(int64(len(bills))))
	}

	c.JSON(http.StatusOK, successResponse("Revenue fetched", gin.H{
		"branch_id":      branchID,
		"start_date":     start,
		"end_date":       end,
		"total_revenue":  totalRevenue.StringFixed(2),
		"total_bills":    len(bills),
		"total_items":    totalItems,
		"avg_bill_value": avgBillValue.StringFixed(2),
	}))
}
