package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"branchline-system/internal/database/models"
	"branchline-system/internal/utils"
)

// --- Helpers ---

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func successResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
		Data:    data,
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

var validRoles = map[string]bool{
	models.RoleStaff:      true,
	models.RoleManager:    true,
	models.RoleSuperadmin: true,
}

// --- Handler ---

type StaffHandler struct {
	db       *gorm.DB
	tokenTTL time.Duration
}

func NewStaffHandler(db *gorm.DB, tokenTTL time.Duration) *StaffHandler {
	return &StaffHandler{
		db:       db,
		tokenTTL: tokenTTL,
	}
}

// --- Requests ---

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type CreateStaffRequest struct {
	BranchID   string `json:"branch_id" binding:"required"`
	StaffName  string `json:"staff_name" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=6"`
	Role       string `json:"role" binding:"required"`
	Position   string `json:"position"`
	Phone      string `json:"phone"`
	BaseSalary string `json:"base_salary" binding:"required"`
}

type CreateSalaryRequest struct {
	StaffID      int64   `json:"staff_id" binding:"required"`
	Period       string  `json:"period" binding:"required"`
	BaseSalary   string  `json:"base_salary" binding:"required"`
	IncrementPct float64 `json:"increment_pct"`
	Notes        *string `json:"notes,omitempty"`
}

type CreateAppraisalRequest struct {
	StaffID int64   `json:"staff_id" binding:"required"`
	Period  string  `json:"period" binding:"required"`
	Rating  int32   `json:"rating" binding:"required,min=1,max=5"`
	Remarks *string `json:"remarks,omitempty"`
}

type CreateComplaintRequest struct {
	BranchID    string `json:"branch_id" binding:"required"`
	Subject     string `json:"subject" binding:"required"`
	Description string `json:"description"`
}

type UpdateComplaintStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=open in_progress resolved"`
}

// -- Authentication --

func (s *StaffHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("VALIDATION", "Invalid request format"))
		return
	}

	var staff models.Staff
	if err := s.db.Where("email = ? AND is_active = ?", req.Email, true).First(&staff).Error; err != nil {
		c.JSON(http.StatusUnauthorized, errorResponse("UNAUTHORIZED", "Invalid email or password"))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(staff.Password), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, errorResponse("UNAUTHORIZED", "Invalid email or password"))
		return
	}

	token, exp, err := utils.GenerateToken(staff.ID, staff.Role, staff.BranchID, s.tokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("TOKEN_ERROR", "Failed to issue token"))
		return
	}

	c.JSON(http.StatusOK, successResponse("Login successful", gin.H{
		"token":      token,
		"expires_at": exp,
		"staff":      staff,
	}))
}

// -- Staff Management --

func (s *StaffHandler) CreateStaff(c *gin.Context) {
	var req CreateStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("VALIDATION", "Invalid request format"))
		return
	}

	if !validRoles[req.Role] {
		c.JSON(http.StatusBadRequest, errorResponse("VALIDATION",
			"role must be one of staff, manager, superadmin"))
		return
	}
	if req.Role == models.RoleSuperadmin && c.GetString("role") != models.RoleSuperadmin {
		c.JSON(http.StatusForbidden, errorResponse("ACCESS_DENIED", "Access denied"))
		return
	}
	if !canAccessBranch(c, req.BranchID) {
		c.JSON(http.StatusForbidden, errorResponse("ACCESS_DENIED", "Access denied"))
		return
	}

	salary, err := decimal.NewFromString(req.BaseSalary)
	if err != nil || salary.IsNegative() {
		c.JSON(http.StatusBadRequest, errorResponse("VALIDATION", "base_salary must be a non-negative number"))
		return
	}

	var existing models.Staff
	err = s.db.Where("email = ?", req.Email).First(&existing).Error
	if err == nil {
		c.JSON(http.StatusBadRequest, errorResponse("DUPLICATE_EMAIL",
			fmt.Sprintf("Staff with email %s already exists", req.Email)))
		return
	} else if err != gorm.ErrRecordNotFound {
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Database error"))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("HASH_ERROR", "Failed to hash password"))
		return
	}

	staff := models.Staff{
		BranchID:   req.BranchID,
		StaffName:  req.StaffName,
		Email:      req.Email,
		Password:   string(hashed),
		Role:       req.Role,
		Position:   req.Position,
		Phone:      req.Phone,
		BaseSalary: salary.StringFixed(2),
		IsActive:   true,
	}

	if err := s.db.Create(&staff).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Failed to create staff"))
		return
	}

	c.JSON(http.StatusCreated, successResponse("Staff created", staff))
}

func (s *StaffHandler) GetStaff(c *gin.Context) {
	var staff models.Staff
	if err := s.db.Where("id = ?", c.Param("id")).First(&staff).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, errorResponse("NOT_FOUND", "Staff not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Database error"))
		return
	}

	if !canAccessBranch(c, staff.BranchID) {
		c.JSON(http.StatusForbidden, errorResponse("ACCESS_DENIED", "Access denied"))
		return
	}

	c.JSON(http.StatusOK, successResponse("Staff fetched", staff))
}

func (s *StaffHandler) ListStaffByBranch(c *gin.Context) {
	branchID := c.Param("branch_id")
	if !canAccessBranch(c, branchID) {
		c.JSON(http.StatusForbidden, errorResponse("ACCESS_DENIED", "Access denied"))
		return
	}

	var staff []models.Staff
	if err := s.db.Where("branch_id = ?", branchID).Order("staff_name asc").Find(&staff).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Database error"))
		return
	}

	c.JSON(http.StatusOK, successResponse("Staff fetched", staff))
}

// -- Attendance --

func (s *StaffHandler) CheckIn(c *gin.Context) {
	staffID := c.GetInt64("staff_id")
	now := time.Now()
	today := now.Format("2006-01-02")

	var existing models.Attendance
	err := s.db.Where("staff_id = ? AND date = ?", staffID, today).First(&existing).Error
	if err == nil {
		c.JSON(http.StatusBadRequest, errorResponse("DUPLICATE_PERIOD_RECORD",
			fmt.Sprintf("Attendance already recorded for %s", today)))
		return
	} else if err != gorm.ErrRecordNotFound {
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Database error"))
		return
	}

	attendance := models.Attendance{
		StaffID: staffID,
		Date:    today,
		CheckIn: now,
		Status:  "present",
	}
	if err := s.db.Create(&attendance).Error; err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("DUPLICATE_PERIOD_RECORD",
			fmt.Sprintf("Attendance already recorded for %s", today)))
		return
	}

	c.JSON(http.StatusCreated, successResponse("Checked in", attendance))
}

func (s *StaffHandler) CheckOut(c *gin.Context) {
	staffID := c.GetInt64("staff_id")
	now := time.Now()
	today := now.Format("2006-01-02")

	var attendance models.Attendance
	if err := s.db.Where("staff_id = ? AND date = ?", staffID, today).First(&attendance).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, errorResponse("NOT_FOUND", "No check-in recorded for today"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Database error"))
		return
	}

	if attendance.CheckOut != nil {
		c.JSON(http.StatusBadRequest, errorResponse("DUPLICATE_PERIOD_RECORD",
			fmt.Sprintf("Already checked out for %s", today)))
		return
	}

	if err := s.db.Model(&attendance).Update("check_out", now).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Failed to record check-out"))
		return
	}

	attendance.CheckOut = &now
	c.JSON(http.StatusOK, successResponse("Checked out", attendance))
}

func (s *StaffHandler) ListAttendance(c *gin.Context) {
	var staff models.Staff
	if err := s.db.Where("id = ?", c.Param("staff_id")).First(&staff).Error; err != nil {
		c.JSON(http.StatusNotFound, errorResponse("NOT_FOUND", "Staff not found"))
		return
	}
	if !canAccessBranch(c, staff.BranchID) {
		c.JSON(http.StatusForbidden, errorResponse("ACCESS_DENIED", "Access denied"))
		return
	}

	var records []models.Attendance
	if err := s.db.Where("staff_id = ?", staff.ID).Order("date DESC").Limit(62).Find(&records).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Database error"))
		return
	}

	c.JSON(http.StatusOK, successResponse("Attendance fetched", records))
}

// -- Salary --

// CreateSalaryRecord applies the increment on top of the base:
// net = base * (1 + increment_pct / 100).
func (s *StaffHandler) CreateSalaryRecord(c *gin.Context) {
	var req CreateSalaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("VALIDATION", "Invalid request format"))
		return
	}

	var staff models.Staff
	if err := s.db.Where("id = ?", req.StaffID).First(&staff).Error; err != nil {
		c.JSON(http.StatusNotFound, errorResponse("NOT_FOUND", "Staff not found"))
		return
	}
	if !canAccessBranch(c, staff.BranchID) {
		c.JSON(http.StatusForbidden, errorResponse("ACCESS_DENIED", "Access denied"))
		return
	}

	if _, err := time.Parse("2006-01", req.Period); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("VALIDATION", "period must be YYYY-MM"))
		return
	}

	base, err := decimal.NewFromString(req.BaseSalary)
	if err != nil || base.IsNegative() {
		c.JSON(http.StatusBadRequest, errorResponse("VALIDATION", "base_salary must be a non-negative number"))
		return
	}

	var existing models.SalaryRecord
	err = s.db.Where("staff_id = ? AND period = ?", req.StaffID, req.Period).First(&existing).Error
	if err == nil {
		c.JSON(http.StatusBadRequest, errorResponse("DUPLICATE_PERIOD_RECORD",
			fmt.Sprintf("Salary record for period %s already exists", req.Period)))
		return
	} else if err != gorm.ErrRecordNotFound {
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Database error"))
		return
	}

	hundred := decimal.NewFromInt(100)
	increment := decimal.NewFromFloat(req.IncrementPct)
	net := base.Mul(decimal.NewFromInt(1).Add(increment.Div(hundred)))

	record := models.SalaryRecord{
		StaffID:      req.StaffID,
		Period:       req.Period,
		BaseSalary:   base.StringFixed(2),
		IncrementPct: increment.StringFixed(2),
		NetSalary:    net.StringFixed(2),
		Notes:        req.Notes,
	}
	if err := s.db.Create(&record).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Failed to create salary record"))
		return
	}

	c.JSON(http.StatusCreated, successResponse("Salary record created", record))
}

func (s *StaffHandler) ListSalaryRecords(c *gin.Context) {
	var staff models.Staff
	if err := s.db.Where("id = ?", c.Param("staff_id")).First(&staff).Error; err != nil {
		c.JSON(http.StatusNotFound, errorResponse("NOT_FOUND", "Staff not found"))
		return
	}
	if !canAccessBranch(c, staff.BranchID) {
		c.JSON(http.StatusForbidden, errorResponse("ACCESS_DENIED", "Access denied"))
		return
	}

	var records []models.SalaryRecord
	if err := s.db.Where("staff_id = ?", staff.ID).Order("period DESC").Find(&records).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Database error"))
		return
	}

	c.JSON(http.StatusOK, successResponse("Salary records fetched", records))
}

// -- Appraisals --

func (s *StaffHandler) CreateAppraisal(c *gin.Context) {
	var req CreateAppraisalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("VALIDATION", "Invalid request format"))
		return
	}

	var staff models.Staff
	if err := s.db.Where("id = ?", req.StaffID).First(&staff).Error; err != nil {
		c.JSON(http.StatusNotFound, errorResponse("NOT_FOUND", "Staff not found"))
		return
	}
	if !canAccessBranch(c, staff.BranchID) {
		c.JSON(http.StatusForbidden, errorResponse("ACCESS_DENIED", "Access denied"))
		return
	}

	if _, err := time.Parse("2006-01", req.Period); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("VALIDATION", "period must be YYYY-MM"))
		return
	}

	var existing models.Appraisal
	err := s.db.Where("staff_id = ? AND period = ?", req.StaffID, req.Period).First(&existing).Error
	if err == nil {
		c.JSON(http.StatusBadRequest, errorResponse("DUPLICATE_PERIOD_RECORD",
			fmt.Sprintf("Appraisal for period %s already exists", req.Period)))
		return
	} else if err != gorm.ErrRecordNotFound {
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Database error"))
		return
	}

	appraisal := models.Appraisal{
		StaffID:    req.StaffID,
		Period:     req.Period,
		Rating:     req.Rating,
		Remarks:    req.Remarks,
		ReviewedBy: c.GetInt64("staff_id"),
	}
	if err := s.db.Create(&appraisal).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Failed to create appraisal"))
		return
	}

	c.JSON(http.StatusCreated, successResponse("Appraisal created", appraisal))
}

func (s *StaffHandler) ListAppraisals(c *gin.Context) {
	var staff models.Staff
	if err := s.db.Where("id = ?", c.Param("staff_id")).First(&staff).Error; err != nil {
		c.JSON(http.StatusNotFound, errorResponse("NOT_FOUND", "Staff not found"))
		return
	}
	if !canAccessBranch(c, staff.BranchID) {
		c.JSON(http.StatusForbidden, errorResponse("ACCESS_DENIED", "Access denied"))
		return
	}

	var records []models.Appraisal
	if err := s.db.Where("staff_id = ?", staff.ID).Order("period DESC").Find(&records).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Database error"))
		return
	}

	c.JSON(http.StatusOK, successResponse("Appraisals fetched", records))
}

// -- Complaints --

func (s *StaffHandler) CreateComplaint(c *gin.Context) {
	var req CreateComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("VALIDATION", "Invalid request format"))
		return
	}

	if !canAccessBranch(c, req.BranchID) {
		c.JSON(http.StatusForbidden, errorResponse("ACCESS_DENIED", "Access denied"))
		return
	}

	complaint := models.Complaint{
		BranchID:    req.BranchID,
		Subject:     req.Subject,
		Description: req.Description,
		Status:      "open",
		RaisedBy:    c.GetInt64("staff_id"),
	}
	if err := s.db.Create(&complaint).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Failed to create complaint"))
		return
	}

	c.JSON(http.StatusCreated, successResponse("Complaint created", complaint))
}

func (s *StaffHandler) ListComplaints(c *gin.Context) {
	branchID := c.Param("branch_id")
	if !canAccessBranch(c, branchID) {
		c.JSON(http.StatusForbidden, errorResponse("ACCESS_DENIED", "Access denied"))
		return
	}

	var complaints []models.Complaint
	query := s.db.Where("branch_id = ?", branchID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Order("created_at DESC").Find(&complaints).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Database error"))
		return
	}

	c.JSON(http.StatusOK, successResponse("Complaints fetched", complaints))
}

func (s *StaffHandler) UpdateComplaintStatus(c *gin.Context) {
	var req UpdateComplaintStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("VALIDATION",
			"status must be one of open, in_progress, resolved"))
		return
	}

	var complaint models.Complaint
	if err := s.db.Where("id = ?", c.Param("id")).First(&complaint).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, errorResponse("NOT_FOUND", "Complaint not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Database error"))
		return
	}

	if !canAccessBranch(c, complaint.BranchID) {
		c.JSON(http.StatusForbidden, errorResponse("ACCESS_DENIED", "Access denied"))
		return
	}

	if err := s.db.Model(&complaint).Update("status", req.Status).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Failed to update complaint"))
		return
	}

	complaint.Status = req.Status
	c.JSON(http.StatusOK, successResponse("Complaint updated", complaint))
}
