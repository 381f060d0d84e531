package handler

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"branchline-system/internal/database/models"
)

const INVENTORY_CACHE_PREFIX = "inventory:items:"

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

// --- Handler ---

type BranchHandler struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewBranchHandler(db *gorm.DB, redisClient *redis.Client) *BranchHandler {
	return &BranchHandler{
		db:    db,
		redis: redisClient,
	}
}

type CreateBranchRequest struct {
	BranchID   string  `json:"branch_id" binding:"required"`
	BranchName string  `json:"branch_name" binding:"required"`
	Address    *string `json:"address,omitempty"`
	Phone      *string `json:"phone,omitempty"`
}

func (s *BranchHandler) CreateBranch(c *gin.Context) {
	var req CreateBranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("VALIDATION", "Invalid request format"))
		return
	}

	var existing models.Branch
	err := s.db.Where("id = ?", req.BranchID).First(&existing).Error
	if err == nil {
		c.JSON(http.StatusBadRequest, errorResponse("DUPLICATE_BRANCH",
			fmt.Sprintf("Branch %s already exists", req.BranchID)))
		return
	} else if err != gorm.ErrRecordNotFound {
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Database error"))
		return
	}

	branch := models.Branch{
		ID:         req.BranchID,
		BranchName: req.BranchName,
		Address:    req.Address,
		Phone:      req.Phone,
		IsActive:   true,
	}
	if err := s.db.Create(&branch).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Failed to create branch"))
		return
	}

	c.JSON(http.StatusCreated, successResponse("Branch created", branch))
}

func (s *BranchHandler) ListBranches(c *gin.Context) {
	var branches []models.Branch
	if err := s.db.Order("id asc").Find(&branches).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Database error"))
		return
	}

	c.JSON(http.StatusOK, successResponse("Branches fetched", branches))
}

func (s *BranchHandler) GetBranch(c *gin.Context) {
	var branch models.Branch
	if err := s.db.Where("id = ?", c.Param("branch_id")).First(&branch).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, errorResponse("NOT_FOUND", "Branch not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Database error"))
		return
	}

	c.JSON(http.StatusOK, successResponse("Branch fetched", branch))
}

// DeleteBranch removes the branch and its inventory. Bills are kept
// for revenue history, they carry a snapshot of the branch name.
func (s *BranchHandler) DeleteBranch(c *gin.Context) {
	branchID := c.Param("branch_id")

	var branch models.Branch
	if err := s.db.Where("id = ?", branchID).First(&branch).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, errorResponse("NOT_FOUND", "Branch not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Database error"))
		return
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Where("branch_id = ?", branchID).Delete(&models.InventoryItem{}).Error; err != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Failed to delete branch inventory"))
		return
	}
	if err := tx.Where("branch_id = ?", branchID).Delete(&models.BillSequence{}).Error; err != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Failed to delete branch"))
		return
	}
	if err := tx.Delete(&branch).Error; err != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Failed to delete branch"))
		return
	}

	if err := tx.Commit().Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Failed to delete branch"))
		return
	}

	if s.redis != nil {
		_ = s.redis.Del(c.Request.Context(), INVENTORY_CACHE_PREFIX+branchID)
	}

	log.Printf("AUDIT: branch %s deleted by staff %d", branchID, c.GetInt64("staff_id"))

	c.JSON(http.StatusOK, successResponse("Branch deleted", gin.H{"branch_id": branchID}))
}
