package handler

import (
	"context"
	"encoding/json"
	"fmt"
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
	INVENTORY_CACHE_PREFIX = "inventory:items:"
	CACHE_TTL_SHORT        = 5 * time.Minute
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

// --- Handler ---

type InventoryHandler struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewInventoryHandler(db *gorm.DB, redisClient *redis.Client) *InventoryHandler {
	return &InventoryHandler{
		db:    db,
		redis: redisClient,
	}
}

func (s *InventoryHandler) invalidateInventoryCaches(ctx context.Context, branchID string) {
	if s.redis == nil {
		return
	}
	_ = s.redis.Del(ctx, INVENTORY_CACHE_PREFIX+branchID)
}

// --- Requests ---

type AddItemRequest struct {
	BranchID    string `json:"branch_id" binding:"required"`
	Pid         string `json:"pid" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Brand       string `json:"brand"`
	Category    string `json:"category"`
	SubCategory string `json:"sub_category"`
	Price       string `json:"price" binding:"required"`
	Quantity    int32  `json:"quantity"`
}

type UpdateItemRequest struct {
	Name        *string `json:"name,omitempty"`
	Brand       *string `json:"brand,omitempty"`
	Category    *string `json:"category,omitempty"`
	SubCategory *string `json:"sub_category,omitempty"`
	Price       *string `json:"price,omitempty"`
	Quantity    *int32  `json:"quantity,omitempty"`
}

type AdjustQuantityRequest struct {
	Delta int32 `json:"delta" binding:"required"`
}

// -- Inventory Items --

func (s *InventoryHandler) AddItem(c *gin.Context) {
	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("VALIDATION", "Invalid request format"))
		return
	}

	if !canAccessBranch(c, req.BranchID) {
		c.JSON(http.StatusForbidden, errorResponse("ACCESS_DENIED", "Access denied"))
		return
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		c.JSON(http.StatusBadRequest, errorResponse("VALIDATION", "price must be a non-negative number"))
		return
	}
	if req.Quantity < 0 {
		c.JSON(http.StatusBadRequest, errorResponse("VALIDATION", "quantity must not be negative"))
		return
	}

	var branch models.Branch
	if err := s.db.Where("id = ?", req.BranchID).First(&branch).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, errorResponse("NOT_FOUND", "Branch not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Database error"))
		return
	}

	var existing models.InventoryItem
	err = s.db.Where("branch_id = ? AND pid = ?", req.BranchID, req.Pid).First(&existing).Error
	if err == nil {
		c.JSON(http.StatusBadRequest, errorResponse("DUPLICATE_SKU",
			fmt.Sprintf("Product %s already exists in branch %s", req.Pid, req.BranchID)))
		return
	} else if err != gorm.ErrRecordNotFound {
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Database error"))
		return
	}

	item := models.InventoryItem{
		BranchID:    req.BranchID,
		Pid:         req.Pid,
		Name:        req.Name,
		Brand:       req.Brand,
		Category:    req.Category,
		SubCategory: req.SubCategory,
		Price:       price.StringFixed(2),
		Quantity:    req.Quantity,
		LastUpdated: time.Now(),
	}

	if err := s.db.Create(&item).Error; err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("DUPLICATE_SKU",
			fmt.Sprintf("Product %s already exists in branch %s", req.Pid, req.BranchID)))
		return
	}

	s.invalidateInventoryCaches(c.Request.Context(), req.BranchID)

	c.JSON(http.StatusCreated, successResponse("Product added to inventory", item))
}

// ListItems serves the unfiltered branch listing from a short-lived cache;
// writes in this package delete the branch key. Searches and category filters
// always go to the database.
func (s *InventoryHandler) ListItems(c *gin.Context) {
	branchID := c.Param("branch_id")
	if !canAccessBranch(c, branchID) {
		c.JSON(http.StatusForbidden, errorResponse("ACCESS_DENIED", "Access denied"))
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

	search := c.Query("search")
	category := c.Query("category")

	if search == "" && category == "" {
		items, ok := s.cachedBranchItems(c, branchID)
		if !ok {
			if err := s.db.Where("branch_id = ?", branchID).
				Order("pid asc").Find(&items).Error; err != nil {
				c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Database error"))
				return
			}
			s.cacheBranchItems(c, branchID, items)
		}
		total := int64(len(items))
		c.JSON(http.StatusOK, successWithMetaResponse("Inventory fetched",
			paginateItems(items, page, pageSize), gin.H{
				"page":      page,
				"page_size": pageSize,
				"total":     total,
			}))
		return
	}

	query := s.db.Model(&models.InventoryItem{}).Where("branch_id = ?", branchID)
	if search != "" {
		term := "%" + search + "%"
		query = query.Where("pid LIKE ? OR name LIKE ? OR brand LIKE ?", term, term, term)
	}
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Database error"))
		return
	}

	var items []models.InventoryItem
	offset := (page - 1) * pageSize
	if err := query.Order("pid asc").Offset(offset).Limit(pageSize).Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Database error"))
		return
	}

	c.JSON(http.StatusOK, successWithMetaResponse("Inventory fetched", items, gin.H{
		"page":      page,
		"page_size": pageSize,
		"total":     total,
	}))
}

func (s *InventoryHandler) cachedBranchItems(c *gin.Context, branchID string) ([]models.InventoryItem, bool) {
	if s.redis == nil {
		return nil, false
	}
	cached, err := s.redis.Get(c.Request.Context(), INVENTORY_CACHE_PREFIX+branchID).Result()
	if err != nil {
		return nil, false
	}
	var items []models.InventoryItem
	if err := json.Unmarshal([]byte(cached), &items); err != nil {
		return nil, false
	}
	return items, true
}

func (s *InventoryHandler) cacheBranchItems(c *gin.Context, branchID string, items []models.InventoryItem) {
	if s.redis == nil {
		return
	}
	if payload, err := json.Marshal(items); err == nil {
		_ = s.redis.Set(c.Request.Context(), INVENTORY_CACHE_PREFIX+branchID, payload, CACHE_TTL_SHORT)
	}
}

func paginateItems(items []models.InventoryItem, page, pageSize int) []models.InventoryItem {
	offset := (page - 1) * pageSize
	if offset >= len(items) {
		return []models.InventoryItem{}
	}
	end := offset + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func (s *InventoryHandler) GetItem(c *gin.Context) {
	branchID := c.Param("branch_id")
	pid := c.Param("pid")

	if !canAccessBranch(c, branchID) {
		c.JSON(http.StatusForbidden, errorResponse("ACCESS_DENIED", "Access denied"))
		return
	}

	var item models.InventoryItem
	if err := s.db.Where("branch_id = ? AND pid = ?", branchID, pid).First(&item).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, errorResponse("NOT_FOUND",
				fmt.Sprintf("Product %s not found in branch %s", pid, branchID)))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Database error"))
		return
	}

	c.JSON(http.StatusOK, successResponse("Product fetched", item))
}

func (s *InventoryHandler) UpdateItem(c *gin.Context) {
	branchID := c.Param("branch_id")
	pid := c.Param("pid")

	if !canAccessBranch(c, branchID) {
		c.JSON(http.StatusForbidden, errorResponse("ACCESS_DENIED", "Access denied"))
		return
	}

	var req UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("VALIDATION", "Invalid request format"))
		return
	}

	var item models.InventoryItem
	if err := s.db.Where("branch_id = ? AND pid = ?", branchID, pid).First(&item).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, errorResponse("NOT_FOUND",
				fmt.Sprintf("Product %s not found in branch %s", pid, branchID)))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Database error"))
		return
	}

	updates := map[string]interface{}{"last_updated": time.Now()}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Brand != nil {
		updates["brand"] = *req.Brand
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if req.SubCategory != nil {
		updates["sub_category"] = *req.SubCategory
	}
	if req.Price != nil {
		price, err := decimal.NewFromString(*req.Price)
		if err != nil || price.IsNegative() {
			c.JSON(http.StatusBadRequest, errorResponse("VALIDATION", "price must be a non-negative number"))
			return
		}
		updates["price"] = price.StringFixed(2)
	}
	if req.Quantity != nil {
		if *req.Quantity < 0 {
			c.JSON(http.StatusBadRequest, errorResponse("VALIDATION", "quantity must not be negative"))
			return
		}
		updates["quantity"] = *req.Quantity
	}

	if err := s.db.Model(&item).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Failed to update product"))
		return
	}

	s.invalidateInventoryCaches(c.Request.Context(), branchID)

	if err := s.db.Where("branch_id = ? AND pid = ?", branchID, pid).First(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Failed to reload product"))
		return
	}

	c.JSON(http.StatusOK, successResponse("Product updated", item))
}

// AdjustQuantity applies quantity += delta as one conditional UPDATE so a
// negative result can never be committed, even under concurrent sales.
func (s *InventoryHandler) AdjustQuantity(c *gin.Context) {
	branchID := c.Param("branch_id")
	pid := c.Param("pid")

	if !canAccessBranch(c, branchID) {
		c.JSON(http.StatusForbidden, errorResponse("ACCESS_DENIED", "Access denied"))
		return
	}

	var req AdjustQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("VALIDATION", "delta is required and must not be zero"))
		return
	}

	query := s.db.Model(&models.InventoryItem{}).
		Where("branch_id = ? AND pid = ?", branchID, pid)
	if req.Delta < 0 {
		query = query.Where("quantity >= ?", -req.Delta)
	}

	result := query.Updates(map[string]interface{}{
		"quantity":     gorm.Expr("quantity + ?", req.Delta),
		"last_updated": time.Now(),
	})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Database error"))
		return
	}

	if result.RowsAffected == 0 {
		var item models.InventoryItem
		err := s.db.Where("branch_id = ? AND pid = ?", branchID, pid).First(&item).Error
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, errorResponse("NOT_FOUND",
				fmt.Sprintf("Product %s not found in branch %s", pid, branchID)))
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Database error"))
			return
		}
		c.JSON(http.StatusBadRequest, errorResponse("INSUFFICIENT_STOCK",
			fmt.Sprintf("Insufficient stock for %s. Available: %d, Requested: %d",
				pid, item.Quantity, -req.Delta)))
		return
	}

	s.invalidateInventoryCaches(c.Request.Context(), branchID)

	var item models.InventoryItem
	if err := s.db.Where("branch_id = ? AND pid = ?", branchID, pid).First(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Failed to reload product"))
		return
	}

	c.JSON(http.StatusOK, successResponse("Quantity adjusted", item))
}

func (s *InventoryHandler) RemoveItem(c *gin.Context) {
	branchID := c.Param("branch_id")
	pid := c.Param("pid")

	if !canAccessBranch(c, branchID) {
		c.JSON(http.StatusForbidden, errorResponse("ACCESS_DENIED", "Access denied"))
		return
	}

	result := s.db.Where("branch_id = ? AND pid = ?", branchID, pid).Delete(&models.InventoryItem{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Database error"))
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, errorResponse("NOT_FOUND",
			fmt.Sprintf("Product %s not found in branch %s", pid, branchID)))
		return
	}

	s.invalidateInventoryCaches(c.Request.Context(), branchID)

	c.JSON(http.StatusOK, successResponse("Product removed from inventory", nil))
}
