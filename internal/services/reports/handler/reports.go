package handler

import (
	"encoding/json"
	"net/http"
	"sort"
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
	CACHE_TTL_SHORT           = 5 * time.Minute
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

type RevenueGroup struct {
	Key          string `json:"key"`
	TotalRevenue string `json:"total_revenue"`
	BillCount    int64  `json:"bill_count"`
	TotalItems   int64  `json:"total_items"`
	AvgBillValue string `json:"avg_bill_value"`
}

// --- Handler ---

type ReportsHandler struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewReportsHandler(db *gorm.DB, redisClient *redis.Client) *ReportsHandler {
	return &ReportsHandler{
		db:    db,
		redis: redisClient,
	}
}

// RevenueSummary aggregates completed bills grouped by branch or payment
// method. Pure read path: it tolerates bills committed mid-query, and the
// unfiltered summaries are served from a short-lived cache.
func (s *ReportsHandler) RevenueSummary(c *gin.Context) {
	groupBy := c.DefaultQuery("group_by", "branch")
	if groupBy != "branch" && groupBy != "payment_method" {
		c.JSON(http.StatusBadRequest, errorResponse("VALIDATION",
			"group_by must be branch or payment_method"))
		return
	}

	start := c.Query("start_date")
	end := c.Query("end_date")

	cacheKey := ""
	if start == "" && end == "" {
		if groupBy == "branch" {
			cacheKey = REVENUE_BRANCH_CACHE_KEY
		} else {
			cacheKey = REVENUE_PAYMENT_CACHE_KEY
		}
		if s.redis != nil {
			if cached, err := s.redis.Get(c.Request.Context(), cacheKey).Result(); err == nil {
				var groups []RevenueGroup
				if json.Unmarshal([]byte(cached), &groups) == nil {
					c.JSON(http.StatusOK, successResponse("Revenue summary fetched", groups))
					return
				}
			}
		}
	}

	query := s.db.Model(&models.Bill{}).Preload("Items").
		Where("status = ?", models.BillStatusCompleted)

	if start != "" {
		startDate, err := time.Parse("2006-01-02", start)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("VALIDATION", "start_date must be YYYY-MM-DD"))
			return
		}
		query = query.Where("bill_date >= ?", startDate)
	}
	if end != "" {
		endDate, err := time.Parse("2006-01-02", end)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("VALIDATION", "end_date must be YYYY-MM-DD"))
			return
		}
		query = query.Where("bill_date < ?", endDate.AddDate(0, 0, 1))
	}

	var bills []models.Bill
	if err := query.Find(&bills).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("DB_ERROR", "Database error"))
		return
	}

	type bucket struct {
		revenue decimal.Decimal
		bills   int64
		items   int64
	}
	buckets := make(map[string]*bucket)

	for _, bill := range bills {
		key := bill.BranchID
		if groupBy == "payment_method" {
			key = bill.PaymentMethod
		}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{revenue: decimal.Zero}
			buckets[key] = b
		}
		amount, err := decimal.NewFromString(bill.Total)
		if err != nil {
			continue
		}
		b.revenue = b.revenue.Add(amount)
		b.bills++
		for _, item := range bill.Items {
			b.items += int64(item.Quantity)
		}
	}

	groups := make([]RevenueGroup, 0, len(buckets))
	for key, b := range buckets {
		avg := decimal.Zero
		if b.bills > 0 {
			avg = b.revenue.Div(decimal.NewFromInt(b.bills))
		}
		groups = append(groups, RevenueGroup{
			Key:          key,
			TotalRevenue: b.revenue.StringFixed(2),
			BillCount:    b.bills,
			TotalItems:   b.items,
			AvgBillValue: avg.StringFixed(2),
		})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })

	if cacheKey != "" && s.redis != nil {
		if payload, err := json.Marshal(groups); err == nil {
			_ = s.redis.Set(c.Request.Context(), cacheKey, payload, CACHE_TTL_SHORT)
		}
	}

	c.JSON(http.StatusOK, successResponse("Revenue summary fetched", groups))
}
