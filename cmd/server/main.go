package main

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"branchline-system/config"
	"branchline-system/internal/database"
	"branchline-system/internal/database/models"
	"branchline-system/internal/middleware"
	branchhandler "branchline-system/internal/services/branch/handler"
	billinghandler "branchline-system/internal/services/billing/handler"
	inventoryhandler "branchline-system/internal/services/inventory/handler"
	reportshandler "branchline-system/internal/services/reports/handler"
	staffhandler "branchline-system/internal/services/staff/handler"
	"branchline-system/internal/utils"
)

func main() {
	cfg := config.LoadConfig()

	if cfg.Auth.JWTSecret != "" {
		utils.SetSecret(cfg.Auth.JWTSecret)
	}

	db, err := database.NewConnection(cfg.DB.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = config.NewRedisClient(cfg.Redis)
	}

	r := gin.Default()
	r.Use(middleware.CORS())
	r.Use(middleware.RateLimit("100-M"))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	staffH := staffhandler.NewStaffHandler(db, cfg.Auth.TokenTTL)
	branchH := branchhandler.NewBranchHandler(db, redisClient)
	inventoryH := inventoryhandler.NewInventoryHandler(db, redisClient)
	billingH := billinghandler.NewBillingHandler(db, redisClient)
	reportsH := reportshandler.NewReportsHandler(db, redisClient)

	v1 := r.Group("/api/v1")

	v1.POST("/auth/login", staffH.Login)

	auth := v1.Group("")
	auth.Use(middleware.JWTAuth())
	{
		branches := auth.Group("/branches")
		{
			branches.GET("", branchH.ListBranches)
			branches.GET("/:branch_id", branchH.GetBranch)
			branches.POST("", middleware.RequireRole(models.RoleSuperadmin), branchH.CreateBranch)
			branches.DELETE("/:branch_id", middleware.RequireRole(models.RoleSuperadmin), branchH.DeleteBranch)
		}

		inventory := auth.Group("/inventory")
		{
			inventory.POST("", inventoryH.AddItem)
			inventory.GET("/:branch_id", inventoryH.ListItems)
			inventory.GET("/:branch_id/:pid", inventoryH.GetItem)
			inventory.PUT("/:branch_id/:pid", inventoryH.UpdateItem)
			inventory.POST("/:branch_id/:pid/adjust", inventoryH.AdjustQuantity)
			inventory.DELETE("/:branch_id/:pid", inventoryH.RemoveItem)
		}

		bills := auth.Group("/bills")
		{
			bills.POST("", billingH.CreateBill)
			bills.GET("/:bill_id", billingH.GetBill)
			bills.PUT("/:bill_id/status", billingH.UpdateBillStatus)
			bills.GET("/branch/:branch_id", billingH.ListBills)
			bills.GET("/revenue/:branch_id", billingH.BranchRevenue)
			bills.DELETE("/:bill_id", middleware.RequireRole(models.RoleSuperadmin), billingH.DeleteBill)
		}

		reports := auth.Group("/reports")
		reports.Use(middleware.RequireRole(models.RoleSuperadmin))
		{
			reports.GET("/revenue", reportsH.RevenueSummary)
		}

		staff := auth.Group("/staff")
		{
			staff.POST("", middleware.RequireRole(models.RoleManager, models.RoleSuperadmin), staffH.CreateStaff)
			staff.GET("/:id", staffH.GetStaff)
			staff.GET("/branch/:branch_id", staffH.ListStaffByBranch)
		}

		attendance := auth.Group("/attendance")
		{
			attendance.POST("/checkin", staffH.CheckIn)
			attendance.POST("/checkout", staffH.CheckOut)
			attendance.GET("/:staff_id", staffH.ListAttendance)
		}

		salaries := auth.Group("/salaries")
		{
			salaries.POST("", middleware.RequireRole(models.RoleManager, models.RoleSuperadmin), staffH.CreateSalaryRecord)
			salaries.GET("/:staff_id", staffH.ListSalaryRecords)
		}

		appraisals := auth.Group("/appraisals")
		{
			appraisals.POST("", middleware.RequireRole(models.RoleManager, models.RoleSuperadmin), staffH.CreateAppraisal)
			appraisals.GET("/:staff_id", staffH.ListAppraisals)
		}

		complaints := auth.Group("/complaints")
		{
			complaints.POST("", staffH.CreateComplaint)
			complaints.GET("/branch/:branch_id", staffH.ListComplaints)
			complaints.PUT("/:id/status", middleware.RequireRole(models.RoleManager, models.RoleSuperadmin), staffH.UpdateComplaintStatus)
		}
	}

	log.Printf("Server starting on port %s", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
