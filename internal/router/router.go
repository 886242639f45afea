package router

import (
	"time"

	"dukapos/internal/config"
	"dukapos/internal/handler"
	"dukapos/internal/infra"
	"dukapos/internal/middleware"
	"dukapos/internal/repository"
	"dukapos/internal/service"
	"dukapos/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps carries the shared infrastructure the router wires together.
type Deps struct {
	Config     *config.Config
	DB         *gorm.DB
	RDB        *redis.Client
	Mpesa      *infra.MpesaClient
	GatewayCB  *infra.CircuitBreaker
	Dispatcher *worker.Dispatcher
}

// New wires all dependencies and returns a configured Gin engine plus the POS
// service, which the payment reconciler also drives.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(d Deps) (*gin.Engine, service.POSService) {
	cfg := d.Config
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Repositories ─────────────────────────────────────────────────────────
	userRepo := repository.NewUserRepository(d.DB)
	branchRepo := repository.NewBranchRepository(d.DB)
	productRepo := repository.NewProductRepository(d.DB)
	invRepo := repository.NewInventoryRepository(d.DB)
	saleRepo := repository.NewSaleRepository(d.DB)
	restockRepo := repository.NewRestockRepository(d.DB)
	paymentRepo := repository.NewPaymentRepository(d.DB)
	reportRepo := repository.NewReportRepository(d.DB)

	// ── Services ─────────────────────────────────────────────────────────────
	authSvc := service.NewAuthService(userRepo, cfg)
	userSvc := service.NewUserService(userRepo)
	inventorySvc := service.NewInventoryService(invRepo, branchRepo, productRepo, restockRepo, d.Dispatcher)
	posSvc := service.NewPOSService(branchRepo, productRepo, invRepo, saleRepo, paymentRepo,
		d.Mpesa, d.GatewayCB, d.Dispatcher, cfg.PDFStoragePath)
	dashboardSvc := service.NewDashboardService(reportRepo, saleRepo, invRepo)
	salesSvc := service.NewSalesService(reportRepo)

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	usersH := handler.NewUsersHandler(userSvc)
	inventoryH := handler.NewInventoryHandler(inventorySvc)
	posH := handler.NewPOSHandler(posSvc)
	dashboardH := handler.NewDashboardHandler(dashboardSvc)
	salesH := handler.NewSalesHandler(salesSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(d.DB, d.RDB, d.GatewayCB))

	auth := r.Group("/api/auth")
	{
		auth.POST("/signup", authH.Signup)
		auth.POST("/login", middleware.LoginRateLimiter(), authH.Login)
	}

	// Storefront checkout — public; the customer authorises on their phone,
	// not with an account.
	pos := r.Group("/api/pos")
	{
		pos.GET("/branches", posH.Branches)
		pos.GET("/branches/:id/products", posH.BranchProducts)
		pos.POST("/order/preview", posH.Preview)
		pos.POST("/payment/initiate", posH.Initiate)
		pos.POST("/payment/callback", posH.Callback)
		pos.POST("/payment/confirm", posH.Confirm)
		pos.GET("/payment/:id/status", posH.Status)
		pos.GET("/receipt/:reference", posH.Receipt)
		pos.GET("/receipt/:reference/pdf", posH.ReceiptPDF)
	}

	// Authenticated
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	authed := r.Group("/api", jwtMW)
	{
		authed.GET("/auth/me", authH.Me)
		authed.POST("/auth/change-password", authH.ChangePassword)
	}

	// Admin only — role re-read from the DB on every request
	admin := r.Group("/api", jwtMW, middleware.RequireAdmin(userRepo))
	{
		inv := admin.Group("/inventory")
		{
			inv.GET("", inventoryH.List)
			inv.GET("/low-stock", inventoryH.LowStock)
			inv.GET("/branches", inventoryH.Branches)
			inv.GET("/products", inventoryH.Products)
			inv.POST("/restock", inventoryH.Restock)
			inv.POST("/restockhq", inventoryH.RestockHQ)
			inv.GET("/restocks", inventoryH.RestockLogs)
		}

		dash := admin.Group("/dashboard")
		{
			dash.GET("/metrics", dashboardH.Metrics)
			dash.GET("/sales-timeline", dashboardH.Timeline)
			dash.GET("/recent-transactions", dashboardH.RecentTransactions)
		}

		sales := admin.Group("/sales")
		{
			sales.GET("/reports", salesH.Report)
			sales.GET("/detailed", salesH.Detailed)
			sales.GET("/analytics", salesH.Analytics)
		}

		users := admin.Group("/users")
		{
			users.GET("", usersH.List)
			users.GET("/stats", usersH.Stats)
			users.POST("/:id/promote", usersH.Promote)
			users.POST("/:id/demote", usersH.Demote)
		}
	}

	// Swagger UI — only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r, posSvc
}
