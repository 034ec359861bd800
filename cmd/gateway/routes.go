package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"vendra-system/config"
	"vendra-system/internal/database"
	"vendra-system/internal/gateway/handlers"
	"vendra-system/internal/gateway/middleware"
	"vendra-system/internal/lifecycle"
	"vendra-system/internal/logger"
)

func main() {
	cfg := config.LoadConfig()

	log, err := logger.New(cfg.Server.Mode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db, err := database.NewConnection(cfg.DB.DSN())
	if err != nil {
		log.Fatal("failed to connect to database", "error", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("failed to run migrations", "error", err)
	}

	redisClient, err := config.NewRedisClient(cfg.Redis)
	if err != nil {
		// The engine degrades to uncached reads without redis.
		log.Warn("redis unavailable, running without PO cache", "error", err)
		redisClient = nil
	}

	engine := lifecycle.NewEngine(db, log, redisClient)
	procurement := handlers.NewProcurementHTTPHandler(engine)

	if cfg.Server.Mode == "prod" || cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.CORS())
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(middleware.RateLimit("60-M"))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	})

	secret := []byte(cfg.Auth.JWTSecret)
	protected := r.Group("/api/v1")
	protected.Use(middleware.JWTAuth(secret))
	{
		rfqs := protected.Group("/rfqs")
		{
			rfqs.POST("", procurement.CreateRFQ)
			rfqs.GET("", procurement.ListRFQs)
			rfqs.GET("/:id", procurement.GetRFQ)
			rfqs.POST("/:id/quotes", procurement.SubmitQuote)
		}

		quotes := protected.Group("/quotes")
		{
			quotes.POST("/:id/accept", procurement.AcceptQuote)
		}

		orders := protected.Group("/purchase-orders")
		{
			orders.GET("/:id", procurement.GetPurchaseOrder)
			orders.GET("/:id/events", procurement.GetPurchaseOrderEvents)
			orders.POST("/:id/accept", procurement.AcceptPurchaseOrder)
			orders.POST("/:id/milestones/:milestoneId/complete", procurement.CompleteMilestone)
			orders.POST("/:id/milestones/:milestoneId/pay", procurement.PayMilestone)
			orders.POST("/:id/disputes", procurement.RaiseDispute)
			orders.POST("/:id/disputes/resolve", procurement.ResolveDispute)
		}

		admin := protected.Group("/admin/purchase-orders")
		{
			admin.POST("/:id/force-cancel", procurement.ForceCancel)
			admin.POST("/:id/force-close", procurement.ForceClose)
		}
	}

	addr := ":" + cfg.Server.Port
	log.Info("starting server", "addr", addr)
	if err := r.Run(addr); err != nil {
		log.Fatal("server exited", "error", err)
	}
}
