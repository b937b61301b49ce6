package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "labbooking/api/swagger" // swagger docs
	"labbooking/internal/config"
	"labbooking/internal/database"
	"labbooking/internal/handler"
	"labbooking/internal/payment"
	"labbooking/internal/repository"
	"labbooking/internal/service"
	"labbooking/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Lab Borrowing API
// @version         1.0
// @description     Borrowing requests for lab tools and reagents, gateway payments and lab visit schedules.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load("configs/.env")
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	gin.SetMode(cfg.GinMode)

	db, err := database.NewConnection(cfg.DSN)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Connected to PostgreSQL successfully.")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wsHub := websocket.NewHub()
	go wsHub.Run(ctx)

	// A nil interface makes every gateway call fail as an upstream error
	// while the rest of the API keeps serving.
	var gateway payment.Gateway
	if g, err := payment.NewMidtransGateway(cfg.Midtrans); err != nil {
		log.Printf("Payment gateway unavailable: %v", err)
	} else {
		gateway = g
	}

	// Repository -> Service -> Handler
	txManager := repository.NewTransactionManager(db)
	requestRepo := repository.NewRequestRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	statsRepo := repository.NewStatisticsRepository(db)

	scheduleService := service.NewScheduleService(scheduleRepo, requestRepo, auditRepo, txManager, wsHub)
	requestService := service.NewRequestService(requestRepo, paymentRepo, scheduleRepo, inventoryRepo, auditRepo, txManager, gateway, wsHub)
	reconciliationService := service.NewReconciliationService(paymentRepo, requestRepo, auditRepo, txManager, scheduleService, gateway, wsHub)
	inventoryService := service.NewInventoryService(inventoryRepo, auditRepo, txManager, wsHub)
	auditService := service.NewAuditService(auditRepo)
	statisticsService := service.NewStatisticsService(statsRepo)

	go scheduleService.RunSweeper(ctx, cfg.SweepInterval)

	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, cfg.JWTSecret)
	})

	handler.NewRequestHandler(requestService, cfg.JWTSecret).RegisterRoutes(router.Group(""))
	handler.NewPaymentHandler(reconciliationService, cfg.JWTSecret).RegisterRoutes(router.Group(""))
	handler.NewScheduleHandler(scheduleService, cfg.JWTSecret).RegisterRoutes(router.Group(""))
	handler.NewInventoryHandler(inventoryService, cfg.JWTSecret).RegisterRoutes(router.Group(""))
	handler.NewAuditHandler(auditService, cfg.JWTSecret).RegisterRoutes(router.Group(""))
	handler.NewStatisticsHandler(statisticsService, cfg.JWTSecret).RegisterRoutes(router.Group(""))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
