package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pos-service/config"
	"pos-service/internal/api"
	"pos-service/internal/broker"
	"pos-service/internal/gateway"
	"pos-service/internal/notify"
	"pos-service/internal/redisclient"
	"pos-service/internal/service"
	"pos-service/internal/store"
	"pos-service/internal/util"
	"pos-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting POS service",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port))

	tp, err := util.InitTracer(util.TracerOptions{
		ServiceName: "pos-service",
		Environment: cfg.Server.Env,
		SampleRatio: cfg.Observ.TraceSampleRatio,
		Endpoint:    cfg.Observ.JaegerEndpoint,
	})
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL, cfg.Database.MaxOpenConns)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = db.Migrate(migrateCtx)
	migrateCancel()
	if err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	logger.Info("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	eventPublisher := broker.NewEventPublisher(producer)

	hub := notify.NewHub()
	dispatcher := notify.NewDispatcher(hub, eventPublisher, 5*time.Second)

	orderService := service.NewOrderService(service.NewStoreRepository(db), redisClient, dispatcher, service.OrderOptions{
		RejectInvalidCoupon:      cfg.Business.RejectInvalidCoupon,
		EnforceStatusTransitions: cfg.Business.EnforceStatusTransitions,
		IdempotencyTTL:           cfg.Redis.IdempotencyTTL,
	})
	catalogService := service.NewCatalogService(db)
	couponService := service.NewCouponService(db)
	tableService := service.NewTableService(db, redisClient,
		service.PNGQRGenerator{Size: cfg.Business.QRSize}, cfg.Server.PublicBaseURL, cfg.Redis.TableCacheTTL)

	customerService := service.NewCustomerService(db)
	authService := service.NewAuthService(db, service.BcryptHasher{}, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	bootstrapCtx, bootstrapCancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = authService.EnsureAdmin(bootstrapCtx, cfg.Auth.BootstrapAdminUsername, cfg.Auth.BootstrapAdminPassword)
	bootstrapCancel()
	if err != nil {
		logger.Fatal("Failed to bootstrap admin account", zap.Error(err))
	}

	loc, err := time.LoadLocation(cfg.Business.Timezone)
	if err != nil {
		logger.Warn("Unknown business timezone, using local time",
			zap.String("timezone", cfg.Business.Timezone), zap.Error(err))
		loc = time.Local
	}
	dashboardService := service.NewDashboardService(db, loc)

	xendit := gateway.NewXenditClient(cfg.Payment.XenditBaseURL, cfg.Payment.XenditAPIKey, 30*time.Second)
	paymentService := service.NewPaymentService(db, xendit, orderService)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	callbackConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicPaymentCallbacks, cfg.Kafka.ConsumerGroup)
	paymentWorker := worker.NewPaymentWorker(callbackConsumer, paymentService)
	go func() {
		if err := paymentWorker.Start(workerCtx); err != nil && err != context.Canceled {
			logger.Error("Payment worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Auth.JWTSecret == "" {
		logger.Warn("JWT_SECRET is not set; staff endpoints will reject every request")
	}
	if cfg.Payment.XenditWebhookToken == "" {
		logger.Warn("XENDIT_WEBHOOK_TOKEN is not set; payment webhooks will be rejected")
	}

	router := gin.New()
	handler := api.NewHandler(api.Deps{
		Orders:    orderService,
		Catalog:   catalogService,
		Coupons:   couponService,
		Tables:    tableService,
		Payments:  paymentService,
		Customers: customerService,
		Auth:      authService,
		Dashboard: dashboardService,
		Hub:       hub,
		Checks: map[string]api.Pinger{
			"postgres": db,
			"redis":    redisClient,
		},
		JWTSecret:      cfg.Auth.JWTSecret,
		WebhookToken:   cfg.Payment.XenditWebhookToken,
		RequestTimeout: cfg.Database.QueryTimeout,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Hijacked websocket connections are not closed by Shutdown.
	hub.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := paymentWorker.Stop(); err != nil {
		logger.Warn("Error stopping payment worker", zap.Error(err))
	}
	dispatcher.Wait()

	logger.Info("Server exited")
}
