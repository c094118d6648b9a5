package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"pos-service/internal/apperr"
	"pos-service/internal/models"
	"pos-service/internal/notify"
	"pos-service/internal/service"
	"pos-service/internal/store"
	"pos-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// OrderService is the order surface the handlers use
type OrderService interface {
	CreateOrder(ctx context.Context, req *service.CreateOrderRequest) (*service.OrderDetail, error)
	GetOrder(ctx context.Context, orderID int64) (*service.OrderDetail, error)
	ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, error)
	SetStatus(ctx context.Context, orderID int64, status string, paymentVerified *bool) (*models.Order, error)
	DeleteOrder(ctx context.Context, orderID int64) error
}

// PaymentService is the payment surface the handlers use
type PaymentService interface {
	CreatePayment(ctx context.Context, req *service.CreatePaymentRequest) (*service.PaymentResult, error)
	GetPayment(ctx context.Context, ref string) (*models.Payment, error)
	HandleCallback(ctx context.Context, cb *models.PaymentCallbackEvent) error
}

// Pinger reports whether a backing service is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the HTTP layer
type Deps struct {
	Orders    OrderService
	Catalog   CatalogService
	Coupons   CouponService
	Tables    TableService
	Payments  PaymentService
	Customers CustomerService
	Auth      AuthService
	Dashboard DashboardService
	Hub       *notify.Hub

	// Checks are pinged by /ready, keyed by name
	Checks map[string]Pinger

	JWTSecret    string
	WebhookToken string

	// RequestTimeout bounds the context of every /api/v1 request; zero disables it
	RequestTimeout time.Duration
}

// Handler contains HTTP handlers
type Handler struct {
	Deps
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(deps Deps) *Handler {
	return &Handler{
		Deps:   deps,
		logger: util.Logger("http"),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(requestLogger(h.logger))

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/ws/orders", h.ordersSocket)
	router.GET("/api/ws/orders", h.ordersSocket)

	v1 := router.Group("/api/v1", requestTimeout(h.RequestTimeout))
	{
		v1.POST("/orders", h.createOrder)
		v1.GET("/orders/:id", h.getOrder)

		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)
		v1.GET("/categories", h.listCategories)
		v1.GET("/brands", h.listBrands)

		v1.POST("/coupons/validate", h.validateCoupon)
		v1.GET("/tables/token/:token", h.getTableByToken)

		v1.POST("/payments", h.createPayment)
		v1.GET("/payments/:ref", h.getPayment)
		v1.POST("/payments/webhook", h.paymentWebhook)

		v1.POST("/auth/login", h.login)
	}

	staff := v1.Group("", StaffAuth(h.JWTSecret))
	{
		staff.GET("/orders", h.listOrders)
		staff.PATCH("/orders/:id/status", h.setOrderStatus)
		staff.DELETE("/orders/:id", h.deleteOrder)

		staff.POST("/products", h.createProduct)
		staff.PUT("/products/:id", h.updateProduct)
		staff.PATCH("/products/:id/stock", h.adjustStock)
		staff.DELETE("/products/:id", h.deleteProduct)

		staff.POST("/categories", h.createCategory)
		staff.GET("/categories/:id", h.getCategory)
		staff.PUT("/categories/:id", h.updateCategory)
		staff.DELETE("/categories/:id", h.deleteCategory)

		staff.POST("/brands", h.createBrand)
		staff.GET("/brands/:id", h.getBrand)
		staff.PUT("/brands/:id", h.updateBrand)
		staff.DELETE("/brands/:id", h.deleteBrand)

		staff.GET("/coupons", h.listCoupons)
		staff.POST("/coupons", h.createCoupon)
		staff.GET("/coupons/:id", h.getCoupon)
		staff.PUT("/coupons/:id", h.updateCoupon)
		staff.DELETE("/coupons/:id", h.deleteCoupon)

		staff.GET("/tables", h.listTables)
		staff.POST("/tables", h.createTable)
		staff.POST("/tables/regenerate-qr", h.regenerateQR)
		staff.GET("/tables/:id", h.getTable)
		staff.PUT("/tables/:id", h.updateTable)
		staff.DELETE("/tables/:id", h.deleteTable)

		staff.GET("/customers", h.listCustomers)
		staff.POST("/customers", h.createCustomer)
		staff.GET("/customers/:id", h.getCustomer)
		staff.PUT("/customers/:id", h.updateCustomer)
		staff.DELETE("/customers/:id", h.deleteCustomer)

		staff.GET("/auth/me", h.me)
		staff.POST("/auth/logout", h.logout)

		staff.GET("/dashboard/stats", h.dashboardStats)
		staff.GET("/dashboard/analytics", h.dashboardAnalytics)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, p := range h.Checks {
		if err := p.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// createOrder handles order creation
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	resp, err := h.Orders.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	order, err := h.Orders.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *Handler) listOrders(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	orders, err := h.Orders.ListOrders(c.Request.Context(), store.OrderFilter{
		Status:    c.Query("status"),
		OrderType: c.Query("order_type"),
		Limit:     limit,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

type setStatusRequest struct {
	Status          string `json:"status" binding:"required"`
	PaymentVerified *bool  `json:"payment_verified"`
}

func (h *Handler) setOrderStatus(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}
	var req setStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.Orders.SetStatus(c.Request.Context(), orderID, req.Status, req.PaymentVerified)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order":    order,
		"progress": models.Progress(order.Status),
	})
}

func (h *Handler) deleteOrder(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.Orders.DeleteOrder(c.Request.Context(), orderID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// respondError maps an error to its HTTP status. Unclassified errors are
// logged and hidden from the client.
func (h *Handler) respondError(c *gin.Context, err error) {
	var status int
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindUnauthorized:
		status = http.StatusUnauthorized
	case apperr.KindTransient:
		status = http.StatusServiceUnavailable
	default:
		h.logger.Error("Unhandled error",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if status == http.StatusServiceUnavailable {
		h.logger.Warn("Dependency unavailable",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return false
	}
	return true
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid ID",
		})
		return 0, false
	}
	return id, true
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}

func requestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
