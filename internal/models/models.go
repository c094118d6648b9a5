package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog
type Product struct {
	ID          int64           `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	SKU         string          `db:"sku" json:"sku"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Stock       int             `db:"stock" json:"stock"`
	CategoryID  *int64          `db:"category_id" json:"category_id"`
	BrandID     *int64          `db:"brand_id" json:"brand_id"`
	Description string          `db:"description" json:"description"`
	ImageURL    string          `db:"image_url" json:"image_url"`
	Status      string          `db:"status" json:"status"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// Category groups products, optionally nested under a parent
type Category struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	ParentID    *int64    `db:"parent_id" json:"parent_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Brand represents a product brand
type Brand struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	LogoURL     string    `db:"logo_url" json:"logo_url"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Customer is a registered guest that takeaway orders are placed for
type Customer struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     *string   `db:"email" json:"email"`
	Phone     *string   `db:"phone" json:"phone"`
	Address   string    `db:"address" json:"address"`
	Points    int       `db:"points" json:"points"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StaffUser is a back-office account. PasswordHash is a bcrypt hash and is
// never serialised.
type StaffUser struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	FullName     string    `db:"full_name" json:"full_name"`
	Email        *string   `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// RevenueSummary is revenue and order count over one period
type RevenueSummary struct {
	Revenue decimal.Decimal `db:"revenue" json:"revenue"`
	Orders  int             `db:"orders" json:"orders"`
}

// DashboardStats is the back-office landing summary. Only payment-verified
// orders count as revenue.
type DashboardStats struct {
	Today        RevenueSummary `json:"today"`
	Month        RevenueSummary `json:"month"`
	Total        RevenueSummary `json:"total"`
	RecentOrders []Order        `json:"recent_orders"`
}

// Analytics are lifetime sales figures
type Analytics struct {
	Revenue            decimal.Decimal `json:"revenue"`
	Orders             int             `json:"orders"`
	AverageOrderValue  decimal.Decimal `json:"average_order_value"`
	NewCustomers       int             `json:"new_customers"`
	ReturningCustomers int             `json:"returning_customers"`
	ProductsSold       int             `json:"products_sold"`
}

// Order represents a customer order.
// TotalAmount is always OriginalAmount minus DiscountAmount.
type Order struct {
	ID              int64           `db:"id" json:"id"`
	OrderNumber     string          `db:"order_number" json:"order_number"`
	CustomerID      *int64          `db:"customer_id" json:"customer_id"`
	TableID         *int64          `db:"table_id" json:"table_id"`
	OrderType       string          `db:"order_type" json:"order_type"`
	CustomerName    string          `db:"customer_name" json:"customer_name"`
	Status          string          `db:"status" json:"status"`
	OriginalAmount  decimal.Decimal `db:"original_amount" json:"original_amount"`
	DiscountAmount  decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	TotalAmount     decimal.Decimal `db:"total_amount" json:"total_amount"`
	CouponID        *int64          `db:"coupon_id" json:"coupon_id"`
	CouponCode      *string         `db:"coupon_code" json:"coupon_code"`
	PaymentMethod   string          `db:"payment_method" json:"payment_method"`
	PaymentVerified bool            `db:"payment_verified" json:"payment_verified"`
	Notes           string          `db:"notes" json:"notes"`
	IdempotencyKey  *string         `db:"idempotency_key" json:"-"`
	CompletedAt     *time.Time      `db:"completed_at" json:"completed_at"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// OrderItem is an immutable snapshot of a product line at order time
type OrderItem struct {
	ID          int64           `db:"id" json:"id"`
	OrderID     int64           `db:"order_id" json:"order_id"`
	ProductID   int64           `db:"product_id" json:"product_id"`
	ProductName string          `db:"product_name" json:"product_name"`
	Quantity    int             `db:"quantity" json:"quantity"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Subtotal    decimal.Decimal `db:"subtotal" json:"subtotal"`
}

// Coupon is a discount code; Code is stored uppercase
type Coupon struct {
	ID            int64               `db:"id" json:"id"`
	Code          string              `db:"code" json:"code"`
	DiscountType  string              `db:"discount_type" json:"discount_type"`
	DiscountValue decimal.Decimal     `db:"discount_value" json:"discount_value"`
	MinPurchase   decimal.Decimal     `db:"min_purchase" json:"min_purchase"`
	MaxDiscount   decimal.NullDecimal `db:"max_discount" json:"max_discount"`
	UsageLimit    int                 `db:"usage_limit" json:"usage_limit"`
	UsedCount     int                 `db:"used_count" json:"used_count"`
	StartDate     *time.Time          `db:"start_date" json:"start_date"`
	EndDate       *time.Time          `db:"end_date" json:"end_date"`
	IsActive      bool                `db:"is_active" json:"is_active"`
	CreatedAt     time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time           `db:"updated_at" json:"updated_at"`
}

// Table is a physical table reachable through its QR token
type Table struct {
	ID          int64      `db:"id" json:"id"`
	TableNumber string     `db:"table_number" json:"table_number"`
	QRToken     string     `db:"qr_token" json:"qr_token"`
	QRURL       string     `db:"qr_url" json:"qr_url"`
	QRImage     string     `db:"qr_image" json:"qr_image,omitempty"`
	Capacity    int        `db:"capacity" json:"capacity"`
	Status      string     `db:"status" json:"status"`
	DeletedAt   *time.Time `db:"deleted_at" json:"-"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Payment represents a payment attempt through the gateway
type Payment struct {
	ID           int64               `db:"id" json:"id"`
	OrderID      int64               `db:"order_id" json:"order_id"`
	ReferenceID  string              `db:"reference_id" json:"reference_id"`
	ProviderID   string              `db:"provider_id" json:"provider_id"`
	Method       string              `db:"method" json:"method"`
	ChannelCode  string              `db:"channel_code" json:"channel_code"`
	Amount       decimal.Decimal     `db:"amount" json:"amount"`
	PaidAmount   decimal.NullDecimal `db:"paid_amount" json:"paid_amount"`
	Status       string              `db:"status" json:"status"`
	Metadata     string              `db:"metadata" json:"-"`
	PaidAt       *time.Time          `db:"paid_at" json:"paid_at"`
	CreatedAt    time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time           `db:"updated_at" json:"updated_at"`
}

// Product statuses
const (
	ProductStatusActive   = "active"
	ProductStatusInactive = "inactive"
	ProductStatusDeleted  = "deleted"
)

// Order types
const (
	OrderTypeTakeaway = "takeaway"
	OrderTypeDineIn   = "dine-in"
)

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusCooking   = "cooking"
	OrderStatusReady     = "ready"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

// Coupon discount types
const (
	DiscountTypePercentage = "percentage"
	DiscountTypeNominal    = "nominal"
)

// Table statuses
const (
	TableStatusAvailable = "available"
	TableStatusOccupied  = "occupied"
	TableStatusReserved  = "reserved"
	TableStatusDeleted   = "deleted"
)

// Staff roles
const (
	StaffRoleAdmin   = "admin"
	StaffRoleCashier = "cashier"
	StaffRoleKitchen = "kitchen"
)

// Payment methods
const (
	PaymentMethodQRIS           = "qris"
	PaymentMethodVirtualAccount = "virtual_account"
	PaymentMethodEWallet        = "ewallet"
)

// Payment statuses reported by the gateway
const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusPaid      = "PAID"
	PaymentStatusSettled   = "SETTLED"
	PaymentStatusCompleted = "COMPLETED"
	PaymentStatusFailed    = "FAILED"
	PaymentStatusExpired   = "EXPIRED"
)

// IsPaidStatus reports whether a gateway status means the money arrived.
func IsPaidStatus(status string) bool {
	switch status {
	case PaymentStatusPaid, PaymentStatusSettled, PaymentStatusCompleted:
		return true
	}
	return false
}

