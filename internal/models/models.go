package models

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices and totals go over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Role is an access tier
type Role string

const (
	RoleUser    Role = "user"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// ParseRole maps a role label to a Role. "staff" and "customer" are the
// labels the dashboards use for manager and user.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user", "customer":
		return RoleUser, true
	case "manager", "staff":
		return RoleManager, true
	case "admin":
		return RoleAdmin, true
	}
	return "", false
}

// IsStaff reports whether the role may act on other users' orders
func (r Role) IsStaff() bool {
	return r == RoleManager || r == RoleAdmin
}

// Address is the profile address of a user
type Address struct {
	Street   string `json:"street"`
	Barangay string `json:"barangay"`
	City     string `json:"city"`
	Province string `json:"province"`
	ZipCode  string `json:"zipCode"`
	Country  string `json:"country"`
}

// ShippingAddress is where an order is delivered. Users keep a short list of them.
type ShippingAddress struct {
	Street  string `json:"street" validate:"required,min=2,max=100"`
	City    string `json:"city" validate:"required,min=2,max=100"`
	State   string `json:"state" validate:"required,min=2,max=100"`
	ZipCode string `json:"zipCode" validate:"required,max=20"`
	Country string `json:"country" validate:"omitempty,min=2,max=100"`
}

// ShippingAddresses is the bounded address book stored on a user
type ShippingAddresses []ShippingAddress

// User represents an account
type User struct {
	ID                string            `db:"id" json:"id"`
	Email             string            `db:"email" json:"email"`
	PasswordHash      string            `db:"password_hash" json:"-"`
	FirstName         string            `db:"first_name" json:"firstName"`
	LastName          string            `db:"last_name" json:"lastName"`
	Role              Role              `db:"role" json:"role"`
	IsActive          bool              `db:"is_active" json:"isActive"`
	LastLogin         *time.Time        `db:"last_login" json:"lastLogin"`
	Phone             string            `db:"phone" json:"phone"`
	Address           Address           `db:"address" json:"address"`
	ProfilePicture    string            `db:"profile_picture" json:"profilePicture"`
	ShippingAddresses ShippingAddresses `db:"shipping_addresses" json:"shippingAddresses"`
	CreatedAt         time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time         `db:"updated_at" json:"updatedAt"`
}

// Supplier of a product
type Supplier struct {
	Name    string `json:"name,omitempty"`
	Contact string `json:"contact,omitempty"`
}

// StringList is a JSON encoded list column
type StringList []string

// StringMap is a JSON encoded key-value column
type StringMap map[string]string

// Product represents a catalog entry
type Product struct {
	ID             string          `db:"id" json:"id"`
	ProductID      string          `db:"product_id" json:"productId"`
	Name           string          `db:"name" json:"name"`
	Description    string          `db:"description" json:"description"`
	Category       string          `db:"category" json:"category"`
	Price          decimal.Decimal `db:"price" json:"price"`
	StockQuantity  int             `db:"stock_quantity" json:"stockQuantity"`
	MinStockLevel  int             `db:"min_stock_level" json:"minStockLevel"`
	IsActive       bool            `db:"is_active" json:"isActive"`
	Images         StringList      `db:"images" json:"images"`
	Specifications StringMap       `db:"specifications" json:"specifications"`
	Supplier       Supplier        `db:"supplier" json:"supplier"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updatedAt"`
}

// InStock reports whether any unit is available
func (p *Product) InStock() bool {
	return p.StockQuantity > 0
}

// LowStock reports whether stock has reached the reorder level
func (p *Product) LowStock() bool {
	return p.StockQuantity <= p.MinStockLevel
}

// MarshalJSON adds the derived stock flags
func (p Product) MarshalJSON() ([]byte, error) {
	type product Product
	return json.Marshal(struct {
		product
		InStock  bool `json:"inStock"`
		LowStock bool `json:"lowStock"`
	}{product(p), p.InStock(), p.LowStock()})
}

// OrderStatus is the fulfilment state of an order
type OrderStatus string

// Order statuses
const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderStatuses lists every status in lifecycle order
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

var statusRank = map[OrderStatus]int{
	OrderStatusPending:    0,
	OrderStatusConfirmed:  1,
	OrderStatusProcessing: 2,
	OrderStatusShipped:    3,
	OrderStatusDelivered:  4,
}

// IsTerminal reports whether no further transition is possible
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo reports whether the lifecycle allows moving to next.
// Forward moves may skip steps; cancellation is allowed from any non-terminal state.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == OrderStatusCancelled {
		return true
	}
	cur, ok := statusRank[s]
	if !ok {
		return false
	}
	r, ok := statusRank[next]
	return ok && r > cur
}

// PaymentStatus of an order
type PaymentStatus string

// Payment statuses
const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// CustomerInfo is the contact snapshot taken when the order is placed
type CustomerInfo struct {
	FirstName string `json:"firstName" validate:"required,min=2,max=50,personname"`
	LastName  string `json:"lastName" validate:"required,min=2,max=50,personname"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required,phone"`
}

// OrderItem is an immutable line snapshot
type OrderItem struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
}

// OrderItems is the JSON encoded list of order lines
type OrderItems []OrderItem

// Total sums the line totals
func (items OrderItems) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.TotalPrice)
	}
	return total
}

// Order represents a customer order
type Order struct {
	ID                string          `db:"id" json:"id"`
	OrderNumber       string          `db:"order_number" json:"orderNumber"`
	UserID            string          `db:"user_id" json:"userId"`
	CustomerInfo      CustomerInfo    `db:"customer_info" json:"customerInfo"`
	Items             OrderItems      `db:"items" json:"items"`
	OrderTotal        decimal.Decimal `db:"order_total" json:"orderTotal"`
	Status            OrderStatus     `db:"status" json:"status"`
	PaymentStatus     PaymentStatus   `db:"payment_status" json:"paymentStatus"`
	ShippingAddress   ShippingAddress `db:"shipping_address" json:"shippingAddress"`
	Notes             string          `db:"notes" json:"notes,omitempty"`
	IdempotencyKey    string          `db:"idempotency_key" json:"-"`
	EstimatedDelivery *time.Time      `db:"estimated_delivery" json:"estimatedDelivery,omitempty"`
	ActualDelivery    *time.Time      `db:"actual_delivery" json:"actualDelivery,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updatedAt"`
}

// ProductFilter narrows a catalog listing
type ProductFilter struct {
	Category string
	Search   string
	InStock  bool
	Offset   int
	Limit    int
}

// OrderFilter narrows an order listing. An empty UserID lists every user's orders.
type OrderFilter struct {
	UserID string
	Status OrderStatus
	Offset int
	Limit  int
}

// Pagination is the page metadata returned with every listing
type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	TotalItems  int  `json:"totalItems"`
	PageSize    int  `json:"pageSize"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

// NewPagination computes page metadata for a 1-based page
func NewPagination(page, pageSize, total int) Pagination {
	skip := (page - 1) * pageSize
	totalPages := 0
	if pageSize > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(pageSize)))
	}
	return Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalItems:  total,
		PageSize:    pageSize,
		HasNextPage: skip+pageSize < total,
		HasPrevPage: page > 1,
	}
}

// StatusCount is one row of a status breakdown
type StatusCount struct {
	Key   string `db:"key" json:"key"`
	Count int    `db:"count" json:"count"`
}

// OrderStats aggregates orders in a date range
type OrderStats struct {
	TotalOrders      int             `db:"total_orders" json:"totalOrders"`
	TotalRevenue     decimal.Decimal `db:"total_revenue" json:"totalRevenue"`
	StatusBreakdown  []StatusCount   `db:"-" json:"statusBreakdown"`
	PaymentBreakdown []StatusCount   `db:"-" json:"paymentBreakdown"`
}
