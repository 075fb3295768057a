package service

import (
	"context"
	"time"

	"finmark/internal/models"
)

// UserRepository persists accounts
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserForUpdate(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	ListUsers(ctx context.Context, offset, limit int) ([]models.User, int, error)
}

// ProductRepository persists the catalog
type ProductRepository interface {
	CreateProduct(ctx context.Context, p *models.Product) error
	GetProduct(ctx context.Context, productID string) (*models.Product, error)
	GetProductForUpdate(ctx context.Context, productID string) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error)
	UpdateProduct(ctx context.Context, p *models.Product) error
	AdjustStock(ctx context.Context, productID string, delta int) (int, error)
	ListProducts(ctx context.Context, f models.ProductFilter) ([]models.Product, int, error)
	LowStockProducts(ctx context.Context) ([]models.Product, error)
	CountProducts(ctx context.Context) (int, error)
	Categories(ctx context.Context) ([]string, error)
}

// OrderRepository persists orders
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrderForUpdate(ctx context.Context, id string) (*models.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, userID, key string) (*models.Order, error)
	UpdateOrder(ctx context.Context, order *models.Order) error
	ListOrders(ctx context.Context, f models.OrderFilter) ([]models.Order, int, error)
	OrderStats(ctx context.Context, from, to *time.Time) (*models.OrderStats, error)
}

// EventLog records consumed events so redelivered ones are skipped
type EventLog interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// Transactor runs fn in one unit of work. Repository calls made with the
// context passed to fn join it.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Repository is everything the services need from storage. Both the
// Postgres store and the memory store implement it.
type Repository interface {
	UserRepository
	ProductRepository
	OrderRepository
	EventLog
	Transactor
	Ping(ctx context.Context) error
}
