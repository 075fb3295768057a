package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"finmark/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Integration test - requires database (set TEST_DATABASE_URL)")
	}

	store, err := NewStore(url, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func testUser() *models.User {
	id := uuid.NewString()
	return &models.User{
		ID:           id,
		Email:        id + "@example.com",
		PasswordHash: "hash",
		FirstName:    "Juan",
		LastName:     "Cruz",
		Role:         models.RoleUser,
		IsActive:     true,
		Address:      models.Address{Country: "Philippines"},
	}
}

func testProduct(stock int) *models.Product {
	return &models.Product{
		ID:            uuid.NewString(),
		ProductID:     "T-" + uuid.NewString()[:8],
		Name:          "Widget",
		Description:   "A widget for testing",
		Category:      "Tools",
		Price:         decimal.RequireFromString("12.50"),
		StockQuantity: stock,
		MinStockLevel: 2,
		IsActive:      true,
	}
}

func TestCreateOrder(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	user := testUser()
	require.NoError(t, store.CreateUser(ctx, user))

	eta := time.Now().Add(7 * 24 * time.Hour)
	order := &models.Order{
		ID:                uuid.NewString(),
		OrderNumber:       "FM-" + uuid.NewString()[:12],
		UserID:            user.ID,
		Items:             models.OrderItems{{ProductID: "P-1", ProductName: "Widget", Quantity: 2, UnitPrice: decimal.NewFromInt(5), TotalPrice: decimal.NewFromInt(10)}},
		OrderTotal:        decimal.NewFromInt(10),
		Status:            models.OrderStatusPending,
		PaymentStatus:     models.PaymentStatusPending,
		IdempotencyKey:    "test-key-123",
		EstimatedDelivery: &eta,
	}

	err := store.CreateOrder(ctx, order)
	assert.NoError(t, err)
	assert.False(t, order.CreatedAt.IsZero())

	retrieved, err := store.GetOrderByID(ctx, order.ID)
	assert.NoError(t, err)
	assert.Equal(t, order.UserID, retrieved.UserID)
	assert.True(t, order.OrderTotal.Equal(retrieved.OrderTotal))
	assert.Len(t, retrieved.Items, 1)
}

func TestIdempotency(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	user := testUser()
	require.NoError(t, store.CreateUser(ctx, user))

	newOrder := func() *models.Order {
		return &models.Order{
			ID:             uuid.NewString(),
			OrderNumber:    "FM-" + uuid.NewString()[:12],
			UserID:         user.ID,
			Items:          models.OrderItems{},
			OrderTotal:     decimal.Zero,
			Status:         models.OrderStatusPending,
			PaymentStatus:  models.PaymentStatusPending,
			IdempotencyKey: "idempotent-key-456",
		}
	}

	first := newOrder()
	require.NoError(t, store.CreateOrder(ctx, first))

	// Same user and key violates the unique constraint
	err := store.CreateOrder(ctx, newOrder())
	assert.ErrorIs(t, err, ErrDuplicate)

	found, err := store.GetOrderByIdempotencyKey(ctx, user.ID, "idempotent-key-456")
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
}

func TestAdjustStockNeverNegative(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	p := testProduct(3)
	require.NoError(t, store.CreateProduct(ctx, p))

	_, err := store.AdjustStock(ctx, p.ProductID, -4)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	stock, err := store.AdjustStock(ctx, p.ProductID, -3)
	require.NoError(t, err)
	assert.Equal(t, 0, stock)

	_, err = store.AdjustStock(ctx, "NOPE-"+uuid.NewString()[:6], 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransactionRollback(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	p := testProduct(5)
	require.NoError(t, store.CreateProduct(ctx, p))

	boom := errors.New("boom")
	err := store.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := store.GetProductForUpdate(ctx, p.ProductID); err != nil {
			return err
		}
		if _, err := store.AdjustStock(ctx, p.ProductID, -2); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.GetProduct(ctx, p.ProductID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.StockQuantity)
}
