package service

import (
	"context"
	"testing"

	"finmark/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboard(t *testing.T) {
	ctx := context.Background()
	mem, orders := setupOrders(t)
	dash := NewDashboardService(mem)

	admin := seedUser(t, mem, "admin@example.com", models.RoleAdmin)
	manager := seedUser(t, mem, "manager@example.com", models.RoleManager)
	customer := seedUser(t, mem, "customer@example.com", models.RoleUser)

	seedProduct(t, mem, "PEN-1", "2.00", 3)
	seedProduct(t, mem, "PAD-1", "5.00", 50)
	_, _, err := orders.CreateOrder(ctx, customer.ID, orderRequest(line("PEN-1", 2)))
	require.NoError(t, err)
	_, _, err = orders.CreateOrder(ctx, manager.ID, orderRequest(line("PAD-1", 1)))
	require.NoError(t, err)

	d, err := dash.Get(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, d.Role)
	require.NotNil(t, d.OrderStats)
	assert.Equal(t, 2, d.OrderStats.TotalOrders)
	assert.Equal(t, 2, *d.TotalProducts)
	assert.Equal(t, 3, *d.TotalUsers)
	assert.Len(t, d.RecentUsers, 3)
	assert.Len(t, d.RecentOrders, 2)
	assert.Equal(t, 1, *d.LowStockCount)
	assert.Nil(t, d.LowStockProducts)

	d, err = dash.Get(ctx, manager)
	require.NoError(t, err)
	require.Len(t, d.LowStockProducts, 1)
	assert.Equal(t, "PEN-1", d.LowStockProducts[0].ProductID)
	assert.Len(t, d.RecentOrders, 2)
	assert.Nil(t, d.TotalUsers)

	d, err = dash.Get(ctx, customer)
	require.NoError(t, err)
	assert.Nil(t, d.OrderStats)
	assert.Equal(t, 1, *d.MyOrderCount)
	require.Len(t, d.RecentOrders, 1)
	assert.Equal(t, customer.ID, d.RecentOrders[0].UserID)
}
