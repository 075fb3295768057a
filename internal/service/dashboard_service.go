package service

import (
	"context"
	"fmt"

	"finmark/internal/models"
	"finmark/internal/util"

	"golang.org/x/sync/errgroup"
)

const dashboardRecentLimit = 5

// DashboardStore is the storage a DashboardService reads
type DashboardStore interface {
	UserRepository
	ProductRepository
	OrderRepository
}

// DashboardService assembles the data each role's dashboard shows
type DashboardService struct {
	store DashboardStore
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(store DashboardStore) *DashboardService {
	return &DashboardService{store: store}
}

// Dashboard is the payload of GET /api/dashboard. Fields a role does not see
// are omitted.
type Dashboard struct {
	Role             models.Role        `json:"role"`
	OrderStats       *models.OrderStats `json:"orderStats,omitempty"`
	TotalProducts    *int               `json:"totalProducts,omitempty"`
	TotalUsers       *int               `json:"totalUsers,omitempty"`
	LowStockCount    *int               `json:"lowStockCount,omitempty"`
	LowStockProducts []models.Product   `json:"lowStockProducts,omitempty"`
	RecentUsers      []models.User      `json:"recentUsers,omitempty"`
	RecentOrders     []models.Order     `json:"recentOrders"`
	MyOrderCount     *int               `json:"myOrderCount,omitempty"`
}

// Get builds the dashboard for user. Independent reads run concurrently.
func (s *DashboardService) Get(ctx context.Context, user *models.User) (*Dashboard, error) {
	ctx, span := util.StartSpan(ctx, "DashboardService.Get")
	defer span.End()

	d := &Dashboard{Role: user.Role}
	g, gctx := errgroup.WithContext(ctx)

	switch user.Role {
	case models.RoleAdmin:
		s.stats(gctx, g, d)
		s.recentOrders(gctx, g, d, "")
		g.Go(func() error {
			n, err := s.store.CountProducts(gctx)
			if err != nil {
				return fmt.Errorf("count products: %w", err)
			}
			d.TotalProducts = &n
			return nil
		})
		g.Go(func() error {
			users, total, err := s.store.ListUsers(gctx, 0, dashboardRecentLimit)
			if err != nil {
				return fmt.Errorf("recent users: %w", err)
			}
			d.RecentUsers = users
			d.TotalUsers = &total
			return nil
		})
		g.Go(func() error {
			low, err := s.store.LowStockProducts(gctx)
			if err != nil {
				return fmt.Errorf("low stock: %w", err)
			}
			n := len(low)
			d.LowStockCount = &n
			return nil
		})

	case models.RoleManager:
		s.stats(gctx, g, d)
		s.recentOrders(gctx, g, d, "")
		g.Go(func() error {
			low, err := s.store.LowStockProducts(gctx)
			if err != nil {
				return fmt.Errorf("low stock: %w", err)
			}
			n := len(low)
			d.LowStockProducts = low
			d.LowStockCount = &n
			return nil
		})

	default:
		g.Go(func() error {
			orders, total, err := s.store.ListOrders(gctx, models.OrderFilter{UserID: user.ID, Limit: dashboardRecentLimit})
			if err != nil {
				return fmt.Errorf("my orders: %w", err)
			}
			d.RecentOrders = orders
			d.MyOrderCount = &total
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to build dashboard: %w", err)
	}
	if d.RecentOrders == nil {
		d.RecentOrders = []models.Order{}
	}
	return d, nil
}

func (s *DashboardService) stats(ctx context.Context, g *errgroup.Group, d *Dashboard) {
	g.Go(func() error {
		stats, err := s.store.OrderStats(ctx, nil, nil)
		if err != nil {
			return fmt.Errorf("order stats: %w", err)
		}
		d.OrderStats = stats
		return nil
	})
}

func (s *DashboardService) recentOrders(ctx context.Context, g *errgroup.Group, d *Dashboard, userID string) {
	g.Go(func() error {
		orders, _, err := s.store.ListOrders(ctx, models.OrderFilter{UserID: userID, Limit: dashboardRecentLimit})
		if err != nil {
			return fmt.Errorf("recent orders: %w", err)
		}
		d.RecentOrders = orders
		return nil
	})
}
