package service

import (
	"context"
	"sync"
	"testing"

	"finmark/internal/models"
	"finmark/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUser(t *testing.T, mem *store.MemoryStore, email string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{
		ID:        uuid.New().String(),
		Email:     email,
		FirstName: "Test",
		LastName:  "User",
		Role:      role,
		IsActive:  true,
	}
	require.NoError(t, mem.CreateUser(context.Background(), u))
	return u
}

func address(street string) *models.ShippingAddress {
	return &models.ShippingAddress{Street: street, City: "Quezon City", State: "NCR", ZipCode: "1100", Country: "Philippines"}
}

func TestShippingAddresses(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	svc := NewUserService(mem, mem, 2)
	u := seedUser(t, mem, "a@example.com", models.RoleUser)

	addrs, err := svc.GetAddresses(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, addrs)

	_, err = svc.AddAddress(ctx, u.ID, address("1 First St"))
	require.NoError(t, err)
	addrs, err = svc.AddAddress(ctx, u.ID, address("2 Second St"))
	require.NoError(t, err)
	assert.Len(t, addrs, 2)

	_, err = svc.AddAddress(ctx, u.ID, address("3 Third St"))
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, KindValidation, se.Kind)
	assert.Contains(t, se.Fields[0].Message, "up to 2")

	addrs, err = svc.UpdateAddress(ctx, u.ID, 1, address("22 Second St"))
	require.NoError(t, err)
	assert.Equal(t, "22 Second St", addrs[1].Street)

	_, err = svc.UpdateAddress(ctx, u.ID, 2, address("x street"))
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "index", se.Fields[0].Field)

	_, err = svc.DeleteAddress(ctx, u.ID, -1)
	assert.Equal(t, KindValidation, KindOf(err))

	addrs, err = svc.DeleteAddress(ctx, u.ID, 0)
	require.NoError(t, err)
	require.Len(t, addrs, 1)
	assert.Equal(t, "22 Second St", addrs[0].Street)

	_, err = svc.AddAddress(ctx, u.ID, &models.ShippingAddress{Street: "4 Fourth St"})
	assert.Equal(t, KindValidation, KindOf(err))

	stored, err := svc.GetAddresses(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	_, err = svc.GetAddresses(ctx, "missing")
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestAdminUserManagement(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	svc := NewUserService(mem, mem, 0)
	admin := seedUser(t, mem, "admin@example.com", models.RoleAdmin)
	a := seedUser(t, mem, "a@example.com", models.RoleUser)
	b := seedUser(t, mem, "b@example.com", models.RoleUser)

	page, err := svc.ListUsers(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, page.Users, 2)
	assert.Equal(t, b.ID, page.Users[0].ID)
	assert.Equal(t, 3, page.Pagination.TotalItems)
	assert.True(t, page.Pagination.HasNextPage)

	role := "staff"
	email := " NEW@Example.com "
	updated, err := svc.UpdateUser(ctx, a.ID, &AdminUpdateUserRequest{Role: &role, Email: &email})
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, updated.Role)
	assert.Equal(t, "new@example.com", updated.Email)

	taken := "b@example.com"
	_, err = svc.UpdateUser(ctx, a.ID, &AdminUpdateUserRequest{Email: &taken})
	assert.Equal(t, KindConflict, KindOf(err))

	bad := "root"
	_, err = svc.UpdateUser(ctx, a.ID, &AdminUpdateUserRequest{Role: &bad})
	assert.Equal(t, KindValidation, KindOf(err))

	assert.Equal(t, KindForbidden, KindOf(svc.DeactivateUser(ctx, admin.ID, admin.ID)))
	require.NoError(t, svc.DeactivateUser(ctx, admin.ID, b.ID))
	got, err := svc.GetUser(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	assert.Equal(t, KindNotFound, KindOf(svc.DeactivateUser(ctx, admin.ID, "missing")))
}

// interleavingStore runs during once, right after the first locked user read
type interleavingStore struct {
	*store.MemoryStore
	once   sync.Once
	during func()
}

func (s *interleavingStore) GetUserForUpdate(ctx context.Context, id string) (*models.User, error) {
	u, err := s.MemoryStore.GetUserForUpdate(ctx, id)
	s.once.Do(s.during)
	return u, err
}

func TestAddAddressKeepsConcurrentDeactivation(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	wrapped := &interleavingStore{MemoryStore: mem}
	svc := NewUserService(wrapped, wrapped, 2)
	admin := seedUser(t, mem, "admin@example.com", models.RoleAdmin)
	u := seedUser(t, mem, "a@example.com", models.RoleUser)

	done := make(chan error, 1)
	wrapped.during = func() {
		go func() { done <- svc.DeactivateUser(context.Background(), admin.ID, u.ID) }()
	}

	addrs, err := svc.AddAddress(ctx, u.ID, address("1 First St"))
	require.NoError(t, err)
	assert.Len(t, addrs, 1)
	require.NoError(t, <-done)

	got, err := mem.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Len(t, got.ShippingAddresses, 1)
}
