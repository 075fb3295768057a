package store

import (
	"context"
	"time"

	"finmark/internal/models"
)

const userColumns = `id, email, password_hash, first_name, last_name, role, is_active, last_login,
	phone, address, profile_picture, shipping_addresses, created_at, updated_at`

// CreateUser inserts a new user
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, first_name, last_name, role, is_active,
			phone, address, profile_picture, shipping_addresses)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`

	err := s.get(ctx, user, query,
		user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.Role, user.IsActive,
		user.Phone, user.Address, user.ProfilePicture, user.ShippingAddresses)
	return mapError(err)
}

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.get(ctx, &user, "SELECT "+userColumns+" FROM users WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserForUpdate retrieves a user and locks its row until the surrounding
// transaction ends
func (s *Store) GetUserForUpdate(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.get(ctx, &user, "SELECT "+userColumns+" FROM users WHERE id = $1 FOR UPDATE", id); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by normalized email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.get(ctx, &user, "SELECT "+userColumns+" FROM users WHERE email = $1", email); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser writes every mutable column of a user
func (s *Store) UpdateUser(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users SET email = $2, password_hash = $3, first_name = $4, last_name = $5, role = $6,
			is_active = $7, phone = $8, address = $9, profile_picture = $10, shipping_addresses = $11,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := s.get(ctx, &user.UpdatedAt, query,
		user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.Role,
		user.IsActive, user.Phone, user.Address, user.ProfilePicture, user.ShippingAddresses)
	return mapError(err)
}

// UpdateLastLogin stamps a successful login
func (s *Store) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return s.execOne(ctx, "UPDATE users SET last_login = $1 WHERE id = $2", at, id)
}

// ListUsers returns a page of users, newest first, and the total count
func (s *Store) ListUsers(ctx context.Context, offset, limit int) ([]models.User, int, error) {
	var total int
	if err := s.get(ctx, &total, "SELECT COUNT(*) FROM users"); err != nil {
		return nil, 0, err
	}

	users := []models.User{}
	err := s.selectRows(ctx, &users,
		"SELECT "+userColumns+" FROM users ORDER BY created_at DESC, id LIMIT $1 OFFSET $2", limit, offset)
	return users, total, err
}
