package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"finmark/internal/models"
	"finmark/internal/store"
	"finmark/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultMaxShippingAddresses = 2

// UserService manages saved shipping addresses and user administration
type UserService struct {
	users        UserRepository
	tx           Transactor
	maxAddresses int
	logger       *zap.Logger
}

// NewUserService creates a new user service. maxAddresses caps the number of
// saved shipping addresses per user.
func NewUserService(users UserRepository, tx Transactor, maxAddresses int) *UserService {
	if maxAddresses <= 0 {
		maxAddresses = defaultMaxShippingAddresses
	}
	return &UserService{users: users, tx: tx, maxAddresses: maxAddresses, logger: util.GetLogger()}
}

// AdminUpdateUserRequest is an admin edit of an account. Nil fields are left unchanged.
type AdminUpdateUserRequest struct {
	FirstName *string `json:"firstName" validate:"omitempty,min=2,max=50,personname"`
	LastName  *string `json:"lastName" validate:"omitempty,min=2,max=50,personname"`
	Email     *string `json:"email" validate:"omitempty,email,max=255"`
	Role      *string `json:"role" validate:"omitempty,oneof=user customer manager staff admin"`
	IsActive  *bool   `json:"isActive"`
}

// UserPage is one page of the user listing
type UserPage struct {
	Users      []models.User     `json:"users"`
	Pagination models.Pagination `json:"pagination"`
}

func (s *UserService) load(ctx context.Context, userID string) (*models.User, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, NotFound("User not found.")
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NotFound("User not found.")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

// lockedUserUpdate locks the user row, applies fn and saves the result in one
// transaction. When fn returns skip the row is left untouched.
func lockedUserUpdate(ctx context.Context, users UserRepository, tx Transactor, userID string,
	fn func(user *models.User) (skip bool, err error)) (*models.User, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, NotFound("User not found.")
	}

	var user *models.User
	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		user, err = users.GetUserForUpdate(ctx, userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return NotFound("User not found.")
			}
			return fmt.Errorf("failed to load user: %w", err)
		}

		skip, err := fn(user)
		if err != nil || skip {
			return err
		}
		return users.UpdateUser(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) mutate(ctx context.Context, userID string, fn func(user *models.User) (bool, error)) (*models.User, error) {
	return lockedUserUpdate(ctx, s.users, s.tx, userID, fn)
}

func (s *UserService) checkIndex(user *models.User, index int) error {
	if index < 0 || index >= len(user.ShippingAddresses) {
		return FieldInvalid("index", "Invalid address index.", index)
	}
	return nil
}

func normalizeAddress(addr *models.ShippingAddress) {
	addr.Street = strings.TrimSpace(addr.Street)
	addr.City = strings.TrimSpace(addr.City)
	addr.State = strings.TrimSpace(addr.State)
	addr.ZipCode = strings.TrimSpace(addr.ZipCode)
	addr.Country = strings.TrimSpace(addr.Country)
}

func (s *UserService) saveAddresses(ctx context.Context, userID string, fn func(user *models.User) error) (models.ShippingAddresses, error) {
	user, err := s.mutate(ctx, userID, func(user *models.User) (bool, error) {
		return false, fn(user)
	})
	if err != nil {
		if KindOf(err) == KindInternal {
			return nil, fmt.Errorf("failed to save addresses: %w", err)
		}
		return nil, err
	}
	if user.ShippingAddresses == nil {
		return models.ShippingAddresses{}, nil
	}
	return user.ShippingAddresses, nil
}

// GetAddresses returns the caller's saved shipping addresses
func (s *UserService) GetAddresses(ctx context.Context, userID string) (models.ShippingAddresses, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.ShippingAddresses == nil {
		return models.ShippingAddresses{}, nil
	}
	return user.ShippingAddresses, nil
}

// AddAddress appends a shipping address, up to the configured maximum
func (s *UserService) AddAddress(ctx context.Context, userID string, addr *models.ShippingAddress) (models.ShippingAddresses, error) {
	normalizeAddress(addr)
	if err := validateStruct(addr); err != nil {
		return nil, err
	}

	return s.saveAddresses(ctx, userID, func(user *models.User) error {
		if len(user.ShippingAddresses) >= s.maxAddresses {
			return FieldInvalid("shippingAddresses",
				fmt.Sprintf("You can only have up to %d shipping addresses.", s.maxAddresses), len(user.ShippingAddresses))
		}
		user.ShippingAddresses = append(user.ShippingAddresses, *addr)
		return nil
	})
}

// UpdateAddress replaces the address at index
func (s *UserService) UpdateAddress(ctx context.Context, userID string, index int, addr *models.ShippingAddress) (models.ShippingAddresses, error) {
	normalizeAddress(addr)
	if err := validateStruct(addr); err != nil {
		return nil, err
	}

	return s.saveAddresses(ctx, userID, func(user *models.User) error {
		if err := s.checkIndex(user, index); err != nil {
			return err
		}
		user.ShippingAddresses[index] = *addr
		return nil
	})
}

// DeleteAddress removes the address at index
func (s *UserService) DeleteAddress(ctx context.Context, userID string, index int) (models.ShippingAddresses, error) {
	return s.saveAddresses(ctx, userID, func(user *models.User) error {
		if err := s.checkIndex(user, index); err != nil {
			return err
		}
		user.ShippingAddresses = append(user.ShippingAddresses[:index], user.ShippingAddresses[index+1:]...)
		return nil
	})
}

// ListUsers returns a page of accounts, newest first
func (s *UserService) ListUsers(ctx context.Context, page, limit int) (*UserPage, error) {
	users, total, err := s.users.ListUsers(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return &UserPage{Users: users, Pagination: models.NewPagination(page, limit, total)}, nil
}

// GetUser returns one account
func (s *UserService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return s.load(ctx, userID)
}

// UpdateUser applies an admin edit to an account
func (s *UserService) UpdateUser(ctx context.Context, userID string, req *AdminUpdateUserRequest) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "UserService.UpdateUser")
	defer span.End()

	trimPtr(req.FirstName)
	trimPtr(req.LastName)
	if req.Email != nil {
		*req.Email = normalizeEmail(*req.Email)
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	user, err := s.mutate(ctx, userID, func(user *models.User) (bool, error) {
		if req.FirstName != nil {
			user.FirstName = *req.FirstName
		}
		if req.LastName != nil {
			user.LastName = *req.LastName
		}
		if req.Email != nil {
			user.Email = *req.Email
		}
		if req.Role != nil {
			user.Role, _ = models.ParseRole(*req.Role)
		}
		if req.IsActive != nil {
			user.IsActive = *req.IsActive
		}
		return false, nil
	})
	if err != nil {
		if KindOf(err) != KindInternal {
			return nil, err
		}
		if errors.Is(err, store.ErrDuplicate) {
			return nil, Conflict("Email already exists. Please use a different email.")
		}
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	s.logger.Info("User updated by admin",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)),
		zap.Bool("is_active", user.IsActive))
	return user, nil
}

// DeactivateUser soft-deletes an account. Admins cannot deactivate themselves.
func (s *UserService) DeactivateUser(ctx context.Context, actorID, userID string) error {
	if actorID == userID {
		return Forbidden("You cannot deactivate your own account.")
	}

	_, err := s.mutate(ctx, userID, func(user *models.User) (bool, error) {
		if !user.IsActive {
			return true, nil
		}
		user.IsActive = false
		return false, nil
	})
	if err != nil {
		if KindOf(err) != KindInternal {
			return err
		}
		return fmt.Errorf("failed to deactivate user: %w", err)
	}

	s.logger.Info("User deactivated", zap.String("user_id", userID), zap.String("by", actorID))
	return nil
}
