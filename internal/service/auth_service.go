package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"finmark/internal/jwtutil"
	"finmark/internal/models"
	"finmark/internal/store"
	"finmark/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultUserCountry = "Philippines"
	invalidCredentials = "Invalid email or password."
)

// AuthService handles registration, login and profile management
type AuthService struct {
	users               UserRepository
	tx                  Transactor
	tokens              *jwtutil.Manager
	bcryptCost          int
	allowRoleOnRegister bool
	logger              *zap.Logger
}

// AuthOptions tunes AuthService
type AuthOptions struct {
	BcryptCost int
	// AllowRoleOnRegister lets a registration request pick its own role.
	// When false every new account is a plain user.
	AllowRoleOnRegister bool
}

// NewAuthService creates a new auth service
func NewAuthService(users UserRepository, tx Transactor, tokens *jwtutil.Manager, opts AuthOptions) *AuthService {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		users:               users,
		tx:                  tx,
		tokens:              tokens,
		bcryptCost:          opts.BcryptCost,
		allowRoleOnRegister: opts.AllowRoleOnRegister,
		logger:              util.GetLogger(),
	}
}

// RegisterRequest represents a request to create an account
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,min=6,max=128,strongpassword"`
	FirstName string `json:"firstName" validate:"required,min=2,max=50,personname"`
	LastName  string `json:"lastName" validate:"required,min=2,max=50,personname"`
	Role      string `json:"role" validate:"omitempty,oneof=user customer manager staff admin"`
}

// LoginRequest represents a login attempt
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdateProfileRequest is a partial profile update. Nil fields are left unchanged.
type UpdateProfileRequest struct {
	FirstName      *string         `json:"firstName" validate:"omitempty,min=2,max=50,personname"`
	LastName       *string         `json:"lastName" validate:"omitempty,min=2,max=50,personname"`
	Email          *string         `json:"email" validate:"omitempty,email,max=255"`
	Phone          *string         `json:"phone" validate:"omitempty,phmobile"`
	Address        *models.Address `json:"address"`
	ProfilePicture *string         `json:"profilePicture" validate:"omitempty,max=10485760"`
}

// ChangePasswordRequest represents a password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,max=128,strongpassword"`
}

// AuthResult is returned by Register and Login
type AuthResult struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account and signs the user in
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*AuthResult, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Register")
	defer span.End()

	if err := normalizeRegistration(req); err != nil {
		util.AuthAttemptsTotal.WithLabelValues("register", "invalid").Inc()
		return nil, err
	}

	role := models.RoleUser
	if s.allowRoleOnRegister && req.Role != "" {
		role, _ = models.ParseRole(req.Role)
	}

	user, err := s.createAccount(ctx, req, role)
	if err != nil {
		if KindOf(err) == KindConflict {
			util.AuthAttemptsTotal.WithLabelValues("register", "conflict").Inc()
		} else {
			util.RecordError(span, err)
		}
		return nil, err
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	util.AuthAttemptsTotal.WithLabelValues("register", "success").Inc()
	s.logger.Info("User registered",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)))

	return &AuthResult{User: user, Token: token}, nil
}

// CreateAdmin creates an administrator account without signing it in. It is
// used to bootstrap a fresh installation.
func (s *AuthService) CreateAdmin(ctx context.Context, req *RegisterRequest) (*models.User, error) {
	if err := normalizeRegistration(req); err != nil {
		return nil, err
	}

	user, err := s.createAccount(ctx, req, models.RoleAdmin)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Admin account created", zap.String("user_id", user.ID), zap.String("email", user.Email))
	return user, nil
}

func normalizeRegistration(req *RegisterRequest) error {
	req.Email = normalizeEmail(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	return validateStruct(req)
}

func (s *AuthService) createAccount(ctx context.Context, req *RegisterRequest, role models.Role) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:                uuid.New().String(),
		Email:             req.Email,
		PasswordHash:      string(hash),
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		Role:              role,
		IsActive:          true,
		Address:           models.Address{Country: defaultUserCountry},
		ShippingAddresses: models.ShippingAddresses{},
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, Conflict("User with this email already exists.")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Login verifies credentials and issues a token. Unknown email, inactive
// account and wrong password fail alike.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResult, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Login")
	defer span.End()

	req.Email = normalizeEmail(req.Email)
	if err := validateStruct(req); err != nil {
		util.AuthAttemptsTotal.WithLabelValues("login", "invalid").Inc()
		return nil, err
	}

	user, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			util.AuthAttemptsTotal.WithLabelValues("login", "failed").Inc()
			return nil, Unauthenticated(invalidCredentials)
		}
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if !user.IsActive {
		util.AuthAttemptsTotal.WithLabelValues("login", "failed").Inc()
		s.logger.Warn("Login attempt on deactivated account", zap.String("user_id", user.ID))
		return nil, Unauthenticated(invalidCredentials)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		util.AuthAttemptsTotal.WithLabelValues("login", "failed").Inc()
		return nil, Unauthenticated(invalidCredentials)
	}

	now := time.Now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("failed to update last login: %w", err)
	}
	user.LastLogin = &now

	token, err := s.tokens.GenerateToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	util.AuthAttemptsTotal.WithLabelValues("login", "success").Inc()
	return &AuthResult{User: user, Token: token}, nil
}

// Authenticate resolves a bearer token to an active user
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, &Error{Kind: KindUnauthenticated, Message: "Invalid or expired token.", Err: err}
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, Unauthenticated("Invalid token. User not found.")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive {
		return nil, Unauthenticated("Account is deactivated.")
	}
	return user, nil
}

// GetProfile returns the caller's account
func (s *AuthService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NotFound("User not found.")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

// UpdateProfile applies a partial profile update
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, req *UpdateProfileRequest) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.UpdateProfile")
	defer span.End()

	trimPtr(req.FirstName)
	trimPtr(req.LastName)
	if req.Email != nil {
		*req.Email = normalizeEmail(*req.Email)
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	user, err := lockedUserUpdate(ctx, s.users, s.tx, userID, func(user *models.User) (bool, error) {
		if req.FirstName != nil {
			user.FirstName = *req.FirstName
		}
		if req.LastName != nil {
			user.LastName = *req.LastName
		}
		if req.Email != nil {
			user.Email = *req.Email
		}
		if req.Phone != nil {
			user.Phone = *req.Phone
		}
		if req.Address != nil {
			user.Address = *req.Address
			if user.Address.Country == "" {
				user.Address.Country = defaultUserCountry
			}
		}
		if req.ProfilePicture != nil {
			user.ProfilePicture = *req.ProfilePicture
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

	s.logger.Info("Profile updated", zap.String("user_id", user.ID))
	return user, nil
}

// ChangePassword replaces the password after checking the current one
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req *ChangePasswordRequest) error {
	ctx, span := util.StartSpan(ctx, "AuthService.ChangePassword")
	defer span.End()

	if err := validateStruct(req); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := lockedUserUpdate(ctx, s.users, s.tx, userID, func(user *models.User) (bool, error) {
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
			return false, FieldInvalid("currentPassword", "Current password is incorrect.", nil)
		}
		user.PasswordHash = string(hash)
		return false, nil
	})
	if err != nil {
		if KindOf(err) != KindInternal {
			return err
		}
		util.RecordError(span, err)
		return fmt.Errorf("failed to update password: %w", err)
	}

	s.logger.Info("Password changed", zap.String("user_id", user.ID))
	return nil
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}
