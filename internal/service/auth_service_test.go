package service

import (
	"context"
	"testing"
	"time"

	"finmark/internal/jwtutil"
	"finmark/internal/models"
	"finmark/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func setupAuth(t *testing.T, allowRole bool) (*store.MemoryStore, *AuthService) {
	t.Helper()
	mem := store.NewMemoryStore()
	tokens := jwtutil.NewManager("test-secret", time.Hour)
	return mem, NewAuthService(mem, mem, tokens, AuthOptions{BcryptCost: bcrypt.MinCost, AllowRoleOnRegister: allowRole})
}

func registerRequest(email string) *RegisterRequest {
	return &RegisterRequest{
		Email:     email,
		Password:  "Secret123",
		FirstName: "Juan",
		LastName:  "Dela Cruz",
	}
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	mem, svc := setupAuth(t, false)

	res, err := svc.Register(ctx, registerRequest("  Juan@Example.com "))
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "juan@example.com", res.User.Email)
	assert.Equal(t, models.RoleUser, res.User.Role)
	assert.Equal(t, "Philippines", res.User.Address.Country)

	stored, err := mem.GetUserByEmail(ctx, "juan@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "Secret123", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("Secret123")))

	login, err := svc.Login(ctx, &LoginRequest{Email: "JUAN@example.com", Password: "Secret123"})
	require.NoError(t, err)
	require.NotNil(t, login.User.LastLogin)

	user, err := svc.Authenticate(ctx, login.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, user.ID)
}

func TestRegister_Validation(t *testing.T) {
	ctx := context.Background()
	_, svc := setupAuth(t, false)

	req := registerRequest("juan@example.com")
	req.Password = "alllowercase1"
	_, err := svc.Register(ctx, req)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, KindValidation, se.Kind)
	require.Len(t, se.Fields, 1)
	assert.Equal(t, "password", se.Fields[0].Field)
	assert.Nil(t, se.Fields[0].Value)

	req = registerRequest("juan@example.com")
	req.FirstName = "J4n"
	_, err = svc.Register(ctx, req)
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "firstName", se.Fields[0].Field)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	_, svc := setupAuth(t, false)

	_, err := svc.Register(ctx, registerRequest("juan@example.com"))
	require.NoError(t, err)

	_, err = svc.Register(ctx, registerRequest("JUAN@example.com"))
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestRegister_Role(t *testing.T) {
	ctx := context.Background()

	_, closed := setupAuth(t, false)
	req := registerRequest("a@example.com")
	req.Role = "admin"
	res, err := closed.Register(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, res.User.Role)

	_, open := setupAuth(t, true)
	req = registerRequest("b@example.com")
	req.Role = "staff"
	res, err = open.Register(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, res.User.Role)
}

func TestCreateAdmin(t *testing.T) {
	ctx := context.Background()
	_, svc := setupAuth(t, false)

	admin, err := svc.CreateAdmin(ctx, registerRequest(" Root@Example.com"))
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.Equal(t, "root@example.com", admin.Email)

	res, err := svc.Login(ctx, &LoginRequest{Email: "root@example.com", Password: "Secret123"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, res.User.Role)

	_, err = svc.CreateAdmin(ctx, registerRequest("root@example.com"))
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestLogin_Failures(t *testing.T) {
	ctx := context.Background()
	mem, svc := setupAuth(t, false)

	res, err := svc.Register(ctx, registerRequest("juan@example.com"))
	require.NoError(t, err)

	_, err = svc.Login(ctx, &LoginRequest{Email: "juan@example.com", Password: "Wrong123"})
	assert.Equal(t, KindUnauthenticated, KindOf(err))
	assert.Contains(t, err.Error(), "Invalid email or password.")

	_, err = svc.Login(ctx, &LoginRequest{Email: "nobody@example.com", Password: "Secret123"})
	assert.Equal(t, KindUnauthenticated, KindOf(err))

	user, err := mem.GetUserByID(ctx, res.User.ID)
	require.NoError(t, err)
	user.IsActive = false
	require.NoError(t, mem.UpdateUser(ctx, user))

	_, err = svc.Login(ctx, &LoginRequest{Email: "juan@example.com", Password: "Secret123"})
	assert.Equal(t, KindUnauthenticated, KindOf(err))

	_, err = svc.Authenticate(ctx, res.Token)
	assert.Equal(t, KindUnauthenticated, KindOf(err))

	_, err = svc.Authenticate(ctx, "garbage")
	assert.Equal(t, KindUnauthenticated, KindOf(err))
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	_, svc := setupAuth(t, false)

	res, err := svc.Register(ctx, registerRequest("juan@example.com"))
	require.NoError(t, err)
	_, err = svc.Register(ctx, registerRequest("maria@example.com"))
	require.NoError(t, err)

	first := " Juanito "
	phone := "09171234567"
	user, err := svc.UpdateProfile(ctx, res.User.ID, &UpdateProfileRequest{
		FirstName: &first,
		Phone:     &phone,
		Address:   &models.Address{City: "Makati"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Juanito", user.FirstName)
	assert.Equal(t, "Dela Cruz", user.LastName)
	assert.Equal(t, phone, user.Phone)
	assert.Equal(t, "Philippines", user.Address.Country)

	badPhone := "12345"
	_, err = svc.UpdateProfile(ctx, res.User.ID, &UpdateProfileRequest{Phone: &badPhone})
	assert.Equal(t, KindValidation, KindOf(err))

	taken := "maria@example.com"
	_, err = svc.UpdateProfile(ctx, res.User.ID, &UpdateProfileRequest{Email: &taken})
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	_, svc := setupAuth(t, false)

	res, err := svc.Register(ctx, registerRequest("juan@example.com"))
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, res.User.ID, &ChangePasswordRequest{CurrentPassword: "Nope1234", NewPassword: "Newer123"})
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, KindValidation, se.Kind)
	assert.Equal(t, "currentPassword", se.Fields[0].Field)

	err = svc.ChangePassword(ctx, res.User.ID, &ChangePasswordRequest{CurrentPassword: "Secret123", NewPassword: "weak"})
	assert.Equal(t, KindValidation, KindOf(err))

	require.NoError(t, svc.ChangePassword(ctx, res.User.ID, &ChangePasswordRequest{CurrentPassword: "Secret123", NewPassword: "Newer123"}))

	_, err = svc.Login(ctx, &LoginRequest{Email: "juan@example.com", Password: "Secret123"})
	assert.Equal(t, KindUnauthenticated, KindOf(err))
	_, err = svc.Login(ctx, &LoginRequest{Email: "juan@example.com", Password: "Newer123"})
	assert.NoError(t, err)
}

func TestUpdateProfileKeepsConcurrentPasswordChange(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	wrapped := &interleavingStore{MemoryStore: mem}
	svc := NewAuthService(wrapped, wrapped, jwtutil.NewManager("test-secret", time.Hour), AuthOptions{BcryptCost: bcrypt.MinCost})

	res, err := svc.Register(ctx, registerRequest("juan@example.com"))
	require.NoError(t, err)

	done := make(chan error, 1)
	wrapped.during = func() {
		go func() {
			done <- svc.ChangePassword(context.Background(), res.User.ID,
				&ChangePasswordRequest{CurrentPassword: "Secret123", NewPassword: "Newer123"})
		}()
	}

	phone := "09171234567"
	_, err = svc.UpdateProfile(ctx, res.User.ID, &UpdateProfileRequest{Phone: &phone})
	require.NoError(t, err)
	require.NoError(t, <-done)

	stored, err := mem.GetUserByID(ctx, res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, phone, stored.Phone)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("Newer123")))
}
