package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/wrenchworks/cmms-api/internal/models"
	"github.com/wrenchworks/cmms-api/pkg/config"
	appErrors "github.com/wrenchworks/cmms-api/pkg/errors"
)

type authUserStoreStub struct {
	user           *models.User
	findErr        error
	touchErr       error
	lastLoginTouch bool
}

func (s *authUserStoreStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.user, nil
}

func (s *authUserStoreStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.user == nil || s.user.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.user, nil
}

func (s *authUserStoreStub) TouchLastLogin(ctx context.Context, id string) error {
	s.lastLoginTouch = true
	return s.touchErr
}

func newAuthFixture(t *testing.T, user *models.User) (*AuthService, *authUserStoreStub) {
	t.Helper()
	store := &authUserStoreStub{user: user}
	svc := NewAuthService(store, config.JWTConfig{Secret: "test-secret", Expiration: time.Hour}, nil)
	return svc, store
}

func activeUser(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{
		ID:           "user-1",
		Email:        "dana@plant.example",
		FullName:     "Dana Reyes",
		Role:         models.RoleTechnician,
		PasswordHash: string(hash),
		Active:       true,
	}
}

func TestAuthServiceLoginIssuesValidToken(t *testing.T) {
	svc, store := newAuthFixture(t, activeUser(t, "s3cret-pass"))

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "dana@plant.example",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)
	assert.Equal(t, "user-1", resp.User.ID)
	assert.Equal(t, models.RoleTechnician, resp.User.Role)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.True(t, store.lastLoginTouch)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleTechnician, claims.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t, activeUser(t, "s3cret-pass"))

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "dana@plant.example",
		Password: "wrong",
	})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestAuthServiceLoginUnknownEmail(t *testing.T) {
	svc, store := newAuthFixture(t, nil)
	store.findErr = sql.ErrNoRows

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "ghost@plant.example",
		Password: "whatever1",
	})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	user := activeUser(t, "s3cret-pass")
	user.Active = false
	svc, _ := newAuthFixture(t, user)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "dana@plant.example",
		Password: "s3cret-pass",
	})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestAuthServiceLoginTouchFailureTolerated(t *testing.T) {
	svc, store := newAuthFixture(t, activeUser(t, "s3cret-pass"))
	store.touchErr = errors.New("db down")

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "dana@plant.example",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
}

func TestAuthServiceMeReturnsProfile(t *testing.T) {
	svc, _ := newAuthFixture(t, activeUser(t, "s3cret-pass"))

	info, err := svc.Me(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Dana Reyes", info.FullName)
	assert.Equal(t, models.RoleTechnician, info.Role)

	_, err = svc.Me(context.Background(), "ghost")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestAuthServiceValidateTokenRejectsGarbage(t *testing.T) {
	svc, _ := newAuthFixture(t, nil)

	_, err := svc.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestAuthServiceValidateTokenRejectsWrongSecret(t *testing.T) {
	svc, _ := newAuthFixture(t, activeUser(t, "s3cret-pass"))
	other := NewAuthService(&authUserStoreStub{}, config.JWTConfig{Secret: "other-secret", Expiration: time.Hour}, nil)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "dana@plant.example",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)

	_, err = other.ValidateToken(resp.AccessToken)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
