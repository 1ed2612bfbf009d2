package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/maintenance-tracker/internal/apperr"
	"github.com/ukydev/maintenance-tracker/internal/db"
	"github.com/ukydev/maintenance-tracker/internal/models"
	"github.com/ukydev/maintenance-tracker/internal/orm"
)

func newUser(t *testing.T, service *Service, isAdmin bool) models.PortalUser {
	t.Helper()
	portal := NewPortal(db.NewMemoryStore(), service)
	user, err := portal.Create(context.Background(), orm.Values{
		"name":     "Test User",
		"email":    "Test@Example.com ",
		"password": "Secret#Pass1",
		"is_admin": isAdmin,
	})
	require.NoError(t, err)
	return user
}

func TestNewService(t *testing.T) {
	service, err := NewService(Config{})
	assert.NoError(t, err)
	assert.NotNil(t, service)
	assert.NotEmpty(t, service.jwtSecret)
	assert.Equal(t, 24*time.Hour, service.tokenExp)
	assert.Equal(t, 30*time.Minute, service.resetExp)

	custom, err := NewService(Config{Secret: "s3cret", Expiry: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, []byte("s3cret"), custom.jwtSecret)
	assert.Equal(t, time.Hour, custom.TokenExpiry())
}

func TestService_HashPassword(t *testing.T) {
	service, _ := NewService(Config{})

	password := "testpassword123"
	hash, err := service.HashPassword(password)

	assert.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, password, hash)
}

func TestService_CheckPassword(t *testing.T) {
	service, _ := NewService(Config{})

	password := "testpassword123"
	hash, _ := service.HashPassword(password)

	// Test correct password
	assert.True(t, service.CheckPassword(password, hash))

	// Test incorrect password
	assert.False(t, service.CheckPassword("wrongpassword", hash))
}

func TestService_ValidateToken(t *testing.T) {
	service, _ := NewService(Config{})
	user := newUser(t, service, true)

	token, err := service.GenerateToken(user)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	// Test valid token
	claims, err := service.ValidateToken(token)
	assert.NoError(t, err)
	require.NotNil(t, claims)
	assert.Equal(t, user.ID(), claims.UserID)
	assert.Equal(t, "test@example.com", claims.Email)
	assert.Equal(t, "Test User", claims.Name)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	// Test invalid token
	_, err = service.ValidateToken("invalid-token")
	assert.Equal(t, ErrInvalidToken, err)

	// Test token with Bearer prefix
	_, err = service.ValidateToken("Bearer " + token)
	assert.NoError(t, err)

	// Test token signed with another secret
	other, _ := NewService(Config{Secret: "another-secret"})
	_, err = other.ValidateToken(token)
	assert.Equal(t, ErrInvalidToken, err)
}

func TestService_ValidateTokenRejectsResetToken(t *testing.T) {
	service, _ := NewService(Config{})
	user := newUser(t, service, false)

	reset, err := service.GenerateResetToken(user)
	require.NoError(t, err)
	_, err = service.ValidateToken(reset)
	assert.Equal(t, ErrInvalidToken, err)

	session, err := service.GenerateToken(user)
	require.NoError(t, err)
	_, _, err = service.ValidateResetToken(session)
	assert.Equal(t, ErrInvalidToken, err)

	userID, fingerprint, err := service.ValidateResetToken(reset)
	require.NoError(t, err)
	assert.Equal(t, user.ID(), userID)
	assert.Equal(t, hashFingerprint(user.PasswordHash()), fingerprint)
}

func TestService_ValidateTokenRejectsUnknownRole(t *testing.T) {
	service, _ := NewService(Config{})
	token, err := service.sign(jwt.MapClaims{
		"user_id": "abc",
		"role":    "superuser",
		"purpose": PurposeSession,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, err)
	_, err = service.ValidateToken(token)
	assert.Equal(t, ErrInvalidToken, err)
}

func TestService_ExtractTokenFromHeader(t *testing.T) {
	service, _ := NewService(Config{})

	// Test valid header
	token := "valid-token"
	header := "Bearer " + token
	extracted, err := service.ExtractTokenFromHeader(header)
	assert.NoError(t, err)
	assert.Equal(t, token, extracted)

	// Test empty header
	_, err = service.ExtractTokenFromHeader("")
	assert.Equal(t, ErrInvalidToken, err)

	// Test invalid format
	_, err = service.ExtractTokenFromHeader("InvalidFormat")
	assert.Equal(t, ErrInvalidToken, err)

	// Test missing token
	_, err = service.ExtractTokenFromHeader("Bearer ")
	assert.Equal(t, ErrInvalidToken, err)
}

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		password string
		want     string
	}{
		{"Valid#Pass", ""},
		{"Sh#1", "Password must be at least 8 characters long"},
		{"lower#case1", "Password must contain at least one uppercase letter"},
		{"UPPER#CASE1", "Password must contain at least one lowercase letter"},
		{"NoSpecial12", "Password must contain at least one special character"},
	}
	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			err := ValidatePasswordStrength(tt.password)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}
}

func TestValidateEmail(t *testing.T) {
	// Test valid email
	assert.NoError(t, ValidateEmail("test@example.com"))
	assert.NoError(t, ValidateEmail("  Test@Example.COM "))

	// Test invalid emails
	for _, email := range []string{"", "invalid-email", "test@", "@example.com"} {
		assert.Error(t, ValidateEmail(email), email)
	}
}

func TestService_TokenExpiration(t *testing.T) {
	service, _ := NewService(Config{Expiry: time.Hour})
	user := newUser(t, service, false)

	issued := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return issued }
	token, err := service.GenerateToken(user)
	require.NoError(t, err)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, issued.Add(time.Hour).Unix(), claims.Exp)
	assert.Equal(t, models.RoleUser, claims.Role)

	service.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = service.ValidateToken(token)
	assert.Equal(t, ErrExpiredToken, err)
}
