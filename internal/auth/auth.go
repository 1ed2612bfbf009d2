package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/badoux/checkmail"
	"github.com/golang-jwt/jwt/v5"
	"github.com/ukydev/maintenance-tracker/internal/apperr"
	"github.com/ukydev/maintenance-tracker/internal/models"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Token purposes
const (
	PurposeSession = "session"
	PurposeReset   = "reset"
)

const defaultSecret = "default-secret-key-change-in-production"

// Config holds token settings
type Config struct {
	Secret      string
	Expiry      time.Duration
	ResetExpiry time.Duration
}

// Service handles authentication operations
type Service struct {
	jwtSecret []byte
	tokenExp  time.Duration
	resetExp  time.Duration
	now       func() time.Time
}

// NewService creates a new authentication service
func NewService(cfg Config) (*Service, error) {
	secret := cfg.Secret
	if secret == "" {
		secret = defaultSecret
	}
	exp := cfg.Expiry
	if exp <= 0 {
		exp = 24 * time.Hour
	}
	resetExp := cfg.ResetExpiry
	if resetExp <= 0 {
		resetExp = 30 * time.Minute
	}
	return &Service{
		jwtSecret: []byte(secret),
		tokenExp:  exp,
		resetExp:  resetExp,
		now:       time.Now,
	}, nil
}

// TokenExpiry is how long a session token lasts
func (s *Service) TokenExpiry() time.Duration {
	return s.tokenExp
}

// HashPassword hashes a password using bcrypt
func (s *Service) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

// CheckPassword checks if a password matches a hash
func (s *Service) CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// GenerateToken generates a session token for a portal user
func (s *Service) GenerateToken(user models.PortalUser) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id": user.ID(),
		"email":   user.Email(),
		"name":    user.Name(),
		"role":    string(user.Role()),
		"purpose": PurposeSession,
		"exp":     now.Add(s.tokenExp).Unix(),
		"iat":     now.Unix(),
	}
	return s.sign(claims)
}

// GenerateResetToken generates a password reset token. It is bound to the
// current password hash, so it stops working once the password changes.
func (s *Service) GenerateResetToken(user models.PortalUser) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id": user.ID(),
		"purpose": PurposeReset,
		"pwh":     hashFingerprint(user.PasswordHash()),
		"exp":     now.Add(s.resetExp).Unix(),
		"iat":     now.Unix(),
	}
	return s.sign(claims)
}

func (s *Service) sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *Service) parse(tokenString string) (jwt.MapClaims, error) {
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateToken validates a session token and returns the claims
func (s *Service) ValidateToken(tokenString string) (*models.Claims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if purpose, _ := claims["purpose"].(string); purpose != PurposeSession {
		return nil, ErrInvalidToken
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return nil, ErrInvalidToken
	}
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	roleStr, ok := claims["role"].(string)
	if !ok || !models.IsValidRole(models.Role(roleStr)) {
		return nil, ErrInvalidToken
	}
	exp, ok := claims["exp"].(float64)
	if !ok {
		return nil, ErrInvalidToken
	}

	return &models.Claims{
		UserID: userID,
		Email:  email,
		Name:   name,
		Role:   models.Role(roleStr),
		Exp:    int64(exp),
	}, nil
}

// ValidateResetToken returns the user id a reset token was issued for
// and the password fingerprint it is bound to
func (s *Service) ValidateResetToken(tokenString string) (userID, fingerprint string, err error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return "", "", err
	}
	if purpose, _ := claims["purpose"].(string); purpose != PurposeReset {
		return "", "", ErrInvalidToken
	}
	userID, _ = claims["user_id"].(string)
	fingerprint, _ = claims["pwh"].(string)
	if userID == "" || fingerprint == "" {
		return "", "", ErrInvalidToken
	}
	return userID, fingerprint, nil
}

func hashFingerprint(hash string) string {
	if len(hash) > 12 {
		return hash[len(hash)-12:]
	}
	return hash
}

// ExtractTokenFromHeader extracts token from Authorization header
func (s *Service) ExtractTokenFromHeader(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrInvalidToken
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", ErrInvalidToken
	}

	return parts[1], nil
}

// ValidatePasswordStrength requires at least 8 characters with an
// uppercase letter, a lowercase letter and a special character
func ValidatePasswordStrength(password string) error {
	if len([]rune(password)) < 8 {
		return apperr.Validation("Password must be at least 8 characters long")
	}
	var hasUpper, hasLower, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			hasSpecial = true
		}
	}
	if !hasUpper {
		return apperr.Validation("Password must contain at least one uppercase letter")
	}
	if !hasLower {
		return apperr.Validation("Password must contain at least one lowercase letter")
	}
	if !hasSpecial {
		return apperr.Validation("Password must contain at least one special character")
	}
	return nil
}

// NormalizeEmail lowercases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail validates email format
func ValidateEmail(email string) error {
	if err := checkmail.ValidateFormat(NormalizeEmail(email)); err != nil {
		return apperr.Validation("Invalid email format")
	}
	return nil
}
