package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/maintenance-tracker/internal/apperr"
	"github.com/ukydev/maintenance-tracker/internal/db"
	"github.com/ukydev/maintenance-tracker/internal/metrics"
	"github.com/ukydev/maintenance-tracker/internal/models"
	"github.com/ukydev/maintenance-tracker/internal/orm"
)

// Lockout policy for repeated failed sign-ins
const (
	MaxLoginAttempts = 5
	LockoutDuration  = 15 * time.Minute
)

var (
	ErrAccountNotFound = apperr.Authentication("Account not exist")
	ErrAccountLocked   = apperr.Authentication("Account temporarily locked. Try again later.")
	ErrInvalidPassword = apperr.Authentication("Invalid Password")
	ErrEmailTaken      = apperr.Conflict("Email already registered")
	ErrInvalidReset    = apperr.Validation("Invalid or expired reset link")
)

// Portal manages portal user accounts
type Portal struct {
	users *orm.Mapper
	auth  *Service
	now   func() time.Time
}

// PortalOption configures a Portal
type PortalOption func(*Portal)

// WithPortalClock replaces time.Now for lockout and login stamps
func WithPortalClock(now func() time.Time) PortalOption {
	return func(p *Portal) {
		p.now = now
		p.auth.now = now
	}
}

// NewPortal creates the account manager over store
func NewPortal(store db.Store, svc *Service, opts ...PortalOption) *Portal {
	p := &Portal{auth: svc, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	p.users = orm.NewMapper(store, models.PortalUserModel, orm.WithClock(p.now))
	return p
}

// Tokens returns the token service backing the portal
func (p *Portal) Tokens() *Service {
	return p.auth
}

// Create stores a user. A plain "password" value is hashed into
// password_hash; email is normalized. A unique index violation on email
// is reported as ErrEmailTaken.
func (p *Portal) Create(ctx context.Context, vals orm.Values) (models.PortalUser, error) {
	vals = vals.Clone()
	if pw, ok := vals["password"].(string); ok {
		hash, err := p.auth.HashPassword(pw)
		if err != nil {
			return models.PortalUser{}, err
		}
		vals["password_hash"] = hash
		delete(vals, "password")
	}
	if email, ok := vals["email"].(string); ok {
		vals["email"] = NormalizeEmail(email)
	}
	rec, err := p.users.Create(ctx, vals)
	if errors.Is(err, db.ErrDuplicateKey) {
		return models.PortalUser{}, ErrEmailTaken
	}
	if err != nil {
		return models.PortalUser{}, err
	}
	log.WithFields(log.Fields{"user_id": rec.ID(), "email": rec.String("email")}).Info("Portal user created")
	return models.PortalUser{Record: rec}, nil
}

// Register signs up a new user after checking the email and password
func (p *Portal) Register(ctx context.Context, req models.RegisterRequest) (models.PortalUser, error) {
	if err := ValidateEmail(req.Email); err != nil {
		return models.PortalUser{}, err
	}
	if err := ValidatePasswordStrength(req.Password); err != nil {
		return models.PortalUser{}, err
	}
	exists, err := p.EmailExists(ctx, req.Email)
	if err != nil {
		return models.PortalUser{}, err
	}
	if exists {
		return models.PortalUser{}, ErrEmailTaken
	}
	return p.Create(ctx, orm.Values{
		"name":     strings.TrimSpace(req.Name),
		"email":    req.Email,
		"password": req.Password,
	})
}

// EmailExists reports whether an account uses email
func (p *Portal) EmailExists(ctx context.Context, email string) (bool, error) {
	n, err := p.users.Count(ctx, orm.Domain{orm.Cond("email", "=", NormalizeEmail(email))})
	return n > 0, err
}

// FindByEmail returns the account for email, or nil
func (p *Portal) FindByEmail(ctx context.Context, email string) (*models.PortalUser, error) {
	rec, err := p.users.SearchOne(ctx, orm.Domain{orm.Cond("email", "=", NormalizeEmail(email))}, "")
	if err != nil || rec == nil {
		return nil, err
	}
	return &models.PortalUser{Record: rec}, nil
}

// Authenticate checks credentials against active accounts. Five
// consecutive failures lock the account for fifteen minutes; a success
// clears the counter.
func (p *Portal) Authenticate(ctx context.Context, email, password string) (models.PortalUser, error) {
	user, err := p.FindByEmail(ctx, email)
	if err != nil {
		return models.PortalUser{}, err
	}
	if user == nil || !user.Active() {
		metrics.Logins.WithLabelValues(metrics.LoginFailure).Inc()
		return models.PortalUser{}, ErrAccountNotFound
	}

	now := p.now()
	if until, ok := user.LockedUntil(); ok && now.Before(until) {
		metrics.Logins.WithLabelValues(metrics.LoginLocked).Inc()
		return models.PortalUser{}, ErrAccountLocked
	}

	if !p.auth.CheckPassword(password, user.PasswordHash()) {
		attempts := user.LoginAttempts() + 1
		vals := orm.Values{"login_attempts": attempts}
		if attempts >= MaxLoginAttempts {
			vals["locked_until"] = now.Add(LockoutDuration)
			log.WithFields(log.Fields{"user_id": user.ID(), "attempts": attempts}).Warn("Portal user locked out")
		}
		if err := user.Write(ctx, vals); err != nil {
			return models.PortalUser{}, err
		}
		metrics.Logins.WithLabelValues(metrics.LoginFailure).Inc()
		return models.PortalUser{}, ErrInvalidPassword
	}

	if err := user.Write(ctx, orm.Values{
		"login_attempts": 0,
		"locked_until":   nil,
		"last_login":     now,
	}); err != nil {
		return models.PortalUser{}, err
	}
	metrics.Logins.WithLabelValues(metrics.LoginSuccess).Inc()
	return *user, nil
}

// Login authenticates and issues a session token
func (p *Portal) Login(ctx context.Context, email, password string) (models.LoginResponse, error) {
	user, err := p.Authenticate(ctx, email, password)
	if err != nil {
		return models.LoginResponse{}, err
	}
	token, err := p.auth.GenerateToken(user)
	if err != nil {
		return models.LoginResponse{}, err
	}
	return models.LoginResponse{Token: token, User: user.Public()}, nil
}

// GetUser fetches a user by id
func (p *Portal) GetUser(ctx context.Context, id string) (models.PortalUser, error) {
	rec, err := p.users.Get(ctx, id)
	if err != nil {
		return models.PortalUser{}, err
	}
	return models.PortalUser{Record: rec}, nil
}

// SearchUsers lists users ordered by name
func (p *Portal) SearchUsers(ctx context.Context, domain orm.Domain, opts orm.SearchOptions) ([]models.PortalUser, error) {
	if opts.Order == "" {
		opts.Order = "name"
	}
	recs, err := p.users.Search(ctx, domain, opts)
	if err != nil {
		return nil, err
	}
	out := make([]models.PortalUser, 0, len(recs))
	for _, rec := range recs {
		out = append(out, models.PortalUser{Record: rec})
	}
	return out, nil
}

// CountUsers counts users matching domain
func (p *Portal) CountUsers(ctx context.Context, domain orm.Domain) (int64, error) {
	return p.users.Count(ctx, domain)
}

// UpdateUser applies an administrator's edit
func (p *Portal) UpdateUser(ctx context.Context, id string, req models.UpdateUserRequest) (models.PortalUser, error) {
	user, err := p.GetUser(ctx, id)
	if err != nil {
		return models.PortalUser{}, err
	}
	vals := orm.Values{}
	if req.Name != nil {
		vals["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Active != nil {
		vals["active"] = *req.Active
	}
	if req.IsAdmin != nil {
		vals["is_admin"] = *req.IsAdmin
	}
	if len(vals) == 0 {
		return user, nil
	}
	if err := user.Write(ctx, vals); err != nil {
		return models.PortalUser{}, err
	}
	return user, nil
}

// DeleteUser removes a user
func (p *Portal) DeleteUser(ctx context.Context, id string) error {
	user, err := p.GetUser(ctx, id)
	if err != nil {
		return err
	}
	return user.Unlink(ctx)
}

// RequestPasswordReset issues a reset token for email. A nil user with no
// error means the account does not exist; callers answer the same either way.
func (p *Portal) RequestPasswordReset(ctx context.Context, email string) (*models.PortalUser, string, error) {
	user, err := p.FindByEmail(ctx, email)
	if err != nil || user == nil {
		return nil, "", err
	}
	token, err := p.auth.GenerateResetToken(*user)
	if err != nil {
		return nil, "", err
	}
	log.WithField("user_id", user.ID()).Info("Password reset requested")
	return user, token, nil
}

// ResetPassword sets a new password from a reset token and clears any lockout
func (p *Portal) ResetPassword(ctx context.Context, token, password string) error {
	userID, fingerprint, err := p.auth.ValidateResetToken(token)
	if err != nil {
		return ErrInvalidReset
	}
	if err := ValidatePasswordStrength(password); err != nil {
		return err
	}
	user, err := p.GetUser(ctx, userID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return ErrInvalidReset
		}
		return err
	}
	if hashFingerprint(user.PasswordHash()) != fingerprint {
		return ErrInvalidReset
	}
	hash, err := p.auth.HashPassword(password)
	if err != nil {
		return err
	}
	if err := user.Write(ctx, orm.Values{
		"password_hash":  hash,
		"login_attempts": 0,
		"locked_until":   nil,
	}); err != nil {
		return err
	}
	log.WithField("user_id", user.ID()).Info("Password reset")
	return nil
}

// IsAuthError reports whether err is a credential failure
func IsAuthError(err error) bool {
	var e *apperr.Error
	return errors.As(err, &e) && e.Kind == apperr.KindAuthentication
}
