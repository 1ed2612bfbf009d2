package handlers

import (
	"context"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/maintenance-tracker/internal/mailer"
	"github.com/ukydev/maintenance-tracker/internal/middleware"
	"github.com/ukydev/maintenance-tracker/internal/models"
)

// AccountService is the account store behind the session endpoints
type AccountService interface {
	Register(ctx context.Context, req models.RegisterRequest) (models.PortalUser, error)
	Login(ctx context.Context, email, password string) (models.LoginResponse, error)
	GetUser(ctx context.Context, id string) (models.PortalUser, error)
	RequestPasswordReset(ctx context.Context, email string) (*models.PortalUser, string, error)
	ResetPassword(ctx context.Context, token, password string) error
}

// AuthHandler handles authentication requests
type AuthHandler struct {
	accounts  AccountService
	mailer    mailer.Mailer
	publicURL string
	tokenTTL  time.Duration
}

// NewAuthHandler creates a new authentication handler. publicURL prefixes
// the links sent by mail.
func NewAuthHandler(accounts AccountService, m mailer.Mailer, publicURL string, tokenTTL time.Duration) *AuthHandler {
	if m == nil {
		m = &mailer.LogMailer{}
	}
	return &AuthHandler{accounts: accounts, mailer: m, publicURL: publicURL, tokenTTL: tokenTTL}
}

// SignInInfo handles GET /signin
func (h *AuthHandler) SignInInfo(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]interface{}{
		"fields": []string{"email", "password"},
		"method": http.MethodPost,
	}, "Sign in to continue")
}

// SignIn handles POST /signin and sets the session cookie
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := validateStruct(req); err != nil {
		respondError(w, r, err)
		return
	}

	resp, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		log.WithField("email", req.Email).WithError(err).Info("Sign-in refused")
		respondError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    resp.Token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
		MaxAge:   int(h.tokenTTL.Seconds()),
	})
	respond(w, http.StatusOK, resp, "Signed in successfully")
}

// SignUp handles POST /signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := validateStruct(req); err != nil {
		respondError(w, r, err)
		return
	}

	user, err := h.accounts.Register(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, user.Public(), "Account created successfully")
}

// SignOut handles POST /signout by clearing the session cookie
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	respondMessage(w, "Signed out")
}

// ForgotPassword handles POST /forgot-password. The answer is the same
// whether or not the account exists.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req models.ForgotPasswordRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := validateStruct(req); err != nil {
		respondError(w, r, err)
		return
	}

	user, token, err := h.accounts.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if user != nil {
		link := h.publicURL + "/reset-password?token=" + url.QueryEscape(token)
		if err := h.mailer.Send(r.Context(), mailer.PasswordReset(user.Email(), user.Name(), link)); err != nil {
			log.WithError(err).WithField("user_id", user.ID()).Error("Failed to send reset email")
		}
	}
	respondMessage(w, "If an account exists for that email, a reset link has been sent")
}

// ResetPassword handles POST /reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req models.ResetPasswordRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := validateStruct(req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.accounts.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		respondError(w, r, err)
		return
	}
	respondMessage(w, "Password updated. You can now sign in")
}

// Me returns the signed-in user's profile
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		fail(w, http.StatusUnauthorized, "User context not found")
		return
	}

	user, err := h.accounts.GetUser(r.Context(), claims.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, user.Public(), "")
}
