package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/maintenance-tracker/internal/auth"
	"github.com/ukydev/maintenance-tracker/internal/db"
	"github.com/ukydev/maintenance-tracker/internal/mailer"
	"github.com/ukydev/maintenance-tracker/internal/middleware"
	"github.com/ukydev/maintenance-tracker/internal/models"
	"github.com/ukydev/maintenance-tracker/internal/orm"
	"go.mongodb.org/mongo-driver/bson"
)

// MockAccountService is a mock implementation of AccountService
type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) Register(ctx context.Context, req models.RegisterRequest) (models.PortalUser, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(models.PortalUser), args.Error(1)
}

func (m *MockAccountService) Login(ctx context.Context, email, password string) (models.LoginResponse, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(models.LoginResponse), args.Error(1)
}

func (m *MockAccountService) GetUser(ctx context.Context, id string) (models.PortalUser, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.PortalUser), args.Error(1)
}

func (m *MockAccountService) RequestPasswordReset(ctx context.Context, email string) (*models.PortalUser, string, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).(*models.PortalUser), args.String(1), args.Error(2)
}

func (m *MockAccountService) ResetPassword(ctx context.Context, token, password string) error {
	args := m.Called(ctx, token, password)
	return args.Error(0)
}

// portalUser builds an unsaved user record for mocks
func portalUser(email string) models.PortalUser {
	mapper := orm.NewMapper(db.NewMemoryStore(), models.PortalUserModel)
	return models.PortalUser{Record: mapper.NewRecord(bson.M{
		"name":          "Jane Doe",
		"email":         email,
		"password_hash": "$2a$10$hash",
		"active":        true,
	})}
}

func postJSON(t *testing.T, path string, body interface{}) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestAuthHandler_SignIn(t *testing.T) {
	tests := []struct {
		name           string
		body           interface{}
		setupMock      func(*MockAccountService)
		expectedStatus int
		expectedError  string
		expectCookie   bool
	}{
		{
			name: "successful login",
			body: models.LoginRequest{Email: "jane@example.com", Password: "Str0ng#Pass"},
			setupMock: func(m *MockAccountService) {
				m.On("Login", mock.Anything, "jane@example.com", "Str0ng#Pass").
					Return(models.LoginResponse{Token: "signed-token", User: map[string]interface{}{"email": "jane@example.com"}}, nil)
			},
			expectedStatus: http.StatusOK,
			expectCookie:   true,
		},
		{
			name: "wrong password",
			body: models.LoginRequest{Email: "jane@example.com", Password: "nope"},
			setupMock: func(m *MockAccountService) {
				m.On("Login", mock.Anything, "jane@example.com", "nope").Return(models.LoginResponse{}, auth.ErrInvalidPassword)
			},
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "Invalid Password",
		},
		{
			name: "locked account",
			body: models.LoginRequest{Email: "jane@example.com", Password: "Str0ng#Pass"},
			setupMock: func(m *MockAccountService) {
				m.On("Login", mock.Anything, "jane@example.com", "Str0ng#Pass").Return(models.LoginResponse{}, auth.ErrAccountLocked)
			},
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "Account temporarily locked. Try again later.",
		},
		{
			name:           "missing password",
			body:           map[string]string{"email": "jane@example.com"},
			setupMock:      func(m *MockAccountService) {},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "password is required",
		},
		{
			name:           "invalid json",
			body:           "not an object",
			setupMock:      func(m *MockAccountService) {},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Invalid JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accounts := new(MockAccountService)
			tt.setupMock(accounts)
			handler := NewAuthHandler(accounts, &mailer.LogMailer{}, "http://localhost:5000", time.Hour)

			w := httptest.NewRecorder()
			handler.SignIn(w, postJSON(t, "/signin", tt.body))

			assert.Equal(t, tt.expectedStatus, w.Code)
			body := decodeEnvelope(t, w)
			if tt.expectedError != "" {
				assert.Equal(t, false, body["success"])
				assert.Equal(t, tt.expectedError, body["error"])
			}
			if tt.expectCookie {
				cookies := w.Result().Cookies()
				require.Len(t, cookies, 1)
				assert.Equal(t, middleware.SessionCookie, cookies[0].Name)
				assert.Equal(t, "signed-token", cookies[0].Value)
				assert.True(t, cookies[0].HttpOnly)
				assert.Equal(t, 3600, cookies[0].MaxAge)
			}
			accounts.AssertExpectations(t)
		})
	}
}

func TestAuthHandler_SignUp(t *testing.T) {
	accounts := new(MockAccountService)
	handler := NewAuthHandler(accounts, nil, "http://localhost:5000", time.Hour)

	valid := models.RegisterRequest{Name: "Jane Doe", Email: "jane@example.com", Password: "Str0ng#Pass", ConfirmPassword: "Str0ng#Pass"}
	accounts.On("Register", mock.Anything, valid).Return(portalUser("jane@example.com"), nil).Once()

	w := httptest.NewRecorder()
	handler.SignUp(w, postJSON(t, "/signup", valid))
	assert.Equal(t, http.StatusCreated, w.Code)
	body := decodeEnvelope(t, w)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "jane@example.com", data["email"])
	assert.NotContains(t, data, "password_hash")

	// Mismatched confirmation never reaches the store
	mismatch := valid
	mismatch.ConfirmPassword = "Other#Pass1"
	w = httptest.NewRecorder()
	handler.SignUp(w, postJSON(t, "/signup", mismatch))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Passwords do not match", decodeEnvelope(t, w)["error"])

	// Duplicate email
	dup := valid
	dup.Email = "taken@example.com"
	accounts.On("Register", mock.Anything, dup).Return(models.PortalUser{}, auth.ErrEmailTaken).Once()
	w = httptest.NewRecorder()
	handler.SignUp(w, postJSON(t, "/signup", dup))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Email already registered", decodeEnvelope(t, w)["error"])

	accounts.AssertExpectations(t)
}

func TestAuthHandler_SignOut(t *testing.T) {
	handler := NewAuthHandler(new(MockAccountService), nil, "", time.Hour)
	w := httptest.NewRecorder()
	handler.SignOut(w, httptest.NewRequest(http.MethodPost, "/signout", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.SessionCookie, cookies[0].Name)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestAuthHandler_ForgotPassword(t *testing.T) {
	accounts := new(MockAccountService)
	mail := &mailer.LogMailer{}
	handler := NewAuthHandler(accounts, mail, "https://maint.example.com", time.Hour)

	user := portalUser("jane@example.com")
	accounts.On("RequestPasswordReset", mock.Anything, "jane@example.com").Return(&user, "reset.token", nil)
	accounts.On("RequestPasswordReset", mock.Anything, "ghost@example.com").Return(nil, "", nil)

	w := httptest.NewRecorder()
	handler.ForgotPassword(w, postJSON(t, "/forgot-password", models.ForgotPasswordRequest{Email: "jane@example.com"}))
	assert.Equal(t, http.StatusOK, w.Code)
	known := decodeEnvelope(t, w)["message"]

	w = httptest.NewRecorder()
	handler.ForgotPassword(w, postJSON(t, "/forgot-password", models.ForgotPasswordRequest{Email: "ghost@example.com"}))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, known, decodeEnvelope(t, w)["message"])

	sent := mail.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"jane@example.com"}, sent[0].To)
	assert.Contains(t, sent[0].Text, "https://maint.example.com/reset-password?token=reset.token")

	w = httptest.NewRecorder()
	handler.ForgotPassword(w, postJSON(t, "/forgot-password", map[string]string{"email": "not-an-email"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "email must be a valid email", decodeEnvelope(t, w)["error"])

	accounts.AssertExpectations(t)
}

func TestAuthHandler_ResetPassword(t *testing.T) {
	accounts := new(MockAccountService)
	handler := NewAuthHandler(accounts, nil, "", time.Hour)

	accounts.On("ResetPassword", mock.Anything, "good", "N3w#Password").Return(nil)
	accounts.On("ResetPassword", mock.Anything, "stale", "N3w#Password").Return(auth.ErrInvalidReset)

	w := httptest.NewRecorder()
	handler.ResetPassword(w, postJSON(t, "/reset-password", models.ResetPasswordRequest{Token: "good", Password: "N3w#Password"}))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ResetPassword(w, postJSON(t, "/reset-password", models.ResetPasswordRequest{Token: "stale", Password: "N3w#Password"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid or expired reset link", decodeEnvelope(t, w)["error"])

	accounts.AssertExpectations(t)
}

func TestAuthHandler_Me(t *testing.T) {
	accounts := new(MockAccountService)
	handler := NewAuthHandler(accounts, nil, "", time.Hour)
	accounts.On("GetUser", mock.Anything, "user-1").Return(portalUser("jane@example.com"), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req = req.WithContext(middleware.WithUser(req.Context(), &models.Claims{UserID: "user-1", Role: models.RoleUser}))
	w := httptest.NewRecorder()
	handler.Me(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "Jane Doe", data["name"])

	// Test without user context
	w = httptest.NewRecorder()
	handler.Me(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
