package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/maintenance-tracker/internal/auth"
	"github.com/ukydev/maintenance-tracker/internal/config"
	"github.com/ukydev/maintenance-tracker/internal/events"
	"github.com/ukydev/maintenance-tracker/internal/mailer"
	"github.com/ukydev/maintenance-tracker/internal/models"
	"github.com/ukydev/maintenance-tracker/internal/orm"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	storeOverride = ""
	root := newRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func memoryConfig(t *testing.T) config.Config {
	t.Helper()
	t.Setenv("STORE", config.StoreMemory)
	c, err := config.FromEnv()
	require.NoError(t, err)
	return c
}

func TestRootCommand(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "check-overdue", "ensure-indexes", "create-admin"} {
		assert.Contains(t, names, want)
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("store"))
}

func TestCheckOverdueCommand(t *testing.T) {
	out, err := execute(t, "check-overdue", "--store", "memory")
	require.NoError(t, err)
	assert.Equal(t, "0 overdue requests updated\n", out)
}

func TestEnsureIndexesCommand(t *testing.T) {
	out, err := execute(t, "ensure-indexes", "--store", "memory")
	require.NoError(t, err)
	assert.Contains(t, out, "indexes ensured")
}

func TestCreateAdminCommand(t *testing.T) {
	out, err := execute(t, "create-admin", "--store", "memory", "--email", "Admin@Example.com", "--password", "Adm1n#Pass")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "created administrator admin@example.com"), out)

	_, err = execute(t, "create-admin", "--store", "memory", "--email", "admin@example.com", "--password", "weak")
	assert.EqualError(t, err, "Password must be at least 8 characters long")

	_, err = execute(t, "create-admin", "--store", "memory")
	assert.Error(t, err)
}

func TestInvalidStoreFlag(t *testing.T) {
	_, err := execute(t, "check-overdue", "--store", "sqlite")
	assert.Error(t, err)
}

func TestAppCreateAdmin(t *testing.T) {
	ctx := context.Background()
	a, err := newApp(ctx, memoryConfig(t))
	require.NoError(t, err)
	defer a.Close()

	admin, err := a.CreateAdmin(ctx, orm.Values{"name": "Admin", "email": "admin@example.com", "password": "Adm1n#Pass"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role())

	_, err = a.CreateAdmin(ctx, orm.Values{"name": "Again", "email": "ADMIN@example.com", "password": "Adm1n#Pass"})
	assert.ErrorIs(t, err, auth.ErrEmailTaken)

	_, err = a.CreateAdmin(ctx, orm.Values{"name": "Bad", "email": "not-an-email", "password": "Adm1n#Pass"})
	assert.EqualError(t, err, "Invalid email format")
}

func TestAppHandler(t *testing.T) {
	ctx := context.Background()
	a, err := newApp(ctx, memoryConfig(t))
	require.NoError(t, err)
	defer a.Close()
	h := a.Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/equipment", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	admin, err := a.CreateAdmin(ctx, orm.Values{"name": "Admin", "email": "admin@example.com", "password": "Adm1n#Pass"})
	require.NoError(t, err)
	token, err := a.tokens.GenerateToken(admin)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "admin@example.com")
}

func TestNewPublisherAndMailer(t *testing.T) {
	c := memoryConfig(t)
	assert.IsType(t, events.NopPublisher{}, newPublisher(c))
	assert.IsType(t, &mailer.LogMailer{}, newMailer(c))

	c.SMTP.Host = "smtp.example.com"
	assert.IsType(t, &mailer.SMTPMailer{}, newMailer(c))
}

func TestInitSentryDisabled(t *testing.T) {
	flush, err := initSentry(config.Config{})
	require.NoError(t, err)
	flush()
}
