package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandler(t *testing.T) {
	Logins.WithLabelValues(LoginSuccess).Inc()
	RequestTransitions.WithLabelValues("done").Inc()
	OverdueRequests.Set(3)

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `maintenance_logins_total{outcome="success"}`)
	assert.Contains(t, body, `maintenance_request_transitions_total{state="done"}`)
	assert.Contains(t, body, "maintenance_requests_overdue 3")
}
