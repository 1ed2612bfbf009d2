// Package handlers serves the JSON API and the session endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/maintenance-tracker/internal/apperr"
	"github.com/ukydev/maintenance-tracker/internal/maintenance"
	"github.com/ukydev/maintenance-tracker/internal/orm"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
	Total   *int64      `json:"total,omitempty"`
	Limit   *int64      `json:"limit,omitempty"`
	Offset  *int64      `json:"offset,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Failed to encode response")
	}
}

func respond(w http.ResponseWriter, status int, data interface{}, message string) {
	writeJSON(w, status, Envelope{Success: true, Data: data, Message: message})
}

func respondPage(w http.ResponseWriter, data interface{}, total, limit, offset int64) {
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: data, Total: &total, Limit: &limit, Offset: &offset})
}

func respondList(w http.ResponseWriter, data interface{}, total int64) {
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: data, Total: &total})
}

func respondMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, Envelope{Success: true, Message: message})
}

func fail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Envelope{Success: false, Error: message})
}

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	var missing *orm.MissingRequiredFieldError
	var transition *maintenance.InvalidTransitionError
	switch {
	case errors.As(err, &missing), errors.As(err, &transition), errors.Is(err, orm.ErrNoIdentity):
		return http.StatusBadRequest
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindAuthentication:
		return http.StatusUnauthorized
	case apperr.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondError writes err with its status. Unclassified errors are logged,
// reported to Sentry and hidden behind a generic message.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status != http.StatusInternalServerError {
		fail(w, status, err.Error())
		return
	}
	log.WithError(err).WithFields(log.Fields{"method": r.Method, "path": r.URL.Path}).Error("Request failed")
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("path", r.URL.Path)
		scope.SetExtra("method", r.Method)
		sentry.CaptureException(err)
	})
	fail(w, status, "Internal server error")
}

// decodeValues reads a JSON object body into record values.
func decodeValues(r *http.Request) (orm.Values, error) {
	vals := orm.Values{}
	if err := json.NewDecoder(r.Body).Decode(&vals); err != nil {
		return nil, apperr.Validation("Invalid JSON")
	}
	return vals, nil
}

func decodeBody(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Validation("Invalid JSON")
	}
	return nil
}

// requireFields fails when any of names is absent or empty in vals.
func requireFields(vals orm.Values, names ...string) error {
	var missing []string
	for _, name := range names {
		v, ok := vals[name]
		if !ok || isEmpty(v) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return apperr.Validation("Missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

func isEmpty(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case bool:
		return !t
	case float64:
		return t == 0
	case []interface{}:
		return len(t) == 0
	case map[string]interface{}:
		return len(t) == 0
	}
	return false
}

var validate = validator.New()

// validateStruct checks validate tags and joins the failures into one
// readable message.
func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation("%s", err.Error())
	}
	var messages []string
	for _, fe := range verrs {
		field := fieldName(fe)
		switch fe.Tag() {
		case "required":
			messages = append(messages, field+" is required")
		case "min":
			messages = append(messages, field+" must be at least "+fe.Param()+" characters")
		case "max":
			messages = append(messages, field+" must be at most "+fe.Param()+" characters")
		case "email":
			messages = append(messages, field+" must be a valid email")
		case "eqfield":
			messages = append(messages, "Passwords do not match")
		default:
			messages = append(messages, field+" is invalid")
		}
	}
	return apperr.Validation("%s", strings.Join(messages, ", "))
}

func fieldName(fe validator.FieldError) string {
	var b strings.Builder
	for i, r := range fe.Field() {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

// paging reads limit and offset query parameters.
func paging(r *http.Request, defaultLimit int64) (limit, offset int64, err error) {
	limit, offset = defaultLimit, 0
	q := r.URL.Query()
	if s := q.Get("limit"); s != "" {
		limit, err = strconv.ParseInt(s, 10, 64)
		if err != nil || limit < 0 {
			return 0, 0, apperr.Validation("Invalid limit: %s", s)
		}
	}
	if s := q.Get("offset"); s != "" {
		offset, err = strconv.ParseInt(s, 10, 64)
		if err != nil || offset < 0 {
			return 0, 0, apperr.Validation("Invalid offset: %s", s)
		}
	}
	return limit, offset, nil
}

// equalsFilters adds an equality condition for each query parameter present.
func equalsFilters(r *http.Request, domain orm.Domain, params ...string) orm.Domain {
	q := r.URL.Query()
	for _, p := range params {
		if v := q.Get(p); v != "" {
			domain = append(domain, orm.Cond(p, "=", v))
		}
	}
	return domain
}

func searchFilter(r *http.Request, domain orm.Domain, field string) orm.Domain {
	if s := strings.TrimSpace(r.URL.Query().Get("search")); s != "" {
		domain = append(domain, orm.Cond(field, "like", s))
	}
	return domain
}
