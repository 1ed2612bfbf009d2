package handlers

import (
	"context"
	"net/http"

	"github.com/ukydev/maintenance-tracker/internal/apperr"
	"github.com/ukydev/maintenance-tracker/internal/middleware"
	"github.com/ukydev/maintenance-tracker/internal/models"
	"github.com/ukydev/maintenance-tracker/internal/orm"
)

// UserDirectory is the administrator's view of portal accounts
type UserDirectory interface {
	SearchUsers(ctx context.Context, domain orm.Domain, opts orm.SearchOptions) ([]models.PortalUser, error)
	CountUsers(ctx context.Context, domain orm.Domain) (int64, error)
	GetUser(ctx context.Context, id string) (models.PortalUser, error)
	UpdateUser(ctx context.Context, id string, req models.UpdateUserRequest) (models.PortalUser, error)
	DeleteUser(ctx context.Context, id string) error
}

// UserHandler serves /api/users for administrators
type UserHandler struct {
	users        UserDirectory
	itemsPerPage int64
}

func NewUserHandler(users UserDirectory, itemsPerPage int64) *UserHandler {
	if itemsPerPage <= 0 {
		itemsPerPage = 80
	}
	return &UserHandler{users: users, itemsPerPage: itemsPerPage}
}

// List handles GET /api/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := paging(r, h.itemsPerPage)
	if err != nil {
		respondError(w, r, err)
		return
	}
	domain := searchFilter(r, nil, "name")
	switch r.URL.Query().Get("active") {
	case "true":
		domain = append(domain, orm.Cond("active", "=", true))
	case "false":
		domain = append(domain, orm.Cond("active", "=", false))
	}

	users, err := h.users.SearchUsers(r.Context(), domain, orm.SearchOptions{Limit: limit, Offset: offset})
	if err != nil {
		respondError(w, r, err)
		return
	}
	total, err := h.users.CountUsers(r.Context(), domain)
	if err != nil {
		respondError(w, r, err)
		return
	}
	records := make([]map[string]interface{}, 0, len(users))
	for _, u := range users {
		records = append(records, u.Public())
	}
	respondPage(w, records, total, limit, offset)
}

// Get handles GET /api/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, user.Public(), "")
}

// Update handles PUT /api/users/{id}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateUserRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := validateStruct(req); err != nil {
		respondError(w, r, err)
		return
	}
	if claims, ok := middleware.GetUserFromContext(r.Context()); ok && claims.UserID == r.PathValue("id") {
		if (req.IsAdmin != nil && !*req.IsAdmin) || (req.Active != nil && !*req.Active) {
			respondError(w, r, apperr.Validation("You cannot demote or deactivate your own account"))
			return
		}
	}
	user, err := h.users.UpdateUser(r.Context(), r.PathValue("id"), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, user.Public(), "User updated successfully")
}

// Delete handles DELETE /api/users/{id}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if claims, ok := middleware.GetUserFromContext(r.Context()); ok && claims.UserID == r.PathValue("id") {
		respondError(w, r, apperr.Validation("You cannot delete your own account"))
		return
	}
	if err := h.users.DeleteUser(r.Context(), r.PathValue("id")); err != nil {
		respondError(w, r, err)
		return
	}
	respondMessage(w, "User deleted successfully")
}
