package httpapi

import (
	"net/http"
	"strings"

	"inventra.org/internal/audit"
	"inventra.org/internal/auth"
)

// Administrator surface. Every handler here passes the role gate after the
// token validator has already established identity.

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.requireRole(w, r, auth.RoleAdmin) {
		return
	}
	users, err := a.auth.ListUsers(r.Context())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

type userUpdateRequest struct {
	Name       *string `json:"name"`
	Email      *string `json:"email"`
	Role       *string `json:"role"`
	Department *string `json:"department"`
	Status     *string `json:"status"`
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/users/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if !a.requireRole(w, r, auth.RoleAdmin) {
		return
	}

	switch r.Method {
	case http.MethodGet:
		user, err := a.auth.GetUser(r.Context(), id)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": user})

	case http.MethodPut:
		var req userUpdateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		upd := auth.UserUpdate{
			Name:       req.Name,
			Email:      req.Email,
			Department: req.Department,
			Status:     req.Status,
		}
		if req.Role != nil {
			role, err := auth.ParseRole(*req.Role)
			if err != nil {
				handleAuthError(w, r, err)
				return
			}
			upd.Role = &role
		}
		user, err := a.auth.UpdateUser(r.Context(), id, upd)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "admin.user.update", map[string]any{
			"user_id": user.ID,
		})
		writeJSON(w, http.StatusOK, map[string]any{"user": user})

	case http.MethodDelete:
		if err := a.auth.DeleteUser(r.Context(), id); err != nil {
			handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "admin.user.delete", map[string]any{
			"user_id": id,
		})
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.requireRole(w, r, auth.RoleAdmin) {
		return
	}
	users, err := a.auth.ListUsers(r.Context())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	byRole := map[auth.Role]int{}
	active := 0
	for _, u := range users {
		byRole[u.Role]++
		if u.Status == auth.UserStatusActive {
			active++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"users_total":  len(users),
		"users_active": active,
		"users_by_role": map[string]int{
			string(auth.RoleAdmin):   byRole[auth.RoleAdmin],
			string(auth.RoleManager): byRole[auth.RoleManager],
			string(auth.RoleStaff):   byRole[auth.RoleStaff],
		},
	})
}
