package rbac

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/crucible-ti/crucible/internal/access"
	"github.com/crucible-ti/crucible/internal/platform/httpx"
)

// Administrative permission identifiers.
const (
	PermRoleRead         = "role.read"
	PermRoleWrite        = "role.write"
	PermRoleDelete       = "role.delete"
	PermUserAdmin        = "user.admin"
	PermGroupAccessRead  = "group_access.read"
	PermGroupAccessWrite = "group_access.write"
)

// AdminPermissions lists the identifiers owned by this package.
func AdminPermissions() []string {
	return []string{
		PermRoleRead,
		PermRoleWrite,
		PermRoleDelete,
		PermUserAdmin,
		PermGroupAccessRead,
		PermGroupAccessWrite,
	}
}

// Handler serves role and group-grant administration.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	registry access.PermissionSet
	mw       access.Middleware
	validate *validator.Validate
}

// NewHandler constructs a Handler. registry is the full catalog of
// known permission identifiers, used to validate role edits and served
// to admin UIs.
func NewHandler(logger *slog.Logger, service *Service, registry access.PermissionSet, mw access.Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		registry: registry,
		mw:       mw,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Routes mounts the admin endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/me", h.me)

	r.With(h.mw.Require(PermRoleRead)).Get("/permissions", h.listPermissions)

	r.Route("/roles", func(r chi.Router) {
		r.With(h.mw.Require(PermRoleRead)).Get("/", h.listRoles)
		r.With(h.mw.Require(PermRoleWrite)).Post("/", h.createRole)
		r.With(h.mw.Require(PermRoleDelete)).Delete("/{roleID}", h.deleteRole)
		r.With(h.mw.Require(PermRoleRead)).Get("/{roleID}/permissions", h.rolePermissions)
		r.With(h.mw.Require(PermRoleWrite)).Put("/{roleID}/permissions", h.setRolePermissions)
	})

	r.Route("/users/{userID}", func(r chi.Router) {
		r.With(h.mw.Require(PermUserAdmin)).Post("/roles/{roleID}", h.assignRole)
		r.With(h.mw.Require(PermUserAdmin)).Delete("/roles/{roleID}", h.removeRole)
		r.With(h.mw.Require(PermGroupAccessRead)).Get("/group-access", h.listGrants)
		r.With(h.mw.Require(PermGroupAccessWrite)).Put("/group-access/{group}", h.grantGroupAccess)
		r.With(h.mw.Require(PermGroupAccessWrite)).Delete("/group-access/{group}", h.revokeGroupAccess)
	})

	return r
}

type meResponse struct {
	UserID      int64    `json:"user_id"`
	Username    string   `json:"username"`
	Superuser   bool     `json:"superuser"`
	Permissions []string `json:"permissions"`
	Groups      []string `json:"groups"`
	Fingerprint string   `json:"fingerprint"`
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	rc := access.FromContext(r.Context())
	if rc == nil {
		httpx.RespondError(w, access.ErrUnauthorized)
		return
	}
	groups := make([]string, 0, len(rc.Scope.GroupCeilings))
	for group := range rc.Scope.GroupCeilings {
		groups = append(groups, group)
	}
	httpx.JSON(w, http.StatusOK, meResponse{
		UserID:      rc.User.ID,
		Username:    rc.User.Username,
		Superuser:   rc.Scope.Superuser,
		Permissions: rc.Scope.Permissions.List(),
		Groups:      groups,
		Fingerprint: rc.Scope.Fingerprint(),
	})
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": h.registry.List()})
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.fail(w, "list roles", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": roles})
}

type createRoleRequest struct {
	Name        string `json:"name" validate:"required,max=128"`
	Description string `json:"description" validate:"max=512"`
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if !h.decode(w, r, &req) {
		return
	}
	role, err := h.service.CreateRole(r.Context(), actorID(r), req.Name, req.Description)
	if err != nil {
		h.fail(w, "create role", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	if err := h.service.DeleteRole(r.Context(), actorID(r), id); err != nil {
		h.fail(w, "delete role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) rolePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	perms, err := h.service.RolePermissions(r.Context(), id)
	if err != nil {
		h.fail(w, "role permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

type setPermissionsRequest struct {
	Permissions []string `json:"permissions" validate:"required"`
}

func (h *Handler) setRolePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	var req setPermissionsRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.SetRolePermissions(r.Context(), actorID(r), id, req.Permissions, h.registry); err != nil {
		h.fail(w, "set role permissions", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	roleID, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	if err := h.service.AssignRole(r.Context(), actorID(r), userID, roleID); err != nil {
		h.fail(w, "assign role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	roleID, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	if err := h.service.RemoveRole(r.Context(), actorID(r), userID, roleID); err != nil {
		h.fail(w, "remove role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type grantView struct {
	Group   string `json:"group"`
	Ceiling string `json:"ceiling"`
}

func (h *Handler) listGrants(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	grants, err := h.service.ListGroupGrants(r.Context(), userID)
	if err != nil {
		h.fail(w, "list group grants", err)
		return
	}
	views := make([]grantView, 0, len(grants))
	for _, grant := range grants {
		views = append(views, grantView{Group: grant.Group, Ceiling: grant.Ceiling.String()})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"grants": views})
}

type grantRequest struct {
	Ceiling string `json:"ceiling" validate:"required,oneof=white green amber red"`
}

func (h *Handler) grantGroupAccess(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	var req grantRequest
	if !h.decode(w, r, &req) {
		return
	}
	ceiling, err := access.ParseClassification(req.Ceiling)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.GrantGroupAccess(r.Context(), actorID(r), userID, chi.URLParam(r, "group"), ceiling); err != nil {
		h.fail(w, "grant group access", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) revokeGroupAccess(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	if err := h.service.RevokeGroupAccess(r.Context(), actorID(r), userID, chi.URLParam(r, "group")); err != nil {
		h.fail(w, "revoke group access", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid "+name)
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrDuplicate):
		httpx.RespondError(w, httpx.ErrDuplicate)
	default:
		h.logger.Error(action, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func actorID(r *http.Request) int64 {
	if rc := access.FromContext(r.Context()); rc != nil {
		return rc.User.ID
	}
	return 0
}
