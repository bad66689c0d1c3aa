// Package aclhttp exposes the authorization engine over a JSON API.
package aclhttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gatewarden/gatewarden/internal/acl"
	"github.com/gatewarden/gatewarden/internal/observability"
	"github.com/gatewarden/gatewarden/internal/platform/httpx"
)

// Service is the slice of the permission engine the API consumes.
type Service interface {
	Resolve(ctx context.Context, q acl.Query) (acl.Resolution, error)
	FieldPermissions(ctx context.Context, id acl.Identity, class, objectID string, calculated bool) ([]acl.FieldGrant, error)
	IsGranted(ctx context.Context, tok acl.Token, host string, right acl.Right, domain acl.Domain) (bool, error)
}

// EntryWriter manages stored permission entries.
type EntryWriter interface {
	Grant(ctx context.Context, id acl.Identity, class, objectID, field string, mask acl.Mask) error
	Revoke(ctx context.Context, id acl.Identity, class, objectID, field string) error
}

// Handler wires HTTP endpoints for the permission API.
type Handler struct {
	logger    *slog.Logger
	service   Service
	entries   EntryWriter
	hierarchy *acl.Hierarchy
	metrics   *observability.Metrics
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service Service, entries EntryWriter, hierarchy *acl.Hierarchy, metrics *observability.Metrics) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		entries:   entries,
		hierarchy: hierarchy,
		metrics:   metrics,
		validator: validator.New(),
	}
}

// MountRoutes registers permission API routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/permissions/class/{class}", h.handleClassPermission)
	r.Get("/permissions/class/{class}/fields", h.handleClassFields)
	r.Get("/permissions/object/{class}/{id}", h.handleObjectPermission)
	r.Get("/permissions/object/{class}/{id}/fields", h.handleObjectFields)
	r.Post("/check", h.handleCheck)
	r.Post("/entries", h.handleGrant)
	r.Delete("/entries", h.handleRevoke)
	r.Get("/roles/expand/{role}", h.handleExpandRole)
}

type permissionResponse struct {
	Identity   string   `json:"identity"`
	Class      string   `json:"class"`
	ObjectID   string   `json:"object_id,omitempty"`
	Field      string   `json:"field,omitempty"`
	Calculated bool     `json:"calculated"`
	Mask       uint32   `json:"mask"`
	Rights     []string `json:"rights"`
}

func (h *Handler) handleClassPermission(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, chi.URLParam(r, "class"), "")
}

func (h *Handler) handleObjectPermission(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, chi.URLParam(r, "class"), chi.URLParam(r, "id"))
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request, class, objectID string) {
	id, calculated, ok := h.queryBasics(w, r)
	if !ok {
		return
	}
	start := time.Now()
	res, err := h.service.Resolve(r.Context(), acl.Query{
		Identity:   id,
		Class:      class,
		ObjectID:   objectID,
		Field:      r.URL.Query().Get("field"),
		Calculated: calculated,
	})
	if err != nil {
		h.respondError(w, "resolve permission", err)
		return
	}
	h.metrics.RecordDecision(modeLabel(res.Calculated), outcomeLabel(res.Mask != 0), time.Since(start))
	httpx.JSON(w, http.StatusOK, permissionResponse{
		Identity:   res.Identity.String(),
		Class:      class,
		ObjectID:   objectID,
		Field:      r.URL.Query().Get("field"),
		Calculated: res.Calculated,
		Mask:       uint32(res.Mask),
		Rights:     res.Rights,
	})
}

type fieldPermissionResponse struct {
	Identity   string `json:"identity"`
	Class      string `json:"class"`
	ObjectID   string `json:"object_id,omitempty"`
	Calculated bool   `json:"calculated"`
	Fields     []struct {
		Field  string   `json:"field"`
		Rights []string `json:"rights"`
	} `json:"fields"`
}

func (h *Handler) handleClassFields(w http.ResponseWriter, r *http.Request) {
	h.resolveFields(w, r, chi.URLParam(r, "class"), "")
}

func (h *Handler) handleObjectFields(w http.ResponseWriter, r *http.Request) {
	h.resolveFields(w, r, chi.URLParam(r, "class"), chi.URLParam(r, "id"))
}

func (h *Handler) resolveFields(w http.ResponseWriter, r *http.Request, class, objectID string) {
	id, calculated, ok := h.queryBasics(w, r)
	if !ok {
		return
	}
	grants, err := h.service.FieldPermissions(r.Context(), id, class, objectID, calculated)
	if err != nil {
		h.respondError(w, "resolve field permissions", err)
		return
	}
	resp := fieldPermissionResponse{
		Identity:   id.String(),
		Class:      class,
		ObjectID:   objectID,
		Calculated: calculated || id.Kind == acl.KindGroup,
	}
	for _, g := range grants {
		resp.Fields = append(resp.Fields, struct {
			Field  string   `json:"field"`
			Rights []string `json:"rights"`
		}{Field: g.Field, Rights: g.Rights})
	}
	httpx.JSON(w, http.StatusOK, resp)
}

type checkRequest struct {
	Principal string   `json:"principal"`
	Roles     []string `json:"roles"`
	Anonymous bool     `json:"anonymous"`
	Host      string   `json:"host"`
	Right     string   `json:"right" validate:"required"`
	Class     string   `json:"class" validate:"required"`
	ObjectID  string   `json:"object_id"`
	Field     string   `json:"field"`
}

type checkResponse struct {
	Granted bool `json:"granted"`
}

// handleCheck runs a single yes/no decision for an ad hoc token.
func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	right, err := acl.RightFromName(req.Right)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var domain acl.Domain = acl.ClassDomain{Name: req.Class}
	if req.ObjectID != "" {
		domain = acl.ObjectDomain{ClassName: req.Class, ID: req.ObjectID}
	}
	if req.Field != "" {
		domain = acl.FieldVote{Domain: domain, Field: req.Field}
	}
	start := time.Now()
	granted, err := h.service.IsGranted(r.Context(), requestToken{req: req}, req.Host, right, domain)
	if err != nil {
		h.respondError(w, "check permission", err)
		return
	}
	h.metrics.RecordDecision("calculated", outcomeLabel(granted), time.Since(start))
	httpx.JSON(w, http.StatusOK, checkResponse{Granted: granted})
}

type entryRequest struct {
	Identity string   `json:"identity" validate:"required"`
	Class    string   `json:"class" validate:"required"`
	ObjectID string   `json:"object_id"`
	Field    string   `json:"field"`
	Rights   []string `json:"rights" validate:"required,min=1"`
}

func (h *Handler) handleGrant(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	id, err := acl.ParseIdentity(req.Identity)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	// Group rights derive from member roles and are never persisted;
	// a stored group mask would be unreachable on every read path.
	if id.Kind == acl.KindGroup {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "group identities cannot hold stored entries; grant to the member roles instead")
		return
	}
	mask, err := acl.MaskFromNames(req.Rights)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.entries.Grant(r.Context(), id, req.Class, req.ObjectID, req.Field, mask); err != nil {
		h.respondError(w, "grant entry", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"status": "granted"})
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("identity") == "" || q.Get("class") == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "identity and class query parameters are required")
		return
	}
	id, err := acl.ParseIdentity(q.Get("identity"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.entries.Revoke(r.Context(), id, q.Get("class"), q.Get("object_id"), q.Get("field")); err != nil {
		h.respondError(w, "revoke entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type expandRoleResponse struct {
	Role     string   `json:"role"`
	Expanded []string `json:"expanded"`
}

func (h *Handler) handleExpandRole(w http.ResponseWriter, r *http.Request) {
	role := chi.URLParam(r, "role")
	httpx.JSON(w, http.StatusOK, expandRoleResponse{
		Role:     role,
		Expanded: h.hierarchy.Expand(role),
	})
}

// queryBasics pulls the identity and mode parameters shared by the
// permission read endpoints.
func (h *Handler) queryBasics(w http.ResponseWriter, r *http.Request) (acl.Identity, bool, bool) {
	q := r.URL.Query()
	raw := q.Get("identity")
	if raw == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "identity query parameter is required")
		return acl.Identity{}, false, false
	}
	id, err := acl.ParseIdentity(raw)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return acl.Identity{}, false, false
	}
	switch mode := q.Get("mode"); mode {
	case "", "stored":
		return id, false, true
	case "calculated":
		return id, true, true
	default:
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", fmt.Sprintf("unknown mode %q", mode))
		return acl.Identity{}, false, false
	}
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, acl.ErrIdentityNotFound), errors.Is(err, acl.ErrDomainNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrNotFound, err))
	case errors.Is(err, acl.ErrUnknownRight):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func modeLabel(calculated bool) string {
	if calculated {
		return "calculated"
	}
	return "stored"
}

func outcomeLabel(granted bool) string {
	if granted {
		return "grant"
	}
	return "deny"
}

// requestToken adapts a check request into the engine's token shape.
type requestToken struct {
	req checkRequest
}

func (t requestToken) Principal() (string, bool) {
	if t.req.Anonymous || t.req.Principal == "" {
		return "", false
	}
	return t.req.Principal, true
}

func (t requestToken) HeldRoles() []string { return t.req.Roles }

func (t requestToken) IsAnonymous() bool { return t.req.Anonymous }
