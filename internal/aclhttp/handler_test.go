package aclhttp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/gatewarden/gatewarden/internal/acl"
	"github.com/gatewarden/gatewarden/internal/observability"
)

type stubService struct {
	result    acl.Resolution
	fields    []acl.FieldGrant
	granted   bool
	err       error
	lastQuery acl.Query
}

func (s *stubService) Resolve(ctx context.Context, q acl.Query) (acl.Resolution, error) {
	s.lastQuery = q
	if s.err != nil {
		return acl.Resolution{}, s.err
	}
	return s.result, nil
}

func (s *stubService) FieldPermissions(ctx context.Context, id acl.Identity, class, objectID string, calculated bool) ([]acl.FieldGrant, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.fields, nil
}

func (s *stubService) IsGranted(ctx context.Context, tok acl.Token, host string, right acl.Right, domain acl.Domain) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.granted, nil
}

type stubEntries struct {
	granted []string
	revoked []string
	err     error
}

func (s *stubEntries) Grant(ctx context.Context, id acl.Identity, class, objectID, field string, mask acl.Mask) error {
	if s.err != nil {
		return s.err
	}
	s.granted = append(s.granted, id.String()+"|"+class+"|"+objectID+"|"+field)
	return nil
}

func (s *stubEntries) Revoke(ctx context.Context, id acl.Identity, class, objectID, field string) error {
	if s.err != nil {
		return s.err
	}
	s.revoked = append(s.revoked, id.String()+"|"+class+"|"+objectID+"|"+field)
	return nil
}

func newTestHandler(t *testing.T, service *stubService, entries *stubEntries) http.Handler {
	t.Helper()
	hierarchy, err := acl.NewHierarchy(map[string][]string{
		"ADMIN":  {"EDITOR"},
		"EDITOR": {"VIEWER"},
	})
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, service, entries, hierarchy, observability.NewMetrics())
	r := chi.NewRouter()
	r.Route("/api/v1", h.MountRoutes)
	return r
}

func TestHandleClassPermission(t *testing.T) {
	service := &stubService{result: acl.Resolution{
		Identity: acl.UserIdentity("alice"),
		Mask:     acl.MaskOf(acl.View, acl.Edit),
		Rights:   []string{"VIEW", "EDIT"},
	}}
	handler := newTestHandler(t, service, &stubEntries{})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/permissions/class/Document?identity=user:alice", nil)
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp permissionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "user:alice", resp.Identity)
	require.Equal(t, "Document", resp.Class)
	require.False(t, resp.Calculated)
	require.Equal(t, []string{"VIEW", "EDIT"}, resp.Rights)
	require.Equal(t, acl.UserIdentity("alice"), service.lastQuery.Identity)
	require.False(t, service.lastQuery.Calculated)
}

func TestHandleObjectPermissionCalculatedMode(t *testing.T) {
	service := &stubService{result: acl.Resolution{
		Identity:   acl.RoleIdentity("EDITOR"),
		Calculated: true,
		Rights:     []string{"VIEW"},
	}}
	handler := newTestHandler(t, service, &stubEntries{})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/permissions/object/Document/42?identity=role:EDITOR&mode=calculated&field=title", nil)
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, service.lastQuery.Calculated)
	require.Equal(t, "Document", service.lastQuery.Class)
	require.Equal(t, "42", service.lastQuery.ObjectID)
	require.Equal(t, "title", service.lastQuery.Field)
}

func TestHandlePermissionRejectsBadRequests(t *testing.T) {
	handler := newTestHandler(t, &stubService{}, &stubEntries{})

	cases := map[string]string{
		"missing identity": "/api/v1/permissions/class/Document",
		"bad identity":     "/api/v1/permissions/class/Document?identity=bogus",
		"bad mode":         "/api/v1/permissions/class/Document?identity=user:alice&mode=sideways",
	}
	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
			require.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestHandlePermissionMapsNotFound(t *testing.T) {
	service := &stubService{err: acl.ErrIdentityNotFound}
	handler := newTestHandler(t, service, &stubEntries{})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/permissions/class/Document?identity=user:ghost", nil))

	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Contains(t, rr.Body.String(), "identity not found")
}

func TestHandleClassFields(t *testing.T) {
	service := &stubService{fields: []acl.FieldGrant{
		{Field: "title", Rights: []string{"VIEW", "EDIT"}},
		{Field: "body", Rights: []string{"VIEW"}},
	}}
	handler := newTestHandler(t, service, &stubEntries{})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/permissions/class/Document/fields?identity=user:alice", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp fieldPermissionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Fields, 2)
	require.Equal(t, "title", resp.Fields[0].Field)
	require.Equal(t, []string{"VIEW"}, resp.Fields[1].Rights)
}

func TestHandleCheck(t *testing.T) {
	service := &stubService{granted: true}
	handler := newTestHandler(t, service, &stubEntries{})

	body := `{"principal":"alice","roles":["EDITOR"],"right":"EDIT","class":"Document","object_id":"42"}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/check", strings.NewReader(body))
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp checkResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.True(t, resp.Granted)
}

func TestHandleCheckRejectsUnknownRight(t *testing.T) {
	handler := newTestHandler(t, &stubService{}, &stubEntries{})

	body := `{"right":"FLY","class":"Document"}`
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/check", strings.NewReader(body)))

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleGrant(t *testing.T) {
	entries := &stubEntries{}
	handler := newTestHandler(t, &stubService{}, entries)

	body := `{"identity":"user:alice","class":"Document","object_id":"42","rights":["VIEW","EDIT"]}`
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/entries", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, []string{"user:alice|Document|42|"}, entries.granted)
}

func TestHandleGrantValidation(t *testing.T) {
	entries := &stubEntries{}
	handler := newTestHandler(t, &stubService{}, entries)

	cases := map[string]string{
		"missing rights": `{"identity":"user:alice","class":"Document"}`,
		"empty rights":   `{"identity":"user:alice","class":"Document","rights":[]}`,
		"unknown right":  `{"identity":"user:alice","class":"Document","rights":["FLY"]}`,
		"bad identity":   `{"identity":"wizard:alice","class":"Document","rights":["VIEW"]}`,
		"group identity": `{"identity":"group:auditors","class":"Document","rights":["VIEW"]}`,
		"missing class":  `{"identity":"user:alice","rights":["VIEW"]}`,
		"malformed body": `{"identity":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/entries", strings.NewReader(body)))
			require.Equal(t, http.StatusBadRequest, rr.Code)
			require.Empty(t, entries.granted)
		})
	}
}

func TestHandleRevoke(t *testing.T) {
	entries := &stubEntries{}
	handler := newTestHandler(t, &stubService{}, entries)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/entries?identity=user:alice&class=Document&object_id=42&field=title", nil)
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, []string{"user:alice|Document|42|title"}, entries.revoked)
}

func TestHandleExpandRole(t *testing.T) {
	handler := newTestHandler(t, &stubService{}, &stubEntries{})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/roles/expand/ADMIN", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp expandRoleResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, []string{"ADMIN", "EDITOR", "VIEWER"}, resp.Expanded)
}
