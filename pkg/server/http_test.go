package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/soarclient/soarsocket/pkg/crypto"
	"github.com/soarclient/soarsocket/pkg/datastore"
	"github.com/soarclient/soarsocket/pkg/model"
	"github.com/soarclient/soarsocket/pkg/protocol"
)

const testAdminKey = "s3cret"

func newTestAPI(t *testing.T, key string, seed datastore.Records) (*Hub, *datastore.Memory, http.Handler) {
	t.Helper()
	h, p := newTestHub(t, seed)
	mux := http.NewServeMux()
	NewAPI(h, crypto.NewAdminKey(key)).Register(mux)
	return h, p, mux
}

func do(t *testing.T, handler http.Handler, method, target, body string) (int, map[string]any) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return rec.Code, out
}

func TestHandshake(t *testing.T) {
	_, _, api := newTestAPI(t, testAdminKey, nil)

	code, body := do(t, api, http.MethodGet, "/v1/handshake", "")

	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, body["success"])
	require.Equal(t, "Handshake successful", body["message"])
	require.NotEmpty(t, body["version"])
}

func TestIsSpecialUserEndpoint(t *testing.T) {
	_, _, api := newTestAPI(t, testAdminKey, datastore.Records{
		"vip":    {Role: model.RoleFamous},
		"normal": {Role: model.RoleNormal},
	})

	tests := []struct {
		query string
		want  bool
	}{
		{"uuid=vip", true},
		{"uuid=normal", false},
		{"uuid=absent", false},
		{"", false},
	}
	for _, tt := range tests {
		code, body := do(t, api, http.MethodGet, "/v1/user/isSpecialUser?"+tt.query, "")
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, tt.want, body["special"], tt.query)
	}
}

func TestCreatePremiumEndpoint(t *testing.T) {
	r := require.New(t)
	h, _, api := newTestAPI(t, testAdminKey, nil)

	code, body := do(t, api, http.MethodGet, "/v1/shop/createPremium?name=Alice&uuid=u1", "")

	r.Equal(http.StatusOK, code)
	r.Equal("https://shop.test/premium/link-1", body["url"])
	r.True(h.IsSpecialRole("u1"))

	code, _ = do(t, api, http.MethodGet, "/v1/shop/createPremium?name=Alice", "")
	r.Equal(http.StatusBadRequest, code)
}

func TestAdminVerify(t *testing.T) {
	_, _, api := newTestAPI(t, testAdminKey, nil)

	code, body := do(t, api, http.MethodPost, "/v1/admin/verify", `{"adminKey":"s3cret"}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "Admin key verified", body["message"])

	code, body = do(t, api, http.MethodPost, "/v1/admin/verify", `{"adminKey":"nope"}`)
	require.Equal(t, http.StatusForbidden, code)
	require.Equal(t, false, body["success"])
	require.Equal(t, "Invalid admin key", body["message"])

	code, _ = do(t, api, http.MethodPost, "/v1/admin/verify", `not json`)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestAdminEndpointsRejectWhenNoKeyConfigured(t *testing.T) {
	_, _, api := newTestAPI(t, "", nil)

	code, _ := do(t, api, http.MethodPost, "/v1/admin/verify", `{"adminKey":""}`)
	require.Equal(t, http.StatusForbidden, code)
	code, _ = do(t, api, http.MethodGet, "/v1/admin/premiumUsers?adminKey=", "")
	require.Equal(t, http.StatusForbidden, code)
}

func TestAddSpecialUserAndRemove(t *testing.T) {
	r := require.New(t)

	// Given u1 online
	h, _, api := newTestAPI(t, testAdminKey, nil)
	c := announce(t, h, "c1", "u1", "Alice")
	c.reset()

	// When an admin grants Premium
	code, body := do(t, api, http.MethodPost, "/v1/admin/addSpecialUser", `{"uuid":"u1","adminKey":"s3cret"}`)

	// Then
	r.Equal(http.StatusOK, code, body)
	r.Equal("User added as premium user", body["message"])
	r.True(h.IsSpecialRole("u1"))
	r.Equal("Premium", c.last(t, protocol.TypeRoleUpdate).Role)

	// When removed
	code, body = do(t, api, http.MethodPost, "/v1/admin/removePremium", `{"uuid":"u1","adminKey":"s3cret"}`)

	// Then
	r.Equal(http.StatusOK, code)
	r.Equal("Premium status removed", body["message"])
	r.False(h.IsSpecialRole("u1"))
	r.Equal("Normal", c.last(t, protocol.TypeRoleUpdate).Role)
}

func TestAdminMutationsRejectBadKey(t *testing.T) {
	h, p, api := newTestAPI(t, testAdminKey, nil)

	for _, path := range []string{"/v1/admin/addSpecialUser", "/v1/admin/removePremium"} {
		code, _ := do(t, api, http.MethodPost, path, `{"uuid":"u1","adminKey":"wrong"}`)
		require.Equal(t, http.StatusForbidden, code, path)
	}
	code, _ := do(t, api, http.MethodPost, "/v1/admin/addSpecialUser", `{"adminKey":"s3cret"}`)
	require.Equal(t, http.StatusBadRequest, code)

	require.Zero(t, p.Saves())
	require.False(t, h.IsSpecialRole("u1"))
}

func TestUpdateUserRole(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantRole model.Role
	}{
		{"valid", `{"uuid":"u1","role":"Owner","adminKey":"s3cret"}`, http.StatusOK, model.RoleOwner},
		{"lowercase role", `{"uuid":"u1","role":"owner","adminKey":"s3cret"}`, http.StatusForbidden, model.RoleUnset},
		{"unknown role", `{"uuid":"u1","role":"Admin","adminKey":"s3cret"}`, http.StatusForbidden, model.RoleUnset},
		{"bad key", `{"uuid":"u1","role":"Owner","adminKey":"x"}`, http.StatusForbidden, model.RoleUnset},
		{"missing uuid", `{"role":"Owner","adminKey":"s3cret"}`, http.StatusBadRequest, model.RoleUnset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, api := newTestAPI(t, testAdminKey, nil)

			code, _ := do(t, api, http.MethodPost, "/v1/admin/updateUserRole", tt.body)

			require.Equal(t, tt.wantCode, code)
			rec, _ := h.Store().Get("u1")
			require.Equal(t, tt.wantRole, rec.Role)
		})
	}
}

func TestPremiumUsersEndpoint(t *testing.T) {
	_, _, api := newTestAPI(t, testAdminKey, datastore.Records{
		"b": {DisplayName: "Bea", Role: model.RoleStaff},
		"a": {Role: model.RolePremium},
		"n": {DisplayName: "Ned", Role: model.RoleNormal},
		"x": {DisplayName: "Xan"},
	})

	code, body := do(t, api, http.MethodGet, "/v1/admin/premiumUsers?adminKey=s3cret", "")

	require.Equal(t, http.StatusOK, code)
	require.Equal(t, []any{
		map[string]any{"uuid": "a", "name": "Unknown", "role": "Premium"},
		map[string]any{"uuid": "b", "name": "Bea", "role": "Staff"},
	}, body["users"])
}

func TestStoreFailureIs500(t *testing.T) {
	_, p, api := newTestAPI(t, testAdminKey, nil)
	p.FailSaves(errors.New("disk full"))

	code, body := do(t, api, http.MethodPost, "/v1/admin/updateUserRole", `{"uuid":"u1","role":"Staff","adminKey":"s3cret"}`)

	require.Equal(t, http.StatusInternalServerError, code)
	require.Equal(t, false, body["success"])
}
