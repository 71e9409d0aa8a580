package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/terraconstructs/idmgr/internal/metadata"
	"github.com/terraconstructs/idmgr/internal/repository"
	"github.com/terraconstructs/idmgr/internal/services/identity"
)

func newTestManager(t *testing.T, meta *metadata.Provider) *identity.Manager {
	t.Helper()
	users := repository.NewMemoryUserRepository()
	roles := repository.NewMemoryRoleRepository()
	if meta == nil {
		meta = metadata.NewProvider(identity.DefaultMetadata(bcrypt.MinCost))
	}
	mgr, err := identity.NewManager(users, roles, meta, identity.NewStorePolicy(users, roles))
	require.NoError(t, err)
	return mgr
}

func newTestRouter(t *testing.T, svc identity.Service) http.Handler {
	t.Helper()
	r, err := NewRouter(RouterOptions{Service: svc})
	require.NoError(t, err)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorsOf(t *testing.T, rec *httptest.ResponseRecorder) []any {
	t.Helper()
	errs, _ := decode(t, rec)["errors"].([]any)
	return errs
}

const aliceBody = `[{"type":"username","value":"alice"},{"type":"password","value":"pass123"},{"type":"name","value":"Alice"}]`

func createAlice(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/users", aliceBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return rec.Header().Get("Location")
}

func TestHealth(t *testing.T) {
	h := newTestRouter(t, newTestManager(t, nil))
	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestGetMeta(t *testing.T) {
	h := newTestRouter(t, newTestManager(t, nil))

	rec := do(t, h, http.MethodGet, "/api", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	links := body["links"].(map[string]any)
	assert.Equal(t, "/api/users", links["users"])
	assert.Equal(t, "/api/roles", links["roles"])

	createUser := links["createUser"].(map[string]any)
	assert.Equal(t, "/api/users", createUser["href"])
	var types []string
	for _, m := range createUser["meta"].([]any) {
		types = append(types, m.(map[string]any)["type"].(string))
	}
	assert.Equal(t, []string{"username", "password", "name"}, types)

	data := body["data"].(map[string]any)
	assert.Contains(t, data, "userMetadata")
	assert.Contains(t, data, "roleMetadata")
}

func TestCreateAndGetUser(t *testing.T) {
	mgr := newTestManager(t, nil)
	h := newTestRouter(t, mgr)

	rec := do(t, h, http.MethodPost, "/api/roles", `[{"type":"name","value":"admin"}]`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	location := createAlice(t, h)
	assert.True(t, strings.HasPrefix(location, "/api/users/"))

	rec = do(t, h, http.MethodGet, location, "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, "alice", data["username"])
	assert.Equal(t, "Alice", data["name"])

	props := map[string]any{}
	for _, p := range data["properties"].([]any) {
		pm := p.(map[string]any)
		props[pm["meta"].(map[string]any)["type"].(string)] = pm["data"]
	}
	assert.Equal(t, "alice", props["username"])
	assert.Nil(t, props["password"])
	assert.Equal(t, false, props["role.admin"], "booleans are converted for display")

	roles := data["roles"].([]any)
	require.Len(t, roles, 1)
	admin := roles[0].(map[string]any)
	assert.Equal(t, false, admin["data"])
	assert.Equal(t, "admin", admin["meta"].(map[string]any)["type"])
}

func TestCreateUser_Failures(t *testing.T) {
	h := newTestRouter(t, newTestManager(t, nil))

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"short password", `[{"type":"username","value":"bob"},{"type":"password","value":"ab"},{"type":"name","value":"Bob"}]`, http.StatusBadRequest, "Password must have at least 3 characters"},
		{"missing", `[{"type":"username","value":"bob"}]`, http.StatusBadRequest, "Missing required properties: password, name"},
		{"not an array", `{"type":"username","value":"bob"}`, http.StatusBadRequest, "validation failed at '$'"},
		{"bad item", `[{"type":"username","value":"bob","extra":1}]`, http.StatusBadRequest, "validation failed at"},
		{"not json", `[{`, http.StatusBadRequest, "request body must be valid JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/users", tt.body)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			errs := errorsOf(t, rec)
			require.NotEmpty(t, errs)
			assert.Contains(t, errs[0], tt.wantErr)
		})
	}

	rec := do(t, h, http.MethodPost, "/api/users", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []any{MsgPropertiesRequired}, errorsOf(t, rec))
}

func TestGetUser_NotFound(t *testing.T) {
	h := newTestRouter(t, newTestManager(t, nil))

	rec := do(t, h, http.MethodGet, "/api/users/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/roles/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPut, "/api/users/does-not-exist/properties/"+EncodeSegment("email"), "a@b")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []any{identity.MsgNoUserFound}, errorsOf(t, rec))
}

func TestSetUserProperty(t *testing.T) {
	h := newTestRouter(t, newTestManager(t, nil))
	location := createAlice(t, h)

	rec := do(t, h, http.MethodPut, location+"/properties/"+EncodeSegment("email"), "alice@example.com")
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPut, location+"/properties/"+EncodeSegment("email"), "nope")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []any{"Email must be a valid email address"}, errorsOf(t, rec))

	rec = do(t, h, http.MethodPut, location+"/properties/"+EncodeSegment("role.admin"), "true")
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPut, location+"/properties/!!!", "x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []any{MsgInvalidPathParameter}, errorsOf(t, rec))

	rec = do(t, h, http.MethodGet, location, "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]any)
	for _, p := range data["properties"].([]any) {
		pm := p.(map[string]any)
		switch pm["meta"].(map[string]any)["type"] {
		case "email":
			assert.Equal(t, "alice@example.com", pm["data"])
			assert.Equal(t, location+"/properties/"+EncodeSegment("email"), pm["links"].(map[string]any)["update"])
		case "role.admin":
			assert.Equal(t, true, pm["data"])
		}
	}
}

func TestUserClaimsAndRoles(t *testing.T) {
	h := newTestRouter(t, newTestManager(t, nil))
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/roles", `[{"type":"name","value":"developer"}]`).Code)
	location := createAlice(t, h)

	rec := do(t, h, http.MethodPost, location+"/claims", `{"type":"department","value":"sales"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, location+"/claims", `{"type":" ","value":"sales"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []any{identity.MsgClaimTypeRequired}, errorsOf(t, rec))

	rec = do(t, h, http.MethodPost, location+"/claims", "")
	assert.Equal(t, []any{MsgClaimDataRequired}, errorsOf(t, rec))

	rec = do(t, h, http.MethodPost, location+"/roles/"+EncodeSegment("developer"), "")
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, location, "")
	data := decode(t, rec)["data"].(map[string]any)
	roles := data["roles"].([]any)
	require.Len(t, roles, 1)
	assert.Equal(t, true, roles[0].(map[string]any)["data"])

	claims := data["claims"].(map[string]any)
	assert.Equal(t, location+"/claims", claims["links"].(map[string]any)["create"])
	assert.Len(t, claims["data"], 3) // name, department, role

	rec = do(t, h, http.MethodDelete, location+"/claims/"+EncodeSegment("department")+"/"+EncodeSegment("sales"), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodDelete, location+"/roles/"+EncodeSegment("developer"), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, location, "")
	data = decode(t, rec)["data"].(map[string]any)
	assert.Len(t, data["claims"].(map[string]any)["data"], 1)
	assert.Equal(t, false, data["roles"].([]any)[0].(map[string]any)["data"])
}

func TestListUsers(t *testing.T) {
	h := newTestRouter(t, newTestManager(t, nil))
	for _, name := range []string{"ann", "ben", "cat"} {
		body := `[{"type":"username","value":"` + name + `"},{"type":"password","value":"pass123"},{"type":"name","value":"` + name + `"}]`
		require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/users", body).Code)
	}

	rec := do(t, h, http.MethodGet, "/api/users?start=1&count=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]any)
	assert.EqualValues(t, 3, data["total"])
	assert.EqualValues(t, 1, data["start"])
	items := data["items"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "ben", item["data"].(map[string]any)["username"])
	assert.Contains(t, item["links"], "detail")

	rec = do(t, h, http.MethodGet, "/api/users?filter=CA", "")
	data = decode(t, rec)["data"].(map[string]any)
	assert.EqualValues(t, 1, data["total"])

	rec = do(t, h, http.MethodGet, "/api/users?start=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoleEndpoints(t *testing.T) {
	h := newTestRouter(t, newTestManager(t, nil))

	rec := do(t, h, http.MethodPost, "/api/roles", `[{"type":"name","value":"admin"}]`)
	require.Equal(t, http.StatusCreated, rec.Code)
	location := rec.Header().Get("Location")

	rec = do(t, h, http.MethodPost, "/api/roles", `[{"type":"name","value":"ADMIN"}]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPut, location+"/properties/"+EncodeSegment("description"), "Administrators")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, location, "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, "admin", data["name"])
	assert.Equal(t, "Administrators", data["description"])

	rec = do(t, h, http.MethodGet, "/api/roles?filter=admin", "")
	assert.EqualValues(t, 1, decode(t, rec)["data"].(map[string]any)["total"])

	for i := 0; i < 2; i++ {
		rec = do(t, h, http.MethodDelete, location, "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
	rec = do(t, h, http.MethodGet, location, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnsupportedOperations(t *testing.T) {
	md := &metadata.Metadata{
		Users: metadata.UserMetadata{EntityMetadata: metadata.EntityMetadata{
			CreateProperties: metadata.PropertySet{metadata.Conventional("username")},
		}},
	}
	h := newTestRouter(t, newTestManager(t, metadata.Static(md)))

	tests := []struct{ method, path, body string }{
		{http.MethodGet, "/api/users", ""},
		{http.MethodPost, "/api/users", `[]`},
		{http.MethodDelete, "/api/users/x", ""},
		{http.MethodPost, "/api/users/x/claims", `{"type":"a","value":"b"}`},
		{http.MethodPost, "/api/users/x/roles/" + EncodeSegment("admin"), ""},
		{http.MethodGet, "/api/roles", ""},
		{http.MethodPost, "/api/roles", `[]`},
		{http.MethodDelete, "/api/roles/x", ""},
	}
	for _, tt := range tests {
		rec := do(t, h, tt.method, tt.path, tt.body)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, "%s %s", tt.method, tt.path)
	}
}

type faultyService struct {
	identity.Service
}

func (faultyService) GetMetadata(context.Context) (*metadata.Metadata, error) {
	return nil, errors.New("metadata unavailable")
}

func TestFaultsAre500(t *testing.T) {
	h := newTestRouter(t, faultyService{})

	rec := do(t, h, http.MethodGet, "/api", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, []any{msgInternal}, errorsOf(t, rec))
}

func TestLocalhostOnly(t *testing.T) {
	r, err := NewRouter(RouterOptions{Service: newTestManager(t, nil), LocalhostOnly: true})
	require.NoError(t, err)

	for addr, want := range map[string]int{
		"127.0.0.1:5555": http.StatusOK,
		"[::1]:5555":     http.StatusOK,
		"10.1.2.3:5555":  http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = addr
		req.Header.Set("X-Forwarded-For", "127.0.0.1")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, addr)
	}
}

func TestSegmentEncoding(t *testing.T) {
	for _, s := range []string{"role.admin", "http://x/y?z", "ünïcode", ""} {
		got, err := DecodeSegment(EncodeSegment(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	got, err := DecodeSegment("YQ==")
	require.NoError(t, err)
	assert.Equal(t, "a", got)

	_, err = DecodeSegment("***")
	assert.ErrorIs(t, err, ErrInvalidSegment)
}

func TestNewRouter_RequiresService(t *testing.T) {
	_, err := NewRouter(RouterOptions{})
	assert.Error(t, err)
}
