package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/its-tarun-2505/Trashure/auth"
	"github.com/its-tarun-2505/Trashure/blob"
	"github.com/its-tarun-2505/Trashure/cache"
	"github.com/its-tarun-2505/Trashure/handlers"
	"github.com/its-tarun-2505/Trashure/logging"
	"github.com/its-tarun-2505/Trashure/middleware"
	"github.com/its-tarun-2505/Trashure/services"
	"github.com/its-tarun-2505/Trashure/store"
)

type app struct {
	t       *testing.T
	handler http.Handler
	store   *store.Memory
	uploads *blob.Memory
}

type appOption func(*handlers.Deps)

func newApp(t *testing.T, opts ...appOption) *app {
	t.Helper()
	log := logging.Discard()
	st := store.NewMemory()
	uploads := blob.NewMemory("/uploads")
	codec := auth.NewCodec("handler-secret", time.Hour)

	users := services.NewUserService(st.Users(), cache.Noop{}, uploads, log)
	notify := services.NewNotificationService(st.Notifications(), log)
	d := handlers.Deps{
		Log:           log,
		Codec:         codec,
		Auth:          services.NewAuthService(st.Users(), cache.Noop{}, codec, log).WithHashCost(bcrypt.MinCost),
		Users:         users,
		Notifications: notify,
		Requests:      services.NewRequestService(st.Requests(), notify, uploads, time.UTC, log),
		Queries:       services.NewQueryService(st.Requests(), users, time.UTC),
		Health:        st,
		Policy:        middleware.PolicyRedirect,
		CORSOrigins:   []string{"http://localhost:3000"},
		Uploads:       uploads,
	}
	for _, o := range opts {
		o(&d)
	}
	return &app{t: t, handler: handlers.NewRouter(d), store: st, uploads: uploads}
}

// session is a logged-in client: it replays the auth cookie on every call.
type session struct {
	app    *app
	cookie *http.Cookie
	id     string
}

func (a *app) do(req *http.Request, cookie *http.Cookie) (*httptest.ResponseRecorder, map[string]any) {
	a.t.Helper()
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return rec, body
}

func jsonRequest(method, path string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func (a *app) register(role, email string, extra map[string]any) {
	a.t.Helper()
	body := map[string]any{
		"role":     role,
		"name":     "Test " + role,
		"email":    email,
		"phone":    "555-123-4567",
		"address":  "1 Main St",
		"password": "password123",
	}
	for k, v := range extra {
		body[k] = v
	}
	rec, resp := a.do(jsonRequest(http.MethodPost, "/api/auth/register", body), nil)
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(a.t, true, resp["ok"])
}

func (a *app) login(role, email string) *session {
	a.t.Helper()
	rec, resp := a.do(jsonRequest(http.MethodPost, "/api/auth/login", map[string]string{
		"email": email, "password": "password123", "role": role,
	}), nil)
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(a.t, "/"+role, resp["redirect"])

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			cookie = c
		}
	}
	require.NotNil(a.t, cookie, "login must set the auth cookie")
	assert.True(a.t, cookie.HttpOnly)
	user := resp["user"].(map[string]any)
	return &session{app: a, cookie: cookie, id: user["id"].(string)}
}

func (a *app) citizen(email string) *session {
	a.register("citizen", email, nil)
	return a.login("citizen", email)
}

func (a *app) collector(email string) *session {
	a.register("collector", email, map[string]any{"latitude": 0, "longitude": 0})
	return a.login("collector", email)
}

func (s *session) call(method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	s.app.t.Helper()
	return s.app.do(jsonRequest(method, path, body), s.cookie)
}

func (s *session) createRequest(extra map[string]any) string {
	s.app.t.Helper()
	body := map[string]any{
		"category":    "Recyclables",
		"address":     "12 Elm St",
		"scheduledAt": "2025-01-01T10:00",
	}
	for k, v := range extra {
		body[k] = v
	}
	rec, resp := s.call(http.MethodPost, "/api/requests", body)
	require.Equal(s.app.t, http.StatusCreated, rec.Code, rec.Body.String())
	return resp["requestId"].(string)
}

func status(t *testing.T, body map[string]any) string {
	t.Helper()
	req, ok := body["request"].(map[string]any)
	require.True(t, ok, "body has no request: %v", body)
	return req["status"].(string)
}

func TestScenario_RejectCompletion(t *testing.T) {
	a := newApp(t)
	citizen := a.citizen("citizen@example.com")
	collector := a.collector("collector@example.com")

	id := citizen.createRequest(nil)

	rec, body := collector.call(http.MethodPost, "/api/requests/"+id+"/accept", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "accepted", status(t, body))
	req := body["request"].(map[string]any)
	assert.Equal(t, collector.id, req["collector"])
	assert.NotEmpty(t, req["acceptedAt"])

	for _, target := range []string{"on-the-way", "collected"} {
		rec, body = collector.call(http.MethodPatch, "/api/collections/"+id+"/status", map[string]string{"status": target})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, target, status(t, body))
	}

	rec, body = collector.call(http.MethodPost, "/api/collections/"+id+"/request-completion", map[string]string{"notes": "done"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "pending-completion", status(t, body))

	rec, body = citizen.call(http.MethodPost, "/api/requests/"+id+"/reject-completion", map[string]string{"feedback": "incomplete"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	req = body["request"].(map[string]any)
	assert.Equal(t, "rejected", req["status"])
	assert.Equal(t, "incomplete", req["rejectionFeedback"])
	assert.Equal(t, citizen.id, req["rejectedBy"])

	rec, body = citizen.call(http.MethodGet, "/api/notifications", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, body["notifications"])
}

func TestApproveOutOfOrder(t *testing.T) {
	a := newApp(t)
	citizen := a.citizen("c@example.com")
	collector := a.collector("k@example.com")
	id := citizen.createRequest(nil)

	collector.call(http.MethodPost, "/api/requests/"+id+"/accept", nil)
	collector.call(http.MethodPatch, "/api/collections/"+id+"/status", map[string]string{"status": "on-the-way"})
	collector.call(http.MethodPatch, "/api/collections/"+id+"/status", map[string]string{"status": "collected"})

	rec, body := citizen.call(http.MethodPost, "/api/requests/"+id+"/approve-completion", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "INVALID_TRANSITION", body["code"])
	assert.Equal(t, "collected", body["current"])
	assert.Equal(t, "completed", body["attempted"])
}

func TestAcceptTwice(t *testing.T) {
	a := newApp(t)
	citizen := a.citizen("c@example.com")
	first := a.collector("k1@example.com")
	second := a.collector("k2@example.com")
	id := citizen.createRequest(nil)

	rec, _ := first.call(http.MethodPost, "/api/requests/"+id+"/accept", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = first.call(http.MethodPost, "/api/requests/"+id+"/accept", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = second.call(http.MethodPost, "/api/requests/"+id+"/accept", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// The other collector cannot touch it.
	rec, _ = second.call(http.MethodPatch, "/api/collections/"+id+"/status", map[string]string{"status": "on-the-way"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = second.call(http.MethodGet, "/api/collections/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoleGates(t *testing.T) {
	a := newApp(t)
	citizen := a.citizen("c@example.com")
	collector := a.collector("k@example.com")
	id := citizen.createRequest(nil)

	rec, _ := citizen.call(http.MethodPost, "/api/requests/"+id+"/accept", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = citizen.call(http.MethodGet, "/api/requests/open", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = collector.call(http.MethodPost, "/api/requests", map[string]string{"category": "Recyclables"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, body := a.do(jsonRequest(http.MethodGet, "/api/requests", nil), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, body["ok"])

	tampered := *citizen.cookie
	tampered.Value += "x"
	rec, _ = a.do(jsonRequest(http.MethodGet, "/api/user/me", nil), &tampered)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWrongMethodIs405(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html></html>"), 0o644))
	for name, opts := range map[string][]appOption{
		"api only":   nil,
		"with pages": {func(d *handlers.Deps) { d.StaticDir = dir }},
	} {
		t.Run(name, func(t *testing.T) {
			a := newApp(t, opts...)
			citizen := a.citizen("c@example.com")
			cases := []struct{ method, path string }{
				{http.MethodDelete, "/api/requests"},
				{http.MethodGet, "/api/auth/login"},
				{http.MethodPut, "/api/notifications"},
				{http.MethodGet, "/api/requests/abc/cancel"},
				{http.MethodDelete, "/api/collections"},
			}
			for _, c := range cases {
				rec, body := a.do(jsonRequest(c.method, c.path, nil), citizen.cookie)
				assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, "%s %s", c.method, c.path)
				assert.Equal(t, false, body["ok"], "%s %s", c.method, c.path)
				assert.Equal(t, "METHOD_NOT_ALLOWED", body["code"], "%s %s", c.method, c.path)
			}

			rec, body := a.do(jsonRequest(http.MethodGet, "/api/nope", nil), citizen.cookie)
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.Equal(t, false, body["ok"])
		})
	}
}

func TestCreateRequestValidation(t *testing.T) {
	a := newApp(t)
	citizen := a.citizen("c@example.com")

	rec, body := citizen.call(http.MethodPost, "/api/requests", map[string]string{"category": "Recyclables"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["ok"])

	req := httptest.NewRequest(http.MethodPost, "/api/requests", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec, _ = a.do(req, citizen.cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListsAreScoped(t *testing.T) {
	a := newApp(t)
	alice := a.citizen("alice@example.com")
	bob := a.citizen("bob@example.com")
	collector := a.collector("k@example.com")

	mine := alice.createRequest(nil)
	bob.createRequest(map[string]any{"latitude": 0.0657, "longitude": 0})
	near := bob.createRequest(map[string]any{"latitude": 0.01, "longitude": 0})

	rec, body := alice.call(http.MethodGet, "/api/requests", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := body["requests"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, mine, list[0].(map[string]any)["id"])

	rec, _ = alice.call(http.MethodGet, "/api/requests/"+near, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = collector.call(http.MethodGet, "/api/requests/open?proximity=0-5km", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list = body["requests"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, near, list[0].(map[string]any)["id"])

	rec, body = collector.call(http.MethodGet, "/api/collections", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, body["collections"])
}

func multipartBody(t *testing.T, field string, files map[string][]byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, data := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+name+`"`)
		h.Set("Content-Type", "image/png")
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		part.Write(data)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadProof(t *testing.T) {
	a := newApp(t)
	citizen := a.citizen("c@example.com")
	collector := a.collector("k@example.com")
	id := citizen.createRequest(nil)
	collector.call(http.MethodPost, "/api/requests/"+id+"/accept", nil)

	upload := func() (*httptest.ResponseRecorder, map[string]any) {
		body, ct := multipartBody(t, "proofImages", map[string][]byte{"a.png": []byte("png-bytes")}, nil)
		req := httptest.NewRequest(http.MethodPost, "/api/collections/"+id+"/proof", body)
		req.Header.Set("Content-Type", ct)
		return a.do(req, collector.cookie)
	}

	rec, _ := upload()
	assert.Equal(t, http.StatusBadRequest, rec.Code, "proof needs a collected request")

	collector.call(http.MethodPatch, "/api/collections/"+id+"/status", map[string]string{"status": "on-the-way"})
	collector.call(http.MethodPatch, "/api/collections/"+id+"/status", map[string]string{"status": "collected"})

	rec, body := upload()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	images := body["proofImages"].([]any)
	require.Len(t, images, 1)
	url := images[0].(string)
	assert.True(t, strings.HasPrefix(url, "/uploads/proofs/"+id), url)

	rec, _ = a.do(httptest.NewRequest(http.MethodGet, url, nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png-bytes", rec.Body.String())

	empty, ct := multipartBody(t, "proofImages", nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/collections/"+id+"/proof", empty)
	req.Header.Set("Content-Type", ct)
	rec, _ = a.do(req, collector.cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProfile(t *testing.T) {
	a := newApp(t)
	citizen := a.citizen("c@example.com")

	rec, body := citizen.call(http.MethodGet, "/api/user/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	user := body["user"].(map[string]any)
	assert.Equal(t, "c@example.com", user["email"])
	assert.NotContains(t, rec.Body.String(), "password")

	form, ct := multipartBody(t, "photo", map[string][]byte{"me.png": []byte("img")}, map[string]string{"name": "New Name"})
	req := httptest.NewRequest(http.MethodPatch, "/api/user/update", form)
	req.Header.Set("Content-Type", ct)
	rec, body = a.do(req, citizen.cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	user = body["user"].(map[string]any)
	assert.Equal(t, "New Name", user["name"])
	assert.True(t, strings.HasPrefix(user["photoUrl"].(string), "/uploads/users/"))

	rec, _ = citizen.call(http.MethodPatch, "/api/user/update", map[string]string{"email": "broken"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthEndpoints(t *testing.T) {
	a := newApp(t)
	a.register("citizen", "dup@example.com", nil)

	rec, body := a.do(jsonRequest(http.MethodPost, "/api/auth/register", map[string]any{
		"role": "citizen", "name": "Dup", "email": "DUP@example.com", "phone": "5551234567",
		"address": "x", "password": "password123",
	}), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, false, body["ok"])

	rec, _ = a.do(jsonRequest(http.MethodPost, "/api/auth/login", map[string]string{
		"email": "dup@example.com", "password": "wrong-pass", "role": "citizen",
	}), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = a.do(jsonRequest(http.MethodPost, "/api/auth/login", map[string]string{
		"email": "dup@example.com", "password": "password123", "role": "collector",
	}), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = a.do(jsonRequest(http.MethodPost, "/api/auth/logout", nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.CookieName, cookies[0].Name)
	assert.True(t, cookies[0].MaxAge < 0)
}

func TestLoginRateLimited(t *testing.T) {
	a := newApp(t, func(d *handlers.Deps) { d.LoginLimiter = middleware.NewIPLimiter(1, 2) })
	login := func() int {
		rec, _ := a.do(jsonRequest(http.MethodPost, "/api/auth/login", map[string]string{
			"email": "nobody@example.com", "password": "password123", "role": "citizen",
		}), nil)
		return rec.Code
	}
	assert.Equal(t, http.StatusUnauthorized, login())
	assert.Equal(t, http.StatusUnauthorized, login())
	assert.Equal(t, http.StatusTooManyRequests, login())
}

func TestNotificationsEndpoint(t *testing.T) {
	a := newApp(t)
	citizen := a.citizen("c@example.com")

	rec, body := citizen.call(http.MethodPost, "/api/notifications", map[string]string{"title": "Hi", "message": "there"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "info", body["notification"].(map[string]any)["type"])

	rec, _ = citizen.call(http.MethodPost, "/api/notifications", map[string]string{"title": "Hi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = citizen.call(http.MethodGet, "/api/notifications", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["notifications"], 1)
}

func TestPagesAndHealth(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>trashure</html>"), 0o644))
	a := newApp(t, func(d *handlers.Deps) { d.StaticDir = dir })

	rec, _ := a.do(httptest.NewRequest(http.MethodGet, "/citizen/requests", nil), nil)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/login?next=%2Fcitizen%2Frequests", rec.Header().Get("Location"))

	citizen := a.citizen("c@example.com")
	rec, _ = a.do(httptest.NewRequest(http.MethodGet, "/citizen/requests", nil), citizen.cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "trashure")

	rec, _ = a.do(httptest.NewRequest(http.MethodGet, "/collector", nil), citizen.cookie)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "error=role")

	rec, body := a.do(httptest.NewRequest(http.MethodGet, "/healthz", nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

	rec, body = a.do(httptest.NewRequest(http.MethodGet, "/api/nope", nil), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, body["ok"])
}

func TestHealthReportsStoreDown(t *testing.T) {
	a := newApp(t)
	require.NoError(t, a.store.Close(context.Background()))
	rec, body := a.do(httptest.NewRequest(http.MethodGet, "/healthz", nil), nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, false, body["ok"])
}
