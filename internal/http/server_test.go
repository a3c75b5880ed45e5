package http

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"semaphore/dashboard/internal/api"
	"semaphore/dashboard/internal/config"
	"semaphore/dashboard/internal/crypto"
	"semaphore/dashboard/internal/session"
	"semaphore/dashboard/internal/storage"
)

const cookieName = "sid"

type fakeBackend struct {
	mu       sync.Mutex
	requests []string
	handlers map[string]http.HandlerFunc
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	fb := &fakeBackend{handlers: map[string]http.HandlerFunc{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		fb.mu.Lock()
		fb.requests = append(fb.requests, key)
		h, ok := fb.handlers[key]
		fb.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "not found"})
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return fb, srv
}

func (fb *fakeBackend) on(method, path string, status int, body interface{}) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.handlers[method+" "+path] = func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if body != nil {
			_ = json.NewEncoder(w).Encode(body)
		}
	}
}

func (fb *fakeBackend) called(key string) bool {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for _, req := range fb.requests {
		if req == key {
			return true
		}
	}
	return false
}

func (fb *fakeBackend) reset() {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.requests = nil
}

type harness struct {
	backend  *fakeBackend
	storage  *storage.MemoryBackend
	sessions *session.Manager
	handler  http.Handler
	sid      string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fb, srv := newFakeBackend(t)
	client := api.New(srv.URL, srv.Client(), nil)
	mem := storage.NewMemoryBackend()
	manager := session.NewManager(mem, func(st *session.Store) session.RemoteLogout {
		return client.WithCredentials(st)
	}, nil, 0)
	t.Cleanup(manager.Close)

	cfg := config.Config{SessionCookie: cookieName, RestoreDelay: time.Second}
	server, err := NewServer(cfg, manager, client, nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return &harness{backend: fb, storage: mem, sessions: manager, handler: server.Router()}
}

// signIn gives the harness browser an authenticated session.
func (h *harness) signIn(t *testing.T, role session.Role) *session.Store {
	t.Helper()
	sid, store, err := h.sessions.Issue()
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	user := session.User{ID: "u-1", Email: "ana@uni.edu", FirstName: "Ana", LastName: "Ríos", Role: role}
	if err := store.Login(context.Background(), user, "access", "refresh"); err != nil {
		t.Fatalf("login: %v", err)
	}
	h.sid = sid
	return store
}

func (h *harness) do(t *testing.T, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	return h.doWithCookie(t, method, target, form, h.sid)
}

func (h *harness) doWithCookie(t *testing.T, method, target string, form url.Values, sid string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: sid})
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookieName {
			return c
		}
	}
	return nil
}

func expectRedirect(t *testing.T, rec *httptest.ResponseRecorder, location string) {
	t.Helper()
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Location"); got != location {
		t.Fatalf("expected redirect to %s, got %s", location, got)
	}
}

func expectBody(t *testing.T, rec *httptest.ResponseRecorder, status int, contains ...string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range contains {
		if !strings.Contains(body, want) {
			t.Fatalf("expected body to contain %q: %s", want, body)
		}
	}
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func loginResponse(role session.Role) map[string]interface{} {
	return map[string]interface{}{
		"data": map[string]interface{}{
			"user": map[string]interface{}{
				"id": "u-9", "email": "luis@uni.edu", "firstName": "Luis", "lastName": "Paz", "role": string(role),
			},
			"token": map[string]string{"accessToken": "access-9", "refreshToken": "refresh-9"},
		},
	}
}

func validLogin() url.Values {
	return url.Values{"email": {"luis@uni.edu"}, "password": {"secret"}}
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAnonymousRequestsCreateNoSession(t *testing.T) {
	h := newHarness(t)
	for _, target := range []string{"/", "/dashboard/profile", "/dashboard/universidades", "/nope"} {
		rec := h.do(t, http.MethodGet, target, nil)
		if c := sessionCookie(rec); c != nil {
			t.Fatalf("%s: unexpected session cookie %q", target, c.Value)
		}
	}
	if h.sessions.Len() != 0 {
		t.Fatalf("expected no stores, got %d", h.sessions.Len())
	}
	expectRedirect(t, h.do(t, http.MethodGet, "/dashboard/profile", nil), "/")
	expectBody(t, h.do(t, http.MethodGet, "/", nil), http.StatusOK, "Iniciar sesión")
}

func TestLoginSuccessIssuesSession(t *testing.T) {
	h := newHarness(t)
	h.backend.on(http.MethodPost, "/auth/login", http.StatusOK, loginResponse(session.RoleTeacher))

	rec := h.do(t, http.MethodPost, "/", validLogin())
	expectRedirect(t, rec, "/dashboard")

	cookie := sessionCookie(rec)
	if cookie == nil || cookie.Value == "" {
		t.Fatalf("expected a session cookie")
	}
	if !cookie.HttpOnly || cookie.SameSite != http.SameSiteLaxMode {
		t.Fatalf("expected http-only lax cookie, got %+v", cookie)
	}
	store, ok, err := h.sessions.Lookup(context.Background(), cookie.Value)
	if err != nil || !ok {
		t.Fatalf("issued cookie must resolve, ok=%v err=%v", ok, err)
	}
	if store.State() != session.StateAuthenticated || store.Token() != "access-9" || store.RefreshToken() != "refresh-9" {
		t.Fatalf("unexpected session %s %q %q", store.State(), store.Token(), store.RefreshToken())
	}
	if v, ok, _ := storage.Scope(h.storage, crypto.HashToken(cookie.Value)).Get(context.Background(), session.KeyToken); !ok || v != "access-9" {
		t.Fatalf("expected token persisted under the new id, got %q %v", v, ok)
	}
}

func TestLoginRotatesSessionID(t *testing.T) {
	h := newHarness(t)
	h.backend.on(http.MethodPost, "/auth/login", http.StatusOK, loginResponse(session.RoleAdmin))
	h.backend.on(http.MethodPost, "/auth/logout", http.StatusOK, nil)
	h.signIn(t, session.RoleTeacher)
	previous := h.sid

	rec := h.do(t, http.MethodPost, "/", validLogin())
	expectRedirect(t, rec, "/dashboard")
	cookie := sessionCookie(rec)
	if cookie == nil || cookie.Value == "" || cookie.Value == previous {
		t.Fatalf("expected a new session id, got %+v", cookie)
	}
	if !h.backend.called("POST /auth/logout") {
		t.Fatalf("expected the previous session to be logged out")
	}

	expectRedirect(t, h.doWithCookie(t, http.MethodGet, "/dashboard/profile", nil, previous), "/")
	expectBody(t, h.doWithCookie(t, http.MethodGet, "/dashboard/profile", nil, cookie.Value), http.StatusOK, "luis@uni.edu")
}

func TestPlantedCookieIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.backend.on(http.MethodPost, "/auth/login", http.StatusOK, loginResponse(session.RoleAdmin))
	const planted = "chosen-by-someone-else"

	rec := h.doWithCookie(t, http.MethodGet, "/dashboard/profile", nil, planted)
	expectRedirect(t, rec, "/")
	if c := sessionCookie(rec); c == nil || c.MaxAge >= 0 {
		t.Fatalf("expected the unknown cookie to be cleared, got %+v", c)
	}
	if h.sessions.Len() != 0 {
		t.Fatalf("unknown cookie must not create a store")
	}

	rec = h.doWithCookie(t, http.MethodPost, "/", validLogin(), planted)
	expectRedirect(t, rec, "/dashboard")
	if c := sessionCookie(rec); c == nil || c.Value == planted {
		t.Fatalf("login must not adopt the planted id, got %+v", c)
	}
	expectRedirect(t, h.doWithCookie(t, http.MethodGet, "/dashboard/profile", nil, planted), "/")
}

func TestPersistedSessionIsRestored(t *testing.T) {
	h := newHarness(t)
	user, _ := json.Marshal(session.User{ID: "u-5", Email: "eva@uni.edu", Role: session.RoleAdmin})
	_ = storage.Scope(h.storage, crypto.HashToken("from-before-restart")).Set(context.Background(), map[string]string{
		session.KeyUser:         string(user),
		session.KeyToken:        signedToken(t, time.Now().Add(time.Hour)),
		session.KeyRefreshToken: "refresh",
	})

	first := h.doWithCookie(t, http.MethodGet, "/dashboard/profile", nil, "from-before-restart")
	if first.Code != http.StatusOK {
		t.Fatalf("expected wait page or profile, got %d", first.Code)
	}
	store, ok, err := h.sessions.Lookup(context.Background(), "from-before-restart")
	if err != nil || !ok {
		t.Fatalf("expected persisted session, ok=%v err=%v", ok, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := store.WaitReady(ctx); err != nil {
		t.Fatalf("wait ready: %v", err)
	}
	expectBody(t, h.doWithCookie(t, http.MethodGet, "/dashboard/profile", nil, "from-before-restart"), http.StatusOK, "eva@uni.edu")
}

func TestLoginRejectsStudent(t *testing.T) {
	h := newHarness(t)
	h.backend.on(http.MethodPost, "/auth/login", http.StatusOK, loginResponse(session.RoleStudent))

	rec := h.do(t, http.MethodPost, "/", url.Values{"email": {"est@uni.edu"}, "password": {"secret"}})
	expectBody(t, rec, http.StatusForbidden, "Admin o Teacher")
	if sessionCookie(rec) != nil {
		t.Fatalf("rejected login must not issue a cookie")
	}
	if h.storage.Len() != 0 || h.sessions.Len() != 0 {
		t.Fatalf("expected nothing persisted or registered")
	}
}

func TestLoginWithoutTokensFails(t *testing.T) {
	h := newHarness(t)
	h.backend.on(http.MethodPost, "/auth/login", http.StatusOK, map[string]interface{}{
		"user": map[string]string{"id": "u-9", "email": "luis@uni.edu", "role": "admin"},
	})

	rec := h.do(t, http.MethodPost, "/", validLogin())
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if sessionCookie(rec) != nil || h.sessions.Len() != 0 {
		t.Fatalf("expected no session")
	}
}

func TestLoginBackendRejection(t *testing.T) {
	h := newHarness(t)
	h.backend.on(http.MethodPost, "/auth/login", http.StatusUnauthorized, map[string]string{"message": "Credenciales inválidas"})

	rec := h.do(t, http.MethodPost, "/", url.Values{"email": {"luis@uni.edu"}, "password": {"bad"}})
	expectBody(t, rec, http.StatusUnauthorized, "Credenciales inválidas")
}

func TestLoginValidation(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/", url.Values{"email": {"not-an-email"}, "password": {"  "}})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if h.backend.called("POST /auth/login") {
		t.Fatalf("backend should not be called for an invalid form")
	}
}

type staticSessions struct{ store *session.Store }

func (s staticSessions) Lookup(context.Context, string) (*session.Store, bool, error) {
	return s.store, true, nil
}

func (s staticSessions) Issue() (string, *session.Store, error) { return "static", s.store, nil }

func (staticSessions) Release(string) {}

func TestProtectedRouteWaitsWhileLoading(t *testing.T) {
	_, srv := newFakeBackend(t)
	client := api.New(srv.URL, srv.Client(), nil)
	loading := session.NewStore(storage.Scope(storage.NewMemoryBackend(), "x"), nil, nil, time.Hour)
	server, err := NewServer(config.Config{SessionCookie: cookieName, RestoreDelay: 3 * time.Second}, staticSessions{loading}, client, nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/dashboard/profile", nil)
	req.AddCookie(&http.Cookie{Name: cookieName, Value: "restoring"})
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 wait page, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "3" {
		t.Fatalf("expected Retry-After 3, got %q", rec.Header().Get("Retry-After"))
	}
	if strings.Contains(rec.Body.String(), "Cerrar sesión") {
		t.Fatalf("wait page must not render dashboard chrome")
	}
}

func TestTeacherCannotReachAdminScreens(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, session.RoleTeacher)
	expectRedirect(t, h.do(t, http.MethodGet, "/dashboard/universidades", nil), "/dashboard")
}

func TestAdminCannotReachTeacherScreens(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, session.RoleAdmin)
	expectRedirect(t, h.do(t, http.MethodGet, "/dashboard/mis-cursos", nil), "/dashboard")
}

func TestLoginPageRedirectsWhenAuthenticated(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, session.RoleAdmin)
	expectRedirect(t, h.do(t, http.MethodGet, "/", nil), "/dashboard")
}

func TestUnmatchedRoutes(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, session.RoleAdmin)
	expectRedirect(t, h.do(t, http.MethodGet, "/dashboard/nope", nil), "/dashboard/profile")
	expectRedirect(t, h.do(t, http.MethodGet, "/nope", nil), "/")
	expectRedirect(t, h.do(t, http.MethodGet, "/dashboard", nil), "/dashboard/profile")
}

func TestProfileShowsRoleLabel(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, session.RoleTeacher)
	rec := h.do(t, http.MethodGet, "/dashboard/profile", nil)
	expectBody(t, rec, http.StatusOK, "Profesor", "ana@uni.edu", "Mis Cursos")
	if strings.Contains(rec.Body.String(), "Universidades") {
		t.Fatalf("expected teacher navigation only")
	}
}

func TestBackendUnauthorizedEndsSession(t *testing.T) {
	h := newHarness(t)
	h.backend.on(http.MethodGet, "/admin/universities", http.StatusUnauthorized, map[string]string{"message": "jwt expired"})
	store := h.signIn(t, session.RoleAdmin)

	expectRedirect(t, h.do(t, http.MethodGet, "/dashboard/universidades", nil), "/")
	if store.State() != session.StateUnauthenticated {
		t.Fatalf("expected unauthenticated, got %s", store.State())
	}
	if h.storage.Len() != 0 {
		t.Fatalf("expected storage cleared")
	}
}

func TestLogoutCallsBackendAndClears(t *testing.T) {
	h := newHarness(t)
	h.backend.on(http.MethodPost, "/auth/logout", http.StatusOK, nil)
	store := h.signIn(t, session.RoleAdmin)

	rec := h.do(t, http.MethodPost, "/logout", nil)
	expectRedirect(t, rec, "/")
	if !h.backend.called("POST /auth/logout") {
		t.Fatalf("expected remote logout")
	}
	if store.CurrentUser() != nil || h.storage.Len() != 0 || h.sessions.Len() != 0 {
		t.Fatalf("expected session cleared and released")
	}
	if c := sessionCookie(rec); c == nil || c.MaxAge >= 0 {
		t.Fatalf("expected cookie cleared, got %+v", c)
	}
	expectRedirect(t, h.do(t, http.MethodGet, "/dashboard/profile", nil), "/")
}

func TestLogoutWithoutSession(t *testing.T) {
	h := newHarness(t)
	expectRedirect(t, h.do(t, http.MethodPost, "/logout", nil), "/")
	if h.backend.called("POST /auth/logout") {
		t.Fatalf("no remote call expected without a session")
	}
}

func TestSectionQR(t *testing.T) {
	h := newHarness(t)
	h.backend.on(http.MethodGet, "/courses/teacher/u-1/sections", http.StatusOK, []map[string]string{
		{"id": "s-1", "name": "A", "courseId": "c-1", "teacherId": "u-1"},
	})
	h.signIn(t, session.RoleTeacher)

	rec := h.do(t, http.MethodGet, "/dashboard/estudiantes/s-1/qr.png", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected content type %s", rec.Header().Get("Content-Type"))
	}
	if _, err := png.Decode(bytes.NewReader(rec.Body.Bytes())); err != nil {
		t.Fatalf("invalid png: %v", err)
	}

	rec = h.do(t, http.MethodGet, "/dashboard/estudiantes/s-other/qr.png", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign section, got %d", rec.Code)
	}
}
