package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"semaphore/dashboard/internal/api"
	"semaphore/dashboard/internal/config"
	"semaphore/dashboard/internal/guard"
	"semaphore/dashboard/internal/logger"
	"semaphore/dashboard/internal/session"
)

// Sessions resolves and issues per-browser session stores.
type Sessions interface {
	Lookup(ctx context.Context, sid string) (*session.Store, bool, error)
	Issue() (string, *session.Store, error)
	Release(sid string)
}

type Server struct {
	cfg        config.Config
	sessions   Sessions
	api        *api.Client
	log        logger.Logger
	pages      *pages
	validate   *validator.Validate
	translator ut.Translator
}

func NewServer(cfg config.Config, sessions Sessions, client *api.Client, log logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.Nop{}
	}
	views, err := loadPages()
	if err != nil {
		return nil, err
	}
	validate, translator := newValidator()
	return &Server{
		cfg:        cfg,
		sessions:   sessions,
		api:        client,
		log:        log,
		pages:      views,
		validate:   validate,
		translator: translator,
	}, nil
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.sessionMiddleware)

		r.Get("/", s.handleLoginPage)
		r.Post("/", s.handleLogin)
		r.Post("/logout", s.handleLogout)

		r.Route("/dashboard", func(r chi.Router) {
			r.Use(s.requireRole())

			r.Get("/", redirectTo("/dashboard/profile"))
			r.Get("/profile", s.handleProfile)

			r.Group(func(r chi.Router) {
				r.Use(s.requireRole(session.RoleAdmin))

				r.Get("/universidades", s.handleUniversities)
				r.Post("/universidades", s.handleCreateUniversity)
				r.Post("/universidades/{id}", s.handleUpdateUniversity)
				r.Post("/universidades/{id}/delete", s.handleDeleteUniversity)

				r.Get("/facultades", s.handleFaculties)
				r.Post("/facultades", s.handleCreateFaculty)
				r.Post("/facultades/{id}", s.handleUpdateFaculty)
				r.Post("/facultades/{id}/delete", s.handleDeleteFaculty)

				r.Get("/usuarios", s.handleUsers)
				r.Post("/usuarios", s.handleCreateUser)
				r.Post("/usuarios/{id}", s.handleUpdateUser)
				r.Post("/usuarios/{id}/delete", s.handleDeleteUser)

				r.Get("/cursos", s.handleCourses)
				r.Post("/cursos", s.handleCreateCourse)
				r.Post("/cursos/{id}", s.handleUpdateCourse)
				r.Post("/cursos/{id}/delete", s.handleDeleteCourse)
			})

			r.Group(func(r chi.Router) {
				r.Use(s.requireRole(session.RoleTeacher))

				r.Get("/mis-cursos", s.handleMyCourses)
				r.Get("/estudiantes", s.handleMyStudents)
				r.Get("/estudiantes/{sectionId}/qr.png", s.handleSectionQR)
				r.Get("/asistencia", s.handleAttendance)
			})

			r.NotFound(redirectTo("/dashboard/profile"))
		})
	})

	r.NotFound(redirectTo(guard.PublicEntry))
	return r
}

// Session

type sessionKey struct{}

type boundSession struct {
	sid   string
	store *session.Store
}

// sessionMiddleware binds the request to the browser's session store when the
// cookie names a known session. Unknown ids are dropped; a session id is only
// ever handed out by a successful login.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(s.cfg.SessionCookie)
		if err != nil || strings.TrimSpace(cookie.Value) == "" {
			next.ServeHTTP(w, r)
			return
		}
		sid := strings.TrimSpace(cookie.Value)
		store, ok, err := s.sessions.Lookup(r.Context(), sid)
		if err != nil {
			s.log.Error("session lookup failed", err)
			writeError(w, http.StatusServiceUnavailable, "session_unavailable")
			return
		}
		if !ok {
			s.clearSessionCookie(w)
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey{}, boundSession{sid: sid, store: store})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sid string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.SessionCookie,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func sessionFromRequest(r *http.Request) (boundSession, bool) {
	bound, ok := r.Context().Value(sessionKey{}).(boundSession)
	return bound, ok
}

// storeFromRequest returns nil for requests without a known session.
func storeFromRequest(r *http.Request) *session.Store {
	bound, _ := sessionFromRequest(r)
	return bound.store
}

func (s *Server) requireRole(roles ...session.Role) func(http.Handler) http.Handler {
	return guard.Middleware(storeFromRequest, http.HandlerFunc(s.handleWait), roles...)
}

// client returns the backend client authenticated as the request's session.
func (s *Server) client(r *http.Request) *api.Client {
	if store := storeFromRequest(r); store != nil {
		return s.api.WithCredentials(store)
	}
	return s.api
}

// sessionExpired answers the request with a redirect to the login page when
// the backend rejected the session.
func sessionExpired(w http.ResponseWriter, r *http.Request, err error) bool {
	if !errors.Is(err, api.ErrSessionExpired) {
		return false
	}
	http.Redirect(w, r, guard.PublicEntry, http.StatusSeeOther)
	return true
}

func errorMessage(err error, fallback string) string {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// Helpers

func redirectTo(location string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, location, http.StatusSeeOther)
	}
}

func (s *Server) handleWait(w http.ResponseWriter, r *http.Request) {
	retry := int(s.cfg.RestoreDelay / time.Second)
	if retry < 1 {
		retry = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	w.Header().Set("Refresh", strconv.Itoa(retry))
	w.Header().Set("Cache-Control", "no-store")
	s.render(w, http.StatusOK, "wait", view{Title: "Cargando", Refresh: retry})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
