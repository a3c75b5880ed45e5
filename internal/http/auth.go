package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"semaphore/dashboard/internal/api"
	"semaphore/dashboard/internal/guard"
	"semaphore/dashboard/internal/session"
)

const loginWaitTimeout = 5 * time.Second

type loginForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"notblank"`
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if store := storeFromRequest(r); store != nil {
		switch store.State() {
		case session.StateLoading:
			s.handleWait(w, r)
			return
		case session.StateAuthenticated:
			http.Redirect(w, r, guard.Landing, http.StatusSeeOther)
			return
		}
	}
	s.render(w, http.StatusOK, "login", view{Title: "Iniciar sesión"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	v := view{Title: "Iniciar sesión"}
	if err := r.ParseForm(); err != nil {
		v.Error = "Formulario inválido"
		s.render(w, http.StatusBadRequest, "login", v)
		return
	}
	form := loginForm{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	v.Data = form.Email
	if fields := s.validateForm(form); fields != nil {
		v.Fields = fields
		s.render(w, http.StatusUnprocessableEntity, "login", v)
		return
	}

	previous, hasPrevious := sessionFromRequest(r)
	if hasPrevious {
		waitCtx, cancel := context.WithTimeout(r.Context(), loginWaitTimeout)
		err := previous.store.WaitReady(waitCtx)
		cancel()
		if err != nil {
			s.handleWait(w, r)
			return
		}
	}

	result, err := s.api.Login(r.Context(), form.Email, form.Password)
	if err != nil {
		v.Error = errorMessage(err, "Usuario o contraseña incorrectos")
		status := http.StatusBadGateway
		var apiErr *api.APIError
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			status = http.StatusUnauthorized
		} else {
			s.log.Error("login: backend call failed", err)
		}
		s.render(w, status, "login", v)
		return
	}

	// Every successful login gets a fresh session id.
	sid, store, err := s.sessions.Issue()
	if err != nil {
		s.log.Error("login: issuing session failed", err)
		v.Error = "No se pudo iniciar sesión. Inténtalo de nuevo."
		s.render(w, http.StatusInternalServerError, "login", v)
		return
	}
	if err := store.Login(r.Context(), result.User, result.Token.AccessToken, result.Token.RefreshToken); err != nil {
		s.sessions.Release(sid)
		var roleErr *session.RoleNotAllowedError
		if errors.As(err, &roleErr) {
			v.Error = session.RoleNotAllowedMessage
			s.render(w, http.StatusForbidden, "login", v)
			return
		}
		status := http.StatusInternalServerError
		if errors.Is(err, session.ErrMissingToken) {
			status = http.StatusBadGateway
		}
		s.log.Error("login: establishing session failed", err)
		v.Error = "No se pudo iniciar sesión. Inténtalo de nuevo."
		s.render(w, status, "login", v)
		return
	}

	if hasPrevious {
		if err := previous.store.Logout(r.Context()); err != nil {
			s.log.Warn("login: clearing previous session failed", err)
		}
		s.sessions.Release(previous.sid)
	}
	s.setSessionCookie(w, sid)
	s.log.Info("login", map[string]interface{}{"user": result.User.ID, "role": string(result.User.Role)})
	http.Redirect(w, r, guard.Landing, http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if bound, ok := sessionFromRequest(r); ok {
		if err := bound.store.Logout(r.Context()); err != nil {
			s.log.Error("logout: clearing session storage failed", err)
		}
		s.sessions.Release(bound.sid)
	}
	s.clearSessionCookie(w)
	http.Redirect(w, r, guard.PublicEntry, http.StatusSeeOther)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "profile", dashboardView(r, "Perfil"))
}
