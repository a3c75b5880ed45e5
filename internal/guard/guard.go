// Package guard decides whether a navigation may render a protected screen.
package guard

import (
	"net/http"

	"semaphore/dashboard/internal/session"
)

const (
	PublicEntry = "/"
	Landing     = "/dashboard"
)

type Kind int

const (
	Allow Kind = iota
	Wait
	Redirect
)

func (k Kind) String() string {
	switch k {
	case Allow:
		return "allow"
	case Wait:
		return "wait"
	default:
		return "redirect"
	}
}

type Decision struct {
	Kind     Kind
	Location string
}

// Authorize maps a session snapshot and the roles a route accepts to a
// decision. An empty required list accepts any signed-in user.
func Authorize(snap session.Snapshot, required ...session.Role) Decision {
	if snap.State == session.StateLoading {
		return Decision{Kind: Wait}
	}
	if snap.User == nil {
		return Decision{Kind: Redirect, Location: PublicEntry}
	}
	if len(required) > 0 && !hasRole(required, snap.User.Role) {
		return Decision{Kind: Redirect, Location: Landing}
	}
	return Decision{Kind: Allow}
}

func hasRole(roles []session.Role, target session.Role) bool {
	for _, role := range roles {
		if role == target {
			return true
		}
	}
	return false
}

// Resolver finds the session store for a request. A nil store is treated as
// an anonymous visitor.
type Resolver func(*http.Request) *session.Store

// Middleware enforces Authorize on every request. wait is rendered while the
// session is still restoring; it must not show protected content.
func Middleware(resolve Resolver, wait http.Handler, required ...session.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snap := session.Snapshot{State: session.StateUnauthenticated}
			if store := resolve(r); store != nil {
				snap = store.Snapshot()
			}
			decision := Authorize(snap, required...)
			switch decision.Kind {
			case Wait:
				wait.ServeHTTP(w, r)
			case Redirect:
				http.Redirect(w, r, decision.Location, http.StatusSeeOther)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
