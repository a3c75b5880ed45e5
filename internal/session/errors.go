package session

import (
	"fmt"

	"github.com/pkg/errors"
)

// RoleNotAllowedMessage is shown on the login form when the role gate rejects
// an identity.
const RoleNotAllowedMessage = "Solo los usuarios con rol Admin o Teacher pueden iniciar sesión en esta plataforma."

// ErrMissingToken rejects a login the backend answered without tokens.
var ErrMissingToken = errors.New("session: login response carries no tokens")

type RoleNotAllowedError struct {
	Role Role
}

func (e *RoleNotAllowedError) Error() string {
	return fmt.Sprintf("role %q is not allowed to sign in", string(e.Role))
}

type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return "decode token: " + e.Reason
	}
	return fmt.Sprintf("decode token: %s: %v", e.Reason, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
