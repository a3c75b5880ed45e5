package session

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

var roleLabels = map[Role]string{
	RoleAdmin:   "Administrador",
	RoleTeacher: "Profesor",
	RoleStudent: "Estudiante",
}

// Label is the display name of the role.
func (r Role) Label() string {
	if label, ok := roleLabels[r]; ok {
		return label
	}
	return string(r)
}

// CanSignIn reports whether the role may hold a dashboard session.
func (r Role) CanSignIn() bool {
	return r == RoleAdmin || r == RoleTeacher
}

type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      Role   `json:"role"`
}

func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

type State int

const (
	StateLoading State = iota
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Snapshot is a consistent copy of a Store at one instant.
type Snapshot struct {
	State State
	User  *User
}

// Persisted keys. Their joint presence encodes an existing session.
const (
	KeyUser         = "user"
	KeyToken        = "token"
	KeyRefreshToken = "refreshToken"
)

var persistedKeys = []string{KeyUser, KeyToken, KeyRefreshToken}
