package domain

// Role distinguishes customers from administrators.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Actor is the authenticated caller of an order operation.
type Actor struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
