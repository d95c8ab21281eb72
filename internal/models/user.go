package models

import (
	"fmt"
	"time"
)

// Role is the single authority a user holds.
type Role uint8

const (
	RoleUser Role = iota + 1
	RoleAdmin
)

// String returns the authority name stored in the database and carried in tokens.
func (r Role) String() string {
	switch r {
	case RoleUser:
		return "ROLE_USER"
	case RoleAdmin:
		return "ROLE_ADMIN"
	default:
		return "ROLE_UNKNOWN"
	}
}

// ParseRole accepts an authority name ("ROLE_ADMIN") or a bare role ("ADMIN").
func ParseRole(s string) (Role, error) {
	switch s {
	case "ROLE_USER", "USER":
		return RoleUser, nil
	case "ROLE_ADMIN", "ADMIN":
		return RoleAdmin, nil
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// User represents a row in the users table.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Password  string    `json:"-"` // bcrypt hash, never serialized
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Principal is the request-scoped identity used for authorization.
type Principal struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Roles    []Role `json:"roles"`
}

// PrincipalFromUser projects a stored user onto a Principal.
func PrincipalFromUser(u *User) *Principal {
	return &Principal{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Roles:    []Role{u.Role},
	}
}

// HasRole reports whether the principal holds role.
func (p *Principal) HasRole(role Role) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// RoleNames returns the authority names of the principal's roles.
func (p *Principal) RoleNames() []string {
	names := make([]string, 0, len(p.Roles))
	for _, r := range p.Roles {
		names = append(names, r.String())
	}
	return names
}

// SignupRequest is the JSON body for POST /api/v1/auth/signup.
type SignupRequest struct {
	Username string `json:"username" validate:"notblank"`
	Email    string `json:"email"    validate:"notblank,email,emaildomain"`
	Password string `json:"password" validate:"notblank,min=8,password"`
}

// LoginRequest is the JSON body for POST /api/v1/auth/login.
// Identifier is matched against usernames first, then emails.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"notblank"`
	Password   string `json:"password"   validate:"notblank"`
}

// AuthResponse is returned by a successful login.
type AuthResponse struct {
	Token    string   `json:"token"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}
