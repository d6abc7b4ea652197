package models

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// UserRole represents the roles issued by the school backend.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleStaff      UserRole = "TU"
	RoleTeacher    UserRole = "TEACHER"
	RoleStudent    UserRole = "STUDENT"
)

// JWTClaims represents the access-token payload shared with the school backend.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	SchoolID string   `json:"sekolah_id,omitempty"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller as seen by services: the claims plus
// the raw bearer token forwarded to the backend.
type Principal struct {
	UserID   string
	Role     UserRole
	SchoolID string
	Token    string
}

// Privileged reports roles allowed to access any user's form session.
func (p Principal) Privileged() bool {
	return p.Role == RoleSuperAdmin || p.Role == RoleAdmin
}

// Scope is the cache scope for school-wide reference lists. It is empty when
// the token carries no school, and such callers are never served from cache.
func (p Principal) Scope() string {
	return strings.TrimSpace(p.SchoolID)
}
