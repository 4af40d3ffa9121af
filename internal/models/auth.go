package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the caller's role within an organization.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleMember  UserRole = "MEMBER"
	RoleService UserRole = "SERVICE"
)

// JWTClaims represents the JWT payload for access tokens. Tokens are issued
// by the identity service; this API only validates them.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	OrgID  string   `json:"org_id"`
	Role   UserRole `json:"role"`
	jwt.RegisteredClaims
}
