package types

import (
	uuid "github.com/gofrs/uuid"
)

// HTTP Header Constants
const (
	HeaderRequestID     = "X-Request-ID"
	HeaderUID           = "uid"
	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"
)

// Authentication Constants
const (
	BearerPrefix    = "Bearer "
	AccessTokenName = "access_token"
	ClaimKey        = "claim"
)

// UserCtxName is the fiber Locals key holding the authenticated UserContext
const UserCtxName = "user"

// Common Values
const (
	UserRole  = "user"
	AdminRole = "admin"
)

// UserContext is the identity extracted from a verified access token
type UserContext struct {
	UserID      uuid.UUID `json:"uid"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	Avatar      string    `json:"avatar"`
	SystemRole  string    `json:"role"`
}

// IsAnonymous reports whether no user is attached
func (u UserContext) IsAnonymous() bool {
	return u.UserID == uuid.Nil
}
