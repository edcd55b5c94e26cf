// Package httpkit provides HTTP utilities including identity abstraction.
package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity is the authenticated caller as seen by handlers. It hides
// the Gin context so services and handlers never touch framework keys
// directly.
type Identity interface {
	UserID() uuid.UUID
	Roles() []string
	HasRole(role string) bool
	IsAuthenticated() bool
}

type identity struct {
	userID        uuid.UUID
	roles         []string
	authenticated bool
}

func (i identity) UserID() uuid.UUID { return i.userID }

func (i identity) Roles() []string { return i.roles }

func (i identity) HasRole(role string) bool {
	for _, r := range i.roles {
		if r == role {
			return true
		}
	}
	return false
}

func (i identity) IsAuthenticated() bool { return i.authenticated }

// GetIdentity reads the caller's identity from the request context.
// Requests that never passed the auth middleware yield an
// unauthenticated identity rather than an error.
func GetIdentity(c *gin.Context) Identity {
	rawUserID, ok := c.Get(ContextUserIDKey)
	if !ok {
		return identity{}
	}
	userID, ok := rawUserID.(uuid.UUID)
	if !ok {
		return identity{}
	}

	var roles []string
	if rawRoles, ok := c.Get(ContextRolesKey); ok {
		roles, _ = rawRoles.([]string)
	}

	return identity{userID: userID, roles: roles, authenticated: true}
}

// MustGetIdentity is GetIdentity for routes where auth is mandatory:
// an unauthenticated caller gets a 401 and nil is returned.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil
	}
	return id
}
