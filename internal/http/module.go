// Package http provides HTTP server infrastructure including the
// Module interface every bounded context implements.
package http

import (
	"leadcrm_backend/platform/config"

	"github.com/gin-gonic/gin"
)

// Module is a bounded context that mounts its own routes. The router
// stays decoupled from individual endpoints this way.
type Module interface {
	// Name identifies the module in startup logs.
	Name() string
	// RegisterRoutes mounts the module's routes on the shared groups.
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext bundles the route groups and middleware modules mount
// onto, so RegisterRoutes keeps a single parameter.
type RouterContext struct {
	// Engine is the root Gin engine for modules needing engine-level access.
	Engine *gin.Engine
	// V1 is the /api/v1 route group.
	V1 *gin.RouterGroup
	// Public is the unauthenticated group under /api/v1 (portal access).
	Public *gin.RouterGroup
	// Protected is the authenticated group under /api/v1.
	Protected *gin.RouterGroup
	// Admin is the admin-only group under /api/v1/admin.
	Admin *gin.RouterGroup
	// Config carries the JWT settings for modules that add auth to
	// custom groups.
	Config config.JWTConfig
	// AuthMiddleware is the shared authentication middleware.
	AuthMiddleware gin.HandlerFunc
}
