// Package portal exposes a lead's pipeline position and document
// checklist to the lead itself through opaque share tokens.
package portal

import (
	documentsvc "leadcrm_backend/internal/documents/service"
	apphttp "leadcrm_backend/internal/http"
	pipelinerepo "leadcrm_backend/internal/pipeline/repository"
	pipelinesvc "leadcrm_backend/internal/pipeline/service"
	"leadcrm_backend/internal/portal/handler"
	"leadcrm_backend/internal/portal/service"
	"leadcrm_backend/platform/config"
	"leadcrm_backend/platform/httpkit"
	"leadcrm_backend/platform/logger"
)

// Module is the portal bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	limiter *httpkit.PortalRateLimiter
}

// NewModule creates and initializes the portal module.
func NewModule(
	leads pipelinerepo.Repository,
	pipeline *pipelinesvc.Service,
	documents *documentsvc.Service,
	cfg config.PortalConfig,
	log *logger.Logger,
) *Module {
	svc := service.NewService(leads, pipeline, documents, cfg, log)
	h := handler.New(svc)

	return &Module{
		handler: h,
		service: svc,
		limiter: httpkit.NewPortalRateLimiter(log),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "portal"
}

// Service returns the service layer.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts portal routes. The token endpoints require
// authentication; the portal reads are public but rate limited.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.POST("/leads/:id/portal-token", m.handler.IssueToken)
	ctx.Protected.DELETE("/leads/:id/portal-token", m.handler.RevokeToken)

	public := ctx.Public.Group("/portal")
	public.Use(m.limiter.RateLimit())
	public.GET("/:token", m.handler.Overview)
	public.GET("/:token/progress", m.handler.Progress)
	public.GET("/:token/checklist", m.handler.Checklist)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
