// Package registry provides the process/stage registry bounded context:
// the admin-managed catalog of pipeline processes and their ordered stages.
package registry

import (
	apphttp "leadcrm_backend/internal/http"
	"leadcrm_backend/internal/registry/handler"
	"leadcrm_backend/internal/registry/repository"
	"leadcrm_backend/internal/registry/service"
	"leadcrm_backend/platform/logger"
	"leadcrm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the registry bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    repository.Repository
}

// NewModule creates and initializes the registry module.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.NewPostgresRepository(pool)
	svc := service.NewService(repo, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "registry"
}

// Service returns the service layer for composition by other modules.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository exposes the repository for modules that only need reads.
func (m *Module) Repository() repository.Repository {
	return m.repo
}

// RegisterRoutes mounts registry routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Protected read-only endpoints
	ctx.Protected.GET("/processes", m.handler.ListProcesses)
	ctx.Protected.GET("/processes/:id", m.handler.GetProcess)
	ctx.Protected.GET("/processes/:id/stages", m.handler.ListStages)

	// Admin CRUD endpoints
	ctx.Admin.POST("/processes", m.handler.CreateProcess)
	ctx.Admin.PUT("/processes/:id", m.handler.UpdateProcess)
	ctx.Admin.DELETE("/processes/:id", m.handler.DeleteProcess)
	ctx.Admin.POST("/processes/:id/stages", m.handler.CreateStage)
	ctx.Admin.POST("/processes/:id/stages/:stageId/reorder", m.handler.ReorderStage)
	ctx.Admin.PUT("/stages/:id", m.handler.UpdateStage)
	ctx.Admin.DELETE("/stages/:id", m.handler.DeleteStage)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
