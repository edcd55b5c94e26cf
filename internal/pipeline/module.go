// Package pipeline provides the lead pipeline bounded context: lead
// lifecycle, process enrollment, stage transitions, and progress
// projection.
package pipeline

import (
	"leadcrm_backend/internal/events"
	apphttp "leadcrm_backend/internal/http"
	"leadcrm_backend/internal/pipeline/handler"
	"leadcrm_backend/internal/pipeline/repository"
	"leadcrm_backend/internal/pipeline/service"
	registryrepo "leadcrm_backend/internal/registry/repository"
	"leadcrm_backend/platform/logger"
	"leadcrm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the pipeline bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    repository.Repository
}

// NewModule creates and initializes the pipeline module.
func NewModule(pool *pgxpool.Pool, registry registryrepo.Repository, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.NewPostgresRepository(pool)
	svc := service.NewService(repo, registry, bus, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "pipeline"
}

// Service returns the service layer for composition by other modules.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository exposes the repository for modules that resolve leads
// directly (the portal's token lookup).
func (m *Module) Repository() repository.Repository {
	return m.repo
}

// RegisterRoutes mounts pipeline routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	leads := ctx.Protected.Group("/leads")
	leads.POST("", m.handler.CreateLead)
	leads.GET("", m.handler.ListLeads)
	leads.GET("/:id", m.handler.GetLead)
	leads.PUT("/:id", m.handler.UpdateLead)
	leads.DELETE("/:id", m.handler.DeleteLead)

	leads.GET("/:id/processes", m.handler.ListEnrollments)
	leads.POST("/:id/processes", m.handler.AssignProcess)
	leads.GET("/:id/processes/assignable", m.handler.ListAssignableProcesses)
	leads.DELETE("/:id/processes/:processId", m.handler.UnassignProcess)

	leads.POST("/:id/transition", m.handler.Transition)
	leads.GET("/:id/history", m.handler.StageHistory)
	leads.GET("/:id/progress", m.handler.Progress)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
