// Package documents provides the document requirement bounded context:
// configurable requirement sets per process/stage, uploaded lead
// documents, and the checklist joining the two.
package documents

import (
	"leadcrm_backend/internal/adapters/storage"
	"leadcrm_backend/internal/documents/handler"
	"leadcrm_backend/internal/documents/repository"
	"leadcrm_backend/internal/documents/service"
	"leadcrm_backend/internal/events"
	apphttp "leadcrm_backend/internal/http"
	pipelinerepo "leadcrm_backend/internal/pipeline/repository"
	registryrepo "leadcrm_backend/internal/registry/repository"
	"leadcrm_backend/platform/logger"
	"leadcrm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the documents bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    repository.Repository
}

// NewModule creates and initializes the documents module.
func NewModule(
	pool *pgxpool.Pool,
	registry registryrepo.Repository,
	leads pipelinerepo.Repository,
	storageSvc storage.StorageService,
	bucket string,
	bus events.Bus,
	val *validator.Validator,
	log *logger.Logger,
) *Module {
	repo := repository.NewPostgresRepository(pool)
	svc := service.NewService(repo, registry, leads, storageSvc, bucket, bus, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "documents"
}

// Service returns the service layer for composition by other modules.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts documents routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/processes/:id/requirements/resolve", m.handler.ResolveRequirements)

	ctx.Protected.POST("/leads/:id/documents/presign", m.handler.PresignUpload)
	ctx.Protected.POST("/leads/:id/documents", m.handler.RegisterUpload)
	ctx.Protected.GET("/leads/:id/documents", m.handler.ListLeadDocuments)
	ctx.Protected.GET("/leads/:id/checklist", m.handler.Checklist)
	ctx.Protected.POST("/documents/:id/review", m.handler.ReviewDocument)
	ctx.Protected.GET("/documents/:id/download", m.handler.DownloadDocument)
	ctx.Protected.DELETE("/documents/:id", m.handler.DeleteDocument)

	ctx.Admin.GET("/processes/:id/requirements", m.handler.ListRequirements)
	ctx.Admin.POST("/processes/:id/requirements", m.handler.CreateRequirement)
	ctx.Admin.POST("/processes/:id/requirements/none", m.handler.SetMarker)
	ctx.Admin.DELETE("/processes/:id/requirements/none", m.handler.ClearMarker)
	ctx.Admin.PUT("/requirements/:id", m.handler.UpdateRequirement)
	ctx.Admin.DELETE("/requirements/:id", m.handler.DeleteRequirement)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
