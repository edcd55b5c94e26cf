// Package service implements the lead portal: opaque share tokens that
// give a lead read-only access to its own progress and document
// checklist without an account.
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"

	documentsvc "leadcrm_backend/internal/documents/service"
	pipelinerepo "leadcrm_backend/internal/pipeline/repository"
	pipelinesvc "leadcrm_backend/internal/pipeline/service"
	"leadcrm_backend/platform/apperr"
	"leadcrm_backend/platform/config"
	"leadcrm_backend/platform/logger"
)

const tokenBytes = 32

// Service issues and resolves portal tokens and serves the portal's
// read models through the pipeline and documents services.
type Service struct {
	leads     pipelinerepo.Repository
	pipeline  *pipelinesvc.Service
	documents *documentsvc.Service
	cfg       config.PortalConfig
	log       *logger.Logger
}

// NewService creates a portal service.
func NewService(
	leads pipelinerepo.Repository,
	pipeline *pipelinesvc.Service,
	documents *documentsvc.Service,
	cfg config.PortalConfig,
	log *logger.Logger,
) *Service {
	return &Service{
		leads:     leads,
		pipeline:  pipeline,
		documents: documents,
		cfg:       cfg,
		log:       log,
	}
}

// Token is an issued portal token with its expiry.
type Token struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// IssueToken mints a fresh token for the lead, replacing any existing
// one. Re-issuing invalidates the previous link.
func (s *Service) IssueToken(ctx context.Context, leadID uuid.UUID) (Token, error) {
	if _, err := s.leads.GetLead(ctx, leadID); err != nil {
		return Token{}, s.mapRepoError(err)
	}

	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return Token{}, apperr.Wrap(apperr.KindInternal, "failed to generate token", err)
	}
	token := hex.EncodeToString(raw)
	expiresAt := time.Now().UTC().Add(s.cfg.GetPortalTokenTTL())

	if err := s.leads.SetPortalToken(ctx, leadID, token, expiresAt); err != nil {
		return Token{}, s.mapRepoError(err)
	}

	s.log.Info("portal token issued", "lead_id", leadID, "expires_at", expiresAt)
	return Token{Token: token, ExpiresAt: expiresAt}, nil
}

// RevokeToken invalidates the lead's current portal link, if any.
func (s *Service) RevokeToken(ctx context.Context, leadID uuid.UUID) error {
	if _, err := s.leads.GetLead(ctx, leadID); err != nil {
		return s.mapRepoError(err)
	}
	if err := s.leads.RevokePortalToken(ctx, leadID); err != nil {
		return s.mapRepoError(err)
	}
	s.log.Info("portal token revoked", "lead_id", leadID)
	return nil
}

// Overview is the portal landing payload: who the lead is plus where
// it stands.
type Overview struct {
	FirstName string               `json:"firstName"`
	LastName  string               `json:"lastName"`
	Progress  pipelinesvc.Progress `json:"progress"`
}

// resolveLead looks up the lead behind a token. Expired or unknown
// tokens are indistinguishable to the caller.
func (s *Service) resolveLead(ctx context.Context, token string) (pipelinerepo.Lead, error) {
	if token == "" {
		return pipelinerepo.Lead{}, apperr.NotFound("portal link not found")
	}
	lead, err := s.leads.GetLeadByPortalToken(ctx, token)
	if errors.Is(err, pipelinerepo.ErrNotFound) {
		return pipelinerepo.Lead{}, apperr.NotFound("portal link not found")
	}
	if err != nil {
		return pipelinerepo.Lead{}, apperr.Wrap(apperr.KindInternal, "failed to resolve portal token", err)
	}
	return lead, nil
}

// GetOverview resolves a token to the lead's portal landing page.
func (s *Service) GetOverview(ctx context.Context, token string) (Overview, error) {
	lead, err := s.resolveLead(ctx, token)
	if err != nil {
		return Overview{}, err
	}
	progress, err := s.pipeline.ProgressFor(ctx, lead)
	if err != nil {
		return Overview{}, err
	}
	return Overview{
		FirstName: lead.FirstName,
		LastName:  lead.LastName,
		Progress:  progress,
	}, nil
}

// GetProgress resolves a token to the lead's progress model.
func (s *Service) GetProgress(ctx context.Context, token string) (pipelinesvc.Progress, error) {
	lead, err := s.resolveLead(ctx, token)
	if err != nil {
		return pipelinesvc.Progress{}, err
	}
	return s.pipeline.ProgressFor(ctx, lead)
}

// GetChecklist resolves a token to the lead's document checklist.
func (s *Service) GetChecklist(ctx context.Context, token string) (documentsvc.Checklist, error) {
	lead, err := s.resolveLead(ctx, token)
	if err != nil {
		return documentsvc.Checklist{}, err
	}
	return s.documents.ChecklistFor(ctx, lead)
}

func (s *Service) mapRepoError(err error) error {
	if errors.Is(err, pipelinerepo.ErrNotFound) {
		return apperr.NotFound("lead not found")
	}
	return apperr.Wrap(apperr.KindInternal, "portal repository error", err)
}
