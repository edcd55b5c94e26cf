// Package transport defines request/response DTOs for the pipeline HTTP API.
package transport

import (
	"time"

	"leadcrm_backend/internal/pipeline/repository"

	"github.com/google/uuid"
)

// CreateLeadRequest is the intake payload.
type CreateLeadRequest struct {
	FirstName string  `json:"firstName" validate:"required_without=LastName,max=120"`
	LastName  string  `json:"lastName" validate:"required_without=FirstName,max=120"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Phone     string  `json:"phone" validate:"required,min=6,max=32"`
}

// UpdateLeadRequest is a partial contact update.
type UpdateLeadRequest struct {
	FirstName *string `json:"firstName" validate:"omitempty,min=1,max=120"`
	LastName  *string `json:"lastName" validate:"omitempty,min=1,max=120"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Phone     *string `json:"phone" validate:"omitempty,min=6,max=32"`
}

// ListLeadsRequest filters the lead list.
type ListLeadsRequest struct {
	Status    *string `form:"status" validate:"omitempty,oneof=received active followup converted dropped"`
	ProcessID *string `form:"processId" validate:"omitempty,uuid"`
	Search    *string `form:"search" validate:"omitempty,max=120"`
	Limit     int     `form:"limit" validate:"omitempty,min=1,max=200"`
	Offset    int     `form:"offset" validate:"omitempty,min=0"`
}

// AssignProcessRequest enrolls the lead in a process.
type AssignProcessRequest struct {
	ProcessID uuid.UUID `json:"processId" validate:"required"`
}

// TransitionRequest moves the lead to a stage of a process.
type TransitionRequest struct {
	ProcessID uuid.UUID `json:"processId" validate:"required"`
	StageID   uuid.UUID `json:"stageId" validate:"required"`
	Note      *string   `json:"note" validate:"omitempty,max=2000"`
}

// LeadResponse is the API representation of a lead.
type LeadResponse struct {
	ID               uuid.UUID  `json:"id"`
	FirstName        string     `json:"firstName"`
	LastName         string     `json:"lastName"`
	Email            *string    `json:"email"`
	Phone            string     `json:"phone"`
	Status           string     `json:"status"`
	CurrentProcessID *uuid.UUID `json:"currentProcessId"`
	CurrentStageID   *uuid.UUID `json:"currentStageId"`
	Version          int64      `json:"version"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// EnrollmentResponse is one process membership of a lead.
type EnrollmentResponse struct {
	ProcessID  uuid.UUID `json:"processId"`
	EnrolledAt time.Time `json:"enrolledAt"`
}

// HistoryEntryResponse is one row of the lead's transition log.
type HistoryEntryResponse struct {
	ID          uuid.UUID  `json:"id"`
	ProcessID   uuid.UUID  `json:"processId"`
	StageID     uuid.UUID  `json:"stageId"`
	StageName   string     `json:"stageName"`
	FromStageID *uuid.UUID `json:"fromStageId"`
	ActorID     *uuid.UUID `json:"actorId"`
	Note        *string    `json:"note"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// ToLeadResponse converts a repository lead to its API shape.
func ToLeadResponse(l repository.Lead) LeadResponse {
	return LeadResponse{
		ID:               l.ID,
		FirstName:        l.FirstName,
		LastName:         l.LastName,
		Email:            l.Email,
		Phone:            l.Phone,
		Status:           string(l.Status),
		CurrentProcessID: l.CurrentProcessID,
		CurrentStageID:   l.CurrentStageID,
		Version:          l.Version,
		CreatedAt:        l.CreatedAt,
		UpdatedAt:        l.UpdatedAt,
	}
}

// ToLeadResponses converts a slice of leads.
func ToLeadResponses(leads []repository.Lead) []LeadResponse {
	out := make([]LeadResponse, 0, len(leads))
	for _, l := range leads {
		out = append(out, ToLeadResponse(l))
	}
	return out
}

// ToEnrollmentResponses converts a lead's enrollments.
func ToEnrollmentResponses(enrollments []repository.Enrollment) []EnrollmentResponse {
	out := make([]EnrollmentResponse, 0, len(enrollments))
	for _, e := range enrollments {
		out = append(out, EnrollmentResponse{ProcessID: e.ProcessID, EnrolledAt: e.EnrolledAt})
	}
	return out
}

// ToHistoryResponses converts a lead's transition log.
func ToHistoryResponses(entries []repository.StageHistoryEntry) []HistoryEntryResponse {
	out := make([]HistoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryEntryResponse{
			ID:          e.ID,
			ProcessID:   e.ProcessID,
			StageID:     e.StageID,
			StageName:   e.StageName,
			FromStageID: e.FromStageID,
			ActorID:     e.ActorID,
			Note:        e.Note,
			CreatedAt:   e.CreatedAt,
		})
	}
	return out
}
