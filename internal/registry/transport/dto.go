// Package transport defines request/response DTOs for the registry HTTP API.
package transport

import (
	"time"

	"leadcrm_backend/internal/registry/repository"

	"github.com/google/uuid"
)

// CreateProcessRequest is the payload for creating a process.
type CreateProcessRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=120"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

// UpdateProcessRequest is a partial, version-checked process update.
type UpdateProcessRequest struct {
	Name         *string `json:"name" validate:"omitempty,min=1,max=120"`
	Description  *string `json:"description" validate:"omitempty,max=500"`
	IsActive     *bool   `json:"isActive"`
	DisplayOrder *int    `json:"displayOrder" validate:"omitempty,min=1"`
	Version      int64   `json:"version" validate:"required,min=1"`
}

// CreateStageRequest is the payload for creating a stage.
type CreateStageRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=120"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	Color       string  `json:"color" validate:"omitempty,hexcolor"`
}

// UpdateStageRequest is a partial, version-checked stage update.
type UpdateStageRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=120"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	Color       *string `json:"color" validate:"omitempty,hexcolor"`
	IsActive    *bool   `json:"isActive"`
	Version     int64   `json:"version" validate:"required,min=1"`
}

// ReorderStageRequest moves a stage one position within its process.
type ReorderStageRequest struct {
	Direction string `json:"direction" validate:"required,oneof=up down"`
}

// ProcessResponse is the API representation of a process.
type ProcessResponse struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Description  *string   `json:"description"`
	IsActive     bool      `json:"isActive"`
	IsPrimary    bool      `json:"isPrimary"`
	DisplayOrder int       `json:"displayOrder"`
	Version      int64     `json:"version"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// StageResponse is the API representation of a stage.
type StageResponse struct {
	ID           uuid.UUID `json:"id"`
	ProcessID    uuid.UUID `json:"processId"`
	Name         string    `json:"name"`
	Description  *string   `json:"description"`
	Color        string    `json:"color"`
	IsActive     bool      `json:"isActive"`
	DisplayOrder int       `json:"displayOrder"`
	Version      int64     `json:"version"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ToProcessResponse converts a repository process to its API shape.
func ToProcessResponse(p repository.Process) ProcessResponse {
	return ProcessResponse{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		IsActive:     p.IsActive,
		IsPrimary:    p.IsPrimary,
		DisplayOrder: p.DisplayOrder,
		Version:      p.Version,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

// ToProcessResponses converts a slice of processes.
func ToProcessResponses(processes []repository.Process) []ProcessResponse {
	out := make([]ProcessResponse, 0, len(processes))
	for _, p := range processes {
		out = append(out, ToProcessResponse(p))
	}
	return out
}

// ToStageResponse converts a repository stage to its API shape.
func ToStageResponse(s repository.Stage) StageResponse {
	return StageResponse{
		ID:           s.ID,
		ProcessID:    s.ProcessID,
		Name:         s.Name,
		Description:  s.Description,
		Color:        s.Color,
		IsActive:     s.IsActive,
		DisplayOrder: s.DisplayOrder,
		Version:      s.Version,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

// ToStageResponses converts a slice of stages.
func ToStageResponses(stages []repository.Stage) []StageResponse {
	out := make([]StageResponse, 0, len(stages))
	for _, s := range stages {
		out = append(out, ToStageResponse(s))
	}
	return out
}
