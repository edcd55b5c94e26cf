// Package transport defines request/response DTOs for the documents HTTP API.
package transport

import (
	"time"

	"leadcrm_backend/internal/documents/repository"
	"leadcrm_backend/internal/documents/service"

	"github.com/google/uuid"
)

// CreateRequirementRequest is the payload for creating a requirement.
type CreateRequirementRequest struct {
	StageID     *uuid.UUID `json:"stageId"`
	Name        string     `json:"name" validate:"required,min=1,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=1000"`
	Required    bool       `json:"required"`
	Show        *bool      `json:"show"`
}

// UpdateRequirementRequest is a partial, version-checked update.
type UpdateRequirementRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	Required    *bool   `json:"required"`
	Show        *bool   `json:"show"`
	Version     int64   `json:"version" validate:"required,min=1"`
}

// MarkerRequest addresses the "no documents required" marker scope.
type MarkerRequest struct {
	StageID *uuid.UUID `json:"stageId"`
}

// PresignUploadRequest asks for an upload slot.
type PresignUploadRequest struct {
	RequirementID uuid.UUID `json:"requirementId" validate:"required"`
	FileName      string    `json:"fileName" validate:"required,max=255"`
	ContentType   string    `json:"contentType" validate:"required,max=120"`
	SizeBytes     int64     `json:"sizeBytes" validate:"required,min=1"`
}

// RegisterUploadRequest records a completed upload.
type RegisterUploadRequest struct {
	RequirementID uuid.UUID `json:"requirementId" validate:"required"`
	FileKey       string    `json:"fileKey" validate:"required,max=512"`
	FileURL       string    `json:"fileUrl" validate:"required,url,max=2048"`
	FileType      string    `json:"fileType" validate:"required,max=120"`
	FileName      string    `json:"fileName" validate:"required,max=255"`
	Notes         *string   `json:"notes" validate:"omitempty,max=2000"`
}

// ReviewDocumentRequest approves or rejects a document.
type ReviewDocumentRequest struct {
	Status string  `json:"status" validate:"required,oneof=approved rejected"`
	Notes  *string `json:"notes" validate:"omitempty,max=2000"`
}

// RequirementResponse is the API representation of a requirement.
type RequirementResponse struct {
	ID          uuid.UUID  `json:"id"`
	ProcessID   uuid.UUID  `json:"processId"`
	StageID     *uuid.UUID `json:"stageId"`
	Name        string     `json:"name"`
	Description *string    `json:"description"`
	Required    bool       `json:"required"`
	Show        bool       `json:"show"`
	Version     int64      `json:"version"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// ResolvedResponse is the resolver result.
type ResolvedResponse struct {
	Configured   bool                  `json:"configured"`
	Requirements []RequirementResponse `json:"requirements"`
}

// DocumentResponse is the API representation of a lead document.
type DocumentResponse struct {
	ID            uuid.UUID `json:"id"`
	LeadID        uuid.UUID `json:"leadId"`
	RequirementID uuid.UUID `json:"requirementId"`
	Status        string    `json:"status"`
	FileURL       string    `json:"fileUrl"`
	FileType      string    `json:"fileType"`
	FileName      string    `json:"fileName"`
	Notes         *string   `json:"notes"`
	UploadedAt    time.Time `json:"uploadedAt"`
}

// ToRequirementResponse converts a repository requirement.
func ToRequirementResponse(r repository.Requirement) RequirementResponse {
	return RequirementResponse{
		ID:          r.ID,
		ProcessID:   r.ProcessID,
		StageID:     r.StageID,
		Name:        r.Name,
		Description: r.Description,
		Required:    r.Required,
		Show:        r.Show,
		Version:     r.Version,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// ToRequirementResponses converts a slice of requirements.
func ToRequirementResponses(requirements []repository.Requirement) []RequirementResponse {
	out := make([]RequirementResponse, 0, len(requirements))
	for _, r := range requirements {
		out = append(out, ToRequirementResponse(r))
	}
	return out
}

// ToResolvedResponse converts a resolver result.
func ToResolvedResponse(resolved service.ResolvedRequirements) ResolvedResponse {
	return ResolvedResponse{
		Configured:   resolved.Configured,
		Requirements: ToRequirementResponses(resolved.Requirements),
	}
}

// ToDocumentResponse converts a repository lead document.
func ToDocumentResponse(d repository.LeadDocument) DocumentResponse {
	return DocumentResponse{
		ID:            d.ID,
		LeadID:        d.LeadID,
		RequirementID: d.RequirementID,
		Status:        string(d.Status),
		FileURL:       d.FileURL,
		FileType:      d.FileType,
		FileName:      d.FileName,
		Notes:         d.Notes,
		UploadedAt:    d.UploadedAt,
	}
}

// ToDocumentResponses converts a slice of lead documents.
func ToDocumentResponses(documents []repository.LeadDocument) []DocumentResponse {
	out := make([]DocumentResponse, 0, len(documents))
	for _, d := range documents {
		out = append(out, ToDocumentResponse(d))
	}
	return out
}
