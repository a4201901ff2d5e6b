package controllers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/atlasmed/casematch-backend/api/responses"
	"github.com/atlasmed/casematch-backend/api/validators"
	"github.com/atlasmed/casematch-backend/internal/assignments"
	pkgerrors "github.com/atlasmed/casematch-backend/pkg/errors"
	"github.com/atlasmed/casematch-backend/pkg/db/models"
	"github.com/atlasmed/casematch-backend/pkg/logger"
	"github.com/atlasmed/casematch-backend/pkg/pagination"
)

// AssignmentService is the lifecycle surface the HTTP layer consumes.
type AssignmentService interface {
	Create(ctx context.Context, caseID uuid.UUID) ([]models.Assignment, error)
	Accept(ctx context.Context, assignmentID, providerID uuid.UUID) (*models.Assignment, error)
	Reject(ctx context.Context, assignmentID, providerID uuid.UUID, reason string) (*models.Assignment, error)
	Stats(ctx context.Context) (*assignments.Statistics, error)
	History(ctx context.Context, caseID uuid.UUID, params pagination.Params) (*assignments.HistoryPage, error)
}

type assignmentResponse struct {
	ID              uuid.UUID `json:"id"`
	CaseID          uuid.UUID `json:"case_id"`
	ProviderID      uuid.UUID `json:"provider_id"`
	Status          string    `json:"status"`
	Priority        string    `json:"priority"`
	MatchScore      float64   `json:"match_score"`
	AssignedAt      string    `json:"assigned_at"`
	ExpiresAt       string    `json:"expires_at"`
	RespondedAt     *string   `json:"responded_at,omitempty"`
	Reason          string    `json:"reason,omitempty"`
	RejectionReason *string   `json:"rejection_reason,omitempty"`
}

func toAssignmentResponse(a models.Assignment) assignmentResponse {
	resp := assignmentResponse{
		ID:              a.ID,
		CaseID:          a.CaseID,
		ProviderID:      a.ProviderID,
		Status:          a.Status.String(),
		Priority:        a.Priority.String(),
		MatchScore:      a.MatchScore,
		AssignedAt:      a.AssignedAt.UTC().Format(time.RFC3339),
		ExpiresAt:       a.ExpiresAt.UTC().Format(time.RFC3339),
		Reason:          a.Reason,
		RejectionReason: a.RejectionReason,
	}
	if a.RespondedAt != nil {
		s := a.RespondedAt.UTC().Format(time.RFC3339)
		resp.RespondedAt = &s
	}
	return resp
}

// CreateAssignments triggers a matching round for the case.
func CreateAssignments(svc AssignmentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caseID, err := validators.ParsePathUUID(r, "caseID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Create(r.Context(), caseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]assignmentResponse, 0, len(created))
		for _, a := range created {
			out = append(out, toAssignmentResponse(a))
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, out)
	}
}

type respondRequest struct {
	ProviderID uuid.UUID `json:"provider_id" validate:"required"`
	Reason     string    `json:"reason" validate:"omitempty,max=500"`
}

// AcceptAssignment records a provider taking an assignment.
func AcceptAssignment(svc AssignmentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assignmentID, err := validators.ParsePathUUID(r, "assignmentID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req respondRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		accepted, err := svc.Accept(r.Context(), assignmentID, req.ProviderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toAssignmentResponse(*accepted))
	}
}

type rejectRequest struct {
	ProviderID uuid.UUID `json:"provider_id" validate:"required"`
	Reason     string    `json:"reason" validate:"required,max=500"`
}

// RejectAssignment records a provider declining an assignment.
func RejectAssignment(svc AssignmentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assignmentID, err := validators.ParsePathUUID(r, "assignmentID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req rejectRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rejected, err := svc.Reject(r.Context(), assignmentID, req.ProviderID, req.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toAssignmentResponse(*rejected))
	}
}

type historyResponse struct {
	Assignments []assignmentResponse `json:"assignments"`
	NextCursor  string               `json:"next_cursor,omitempty"`
}

// CaseAssignmentHistory lists every assignment ever made for a case, newest
// first, with cursor pagination.
func CaseAssignmentHistory(svc AssignmentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caseID, err := validators.ParsePathUUID(r, "caseID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := pagination.Params{Cursor: r.URL.Query().Get("cursor")}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "limit must be an integer"))
				return
			}
			params.Limit = limit
		}

		page, err := svc.History(r.Context(), caseID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := historyResponse{
			Assignments: make([]assignmentResponse, 0, len(page.Assignments)),
			NextCursor:  page.NextCursor,
		}
		for _, a := range page.Assignments {
			out.Assignments = append(out.Assignments, toAssignmentResponse(a))
		}
		responses.WriteSuccess(w, out)
	}
}

// AssignmentStatistics reports lifecycle counts and acceptance averages.
func AssignmentStatistics(svc AssignmentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.Stats(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}
