package handler

import (
	"context"
	"net/http"

	"mebel-erp/internal/auth"
	"mebel-erp/internal/domain"
	"mebel-erp/internal/http/httperr"

	"github.com/go-chi/chi/v5"
)

// StageAdmin is satisfied by service.StageService.
type StageAdmin interface {
	GetPermission(ctx context.Context, role string, stageType domain.StageType) (*domain.StagePermission, error)
	List(ctx context.Context, role string, stageType domain.StageType) ([]domain.StagePermission, error)
	BulkSave(ctx context.Context, actorID string, perms []domain.StagePermission) error
	ResetToDefaults(ctx context.Context, actorID string) error
}

type StagePermissionHandler struct {
	stages StageAdmin
}

func NewStagePermissionHandler(stages StageAdmin) *StagePermissionHandler {
	return &StagePermissionHandler{stages: stages}
}

// GET /v1/stage-permissions?role=&stageType=
func (h *StagePermissionHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	rows, err := h.stages.List(ctx, q.Get("role"), domain.StageType(q.Get("stageType")))
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}
	writeOK(w, http.StatusOK, rows)
}

// GET /v1/stage-permissions/{role}/{stageType}
func (h *StagePermissionHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stageType := domain.StageType(chi.URLParam(r, "stageType"))
	if !stageType.IsValid() {
		httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidStageType, "unknown stage type")
		return
	}

	p, err := h.stages.GetPermission(ctx, chi.URLParam(r, "role"), stageType)
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}
	if p == nil {
		httperr.NotFound404(w, ctx, "stage permission not found")
		return
	}
	writeOK(w, http.StatusOK, p)
}

// PUT /v1/stage-permissions
func (h *StagePermissionHandler) BulkSave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID, _ := auth.UserIDFromContext(ctx)

	var req domain.StagePermissionsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.stages.BulkSave(ctx, actorID, req.Permissions); err != nil {
		handleServiceError(w, ctx, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]int{"saved": len(req.Permissions)})
}

// POST /v1/stage-permissions/:reset
func (h *StagePermissionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID, _ := auth.UserIDFromContext(ctx)

	var req domain.ResetStagePermissionsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.stages.ResetToDefaults(ctx, actorID); err != nil {
		handleServiceError(w, ctx, err)
		return
	}

	rows, err := h.stages.List(ctx, "", "")
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}
	writeOK(w, http.StatusOK, rows)
}
