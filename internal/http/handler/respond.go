package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"mebel-erp/internal/http/httperr"
	"mebel-erp/internal/observability/logger"
	"mebel-erp/internal/service"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

func writeOK(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"ok":   true,
		"data": data,
	})
}

type validatable interface {
	Validate() error
}

// decodeBody decodes and validates a JSON body, writing the error response itself.
// Returns false when the handler should stop.
func decodeBody(w http.ResponseWriter, r *http.Request, dst validatable) bool {
	ctx := r.Context()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidFormat, "invalid JSON body")
		return false
	}

	if err := dst.Validate(); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			httperr.WriteErrorWithFields(w, ctx, http.StatusUnprocessableEntity, httperr.ErrCodeValidationError, "validation failed", fields)
			return false
		}
		httperr.WriteError(w, ctx, http.StatusUnprocessableEntity, httperr.ErrCodeValidationError, err.Error())
		return false
	}
	return true
}

// handleServiceError maps service sentinels onto the error envelope.
func handleServiceError(w http.ResponseWriter, ctx context.Context, err error) {
	switch {
	case errors.Is(err, service.ErrRoleNotFound):
		httperr.NotFound404(w, ctx, "role not found")
	case errors.Is(err, service.ErrUserNotFound):
		httperr.NotFound404(w, ctx, "user not found")
	case errors.Is(err, service.ErrOverrideNotFound):
		httperr.NotFound404(w, ctx, "user permission override not found")
	case errors.Is(err, service.ErrRoleConflict):
		httperr.Conflict409(w, ctx, httperr.ErrCodeConflict, err.Error())
	case errors.Is(err, service.ErrRoleInUse):
		httperr.Conflict409(w, ctx, httperr.ErrCodeRoleInUse, err.Error())
	case errors.Is(err, service.ErrSystemRole), errors.Is(err, service.ErrSystemRoleViewLocked):
		httperr.Conflict409(w, ctx, httperr.ErrCodeSystemRole, err.Error())
	case errors.Is(err, service.ErrInvalidModule):
		httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidModule, err.Error())
	case errors.Is(err, service.ErrInvalidStageType):
		httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidStageType, err.Error())
	case errors.Is(err, service.ErrInvalidStagePayload):
		httperr.WriteError(w, ctx, http.StatusUnprocessableEntity, httperr.ErrCodeValidationError, err.Error())
	case errors.Is(err, service.ErrPermissionCacheStale):
		w.Header().Set("Retry-After", "1")
		httperr.ServiceUnavailable503(w, ctx, httperr.ErrCodeCacheStale, "change saved, permission cache could not be refreshed")
	default:
		logger.SetRootError(ctx, err)
		httperr.InternalError(w, ctx)
	}
}
