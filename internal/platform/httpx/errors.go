// Package httpx provides HTTP response utilities following RFC7807.
package httpx

import (
	"errors"
	"net/http"

	"github.com/atelier-erp/atelier-erp/internal/shared"
)

// RespondError maps domain errors to HTTP problem responses. Conflict errors
// carry the blocking product list so the client can deselect and resubmit.
func RespondError(w http.ResponseWriter, err error) {
	if ce, ok := shared.AsConflict(err); ok {
		JSON(w, http.StatusConflict, ConflictProblem{
			ProblemDetail: ProblemDetail{
				Title:  "Conflict",
				Status: http.StatusConflict,
				Detail: ce.Error(),
			},
			ProjectID:  ce.ProjectID,
			ProductIDs: ce.ProductIDs,
		})
		return
	}
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrInvalidState):
		Problem(w, http.StatusUnprocessableEntity, "Invalid State", err.Error())
	case errors.Is(err, shared.ErrStaleWrite):
		Problem(w, http.StatusPreconditionFailed, "Stale Write", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// ConflictProblem extends the problem detail with the conflicting products.
type ConflictProblem struct {
	ProblemDetail
	ProjectID  int64   `json:"project_id"`
	ProductIDs []int64 `json:"product_ids"`
}
