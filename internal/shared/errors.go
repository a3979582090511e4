package shared

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates a precondition failed before any write.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidState occurs when an action violates a document's status workflow.
	ErrInvalidState = errors.New("invalid state transition")
	// ErrStaleWrite occurs when a full-document save carries an outdated version.
	ErrStaleWrite = errors.New("document changed since it was loaded")
)

// ConflictError reports products already claimed by an accepted offer. The
// caller is expected to re-present the offer with these lines deselected
// before resubmitting; the transition it blocked was not applied.
type ConflictError struct {
	ProjectID  int64
	ProductIDs []int64
}

func (e *ConflictError) Error() string {
	ids := make([]string, len(e.ProductIDs))
	for i, id := range e.ProductIDs {
		ids[i] = fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf("products [%s] already committed to an accepted offer for project %d", strings.Join(ids, " "), e.ProjectID)
}

// AsConflict unwraps err into a ConflictError if one is in the chain.
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
