package pipeline

import (
	"errors"
	"fmt"

	"github.com/mapproject/media-pipeline/internal/provider"
)

// ValidationError marks a queue message as malformed. Such messages are
// logged and acked, never re-enqueued.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("pipeline: invalid message: %v", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ConsistencyError marks provider output that violated an invariant the
// pipeline depends on, such as a translation that changed segment
// boundaries. The provider may behave on a retry, so these are transient.
type ConsistencyError struct {
	Stage  string
	Reason string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("pipeline: %s consistency violation: %s", e.Stage, e.Reason)
}

// isTransient reports whether a stage failure is worth retrying.
// Permanent provider errors and validation errors are not; everything
// else is: transient provider errors, storage errors, consistency
// violations, and unclassified transport failures all retry, because
// retrying a genuinely broken job only costs its remaining attempts.
func isTransient(err error) bool {
	if provider.IsPermanent(err) {
		return false
	}
	var vErr *ValidationError
	return !errors.As(err, &vErr)
}
