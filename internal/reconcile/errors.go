package reconcile

import "errors"

var (
	// ErrMissingReference means an event carried neither a userId nor an
	// organizationId and cannot be attributed to a billable entity.
	ErrMissingReference = errors.New("subscription event has no userId or organizationId metadata")

	// ErrUnknownPlan means the event's price id matched no active plan.
	ErrUnknownPlan = errors.New("no active plan for price id")

	// ErrNotAuthorized means the acting entity does not own the record
	// (or the record does not exist — existence is not leaked).
	ErrNotAuthorized = errors.New("subscription not found or not authorized")

	// ErrInvalidField means an admin update contained a field outside the
	// allow-list or a value outside the engine's vocabulary.
	ErrInvalidField = errors.New("invalid subscription field")
)
