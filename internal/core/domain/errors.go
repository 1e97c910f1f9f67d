package domain

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrAlreadyExists         = errors.New("already exists")
	ErrDuplicateRequest      = errors.New("duplicate request")

	// ErrAlreadyProcessed is returned when a terminal transaction is reviewed
	// again. It also matches ErrNotFound, so callers that only know the
	// "not found or already processed" contract keep working.
	ErrAlreadyProcessed error = alreadyProcessedError{}
)

type alreadyProcessedError struct{}

func (alreadyProcessedError) Error() string { return "already processed" }

func (alreadyProcessedError) Is(target error) bool { return target == ErrNotFound }

// IsKnown reports whether err carries one of the domain error kinds.
func IsKnown(err error) bool {
	for _, kind := range []error{
		ErrNotFound,
		ErrInsufficientStock,
		ErrInvalidArgument,
		ErrDependencyUnavailable,
		ErrAlreadyExists,
		ErrDuplicateRequest,
		ErrAlreadyProcessed,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
