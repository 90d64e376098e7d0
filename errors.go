package opqueue

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is the root of all operation validation failures.
	ErrValidation = errors.New("opqueue: invalid operation")
	// ErrNilOperation is returned when a nil operation is enqueued.
	ErrNilOperation = fmt.Errorf("%w: operation is nil", ErrValidation)
	// ErrMethodRequired is returned when APICall.Method is empty.
	ErrMethodRequired = fmt.Errorf("%w: api call method is required", ErrValidation)
	// ErrURLRequired is returned when APICall.URL is empty.
	ErrURLRequired = fmt.Errorf("%w: api call url is required", ErrValidation)
	// ErrUpdaterRequired is returned when a StateUpdate carries neither a value nor an apply function.
	ErrUpdaterRequired = fmt.Errorf("%w: state update requires a value or an apply function", ErrValidation)
	// ErrActionInvalid is returned when StorageOp.Action is empty or unknown.
	ErrActionInvalid = fmt.Errorf("%w: storage action must be set, get or remove", ErrValidation)
	// ErrKeyRequired is returned when StorageOp.Key is empty.
	ErrKeyRequired = fmt.Errorf("%w: storage key is required", ErrValidation)
	// ErrExecuteRequired is returned when Custom.Execute is nil at enqueue time.
	ErrExecuteRequired = fmt.Errorf("%w: custom operation requires an execute function", ErrValidation)

	// ErrUnknownKind is returned when a persisted operation has an unrecognized kind.
	ErrUnknownKind = errors.New("opqueue: unknown operation kind")
	// ErrCustomLost indicates a custom operation whose function did not survive a restart.
	ErrCustomLost = errors.New("opqueue: custom operation function was lost across restart")
	// ErrNoData signals that a storage key holds no value.
	ErrNoData = errors.New("opqueue: no data for key")
	// ErrNotFound signals that no entry with the given id exists.
	ErrNotFound = errors.New("opqueue: entry not found")
)

// IsValidation reports whether err is an operation validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound reports whether err signals a missing entry or storage key.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrNoData)
}
