// Package errors provides custom error types for the reconciliation engine
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents the type of error that occurred
type ErrorCode string

const (
	ErrCodeStorageFailure    ErrorCode = "STORAGE_FAILURE"
	ErrCodeValidationFailure ErrorCode = "VALIDATION_FAILURE"
	ErrCodeConfigFailure     ErrorCode = "CONFIG_FAILURE"
)

// Operation represents the engine operation during which an error occurred
type Operation string

const (
	OpDetect       Operation = "detect"
	OpReconcile    Operation = "reconcile"
	OpLoadConfig   Operation = "load_config"
	OpRegistry     Operation = "registry"
	OpArchive      Operation = "archive"
	OpQueryHistory Operation = "query_history"
	OpClose        Operation = "close"
)

// Kind classifies an error independently of the operation that produced it.
type Kind string

const (
	KindInvalid  Kind = "invalid"
	KindNotFound Kind = "not_found"
	KindInternal Kind = "internal"
	KindStorage  Kind = "storage"
	KindConfig   Kind = "config"
)

// SyncError represents an error that occurred inside the engine or one of its collaborators
type SyncError struct {
	// Operation during which the error occurred
	Op Operation

	// Component that generated the error (e.g., "detector", "archive")
	Component string

	// Kind of failure
	Kind Kind

	// Underlying error
	Err error

	// Whether the operation can be retried
	Retryable bool

	// Error code for the error type
	Code ErrorCode

	// Metadata for additional context
	Metadata map[string]interface{}
}

func (e *SyncError) Error() string {
	var msg string
	if e.Component != "" {
		msg = fmt.Sprintf("%s operation failed in %s component", e.Op, e.Component)
	} else {
		msg = fmt.Sprintf("%s operation failed", e.Op)
	}

	if e.Code != "" {
		msg += fmt.Sprintf(" [%s]", e.Code)
	}

	return msg + fmt.Sprintf(": %v", e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *SyncError) WithMetadata(key string, value interface{}) *SyncError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// NewStorageError creates a new storage-related SyncError
func NewStorageError(op Operation, cause error) *SyncError {
	return &SyncError{
		Code:      ErrCodeStorageFailure,
		Op:        op,
		Component: "archive",
		Kind:      KindStorage,
		Err:       cause,
		Retryable: true,
	}
}

// NewValidationError creates a new validation-related SyncError
func NewValidationError(op Operation, cause error) *SyncError {
	return &SyncError{
		Code:      ErrCodeValidationFailure,
		Op:        op,
		Kind:      KindInvalid,
		Err:       cause,
		Retryable: false,
	}
}

// NewConfigError creates a new configuration-related SyncError
func NewConfigError(op Operation, cause error) *SyncError {
	return &SyncError{
		Code:      ErrCodeConfigFailure,
		Op:        op,
		Component: "config",
		Kind:      KindConfig,
		Err:       cause,
		Retryable: false,
	}
}

// New creates a new SyncError
func New(op Operation, err error) *SyncError {
	return &SyncError{
		Op:  op,
		Err: err,
	}
}

// NewWithComponent creates a new SyncError with component information
func NewWithComponent(op Operation, component string, err error) *SyncError {
	return &SyncError{
		Op:        op,
		Component: component,
		Err:       err,
	}
}

// NewRetryable creates a new retryable SyncError
func NewRetryable(op Operation, err error) *SyncError {
	return &SyncError{
		Op:        op,
		Err:       err,
		Retryable: true,
	}
}

// IsRetryable checks if an error is a retryable SyncError
func IsRetryable(err error) bool {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Retryable
	}
	return false
}

// IsKind reports whether err is a SyncError of the given kind.
func IsKind(err error, kind Kind) bool {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Kind == kind
	}
	return false
}

// IsCode reports whether err is a SyncError carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Code == code
	}
	return false
}

// Op and Component are typed arguments for E.
type (
	opArg        string
	componentArg string
)

// Op marks a string argument to E as the operation.
func Op(op string) opArg { return opArg(op) }

// Component marks a string argument to E as the component.
func Component(c string) componentArg { return componentArg(c) }

// E builds a SyncError from a list of typed arguments. Recognised arguments are
// Operation, Op(...), Component(...), Kind, ErrorCode, error and string (used as
// the error message when no error is supplied). Unknown argument types are ignored.
func E(args ...interface{}) error {
	e := &SyncError{}
	for _, arg := range args {
		switch a := arg.(type) {
		case Operation:
			e.Op = a
		case opArg:
			e.Op = Operation(a)
		case componentArg:
			e.Component = string(a)
		case Kind:
			e.Kind = a
		case ErrorCode:
			e.Code = a
		case *SyncError:
			e.Err = a
			if e.Kind == "" {
				e.Kind = a.Kind
			}
			if e.Code == "" {
				e.Code = a.Code
			}
			e.Retryable = e.Retryable || a.Retryable
		case error:
			e.Err = a
		case string:
			if e.Err == nil {
				e.Err = errors.New(a)
			}
		}
	}
	if e.Err == nil {
		e.Err = errors.New("unknown error")
	}
	return e
}
