package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestSyncError_Error(t *testing.T) {
	tests := []struct {
		name      string
		op        Operation
		component string
		code      ErrorCode
		err       error
		want      string
	}{
		{
			name:      "with component and code",
			op:        OpArchive,
			component: "archive",
			code:      ErrCodeStorageFailure,
			err:       fmt.Errorf("disk full"),
			want:      "archive operation failed in archive component [STORAGE_FAILURE]: disk full",
		},
		{
			name:      "with component no code",
			op:        OpDetect,
			component: "detector",
			err:       fmt.Errorf("bad snapshot"),
			want:      "detect operation failed in detector component: bad snapshot",
		},
		{
			name: "without component with code",
			op:   OpLoadConfig,
			code: ErrCodeConfigFailure,
			err:  fmt.Errorf("no such file"),
			want: "load_config operation failed [CONFIG_FAILURE]: no such file",
		},
		{
			name: "without component or code",
			op:   OpReconcile,
			err:  fmt.Errorf("boom"),
			want: "reconcile operation failed: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &SyncError{
				Op:        tt.op,
				Component: tt.component,
				Err:       tt.err,
				Code:      tt.code,
			}

			if got := e.Error(); got != tt.want {
				t.Errorf("SyncError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConstructors(t *testing.T) {
	cause := fmt.Errorf("cause")

	tests := []struct {
		name      string
		err       *SyncError
		code      ErrorCode
		kind      Kind
		retryable bool
	}{
		{"storage", NewStorageError(OpArchive, cause), ErrCodeStorageFailure, KindStorage, true},
		{"validation", NewValidationError(OpDetect, cause), ErrCodeValidationFailure, KindInvalid, false},
		{"config", NewConfigError(OpLoadConfig, cause), ErrCodeConfigFailure, KindConfig, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %v, want %v", tt.err.Code, tt.code)
			}
			if tt.err.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", tt.err.Kind, tt.kind)
			}
			if tt.err.Retryable != tt.retryable {
				t.Errorf("Retryable = %v, want %v", tt.err.Retryable, tt.retryable)
			}
			if tt.err.Err != cause {
				t.Errorf("Err = %v, want %v", tt.err.Err, cause)
			}
		})
	}
}

func TestSyncError_Unwrap(t *testing.T) {
	originalErr := fmt.Errorf("original error")
	e := &SyncError{
		Op:  OpReconcile,
		Err: originalErr,
	}

	if unwrapped := e.Unwrap(); unwrapped != originalErr {
		t.Errorf("SyncError.Unwrap() = %v, want %v", unwrapped, originalErr)
	}
	if !errors.Is(e, originalErr) {
		t.Error("errors.Is() failed to find the wrapped cause")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"retryable sync error", NewRetryable(OpArchive, fmt.Errorf("locked")), true},
		{"non-retryable sync error", New(OpDetect, fmt.Errorf("bad input")), false},
		{"non-sync error", fmt.Errorf("regular error"), false},
		{"wrapped retryable error", fmt.Errorf("wrapped: %w", NewStorageError(OpArchive, fmt.Errorf("busy"))), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsKindAndCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewValidationError(OpDetect, fmt.Errorf("version is not an integer")))

	if !IsKind(err, KindInvalid) {
		t.Error("IsKind() = false, want true")
	}
	if IsKind(err, KindStorage) {
		t.Error("IsKind() matched the wrong kind")
	}
	if !IsCode(err, ErrCodeValidationFailure) {
		t.Error("IsCode() = false, want true")
	}
	if IsKind(fmt.Errorf("plain"), KindInvalid) {
		t.Error("IsKind() matched a plain error")
	}
}

func TestWithMetadata(t *testing.T) {
	e := NewValidationError(OpDetect, fmt.Errorf("bad")).WithMetadata("field", "version")
	if e.Metadata["field"] != "version" {
		t.Errorf("Metadata[field] = %v, want version", e.Metadata["field"])
	}
}

func TestE(t *testing.T) {
	cause := fmt.Errorf("underlying")

	err := E(OpArchive, Component("archive"), KindStorage, ErrCodeStorageFailure, cause)
	syncErr, ok := err.(*SyncError)
	if !ok {
		t.Fatalf("E() returned %T, want *SyncError", err)
	}
	if syncErr.Op != OpArchive || syncErr.Component != "archive" {
		t.Errorf("E() op/component = %s/%s", syncErr.Op, syncErr.Component)
	}
	if syncErr.Kind != KindStorage || syncErr.Code != ErrCodeStorageFailure {
		t.Errorf("E() kind/code = %s/%s", syncErr.Kind, syncErr.Code)
	}
	if syncErr.Err != cause {
		t.Errorf("E() Err = %v, want %v", syncErr.Err, cause)
	}

	t.Run("inherits from nested SyncError", func(t *testing.T) {
		inner := NewStorageError(OpArchive, cause)
		outer := E(Op("sqlite.Save"), inner).(*SyncError)
		if outer.Kind != KindStorage || outer.Code != ErrCodeStorageFailure || !outer.Retryable {
			t.Errorf("E() did not inherit kind/code/retryable: %+v", outer)
		}
	})

	t.Run("string message", func(t *testing.T) {
		e := E(OpDetect, "snapshot is nil").(*SyncError)
		if e.Err == nil || e.Err.Error() != "snapshot is nil" {
			t.Errorf("E() Err = %v", e.Err)
		}
	})
}

func TestWrapOpComponent(t *testing.T) {
	if WrapOpComponent(nil, "x", "y") != nil {
		t.Error("WrapOpComponent(nil) should return nil")
	}

	cause := fmt.Errorf("database connection failed")
	err := WrapOpComponent(cause, "sqlite.Save", "storage/sqlite")
	syncErr, ok := err.(*SyncError)
	if !ok {
		t.Fatalf("expected *SyncError, got %T", err)
	}
	if syncErr.Op != "sqlite.Save" || syncErr.Component != "storage/sqlite" {
		t.Errorf("unexpected op/component %s/%s", syncErr.Op, syncErr.Component)
	}
	if syncErr.Err != cause {
		t.Errorf("expected underlying error %v, got %v", cause, syncErr.Err)
	}

	kerr := WrapOpComponentKind(cause, "sqlite.Query", "storage/sqlite", KindStorage).(*SyncError)
	if kerr.Kind != KindStorage {
		t.Errorf("expected Kind %s, got %s", KindStorage, kerr.Kind)
	}
}

func TestErrorsAs(t *testing.T) {
	var syncErr *SyncError
	err := fmt.Errorf("wrapped: %w", New(OpReconcile, fmt.Errorf("inner")))

	if !errors.As(err, &syncErr) {
		t.Error("errors.As() failed to detect SyncError")
	}

	if syncErr.Op != OpReconcile {
		t.Errorf("errors.As() Op = %v, want %v", syncErr.Op, OpReconcile)
	}
}
