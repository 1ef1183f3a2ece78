package state

import (
	"errors"
	"fmt"
)

const (
	ioErrorTemplateConstant             = "%s %s: %v"
	corruptSessionErrorTemplateConstant = "session file %s is corrupt: %v"
	invalidCounterValueTemplateConstant = "counter file contains %q, expected a non-negative integer"
	sessionMissingTaskMessageConstant   = "task_reference is empty"
	sessionInvalidStageTemplateConstant = "current_stage %d is outside 1-4"
	lockTimeoutMessageConstant          = "timed out waiting for state file lock"
	operationReadCounterConstant        = "read counter"
	operationWriteCounterConstant       = "write counter"
	operationReadSessionConstant        = "read session"
	operationWriteSessionConstant       = "write session"
	operationClearSessionConstant       = "clear session"
	operationLockConstant               = "lock"
	operationCreateDirectoryConstant    = "create directory for"
)

// ErrLockTimeout indicates another invocation held the state lock for too long.
var ErrLockTimeout = errors.New(lockTimeoutMessageConstant)

// IOError reports a failed read or write of a state file.
type IOError struct {
	Operation string
	Path      string
	Cause     error
}

// Error describes the failed operation.
func (ioError IOError) Error() string {
	return fmt.Sprintf(ioErrorTemplateConstant, ioError.Operation, ioError.Path, ioError.Cause)
}

// Unwrap exposes the underlying cause.
func (ioError IOError) Unwrap() error {
	return ioError.Cause
}

// CorruptSessionError reports a session file that exists but does not decode into a valid session.
type CorruptSessionError struct {
	Path  string
	Cause error
}

// Error describes the corrupt file.
func (corruptError CorruptSessionError) Error() string {
	return fmt.Sprintf(corruptSessionErrorTemplateConstant, corruptError.Path, corruptError.Cause)
}

// Unwrap exposes the decoding failure.
func (corruptError CorruptSessionError) Unwrap() error {
	return corruptError.Cause
}
