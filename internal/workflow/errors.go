package workflow

import (
	"errors"
	"fmt"
	"strings"
)

const (
	unknownStageTemplateConstant           = "unknown stage %d: expected a stage between 1 and 4"
	invalidStageArgumentTemplateConstant   = "stage must be a number between 0 and 4, got %q"
	missingStageDefinitionTemplateConstant = "no command definition registered for stage %d (%s)"
	noActiveSessionMessageConstant         = "no active session"
	noActiveSessionTemplateConstant        = "no active session found for %s. Please start with stage 1"
	taskMismatchTemplateConstant           = "active session belongs to %s, not %s. Please start with stage 1"
	commandFailedTemplateConstant          = "command failed with exit code %d: %s"
	commandFailedOutputTemplateConstant    = "command failed with exit code %d: %s\nOutput: %s"
	commandFailedCauseTemplateConstant     = "command could not be executed: %s: %v"
	invalidDefinitionTemplateConstant      = "command definition for stage %d is nil"
)

// ErrNoActiveSession is matched by both NoActiveSessionError and TaskMismatchError.
var ErrNoActiveSession = errors.New(noActiveSessionMessageConstant)

// UnknownStageError reports a stage outside the supported range.
type UnknownStageError struct {
	Stage Stage
}

// Error describes the invalid stage.
func (stageError UnknownStageError) Error() string {
	return fmt.Sprintf(unknownStageTemplateConstant, int(stageError.Stage))
}

// InvalidStageArgumentError reports a non-numeric stage argument.
type InvalidStageArgumentError struct {
	Value string
}

// Error describes the invalid argument.
func (argumentError InvalidStageArgumentError) Error() string {
	return fmt.Sprintf(invalidStageArgumentTemplateConstant, argumentError.Value)
}

// MissingStageDefinitionError reports a stage with no registered command template.
type MissingStageDefinitionError struct {
	Stage Stage
}

// Error describes the missing definition.
func (definitionError MissingStageDefinitionError) Error() string {
	return fmt.Sprintf(missingStageDefinitionTemplateConstant, int(definitionError.Stage), definitionError.Stage.Name())
}

// InvalidStageDefinitionError reports a registered definition that cannot be used.
type InvalidStageDefinitionError struct {
	Stage Stage
}

// Error describes the invalid definition.
func (definitionError InvalidStageDefinitionError) Error() string {
	return fmt.Sprintf(invalidDefinitionTemplateConstant, int(definitionError.Stage))
}

// NoActiveSessionError reports that stages 2-4 were requested without a session.
type NoActiveSessionError struct {
	TaskReference string
	Stage         Stage
}

// Error instructs the operator to restart at stage 1.
func (sessionError NoActiveSessionError) Error() string {
	return fmt.Sprintf(noActiveSessionTemplateConstant, sessionError.TaskReference)
}

// Is matches ErrNoActiveSession.
func (sessionError NoActiveSessionError) Is(target error) bool {
	return target == ErrNoActiveSession
}

// TaskMismatchError reports a session that belongs to a different task reference.
type TaskMismatchError struct {
	SessionTaskReference string
	TaskReference        string
	Stage                Stage
}

// Error instructs the operator to restart at stage 1.
func (mismatchError TaskMismatchError) Error() string {
	return fmt.Sprintf(taskMismatchTemplateConstant, mismatchError.SessionTaskReference, mismatchError.TaskReference)
}

// Is matches ErrNoActiveSession so callers can treat both session failures alike.
func (mismatchError TaskMismatchError) Is(target error) bool {
	return target == ErrNoActiveSession
}

// CommandFailedError reports a stage command that exited with a non-zero status or could not start.
type CommandFailedError struct {
	Command  string
	ExitCode int
	Output   string
	Cause    error
}

// Error describes the failed command and its output.
func (failedError CommandFailedError) Error() string {
	if failedError.Cause != nil && failedError.ExitCode < 0 {
		return fmt.Sprintf(commandFailedCauseTemplateConstant, failedError.Command, failedError.Cause)
	}
	trimmedOutput := strings.TrimSpace(failedError.Output)
	if len(trimmedOutput) == 0 {
		return fmt.Sprintf(commandFailedTemplateConstant, failedError.ExitCode, failedError.Command)
	}
	return fmt.Sprintf(commandFailedOutputTemplateConstant, failedError.ExitCode, failedError.Command, trimmedOutput)
}

// Unwrap exposes the underlying runner error.
func (failedError CommandFailedError) Unwrap() error {
	return failedError.Cause
}
