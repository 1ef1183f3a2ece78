package workflow

import "time"

// Execution log events.
const (
	EventStageStarted       = "stage_started"
	EventExecuting          = "executing"
	EventCommandOutput      = "command_output"
	EventStageCompleted     = "stage_completed"
	EventStageFailed        = "stage_failed"
	EventSessionSaved       = "session_saved"
	EventSessionCleared     = "session_cleared"
	EventCounterAdvanced    = "counter_advanced"
	EventPullRequestCreated = "pull_request_created"
	EventIssueCommented     = "issue_comment_added"
	EventIssueClosed        = "issue_closed"
	EventWarning            = "warning"
)

// Command output detail keys.
const (
	DetailCommandKey  = "command"
	DetailExitCodeKey = "exit_code"
	DetailOutputKey   = "output"
)

// ExecutionLogEntry records one event of a single invocation. Detail is either a string or a map.
type ExecutionLogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Event     string    `json:"event"`
	Detail    any       `json:"detail"`
}

// ExecutionLog is the ordered list of entries recorded during an invocation.
type ExecutionLog []ExecutionLogEntry

type executionLogRecorder struct {
	clock   func() time.Time
	entries ExecutionLog
}

func (recorder *executionLogRecorder) record(event string, detail any) {
	recorder.entries = append(recorder.entries, ExecutionLogEntry{Timestamp: recorder.clock(), Event: event, Detail: detail})
}

func (recorder *executionLogRecorder) log() ExecutionLog {
	return append(ExecutionLog{}, recorder.entries...)
}
