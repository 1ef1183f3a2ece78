package workflow

import (
	"context"
	"time"
)

// ReportStatus summarizes the outcome of an invocation.
type ReportStatus string

// Report statuses.
const (
	ReportStatusSuccess ReportStatus = "success"
	ReportStatusFailed  ReportStatus = "failed"
)

// PullRequestSummary identifies the pull request opened after the testing stage.
type PullRequestSummary struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
}

// IssueCommentSummary identifies the comment posted after the finalization stage.
type IssueCommentSummary struct {
	URL string `json:"url"`
}

// ExecutionReport is the structured outcome of one stage invocation.
type ExecutionReport struct {
	RunID           string               `json:"run_id"`
	TaskReference   string               `json:"task_reference"`
	Stage           Stage                `json:"stage"`
	StageName       string               `json:"stage_name"`
	Status          ReportStatus         `json:"status"`
	StartedAt       time.Time            `json:"started_at"`
	FinishedAt      time.Time            `json:"finished_at"`
	DurationSeconds float64              `json:"duration_seconds"`
	Migration       MigrationArtifact    `json:"migration"`
	Log             ExecutionLog         `json:"log"`
	Error           string               `json:"error,omitempty"`
	PullRequest     *PullRequestSummary  `json:"pull_request,omitempty"`
	IssueComment    *IssueCommentSummary `json:"issue_comment,omitempty"`
	IssueClosed     bool                 `json:"issue_closed"`
	Warnings        []string             `json:"warnings,omitempty"`
}

// Succeeded reports whether the invocation completed.
func (report ExecutionReport) Succeeded() bool {
	return report.Status == ReportStatusSuccess
}

// ReportSink receives every finished ExecutionReport.
type ReportSink interface {
	Record(executionContext context.Context, report ExecutionReport) error
}

// ReportSinkFunc adapts a function to ReportSink.
type ReportSinkFunc func(executionContext context.Context, report ExecutionReport) error

// Record calls the wrapped function.
func (sinkFunc ReportSinkFunc) Record(executionContext context.Context, report ExecutionReport) error {
	return sinkFunc(executionContext, report)
}
