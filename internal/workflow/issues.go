package workflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/githubsh/internal/github"
)

const (
	issueDatePlaceholderConstant     = "{{date}}"
	issueTimestampLayoutConstant     = "2006-01-02 15:04:05"
	issueCreatorClientMissingMessage = "issue creation requires a GitHub client"
	logMessageIssueCreatedConstant   = "issue created"
	logFieldIssueURLConstant         = "issue_url"
)

// ErrIssueClientNotConfigured indicates issue creation was requested without a GitHub client.
var ErrIssueClientNotConfigured = errors.New(issueCreatorClientMissingMessage)

// IssueClient opens GitHub issues.
type IssueClient interface {
	CreateIssue(executionContext context.Context, request github.IssueRequest) (github.IssueResult, error)
}

// IssueCreator opens the tracking issue for a task (stage 0).
type IssueCreator struct {
	Client       IssueClient
	BodyTemplate string
	Labels       []string
	Clock        func() time.Time
	Logger       *zap.Logger
}

// Create opens an issue titled with the task reference. {{date}} in the body template is replaced by the local time.
func (creator IssueCreator) Create(executionContext context.Context, title string) (github.IssueResult, error) {
	if creator.Client == nil {
		return github.IssueResult{}, ErrIssueClientNotConfigured
	}
	trimmedTitle := strings.TrimSpace(title)
	if len(trimmedTitle) == 0 {
		return github.IssueResult{}, ErrTaskReferenceRequired
	}

	clock := creator.Clock
	if clock == nil {
		clock = time.Now
	}
	body := strings.ReplaceAll(creator.BodyTemplate, issueDatePlaceholderConstant, clock().Format(issueTimestampLayoutConstant))

	issue, createError := creator.Client.CreateIssue(executionContext, github.IssueRequest{
		Title:  trimmedTitle,
		Body:   body,
		Labels: append([]string{}, creator.Labels...),
	})
	if createError != nil {
		return github.IssueResult{}, createError
	}

	if creator.Logger != nil {
		creator.Logger.Info(logMessageIssueCreatedConstant, zap.Int(logFieldIssueNumberConstant, issue.Number), zap.String(logFieldIssueURLConstant, issue.URL))
	}
	return issue, nil
}
