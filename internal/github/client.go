package github

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	repositoryFormatTemplateConstant      = "%s/%s"
	repositoryIdentifierSeparator         = "/"
	invalidRepositoryTemplateConstant     = "repository must be formatted as owner/name: %q"
	ownerRequiredMessageConstant          = "repository owner must be provided"
	repositoryNameRequiredMessageConstant = "repository name must be provided"
)

var (
	// ErrRepositoryOwnerRequired indicates a repository reference without an owner.
	ErrRepositoryOwnerRequired = errors.New(ownerRequiredMessageConstant)
	// ErrRepositoryNameRequired indicates a repository reference without a name.
	ErrRepositoryNameRequired = errors.New(repositoryNameRequiredMessageConstant)
)

// Repository identifies a GitHub repository.
type Repository struct {
	Owner string `json:"owner" mapstructure:"owner"`
	Name  string `json:"repo" mapstructure:"repo"`
}

// ParseRepository parses an owner/name pair.
func ParseRepository(value string) (Repository, error) {
	parts := strings.Split(strings.TrimSpace(value), repositoryIdentifierSeparator)
	if len(parts) != 2 {
		return Repository{}, fmt.Errorf(invalidRepositoryTemplateConstant, value)
	}
	repository := Repository{Owner: strings.TrimSpace(parts[0]), Name: strings.TrimSpace(parts[1])}
	if validationError := repository.Validate(); validationError != nil {
		return Repository{}, validationError
	}
	return repository, nil
}

// Validate ensures both parts of the repository reference are present.
func (repository Repository) Validate() error {
	if len(strings.TrimSpace(repository.Owner)) == 0 {
		return ErrRepositoryOwnerRequired
	}
	if len(strings.TrimSpace(repository.Name)) == 0 {
		return ErrRepositoryNameRequired
	}
	return nil
}

// IsZero reports whether neither part is configured.
func (repository Repository) IsZero() bool {
	return len(strings.TrimSpace(repository.Owner)) == 0 && len(strings.TrimSpace(repository.Name)) == 0
}

// String formats the repository as owner/name.
func (repository Repository) String() string {
	if repository.IsZero() {
		return ""
	}
	return fmt.Sprintf(repositoryFormatTemplateConstant, repository.Owner, repository.Name)
}

// IssueRequest describes an issue to open.
type IssueRequest struct {
	Title  string
	Body   string
	Labels []string
}

// IssueResult describes an issue returned by GitHub.
type IssueResult struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
	State  string `json:"state,omitempty"`
}

// PullRequestRequest describes a pull request to open.
type PullRequestRequest struct {
	Title      string
	Body       string
	HeadBranch string
	BaseBranch string
}

// PullRequestResult describes a pull request returned by GitHub.
type PullRequestResult struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
}

// CommentResult describes an issue comment returned by GitHub.
type CommentResult struct {
	URL string `json:"url"`
}

// RepositoryDetails summarizes repository metadata used for access checks.
type RepositoryDetails struct {
	FullName      string
	DefaultBranch string
	Private       bool
}

// RateLimit summarizes the core API quota.
type RateLimit struct {
	Limit     int
	Remaining int
	ResetUnix int64
}

// Client creates and updates GitHub issues and pull requests.
type Client interface {
	CreateIssue(executionContext context.Context, request IssueRequest) (IssueResult, error)
	CreatePullRequest(executionContext context.Context, request PullRequestRequest) (PullRequestResult, error)
	AddIssueComment(executionContext context.Context, issueNumber int, body string) (CommentResult, error)
	CloseIssue(executionContext context.Context, issueNumber int) (IssueResult, error)
}

// Inspector exposes read-only checks used to verify connectivity and credentials.
type Inspector interface {
	AuthenticatedUser(executionContext context.Context) (string, error)
	RepositoryDetails(executionContext context.Context) (RepositoryDetails, error)
}

// RateLimitReporter exposes the remaining API quota.
type RateLimitReporter interface {
	RateLimit(executionContext context.Context) (RateLimit, error)
}
