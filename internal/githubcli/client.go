package githubcli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/temirov/githubsh/internal/execshell"
	"github.com/temirov/githubsh/internal/github"
)

const (
	issueSubcommandConstant                 = "issue"
	pullRequestSubcommandConstant           = "pr"
	repoSubcommandConstant                  = "repo"
	apiSubcommandConstant                   = "api"
	createSubcommandConstant                = "create"
	commentSubcommandConstant               = "comment"
	closeSubcommandConstant                 = "close"
	viewSubcommandConstant                  = "view"
	titleFlagConstant                       = "--title"
	bodyFileFlagConstant                    = "--body-file"
	labelFlagConstant                       = "--label"
	headFlagConstant                        = "--head"
	baseFlagConstant                        = "--base"
	repoFlagConstant                        = "--repo"
	jsonFlagConstant                        = "--json"
	jqFlagConstant                          = "--jq"
	stdinReferenceConstant                  = "-"
	userEndpointConstant                    = "user"
	loginExpressionConstant                 = ".login"
	repoViewJSONFieldsConstant              = "nameWithOwner,description,defaultBranchRef,isPrivate"
	closedStateConstant                     = "closed"
	titleFieldNameConstant                  = "title"
	headBranchFieldNameConstant             = "head_branch"
	baseBranchFieldNameConstant             = "base_branch"
	issueNumberFieldNameConstant            = "issue_number"
	bodyFieldNameConstant                   = "body"
	requiredValueMessageConstant            = "value required"
	positiveValueMessageConstant            = "must be positive"
	executorNotConfiguredMessageConstant    = "github cli executor not configured"
	operationErrorMessageTemplateConstant   = "%s operation failed"
	operationErrorWithCauseTemplateConstant = "%s operation failed: %s"
	responseDecodingErrorTemplateConstant   = "%s response decoding failed: %s"
	invalidInputErrorTemplateConstant       = "%s: %s"
	unexpectedOutputTemplateConstant        = "unexpected output %q"
	createIssueOperationNameConstant        = OperationName("CreateIssue")
	createPullRequestOperationNameConstant  = OperationName("CreatePullRequest")
	addIssueCommentOperationNameConstant    = OperationName("AddIssueComment")
	closeIssueOperationNameConstant         = OperationName("CloseIssue")
	repositoryMetadataOperationNameConstant = OperationName("ResolveRepoMetadata")
	authenticatedUserOperationNameConstant  = OperationName("AuthenticatedUser")
)

var (
	issueURLPattern       = regexp.MustCompile(`https?://\S+/issues/(\d+)`)
	pullRequestURLPattern = regexp.MustCompile(`https?://\S+/pull/(\d+)`)
	commentURLPattern     = regexp.MustCompile(`https?://\S+#issuecomment-\d+`)
)

// OperationName describes a named GitHub CLI workflow supported by the client.
type OperationName string

// RepositoryMetadata contains key details resolved from GitHub.
type RepositoryMetadata struct {
	NameWithOwner string
	Description   string
	DefaultBranch string
	Private       bool
}

// GitHubCommandExecutor is the minimal interface required from execshell.ShellExecutor.
type GitHubCommandExecutor interface {
	ExecuteGitHubCLI(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// Client coordinates GitHub CLI invocations through execshell.
type Client struct {
	executor         GitHubCommandExecutor
	repository       github.Repository
	workingDirectory string
}

var (
	// ErrExecutorNotConfigured indicates the client was constructed without an executor.
	ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)
)

// InvalidInputError surfaces validation issues for operation inputs.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}

// OperationError wraps execution issues for GitHub CLI operations.
type OperationError struct {
	Operation OperationName
	Cause     error
}

// Error describes the operation failure.
func (operationError OperationError) Error() string {
	if operationError.Cause == nil {
		return fmt.Sprintf(operationErrorMessageTemplateConstant, operationError.Operation)
	}
	return fmt.Sprintf(operationErrorWithCauseTemplateConstant, operationError.Operation, operationError.Cause)
}

// Unwrap exposes the underlying cause.
func (operationError OperationError) Unwrap() error {
	return operationError.Cause
}

// ResponseDecodingError indicates gh output that could not be interpreted.
type ResponseDecodingError struct {
	Operation OperationName
	Cause     error
}

// Error describes the decoding failure.
func (decodingError ResponseDecodingError) Error() string {
	return fmt.Sprintf(responseDecodingErrorTemplateConstant, decodingError.Operation, decodingError.Cause)
}

// Unwrap exposes the underlying error.
func (decodingError ResponseDecodingError) Unwrap() error {
	return decodingError.Cause
}

// NewClient constructs a GitHub CLI client. A zero repository lets gh infer it from the working directory.
func NewClient(executor GitHubCommandExecutor, repository github.Repository, workingDirectory string) (*Client, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	return &Client{executor: executor, repository: repository, workingDirectory: workingDirectory}, nil
}

// CreateIssue opens an issue with gh issue create.
func (client *Client) CreateIssue(executionContext context.Context, request github.IssueRequest) (github.IssueResult, error) {
	if len(strings.TrimSpace(request.Title)) == 0 {
		return github.IssueResult{}, InvalidInputError{FieldName: titleFieldNameConstant, Message: requiredValueMessageConstant}
	}

	arguments := []string{issueSubcommandConstant, createSubcommandConstant, titleFlagConstant, request.Title, bodyFileFlagConstant, stdinReferenceConstant}
	for _, label := range request.Labels {
		if trimmedLabel := strings.TrimSpace(label); len(trimmedLabel) > 0 {
			arguments = append(arguments, labelFlagConstant, trimmedLabel)
		}
	}

	executionResult, executionError := client.execute(executionContext, arguments, []byte(request.Body))
	if executionError != nil {
		return github.IssueResult{}, OperationError{Operation: createIssueOperationNameConstant, Cause: executionError}
	}

	issueURL, issueNumber, parseError := parseNumberedURL(executionResult.StandardOutput, issueURLPattern)
	if parseError != nil {
		return github.IssueResult{}, ResponseDecodingError{Operation: createIssueOperationNameConstant, Cause: parseError}
	}
	return github.IssueResult{Number: issueNumber, URL: issueURL}, nil
}

// CreatePullRequest opens a pull request with gh pr create.
func (client *Client) CreatePullRequest(executionContext context.Context, request github.PullRequestRequest) (github.PullRequestResult, error) {
	if len(strings.TrimSpace(request.Title)) == 0 {
		return github.PullRequestResult{}, InvalidInputError{FieldName: titleFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(request.HeadBranch)) == 0 {
		return github.PullRequestResult{}, InvalidInputError{FieldName: headBranchFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(request.BaseBranch)) == 0 {
		return github.PullRequestResult{}, InvalidInputError{FieldName: baseBranchFieldNameConstant, Message: requiredValueMessageConstant}
	}

	arguments := []string{
		pullRequestSubcommandConstant,
		createSubcommandConstant,
		titleFlagConstant,
		request.Title,
		bodyFileFlagConstant,
		stdinReferenceConstant,
		headFlagConstant,
		request.HeadBranch,
		baseFlagConstant,
		request.BaseBranch,
	}

	executionResult, executionError := client.execute(executionContext, arguments, []byte(request.Body))
	if executionError != nil {
		return github.PullRequestResult{}, OperationError{Operation: createPullRequestOperationNameConstant, Cause: executionError}
	}

	pullRequestURL, pullRequestNumber, parseError := parseNumberedURL(executionResult.StandardOutput, pullRequestURLPattern)
	if parseError != nil {
		return github.PullRequestResult{}, ResponseDecodingError{Operation: createPullRequestOperationNameConstant, Cause: parseError}
	}
	return github.PullRequestResult{Number: pullRequestNumber, URL: pullRequestURL}, nil
}

// AddIssueComment posts a comment with gh issue comment.
func (client *Client) AddIssueComment(executionContext context.Context, issueNumber int, body string) (github.CommentResult, error) {
	if issueNumber <= 0 {
		return github.CommentResult{}, InvalidInputError{FieldName: issueNumberFieldNameConstant, Message: positiveValueMessageConstant}
	}
	if len(strings.TrimSpace(body)) == 0 {
		return github.CommentResult{}, InvalidInputError{FieldName: bodyFieldNameConstant, Message: requiredValueMessageConstant}
	}

	arguments := []string{issueSubcommandConstant, commentSubcommandConstant, strconv.Itoa(issueNumber), bodyFileFlagConstant, stdinReferenceConstant}
	executionResult, executionError := client.execute(executionContext, arguments, []byte(body))
	if executionError != nil {
		return github.CommentResult{}, OperationError{Operation: addIssueCommentOperationNameConstant, Cause: executionError}
	}

	return github.CommentResult{URL: commentURLPattern.FindString(executionResult.StandardOutput)}, nil
}

// CloseIssue closes an issue with gh issue close.
func (client *Client) CloseIssue(executionContext context.Context, issueNumber int) (github.IssueResult, error) {
	if issueNumber <= 0 {
		return github.IssueResult{}, InvalidInputError{FieldName: issueNumberFieldNameConstant, Message: positiveValueMessageConstant}
	}

	arguments := []string{issueSubcommandConstant, closeSubcommandConstant, strconv.Itoa(issueNumber)}
	if _, executionError := client.execute(executionContext, arguments, nil); executionError != nil {
		return github.IssueResult{}, OperationError{Operation: closeIssueOperationNameConstant, Cause: executionError}
	}
	return github.IssueResult{Number: issueNumber, State: closedStateConstant}, nil
}

// ResolveRepoMetadata retrieves canonical metadata for the configured repository using gh repo view.
func (client *Client) ResolveRepoMetadata(executionContext context.Context) (RepositoryMetadata, error) {
	arguments := []string{repoSubcommandConstant, viewSubcommandConstant}
	if !client.repository.IsZero() {
		arguments = append(arguments, client.repository.String())
	}
	arguments = append(arguments, jsonFlagConstant, repoViewJSONFieldsConstant)

	executionResult, executionError := client.executor.ExecuteGitHubCLI(executionContext, execshell.CommandDetails{
		Arguments:        arguments,
		WorkingDirectory: client.workingDirectory,
	})
	if executionError != nil {
		return RepositoryMetadata{}, OperationError{Operation: repositoryMetadataOperationNameConstant, Cause: executionError}
	}

	var response struct {
		NameWithOwner    string `json:"nameWithOwner"`
		Description      string `json:"description"`
		IsPrivate        bool   `json:"isPrivate"`
		DefaultBranchRef struct {
			Name string `json:"name"`
		} `json:"defaultBranchRef"`
	}

	decodingError := json.Unmarshal([]byte(executionResult.StandardOutput), &response)
	if decodingError != nil {
		return RepositoryMetadata{}, ResponseDecodingError{Operation: repositoryMetadataOperationNameConstant, Cause: decodingError}
	}

	return RepositoryMetadata{
		NameWithOwner: response.NameWithOwner,
		Description:   response.Description,
		DefaultBranch: response.DefaultBranchRef.Name,
		Private:       response.IsPrivate,
	}, nil
}

// RepositoryDetails adapts ResolveRepoMetadata to the shared inspector contract.
func (client *Client) RepositoryDetails(executionContext context.Context) (github.RepositoryDetails, error) {
	metadata, metadataError := client.ResolveRepoMetadata(executionContext)
	if metadataError != nil {
		return github.RepositoryDetails{}, metadataError
	}
	return github.RepositoryDetails{FullName: metadata.NameWithOwner, DefaultBranch: metadata.DefaultBranch, Private: metadata.Private}, nil
}

// AuthenticatedUser returns the login gh is authenticated as.
func (client *Client) AuthenticatedUser(executionContext context.Context) (string, error) {
	executionResult, executionError := client.executor.ExecuteGitHubCLI(executionContext, execshell.CommandDetails{
		Arguments:        []string{apiSubcommandConstant, userEndpointConstant, jqFlagConstant, loginExpressionConstant},
		WorkingDirectory: client.workingDirectory,
	})
	if executionError != nil {
		return "", OperationError{Operation: authenticatedUserOperationNameConstant, Cause: executionError}
	}

	login := strings.TrimSpace(executionResult.StandardOutput)
	if len(login) == 0 {
		return "", ResponseDecodingError{Operation: authenticatedUserOperationNameConstant, Cause: fmt.Errorf(unexpectedOutputTemplateConstant, executionResult.StandardOutput)}
	}
	return login, nil
}

func (client *Client) execute(executionContext context.Context, arguments []string, standardInput []byte) (execshell.ExecutionResult, error) {
	if !client.repository.IsZero() {
		arguments = append(arguments, repoFlagConstant, client.repository.String())
	}
	return client.executor.ExecuteGitHubCLI(executionContext, execshell.CommandDetails{
		Arguments:        arguments,
		WorkingDirectory: client.workingDirectory,
		StandardInput:    standardInput,
	})
}

func parseNumberedURL(output string, pattern *regexp.Regexp) (string, int, error) {
	matches := pattern.FindStringSubmatch(output)
	if len(matches) != 2 {
		return "", 0, fmt.Errorf(unexpectedOutputTemplateConstant, strings.TrimSpace(output))
	}
	number, parseError := strconv.Atoi(matches[1])
	if parseError != nil {
		return "", 0, parseError
	}
	return matches[0], number, nil
}
