package githubapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/temirov/githubsh/internal/github"
)

const (
	defaultBaseURLConstant              = "https://api.github.com"
	defaultUserAgentConstant            = "githubsh"
	defaultRequestTimeout               = 30 * time.Second
	authorizationHeaderConstant         = "Authorization"
	authorizationTemplateConstant       = "token %s"
	acceptHeaderConstant                = "Accept"
	acceptHeaderValueConstant           = "application/vnd.github.v3+json"
	contentTypeHeaderConstant           = "Content-Type"
	contentTypeJSONConstant             = "application/json"
	userAgentHeaderConstant             = "User-Agent"
	issuesPathTemplateConstant          = "/repos/%s/%s/issues"
	issuePathTemplateConstant           = "/repos/%s/%s/issues/%d"
	issueCommentsPathTemplateConstant   = "/repos/%s/%s/issues/%d/comments"
	pullsPathTemplateConstant           = "/repos/%s/%s/pulls"
	repositoryPathTemplateConstant      = "/repos/%s/%s"
	userPathConstant                    = "/user"
	rateLimitPathConstant               = "/rate_limit"
	closedStateConstant                 = "closed"
	tokenRequiredMessageConstant        = "GitHub API token must be provided"
	httpClientMissingMessageConstant    = "GitHub API HTTP client not configured"
	apiErrorTemplateConstant            = "GitHub API %s %s returned %d: %s"
	requestBuildErrorTemplateConstant   = "failed to build GitHub API request %s %s: %w"
	requestErrorTemplateConstant        = "GitHub API request %s %s failed: %w"
	responseDecodeErrorTemplateConstant = "failed to decode GitHub API response for %s %s: %w"
	payloadEncodeErrorTemplateConstant  = "failed to encode GitHub API payload for %s %s: %w"
	invalidBaseURLTemplateConstant      = "invalid GitHub API base URL %q: %w"
	issueNumberInvalidTemplateConstant  = "issue number must be positive, got %d"
	unknownAPIErrorMessageConstant      = "unknown error"
	maximumErrorBodyBytes               = 4096
)

var (
	// ErrTokenRequired indicates the client was constructed without credentials.
	ErrTokenRequired = errors.New(tokenRequiredMessageConstant)
	// ErrHTTPClientNotConfigured indicates a nil HTTP client was supplied explicitly.
	ErrHTTPClientNotConfigured = errors.New(httpClientMissingMessageConstant)
)

// HTTPClient performs HTTP requests.
type HTTPClient interface {
	Do(request *http.Request) (*http.Response, error)
}

// Configuration describes how to reach the GitHub REST API.
type Configuration struct {
	BaseURL    string
	Token      string
	Repository github.Repository
	UserAgent  string
	Timeout    time.Duration
}

// APIError reports a GitHub response with status code 400 or above.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

// Error surfaces the GitHub error message.
func (apiError APIError) Error() string {
	return fmt.Sprintf(apiErrorTemplateConstant, apiError.Method, apiError.Path, apiError.StatusCode, apiError.Message)
}

// Client talks to the GitHub REST API.
type Client struct {
	httpClient HTTPClient
	baseURL    *url.URL
	token      string
	repository github.Repository
	userAgent  string
}

// NewClient constructs a REST client. A nil httpClient defaults to an http.Client with the configured timeout.
func NewClient(configuration Configuration, httpClient HTTPClient) (*Client, error) {
	token := strings.TrimSpace(configuration.Token)
	if len(token) == 0 {
		return nil, ErrTokenRequired
	}
	if repositoryError := configuration.Repository.Validate(); repositoryError != nil {
		return nil, repositoryError
	}

	baseURLValue := strings.TrimSpace(configuration.BaseURL)
	if len(baseURLValue) == 0 {
		baseURLValue = defaultBaseURLConstant
	}
	baseURL, parseError := url.Parse(strings.TrimRight(baseURLValue, "/"))
	if parseError != nil {
		return nil, fmt.Errorf(invalidBaseURLTemplateConstant, baseURLValue, parseError)
	}

	if httpClient == nil {
		timeout := configuration.Timeout
		if timeout <= 0 {
			timeout = defaultRequestTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	userAgent := strings.TrimSpace(configuration.UserAgent)
	if len(userAgent) == 0 {
		userAgent = defaultUserAgentConstant
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		token:      token,
		repository: configuration.Repository,
		userAgent:  userAgent,
	}, nil
}

type issueResponse struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
	State   string `json:"state"`
}

// CreateIssue opens an issue in the configured repository.
func (client *Client) CreateIssue(executionContext context.Context, request github.IssueRequest) (github.IssueResult, error) {
	payload := struct {
		Title  string   `json:"title"`
		Body   string   `json:"body"`
		Labels []string `json:"labels,omitempty"`
	}{Title: request.Title, Body: request.Body, Labels: request.Labels}

	var response issueResponse
	path := fmt.Sprintf(issuesPathTemplateConstant, client.repository.Owner, client.repository.Name)
	if requestError := client.do(executionContext, http.MethodPost, path, payload, &response); requestError != nil {
		return github.IssueResult{}, requestError
	}
	return github.IssueResult{Number: response.Number, URL: response.HTMLURL, State: response.State}, nil
}

// CreatePullRequest opens a pull request in the configured repository.
func (client *Client) CreatePullRequest(executionContext context.Context, request github.PullRequestRequest) (github.PullRequestResult, error) {
	payload := struct {
		Title string `json:"title"`
		Body  string `json:"body"`
		Head  string `json:"head"`
		Base  string `json:"base"`
	}{Title: request.Title, Body: request.Body, Head: request.HeadBranch, Base: request.BaseBranch}

	var response struct {
		Number  int    `json:"number"`
		HTMLURL string `json:"html_url"`
	}
	path := fmt.Sprintf(pullsPathTemplateConstant, client.repository.Owner, client.repository.Name)
	if requestError := client.do(executionContext, http.MethodPost, path, payload, &response); requestError != nil {
		return github.PullRequestResult{}, requestError
	}
	return github.PullRequestResult{Number: response.Number, URL: response.HTMLURL}, nil
}

// AddIssueComment posts a comment on an issue.
func (client *Client) AddIssueComment(executionContext context.Context, issueNumber int, body string) (github.CommentResult, error) {
	if issueNumber <= 0 {
		return github.CommentResult{}, fmt.Errorf(issueNumberInvalidTemplateConstant, issueNumber)
	}
	payload := struct {
		Body string `json:"body"`
	}{Body: body}

	var response struct {
		HTMLURL string `json:"html_url"`
	}
	path := fmt.Sprintf(issueCommentsPathTemplateConstant, client.repository.Owner, client.repository.Name, issueNumber)
	if requestError := client.do(executionContext, http.MethodPost, path, payload, &response); requestError != nil {
		return github.CommentResult{}, requestError
	}
	return github.CommentResult{URL: response.HTMLURL}, nil
}

// CloseIssue marks an issue closed.
func (client *Client) CloseIssue(executionContext context.Context, issueNumber int) (github.IssueResult, error) {
	if issueNumber <= 0 {
		return github.IssueResult{}, fmt.Errorf(issueNumberInvalidTemplateConstant, issueNumber)
	}
	payload := struct {
		State string `json:"state"`
	}{State: closedStateConstant}

	var response issueResponse
	path := fmt.Sprintf(issuePathTemplateConstant, client.repository.Owner, client.repository.Name, issueNumber)
	if requestError := client.do(executionContext, http.MethodPatch, path, payload, &response); requestError != nil {
		return github.IssueResult{}, requestError
	}
	return github.IssueResult{Number: response.Number, URL: response.HTMLURL, State: response.State}, nil
}

// AuthenticatedUser returns the login that owns the token.
func (client *Client) AuthenticatedUser(executionContext context.Context) (string, error) {
	var response struct {
		Login string `json:"login"`
	}
	if requestError := client.do(executionContext, http.MethodGet, userPathConstant, nil, &response); requestError != nil {
		return "", requestError
	}
	return response.Login, nil
}

// RepositoryDetails fetches metadata for the configured repository.
func (client *Client) RepositoryDetails(executionContext context.Context) (github.RepositoryDetails, error) {
	var response struct {
		FullName      string `json:"full_name"`
		DefaultBranch string `json:"default_branch"`
		Private       bool   `json:"private"`
	}
	path := fmt.Sprintf(repositoryPathTemplateConstant, client.repository.Owner, client.repository.Name)
	if requestError := client.do(executionContext, http.MethodGet, path, nil, &response); requestError != nil {
		return github.RepositoryDetails{}, requestError
	}
	return github.RepositoryDetails{FullName: response.FullName, DefaultBranch: response.DefaultBranch, Private: response.Private}, nil
}

// RateLimit reports the core API quota for the token.
func (client *Client) RateLimit(executionContext context.Context) (github.RateLimit, error) {
	var response struct {
		Resources struct {
			Core struct {
				Limit     int   `json:"limit"`
				Remaining int   `json:"remaining"`
				Reset     int64 `json:"reset"`
			} `json:"core"`
		} `json:"resources"`
	}
	if requestError := client.do(executionContext, http.MethodGet, rateLimitPathConstant, nil, &response); requestError != nil {
		return github.RateLimit{}, requestError
	}
	return github.RateLimit{
		Limit:     response.Resources.Core.Limit,
		Remaining: response.Resources.Core.Remaining,
		ResetUnix: response.Resources.Core.Reset,
	}, nil
}

func (client *Client) do(executionContext context.Context, method string, path string, payload any, target any) error {
	var requestBody io.Reader
	if payload != nil {
		encodedPayload, encodeError := json.Marshal(payload)
		if encodeError != nil {
			return fmt.Errorf(payloadEncodeErrorTemplateConstant, method, path, encodeError)
		}
		requestBody = bytes.NewReader(encodedPayload)
	}

	request, buildError := http.NewRequestWithContext(executionContext, method, client.baseURL.String()+path, requestBody)
	if buildError != nil {
		return fmt.Errorf(requestBuildErrorTemplateConstant, method, path, buildError)
	}
	request.Header.Set(authorizationHeaderConstant, fmt.Sprintf(authorizationTemplateConstant, client.token))
	request.Header.Set(acceptHeaderConstant, acceptHeaderValueConstant)
	request.Header.Set(userAgentHeaderConstant, client.userAgent)
	if payload != nil {
		request.Header.Set(contentTypeHeaderConstant, contentTypeJSONConstant)
	}

	response, requestError := client.httpClient.Do(request)
	if requestError != nil {
		return fmt.Errorf(requestErrorTemplateConstant, method, path, requestError)
	}
	defer response.Body.Close()

	if response.StatusCode >= http.StatusBadRequest {
		return APIError{Method: method, Path: path, StatusCode: response.StatusCode, Message: errorMessage(response.Body)}
	}

	if target == nil {
		return nil
	}
	if decodeError := json.NewDecoder(response.Body).Decode(target); decodeError != nil {
		return fmt.Errorf(responseDecodeErrorTemplateConstant, method, path, decodeError)
	}
	return nil
}

func errorMessage(body io.Reader) string {
	contents, readError := io.ReadAll(io.LimitReader(body, maximumErrorBodyBytes))
	if readError != nil || len(bytes.TrimSpace(contents)) == 0 {
		return unknownAPIErrorMessageConstant
	}
	var response struct {
		Message string `json:"message"`
	}
	if decodeError := json.Unmarshal(contents, &response); decodeError == nil && len(response.Message) > 0 {
		return response.Message
	}
	return strings.TrimSpace(string(contents))
}

// ResetTime converts the rate limit reset timestamp.
func ResetTime(rateLimit github.RateLimit) time.Time {
	return time.Unix(rateLimit.ResetUnix, 0)
}

// FormatRateLimit renders remaining/limit.
func FormatRateLimit(rateLimit github.RateLimit) string {
	return strconv.Itoa(rateLimit.Remaining) + "/" + strconv.Itoa(rateLimit.Limit)
}
