package githubapi_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/githubsh/internal/github"
	"github.com/temirov/githubsh/internal/githubapi"
)

const (
	testTokenConstant     = "ghp_example"
	testUserAgentConstant = "githubsh-test"
)

type recordedRequest struct {
	Method  string
	Path    string
	Header  http.Header
	Payload map[string]any
}

type fakeGitHubServer struct {
	requests  []recordedRequest
	responses map[string]func(http.ResponseWriter)
}

func (server *fakeGitHubServer) ServeHTTP(responseWriter http.ResponseWriter, request *http.Request) {
	recorded := recordedRequest{Method: request.Method, Path: request.URL.Path, Header: request.Header.Clone()}
	if body, readError := io.ReadAll(request.Body); readError == nil && len(body) > 0 {
		_ = json.Unmarshal(body, &recorded.Payload)
	}
	server.requests = append(server.requests, recorded)

	respond, exists := server.responses[request.Method+" "+request.URL.Path]
	if !exists {
		responseWriter.WriteHeader(http.StatusNotFound)
		_, _ = responseWriter.Write([]byte(`{"message":"Not Found"}`))
		return
	}
	respond(responseWriter)
}

func jsonResponse(statusCode int, body string) func(http.ResponseWriter) {
	return func(responseWriter http.ResponseWriter) {
		responseWriter.Header().Set("Content-Type", "application/json")
		responseWriter.WriteHeader(statusCode)
		_, _ = responseWriter.Write([]byte(body))
	}
}

func newTestClient(testInstance *testing.T, responses map[string]func(http.ResponseWriter)) (*githubapi.Client, *fakeGitHubServer) {
	testInstance.Helper()
	fakeServer := &fakeGitHubServer{responses: responses}
	httpServer := httptest.NewServer(fakeServer)
	testInstance.Cleanup(httpServer.Close)

	client, creationError := githubapi.NewClient(githubapi.Configuration{
		BaseURL:    httpServer.URL + "/",
		Token:      testTokenConstant,
		Repository: github.Repository{Owner: "octo", Name: "example"},
		UserAgent:  testUserAgentConstant,
	}, httpServer.Client())
	require.NoError(testInstance, creationError)
	return client, fakeServer
}

func TestNewClientValidation(testInstance *testing.T) {
	_, tokenError := githubapi.NewClient(githubapi.Configuration{Repository: github.Repository{Owner: "o", Name: "r"}}, nil)
	require.ErrorIs(testInstance, tokenError, githubapi.ErrTokenRequired)

	_, repositoryError := githubapi.NewClient(githubapi.Configuration{Token: testTokenConstant, Repository: github.Repository{Name: "r"}}, nil)
	require.ErrorIs(testInstance, repositoryError, github.ErrRepositoryOwnerRequired)

	client, creationError := githubapi.NewClient(githubapi.Configuration{Token: testTokenConstant, Repository: github.Repository{Owner: "o", Name: "r"}}, nil)
	require.NoError(testInstance, creationError)
	require.NotNil(testInstance, client)
}

func TestCreateIssue(testInstance *testing.T) {
	client, server := newTestClient(testInstance, map[string]func(http.ResponseWriter){
		"POST /repos/octo/example/issues": jsonResponse(http.StatusCreated, `{"number":101,"html_url":"https://github.com/octo/example/issues/101","state":"open"}`),
	})

	issue, createError := client.CreateIssue(context.Background(), github.IssueRequest{Title: "Issue #101", Body: "body", Labels: []string{"automation"}})
	require.NoError(testInstance, createError)
	require.Equal(testInstance, github.IssueResult{Number: 101, URL: "https://github.com/octo/example/issues/101", State: "open"}, issue)

	require.Len(testInstance, server.requests, 1)
	recorded := server.requests[0]
	require.Equal(testInstance, "token "+testTokenConstant, recorded.Header.Get("Authorization"))
	require.Equal(testInstance, "application/vnd.github.v3+json", recorded.Header.Get("Accept"))
	require.Equal(testInstance, testUserAgentConstant, recorded.Header.Get("User-Agent"))
	require.Equal(testInstance, "application/json", recorded.Header.Get("Content-Type"))
	require.Equal(testInstance, map[string]any{"title": "Issue #101", "body": "body", "labels": []any{"automation"}}, recorded.Payload)
}

func TestCreatePullRequest(testInstance *testing.T) {
	client, server := newTestClient(testInstance, map[string]func(http.ResponseWriter){
		"POST /repos/octo/example/pulls": jsonResponse(http.StatusCreated, `{"number":7,"html_url":"https://github.com/octo/example/pull/7"}`),
	})

	pullRequest, createError := client.CreatePullRequest(context.Background(), github.PullRequestRequest{
		Title: "feat", Body: "Closes Issue #101", HeadBranch: "feature/issue--101-m", BaseBranch: "main",
	})
	require.NoError(testInstance, createError)
	require.Equal(testInstance, github.PullRequestResult{Number: 7, URL: "https://github.com/octo/example/pull/7"}, pullRequest)
	require.Equal(testInstance, map[string]any{"title": "feat", "body": "Closes Issue #101", "head": "feature/issue--101-m", "base": "main"}, server.requests[0].Payload)
}

func TestIssueCommentAndClose(testInstance *testing.T) {
	client, server := newTestClient(testInstance, map[string]func(http.ResponseWriter){
		"POST /repos/octo/example/issues/101/comments": jsonResponse(http.StatusCreated, `{"html_url":"https://github.com/octo/example/issues/101#issuecomment-1"}`),
		"PATCH /repos/octo/example/issues/101":         jsonResponse(http.StatusOK, `{"number":101,"html_url":"https://github.com/octo/example/issues/101","state":"closed"}`),
	})

	comment, commentError := client.AddIssueComment(context.Background(), 101, "done")
	require.NoError(testInstance, commentError)
	require.Equal(testInstance, "https://github.com/octo/example/issues/101#issuecomment-1", comment.URL)
	require.Equal(testInstance, map[string]any{"body": "done"}, server.requests[0].Payload)

	issue, closeError := client.CloseIssue(context.Background(), 101)
	require.NoError(testInstance, closeError)
	require.Equal(testInstance, "closed", issue.State)
	require.Equal(testInstance, http.MethodPatch, server.requests[1].Method)
	require.Equal(testInstance, map[string]any{"state": "closed"}, server.requests[1].Payload)

	_, invalidError := client.AddIssueComment(context.Background(), 0, "done")
	require.Error(testInstance, invalidError)
	_, invalidCloseError := client.CloseIssue(context.Background(), -1)
	require.Error(testInstance, invalidCloseError)
	require.Len(testInstance, server.requests, 2)
}

func TestAPIErrorsSurfaceGitHubMessage(testInstance *testing.T) {
	client, _ := newTestClient(testInstance, map[string]func(http.ResponseWriter){
		"POST /repos/octo/example/pulls":  jsonResponse(http.StatusUnprocessableEntity, `{"message":"Validation Failed","errors":[]}`),
		"POST /repos/octo/example/issues": jsonResponse(http.StatusInternalServerError, `upstream exploded`),
	})

	_, pullRequestError := client.CreatePullRequest(context.Background(), github.PullRequestRequest{Title: "t", HeadBranch: "h", BaseBranch: "main"})
	var apiError githubapi.APIError
	require.ErrorAs(testInstance, pullRequestError, &apiError)
	require.Equal(testInstance, http.StatusUnprocessableEntity, apiError.StatusCode)
	require.Equal(testInstance, "Validation Failed", apiError.Message)
	require.Equal(testInstance, "GitHub API POST /repos/octo/example/pulls returned 422: Validation Failed", apiError.Error())

	_, issueError := client.CreateIssue(context.Background(), github.IssueRequest{Title: "t"})
	require.ErrorAs(testInstance, issueError, &apiError)
	require.Equal(testInstance, "upstream exploded", apiError.Message)

	_, missingError := client.AuthenticatedUser(context.Background())
	require.ErrorAs(testInstance, missingError, &apiError)
	require.Equal(testInstance, "Not Found", apiError.Message)
}

func TestInspectionEndpoints(testInstance *testing.T) {
	client, _ := newTestClient(testInstance, map[string]func(http.ResponseWriter){
		"GET /user":               jsonResponse(http.StatusOK, `{"login":"octocat"}`),
		"GET /repos/octo/example": jsonResponse(http.StatusOK, `{"full_name":"octo/example","default_branch":"main","private":false}`),
		"GET /rate_limit":         jsonResponse(http.StatusOK, `{"resources":{"core":{"limit":5000,"remaining":4999,"reset":1752998400}}}`),
	})

	login, loginError := client.AuthenticatedUser(context.Background())
	require.NoError(testInstance, loginError)
	require.Equal(testInstance, "octocat", login)

	details, detailsError := client.RepositoryDetails(context.Background())
	require.NoError(testInstance, detailsError)
	require.Equal(testInstance, github.RepositoryDetails{FullName: "octo/example", DefaultBranch: "main"}, details)

	rateLimit, rateLimitError := client.RateLimit(context.Background())
	require.NoError(testInstance, rateLimitError)
	require.Equal(testInstance, github.RateLimit{Limit: 5000, Remaining: 4999, ResetUnix: 1752998400}, rateLimit)
	require.Equal(testInstance, "4999/5000", githubapi.FormatRateLimit(rateLimit))
	require.Equal(testInstance, int64(1752998400), githubapi.ResetTime(rateLimit).Unix())
}

func TestMalformedResponse(testInstance *testing.T) {
	client, _ := newTestClient(testInstance, map[string]func(http.ResponseWriter){
		"GET /user": jsonResponse(http.StatusOK, `not json`),
	})
	_, decodeError := client.AuthenticatedUser(context.Background())
	require.ErrorContains(testInstance, decodeError, "failed to decode GitHub API response for GET /user")
}

var (
	_ github.Client            = (*githubapi.Client)(nil)
	_ github.Inspector         = (*githubapi.Client)(nil)
	_ github.RateLimitReporter = (*githubapi.Client)(nil)
)
