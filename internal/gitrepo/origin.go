package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/temirov/githubsh/internal/execshell"
	"github.com/temirov/githubsh/internal/github"
)

const (
	gitRemoteSubcommandConstant          = "remote"
	gitGetURLSubcommandConstant          = "get-url"
	defaultRemoteNameConstant            = "origin"
	gitExecutorMissingMessageConstant    = "git executor not configured"
	remoteLookupErrorTemplateConstant    = "failed to read remote %s: %w"
	remoteDetectionErrorTemplateConstant = "failed to detect GitHub repository from remote %s: %w"
)

// ErrGitExecutorNotConfigured indicates the detector was built without a git executor.
var ErrGitExecutorNotConfigured = errors.New(gitExecutorMissingMessageConstant)

// GitExecutor runs git subcommands.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// RemoteDetector reads a remote URL from a working tree.
type RemoteDetector struct {
	executor   GitExecutor
	remoteName string
}

// NewRemoteDetector constructs a detector for the named remote; an empty name selects origin.
func NewRemoteDetector(executor GitExecutor, remoteName string) (*RemoteDetector, error) {
	if executor == nil {
		return nil, ErrGitExecutorNotConfigured
	}
	trimmedRemoteName := strings.TrimSpace(remoteName)
	if len(trimmedRemoteName) == 0 {
		trimmedRemoteName = defaultRemoteNameConstant
	}
	return &RemoteDetector{executor: executor, remoteName: trimmedRemoteName}, nil
}

// RemoteURL returns the configured URL of the remote in the given directory.
func (detector *RemoteDetector) RemoteURL(executionContext context.Context, workingDirectory string) (string, error) {
	result, executionError := detector.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitRemoteSubcommandConstant, gitGetURLSubcommandConstant, detector.remoteName},
		WorkingDirectory: workingDirectory,
	})
	if executionError != nil {
		return "", fmt.Errorf(remoteLookupErrorTemplateConstant, detector.remoteName, executionError)
	}
	return strings.TrimSpace(result.StandardOutput), nil
}

// DetectRepository resolves the GitHub owner and repository of the remote.
func (detector *RemoteDetector) DetectRepository(executionContext context.Context, workingDirectory string) (github.Repository, error) {
	remoteURL, lookupError := detector.RemoteURL(executionContext, workingDirectory)
	if lookupError != nil {
		return github.Repository{}, lookupError
	}
	repository, parseError := GitHubRepository(remoteURL)
	if parseError != nil {
		return github.Repository{}, fmt.Errorf(remoteDetectionErrorTemplateConstant, detector.remoteName, parseError)
	}
	return repository, nil
}
