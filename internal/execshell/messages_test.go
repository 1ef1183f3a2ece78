package execshell_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/githubsh/internal/execshell"
)

func TestCommandMessageFormatter(testInstance *testing.T) {
	formatter := execshell.CommandMessageFormatter{}

	scriptCommand := execshell.ShellCommand{
		Name:    execshell.CommandShell,
		Details: execshell.CommandDetails{Arguments: []string{"-c", "git add migrations/x.go"}},
	}
	commentCommand := execshell.ShellCommand{
		Name:    execshell.CommandGitHub,
		Details: execshell.CommandDetails{Arguments: []string{"issue", "comment", "101", "--body", "done"}},
	}
	gitCommand := execshell.ShellCommand{
		Name:    execshell.CommandGit,
		Details: execshell.CommandDetails{Arguments: []string{"remote", "get-url", "origin"}, WorkingDirectory: "/tmp/project"},
	}

	testCases := []struct {
		name     string
		build    func() string
		expected string
	}{
		{
			name:     "script_start",
			build:    func() string { return formatter.BuildStartedMessage(scriptCommand) },
			expected: "Executing: git add migrations/x.go",
		},
		{
			name: "script_failure",
			build: func() string {
				return formatter.BuildFailureMessage(scriptCommand, execshell.ExecutionResult{StandardOutput: "fatal: pathspec\n", ExitCode: 128})
			},
			expected: "Command failed with exit code 128: git add migrations/x.go: fatal: pathspec",
		},
		{
			name:     "issue_comment_start",
			build:    func() string { return formatter.BuildStartedMessage(commentCommand) },
			expected: "Commenting on GitHub issue 101",
		},
		{
			name:     "generic_success",
			build:    func() string { return formatter.BuildSuccessMessage(gitCommand) },
			expected: "Completed git remote get-url origin (in /tmp/project)",
		},
		{
			name:     "generic_execution_failure",
			build:    func() string { return formatter.BuildExecutionFailureMessage(gitCommand, errors.New("not found")) },
			expected: "git remote get-url origin (in /tmp/project) failed: not found",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expected, testCase.build())
		})
	}
}
