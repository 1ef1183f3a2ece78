package execshell_test

import (
	"bytes"
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/githubsh/internal/execshell"
)

func TestOSCommandRunnerCombinesOutput(testInstance *testing.T) {
	if _, lookupError := exec.LookPath("sh"); lookupError != nil {
		testInstance.Skip("sh not available")
	}

	testCases := []struct {
		name             string
		combineOutput    bool
		expectedOutput   string
		expectedError    string
		expectedExitCode int
	}{
		{
			name:             "combined",
			combineOutput:    true,
			expectedOutput:   "out\nerr\n",
			expectedExitCode: 3,
		},
		{
			name:             "separated",
			combineOutput:    false,
			expectedOutput:   "out\n",
			expectedError:    "err\n",
			expectedExitCode: 3,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			runner := execshell.NewOSCommandRunner()
			result, runError := runner.Run(context.Background(), execshell.ShellCommand{
				Name: execshell.CommandShell,
				Details: execshell.CommandDetails{
					Arguments:        []string{"-c", "echo out; echo err 1>&2; exit 3"},
					WorkingDirectory: testInstance.TempDir(),
					CombineOutput:    testCase.combineOutput,
				},
			})
			require.NoError(testInstance, runError)
			require.Equal(testInstance, testCase.expectedExitCode, result.ExitCode)
			require.Equal(testInstance, testCase.expectedOutput, result.StandardOutput)
			require.Equal(testInstance, testCase.expectedError, result.StandardError)
		})
	}
}

func TestOSCommandRunnerPassesEnvironment(testInstance *testing.T) {
	if _, lookupError := exec.LookPath("sh"); lookupError != nil {
		testInstance.Skip("sh not available")
	}

	runner := execshell.NewOSCommandRunner()
	result, runError := runner.Run(context.Background(), execshell.ShellCommand{
		Name: execshell.CommandShell,
		Details: execshell.CommandDetails{
			Arguments:            []string{"-c", "printf %s \"$GITHUBSH_TEST_VALUE\""},
			EnvironmentVariables: map[string]string{"GITHUBSH_TEST_VALUE": "stage"},
		},
	})
	require.NoError(testInstance, runError)
	require.Equal(testInstance, "stage", result.StandardOutput)
}

func TestOSCommandRunnerMirrorsLiveOutput(testInstance *testing.T) {
	if _, lookupError := exec.LookPath("sh"); lookupError != nil {
		testInstance.Skip("sh not available")
	}

	var liveOutput bytes.Buffer
	runner := execshell.NewOSCommandRunner(execshell.WithLiveOutput(&liveOutput))
	result, runError := runner.Run(context.Background(), execshell.ShellCommand{
		Name: execshell.CommandShell,
		Details: execshell.CommandDetails{
			Arguments:     []string{"-c", "echo building"},
			CombineOutput: true,
		},
	})
	require.NoError(testInstance, runError)
	require.Equal(testInstance, "building\n", result.StandardOutput)
	require.Equal(testInstance, "building\n", liveOutput.String())
}

func TestOSCommandRunnerStopsOnCancellation(testInstance *testing.T) {
	if _, lookupError := exec.LookPath("sh"); lookupError != nil {
		testInstance.Skip("sh not available")
	}

	executionContext, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	runner := execshell.NewOSCommandRunner(execshell.WithTerminationGracePeriod(200 * time.Millisecond))
	startedAt := time.Now()
	_, runError := runner.Run(executionContext, execshell.ShellCommand{
		Name:    execshell.CommandShell,
		Details: execshell.CommandDetails{Arguments: []string{"-c", "sleep 5"}},
	})
	require.ErrorIs(testInstance, runError, context.DeadlineExceeded)
	require.Less(testInstance, time.Since(startedAt), 3*time.Second)
}
