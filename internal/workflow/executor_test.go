package workflow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/githubsh/internal/execshell"
	"github.com/temirov/githubsh/internal/workflow"
)

const (
	executorWorkingDirectory = "/srv/project"
	executorAllSucceedCase   = "all commands succeed"
	executorFailFastCase     = "second command fails"
	executorRunnerErrorCase  = "runner cannot start command"
	executorBlankSkippedCase = "blank commands are skipped"
	executorEmptyCase        = "no commands"
)

type scriptedRunner struct {
	exitCodes     map[string]int
	outputs       map[string]string
	startFailures map[string]error
	executed      []string
	directories   []string
}

func (runner *scriptedRunner) ExecuteScript(_ context.Context, script string, workingDirectory string) (execshell.ExecutionResult, error) {
	runner.executed = append(runner.executed, script)
	runner.directories = append(runner.directories, workingDirectory)
	if startFailure, exists := runner.startFailures[script]; exists {
		command := execshell.ShellCommand{Name: execshell.CommandShell, Details: execshell.CommandDetails{Arguments: []string{"-c", script}}}
		return execshell.ExecutionResult{}, execshell.CommandExecutionError{Command: command, Cause: startFailure}
	}
	result := execshell.ExecutionResult{StandardOutput: runner.outputs[script], ExitCode: runner.exitCodes[script]}
	if result.ExitCode != 0 {
		command := execshell.ShellCommand{Name: execshell.CommandShell, Details: execshell.CommandDetails{Arguments: []string{"-c", script}, CombineOutput: true}}
		return execshell.ExecutionResult{}, execshell.CommandFailedError{Command: command, Result: result}
	}
	return result, nil
}

type recordingSleeper struct {
	pauses []time.Duration
}

func (sleeper *recordingSleeper) Sleep(duration time.Duration) {
	sleeper.pauses = append(sleeper.pauses, duration)
}

func TestStageExecutorRun(testInstance *testing.T) {
	testCases := []struct {
		name             string
		commands         []string
		exitCodes        map[string]int
		startFailures    map[string]error
		expectedExecuted []string
		expectedPauses   int
		expectedError    *workflow.CommandFailedError
		expectedEvents   []string
	}{
		{
			name:             executorAllSucceedCase,
			commands:         []string{"echo one", "echo two", "echo three"},
			expectedExecuted: []string{"echo one", "echo two", "echo three"},
			expectedPauses:   2,
			expectedEvents: []string{
				workflow.EventExecuting, workflow.EventCommandOutput,
				workflow.EventExecuting, workflow.EventCommandOutput,
				workflow.EventExecuting, workflow.EventCommandOutput,
			},
		},
		{
			name:             executorFailFastCase,
			commands:         []string{"echo one", "false", "echo three"},
			exitCodes:        map[string]int{"false": 1},
			expectedExecuted: []string{"echo one", "false"},
			expectedPauses:   1,
			expectedError:    &workflow.CommandFailedError{Command: "false", ExitCode: 1, Output: "output of false"},
			expectedEvents: []string{
				workflow.EventExecuting, workflow.EventCommandOutput,
				workflow.EventExecuting, workflow.EventCommandOutput,
			},
		},
		{
			name:             executorRunnerErrorCase,
			commands:         []string{"missing-binary"},
			startFailures:    map[string]error{"missing-binary": errors.New("exec format error")},
			expectedExecuted: []string{"missing-binary"},
			expectedError:    &workflow.CommandFailedError{Command: "missing-binary", ExitCode: -1},
			expectedEvents:   []string{workflow.EventExecuting, workflow.EventCommandOutput},
		},
		{
			name:             executorBlankSkippedCase,
			commands:         []string{"", "echo one", "   ", "echo two", ""},
			expectedExecuted: []string{"echo one", "echo two"},
			expectedPauses:   1,
			expectedEvents: []string{
				workflow.EventExecuting, workflow.EventCommandOutput,
				workflow.EventExecuting, workflow.EventCommandOutput,
			},
		},
		{
			name:           executorEmptyCase,
			commands:       nil,
			expectedEvents: []string{},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			runner := &scriptedRunner{
				exitCodes:     testCase.exitCodes,
				startFailures: testCase.startFailures,
				outputs:       map[string]string{"false": "output of false", "echo one": "one\n"},
			}
			sleeper := &recordingSleeper{}
			executor, creationError := workflow.NewStageExecutor(workflow.StageExecutorDependencies{
				Runner:           runner,
				WorkingDirectory: executorWorkingDirectory,
				Sleep:            sleeper.Sleep,
				Clock:            fixedClock(time.Date(2025, time.July, 20, 9, 0, 0, 0, time.UTC)),
			})
			require.NoError(testInstance, creationError)

			executionLog, runError := executor.Run(context.Background(), testCase.commands)

			require.Equal(testInstance, testCase.expectedExecuted, runner.executed)
			require.Len(testInstance, sleeper.pauses, testCase.expectedPauses)
			for _, pause := range sleeper.pauses {
				require.Equal(testInstance, time.Second, pause)
			}
			for _, directory := range runner.directories {
				require.Equal(testInstance, executorWorkingDirectory, directory)
			}

			events := make([]string, 0, len(executionLog))
			for _, entry := range executionLog {
				events = append(events, entry.Event)
			}
			require.Equal(testInstance, testCase.expectedEvents, events)

			if testCase.expectedError == nil {
				require.NoError(testInstance, runError)
				return
			}

			var failedError workflow.CommandFailedError
			require.ErrorAs(testInstance, runError, &failedError)
			require.Equal(testInstance, testCase.expectedError.Command, failedError.Command)
			require.Equal(testInstance, testCase.expectedError.ExitCode, failedError.ExitCode)
			require.Equal(testInstance, testCase.expectedError.Output, failedError.Output)

			lastEntry := executionLog[len(executionLog)-1]
			detail, isMap := lastEntry.Detail.(map[string]any)
			require.True(testInstance, isMap)
			require.Equal(testInstance, testCase.expectedError.Command, detail[workflow.DetailCommandKey])
			require.Equal(testInstance, testCase.expectedError.ExitCode, detail[workflow.DetailExitCodeKey])
		})
	}
}

func TestStageExecutorRecordsCommandDetails(testInstance *testing.T) {
	runner := &scriptedRunner{outputs: map[string]string{"echo one": "one\n"}}
	executor, creationError := workflow.NewStageExecutor(workflow.StageExecutorDependencies{Runner: runner, Sleep: func(time.Duration) {}})
	require.NoError(testInstance, creationError)

	executionLog, runError := executor.Run(context.Background(), []string{"echo one"})
	require.NoError(testInstance, runError)
	require.Len(testInstance, executionLog, 2)
	require.Equal(testInstance, "echo one", executionLog[0].Detail)
	require.Equal(testInstance, map[string]any{
		workflow.DetailCommandKey:  "echo one",
		workflow.DetailExitCodeKey: 0,
		workflow.DetailOutputKey:   "one\n",
	}, executionLog[1].Detail)
}

func TestStageExecutorStopsWhenContextCancelled(testInstance *testing.T) {
	observerCore, observedLogs := observer.New(zap.WarnLevel)
	runner := &scriptedRunner{}
	cancellableContext, cancel := context.WithCancel(context.Background())
	executor, creationError := workflow.NewStageExecutor(workflow.StageExecutorDependencies{
		Runner: runner,
		Logger: zap.New(observerCore),
		Sleep:  func(time.Duration) { cancel() },
	})
	require.NoError(testInstance, creationError)

	_, runError := executor.Run(cancellableContext, []string{"echo one", "echo two"})
	require.ErrorIs(testInstance, runError, context.Canceled)
	require.Equal(testInstance, []string{"echo one"}, runner.executed)
	require.Equal(testInstance, 1, observedLogs.Len())
}

func TestNewStageExecutorRequiresRunner(testInstance *testing.T) {
	_, creationError := workflow.NewStageExecutor(workflow.StageExecutorDependencies{})
	require.ErrorIs(testInstance, creationError, workflow.ErrScriptRunnerNotConfigured)
}

func TestCommandFailedErrorMessage(testInstance *testing.T) {
	withOutput := workflow.CommandFailedError{Command: "git push", ExitCode: 1, Output: "rejected\n"}
	require.Equal(testInstance, "command failed with exit code 1: git push\nOutput: rejected", withOutput.Error())

	silent := workflow.CommandFailedError{Command: "false", ExitCode: 1}
	require.Equal(testInstance, "command failed with exit code 1: false", silent.Error())

	startFailure := workflow.CommandFailedError{Command: "nope", ExitCode: -1, Cause: errors.New("not found")}
	require.Equal(testInstance, "command could not be executed: nope: not found", startFailure.Error())
	require.ErrorContains(testInstance, startFailure.Unwrap(), "not found")
}
