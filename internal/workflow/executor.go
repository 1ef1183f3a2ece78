package workflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/githubsh/internal/execshell"
)

const (
	commandPause                             = time.Second
	stageExecutorRunnerMissingMessage        = "stage executor requires a script runner"
	logMessageCommandSucceededConstant       = "stage command succeeded"
	logMessageCommandFailedConstant          = "stage command failed"
	logFieldCommandConstant                  = "command"
	logFieldExitCodeConstant                 = "exit_code"
	logFieldCommandIndexConstant             = "command_index"
	logFieldCommandCountConstant             = "command_count"
	unknownExitCode                          = -1
	logMessageStageCommandsCancelledConstant = "stage commands cancelled"
)

// ErrScriptRunnerNotConfigured indicates the executor was constructed without a runner.
var ErrScriptRunnerNotConfigured = errors.New(stageExecutorRunnerMissingMessage)

// ScriptRunner executes a single shell command line in a working directory.
type ScriptRunner interface {
	ExecuteScript(executionContext context.Context, script string, workingDirectory string) (execshell.ExecutionResult, error)
}

// StageExecutorDependencies configures a StageExecutor.
type StageExecutorDependencies struct {
	Runner           ScriptRunner
	Logger           *zap.Logger
	WorkingDirectory string
	// Sleep blocks between commands; defaults to time.Sleep.
	Sleep func(time.Duration)
	Clock func() time.Time
}

// StageExecutor runs resolved stage commands in order and stops at the first failure.
type StageExecutor struct {
	runner           ScriptRunner
	logger           *zap.Logger
	workingDirectory string
	sleep            func(time.Duration)
	clock            func() time.Time
}

// NewStageExecutor constructs a StageExecutor.
func NewStageExecutor(dependencies StageExecutorDependencies) (*StageExecutor, error) {
	if dependencies.Runner == nil {
		return nil, ErrScriptRunnerNotConfigured
	}
	executor := &StageExecutor{
		runner:           dependencies.Runner,
		logger:           dependencies.Logger,
		workingDirectory: dependencies.WorkingDirectory,
		sleep:            dependencies.Sleep,
		clock:            dependencies.Clock,
	}
	if executor.logger == nil {
		executor.logger = zap.NewNop()
	}
	if executor.sleep == nil {
		executor.sleep = time.Sleep
	}
	if executor.clock == nil {
		executor.clock = time.Now
	}
	return executor, nil
}

// Run executes the commands sequentially, pausing one second after every successful command except the last.
// The accumulated log is returned whether or not a command fails.
func (executor *StageExecutor) Run(executionContext context.Context, commands []string) (ExecutionLog, error) {
	recorder := &executionLogRecorder{clock: executor.clock}
	runnableCommands := nonBlankCommands(commands)

	for commandIndex, command := range runnableCommands {
		if contextError := executionContext.Err(); contextError != nil {
			executor.logger.Warn(logMessageStageCommandsCancelledConstant, zap.Int(logFieldCommandIndexConstant, commandIndex), zap.Error(contextError))
			return recorder.log(), contextError
		}

		recorder.record(EventExecuting, command)
		result, runError := executor.runner.ExecuteScript(executionContext, command, executor.workingDirectory)
		if runError != nil {
			failure := commandFailure(command, result, runError)
			recorder.record(EventCommandOutput, commandOutputDetail(command, failure.ExitCode, failure.Output))
			executor.logger.Error(logMessageCommandFailedConstant,
				zap.String(logFieldCommandConstant, command),
				zap.Int(logFieldExitCodeConstant, failure.ExitCode),
				zap.Error(runError),
			)
			return recorder.log(), failure
		}

		recorder.record(EventCommandOutput, commandOutputDetail(command, result.ExitCode, result.StandardOutput))
		executor.logger.Debug(logMessageCommandSucceededConstant,
			zap.String(logFieldCommandConstant, command),
			zap.Int(logFieldCommandIndexConstant, commandIndex+1),
			zap.Int(logFieldCommandCountConstant, len(runnableCommands)),
		)

		if commandIndex < len(runnableCommands)-1 {
			executor.sleep(commandPause)
		}
	}

	return recorder.log(), nil
}

func nonBlankCommands(commands []string) []string {
	filtered := make([]string, 0, len(commands))
	for _, command := range commands {
		if len(strings.TrimSpace(command)) == 0 {
			continue
		}
		filtered = append(filtered, command)
	}
	return filtered
}

func commandFailure(command string, result execshell.ExecutionResult, runError error) CommandFailedError {
	var failedCommand execshell.CommandFailedError
	if errors.As(runError, &failedCommand) {
		return CommandFailedError{
			Command:  command,
			ExitCode: failedCommand.Result.ExitCode,
			Output:   combinedOutput(failedCommand.Result),
			Cause:    runError,
		}
	}
	return CommandFailedError{
		Command:  command,
		ExitCode: unknownExitCode,
		Output:   combinedOutput(result),
		Cause:    runError,
	}
}

func combinedOutput(result execshell.ExecutionResult) string {
	if len(result.StandardError) == 0 {
		return result.StandardOutput
	}
	if len(result.StandardOutput) == 0 {
		return result.StandardError
	}
	return result.StandardOutput + result.StandardError
}

func commandOutputDetail(command string, exitCode int, output string) map[string]any {
	return map[string]any{
		DetailCommandKey:  command,
		DetailExitCodeKey: exitCode,
		DetailOutputKey:   output,
	}
}
