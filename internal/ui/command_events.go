package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/temirov/githubsh/internal/execshell"
)

const (
	outputLineTemplateConstant = "%s\n"
	logFieldExitCodeConstant   = "exit_code"
)

// ConsoleCommandEventLogger prints shell script progress to the terminal and sends
// git and gh lifecycle events to the diagnostic logger.
type ConsoleCommandEventLogger struct {
	logger    *zap.Logger
	output    io.Writer
	formatter execshell.CommandMessageFormatter
	mutex     sync.Mutex
}

// NewConsoleCommandEventLogger constructs a console event logger. A nil output discards terminal text.
func NewConsoleCommandEventLogger(logger *zap.Logger, output io.Writer) *ConsoleCommandEventLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if output == nil {
		output = io.Discard
	}
	return &ConsoleCommandEventLogger{logger: logger, output: output}
}

// CommandStarted implements execshell.CommandEventObserver.
func (eventLogger *ConsoleCommandEventLogger) CommandStarted(command execshell.ShellCommand) {
	if eventLogger == nil {
		return
	}
	message := eventLogger.formatter.BuildStartedMessage(command)
	if command.Name == execshell.CommandShell {
		eventLogger.print(message)
		eventLogger.logger.Debug(message)
		return
	}
	eventLogger.logger.Info(message)
}

// CommandCompleted implements execshell.CommandEventObserver.
func (eventLogger *ConsoleCommandEventLogger) CommandCompleted(command execshell.ShellCommand, result execshell.ExecutionResult) {
	if eventLogger == nil {
		return
	}
	if command.Name == execshell.CommandShell {
		if output := strings.TrimRight(result.StandardOutput, "\n"); len(output) > 0 {
			eventLogger.print(output)
		}
	}
	if result.ExitCode == 0 {
		eventLogger.logger.Debug(eventLogger.formatter.BuildSuccessMessage(command))
		return
	}
	eventLogger.logger.Warn(eventLogger.formatter.BuildFailureMessage(command, result), zap.Int(logFieldExitCodeConstant, result.ExitCode))
}

// CommandExecutionFailed implements execshell.CommandEventObserver.
func (eventLogger *ConsoleCommandEventLogger) CommandExecutionFailed(command execshell.ShellCommand, failure error) {
	if eventLogger == nil {
		return
	}
	eventLogger.logger.Error(eventLogger.formatter.BuildExecutionFailureMessage(command, failure))
}

func (eventLogger *ConsoleCommandEventLogger) print(text string) {
	eventLogger.mutex.Lock()
	defer eventLogger.mutex.Unlock()
	fmt.Fprintf(eventLogger.output, outputLineTemplateConstant, text)
}
