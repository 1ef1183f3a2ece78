package execshell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sort"
	"time"
)

const (
	environmentAssignmentSeparatorConstant = "="
	defaultTerminationGracePeriod          = 5 * time.Second
)

// OSCommandRunner starts processes with os/exec. A cancelled context interrupts the process and kills it
// once the grace period elapses.
type OSCommandRunner struct {
	terminationGracePeriod time.Duration
	liveOutput             io.Writer
}

// OSCommandRunnerOption customizes an OSCommandRunner.
type OSCommandRunnerOption func(*OSCommandRunner)

// WithTerminationGracePeriod sets how long an interrupted process may run before it is killed.
func WithTerminationGracePeriod(gracePeriod time.Duration) OSCommandRunnerOption {
	return func(runner *OSCommandRunner) {
		if gracePeriod > 0 {
			runner.terminationGracePeriod = gracePeriod
		}
	}
}

// WithLiveOutput mirrors standard output to writer while the process runs.
func WithLiveOutput(writer io.Writer) OSCommandRunnerOption {
	return func(runner *OSCommandRunner) {
		runner.liveOutput = writer
	}
}

// NewOSCommandRunner constructs a runner backed by os/exec.
func NewOSCommandRunner(options ...OSCommandRunnerOption) *OSCommandRunner {
	runner := &OSCommandRunner{terminationGracePeriod: defaultTerminationGracePeriod}
	for _, option := range options {
		option(runner)
	}
	return runner
}

// Run executes the command and reports non-zero exits through ExecutionResult.ExitCode.
// Only failures to start or wait for the process are returned as errors.
func (runner *OSCommandRunner) Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	process := exec.CommandContext(executionContext, string(command.Name), command.Details.Arguments...)
	process.Dir = command.Details.WorkingDirectory
	process.Env = mergeEnvironment(os.Environ(), command.Details.EnvironmentVariables)
	process.Cancel = func() error {
		return process.Process.Signal(os.Interrupt)
	}
	process.WaitDelay = runner.terminationGracePeriod

	var standardOutput bytes.Buffer
	var standardError bytes.Buffer
	process.Stdout = runner.outputWriter(&standardOutput)
	process.Stderr = &standardError
	if command.Details.CombineOutput {
		process.Stderr = process.Stdout
	}
	if len(command.Details.StandardInput) > 0 {
		process.Stdin = bytes.NewReader(command.Details.StandardInput)
	}

	runError := process.Run()
	result := ExecutionResult{
		StandardOutput: standardOutput.String(),
		StandardError:  standardError.String(),
	}
	if runError == nil {
		return result, nil
	}

	if contextError := executionContext.Err(); contextError != nil {
		return ExecutionResult{}, contextError
	}
	var exitError *exec.ExitError
	if errors.As(runError, &exitError) {
		result.ExitCode = exitError.ExitCode()
		return result, nil
	}
	return ExecutionResult{}, runError
}

func (runner *OSCommandRunner) outputWriter(buffer *bytes.Buffer) io.Writer {
	if runner.liveOutput == nil {
		return buffer
	}
	return io.MultiWriter(buffer, runner.liveOutput)
}

// mergeEnvironment returns nil when there are no overrides so the child inherits the parent environment.
func mergeEnvironment(baseEnvironment []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return nil
	}
	overrideKeys := make([]string, 0, len(overrides))
	for overrideKey := range overrides {
		overrideKeys = append(overrideKeys, overrideKey)
	}
	sort.Strings(overrideKeys)

	mergedEnvironment := append([]string{}, baseEnvironment...)
	for _, overrideKey := range overrideKeys {
		mergedEnvironment = append(mergedEnvironment, overrideKey+environmentAssignmentSeparatorConstant+overrides[overrideKey])
	}
	return mergedEnvironment
}
