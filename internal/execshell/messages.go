package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	scriptStartTemplateConstant             = "Executing: %s"
	scriptSuccessTemplateConstant           = "Executed: %s"
	scriptFailureTemplateConstant           = "Command failed with exit code %d: %s%s"
	scriptExecutionFailureTemplateConstant  = "Command could not start: %s: %s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	outputSuffixTemplateConstant            = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
)

const (
	githubIssueSubcommandNameConstant       = "issue"
	githubPullRequestSubcommandNameConstant = "pr"
	githubAPISubcommandNameConstant         = "api"
	githubCreateActionConstant              = "create"
	githubCommentActionConstant             = "comment"
	githubCloseActionConstant               = "close"
)

const (
	githubIssueCreateStartConstant    = "Creating GitHub issue"
	githubIssueCreateSuccessConstant  = "Created GitHub issue"
	githubIssueCommentStartConstant   = "Commenting on GitHub issue %s"
	githubIssueCommentSuccessConstant = "Commented on GitHub issue %s"
	githubIssueCloseStartConstant     = "Closing GitHub issue %s"
	githubIssueCloseSuccessConstant   = "Closed GitHub issue %s"
	githubPullRequestStartConstant    = "Creating GitHub pull request"
	githubPullRequestSuccessConstant  = "Created GitHub pull request"
	githubAPIStartTemplateConstant    = "Querying GitHub API %s"
	githubAPISuccessTemplateConstant  = "Queried GitHub API %s"
)

// CommandMessageFormatter builds human-readable descriptions of command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	if script, isScript := shellScript(command); isScript {
		return formatter.describeScriptMessage(script, result, failure, stage)
	}
	if command.Name == CommandGitHub {
		if message, described := formatter.describeGitHubMessage(command, stage); described {
			return message
		}
	}
	return formatter.buildGenericMessage(command, result, failure, stage)
}

func (formatter CommandMessageFormatter) describeScriptMessage(script string, result ExecutionResult, failure error, stage messageStage) string {
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(scriptStartTemplateConstant, script)
	case messageStageSuccess:
		return fmt.Sprintf(scriptSuccessTemplateConstant, script)
	case messageStageFailure:
		return fmt.Sprintf(scriptFailureTemplateConstant, result.ExitCode, script, formatter.outputSuffix(result))
	default:
		return fmt.Sprintf(scriptExecutionFailureTemplateConstant, script, formatter.failureText(failure))
	}
}

func (formatter CommandMessageFormatter) describeGitHubMessage(command ShellCommand, stage messageStage) (string, bool) {
	if stage != messageStageStart && stage != messageStageSuccess {
		return "", false
	}
	arguments := command.Details.Arguments
	if len(arguments) < 2 {
		return "", false
	}

	starting := stage == messageStageStart
	subcommand := strings.TrimSpace(arguments[0])
	action := strings.TrimSpace(arguments[1])

	switch {
	case subcommand == githubIssueSubcommandNameConstant && action == githubCreateActionConstant:
		return chooseMessage(starting, githubIssueCreateStartConstant, githubIssueCreateSuccessConstant), true
	case subcommand == githubIssueSubcommandNameConstant && action == githubCommentActionConstant && len(arguments) > 2:
		return fmt.Sprintf(chooseMessage(starting, githubIssueCommentStartConstant, githubIssueCommentSuccessConstant), arguments[2]), true
	case subcommand == githubIssueSubcommandNameConstant && action == githubCloseActionConstant && len(arguments) > 2:
		return fmt.Sprintf(chooseMessage(starting, githubIssueCloseStartConstant, githubIssueCloseSuccessConstant), arguments[2]), true
	case subcommand == githubPullRequestSubcommandNameConstant && action == githubCreateActionConstant:
		return chooseMessage(starting, githubPullRequestStartConstant, githubPullRequestSuccessConstant), true
	case subcommand == githubAPISubcommandNameConstant:
		return fmt.Sprintf(chooseMessage(starting, githubAPIStartTemplateConstant, githubAPISuccessTemplateConstant), action), true
	default:
		return "", false
	}
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	label := formatCommandLabel(command) + formatter.workingDirectorySuffix(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, label)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, label)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, label, result.ExitCode, formatter.outputSuffix(result))
	default:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, label, formatter.failureText(failure))
	}
}

func (formatter CommandMessageFormatter) workingDirectorySuffix(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

func (formatter CommandMessageFormatter) outputSuffix(result ExecutionResult) string {
	output := strings.TrimSpace(result.StandardError)
	if len(output) == 0 {
		output = strings.TrimSpace(result.StandardOutput)
	}
	if len(output) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(outputSuffixTemplateConstant, output)
}

func (formatter CommandMessageFormatter) failureText(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

func chooseMessage(starting bool, startMessage string, successMessage string) string {
	if starting {
		return startMessage
	}
	return successMessage
}
