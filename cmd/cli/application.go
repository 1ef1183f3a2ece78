package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/temirov/githubsh/internal/execshell"
	"github.com/temirov/githubsh/internal/githubapi"
	"github.com/temirov/githubsh/internal/project"
	"github.com/temirov/githubsh/internal/reporting"
	"github.com/temirov/githubsh/internal/utils"
	"github.com/temirov/githubsh/internal/workflow"
)

const (
	applicationUseConstant                  = "githubsh <task_reference> <stage>"
	applicationShortDescriptionConstant     = "Drive a staged migration workflow backed by GitHub issues and pull requests"
	applicationLongDescriptionConstant      = "githubsh runs the configured shell commands for each workflow stage, tracks the migration counter and session, and keeps the GitHub issue and pull request in step.\n\nStage 0 opens the tracking issue, stages 1-4 run Preparation, Implementation, Testing and Finalization."
	applicationExampleConstant              = "  githubsh \"Issue #101\" 0\n  githubsh \"Issue #101\" 1\n  githubsh status"
	configFileFlagNameConstant              = "config"
	configFileFlagUsageConstant             = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                = "log-level"
	logLevelFlagUsageConstant               = "Override the configured log level."
	logFormatFlagNameConstant               = "log-format"
	logFormatFlagUsageConstant              = "Override the configured log format (structured or console)."
	closeIssueFlagNameConstant              = "close-issue"
	closeIssueFlagUsageConstant             = "Close the tracking issue after the finalization stage."
	commonConfigurationKeyConstant          = "common"
	commonLogLevelConfigKeyConstant         = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant        = commonConfigurationKeyConstant + ".log_format"
	environmentPrefixConstant               = "GITHUBSH"
	configurationNameConstant               = ".githubsh"
	configurationTypeConstant               = "yaml"
	configurationFileNameConstant           = configurationNameConstant + "." + configurationTypeConstant
	userConfigurationDirectoryConstant      = "githubsh"
	configurationInitializedMessageConstant = "configuration initialized"
	configurationLogLevelFieldConstant      = "log_level"
	configurationLogFormatFieldConstant     = "log_format"
	configurationFileFieldConstant          = "config_file"
	configurationProjectRootFieldConstant   = "project_root"
	configurationLoadErrorTemplateConstant  = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant     = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant         = "unable to flush logger: %w"
	workingDirectoryErrorTemplateConstant   = "unable to determine working directory: %w"
	summaryRenderErrorTemplateConstant      = "unable to render stage summary: %w"
	issueCreatedTemplateConstant            = "Created issue #%d: %s\n"
	missingStageArgumentMessageConstant     = "stage number required: githubsh <task_reference> <stage>"
	rootCommandInfoMessageConstant          = "githubsh stage requested"
	logFieldTaskReferenceConstant           = "task_reference"
	logFieldStageConstant                   = "stage"
	maximumRootArgumentsConstant            = 2
)

// ErrStageArgumentMissing indicates a task reference supplied without a stage number.
var ErrStageArgumentMissing = errors.New(missingStageArgumentMessageConstant)

// ApplicationOptions customizes the collaborators an Application uses. Zero values select the process defaults.
type ApplicationOptions struct {
	WorkingDirectory string
	Output           io.Writer
	ErrorOutput      io.Writer
	// Environment supplies GitHub tokens ahead of the process environment.
	Environment   map[string]string
	CommandRunner execshell.CommandRunner
	HTTPClient    githubapi.HTTPClient
	Sleep         func(time.Duration)
	Clock         func() time.Time
}

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand            *cobra.Command
	options                ApplicationOptions
	configurationLoader    *utils.ConfigurationLoader
	loggerFactory          *utils.LoggerFactory
	logger                 *zap.Logger
	loggerOutputs          utils.LoggerOutputs
	configuration          ApplicationConfiguration
	configurationMetadata  utils.LoadedConfiguration
	configurationFilePath  string
	logLevelFlagValue      string
	logFormatFlagValue     string
	closeIssueFlagValue    bool
	layout                 *project.Layout
	commandContextAccessor utils.CommandContextAccessor
}

// NewApplication assembles a CLI application bound to the process environment.
func NewApplication() *Application {
	return NewApplicationWithOptions(ApplicationOptions{})
}

// NewApplicationWithOptions assembles a CLI application using the supplied collaborators.
func NewApplicationWithOptions(options ApplicationOptions) *Application {
	if options.Output == nil {
		options.Output = os.Stdout
	}
	if options.ErrorOutput == nil {
		options.ErrorOutput = os.Stderr
	}
	if options.CommandRunner == nil {
		options.CommandRunner = execshell.NewOSCommandRunner()
	}
	if options.Sleep == nil {
		options.Sleep = time.Sleep
	}
	if options.Clock == nil {
		options.Clock = time.Now
	}

	application := &Application{
		options:                options,
		loggerFactory:          utils.NewLoggerFactoryWithOutput(zapcore.AddSync(options.ErrorOutput)),
		logger:                 zap.NewNop(),
		commandContextAccessor: utils.NewCommandContextAccessor(),
	}

	cobraCommand := &cobra.Command{
		Use:           applicationUseConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		Example:       applicationExampleConstant,
		Args:          cobra.MaximumNArgs(maximumRootArgumentsConstant),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runRootCommand(command, arguments)
		},
	}

	cobraCommand.SetContext(context.Background())
	cobraCommand.SetOut(options.Output)
	cobraCommand.SetErr(options.ErrorOutput)
	cobraCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)
	cobraCommand.Flags().BoolVar(&application.closeIssueFlagValue, closeIssueFlagNameConstant, false, closeIssueFlagUsageConstant)

	cobraCommand.AddCommand(
		application.newInitCommand(),
		application.newCheckCommand(),
		application.newStatusCommand(),
		application.newHistoryCommand(),
	)

	application.rootCommand = cobraCommand

	return application
}

// SetArguments replaces the arguments parsed by Execute.
func (application *Application) SetArguments(arguments []string) {
	application.rootCommand.SetArgs(arguments)
}

// Execute runs the configured Cobra command hierarchy and ensures logger flushing.
func (application *Application) Execute() error {
	signalContext, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	executionError := application.rootCommand.ExecuteContext(signalContext)
	if syncError := application.flushLogger(); syncError != nil && executionError == nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute runs the githubsh command against the process environment.
func Execute() error {
	return NewApplication().Execute()
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	workingDirectory, workingDirectoryError := application.workingDirectory()
	if workingDirectoryError != nil {
		return fmt.Errorf(workingDirectoryErrorTemplateConstant, workingDirectoryError)
	}
	projectRoot, rootError := project.FindRoot(workingDirectory)
	if rootError != nil {
		return fmt.Errorf(workingDirectoryErrorTemplateConstant, rootError)
	}
	application.layout = project.NewLayout(projectRoot)

	application.configurationLoader = utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		configurationSearchPaths(projectRoot, workingDirectory),
	)
	application.configurationLoader.SetEmbeddedConfiguration(EmbeddedDefaultConfiguration())

	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:  string(utils.LogLevelInfo),
		commonLogFormatConfigKeyConstant: string(utils.LogFormatConsole),
	}

	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}

	application.configurationMetadata = loadedConfiguration

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}

	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}

	if application.closeIssueFlagValue {
		application.configuration.Workflow.CloseIssueOnFinalize = true
	}

	loggerOutputs, loggerCreationError := application.loggerFactory.CreateLoggerOutputs(
		utils.LogLevel(application.configuration.Common.LogLevel),
		utils.LogFormat(application.configuration.Common.LogFormat),
		application.configuration.Common.logFileConfiguration(application.layout.Resolve(application.configuration.Common.LogFile)),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	application.loggerOutputs = loggerOutputs
	application.logger = loggerOutputs.DiagnosticLogger

	executionContext := command.Context()
	if executionContext == nil {
		executionContext = context.Background()
	}
	executionContext = application.commandContextAccessor.WithConfigurationFilePath(executionContext, application.configurationMetadata.ConfigFileUsed)
	executionContext = application.commandContextAccessor.WithProjectRoot(executionContext, projectRoot)
	command.SetContext(executionContext)

	application.logger.Debug(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
		zap.String(configurationProjectRootFieldConstant, projectRoot),
	)

	return nil
}

func (application *Application) runRootCommand(command *cobra.Command, arguments []string) error {
	switch len(arguments) {
	case 0:
		return command.Help()
	case 1:
		return ErrStageArgumentMissing
	}

	taskReference := strings.TrimSpace(arguments[0])
	stage, stageError := workflow.ParseStage(arguments[1])
	if stageError != nil {
		return stageError
	}

	application.logger.Info(
		rootCommandInfoMessageConstant,
		zap.String(logFieldTaskReferenceConstant, taskReference),
		zap.Int(logFieldStageConstant, int(stage)),
	)

	if stage == workflow.StageIssue {
		return application.runIssueStage(command.Context(), taskReference)
	}
	return application.runWorkflowStage(command.Context(), taskReference, stage)
}

func (application *Application) runIssueStage(executionContext context.Context, taskReference string) error {
	shellExecutor, executorError := application.newShellExecutor()
	if executorError != nil {
		return executorError
	}
	client, clientError := application.buildGitHubClient(executionContext, shellExecutor)
	if clientError != nil {
		return clientError
	}

	creator := workflow.IssueCreator{
		Client:       client,
		BodyTemplate: application.configuration.GitHub.IssueTemplate,
		Labels:       application.configuration.GitHub.IssueLabels,
		Clock:        application.options.Clock,
		Logger:       application.logger,
	}
	issue, createError := creator.Create(executionContext, taskReference)
	if createError != nil {
		return createError
	}

	fmt.Fprintf(application.options.Output, issueCreatedTemplateConstant, issue.Number, issue.URL)
	return nil
}

func (application *Application) runWorkflowStage(executionContext context.Context, taskReference string, stage workflow.Stage) error {
	services, servicesError := application.buildWorkflowServices(executionContext, true)
	if servicesError != nil {
		return servicesError
	}
	defer services.Close()

	report, executionError := services.coordinator.Execute(executionContext, taskReference, stage)
	if renderError := application.renderSummary(report); renderError != nil && executionError == nil {
		return renderError
	}
	return executionError
}

func (application *Application) renderSummary(report workflow.ExecutionReport) error {
	if report.StartedAt.IsZero() {
		return nil
	}
	if renderError := reporting.RenderSummary(application.options.Output, report); renderError != nil {
		return fmt.Errorf(summaryRenderErrorTemplateConstant, renderError)
	}
	return nil
}

func (application *Application) workingDirectory() (string, error) {
	if len(strings.TrimSpace(application.options.WorkingDirectory)) > 0 {
		return filepath.Abs(application.options.WorkingDirectory)
	}
	return os.Getwd()
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	if flag := findPersistentFlag(command, flagName); flag != nil {
		return flag.Changed
	}

	return false
}

func findPersistentFlag(command *cobra.Command, flagName string) *pflag.Flag {
	for currentCommand := command; currentCommand != nil; currentCommand = currentCommand.Parent() {
		if flag := currentCommand.PersistentFlags().Lookup(flagName); flag != nil {
			return flag
		}
	}
	return nil
}

func configurationSearchPaths(projectRoot string, workingDirectory string) []string {
	searchPaths := []string{projectRoot}
	if workingDirectory != projectRoot {
		searchPaths = append(searchPaths, workingDirectory)
	}
	if userConfigurationDirectory, directoryError := os.UserConfigDir(); directoryError == nil {
		searchPaths = append(searchPaths, filepath.Join(userConfigurationDirectory, userConfigurationDirectoryConstant))
	}
	return searchPaths
}

func (application *Application) flushLogger() error {
	if application.loggerOutputs.DiagnosticLogger == nil {
		return nil
	}

	syncError := application.loggerOutputs.DiagnosticLogger.Sync()
	closeError := application.loggerOutputs.Close()
	switch {
	case syncError == nil:
		return closeError
	case errors.Is(syncError, syscall.ENOTSUP):
		return closeError
	case errors.Is(syncError, syscall.EINVAL):
		return closeError
	case errors.Is(syncError, syscall.ENOTTY):
		return closeError
	default:
		return syncError
	}
}
