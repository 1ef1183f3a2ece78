package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/githubsh/internal/github"
	"github.com/temirov/githubsh/internal/project"
	"github.com/temirov/githubsh/internal/reporting"
	"github.com/temirov/githubsh/internal/workflow"
)

const (
	initCommandUseConstant               = "init"
	initCommandShortConstant             = "Scaffold githubsh configuration, command definitions and the migration counter"
	initForceFlagNameConstant            = "force"
	initForceFlagUsageConstant           = "Overwrite existing configuration and command definition files."
	checkCommandUseConstant              = "check"
	checkCommandShortConstant            = "Verify GitHub authentication, repository access and API quota"
	statusCommandUseConstant             = "status"
	statusCommandShortConstant           = "Show the migration counter and the active session"
	statusJSONFlagNameConstant           = "json"
	statusJSONFlagUsageConstant          = "Print the status as JSON."
	historyCommandUseConstant            = "history"
	historyCommandShortConstant          = "List recent stage runs from the history database"
	historyLimitFlagNameConstant         = "limit"
	historyLimitFlagUsageConstant        = "Maximum number of runs to list."
	historyDefaultLimitConstant          = 20
	historyDisabledMessageConstant       = "run history is disabled (reports.history_database is empty)"
	initRepositoryDetectedTemplate       = "Detected GitHub repository %s\n"
	initCreatedDirectoryTemplate         = "Created directory %s\n"
	initWrittenFileTemplate              = "Wrote %s\n"
	initSkippedFileTemplate              = "Kept existing %s\n"
	initCounterTemplate                  = "Migration counter: %d\n"
	checkAuthenticatedTemplate           = "GitHub authentication: ok (%s)\n"
	checkRepositoryTemplate              = "Repository: %s (default branch %s, %s)\n"
	checkRateLimitTemplate               = "Rate limit: %d/%d remaining, resets at %s\n"
	checkRepositoryPrivateConstant       = "private"
	checkRepositoryPublicConstant        = "public"
	statusProjectRootTemplate            = "Project root: %s\n"
	statusConfigurationTemplate          = "Configuration: %s\n"
	statusEmbeddedConfigurationConstant  = "Configuration: embedded defaults\n"
	statusCounterTemplate                = "Counter: %d\n"
	statusNextMigrationTemplate          = "Next migration: %s (%s)\n"
	statusSessionTemplate                = "Active session: %s at stage %d (%s), migration %s, started %s\n"
	statusNoSessionConstant              = "Active session: none\n"
	statusTimestampLayoutConstant        = "2006-01-02 15:04:05"
	rateLimitTimestampLayoutConstant     = time.RFC3339
	logMessageRepositoryDetectionSkipped = "unable to detect GitHub repository from git remote"
	checkAuthenticationErrorTemplate     = "GitHub authentication failed: %w"
	checkRepositoryErrorTemplate         = "GitHub repository check failed: %w"
	checkRateLimitErrorTemplate          = "GitHub rate limit check failed: %w"
	statusEncodingErrorTemplate          = "unable to encode status: %w"
	jsonIndentConstant                   = "  "
)

func (application *Application) newInitCommand() *cobra.Command {
	var overwrite bool
	command := &cobra.Command{
		Use:   initCommandUseConstant,
		Short: initCommandShortConstant,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runInit(command, overwrite)
		},
	}
	command.Flags().BoolVar(&overwrite, initForceFlagNameConstant, false, initForceFlagUsageConstant)
	return command
}

func (application *Application) runInit(command *cobra.Command, overwrite bool) error {
	executionContext := command.Context()
	output := application.options.Output
	document := application.configuration

	if len(strings.TrimSpace(document.Common.ProjectName)) == 0 {
		document.Common.ProjectName = filepath.Base(application.layout.Root())
	}

	shellExecutor, executorError := application.newShellExecutor()
	if executorError != nil {
		return executorError
	}
	repository, detectionError := application.detectRepository(executionContext, shellExecutor)
	if detectionError != nil {
		application.logger.Warn(logMessageRepositoryDetectionSkipped, zap.Error(detectionError))
	} else {
		document.GitHub.Owner = repository.Owner
		document.GitHub.Repo = repository.Name
		fmt.Fprintf(output, initRepositoryDetectedTemplate, repository.String())
	}

	initializer, initializerError := project.NewInitializer(application.newCounterStore(), application.logger)
	if initializerError != nil {
		return initializerError
	}

	configurationFile := application.configurationFilePath
	if len(strings.TrimSpace(configurationFile)) == 0 {
		configurationFile = configurationFileNameConstant
	}

	result, initializationError := initializer.Initialize(executionContext, project.InitializationOptions{
		ConfigurationFile:     application.layout.Resolve(configurationFile),
		ConfigurationDocument: document,
		MigrationDirectory:    application.layout.Resolve(document.Migration.Directory),
		CommandsFile:          application.layout.Resolve(document.Workflow.CommandsFile),
		CommandsTemplate:      project.DefaultCommandDefinitions(),
		AdditionalDirectories: application.reportDirectories(document.Reports),
		Overwrite:             overwrite,
	})
	if initializationError != nil {
		return initializationError
	}

	for _, directory := range result.CreatedDirectories {
		fmt.Fprintf(output, initCreatedDirectoryTemplate, directory)
	}
	for _, writtenFile := range result.WrittenFiles {
		fmt.Fprintf(output, initWrittenFileTemplate, writtenFile)
	}
	for _, skippedFile := range result.SkippedFiles {
		fmt.Fprintf(output, initSkippedFileTemplate, skippedFile)
	}
	fmt.Fprintf(output, initCounterTemplate, result.CounterValue)
	return nil
}

func (application *Application) reportDirectories(reports ApplicationReportsConfiguration) []string {
	var directories []string
	if directory := application.layout.Resolve(reports.Directory); len(directory) > 0 {
		directories = append(directories, directory)
	}
	for _, filePath := range []string{reports.HistoryDatabase, reports.MetricsFile} {
		if resolvedPath := application.layout.Resolve(filePath); len(resolvedPath) > 0 {
			directories = append(directories, filepath.Dir(resolvedPath))
		}
	}
	return directories
}

func (application *Application) newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   checkCommandUseConstant,
		Short: checkCommandShortConstant,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runCheck(command)
		},
	}
}

func (application *Application) runCheck(command *cobra.Command) error {
	executionContext := command.Context()
	output := application.options.Output

	shellExecutor, executorError := application.newShellExecutor()
	if executorError != nil {
		return executorError
	}
	client, clientError := application.buildGitHubClient(executionContext, shellExecutor)
	if clientError != nil {
		return clientError
	}

	login, authenticationError := client.AuthenticatedUser(executionContext)
	if authenticationError != nil {
		return fmt.Errorf(checkAuthenticationErrorTemplate, authenticationError)
	}
	fmt.Fprintf(output, checkAuthenticatedTemplate, login)

	details, repositoryError := client.RepositoryDetails(executionContext)
	if repositoryError != nil {
		return fmt.Errorf(checkRepositoryErrorTemplate, repositoryError)
	}
	visibility := checkRepositoryPublicConstant
	if details.Private {
		visibility = checkRepositoryPrivateConstant
	}
	fmt.Fprintf(output, checkRepositoryTemplate, details.FullName, details.DefaultBranch, visibility)

	if reporter, supportsRateLimit := client.(github.RateLimitReporter); supportsRateLimit {
		rateLimit, rateLimitError := reporter.RateLimit(executionContext)
		if rateLimitError != nil {
			return fmt.Errorf(checkRateLimitErrorTemplate, rateLimitError)
		}
		resetTime := time.Unix(rateLimit.ResetUnix, 0).Local().Format(rateLimitTimestampLayoutConstant)
		fmt.Fprintf(output, checkRateLimitTemplate, rateLimit.Remaining, rateLimit.Limit, resetTime)
	}
	return nil
}

func (application *Application) newStatusCommand() *cobra.Command {
	var jsonOutput bool
	command := &cobra.Command{
		Use:   statusCommandUseConstant,
		Short: statusCommandShortConstant,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runStatus(command, jsonOutput)
		},
	}
	command.Flags().BoolVar(&jsonOutput, statusJSONFlagNameConstant, false, statusJSONFlagUsageConstant)
	return command
}

func (application *Application) runStatus(command *cobra.Command, jsonOutput bool) error {
	services, servicesError := application.buildWorkflowServices(command.Context(), false)
	if servicesError != nil {
		return servicesError
	}
	defer services.Close()

	status, statusError := services.coordinator.Status(command.Context())
	if statusError != nil {
		return statusError
	}

	output := application.options.Output
	if jsonOutput {
		encoder := json.NewEncoder(output)
		encoder.SetIndent("", jsonIndentConstant)
		if encodeError := encoder.Encode(status); encodeError != nil {
			return fmt.Errorf(statusEncodingErrorTemplate, encodeError)
		}
		return nil
	}

	if projectRoot, available := application.commandContextAccessor.ProjectRoot(command.Context()); available {
		fmt.Fprintf(output, statusProjectRootTemplate, projectRoot)
	}
	if configurationFile, available := application.commandContextAccessor.ConfigurationFilePath(command.Context()); available && len(configurationFile) > 0 {
		fmt.Fprintf(output, statusConfigurationTemplate, configurationFile)
	} else {
		fmt.Fprint(output, statusEmbeddedConfigurationConstant)
	}
	fmt.Fprintf(output, statusCounterTemplate, status.Counter)
	fmt.Fprintf(output, statusNextMigrationTemplate, status.NextMigration.Identifier, status.NextMigration.File)
	if status.Session == nil {
		fmt.Fprint(output, statusNoSessionConstant)
		return nil
	}
	fmt.Fprintf(
		output,
		statusSessionTemplate,
		status.Session.TaskReference,
		status.Session.CurrentStage,
		services.coordinator.StageName(workflow.Stage(status.Session.CurrentStage)),
		status.Session.MigrationIdentifier,
		status.Session.StartedAt.Local().Format(statusTimestampLayoutConstant),
	)
	return nil
}

func (application *Application) newHistoryCommand() *cobra.Command {
	var limit int
	command := &cobra.Command{
		Use:   historyCommandUseConstant,
		Short: historyCommandShortConstant,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runHistory(command, limit)
		},
	}
	command.Flags().IntVar(&limit, historyLimitFlagNameConstant, historyDefaultLimitConstant, historyLimitFlagUsageConstant)
	return command
}

func (application *Application) runHistory(command *cobra.Command, limit int) error {
	databasePath := application.layout.Resolve(application.configuration.Reports.HistoryDatabase)
	if len(databasePath) == 0 {
		fmt.Fprintln(application.options.Output, historyDisabledMessageConstant)
		return nil
	}

	historyStore, openError := reporting.OpenHistoryStore(command.Context(), databasePath)
	if openError != nil {
		return openError
	}
	defer historyStore.Close()

	entries, recentError := historyStore.Recent(command.Context(), limit)
	if recentError != nil {
		return recentError
	}
	return reporting.RenderHistory(application.options.Output, entries)
}
