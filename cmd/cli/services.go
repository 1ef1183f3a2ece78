package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/githubsh/internal/execshell"
	"github.com/temirov/githubsh/internal/github"
	"github.com/temirov/githubsh/internal/githubapi"
	"github.com/temirov/githubsh/internal/githubauth"
	"github.com/temirov/githubsh/internal/githubcli"
	"github.com/temirov/githubsh/internal/gitrepo"
	"github.com/temirov/githubsh/internal/reporting"
	"github.com/temirov/githubsh/internal/state"
	"github.com/temirov/githubsh/internal/ui"
	"github.com/temirov/githubsh/internal/workflow"
)

const (
	commandsFileMissingTemplateConstant     = "command definitions not found at %s (run githubsh init): %w"
	commandsFileLoadTemplateConstant        = "unable to load command definitions: %w"
	gitHubTokenErrorTemplateConstant        = "unable to resolve a GitHub token: %w"
	gitHubRepositoryErrorTemplateConstant   = "unable to determine the GitHub repository: %w"
	logMessageGitHubUnavailableConstant     = "GitHub client unavailable; pull request and issue updates will be skipped"
	logMessageReportSinkUnavailableConstant = "report sink unavailable"
	logMessageReportSinkCloseConstant       = "unable to close report sink"
	logMessageGitHubBackendConstant         = "GitHub backend selected"
	logFieldBackendConstant                 = "backend"
	logFieldRepositoryConstant              = "repository"
	logFieldTokenSourceConstant             = "token_source"
	logFieldSinkConstant                    = "sink"
	backendGitHubCLIConstant                = "gh"
	backendGitHubAPIConstant                = "api"
	sinkReportDirectoryConstant             = "report_directory"
	sinkHistoryDatabaseConstant             = "history_database"
	sinkMetricsFileConstant                 = "metrics_file"
)

type gitHubBackend interface {
	github.Client
	github.Inspector
}

type workflowServices struct {
	coordinator *workflow.Coordinator
	closers     []io.Closer
	logger      *zap.Logger
}

func (services *workflowServices) Close() {
	for index := len(services.closers) - 1; index >= 0; index-- {
		if closeError := services.closers[index].Close(); closeError != nil {
			services.logger.Warn(logMessageReportSinkCloseConstant, zap.Error(closeError))
		}
	}
}

func (application *Application) newShellExecutor() (*execshell.ShellExecutor, error) {
	return execshell.NewShellExecutorWithObserver(
		application.logger,
		application.options.CommandRunner,
		ui.NewConsoleCommandEventLogger(application.logger, application.options.Output),
	)
}

func (application *Application) newCounterStore() *state.CounterStore {
	return state.NewCounterStore(
		application.layout.Resolve(application.configuration.Migration.CounterFile),
		application.configuration.Workflow.LockTimeout,
	)
}

func (application *Application) newSessionStore() *state.SessionStore {
	return state.NewSessionStore(
		application.layout.Resolve(application.configuration.Workflow.SessionFile),
		application.configuration.Workflow.LockTimeout,
	)
}

// buildWorkflowServices wires the Coordinator. When requireCommands is false a missing commands file yields
// a Coordinator that can only report status.
func (application *Application) buildWorkflowServices(executionContext context.Context, requireCommands bool) (*workflowServices, error) {
	definitions, definitionsError := application.loadCommandDefinitions(requireCommands)
	if definitionsError != nil {
		return nil, definitionsError
	}
	templates, templatesError := definitions.Templates()
	if templatesError != nil {
		return nil, fmt.Errorf(commandsFileLoadTemplateConstant, templatesError)
	}
	if requireCommands {
		if validationError := workflow.ValidateDefinitions(templates); validationError != nil {
			return nil, fmt.Errorf(commandsFileLoadTemplateConstant, validationError)
		}
	}
	resolver, resolverError := workflow.NewCommandResolver(templates, application.options.Clock)
	if resolverError != nil {
		return nil, fmt.Errorf(commandsFileLoadTemplateConstant, resolverError)
	}

	shellExecutor, executorError := application.newShellExecutor()
	if executorError != nil {
		return nil, executorError
	}
	stageExecutor, stageExecutorError := workflow.NewStageExecutor(workflow.StageExecutorDependencies{
		Runner:           shellExecutor,
		Logger:           application.logger,
		WorkingDirectory: application.layout.Root(),
		Sleep:            application.options.Sleep,
		Clock:            application.options.Clock,
	})
	if stageExecutorError != nil {
		return nil, stageExecutorError
	}

	services := &workflowServices{logger: application.logger}
	dependencies := workflow.CoordinatorDependencies{
		Counter:  application.newCounterStore(),
		Sessions: application.newSessionStore(),
		Resolver: resolver,
		Executor: stageExecutor,
		Logger:   application.logger,
		Clock:    application.options.Clock,
	}

	if requireCommands {
		client, clientError := application.buildGitHubClient(executionContext, shellExecutor)
		if clientError != nil {
			application.logger.Warn(logMessageGitHubUnavailableConstant, zap.Error(clientError))
		} else {
			dependencies.GitHub = client
		}
		dependencies.Sinks = application.buildReportSinks(executionContext, services)
	}

	stageNames := make(map[workflow.Stage]string, len(workflow.WorkflowStages))
	for _, stage := range workflow.WorkflowStages {
		stageNames[stage] = definitions.StageName(stage)
	}

	coordinator, coordinatorError := workflow.NewCoordinator(dependencies, workflow.CoordinatorOptions{
		Namer: workflow.MigrationNamer{
			Prefix:    application.configuration.Migration.Prefix,
			Extension: application.configuration.Migration.Extension,
		},
		Content: workflow.ContentOptions{
			BaseBranch:         application.configuration.GitHub.BaseBranch,
			MigrationDirectory: application.configuration.Migration.Directory,
		},
		StageNames:           stageNames,
		CloseIssueOnFinalize: application.configuration.Workflow.CloseIssueOnFinalize,
	})
	if coordinatorError != nil {
		services.Close()
		return nil, coordinatorError
	}
	services.coordinator = coordinator
	return services, nil
}

func (application *Application) loadCommandDefinitions(requireCommands bool) (workflow.CommandDefinitions, error) {
	commandsFile := application.layout.Resolve(application.configuration.Workflow.CommandsFile)
	definitions, loadError := workflow.LoadCommandDefinitions(commandsFile)
	if loadError == nil {
		return definitions, nil
	}
	if errors.Is(loadError, fs.ErrNotExist) {
		if !requireCommands {
			return workflow.CommandDefinitions{}, nil
		}
		return workflow.CommandDefinitions{}, fmt.Errorf(commandsFileMissingTemplateConstant, commandsFile, loadError)
	}
	return workflow.CommandDefinitions{}, fmt.Errorf(commandsFileLoadTemplateConstant, loadError)
}

func (application *Application) buildReportSinks(executionContext context.Context, services *workflowServices) []workflow.ReportSink {
	reportsConfiguration := application.configuration.Reports
	sinks := make([]workflow.ReportSink, 0, 3)

	if directory := application.layout.Resolve(reportsConfiguration.Directory); len(directory) > 0 {
		fileSink, sinkError := reporting.NewFileSink(directory)
		if sinkError != nil {
			application.logger.Warn(logMessageReportSinkUnavailableConstant, zap.String(logFieldSinkConstant, sinkReportDirectoryConstant), zap.Error(sinkError))
		} else {
			sinks = append(sinks, fileSink)
		}
	}

	var totals reporting.RunTotalsSource
	if databasePath := application.layout.Resolve(reportsConfiguration.HistoryDatabase); len(databasePath) > 0 {
		historyStore, openError := reporting.OpenHistoryStore(executionContext, databasePath)
		if openError != nil {
			application.logger.Warn(logMessageReportSinkUnavailableConstant, zap.String(logFieldSinkConstant, sinkHistoryDatabaseConstant), zap.Error(openError))
		} else {
			sinks = append(sinks, historyStore)
			services.closers = append(services.closers, historyStore)
			totals = historyStore
		}
	}

	if metricsPath := application.layout.Resolve(reportsConfiguration.MetricsFile); len(metricsPath) > 0 {
		recorder, recorderError := reporting.NewMetricsRecorder(metricsPath, totals)
		if recorderError != nil {
			application.logger.Warn(logMessageReportSinkUnavailableConstant, zap.String(logFieldSinkConstant, sinkMetricsFileConstant), zap.Error(recorderError))
		} else {
			sinks = append(sinks, recorder)
		}
	}

	return sinks
}

// buildGitHubClient selects the gh-backed client or the REST client according to github.use_gh_cli.
func (application *Application) buildGitHubClient(executionContext context.Context, shellExecutor *execshell.ShellExecutor) (gitHubBackend, error) {
	gitHubConfiguration := application.configuration.GitHub
	repository := github.Repository{
		Owner: strings.TrimSpace(gitHubConfiguration.Owner),
		Name:  strings.TrimSpace(gitHubConfiguration.Repo),
	}

	if gitHubConfiguration.UseGitHubCLI {
		if !repository.IsZero() {
			if validationError := repository.Validate(); validationError != nil {
				return nil, fmt.Errorf(gitHubRepositoryErrorTemplateConstant, validationError)
			}
		}
		application.logger.Debug(logMessageGitHubBackendConstant, zap.String(logFieldBackendConstant, backendGitHubCLIConstant), zap.String(logFieldRepositoryConstant, repository.String()))
		return githubcli.NewClient(shellExecutor, repository, application.layout.Root())
	}

	if repository.IsZero() {
		detectedRepository, detectionError := application.detectRepository(executionContext, shellExecutor)
		if detectionError != nil {
			return nil, fmt.Errorf(gitHubRepositoryErrorTemplateConstant, detectionError)
		}
		repository = detectedRepository
	}

	tokenResolver := githubauth.Resolver{
		Environment: application.options.Environment,
		TokenFile:   application.layout.Resolve(gitHubConfiguration.TokenFile),
	}
	token, tokenError := tokenResolver.Resolve()
	if tokenError != nil {
		return nil, fmt.Errorf(gitHubTokenErrorTemplateConstant, tokenError)
	}

	application.logger.Debug(
		logMessageGitHubBackendConstant,
		zap.String(logFieldBackendConstant, backendGitHubAPIConstant),
		zap.String(logFieldRepositoryConstant, repository.String()),
		zap.String(logFieldTokenSourceConstant, token.Source),
	)
	return githubapi.NewClient(githubapi.Configuration{
		BaseURL:    gitHubConfiguration.APIBaseURL,
		Token:      token.Value,
		Repository: repository,
		Timeout:    gitHubConfiguration.RequestTimeout,
	}, application.options.HTTPClient)
}

func (application *Application) detectRepository(executionContext context.Context, shellExecutor *execshell.ShellExecutor) (github.Repository, error) {
	detector, detectorError := gitrepo.NewRemoteDetector(shellExecutor, application.configuration.GitHub.Remote)
	if detectorError != nil {
		return github.Repository{}, detectorError
	}
	return detector.DetectRepository(executionContext, application.layout.Root())
}
