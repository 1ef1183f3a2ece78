package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/temirov/githubsh/internal/github"
	"github.com/temirov/githubsh/internal/state"
)

const (
	coordinatorDependenciesMessageConstant   = "workflow coordinator requires counter, session, resolver, and executor dependencies"
	taskReferenceRequiredMessageConstant     = "task reference must be provided"
	counterReadErrorTemplateConstant         = "failed to read migration counter: %w"
	counterAdvanceErrorTemplateConstant      = "failed to advance migration counter: %w"
	sessionLoadErrorTemplateConstant         = "failed to load session: %w"
	sessionSaveErrorTemplateConstant         = "failed to save session: %w"
	sessionClearErrorTemplateConstant        = "failed to clear session: %w"
	gitHubClientMissingTemplateConstant      = "GitHub client not configured; skipping %s"
	pullRequestFailureTemplateConstant       = "failed to create pull request: %v"
	issueCommentFailureTemplateConstant      = "failed to add issue comment: %v"
	issueCloseFailureTemplateConstant        = "failed to close issue: %v"
	issueNumberMissingTemplateConstant       = "could not extract issue number from %s; skipping %s"
	reportSinkFailureTemplateConstant        = "failed to record execution report: %v"
	pullRequestActionConstant                = "pull request creation"
	issueCommentActionConstant               = "issue comment"
	issueCloseActionConstant                 = "issue close"
	logMessageStageStartedConstant           = "workflow stage started"
	logMessageStageCompletedConstant         = "workflow stage completed"
	logMessageStageFailedConstant            = "workflow stage failed"
	logMessageSideEffectWarningConstant      = "workflow side effect failed"
	logMessagePullRequestCreatedConstant     = "pull request created"
	logMessageIssueCommentedConstant         = "issue comment added"
	logMessageIssueClosedConstant            = "issue closed"
	logFieldRunIdentifierConstant            = "run_id"
	logFieldTaskReferenceConstant            = "task_reference"
	logFieldStageConstant                    = "stage"
	logFieldMigrationConstant                = "migration"
	logFieldURLConstant                      = "url"
	logFieldIssueNumberConstant              = "issue_number"
	logFieldWarningConstant                  = "warning"
	logFieldDurationConstant                 = "duration"
	stageStartedDetailTemplateConstant       = "stage %d (%s) for %s"
	counterAdvancedDetailTemplateConstant    = "counter advanced to %d"
	pullRequestCreatedDetailTemplateConstant = "#%d %s"
)

var (
	// ErrCoordinatorDependenciesMissing indicates a Coordinator constructed without its required collaborators.
	ErrCoordinatorDependenciesMissing = errors.New(coordinatorDependenciesMessageConstant)
	// ErrTaskReferenceRequired indicates an empty task reference.
	ErrTaskReferenceRequired = errors.New(taskReferenceRequiredMessageConstant)
)

// CounterStore persists the migration counter.
type CounterStore interface {
	Read(executionContext context.Context) (int, error)
	Advance(executionContext context.Context, current int) error
}

// SessionStore persists the in-flight session.
type SessionStore interface {
	Load(executionContext context.Context) (state.Session, bool, error)
	Save(executionContext context.Context, session state.Session) error
	Clear(executionContext context.Context) error
}

// CommandSource resolves the commands for a stage.
type CommandSource interface {
	Resolve(stage Stage, migrationIdentifier string, migrationFile string, taskReference string) ([]string, error)
}

// StageRunner executes resolved commands.
type StageRunner interface {
	Run(executionContext context.Context, commands []string) (ExecutionLog, error)
}

// GitHubClient performs the pull request and issue updates triggered by the workflow.
type GitHubClient interface {
	CreatePullRequest(executionContext context.Context, request github.PullRequestRequest) (github.PullRequestResult, error)
	AddIssueComment(executionContext context.Context, issueNumber int, body string) (github.CommentResult, error)
	CloseIssue(executionContext context.Context, issueNumber int) (github.IssueResult, error)
}

// CoordinatorDependencies wires the collaborators of a Coordinator. GitHub and Sinks are optional.
type CoordinatorDependencies struct {
	Counter       CounterStore
	Sessions      SessionStore
	Resolver      CommandSource
	Executor      StageRunner
	GitHub        GitHubClient
	Sinks         []ReportSink
	Logger        *zap.Logger
	Clock         func() time.Time
	RunIdentifier func() string
}

// CoordinatorOptions tune naming and post-stage behavior.
type CoordinatorOptions struct {
	Namer                MigrationNamer
	Content              ContentOptions
	StageNames           map[Stage]string
	CloseIssueOnFinalize bool
}

// StatusReport describes the persisted workflow state.
type StatusReport struct {
	Counter       int               `json:"counter"`
	NextMigration MigrationArtifact `json:"next_migration"`
	Session       *state.Session    `json:"session,omitempty"`
}

// Coordinator executes workflow stages and maintains the counter and session.
type Coordinator struct {
	dependencies CoordinatorDependencies
	options      CoordinatorOptions
}

type stageRun struct {
	report   ExecutionReport
	recorder *executionLogRecorder
	logger   *zap.Logger
}

// NewCoordinator validates dependencies and constructs a Coordinator.
func NewCoordinator(dependencies CoordinatorDependencies, options CoordinatorOptions) (*Coordinator, error) {
	if dependencies.Counter == nil || dependencies.Sessions == nil || dependencies.Resolver == nil || dependencies.Executor == nil {
		return nil, ErrCoordinatorDependenciesMissing
	}
	if dependencies.Logger == nil {
		dependencies.Logger = zap.NewNop()
	}
	if dependencies.Clock == nil {
		dependencies.Clock = time.Now
	}
	if dependencies.RunIdentifier == nil {
		dependencies.RunIdentifier = uuid.NewString
	}
	return &Coordinator{dependencies: dependencies, options: options}, nil
}

// StageName returns the configured display name for the stage.
func (coordinator *Coordinator) StageName(stage Stage) string {
	if name, exists := coordinator.options.StageNames[stage]; exists && len(strings.TrimSpace(name)) > 0 {
		return name
	}
	return stage.Name()
}

// Execute runs one stage for the task. The report is populated for failures as well as successes.
func (coordinator *Coordinator) Execute(executionContext context.Context, taskReference string, stage Stage) (ExecutionReport, error) {
	startedAt := coordinator.dependencies.Clock()
	run := &stageRun{
		report: ExecutionReport{
			RunID:         coordinator.dependencies.RunIdentifier(),
			TaskReference: taskReference,
			Stage:         stage,
			StageName:     coordinator.StageName(stage),
			StartedAt:     startedAt,
		},
		recorder: &executionLogRecorder{clock: coordinator.dependencies.Clock},
	}
	run.logger = coordinator.dependencies.Logger.With(
		zap.String(logFieldRunIdentifierConstant, run.report.RunID),
		zap.String(logFieldTaskReferenceConstant, taskReference),
		zap.Int(logFieldStageConstant, int(stage)),
	)

	executionError := coordinator.executeStage(executionContext, run)
	coordinator.finish(executionContext, run, executionError)
	return run.report, executionError
}

func (coordinator *Coordinator) executeStage(executionContext context.Context, run *stageRun) error {
	stage := run.report.Stage
	taskReference := run.report.TaskReference
	if !stage.IsWorkflowStage() {
		return UnknownStageError{Stage: stage}
	}
	if len(strings.TrimSpace(taskReference)) == 0 {
		return ErrTaskReferenceRequired
	}

	run.logger.Info(logMessageStageStartedConstant)
	run.recorder.record(EventStageStarted, fmt.Sprintf(stageStartedDetailTemplateConstant, int(stage), run.report.StageName, taskReference))

	session, sessionError := coordinator.prepareSession(executionContext, run)
	if sessionError != nil {
		return sessionError
	}
	artifact := MigrationArtifact{Identifier: session.MigrationIdentifier, File: session.MigrationFile, Sequence: session.Sequence}
	run.report.Migration = artifact

	commands, resolveError := coordinator.dependencies.Resolver.Resolve(stage, artifact.Identifier, artifact.File, taskReference)
	if resolveError != nil {
		return resolveError
	}

	commandLog, runError := coordinator.dependencies.Executor.Run(executionContext, commands)
	run.recorder.entries = append(run.recorder.entries, commandLog...)
	if runError != nil {
		return runError
	}

	if stage == StageFinalization {
		return coordinator.finalize(executionContext, run, artifact)
	}

	session.CurrentStage = int(stage)
	if saveError := coordinator.dependencies.Sessions.Save(executionContext, session); saveError != nil {
		return fmt.Errorf(sessionSaveErrorTemplateConstant, saveError)
	}
	run.recorder.record(EventSessionSaved, session.MigrationIdentifier)

	if stage == StageTesting {
		coordinator.openPullRequest(executionContext, run, artifact)
	}
	return nil
}

// prepareSession creates a fresh session for stage 1 and loads the matching session for later stages.
// The returned session is only persisted after the stage's commands succeed.
func (coordinator *Coordinator) prepareSession(executionContext context.Context, run *stageRun) (state.Session, error) {
	stage := run.report.Stage
	taskReference := run.report.TaskReference

	if stage == StagePreparation {
		counterValue, readError := coordinator.dependencies.Counter.Read(executionContext)
		if readError != nil {
			return state.Session{}, fmt.Errorf(counterReadErrorTemplateConstant, readError)
		}
		artifact := coordinator.options.Namer.Artifact(counterValue, run.report.StartedAt)
		return state.Session{
			TaskReference:       taskReference,
			MigrationIdentifier: artifact.Identifier,
			MigrationFile:       artifact.File,
			Sequence:            artifact.Sequence,
			StartedAt:           run.report.StartedAt,
			CurrentStage:        int(StagePreparation),
		}, nil
	}

	session, found, loadError := coordinator.dependencies.Sessions.Load(executionContext)
	if loadError != nil {
		return state.Session{}, fmt.Errorf(sessionLoadErrorTemplateConstant, loadError)
	}
	if !found {
		return state.Session{}, NoActiveSessionError{TaskReference: taskReference, Stage: stage}
	}
	if session.TaskReference != taskReference {
		return state.Session{}, TaskMismatchError{SessionTaskReference: session.TaskReference, TaskReference: taskReference, Stage: stage}
	}
	return session, nil
}

func (coordinator *Coordinator) finalize(executionContext context.Context, run *stageRun, artifact MigrationArtifact) error {
	counterValue, readError := coordinator.dependencies.Counter.Read(executionContext)
	if readError != nil {
		return fmt.Errorf(counterReadErrorTemplateConstant, readError)
	}
	if advanceError := coordinator.dependencies.Counter.Advance(executionContext, counterValue); advanceError != nil {
		return fmt.Errorf(counterAdvanceErrorTemplateConstant, advanceError)
	}
	run.recorder.record(EventCounterAdvanced, fmt.Sprintf(counterAdvancedDetailTemplateConstant, counterValue+1))

	if clearError := coordinator.dependencies.Sessions.Clear(executionContext); clearError != nil {
		return fmt.Errorf(sessionClearErrorTemplateConstant, clearError)
	}
	run.recorder.record(EventSessionCleared, artifact.Identifier)

	issueNumber, issueNumberFound := coordinator.issueNumber(run, issueCommentActionConstant)
	if !issueNumberFound {
		return nil
	}
	coordinator.commentOnIssue(executionContext, run, artifact, issueNumber)
	if coordinator.options.CloseIssueOnFinalize {
		coordinator.closeIssue(executionContext, run, issueNumber)
	}
	return nil
}

func (coordinator *Coordinator) openPullRequest(executionContext context.Context, run *stageRun, artifact MigrationArtifact) {
	if coordinator.dependencies.GitHub == nil {
		coordinator.warn(run, fmt.Sprintf(gitHubClientMissingTemplateConstant, pullRequestActionConstant))
		return
	}

	request := BuildPullRequest(coordinator.options.Content, run.report.TaskReference, artifact, coordinator.dependencies.Clock())
	pullRequest, createError := coordinator.dependencies.GitHub.CreatePullRequest(executionContext, request)
	if createError != nil {
		coordinator.warn(run, fmt.Sprintf(pullRequestFailureTemplateConstant, createError))
		return
	}

	run.report.PullRequest = &PullRequestSummary{Number: pullRequest.Number, URL: pullRequest.URL}
	run.recorder.record(EventPullRequestCreated, fmt.Sprintf(pullRequestCreatedDetailTemplateConstant, pullRequest.Number, pullRequest.URL))
	run.logger.Info(logMessagePullRequestCreatedConstant, zap.String(logFieldURLConstant, pullRequest.URL))
}

func (coordinator *Coordinator) issueNumber(run *stageRun, action string) (int, bool) {
	if coordinator.dependencies.GitHub == nil {
		coordinator.warn(run, fmt.Sprintf(gitHubClientMissingTemplateConstant, action))
		return 0, false
	}
	issueNumber, found := ExtractIssueNumber(run.report.TaskReference)
	if !found {
		coordinator.warn(run, fmt.Sprintf(issueNumberMissingTemplateConstant, run.report.TaskReference, action))
		return 0, false
	}
	return issueNumber, true
}

func (coordinator *Coordinator) commentOnIssue(executionContext context.Context, run *stageRun, artifact MigrationArtifact, issueNumber int) {
	body := BuildIssueComment(coordinator.options.Content, artifact, coordinator.options.StageNames, coordinator.dependencies.Clock())
	comment, commentError := coordinator.dependencies.GitHub.AddIssueComment(executionContext, issueNumber, body)
	if commentError != nil {
		coordinator.warn(run, fmt.Sprintf(issueCommentFailureTemplateConstant, commentError))
		return
	}

	run.report.IssueComment = &IssueCommentSummary{URL: comment.URL}
	run.recorder.record(EventIssueCommented, comment.URL)
	run.logger.Info(logMessageIssueCommentedConstant, zap.Int(logFieldIssueNumberConstant, issueNumber), zap.String(logFieldURLConstant, comment.URL))
}

func (coordinator *Coordinator) closeIssue(executionContext context.Context, run *stageRun, issueNumber int) {
	if _, closeError := coordinator.dependencies.GitHub.CloseIssue(executionContext, issueNumber); closeError != nil {
		coordinator.warn(run, fmt.Sprintf(issueCloseFailureTemplateConstant, closeError))
		return
	}

	run.report.IssueClosed = true
	run.recorder.record(EventIssueClosed, issueNumber)
	run.logger.Info(logMessageIssueClosedConstant, zap.Int(logFieldIssueNumberConstant, issueNumber))
}

func (coordinator *Coordinator) warn(run *stageRun, message string) {
	run.report.Warnings = append(run.report.Warnings, message)
	run.recorder.record(EventWarning, message)
	run.logger.Warn(logMessageSideEffectWarningConstant, zap.String(logFieldWarningConstant, message))
}

func (coordinator *Coordinator) finish(executionContext context.Context, run *stageRun, executionError error) {
	if executionError != nil {
		run.report.Status = ReportStatusFailed
		run.report.Error = executionError.Error()
		run.recorder.record(EventStageFailed, executionError.Error())
	} else {
		run.report.Status = ReportStatusSuccess
		run.recorder.record(EventStageCompleted, run.report.StageName)
	}

	run.report.FinishedAt = coordinator.dependencies.Clock()
	run.report.DurationSeconds = run.report.FinishedAt.Sub(run.report.StartedAt).Seconds()
	run.report.Log = run.recorder.log()

	if executionError != nil {
		run.logger.Error(logMessageStageFailedConstant, zap.Error(executionError))
	} else {
		run.logger.Info(logMessageStageCompletedConstant,
			zap.String(logFieldMigrationConstant, run.report.Migration.Identifier),
			zap.Duration(logFieldDurationConstant, run.report.FinishedAt.Sub(run.report.StartedAt)),
		)
	}

	for _, sink := range coordinator.dependencies.Sinks {
		if sink == nil {
			continue
		}
		if recordError := sink.Record(executionContext, run.report); recordError != nil {
			message := fmt.Sprintf(reportSinkFailureTemplateConstant, recordError)
			run.report.Warnings = append(run.report.Warnings, message)
			run.logger.Warn(logMessageSideEffectWarningConstant, zap.String(logFieldWarningConstant, message))
		}
	}
}

// Status reports the counter, the migration the next stage 1 would generate, and the active session.
func (coordinator *Coordinator) Status(executionContext context.Context) (StatusReport, error) {
	counterValue, readError := coordinator.dependencies.Counter.Read(executionContext)
	if readError != nil {
		return StatusReport{}, fmt.Errorf(counterReadErrorTemplateConstant, readError)
	}

	status := StatusReport{
		Counter:       counterValue,
		NextMigration: coordinator.options.Namer.Artifact(counterValue, coordinator.dependencies.Clock()),
	}

	session, found, loadError := coordinator.dependencies.Sessions.Load(executionContext)
	if loadError != nil {
		return StatusReport{}, fmt.Errorf(sessionLoadErrorTemplateConstant, loadError)
	}
	if found {
		status.Session = &session
	}
	return status, nil
}
