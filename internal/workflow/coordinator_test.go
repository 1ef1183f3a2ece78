package workflow_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/githubsh/internal/github"
	"github.com/temirov/githubsh/internal/state"
	"github.com/temirov/githubsh/internal/workflow"
)

const (
	coordinatorTaskReference      = "Issue #101"
	coordinatorOtherTaskReference = "Issue #202"
	coordinatorRunIdentifier      = "run-0001"
)

var coordinatorMoment = time.Date(2025, time.July, 20, 10, 30, 0, 0, time.UTC)

type memoryCounterStore struct {
	value        int
	present      bool
	readError    error
	advanceError error
	advances     []int
}

func (store *memoryCounterStore) Read(context.Context) (int, error) {
	if store.readError != nil {
		return 0, store.readError
	}
	if !store.present {
		store.value = 1
		store.present = true
	}
	return store.value, nil
}

func (store *memoryCounterStore) Advance(_ context.Context, current int) error {
	if store.advanceError != nil {
		return store.advanceError
	}
	store.advances = append(store.advances, current)
	store.value = current + 1
	store.present = true
	return nil
}

type memorySessionStore struct {
	session   *state.Session
	loadError error
	saves     int
	clears    int
}

func (store *memorySessionStore) Load(context.Context) (state.Session, bool, error) {
	if store.loadError != nil {
		return state.Session{}, false, store.loadError
	}
	if store.session == nil {
		return state.Session{}, false, nil
	}
	return *store.session, true, nil
}

func (store *memorySessionStore) Save(_ context.Context, session state.Session) error {
	store.saves++
	saved := session
	store.session = &saved
	return nil
}

func (store *memorySessionStore) Clear(context.Context) error {
	store.clears++
	store.session = nil
	return nil
}

type recordingGitHubClient struct {
	pullRequests     []github.PullRequestRequest
	comments         map[int]string
	closedIssues     []int
	pullRequestError error
	commentError     error
	closeError       error
}

func (client *recordingGitHubClient) CreatePullRequest(_ context.Context, request github.PullRequestRequest) (github.PullRequestResult, error) {
	if client.pullRequestError != nil {
		return github.PullRequestResult{}, client.pullRequestError
	}
	client.pullRequests = append(client.pullRequests, request)
	return github.PullRequestResult{Number: 7, URL: "https://github.com/octo/repo/pull/7"}, nil
}

func (client *recordingGitHubClient) AddIssueComment(_ context.Context, issueNumber int, body string) (github.CommentResult, error) {
	if client.commentError != nil {
		return github.CommentResult{}, client.commentError
	}
	if client.comments == nil {
		client.comments = map[int]string{}
	}
	client.comments[issueNumber] = body
	return github.CommentResult{URL: "https://github.com/octo/repo/issues/101#issuecomment-1"}, nil
}

func (client *recordingGitHubClient) CloseIssue(_ context.Context, issueNumber int) (github.IssueResult, error) {
	if client.closeError != nil {
		return github.IssueResult{}, client.closeError
	}
	client.closedIssues = append(client.closedIssues, issueNumber)
	return github.IssueResult{Number: issueNumber, State: "closed"}, nil
}

type coordinatorFixture struct {
	counter  *memoryCounterStore
	sessions *memorySessionStore
	runner   *scriptedRunner
	client   *recordingGitHubClient
	reports  []workflow.ExecutionReport
	logs     *observer.ObservedLogs
}

func stageCommands() workflow.StageTemplates {
	return workflow.StageTemplates{
		workflow.StagePreparation:    workflow.StaticCommands("stage1-a", "stage1-b"),
		workflow.StageImplementation: workflow.StaticCommands("stage2-a"),
		workflow.StageTesting:        workflow.StaticCommands("stage3-a", "stage3-b", "stage3-c"),
		workflow.StageFinalization:   workflow.StaticCommands("stage4-a"),
	}
}

func newCoordinatorFixture(testInstance *testing.T, options workflow.CoordinatorOptions) (*coordinatorFixture, *workflow.Coordinator) {
	testInstance.Helper()
	fixture := &coordinatorFixture{
		counter:  &memoryCounterStore{value: 7, present: true},
		sessions: &memorySessionStore{},
		runner:   &scriptedRunner{exitCodes: map[string]int{}},
		client:   &recordingGitHubClient{},
	}
	coordinator := buildCoordinator(testInstance, fixture, fixture.counter, fixture.sessions, fixture.client, options)
	return fixture, coordinator
}

func buildCoordinator(testInstance *testing.T, fixture *coordinatorFixture, counter workflow.CounterStore, sessions workflow.SessionStore, client workflow.GitHubClient, options workflow.CoordinatorOptions) *workflow.Coordinator {
	testInstance.Helper()
	resolver, resolverError := workflow.NewCommandResolver(stageCommands(), fixedClock(coordinatorMoment))
	require.NoError(testInstance, resolverError)
	executor, executorError := workflow.NewStageExecutor(workflow.StageExecutorDependencies{Runner: fixture.runner, Sleep: func(time.Duration) {}})
	require.NoError(testInstance, executorError)

	observerCore, observedLogs := observer.New(zap.DebugLevel)
	fixture.logs = observedLogs

	coordinator, creationError := workflow.NewCoordinator(workflow.CoordinatorDependencies{
		Counter:  counter,
		Sessions: sessions,
		Resolver: resolver,
		Executor: executor,
		GitHub:   client,
		Sinks: []workflow.ReportSink{workflow.ReportSinkFunc(func(_ context.Context, report workflow.ExecutionReport) error {
			fixture.reports = append(fixture.reports, report)
			return nil
		})},
		Logger:        zap.New(observerCore),
		Clock:         fixedClock(coordinatorMoment),
		RunIdentifier: func() string { return coordinatorRunIdentifier },
	}, options)
	require.NoError(testInstance, creationError)
	return coordinator
}

func runStages(testInstance *testing.T, coordinator *workflow.Coordinator, taskReference string, stages ...workflow.Stage) {
	testInstance.Helper()
	for _, stage := range stages {
		report, executionError := coordinator.Execute(context.Background(), taskReference, stage)
		require.NoError(testInstance, executionError)
		require.True(testInstance, report.Succeeded())
	}
}

func TestCoordinatorFullWorkflowAdvancesCounterByOne(testInstance *testing.T) {
	fixture, coordinator := newCoordinatorFixture(testInstance, workflow.CoordinatorOptions{})

	runStages(testInstance, coordinator, coordinatorTaskReference, workflow.WorkflowStages...)

	require.Equal(testInstance, 8, fixture.counter.value)
	require.Equal(testInstance, []int{7}, fixture.counter.advances)
	require.Nil(testInstance, fixture.sessions.session)
	require.Equal(testInstance, 3, fixture.sessions.saves)
	require.Equal(testInstance, 1, fixture.sessions.clears)
	require.Equal(testInstance, []string{"stage1-a", "stage1-b", "stage2-a", "stage3-a", "stage3-b", "stage3-c", "stage4-a"}, fixture.runner.executed)

	require.Len(testInstance, fixture.client.pullRequests, 1)
	require.Equal(testInstance, "feature/issue--101-migration20250720008", fixture.client.pullRequests[0].HeadBranch)
	require.Contains(testInstance, fixture.client.comments, 101)
	require.Empty(testInstance, fixture.client.closedIssues)

	require.Len(testInstance, fixture.reports, 4)
	for _, report := range fixture.reports {
		require.Equal(testInstance, "migration20250720008", report.Migration.Identifier)
		require.Equal(testInstance, "migration20250720008.go", report.Migration.File)
		require.Equal(testInstance, coordinatorRunIdentifier, report.RunID)
		require.Empty(testInstance, report.Warnings)
	}
	require.NotNil(testInstance, fixture.reports[2].PullRequest)
	require.Equal(testInstance, 7, fixture.reports[2].PullRequest.Number)
	require.NotNil(testInstance, fixture.reports[3].IssueComment)
	require.False(testInstance, fixture.reports[3].IssueClosed)
}

func TestCoordinatorStageOneCreatesSession(testInstance *testing.T) {
	fixture, coordinator := newCoordinatorFixture(testInstance, workflow.CoordinatorOptions{})

	report, executionError := coordinator.Execute(context.Background(), coordinatorTaskReference, workflow.StagePreparation)
	require.NoError(testInstance, executionError)

	require.Equal(testInstance, workflow.ReportStatusSuccess, report.Status)
	require.Equal(testInstance, "Preparation", report.StageName)
	require.Equal(testInstance, state.Session{
		TaskReference:       coordinatorTaskReference,
		MigrationIdentifier: "migration20250720008",
		MigrationFile:       "migration20250720008.go",
		Sequence:            8,
		StartedAt:           coordinatorMoment,
		CurrentStage:        1,
	}, *fixture.sessions.session)
	require.Equal(testInstance, 7, fixture.counter.value)

	events := make([]string, 0, len(report.Log))
	for _, entry := range report.Log {
		events = append(events, entry.Event)
	}
	require.Equal(testInstance, []string{
		workflow.EventStageStarted,
		workflow.EventExecuting, workflow.EventCommandOutput,
		workflow.EventExecuting, workflow.EventCommandOutput,
		workflow.EventSessionSaved,
		workflow.EventStageCompleted,
	}, events)
}

func TestCoordinatorRequiresSessionForLaterStages(testInstance *testing.T) {
	for _, stage := range []workflow.Stage{workflow.StageImplementation, workflow.StageTesting, workflow.StageFinalization} {
		testInstance.Run(stage.Name(), func(testInstance *testing.T) {
			fixture, coordinator := newCoordinatorFixture(testInstance, workflow.CoordinatorOptions{})

			report, executionError := coordinator.Execute(context.Background(), coordinatorTaskReference, stage)
			var noSessionError workflow.NoActiveSessionError
			require.ErrorAs(testInstance, executionError, &noSessionError)
			require.ErrorIs(testInstance, executionError, workflow.ErrNoActiveSession)
			require.Contains(testInstance, executionError.Error(), "start with stage 1")

			require.Equal(testInstance, workflow.ReportStatusFailed, report.Status)
			require.Equal(testInstance, executionError.Error(), report.Error)
			require.Empty(testInstance, fixture.runner.executed)
			require.Equal(testInstance, 7, fixture.counter.value)
			require.Len(testInstance, fixture.reports, 1)
		})
	}
}

func TestCoordinatorRejectsTaskMismatch(testInstance *testing.T) {
	fixture, coordinator := newCoordinatorFixture(testInstance, workflow.CoordinatorOptions{})
	runStages(testInstance, coordinator, coordinatorTaskReference, workflow.StagePreparation)
	sessionBefore := *fixture.sessions.session
	savesBefore := fixture.sessions.saves

	_, executionError := coordinator.Execute(context.Background(), coordinatorOtherTaskReference, workflow.StageImplementation)

	var mismatchError workflow.TaskMismatchError
	require.ErrorAs(testInstance, executionError, &mismatchError)
	require.Equal(testInstance, coordinatorTaskReference, mismatchError.SessionTaskReference)
	require.Equal(testInstance, coordinatorOtherTaskReference, mismatchError.TaskReference)
	require.ErrorIs(testInstance, executionError, workflow.ErrNoActiveSession)
	require.Equal(testInstance, sessionBefore, *fixture.sessions.session)
	require.Equal(testInstance, savesBefore, fixture.sessions.saves)
	require.Equal(testInstance, []string{"stage1-a", "stage1-b"}, fixture.runner.executed)
}

func TestCoordinatorFailedCommandLeavesStateUntouched(testInstance *testing.T) {
	testInstance.Run("stage_three_failure_keeps_stage_two", func(testInstance *testing.T) {
		fixture, coordinator := newCoordinatorFixture(testInstance, workflow.CoordinatorOptions{})
		runStages(testInstance, coordinator, coordinatorTaskReference, workflow.StagePreparation, workflow.StageImplementation)
		fixture.runner.exitCodes["stage3-b"] = 1
		fixture.runner.executed = nil

		report, executionError := coordinator.Execute(context.Background(), coordinatorTaskReference, workflow.StageTesting)

		var failedError workflow.CommandFailedError
		require.ErrorAs(testInstance, executionError, &failedError)
		require.Equal(testInstance, "stage3-b", failedError.Command)
		require.Equal(testInstance, 1, failedError.ExitCode)
		require.Equal(testInstance, []string{"stage3-a", "stage3-b"}, fixture.runner.executed)
		require.Equal(testInstance, 2, fixture.sessions.session.CurrentStage)
		require.Empty(testInstance, fixture.client.pullRequests)
		require.Nil(testInstance, report.PullRequest)
		require.Equal(testInstance, workflow.EventStageFailed, report.Log[len(report.Log)-1].Event)
	})

	testInstance.Run("stage_four_failure_keeps_counter_and_session", func(testInstance *testing.T) {
		fixture, coordinator := newCoordinatorFixture(testInstance, workflow.CoordinatorOptions{})
		runStages(testInstance, coordinator, coordinatorTaskReference, workflow.StagePreparation, workflow.StageImplementation, workflow.StageTesting)
		fixture.runner.exitCodes["stage4-a"] = 2

		_, executionError := coordinator.Execute(context.Background(), coordinatorTaskReference, workflow.StageFinalization)

		require.Error(testInstance, executionError)
		require.Equal(testInstance, 7, fixture.counter.value)
		require.Empty(testInstance, fixture.counter.advances)
		require.NotNil(testInstance, fixture.sessions.session)
		require.Equal(testInstance, 3, fixture.sessions.session.CurrentStage)
		require.Empty(testInstance, fixture.client.comments)

		fixture.runner.exitCodes["stage4-a"] = 0
		runStages(testInstance, coordinator, coordinatorTaskReference, workflow.StageFinalization)
		require.Equal(testInstance, 8, fixture.counter.value)
	})

	testInstance.Run("stage_one_failure_saves_nothing", func(testInstance *testing.T) {
		fixture, coordinator := newCoordinatorFixture(testInstance, workflow.CoordinatorOptions{})
		fixture.runner.exitCodes["stage1-a"] = 1

		_, executionError := coordinator.Execute(context.Background(), coordinatorTaskReference, workflow.StagePreparation)

		require.Error(testInstance, executionError)
		require.Equal(testInstance, []string{"stage1-a"}, fixture.runner.executed)
		require.Nil(testInstance, fixture.sessions.session)
	})
}

func TestCoordinatorStageOneDiscardsAbandonedSession(testInstance *testing.T) {
	fixture, coordinator := newCoordinatorFixture(testInstance, workflow.CoordinatorOptions{})
	runStages(testInstance, coordinator, coordinatorOtherTaskReference, workflow.StagePreparation, workflow.StageImplementation)

	runStages(testInstance, coordinator, coordinatorTaskReference, workflow.StagePreparation)

	require.Equal(testInstance, coordinatorTaskReference, fixture.sessions.session.TaskReference)
	require.Equal(testInstance, 1, fixture.sessions.session.CurrentStage)
	require.Equal(testInstance, "migration20250720008", fixture.sessions.session.MigrationIdentifier)

	_, executionError := coordinator.Execute(context.Background(), coordinatorOtherTaskReference, workflow.StageTesting)
	require.ErrorIs(testInstance, executionError, workflow.ErrNoActiveSession)
}

func TestCoordinatorGitHubFailuresAreWarnings(testInstance *testing.T) {
	fixture, coordinator := newCoordinatorFixture(testInstance, workflow.CoordinatorOptions{CloseIssueOnFinalize: true})
	fixture.client.pullRequestError = errors.New("validation failed")
	fixture.client.commentError = errors.New("forbidden")
	fixture.client.closeError = errors.New("not found")

	runStages(testInstance, coordinator, coordinatorTaskReference, workflow.StagePreparation, workflow.StageImplementation, workflow.StageTesting)
	testingReport := fixture.reports[2]
	require.True(testInstance, testingReport.Succeeded())
	require.Equal(testInstance, []string{"failed to create pull request: validation failed"}, testingReport.Warnings)
	require.Nil(testInstance, testingReport.PullRequest)

	runStages(testInstance, coordinator, coordinatorTaskReference, workflow.StageFinalization)
	finalizationReport := fixture.reports[3]
	require.True(testInstance, finalizationReport.Succeeded())
	require.Equal(testInstance, []string{
		"failed to add issue comment: forbidden",
		"failed to close issue: not found",
	}, finalizationReport.Warnings)
	require.False(testInstance, finalizationReport.IssueClosed)
	require.Equal(testInstance, 8, fixture.counter.value)
	require.Nil(testInstance, fixture.sessions.session)

	require.Equal(testInstance, 3, fixture.logs.FilterMessage("workflow side effect failed").Len())
}

func TestCoordinatorClosesIssueWhenConfigured(testInstance *testing.T) {
	fixture, coordinator := newCoordinatorFixture(testInstance, workflow.CoordinatorOptions{CloseIssueOnFinalize: true})

	runStages(testInstance, coordinator, coordinatorTaskReference, workflow.WorkflowStages...)

	require.Equal(testInstance, []int{101}, fixture.client.closedIssues)
	require.True(testInstance, fixture.reports[3].IssueClosed)
	finalEvents := map[string]bool{}
	for _, entry := range fixture.reports[3].Log {
		finalEvents[entry.Event] = true
	}
	require.True(testInstance, finalEvents[workflow.EventCounterAdvanced])
	require.True(testInstance, finalEvents[workflow.EventSessionCleared])
	require.True(testInstance, finalEvents[workflow.EventIssueCommented])
	require.True(testInstance, finalEvents[workflow.EventIssueClosed])
}

func TestCoordinatorSkipsCommentWithoutIssueNumber(testInstance *testing.T) {
	fixture, coordinator := newCoordinatorFixture(testInstance, workflow.CoordinatorOptions{CloseIssueOnFinalize: true})

	runStages(testInstance, coordinator, "TASK-9", workflow.WorkflowStages...)

	require.Empty(testInstance, fixture.client.comments)
	require.Empty(testInstance, fixture.client.closedIssues)
	require.Equal(testInstance, []string{"could not extract issue number from TASK-9; skipping issue comment"}, fixture.reports[3].Warnings)
	require.Equal(testInstance, 8, fixture.counter.value)
}

func TestCoordinatorWithoutGitHubClientWarns(testInstance *testing.T) {
	fixture := &coordinatorFixture{
		counter:  &memoryCounterStore{value: 7, present: true},
		sessions: &memorySessionStore{},
		runner:   &scriptedRunner{exitCodes: map[string]int{}},
	}
	coordinator := buildCoordinator(testInstance, fixture, fixture.counter, fixture.sessions, nil, workflow.CoordinatorOptions{})

	runStages(testInstance, coordinator, coordinatorTaskReference, workflow.WorkflowStages...)

	require.Equal(testInstance, []string{"GitHub client not configured; skipping pull request creation"}, fixture.reports[2].Warnings)
	require.Equal(testInstance, []string{"GitHub client not configured; skipping issue comment"}, fixture.reports[3].Warnings)
}

func TestCoordinatorFatalErrors(testInstance *testing.T) {
	testInstance.Run("unknown_stage", func(testInstance *testing.T) {
		fixture, coordinator := newCoordinatorFixture(testInstance, workflow.CoordinatorOptions{})
		report, executionError := coordinator.Execute(context.Background(), coordinatorTaskReference, workflow.Stage(5))
		require.Equal(testInstance, workflow.UnknownStageError{Stage: 5}, executionError)
		require.Equal(testInstance, workflow.ReportStatusFailed, report.Status)
		require.Empty(testInstance, fixture.runner.executed)
	})

	testInstance.Run("empty_task_reference", func(testInstance *testing.T) {
		_, coordinator := newCoordinatorFixture(testInstance, workflow.CoordinatorOptions{})
		_, executionError := coordinator.Execute(context.Background(), "  ", workflow.StagePreparation)
		require.ErrorIs(testInstance, executionError, workflow.ErrTaskReferenceRequired)
	})

	testInstance.Run("counter_read_failure", func(testInstance *testing.T) {
		fixture, coordinator := newCoordinatorFixture(testInstance, workflow.CoordinatorOptions{})
		ioFailure := state.IOError{Operation: "read counter", Path: "counter", Cause: errors.New("permission denied")}
		fixture.counter.readError = ioFailure
		_, executionError := coordinator.Execute(context.Background(), coordinatorTaskReference, workflow.StagePreparation)
		var ioError state.IOError
		require.ErrorAs(testInstance, executionError, &ioError)
		require.Empty(testInstance, fixture.runner.executed)
	})

	testInstance.Run("corrupt_session", func(testInstance *testing.T) {
		fixture, coordinator := newCoordinatorFixture(testInstance, workflow.CoordinatorOptions{})
		fixture.sessions.loadError = state.CorruptSessionError{Path: "session", Cause: errors.New("unexpected end of JSON input")}
		_, executionError := coordinator.Execute(context.Background(), coordinatorTaskReference, workflow.StageImplementation)
		var corruptError state.CorruptSessionError
		require.ErrorAs(testInstance, executionError, &corruptError)
		require.Empty(testInstance, fixture.runner.executed)
	})

	testInstance.Run("counter_advance_failure", func(testInstance *testing.T) {
		fixture, coordinator := newCoordinatorFixture(testInstance, workflow.CoordinatorOptions{})
		runStages(testInstance, coordinator, coordinatorTaskReference, workflow.StagePreparation, workflow.StageImplementation, workflow.StageTesting)
		fixture.counter.advanceError = errors.New("disk full")
		_, executionError := coordinator.Execute(context.Background(), coordinatorTaskReference, workflow.StageFinalization)
		require.ErrorContains(testInstance, executionError, "disk full")
		require.NotNil(testInstance, fixture.sessions.session)
	})
}

func TestCoordinatorSinkFailuresBecomeWarnings(testInstance *testing.T) {
	fixture := &coordinatorFixture{
		counter:  &memoryCounterStore{value: 1, present: true},
		sessions: &memorySessionStore{},
		runner:   &scriptedRunner{exitCodes: map[string]int{}},
	}
	resolver, resolverError := workflow.NewCommandResolver(stageCommands(), nil)
	require.NoError(testInstance, resolverError)
	executor, executorError := workflow.NewStageExecutor(workflow.StageExecutorDependencies{Runner: fixture.runner, Sleep: func(time.Duration) {}})
	require.NoError(testInstance, executorError)

	coordinator, creationError := workflow.NewCoordinator(workflow.CoordinatorDependencies{
		Counter:  fixture.counter,
		Sessions: fixture.sessions,
		Resolver: resolver,
		Executor: executor,
		Sinks: []workflow.ReportSink{workflow.ReportSinkFunc(func(context.Context, workflow.ExecutionReport) error {
			return errors.New("database locked")
		})},
	}, workflow.CoordinatorOptions{})
	require.NoError(testInstance, creationError)

	report, executionError := coordinator.Execute(context.Background(), coordinatorTaskReference, workflow.StagePreparation)
	require.NoError(testInstance, executionError)
	require.Equal(testInstance, []string{"failed to record execution report: database locked"}, report.Warnings)
	require.NotEmpty(testInstance, report.RunID)
}

func TestNewCoordinatorRequiresDependencies(testInstance *testing.T) {
	_, creationError := workflow.NewCoordinator(workflow.CoordinatorDependencies{}, workflow.CoordinatorOptions{})
	require.ErrorIs(testInstance, creationError, workflow.ErrCoordinatorDependenciesMissing)
}

func TestCoordinatorStatus(testInstance *testing.T) {
	fixture, coordinator := newCoordinatorFixture(testInstance, workflow.CoordinatorOptions{Namer: workflow.MigrationNamer{Extension: ".sql"}})

	status, statusError := coordinator.Status(context.Background())
	require.NoError(testInstance, statusError)
	require.Equal(testInstance, 7, status.Counter)
	require.Equal(testInstance, "migration20250720008.sql", status.NextMigration.File)
	require.Nil(testInstance, status.Session)

	runStages(testInstance, coordinator, coordinatorTaskReference, workflow.StagePreparation)
	status, statusError = coordinator.Status(context.Background())
	require.NoError(testInstance, statusError)
	require.NotNil(testInstance, status.Session)
	require.Equal(testInstance, coordinatorTaskReference, status.Session.TaskReference)
	require.Equal(testInstance, fixture.sessions.session.MigrationFile, status.Session.MigrationFile)
}

func TestCoordinatorWithFileStores(testInstance *testing.T) {
	projectDirectory := testInstance.TempDir()
	counterPath := filepath.Join(projectDirectory, "migration_count.txt")
	sessionPath := filepath.Join(projectDirectory, ".githubsh_session.json")
	require.NoError(testInstance, os.WriteFile(counterPath, []byte("7"), 0o644))

	fixture := &coordinatorFixture{runner: &scriptedRunner{exitCodes: map[string]int{}}, client: &recordingGitHubClient{}}
	counterStore := state.NewCounterStore(counterPath, time.Second)
	sessionStore := state.NewSessionStore(sessionPath, time.Second)
	coordinator := buildCoordinator(testInstance, fixture, counterStore, sessionStore, fixture.client, workflow.CoordinatorOptions{})

	report, executionError := coordinator.Execute(context.Background(), coordinatorTaskReference, workflow.StagePreparation)
	require.NoError(testInstance, executionError)
	require.Equal(testInstance, "migration20250720008", report.Migration.Identifier)

	runStages(testInstance, coordinator, coordinatorTaskReference, workflow.StageImplementation)

	fixture.runner.exitCodes["stage3-b"] = 1
	_, executionError = coordinator.Execute(context.Background(), coordinatorTaskReference, workflow.StageTesting)
	require.Error(testInstance, executionError)
	session, found, loadError := sessionStore.Load(context.Background())
	require.NoError(testInstance, loadError)
	require.True(testInstance, found)
	require.Equal(testInstance, 2, session.CurrentStage)

	fixture.runner.exitCodes["stage3-b"] = 0
	runStages(testInstance, coordinator, coordinatorTaskReference, workflow.StageTesting, workflow.StageFinalization)

	counterContents, readError := os.ReadFile(counterPath)
	require.NoError(testInstance, readError)
	require.Equal(testInstance, "8", string(counterContents))
	_, statError := os.Stat(sessionPath)
	require.True(testInstance, os.IsNotExist(statError))
}
