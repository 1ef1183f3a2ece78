package reporting

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/temirov/githubsh/internal/workflow"
)

const (
	sqliteDriverNameConstant        = "sqlite"
	sqliteBusyTimeoutSuffixConstant = "?_pragma=busy_timeout(5000)"
	historyTimestampLayoutConstant  = "2006-01-02T15:04:05.000000000Z07:00"
	historyDirectoryPermissions     = 0o755
	openHistoryOperationConstant    = "open history"
	recordHistoryOperationConstant  = "record history"
	listHistoryOperationConstant    = "list history"
	countHistoryOperationConstant   = "count history"
	defaultHistoryLimitConstant     = 20

	historySchemaStatementConstant = `CREATE TABLE IF NOT EXISTS stage_runs(
		run_id TEXT PRIMARY KEY,
		task_reference TEXT NOT NULL,
		stage INTEGER NOT NULL,
		stage_name TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		duration_seconds REAL NOT NULL,
		migration_identifier TEXT,
		pull_request_url TEXT,
		issue_closed INTEGER NOT NULL DEFAULT 0,
		warning_count INTEGER NOT NULL DEFAULT 0,
		error TEXT
	);`

	insertRunStatementConstant = `INSERT OR REPLACE INTO stage_runs(
		run_id, task_reference, stage, stage_name, status, started_at, finished_at,
		duration_seconds, migration_identifier, pull_request_url, issue_closed, warning_count, error)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`

	listRunsStatementConstant = `SELECT run_id, task_reference, stage, stage_name, status, started_at,
		duration_seconds, COALESCE(migration_identifier, ''), COALESCE(pull_request_url, ''),
		issue_closed, warning_count, COALESCE(error, '')
		FROM stage_runs ORDER BY started_at DESC, run_id DESC LIMIT ?;`

	countRunsStatementConstant = `SELECT stage, status, COUNT(*) FROM stage_runs GROUP BY stage, status ORDER BY stage, status;`
)

// HistoryEntry is one persisted stage invocation.
type HistoryEntry struct {
	RunID               string
	TaskReference       string
	Stage               workflow.Stage
	StageName           string
	Status              workflow.ReportStatus
	StartedAt           time.Time
	DurationSeconds     float64
	MigrationIdentifier string
	PullRequestURL      string
	IssueClosed         bool
	WarningCount        int
	Error               string
}

// RunTotal counts invocations of one stage with one outcome.
type RunTotal struct {
	Stage  workflow.Stage
	Status workflow.ReportStatus
	Count  int
}

// HistoryStore keeps every ExecutionReport in a SQLite database.
type HistoryStore struct {
	path     string
	database *sql.DB
}

// OpenHistoryStore opens or creates the history database at path.
func OpenHistoryStore(executionContext context.Context, path string) (*HistoryStore, error) {
	trimmedPath := strings.TrimSpace(path)
	if len(trimmedPath) == 0 {
		return nil, ErrHistoryDatabaseRequired
	}
	if mkdirError := os.MkdirAll(filepath.Dir(trimmedPath), historyDirectoryPermissions); mkdirError != nil {
		return nil, SinkError{Operation: openHistoryOperationConstant, Target: trimmedPath, Cause: mkdirError}
	}

	database, openError := sql.Open(sqliteDriverNameConstant, trimmedPath+sqliteBusyTimeoutSuffixConstant)
	if openError != nil {
		return nil, SinkError{Operation: openHistoryOperationConstant, Target: trimmedPath, Cause: openError}
	}
	if _, schemaError := database.ExecContext(executionContext, historySchemaStatementConstant); schemaError != nil {
		_ = database.Close()
		return nil, SinkError{Operation: openHistoryOperationConstant, Target: trimmedPath, Cause: schemaError}
	}
	return &HistoryStore{path: trimmedPath, database: database}, nil
}

// Record stores the report. Re-recording a run identifier replaces the earlier row.
func (store *HistoryStore) Record(executionContext context.Context, report workflow.ExecutionReport) error {
	pullRequestURL := ""
	if report.PullRequest != nil {
		pullRequestURL = report.PullRequest.URL
	}
	_, insertError := store.database.ExecContext(executionContext, insertRunStatementConstant,
		report.RunID,
		report.TaskReference,
		int(report.Stage),
		report.StageName,
		string(report.Status),
		report.StartedAt.UTC().Format(historyTimestampLayoutConstant),
		report.FinishedAt.UTC().Format(historyTimestampLayoutConstant),
		report.DurationSeconds,
		nullableText(report.Migration.Identifier),
		nullableText(pullRequestURL),
		report.IssueClosed,
		len(report.Warnings),
		nullableText(report.Error),
	)
	if insertError != nil {
		return SinkError{Operation: recordHistoryOperationConstant, Target: store.path, Cause: insertError}
	}
	return nil
}

// Recent returns up to limit entries, newest first. A non-positive limit selects the default of 20.
func (store *HistoryStore) Recent(executionContext context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimitConstant
	}
	rows, queryError := store.database.QueryContext(executionContext, listRunsStatementConstant, limit)
	if queryError != nil {
		return nil, SinkError{Operation: listHistoryOperationConstant, Target: store.path, Cause: queryError}
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var entry HistoryEntry
		var stage int
		var status string
		var startedAt string
		var issueClosed int
		if scanError := rows.Scan(&entry.RunID, &entry.TaskReference, &stage, &entry.StageName, &status, &startedAt,
			&entry.DurationSeconds, &entry.MigrationIdentifier, &entry.PullRequestURL, &issueClosed, &entry.WarningCount, &entry.Error); scanError != nil {
			return nil, SinkError{Operation: listHistoryOperationConstant, Target: store.path, Cause: scanError}
		}
		parsedStartedAt, parseError := time.Parse(historyTimestampLayoutConstant, startedAt)
		if parseError != nil {
			return nil, SinkError{Operation: listHistoryOperationConstant, Target: store.path, Cause: parseError}
		}
		entry.Stage = workflow.Stage(stage)
		entry.Status = workflow.ReportStatus(status)
		entry.StartedAt = parsedStartedAt
		entry.IssueClosed = issueClosed != 0
		entries = append(entries, entry)
	}
	if rowsError := rows.Err(); rowsError != nil {
		return nil, SinkError{Operation: listHistoryOperationConstant, Target: store.path, Cause: rowsError}
	}
	return entries, nil
}

// Totals counts recorded invocations per stage and status.
func (store *HistoryStore) Totals(executionContext context.Context) ([]RunTotal, error) {
	rows, queryError := store.database.QueryContext(executionContext, countRunsStatementConstant)
	if queryError != nil {
		return nil, SinkError{Operation: countHistoryOperationConstant, Target: store.path, Cause: queryError}
	}
	defer rows.Close()

	var totals []RunTotal
	for rows.Next() {
		var stage int
		var status string
		var count int
		if scanError := rows.Scan(&stage, &status, &count); scanError != nil {
			return nil, SinkError{Operation: countHistoryOperationConstant, Target: store.path, Cause: scanError}
		}
		totals = append(totals, RunTotal{Stage: workflow.Stage(stage), Status: workflow.ReportStatus(status), Count: count})
	}
	if rowsError := rows.Err(); rowsError != nil {
		return nil, SinkError{Operation: countHistoryOperationConstant, Target: store.path, Cause: rowsError}
	}
	return totals, nil
}

// Close releases the database handle.
func (store *HistoryStore) Close() error {
	if store == nil || store.database == nil {
		return nil
	}
	return store.database.Close()
}

func nullableText(value string) sql.NullString {
	trimmedValue := strings.TrimSpace(value)
	return sql.NullString{String: trimmedValue, Valid: len(trimmedValue) > 0}
}
