package reporting

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/temirov/githubsh/internal/workflow"
)

const (
	summaryHeadlineTemplateConstant = "Stage %d (%s) %s for %s\n"
	summaryLineTemplateConstant     = "  %-15s%s\n"
	summarySucceededConstant        = "succeeded"
	summaryFailedConstant           = "failed"
	summaryRunLabelConstant         = "run:"
	summaryMigrationLabelConstant   = "migration:"
	summaryCommandsLabelConstant    = "commands:"
	summaryDurationLabelConstant    = "duration:"
	summaryPullRequestLabelConstant = "pull request:"
	summaryCommentLabelConstant     = "issue comment:"
	summaryClosedLabelConstant      = "issue closed:"
	summaryWarningLabelConstant     = "warning:"
	summaryErrorLabelConstant       = "error:"
	summaryMigrationTemplateConst   = "%s (%s)"
	summaryPullRequestTemplateConst = "#%d %s"
	summaryDurationTemplateConstant = "%.2fs"
	summaryClosedValueConstant      = "yes"
	summaryContinuationIndent       = "                 "
	historyHeaderConstant           = "STARTED\tSTAGE\tSTATUS\tTASK\tMIGRATION\tDURATION\tRUN\n"
	historyRowTemplateConstant      = "%s\t%d %s\t%s\t%s\t%s\t%.2fs\t%s\n"
	historyTimestampLayoutDisplay   = "2006-01-02 15:04:05"
	historyEmptyMessageConstant     = "No recorded runs.\n"
	historyMissingValueConstant     = "-"
)

// RenderSummary writes a human-readable account of report.
func RenderSummary(writer io.Writer, report workflow.ExecutionReport) error {
	var builder strings.Builder

	outcome := summarySucceededConstant
	if !report.Succeeded() {
		outcome = summaryFailedConstant
	}
	fmt.Fprintf(&builder, summaryHeadlineTemplateConstant, int(report.Stage), report.StageName, outcome, report.TaskReference)
	writeSummaryLine(&builder, summaryRunLabelConstant, report.RunID)
	if len(report.Migration.Identifier) > 0 {
		writeSummaryLine(&builder, summaryMigrationLabelConstant, fmt.Sprintf(summaryMigrationTemplateConst, report.Migration.Identifier, report.Migration.File))
	}
	writeSummaryLine(&builder, summaryCommandsLabelConstant, strconv.Itoa(countExecutedCommands(report.Log)))
	writeSummaryLine(&builder, summaryDurationLabelConstant, fmt.Sprintf(summaryDurationTemplateConstant, report.DurationSeconds))
	if report.PullRequest != nil {
		writeSummaryLine(&builder, summaryPullRequestLabelConstant, fmt.Sprintf(summaryPullRequestTemplateConst, report.PullRequest.Number, report.PullRequest.URL))
	}
	if report.IssueComment != nil {
		writeSummaryLine(&builder, summaryCommentLabelConstant, report.IssueComment.URL)
	}
	if report.IssueClosed {
		writeSummaryLine(&builder, summaryClosedLabelConstant, summaryClosedValueConstant)
	}
	for _, warning := range report.Warnings {
		writeSummaryLine(&builder, summaryWarningLabelConstant, warning)
	}
	if len(report.Error) > 0 {
		writeSummaryLine(&builder, summaryErrorLabelConstant, report.Error)
	}

	_, writeError := io.WriteString(writer, builder.String())
	return writeError
}

// RenderHistory writes entries as an aligned table.
func RenderHistory(writer io.Writer, entries []HistoryEntry) error {
	if len(entries) == 0 {
		_, writeError := io.WriteString(writer, historyEmptyMessageConstant)
		return writeError
	}

	tableWriter := tabwriter.NewWriter(writer, 0, 0, 2, ' ', 0)
	fmt.Fprint(tableWriter, historyHeaderConstant)
	for _, entry := range entries {
		migration := entry.MigrationIdentifier
		if len(migration) == 0 {
			migration = historyMissingValueConstant
		}
		fmt.Fprintf(tableWriter, historyRowTemplateConstant,
			entry.StartedAt.UTC().Format(historyTimestampLayoutDisplay),
			int(entry.Stage),
			entry.StageName,
			entry.Status,
			entry.TaskReference,
			migration,
			entry.DurationSeconds,
			entry.RunID,
		)
	}
	return tableWriter.Flush()
}

func writeSummaryLine(builder *strings.Builder, label string, value string) {
	indentedValue := strings.ReplaceAll(strings.TrimRight(value, "\n"), "\n", "\n"+summaryContinuationIndent)
	fmt.Fprintf(builder, summaryLineTemplateConstant, label, indentedValue)
}

func countExecutedCommands(log workflow.ExecutionLog) int {
	executed := 0
	for _, entry := range log {
		if entry.Event == workflow.EventCommandOutput {
			executed++
		}
	}
	return executed
}
