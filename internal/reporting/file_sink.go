package reporting

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/temirov/githubsh/internal/workflow"
)

const (
	reportFileNameTemplateConstant = "%s-stage%d-%s.json"
	reportTimestampLayoutConstant  = "20060102T150405Z"
	reportDirectoryPermissions     = 0o755
	reportFilePermissions          = 0o644
	reportTemporaryPatternConstant = ".report-*"
	writeReportOperationConstant   = "write report"
)

// FileSink writes each ExecutionReport as an indented JSON document.
type FileSink struct {
	directory string
}

// NewFileSink constructs a sink writing into directory.
func NewFileSink(directory string) (*FileSink, error) {
	trimmedDirectory := strings.TrimSpace(directory)
	if len(trimmedDirectory) == 0 {
		return nil, ErrReportDirectoryRequired
	}
	return &FileSink{directory: trimmedDirectory}, nil
}

// ReportPath returns the file a report is written to.
func (sink *FileSink) ReportPath(report workflow.ExecutionReport) string {
	fileName := fmt.Sprintf(reportFileNameTemplateConstant, report.StartedAt.UTC().Format(reportTimestampLayoutConstant), int(report.Stage), report.RunID)
	return filepath.Join(sink.directory, fileName)
}

// Record writes the report.
func (sink *FileSink) Record(_ context.Context, report workflow.ExecutionReport) error {
	reportPath := sink.ReportPath(report)
	content, marshalError := json.MarshalIndent(report, "", "  ")
	if marshalError != nil {
		return SinkError{Operation: writeReportOperationConstant, Target: reportPath, Cause: marshalError}
	}
	content = append(content, '\n')

	if mkdirError := os.MkdirAll(sink.directory, reportDirectoryPermissions); mkdirError != nil {
		return SinkError{Operation: writeReportOperationConstant, Target: reportPath, Cause: mkdirError}
	}

	temporaryFile, createError := os.CreateTemp(sink.directory, reportTemporaryPatternConstant)
	if createError != nil {
		return SinkError{Operation: writeReportOperationConstant, Target: reportPath, Cause: createError}
	}
	temporaryPath := temporaryFile.Name()
	_, writeError := temporaryFile.Write(content)
	closeError := temporaryFile.Close()
	if writeError == nil {
		writeError = closeError
	}
	if writeError == nil {
		writeError = os.Chmod(temporaryPath, reportFilePermissions)
	}
	if writeError == nil {
		writeError = os.Rename(temporaryPath, reportPath)
	}
	if writeError != nil {
		_ = os.Remove(temporaryPath)
		return SinkError{Operation: writeReportOperationConstant, Target: reportPath, Cause: writeError}
	}
	return nil
}
