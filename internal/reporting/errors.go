package reporting

import (
	"errors"
	"fmt"
)

const (
	sinkErrorTemplateConstant           = "%s %s: %v"
	directoryRequiredMessageConstant    = "report directory must be provided"
	databasePathRequiredMessageConstant = "history database path must be provided"
	metricsPathRequiredMessageConstant  = "metrics file path must be provided"
)

var (
	// ErrReportDirectoryRequired indicates a FileSink without a target directory.
	ErrReportDirectoryRequired = errors.New(directoryRequiredMessageConstant)
	// ErrHistoryDatabaseRequired indicates a HistoryStore without a database path.
	ErrHistoryDatabaseRequired = errors.New(databasePathRequiredMessageConstant)
	// ErrMetricsFileRequired indicates a MetricsRecorder without an output file.
	ErrMetricsFileRequired = errors.New(metricsPathRequiredMessageConstant)
)

// SinkError describes a report sink that could not persist a report.
type SinkError struct {
	Operation string
	Target    string
	Cause     error
}

// Error describes the failure.
func (sinkError SinkError) Error() string {
	return fmt.Sprintf(sinkErrorTemplateConstant, sinkError.Operation, sinkError.Target, sinkError.Cause)
}

// Unwrap exposes the underlying cause.
func (sinkError SinkError) Unwrap() error {
	return sinkError.Cause
}
