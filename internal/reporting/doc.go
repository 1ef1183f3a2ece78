// Package reporting persists and presents workflow execution reports.
//
// FileSink, HistoryStore and MetricsRecorder implement workflow.ReportSink and
// are invoked after every stage; RenderSummary and RenderHistory format reports
// for the terminal.
package reporting
