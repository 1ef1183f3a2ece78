package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logLevelDebugStringConstant            = "debug"
	logLevelInfoStringConstant             = "info"
	logLevelWarnStringConstant             = "warn"
	logLevelErrorStringConstant            = "error"
	logFormatStructuredStringConstant      = "structured"
	logFormatConsoleStringConstant         = "console"
	unsupportedLogLevelTemplateConstant    = "unsupported log level: %s"
	unsupportedLogFormatTemplateConstant   = "unsupported log format: %s"
	logDirectoryCreationTemplateConstant   = "unable to create log directory %s: %w"
	logFileTimeKeyConstant                 = "time"
	defaultLogFileMaximumSizeMegabytes     = 10
	defaultLogFileMaximumBackups           = 3
	defaultLogFileMaximumAgeDays           = 7
	logDirectoryPermissionsConstant        = 0o755
	logFileCloseErrorTemplateConstant      = "unable to close log file %s: %w"
	loggerOutputsNotConfiguredMessageConst = "logger outputs not configured"
)

// LogLevel enumerates supported logging granularities.
type LogLevel string

// Exported log level constants for reuse across packages.
const (
	LogLevelDebug LogLevel = LogLevel(logLevelDebugStringConstant)
	LogLevelInfo  LogLevel = LogLevel(logLevelInfoStringConstant)
	LogLevelWarn  LogLevel = LogLevel(logLevelWarnStringConstant)
	LogLevelError LogLevel = LogLevel(logLevelErrorStringConstant)
)

// LogFormat enumerates supported logger output encodings.
type LogFormat string

// Exported log format constants for reuse across packages.
const (
	LogFormatStructured LogFormat = LogFormat(logFormatStructuredStringConstant)
	LogFormatConsole    LogFormat = LogFormat(logFormatConsoleStringConstant)
)

// ErrLoggerOutputsNotConfigured indicates Close was called on an empty LoggerOutputs value.
var ErrLoggerOutputsNotConfigured = errors.New(loggerOutputsNotConfiguredMessageConst)

// LogFileConfiguration describes the optional rotating log file.
type LogFileConfiguration struct {
	Path                 string
	MaximumSizeMegabytes int
	MaximumBackups       int
	MaximumAgeDays       int
}

// LoggerOutputs bundles the diagnostic logger with the rotating file that backs it, if any.
type LoggerOutputs struct {
	DiagnosticLogger *zap.Logger
	logFile          *lumberjack.Logger
}

// Close flushes the logger and releases the log file.
func (outputs LoggerOutputs) Close() error {
	if outputs.DiagnosticLogger == nil {
		return ErrLoggerOutputsNotConfigured
	}
	_ = outputs.DiagnosticLogger.Sync()
	if outputs.logFile == nil {
		return nil
	}
	if closeError := outputs.logFile.Close(); closeError != nil {
		return fmt.Errorf(logFileCloseErrorTemplateConstant, outputs.logFile.Filename, closeError)
	}
	return nil
}

// LoggerFactory builds zap.Logger instances with consistent configuration.
type LoggerFactory struct {
	standardError zapcore.WriteSyncer
}

var logLevelMapping = map[LogLevel]zapcore.Level{
	LogLevelDebug: zapcore.DebugLevel,
	LogLevelInfo:  zapcore.InfoLevel,
	LogLevelWarn:  zapcore.WarnLevel,
	LogLevelError: zapcore.ErrorLevel,
}

// NewLoggerFactory constructs a new logger factory writing to standard error.
func NewLoggerFactory() *LoggerFactory {
	return &LoggerFactory{}
}

// NewLoggerFactoryWithOutput constructs a logger factory writing terminal output to the provided syncer.
func NewLoggerFactoryWithOutput(output zapcore.WriteSyncer) *LoggerFactory {
	return &LoggerFactory{standardError: output}
}

// CreateLogger produces a zap.Logger honoring the requested log level and format.
func (factory *LoggerFactory) CreateLogger(requestedLogLevel LogLevel, requestedLogFormat LogFormat) (*zap.Logger, error) {
	outputs, creationError := factory.CreateLoggerOutputs(requestedLogLevel, requestedLogFormat, LogFileConfiguration{})
	if creationError != nil {
		return nil, creationError
	}
	return outputs.DiagnosticLogger, nil
}

// CreateLoggerOutputs produces a logger that writes to standard error and, when configured, to a rotating log file.
func (factory *LoggerFactory) CreateLoggerOutputs(requestedLogLevel LogLevel, requestedLogFormat LogFormat, logFile LogFileConfiguration) (LoggerOutputs, error) {
	zapLogLevel, levelExists := logLevelMapping[LogLevel(strings.ToLower(strings.TrimSpace(string(requestedLogLevel))))]
	if !levelExists {
		return LoggerOutputs{}, fmt.Errorf(unsupportedLogLevelTemplateConstant, requestedLogLevel)
	}

	terminalEncoder, encoderError := buildEncoder(LogFormat(strings.ToLower(strings.TrimSpace(string(requestedLogFormat)))))
	if encoderError != nil {
		return LoggerOutputs{}, encoderError
	}

	levelEnabler := zap.NewAtomicLevelAt(zapLogLevel)
	cores := []zapcore.Core{zapcore.NewCore(terminalEncoder, factory.terminalOutput(), levelEnabler)}

	var rotatingFile *lumberjack.Logger
	if trimmedPath := strings.TrimSpace(logFile.Path); len(trimmedPath) > 0 {
		if directoryError := os.MkdirAll(filepath.Dir(trimmedPath), logDirectoryPermissionsConstant); directoryError != nil {
			return LoggerOutputs{}, fmt.Errorf(logDirectoryCreationTemplateConstant, filepath.Dir(trimmedPath), directoryError)
		}
		rotatingFile = &lumberjack.Logger{
			Filename:   trimmedPath,
			MaxSize:    positiveOrDefault(logFile.MaximumSizeMegabytes, defaultLogFileMaximumSizeMegabytes),
			MaxBackups: positiveOrDefault(logFile.MaximumBackups, defaultLogFileMaximumBackups),
			MaxAge:     positiveOrDefault(logFile.MaximumAgeDays, defaultLogFileMaximumAgeDays),
		}
		fileEncoderConfiguration := zap.NewProductionEncoderConfig()
		fileEncoderConfiguration.TimeKey = logFileTimeKeyConstant
		fileEncoderConfiguration.EncodeTime = zapcore.ISO8601TimeEncoder
		fileEncoderConfiguration.EncodeLevel = zapcore.CapitalLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(fileEncoderConfiguration), zapcore.AddSync(rotatingFile), levelEnabler))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.ErrorOutput(factory.terminalOutput()))
	return LoggerOutputs{DiagnosticLogger: logger, logFile: rotatingFile}, nil
}

func (factory *LoggerFactory) terminalOutput() zapcore.WriteSyncer {
	if factory != nil && factory.standardError != nil {
		return factory.standardError
	}
	return zapcore.Lock(os.Stderr)
}

func buildEncoder(logFormat LogFormat) (zapcore.Encoder, error) {
	switch logFormat {
	case LogFormatStructured:
		encoderConfiguration := zap.NewProductionEncoderConfig()
		encoderConfiguration.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewJSONEncoder(encoderConfiguration), nil
	case LogFormatConsole:
		encoderConfiguration := zap.NewDevelopmentEncoderConfig()
		encoderConfiguration.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(encoderConfiguration), nil
	default:
		return nil, fmt.Errorf(unsupportedLogFormatTemplateConstant, logFormat)
	}
}

func positiveOrDefault(value int, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}
