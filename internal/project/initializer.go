package project

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	directoryPermissionsConstant             = 0o755
	filePermissionsConstant                  = 0o644
	counterMissingMessageConstant            = "counter store not configured"
	configurationPathMissingMessageConstant  = "configuration file path must be provided"
	configurationEncodeErrorTemplateConstant = "failed to encode configuration: %w"
	directoryCreateErrorTemplateConstant     = "failed to create directory %s: %w"
	fileWriteErrorTemplateConstant           = "failed to write %s: %w"
	fileInspectErrorTemplateConstant         = "failed to inspect %s: %w"
	counterInitializeErrorTemplateConstant   = "failed to initialize migration counter: %w"
	configurationHeaderConstant              = "# githubsh project configuration\n"
	directoryCreatedMessageConstant          = "created directory"
	fileWrittenMessageConstant               = "wrote file"
	fileSkippedMessageConstant               = "kept existing file"
	logFieldPathConstant                     = "path"
)

//go:embed templates/commands.yaml
var defaultCommandDefinitions []byte

// ErrCounterNotConfigured indicates the initializer was built without a counter store.
var ErrCounterNotConfigured = errors.New(counterMissingMessageConstant)

// DefaultCommandDefinitions returns the command definitions template written by init.
func DefaultCommandDefinitions() []byte {
	duplicatedContent := make([]byte, len(defaultCommandDefinitions))
	copy(duplicatedContent, defaultCommandDefinitions)
	return duplicatedContent
}

// CounterInitializer creates the migration counter when it is absent.
type CounterInitializer interface {
	Read(executionContext context.Context) (int, error)
}

// InitializationOptions describes the files and directories init should create.
type InitializationOptions struct {
	ConfigurationFile     string
	ConfigurationDocument any
	MigrationDirectory    string
	CommandsFile          string
	CommandsTemplate      []byte
	AdditionalDirectories []string
	Overwrite             bool
}

// InitializationResult lists what init changed.
type InitializationResult struct {
	CreatedDirectories []string
	WrittenFiles       []string
	SkippedFiles       []string
	CounterValue       int
}

// Initializer scaffolds a project for githubsh.
type Initializer struct {
	counter CounterInitializer
	logger  *zap.Logger
}

// NewInitializer constructs an Initializer.
func NewInitializer(counter CounterInitializer, logger *zap.Logger) (*Initializer, error) {
	if counter == nil {
		return nil, ErrCounterNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Initializer{counter: counter, logger: logger}, nil
}

// Initialize creates directories, writes the configuration and command templates, and
// initializes the counter. Existing files are kept unless Overwrite is set.
func (initializer *Initializer) Initialize(executionContext context.Context, options InitializationOptions) (InitializationResult, error) {
	result := InitializationResult{}
	configurationFile := strings.TrimSpace(options.ConfigurationFile)
	if len(configurationFile) == 0 {
		return result, errors.New(configurationPathMissingMessageConstant)
	}

	directories := append([]string{options.MigrationDirectory}, options.AdditionalDirectories...)
	for _, directory := range directories {
		trimmedDirectory := strings.TrimSpace(directory)
		if len(trimmedDirectory) == 0 || trimmedDirectory == "." {
			continue
		}
		created, directoryError := ensureDirectory(trimmedDirectory)
		if directoryError != nil {
			return result, directoryError
		}
		if created {
			result.CreatedDirectories = append(result.CreatedDirectories, trimmedDirectory)
			initializer.logger.Info(directoryCreatedMessageConstant, zap.String(logFieldPathConstant, trimmedDirectory))
		}
	}

	configurationContent, encodeError := encodeConfiguration(options.ConfigurationDocument)
	if encodeError != nil {
		return result, encodeError
	}
	if writeError := initializer.writeFile(&result, configurationFile, configurationContent, options.Overwrite); writeError != nil {
		return result, writeError
	}

	if commandsFile := strings.TrimSpace(options.CommandsFile); len(commandsFile) > 0 {
		commandsTemplate := options.CommandsTemplate
		if len(commandsTemplate) == 0 {
			commandsTemplate = defaultCommandDefinitions
		}
		if writeError := initializer.writeFile(&result, commandsFile, commandsTemplate, options.Overwrite); writeError != nil {
			return result, writeError
		}
	}

	counterValue, counterError := initializer.counter.Read(executionContext)
	if counterError != nil {
		return result, fmt.Errorf(counterInitializeErrorTemplateConstant, counterError)
	}
	result.CounterValue = counterValue

	return result, nil
}

func (initializer *Initializer) writeFile(result *InitializationResult, filePath string, content []byte, overwrite bool) error {
	if !overwrite {
		_, statError := os.Stat(filePath)
		if statError == nil {
			result.SkippedFiles = append(result.SkippedFiles, filePath)
			initializer.logger.Info(fileSkippedMessageConstant, zap.String(logFieldPathConstant, filePath))
			return nil
		}
		if !errors.Is(statError, fs.ErrNotExist) {
			return fmt.Errorf(fileInspectErrorTemplateConstant, filePath, statError)
		}
	}

	if _, directoryError := ensureDirectory(filepath.Dir(filePath)); directoryError != nil {
		return directoryError
	}
	if writeError := os.WriteFile(filePath, content, filePermissionsConstant); writeError != nil {
		return fmt.Errorf(fileWriteErrorTemplateConstant, filePath, writeError)
	}
	result.WrittenFiles = append(result.WrittenFiles, filePath)
	initializer.logger.Info(fileWrittenMessageConstant, zap.String(logFieldPathConstant, filePath))
	return nil
}

func ensureDirectory(directory string) (bool, error) {
	information, statError := os.Stat(directory)
	if statError == nil && information.IsDir() {
		return false, nil
	}
	if mkdirError := os.MkdirAll(directory, directoryPermissionsConstant); mkdirError != nil {
		return false, fmt.Errorf(directoryCreateErrorTemplateConstant, directory, mkdirError)
	}
	return true, nil
}

func encodeConfiguration(document any) ([]byte, error) {
	if document == nil {
		return []byte(configurationHeaderConstant), nil
	}
	var builder strings.Builder
	builder.WriteString(configurationHeaderConstant)
	encoder := yaml.NewEncoder(&builder)
	encoder.SetIndent(2)
	if encodeError := encoder.Encode(document); encodeError != nil {
		return nil, fmt.Errorf(configurationEncodeErrorTemplateConstant, encodeError)
	}
	if closeError := encoder.Close(); closeError != nil {
		return nil, fmt.Errorf(configurationEncodeErrorTemplateConstant, closeError)
	}
	return []byte(builder.String()), nil
}
