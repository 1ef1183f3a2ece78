package workflow

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

const (
	definitionsPathRequiredMessageConstant = "command definitions path must be provided"
	definitionsLoadErrorTemplateConstant   = "failed to load command definitions: %w"
	definitionsParseErrorTemplateConstant  = "failed to parse command definitions: %w"
	definitionsEmptyMessageConstant        = "command definitions must define at least one stage"
	templateCompileErrorTemplateConstant   = "stage %d command %d: %v"
	templateNameTemplateConstant           = "stage%d_command%d"
	templateMissingKeyOptionConstant       = "missingkey=error"
)

// CommandDefinitions describes per-stage commands loaded from a YAML document.
//
//	stages:
//	  1:
//	    name: Preparation
//	    commands:
//	      - git checkout -b {{.Branch}}
type CommandDefinitions struct {
	Stages map[int]StageDefinition `yaml:"stages"`
}

// StageDefinition names a stage and lists its command templates.
type StageDefinition struct {
	Name     string   `yaml:"name"`
	Commands []string `yaml:"commands"`
}

// TemplateError reports a command template that failed to compile or render.
type TemplateError struct {
	Stage        Stage
	CommandIndex int
	Cause        error
}

// Error describes the failing template.
func (templateError TemplateError) Error() string {
	return fmt.Sprintf(templateCompileErrorTemplateConstant, int(templateError.Stage), templateError.CommandIndex+1, templateError.Cause)
}

// Unwrap exposes the template engine error.
func (templateError TemplateError) Unwrap() error {
	return templateError.Cause
}

// LoadCommandDefinitions reads and validates a command definitions file.
func LoadCommandDefinitions(filePath string) (CommandDefinitions, error) {
	trimmedPath := strings.TrimSpace(filePath)
	if len(trimmedPath) == 0 {
		return CommandDefinitions{}, errors.New(definitionsPathRequiredMessageConstant)
	}

	contentBytes, readError := os.ReadFile(trimmedPath)
	if readError != nil {
		return CommandDefinitions{}, fmt.Errorf(definitionsLoadErrorTemplateConstant, readError)
	}

	return ParseCommandDefinitions(contentBytes)
}

// ParseCommandDefinitions decodes a command definitions document.
func ParseCommandDefinitions(contents []byte) (CommandDefinitions, error) {
	var definitions CommandDefinitions
	if unmarshalError := yaml.Unmarshal(contents, &definitions); unmarshalError != nil {
		return CommandDefinitions{}, fmt.Errorf(definitionsParseErrorTemplateConstant, unmarshalError)
	}

	if len(definitions.Stages) == 0 {
		return CommandDefinitions{}, errors.New(definitionsEmptyMessageConstant)
	}

	for stageNumber := range definitions.Stages {
		if !Stage(stageNumber).IsWorkflowStage() {
			return CommandDefinitions{}, fmt.Errorf(definitionsParseErrorTemplateConstant, UnknownStageError{Stage: Stage(stageNumber)})
		}
	}

	return definitions, nil
}

// StageName returns the configured stage name, falling back to the default name.
func (definitions CommandDefinitions) StageName(stage Stage) string {
	definition, exists := definitions.Stages[int(stage)]
	if !exists || len(strings.TrimSpace(definition.Name)) == 0 {
		return stage.Name()
	}
	return strings.TrimSpace(definition.Name)
}

// Templates compiles every command into a CommandTemplate keyed by stage. Blank commands are dropped.
func (definitions CommandDefinitions) Templates() (StageTemplates, error) {
	templates := make(StageTemplates, len(definitions.Stages))
	for stageNumber, definition := range definitions.Stages {
		stage := Stage(stageNumber)
		compiledTemplate, compileError := compileStageTemplate(stage, definition.Commands)
		if compileError != nil {
			return nil, compileError
		}
		templates[stage] = compiledTemplate
	}
	return templates, nil
}

func compileStageTemplate(stage Stage, commands []string) (CommandTemplate, error) {
	compiledCommands := make([]*template.Template, 0, len(commands))
	for commandIndex, command := range commands {
		if len(strings.TrimSpace(command)) == 0 {
			continue
		}
		parsedTemplate, parseError := template.New(fmt.Sprintf(templateNameTemplateConstant, int(stage), commandIndex+1)).
			Option(templateMissingKeyOptionConstant).
			Parse(command)
		if parseError != nil {
			return nil, TemplateError{Stage: stage, CommandIndex: commandIndex, Cause: parseError}
		}
		compiledCommands = append(compiledCommands, parsedTemplate)
	}

	return func(parameters TemplateParameters) ([]string, error) {
		renderedCommands := make([]string, 0, len(compiledCommands))
		for commandIndex, compiledCommand := range compiledCommands {
			var buffer bytes.Buffer
			if executeError := compiledCommand.Execute(&buffer, parameters); executeError != nil {
				return nil, TemplateError{Stage: stage, CommandIndex: commandIndex, Cause: executeError}
			}
			renderedCommands = append(renderedCommands, buffer.String())
		}
		return renderedCommands, nil
	}, nil
}
