package workflow

import (
	"errors"
	"fmt"
	"time"
)

const (
	resolveErrorTemplateConstant = "failed to resolve commands for stage %d: %w"
	templateDateLayoutConstant   = "2006-01-02"
)

// CommandResolver maps a stage to its ordered command list.
type CommandResolver struct {
	templates StageTemplates
	clock     func() time.Time
}

// NewCommandResolver validates the registered templates and constructs a resolver.
// A nil clock defaults to time.Now.
func NewCommandResolver(templates StageTemplates, clock func() time.Time) (*CommandResolver, error) {
	registeredTemplates := make(StageTemplates, len(templates))
	for stage, commandTemplate := range templates {
		if !stage.IsWorkflowStage() {
			return nil, UnknownStageError{Stage: stage}
		}
		if commandTemplate == nil {
			return nil, InvalidStageDefinitionError{Stage: stage}
		}
		registeredTemplates[stage] = commandTemplate
	}
	if clock == nil {
		clock = time.Now
	}
	return &CommandResolver{templates: registeredTemplates, clock: clock}, nil
}

// ValidateDefinitions reports every workflow stage lacking a template.
func ValidateDefinitions(templates StageTemplates) error {
	var validationErrors []error
	for _, stage := range WorkflowStages {
		commandTemplate, exists := templates[stage]
		if !exists {
			validationErrors = append(validationErrors, MissingStageDefinitionError{Stage: stage})
			continue
		}
		if commandTemplate == nil {
			validationErrors = append(validationErrors, InvalidStageDefinitionError{Stage: stage})
		}
	}
	return errors.Join(validationErrors...)
}

// Validate reports every workflow stage lacking a template.
func (resolver *CommandResolver) Validate() error {
	return ValidateDefinitions(resolver.templates)
}

// Resolve renders the commands for the stage. Templates only substitute the supplied values.
func (resolver *CommandResolver) Resolve(stage Stage, migrationIdentifier string, migrationFile string, taskReference string) ([]string, error) {
	if !stage.IsWorkflowStage() {
		return nil, UnknownStageError{Stage: stage}
	}

	commandTemplate, exists := resolver.templates[stage]
	if !exists {
		return nil, MissingStageDefinitionError{Stage: stage}
	}

	commands, renderError := commandTemplate(TemplateParameters{
		Migration:     migrationIdentifier,
		MigrationFile: migrationFile,
		TaskReference: taskReference,
		Branch:        BranchName(taskReference, migrationIdentifier),
		Date:          resolver.clock().Format(templateDateLayoutConstant),
	})
	if renderError != nil {
		return nil, fmt.Errorf(resolveErrorTemplateConstant, int(stage), renderError)
	}
	return commands, nil
}
