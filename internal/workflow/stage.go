package workflow

import (
	"strconv"
	"strings"
)

const (
	stageIssueNameConstant          = "Issue"
	stagePreparationNameConstant    = "Preparation"
	stageImplementationNameConstant = "Implementation"
	stageTestingNameConstant        = "Testing"
	stageFinalizationNameConstant   = "Finalization"
	stageUnknownNameConstant        = "Unknown"
)

// Stage identifies one step of the workflow.
type Stage int

// Workflow stages. StageIssue opens the tracking issue and is handled outside the Coordinator.
const (
	StageIssue Stage = iota
	StagePreparation
	StageImplementation
	StageTesting
	StageFinalization
)

// WorkflowStages lists the stages driven by the Coordinator in execution order.
var WorkflowStages = []Stage{StagePreparation, StageImplementation, StageTesting, StageFinalization}

// ParseStage converts a command-line argument into a Stage in the range 0-4.
func ParseStage(value string) (Stage, error) {
	trimmedValue := strings.TrimSpace(value)
	parsedValue, parseError := strconv.Atoi(trimmedValue)
	if parseError != nil {
		return 0, InvalidStageArgumentError{Value: trimmedValue}
	}
	stage := Stage(parsedValue)
	if stage != StageIssue && !stage.IsWorkflowStage() {
		return 0, UnknownStageError{Stage: stage}
	}
	return stage, nil
}

// IsWorkflowStage reports whether the stage is one of 1-4.
func (stage Stage) IsWorkflowStage() bool {
	return stage >= StagePreparation && stage <= StageFinalization
}

// Name returns the default display name.
func (stage Stage) Name() string {
	switch stage {
	case StageIssue:
		return stageIssueNameConstant
	case StagePreparation:
		return stagePreparationNameConstant
	case StageImplementation:
		return stageImplementationNameConstant
	case StageTesting:
		return stageTestingNameConstant
	case StageFinalization:
		return stageFinalizationNameConstant
	default:
		return stageUnknownNameConstant
	}
}

// String renders the numeric stage.
func (stage Stage) String() string {
	return strconv.Itoa(int(stage))
}
