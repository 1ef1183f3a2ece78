package workflow

// TemplateParameters are the values substituted into stage command templates.
type TemplateParameters struct {
	Migration     string
	MigrationFile string
	TaskReference string
	Branch        string
	Date          string
}

// CommandTemplate renders the ordered commands for one stage.
type CommandTemplate func(parameters TemplateParameters) ([]string, error)

// StageTemplates maps each stage to its command template.
type StageTemplates map[Stage]CommandTemplate

// StaticCommands returns a template that ignores its parameters.
func StaticCommands(commands ...string) CommandTemplate {
	fixedCommands := append([]string{}, commands...)
	return func(TemplateParameters) ([]string, error) {
		return append([]string{}, fixedCommands...), nil
	}
}
