package cli

import (
	"time"

	"github.com/temirov/githubsh/internal/utils"
)

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common    ApplicationCommonConfiguration    `mapstructure:"common" yaml:"common"`
	GitHub    ApplicationGitHubConfiguration    `mapstructure:"github" yaml:"github"`
	Migration ApplicationMigrationConfiguration `mapstructure:"migration" yaml:"migration"`
	Workflow  ApplicationWorkflowConfiguration  `mapstructure:"workflow" yaml:"workflow"`
	Reports   ApplicationReportsConfiguration   `mapstructure:"reports" yaml:"reports"`
}

// ApplicationCommonConfiguration stores logging configuration shared across commands.
type ApplicationCommonConfiguration struct {
	ProjectName           string `mapstructure:"project_name" yaml:"project_name"`
	LogLevel              string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat             string `mapstructure:"log_format" yaml:"log_format"`
	LogFile               string `mapstructure:"log_file" yaml:"log_file"`
	LogFileMaximumSize    int    `mapstructure:"log_file_max_size_mb" yaml:"log_file_max_size_mb"`
	LogFileMaximumBackups int    `mapstructure:"log_file_max_backups" yaml:"log_file_max_backups"`
	LogFileMaximumAgeDays int    `mapstructure:"log_file_max_age_days" yaml:"log_file_max_age_days"`
}

// ApplicationGitHubConfiguration selects the GitHub backend and the repository it targets.
type ApplicationGitHubConfiguration struct {
	Owner          string        `mapstructure:"owner" yaml:"owner"`
	Repo           string        `mapstructure:"repo" yaml:"repo"`
	Remote         string        `mapstructure:"remote" yaml:"remote"`
	UseGitHubCLI   bool          `mapstructure:"use_gh_cli" yaml:"use_gh_cli"`
	APIBaseURL     string        `mapstructure:"api_base_url" yaml:"api_base_url"`
	TokenFile      string        `mapstructure:"token_file" yaml:"token_file"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	BaseBranch     string        `mapstructure:"base_branch" yaml:"base_branch"`
	IssueLabels    []string      `mapstructure:"issue_labels" yaml:"issue_labels"`
	IssueTemplate  string        `mapstructure:"issue_template" yaml:"issue_template"`
}

// ApplicationMigrationConfiguration controls migration naming and the counter location.
type ApplicationMigrationConfiguration struct {
	Directory   string `mapstructure:"directory" yaml:"directory"`
	Prefix      string `mapstructure:"prefix" yaml:"prefix"`
	Extension   string `mapstructure:"extension" yaml:"extension"`
	CounterFile string `mapstructure:"counter_file" yaml:"counter_file"`
}

// ApplicationWorkflowConfiguration locates the command definitions and the session file.
type ApplicationWorkflowConfiguration struct {
	CommandsFile         string        `mapstructure:"commands_file" yaml:"commands_file"`
	SessionFile          string        `mapstructure:"session_file" yaml:"session_file"`
	LockTimeout          time.Duration `mapstructure:"lock_timeout" yaml:"lock_timeout"`
	CloseIssueOnFinalize bool          `mapstructure:"close_issue_on_finalize" yaml:"close_issue_on_finalize"`
}

// ApplicationReportsConfiguration locates the run reports. Empty values disable the matching sink.
type ApplicationReportsConfiguration struct {
	Directory       string `mapstructure:"directory" yaml:"directory"`
	HistoryDatabase string `mapstructure:"history_database" yaml:"history_database"`
	MetricsFile     string `mapstructure:"metrics_file" yaml:"metrics_file"`
}

func (configuration ApplicationCommonConfiguration) logFileConfiguration(resolvedPath string) utils.LogFileConfiguration {
	return utils.LogFileConfiguration{
		Path:                 resolvedPath,
		MaximumSizeMegabytes: configuration.LogFileMaximumSize,
		MaximumBackups:       configuration.LogFileMaximumBackups,
		MaximumAgeDays:       configuration.LogFileMaximumAgeDays,
	}
}
