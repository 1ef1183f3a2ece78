// Package cli builds the githubsh command-line interface.
//
// The root command takes a task reference and a stage number: stage 0 opens the
// tracking issue and stages 1-4 are driven by workflow.Coordinator. The init,
// check, status and history subcommands scaffold a project, verify GitHub access,
// print the persisted state and list past runs. Configuration is layered through
// utils.ConfigurationLoader from the embedded defaults, .githubsh.yaml and
// GITHUBSH_ environment variables.
package cli
