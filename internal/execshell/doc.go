// Package execshell provides structured helpers for invoking external tools.
//
// ShellExecutor wraps a CommandRunner with zap logging and lifecycle
// observers, converts non-zero exit codes into CommandFailedError, and exposes
// shortcuts for git, the GitHub CLI, and `sh -c` command lines. OSCommandRunner
// is the default os/exec backed runner.
package execshell
