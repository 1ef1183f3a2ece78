// Package utils exposes reusable helpers consumed by the CLI.
//
// It houses ConfigurationLoader, which layers embedded defaults, configuration
// files and GITHUBSH_ environment overrides through Viper, and LoggerFactory,
// which builds zap loggers that optionally tee into a rotating log file.
package utils
