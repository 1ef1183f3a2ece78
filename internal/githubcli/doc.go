// Package githubcli implements the GitHub client contract on top of the gh command.
//
// Requests are translated into gh subcommands executed through execshell, so tests
// can substitute the executor and inspect the exact arguments passed to gh.
package githubcli
