// Package project locates the project root and scaffolds new projects.
//
// FindRoot walks upward to the nearest directory holding .git, Layout resolves
// configured paths against that root, and Initializer writes the configuration,
// the command definitions template and the migration counter.
package project
