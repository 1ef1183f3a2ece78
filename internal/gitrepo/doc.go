// Package gitrepo reads git remotes and turns GitHub remote URLs into repository references.
package gitrepo
