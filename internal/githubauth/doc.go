// Package githubauth locates the GitHub token used by the REST client.
package githubauth
