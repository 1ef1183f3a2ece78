// Package githubapi implements the GitHub client contract against the REST API v3.
package githubapi
