package githubauth

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Environment variable names used by GitHub authentication helpers.
const (
	EnvGitHubCLIToken = "GH_TOKEN"
	EnvGitHubToken    = "GITHUB_TOKEN"
	EnvGitHubAPIToken = "GITHUB_API_TOKEN"
)

const (
	tokenDirectoryNameConstant      = ".github"
	tokenFileNameConstant           = "token"
	tokenNotFoundMessageConstant    = "GitHub token not found: set GH_TOKEN, GITHUB_TOKEN or GITHUB_API_TOKEN, or write it to ~/.github/token"
	tokenFileReadErrorTemplate      = "failed to read GitHub token file %s: %w"
	tokenSourceEnvironmentTemplate  = "environment variable %s"
	tokenSourceFileTemplateConstant = "file %s"
)

// ErrTokenNotFound indicates no source provided a token.
var ErrTokenNotFound = errors.New(tokenNotFoundMessageConstant)

var tokenPreference = []string{
	EnvGitHubCLIToken,
	EnvGitHubToken,
	EnvGitHubAPIToken,
}

// Token is a resolved credential along with a description of where it came from.
type Token struct {
	Value  string
	Source string
}

// ResolveToken returns the first non-empty GitHub authentication token observed
// in the provided environment map or the process environment.
func ResolveToken(environment map[string]string) (string, bool) {
	for _, key := range tokenPreference {
		if value, ok := lookup(environment, key); ok {
			return value, true
		}
	}
	for _, key := range tokenPreference {
		if value, ok := os.LookupEnv(key); ok {
			value = strings.TrimSpace(value)
			if len(value) > 0 {
				return value, true
			}
		}
	}
	return "", false
}

// Resolver looks up a token in the environment and then in a token file under the home directory.
type Resolver struct {
	Environment   map[string]string
	LookupEnv     func(string) (string, bool)
	HomeDirectory func() (string, error)
	// TokenFile overrides the default ~/.github/token location when non-empty.
	TokenFile string
}

// Resolve returns the first available token.
func (resolver Resolver) Resolve() (Token, error) {
	lookupEnvironment := resolver.LookupEnv
	if lookupEnvironment == nil {
		lookupEnvironment = os.LookupEnv
	}

	for _, key := range tokenPreference {
		if value, ok := lookup(resolver.Environment, key); ok {
			return Token{Value: value, Source: fmt.Sprintf(tokenSourceEnvironmentTemplate, key)}, nil
		}
	}
	for _, key := range tokenPreference {
		if value, ok := lookupEnvironment(key); ok {
			if trimmedValue := strings.TrimSpace(value); len(trimmedValue) > 0 {
				return Token{Value: trimmedValue, Source: fmt.Sprintf(tokenSourceEnvironmentTemplate, key)}, nil
			}
		}
	}

	tokenPath, pathError := resolver.tokenFilePath()
	if pathError != nil {
		return Token{}, ErrTokenNotFound
	}
	contents, readError := os.ReadFile(tokenPath)
	if errors.Is(readError, fs.ErrNotExist) {
		return Token{}, ErrTokenNotFound
	}
	if readError != nil {
		return Token{}, fmt.Errorf(tokenFileReadErrorTemplate, tokenPath, readError)
	}
	trimmedToken := strings.TrimSpace(string(contents))
	if len(trimmedToken) == 0 {
		return Token{}, ErrTokenNotFound
	}
	return Token{Value: trimmedToken, Source: fmt.Sprintf(tokenSourceFileTemplateConstant, tokenPath)}, nil
}

func (resolver Resolver) tokenFilePath() (string, error) {
	if trimmedPath := strings.TrimSpace(resolver.TokenFile); len(trimmedPath) > 0 {
		return trimmedPath, nil
	}
	homeDirectory := resolver.HomeDirectory
	if homeDirectory == nil {
		homeDirectory = os.UserHomeDir
	}
	directory, homeError := homeDirectory()
	if homeError != nil {
		return "", homeError
	}
	return filepath.Join(directory, tokenDirectoryNameConstant, tokenFileNameConstant), nil
}

func lookup(environment map[string]string, key string) (string, bool) {
	if environment == nil {
		return "", false
	}
	value, exists := environment[key]
	if !exists {
		return "", false
	}
	value = strings.TrimSpace(value)
	if len(value) == 0 {
		return "", false
	}
	return value, true
}
