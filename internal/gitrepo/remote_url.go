package gitrepo

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/temirov/githubsh/internal/github"
)

const (
	schemeSeparatorConstant         = "://"
	scpUserDelimiterConstant        = "@"
	scpPathDelimiterConstant        = ":"
	pathSeparatorConstant           = "/"
	gitSuffixConstant               = ".git"
	githubHostConstant              = "github.com"
	remoteParseErrorTemplate        = "%s: %s"
	requiredValueMessageConstant    = "value required"
	invalidRemoteURLMessageConstant = "invalid remote url"
	unsupportedSchemeTemplate       = "unsupported scheme %q"
	ownerRepositoryMessageConstant  = "expected <owner>/<repository> path"
	notGitHubRemoteTemplateConstant = "remote host %s is not %s"
)

// RemoteProtocol classifies how git reaches a remote.
type RemoteProtocol string

// Remote protocols recognised by ParseRemoteURL. Plain http and git:// remotes are reported as HTTPS and SSH
// respectively since only the host and path matter downstream.
const (
	RemoteProtocolSSH   RemoteProtocol = RemoteProtocol("ssh")
	RemoteProtocolHTTPS RemoteProtocol = RemoteProtocol("https")
)

var errOwnerRepositoryPath = errors.New(ownerRepositoryMessageConstant)

var schemeProtocols = map[string]RemoteProtocol{
	"ssh":     RemoteProtocolSSH,
	"git+ssh": RemoteProtocolSSH,
	"git":     RemoteProtocolSSH,
	"https":   RemoteProtocolHTTPS,
	"http":    RemoteProtocolHTTPS,
}

// RemoteURL is the host and owner/repository pair extracted from a remote.
type RemoteURL struct {
	Protocol   RemoteProtocol
	Host       string
	Owner      string
	Repository string
}

// RemoteURLParseError indicates a remote string could not be parsed.
type RemoteURLParseError struct {
	Input   string
	Message string
}

func (parseError RemoteURLParseError) Error() string {
	return fmt.Sprintf(remoteParseErrorTemplate, parseError.Input, parseError.Message)
}

// ParseRemoteURL accepts URL-style remotes (ssh://, https://, http://, git://) and scp-style remotes
// (user@host:owner/repo). Credentials and ports are discarded.
func ParseRemoteURL(remote string) (RemoteURL, error) {
	trimmedRemote := strings.TrimSpace(remote)
	if len(trimmedRemote) == 0 {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: requiredValueMessageConstant}
	}

	var parsed RemoteURL
	var path string
	if strings.Contains(trimmedRemote, schemeSeparatorConstant) {
		parsedURL, urlError := url.Parse(trimmedRemote)
		if urlError != nil {
			return RemoteURL{}, RemoteURLParseError{Input: remote, Message: invalidRemoteURLMessageConstant}
		}
		protocol, supported := schemeProtocols[strings.ToLower(parsedURL.Scheme)]
		if !supported {
			return RemoteURL{}, RemoteURLParseError{Input: remote, Message: fmt.Sprintf(unsupportedSchemeTemplate, parsedURL.Scheme)}
		}
		parsed = RemoteURL{Protocol: protocol, Host: parsedURL.Hostname()}
		path = parsedURL.Path
	} else {
		host, scpPath, isSCP := splitSCPRemote(trimmedRemote)
		if !isSCP {
			return RemoteURL{}, RemoteURLParseError{Input: remote, Message: invalidRemoteURLMessageConstant}
		}
		parsed = RemoteURL{Protocol: RemoteProtocolSSH, Host: host}
		path = scpPath
	}

	if len(parsed.Host) == 0 {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: invalidRemoteURLMessageConstant}
	}
	owner, repository, pathError := splitOwnerAndRepository(path)
	if pathError != nil {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: pathError.Error()}
	}
	parsed.Owner = owner
	parsed.Repository = repository
	return parsed, nil
}

// GitHubRepository converts a github.com remote into a repository reference.
func GitHubRepository(remote string) (github.Repository, error) {
	parsedRemote, parseError := ParseRemoteURL(remote)
	if parseError != nil {
		return github.Repository{}, parseError
	}
	if !strings.EqualFold(parsedRemote.Host, githubHostConstant) {
		return github.Repository{}, RemoteURLParseError{
			Input:   remote,
			Message: fmt.Sprintf(notGitHubRemoteTemplateConstant, parsedRemote.Host, githubHostConstant),
		}
	}
	return github.Repository{Owner: parsedRemote.Owner, Name: parsedRemote.Repository}, nil
}

// splitSCPRemote handles user@host:path. The user part is mandatory so local paths are never mistaken for remotes.
func splitSCPRemote(remote string) (string, string, bool) {
	userSeparator := strings.Index(remote, scpUserDelimiterConstant)
	if userSeparator <= 0 {
		return "", "", false
	}
	host, path, found := strings.Cut(remote[userSeparator+1:], scpPathDelimiterConstant)
	if !found || strings.Contains(host, pathSeparatorConstant) {
		return "", "", false
	}
	return host, path, true
}

func splitOwnerAndRepository(path string) (string, string, error) {
	segments := strings.Split(strings.Trim(path, pathSeparatorConstant), pathSeparatorConstant)
	if len(segments) != 2 {
		return "", "", errOwnerRepositoryPath
	}
	owner := segments[0]
	repository := strings.TrimSuffix(segments[1], gitSuffixConstant)
	if len(owner) == 0 || len(repository) == 0 {
		return "", "", errOwnerRepositoryPath
	}
	return owner, repository, nil
}
