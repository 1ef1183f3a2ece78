package project

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	gitMetadataNameConstant         = ".git"
	tildeSymbolConstant             = "~"
	tildeForwardSlashPrefixConstant = "~/"
)

// HomeDirectoryProvider resolves the current user's home directory path.
type HomeDirectoryProvider func() (string, error)

// FindRoot walks upward from startDirectory looking for a .git entry and returns the
// directory containing it. When none is found the start directory itself is returned.
func FindRoot(startDirectory string) (string, error) {
	absoluteStart, absoluteError := filepath.Abs(startDirectory)
	if absoluteError != nil {
		return "", absoluteError
	}

	currentDirectory := absoluteStart
	for {
		_, statError := os.Stat(filepath.Join(currentDirectory, gitMetadataNameConstant))
		if statError == nil {
			return currentDirectory, nil
		}
		if !errors.Is(statError, fs.ErrNotExist) {
			return "", statError
		}
		parentDirectory := filepath.Dir(currentDirectory)
		if parentDirectory == currentDirectory {
			return absoluteStart, nil
		}
		currentDirectory = parentDirectory
	}
}

// Layout resolves configured paths relative to a project root.
type Layout struct {
	root                  string
	homeDirectoryProvider HomeDirectoryProvider
	homeDirectory         string
	homeDirectoryError    error
	initializationGuard   sync.Once
}

// NewLayout constructs a Layout rooted at the provided directory.
func NewLayout(root string) *Layout {
	return NewLayoutWithHome(root, os.UserHomeDir)
}

// NewLayoutWithHome constructs a Layout with a custom home directory provider.
func NewLayoutWithHome(root string, provider HomeDirectoryProvider) *Layout {
	if provider == nil {
		provider = os.UserHomeDir
	}
	return &Layout{root: filepath.Clean(root), homeDirectoryProvider: provider}
}

// Root returns the project root.
func (layout *Layout) Root() string {
	return layout.root
}

// Resolve expands a leading tilde, keeps absolute paths and joins relative paths onto the root.
// Empty input stays empty so optional paths remain disabled.
func (layout *Layout) Resolve(configuredPath string) string {
	trimmedPath := strings.TrimSpace(configuredPath)
	if len(trimmedPath) == 0 {
		return ""
	}
	expandedPath := layout.expandHome(trimmedPath)
	if filepath.IsAbs(expandedPath) {
		return filepath.Clean(expandedPath)
	}
	return filepath.Join(layout.root, expandedPath)
}

func (layout *Layout) expandHome(candidatePath string) string {
	if !strings.HasPrefix(candidatePath, tildeSymbolConstant) {
		return candidatePath
	}
	layout.initializationGuard.Do(func() {
		layout.homeDirectory, layout.homeDirectoryError = layout.homeDirectoryProvider()
	})
	if layout.homeDirectoryError != nil || len(layout.homeDirectory) == 0 {
		return candidatePath
	}
	if candidatePath == tildeSymbolConstant {
		return layout.homeDirectory
	}
	if strings.HasPrefix(candidatePath, tildeForwardSlashPrefixConstant) {
		return filepath.Join(layout.homeDirectory, strings.TrimPrefix(candidatePath, tildeForwardSlashPrefixConstant))
	}
	if strings.HasPrefix(candidatePath, tildeSymbolConstant+string(os.PathSeparator)) {
		return filepath.Join(layout.homeDirectory, strings.TrimPrefix(candidatePath, tildeSymbolConstant+string(os.PathSeparator)))
	}
	return candidatePath
}
