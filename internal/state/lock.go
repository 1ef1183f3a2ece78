package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	lockFileSuffixConstant       = ".lock"
	lockRetryDelay               = 50 * time.Millisecond
	defaultLockTimeout           = 10 * time.Second
	stateDirectoryPermissions    = 0o755
	stateFilePermissions         = 0o644
	temporaryFilePatternConstant = ".tmp-*"
)

// fileGuard serializes access to a single state file across processes.
type fileGuard struct {
	path    string
	timeout time.Duration
}

func newFileGuard(path string, timeout time.Duration) fileGuard {
	if timeout <= 0 {
		timeout = defaultLockTimeout
	}
	return fileGuard{path: path, timeout: timeout}
}

// withLock runs operation while holding the exclusive lock for the guarded file.
func (guard fileGuard) withLock(executionContext context.Context, operation func() error) error {
	if directoryError := os.MkdirAll(filepath.Dir(guard.path), stateDirectoryPermissions); directoryError != nil {
		return IOError{Operation: operationCreateDirectoryConstant, Path: guard.path, Cause: directoryError}
	}

	lockContext, cancel := context.WithTimeout(executionContext, guard.timeout)
	defer cancel()

	fileLock := flock.New(guard.path + lockFileSuffixConstant)
	locked, lockError := fileLock.TryLockContext(lockContext, lockRetryDelay)
	if lockError != nil {
		if errors.Is(lockError, context.DeadlineExceeded) {
			lockError = ErrLockTimeout
		}
		return IOError{Operation: operationLockConstant, Path: guard.path, Cause: lockError}
	}
	if !locked {
		return IOError{Operation: operationLockConstant, Path: guard.path, Cause: ErrLockTimeout}
	}
	defer func() {
		_ = fileLock.Unlock()
	}()

	return operation()
}

// writeFileAtomically replaces path with contents through a temporary file and rename.
func writeFileAtomically(path string, contents []byte) error {
	temporaryFile, createError := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+temporaryFilePatternConstant)
	if createError != nil {
		return createError
	}
	temporaryPath := temporaryFile.Name()

	if _, writeError := temporaryFile.Write(contents); writeError != nil {
		_ = temporaryFile.Close()
		_ = os.Remove(temporaryPath)
		return writeError
	}
	if closeError := temporaryFile.Close(); closeError != nil {
		_ = os.Remove(temporaryPath)
		return closeError
	}
	if chmodError := os.Chmod(temporaryPath, stateFilePermissions); chmodError != nil {
		_ = os.Remove(temporaryPath)
		return chmodError
	}
	if renameError := os.Rename(temporaryPath, path); renameError != nil {
		_ = os.Remove(temporaryPath)
		return renameError
	}
	return nil
}
