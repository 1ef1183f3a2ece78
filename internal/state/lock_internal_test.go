package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/require"
)

func TestFileGuardTimesOutWhileLockHeld(testInstance *testing.T) {
	statePath := filepath.Join(testInstance.TempDir(), "counter")
	heldLock := flock.New(statePath + lockFileSuffixConstant)
	locked, lockError := heldLock.TryLock()
	require.NoError(testInstance, lockError)
	require.True(testInstance, locked)
	defer func() {
		_ = heldLock.Unlock()
	}()

	guard := newFileGuard(statePath, 150*time.Millisecond)
	operationCalled := false
	guardError := guard.withLock(context.Background(), func() error {
		operationCalled = true
		return nil
	})

	require.False(testInstance, operationCalled)
	var ioError IOError
	require.ErrorAs(testInstance, guardError, &ioError)
	require.ErrorIs(testInstance, guardError, ErrLockTimeout)
}

func TestFileGuardReleasesLockAfterOperationError(testInstance *testing.T) {
	statePath := filepath.Join(testInstance.TempDir(), "session.json")
	guard := newFileGuard(statePath, time.Second)

	require.Error(testInstance, guard.withLock(context.Background(), func() error {
		return IOError{Operation: operationWriteSessionConstant, Path: statePath, Cause: ErrLockTimeout}
	}))

	probe := flock.New(statePath + lockFileSuffixConstant)
	locked, lockError := probe.TryLock()
	require.NoError(testInstance, lockError)
	require.True(testInstance, locked)
	require.NoError(testInstance, probe.Unlock())
}
