package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
)

const initialCounterValue = 1

// CounterStore persists the migration sequence counter as a base-10 integer in a flat file.
type CounterStore struct {
	path  string
	guard fileGuard
}

// NewCounterStore creates a store backed by the file at path.
func NewCounterStore(path string, lockTimeout time.Duration) *CounterStore {
	return &CounterStore{path: path, guard: newFileGuard(path, lockTimeout)}
}

// Path reports the backing file location.
func (store *CounterStore) Path() string {
	return store.path
}

// Read returns the stored counter, initializing the file to 1 when it does not exist.
func (store *CounterStore) Read(executionContext context.Context) (int, error) {
	counterValue := 0
	lockError := store.guard.withLock(executionContext, func() error {
		contents, readError := os.ReadFile(store.path)
		if errors.Is(readError, fs.ErrNotExist) {
			if writeError := writeFileAtomically(store.path, []byte(strconv.Itoa(initialCounterValue))); writeError != nil {
				return IOError{Operation: operationWriteCounterConstant, Path: store.path, Cause: writeError}
			}
			counterValue = initialCounterValue
			return nil
		}
		if readError != nil {
			return IOError{Operation: operationReadCounterConstant, Path: store.path, Cause: readError}
		}

		parsedValue, parseError := parseCounter(contents)
		if parseError != nil {
			return IOError{Operation: operationReadCounterConstant, Path: store.path, Cause: parseError}
		}
		counterValue = parsedValue
		return nil
	})
	if lockError != nil {
		return 0, lockError
	}
	return counterValue, nil
}

// Advance overwrites the counter with current+1.
func (store *CounterStore) Advance(executionContext context.Context, current int) error {
	return store.guard.withLock(executionContext, func() error {
		if writeError := writeFileAtomically(store.path, []byte(strconv.Itoa(current+1))); writeError != nil {
			return IOError{Operation: operationWriteCounterConstant, Path: store.path, Cause: writeError}
		}
		return nil
	})
}

func parseCounter(contents []byte) (int, error) {
	trimmedContents := strings.TrimSpace(string(contents))
	parsedValue, parseError := strconv.Atoi(trimmedContents)
	if parseError != nil || parsedValue < 0 {
		return 0, fmt.Errorf(invalidCounterValueTemplateConstant, trimmedContents)
	}
	return parsedValue, nil
}
