package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
)

const (
	minimumSessionStage = 1
	maximumSessionStage = 4
	jsonIndentConstant  = "  "
)

// Session records the identity and progress of an in-flight workflow.
type Session struct {
	TaskReference       string    `json:"task_reference"`
	MigrationIdentifier string    `json:"migration_identifier"`
	MigrationFile       string    `json:"migration_file"`
	Sequence            int       `json:"sequence"`
	StartedAt           time.Time `json:"started_at"`
	CurrentStage        int       `json:"current_stage"`
}

// SessionStore persists at most one Session as a JSON object.
type SessionStore struct {
	path  string
	guard fileGuard
}

// NewSessionStore creates a store backed by the file at path.
func NewSessionStore(path string, lockTimeout time.Duration) *SessionStore {
	return &SessionStore{path: path, guard: newFileGuard(path, lockTimeout)}
}

// Path reports the backing file location.
func (store *SessionStore) Path() string {
	return store.path
}

// Load returns the persisted session. The boolean is false when no session file exists.
func (store *SessionStore) Load(executionContext context.Context) (Session, bool, error) {
	var session Session
	found := false
	lockError := store.guard.withLock(executionContext, func() error {
		contents, readError := os.ReadFile(store.path)
		if errors.Is(readError, fs.ErrNotExist) {
			return nil
		}
		if readError != nil {
			return IOError{Operation: operationReadSessionConstant, Path: store.path, Cause: readError}
		}

		decodedSession, decodeError := decodeSession(contents)
		if decodeError != nil {
			return CorruptSessionError{Path: store.path, Cause: decodeError}
		}
		session = decodedSession
		found = true
		return nil
	})
	if lockError != nil {
		return Session{}, false, lockError
	}
	return session, found, nil
}

// Save replaces the persisted session.
func (store *SessionStore) Save(executionContext context.Context, session Session) error {
	return store.guard.withLock(executionContext, func() error {
		encodedSession, encodeError := json.MarshalIndent(session, "", jsonIndentConstant)
		if encodeError != nil {
			return IOError{Operation: operationWriteSessionConstant, Path: store.path, Cause: encodeError}
		}
		if writeError := writeFileAtomically(store.path, encodedSession); writeError != nil {
			return IOError{Operation: operationWriteSessionConstant, Path: store.path, Cause: writeError}
		}
		return nil
	})
}

// Clear deletes the persisted session. Clearing an absent session succeeds.
func (store *SessionStore) Clear(executionContext context.Context) error {
	return store.guard.withLock(executionContext, func() error {
		removeError := os.Remove(store.path)
		if removeError != nil && !errors.Is(removeError, fs.ErrNotExist) {
			return IOError{Operation: operationClearSessionConstant, Path: store.path, Cause: removeError}
		}
		return nil
	})
}

func decodeSession(contents []byte) (Session, error) {
	var session Session
	if decodeError := json.Unmarshal(contents, &session); decodeError != nil {
		return Session{}, decodeError
	}
	if len(strings.TrimSpace(session.TaskReference)) == 0 {
		return Session{}, errors.New(sessionMissingTaskMessageConstant)
	}
	if session.CurrentStage < minimumSessionStage || session.CurrentStage > maximumSessionStage {
		return Session{}, fmt.Errorf(sessionInvalidStageTemplateConstant, session.CurrentStage)
	}
	return session, nil
}
