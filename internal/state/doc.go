// Package state persists the migration counter and the in-flight workflow session
// between command invocations.
//
// Both stores keep their data in plain files under the project root and hold an
// exclusive advisory lock on a sibling ".lock" file for the duration of every
// operation.
package state
