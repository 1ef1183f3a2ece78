// Package ui renders command lifecycle events for people watching the terminal.
package ui
