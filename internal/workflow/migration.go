package workflow

import (
	"fmt"
	"strings"
	"time"
)

const (
	defaultMigrationPrefixConstant    = "migration"
	defaultMigrationExtensionConstant = ".go"
	migrationDateLayoutConstant       = "20060102"
	migrationIdentifierTemplate       = "%s%s%03d"
	extensionSeparatorConstant        = "."
)

// MigrationArtifact names the migration generated for a workflow run.
type MigrationArtifact struct {
	Identifier string `json:"identifier"`
	File       string `json:"file"`
	Sequence   int    `json:"sequence"`
}

// MigrationNamer derives migration artifacts from the counter and the current date.
type MigrationNamer struct {
	Prefix    string
	Extension string
}

// Artifact computes the artifact for the given counter value. The embedded sequence is counter+1.
func (namer MigrationNamer) Artifact(counterValue int, date time.Time) MigrationArtifact {
	sequence := counterValue + 1
	identifier := fmt.Sprintf(migrationIdentifierTemplate, namer.prefix(), date.Format(migrationDateLayoutConstant), sequence)
	return MigrationArtifact{
		Identifier: identifier,
		File:       identifier + namer.extension(),
		Sequence:   sequence,
	}
}

func (namer MigrationNamer) prefix() string {
	trimmedPrefix := strings.TrimSpace(namer.Prefix)
	if len(trimmedPrefix) == 0 {
		return defaultMigrationPrefixConstant
	}
	return trimmedPrefix
}

func (namer MigrationNamer) extension() string {
	trimmedExtension := strings.TrimSpace(namer.Extension)
	if len(trimmedExtension) == 0 {
		return defaultMigrationExtensionConstant
	}
	if !strings.HasPrefix(trimmedExtension, extensionSeparatorConstant) {
		return extensionSeparatorConstant + trimmedExtension
	}
	return trimmedExtension
}
