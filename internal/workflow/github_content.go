package workflow

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/temirov/githubsh/internal/github"
)

const (
	branchPrefixConstant              = "feature/"
	branchTemplateConstant            = "%s%s-%s"
	issueMarkerConstant               = "#"
	branchMarkerReplacementConstant   = "-"
	bodyTimestampLayoutConstant       = "2006-01-02 15:04:05"
	pullRequestTitleTemplateConstant  = "feat: %s for %s"
	pullRequestBodyTemplateConstant   = "## Summary\nAdds %s for %s.\n\n## Changes\n- Migration file: `%s`\n- Generated at: %s\n\n## Related issue\nCloses %s"
	issueCommentBodyTemplateConstant  = "**Migration and pull request completed**\n\n- Migration file: `%s`\n- Completed: %s\n\n## Stages\n- Stage 1: %s\n- Stage 2: %s\n- Stage 3: %s\n- Stage 4: %s"
	migrationPathTemplateConstant     = "%s/%s"
	defaultBaseBranchConstant         = "main"
	defaultMigrationDirectoryConstant = "migrations"
)

// BranchName derives the feature branch for a task: feature/<lowercased task, # replaced by ->-<migration>.
func BranchName(taskReference string, migrationIdentifier string) string {
	normalizedTask := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(taskReference), issueMarkerConstant, branchMarkerReplacementConstant))
	normalizedTask = strings.Join(strings.Fields(normalizedTask), branchMarkerReplacementConstant)
	return fmt.Sprintf(branchTemplateConstant, branchPrefixConstant, normalizedTask, migrationIdentifier)
}

// ExtractIssueNumber returns the number following the last # in the task reference.
func ExtractIssueNumber(taskReference string) (int, bool) {
	trimmedReference := strings.TrimSpace(taskReference)
	markerIndex := strings.LastIndex(trimmedReference, issueMarkerConstant)
	candidate := trimmedReference
	if markerIndex >= 0 {
		candidate = trimmedReference[markerIndex+len(issueMarkerConstant):]
	}
	issueNumber, parseError := strconv.Atoi(strings.TrimSpace(candidate))
	if parseError != nil || issueNumber <= 0 {
		return 0, false
	}
	return issueNumber, true
}

// ContentOptions configures the pull request and issue comment content.
type ContentOptions struct {
	BaseBranch         string
	MigrationDirectory string
}

func (options ContentOptions) baseBranch() string {
	trimmedBranch := strings.TrimSpace(options.BaseBranch)
	if len(trimmedBranch) == 0 {
		return defaultBaseBranchConstant
	}
	return trimmedBranch
}

func (options ContentOptions) migrationPath(migrationFile string) string {
	trimmedDirectory := strings.TrimRight(strings.TrimSpace(options.MigrationDirectory), "/")
	trimmedDirectory = strings.TrimPrefix(trimmedDirectory, "./")
	if len(trimmedDirectory) == 0 || trimmedDirectory == "." {
		trimmedDirectory = defaultMigrationDirectoryConstant
	}
	return fmt.Sprintf(migrationPathTemplateConstant, trimmedDirectory, migrationFile)
}

// BuildPullRequest assembles the pull request opened after the testing stage.
func BuildPullRequest(options ContentOptions, taskReference string, artifact MigrationArtifact, generatedAt time.Time) github.PullRequestRequest {
	return github.PullRequestRequest{
		Title: fmt.Sprintf(pullRequestTitleTemplateConstant, artifact.Identifier, taskReference),
		Body: fmt.Sprintf(
			pullRequestBodyTemplateConstant,
			artifact.Identifier,
			taskReference,
			artifact.File,
			generatedAt.Format(bodyTimestampLayoutConstant),
			taskReference,
		),
		HeadBranch: BranchName(taskReference, artifact.Identifier),
		BaseBranch: options.baseBranch(),
	}
}

// BuildIssueComment assembles the comment posted after the finalization stage.
func BuildIssueComment(options ContentOptions, artifact MigrationArtifact, stageNames map[Stage]string, completedAt time.Time) string {
	nameFor := func(stage Stage) string {
		if name, exists := stageNames[stage]; exists && len(strings.TrimSpace(name)) > 0 {
			return name
		}
		return stage.Name()
	}
	return fmt.Sprintf(
		issueCommentBodyTemplateConstant,
		options.migrationPath(artifact.File),
		completedAt.Format(bodyTimestampLayoutConstant),
		nameFor(StagePreparation),
		nameFor(StageImplementation),
		nameFor(StageTesting),
		nameFor(StageFinalization),
	)
}
