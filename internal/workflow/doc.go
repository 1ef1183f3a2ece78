// Package workflow drives the four-stage migration workflow.
//
// A Coordinator executes one stage per invocation. It derives the migration artifact
// from the persisted counter, resolves the stage's command templates, runs them
// fail-fast through a StageExecutor, records progress in the session store and
// triggers pull request and issue updates after the testing and finalization stages.
package workflow
