package main

import "time"

// Operational timing constants — named constants for values that were
// previously scattered across multiple source files.
const (
	// sessionTimeout is how long a session may go without client contact
	// before the timeout sweep evicts it.
	sessionTimeout = 120 * time.Second

	// timeoutSweepInterval is how often the idle-session sweep runs.
	timeoutSweepInterval = 15 * time.Second

	// spamResetInterval is how often every session's chat spam counter
	// is zeroed.
	spamResetInterval = 10 * time.Second

	// matchCleanupInterval is how often zero-occupancy matches are
	// garbage collected from the registry.
	matchCleanupInterval = 30 * time.Second

	// metricsInterval is how often RunMetrics logs a snapshot.
	metricsInterval = 60 * time.Second

	// restartWarningDelay is a warning period for a scheduled restart.
	// No code path reads it: the server has no scheduled-restart routine.
	restartWarningDelay = 15 * time.Second
)
