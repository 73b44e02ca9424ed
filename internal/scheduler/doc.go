// Package scheduler runs named jobs on cron or interval schedules using
// robfig/cron, in a configurable timezone.
//
// Schedules are upserted by name, so re-registering after a config reload
// replaces the old entry. Every run gets a timeout, panics are recovered, and
// a run that fires while the previous one is still going is skipped. A
// bounded history of runs is kept for the /status command.
//
// Definitions survive Stop/Start and timezone changes: the cron instance is
// rebuilt and every definition registered again.
package scheduler
