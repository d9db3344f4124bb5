// Package task reconciles the status of running scraping tasks with the
// remote worker.
//
// The Scheduler keeps exactly one polling session per task that is running
// with an operation handle. Each session ticks on its own goroutine, asks the
// PollExecutor for a Decision and hands terminal decisions to the Reconciler,
// which commits them through the store and triggers artifact cleanup.
// Transient failures are retried with exponential backoff from the
// BackoffController.
package task
