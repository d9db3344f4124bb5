// Package domain contains the core business entities, value objects, and
// domain logic of the application: scraping tasks, their results, criteria
// presets and the status-check contract shared with the remote worker.
// It is independent of any specific infrastructure or delivery mechanism.
package domain
