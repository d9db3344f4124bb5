// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the application's core logic: scraping tasks and criteria presets are
// stored either in PostgreSQL or in process memory, and the task engine
// and services only ever see the interfaces declared here.
package store
