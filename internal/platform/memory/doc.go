// Package memory provides process-local implementations of the store
// interfaces. They back the service when no database URL is configured and
// double as fast fakes in tests. All state is lost when the process exits.
package memory
