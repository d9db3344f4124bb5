// Package config loads the service configuration from defaults, an optional
// config.yaml and SCOUT_-prefixed environment variables, and validates it
// with struct tags before any component is constructed.
package config
