// Package postgres provides PostgreSQL-specific implementations for the data
// storage interfaces defined in the internal/store package. Queries go through
// database/sql with the pgx stdlib driver, and the schema is managed by goose
// migrations embedded in this package.
package postgres
