// Package api handles incoming HTTP requests, request validation and
// response formatting for tasks and criteria presets. It translates HTTP
// concerns into calls on the service layer and maps service errors back to
// status codes without leaking internal details.
package api
