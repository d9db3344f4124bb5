// Package scraper is the HTTP client for the remote scraping worker. It
// submits jobs, checks their status and deletes their artifacts, classifying
// every status-check failure as a *domain.StatusCheckError so callers never
// inspect error strings.
package scraper
