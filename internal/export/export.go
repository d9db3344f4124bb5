// Package export renders the profiles collected by a completed task as
// downloadable CSV or JSON files.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/phrazzld/scout-api/internal/domain"
)

// Format is an export file format.
type Format string

// Supported export formats.
const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// FilenamePrefix starts every export file name.
const FilenamePrefix = "instagram_profiles"

// CSVHeader is the header row of CSV exports.
var CSVHeader = []string{"Username", "Profile URL"}

var (
	// ErrNoResults is returned when there is nothing to export.
	ErrNoResults = errors.New("no results to export")

	// ErrUnsupportedFormat is returned for unknown format names.
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

// File is a rendered export.
type File struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ParseFormat converts a format name into a Format. An empty name selects CSV.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

// Filename returns the download name for an export made at now, e.g.
// instagram_profiles_2024-05-01.csv.
func Filename(format Format, now time.Time) string {
	return fmt.Sprintf("%s_%s.%s", FilenamePrefix, now.UTC().Format(time.DateOnly), format)
}

// Render writes profiles in the given format.
func Render(profiles []domain.Profile, format Format, now time.Time) (*File, error) {
	if len(profiles) == 0 {
		return nil, ErrNoResults
	}

	var buf bytes.Buffer
	var contentType string

	switch format {
	case FormatCSV:
		contentType = "text/csv; charset=utf-8"
		if err := WriteCSV(&buf, profiles); err != nil {
			return nil, err
		}
	case FormatJSON:
		contentType = "application/json"
		if err := WriteJSON(&buf, profiles); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	return &File{
		Filename:    Filename(format, now),
		ContentType: contentType,
		Data:        buf.Bytes(),
	}, nil
}

// WriteCSV writes a header row followed by one row per profile.
func WriteCSV(w io.Writer, profiles []domain.Profile) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, p := range profiles {
		if err := cw.Write([]string{p.Username, p.URL}); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

// WriteJSON writes profiles as an indented JSON array.
func WriteJSON(w io.Writer, profiles []domain.Profile) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(profiles); err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	return nil
}
