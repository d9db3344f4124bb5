package store

import (
	"context"

	"github.com/phrazzld/scout-api/internal/domain"
)

// PresetStore defines the interface for criteria preset persistence,
// including the single active-preset selection.
type PresetStore interface {
	// List returns every preset ordered by creation time.
	List(ctx context.Context) ([]*domain.CriteriaPreset, error)

	// GetByID retrieves a preset. Returns ErrPresetNotFound if it does not exist.
	GetByID(ctx context.Context, id string) (*domain.CriteriaPreset, error)

	// Create saves a new preset.
	Create(ctx context.Context, preset *domain.CriteriaPreset) error

	// Update persists the name and criteria of an existing preset.
	// Returns ErrPresetNotFound if it does not exist.
	Update(ctx context.Context, preset *domain.CriteriaPreset) error

	// Delete removes a preset and clears the active selection if it pointed at it.
	// Returns ErrPresetNotFound if it does not exist.
	Delete(ctx context.Context, id string) error

	// ActiveID returns the active preset ID, or nil when none is selected.
	ActiveID(ctx context.Context) (*string, error)

	// SetActive selects the active preset. A nil id clears the selection.
	// Returns ErrPresetNotFound if id does not refer to an existing preset.
	SetActive(ctx context.Context, id *string) error
}
