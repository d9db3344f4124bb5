package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Preset validation errors
var (
	ErrEmptyPresetName     = errors.New("preset name cannot be empty")
	ErrEmptyPresetCriteria = errors.New("preset criteria cannot be empty")
)

// CriteriaPreset is a saved classification prompt that can be attached to
// tasks and forwarded to the remote worker on submission.
type CriteriaPreset struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Criteria  string    `json:"criteria"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCriteriaPreset creates a preset with a fresh identifier.
func NewCriteriaPreset(name, criteria string) (*CriteriaPreset, error) {
	now := time.Now().UTC()
	preset := &CriteriaPreset{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		Criteria:  criteria,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := preset.Validate(); err != nil {
		return nil, err
	}

	return preset, nil
}

// Validate checks that the preset has a name and criteria text.
func (p *CriteriaPreset) Validate() error {
	if p.Name == "" {
		return ErrEmptyPresetName
	}
	if strings.TrimSpace(p.Criteria) == "" {
		return ErrEmptyPresetCriteria
	}
	return nil
}
