package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/phrazzld/scout-api/internal/domain"
	"github.com/phrazzld/scout-api/internal/platform/logger"
	"github.com/phrazzld/scout-api/internal/store"
)

// PresetList is the set of saved presets together with the active selection.
type PresetList struct {
	Presets  []*domain.CriteriaPreset `json:"presets"`
	ActiveID *string                  `json:"active_id"`
}

// PresetService provides criteria preset operations
type PresetService interface {
	// ListPresets returns every preset and the active preset ID
	ListPresets(ctx context.Context) (*PresetList, error)

	// CreatePreset saves a new preset
	CreatePreset(ctx context.Context, name, criteria string) (*domain.CriteriaPreset, error)

	// RenamePreset changes a preset's name
	RenamePreset(ctx context.Context, id, name string) (*domain.CriteriaPreset, error)

	// UpdatePresetCriteria replaces a preset's criteria text
	UpdatePresetCriteria(ctx context.Context, id, criteria string) (*domain.CriteriaPreset, error)

	// DeletePreset removes a preset, clearing the active selection if needed
	DeletePreset(ctx context.Context, id string) error

	// SetActivePreset selects the active preset; nil clears the selection
	SetActivePreset(ctx context.Context, id *string) error
}

type presetServiceImpl struct {
	presets store.PresetStore
	logger  *slog.Logger
	now     func() time.Time
}

// NewPresetService creates a new PresetService.
func NewPresetService(presets store.PresetStore, logger *slog.Logger) (PresetService, error) {
	if presets == nil {
		return nil, &ServiceError{Service: "preset", Operation: "create_service", Message: "presets cannot be nil"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &presetServiceImpl{
		presets: presets,
		logger:  logger.With("component", "preset_service"),
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *presetServiceImpl) ListPresets(ctx context.Context) (*PresetList, error) {
	presets, err := s.presets.List(ctx)
	if err != nil {
		return nil, NewPresetServiceError("list_presets", "failed to list presets", err)
	}

	activeID, err := s.presets.ActiveID(ctx)
	if err != nil {
		return nil, NewPresetServiceError("list_presets", "failed to read active preset", err)
	}

	return &PresetList{Presets: presets, ActiveID: activeID}, nil
}

func (s *presetServiceImpl) CreatePreset(ctx context.Context, name, criteria string) (*domain.CriteriaPreset, error) {
	preset, err := domain.NewCriteriaPreset(name, criteria)
	if err != nil {
		return nil, invalidInput(err)
	}

	if err := s.presets.Create(ctx, preset); err != nil {
		return nil, NewPresetServiceError("create_preset", "failed to save preset", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("criteria preset created",
		"preset_id", preset.ID,
		"name", preset.Name)
	return preset, nil
}

func (s *presetServiceImpl) RenamePreset(ctx context.Context, id, name string) (*domain.CriteriaPreset, error) {
	return s.update(ctx, "rename_preset", id, func(p *domain.CriteriaPreset) {
		p.Name = strings.TrimSpace(name)
	})
}

func (s *presetServiceImpl) UpdatePresetCriteria(ctx context.Context, id, criteria string) (*domain.CriteriaPreset, error) {
	return s.update(ctx, "update_preset_criteria", id, func(p *domain.CriteriaPreset) {
		p.Criteria = criteria
	})
}

func (s *presetServiceImpl) update(
	ctx context.Context,
	operation, id string,
	mutate func(p *domain.CriteriaPreset),
) (*domain.CriteriaPreset, error) {
	preset, err := s.presets.GetByID(ctx, id)
	if err != nil {
		return nil, NewPresetServiceError(operation, "failed to retrieve preset", err)
	}

	mutate(preset)
	if err := preset.Validate(); err != nil {
		return nil, invalidInput(err)
	}
	preset.UpdatedAt = s.now()

	if err := s.presets.Update(ctx, preset); err != nil {
		return nil, NewPresetServiceError(operation, "failed to update preset", err)
	}
	return preset, nil
}

func (s *presetServiceImpl) DeletePreset(ctx context.Context, id string) error {
	if err := s.presets.Delete(ctx, id); err != nil {
		return NewPresetServiceError("delete_preset", "failed to delete preset", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("criteria preset deleted", "preset_id", id)
	return nil
}

func (s *presetServiceImpl) SetActivePreset(ctx context.Context, id *string) error {
	if id != nil && *id == "" {
		id = nil
	}
	if err := s.presets.SetActive(ctx, id); err != nil {
		return NewPresetServiceError("set_active_preset", "failed to set active preset", err)
	}
	return nil
}
