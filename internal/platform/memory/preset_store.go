package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/phrazzld/scout-api/internal/domain"
	"github.com/phrazzld/scout-api/internal/store"
)

// PresetStore keeps criteria presets and the active selection in memory.
type PresetStore struct {
	mu       sync.RWMutex
	presets  map[string]*domain.CriteriaPreset
	order    []string
	activeID *string
}

// NewPresetStore creates an empty preset store.
func NewPresetStore() *PresetStore {
	return &PresetStore{presets: make(map[string]*domain.CriteriaPreset)}
}

var _ store.PresetStore = (*PresetStore)(nil)

// List implements store.PresetStore.List.
func (s *PresetStore) List(_ context.Context) ([]*domain.CriteriaPreset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	presets := make([]*domain.CriteriaPreset, 0, len(s.order))
	for _, id := range s.order {
		p := *s.presets[id]
		presets = append(presets, &p)
	}
	return presets, nil
}

// GetByID implements store.PresetStore.GetByID.
func (s *PresetStore) GetByID(_ context.Context, id string) (*domain.CriteriaPreset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.presets[id]
	if !ok {
		return nil, store.ErrPresetNotFound
	}
	c := *p
	return &c, nil
}

// Create implements store.PresetStore.Create.
func (s *PresetStore) Create(_ context.Context, preset *domain.CriteriaPreset) error {
	if err := preset.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.presets[preset.ID]; exists {
		return fmt.Errorf("%w: preset %s", store.ErrDuplicate, preset.ID)
	}

	c := *preset
	s.presets[preset.ID] = &c
	s.order = append(s.order, preset.ID)
	return nil
}

// Update implements store.PresetStore.Update.
func (s *PresetStore) Update(_ context.Context, preset *domain.CriteriaPreset) error {
	if err := preset.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.presets[preset.ID]
	if !ok {
		return store.ErrPresetNotFound
	}

	existing.Name = preset.Name
	existing.Criteria = preset.Criteria
	existing.UpdatedAt = preset.UpdatedAt
	return nil
}

// Delete implements store.PresetStore.Delete.
func (s *PresetStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.presets[id]; !ok {
		return store.ErrPresetNotFound
	}

	delete(s.presets, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.activeID != nil && *s.activeID == id {
		s.activeID = nil
	}
	return nil
}

// ActiveID implements store.PresetStore.ActiveID.
func (s *PresetStore) ActiveID(_ context.Context) (*string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneString(s.activeID), nil
}

// SetActive implements store.PresetStore.SetActive.
func (s *PresetStore) SetActive(_ context.Context, id *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != nil {
		if _, ok := s.presets[*id]; !ok {
			return store.ErrPresetNotFound
		}
	}
	s.activeID = cloneString(id)
	return nil
}
