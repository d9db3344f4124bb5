package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/scout-api/internal/domain"
	"github.com/phrazzld/scout-api/internal/platform/logger"
	"github.com/phrazzld/scout-api/internal/store"
)

// TxDB is a connection that can both run queries and open transactions.
// *sql.DB satisfies it.
type TxDB interface {
	store.DBTX
	store.TxBeginner
}

// PostgresPresetStore implements store.PresetStore. The active selection is
// an is_active flag guarded by a partial unique index.
type PostgresPresetStore struct {
	db     TxDB
	logger *slog.Logger
}

// NewPostgresPresetStore creates a new PostgresPresetStore.
func NewPostgresPresetStore(db TxDB, logger *slog.Logger) *PostgresPresetStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresPresetStore{
		db:     db,
		logger: logger.With(slog.String("component", "preset_store")),
	}
}

var _ store.PresetStore = (*PostgresPresetStore)(nil)

// List implements store.PresetStore.List.
func (s *PostgresPresetStore) List(ctx context.Context) ([]*domain.CriteriaPreset, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, criteria, created_at, updated_at FROM criteria_presets ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list presets: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var presets []*domain.CriteriaPreset
	for rows.Next() {
		var p domain.CriteriaPreset
		if err := rows.Scan(&p.ID, &p.Name, &p.Criteria, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan preset: %w", err)
		}
		presets = append(presets, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating preset rows: %w", err)
	}

	return presets, nil
}

// GetByID implements store.PresetStore.GetByID.
func (s *PostgresPresetStore) GetByID(ctx context.Context, id string) (*domain.CriteriaPreset, error) {
	var p domain.CriteriaPreset
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, criteria, created_at, updated_at FROM criteria_presets WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Criteria, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrPresetNotFound
		}
		return nil, fmt.Errorf("failed to get preset: %w", MapError(err))
	}

	return &p, nil
}

// Create implements store.PresetStore.Create.
func (s *PostgresPresetStore) Create(ctx context.Context, preset *domain.CriteriaPreset) error {
	if err := preset.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO criteria_presets (id, name, criteria, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		preset.ID, preset.Name, preset.Criteria, preset.CreatedAt, preset.UpdatedAt)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to create preset",
			slog.String("error", err.Error()),
			slog.String("preset_id", preset.ID))
		return fmt.Errorf("failed to create preset: %w", MapError(err))
	}

	return nil
}

// Update implements store.PresetStore.Update.
func (s *PostgresPresetStore) Update(ctx context.Context, preset *domain.CriteriaPreset) error {
	if err := preset.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE criteria_presets SET name = $2, criteria = $3, updated_at = $4 WHERE id = $1`,
		preset.ID, preset.Name, preset.Criteria, preset.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update preset: %w", MapError(err))
	}

	return CheckRowsAffected(result, store.ErrPresetNotFound)
}

// Delete implements store.PresetStore.Delete. The active flag lives on the
// row, so deleting the active preset clears the selection.
func (s *PostgresPresetStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM criteria_presets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete preset: %w", MapError(err))
	}

	return CheckRowsAffected(result, store.ErrPresetNotFound)
}

// ActiveID implements store.PresetStore.ActiveID.
func (s *PostgresPresetStore) ActiveID(ctx context.Context) (*string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM criteria_presets WHERE is_active LIMIT 1`).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active preset: %w", MapError(err))
	}

	return &id, nil
}

// SetActive implements store.PresetStore.SetActive. Clearing the old flag and
// setting the new one happen in one transaction so the partial unique index
// never sees two active rows.
func (s *PostgresPresetStore) SetActive(ctx context.Context, id *string) error {
	return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE criteria_presets SET is_active = FALSE WHERE is_active`); err != nil {
			return fmt.Errorf("failed to clear active preset: %w", MapError(err))
		}

		if id == nil {
			return nil
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE criteria_presets SET is_active = TRUE WHERE id = $1`, *id)
		if err != nil {
			return fmt.Errorf("failed to set active preset: %w", MapError(err))
		}

		return CheckRowsAffected(result, store.ErrPresetNotFound)
	})
}
