package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/phrazzld/scout-api/internal/domain"
	"github.com/phrazzld/scout-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPresetStoreMock(t *testing.T) (*PostgresPresetStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewPostgresPresetStore(db, nil), mock
}

func TestPostgresPresetStore_ListAndGet(t *testing.T) {
	t.Parallel()

	s, mock := newPresetStoreMock(t)
	now := time.Now().UTC()
	columns := []string{"id", "name", "criteria", "created_at", "updated_at"}

	mock.ExpectQuery(regexp.QuoteMeta("FROM criteria_presets ORDER BY created_at")).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("p1", "Founders", "founder or CEO", now, now).
			AddRow("p2", "Artists", "painter", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM criteria_presets WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(columns))

	presets, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, presets, 2)
	assert.Equal(t, "Founders", presets[0].Name)

	_, err = s.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrPresetNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPresetStore_CreateUpdateDelete(t *testing.T) {
	t.Parallel()

	s, mock := newPresetStoreMock(t)
	preset, err := domain.NewCriteriaPreset("Founders", "founder or CEO")
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO criteria_presets")).
		WithArgs(preset.ID, "Founders", "founder or CEO", preset.CreatedAt, preset.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE criteria_presets SET name = $2")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM criteria_presets")).
		WithArgs(preset.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Create(context.Background(), preset))
	assert.ErrorIs(t, s.Update(context.Background(), preset), store.ErrPresetNotFound)
	assert.NoError(t, s.Delete(context.Background(), preset.ID))
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.ErrorIs(t, s.Create(context.Background(), &domain.CriteriaPreset{ID: "x"}), store.ErrInvalidEntity)
}

func TestPostgresPresetStore_ActiveID(t *testing.T) {
	t.Parallel()

	s, mock := newPresetStoreMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE is_active")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE is_active")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("p1"))

	id, err := s.ActiveID(context.Background())
	require.NoError(t, err)
	assert.Nil(t, id)

	id, err = s.ActiveID(context.Background())
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "p1", *id)
}

func TestPostgresPresetStore_SetActive(t *testing.T) {
	t.Parallel()

	clearActive := regexp.QuoteMeta("SET is_active = FALSE WHERE is_active")
	setActive := regexp.QuoteMeta("SET is_active = TRUE WHERE id = $1")
	p1 := "p1"

	testCases := []struct {
		name        string
		id          *string
		setup       func(mock sqlmock.Sqlmock)
		expectedErr error
	}{
		{
			name: "selects preset",
			id:   &p1,
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(clearActive).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(setActive).WithArgs("p1").WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
		},
		{
			name: "clears selection",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(clearActive).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
		},
		{
			name: "unknown preset rolls back",
			id:   &p1,
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(clearActive).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(setActive).WithArgs("p1").WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectRollback()
			},
			expectedErr: store.ErrPresetNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, mock := newPresetStoreMock(t)
			tc.setup(mock)

			err := s.SetActive(context.Background(), tc.id)
			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
