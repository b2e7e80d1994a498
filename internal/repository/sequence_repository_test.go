package repository

import (
	"context"
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrenchworks/cmms-api/internal/models"
)

func newSequenceMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSequenceRepositoryEnsureUpserts(t *testing.T) {
	db, mock, cleanup := newSequenceMock(t)
	defer cleanup()
	repo := NewSequenceRepository(db)

	mock.ExpectExec("INSERT INTO work_order_sequences").
		WithArgs(2026, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Ensure(context.Background(), nil, 2026)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSequenceRepositoryNextIncrements(t *testing.T) {
	db, mock, cleanup := newSequenceMock(t)
	defer cleanup()
	repo := NewSequenceRepository(db)

	mock.ExpectQuery("UPDATE work_order_sequences").
		WithArgs(2026, models.MaxYearlySequence, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"sequence"}).AddRow(42))

	seq, err := repo.Next(context.Background(), nil, 2026, models.MaxYearlySequence)
	require.NoError(t, err)
	assert.Equal(t, 42, seq)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSequenceRepositoryNextAtCap(t *testing.T) {
	db, mock, cleanup := newSequenceMock(t)
	defer cleanup()
	repo := NewSequenceRepository(db)

	// Guard matches nothing when the counter sits at max.
	mock.ExpectQuery("UPDATE work_order_sequences").
		WithArgs(2026, models.MaxYearlySequence, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"sequence"}))

	_, err := repo.Next(context.Background(), nil, 2026, models.MaxYearlySequence)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSequenceRepositoryCurrent(t *testing.T) {
	db, mock, cleanup := newSequenceMock(t)
	defer cleanup()
	repo := NewSequenceRepository(db)

	mock.ExpectQuery("SELECT sequence FROM work_order_sequences").
		WithArgs(2026).
		WillReturnRows(sqlmock.NewRows([]string{"sequence"}).AddRow(7))

	seq, err := repo.Current(context.Background(), nil, 2026)
	require.NoError(t, err)
	assert.Equal(t, 7, seq)
}
