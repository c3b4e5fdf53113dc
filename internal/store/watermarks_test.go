package store

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func TestWatermarkGetReturnsStoredCursor(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT last_seen FROM ingestion_watermarks").
		WithArgs("applicant_data_json").
		WillReturnRows(pgxmock.NewRows([]string{"last_seen"}).AddRow("2026-01-02"))

	s := NewWatermarkStore(mock)
	cursor, ok, err := s.Get(context.Background(), "applicant_data_json")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "2026-01-02", cursor)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWatermarkGetAbsentSource(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT last_seen FROM ingestion_watermarks").
		WithArgs("unknown").
		WillReturnRows(pgxmock.NewRows([]string{"last_seen"}))

	s := NewWatermarkStore(mock)
	cursor, ok, err := s.Get(context.Background(), "unknown")
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, cursor)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWatermarkSetUpserts(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO ingestion_watermarks").
		WithArgs("applicant_data_json", "2026-01-02").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	s := NewWatermarkStore(mock)
	require.NoError(t, s.Set(context.Background(), "applicant_data_json", "2026-01-02"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWatermarkEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS ingestion_watermarks").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	s := NewWatermarkStore(mock)
	require.NoError(t, s.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
