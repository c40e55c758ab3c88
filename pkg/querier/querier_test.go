package querier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryReturnsRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT complaint_type").WillReturnRows(
		sqlmock.NewRows([]string{"complaint_type", "n", "created_date"}).
			AddRow([]byte("Noise - Residential"), int64(42), created),
	)

	q := New(nil, db)
	res, err := q.Query(context.Background(), "SELECT complaint_type, n, created_date FROM nyc_311 LIMIT 1")
	require.NoError(t, err)

	assert.Equal(t, []string{"complaint_type", "n", "created_date"}, res.Columns)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, "Noise - Residential", res.Rows[0]["complaint_type"])
	assert.Equal(t, int64(42), res.Rows[0]["n"])
	assert.Equal(t, "2024-06-01T12:30:00Z", res.Rows[0]["created_date"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryEmptyResult(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT borough").WillReturnRows(sqlmock.NewRows([]string{"borough"}))

	q := New(nil, db)
	res, err := q.Query(context.Background(), "SELECT borough FROM nyc_311 WHERE 1=0 LIMIT 10")
	require.NoError(t, err)

	assert.Equal(t, 0, res.Count)
	assert.NotNil(t, res.Rows)
	assert.Empty(t, res.Rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryEngineError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT bad_column").WillReturnError(errors.New(`column "bad_column" does not exist`))

	q := New(nil, db)
	_, err = q.Query(context.Background(), "SELECT bad_column FROM nyc_311 LIMIT 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad_column")
	require.NoError(t, mock.ExpectationsWereMet())
}
