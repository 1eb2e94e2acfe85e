package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFromBatched_NoRows(t *testing.T) {
	n, err := CopyFromBatched(context.Background(), nil, "plants", []string{"name"}, nil, 2)
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestCopyFromBatched_SplitsBatches(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// 5 rows with batch size 2 = batches of 2, 2, 1.
	mock.ExpectCopyFrom(pgx.Identifier{"plants"}, []string{"name"}).WillReturnResult(2)
	mock.ExpectCopyFrom(pgx.Identifier{"plants"}, []string{"name"}).WillReturnResult(2)
	mock.ExpectCopyFrom(pgx.Identifier{"plants"}, []string{"name"}).WillReturnResult(1)

	rows := [][]any{{"a"}, {"b"}, {"c"}, {"d"}, {"e"}}
	n, err := CopyFromBatched(context.Background(), mock, "plants", []string{"name"}, rows, 2)
	assert.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFromBatched_DefaultBatchSize(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// Fewer rows than the 5000 default fit in one COPY.
	mock.ExpectCopyFrom(pgx.Identifier{"plants"}, []string{"name"}).WillReturnResult(3)

	rows := [][]any{{"a"}, {"b"}, {"c"}}
	n, err := CopyFromBatched(context.Background(), mock, "plants", []string{"name"}, rows, 0)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFromBatched_FirstBatchError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"plants"}, []string{"name"}).
		WillReturnError(errors.New("copy failed"))

	n, err := CopyFromBatched(context.Background(), mock, "plants", []string{"name"}, [][]any{{"a"}}, 2)
	require.Error(t, err)
	assert.Zero(t, n)
	assert.Contains(t, err.Error(), "COPY INTO plants at row 0")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFromBatched_ErrorReportsOffset(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"plants"}, []string{"name"}).WillReturnResult(2)
	mock.ExpectCopyFrom(pgx.Identifier{"plants"}, []string{"name"}).
		WillReturnError(errors.New("broken pipe"))

	rows := [][]any{{"a"}, {"b"}, {"c"}}
	n, err := CopyFromBatched(context.Background(), mock, "plants", []string{"name"}, rows, 2)
	require.Error(t, err)
	assert.Equal(t, int64(2), n, "rows from completed batches still count")
	assert.Contains(t, err.Error(), "COPY INTO plants at row 2")
	assert.NoError(t, mock.ExpectationsWereMet())
}
