package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"crowdrisk/internal/types"
)

func TestLocationRepository_GetByID_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewLocationRepository(db)

	row := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*int64) = 7
			*dest[1].(*string) = "Marina Beach"
			*dest[2].(*float64) = 13.05
			*dest[3].(*float64) = 80.2824
			*dest[4].(*int) = 12000
			*dest[5].(*int) = 48000
			return nil
		},
	}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	loc, err := repo.GetByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), loc.ID)
	assert.Equal(t, "Marina Beach", loc.Name)
	assert.Equal(t, 12000, loc.Capacity)
	assert.Equal(t, 48000, loc.AverageDailyFootfall)
	db.AssertExpectations(t)
}

func TestLocationRepository_GetByID_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewLocationRepository(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, err := repo.GetByID(context.Background(), 404)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundLocation, appErr.Code)
	assert.False(t, appErr.Retryable())
}

func TestLocationRepository_GetByID_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewLocationRepository(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: errors.New("connection reset")})

	_, err := repo.GetByID(context.Background(), 1)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
	assert.True(t, appErr.Retryable())
}

func TestLocationRepository_List(t *testing.T) {
	db := new(mockDBTX)
	repo := NewLocationRepository(db)

	rows := newMockRows([][]any{
		{int64(1), "Fort", 12.9, 77.5, 5000, 20000},
		{int64(2), "Lake", 13.1, 77.6, 3000, 9000},
	})
	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

	locs, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, locs, 2)
	assert.Equal(t, "Fort", locs[0].Name)
	assert.Equal(t, int64(2), locs[1].ID)
	assert.Equal(t, 9000, locs[1].AverageDailyFootfall)
	assert.True(t, rows.closed)
}

func TestLocationRepository_List_QueryError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewLocationRepository(db)

	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(nil, errors.New("timeout"))

	_, err := repo.List(context.Background())

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestLocationRepository_List_IterationError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewLocationRepository(db)

	rows := newMockRows(nil)
	rows.errVal = errors.New("stream broke")
	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

	_, err := repo.List(context.Background())
	require.Error(t, err)
}
