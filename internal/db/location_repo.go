package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"crowdrisk/internal/types"
)

// LocationRepository provides read access to the locations reference table.
type LocationRepository struct {
	db DBTX
}

// NewLocationRepository creates a new LocationRepository backed by the given
// database connection (pool or transaction).
func NewLocationRepository(db DBTX) *LocationRepository {
	return &LocationRepository{db: db}
}

const locationColumns = `id, name, latitude, longitude, capacity, average_daily_footfall`

func scanLocation(row pgx.Row) (*types.Location, error) {
	var l types.Location
	if err := row.Scan(
		&l.ID,
		&l.Name,
		&l.Latitude,
		&l.Longitude,
		&l.Capacity,
		&l.AverageDailyFootfall,
	); err != nil {
		return nil, err
	}
	return &l, nil
}

// GetByID returns the location or a not_found_location AppError.
func (r *LocationRepository) GetByID(ctx context.Context, id int64) (*types.Location, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+locationColumns+`
		 FROM locations
		 WHERE id = $1`,
		id,
	)

	loc, err := scanLocation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundLocation, fmt.Sprintf("location %d not found", id), nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve location", err)
	}
	return loc, nil
}

// List returns every location ordered by id.
func (r *LocationRepository) List(ctx context.Context) ([]types.Location, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+locationColumns+`
		 FROM locations
		 ORDER BY id ASC`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list locations", err)
	}
	defer rows.Close()

	var out []types.Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan location row", err)
		}
		out = append(out, *loc)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating location rows", err)
	}
	return out, nil
}
