package db

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"

	"crowdrisk/internal/types"
)

// FeatureRepository reads the hourly footfall_history series.
type FeatureRepository struct {
	db DBTX
}

// NewFeatureRepository creates a new FeatureRepository.
func NewFeatureRepository(db DBTX) *FeatureRepository {
	return &FeatureRepository{db: db}
}

// Latest returns the most recent sample for a location, or (nil, nil) when the
// location has no history yet.
func (r *FeatureRepository) Latest(ctx context.Context, locationID int64) (*types.FeatureSample, error) {
	row := r.db.QueryRow(ctx,
		`SELECT timestamp, weather_score, holiday_flag, weekend_flag,
		        social_media_spike_index, traffic_index, actual_footfall
		 FROM footfall_history
		 WHERE location_id = $1
		 ORDER BY timestamp DESC
		 LIMIT 1`,
		locationID,
	)

	s := types.FeatureSample{LocationID: locationID}
	err := row.Scan(
		&s.Timestamp,
		&s.WeatherScore,
		&s.HolidayFlag,
		&s.WeekendFlag,
		&s.SocialMediaSpikeIndex,
		&s.TrafficIndex,
		&s.ActualFootfall,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load latest features", err)
	}
	return &s, nil
}

// RollingMean averages actual_footfall over the n most recent samples. It
// returns 0 when there is no history.
func (r *FeatureRepository) RollingMean(ctx context.Context, locationID int64, n int) (float64, error) {
	if n <= 0 {
		n = 3
	}

	var mean float64
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(AVG(actual_footfall), 0)::float8
		 FROM (
		   SELECT actual_footfall
		   FROM footfall_history
		   WHERE location_id = $1
		   ORDER BY timestamp DESC
		   LIMIT $2
		 ) sample`,
		locationID, n,
	).Scan(&mean)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to compute rolling mean", err)
	}
	return mean, nil
}

// CorrelationSeries returns up to limit recent traffic, social and footfall
// samples for a location, oldest first.
func (r *FeatureRepository) CorrelationSeries(ctx context.Context, locationID int64, limit int) ([]types.CorrelationSample, error) {
	rows, err := r.db.Query(ctx,
		`SELECT timestamp, traffic_index, social_media_spike_index, actual_footfall
		 FROM footfall_history
		 WHERE location_id = $1
		 ORDER BY timestamp DESC
		 LIMIT $2`,
		locationID, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query correlation series", err)
	}
	defer rows.Close()

	out := []types.CorrelationSample{}
	for rows.Next() {
		var c types.CorrelationSample
		if err := rows.Scan(&c.Timestamp, &c.TrafficIndex, &c.SocialMediaSpikeIndex, &c.ActualFootfall); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan correlation row", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating correlation rows", err)
	}

	slices.Reverse(out)
	return out, nil
}

// TrendSince returns every sample recorded at or after since across all
// locations, joined with the location name and capacity, oldest first.
func (r *FeatureRepository) TrendSince(ctx context.Context, since time.Time) ([]types.TrendSample, error) {
	rows, err := r.db.Query(ctx,
		`SELECT fh.timestamp, fh.location_id, l.name, l.capacity,
		        fh.weather_score, fh.traffic_index, fh.social_media_spike_index,
		        fh.actual_footfall
		 FROM footfall_history fh
		 JOIN locations l ON l.id = fh.location_id
		 WHERE fh.timestamp >= $1
		 ORDER BY fh.timestamp ASC`,
		since,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query risk trend", err)
	}
	defer rows.Close()

	out := []types.TrendSample{}
	for rows.Next() {
		var s types.TrendSample
		if err := rows.Scan(
			&s.Timestamp,
			&s.LocationID,
			&s.LocationName,
			&s.Capacity,
			&s.WeatherScore,
			&s.TrafficIndex,
			&s.SocialMediaSpikeIndex,
			&s.ActualFootfall,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan risk trend row", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating risk trend rows", err)
	}
	return out, nil
}
