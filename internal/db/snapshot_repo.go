package db

import (
	"context"
	"slices"

	"crowdrisk/internal/types"
)

// SnapshotRepository persists risk evaluations to risk_snapshots. Rows are
// append-only.
type SnapshotRepository struct {
	db DBTX
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(db DBTX) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Insert writes a snapshot stamped with the database clock and fills in the
// generated ID and Timestamp on s.
func (r *SnapshotRepository) Insert(ctx context.Context, s *types.RiskSnapshot) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO risk_snapshots (
			timestamp, location_id, predicted_footfall, confidence_score,
			risk_score, sustainability_score, weather_score, traffic_index,
			social_media_spike_index, aqi_index, weather_condition,
			environmental_risk_index
		) VALUES (NOW(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, timestamp`,
		s.LocationID,
		s.PredictedFootfall,
		s.ConfidenceScore,
		s.RiskScore,
		s.SustainabilityScore,
		s.WeatherScore,
		s.TrafficIndex,
		s.SocialMediaSpikeIndex,
		s.AQIIndex,
		s.WeatherCondition,
		s.EnvironmentalRiskIndex,
	).Scan(&s.ID, &s.Timestamp)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert risk snapshot", err)
	}
	return nil
}

// Recent returns up to limit snapshots for a location in chronological order
// (oldest first). The query reads newest-first so LIMIT keeps the latest rows.
func (r *SnapshotRepository) Recent(ctx context.Context, locationID int64, limit int) ([]types.RiskSnapshot, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, timestamp, predicted_footfall, confidence_score, risk_score,
		        sustainability_score, weather_score, traffic_index,
		        social_media_spike_index, aqi_index, weather_condition,
		        environmental_risk_index
		 FROM risk_snapshots
		 WHERE location_id = $1
		 ORDER BY timestamp DESC
		 LIMIT $2`,
		locationID, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query risk snapshots", err)
	}
	defer rows.Close()

	var out []types.RiskSnapshot
	for rows.Next() {
		s := types.RiskSnapshot{LocationID: locationID}
		if err := rows.Scan(
			&s.ID,
			&s.Timestamp,
			&s.PredictedFootfall,
			&s.ConfidenceScore,
			&s.RiskScore,
			&s.SustainabilityScore,
			&s.WeatherScore,
			&s.TrafficIndex,
			&s.SocialMediaSpikeIndex,
			&s.AQIIndex,
			&s.WeatherCondition,
			&s.EnvironmentalRiskIndex,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan risk snapshot row", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating risk snapshot rows", err)
	}

	slices.Reverse(out)
	return out, nil
}
