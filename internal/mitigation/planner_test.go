package mitigation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crowdrisk/internal/i18n"
	"crowdrisk/internal/types"
)

var origin = types.Location{ID: 1, Name: "City Palace", Latitude: 20.0, Longitude: 75.0, Capacity: 8000}

func assessment(id int64, name string, score, lat, lng float64) *types.RiskAssessment {
	return &types.RiskAssessment{
		LocationID:   id,
		LocationName: name,
		Latitude:     lat,
		Longitude:    lng,
		RiskScore:    score,
	}
}

func withEnvironment(a *types.RiskAssessment, aqi int, severity float64) *types.RiskAssessment {
	a.Environment = &types.EnvironmentSignal{AQIIndex: aqi, WeatherSeverityIndex: severity}
	return a
}

func siblings() []*types.RiskAssessment {
	return []*types.RiskAssessment{
		assessment(1, "City Palace", 85, 20.0, 75.0),
		assessment(2, "Jantar Mantar", 30, 20.3, 75.1),
		assessment(3, "Albert Hall", 30, 20.1, 75.0),
		assessment(4, "Nahargarh", 50, 20.5, 75.2),
		assessment(5, "Jal Mahal", 90, 20.05, 75.0),
		assessment(6, "Sambhar Lake", 75, 21.0792, 75.0),
		assessment(7, "Ajmer Sharif", 75, 21.0793, 75.0),
	}
}

func TestPlan_RedWithEnvironmentActions(t *testing.T) {
	current := withEnvironment(assessment(1, "City Palace", 85, 20.0, 75.0), 4, 0.75)
	current.RiskLevel = types.RiskRed

	plan := Planner{}.Plan(origin, current, siblings(), "en")

	assert.Equal(t, int64(1), plan.LocationID)
	assert.Equal(t, "City Palace", plan.LocationName)
	assert.Equal(t, 85.0, plan.RiskScore)
	assert.Equal(t, types.RiskRed, plan.RiskLevel)
	assert.Equal(t, i18n.Message("en", i18n.AdvisoryRed), plan.Advisory)
	assert.Equal(t, []string{
		i18n.Message("en", i18n.ActionStaggered),
		i18n.Message("en", i18n.ActionShuttle),
		i18n.Message("en", i18n.ActionParking),
		i18n.Message("en", i18n.ActionAQI),
		i18n.Message("en", i18n.ActionWeather),
	}, plan.Actions)

	assert.Equal(t, []types.AlternateLocation{
		{LocationID: 3, Name: "Albert Hall", RiskScore: 30, DistanceKM: 11.12},
		{LocationID: 2, Name: "Jantar Mantar", RiskScore: 30, DistanceKM: 34.95},
		{LocationID: 4, Name: "Nahargarh", RiskScore: 50, DistanceKM: 59.38},
	}, plan.AlternateLocations)
}

func TestPlan_ControlledBoundary(t *testing.T) {
	current := withEnvironment(assessment(1, "City Palace", 70, 20.0, 75.0), 4, 0.2)
	current.RiskLevel = types.RiskYellow

	plan := Planner{}.Plan(origin, current, siblings(), "en")

	assert.Equal(t, i18n.Message("en", i18n.AdvisoryControlled), plan.Advisory)
	assert.Equal(t, []string{i18n.Message("en", i18n.Monitor), i18n.Message("en", i18n.ActionAQI)}, plan.Actions)
	assert.NotNil(t, plan.AlternateLocations)
	assert.Empty(t, plan.AlternateLocations)
}

func TestPlan_JustAboveBoundaryEscalates(t *testing.T) {
	current := assessment(1, "City Palace", 70.01, 20.0, 75.0)

	plan := Planner{}.Plan(origin, current, siblings(), "en")

	assert.Equal(t, i18n.Message("en", i18n.AdvisoryRed), plan.Advisory)
	assert.Len(t, plan.Actions, 3)
	assert.Len(t, plan.AlternateLocations, 3)
}

func TestPlan_MinimalMonitoring(t *testing.T) {
	current := withEnvironment(assessment(1, "City Palace", 22, 20.0, 75.0), 3, 0.69)

	plan := Planner{}.Plan(origin, current, nil, "hi")

	assert.Equal(t, "hi", plan.Language)
	assert.Equal(t, []string{i18n.Message("hi", i18n.MonitorMinimal)}, plan.Actions)
	assert.Equal(t, "जोखिम नियंत्रित सीमा में है।", plan.Advisory)
}

func TestPlan_UnsupportedLanguage(t *testing.T) {
	plan := Planner{}.Plan(origin, assessment(1, "City Palace", 10, 20.0, 75.0), nil, "fr")
	assert.Equal(t, "en", plan.Language)
}

func TestAlternates_RadiusBoundary(t *testing.T) {
	alts := Planner{}.Alternates(origin, 85, siblings())

	ids := make([]int64, 0, len(alts))
	for _, a := range alts {
		ids = append(ids, a.LocationID)
	}
	// Jal Mahal scores higher, Ajmer Sharif is 120.01 km away at 75.
	assert.Equal(t, []int64{3, 2, 4, 6}, ids)
	require.Len(t, alts, 4)
	assert.Equal(t, 120.0, alts[3].DistanceKM)
}

func TestAlternates_EscalationScoreAtRadius(t *testing.T) {
	candidates := []*types.RiskAssessment{
		assessment(8, "Sambhar Lake", 70.00, 21.0792, 75.0),
		assessment(9, "Ajmer Sharif", 70.00, 21.0793, 75.0),
		assessment(10, "Nahargarh", 70.00, 20.5, 75.0),
		assessment(11, "Pushkar", 69.99, 21.5, 75.0),
	}

	alts := Planner{}.Alternates(origin, 85, candidates)

	ids := make([]int64, 0, len(alts))
	for _, a := range alts {
		ids = append(ids, a.LocationID)
	}
	// A 70.00 candidate is kept at exactly 120.00 km and dropped at 120.01 km;
	// below 70 the radius does not apply.
	assert.Equal(t, []int64{11, 10, 8}, ids)
	require.Len(t, alts, 3)
	assert.Equal(t, 120.0, alts[2].DistanceKM)
	assert.Greater(t, alts[0].DistanceKM, DefaultAlternateRadiusKM)
}

func TestAlternates_ExcludesEqualScoreAndSelf(t *testing.T) {
	alts := Planner{}.Alternates(origin, 30, siblings())
	assert.Empty(t, alts)
}

func TestPlan_CustomLimits(t *testing.T) {
	current := assessment(1, "City Palace", 95, 20.0, 75.0)

	plan := Planner{MaxAlternates: 1}.Plan(origin, current, siblings(), "en")
	require.Len(t, plan.AlternateLocations, 1)
	assert.Equal(t, int64(3), plan.AlternateLocations[0].LocationID)

	alts := Planner{AlternateRadiusKM: 200}.Alternates(origin, 95, siblings())
	assert.Len(t, alts, 6)
}
