// Package mitigation turns a risk assessment into an operator action plan
// with ranked diversion candidates.
package mitigation

import (
	"cmp"
	"slices"

	"crowdrisk/internal/geo"
	"crowdrisk/internal/i18n"
	"crowdrisk/internal/numeric"
	"crowdrisk/internal/types"
)

// Plan thresholds.
const (
	// EscalationScore is the score above which the red playbook applies.
	EscalationScore = 70.0
	// AQIActionIndex is the AQI index (1-5) at which the health advisory is
	// added.
	AQIActionIndex = 4
	// WeatherActionSeverity is the weather severity at which the weather
	// safety plan is added.
	WeatherActionSeverity = 0.7
)

// Alternate ranking defaults.
const (
	DefaultMaxAlternates = 3
	// DefaultAlternateRadiusKM limits how far a candidate that is itself at
	// or above the escalation score may be.
	DefaultAlternateRadiusKM = 120.0
)

// Planner builds mitigation plans. The zero value uses the defaults.
type Planner struct {
	MaxAlternates     int
	AlternateRadiusKM float64
}

func (p Planner) maxAlternates() int {
	if p.MaxAlternates <= 0 {
		return DefaultMaxAlternates
	}
	return p.MaxAlternates
}

func (p Planner) radiusKM() float64 {
	if p.AlternateRadiusKM <= 0 {
		return DefaultAlternateRadiusKM
	}
	return p.AlternateRadiusKM
}

// Plan builds the plan for loc. siblings are the current assessments of every
// location and may include loc itself.
func (p Planner) Plan(loc types.Location, current *types.RiskAssessment, siblings []*types.RiskAssessment, language string) *types.MitigationPlan {
	lang := i18n.Normalize(language)
	plan := &types.MitigationPlan{
		LocationID:         loc.ID,
		LocationName:       loc.Name,
		RiskScore:          current.RiskScore,
		RiskLevel:          current.RiskLevel,
		Language:           lang,
		Advisory:           i18n.Message(lang, i18n.AdvisoryControlled),
		AlternateLocations: []types.AlternateLocation{},
	}

	env := environmentActions(current, lang)

	if current.RiskScore <= EscalationScore {
		if len(env) == 0 {
			plan.Actions = []string{i18n.Message(lang, i18n.MonitorMinimal)}
		} else {
			plan.Actions = append([]string{i18n.Message(lang, i18n.Monitor)}, env...)
		}
		return plan
	}

	plan.Advisory = i18n.Message(lang, i18n.AdvisoryRed)
	plan.Actions = append([]string{
		i18n.Message(lang, i18n.ActionStaggered),
		i18n.Message(lang, i18n.ActionShuttle),
		i18n.Message(lang, i18n.ActionParking),
	}, env...)

	alts := p.Alternates(loc, current.RiskScore, siblings)
	if len(alts) > p.maxAlternates() {
		alts = alts[:p.maxAlternates()]
	}
	plan.AlternateLocations = alts
	return plan
}

func environmentActions(a *types.RiskAssessment, lang string) []string {
	var actions []string
	if a.Environment == nil {
		return actions
	}
	if a.Environment.AQIIndex >= AQIActionIndex {
		actions = append(actions, i18n.Message(lang, i18n.ActionAQI))
	}
	if a.Environment.WeatherSeverityIndex >= WeatherActionSeverity {
		actions = append(actions, i18n.Message(lang, i18n.ActionWeather))
	}
	return actions
}

// Alternates ranks every sibling with a lower score than currentScore by
// (score, distance). Candidates at or above the escalation score are kept
// only within the alternate radius.
func (p Planner) Alternates(loc types.Location, currentScore float64, siblings []*types.RiskAssessment) []types.AlternateLocation {
	out := make([]types.AlternateLocation, 0, len(siblings))
	for _, s := range siblings {
		if s == nil || s.LocationID == loc.ID || s.RiskScore >= currentScore {
			continue
		}
		out = append(out, types.AlternateLocation{
			LocationID: s.LocationID,
			Name:       s.LocationName,
			RiskScore:  s.RiskScore,
			DistanceKM: numeric.Round(geo.HaversineKM(loc.Latitude, loc.Longitude, s.Latitude, s.Longitude), 2),
		})
	}

	slices.SortStableFunc(out, func(a, b types.AlternateLocation) int {
		if c := cmp.Compare(a.RiskScore, b.RiskScore); c != 0 {
			return c
		}
		return cmp.Compare(a.DistanceKM, b.DistanceKM)
	})

	radius := p.radiusKM()
	return slices.DeleteFunc(out, func(a types.AlternateLocation) bool {
		return a.RiskScore >= EscalationScore && a.DistanceKM > radius
	})
}
