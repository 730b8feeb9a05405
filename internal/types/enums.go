package types

// SignalSource is the provenance tag identifying which tier produced a signal.
type SignalSource string

const (
	SourceLive      SignalSource = "live-provider"
	SourceLLM       SignalSource = "llm-estimated"
	SourceSynthetic SignalSource = "synthetic-fallback"
)

// SignalKind names the signal family; it is part of every cache key.
type SignalKind string

const (
	SignalEnvironment SignalKind = "environment"
	SignalTraffic     SignalKind = "traffic"
)

// SignalMode forces a tier chain to start from a particular provider.
//
//	auto - live, then llm, then synthetic
//	live - live, then synthetic (llm skipped)
//	llm  - llm, then synthetic (live skipped)
type SignalMode string

const (
	ModeAuto SignalMode = "auto"
	ModeLive SignalMode = "live"
	ModeLLM  SignalMode = "llm"
)

// RiskLevel is the discrete traffic-light classification of a risk score.
type RiskLevel string

const (
	RiskGreen  RiskLevel = "GREEN"
	RiskYellow RiskLevel = "YELLOW"
	RiskRed    RiskLevel = "RED"
)

// Driver identifies one of the four weighted risk components. Declaration
// order is the tie-break order for the dominant driver.
type Driver string

const (
	DriverCrowdLoad          Driver = "crowd_load"
	DriverWeatherEnvironment Driver = "weather_environment"
	DriverTraffic            Driver = "traffic"
	DriverSocialSignal       Driver = "social_signal"
)

// Drivers lists every driver in tie-break order.
var Drivers = []Driver{
	DriverCrowdLoad,
	DriverWeatherEnvironment,
	DriverTraffic,
	DriverSocialSignal,
}

// PredictorProvider selects the footfall predictor implementation.
type PredictorProvider string

const (
	PredictorModel PredictorProvider = "model"
	PredictorLLM   PredictorProvider = "llm"
)
