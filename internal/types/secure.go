package types

const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString holds credentials (database URLs, provider API keys) and keeps
// them out of logs and JSON config dumps. Use Unmask() at the single point
// where the raw value is handed to a driver or an outbound request.
type SecretString string

// String returns a redacted placeholder so fmt and slog never print the value.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw plaintext value of the secret.
func (s SecretString) Unmask() string {
	return string(s)
}

// IsSet reports whether a non-empty credential was configured. Provider tiers
// use this to decide between a call and a skip.
func (s SecretString) IsSet() bool {
	return s != ""
}
