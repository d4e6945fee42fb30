package types

// redactedPlaceholder replaces secret values in logs and serialization.
const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"` + redactedPlaceholder + `"`)

// SecretString is a string that never prints or serializes its value.
// Connection strings for Postgres and Redis are carried as SecretString so a
// config dump cannot leak credentials. Use Unmask() at the driver boundary.
type SecretString string

// String returns a redacted placeholder instead of the raw value.
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

// IsEmpty reports whether no secret was configured.
func (s SecretString) IsEmpty() bool {
	return s == ""
}
