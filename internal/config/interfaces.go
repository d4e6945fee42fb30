package config

import "context"

// SecretProvider resolves secret values by key. SSMProvider serves deployed
// environments; EnvVarProvider serves local runs and tests.
type SecretProvider interface {
	// GetParametersBatch returns the values of the keys it could resolve.
	// Missing keys are omitted from the map rather than reported as errors.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
