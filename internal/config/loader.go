package config

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is returned by LoadConfig to aid diagnosis of startup failures.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ssmParamSuffix marks pointer variables: DATABASE_URL_SSM_PARAM holds the
// SSM path whose value becomes DATABASE_URL.
const ssmParamSuffix = "_SSM_PARAM"

// localEnv is the APP_ENV value that bypasses SSM resolution.
const localEnv = "local"

// ssmTimeout bounds secret resolution during a cold start.
const ssmTimeout = 30 * time.Second

// loaderDeps holds the environment accessors so tests can run without
// touching process state.
type loaderDeps struct {
	lookupEnv func(key string) (string, bool)
	setEnv    func(key, value string) error
	environ   func() []string
}

func defaultDeps() loaderDeps {
	return loaderDeps{
		lookupEnv: os.LookupEnv,
		setEnv:    os.Setenv,
		environ:   os.Environ,
	}
}

// LoadConfig loads and validates the service configuration.
//
// The process timezone is forced to UTC, a .env file is loaded if present,
// and outside local mode every X_SSM_PARAM variable is resolved through
// provider into X unless X is already set. provider may be nil in local mode.
func LoadConfig(provider SecretProvider) (*Config, error) {
	return loadConfigWithDeps(provider, defaultDeps())
}

func loadConfigWithDeps(provider SecretProvider, deps loaderDeps) (*Config, error) {
	// Daily buckets and cache keys are computed in UTC.
	time.Local = time.UTC

	// Does not override variables that are already set.
	_ = godotenv.Load()

	if appEnv, _ := deps.lookupEnv("APP_ENV"); appEnv != localEnv {
		if err := resolveSSMParams(provider, deps); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}
	cfg.Build = NewBuildInfo()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}
	if err := cfg.Outbreak.Thresholds().Validate(); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "invalid outbreak thresholds",
			Err:     err,
		}
	}

	return &cfg, nil
}

// ResolveSecrets runs only the SSM resolution step. Lambda entry points that
// read a handful of variables directly call it before their first lookup.
// It is a no-op in local mode.
func ResolveSecrets(provider SecretProvider) error {
	if appEnv, _ := os.LookupEnv("APP_ENV"); appEnv == localEnv {
		return nil
	}
	return resolveSSMParams(provider, defaultDeps())
}

// ssmBindings maps SSM path to the environment variable it fills. Targets
// that are already set are skipped so direct env and .env win over SSM.
func ssmBindings(deps loaderDeps) map[string]string {
	bindings := make(map[string]string)
	for _, entry := range deps.environ() {
		key, path, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasSuffix(key, ssmParamSuffix) || path == "" {
			continue
		}
		target := strings.TrimSuffix(key, ssmParamSuffix)
		if _, set := deps.lookupEnv(target); set {
			continue
		}
		bindings[path] = target
	}
	return bindings
}

func resolveSSMParams(provider SecretProvider, deps loaderDeps) error {
	bindings := ssmBindings(deps)
	if len(bindings) == 0 {
		return nil
	}

	paths := make([]string, 0, len(bindings))
	targets := make([]string, 0, len(bindings))
	for path, target := range bindings {
		paths = append(paths, path)
		targets = append(targets, target)
	}
	sort.Strings(paths)
	sort.Strings(targets)

	if provider == nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: "SecretProvider is required outside local mode (need to resolve: " + strings.Join(targets, ", ") + ")",
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), ssmTimeout)
	defer cancel()

	resolved, err := provider.GetParametersBatch(ctx, paths)
	if err != nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("failed to resolve %d SSM parameters", len(paths)),
			Err:     err,
		}
	}

	var missing []string
	for _, path := range paths {
		target := bindings[path]
		value, ok := resolved[path]
		if !ok {
			missing = append(missing, target)
			continue
		}
		if err := deps.setEnv(target, value); err != nil {
			return &ConfigError{
				Type:    ErrSSMResolution,
				Message: "failed to set resolved value for " + target,
				Err:     err,
			}
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: "SSM parameters not found for: " + strings.Join(missing, ", "),
		}
	}
	return nil
}
