package gatekit

import (
	"fmt"
	"os"
	"regexp"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/gatekit/gatekit/ratelimit/store"
)

// Limits holds the per-dimension limit specs for one scope (global
// defaults or a single endpoint). Each spec uses the "N/unit" grammar,
// e.g. "100/minute". An empty spec means no limit for that dimension.
type Limits struct {
	PerIP    string `yaml:"per_ip" validate:"omitempty,limitspec"`
	PerUser  string `yaml:"per_user" validate:"omitempty,limitspec"`
	PerEmail string `yaml:"per_email" validate:"omitempty,limitspec"`
}

// Config is the admission-control configuration surface.
//
// EndpointLimits is keyed by logical endpoint name; when used with the
// middleware package this is the chi route pattern (e.g. "/auth/login").
type Config struct {
	Enabled        bool              `yaml:"enabled"`
	Redis          store.RedisConfig `yaml:"redis"`
	DefaultLimits  Limits            `yaml:"default_limits"`
	EndpointLimits map[string]Limits `yaml:"endpoint_limits" validate:"dive"`
	ExcludedPaths  []string          `yaml:"excluded_paths"`
}

// limitSpecPattern checks the "N/unit" shape only. Unit names are not
// restricted here: the runtime parser maps unrecognized units to "hour"
// rather than erroring, and config validation must not be stricter than
// the parser.
var limitSpecPattern = regexp.MustCompile(`^[0-9]+/[a-z]+$`)

var configValidate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("limitspec", func(fl validator.FieldLevel) bool {
		return limitSpecPattern.MatchString(fl.Field().String())
	})
	return v
}()

// DefaultConfig returns a config with rate limiting enabled, a local
// Redis backend, and conservative global defaults.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		Redis: store.RedisConfig{
			URL: "localhost:6379",
		},
		DefaultLimits: Limits{
			PerIP:   "100/minute",
			PerUser: "1000/hour",
		},
		ExcludedPaths: []string{"/health", "/static/", "/docs"},
	}
}

// LoadConfig reads a YAML config file, layered over DefaultConfig.
// The loaded config is validated; a malformed limit spec in the file is
// a startup error even though the runtime parser fails open, so typos
// are caught before they silently disable a limit.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the structural validity of the config.
func (c Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
