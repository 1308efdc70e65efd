package partition

import (
	"github.com/cockroachdb/errors"
	"github.com/kelseyhightower/envconfig"

	"github.com/MasoumehVahedi/IntervalCracking/cracking"
	"github.com/MasoumehVahedi/IntervalCracking/zorder"
)

// Config is the environment configuration of a registry and the store
// behind it.
type Config struct {
	Mode           string  `envconfig:"CRACKING_MODE" default:"CRACK"`
	MaxEntries     int     `envconfig:"CRACKING_MAX_ENTRIES" default:"128"`
	MinEntries     int     `envconfig:"CRACKING_MIN_ENTRIES" default:"0"`
	ScaleFactor    float64 `envconfig:"CRACKING_SCALE_FACTOR" default:"100"`
	KeyWidth       int     `envconfig:"CRACKING_KEY_WIDTH" default:"32"`
	MaxConcurrency int     `envconfig:"CRACKING_MAX_CONCURRENCY" default:"4"`
	StorePath      string  `envconfig:"CRACKING_STORE_PATH" default:"intervals.db"`
	LogLevel       string  `envconfig:"CRACKING_LOG_LEVEL" default:"info"`
}

// ConfigFromEnv reads a Config from the environment.
func ConfigFromEnv() (*Config, error) {
	var config Config

	if err := envconfig.Process("", &config); err != nil {
		return nil, errors.Wrap(err, "loading environment variables")
	}

	return &config, nil
}

// Encoder returns the encoder described by the configuration.
func (c *Config) Encoder() (*zorder.Encoder, error) {
	if w := zorder.Width(c.KeyWidth); int(w) != c.KeyWidth {
		return nil, errors.Wrapf(zorder.ErrUnknownWidth, "%d", c.KeyWidth)
	}

	return zorder.New(
		zorder.WithScaleFactor(c.ScaleFactor),
		zorder.WithWidth(zorder.Width(c.KeyWidth)),
	)
}

// Options returns the registry options described by the configuration.
func (c *Config) Options() ([]Option, error) {
	mode, err := ParseMode(c.Mode)
	if err != nil {
		return nil, err
	}

	return []Option{
		WithMode(mode),
		WithMaxConcurrency(c.MaxConcurrency),
		WithEngineOptions(
			cracking.WithMaxEntries(c.MaxEntries),
			cracking.WithMinEntries(c.MinEntries),
		),
	}, nil
}

// NewFromConfig creates a registry over src configured by config.
func NewFromConfig[V any](src Source[V], config *Config) (*Registry[V], error) {
	enc, err := config.Encoder()
	if err != nil {
		return nil, errors.Wrap(err, "configuring encoder")
	}

	opts, err := config.Options()
	if err != nil {
		return nil, err
	}

	return New(src, enc, opts...), nil
}
