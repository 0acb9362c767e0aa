// Package config defines the stability pool's consensus-agreed
// configuration and loads it the way luxfi-evm's peer configuration is
// loaded: github.com/spf13/viper reading a file (json/yaml/toml, viper
// picks the codec from the extension) with environment-variable
// overrides layered on top. The struct shape itself is part of
// consensus — every peer in the federation must agree on it bit for
// bit — so Load does no defaulting beyond what's explicit below.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/luxfi/stabilitypool/stability"
)

// OracleKind selects which price-oracle implementation a peer runs.
type OracleKind string

const (
	OracleBitMex OracleKind = "bitmex"
	OracleMock   OracleKind = "mock"
	OracleFile   OracleKind = "file"
)

// OracleConfig configures the price oracle a peer polls when proposing
// an EpochEnd item.
type OracleConfig struct {
	Kind OracleKind `mapstructure:"kind"`
	// URL is the HTTP endpoint for Mock, ignored otherwise.
	URL string `mapstructure:"url"`
	// Path is the local file path for File, ignored otherwise.
	Path string `mapstructure:"path"`
}

// Config is the module's full consensus-agreed configuration.
type Config struct {
	StartEpochAt    int64                     `mapstructure:"start_epoch_at"`
	EpochLength     int64                     `mapstructure:"epoch_length"`
	PriceThreshold  int                       `mapstructure:"price_threshold"`
	MaxFeeratePPM   uint64                    `mapstructure:"max_feerate_ppm"`
	CollateralRatio stability.CollateralRatio `mapstructure:"collateral_ratio"`
	Oracle          OracleConfig              `mapstructure:"oracle"`
}

// Validate checks the fields a peer must reject rather than run with,
// since an invalid config desynchronizes the federation's epoch clock.
func (c Config) Validate() error {
	if c.EpochLength <= 0 {
		return fmt.Errorf("config: epoch_length must be positive, got %d", c.EpochLength)
	}
	if c.PriceThreshold <= 0 {
		return fmt.Errorf("config: price_threshold must be positive, got %d", c.PriceThreshold)
	}
	if c.CollateralRatio.Numer == 0 || c.CollateralRatio.Denom == 0 {
		return fmt.Errorf("config: collateral_ratio numer/denom must be nonzero, got %+v", c.CollateralRatio)
	}
	switch c.Oracle.Kind {
	case OracleBitMex, OracleMock, OracleFile:
	default:
		return fmt.Errorf("config: unknown oracle kind %q", c.Oracle.Kind)
	}
	return nil
}

// Load reads configuration from path, with STABILITYPOOL_-prefixed
// environment variables taking precedence over file values.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("stabilitypool")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decoding %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
