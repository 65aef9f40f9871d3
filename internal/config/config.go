package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/newthinker/factorlab/internal/core"
	"github.com/spf13/viper"
)

type Config struct {
	Data        DataConfig        `mapstructure:"data"`
	WalkForward WalkForwardConfig `mapstructure:"walkforward"`
	Model       ModelConfig       `mapstructure:"model"`
	Portfolio   PortfolioConfig   `mapstructure:"portfolio"`
	Backtest    BacktestConfig    `mapstructure:"backtest"`
	Runner      RunnerConfig      `mapstructure:"runner"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Log         LogConfig         `mapstructure:"log"`
}

// DataConfig locates the input panels.
type DataConfig struct {
	Features       string          `mapstructure:"features"`
	Prices         string          `mapstructure:"prices"`
	PriceColumn    string          `mapstructure:"price_column" default:"close" validate:"required"`
	TargetColumn   string          `mapstructure:"target_column" default:"y_fwd_3m" validate:"required"`
	FeatureColumns []string        `mapstructure:"feature_columns"` // empty = every non-key, non-target column
	Benchmark      BenchmarkConfig `mapstructure:"benchmark"`
}

// BenchmarkConfig names an optional buy-and-hold comparison series.
type BenchmarkConfig struct {
	Prices string `mapstructure:"prices"`
	Ticker string `mapstructure:"ticker"`
}

// WalkForwardConfig controls split generation.
type WalkForwardConfig struct {
	TrainYears    int `mapstructure:"train_years" default:"5" validate:"gte=1"`
	TestMonths    int `mapstructure:"test_months" default:"6" validate:"gte=1"`
	MinTrainDates int `mapstructure:"min_train_dates" default:"24" validate:"gte=1"`
}

// ModelConfig selects and tunes the cross-sectional scorer.
type ModelConfig struct {
	Kind         string      `mapstructure:"kind" default:"gbrt" validate:"oneof=gbrt ridge"`
	Seed         int64       `mapstructure:"seed" default:"42"`
	MinTrainRows int         `mapstructure:"min_train_rows" default:"1000" validate:"gte=1"`
	GBRT         GBRTConfig  `mapstructure:"gbrt"`
	Ridge        RidgeConfig `mapstructure:"ridge"`
}

// GBRTConfig holds gradient boosting settings.
type GBRTConfig struct {
	MaxIter        int     `mapstructure:"max_iter" default:"400" validate:"gte=1"`
	LearningRate   float64 `mapstructure:"learning_rate" default:"0.05" validate:"gt=0"`
	MaxDepth       int     `mapstructure:"max_depth" default:"3" validate:"gte=1"`
	MinSamplesLeaf int     `mapstructure:"min_samples_leaf" default:"20" validate:"gte=1"`
	MaxBins        int     `mapstructure:"max_bins" default:"255" validate:"gte=2,lte=65535"`
	L2             float64 `mapstructure:"l2" validate:"gte=0"`
	BinSubsample   int     `mapstructure:"bin_subsample" default:"200000" validate:"gte=0"`
}

// RidgeConfig holds ridge regression settings.
type RidgeConfig struct {
	Alpha float64 `mapstructure:"alpha" default:"1" validate:"gte=0"`
}

// PortfolioConfig controls leg selection.
type PortfolioConfig struct {
	TopQ        float64 `mapstructure:"top_q" default:"0.1" validate:"gt=0,lte=0.5"`
	BotQ        float64 `mapstructure:"bot_q" default:"0.1" validate:"gt=0,lte=0.5"`
	MinUniverse int     `mapstructure:"min_universe" default:"50" validate:"gte=1"`
}

// BacktestConfig controls simulation and annualization.
type BacktestConfig struct {
	TCBps float64 `mapstructure:"tc_bps" default:"5" validate:"gte=0"`
	Freq  int     `mapstructure:"freq" default:"252" validate:"gt=0"`
}

// RunnerConfig controls walk-forward parallelism.
type RunnerConfig struct {
	Workers int `mapstructure:"workers" default:"1" validate:"gte=1"`
}

// StorageConfig selects where run artifacts are archived.
type StorageConfig struct {
	Type string   `mapstructure:"type" default:"none" validate:"oneof=none localfs s3"`
	Path string   `mapstructure:"path" default:"./runs"` // For localfs
	S3   S3Config `mapstructure:"s3"`                    // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region" default:"us-east-1"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled" default:"true"`
	Textfile string `mapstructure:"textfile"` // Prometheus textfile-collector output, optional
}

// LogConfig holds logger settings.
type LogConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level" default:"info" validate:"oneof=debug info warn error"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads configuration from file on top of Defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a config populated from the struct default tags.
func Defaults() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		// Tags are static; a failure here is a programming error.
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return cfg
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return core.WrapError(core.ErrConfigInvalid, err)
	}

	switch c.Storage.Type {
	case "localfs":
		if c.Storage.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("storage path required when type is localfs"))
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("s3 bucket required when storage type is s3"))
		}
	}

	if c.Data.Benchmark.Prices != "" && c.Data.Benchmark.Ticker == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("benchmark ticker required when benchmark prices are set"))
	}

	return nil
}

// ValidateInputs checks that both input panels are configured.
func (c *Config) ValidateInputs() error {
	if c.Data.Features == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("data.features is required"))
	}
	if c.Data.Prices == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("data.prices is required"))
	}
	return nil
}
