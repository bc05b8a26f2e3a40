// Package config loads martinrun settings using Viper
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/raykavin/martinrun/pkg/backtesting"
	"github.com/raykavin/martinrun/pkg/regime"
	"github.com/raykavin/martinrun/pkg/strategy"
)

// EnvPrefix prefixes every environment override, e.g. MARTINRUN_CAPITAL
const EnvPrefix = "MARTINRUN"

// Data sources
const (
	SourceBinance = "binance"
	SourceCSV     = "csv"
)

// Constants for configuration
const (
	DefaultInput     = "./entries.json"
	DefaultCachePath = "./martinrun.db"
	DefaultTimezone  = "UTC"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the application configuration
type Config struct {
	Input      string  `mapstructure:"input"`
	Output     string  `mapstructure:"output"`
	Capital    float64 `mapstructure:"capital"`
	Commission float64 `mapstructure:"commission"`
	StopAware  bool    `mapstructure:"stop_aware"`
	Timezone   string  `mapstructure:"timezone"`
	// MaxEntries overrides the per-build cap. Zero keeps the default and a
	// negative value disables the cap.
	MaxEntries int `mapstructure:"max_entries"`
	SampleSize int `mapstructure:"sample_size"`

	Source   SourceConfig      `mapstructure:"source"`
	Binance  BinanceConfig     `mapstructure:"binance"`
	Cache    CacheConfig       `mapstructure:"cache"`
	Telegram TelegramConfig    `mapstructure:"telegram"`
	Mail     MailConfig        `mapstructure:"mail"`
	Variants map[string]string `mapstructure:"variants"`

	// Params holds the resolved parameters of every variant: defaults for
	// the selected build with any "params.<variant>" keys applied on top.
	Params map[strategy.Kind]strategy.Params `mapstructure:"-"`
}

// SourceConfig selects where bars come from
type SourceConfig struct {
	Type string `mapstructure:"type"`
	// Files maps a pair to a CSV file of 1m bars, used when Type is csv
	Files map[string]string `mapstructure:"files"`
}

// BinanceConfig holds Binance exchange configuration
type BinanceConfig struct {
	APIKey     string  `mapstructure:"api_key"`
	SecretKey  string  `mapstructure:"secret_key"`
	UseTestnet bool    `mapstructure:"use_testnet"`
	BaseURL    string  `mapstructure:"base_url"`
	RateLimit  float64 `mapstructure:"rate_limit"`
	MaxRetries int     `mapstructure:"max_retries"`
}

// CacheConfig controls the candle cache
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Path    string        `mapstructure:"path"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
	Users   []int  `mapstructure:"users"`
}

// MailConfig holds e-mail notification configuration
type MailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Server   string `mapstructure:"server"`
	Port     int    `mapstructure:"port"`
	From     string `mapstructure:"from"`
	To       string `mapstructure:"to"`
	Password string `mapstructure:"password"`
	Subject  string `mapstructure:"subject"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("input", DefaultInput)
	v.SetDefault("output", "")
	v.SetDefault("capital", backtesting.DefaultCapital)
	v.SetDefault("stop_aware", true)
	v.SetDefault("timezone", DefaultTimezone)
	v.SetDefault("max_entries", 0)
	v.SetDefault("sample_size", strategy.DefaultSampleSize)

	v.SetDefault("source.type", SourceBinance)

	v.SetDefault("binance.use_testnet", false)
	v.SetDefault("binance.rate_limit", 10)
	v.SetDefault("binance.max_retries", 5)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", DefaultCachePath)
	v.SetDefault("cache.ttl", time.Duration(0))

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("mail.enabled", false)
	v.SetDefault("mail.port", 587)
}

// defaultCommission is the taker fee of a build when none is configured. Only
// the stop-aware build charges one.
func defaultCommission(stopAware bool) float64 {
	if stopAware {
		return backtesting.DefaultCommission
	}
	return 0
}

// Load reads the optional .env file, the optional YAML file at path and the
// environment, in increasing order of precedence. Binance credentials are
// also read from BINANCE_API_KEY and BINANCE_SECRET_KEY.
func Load(path string) (*Config, error) {
	// a missing .env file is fine
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range map[string]string{
		"binance.api_key":    "BINANCE_API_KEY",
		"binance.secret_key": "BINANCE_SECRET_KEY",
		"telegram.token":     "TELEGRAM_TOKEN",
	} {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if !v.IsSet("commission") {
		cfg.Commission = defaultCommission(cfg.StopAware)
	}

	params, err := resolveParams(v, cfg.StopAware)
	if err != nil {
		return nil, err
	}
	cfg.Params = params

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func resolveParams(v *viper.Viper, stopAware bool) (map[strategy.Kind]strategy.Params, error) {
	params := make(map[strategy.Kind]strategy.Params)
	for _, kind := range []strategy.Kind{strategy.Reverse, strategy.Multifactor, strategy.TimeLimited, strategy.RiskLimited} {
		p := strategy.DefaultParams(kind, stopAware)
		if sub := v.Sub("params." + kind.String()); sub != nil {
			if err := sub.Unmarshal(&p); err != nil {
				return nil, fmt.Errorf("failed to parse %s params: %w", kind, err)
			}
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %s params: %v", ErrInvalidConfig, kind, err)
		}
		params[kind] = p
	}
	return params, nil
}

// Validate checks values that cannot be defaulted
func (c *Config) Validate() error {
	switch {
	case c.Capital <= 0:
		return fmt.Errorf("%w: capital must be positive", ErrInvalidConfig)
	case c.Commission < 0:
		return fmt.Errorf("%w: commission must not be negative", ErrInvalidConfig)
	case c.Source.Type != SourceBinance && c.Source.Type != SourceCSV:
		return fmt.Errorf("%w: unknown source %q", ErrInvalidConfig, c.Source.Type)
	case c.Source.Type == SourceCSV && len(c.Source.Files) == 0:
		return fmt.Errorf("%w: csv source needs source.files", ErrInvalidConfig)
	case c.Telegram.Enabled && c.Telegram.Token == "":
		return fmt.Errorf("%w: telegram enabled without token", ErrInvalidConfig)
	case c.Mail.Enabled && (c.Mail.Server == "" || c.Mail.To == ""):
		return fmt.Errorf("%w: mail enabled without server or recipient", ErrInvalidConfig)
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.VariantMap(); err != nil {
		return err
	}
	return nil
}

// Location resolves the configured timezone
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}

// VariantMap parses the regime to variant overrides, e.g. "uptrend: risk_limited"
func (c *Config) VariantMap() (map[regime.Regime]strategy.Kind, error) {
	variants := make(map[regime.Regime]strategy.Kind, len(c.Variants))
	for label, name := range c.Variants {
		r, err := regime.Parse(label)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		kind, err := strategy.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		variants[r] = kind
	}
	return variants, nil
}
