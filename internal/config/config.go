package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Backend  BackendConfig  `yaml:"backend" mapstructure:"backend"`
	Geo      GeoConfig      `yaml:"geo" mapstructure:"geo"`
	Speech   SpeechConfig   `yaml:"speech" mapstructure:"speech"`
	Audio    AudioConfig    `yaml:"audio" mapstructure:"audio"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Forecast ForecastConfig `yaml:"forecast" mapstructure:"forecast"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// BackendConfig holds the advice backend connection settings.
type BackendConfig struct {
	BaseURL         string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs     int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSec  float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	DefaultLanguage string  `yaml:"default_language" mapstructure:"default_language"`
}

// GeoConfig configures the one-shot device locator.
type GeoConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	ProbeURL    string `yaml:"probe_url" mapstructure:"probe_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// SpeechConfig configures the streaming speech recognizer.
type SpeechConfig struct {
	ASREndpoint string `yaml:"asr_endpoint" mapstructure:"asr_endpoint"`
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
	SampleRate  int    `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// AudioConfig configures synthesized-speech playback.
type AudioConfig struct {
	PlayerPath string `yaml:"player_path" mapstructure:"player_path"`
}

// StoreConfig configures the local history/cache database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ForecastConfig configures forecast defaults.
type ForecastConfig struct {
	DefaultHorizonDays int    `yaml:"default_horizon_days" mapstructure:"default_horizon_days"`
	TaxonomyTTLHours   int    `yaml:"taxonomy_ttl_hours" mapstructure:"taxonomy_ttl_hours"`
	ExportDir          string `yaml:"export_dir" mapstructure:"export_dir"`
}

// ServerConfig configures the local HTTP facade.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("AGRIAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("backend.base_url", "http://localhost:8000")
	v.SetDefault("backend.timeout_secs", 90)
	v.SetDefault("backend.requests_per_sec", 2.0)
	v.SetDefault("backend.default_language", "en")
	v.SetDefault("geo.enabled", true)
	v.SetDefault("geo.probe_url", "http://ip-api.com/json")
	v.SetDefault("geo.timeout_secs", 5)
	v.SetDefault("speech.sample_rate", 16000)
	v.SetDefault("audio.player_path", "ffplay")
	v.SetDefault("store.path", "agriagent.db")
	v.SetDefault("forecast.default_horizon_days", 30)
	v.SetDefault("forecast.taxonomy_ttl_hours", 24)
	v.SetDefault("forecast.export_dir", ".")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
