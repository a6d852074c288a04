package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Backend    BackendConfig    `mapstructure:"backend"`
	Generation GenerationConfig `mapstructure:"generation"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Log        LogConfig        `mapstructure:"log"`
	Storage    StorageConfig    `mapstructure:"storage"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
}

// BackendConfig points at the completion service that produces the
// interleaved multi-stream SSE body.
type BackendConfig struct {
	CompletionURL string         `mapstructure:"completion_url"`
	Password      string         `mapstructure:"password"`
	Timeout       time.Duration  `mapstructure:"timeout"`
	Sampling      SamplingConfig `mapstructure:"sampling"`
}

type SamplingConfig struct {
	Temperature    float64 `mapstructure:"temperature"`
	TopK           int     `mapstructure:"top_k"`
	TopP           float64 `mapstructure:"top_p"`
	AlphaPresence  float64 `mapstructure:"alpha_presence"`
	AlphaFrequency float64 `mapstructure:"alpha_frequency"`
	AlphaDecay     float64 `mapstructure:"alpha_decay"`
	ChunkSize      int     `mapstructure:"chunk_size"`
}

type GenerationConfig struct {
	DefaultStreamCount int           `mapstructure:"default_stream_count"`
	MaxStreamCount     int           `mapstructure:"max_stream_count"`
	MaxTokens          int           `mapstructure:"max_tokens"`
	ContinueMaxTokens  int           `mapstructure:"continue_max_tokens"`
	FlushThreshold     int           `mapstructure:"flush_threshold"`
	ThrottleInterval   time.Duration `mapstructure:"throttle_interval"`
	CloseLinger        time.Duration `mapstructure:"close_linger"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type StorageConfig struct {
	Type    string `mapstructure:"type"`
	DataDir string `mapstructure:"data_dir"`
}

var cfg *Config

func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("INKFLOW")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg = &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	// 配置文件优先，密码未配置时回退到环境变量
	if cfg.Backend.Password == "" {
		if pw := os.Getenv("INKFLOW_BACKEND_PASSWORD"); pw != "" {
			cfg.Backend.Password = pw
		}
	}

	applyDefaults(cfg)

	return cfg, nil
}

func applyDefaults(c *Config) {
	if c.Generation.DefaultStreamCount <= 0 {
		c.Generation.DefaultStreamCount = 4
	}
	if c.Generation.MaxStreamCount <= 0 {
		c.Generation.MaxStreamCount = 8
	}
	if c.Generation.MaxTokens <= 0 {
		c.Generation.MaxTokens = 256
	}
	if c.Generation.ContinueMaxTokens <= 0 {
		c.Generation.ContinueMaxTokens = 512
	}
	if c.Generation.FlushThreshold <= 0 {
		c.Generation.FlushThreshold = 100
	}
	if c.Generation.ThrottleInterval <= 0 {
		c.Generation.ThrottleInterval = 300 * time.Millisecond
	}
	if c.Generation.CloseLinger <= 0 {
		c.Generation.CloseLinger = 500 * time.Millisecond
	}
	if c.Backend.Timeout <= 0 {
		c.Backend.Timeout = 30 * time.Second
	}
}

func Get() *Config {
	return cfg
}
