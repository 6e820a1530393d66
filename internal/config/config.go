package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Model    ModelConfig    `mapstructure:"model"`
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	Doubao   DoubaoConfig   `mapstructure:"doubao"`
	Qwen     QwenConfig     `mapstructure:"qwen"`
	ImageGen ImageGenConfig `mapstructure:"image_gen"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Log      LogConfig      `mapstructure:"log"`
	Session  SessionConfig  `mapstructure:"session"`
	Storage  StorageConfig  `mapstructure:"storage"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
}

type ModelConfig struct {
	Provider string `mapstructure:"provider"` // gemini, openai, doubao, qwen
}

// GeminiConfig 文本模型配置（通过OpenAI兼容端点访问，openai供应商也复用此结构）
type GeminiConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	Model           string        `mapstructure:"model"`
	MaxOutputTokens int           `mapstructure:"max_output_tokens"`
	Temperature     float32       `mapstructure:"temperature"`
	TopP            float32       `mapstructure:"top_p"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

type DoubaoConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type QwenConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float32       `mapstructure:"temperature"`
	TopP        float32       `mapstructure:"top_p"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type ImageGenConfig struct {
	Endpoint     string        `mapstructure:"endpoint"`
	APIKey       string        `mapstructure:"api_key"`
	Model        string        `mapstructure:"model"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RequestDelay time.Duration `mapstructure:"request_delay"` // 相邻两次生成请求之间的固定间隔
}

// PipelineConfig 编辑管线行为配置
type PipelineConfig struct {
	MaxRetries       int           `mapstructure:"max_retries"`
	InitialBackoff   time.Duration `mapstructure:"initial_backoff"`
	// 瞬时错误判定子串（大小写不敏感）。供应商错误格式不稳定，按需扩充
	TransientMarkers []string `mapstructure:"transient_markers"`
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

type SessionConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"` // memory 或 disk
	DataDir       string `mapstructure:"data_dir"`
	CacheSize     int    `mapstructure:"cache_size"`
	PublicBaseURL string `mapstructure:"public_base_url"` // 资产URL前缀，为空则内联base64
}

var cfg *Config

func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SLIDECRAFT")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg = &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	// 配置文件优先，缺省时回落到环境变量
	if cfg.Gemini.APIKey == "" {
		if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
			cfg.Gemini.APIKey = apiKey
		}
		if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" && cfg.Gemini.APIKey == "" {
			cfg.Gemini.APIKey = apiKey
		}
	}
	if cfg.Doubao.APIKey == "" {
		if apiKey := os.Getenv("ARK_API_KEY"); apiKey != "" {
			cfg.Doubao.APIKey = apiKey
		}
	}
	if cfg.ImageGen.APIKey == "" {
		if apiKey := os.Getenv("IMAGE_GEN_API_KEY"); apiKey != "" {
			cfg.ImageGen.APIKey = apiKey
		}
	}

	applyDefaults(cfg)

	return cfg, nil
}

func applyDefaults(c *Config) {
	if c.Pipeline.MaxRetries == 0 {
		c.Pipeline.MaxRetries = 3
	}
	if c.Pipeline.InitialBackoff == 0 {
		c.Pipeline.InitialBackoff = time.Second
	}
	if len(c.Pipeline.TransientMarkers) == 0 {
		c.Pipeline.TransientMarkers = []string{
			"overloaded", "unavailable", "503", "429", "quota", "rate limit",
		}
	}
	if c.Gemini.MaxOutputTokens == 0 {
		c.Gemini.MaxOutputTokens = 8192
	}
	if c.ImageGen.MaxRetries == 0 {
		c.ImageGen.MaxRetries = 3
	}
	if c.ImageGen.RequestDelay == 0 {
		c.ImageGen.RequestDelay = 2 * time.Second
	}
	if c.Storage.CacheSize == 0 {
		c.Storage.CacheSize = 100
	}
}

func Get() *Config {
	return cfg
}
