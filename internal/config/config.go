package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config captures the runtime configuration for the readaloud service.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Providers     ProviderConfig      `mapstructure:"providers"`
	Vision        VisionConfig        `mapstructure:"vision"`
	Translation   TranslationConfig   `mapstructure:"translation"`
	Speech        SpeechConfig        `mapstructure:"speech"`
	Audio         AudioConfig         `mapstructure:"audio"`
	Uploads       UploadsConfig       `mapstructure:"uploads"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Breaker       BreakerConfig       `mapstructure:"breaker"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Health        HealthConfig        `mapstructure:"health"`
}

type ServerConfig struct {
	ListenAddr            string        `mapstructure:"listen_addr"`
	PublicBaseURL         string        `mapstructure:"public_base_url"`
	BodyLimitMB           int           `mapstructure:"body_limit_mb"`
	ReadTimeout           time.Duration `mapstructure:"read_timeout"`
	IdleTimeout           time.Duration `mapstructure:"idle_timeout"`
	GracefulShutdownDelay time.Duration `mapstructure:"graceful_shutdown_delay"`
	AllowedOrigins        []string      `mapstructure:"allowed_origins"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ProviderConfig holds credentials shared by the collaborator adapters.
type ProviderConfig struct {
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	OpenAIKey           string        `mapstructure:"openai_key"`
	OpenAIBaseURL       string        `mapstructure:"openai_base_url"`
	OpenAIOrganization  string        `mapstructure:"openai_organization"`
	AzureOpenAIKey      string        `mapstructure:"azure_openai_key"`
	AzureOpenAIEndpoint string        `mapstructure:"azure_openai_endpoint"`
	AzureOpenAIVersion  string        `mapstructure:"azure_openai_version"`
	AzureVisionKey      string        `mapstructure:"azure_vision_key"`
	AzureVisionEndpoint string        `mapstructure:"azure_vision_endpoint"`
	AWSAccessKeyID      string        `mapstructure:"aws_access_key_id"`
	AWSSecretAccessKey  string        `mapstructure:"aws_secret_access_key"`
	AWSSessionToken     string        `mapstructure:"aws_session_token"`
	AWSProfile          string        `mapstructure:"aws_profile"`
	AWSRegion           string        `mapstructure:"aws_region"`
}

type VisionConfig struct {
	Provider             string   `mapstructure:"provider"`
	Model                string   `mapstructure:"model"`
	APIVersion           string   `mapstructure:"api_version"`
	Language             string   `mapstructure:"language"`
	CaptionFeatures      []string `mapstructure:"caption_features"`
	MinCaptionConfidence float64  `mapstructure:"min_caption_confidence"`
	MaxDimension         int      `mapstructure:"max_dimension"`
}

type TranslationConfig struct {
	Provider       string `mapstructure:"provider"`
	Model          string `mapstructure:"model"`
	SourceLanguage string `mapstructure:"source_language"`
	TargetLanguage string `mapstructure:"target_language"`
	MaxTokens      int32  `mapstructure:"max_tokens"`
}

type SpeechConfig struct {
	Provider     string `mapstructure:"provider"`
	Model        string `mapstructure:"model"`
	Voice        string `mapstructure:"voice"`
	Format       string `mapstructure:"format"`
	Instructions string `mapstructure:"instructions"`
}

// AudioConfig controls where synthesized artifacts are written and how they
// are addressed publicly.
type AudioConfig struct {
	Storage       string           `mapstructure:"storage"`
	URLPrefix     string           `mapstructure:"url_prefix"`
	EncryptionKey string           `mapstructure:"encryption_key"`
	S3            AudioS3Config    `mapstructure:"s3"`
	Local         AudioLocalConfig `mapstructure:"local"`
}

type AudioS3Config struct {
	Bucket       string `mapstructure:"bucket"`
	Prefix       string `mapstructure:"prefix"`
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
}

type AudioLocalConfig struct {
	Directory string `mapstructure:"directory"`
}

type UploadsConfig struct {
	Directory string `mapstructure:"directory"`
	MaxSizeMB int    `mapstructure:"max_size_mb"`
}

type RedisConfig struct {
	URL      string `mapstructure:"url"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type CacheConfig struct {
	TranslationTTL time.Duration `mapstructure:"translation_ttl"`
}

type BreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	MaxFailures      uint32        `mapstructure:"max_failures"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout"`
	HalfOpenRequests uint32        `mapstructure:"half_open_requests"`
	Interval         time.Duration `mapstructure:"interval"`
}

type ObservabilityConfig struct {
	ServiceName      string  `mapstructure:"service_name"`
	OTLPEndpoint     string  `mapstructure:"otlp_endpoint"`
	EnableOTLP       bool    `mapstructure:"enable_otlp"`
	EnableMetrics    bool    `mapstructure:"enable_metrics"`
	TraceSampleRatio float64 `mapstructure:"trace_sample_ratio"`
}

type HealthConfig struct {
	CheckInterval time.Duration `mapstructure:"check_interval"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// Options controls the config loader behavior.
type Options struct {
	ConfigFile string
	EnvFile    string
}

// Load returns the merged configuration sourced from YAML and environment variables.
func Load(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		_ = godotenv.Load(opts.EnvFile)
	} else {
		_ = godotenv.Load()
	}

	v := viper.New()
	setDefaults(v)

	explicitFile := false
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		explicitFile = true
	} else if cfg := os.Getenv("READALOUD_CONFIG_FILE"); cfg != "" {
		v.SetConfigFile(cfg)
		explicitFile = true
	}

	if !explicitFile {
		v.SetConfigName("readaloud")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("READALOUD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		timeStringToDurationHook(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate ensures required values are set and fills derived defaults.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.ListenAddr) == "" {
		return fmt.Errorf("server.listen_addr must be provided")
	}
	if c.Server.BodyLimitMB <= 0 {
		c.Server.BodyLimitMB = 25
	}
	if c.Server.GracefulShutdownDelay <= 0 {
		c.Server.GracefulShutdownDelay = 5 * time.Second
	}
	c.Server.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Server.PublicBaseURL), "/")
	c.Server.AllowedOrigins = normalizeStringSlice(c.Server.AllowedOrigins)

	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "", "info":
		c.Logging.Level = "info"
	case "debug", "warn", "error":
		c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error")
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "":
		c.Logging.Format = "json"
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text")
	}

	if c.Providers.RequestTimeout <= 0 {
		c.Providers.RequestTimeout = 60 * time.Second
	}

	if err := c.Vision.validate(); err != nil {
		return err
	}
	if err := c.Translation.validate(); err != nil {
		return err
	}
	if err := c.Speech.validate(); err != nil {
		return err
	}
	if err := c.Audio.validate(); err != nil {
		return err
	}
	if err := c.Uploads.validate(c.Server.BodyLimitMB); err != nil {
		return err
	}
	if c.Redis.PoolSize < 0 {
		return fmt.Errorf("redis.pool_size must be >= 0")
	}
	if c.Cache.TranslationTTL <= 0 {
		c.Cache.TranslationTTL = 24 * time.Hour
	}
	if c.Breaker.Enabled {
		if c.Breaker.MaxFailures == 0 {
			c.Breaker.MaxFailures = 5
		}
		if c.Breaker.OpenTimeout <= 0 {
			c.Breaker.OpenTimeout = 30 * time.Second
		}
		if c.Breaker.HalfOpenRequests == 0 {
			c.Breaker.HalfOpenRequests = 1
		}
	}
	if c.Health.CheckInterval <= 0 {
		c.Health.CheckInterval = time.Minute
	}
	if c.Health.Timeout <= 0 || c.Health.Timeout > c.Health.CheckInterval {
		c.Health.Timeout = 5 * time.Second
	}
	if strings.TrimSpace(c.Observability.ServiceName) == "" {
		c.Observability.ServiceName = "readaloud"
	}
	if r := c.Observability.TraceSampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("observability.trace_sample_ratio must be between 0 and 1")
	}
	return nil
}

func (v *VisionConfig) validate() error {
	v.Provider = strings.ToLower(strings.TrimSpace(v.Provider))
	switch v.Provider {
	case "":
		v.Provider = "azure"
	case "azure", "openai", "none":
	default:
		return fmt.Errorf("vision.provider must be azure, openai or none")
	}
	if v.MinCaptionConfidence < 0 || v.MinCaptionConfidence > 1 {
		return fmt.Errorf("vision.min_caption_confidence must be between 0 and 1")
	}
	if v.MaxDimension <= 0 {
		v.MaxDimension = 2048
	}
	v.CaptionFeatures = normalizeStringSlice(v.CaptionFeatures)
	if len(v.CaptionFeatures) == 0 {
		v.CaptionFeatures = []string{"caption"}
	}
	for _, feature := range v.CaptionFeatures {
		switch feature {
		case "caption", "denseCaptions":
		default:
			return fmt.Errorf("vision.caption_features supports caption and denseCaptions, got %q", feature)
		}
	}
	return nil
}

func (t *TranslationConfig) validate() error {
	t.Provider = strings.ToLower(strings.TrimSpace(t.Provider))
	switch t.Provider {
	case "":
		t.Provider = "openai"
	case "openai", "azure_openai", "bedrock":
	default:
		return fmt.Errorf("translation.provider must be openai, azure_openai or bedrock")
	}
	if strings.TrimSpace(t.Model) == "" {
		return fmt.Errorf("translation.model must be provided")
	}
	if strings.TrimSpace(t.TargetLanguage) == "" {
		return fmt.Errorf("translation.target_language must be provided")
	}
	if t.MaxTokens < 0 {
		return fmt.Errorf("translation.max_tokens must be >= 0")
	}
	return nil
}

func (s *SpeechConfig) validate() error {
	s.Provider = strings.ToLower(strings.TrimSpace(s.Provider))
	switch s.Provider {
	case "":
		s.Provider = "openai"
	case "openai", "azure_openai":
	default:
		return fmt.Errorf("speech.provider must be openai or azure_openai")
	}
	if strings.TrimSpace(s.Model) == "" {
		return fmt.Errorf("speech.model must be provided")
	}
	s.Format = strings.ToLower(strings.TrimSpace(s.Format))
	switch s.Format {
	case "":
		s.Format = "mp3"
	case "mp3", "aac", "flac", "opus", "wav", "pcm":
	default:
		return fmt.Errorf("speech.format %q unsupported", s.Format)
	}
	if strings.TrimSpace(s.Voice) == "" {
		s.Voice = "alloy"
	}
	return nil
}

func (a *AudioConfig) validate() error {
	a.Storage = strings.ToLower(strings.TrimSpace(a.Storage))
	switch a.Storage {
	case "":
		a.Storage = "local"
	case "local":
	case "s3":
		if strings.TrimSpace(a.S3.Bucket) == "" {
			return fmt.Errorf("audio.s3.bucket must be provided for s3 storage")
		}
	default:
		return fmt.Errorf("audio.storage must be local or s3")
	}
	prefix := "/" + strings.Trim(strings.TrimSpace(a.URLPrefix), "/")
	if prefix == "/" {
		prefix = "/audio"
	}
	a.URLPrefix = prefix
	return nil
}

func (u *UploadsConfig) validate(bodyLimitMB int) error {
	if strings.TrimSpace(u.Directory) == "" {
		u.Directory = "./data/uploads"
	}
	if u.MaxSizeMB <= 0 {
		u.MaxSizeMB = 20
	}
	if u.MaxSizeMB > bodyLimitMB {
		return fmt.Errorf("uploads.max_size_mb cannot exceed server.body_limit_mb")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8000")
	v.SetDefault("server.public_base_url", "http://localhost:8000")
	v.SetDefault("server.body_limit_mb", 25)
	v.SetDefault("server.read_timeout", "120s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.graceful_shutdown_delay", "5s")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:8000"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("providers.request_timeout", "60s")
	v.SetDefault("providers.azure_openai_version", "2024-07-01-preview")
	v.SetDefault("providers.aws_region", "us-east-1")

	v.SetDefault("vision.provider", "azure")
	v.SetDefault("vision.model", "gpt-4o-mini")
	v.SetDefault("vision.api_version", "2024-02-01")
	v.SetDefault("vision.caption_features", []string{"caption"})
	v.SetDefault("vision.min_caption_confidence", 0.0)
	v.SetDefault("vision.max_dimension", 2048)

	v.SetDefault("translation.provider", "openai")
	v.SetDefault("translation.model", "gpt-4o-mini")
	v.SetDefault("translation.source_language", "English")
	v.SetDefault("translation.target_language", "Dutch")
	v.SetDefault("translation.max_tokens", 1024)

	v.SetDefault("speech.provider", "openai")
	v.SetDefault("speech.model", "gpt-4o-mini-tts")
	v.SetDefault("speech.voice", "alloy")
	v.SetDefault("speech.format", "mp3")

	v.SetDefault("audio.storage", "local")
	v.SetDefault("audio.url_prefix", "/audio")
	v.SetDefault("audio.local.directory", "./data/audio")

	v.SetDefault("uploads.directory", "./data/uploads")
	v.SetDefault("uploads.max_size_mb", 20)

	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("cache.translation_ttl", "24h")

	v.SetDefault("breaker.enabled", true)
	v.SetDefault("breaker.max_failures", 5)
	v.SetDefault("breaker.open_timeout", "30s")
	v.SetDefault("breaker.half_open_requests", 1)
	v.SetDefault("breaker.interval", "60s")

	v.SetDefault("observability.service_name", "readaloud")
	v.SetDefault("observability.enable_otlp", false)
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.otlp_endpoint", "http://localhost:4317")
	v.SetDefault("observability.trace_sample_ratio", 1.0)

	v.SetDefault("health.check_interval", "60s")
	v.SetDefault("health.timeout", "5s")
}

func normalizeStringSlice(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	clean := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			clean = append(clean, trimmed)
		}
	}
	if len(clean) == 0 {
		return nil
	}
	return clean
}

func timeStringToDurationHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case time.Duration:
			return v, nil
		case string:
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, err
			}
			return d, nil
		default:
			return nil, fmt.Errorf("cannot decode %T into time.Duration", data)
		}
	}
}
