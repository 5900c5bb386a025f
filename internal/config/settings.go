package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type RecorderConfig struct {
	SampleRate          int           `mapstructure:"sample_rate" yaml:"sample_rate"`
	Channels            int           `mapstructure:"channels" yaml:"channels"`
	Language            string        `mapstructure:"language" yaml:"language"`
	CaptureSystemAudio  bool          `mapstructure:"capture_system_audio" yaml:"capture_system_audio"`
	EmitInterval        time.Duration `mapstructure:"emit_interval" yaml:"emit_interval"`
	CheckpointInterval  time.Duration `mapstructure:"checkpoint_interval" yaml:"checkpoint_interval"`
	TickInterval        time.Duration `mapstructure:"tick_interval" yaml:"tick_interval"`
	RecoveryMinDuration time.Duration `mapstructure:"recovery_min_duration" yaml:"recovery_min_duration"`
	StaleAfter          time.Duration `mapstructure:"stale_after" yaml:"stale_after"`
	AnalyserSize        int           `mapstructure:"analyser_size" yaml:"analyser_size"`
	DeviceBacklog       int           `mapstructure:"device_backlog" yaml:"device_backlog"`
}

type VisualConfig struct {
	Capacity int           `mapstructure:"capacity" yaml:"capacity"`
	Period   time.Duration `mapstructure:"period" yaml:"period"`
	Scale    float64       `mapstructure:"scale" yaml:"scale"`
}

type OpenAIConfig struct {
	APIKey             string        `mapstructure:"api_key" yaml:"api_key"`
	BaseURL            string        `mapstructure:"base_url" yaml:"base_url"`
	TranscriptionModel string        `mapstructure:"transcription_model" yaml:"transcription_model"`
	TransformModel     string        `mapstructure:"transform_model" yaml:"transform_model"`
	Timeout            time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type S3Config struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
	Prefix          string `mapstructure:"prefix" yaml:"prefix"`
}

type StorageConfig struct {
	Backend    string        `mapstructure:"backend" yaml:"backend"` // local or s3
	LocalDir   string        `mapstructure:"local_dir" yaml:"local_dir"`
	S3         S3Config      `mapstructure:"s3" yaml:"s3"`
	PresignTTL time.Duration `mapstructure:"presign_ttl" yaml:"presign_ttl"`
}

type LimitsConfig struct {
	Minutes         int           `mapstructure:"minutes" yaml:"minutes"`
	Transformations int           `mapstructure:"transformations" yaml:"transformations"`
	Window          time.Duration `mapstructure:"window" yaml:"window"`
}

type LogConfig struct {
	Debug bool   `mapstructure:"debug" yaml:"debug"`
	File  string `mapstructure:"file" yaml:"file"`
}

// Config is the full whisp configuration.
type Config struct {
	DataDir  string         `mapstructure:"data_dir" yaml:"data_dir"`
	BYOK     bool           `mapstructure:"byok" yaml:"byok"`
	Recorder RecorderConfig `mapstructure:"recorder" yaml:"recorder"`
	Visual   VisualConfig   `mapstructure:"visual" yaml:"visual"`
	OpenAI   OpenAIConfig   `mapstructure:"openai" yaml:"openai"`
	Storage  StorageConfig  `mapstructure:"storage" yaml:"storage"`
	Limits   LimitsConfig   `mapstructure:"limits" yaml:"limits"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// DatabasePath is where notes and in-progress recordings live.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "whisp.db")
}

// Load reads defaults, then the config file (explicit path or
// $XDG_CONFIG_HOME/whisp/config.yaml if present), then WHISP_* env vars.
func Load(path string) (*Config, error) {
	v := viper.New()
	if err := setDefaults(v); err != nil {
		return nil, err
	}

	v.SetEnvPrefix("whisp")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "whisp"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// the openai SDK convention
	if cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the recorder cannot run with.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir must be set")
	}
	if c.Recorder.SampleRate <= 0 || c.Recorder.Channels <= 0 {
		return fmt.Errorf("invalid recorder format %dHz/%dch", c.Recorder.SampleRate, c.Recorder.Channels)
	}
	if c.Recorder.EmitInterval <= 0 || c.Recorder.CheckpointInterval <= 0 || c.Recorder.TickInterval <= 0 {
		return errors.New("recorder intervals must be positive")
	}
	switch c.Storage.Backend {
	case "local":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return errors.New("storage.s3.bucket must be set for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	return nil
}

func setDefaults(v *viper.Viper) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	dataDir := filepath.Join(home, ".whisp")

	v.SetDefault("data_dir", dataDir)
	v.SetDefault("byok", false)

	v.SetDefault("recorder.sample_rate", 16000)
	v.SetDefault("recorder.channels", 1)
	v.SetDefault("recorder.language", "en")
	v.SetDefault("recorder.capture_system_audio", false)
	v.SetDefault("recorder.emit_interval", 10*time.Second)
	v.SetDefault("recorder.checkpoint_interval", 5*time.Second)
	v.SetDefault("recorder.tick_interval", time.Second)
	v.SetDefault("recorder.recovery_min_duration", 5*time.Second)
	v.SetDefault("recorder.stale_after", 24*time.Hour)
	v.SetDefault("recorder.analyser_size", 128)
	v.SetDefault("recorder.device_backlog", 64)

	v.SetDefault("visual.capacity", 60)
	v.SetDefault("visual.period", 32*time.Millisecond)
	v.SetDefault("visual.scale", 300.0)

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.transcription_model", "whisper-1")
	v.SetDefault("openai.transform_model", "gpt-4o-mini")
	v.SetDefault("openai.timeout", 2*time.Minute)

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local_dir", filepath.Join(dataDir, "audio"))
	v.SetDefault("storage.presign_ttl", 10*time.Minute)
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.access_key_id", "")
	v.SetDefault("storage.s3.secret_access_key", "")
	v.SetDefault("storage.s3.prefix", "audio/")

	v.SetDefault("limits.minutes", 120)
	v.SetDefault("limits.transformations", 10)
	v.SetDefault("limits.window", 24*time.Hour)

	v.SetDefault("log.debug", false)
	v.SetDefault("log.file", "") // <data_dir>/whisp.log
	return nil
}
