package config

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"datainsight/internal/llm"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config is the process configuration, read once at start
type Config struct {
	APIHost            string
	APIPort            int
	DebugMode          bool
	AllowedOrigins     []string
	UploadDir          string
	MaxUploadSizeMB    int
	FileRetentionHours int
	SampleThresholdMB  int
	ProfilingWorkers   int
	HistoryLimit       int
	LogLevel           string
	LogFormat          string
	Gemini             llm.ProviderConfig
	DeepSeek           llm.ProviderConfig
}

// Addr is the listen address
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.APIHost, c.APIPort)
}

// MaxUploadBytes is the upload limit in bytes
func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadSizeMB) << 20
}

// SampleThresholdBytes is the file size above which uploads are sampled
func (c Config) SampleThresholdBytes() int64 {
	return int64(c.SampleThresholdMB) << 20
}

// FileRetention is how long uploaded files are kept
func (c Config) FileRetention() time.Duration {
	return time.Duration(c.FileRetentionHours) * time.Hour
}

func setDefaults(v *viper.Viper) {
	gemini := llm.DefaultGeminiConfig()
	deepseek := llm.DefaultDeepSeekConfig()

	v.SetDefault("api_host", "0.0.0.0")
	v.SetDefault("api_port", 8000)
	v.SetDefault("debug_mode", false)
	v.SetDefault("allowed_origins", []string{"http://localhost:3000", "http://127.0.0.1:3000"})
	v.SetDefault("upload_dir", "./uploads")
	v.SetDefault("max_upload_size", 10)
	v.SetDefault("file_retention_hours", 24)
	v.SetDefault("sample_threshold_mb", 5)
	v.SetDefault("profiling_workers", runtime.NumCPU())
	v.SetDefault("history_limit", 50)
	v.SetDefault("log_level", "INFO")
	v.SetDefault("log_format", "text")

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.endpoint", gemini.Endpoint)
	v.SetDefault("gemini.timeout", gemini.Timeout)
	v.SetDefault("gemini.temperature", gemini.Temperature)
	v.SetDefault("gemini.max_output_tokens", gemini.MaxOutputTokens)
	v.SetDefault("gemini.top_p", gemini.TopP)
	v.SetDefault("gemini.top_k", gemini.TopK)

	v.SetDefault("deepseek.api_key", "")
	v.SetDefault("deepseek.endpoint", deepseek.Endpoint)
	v.SetDefault("deepseek.model", deepseek.Model)
	v.SetDefault("deepseek.timeout", deepseek.Timeout)
	v.SetDefault("deepseek.temperature", deepseek.Temperature)
	v.SetDefault("deepseek.max_output_tokens", deepseek.MaxOutputTokens)
	v.SetDefault("deepseek.top_p", deepseek.TopP)
}

// Load reads defaults, then the optional config file, then the environment.
// Environment keys are upper case with "." replaced by "_", e.g.
// GEMINI_API_KEY or DEEPSEEK_TIMEOUT.
func Load(file string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	geminiTimeout, err := timeout(v, "gemini.timeout")
	if err != nil {
		return Config{}, err
	}
	deepseekTimeout, err := timeout(v, "deepseek.timeout")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		APIHost:            v.GetString("api_host"),
		APIPort:            v.GetInt("api_port"),
		DebugMode:          v.GetBool("debug_mode"),
		AllowedOrigins:     splitList(v.GetStringSlice("allowed_origins")),
		UploadDir:          v.GetString("upload_dir"),
		MaxUploadSizeMB:    v.GetInt("max_upload_size"),
		FileRetentionHours: v.GetInt("file_retention_hours"),
		SampleThresholdMB:  v.GetInt("sample_threshold_mb"),
		ProfilingWorkers:   v.GetInt("profiling_workers"),
		HistoryLimit:       v.GetInt("history_limit"),
		LogLevel:           v.GetString("log_level"),
		LogFormat:          v.GetString("log_format"),
		Gemini: llm.ProviderConfig{
			Endpoint:        v.GetString("gemini.endpoint"),
			APIKey:          v.GetString("gemini.api_key"),
			Timeout:         geminiTimeout,
			Temperature:     v.GetFloat64("gemini.temperature"),
			MaxOutputTokens: v.GetInt("gemini.max_output_tokens"),
			TopP:            v.GetFloat64("gemini.top_p"),
			TopK:            v.GetInt("gemini.top_k"),
		},
		DeepSeek: llm.ProviderConfig{
			Endpoint:        v.GetString("deepseek.endpoint"),
			APIKey:          v.GetString("deepseek.api_key"),
			Model:           v.GetString("deepseek.model"),
			Timeout:         deepseekTimeout,
			Temperature:     v.GetFloat64("deepseek.temperature"),
			MaxOutputTokens: v.GetInt("deepseek.max_output_tokens"),
			TopP:            v.GetFloat64("deepseek.top_p"),
		},
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("invalid api_port %d", c.APIPort)
	}
	if c.MaxUploadSizeMB <= 0 {
		return fmt.Errorf("max_upload_size must be positive")
	}
	if c.Gemini.Timeout < time.Second || c.DeepSeek.Timeout < time.Second {
		return fmt.Errorf("provider timeouts must be at least 1s")
	}
	return nil
}

// timeout reads a provider timeout. Bare numbers are seconds; strings with
// a unit go through time.ParseDuration.
func timeout(v *viper.Viper, key string) (time.Duration, error) {
	switch raw := v.Get(key).(type) {
	case time.Duration:
		return raw, nil
	case int:
		return time.Duration(raw) * time.Second, nil
	case int64:
		return time.Duration(raw) * time.Second, nil
	case float64:
		return time.Duration(raw * float64(time.Second)), nil
	case string:
		s := strings.TrimSpace(raw)
		if secs, err := strconv.ParseFloat(s, 64); err == nil {
			return time.Duration(secs * float64(time.Second)), nil
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
		}
		return d, nil
	default:
		return v.GetDuration(key), nil
	}
}

// splitList accepts comma separated values from the environment
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// SetupLogging configures the global logrus logger
func SetupLogging(cfg Config) {
	level, err := log.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = log.InfoLevel
	}
	if cfg.DebugMode {
		level = log.DebugLevel
	}
	log.SetLevel(level)

	if strings.EqualFold(cfg.LogFormat, "json") {
		log.SetFormatter(&log.JSONFormatter{})
		return
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}
