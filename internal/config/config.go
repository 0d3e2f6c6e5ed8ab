package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/dshills/codescan/internal/cache"
	"github.com/dshills/codescan/internal/corpus"
	"github.com/dshills/codescan/internal/errors"
	"github.com/dshills/codescan/internal/executor"
	"github.com/dshills/codescan/internal/output"
	"github.com/dshills/codescan/internal/providers"
	"github.com/dshills/codescan/internal/review"
)

// FileName is the config file looked up in the working directory and the
// platform config directory.
const FileName = "codescan.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CODESCAN"

// Config represents the codescan configuration.
type Config struct {
	Provider     string            `mapstructure:"provider" yaml:"provider"`
	Model        string            `mapstructure:"model" yaml:"model"`
	Language     string            `mapstructure:"language" yaml:"language"`
	Format       string            `mapstructure:"format" yaml:"format"`
	Out          string            `mapstructure:"out" yaml:"out"`
	Rules        string            `mapstructure:"rules" yaml:"rules"`
	Window       WindowConfig      `mapstructure:"window" yaml:"window"`
	Retry        RetryConfig       `mapstructure:"retry" yaml:"retry"`
	Concurrency  ConcurrencyConfig `mapstructure:"concurrency" yaml:"concurrency"`
	Request      RequestConfig     `mapstructure:"request" yaml:"request"`
	Include      []string          `mapstructure:"include" yaml:"include"`
	Exclude      []string          `mapstructure:"exclude" yaml:"exclude"`
	MaxFileBytes int               `mapstructure:"max_file_bytes" yaml:"max_file_bytes"`
	GitTracked   bool              `mapstructure:"git_tracked" yaml:"git_tracked"`
	Cache        CacheConfig       `mapstructure:"cache" yaml:"cache"`
	Privacy      PrivacyConfig     `mapstructure:"privacy" yaml:"privacy"`
	Log          LogConfig         `mapstructure:"log" yaml:"log"`
}

// WindowConfig controls how the corpus is split.
type WindowConfig struct {
	MaxSize int `mapstructure:"max_size" yaml:"max_size"`
	Overlap int `mapstructure:"overlap" yaml:"overlap"`
}

// RetryConfig controls per-window retries.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay" yaml:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
	Multiplier  float64       `mapstructure:"multiplier" yaml:"multiplier"`
	Retryable   []string      `mapstructure:"retryable" yaml:"retryable"`
}

// ConcurrencyConfig bounds parallel calls.
type ConcurrencyConfig struct {
	MaxCalls          int           `mapstructure:"max_calls" yaml:"max_calls"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	CallTimeout       time.Duration `mapstructure:"call_timeout" yaml:"call_timeout"`
}

// RequestConfig holds the completion request settings.
type RequestConfig struct {
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	TopP        float64 `mapstructure:"top_p" yaml:"top_p"`
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	Dir     string        `mapstructure:"dir" yaml:"dir,omitempty"`
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// PrivacyConfig controls privacy/redaction behavior.
type PrivacyConfig struct {
	RedactSecrets bool     `mapstructure:"redact_secrets" yaml:"redact_secrets"`
	RedactPaths   []string `mapstructure:"redact_paths" yaml:"redact_paths,omitempty"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	policy := executor.DefaultPolicy()
	retryable := make([]string, len(policy.Retryable))
	for i, k := range policy.Retryable {
		retryable[i] = k.String()
	}
	return Config{
		Provider: "openai",
		Model:    "gpt-4o",
		Format:   "text",
		Window: WindowConfig{
			MaxSize: review.DefaultWindowSize,
			Overlap: review.DefaultOverlap,
		},
		Retry: RetryConfig{
			MaxAttempts: policy.MaxAttempts,
			BaseDelay:   policy.BaseDelay,
			MaxDelay:    policy.MaxDelay,
			Multiplier:  policy.Multiplier,
			Retryable:   retryable,
		},
		Concurrency: ConcurrencyConfig{
			MaxCalls:    review.DefaultMaxConcurrent,
			CallTimeout: review.DefaultCallTimeout,
		},
		Request: RequestConfig{
			MaxTokens:   providers.DefaultMaxTokens,
			Temperature: review.DefaultTemperature,
			TopP:        review.DefaultTopP,
		},
		Include:      []string{},
		Exclude:      []string{"vendor/**", "node_modules/**", "**/*.min.js"},
		MaxFileBytes: corpus.DefaultMaxFileBytes,
		Cache: CacheConfig{
			Enabled: true,
			TTL:     cache.DefaultTTL,
		},
		Privacy: PrivacyConfig{
			RedactSecrets: true,
			RedactPaths:   []string{"**/.env", "**/*secrets*"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("provider", d.Provider)
	v.SetDefault("model", d.Model)
	v.SetDefault("language", d.Language)
	v.SetDefault("format", d.Format)
	v.SetDefault("out", d.Out)
	v.SetDefault("rules", d.Rules)

	v.SetDefault("window.max_size", d.Window.MaxSize)
	v.SetDefault("window.overlap", d.Window.Overlap)

	v.SetDefault("retry.max_attempts", d.Retry.MaxAttempts)
	v.SetDefault("retry.base_delay", d.Retry.BaseDelay)
	v.SetDefault("retry.max_delay", d.Retry.MaxDelay)
	v.SetDefault("retry.multiplier", d.Retry.Multiplier)
	v.SetDefault("retry.retryable", d.Retry.Retryable)

	v.SetDefault("concurrency.max_calls", d.Concurrency.MaxCalls)
	v.SetDefault("concurrency.requests_per_minute", d.Concurrency.RequestsPerMinute)
	v.SetDefault("concurrency.call_timeout", d.Concurrency.CallTimeout)

	v.SetDefault("request.max_tokens", d.Request.MaxTokens)
	v.SetDefault("request.temperature", d.Request.Temperature)
	v.SetDefault("request.top_p", d.Request.TopP)

	v.SetDefault("include", d.Include)
	v.SetDefault("exclude", d.Exclude)
	v.SetDefault("max_file_bytes", d.MaxFileBytes)
	v.SetDefault("git_tracked", d.GitTracked)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.ttl", d.Cache.TTL)

	v.SetDefault("privacy.redact_secrets", d.Privacy.RedactSecrets)
	v.SetDefault("privacy.redact_paths", d.Privacy.RedactPaths)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// FlagKeys maps CLI flag names to the config keys they override.
var FlagKeys = map[string]string{
	"provider":     "provider",
	"model":        "model",
	"language":     "language",
	"format":       "format",
	"out":          "out",
	"rules":        "rules",
	"window":       "window.max_size",
	"overlap":      "window.overlap",
	"max-attempts": "retry.max_attempts",
	"concurrency":  "concurrency.max_calls",
	"rpm":          "concurrency.requests_per_minute",
	"call-timeout": "concurrency.call_timeout",
	"max-tokens":   "request.max_tokens",
	"include":      "include",
	"exclude":      "exclude",
	"git":          "git_tracked",
	"log-level":    "log.level",
	"log-format":   "log.format",
}

// ConfigDir returns the platform-appropriate config directory for codescan.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "codescan"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "codescan"), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "codescan"), nil
		}
		return filepath.Join(home, "AppData", "Roaming", "codescan"), nil
	default:
		return filepath.Join(home, ".config", "codescan"), nil
	}
}

// ConfigPath returns the full path to the user config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// FindFile returns the config file Load would read when no path is given:
// ./codescan.yaml if present, else the user config file if present, else "".
func FindFile() string {
	if _, err := os.Stat(FileName); err == nil {
		return FileName
	}
	if path, err := ConfigPath(); err == nil {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Load builds the effective config by merging:
// defaults <- file <- env <- flags.
//
// path names the config file; it must exist when set. An empty path falls
// back to FindFile. flags may be nil; only flags listed in FlagKeys that the
// user actually set take part.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = FindFile()
	} else if _, err := os.Stat(path); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	if path != "" {
		v.SetConfigFile(path)
		if filepath.Ext(path) == "" {
			v.SetConfigType("yaml")
		}
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("binding flag --%s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs errors.ConfigErrors
	add := func(field string, value any, msg string) {
		errs = append(errs, errors.NewConfigError(field, value, msg))
	}

	if !providers.Known(c.Provider) {
		add("provider", c.Provider, "must be one of "+strings.Join(providers.Names(), ", "))
	}
	if _, err := output.GetWriter(c.Format); err != nil {
		add("format", c.Format, "must be one of "+strings.Join(output.Formats, ", "))
	}
	if c.Language != "" {
		if _, ok := corpus.NormalizeLanguage(c.Language); !ok {
			add("language", c.Language, "must be one of "+strings.Join(corpus.Languages(), ", "))
		}
	}

	_, kindErrs := c.policy()
	errs = append(errs, kindErrs...)
	var ce errors.ConfigErrors
	if err := c.AnalyzerOptions(nil).Validate(); errors.As(err, &ce) {
		errs = append(errs, ce...)
	}

	if c.Request.MaxTokens < 1 {
		add("request.max_tokens", c.Request.MaxTokens, "must be at least 1")
	}
	if c.Request.Temperature < 0 || c.Request.Temperature > 2 {
		add("request.temperature", c.Request.Temperature, "must be between 0 and 2")
	}
	if c.Request.TopP < 0 || c.Request.TopP > 1 {
		add("request.top_p", c.Request.TopP, "must be between 0 and 1")
	}

	if c.MaxFileBytes < 1 {
		add("max_file_bytes", c.MaxFileBytes, "must be at least 1")
	}
	if c.Cache.TTL < 0 {
		add("cache.ttl", c.Cache.TTL, "must not be negative")
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		add("log.level", c.Log.Level, "must be one of debug, info, warn, error")
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		add("log.format", c.Log.Format, "must be console or json")
	}

	return errs.OrNil()
}

// policy converts the retry section. Unknown kind names are reported
// separately and left out of the policy.
func (c Config) policy() (executor.Policy, errors.ConfigErrors) {
	var errs errors.ConfigErrors
	p := executor.Policy{
		MaxAttempts: c.Retry.MaxAttempts,
		BaseDelay:   c.Retry.BaseDelay,
		MaxDelay:    c.Retry.MaxDelay,
		Multiplier:  c.Retry.Multiplier,
	}
	for _, name := range c.Retry.Retryable {
		k, err := providers.ParseKind(name)
		if err != nil {
			errs = append(errs, errors.NewConfigError("retry.retryable", name, "unknown error kind"))
			continue
		}
		p.Retryable = append(p.Retryable, k)
	}
	return p, errs
}

// AnalyzerOptions converts the config into review.Options.
func (c Config) AnalyzerOptions(rules *review.Rules) review.Options {
	policy, _ := c.policy()
	return review.Options{
		WindowSize:        c.Window.MaxSize,
		Overlap:           c.Window.Overlap,
		Policy:            policy,
		MaxConcurrent:     c.Concurrency.MaxCalls,
		RequestsPerMinute: c.Concurrency.RequestsPerMinute,
		CallTimeout:       c.Concurrency.CallTimeout,
		Prompt: review.PromptOptions{
			Language:    c.Language,
			Rules:       rules,
			MaxTokens:   c.Request.MaxTokens,
			Temperature: c.Request.Temperature,
			TopP:        c.Request.TopP,
		},
		Model: c.Model,
	}
}

// Reader returns the source reader for root.
func (c Config) Reader(root string) *corpus.FSReader {
	return &corpus.FSReader{
		Root:         root,
		Language:     c.Language,
		Include:      c.Include,
		Exclude:      c.Exclude,
		MaxFileBytes: c.MaxFileBytes,
		GitTracked:   c.GitTracked,
	}
}

// Save writes cfg to path as YAML. An empty path means ConfigPath.
func Save(cfg Config, path string) error {
	if path == "" {
		var err error
		if path, err = ConfigPath(); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Keys returns every config key, sorted.
func Keys() []string {
	v := viper.New()
	setDefaults(v)
	keys := v.AllKeys()
	sort.Strings(keys)
	return keys
}

// SetField sets a single key in the config file at path, creating the file
// if needed. The value is parsed according to the key's type. An empty path
// means ConfigPath.
func SetField(path, key, value string) error {
	if path == "" {
		var err error
		if path, err = ConfigPath(); err != nil {
			return err
		}
	}

	defaults := viper.New()
	setDefaults(defaults)
	if !defaults.IsSet(key) {
		return fmt.Errorf("unknown config key: %s (see 'codescan config keys')", key)
	}
	typed, err := parseValue(key, defaults.Get(key), value)
	if err != nil {
		return err
	}

	v := viper.New()
	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("yaml")
	}
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	v.Set(key, typed)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func parseValue(key string, current any, value string) (any, error) {
	switch current.(type) {
	case int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be an integer: %w", key, err)
		}
		return n, nil
	case float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("%s must be a number: %w", key, err)
		}
		return f, nil
	case bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false: %w", key, err)
		}
		return b, nil
	case time.Duration:
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be a duration such as 30s: %w", key, err)
		}
		return d.String(), nil
	case []string:
		if strings.TrimSpace(value) == "" {
			return []string{}, nil
		}
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, nil
	default:
		return value, nil
	}
}
