// Package config loads wasmship daemon settings from defaults, an optional
// YAML file, WASMSHIP_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wasmship/wasmship/errors"
	"github.com/wasmship/wasmship/protocol"
	"github.com/wasmship/wasmship/registry"
)

const (
	// AppName is the application name.
	AppName = "wasmship"
	// ConfigFileName is the config file name without extension.
	ConfigFileName = "wasmship"
	// EnvPrefix prefixes environment overrides, e.g. WASMSHIP_SOCKET_PATH.
	EnvPrefix = "WASMSHIP"

	// DefaultRegistryRoot holds repositories.json and module bundles.
	DefaultRegistryRoot = "/var/lib/wasmship"
)

type (
	// Config is the resolved daemon configuration.
	Config struct {
		SocketPath string         `mapstructure:"socket_path"`
		Registry   RegistryConfig `mapstructure:"registry"`
		Runtime    RuntimeConfig  `mapstructure:"runtime"`
		Daemon     DaemonConfig   `mapstructure:"daemon"`
		Log        LogConfig      `mapstructure:"log"`
	}

	// RegistryConfig locates and validates the module registry.
	RegistryConfig struct {
		Root     string `mapstructure:"root"`
		LinkMode string `mapstructure:"link_mode"`
	}

	// RuntimeConfig selects and limits the execution backend.
	RuntimeConfig struct {
		Kind             string        `mapstructure:"kind"`
		Timeout          time.Duration `mapstructure:"timeout"`
		MemoryLimitPages uint32        `mapstructure:"memory_limit_pages"`
		MaxConcurrent    int           `mapstructure:"max_concurrent"`
	}

	// DaemonConfig holds request handling switches.
	DaemonConfig struct {
		VerifyOnRun bool `mapstructure:"verify_on_run"`
	}

	// LogConfig selects the zap logger.
	LogConfig struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	}

	// LoadOptions defines explicit configuration loading inputs.
	LoadOptions struct {
		// ConfigFilePath forces loading from a specific file when set.
		ConfigFilePath string
		// SearchPaths overrides the directories searched for wasmship.yaml.
		SearchPaths []string
		// Flags are bound to their keys via FlagKeys when present.
		Flags *pflag.FlagSet
	}
)

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"socket":             "socket_path",
	"registry":           "registry.root",
	"link-mode":          "registry.link_mode",
	"runtime":            "runtime.kind",
	"timeout":            "runtime.timeout",
	"memory-limit-pages": "runtime.memory_limit_pages",
	"max-concurrent":     "runtime.max_concurrent",
	"verify-on-run":      "daemon.verify_on_run",
	"log-level":          "log.level",
	"log-format":         "log.format",
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() *Config {
	return &Config{
		SocketPath: protocol.DefaultSocketPath,
		Registry: RegistryConfig{
			Root:     DefaultRegistryRoot,
			LinkMode: string(registry.LinkLenient),
		},
		Runtime: RuntimeConfig{
			Kind:    "wazero",
			Timeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// DefaultSearchPaths returns the directories searched for wasmship.yaml.
func DefaultSearchPaths() []string {
	paths := []string{filepath.Join("/etc", AppName)}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", AppName))
	}
	return paths
}

// Load resolves configuration and validates it.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("socket_path", defaults.SocketPath)
	v.SetDefault("registry.root", defaults.Registry.Root)
	v.SetDefault("registry.link_mode", defaults.Registry.LinkMode)
	v.SetDefault("runtime.kind", defaults.Runtime.Kind)
	v.SetDefault("runtime.timeout", defaults.Runtime.Timeout)
	v.SetDefault("runtime.memory_limit_pages", defaults.Runtime.MemoryLimitPages)
	v.SetDefault("runtime.max_concurrent", defaults.Runtime.MaxConcurrent)
	v.SetDefault("daemon.verify_on_run", defaults.Daemon.VerifyOnRun)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for name, key := range FlagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
						Detail("bind flag --%s", name).
						Cause(err).
						Build()
				}
			}
		}
	}

	if err := readConfigFile(v, opts); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Detail("decode configuration").
			Cause(err).
			Build()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readConfigFile(v *viper.Viper, opts LoadOptions) error {
	if opts.ConfigFilePath != "" {
		if _, err := os.Stat(opts.ConfigFilePath); err != nil {
			if os.IsNotExist(err) {
				return errors.NotFound(errors.PhaseConfig, "config file", opts.ConfigFilePath)
			}
			return errors.IO(errors.PhaseConfig, "stat "+opts.ConfigFilePath, err)
		}
		v.SetConfigFile(opts.ConfigFilePath)
	} else {
		paths := opts.SearchPaths
		if paths == nil {
			paths = DefaultSearchPaths()
		}
		v.SetConfigName(ConfigFileName)
		v.SetConfigType("yaml")
		for _, p := range paths {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if stderrors.As(err, &notFound) {
			return nil
		}
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path(v.ConfigFileUsed()).
			Detail("parse config file").
			Cause(err).
			Build()
	}
	return nil
}

// Validate checks values that decoding cannot.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.SocketPath) == "" {
		problems = append(problems, "socket_path must not be empty")
	}
	if strings.TrimSpace(c.Registry.Root) == "" {
		problems = append(problems, "registry.root must not be empty")
	}
	if _, err := registry.ParseLinkMode(c.Registry.LinkMode); err != nil {
		problems = append(problems, fmt.Sprintf("registry.link_mode %q must be lenient or strict", c.Registry.LinkMode))
	}
	if c.Runtime.Timeout < 0 {
		problems = append(problems, "runtime.timeout must not be negative")
	}
	if c.Runtime.MaxConcurrent < 0 {
		problems = append(problems, "runtime.max_concurrent must not be negative")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, fmt.Sprintf("log.level %q is not a zap level", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		problems = append(problems, fmt.Sprintf("log.format %q must be json or console", c.Log.Format))
	}

	if len(problems) > 0 {
		return errors.InvalidInput(errors.PhaseConfig, strings.Join(problems, "; "))
	}
	return nil
}

// LinkMode returns the parsed registry link mode.
func (c *Config) LinkMode() registry.LinkMode {
	mode, err := registry.ParseLinkMode(c.Registry.LinkMode)
	if err != nil {
		return registry.LinkLenient
	}
	return mode
}

// NewLogger builds the zap logger described by c.Log: a production JSON
// logger or a development console logger.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, errors.InvalidInput(errors.PhaseConfig, "log.level "+c.Log.Level)
	}

	var zc zap.Config
	if c.Log.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
