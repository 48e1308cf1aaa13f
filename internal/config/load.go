package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// dotenvPath is read from the working directory before environment overrides apply.
var dotenvPath = ".env"

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves, reads, and validates the runtime configuration. Precedence,
// highest first: overrides (CLI flags), PANELFRONT_* environment, config file,
// defaults.
func Load(explicitPath string, overrides map[string]any) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	warnings := loadDotenv(dotenvPath)

	v := newViper()
	v.SetConfigFile(resolvedPath)
	v.SetConfigType("toml")

	exists := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
		}
		exists = false
		warnings = append(warnings, Warning{
			Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
		})
	}
	if exists {
		warnings = append(warnings, unknownKeys(v)...)
	}

	for key, value := range overrides {
		v.Set(key, value)
	}

	cfg := fromViper(v)
	validationWarnings, err := Validate(cfg)
	if err != nil {
		return Loaded{}, fmt.Errorf("invalid config %q: %w", resolvedPath, err)
	}

	return Loaded{
		Path:     resolvedPath,
		Config:   cfg,
		Warnings: append(warnings, validationWarnings...),
		Exists:   exists,
	}, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func fromViper(v *viper.Viper) Config {
	return Config{
		Module: strings.TrimSpace(v.GetString(KeyModule)),
		Coordinator: CoordinatorConfig{
			Host:        strings.TrimSpace(v.GetString(KeyCoordinatorHost)),
			Port:        v.GetInt(KeyCoordinatorPort),
			DialTimeout: v.GetDuration(KeyDialTimeout),
		},
		Transport: TransportConfig{
			ReadChunkSize: v.GetInt(KeyReadChunkSize),
			FlushTimeout:  v.GetDuration(KeyFlushTimeout),
		},
		Render: RenderConfig{
			Enable: v.GetBool(KeyRenderEnable),
			Width:  v.GetInt(KeyRenderWidth),
			Plain:  v.GetBool(KeyRenderPlain),
		},
		Log: LogConfig{Level: strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel)))},
	}
}

// unknownKeys flags file keys that nothing reads, usually typos.
func unknownKeys(v *viper.Viper) []Warning {
	known := defaults()
	var unknown []string
	for _, key := range v.AllKeys() {
		if _, ok := known[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)

	warnings := make([]Warning, 0, len(unknown))
	for _, key := range unknown {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("unknown config key %q ignored", key)})
	}
	return warnings
}

// loadDotenv exports .env entries without overriding variables already set.
func loadDotenv(path string) []Warning {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return []Warning{{Message: fmt.Sprintf("load %s: %v", path, err)}}
	}
	return nil
}
