package config

import (
	"fmt"
	"strings"
)

var logLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if strings.TrimSpace(cfg.Module) == "" {
		return nil, fmt.Errorf("module must not be empty")
	}
	if strings.TrimSpace(cfg.Coordinator.Host) == "" {
		return nil, fmt.Errorf("coordinator.host must not be empty")
	}
	if cfg.Coordinator.Port <= 0 || cfg.Coordinator.Port > 65535 {
		return nil, fmt.Errorf("coordinator.port must be in 1..65535")
	}
	if cfg.Coordinator.DialTimeout <= 0 {
		return nil, fmt.Errorf("coordinator.dial_timeout must be > 0")
	}
	if cfg.Transport.ReadChunkSize <= 0 {
		return nil, fmt.Errorf("transport.read_chunk_size must be > 0")
	}
	if cfg.Transport.FlushTimeout <= 0 {
		return nil, fmt.Errorf("transport.flush_timeout must be > 0")
	}
	if cfg.Render.Width < 0 {
		return nil, fmt.Errorf("render.width must be >= 0")
	}
	if _, ok := logLevels[cfg.Log.Level]; !ok {
		return nil, fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}

	if cfg.Module != expectedModuleName {
		warnings = append(warnings, Warning{
			Message: fmt.Sprintf("module %q differs from %q; the coordinator may not route front-end traffic to it", cfg.Module, expectedModuleName),
		})
	}

	return warnings, nil
}
