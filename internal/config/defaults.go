package config

import "time"

// Config keys, shared by file, environment, and flag overrides.
const (
	KeyModule              = "module"
	KeyCoordinatorHost     = "coordinator.host"
	KeyCoordinatorPort     = "coordinator.port"
	KeyDialTimeout         = "coordinator.dial_timeout"
	KeyReadChunkSize       = "transport.read_chunk_size"
	KeyFlushTimeout        = "transport.flush_timeout"
	KeyRenderEnable        = "render.enable"
	KeyRenderWidth         = "render.width"
	KeyRenderPlain         = "render.plain"
	KeyLogLevel            = "log.level"
	envPrefix              = "PANELFRONT"
	expectedModuleName     = "frontend"
	defaultCoordinatorHost = "127.0.0.1"
)

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Module: expectedModuleName,
		Coordinator: CoordinatorConfig{
			Host:        defaultCoordinatorHost,
			Port:        8002,
			DialTimeout: 5 * time.Second,
		},
		Transport: TransportConfig{
			ReadChunkSize: 1024,
			FlushTimeout:  500 * time.Millisecond,
		},
		Render: RenderConfig{
			Enable: true,
		},
		Log: LogConfig{Level: "info"},
	}
}

// defaults flattens Default into viper keys.
func defaults() map[string]any {
	d := Default()
	return map[string]any{
		KeyModule:          d.Module,
		KeyCoordinatorHost: d.Coordinator.Host,
		KeyCoordinatorPort: d.Coordinator.Port,
		KeyDialTimeout:     d.Coordinator.DialTimeout,
		KeyReadChunkSize:   d.Transport.ReadChunkSize,
		KeyFlushTimeout:    d.Transport.FlushTimeout,
		KeyRenderEnable:    d.Render.Enable,
		KeyRenderWidth:     d.Render.Width,
		KeyRenderPlain:     d.Render.Plain,
		KeyLogLevel:        d.Log.Level,
	}
}
