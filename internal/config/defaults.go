package config

const (
	defaultConfigPath         = "~/.config/darkroom/config.toml"
	defaultRegistryPath       = "~/.local/share/darkroom/registry.json"
	defaultDataRoot           = "~/darkroom"
	defaultLogDir             = "~/.local/share/darkroom/logs"
	defaultHistoryPath        = "~/.local/share/darkroom/history.db"
	defaultLockTimeoutSeconds = 10
	defaultLockRetryMillis    = 100
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			RegistryPath: defaultRegistryPath,
			DataRoot:     defaultDataRoot,
			LogDir:       defaultLogDir,
			HistoryPath:  defaultHistoryPath,
		},
		Registry: Registry{
			LockTimeoutSeconds: defaultLockTimeoutSeconds,
			LockRetryMillis:    defaultLockRetryMillis,
		},
		Pipeline: Pipeline{
			StopOnError: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
