package config

import (
	"errors"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/marmos91/thumbgate/internal/logger"
)

// ErrNoConfigFile is returned by Watch when there is no file to watch.
var ErrNoConfigFile = errors.New("no configuration file to watch")

// Watch re-reads the configuration file whenever it changes and hands every
// valid result to onChange. Invalid edits are logged and skipped, so the
// previous configuration stays in effect.
//
// Only settings that are safe to change at runtime should be applied by
// onChange; listeners and backends are built once at startup.
func Watch(configPath string, onChange func(*Config)) error {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return err
	}
	if !found {
		return ErrNoConfigFile
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decode(v)
		if err != nil {
			logger.Warn("Ignoring invalid configuration change", "file", e.Name, "error", err)
			return
		}
		logger.Debug("Configuration reloaded", "file", e.Name, "op", e.Op.String())
		onChange(cfg)
	})
	v.WatchConfig()

	return nil
}

// ApplyRuntime applies the settings that can change without a restart.
func ApplyRuntime(cfg *Config) {
	if cfg.Logging.Level != logger.GetLevel() {
		logger.Info("Log level changed", "from", logger.GetLevel(), "to", cfg.Logging.Level)
		logger.SetLevel(cfg.Logging.Level)
	}
}
