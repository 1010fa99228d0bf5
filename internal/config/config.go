// Package config loads the TOML configuration file into the frozen
// models.Config map the core packages consume.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"

	"modelsync/internal/models"
)

const defaultConfigPath = "config.toml"

// defaults mirror the values in the configuration table: callers get these
// unless config.toml or a flag overrides them.
func defaults() models.Config {
	return models.Config{
		TopImageCount:   9,
		FetchBatchSize:  100,
		DownloadModel:   true,
		DownloadImages:  true,
		DownloadNsfw:    false,
		DownloadThreads: 4,
		CreateHtml:      true,
		AutoOpenHtml:    false,
	}
}

// Load reads configFilePath (defaulting to "config.toml"), overlaying it on
// top of the documented defaults. A missing file is not an error: an empty
// config.toml plus defaults plus flags is a valid configuration.
func Load(configFilePath string) (models.Config, error) {
	if configFilePath == "" {
		configFilePath = defaultConfigPath
	}
	cfg := defaults()
	if _, err := os.Stat(configFilePath); err == nil {
		if _, err := toml.DecodeFile(configFilePath, &cfg); err != nil {
			return models.Config{}, fmt.Errorf("error loading config file %s: %w", configFilePath, err)
		}
	} else if !os.IsNotExist(err) {
		return models.Config{}, fmt.Errorf("error accessing config file %s: %w", configFilePath, err)
	}

	if cfg.SavePath == "" {
		log.Warn("SavePath is not set in config.toml; storage operations will fail until it is")
	}
	log.WithField("path", configFilePath).Info("configuration loaded")
	return cfg, nil
}
