// Package config provides configuration loading and management for
// splatload. It handles loading configuration from YAML files and
// provides default values matching the reference datasets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"splatload/pkg/dataset"
	"splatload/pkg/scene"
)

// Config represents the application configuration loaded from YAML.
type Config struct {
	// Dataset parameters shared by all formats
	Dataset struct {
		// ImagesDir is the image subfolder of a COLMAP dataset
		ImagesDir string `yaml:"imagesDir"`

		// Extension is appended to synthetic-manifest path stubs
		Extension string `yaml:"extension"`

		// WhiteBackground composites alpha images onto white
		WhiteBackground bool `yaml:"whiteBackground"`

		// Eval enables the train/test split
		Eval bool `yaml:"eval"`

		// HoldoutStride is the sorted-split holdout interval
		HoldoutStride int `yaml:"holdoutStride"`
	} `yaml:"dataset"`

	// Kitti lifts the rig-log constants into configuration; the defaults
	// preserve the reference drive for compatibility
	Kitti struct {
		Sequence   string `yaml:"sequence"`
		StartIndex int    `yaml:"startIndex"`
		FrameCount int    `yaml:"frameCount"`
		TestEvery  int    `yaml:"testEvery"`
		Stereo     bool   `yaml:"stereo"`
	} `yaml:"kitti"`

	// Processing parameters
	Processing struct {
		// NumWorkers bounds the image-decoding worker pool
		NumWorkers int `yaml:"numWorkers"`

		// Seed seeds the synthetic point-cloud generator (0 = time-based)
		Seed int64 `yaml:"seed"`
	} `yaml:"processing"`

	// Logging parameters
	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Dataset.ImagesDir = "images"
	cfg.Dataset.Extension = ".png"
	cfg.Dataset.HoldoutStride = scene.DefaultHoldoutStride

	cfg.Kitti.Sequence = "2013_05_28_drive_0000_sync"
	cfg.Kitti.StartIndex = 3463
	cfg.Kitti.FrameCount = 262
	cfg.Kitti.TestEvery = 2

	cfg.Processing.NumWorkers = runtime.NumCPU()

	cfg.Logging.Level = "info"

	return cfg
}

// LoadConfig loads configuration from a YAML file. If the file doesn't
// exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// Options converts the configuration into load options.
func (c *Config) Options() dataset.Options {
	return dataset.Options{
		ImagesDir:       c.Dataset.ImagesDir,
		Eval:            c.Dataset.Eval,
		HoldoutStride:   c.Dataset.HoldoutStride,
		WhiteBackground: c.Dataset.WhiteBackground,
		Extension:       c.Dataset.Extension,
		Kitti: dataset.KittiOptions{
			Sequence:   c.Kitti.Sequence,
			StartIndex: c.Kitti.StartIndex,
			FrameCount: c.Kitti.FrameCount,
			TestEvery:  c.Kitti.TestEvery,
			Stereo:     c.Kitti.Stereo,
		},
		Workers: c.Processing.NumWorkers,
		Seed:    c.Processing.Seed,
	}
}
