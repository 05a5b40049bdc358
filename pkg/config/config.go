// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads .rpg/config.toml and layers environment-variable
// overrides on top of it, the external configuration surface every other
// package is handed a populated struct from rather than touching the
// filesystem itself.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"
)

// Encoding controls entity and hierarchy construction during ingestion.
type Encoding struct {
	BatchSize          int     `mapstructure:"batch_size"`
	MaxBatchTokens     int     `mapstructure:"max_batch_tokens"`
	HierarchyChunkSize int     `mapstructure:"hierarchy_chunk_size"`
	DriftThreshold     float64 `mapstructure:"drift_threshold"`
	BroadcastImports   bool    `mapstructure:"broadcast_imports"`
	MaxHierarchyDepth  int     `mapstructure:"max_hierarchy_depth"`
}

// Navigation controls the (externally owned) search/query surface.
type Navigation struct {
	SearchResultLimit int `mapstructure:"search_result_limit"`
}

// Storage controls how graph.json is persisted.
type Storage struct {
	Compress bool `mapstructure:"compress"`
}

// Config is the fully-resolved .rpg/config.toml document, defaults applied
// and environment overrides layered on top.
type Config struct {
	Encoding   Encoding   `mapstructure:"encoding"`
	Navigation Navigation `mapstructure:"navigation"`
	Storage    Storage    `mapstructure:"storage"`
}

// Default returns the configuration used when .rpg/config.toml is absent.
func Default() Config {
	return Config{
		Encoding: Encoding{
			BatchSize:          50,
			MaxBatchTokens:     8000,
			HierarchyChunkSize: 50,
			DriftThreshold:     0.5,
			BroadcastImports:   false,
			MaxHierarchyDepth:  3,
		},
		Navigation: Navigation{SearchResultLimit: 10},
		Storage:    Storage{Compress: false},
	}
}

// envOverrides lists every environment variable this package recognizes and
// the struct field it feeds, applied after the TOML file (or defaults) are
// loaded so an operator can override a single value without editing the
// file.
var envOverrides = []struct {
	name  string
	apply func(*Config, string) error
}{
	{"RPG_BATCH_SIZE", func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.Encoding.BatchSize = n
		return nil
	}},
	{"RPG_MAX_BATCH_TOKENS", func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.Encoding.MaxBatchTokens = n
		return nil
	}},
	{"RPG_HIERARCHY_CHUNK_SIZE", func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.Encoding.HierarchyChunkSize = n
		return nil
	}},
	{"RPG_DRIFT_THRESHOLD", func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		c.Encoding.DriftThreshold = f
		return nil
	}},
	{"RPG_SEARCH_LIMIT", func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.Navigation.SearchResultLimit = n
		return nil
	}},
}

// Load reads "<projectRoot>/.rpg/config.toml" if present, falling back to
// Default() otherwise, then applies every recognized RPG_* environment
// variable on top. Load is the schema boundary; malformed TOML is a fatal
// ParseConfig error, but a malformed env override is not — it is silently
// ignored and the previously resolved value is kept, since the caller here
// is an operator's shell environment, not a file the schema validates.
func Load(projectRoot string) (Config, error) {
	cfg := Default()

	path := filepath.Join(projectRoot, ".rpg", "config.toml")
	if _, err := os.Stat(path); err == nil {
		v := viper.New()
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}

		fileCfg := Default()
		if err := v.Unmarshal(&fileCfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
		cfg = fileCfg
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("stat config: %w", err)
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	for _, o := range envOverrides {
		val, ok := os.LookupEnv(o.name)
		if !ok || val == "" {
			continue
		}
		_ = o.apply(cfg, val)
	}
}
