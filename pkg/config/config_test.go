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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenNoConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadReadsConfigToml(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".rpg"), 0o755))
	toml := `
[encoding]
batch_size = 25
drift_threshold = 0.75

[storage]
compress = true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".rpg", "config.toml"), []byte(toml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Encoding.BatchSize)
	assert.Equal(t, 0.75, cfg.Encoding.DriftThreshold)
	assert.True(t, cfg.Storage.Compress)
	assert.Equal(t, 8000, cfg.Encoding.MaxBatchTokens, "unset keys keep their default")
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("RPG_BATCH_SIZE", "99")
	t.Setenv("RPG_DRIFT_THRESHOLD", "0.1")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 99, cfg.Encoding.BatchSize)
	assert.Equal(t, 0.1, cfg.Encoding.DriftThreshold)
}

func TestLoadEnvOverridesWinOverConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".rpg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".rpg", "config.toml"), []byte("[encoding]\nbatch_size = 25\n"), 0o644))
	t.Setenv("RPG_BATCH_SIZE", "7")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Encoding.BatchSize)
}

func TestLoadInvalidEnvValueSilentlyIgnored(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("RPG_BATCH_SIZE", "not-a-number")
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, Default().Encoding.BatchSize, cfg.Encoding.BatchSize)
}
