// Copyright 2025.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/sshdeck/sshdeck/internal/core/domain"
)

// Manager loads and saves the application YAML config.
type Manager struct {
	filePath string
	homeDir  string
}

func NewManager(filePath, homeDir string) *Manager {
	return &Manager{filePath: filePath, homeDir: homeDir}
}

// Load reads the config file, writing the defaults on first run. A file
// that cannot be read or parsed yields the defaults alongside the error
// so the app can still start.
func (m *Manager) Load() (domain.Config, error) {
	if _, err := os.Stat(m.filePath); os.IsNotExist(err) {
		cfg := domain.DefaultConfig(m.homeDir)
		if saveErr := m.Save(cfg); saveErr != nil {
			return cfg, saveErr
		}
		return cfg, nil
	}

	// #nosec G304 -- the path is the app's own config file
	data, err := os.ReadFile(m.filePath)
	if err != nil {
		return domain.DefaultConfig(m.homeDir), err
	}

	var cfg domain.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return domain.DefaultConfig(m.homeDir), err
	}
	m.fillDefaults(&cfg)
	return cfg, nil
}

// fillDefaults completes a partial config file. The timeout fields default
// through their accessors and need no filling.
func (m *Manager) fillDefaults(cfg *domain.Config) {
	defaults := domain.DefaultConfig(m.homeDir)
	if cfg.SSHConfigPath == "" {
		cfg.SSHConfigPath = defaults.SSHConfigPath
	}
	if cfg.KnownHostsPath == "" {
		cfg.KnownHostsPath = defaults.KnownHostsPath
	}
}

func (m *Manager) Save(cfg domain.Config) error {
	if err := os.MkdirAll(filepath.Dir(m.filePath), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(m.filePath, data, 0o600)
}
