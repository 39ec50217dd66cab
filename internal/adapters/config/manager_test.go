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
	"strings"
	"testing"
)

func TestManagerLoad_FirstRunWritesDefaults(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, ".config", "sshdeck", "sshdeck.yaml")
	m := NewManager(path, home)

	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SSHConfigPath != filepath.Join(home, ".ssh", "config") {
		t.Errorf("SSHConfigPath = %q, want the home default", cfg.SSHConfigPath)
	}
	if cfg.ConnectTimeoutSeconds != 10 {
		t.Errorf("ConnectTimeoutSeconds = %d, want 10", cfg.ConnectTimeoutSeconds)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("defaults were not written: %v", err)
	}
	if !strings.Contains(string(data), "ssh_config_path") {
		t.Errorf("written config missing keys, got %q", data)
	}
}

func TestManagerLoad_ReadsExisting(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, "sshdeck.yaml")
	content := "ssh_config_path: /custom/config\nknown_hosts_path: /custom/known_hosts\nconnect_timeout_seconds: 3\nkeepalive_interval_seconds: 0\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	cfg, err := NewManager(path, home).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SSHConfigPath != "/custom/config" {
		t.Errorf("SSHConfigPath = %q, want /custom/config", cfg.SSHConfigPath)
	}
	if cfg.ConnectTimeout().Seconds() != 3 {
		t.Errorf("ConnectTimeout = %v, want 3s", cfg.ConnectTimeout())
	}
	if cfg.KeepaliveInterval() != 0 {
		t.Errorf("KeepaliveInterval = %v, want disabled", cfg.KeepaliveInterval())
	}
}

func TestManagerLoad_FillsMissingPaths(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, "sshdeck.yaml")
	if err := os.WriteFile(path, []byte("editor: nano\n"), 0o600); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	cfg, err := NewManager(path, home).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Editor != "nano" {
		t.Errorf("Editor = %q, want nano", cfg.Editor)
	}
	if cfg.SSHConfigPath != filepath.Join(home, ".ssh", "config") {
		t.Errorf("SSHConfigPath = %q, want the home default", cfg.SSHConfigPath)
	}
	if cfg.KnownHostsPath != filepath.Join(home, ".ssh", "known_hosts") {
		t.Errorf("KnownHostsPath = %q, want the home default", cfg.KnownHostsPath)
	}
}

func TestManagerSaveLoad_RoundTrip(t *testing.T) {
	home := t.TempDir()
	m := NewManager(filepath.Join(home, "sshdeck.yaml"), home)

	in, err := m.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	in.Editor = "nvim"
	in.ConnectTimeoutSeconds = 7
	if err := m.Save(in); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	out, err := m.Load()
	if err != nil {
		t.Fatalf("reload error = %v", err)
	}
	if out != in {
		t.Errorf("round trip changed config:\nin:  %+v\nout: %+v", in, out)
	}
}
