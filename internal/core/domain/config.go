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

package domain

import (
	"path/filepath"
	"time"
)

// Config represents the application configuration
type Config struct {
	// SSHConfigPath is the shared SSH client config file holding the
	// connection records.
	SSHConfigPath string `yaml:"ssh_config_path"`

	// KnownHostsPath is the trust file for host-key fingerprints.
	KnownHostsPath string `yaml:"known_hosts_path"`

	// Editor overrides $VISUAL/$EDITOR for opening remote file copies.
	Editor string `yaml:"editor,omitempty"`

	// ConnectTimeoutSeconds bounds the SSH dial and handshake.
	ConnectTimeoutSeconds int `yaml:"connect_timeout_seconds"`

	// KeepaliveIntervalSeconds is the delay between protocol keepalives on
	// live clients. Zero disables keepalives.
	KeepaliveIntervalSeconds int `yaml:"keepalive_interval_seconds"`
}

// DefaultConfig returns the default configuration for the given home dir.
func DefaultConfig(home string) Config {
	return Config{
		SSHConfigPath:            filepath.Join(home, ".ssh", "config"),
		KnownHostsPath:           filepath.Join(home, ".ssh", "known_hosts"),
		ConnectTimeoutSeconds:    10,
		KeepaliveIntervalSeconds: 30,
	}
}

// ConnectTimeout returns ConnectTimeoutSeconds as a duration, defaulted
// when unset.
func (c Config) ConnectTimeout() time.Duration {
	if c.ConnectTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

// KeepaliveInterval returns KeepaliveIntervalSeconds as a duration.
func (c Config) KeepaliveInterval() time.Duration {
	if c.KeepaliveIntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(c.KeepaliveIntervalSeconds) * time.Second
}
