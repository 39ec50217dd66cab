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

// DefaultPort is the SSH port assumed when a record carries none.
const DefaultPort = 22

// Option is a pass-through config directive the core does not interpret.
// Key keeps the casing found in the file; Value is the rest of the line.
type Option struct {
	Key   string
	Value string
}

// Connection is a durable connection record backed by the SSH config file.
// Alias is the unique, case-sensitive primary identity.
type Connection struct {
	Alias        string
	Host         string
	User         string
	Port         int
	IdentityFile string

	// Folder is a slash-delimited display grouping persisted as a private
	// comment above the block. It never affects connection behavior.
	Folder string

	// Extra holds unrecognized directives verbatim, in file order.
	Extra []Option
}

// Addr returns the host with the effective port applied.
func (c Connection) Addr() (string, int) {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	host := c.Host
	if host == "" {
		host = c.Alias
	}
	return host, port
}

// Credentials are transient secrets resolved at connect time. They are held
// in memory only and wiped on disconnect.
type Credentials struct {
	User       string
	Password   string
	Passphrase string
}

// Wipe clears secret material in place.
func (c *Credentials) Wipe() {
	c.Password = ""
	c.Passphrase = ""
}
