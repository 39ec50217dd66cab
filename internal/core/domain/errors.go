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
	"errors"
	"fmt"
)

var (
	// ErrPromptDeclined is returned by prompters when the user cancels.
	ErrPromptDeclined = errors.New("prompt declined")

	// ErrPassphraseRequired signals that an identity file is encrypted and
	// no passphrase was supplied. The caller may prompt and retry.
	ErrPassphraseRequired = errors.New("identity file requires a passphrase")

	// ErrAlreadyActive signals a connect on an alias that already has a live
	// session. The existing session is untouched.
	ErrAlreadyActive = errors.New("session already active")

	// ErrNotConnected signals an operation that needs a live session.
	ErrNotConnected = errors.New("not connected")

	// ErrNotFound signals a lookup for an alias with no record.
	ErrNotFound = errors.New("connection not found")
)

// ConfigError wraps a failure reading or writing the SSH config file.
// A missing file is never a ConfigError; it is treated as empty.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("ssh config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// TrustError wraps a host-key scan or trust-store failure. It aborts the
// one connect attempt it occurred in and nothing else.
type TrustError struct {
	Host string
	Err  error
}

func (e *TrustError) Error() string {
	return fmt.Sprintf("host key trust for %s: %v", e.Host, e.Err)
}

func (e *TrustError) Unwrap() error { return e.Err }

// AuthError reports rejected or withheld credentials for an alias.
type AuthError struct {
	Alias string
	Err   error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication for %s: %v", e.Alias, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ToolMissingError reports a required external program that could not be
// found. Only the operation needing the tool fails.
type ToolMissingError struct {
	Tool string
}

func (e *ToolMissingError) Error() string {
	return fmt.Sprintf("required tool %q not found in PATH", e.Tool)
}

// ProtocolError wraps a client-level SSH or SFTP failure. The registry
// answers it with the same teardown an explicit disconnect performs.
type ProtocolError struct {
	Alias string
	Op    string
	Err   error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s on %s: %v", e.Op, e.Alias, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// UploadError reports a failed or unmapped save of a local temp copy.
type UploadError struct {
	LocalPath string
	Err       error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload of %s: %v", e.LocalPath, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// TargetUnavailableError reports one broadcast target without a usable
// terminal. Sibling targets are unaffected.
type TargetUnavailableError struct {
	Alias string
}

func (e *TargetUnavailableError) Error() string {
	return fmt.Sprintf("target %s has no live terminal", e.Alias)
}
