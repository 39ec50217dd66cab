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

package ports

import (
	"context"

	"github.com/sshdeck/sshdeck/internal/core/domain"
)

// TrustStore tracks known host-key fingerprints.
type TrustStore interface {
	// Lookup reports the stored fingerprint for a host. A missing trust
	// file means not known, not an error.
	Lookup(host string, port int) (fingerprint string, known bool, err error)

	// Scan fetches the host's current public key by handshaking without
	// authenticating.
	Scan(ctx context.Context, host string, port int) (domain.HostKey, error)

	// Add stores a host key, replacing any previous entry for the host.
	// Adding an identical fingerprint is a no-op.
	Add(key domain.HostKey) error

	// Remove drops the host's entry. Removing an absent host is a no-op.
	Remove(host string, port int) error
}
