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

// HostKey is a scanned or stored host public key. Fingerprint (SHA-256 of
// the key blob) is the unit of trust comparison, never the raw key bytes.
type HostKey struct {
	Host        string
	Port        int
	Type        string
	Fingerprint string

	// Marshaled is the wire-format public key as captured during the scan.
	// Needed to write a trust-file entry; empty for lookup-only results.
	Marshaled []byte
}
