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

import "github.com/sshdeck/sshdeck/internal/core/domain"

// ConnectionRepository persists connection records in the shared SSH config
// file. The file is re-read on every call; callers never hold a cache.
type ConnectionRepository interface {
	// ListConnections returns all managed records in file order.
	ListConnections() ([]domain.Connection, error)

	// UpsertConnection replaces the record with the same alias in place or
	// appends a new block.
	UpsertConnection(conn domain.Connection) error

	// RemoveConnection deletes the record and its folder comment. Removing
	// an absent alias is a no-op.
	RemoveConnection(alias string) error

	// Watch invokes onChange after the config file is modified by an
	// external writer. The returned stop function releases the watch.
	Watch(onChange func()) (stop func(), err error)
}
