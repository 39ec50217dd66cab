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

import "time"

// FileEntry is one remote directory entry returned by a listing.
type FileEntry struct {
	Name    string
	Path    string
	Dir     bool
	Size    int64
	ModTime time.Time
}

// RemoteFileHandle maps a local temp copy of a remote file to its origin.
// Every local path maps to exactly one remote path; the copy is deleted on
// close and uploaded-then-deleted on save.
type RemoteFileHandle struct {
	Alias      string
	LocalPath  string
	RemotePath string
}
