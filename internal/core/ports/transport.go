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

// Dialer opens authenticated protocol clients. expectedFingerprint is pinned
// into host-key verification; the dial fails if the server presents any
// other key.
type Dialer interface {
	Dial(ctx context.Context, conn domain.Connection, creds domain.Credentials, expectedFingerprint string) (Client, error)
}

// Client is one live protocol connection, exclusively owned by a single
// session. Done is closed when the underlying connection dies for any
// reason, including keepalive failure.
type Client interface {
	OpenTerminal() (Terminal, error)
	OpenFiles() (FileTransfer, error)
	Done() <-chan struct{}
	Close() error
}

// Terminal is an interactive remote shell with a PTY.
type Terminal interface {
	// Send writes the command followed by a newline into the shell's stdin,
	// as if typed and submitted by the user.
	Send(command string) error

	// Attach bridges the calling process's terminal to the shell until the
	// shell exits, the context ends, or the user detaches.
	Attach(ctx context.Context) error

	// Done is closed when the remote shell exits.
	Done() <-chan struct{}

	Close() error
}

// FileTransfer is the client's file capability backing the remote browser.
type FileTransfer interface {
	List(path string) ([]domain.FileEntry, error)
	Download(remotePath, localPath string) error
	Upload(localPath, remotePath string) error
	Create(path string) error
	MakeDir(path string) error
	Close() error
}
