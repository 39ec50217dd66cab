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

package services

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/sshdeck/sshdeck/internal/core/domain"
	"github.com/sshdeck/sshdeck/internal/core/ports"
)

// Browser is the per-alias remote file browser. It survives disconnects;
// only its transfer channel comes and goes with the session. Local temp
// copies of opened files live under tempRoot and never outlive a Reset.
type Browser struct {
	alias    string
	logger   *zap.SugaredLogger
	tempRoot string

	mu       sync.Mutex
	transfer ports.FileTransfer
	handles  map[string]string // local temp path -> remote path
}

func newBrowser(alias string, logger *zap.SugaredLogger, tempRoot string) *Browser {
	return &Browser{
		alias:    alias,
		logger:   logger,
		tempRoot: tempRoot,
		handles:  make(map[string]string),
	}
}

// setTransfer swaps in the live session's transfer channel.
func (b *Browser) setTransfer(transfer ports.FileTransfer) {
	b.mu.Lock()
	old := b.transfer
	b.transfer = transfer
	b.mu.Unlock()
	if old != nil && old != transfer {
		_ = old.Close()
	}
}

func (b *Browser) hasTransfer() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.transfer != nil
}

func (b *Browser) liveTransfer() (ports.FileTransfer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.transfer == nil {
		return nil, domain.ErrNotConnected
	}
	return b.transfer, nil
}

// List returns the directory's entries, directories first, each group
// case-insensitively alphabetical. The sort is applied here on every
// call; servers disagree about ordering.
func (b *Browser) List(dir string) ([]domain.FileEntry, error) {
	transfer, err := b.liveTransfer()
	if err != nil {
		return nil, err
	}
	entries, err := transfer.List(dir)
	if err != nil {
		return nil, err
	}
	sortEntries(entries)
	return entries, nil
}

func sortEntries(entries []domain.FileEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Dir != entries[j].Dir {
			return entries[i].Dir
		}
		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})
}

// Open downloads the remote file to its deterministic temp path and
// records the local-to-remote mapping. Re-opening the same remote path
// reuses the same local path.
func (b *Browser) Open(remotePath string) (domain.RemoteFileHandle, error) {
	transfer, err := b.liveTransfer()
	if err != nil {
		return domain.RemoteFileHandle{}, err
	}
	localPath := b.localPathFor(remotePath)
	if err := transfer.Download(remotePath, localPath); err != nil {
		return domain.RemoteFileHandle{}, err
	}
	b.mu.Lock()
	b.handles[localPath] = remotePath
	b.mu.Unlock()
	return domain.RemoteFileHandle{Alias: b.alias, LocalPath: localPath, RemotePath: remotePath}, nil
}

// localPathFor derives the temp path from the alias, a short hash of the
// full remote path, and the basename. Two remote files with the same
// basename never collide.
func (b *Browser) localPathFor(remotePath string) string {
	sum := sha256.Sum256([]byte(remotePath))
	short := hex.EncodeToString(sum[:])[:8]
	return filepath.Join(b.tempRoot, fmt.Sprintf("%s-%s-%s", b.alias, short, path.Base(remotePath)))
}

// Save uploads the temp copy back to its mapped remote path, then
// deletes the copy and the mapping. A failed upload keeps both so the
// user can retry. An unmapped local path is an UploadError.
func (b *Browser) Save(localPath string) error {
	b.mu.Lock()
	remotePath, mapped := b.handles[localPath]
	transfer := b.transfer
	b.mu.Unlock()

	if !mapped {
		return &domain.UploadError{LocalPath: localPath, Err: errors.New("no remote mapping for this file")}
	}
	if transfer == nil {
		return &domain.UploadError{LocalPath: localPath, Err: domain.ErrNotConnected}
	}
	if err := transfer.Upload(localPath, remotePath); err != nil {
		return err
	}

	b.mu.Lock()
	delete(b.handles, localPath)
	b.mu.Unlock()
	if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
		b.logger.Warnw("temp copy not removed", "path", localPath, "error", err)
	}
	return nil
}

// CloseFile discards the temp copy and its mapping without uploading.
// Unknown paths are a no-op.
func (b *Browser) CloseFile(localPath string) {
	b.mu.Lock()
	_, mapped := b.handles[localPath]
	delete(b.handles, localPath)
	b.mu.Unlock()
	if !mapped {
		return
	}
	if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
		b.logger.Warnw("temp copy not removed", "path", localPath, "error", err)
	}
}

// CreateFile makes an empty remote file and opens it immediately.
func (b *Browser) CreateFile(parent, name string) (domain.RemoteFileHandle, error) {
	transfer, err := b.liveTransfer()
	if err != nil {
		return domain.RemoteFileHandle{}, err
	}
	remotePath := path.Join(parent, name)
	if err := transfer.Create(remotePath); err != nil {
		return domain.RemoteFileHandle{}, err
	}
	return b.Open(remotePath)
}

// CreateFolder makes an empty remote directory.
func (b *Browser) CreateFolder(parent, name string) error {
	transfer, err := b.liveTransfer()
	if err != nil {
		return err
	}
	return transfer.MakeDir(path.Join(parent, name))
}

// Handles snapshots the open local-to-remote mappings.
func (b *Browser) Handles() []domain.RemoteFileHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.RemoteFileHandle, 0, len(b.handles))
	for local, remote := range b.handles {
		out = append(out, domain.RemoteFileHandle{Alias: b.alias, LocalPath: local, RemotePath: remote})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LocalPath < out[j].LocalPath })
	return out
}

// Reset deletes every temp copy, clears all mappings, and drops the
// transfer channel. The browser itself stays usable for the next
// session.
func (b *Browser) Reset() {
	b.mu.Lock()
	transfer := b.transfer
	b.transfer = nil
	handles := b.handles
	b.handles = make(map[string]string)
	b.mu.Unlock()

	for localPath := range handles {
		if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
			b.logger.Warnw("temp copy not removed", "path", localPath, "error", err)
		}
	}
	if transfer != nil {
		_ = transfer.Close()
	}
}
