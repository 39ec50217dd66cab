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

package sshclient

import (
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/pkg/sftp"
	"go.uber.org/zap"

	"github.com/sshdeck/sshdeck/internal/core/domain"
)

// fileTransfer exposes an SFTP channel. Remote paths are POSIX; local
// paths follow the host OS.
type fileTransfer struct {
	alias  string
	sftp   *sftp.Client
	logger *zap.SugaredLogger
}

func newFileTransfer(c *client) (*fileTransfer, error) {
	sc, err := sftp.NewClient(c.ssh)
	if err != nil {
		return nil, &domain.ProtocolError{Alias: c.alias, Op: "sftp", Err: err}
	}
	return &fileTransfer{alias: c.alias, sftp: sc, logger: c.logger}, nil
}

// List returns the entries of a remote directory in server order;
// presentation sorting is the caller's concern.
func (f *fileTransfer) List(dir string) ([]domain.FileEntry, error) {
	infos, err := f.sftp.ReadDir(dir)
	if err != nil {
		return nil, &domain.ProtocolError{Alias: f.alias, Op: "list", Err: err}
	}
	entries := make([]domain.FileEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, domain.FileEntry{
			Name:    info.Name(),
			Path:    path.Join(dir, info.Name()),
			Dir:     info.IsDir(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return entries, nil
}

func (f *fileTransfer) Download(remotePath, localPath string) error {
	src, err := f.sftp.Open(remotePath)
	if err != nil {
		return &domain.ProtocolError{Alias: f.alias, Op: "download", Err: err}
	}
	defer func() { _ = src.Close() }()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o700); err != nil {
		return &domain.ProtocolError{Alias: f.alias, Op: "download", Err: err}
	}
	// #nosec G304 -- localPath is derived from the app's temp root
	dst, err := os.OpenFile(localPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return &domain.ProtocolError{Alias: f.alias, Op: "download", Err: err}
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return &domain.ProtocolError{Alias: f.alias, Op: "download", Err: err}
	}
	if err := dst.Close(); err != nil {
		return &domain.ProtocolError{Alias: f.alias, Op: "download", Err: err}
	}
	f.logger.Infow("downloaded file", "alias", f.alias, "remote", remotePath)
	return nil
}

// Upload pushes a local file over the remote path. Failures wrap
// UploadError so callers can keep the local copy alive for a retry.
func (f *fileTransfer) Upload(localPath, remotePath string) error {
	// #nosec G304 -- localPath is derived from the app's temp root
	src, err := os.Open(localPath)
	if err != nil {
		return &domain.UploadError{LocalPath: localPath, Err: err}
	}
	defer func() { _ = src.Close() }()

	dst, err := f.sftp.Create(remotePath)
	if err != nil {
		return &domain.UploadError{LocalPath: localPath, Err: err}
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return &domain.UploadError{LocalPath: localPath, Err: err}
	}
	if err := dst.Close(); err != nil {
		return &domain.UploadError{LocalPath: localPath, Err: err}
	}
	f.logger.Infow("uploaded file", "alias", f.alias, "remote", remotePath)
	return nil
}

// Create makes an empty remote file and refuses to clobber an existing
// one.
func (f *fileTransfer) Create(p string) error {
	handle, err := f.sftp.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL)
	if err != nil {
		return &domain.ProtocolError{Alias: f.alias, Op: "create", Err: err}
	}
	if err := handle.Close(); err != nil {
		return &domain.ProtocolError{Alias: f.alias, Op: "create", Err: err}
	}
	return nil
}

func (f *fileTransfer) MakeDir(p string) error {
	if err := f.sftp.Mkdir(p); err != nil {
		return &domain.ProtocolError{Alias: f.alias, Op: "mkdir", Err: err}
	}
	return nil
}

func (f *fileTransfer) Close() error {
	return f.sftp.Close()
}
