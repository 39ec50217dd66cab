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

package sshconfig

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sshdeck/sshdeck/internal/core/domain"
)

type connectionRepo struct {
	path       string
	backupPath string
	logger     *zap.SugaredLogger

	mu            sync.Mutex
	suppressUntil time.Time
}

// NewRepository returns a connection repository over the SSH config file at
// path. backupPath receives a copy of the previous content before every
// rewrite; an empty backupPath disables backups.
func NewRepository(logger *zap.SugaredLogger, path, backupPath string) *connectionRepo {
	return &connectionRepo{logger: logger, path: path, backupPath: backupPath}
}

func (r *connectionRepo) ListConnections() ([]domain.Connection, error) {
	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	return doc.connections(), nil
}

func (r *connectionRepo) UpsertConnection(conn domain.Connection) error {
	doc, err := r.load()
	if err != nil {
		return err
	}
	doc.upsert(conn)
	return r.write(doc)
}

func (r *connectionRepo) RemoveConnection(alias string) error {
	doc, err := r.load()
	if err != nil {
		return err
	}
	if !doc.remove(alias) {
		return nil
	}
	return r.write(doc)
}

// load parses the whole file, creating it first if absent.
func (r *connectionRepo) load() (*document, error) {
	if err := r.ensureFile(); err != nil {
		return nil, &domain.ConfigError{Path: r.path, Err: err}
	}
	// #nosec G304 -- path comes from the application config, not user input
	file, err := os.Open(r.path)
	if err != nil {
		return nil, &domain.ConfigError{Path: r.path, Err: err}
	}
	defer func() { _ = file.Close() }()

	doc, err := parse(file)
	if err != nil {
		return nil, &domain.ConfigError{Path: r.path, Err: err}
	}
	return doc, nil
}

// ensureFile creates the config file with restrictive permissions when it
// does not exist yet.
func (r *connectionRepo) ensureFile() error {
	if _, err := os.Stat(r.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(r.path, nil, 0o600)
}

// write backs up the current content, then replaces the file atomically via
// a temp file and rename.
func (r *connectionRepo) write(doc *document) error {
	if err := r.backupCurrent(); err != nil {
		r.logger.Warnw("config backup failed", "path", r.path, "error", err)
	}
	r.markSelfWrite()

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, ".sshdeck-tmp-*")
	if err != nil {
		return &domain.ConfigError{Path: r.path, Err: err}
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = tmp.Close()
		return &domain.ConfigError{Path: r.path, Err: err}
	}
	if _, err := tmp.Write(render(doc)); err != nil {
		_ = tmp.Close()
		return &domain.ConfigError{Path: r.path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return &domain.ConfigError{Path: r.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &domain.ConfigError{Path: r.path, Err: err}
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return &domain.ConfigError{Path: r.path, Err: err}
	}
	return nil
}

// backupCurrent copies the current config aside, overwriting the previous
// backup. Missing source or disabled backups are not errors.
func (r *connectionRepo) backupCurrent() error {
	if r.backupPath == "" {
		return nil
	}
	src, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer func() { _ = src.Close() }()

	if err := os.MkdirAll(filepath.Dir(r.backupPath), 0o700); err != nil {
		return err
	}
	// #nosec G304 -- backupPath is generated internally and trusted
	dst, err := os.OpenFile(r.backupPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer func() { _ = dst.Close() }()

	if _, err := io.Copy(dst, src); err != nil {
		return err
	}
	return dst.Sync()
}
