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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/sshdeck/sshdeck/internal/core/domain"
)

func newTestRepo(t *testing.T) (*connectionRepo, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".ssh", "config")
	return NewRepository(zaptest.NewLogger(t).Sugar(), path, ""), path
}

func TestRepo_AutoCreatesMissingFile(t *testing.T) {
	repo, path := newTestRepo(t)

	conns, err := repo.ListConnections()
	if err != nil {
		t.Fatalf("ListConnections() error = %v, want nil", err)
	}
	if len(conns) != 0 {
		t.Fatalf("expected empty list, got %d records", len(conns))
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file was not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("config file permissions = %o, want 600", perm)
	}
	dirInfo, err := os.Stat(filepath.Dir(path))
	if err != nil {
		t.Fatalf("config dir was not created: %v", err)
	}
	if perm := dirInfo.Mode().Perm(); perm != 0o700 {
		t.Errorf("config dir permissions = %o, want 700", perm)
	}
}

func TestRepo_UpsertListRemove(t *testing.T) {
	repo, _ := newTestRepo(t)

	if err := repo.UpsertConnection(domain.Connection{Alias: "a", Host: "1.1.1.1", Port: 22}); err != nil {
		t.Fatalf("upsert a: %v", err)
	}
	if err := repo.UpsertConnection(domain.Connection{Alias: "b", Host: "2.2.2.2", Port: 2222, Folder: "lab"}); err != nil {
		t.Fatalf("upsert b: %v", err)
	}

	conns, err := repo.ListConnections()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(conns) != 2 || conns[0].Alias != "a" || conns[1].Alias != "b" {
		t.Fatalf("unexpected records: %+v", conns)
	}
	if conns[1].Folder != "lab" {
		t.Errorf("folder = %q, want %q", conns[1].Folder, "lab")
	}

	if err := repo.UpsertConnection(domain.Connection{Alias: "a", Host: "9.9.9.9", Port: 22}); err != nil {
		t.Fatalf("upsert a again: %v", err)
	}
	conns, err = repo.ListConnections()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(conns) != 2 {
		t.Fatalf("upsert duplicated a block: %+v", conns)
	}
	if conns[0].Host != "9.9.9.9" {
		t.Errorf("host after update = %q, want 9.9.9.9", conns[0].Host)
	}

	if err := repo.RemoveConnection("missing"); err != nil {
		t.Fatalf("remove of absent alias should be a no-op, got %v", err)
	}
	if err := repo.RemoveConnection("a"); err != nil {
		t.Fatalf("remove a: %v", err)
	}
	conns, err = repo.ListConnections()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(conns) != 1 || conns[0].Alias != "b" {
		t.Fatalf("unexpected records after remove: %+v", conns)
	}
}

func TestRepo_PreservesForeignContent(t *testing.T) {
	repo, path := newTestRepo(t)
	seed := `# global defaults
Host *
    ForwardAgent yes

Host kept
    HostName kept.example.com
`
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := repo.UpsertConnection(domain.Connection{Alias: "new", Host: "3.3.3.3", Port: 22}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{"# global defaults", "Host *", "ForwardAgent yes", "Host kept", "Host new"} {
		if !strings.Contains(out, want) {
			t.Errorf("rewritten config lost %q:\n%s", want, out)
		}
	}
}

func TestRepo_BackupBeforeRewrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")
	backup := filepath.Join(dir, "backups", "config.backup")
	repo := NewRepository(zaptest.NewLogger(t).Sugar(), path, backup)

	if err := repo.UpsertConnection(domain.Connection{Alias: "a", Host: "1.1.1.1", Port: 22}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.UpsertConnection(domain.Connection{Alias: "b", Host: "2.2.2.2", Port: 22}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	data, err := os.ReadFile(backup)
	if err != nil {
		t.Fatalf("backup missing: %v", err)
	}
	if !strings.Contains(string(data), "Host a") {
		t.Errorf("backup does not hold previous content:\n%s", data)
	}
	if strings.Contains(string(data), "Host b") {
		t.Errorf("backup holds current content instead of previous:\n%s", data)
	}
}
