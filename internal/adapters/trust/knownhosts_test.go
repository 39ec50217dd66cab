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

package trust

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/sshdeck/sshdeck/internal/core/domain"
)

func newTestStore(t *testing.T) (*knownHostsStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".ssh", "known_hosts")
	return NewKnownHostsStore(zaptest.NewLogger(t).Sugar(), path), path
}

func genHostKey(t *testing.T, host string, port int) domain.HostKey {
	t.Helper()
	sshPub := testSigner(t).PublicKey()
	return domain.HostKey{
		Host:        host,
		Port:        port,
		Type:        sshPub.Type(),
		Fingerprint: ssh.FingerprintSHA256(sshPub),
		Marshaled:   sshPub.Marshal(),
	}
}

func TestLookup_MissingFile(t *testing.T) {
	store, _ := newTestStore(t)

	fp, known, err := store.Lookup("example.com", 22)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if known || fp != "" {
		t.Errorf("Lookup() = (%q, %v), want unknown", fp, known)
	}
}

func TestAdd_Lookup(t *testing.T) {
	store, path := newTestStore(t)
	key := genHostKey(t, "example.com", 22)

	if err := store.Add(key); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	fp, known, err := store.Lookup("example.com", 22)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if !known || fp != key.Fingerprint {
		t.Errorf("Lookup() = (%q, %v), want (%q, true)", fp, known, key.Fingerprint)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read trust file: %v", err)
	}
	if !strings.HasPrefix(string(data), "example.com ") {
		t.Errorf("port 22 entry should use the bare host, got %q", string(data))
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat trust file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("trust file permissions = %v, want 0600", perm)
	}
}

func TestAdd_IdempotentForSameFingerprint(t *testing.T) {
	store, path := newTestStore(t)
	key := genHostKey(t, "example.com", 22)

	if err := store.Add(key); err != nil {
		t.Fatalf("first Add() error = %v", err)
	}
	before, _ := os.ReadFile(path)
	if err := store.Add(key); err != nil {
		t.Fatalf("second Add() error = %v", err)
	}
	after, _ := os.ReadFile(path)

	if string(before) != string(after) {
		t.Errorf("repeated Add rewrote the file:\nbefore: %q\nafter:  %q", before, after)
	}
	if got := strings.Count(string(after), "example.com"); got != 1 {
		t.Errorf("entries for example.com = %d, want 1", got)
	}
}

func TestAdd_ReplacesChangedKey(t *testing.T) {
	store, path := newTestStore(t)
	old := genHostKey(t, "example.com", 22)
	fresh := genHostKey(t, "example.com", 22)

	if err := store.Add(old); err != nil {
		t.Fatalf("Add(old) error = %v", err)
	}
	if err := store.Add(fresh); err != nil {
		t.Fatalf("Add(fresh) error = %v", err)
	}

	fp, known, err := store.Lookup("example.com", 22)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if !known || fp != fresh.Fingerprint {
		t.Errorf("Lookup() = (%q, %v), want new fingerprint %q", fp, known, fresh.Fingerprint)
	}

	data, _ := os.ReadFile(path)
	if got := strings.Count(string(data), "example.com"); got != 1 {
		t.Errorf("entries for example.com = %d, want 1", got)
	}
}

func TestAdd_NonStandardPort(t *testing.T) {
	store, path := newTestStore(t)
	key := genHostKey(t, "example.com", 2222)

	if err := store.Add(key); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "[example.com]:2222") {
		t.Errorf("non-standard port entry missing bracket form, got %q", string(data))
	}

	if _, known, _ := store.Lookup("example.com", 2222); !known {
		t.Error("Lookup on port 2222 should find the entry")
	}
	if _, known, _ := store.Lookup("example.com", 22); known {
		t.Error("Lookup on port 22 should not match the 2222 entry")
	}
}

func TestRemove(t *testing.T) {
	store, _ := newTestStore(t)

	// Missing file is a no-op.
	if err := store.Remove("example.com", 22); err != nil {
		t.Fatalf("Remove() on missing file error = %v", err)
	}

	key := genHostKey(t, "example.com", 22)
	if err := store.Add(key); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := store.Remove("example.com", 22); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, known, _ := store.Lookup("example.com", 22); known {
		t.Error("entry should be gone after Remove")
	}
}

func TestRewrite_PreservesForeignLines(t *testing.T) {
	store, path := newTestStore(t)
	sharedPub := testSigner(t).PublicKey()

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	seeded := strings.Join([]string{
		"# managed by hand",
		knownhosts.Line([]string{"a.example", "b.example"}, sharedPub),
		"|1|salt|digest ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIIn3BBkg5DZJSC8KGDbUGy8+9ZTFbyVdYBgrtnJeGmbz",
	}, "\n") + "\n"
	if err := os.WriteFile(path, []byte(seeded), 0o600); err != nil {
		t.Fatalf("seed trust file: %v", err)
	}

	// Removing a.example must keep b.example on the shared line and leave
	// the comment and hashed entry untouched.
	if err := store.Remove("a.example", 22); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	data, _ := os.ReadFile(path)
	out := string(data)
	if strings.Contains(out, "a.example") {
		t.Errorf("a.example should be gone, got %q", out)
	}
	if !strings.Contains(out, "b.example") {
		t.Errorf("b.example should survive, got %q", out)
	}
	if !strings.Contains(out, "# managed by hand") {
		t.Errorf("comment should survive, got %q", out)
	}
	if !strings.Contains(out, "|1|salt|digest") {
		t.Errorf("hashed entry should survive, got %q", out)
	}

	if _, known, err := store.Lookup("b.example", 22); err != nil || !known {
		t.Errorf("Lookup(b.example) = (known=%v, err=%v), want known", known, err)
	}
}

func TestScan_CapturesPresentedKey(t *testing.T) {
	signer := testSigner(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = ln.Close() }()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		cfg := &ssh.ServerConfig{}
		cfg.AddHostKey(signer)
		// Auth always fails; the key exchange before it is all Scan needs.
		_, _, _, _ = ssh.NewServerConn(conn, cfg)
		_ = conn.Close()
	}()

	store, _ := newTestStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	port := ln.Addr().(*net.TCPAddr).Port
	key, err := store.Scan(ctx, "127.0.0.1", port)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if key.Fingerprint != ssh.FingerprintSHA256(signer.PublicKey()) {
		t.Errorf("Scan fingerprint = %q, want the server key", key.Fingerprint)
	}
	if key.Type != signer.PublicKey().Type() {
		t.Errorf("Scan key type = %q, want %q", key.Type, signer.PublicKey().Type())
	}
	if len(key.Marshaled) == 0 {
		t.Error("Scan should return the raw key material")
	}
}

func TestScan_ConnectionRefused(t *testing.T) {
	store, _ := newTestStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Reserve a port and close it so nothing is listening.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	_, err = store.Scan(ctx, "127.0.0.1", port)
	var trustErr *domain.TrustError
	if !errors.As(err, &trustErr) {
		t.Fatalf("Scan() error = %v, want *domain.TrustError", err)
	}
}

func testSigner(t *testing.T) ssh.Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	return signer
}
