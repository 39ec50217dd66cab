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
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/ssh"

	"github.com/sshdeck/sshdeck/internal/core/domain"
)

const testPassword = "right-horse-battery"

func testServerSigner(t *testing.T) ssh.Signer {
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

// startTestServer runs a password-only SSH server on a loopback port and
// returns its port and host key signer.
func startTestServer(t *testing.T) (int, ssh.Signer) {
	t.Helper()
	signer := testServerSigner(t)

	cfg := &ssh.ServerConfig{
		PasswordCallback: func(_ ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if string(pass) == testPassword {
				return nil, nil
			}
			return nil, errors.New("permission denied")
		},
	}
	cfg.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				sc, chans, reqs, err := ssh.NewServerConn(conn, cfg)
				if err != nil {
					_ = conn.Close()
					return
				}
				go ssh.DiscardRequests(reqs)
				for newCh := range chans {
					_ = newCh.Reject(ssh.UnknownChannelType, "not supported")
				}
				_ = sc.Close()
			}(conn)
		}
	}()

	return ln.Addr().(*net.TCPAddr).Port, signer
}

func testDialer(t *testing.T) *Dialer {
	t.Helper()
	t.Setenv("SSH_AUTH_SOCK", "")
	return NewDialer(zaptest.NewLogger(t).Sugar(), 5*time.Second, 0)
}

func TestDial_PasswordSuccess(t *testing.T) {
	port, signer := startTestServer(t)
	d := testDialer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := domain.Connection{Alias: "box", Host: "127.0.0.1", Port: port, User: "tester"}
	creds := domain.Credentials{Password: testPassword}
	client, err := d.Dial(ctx, conn, creds, ssh.FingerprintSHA256(signer.PublicKey()))
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	select {
	case <-client.Done():
		t.Fatal("Done closed right after a successful dial")
	default:
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	select {
	case <-client.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done not closed after Close")
	}
}

func TestDial_RejectsUnexpectedHostKey(t *testing.T) {
	port, _ := startTestServer(t)
	d := testDialer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := domain.Connection{Alias: "box", Host: "127.0.0.1", Port: port, User: "tester"}
	creds := domain.Credentials{Password: testPassword}
	other := testServerSigner(t)
	_, err := d.Dial(ctx, conn, creds, ssh.FingerprintSHA256(other.PublicKey()))

	var trustErr *domain.TrustError
	if !errors.As(err, &trustErr) {
		t.Fatalf("Dial() error = %v, want *domain.TrustError", err)
	}
}

func TestDial_WrongPassword(t *testing.T) {
	port, signer := startTestServer(t)
	d := testDialer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := domain.Connection{Alias: "box", Host: "127.0.0.1", Port: port, User: "tester"}
	creds := domain.Credentials{Password: "nope"}
	_, err := d.Dial(ctx, conn, creds, ssh.FingerprintSHA256(signer.PublicKey()))

	var authErr *domain.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Dial() error = %v, want *domain.AuthError", err)
	}
	if authErr.Alias != "box" {
		t.Errorf("AuthError.Alias = %q, want %q", authErr.Alias, "box")
	}
}

func TestDial_EncryptedKeyNeedsPassphrase(t *testing.T) {
	d := testDialer(t)

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	block, err := ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte("letmein"))
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	keyPath := filepath.Join(t.TempDir(), "id_test")
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// No passphrase supplied: the dial must fail before touching the
	// network, so no server is needed.
	conn := domain.Connection{Alias: "box", Host: "192.0.2.1", User: "tester", IdentityFile: keyPath}
	_, err = d.Dial(ctx, conn, domain.Credentials{}, "SHA256:irrelevant")
	if !errors.Is(err, domain.ErrPassphraseRequired) {
		t.Fatalf("Dial() error = %v, want ErrPassphraseRequired", err)
	}

	// With the passphrase the key parses; auth methods build cleanly.
	methods, err := d.authMethods(conn, domain.Credentials{Passphrase: "letmein"})
	if err != nil {
		t.Fatalf("authMethods() error = %v", err)
	}
	if len(methods) == 0 {
		t.Fatal("authMethods() returned nothing for a decryptable key")
	}

	if _, err := d.authMethods(conn, domain.Credentials{Passphrase: "wrong"}); err == nil {
		t.Fatal("authMethods() with a bad passphrase should fail")
	}
}

func TestPinnedHostKey(t *testing.T) {
	key := testServerSigner(t).PublicKey()
	fp := ssh.FingerprintSHA256(key)

	if err := pinnedHostKey(fp)("h", nil, key); err != nil {
		t.Errorf("matching fingerprint rejected: %v", err)
	}
	if err := pinnedHostKey("SHA256:other")("h", nil, key); !errors.Is(err, errKeyMismatch) {
		t.Errorf("mismatched fingerprint: err = %v, want errKeyMismatch", err)
	}
	if err := pinnedHostKey("")("h", nil, key); !errors.Is(err, errKeyMismatch) {
		t.Errorf("empty expectation must reject, err = %v", err)
	}
}

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}

	tests := []struct {
		in   string
		want string
	}{
		{"~/.ssh/id_ed25519", filepath.Join(home, ".ssh", "id_ed25519")},
		{"~", home},
		{"/abs/path", "/abs/path"},
		{"relative/path", "relative/path"},
		{"~user/key", "~user/key"},
	}
	for _, tt := range tests {
		if got := expandTilde(tt.in); got != tt.want {
			t.Errorf("expandTilde(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
