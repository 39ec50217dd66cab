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
	"bufio"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/sshdeck/sshdeck/internal/core/domain"
)

const scanHandshakeTimeout = 10 * time.Second

type knownHostsStore struct {
	path   string
	logger *zap.SugaredLogger
}

// NewKnownHostsStore returns a trust store backed by an OpenSSH known_hosts
// file. The file may be shared with ssh itself; rewrites touch only the
// entries for the host being mutated.
func NewKnownHostsStore(logger *zap.SugaredLogger, path string) *knownHostsStore {
	return &knownHostsStore{logger: logger, path: path}
}

// normalizeAddr renders host/port the way known_hosts stores them: bare
// host for port 22, "[host]:port" otherwise.
func normalizeAddr(host string, port int) string {
	if port == 0 {
		port = domain.DefaultPort
	}
	return knownhosts.Normalize(net.JoinHostPort(host, strconv.Itoa(port)))
}

func (s *knownHostsStore) Lookup(host string, port int) (string, bool, error) {
	// #nosec G304 -- path comes from the application config
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, &domain.TrustError{Host: host, Err: err}
	}
	defer func() { _ = file.Close() }()

	addr := normalizeAddr(host, port)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		key, ok := keyForAddr(scanner.Text(), addr)
		if !ok {
			continue
		}
		return ssh.FingerprintSHA256(key), true, nil
	}
	if err := scanner.Err(); err != nil {
		return "", false, &domain.TrustError{Host: host, Err: err}
	}
	return "", false, nil
}

// keyForAddr parses one known_hosts line and returns its key when the line
// covers addr. Hashed entries and marker lines are skipped; they cannot be
// pattern-matched without the hash salt and we never write them.
func keyForAddr(line, addr string) (ssh.PublicKey, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "@") || strings.HasPrefix(trimmed, "|") {
		return nil, false
	}
	fields := strings.Fields(trimmed)
	if len(fields) < 3 {
		return nil, false
	}
	for _, pattern := range strings.Split(fields[0], ",") {
		if pattern != addr {
			continue
		}
		key, _, _, _, err := ssh.ParseAuthorizedKey([]byte(strings.Join(fields[1:], " ")))
		if err != nil {
			return nil, false
		}
		return key, true
	}
	return nil, false
}

// Scan dials the host and captures the public key it presents during the
// handshake. No authentication is attempted; the connection is dropped as
// soon as the key is in hand.
func (s *knownHostsStore) Scan(ctx context.Context, host string, port int) (domain.HostKey, error) {
	if port == 0 {
		port = domain.DefaultPort
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	var captured ssh.PublicKey
	cfg := &ssh.ClientConfig{
		User: "sshdeck-scan",
		HostKeyCallback: func(_ string, _ net.Addr, key ssh.PublicKey) error {
			captured = key
			return nil
		},
		Timeout: scanHandshakeTimeout,
	}

	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return domain.HostKey{}, &domain.TrustError{Host: host, Err: err}
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err == nil {
		// The server accepted a no-auth connection; close it properly.
		_ = ssh.NewClient(sshConn, chans, reqs).Close()
	} else {
		_ = conn.Close()
	}

	if captured == nil {
		if err == nil {
			err = errors.New("no host key presented")
		}
		return domain.HostKey{}, &domain.TrustError{Host: host, Err: err}
	}

	s.logger.Infow("scanned host key", "host", host, "port", port, "type", captured.Type())
	return domain.HostKey{
		Host:        host,
		Port:        port,
		Type:        captured.Type(),
		Fingerprint: ssh.FingerprintSHA256(captured),
		Marshaled:   captured.Marshal(),
	}, nil
}

// Add stores the key, replacing any previous entry for the same address.
// Adding an identical fingerprint is a no-op.
func (s *knownHostsStore) Add(key domain.HostKey) error {
	if len(key.Marshaled) == 0 {
		return &domain.TrustError{Host: key.Host, Err: errors.New("host key has no raw material")}
	}
	current, known, err := s.Lookup(key.Host, key.Port)
	if err != nil {
		return err
	}
	if known && current == key.Fingerprint {
		return nil
	}

	pub, err := ssh.ParsePublicKey(key.Marshaled)
	if err != nil {
		return &domain.TrustError{Host: key.Host, Err: err}
	}
	addr := normalizeAddr(key.Host, key.Port)
	entry := knownhosts.Line([]string{addr}, pub)
	if err := s.rewrite(addr, entry); err != nil {
		return &domain.TrustError{Host: key.Host, Err: err}
	}
	s.logger.Infow("stored host key", "host", key.Host, "port", key.Port, "fingerprint", key.Fingerprint)
	return nil
}

// Remove drops the address from the trust file. Absent entries and an
// absent file are no-ops.
func (s *knownHostsStore) Remove(host string, port int) error {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return nil
	}
	addr := normalizeAddr(host, port)
	if err := s.rewrite(addr, ""); err != nil {
		return &domain.TrustError{Host: host, Err: err}
	}
	return nil
}

// rewrite drops addr from every line, removing lines left without
// patterns, and appends newEntry when non-empty. The file is replaced
// atomically.
func (s *knownHostsStore) rewrite(addr, newEntry string) error {
	var lines []string
	// #nosec G304 -- path comes from the application config
	file, err := os.Open(s.path)
	if err == nil {
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line, keep := dropAddrFromLine(scanner.Text(), addr)
			if keep {
				lines = append(lines, line)
			}
		}
		scanErr := scanner.Err()
		_ = file.Close()
		if scanErr != nil {
			return scanErr
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	if newEntry != "" {
		lines = append(lines, newEntry)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".sshdeck-hosts-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	for _, line := range lines {
		if _, err := tmp.WriteString(line + "\n"); err != nil {
			_ = tmp.Close()
			return err
		}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// dropAddrFromLine removes addr from the line's pattern list. keep is
// false when the line has no patterns left. Lines we cannot interpret are
// kept untouched.
func dropAddrFromLine(line, addr string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "@") || strings.HasPrefix(trimmed, "|") {
		return line, true
	}
	fields := strings.Fields(trimmed)
	if len(fields) < 3 {
		return line, true
	}
	patterns := strings.Split(fields[0], ",")
	kept := patterns[:0]
	for _, p := range patterns {
		if p != addr {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(patterns) {
		return line, true
	}
	if len(kept) == 0 {
		return "", false
	}
	fields[0] = strings.Join(kept, ",")
	return strings.Join(fields, " "), true
}
