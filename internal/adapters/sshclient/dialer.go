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
	"errors"
	"fmt"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"github.com/sshdeck/sshdeck/internal/core/domain"
	"github.com/sshdeck/sshdeck/internal/core/ports"
)

var errKeyMismatch = errors.New("host key mismatch")

// Dialer opens SSH connections with in-process authentication. Host keys
// are pinned to the fingerprint the caller resolved through the trust
// store before dialing.
type Dialer struct {
	logger    *zap.SugaredLogger
	timeout   time.Duration
	keepalive time.Duration
}

// NewDialer builds a dialer. keepalive <= 0 disables the keepalive loop.
func NewDialer(logger *zap.SugaredLogger, timeout, keepalive time.Duration) *Dialer {
	return &Dialer{logger: logger, timeout: timeout, keepalive: keepalive}
}

func (d *Dialer) Dial(ctx context.Context, conn domain.Connection, creds domain.Credentials, expectedFingerprint string) (ports.Client, error) {
	host, port := conn.Addr()
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	auths, err := d.authMethods(conn, creds)
	if err != nil {
		return nil, &domain.AuthError{Alias: conn.Alias, Err: err}
	}

	cfg := &ssh.ClientConfig{
		User:            resolveUser(conn, creds),
		Auth:            auths,
		HostKeyCallback: pinnedHostKey(expectedFingerprint),
		Timeout:         d.timeout,
	}

	netDialer := net.Dialer{Timeout: d.timeout}
	netConn, err := netDialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = netConn.SetDeadline(deadline)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, addr, cfg)
	if err != nil {
		_ = netConn.Close()
		if errors.Is(err, errKeyMismatch) {
			return nil, &domain.TrustError{Host: host, Err: err}
		}
		if strings.Contains(err.Error(), "unable to authenticate") {
			return nil, &domain.AuthError{Alias: conn.Alias, Err: err}
		}
		return nil, &domain.ProtocolError{Alias: conn.Alias, Op: "handshake", Err: err}
	}
	// Handshake deadlines must not outlive the handshake.
	_ = netConn.SetDeadline(time.Time{})

	c := &client{
		alias:  conn.Alias,
		ssh:    ssh.NewClient(sshConn, chans, reqs),
		logger: d.logger,
		done:   make(chan struct{}),
	}
	go c.watch()
	if d.keepalive > 0 {
		go c.keepaliveLoop(d.keepalive)
	}
	d.logger.Infow("connected", "alias", conn.Alias, "addr", addr)
	return c, nil
}

// authMethods assembles the methods to offer, most specific first. A
// configured identity file that needs a passphrase the caller did not
// supply aborts with ErrPassphraseRequired before anything touches the
// network.
func (d *Dialer) authMethods(conn domain.Connection, creds domain.Credentials) ([]ssh.AuthMethod, error) {
	var auths []ssh.AuthMethod

	if conn.IdentityFile != "" {
		method, err := identityAuth(conn.IdentityFile, creds.Passphrase)
		if err != nil {
			return nil, err
		}
		auths = append(auths, method)
	}

	if creds.Password != "" {
		password := creds.Password
		auths = append(auths, ssh.Password(password))
		// Some servers only advertise keyboard-interactive; answer every
		// question with the same password.
		auths = append(auths, ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
			answers := make([]string, len(questions))
			for i := range answers {
				answers[i] = password
			}
			return answers, nil
		}))
	}

	if method, ok := agentAuth(); ok {
		auths = append(auths, method)
	}

	if len(auths) == 0 {
		return nil, errors.New("no authentication methods available")
	}
	return auths, nil
}

func identityAuth(path, passphrase string) (ssh.AuthMethod, error) {
	// #nosec G304 -- path comes from the user's connection record
	data, err := os.ReadFile(expandTilde(path))
	if err != nil {
		return nil, fmt.Errorf("read identity file: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if !errors.As(err, &missing) {
			return nil, fmt.Errorf("parse identity file: %w", err)
		}
		if passphrase == "" {
			return nil, domain.ErrPassphraseRequired
		}
		signer, err = ssh.ParsePrivateKeyWithPassphrase(data, []byte(passphrase))
		if err != nil {
			return nil, fmt.Errorf("decrypt identity file: %w", err)
		}
	}
	return ssh.PublicKeys(signer), nil
}

// agentAuth offers the running ssh-agent's keys when one is reachable.
func agentAuth() (ssh.AuthMethod, bool) {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, false
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, false
	}
	return ssh.PublicKeysCallback(agent.NewClient(conn).Signers), true
}

func resolveUser(conn domain.Connection, creds domain.Credentials) string {
	if creds.User != "" {
		return creds.User
	}
	if conn.User != "" {
		return conn.User
	}
	if current, err := user.Current(); err == nil {
		return current.Username
	}
	return "root"
}

// pinnedHostKey accepts exactly the expected fingerprint. An empty
// expectation rejects every key; callers resolve trust before dialing.
func pinnedHostKey(expected string) ssh.HostKeyCallback {
	return func(_ string, _ net.Addr, key ssh.PublicKey) error {
		presented := ssh.FingerprintSHA256(key)
		if expected == "" || presented != expected {
			return fmt.Errorf("%w: server presented %s", errKeyMismatch, presented)
		}
		return nil
	}
}

func expandTilde(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// client owns one SSH connection. done closes when the connection dies,
// whatever the cause.
type client struct {
	alias  string
	ssh    *ssh.Client
	logger *zap.SugaredLogger

	done     chan struct{}
	doneOnce sync.Once
}

func (c *client) watch() {
	err := c.ssh.Wait()
	if err != nil {
		c.logger.Infow("connection closed", "alias", c.alias, "error", err)
	}
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *client) keepaliveLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if _, _, err := c.ssh.SendRequest("keepalive@openssh.com", true, nil); err != nil {
				c.logger.Warnw("keepalive failed, dropping connection", "alias", c.alias, "error", err)
				_ = c.ssh.Close()
				return
			}
		}
	}
}

func (c *client) OpenTerminal() (ports.Terminal, error) {
	return newTerminal(c)
}

func (c *client) OpenFiles() (ports.FileTransfer, error) {
	return newFileTransfer(c)
}

func (c *client) Done() <-chan struct{} {
	return c.done
}

func (c *client) Close() error {
	err := c.ssh.Close()
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
