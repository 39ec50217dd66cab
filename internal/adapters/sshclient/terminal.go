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
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/term"

	"github.com/sshdeck/sshdeck/internal/core/domain"
)

const (
	// detachKey returns control to the app without ending the shell.
	detachKey = 0x1d // Ctrl-]

	replayLimit  = 64 * 1024
	attachPollMs = 50
)

// terminal is a remote shell on a PTY. The shell keeps running while no
// one is attached; output accumulates in a bounded replay buffer so a
// re-attach can restore recent screen content.
type terminal struct {
	alias   string
	logger  *zap.SugaredLogger
	session *ssh.Session
	stdin   io.WriteCloser
	done    chan struct{}

	mu     sync.Mutex
	replay replayBuffer
	sink   io.Writer
}

func newTerminal(c *client) (*terminal, error) {
	session, err := c.ssh.NewSession()
	if err != nil {
		return nil, &domain.ProtocolError{Alias: c.alias, Op: "session", Err: err}
	}

	width, height := 80, 24
	if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		width, height = w, h
	}
	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty("xterm-256color", height, width, modes); err != nil {
		_ = session.Close()
		return nil, &domain.ProtocolError{Alias: c.alias, Op: "pty", Err: err}
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		_ = session.Close()
		return nil, &domain.ProtocolError{Alias: c.alias, Op: "stdin", Err: err}
	}

	t := &terminal{
		alias:   c.alias,
		logger:  c.logger,
		session: session,
		stdin:   stdin,
		done:    make(chan struct{}),
	}
	t.replay.limit = replayLimit
	session.Stdout = t
	session.Stderr = t

	if err := session.Shell(); err != nil {
		_ = session.Close()
		return nil, &domain.ProtocolError{Alias: c.alias, Op: "shell", Err: err}
	}
	go func() {
		_ = session.Wait()
		close(t.done)
	}()
	return t, nil
}

// Write receives remote output. It feeds the replay buffer and, when a
// sink is attached, mirrors to it.
func (t *terminal) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.replay.write(p)
	if t.sink != nil {
		_, _ = t.sink.Write(p)
	}
	return len(p), nil
}

func (t *terminal) Send(command string) error {
	select {
	case <-t.done:
		return &domain.ProtocolError{Alias: t.alias, Op: "send", Err: errors.New("shell has exited")}
	default:
	}
	if _, err := io.WriteString(t.stdin, command+"\n"); err != nil {
		return &domain.ProtocolError{Alias: t.alias, Op: "send", Err: err}
	}
	return nil
}

// Attach bridges os.Stdin/os.Stdout to the shell. It returns when the
// shell exits, the context ends, or the user presses the detach key.
// Stdin is read with short deadlines so the loop can notice either exit
// condition without stealing keystrokes typed after detach.
func (t *terminal) Attach(ctx context.Context) error {
	stdinFd := int(os.Stdin.Fd())
	if term.IsTerminal(stdinFd) {
		state, err := term.MakeRaw(stdinFd)
		if err != nil {
			return &domain.ProtocolError{Alias: t.alias, Op: "attach", Err: err}
		}
		defer func() { _ = term.Restore(stdinFd, state) }()
	}

	t.syncWindowSize()
	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	defer signal.Stop(winch)
	detached := make(chan struct{})
	defer close(detached)
	go func() {
		for {
			select {
			case <-winch:
				t.syncWindowSize()
			case <-detached:
				return
			}
		}
	}()

	t.mu.Lock()
	if data := t.replay.bytes(); len(data) > 0 {
		_, _ = os.Stdout.Write(data)
	}
	t.sink = os.Stdout
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.sink = nil
		t.mu.Unlock()
	}()

	defer func() { _ = os.Stdin.SetReadDeadline(time.Time{}) }()
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.done:
			return nil
		default:
		}

		_ = os.Stdin.SetReadDeadline(time.Now().Add(attachPollMs * time.Millisecond))
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if i := bytes.IndexByte(chunk, detachKey); i >= 0 {
				if i > 0 {
					_, _ = t.stdin.Write(chunk[:i])
				}
				return nil
			}
			if _, werr := t.stdin.Write(chunk); werr != nil {
				return &domain.ProtocolError{Alias: t.alias, Op: "attach", Err: werr}
			}
		}
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return &domain.ProtocolError{Alias: t.alias, Op: "attach", Err: err}
		}
	}
}

func (t *terminal) syncWindowSize() {
	if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		_ = t.session.WindowChange(h, w)
	}
}

func (t *terminal) Done() <-chan struct{} {
	return t.done
}

func (t *terminal) Close() error {
	err := t.session.Close()
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// replayBuffer keeps the tail of the shell's output, bounded to limit.
type replayBuffer struct {
	limit int
	data  []byte
}

func (r *replayBuffer) write(p []byte) {
	r.data = append(r.data, p...)
	if len(r.data) > r.limit {
		tail := r.data[len(r.data)-r.limit:]
		r.data = append([]byte(nil), tail...)
	}
}

func (r *replayBuffer) bytes() []byte {
	out := make([]byte, len(r.data))
	copy(out, r.data)
	return out
}
