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
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sshdeck/sshdeck/internal/core/domain"
	"github.com/sshdeck/sshdeck/internal/core/ports"
)

// liveSession binds one alias to one protocol client. A session missing
// its client is mid-connect or mid-teardown and never escapes the
// registry.
type liveSession struct {
	alias       string
	state       domain.SessionState
	client      ports.Client
	terminal    ports.Terminal
	creds       domain.Credentials
	connectedAt time.Time
}

// Registry owns every live session and every file browser, keyed by
// alias. All maps are private; nothing else in the process holds session
// state.
type Registry struct {
	logger   *zap.SugaredLogger
	repo     ports.ConnectionRepository
	trust    ports.TrustStore
	dialer   ports.Dialer
	prompter ports.Prompter
	tempRoot string

	mu        sync.Mutex
	sessions  map[string]*liveSession
	browsers  map[string]*Browser
	lastErrs  map[string]string
	listeners []func(domain.SessionEvent)
}

func NewRegistry(logger *zap.SugaredLogger, repo ports.ConnectionRepository, trust ports.TrustStore, dialer ports.Dialer, prompter ports.Prompter, tempRoot string) *Registry {
	return &Registry{
		logger:   logger,
		repo:     repo,
		trust:    trust,
		dialer:   dialer,
		prompter: prompter,
		tempRoot: tempRoot,
		sessions: make(map[string]*liveSession),
		browsers: make(map[string]*Browser),
		lastErrs: make(map[string]string),
	}
}

// OnChange registers a callback invoked with the alias and its new state
// after every mutating operation. Callbacks run outside the registry
// lock and may call back in.
func (r *Registry) OnChange(fn func(domain.SessionEvent)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

func (r *Registry) notify(alias string, state domain.SessionState) {
	r.mu.Lock()
	listeners := make([]func(domain.SessionEvent), len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.Unlock()
	for _, fn := range listeners {
		fn(domain.SessionEvent{Alias: alias, State: state})
	}
}

// ===== Records =====

// ListConnections returns records matching the query, sorted by folder
// then alias. An empty query returns everything.
func (r *Registry) ListConnections(query string) ([]domain.Connection, error) {
	records, err := r.repo.ListConnections()
	if err != nil {
		return nil, err
	}
	if q := strings.ToLower(strings.TrimSpace(query)); q != "" {
		filtered := records[:0]
		for _, rec := range records {
			if matchesQuery(rec, q) {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}
	sort.SliceStable(records, func(i, j int) bool {
		fi, fj := strings.ToLower(records[i].Folder), strings.ToLower(records[j].Folder)
		if fi != fj {
			return fi < fj
		}
		return strings.ToLower(records[i].Alias) < strings.ToLower(records[j].Alias)
	})
	return records, nil
}

func matchesQuery(rec domain.Connection, q string) bool {
	for _, field := range []string{rec.Alias, rec.Host, rec.User, rec.Folder} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// AddConnection validates and persists a new record. The alias must be
// unused.
func (r *Registry) AddConnection(rec domain.Connection) error {
	if err := validateConnection(rec); err != nil {
		return err
	}
	records, err := r.repo.ListConnections()
	if err != nil {
		return err
	}
	for _, existing := range records {
		if existing.Alias == rec.Alias {
			return fmt.Errorf("alias %q already exists", rec.Alias)
		}
	}
	if err := r.repo.UpsertConnection(rec); err != nil {
		return err
	}
	r.logger.Infow("added connection", "alias", rec.Alias)
	r.notify(rec.Alias, r.State(rec.Alias))
	return nil
}

// UpdateConnection rewrites the record stored under originalAlias.
// Renaming a connected alias is refused; edits to other fields take
// effect on the next connect.
func (r *Registry) UpdateConnection(originalAlias string, rec domain.Connection) error {
	if err := validateConnection(rec); err != nil {
		return err
	}
	records, err := r.repo.ListConnections()
	if err != nil {
		return err
	}
	found := false
	for _, existing := range records {
		if existing.Alias == originalAlias {
			found = true
		}
		if existing.Alias == rec.Alias && rec.Alias != originalAlias {
			return fmt.Errorf("alias %q already exists", rec.Alias)
		}
	}
	if !found {
		return domain.ErrNotFound
	}

	if rec.Alias != originalAlias {
		if r.State(originalAlias) != domain.StateDisconnected {
			return fmt.Errorf("disconnect %q before renaming it", originalAlias)
		}
		if err := r.repo.RemoveConnection(originalAlias); err != nil {
			return err
		}
		r.mu.Lock()
		if br := r.browsers[originalAlias]; br != nil {
			delete(r.browsers, originalAlias)
			defer br.Reset()
		}
		r.mu.Unlock()
	}
	if err := r.repo.UpsertConnection(rec); err != nil {
		return err
	}
	r.logger.Infow("updated connection", "alias", rec.Alias, "was", originalAlias)
	r.notify(rec.Alias, r.State(rec.Alias))
	return nil
}

// Remove deletes the record, tears down any live session, and drops the
// alias's browser with its temp copies.
func (r *Registry) Remove(alias string) error {
	r.mu.Lock()
	ls := r.sessions[alias]
	r.mu.Unlock()
	if ls != nil {
		r.dropSession(ls)
	}

	r.mu.Lock()
	br := r.browsers[alias]
	delete(r.browsers, alias)
	delete(r.lastErrs, alias)
	r.mu.Unlock()
	if br != nil {
		br.Reset()
	}

	if err := r.repo.RemoveConnection(alias); err != nil {
		return err
	}
	r.logger.Infow("removed connection", "alias", alias)
	r.notify(alias, domain.StateDisconnected)
	return nil
}

// MoveToFolder re-persists only the folder tag. A live session, its
// secrets, and its open remote files are untouched.
func (r *Registry) MoveToFolder(alias, folder string) error {
	rec, err := r.record(alias)
	if err != nil {
		return err
	}
	rec.Folder = strings.Trim(folder, "/")
	if err := r.repo.UpsertConnection(rec); err != nil {
		return err
	}
	r.notify(alias, r.State(alias))
	return nil
}

func (r *Registry) record(alias string) (domain.Connection, error) {
	records, err := r.repo.ListConnections()
	if err != nil {
		return domain.Connection{}, err
	}
	for _, rec := range records {
		if rec.Alias == alias {
			return rec, nil
		}
	}
	return domain.Connection{}, domain.ErrNotFound
}

func validateConnection(c domain.Connection) error {
	if strings.TrimSpace(c.Alias) == "" {
		return fmt.Errorf("alias is required")
	}
	if strings.ContainsAny(c.Alias, " \t") {
		return fmt.Errorf("alias cannot contain whitespace")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535")
	}
	return nil
}

// ===== Lifecycle =====

// Connect takes an alias from Disconnected to Connected: resolve
// credentials, settle host-key trust, dial with the trusted fingerprint
// pinned, open the shell. Any failure tears the alias fully back down.
func (r *Registry) Connect(ctx context.Context, alias string) error {
	rec, err := r.record(alias)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if _, active := r.sessions[alias]; active {
		r.mu.Unlock()
		return domain.ErrAlreadyActive
	}
	ls := &liveSession{alias: alias, state: domain.StateConnecting}
	r.sessions[alias] = ls
	r.mu.Unlock()
	r.notify(alias, domain.StateConnecting)

	client, creds, err := r.establish(ctx, rec)
	if err != nil {
		// Record the failure before the teardown notify so listeners
		// refreshing on the Disconnected event already see it.
		r.noteFailure(alias, err)
		r.dropSession(ls)
		r.logger.Warnw("connect failed", "alias", alias, "error", err)
		return err
	}

	terminal, err := client.OpenTerminal()
	if err != nil {
		_ = client.Close()
		r.noteFailure(alias, err)
		r.dropSession(ls)
		r.logger.Warnw("connect failed", "alias", alias, "error", err)
		return err
	}

	r.mu.Lock()
	if r.sessions[alias] != ls {
		// A disconnect or removal raced the dial and won; the alias is no
		// longer claimed by this attempt, so close what the dial produced.
		r.mu.Unlock()
		_ = terminal.Close()
		_ = client.Close()
		creds.Wipe()
		return nil
	}
	ls.client = client
	ls.terminal = terminal
	ls.creds = creds
	ls.state = domain.StateConnected
	ls.connectedAt = time.Now()
	delete(r.lastErrs, alias)
	br := r.browsers[alias]
	r.mu.Unlock()

	if br != nil {
		if transfer, err := client.OpenFiles(); err == nil {
			br.setTransfer(transfer)
		} else {
			r.logger.Warnw("file channel unavailable", "alias", alias, "error", err)
		}
	}

	go r.watchSession(ls)
	r.notify(alias, domain.StateConnected)
	return nil
}

// noteFailure remembers the most recent connect failure for display. The
// note clears on the next successful connect or record removal.
func (r *Registry) noteFailure(alias string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastErrs[alias] = err.Error()
}

// establish resolves credentials and trust, then dials. It runs without
// the registry lock; the Connecting placeholder keeps the alias claimed.
func (r *Registry) establish(ctx context.Context, rec domain.Connection) (ports.Client, domain.Credentials, error) {
	creds := domain.Credentials{User: rec.User}
	if creds.User == "" {
		username, err := r.prompter.AskText("Connect to "+rec.Alias, "Username")
		if err != nil {
			return nil, creds, &domain.AuthError{Alias: rec.Alias, Err: err}
		}
		creds.User = username
	}
	if rec.IdentityFile == "" {
		password, err := r.prompter.AskSecret("Connect to "+rec.Alias, "Password for "+creds.User)
		if err != nil {
			return nil, creds, &domain.AuthError{Alias: rec.Alias, Err: err}
		}
		creds.Password = password
	}

	fingerprint, register, err := r.resolveTrust(ctx, rec)
	if err != nil {
		return nil, creds, err
	}

	client, err := r.dialer.Dial(ctx, rec, creds, fingerprint)
	if err != nil && errors.Is(err, domain.ErrPassphraseRequired) {
		passphrase, perr := r.prompter.AskSecret("Identity file for "+rec.Alias, "Passphrase")
		if perr != nil {
			return nil, creds, &domain.AuthError{Alias: rec.Alias, Err: perr}
		}
		creds.Passphrase = passphrase
		client, err = r.dialer.Dial(ctx, rec, creds, fingerprint)
	}
	if err != nil {
		return nil, creds, err
	}

	if register != nil {
		if err := register(); err != nil {
			r.logger.Warnw("could not store host key", "alias", rec.Alias, "error", err)
		}
	}
	return client, creds, nil
}

// resolveTrust scans the host's current key and reconciles it with the
// store. Unknown hosts proceed and are registered after a successful
// dial. A changed fingerprint needs explicit approval; approval replaces
// the stored key immediately, refusal aborts with the store unchanged.
func (r *Registry) resolveTrust(ctx context.Context, rec domain.Connection) (string, func() error, error) {
	host, port := rec.Addr()
	scanned, err := r.trust.Scan(ctx, host, port)
	if err != nil {
		return "", nil, err
	}
	stored, known, err := r.trust.Lookup(host, port)
	if err != nil {
		return "", nil, err
	}

	switch {
	case !known:
		return scanned.Fingerprint, func() error { return r.trust.Add(scanned) }, nil
	case stored == scanned.Fingerprint:
		return stored, nil, nil
	default:
		message := fmt.Sprintf(
			"Host key for %s has changed.\n\nStored:  %s\nOffered: %s\n\nTrust the new key?",
			host, stored, scanned.Fingerprint,
		)
		approved, err := r.prompter.Confirm("Host key changed", message)
		if err != nil {
			return "", nil, &domain.TrustError{Host: host, Err: err}
		}
		if !approved {
			return "", nil, &domain.TrustError{Host: host, Err: domain.ErrPromptDeclined}
		}
		if err := r.trust.Add(scanned); err != nil {
			return "", nil, err
		}
		r.logger.Infow("replaced host key", "host", host, "fingerprint", scanned.Fingerprint)
		return scanned.Fingerprint, nil, nil
	}
}

// Disconnect is idempotent. It closes the terminal and client, resets
// the file browser, and wipes transient secrets.
func (r *Registry) Disconnect(alias string) {
	r.mu.Lock()
	ls := r.sessions[alias]
	r.mu.Unlock()
	if ls != nil {
		r.dropSession(ls)
	}
}

// dropSession tears down exactly the given session. It is a no-op when
// the alias has since been re-bound to a different session, so late
// watcher goroutines cannot kill a successor.
func (r *Registry) dropSession(ls *liveSession) {
	r.mu.Lock()
	if r.sessions[ls.alias] != ls {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, ls.alias)
	br := r.browsers[ls.alias]
	r.mu.Unlock()

	if ls.terminal != nil {
		if err := ls.terminal.Close(); err != nil {
			r.logger.Warnw("terminal close", "alias", ls.alias, "error", err)
		}
	}
	if ls.client != nil {
		if err := ls.client.Close(); err != nil {
			r.logger.Warnw("client close", "alias", ls.alias, "error", err)
		}
	}
	ls.creds.Wipe()
	if br != nil {
		br.Reset()
	}
	r.logger.Infow("disconnected", "alias", ls.alias)
	r.notify(ls.alias, domain.StateDisconnected)
}

// watchSession waits for the connection or the shell to end and answers
// with the same teardown an explicit disconnect performs.
func (r *Registry) watchSession(ls *liveSession) {
	select {
	case <-ls.client.Done():
	case <-ls.terminal.Done():
	}
	r.dropSession(ls)
}

// ===== Introspection =====

// State reports the alias's current lifecycle state.
func (r *Registry) State(alias string) domain.SessionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ls, ok := r.sessions[alias]; ok {
		return ls.state
	}
	return domain.StateDisconnected
}

// LastError reports the most recent connect failure for the alias, or
// empty when the last attempt succeeded.
func (r *Registry) LastError(alias string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErrs[alias]
}

// Sessions snapshots all live sessions sorted by alias.
func (r *Registry) Sessions() []domain.Session {
	r.mu.Lock()
	out := make([]domain.Session, 0, len(r.sessions))
	for _, ls := range r.sessions {
		out = append(out, domain.Session{Alias: ls.alias, State: ls.state, ConnectedAt: ls.connectedAt})
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out
}

// Terminal returns the alias's live terminal.
func (r *Registry) Terminal(alias string) (ports.Terminal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ls, ok := r.sessions[alias]
	if !ok || ls.state != domain.StateConnected || ls.terminal == nil {
		return nil, domain.ErrNotConnected
	}
	return ls.terminal, nil
}

// Browser returns the alias's file browser, creating it on first use.
// The browser outlives disconnects; its transfer channel is re-attached
// lazily from the live client.
func (r *Registry) Browser(alias string) (*Browser, error) {
	r.mu.Lock()
	br := r.browsers[alias]
	if br == nil {
		br = newBrowser(alias, r.logger, r.tempRoot)
		r.browsers[alias] = br
	}
	ls := r.sessions[alias]
	r.mu.Unlock()

	if ls != nil && ls.state == domain.StateConnected && !br.hasTransfer() {
		transfer, err := ls.client.OpenFiles()
		if err != nil {
			return nil, err
		}
		br.setTransfer(transfer)
	}
	return br, nil
}

// Ping measures TCP reachability of the record's address.
func (r *Registry) Ping(alias string) (time.Duration, error) {
	rec, err := r.record(alias)
	if err != nil {
		return 0, err
	}
	host, port := rec.Addr()
	start := time.Now()
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), 3*time.Second)
	if err != nil {
		return 0, fmt.Errorf("ping %s: %w", alias, err)
	}
	_ = conn.Close()
	return time.Since(start), nil
}
