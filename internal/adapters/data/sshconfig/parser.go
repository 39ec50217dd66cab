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
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/sshdeck/sshdeck/internal/core/domain"
)

const (
	keyHost         = "host"
	keyMatch        = "match"
	keyHostName     = "hostname"
	keyUser         = "user"
	keyPort         = "port"
	keyIdentityFile = "identityfile"

	// folderMarker introduces the private folder-tag comment. The full line
	// is "# sshdeck:folder <path>" and sits directly above the block it
	// annotates. Tools unaware of it see an ordinary comment.
	folderMarker = "# sshdeck:folder"
)

// bodyEntry is one line inside a block. key/value are set for key-value
// lines (key lowercased); comments keep only raw.
type bodyEntry struct {
	raw   string
	key   string
	value string
}

// block is one Host or Match block. A block is managed (backed by a
// connection record) when it is a Host block with a single literal pattern.
type block struct {
	headerKey string
	patterns  []string
	folder    string
	body      []bodyEntry
}

// segment is either a run of free-standing lines (top-level comments,
// directives, blanks) or a block.
type segment struct {
	lines []string
	block *block
}

// document is the parsed config file, in file order.
type document struct {
	segments []segment
}

// parse reads the whole config into a document. Key-value lines outside any
// block are kept verbatim and never treated as fatal.
func parse(r io.Reader) (*document, error) {
	doc := &document{}
	var loose []string
	var cur *block
	pendingFolder := ""
	pendingRaw := ""

	flushLoose := func() {
		if len(loose) > 0 {
			doc.segments = append(doc.segments, segment{lines: loose})
			loose = nil
		}
	}
	flushPending := func() {
		if pendingRaw != "" {
			if cur != nil {
				cur.body = append(cur.body, bodyEntry{raw: pendingRaw})
			} else {
				loose = append(loose, pendingRaw)
			}
			pendingFolder = ""
			pendingRaw = ""
		}
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		raw := scanner.Text()
		trimmed := strings.TrimSpace(raw)

		if folder, ok := parseFolderMarker(trimmed); ok {
			// A marker binds to the Host line that directly follows it.
			// Anything else demotes it to an ordinary comment.
			flushPending()
			pendingFolder = folder
			pendingRaw = trimmed
			continue
		}

		key, value := splitKeyValue(trimmed)
		if key == keyHost || key == keyMatch {
			if cur != nil {
				doc.segments = append(doc.segments, segment{block: cur})
			}
			flushLoose()
			cur = &block{
				headerKey: key,
				patterns:  strings.Fields(value),
				folder:    pendingFolder,
			}
			pendingFolder = ""
			pendingRaw = ""
			continue
		}

		flushPending()
		if cur != nil {
			cur.body = append(cur.body, bodyEntry{raw: trimmed, key: key, value: value})
		} else {
			loose = append(loose, raw)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	flushPending()
	if cur != nil {
		doc.segments = append(doc.segments, segment{block: cur})
	}
	flushLoose()
	return doc, nil
}

// parseFolderMarker extracts the tag from a folder comment line.
func parseFolderMarker(trimmed string) (string, bool) {
	if !strings.HasPrefix(trimmed, folderMarker) {
		return "", false
	}
	rest := trimmed[len(folderMarker):]
	if rest != "" && !strings.HasPrefix(rest, " ") && !strings.HasPrefix(rest, "\t") {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

// splitKeyValue splits a config line on the first whitespace or '=' so
// interior spacing of the value survives. Comments and blanks yield "".
func splitKeyValue(trimmed string) (string, string) {
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", ""
	}
	idx := strings.IndexAny(trimmed, " \t=")
	if idx < 0 {
		return strings.ToLower(trimmed), ""
	}
	key := strings.ToLower(trimmed[:idx])
	value := strings.TrimSpace(strings.TrimLeft(trimmed[idx:], " \t="))
	return key, value
}

// managed reports whether the block is backed by a connection record: a
// Host block with exactly one literal, non-negated pattern.
func (b *block) managed() bool {
	return b.headerKey == keyHost && len(b.patterns) == 1 && isLiteralPattern(b.patterns[0])
}

func isLiteralPattern(p string) bool {
	return p != "" && !strings.HasPrefix(p, "!") && !strings.ContainsAny(p, "*?")
}

// connection maps a managed block to its record. Recognized keys fill the
// named fields (last value wins); everything else lands in Extra verbatim.
func (b *block) connection() (domain.Connection, bool) {
	if !b.managed() {
		return domain.Connection{}, false
	}
	conn := domain.Connection{
		Alias:  b.patterns[0],
		Port:   domain.DefaultPort,
		Folder: b.folder,
	}
	for _, entry := range b.body {
		switch entry.key {
		case "":
			// comment or blank, kept only for unmanaged rewrites
		case keyHostName:
			conn.Host = entry.value
		case keyUser:
			conn.User = entry.value
		case keyPort:
			if port, err := strconv.Atoi(entry.value); err == nil {
				conn.Port = port
			}
		case keyIdentityFile:
			conn.IdentityFile = entry.value
		default:
			conn.Extra = append(conn.Extra, domain.Option{
				Key:   originalKey(entry.raw),
				Value: entry.value,
			})
		}
	}
	return conn, true
}

// originalKey returns the first token of a key-value line with its casing
// intact.
func originalKey(raw string) string {
	idx := strings.IndexAny(raw, " \t=")
	if idx < 0 {
		return raw
	}
	return raw[:idx]
}

// connections lists the records of all managed blocks in file order.
func (d *document) connections() []domain.Connection {
	conns := make([]domain.Connection, 0)
	for _, seg := range d.segments {
		if seg.block == nil {
			continue
		}
		if conn, ok := seg.block.connection(); ok {
			conns = append(conns, conn)
		}
	}
	return conns
}

// findBlock returns the segment index of the managed block for alias.
// Alias matching is exact-string and case-sensitive.
func (d *document) findBlock(alias string) int {
	for i, seg := range d.segments {
		if seg.block != nil && seg.block.managed() && seg.block.patterns[0] == alias {
			return i
		}
	}
	return -1
}

// upsert replaces the alias's block in place, or appends a new one.
func (d *document) upsert(conn domain.Connection) {
	nb := blockFromConnection(conn)
	if i := d.findBlock(conn.Alias); i >= 0 {
		d.segments[i] = segment{block: nb}
		return
	}
	d.segments = append(d.segments, segment{block: nb})
}

// remove deletes the alias's block together with its folder comment.
// Removing an absent alias leaves the document untouched.
func (d *document) remove(alias string) bool {
	i := d.findBlock(alias)
	if i < 0 {
		return false
	}
	d.segments = append(d.segments[:i], d.segments[i+1:]...)
	return true
}

// blockFromConnection builds a canonical managed block.
func blockFromConnection(conn domain.Connection) *block {
	b := &block{
		headerKey: keyHost,
		patterns:  []string{conn.Alias},
		folder:    conn.Folder,
	}
	if conn.Host != "" {
		b.body = append(b.body, bodyEntry{key: keyHostName, value: conn.Host})
	}
	if conn.User != "" {
		b.body = append(b.body, bodyEntry{key: keyUser, value: conn.User})
	}
	if conn.Port != 0 && conn.Port != domain.DefaultPort {
		b.body = append(b.body, bodyEntry{key: keyPort, value: strconv.Itoa(conn.Port)})
	}
	if conn.IdentityFile != "" {
		b.body = append(b.body, bodyEntry{key: keyIdentityFile, value: conn.IdentityFile})
	}
	for _, opt := range conn.Extra {
		b.body = append(b.body, bodyEntry{
			raw:   opt.Key + " " + opt.Value,
			key:   strings.ToLower(opt.Key),
			value: opt.Value,
		})
	}
	return b
}
