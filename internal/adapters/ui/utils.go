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

package ui

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/sshdeck/sshdeck/internal/core/domain"
)

// stateBadge renders the colored lifecycle dot for a connection line.
func stateBadge(state domain.SessionState) string {
	switch state {
	case domain.StateConnected:
		return "[#5FFF87]●[-]"
	case domain.StateConnecting:
		return "[#FFD75F]◐[-]"
	default:
		return "[#585858]○[-]"
	}
}

func stateLabel(state domain.SessionState) string {
	switch state {
	case domain.StateConnected:
		return "[#5FFF87]connected[-]"
	case domain.StateConnecting:
		return "[#FFD75F]connecting[-]"
	default:
		return "[#8A8A8A]disconnected[-]"
	}
}

// formatConnectionLine renders one tree leaf: state dot, alias, target.
func formatConnectionLine(c domain.Connection, state domain.SessionState) string {
	host, port := c.Addr()
	target := host
	if c.User != "" {
		target = c.User + "@" + host
	}
	if port != domain.DefaultPort {
		target = fmt.Sprintf("%s:%d", target, port)
	}
	return fmt.Sprintf("%s %s  [#8A8A8A]%s[-]", stateBadge(state), cellPad(c.Alias, 18), target)
}

// cellPad pads a string with spaces so its display width is at least
// `width` cells, keeping wide runes from breaking column alignment.
func cellPad(s string, width int) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

func humanizeSince(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours())/24)
	}
}

func formatSize(size int64) string {
	switch {
	case size < 1024:
		return fmt.Sprintf("%d B", size)
	case size < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(size)/1024)
	case size < 1024*1024*1024:
		return fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
	default:
		return fmt.Sprintf("%.1f GB", float64(size)/(1024*1024*1024))
	}
}

// BuildSSHCommand constructs a ready-to-run ssh command for the record.
// Format: ssh [user@]host [-p PORT if not 22] [-i KEY if provided]
func BuildSSHCommand(c domain.Connection) string {
	parts := []string{"ssh"}
	host, port := c.Addr()
	userHost := host
	if c.User != "" {
		userHost = fmt.Sprintf("%s@%s", c.User, host)
	}
	parts = append(parts, userHost)

	if port != domain.DefaultPort {
		parts = append(parts, "-p", fmt.Sprintf("%d", port))
	}
	if c.IdentityFile != "" {
		parts = append(parts, "-i", quoteIfNeeded(c.IdentityFile))
	}
	return strings.Join(parts, " ")
}

// quoteIfNeeded returns the value quoted if it contains spaces.
func quoteIfNeeded(val string) string {
	if strings.ContainsAny(val, " \t") {
		return fmt.Sprintf("%q", val)
	}
	return val
}

// resolveEditor picks the editor for opening remote file copies: the app
// config override, then $VISUAL, then $EDITOR, then vi.
func resolveEditor(cfg domain.Config) (string, error) {
	candidates := []string{cfg.Editor, os.Getenv("VISUAL"), os.Getenv("EDITOR"), "vi"}
	for _, name := range candidates {
		if name == "" {
			continue
		}
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
		return "", &domain.ToolMissingError{Tool: name}
	}
	return "", &domain.ToolMissingError{Tool: "vi"}
}
