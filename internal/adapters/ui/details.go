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
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/sshdeck/sshdeck/internal/core/domain"
)

// ConnectionDetails renders the right-hand pane for the selected record.
type ConnectionDetails struct {
	*tview.TextView
}

func NewConnectionDetails() *ConnectionDetails {
	d := &ConnectionDetails{TextView: tview.NewTextView()}
	d.build()
	return d
}

func (d *ConnectionDetails) build() {
	d.SetDynamicColors(true)
	d.SetWrap(true)
	d.SetBorder(true)
	d.SetTitle(" Details ")
	d.SetBorderColor(tcell.Color238)
	d.SetTitleColor(tcell.Color250)
}

// Update redraws the pane for one record and its session snapshot.
// lastErr is the most recent connect failure, empty when none.
func (d *ConnectionDetails) Update(rec domain.Connection, sess domain.Session, lastErr string) {
	host, port := rec.Addr()

	var sb strings.Builder
	fmt.Fprintf(&sb, "[::b]%s[-]\n\n", tview.Escape(rec.Alias))
	fmt.Fprintf(&sb, "[white]Host:[-]      %s\n", orDash(host))
	fmt.Fprintf(&sb, "[white]User:[-]      %s\n", orDash(rec.User))
	fmt.Fprintf(&sb, "[white]Port:[-]      %d\n", port)
	fmt.Fprintf(&sb, "[white]Identity:[-]  %s\n", orDash(rec.IdentityFile))
	fmt.Fprintf(&sb, "[white]Folder:[-]    %s\n", orDash(rec.Folder))
	if n := len(rec.Extra); n > 0 {
		fmt.Fprintf(&sb, "[white]Options:[-]   %d passthrough directive(s)\n", n)
	}

	fmt.Fprintf(&sb, "\n[white]State:[-]     %s %s\n", stateBadge(sess.State), stateLabel(sess.State))
	if sess.State == domain.StateConnected {
		fmt.Fprintf(&sb, "[white]Up:[-]        %s\n", humanizeSince(sess.ConnectedAt))
	}
	if lastErr != "" && sess.State == domain.StateDisconnected {
		fmt.Fprintf(&sb, "[#FF5F5F]Last error:[-] %s\n", tview.Escape(lastErr))
	}

	fmt.Fprintf(&sb, "\n[white]SSH command:[-]\n  %s\n", tview.Escape(BuildSSHCommand(rec)))

	sb.WriteString("\n[#8A8A8A]")
	switch sess.State {
	case domain.StateConnected:
		sb.WriteString("Enter attach · x disconnect · f files · s broadcast")
	case domain.StateConnecting:
		sb.WriteString("connecting, prompts may appear")
	default:
		sb.WriteString("Enter connect · e edit · d delete · m move")
	}
	sb.WriteString("[-]")

	d.SetText(sb.String())
	d.ScrollToBeginning()
}

// ShowEmpty renders the pane when no record is selected.
func (d *ConnectionDetails) ShowEmpty() {
	d.SetText("\n[#8A8A8A]No connection selected.\n\nPress a to add a connection.[-]")
}

func orDash(val string) string {
	if val == "" {
		return "-"
	}
	return tview.Escape(val)
}
