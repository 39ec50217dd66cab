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

// BroadcastForm sends one command line to a chosen subset of the connected
// sessions. All targets start checked.
type BroadcastForm struct {
	*tview.Form
	command *tview.InputField
	checks  []*tview.Checkbox
	targets []domain.Session

	onSend   func(command string, aliases []string)
	onCancel func()
}

func NewBroadcastForm(targets []domain.Session) *BroadcastForm {
	f := &BroadcastForm{
		Form:     tview.NewForm(),
		targets:  targets,
		onSend:   func(string, []string) {},
		onCancel: func() {},
	}
	f.build()
	return f
}

func (f *BroadcastForm) build() {
	f.command = tview.NewInputField().SetLabel("Command").SetFieldWidth(48)
	f.AddFormItem(f.command)

	for _, target := range f.targets {
		check := tview.NewCheckbox().SetLabel(target.Alias).SetChecked(true)
		f.checks = append(f.checks, check)
		f.AddFormItem(check)
	}

	f.AddButton("Send", f.send)
	f.AddButton("Cancel", func() { f.onCancel() })
	f.SetCancelFunc(func() { f.onCancel() })

	f.SetBorder(true)
	f.SetTitle(" Broadcast Command ")
	f.SetBorderColor(tcell.Color238)
	f.SetTitleColor(tcell.Color250)
	f.SetFieldBackgroundColor(tcell.Color238)
	f.SetButtonBackgroundColor(tcell.Color238)
}

func (f *BroadcastForm) send() {
	command := strings.TrimSpace(f.command.GetText())
	if command == "" {
		f.SetTitle(" [#FF5F5F]command must not be empty[-] ")
		return
	}

	var aliases []string
	for i, check := range f.checks {
		if check.IsChecked() {
			aliases = append(aliases, f.targets[i].Alias)
		}
	}
	if len(aliases) == 0 {
		f.SetTitle(" [#FF5F5F]pick at least one target[-] ")
		return
	}

	f.onSend(command, aliases)
}

func (f *BroadcastForm) OnSend(fn func(command string, aliases []string)) *BroadcastForm {
	f.onSend = fn
	return f
}

func (f *BroadcastForm) OnCancel(fn func()) *BroadcastForm {
	f.onCancel = fn
	return f
}

// formatBroadcastResults renders the per-target outcome list for the
// results modal.
func formatBroadcastResults(results []domain.BroadcastResult) string {
	var sb strings.Builder
	for _, res := range results {
		if res.Err != nil {
			fmt.Fprintf(&sb, "✗ %s: %v\n", res.Alias, res.Err)
			continue
		}
		fmt.Fprintf(&sb, "✓ %s\n", res.Alias)
	}
	return strings.TrimRight(sb.String(), "\n")
}
