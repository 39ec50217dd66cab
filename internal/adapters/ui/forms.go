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
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/sshdeck/sshdeck/internal/core/domain"
)

type formMode int

const (
	formModeAdd formMode = iota
	formModeEdit
)

// ConnectionForm edits one connection record. In edit mode the passthrough
// directives of the original record are carried over untouched.
type ConnectionForm struct {
	*tview.Form
	mode     formMode
	original domain.Connection

	alias    *tview.InputField
	host     *tview.InputField
	user     *tview.InputField
	port     *tview.InputField
	identity *tview.InputField
	folder   *tview.InputField

	onSave   func(rec domain.Connection, originalAlias string) error
	onCancel func()
}

func NewConnectionForm(mode formMode, original domain.Connection) *ConnectionForm {
	f := &ConnectionForm{
		Form:     tview.NewForm(),
		mode:     mode,
		original: original,
		onSave:   func(domain.Connection, string) error { return nil },
		onCancel: func() {},
	}
	f.build()
	return f
}

func (f *ConnectionForm) build() {
	portText := ""
	if f.original.Port != 0 {
		portText = strconv.Itoa(f.original.Port)
	}

	f.alias = tview.NewInputField().SetLabel("Alias").SetText(f.original.Alias).SetFieldWidth(30)
	f.host = tview.NewInputField().SetLabel("Host").SetText(f.original.Host).SetFieldWidth(30)
	f.user = tview.NewInputField().SetLabel("User").SetText(f.original.User).SetFieldWidth(30)
	f.port = tview.NewInputField().SetLabel("Port").SetText(portText).SetFieldWidth(6).
		SetAcceptanceFunc(tview.InputFieldInteger)
	f.identity = tview.NewInputField().SetLabel("Identity file").SetText(f.original.IdentityFile).SetFieldWidth(40)
	f.folder = tview.NewInputField().SetLabel("Folder").SetText(f.original.Folder).SetFieldWidth(30)

	f.AddFormItem(f.alias)
	f.AddFormItem(f.host)
	f.AddFormItem(f.user)
	f.AddFormItem(f.port)
	f.AddFormItem(f.identity)
	f.AddFormItem(f.folder)
	if n := len(f.original.Extra); n > 0 {
		f.AddTextView("Options", fmt.Sprintf("%d passthrough directive(s) kept as-is", n), 40, 1, true, false)
	}

	f.AddButton("Save", f.save)
	f.AddButton("Cancel", func() { f.onCancel() })
	f.SetCancelFunc(func() { f.onCancel() })

	f.SetBorder(true)
	f.SetTitle(f.title())
	f.SetBorderColor(tcell.Color238)
	f.SetTitleColor(tcell.Color250)
	f.SetFieldBackgroundColor(tcell.Color238)
	f.SetButtonBackgroundColor(tcell.Color238)
}

func (f *ConnectionForm) title() string {
	if f.mode == formModeEdit {
		return " Edit Connection "
	}
	return " Add Connection "
}

func (f *ConnectionForm) save() {
	rec, err := f.record()
	if err == nil {
		err = f.onSave(rec, f.original.Alias)
	}
	if err != nil {
		// Keep the form open so the input survives the correction.
		f.SetTitle(fmt.Sprintf(" [#FF5F5F]%s[-] ", tview.Escape(err.Error())))
	}
}

// record collects the field values into a connection, preserving the
// original's passthrough directives.
func (f *ConnectionForm) record() (domain.Connection, error) {
	port := 0
	if text := strings.TrimSpace(f.port.GetText()); text != "" {
		parsed, err := strconv.Atoi(text)
		if err != nil {
			return domain.Connection{}, fmt.Errorf("port must be a number")
		}
		port = parsed
	}

	return domain.Connection{
		Alias:        strings.TrimSpace(f.alias.GetText()),
		Host:         strings.TrimSpace(f.host.GetText()),
		User:         strings.TrimSpace(f.user.GetText()),
		Port:         port,
		IdentityFile: strings.TrimSpace(f.identity.GetText()),
		Folder:       strings.Trim(strings.TrimSpace(f.folder.GetText()), "/"),
		Extra:        f.original.Extra,
	}, nil
}

// OnSave installs the save callback. A non-nil return keeps the form open
// with the error in the title.
func (f *ConnectionForm) OnSave(fn func(rec domain.Connection, originalAlias string) error) *ConnectionForm {
	f.onSave = fn
	return f
}

func (f *ConnectionForm) OnCancel(fn func()) *ConnectionForm {
	f.onCancel = fn
	return f
}
