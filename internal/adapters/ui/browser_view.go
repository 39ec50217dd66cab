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
	"path"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/sshdeck/sshdeck/internal/core/domain"
)

type browserMode int

const (
	browserLive browserMode = iota
	browserOffline
)

// BrowserView is the remote file browser page for one alias. In live mode
// it lists the working directory; when the session is gone it falls back to
// the open local copies, which stay editable and saveable after reconnect.
type BrowserView struct {
	*tview.Flex
	pathBar *tview.TextView
	list    *tview.List
	hintBar *tview.TextView

	mode    browserMode
	alias   string
	cwd     string
	entries []domain.FileEntry
	handles []domain.RemoteFileHandle
}

func NewBrowserView() *BrowserView {
	v := &BrowserView{
		Flex:    tview.NewFlex().SetDirection(tview.FlexRow),
		pathBar: tview.NewTextView().SetDynamicColors(true),
		list:    tview.NewList().ShowSecondaryText(false),
		hintBar: tview.NewTextView().SetDynamicColors(true),
	}
	v.build()
	return v
}

func (v *BrowserView) build() {
	v.list.SetBorder(true)
	v.list.SetBorderColor(tcell.Color238)
	v.list.SetHighlightFullLine(true)
	v.list.SetSelectedBackgroundColor(tcell.Color238)

	v.AddItem(v.pathBar, 1, 0, false)
	v.AddItem(v.list, 0, 1, true)
	v.AddItem(v.hintBar, 1, 0, false)
}

// Show renders a live directory listing. A ".." entry leads back to the
// parent unless the directory is a top.
func (v *BrowserView) Show(alias, cwd string, entries []domain.FileEntry) {
	v.mode = browserLive
	v.alias = alias
	v.cwd = cwd
	v.pathBar.SetText(fmt.Sprintf(" [#87AFFF::b]%s[-:-:-]  %s", tview.Escape(alias), tview.Escape(displayPath(cwd))))
	v.hintBar.SetText(" [#8A8A8A]Enter open · n new file · N new folder · g go to path · r refresh · Esc back[-]")

	v.list.Clear()
	v.entries = v.entries[:0]
	if cwd != "." && cwd != "/" {
		v.entries = append(v.entries, domain.FileEntry{Name: "..", Path: path.Dir(cwd), Dir: true})
	}
	v.entries = append(v.entries, entries...)

	for _, e := range v.entries {
		v.list.AddItem(formatFileLine(e), "", 0, nil)
	}
}

// ShowHandles renders the offline fallback: the open local copies for the
// alias. Saving from here retries the upload once the alias reconnects.
func (v *BrowserView) ShowHandles(alias string, handles []domain.RemoteFileHandle) {
	v.mode = browserOffline
	v.alias = alias
	v.pathBar.SetText(fmt.Sprintf(" [#87AFFF::b]%s[-:-:-]  [#FFD75F]not connected, open copies only[-]", tview.Escape(alias)))
	v.hintBar.SetText(" [#8A8A8A]Enter edit local copy · s save to remote · Esc back[-]")

	v.list.Clear()
	v.handles = handles
	if len(handles) == 0 {
		v.list.AddItem("[#8A8A8A]no open files for this connection[-]", "", 0, nil)
		return
	}
	for _, h := range handles {
		v.list.AddItem(fmt.Sprintf("📄 %s  [#8A8A8A]%s[-]", tview.Escape(h.RemotePath), tview.Escape(h.LocalPath)), "", 0, nil)
	}
}

// SelectedEntry returns the entry under the cursor in live mode.
func (v *BrowserView) SelectedEntry() (domain.FileEntry, bool) {
	if v.mode != browserLive {
		return domain.FileEntry{}, false
	}
	idx := v.list.GetCurrentItem()
	if idx < 0 || idx >= len(v.entries) {
		return domain.FileEntry{}, false
	}
	return v.entries[idx], true
}

// SelectedHandle returns the handle under the cursor in offline mode.
func (v *BrowserView) SelectedHandle() (domain.RemoteFileHandle, bool) {
	if v.mode != browserOffline {
		return domain.RemoteFileHandle{}, false
	}
	idx := v.list.GetCurrentItem()
	if idx < 0 || idx >= len(v.handles) {
		return domain.RemoteFileHandle{}, false
	}
	return v.handles[idx], true
}

func formatFileLine(e domain.FileEntry) string {
	if e.Name == ".." {
		return "[#87AFFF]⬆ ..[-]"
	}
	if e.Dir {
		return fmt.Sprintf("[#87AFFF]📁 %s/[-]", tview.Escape(e.Name))
	}
	return fmt.Sprintf("📄 %s [#8A8A8A]%s[-]", cellPad(tview.Escape(e.Name), 36), formatSize(e.Size))
}

// displayPath shows the remote home as a tilde.
func displayPath(cwd string) string {
	if cwd == "." {
		return "~"
	}
	return cwd
}
