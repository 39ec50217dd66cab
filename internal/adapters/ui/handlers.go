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
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/sshdeck/sshdeck/internal/core/domain"
)

// =============================================================================
// Event Handlers (handle user input/events)
// =============================================================================

func (t *tui) handleGlobalKeys(event *tcell.EventKey) *tcell.EventKey {
	switch event.Rune() {
	case 'q':
		t.handleQuit()
		return nil
	case '/':
		t.handleSearchToggle()
		return nil
	case 'a':
		t.handleConnectionAdd()
		return nil
	case 'e':
		t.handleConnectionEdit()
		return nil
	case 'd':
		t.handleConnectionDelete()
		return nil
	case 'm':
		t.handleMoveToFolder()
		return nil
	case 'x':
		t.handleDisconnect()
		return nil
	case 'f':
		t.handleFilesBrowse()
		return nil
	case 's':
		t.handleBroadcast()
		return nil
	case 'c':
		t.handleCopyCommand()
		return nil
	case 'g':
		t.handlePing()
		return nil
	case '?':
		t.handleHelpShow()
		return nil
	}

	if event.Key() == tcell.KeyEnter {
		t.handleConnectOrAttach()
		return nil
	}

	return event
}

func (t *tui) handleQuit() {
	live := 0
	for _, sess := range t.registry.Sessions() {
		if sess.State == domain.StateConnected {
			live++
		}
	}
	if live == 0 {
		t.app.Stop()
		return
	}
	t.showQuitConfirmModal(live)
}

func (t *tui) handleConnectOrAttach() {
	node := t.tree.GetCurrentNode()
	if node == nil {
		return
	}
	rec, ok := node.GetReference().(domain.Connection)
	if !ok {
		// Folder node: Enter toggles it.
		node.SetExpanded(!node.IsExpanded())
		return
	}

	switch t.registry.State(rec.Alias) {
	case domain.StateConnected:
		t.attach(rec.Alias)
	case domain.StateConnecting:
		t.showStatusTemp("Already connecting: " + rec.Alias)
	default:
		t.connectAsync(rec.Alias)
	}
}

func (t *tui) handleDisconnect() {
	rec, ok := t.tree.Selected()
	if !ok {
		return
	}
	if t.registry.State(rec.Alias) == domain.StateDisconnected {
		return
	}
	t.registry.Disconnect(rec.Alias)
	t.showStatusTemp("Disconnected: " + rec.Alias)
}

func (t *tui) handleCopyCommand() {
	if rec, ok := t.tree.Selected(); ok {
		cmd := BuildSSHCommand(rec)
		if err := clipboard.WriteAll(cmd); err == nil {
			t.showStatusTemp("Copied: " + cmd)
		} else {
			t.showStatusTemp("Failed to copy to clipboard")
		}
	}
}

func (t *tui) handlePing() {
	rec, ok := t.tree.Selected()
	if !ok {
		return
	}
	t.showStatusTemp("Pinging " + rec.Alias + "...")
	go func() {
		latency, err := t.registry.Ping(rec.Alias)
		t.app.QueueUpdateDraw(func() {
			if err != nil {
				t.showStatusTemp(fmt.Sprintf("Ping %s failed: %v", rec.Alias, err))
				return
			}
			t.showStatusTemp(fmt.Sprintf("Ping %s: %s", rec.Alias, latency.Round(time.Millisecond)))
		})
	}()
}

func (t *tui) handleSearchInput(query string) {
	t.refreshConnections()
}

func (t *tui) handleSearchDone(key tcell.Key) {
	switch key {
	case tcell.KeyEscape:
		t.searchBar.Reset()
		t.hideSearchBar()
		t.refreshConnections()
	case tcell.KeyEnter:
		// Keep the filter, move to the results.
		t.app.SetFocus(t.tree)
	}
}

func (t *tui) handleSearchToggle() {
	t.showSearchBar()
}

func (t *tui) handleConnectionAdd() {
	form := NewConnectionForm(formModeAdd, domain.Connection{}).
		OnSave(t.handleConnectionSave).
		OnCancel(t.handleFormCancel)
	t.app.SetRoot(form, true)
}

func (t *tui) handleConnectionEdit() {
	if rec, ok := t.tree.Selected(); ok {
		form := NewConnectionForm(formModeEdit, rec).
			OnSave(t.handleConnectionSave).
			OnCancel(t.handleFormCancel)
		t.app.SetRoot(form, true)
	}
}

// handleConnectionSave persists a form result. A non-nil return keeps the
// form open with the error shown.
func (t *tui) handleConnectionSave(rec domain.Connection, originalAlias string) error {
	var err error
	if originalAlias != "" {
		err = t.registry.UpdateConnection(originalAlias, rec)
	} else {
		err = t.registry.AddConnection(rec)
	}
	if err != nil {
		return err
	}

	t.refreshConnections()
	t.returnToMain()
	t.showStatusTemp("Saved: " + rec.Alias)
	return nil
}

func (t *tui) handleConnectionDelete() {
	if rec, ok := t.tree.Selected(); ok {
		t.showDeleteConfirmModal(rec)
	}
}

func (t *tui) handleMoveToFolder() {
	if rec, ok := t.tree.Selected(); ok {
		t.showMoveToFolderForm(rec)
	}
}

func (t *tui) handleBroadcast() {
	targets := t.broadcaster.Targets()
	if len(targets) == 0 {
		t.showStatusTemp("No connected sessions to broadcast to")
		return
	}
	form := NewBroadcastForm(targets).
		OnSend(func(command string, aliases []string) {
			results := t.broadcaster.Send(command, aliases)
			t.showBroadcastResults(command, results)
		}).
		OnCancel(t.handleFormCancel)
	t.app.SetRoot(centered(form, 64, len(targets)*2+9), true)
}

func (t *tui) handleFilesBrowse() {
	if rec, ok := t.tree.Selected(); ok {
		t.openBrowser(rec.Alias, ".")
	}
}

func (t *tui) handleFormCancel() {
	t.returnToMain()
}

func (t *tui) handleHelpShow() {
	t.showHelpModal()
}

func (t *tui) handleModalClose() {
	t.returnToMain()
}

// =============================================================================
// Browser Handlers (file browser page input)
// =============================================================================

func (t *tui) handleBrowserKeys(event *tcell.EventKey) *tcell.EventKey {
	switch event.Rune() {
	case 'n':
		t.handleFileCreate()
		return nil
	case 'N':
		t.handleFolderCreate()
		return nil
	case 'g':
		t.handleBrowserGoto()
		return nil
	case 'r':
		t.returnToBrowser()
		return nil
	case 's':
		t.handleHandleSave()
		return nil
	case 'q':
		t.returnToMain()
		return nil
	}

	switch event.Key() {
	case tcell.KeyEscape:
		t.returnToMain()
		return nil
	case tcell.KeyEnter:
		t.handleBrowserOpen()
		return nil
	}

	return event
}

func (t *tui) handleBrowserOpen() {
	if t.browserView.mode == browserOffline {
		if handle, ok := t.browserView.SelectedHandle(); ok {
			t.editLocalCopy(handle)
		}
		return
	}

	entry, ok := t.browserView.SelectedEntry()
	if !ok {
		return
	}
	if entry.Dir {
		t.openBrowser(t.browserView.alias, entry.Path)
		return
	}
	t.editRemoteFile(t.browserView.alias, entry.Path)
}

// handleHandleSave retries the upload of the selected local copy from the
// offline handle list.
func (t *tui) handleHandleSave() {
	handle, ok := t.browserView.SelectedHandle()
	if !ok {
		return
	}
	browser, err := t.registry.Browser(handle.Alias)
	if err != nil {
		return
	}
	if err := browser.Save(handle.LocalPath); err != nil {
		t.showBrowserModal(fmt.Sprintf("Save failed, local copy kept:\n\n%v", err))
		return
	}
	t.returnToBrowser()
}

func (t *tui) handleFileCreate() {
	if t.browserView.mode != browserLive {
		return
	}
	alias, cwd := t.browserView.alias, t.browserView.cwd

	form := tview.NewForm()
	form.SetBorder(true)
	form.SetTitle(fmt.Sprintf(" New file in %s ", displayPath(cwd)))
	form.AddInputField("Name:", "", 40, nil, nil)
	form.AddButton("Create", func() {
		name := strings.TrimSpace(form.GetFormItem(0).(*tview.InputField).GetText())
		if name == "" {
			t.returnToBrowser()
			return
		}
		browser, err := t.registry.Browser(alias)
		if err != nil {
			t.returnToBrowser()
			return
		}
		handle, err := browser.CreateFile(cwd, name)
		if err != nil {
			t.showBrowserModal(fmt.Sprintf("Create %s failed:\n\n%v", name, err))
			return
		}
		t.editLocalCopy(handle)
	})
	form.AddButton("Cancel", func() { t.returnToBrowser() })
	form.SetCancelFunc(func() { t.returnToBrowser() })

	t.app.SetRoot(centered(form, 56, 7), true)
}

func (t *tui) handleFolderCreate() {
	if t.browserView.mode != browserLive {
		return
	}
	alias, cwd := t.browserView.alias, t.browserView.cwd

	form := tview.NewForm()
	form.SetBorder(true)
	form.SetTitle(fmt.Sprintf(" New folder in %s ", displayPath(cwd)))
	form.AddInputField("Name:", "", 40, nil, nil)
	form.AddButton("Create", func() {
		name := strings.TrimSpace(form.GetFormItem(0).(*tview.InputField).GetText())
		if name == "" {
			t.returnToBrowser()
			return
		}
		browser, err := t.registry.Browser(alias)
		if err != nil {
			t.returnToBrowser()
			return
		}
		if err := browser.CreateFolder(cwd, name); err != nil {
			t.showBrowserModal(fmt.Sprintf("Create %s failed:\n\n%v", name, err))
			return
		}
		t.returnToBrowser()
	})
	form.AddButton("Cancel", func() { t.returnToBrowser() })
	form.SetCancelFunc(func() { t.returnToBrowser() })

	t.app.SetRoot(centered(form, 56, 7), true)
}

func (t *tui) handleBrowserGoto() {
	if t.browserView.mode != browserLive {
		return
	}
	alias := t.browserView.alias

	form := tview.NewForm()
	form.SetBorder(true)
	form.SetTitle(" Go to path ")
	form.AddInputField("Path:", "", 40, nil, nil)
	form.AddButton("Go", func() {
		target := strings.TrimSpace(form.GetFormItem(0).(*tview.InputField).GetText())
		if target == "" {
			t.returnToBrowser()
			return
		}
		t.openBrowser(alias, path.Clean(target))
	})
	form.AddButton("Cancel", func() { t.returnToBrowser() })
	form.SetCancelFunc(func() { t.returnToBrowser() })

	t.app.SetRoot(centered(form, 56, 7), true)
}

// =============================================================================
// UI Display Functions (show UI elements/modals)
// =============================================================================

func (t *tui) showSearchBar() {
	t.left.Clear()
	t.left.AddItem(t.searchBar, 3, 0, true)
	t.left.AddItem(t.tree, 0, 1, false)
	t.app.SetFocus(t.searchBar)
	t.searchVisible = true
}

func (t *tui) showDeleteConfirmModal(rec domain.Connection) {
	host, port := rec.Addr()
	msg := fmt.Sprintf("Delete connection %s (%s@%s:%d)?\n\nThe record leaves the config file; a live session is closed first.",
		rec.Alias, rec.User, host, port)

	modal := tview.NewModal().
		SetText(msg).
		AddButtons([]string{"Cancel", "Delete"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			if buttonIndex == 1 {
				if err := t.registry.Remove(rec.Alias); err != nil {
					t.showStatusTemp(fmt.Sprintf("Delete failed: %v", err))
				}
				t.refreshConnections()
			}
			t.handleModalClose()
		})

	t.app.SetRoot(modal, true)
}

func (t *tui) showQuitConfirmModal(live int) {
	msg := fmt.Sprintf("%d live session(s) will be disconnected.\n\nQuit anyway?", live)

	modal := tview.NewModal().
		SetText(msg).
		AddButtons([]string{"Cancel", "Quit"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			if buttonLabel == "Quit" {
				for _, sess := range t.registry.Sessions() {
					t.registry.Disconnect(sess.Alias)
				}
				t.app.Stop()
				return
			}
			t.handleModalClose()
		})

	t.app.SetRoot(modal, true)
}

func (t *tui) showMoveToFolderForm(rec domain.Connection) {
	form := tview.NewForm()
	form.SetBorder(true).
		SetTitle(fmt.Sprintf("Move %s to folder", rec.Alias)).
		SetTitleAlign(tview.AlignLeft)

	form.AddInputField("Folder (slashes nest):", rec.Folder, 40, nil, nil)

	form.AddButton("Move", func() {
		folder := strings.TrimSpace(form.GetFormItem(0).(*tview.InputField).GetText())
		if err := t.registry.MoveToFolder(rec.Alias, folder); err != nil {
			t.showStatusTemp(fmt.Sprintf("Move failed: %v", err))
			t.returnToMain()
			return
		}
		t.refreshConnections()
		t.returnToMain()
		if folder == "" {
			t.showStatusTemp("Moved to top level")
		} else {
			t.showStatusTemp("Moved to " + folder)
		}
	})
	form.AddButton("Cancel", func() { t.returnToMain() })
	form.SetCancelFunc(func() { t.returnToMain() })

	t.app.SetRoot(centered(form, 60, 7), true)
	t.app.SetFocus(form)
}

func (t *tui) showConnectErrorModal(alias string, err error) {
	if errors.Is(err, domain.ErrPromptDeclined) {
		t.showStatusTemp("Connect canceled")
		return
	}

	modal := tview.NewModal().
		SetText(fmt.Sprintf("Connect to %s failed:\n\n%v", alias, err)).
		AddButtons([]string{"Close"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) { t.handleModalClose() })

	t.app.SetRoot(modal, true)
}

func (t *tui) showBroadcastResults(command string, results []domain.BroadcastResult) {
	modal := tview.NewModal().
		SetText(fmt.Sprintf("Sent %q to %d session(s):\n\n%s", command, len(results), formatBroadcastResults(results))).
		AddButtons([]string{"Close"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) { t.handleModalClose() })

	t.app.SetRoot(modal, true)
}

// showBrowserModal shows an error on top of the browser page and returns
// there on close.
func (t *tui) showBrowserModal(msg string) {
	modal := tview.NewModal().
		SetText(msg).
		AddButtons([]string{"Close"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) { t.returnToBrowser() })

	t.app.SetRoot(modal, true)
}

func (t *tui) showSaveModal(handle domain.RemoteFileHandle) {
	modal := tview.NewModal().
		SetText(fmt.Sprintf("Save %s back to %s?", path.Base(handle.RemotePath), handle.Alias)).
		AddButtons([]string{"Discard", "Keep copy", "Save"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			browser, err := t.registry.Browser(handle.Alias)
			if err != nil {
				t.returnToBrowser()
				return
			}
			switch buttonLabel {
			case "Save":
				if err := browser.Save(handle.LocalPath); err != nil {
					t.showBrowserModal(fmt.Sprintf("Save failed, local copy kept:\n\n%v", err))
					return
				}
			case "Discard":
				browser.CloseFile(handle.LocalPath)
			}
			t.returnToBrowser()
		})

	t.app.SetRoot(modal, true)
}

func (t *tui) showHelpModal() {
	text := "Keyboard shortcuts:\n\n" +
		"  ↑/↓            Navigate\n" +
		"  Enter          Connect, or attach when live\n" +
		"  Ctrl-]         Detach from an attached shell\n" +
		"  x              Disconnect\n" +
		"  f              Browse remote files\n" +
		"  s              Broadcast a command\n" +
		"  c              Copy SSH command\n" +
		"  a              Add connection\n" +
		"  e              Edit connection\n" +
		"  d              Delete connection\n" +
		"  m              Move to folder\n" +
		"  g              Ping host\n" +
		"  /              Focus search\n" +
		"  q              Quit\n" +
		"  ?              Help\n\n" +
		fmt.Sprintf("sshdeck %s (%s)", t.version, t.gitCommit)

	modal := tview.NewModal().
		SetText(text).
		AddButtons([]string{"Close"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			t.handleModalClose()
		})

	t.app.SetRoot(modal, true)
}

// =============================================================================
// UI State Management (hide UI elements)
// =============================================================================

func (t *tui) hideSearchBar() {
	t.left.Clear()
	t.left.AddItem(t.hintBar, 1, 0, false)
	t.left.AddItem(t.tree, 0, 1, true)
	t.app.SetFocus(t.tree)
	t.searchVisible = false
}

// =============================================================================
// Internal Operations (perform actual work)
// =============================================================================

func (t *tui) refreshConnections() {
	query := ""
	if t.searchVisible {
		query = t.searchBar.GetText()
	}
	records, err := t.registry.ListConnections(query)
	if err != nil {
		t.showStatusTemp(fmt.Sprintf("Load failed: %v", err))
	}
	t.tree.Update(records, t.registry.State)
	t.refreshDetails()
}

func (t *tui) refreshDetails() {
	rec, ok := t.tree.Selected()
	if !ok {
		t.details.ShowEmpty()
		return
	}
	t.details.Update(rec, t.sessionFor(rec.Alias), t.registry.LastError(rec.Alias))
}

func (t *tui) sessionFor(alias string) domain.Session {
	for _, sess := range t.registry.Sessions() {
		if sess.Alias == alias {
			return sess
		}
	}
	return domain.Session{Alias: alias, State: domain.StateDisconnected}
}

// connectAsync runs the connect flow off the event loop so credential and
// trust prompts can take over the screen while it waits.
func (t *tui) connectAsync(alias string) {
	t.showStatusTemp("Connecting to " + alias + "...")
	go func() {
		err := t.registry.Connect(context.Background(), alias)
		t.app.QueueUpdateDraw(func() {
			if err != nil {
				t.showConnectErrorModal(alias, err)
				return
			}
			if t.registry.State(alias) != domain.StateConnected {
				// The session was torn down before the connect finished.
				t.showStatusTemp("Session ended: " + alias)
				return
			}
			t.showStatusTemp("Connected: " + alias + " (Enter to attach)")
		})
	}()
}

// attach suspends the interface and bridges the real terminal to the remote
// shell until the user detaches or the shell exits.
func (t *tui) attach(alias string) {
	terminal, err := t.registry.Terminal(alias)
	if err != nil {
		t.showStatusTemp(fmt.Sprintf("Attach to %s failed: %v", alias, err))
		return
	}

	t.app.Suspend(func() {
		if err := terminal.Attach(context.Background()); err != nil {
			t.logger.Warnw("attach ended with error", "alias", alias, "error", err)
		}
	})

	t.refreshConnections()
	if t.registry.State(alias) == domain.StateConnected {
		t.showStatusTemp("Detached: " + alias + " stays connected")
	} else {
		t.showStatusTemp("Session ended: " + alias)
	}
}

func (t *tui) openBrowser(alias, dir string) {
	browser, err := t.registry.Browser(alias)
	if err != nil {
		t.showStatusTemp(fmt.Sprintf("Browse failed: %v", err))
		return
	}

	entries, err := browser.List(dir)
	if errors.Is(err, domain.ErrNotConnected) {
		t.browserView.ShowHandles(alias, browser.Handles())
		t.showBrowserPage()
		return
	}
	if err != nil {
		t.showBrowserModal(fmt.Sprintf("List %s failed:\n\n%v", displayPath(dir), err))
		return
	}

	t.browserView.Show(alias, dir, entries)
	t.showBrowserPage()
}

func (t *tui) showBrowserPage() {
	t.app.SetRoot(t.browserView, true)
	t.app.SetFocus(t.browserView.list)
}

func (t *tui) returnToBrowser() {
	t.openBrowser(t.browserView.alias, t.browserView.cwd)
}

func (t *tui) editRemoteFile(alias, remotePath string) {
	browser, err := t.registry.Browser(alias)
	if err != nil {
		return
	}
	handle, err := browser.Open(remotePath)
	if err != nil {
		t.showBrowserModal(fmt.Sprintf("Open %s failed:\n\n%v", remotePath, err))
		return
	}
	t.editLocalCopy(handle)
}

// editLocalCopy opens the local copy in the configured editor and offers to
// save it back afterwards.
func (t *tui) editLocalCopy(handle domain.RemoteFileHandle) {
	editor, err := resolveEditor(t.cfg)
	if err != nil {
		t.showBrowserModal(err.Error())
		return
	}

	t.app.Suspend(func() {
		cmd := exec.Command(editor, handle.LocalPath)
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			t.logger.Warnw("editor exited with error", "editor", editor, "error", err)
		}
	})

	t.showSaveModal(handle)
}

func (t *tui) returnToMain() {
	t.app.SetRoot(t.root, true)
	t.app.SetFocus(t.tree)
}

// showStatusTemp displays a temporary message in the status bar and then restores the default text.
func (t *tui) showStatusTemp(msg string) {
	if t.statusBar == nil {
		return
	}
	t.statusBar.SetText("[#A0FFA0]" + tview.Escape(msg) + "[-]")
	time.AfterFunc(2*time.Second, func() {
		if t.app != nil {
			t.app.QueueUpdateDraw(func() {
				if t.statusBar != nil {
					t.statusBar.SetText(DefaultStatusText())
				}
			})
		}
	})
}
