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
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/sshdeck/sshdeck/internal/core/domain"
	"github.com/sshdeck/sshdeck/internal/core/services"
)

// tui owns the terminal interface: the connection tree on the left, the
// details pane on the right, a status bar at the bottom, and the full-screen
// pages for the file browser and the forms.
type tui struct {
	app         *tview.Application
	logger      *zap.SugaredLogger
	registry    *services.Registry
	broadcaster *services.Broadcaster
	prompter    *Prompter
	cfg         domain.Config
	version     string
	gitCommit   string

	root        *tview.Flex
	left        *tview.Flex
	tree        *ConnectionTree
	searchBar   *SearchBar
	details     *ConnectionDetails
	browserView *BrowserView
	hintBar     *tview.TextView
	statusBar   *tview.TextView

	searchVisible bool
}

func NewTUI(
	app *tview.Application,
	logger *zap.SugaredLogger,
	registry *services.Registry,
	broadcaster *services.Broadcaster,
	prompter *Prompter,
	cfg domain.Config,
	version, gitCommit string,
) *tui {
	t := &tui{
		app:         app,
		logger:      logger,
		registry:    registry,
		broadcaster: broadcaster,
		prompter:    prompter,
		cfg:         cfg,
		version:     version,
		gitCommit:   gitCommit,
	}
	t.buildLayout()
	prompter.setRestore(t.returnToMain)
	return t
}

func (t *tui) buildLayout() {
	t.tree = NewConnectionTree()
	t.searchBar = NewSearchBar()
	t.details = NewConnectionDetails()
	t.browserView = NewBrowserView()

	t.hintBar = tview.NewTextView().
		SetDynamicColors(true).
		SetText(" [#8A8A8A]/ search · ? help[-]")
	t.statusBar = tview.NewTextView().
		SetDynamicColors(true).
		SetText(DefaultStatusText())

	t.left = tview.NewFlex().SetDirection(tview.FlexRow)
	t.left.AddItem(t.hintBar, 1, 0, false)
	t.left.AddItem(t.tree, 0, 1, true)

	content := tview.NewFlex().
		AddItem(t.left, 0, 2, true).
		AddItem(t.details, 0, 3, false)

	t.root = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(content, 0, 1, true).
		AddItem(t.statusBar, 1, 0, false)
}

// Run wires the event handlers, subscribes to session events and blocks
// until the user quits.
func (t *tui) Run() error {
	t.tree.SetChangedFunc(func(node *tview.TreeNode) { t.refreshDetails() })
	t.tree.SetInputCapture(t.handleGlobalKeys)
	t.searchBar.SetChangedFunc(t.handleSearchInput)
	t.searchBar.SetDoneFunc(t.handleSearchDone)
	t.browserView.list.SetInputCapture(t.handleBrowserKeys)

	// Session events arrive from watcher goroutines as well as from the
	// event loop itself, so the redraw is always queued from a fresh
	// goroutine to keep the loop from waiting on itself.
	t.registry.OnChange(func(event domain.SessionEvent) {
		go t.app.QueueUpdateDraw(t.refreshConnections)
	})

	t.refreshConnections()
	return t.app.SetRoot(t.root, true).EnableMouse(true).Run()
}

// RefreshFromConfig reloads the tree after the backing SSH config changed
// on disk. Safe to call from any goroutine.
func (t *tui) RefreshFromConfig() {
	t.app.QueueUpdateDraw(func() {
		t.refreshConnections()
		t.showStatusTemp("Config reloaded from disk")
	})
}

func DefaultStatusText() string {
	return " [#8A8A8A]Enter connect/attach · x disconnect · f files · s broadcast · a add · e edit · d delete · m move · c copy · g ping · q quit[-]"
}
