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

// ConnectionTree shows the connection records grouped by folder. Leaf nodes
// carry their domain.Connection as the node reference; folder nodes carry
// their slash path as a string.
type ConnectionTree struct {
	*tview.TreeView
	root *tview.TreeNode
}

func NewConnectionTree() *ConnectionTree {
	root := tview.NewTreeNode(".")
	tree := &ConnectionTree{
		TreeView: tview.NewTreeView().SetRoot(root).SetTopLevel(1),
		root:     root,
	}
	tree.build()
	return tree
}

func (t *ConnectionTree) build() {
	t.SetBorder(true)
	t.SetTitle(" Connections ")
	t.SetBorderColor(tcell.Color238)
	t.SetTitleColor(tcell.Color250)
	t.SetGraphicsColor(tcell.Color238)
}

// Update rebuilds the tree from the given records. Records arrive already
// sorted folderless-first; stateOf supplies the live lifecycle state per
// alias. The previously selected alias stays selected when it still exists.
func (t *ConnectionTree) Update(records []domain.Connection, stateOf func(alias string) domain.SessionState) {
	selected := ""
	if rec, ok := t.Selected(); ok {
		selected = rec.Alias
	}

	t.root.ClearChildren()
	t.SetTitle(fmt.Sprintf(" Connections (%d) ", len(records)))

	folders := map[string]*tview.TreeNode{}
	for _, rec := range records {
		leaf := tview.NewTreeNode(formatConnectionLine(rec, stateOf(rec.Alias))).
			SetReference(rec)
		t.folderNode(folders, rec.Folder).AddChild(leaf)
	}

	if selected != "" && t.selectAlias(selected) {
		return
	}
	t.selectFirstLeaf()
}

// folderNode returns the node for a slash path, creating missing levels.
// The empty path is the root.
func (t *ConnectionTree) folderNode(folders map[string]*tview.TreeNode, path string) *tview.TreeNode {
	if path == "" {
		return t.root
	}
	if node, ok := folders[path]; ok {
		return node
	}

	parent := t.root
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		parent = t.folderNode(folders, path[:idx])
	}
	name := path[strings.LastIndex(path, "/")+1:]

	node := tview.NewTreeNode(fmt.Sprintf("[#87AFFF::b]%s/[-:-:-]", name)).
		SetReference(path).
		SetExpanded(true)
	parent.AddChild(node)
	folders[path] = node
	return node
}

// Selected returns the connection under the cursor, if the cursor is on a
// connection rather than a folder.
func (t *ConnectionTree) Selected() (domain.Connection, bool) {
	node := t.GetCurrentNode()
	if node == nil {
		return domain.Connection{}, false
	}
	rec, ok := node.GetReference().(domain.Connection)
	return rec, ok
}

func (t *ConnectionTree) selectAlias(alias string) bool {
	var found *tview.TreeNode
	t.root.Walk(func(node, parent *tview.TreeNode) bool {
		if rec, ok := node.GetReference().(domain.Connection); ok && rec.Alias == alias {
			found = node
			return false
		}
		return true
	})
	if found == nil {
		return false
	}
	t.SetCurrentNode(found)
	return true
}

func (t *ConnectionTree) selectFirstLeaf() {
	var first *tview.TreeNode
	t.root.Walk(func(node, parent *tview.TreeNode) bool {
		if _, ok := node.GetReference().(domain.Connection); ok {
			first = node
			return false
		}
		return true
	})
	if first != nil {
		t.SetCurrentNode(first)
		return
	}
	t.SetCurrentNode(t.root)
}
