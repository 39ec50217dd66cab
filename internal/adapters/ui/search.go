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
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// SearchBar is the incremental filter input above the connection tree.
type SearchBar struct {
	*tview.InputField
}

func NewSearchBar() *SearchBar {
	s := &SearchBar{InputField: tview.NewInputField()}
	s.build()
	return s
}

func (s *SearchBar) build() {
	s.SetLabel(" / ")
	s.SetLabelColor(tcell.Color250)
	s.SetFieldBackgroundColor(tcell.Color238)
	s.SetFieldTextColor(tcell.Color255)
	s.SetPlaceholder("filter by alias, host, user or folder")
	s.SetPlaceholderTextColor(tcell.Color243)
	s.SetBorder(true)
	s.SetBorderColor(tcell.Color238)
}

// Reset clears the query.
func (s *SearchBar) Reset() {
	s.SetText("")
}
