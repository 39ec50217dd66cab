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
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rivo/tview"
	"golang.org/x/term"

	"github.com/sshdeck/sshdeck/internal/core/domain"
)

type promptResult struct {
	text string
	ok   bool
	err  error
}

// Prompter renders credential and confirmation prompts as centered forms on
// the running application. Calls block the calling goroutine until the user
// answers, so they must come from outside the event loop; the connect flow
// runs on its own goroutine and satisfies that.
type Prompter struct {
	app     *tview.Application
	restore func()
}

func NewPrompter(app *tview.Application) *Prompter {
	return &Prompter{app: app, restore: func() {}}
}

// setRestore installs the callback that puts the main layout back after a
// prompt closes.
func (p *Prompter) setRestore(fn func()) {
	p.restore = fn
}

func (p *Prompter) AskText(title, label string) (string, error) {
	return p.ask(title, label, false)
}

func (p *Prompter) AskSecret(title, label string) (string, error) {
	return p.ask(title, label, true)
}

func (p *Prompter) ask(title, label string, secret bool) (string, error) {
	result := make(chan promptResult, 1)
	answer := func(res promptResult) {
		p.restore()
		result <- res
	}

	p.app.QueueUpdateDraw(func() {
		field := tview.NewInputField().
			SetLabel(label + ": ").
			SetFieldWidth(40)
		if secret {
			field.SetMaskCharacter('*')
		}

		form := tview.NewForm().AddFormItem(field)
		form.AddButton("OK", func() {
			answer(promptResult{text: field.GetText()})
		})
		form.AddButton("Cancel", func() {
			answer(promptResult{err: domain.ErrPromptDeclined})
		})
		form.SetCancelFunc(func() {
			answer(promptResult{err: domain.ErrPromptDeclined})
		})
		form.SetBorder(true)
		form.SetTitle(" " + title + " ")
		p.app.SetRoot(centered(form, 64, 7), true)
	})

	res := <-result
	return res.text, res.err
}

func (p *Prompter) Confirm(title, message string) (bool, error) {
	result := make(chan promptResult, 1)

	p.app.QueueUpdateDraw(func() {
		modal := tview.NewModal().
			SetText(fmt.Sprintf("%s\n\n%s", title, message)).
			AddButtons([]string{"No", "Yes"}).
			SetDoneFunc(func(buttonIndex int, buttonLabel string) {
				p.restore()
				if buttonIndex < 0 {
					result <- promptResult{err: domain.ErrPromptDeclined}
					return
				}
				result <- promptResult{ok: buttonLabel == "Yes"}
			})
		p.app.SetRoot(modal, true)
	})

	res := <-result
	return res.ok, res.err
}

// centered wraps a primitive in spacer flexes so it floats mid-screen.
func centered(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 1, true).
			AddItem(nil, 0, 1, false), width, 1, true).
		AddItem(nil, 0, 1, false)
}

// TerminalPrompter asks on the controlling terminal. It backs the direct
// connect mode, where no application UI is running.
type TerminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{in: bufio.NewReader(os.Stdin), out: os.Stdout}
}

func (p *TerminalPrompter) AskText(title, label string) (string, error) {
	fmt.Fprintf(p.out, "%s\n%s: ", title, label)
	line, err := p.in.ReadString('\n')
	if err != nil {
		return "", domain.ErrPromptDeclined
	}
	return strings.TrimSpace(line), nil
}

func (p *TerminalPrompter) AskSecret(title, label string) (string, error) {
	fmt.Fprintf(p.out, "%s\n%s: ", title, label)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(p.out)
	if err != nil {
		return "", domain.ErrPromptDeclined
	}
	return string(secret), nil
}

func (p *TerminalPrompter) Confirm(title, message string) (bool, error) {
	fmt.Fprintf(p.out, "%s\n%s [y/N]: ", title, message)
	line, err := p.in.ReadString('\n')
	if err != nil {
		return false, domain.ErrPromptDeclined
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
