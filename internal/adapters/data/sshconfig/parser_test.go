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

package sshconfig

import (
	"reflect"
	"strings"
	"testing"

	"github.com/sshdeck/sshdeck/internal/core/domain"
)

func TestParse_Connections(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []domain.Connection
	}{
		{
			name: "full block with folder tag and pass-through option",
			input: `# sshdeck:folder prod/web
Host web1
    HostName 10.0.0.5
    User deploy
    Port 2200
    IdentityFile ~/.ssh/web1_ed25519
    ServerAliveInterval 30
`,
			expected: []domain.Connection{
				{
					Alias:        "web1",
					Host:         "10.0.0.5",
					User:         "deploy",
					Port:         2200,
					IdentityFile: "~/.ssh/web1_ed25519",
					Folder:       "prod/web",
					Extra:        []domain.Option{{Key: "ServerAliveInterval", Value: "30"}},
				},
			},
		},
		{
			name: "missing port defaults to 22",
			input: `Host db
    HostName db.internal
    User admin
`,
			expected: []domain.Connection{
				{Alias: "db", Host: "db.internal", User: "admin", Port: 22},
			},
		},
		{
			name: "wildcard and multi-pattern blocks are not records",
			input: `Host *
    ForwardAgent yes

Host staging-a staging-b
    User qa

Host solo
    HostName solo.example.com
`,
			expected: []domain.Connection{
				{Alias: "solo", Host: "solo.example.com", Port: 22},
			},
		},
		{
			name: "fields outside any block are ignored",
			input: `User nobody
Port 9999

Host a
    HostName a.example.com
`,
			expected: []domain.Connection{
				{Alias: "a", Host: "a.example.com", Port: 22},
			},
		},
		{
			name: "equals separator and invalid port",
			input: `Host b
    HostName=b.example.com
    Port notanumber
`,
			expected: []domain.Connection{
				{Alias: "b", Host: "b.example.com", Port: 22},
			},
		},
		{
			name: "blank line detaches a folder comment",
			input: `# sshdeck:folder infra

Host gw
    HostName gw.example.com
`,
			expected: []domain.Connection{
				{Alias: "gw", Host: "gw.example.com", Port: 22},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := parse(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("parse() error = %v, want nil", err)
			}
			got := doc.connections()
			if len(got) != len(tt.expected) {
				t.Fatalf("parse() returned %d records, want %d", len(got), len(tt.expected))
			}
			for i, want := range tt.expected {
				if !reflect.DeepEqual(got[i], want) {
					t.Errorf("record %d = %+v, want %+v", i, got[i], want)
				}
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	conns := []domain.Connection{
		{
			Alias:        "alpha",
			Host:         "10.1.0.1",
			User:         "root",
			Port:         22,
			IdentityFile: "~/.ssh/id_ed25519",
			Folder:       "dc1/rack2",
			Extra:        []domain.Option{{Key: "ProxyJump", Value: "bastion"}},
		},
		{Alias: "beta", Host: "10.1.0.2", Port: 8022},
		{Alias: "gamma", Host: "gamma.example.com", User: "ops", Port: 22, Folder: "dc2"},
	}

	doc := &document{}
	for _, c := range conns {
		doc.upsert(c)
	}
	doc.remove("beta")
	doc.upsert(domain.Connection{Alias: "beta", Host: "10.9.9.9", Port: 22})

	reparsed, err := parse(strings.NewReader(string(render(doc))))
	if err != nil {
		t.Fatalf("re-parse error = %v, want nil", err)
	}
	got := reparsed.connections()

	want := []domain.Connection{conns[0], conns[2], {Alias: "beta", Host: "10.9.9.9", Port: 22}}
	if len(got) != len(want) {
		t.Fatalf("round trip returned %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if !reflect.DeepEqual(got[i], want[i]) {
			t.Errorf("record %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestUpsert_ReplacesInPlace(t *testing.T) {
	input := `Host a
    HostName 1.1.1.1

Host b
    HostName 2.2.2.2

Host c
    HostName 3.3.3.3
`
	doc, err := parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}

	doc.upsert(domain.Connection{Alias: "b", Host: "9.9.9.9", User: "new", Port: 22})
	doc.upsert(domain.Connection{Alias: "b", Host: "9.9.9.9", User: "newer", Port: 22})

	out := string(render(doc))
	if n := strings.Count(out, "Host b\n"); n != 1 {
		t.Fatalf("expected exactly one block for alias b, found %d\n%s", n, out)
	}

	aliases := make([]string, 0, 3)
	for _, c := range mustParse(t, out).connections() {
		aliases = append(aliases, c.Alias)
	}
	if !reflect.DeepEqual(aliases, []string{"a", "b", "c"}) {
		t.Errorf("block order = %v, want [a b c]", aliases)
	}

	if got := mustParse(t, out).connections()[1].User; got != "newer" {
		t.Errorf("User = %q, want %q", got, "newer")
	}
}

func TestUpsert_AppendsNewAlias(t *testing.T) {
	doc, err := parse(strings.NewReader("Host a\n    HostName 1.1.1.1\n"))
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}
	doc.upsert(domain.Connection{Alias: "z", Host: "z.example.com", Port: 22})

	conns := mustParse(t, string(render(doc))).connections()
	if len(conns) != 2 || conns[1].Alias != "z" {
		t.Fatalf("expected new alias appended last, got %+v", conns)
	}
}

func TestRemove(t *testing.T) {
	input := `# sshdeck:folder dc1
Host a
    HostName 1.1.1.1

Host b
    HostName 2.2.2.2
`
	doc, err := parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}

	if doc.remove("missing") {
		t.Errorf("remove of absent alias reported a change")
	}
	if !doc.remove("a") {
		t.Fatalf("remove of present alias reported no change")
	}

	out := string(render(doc))
	if strings.Contains(out, "Host a") {
		t.Errorf("removed block still present:\n%s", out)
	}
	if strings.Contains(out, folderMarker) {
		t.Errorf("folder comment of removed block still present:\n%s", out)
	}
	if !strings.Contains(out, "Host b") {
		t.Errorf("unrelated block lost:\n%s", out)
	}
}

func TestRender_Formatting(t *testing.T) {
	input := "# edited by hand\n\n\nHost a\n\tHostName 1.2.3.4\n\n\n\nHost b\n  HostName 5.6.7.8\n"
	doc, err := parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}

	want := "# edited by hand\n\nHost a\n    HostName 1.2.3.4\n\nHost b\n    HostName 5.6.7.8\n"
	if got := string(render(doc)); got != want {
		t.Errorf("render() =\n%q\nwant\n%q", got, want)
	}
}

func mustParse(t *testing.T, text string) *document {
	t.Helper()
	doc, err := parse(strings.NewReader(text))
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}
	return doc
}
