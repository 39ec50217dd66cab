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

import "strings"

const bodyIndent = "    "

// canonicalKeys maps recognized lowercased keys to the casing we write.
var canonicalKeys = map[string]string{
	keyHost:         "Host",
	keyMatch:        "Match",
	keyHostName:     "HostName",
	keyUser:         "User",
	keyPort:         "Port",
	keyIdentityFile: "IdentityFile",
}

// render serializes the document and applies the formatting pass: block
// bodies are re-indented, blank lines inside bodies are dropped, and runs
// of blank lines collapse to a single separator between blocks.
func render(d *document) []byte {
	var lines []string
	for _, seg := range d.segments {
		if seg.block == nil {
			lines = append(lines, seg.lines...)
			continue
		}
		lines = append(lines, "")
		lines = append(lines, renderBlock(seg.block)...)
	}
	return collapseBlankRuns(lines)
}

func renderBlock(b *block) []string {
	out := make([]string, 0, len(b.body)+2)
	if b.folder != "" {
		out = append(out, folderMarker+" "+b.folder)
	}
	header := canonicalKeys[b.headerKey]
	if header == "" {
		header = b.headerKey
	}
	out = append(out, header+" "+strings.Join(b.patterns, " "))

	for _, entry := range b.body {
		switch {
		case entry.raw == "" && entry.key == "":
			// blank line inside a body, dropped by the formatting pass
		case entry.raw == "":
			// canonical entry built from a record field
			out = append(out, bodyIndent+canonicalKeys[entry.key]+" "+entry.value)
		default:
			out = append(out, bodyIndent+entry.raw)
		}
	}
	return out
}

// collapseBlankRuns squeezes consecutive blank lines to one, trims blanks
// at both ends of the file, and terminates with a single newline.
func collapseBlankRuns(lines []string) []byte {
	var sb strings.Builder
	wrote := false
	pendingBlank := false
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			pendingBlank = wrote
			continue
		}
		if pendingBlank {
			sb.WriteString("\n")
			pendingBlank = false
		}
		sb.WriteString(line)
		sb.WriteString("\n")
		wrote = true
	}
	return []byte(sb.String())
}
