// Copyright 2024 The Instrie Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package compile turns a compiled decision trie into the generated
// Go source file consumed by a runtime decoder: the packed table, the
// mnemonic pool, and one root-offset constant per requested CPU mode.
package compile

import (
	"bytes"
	"embed"
	"fmt"
	"go/format"
	"text/template"

	"firefly-os.dev/tools/instrie/internal/x86trie"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"hex16": func(v uint16) string { return fmt.Sprintf("0x%04x", v) },
}).ParseFS(templatesFS, "templates/*.tmpl"))

// Mode is a CPU addressing mode root, identified by its bit width.
type Mode struct {
	Bits   int    // 32 or 64
	Offset int    // word offset of this mode's root in Data
	Const  string // generated constant name, e.g. TableOffset32
}

// RenderData is the data handed to templates/table.go.tmpl.
type RenderData struct {
	Command        string
	Package        string
	Table          []uint16
	MnemonicPool   string
	MnemonicOffset []int
	Modes          []Mode
}

// Render builds the generated Go source for result, one mode constant
// per entry in modes (in the same order result.RootOffsets uses), and
// formats it with go/format.
func Render(command, pkg string, result *x86trie.BuildResult, modes []int) ([]byte, error) {
	if len(modes) != len(result.RootOffsets) {
		return nil, fmt.Errorf("compile: %d modes but %d root offsets", len(modes), len(result.RootOffsets))
	}

	data := RenderData{
		Command:        command,
		Package:        pkg,
		Table:          result.Data,
		MnemonicPool:   result.Pool.Blob(),
		MnemonicOffset: result.Pool.Offsets,
	}
	for i, mode := range modes {
		data.Modes = append(data.Modes, Mode{
			Bits:   mode,
			Offset: result.RootOffsets[i],
			Const:  fmt.Sprintf("TableOffset%d", mode),
		})
	}

	var b bytes.Buffer
	if err := templates.ExecuteTemplate(&b, "table.go.tmpl", data); err != nil {
		return nil, fmt.Errorf("compile: executing table.go.tmpl: %w", err)
	}

	formatted, err := format.Source(b.Bytes())
	if err != nil {
		return nil, fmt.Errorf("compile: formatting generated source: %w", err)
	}

	return formatted, nil
}
