// Copyright 2024 The Instrie Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rsc.io/diff"

	"firefly-os.dev/tools/instrie/internal/compile"
	"firefly-os.dev/tools/instrie/internal/x86trie"
)

// stripGeneratedComment drops the first line of a generated file (the
// "Code generated by <argv>. DO NOT EDIT." comment), whose text is
// invocation-specific and excluded from the golden comparison below.
func stripGeneratedComment(src string) string {
	_, rest, found := strings.Cut(src, "\n")
	if !found {
		return src
	}
	return rest
}

func TestRunEndToEnd(t *testing.T) {
	const catalog = `
90 NP - - - - NOP
81/0 MI GP - - IMM32 ADD LOCK
0f38f0 RM GP MEM - - MOVBE
`
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.txt")
	if err := os.WriteFile(catalogPath, []byte(catalog), 0o644); err != nil {
		t.Fatalf("writing catalog: %v", err)
	}
	outPath := filepath.Join(dir, "table.go")

	if err := run(catalogPath, outPath, "decode", []int{32, 64}); err != nil {
		t.Fatalf("run: %v", err)
	}

	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("reading generated file: %v", err)
	}

	// run does nothing but parse the catalog, build the tables, and
	// render them, so driving those same three library steps directly
	// should produce byte-identical output; the only line allowed to
	// differ is the invocation-specific "Code generated by" comment.
	entries, err := x86trie.ParseCatalog(strings.NewReader(catalog))
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	result, err := x86trie.BuildTables(entries, []int{32, 64}, nil)
	if err != nil {
		t.Fatalf("BuildTables: %v", err)
	}
	want, err := compile.Render("golden", "decode", result, []int{32, 64})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	gotBody := stripGeneratedComment(string(got))
	wantBody := stripGeneratedComment(string(want))
	if gotBody != wantBody {
		t.Errorf("run() output disagrees with direct library output: (+got, -want)\n%s", diff.Format(wantBody, gotBody))
	}

	for _, substr := range []string{
		"package decode",
		"const TableOffset32 =",
		"const TableOffset64 =",
		"NOP",
		"ADD",
		"MOVBE",
	} {
		if !strings.Contains(gotBody, substr) {
			t.Errorf("generated file missing %q", substr)
		}
	}
}

func TestRunRequiresReadableCatalog(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "table.go")
	if err := run(filepath.Join(dir, "missing.txt"), outPath, "decode", []int{64}); err == nil {
		t.Fatal("expected an error for a missing catalog file")
	}
}

func TestRunRejectsConflictingCatalog(t *testing.T) {
	const catalog = `
90 NP - - - - NOP
90 NP - - - - ALSO_NOP
`
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.txt")
	if err := os.WriteFile(catalogPath, []byte(catalog), 0o644); err != nil {
		t.Fatalf("writing catalog: %v", err)
	}
	outPath := filepath.Join(dir, "table.go")

	if err := run(catalogPath, outPath, "decode", []int{64}); err == nil {
		t.Fatal("expected a conflict error for two instructions at the same opcode")
	}
	if _, err := os.Stat(outPath); err == nil {
		t.Error("no output file should be written when the build fails")
	}
}
