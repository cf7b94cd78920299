// Copyright 2024 The Instrie Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package x86trie

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuildMnemonicPool(t *testing.T) {
	pool := BuildMnemonicPool([]string{"MOV", "ADD", "ADD", "NOP", "ADD"})

	want := []string{"ADD", "MOV", "NOP"}
	if diff := cmp.Diff(want, pool.Names); diff != "" {
		t.Fatalf("Names mismatch (-want +got):\n%s", diff)
	}

	wantOffsets := []int{0, 4, 8, 12}
	if diff := cmp.Diff(wantOffsets, pool.Offsets); diff != "" {
		t.Fatalf("Offsets mismatch (-want +got):\n%s", diff)
	}

	if got := pool.Blob(); got != "ADD\x00MOV\x00NOP\x00" {
		t.Fatalf("Blob() = %q", got)
	}

	for i, name := range want {
		tag, ok := pool.Tag(name)
		if !ok {
			t.Fatalf("Tag(%q): not found", name)
		}
		if int(tag) != i {
			t.Fatalf("Tag(%q) = %d, want %d", name, tag, i)
		}
	}

	if _, ok := pool.Tag("MISSING"); ok {
		t.Fatal("Tag(\"MISSING\") should report not-found")
	}
}

func TestBuildMnemonicPoolEmpty(t *testing.T) {
	pool := BuildMnemonicPool(nil)
	if len(pool.Names) != 0 {
		t.Fatalf("expected no names, got %v", pool.Names)
	}
	if got := pool.Blob(); got != "" {
		t.Fatalf("Blob() = %q, want empty", got)
	}
}
