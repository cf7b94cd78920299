// Copyright 2024 The Instrie Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package x86trie

import "testing"

func opc(t *testing.T, s string) *Opcode {
	t.Helper()
	o, err := ParseOpcode(s)
	if err != nil {
		t.Fatalf("ParseOpcode(%q): %v", s, err)
	}
	return o
}

func TestAddOpcodeNOP(t *testing.T) {
	table := NewTable(1, nil)
	rec := EncodedDesc{Mnemonic: "NOP"}

	paths := opc(t, "90").ForTrie()
	if len(paths) != 1 {
		t.Fatalf("expected 1 path, got %d", len(paths))
	}
	if err := table.AddOpcode(paths[0], rec, 0); err != nil {
		t.Fatalf("AddOpcode: %v", err)
	}

	root := table.data["root0"]
	child := root.Items[0]
	if child == "" {
		t.Fatal("expected a TABLE256 child at root slot 0")
	}
	t256 := table.data[child]
	if t256.Kind != KindTable256 {
		t.Fatalf("kind = %s, want TABLE256", t256.Kind)
	}
	instrName := t256.Items[0x90]
	if instrName == "" {
		t.Fatal("expected an INSTR child at TABLE256 slot 0x90")
	}
	if table.data[instrName].Mnemonic != "NOP" {
		t.Fatalf("mnemonic = %q, want NOP", table.data[instrName].Mnemonic)
	}
}

func TestAddOpcodeDuplicateConflict(t *testing.T) {
	table := NewTable(1, nil)
	paths := opc(t, "90").ForTrie()

	if err := table.AddOpcode(paths[0], EncodedDesc{Mnemonic: "NOP"}, 0); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := table.AddOpcode(paths[0], EncodedDesc{Mnemonic: "XCHG"}, 0); err == nil {
		t.Fatal("expected a conflict error inserting the same path twice")
	}
}

func TestAddOpcodeKindMismatch(t *testing.T) {
	table := NewTable(1, nil)

	// Insert a plain opcode, installing a TABLE256 node at root slot 0.
	if err := table.AddOpcode(opc(t, "00").ForTrie()[0], EncodedDesc{Mnemonic: "ADD"}, 0); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	// A path that would require a different kind at an already-occupied
	// node must fail. Forge one directly: slot 0 of root0 is TABLE256,
	// insert a path expecting it to be TABLE8.
	bogus := Path{
		{Kind: KindTableRoot, Byte: 0},
		{Kind: KindTable8, Byte: 1},
	}
	if err := table.AddOpcode(bogus, EncodedDesc{Mnemonic: "BOGUS"}, 0); err == nil {
		t.Fatal("expected a kind-mismatch error")
	}
}

func TestDeduplicateExtendedForm(t *testing.T) {
	// "c0//c0+ MI GP8 - - IMM8 ROL SIZE_8" produces 8 paths, all sharing
	// the same encoded record, that should collapse to one INSTR node.
	table := NewTable(1, nil)
	rec := EncodedDesc{Mnemonic: "ROL"}

	paths := opc(t, "c0//c0+").ForTrie()
	if len(paths) != 8 {
		t.Fatalf("expected 8 paths, got %d", len(paths))
	}
	for _, p := range paths {
		if err := table.AddOpcode(p, rec, 0); err != nil {
			t.Fatalf("AddOpcode: %v", err)
		}
	}

	before := len(table.order)
	table.Deduplicate()
	after := len(table.order)
	if after >= before {
		t.Fatalf("expected deduplication to reduce node count: before=%d after=%d", before, after)
	}

	// Find the TABLE72 node and confirm all 8 extended slots (//c0..//c7,
	// remapped to 8..15) now point at the same INSTR node.
	root := table.data["root0"]
	t256 := table.data[root.Items[0]]
	t72 := table.data[t256.Items[0xc0]]
	if t72.Kind != KindTable72 {
		t.Fatalf("kind = %s, want TABLE72", t72.Kind)
	}
	first := t72.Items[8]
	for i, name := range t72.Items[8:16] {
		if name != first {
			t.Fatalf("slot %d = %q, want %q (all slots should share the deduplicated INSTR node)", 8+i, name, first)
		}
	}
}

func TestDeduplicateFixpoint(t *testing.T) {
	table := NewTable(1, nil)
	rec := EncodedDesc{Mnemonic: "X"}
	for _, p := range opc(t, "c0//c0+").ForTrie() {
		if err := table.AddOpcode(p, rec, 0); err != nil {
			t.Fatalf("AddOpcode: %v", err)
		}
	}

	table.Deduplicate()
	sizeAfterFirst := len(table.order)
	table.Deduplicate()
	if len(table.order) != sizeAfterFirst {
		t.Fatalf("Deduplicate is not idempotent at a fixpoint: %d != %d", len(table.order), sizeAfterFirst)
	}
}

func TestCompileChildPointersValid(t *testing.T) {
	table := NewTable(1, nil)
	for _, line := range []string{"90", "0f1f", "81/0", "c0//c0+"} {
		for _, p := range opc(t, line).ForTrie() {
			if err := table.AddOpcode(p, EncodedDesc{Mnemonic: line}, 0); err != nil {
				t.Fatalf("AddOpcode(%q): %v", line, err)
			}
		}
	}
	table.Deduplicate()

	names := make([]string, 0, len(table.order))
	for _, n := range table.order {
		names = append(names, table.data[n].Mnemonic)
	}
	pool := BuildMnemonicPool(names)

	result, err := table.Compile(pool)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	totalWords := len(result.Data)

	// Every table-kind node's encoded children must reference valid,
	// in-range offsets with a recognised kind code (§8).
	for _, name := range table.order {
		e := table.data[name]
		if e.Kind == KindInstr {
			continue
		}
		for _, child := range e.Items {
			w := table.encodeItem(child)
			if w == 0 {
				continue
			}
			offset := int(w&^7) >> 1
			kind := EntryKind(w & 7)
			if kind < KindInstr || kind > KindTablePrefixRep {
				t.Fatalf("child pointer %#04x has invalid kind code %d", w, kind)
			}
			if offset >= totalWords {
				t.Fatalf("child pointer %#04x offset %d out of range (table has %d words)", w, offset, totalWords)
			}
		}
	}
}
