// Copyright 2024 The Instrie Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package x86trie

import (
	"fmt"
	"strings"
)

// TrieEntry is one node in the decision trie (§3, §4.3). Table-kind
// entries use Items and ignore Payload/Mnemonic; INSTR entries use
// Payload/Mnemonic and have no Items.
type TrieEntry struct {
	Kind     EntryKind
	Items    []string // child node names, one per slot; "" means absent
	Payload  [3]uint16
	Mnemonic string
}

func newTableEntry(kind EntryKind) *TrieEntry {
	return &TrieEntry{Kind: kind, Items: make([]string, fanOut[kind])}
}

// key returns a string that is equal for two entries exactly when they
// are structurally equal per §4.4: same kind, same payload, same child
// names in the same slots.
func (e *TrieEntry) key() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	b.WriteByte('\x1f')
	if e.Kind == KindInstr {
		fmt.Fprintf(&b, "%04x\x1f%04x\x1f%04x\x1f%s", e.Payload[0], e.Payload[1], e.Payload[2], e.Mnemonic)
		return b.String()
	}
	for _, item := range e.Items {
		b.WriteString(item)
		b.WriteByte('\x1f')
	}
	return b.String()
}

// Table is the in-progress decision trie for one or more CPU-mode
// roots, being built up by repeated AddOpcode calls and then finalised
// by Deduplicate and Compile (§4.3, §4.4).
type Table struct {
	roots   []string
	order   []string // insertion order; offsets are assigned in this order
	data    map[string]*TrieEntry
	offsets map[string]int
	size    int // total table size in 16-bit words, set by CalcOffsets
	stats   *Stats
}

// NewTable creates a Table with rootCount empty TABLE_ROOT nodes,
// named root0, root1, ... in order.
func NewTable(rootCount int, stats *Stats) *Table {
	t := &Table{
		data:    map[string]*TrieEntry{},
		offsets: map[string]int{},
		stats:   stats,
	}
	for i := 0; i < rootCount; i++ {
		name := fmt.Sprintf("root%d", i)
		t.roots = append(t.roots, name)
		t.setEntry(name, newTableEntry(KindTableRoot))
	}
	return t
}

func (t *Table) setEntry(name string, e *TrieEntry) {
	if _, exists := t.data[name]; !exists {
		t.order = append(t.order, name)
		t.stats.NodeCreated(e.Kind)
	}
	t.data[name] = e
}

// updateTable sets the child at items[idx] in the node named parent to
// entryName/entry, creating entry if the slot is currently empty. It
// is an error for the slot to already hold a different child (§4.3:
// "duplicate terminal insertions ... are fatal build errors").
func (t *Table) updateTable(parent string, idx int, entryName string, entry *TrieEntry) error {
	cur := t.data[parent]
	if cur.Items[idx] != "" {
		return Errorf(0, "trie slot %s/%d already holds %s, cannot also insert %s", parent, idx, cur.Items[idx], entryName)
	}
	t.setEntry(entryName, entry)
	cur.Items[idx] = entryName
	return nil
}

// AddOpcode walks path from the given root, creating intermediate
// table nodes on demand, and installs an INSTR node at its end holding
// rec (§4.3). It is an error for an existing intermediate node's kind
// to disagree with the path's expectation, or for the terminal slot to
// already be occupied.
func (t *Table) AddOpcode(path Path, rec EncodedDesc, rootIndex int) error {
	if len(path) == 0 {
		return Errorf(0, "cannot insert an empty path")
	}

	fullName := fmt.Sprintf("t%d,%s", rootIndex, formatPath(path))
	node := fmt.Sprintf("root%d", rootIndex)

	for i := 0; i < len(path)-1; i++ {
		nextKind := path[i+1].Kind
		slot := path[i].Byte

		child := t.data[node].Items[slot]
		if child == "" {
			child = fmt.Sprintf("t%d,%s", rootIndex, formatPath(path[:i+1]))
			if err := t.updateTable(node, slot, child, newTableEntry(nextKind)); err != nil {
				return err
			}
		}
		if t.data[child].Kind != nextKind {
			return Errorf(0, "%s: trie kind mismatch: have %s, want %s", child, t.data[child].Kind, nextKind)
		}
		node = child
	}

	last := path[len(path)-1]
	return t.updateTable(node, last.Byte, fullName, &TrieEntry{
		Kind:     KindInstr,
		Payload:  [3]uint16{rec.Word0, rec.Word1, rec.Word2},
		Mnemonic: rec.Mnemonic,
	})
}

// Deduplicate repeatedly merges structurally-equal nodes until a pass
// produces no merges (§4.4). Every merge rewrites the child references
// of surviving nodes to point at the first-seen representative of the
// equivalence class, then drops the now-unreferenced duplicates.
func (t *Table) Deduplicate() {
	for {
		seen := map[string]string{}  // entry key -> first-seen name
		synonym := map[string]string{} // duplicate name -> canonical name

		for _, name := range t.order {
			key := t.data[name].key()
			if canon, ok := seen[key]; ok {
				synonym[name] = canon
			} else {
				seen[key] = name
			}
		}
		if len(synonym) == 0 {
			return
		}

		for _, name := range t.order {
			if _, dropped := synonym[name]; dropped {
				continue
			}
			e := t.data[name]
			if e.Kind == KindInstr {
				continue
			}
			for i, child := range e.Items {
				if repl, ok := synonym[child]; ok {
					e.Items[i] = repl
				}
			}
		}

		newOrder := t.order[:0:0]
		for _, name := range t.order {
			if _, dropped := synonym[name]; dropped {
				t.stats.NodeMerged(t.data[name].Kind)
				delete(t.data, name)
				continue
			}
			newOrder = append(newOrder, name)
		}
		t.order = newOrder
	}
}

// entryLength is the node's payload+children word count (§4.4). Every
// node kind in this closed system has a length that is already a
// multiple of 4, so the round_up_to_4 padding described by §4.4 never
// actually adds bytes; it exists to keep every assigned offset a
// multiple of 4 words, which the child-pointer encoding below relies
// on to pack a 3-bit kind code below the offset's low bits.
func entryLength(e *TrieEntry) int {
	if e.Kind == KindInstr {
		return 4 // 3 descriptor words + 1 mnemonic tag word
	}
	return len(e.Items)
}

func roundUp4(words int) int {
	if r := words % 4; r != 0 {
		return words + (4 - r)
	}
	return words
}

// CalcOffsets assigns every node a word offset into the final table,
// in insertion order, and checks the 0x8000-byte capacity limit (§4.4).
func (t *Table) CalcOffsets() error {
	current := 0
	for _, name := range t.order {
		t.offsets[name] = current
		current += roundUp4(entryLength(t.data[name]))
	}
	if current*2 >= 0x8000 {
		return Errorf(0, "compiled table is %d bytes, exceeding the 0x8000 byte limit", current*2)
	}
	t.size = current
	return nil
}

// encodeItem encodes the child reference stored in a parent's slot:
// zero for an absent child, otherwise (word_offset<<1)|kind_code, per
// §4.4.
func (t *Table) encodeItem(name string) uint16 {
	if name == "" {
		return 0
	}
	off := t.offsets[name]
	kind := t.data[name].Kind
	return uint16(off<<1) | uint16(kind)
}

// BuildResult is the output of a completed build: the serialised word
// table, one root offset per input mode, and the mnemonic pool it
// tags INSTR nodes against.
type BuildResult struct {
	Data        []uint16
	RootOffsets []int // one per root, in the order NewTable created them
	Pool        *MnemonicPool
}

// Compile finalises the table's layout and serialises it to a flat
// sequence of 16-bit words, tagging each INSTR node's mnemonic against
// pool (§4.4, §6).
func (t *Table) Compile(pool *MnemonicPool) (*BuildResult, error) {
	if err := t.CalcOffsets(); err != nil {
		return nil, err
	}

	data := make([]uint16, t.size)
	for _, name := range t.order {
		e := t.data[name]
		off := t.offsets[name]
		if e.Kind == KindInstr {
			tag, ok := pool.Tag(e.Mnemonic)
			if !ok {
				return nil, Errorf(0, "mnemonic %q is not in the mnemonic pool", e.Mnemonic)
			}
			data[off+0] = e.Payload[0]
			data[off+1] = e.Payload[1]
			data[off+2] = e.Payload[2]
			data[off+3] = tag
			continue
		}
		for i, child := range e.Items {
			data[off+i] = t.encodeItem(child)
		}
	}

	roots := make([]int, len(t.roots))
	for i, r := range t.roots {
		roots[i] = t.offsets[r]
	}

	return &BuildResult{Data: data, RootOffsets: roots, Pool: pool}, nil
}
