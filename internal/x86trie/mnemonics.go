// Copyright 2024 The Instrie Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package x86trie

import (
	"sort"
	"strings"
)

// MnemonicPool is the sorted, deduplicated, NUL-separated mnemonic
// string pool and its offset table, per §6: "Entry 0 is 0; entry i+1 =
// entry_i + len(mnemonic_i) + 1."
type MnemonicPool struct {
	Names   []string // sorted, distinct
	Offsets []int    // len(Names)+1 entries
	index   map[string]uint16
}

// BuildMnemonicPool builds the pool from every mnemonic used across
// the catalog, deduplicating and sorting lexicographically.
func BuildMnemonicPool(names []string) *MnemonicPool {
	seen := make(map[string]bool, len(names))
	distinct := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			distinct = append(distinct, n)
		}
	}
	sort.Strings(distinct)

	offsets := make([]int, len(distinct)+1)
	for i, n := range distinct {
		offsets[i+1] = offsets[i] + len(n) + 1
	}

	index := make(map[string]uint16, len(distinct))
	for i, n := range distinct {
		index[n] = uint16(i)
	}

	return &MnemonicPool{Names: distinct, Offsets: offsets, index: index}
}

// Tag returns name's index into the pool, suitable for use as an
// INSTR node's mnemonic tag word.
func (p *MnemonicPool) Tag(name string) (uint16, bool) {
	v, ok := p.index[name]
	return v, ok
}

// Blob renders the pool as the single NUL-separated byte string
// described by §6, including the trailing NUL after the last
// mnemonic.
func (p *MnemonicPool) Blob() string {
	if len(p.Names) == 0 {
		return ""
	}
	return strings.Join(p.Names, "\x00") + "\x00"
}
