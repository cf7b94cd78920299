// Copyright 2024 The Instrie Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package x86trie

import "fmt"

// BuildTables runs the whole core pipeline (§2's flow diagram) over a
// parsed catalog: it builds one root per entry in modes, encodes and
// inserts every line's paths into the roots that accept it, merges
// duplicate sub-tries, and compiles the final byte table.
//
// modes is a list of CPU modes (32, 64, ...); the mode's own flag name
// is never consulted directly. Per §4.3 and the "Open questions" note
// of spec.md, a descriptor carrying flag "ONLY<other>" where other =
// 96-mode is excluded from that mode's root: ONLY32 excludes from the
// 64-bit root, and ONLY64 excludes from the 32-bit root.
func BuildTables(entries []CatalogEntry, modes []int, stats *Stats) (*BuildResult, error) {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Desc.Mnemonic)
	}
	pool := BuildMnemonicPool(names)

	table := NewTable(len(modes), stats)

	for _, entry := range entries {
		stats.Line()

		rec, err := entry.Desc.Encode()
		if err != nil {
			return nil, Errorf(entry.Line, "%v", err)
		}

		paths := entry.Opcode.ForTrie()

		for rootIdx, mode := range modes {
			exclude := fmt.Sprintf("ONLY%d", 96-mode)
			if entry.Desc.hasFlag(exclude) {
				continue
			}
			for _, p := range paths {
				stats.Path()
				if err := table.AddOpcode(p, rec, rootIdx); err != nil {
					return nil, Errorf(entry.Line, "%v", err)
				}
			}
		}
	}

	table.Deduplicate()

	return table.Compile(pool)
}
