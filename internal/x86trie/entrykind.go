// Copyright 2024 The Instrie Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package x86trie

import "fmt"

// EntryKind is the closed set of trie node kinds (§3). The numeric
// values match the kind codes used by the child-pointer encoding of
// §4.4 exactly; do not renumber them.
type EntryKind int8

const (
	KindNone           EntryKind = 0  // absent-child marker, never a real node
	KindInstr          EntryKind = 1
	KindTable256       EntryKind = 2
	KindTable8         EntryKind = 3
	KindTable72        EntryKind = 4
	KindTablePrefix    EntryKind = 5
	KindTableVEX       EntryKind = 6
	KindTablePrefixRep EntryKind = 7
	KindTableRoot      EntryKind = -1 // never appears as a child reference
)

// fanOut is the fixed number of child slots for each table kind.
// KindInstr has no children; it is handled separately.
var fanOut = map[EntryKind]int{
	KindTableRoot:      8,
	KindTable256:       256,
	KindTable8:         8,
	KindTable72:        72,
	KindTablePrefix:    4,
	KindTableVEX:       4,
	KindTablePrefixRep: 4,
}

func (k EntryKind) String() string {
	switch k {
	case KindNone:
		return "NONE"
	case KindInstr:
		return "INSTR"
	case KindTable256:
		return "TABLE256"
	case KindTable8:
		return "TABLE8"
	case KindTable72:
		return "TABLE72"
	case KindTablePrefix:
		return "TABLE_PREFIX"
	case KindTableVEX:
		return "TABLE_VEX"
	case KindTablePrefixRep:
		return "TABLE_PREFIX_REP"
	case KindTableRoot:
		return "TABLE_ROOT"
	default:
		return fmt.Sprintf("EntryKind(%d)", int8(k))
	}
}
