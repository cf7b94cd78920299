// Copyright 2024 The Instrie Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package x86trie

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// LW is a one-bit VEX field value that may also be "don't care".
type LW string

const (
	lwUnset LW = ""
	lw0     LW = "0"
	lw1     LW = "1"
	lwIG    LW = "IG"
)

var escapeNames = []string{"", "0f", "0f38", "0f3a"}
var prefixNames = []string{"NP", "66", "F3", "F2"}

// prefixSpec is an opcode's mandatory legacy or REP-class prefix.
type prefixSpec struct {
	Rep   bool // true: REP-class (TABLE_PREFIX_REP); false: legacy (TABLE_PREFIX)
	Index int  // index into prefixNames
}

// opcExtSpec is a ModR/M-based opcode extension ("/n" or "//xx").
type opcExtSpec struct {
	Is72  bool // true: TABLE72 ("//xx" form); false: TABLE8 ("/n" form)
	Value int  // raw, unshifted value: 0..7, or (for Is72) also 0xc0..0xff
}

// Opcode is the canonical structured form of a parsed opcode pattern
// (§4.2).
type Opcode struct {
	Prefix   *prefixSpec
	Escape   int // index into escapeNames: 0="", 1="0f", 2="0f38", 3="0f3a"
	Opc      int
	OpcExt   *opcExtSpec
	Extended bool
	VEX      bool
	VEXL     LW
	RexW     LW
}

var opcodeRegex = regexp.MustCompile(
	`^(?:(?P<vex>VEX\.)?(?P<legacy>NP|66|F2|F3)\.(?:W(?P<rexw>0|1|IG)\.)?(?:L(?P<vexl>0|1|IG)\.)?` +
		`|R(?P<repprefix>NP|F2|F3)\.)?` +
		`(?P<opcode>(?:[0-9a-f]{2})+)` +
		`(?P<modrm>/[0-7]|//[0-7]|//[c-f][0-9a-f])?` +
		`(?P<extended>\+)?$`)

var opcodeRegexNames = opcodeRegex.SubexpNames()

// ParseOpcode parses an opcode pattern string into its canonical
// structured form, per the grammar of §4.2.
func ParseOpcode(s string) (*Opcode, error) {
	m := opcodeRegex.FindStringSubmatch(s)
	if m == nil {
		return nil, Errorf(0, "opcode %q does not match the opcode grammar", s)
	}

	group := func(name string) string {
		for i, n := range opcodeRegexNames {
			if n == name && m[i] != "" {
				return m[i]
			}
		}
		return ""
	}

	opcodeStr := group("opcode")
	if len(opcodeStr)%2 != 0 {
		return nil, Errorf(0, "opcode %q has an odd number of hex digits", s)
	}

	escapeStr := opcodeStr[:len(opcodeStr)-2]
	escape := -1
	for i, name := range escapeNames {
		if name == escapeStr {
			escape = i
			break
		}
	}
	if escape < 0 {
		return nil, Errorf(0, "opcode %q has an unknown escape map %q", s, escapeStr)
	}

	opcByte, err := strconv.ParseUint(opcodeStr[len(opcodeStr)-2:], 16, 8)
	if err != nil {
		return nil, Errorf(0, "opcode %q has an invalid opcode byte: %v", s, err)
	}

	var opcext *opcExtSpec
	if modrm := group("modrm"); modrm != "" {
		is72 := modrm[1] == '/'
		valStr := modrm[1:]
		if is72 {
			valStr = modrm[2:]
		}
		val, err := strconv.ParseUint(valStr, 16, 8)
		if err != nil {
			return nil, Errorf(0, "opcode %q has an invalid ModR/M extension: %v", s, err)
		}
		opcext = &opcExtSpec{Is72: is72, Value: int(val)}
	}

	extended := group("extended") != ""
	if extended && opcext != nil && !opcext.Is72 {
		return nil, Errorf(0, "opcode %q: invalid opcode extension for an extended opcode", s)
	}

	var prefix *prefixSpec
	if legacy := group("legacy"); legacy != "" {
		prefix = &prefixSpec{Rep: false, Index: indexOf(prefixNames, legacy)}
	} else if rep := group("repprefix"); rep != "" {
		prefix = &prefixSpec{Rep: true, Index: indexOf(prefixNames, rep)}
	}

	return &Opcode{
		Prefix:   prefix,
		Escape:   escape,
		Opc:      int(opcByte),
		OpcExt:   opcext,
		Extended: extended,
		VEX:      group("vex") != "",
		VEXL:     LW(group("vexl")),
		RexW:     LW(group("rexw")),
	}, nil
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}

// String reconstructs the opcode pattern syntax for o. It round-trips
// with ParseOpcode: ParseOpcode(o.String()) yields an equal Opcode.
func (o *Opcode) String() string {
	var b strings.Builder
	if o.Prefix != nil {
		if o.Prefix.Rep {
			b.WriteByte('R')
			b.WriteString(prefixNames[o.Prefix.Index])
			b.WriteByte('.')
		} else {
			if o.VEX {
				b.WriteString("VEX.")
			}
			b.WriteString(prefixNames[o.Prefix.Index])
			b.WriteByte('.')
			if o.RexW != lwUnset {
				fmt.Fprintf(&b, "W%s.", o.RexW)
			}
			if o.VEXL != lwUnset {
				fmt.Fprintf(&b, "L%s.", o.VEXL)
			}
		}
	}

	b.WriteString(escapeNames[o.Escape])
	fmt.Fprintf(&b, "%02x", o.Opc)

	if o.OpcExt != nil {
		if o.OpcExt.Is72 {
			b.WriteString("//")
			if o.OpcExt.Value >= 0xc0 {
				fmt.Fprintf(&b, "%02x", o.OpcExt.Value)
			} else {
				fmt.Fprintf(&b, "%x", o.OpcExt.Value)
			}
		} else {
			fmt.Fprintf(&b, "/%x", o.OpcExt.Value)
		}
	}

	if o.Extended {
		b.WriteByte('+')
	}

	return b.String()
}

// PathStep is one (table kind, byte) hop in an expanded trie path.
type PathStep struct {
	Kind EntryKind
	Byte int
}

// Path is a complete route from a root to an INSTR node (§4.2, §4.3).
type Path []PathStep

// ForTrie expands o to the list of concrete trie paths it represents
// (§4.2). A TABLE_VEX level is added only when VEX.W or VEX.L is fixed
// to 0 or 1; a don't-care bit beside a fixed one doubles the path
// count, while IG in both L and W adds no TABLE_VEX level and yields a
// single path.
func (o *Opcode) ForTrie() []Path {
	type group struct {
		kind   EntryKind
		values []int
	}

	vexBit := 0
	if o.VEX {
		vexBit = 1
	}
	groups := []group{
		{KindTableRoot, []int{o.Escape | vexBit<<2}},
		{KindTable256, []int{o.Opc}},
	}

	if o.OpcExt != nil {
		kind := KindTable8
		if o.OpcExt.Is72 {
			kind = KindTable72
		}
		val := o.OpcExt.Value
		if val >= 8 {
			val -= 0xb8
		}
		groups = append(groups, group{kind, []int{val}})
	}

	if o.Extended {
		last := &groups[len(groups)-1]
		base := last.values[0]
		vals := make([]int, 8)
		for i := range vals {
			vals[i] = base + i
		}
		last.values = vals
	}

	if o.Prefix != nil {
		kind := KindTablePrefix
		if o.Prefix.Rep {
			kind = KindTablePrefixRep
		}
		groups = append(groups, group{kind, []int{o.Prefix.Index}})
	}

	if o.RexW == lw0 || o.RexW == lw1 || o.VEXL == lw0 || o.VEXL == lw1 {
		var entries []int
		for _, r := range rexwValues(o.RexW) {
			for _, v := range vexlValues(o.VEXL) {
				entries = append(entries, r+v)
			}
		}
		groups = append(groups, group{KindTableVEX, entries})
	}

	paths := []Path{{}}
	for _, g := range groups {
		next := make([]Path, 0, len(paths)*len(g.values))
		for _, p := range paths {
			for _, v := range g.values {
				np := make(Path, len(p), len(p)+1)
				copy(np, p)
				next = append(next, append(np, PathStep{g.kind, v}))
			}
		}
		paths = next
	}
	return paths
}

func lwOrIG(v LW) LW {
	if v == lwUnset {
		return lwIG
	}
	return v
}

func rexwValues(v LW) []int {
	switch lwOrIG(v) {
	case lw0:
		return []int{0}
	case lw1:
		return []int{1}
	default:
		return []int{0, 1}
	}
}

func vexlValues(v LW) []int {
	switch lwOrIG(v) {
	case lw0:
		return []int{0}
	case lw1:
		return []int{2}
	default:
		return []int{0, 2}
	}
}

// formatPath renders a single expanded path as a human-readable name,
// used to generate stable trie node names (§3: "human-readable path
// names").
func formatPath(path Path) string {
	var prefix, opcode strings.Builder
	for _, step := range path {
		switch step.Kind {
		case KindTableRoot:
			opcode.WriteString(escapeNames[step.Byte&3])
			if step.Byte>>2 != 0 {
				prefix.WriteString("VEX.")
			}
		case KindTable256:
			fmt.Fprintf(&opcode, "%02x", step.Byte)
		case KindTable8, KindTable72:
			fmt.Fprintf(&opcode, "/%x", step.Byte)
		case KindTablePrefix:
			if step.Byte&4 != 0 {
				prefix.WriteString("VEX.")
			}
			prefix.WriteString([]string{"NP.", "66.", "F3.", "F2."}[step.Byte&3])
		case KindTablePrefixRep:
			prefix.WriteString([]string{"RNP.", "??.", "RF3.", "RF2."}[step.Byte&3])
		case KindTableVEX:
			fmt.Fprintf(&prefix, "W%d.L%d.", step.Byte&1, step.Byte>>1)
		}
	}
	return prefix.String() + opcode.String()
}
