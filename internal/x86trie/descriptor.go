// Copyright 2024 The Instrie Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package x86trie

import "sort"

// instrFlags is the logical (unpacked) form of the 48-bit encoded
// descriptor record of §3. Index fields already carry the XOR-3
// convention baked in by the encoding-form table below, exactly as
// spec.md §3 describes: raw slot index x is stored as x^3, and 0 means
// "slot not used".
type instrFlags struct {
	modrmIdx   int
	modregIdx  int
	vexregIdx  int
	zeroregIdx int
	immIdx     int
	zeroregVal int
	lock       int
	immControl int
	vsib       int
	op0Size    int
	op1Size    int
	op2Size    int
	op3Size    int
	size8      int
	sized64    int
	sizeFix1   int
	sizeFix2   int
	instrWidth int
	op0Regty   int
	op1Regty   int
	op2Regty   int
}

// encodingForms is the closed 28-entry table of named encoding forms
// (§3: "one of a closed set of 31 names such as NP, M, MR, RM, RVMI,
// MVR, FD, D"). Each entry fixes which operand slot is encoded where;
// step 1 of the encoder algorithm (§4.1) looks this up without
// inspecting the operand list itself.
var encodingForms = map[string]instrFlags{
	"NP":  {},
	"M":   {modrmIdx: 0 ^ 3},
	"M1":  {modrmIdx: 0 ^ 3, immIdx: 1 ^ 3, immControl: 1},
	"MI":  {modrmIdx: 0 ^ 3, immIdx: 1 ^ 3, immControl: 4},
	"MC":  {modrmIdx: 0 ^ 3, zeroregIdx: 1 ^ 3, zeroregVal: 1},
	"MR":  {modrmIdx: 0 ^ 3, modregIdx: 1 ^ 3},
	"RM":  {modrmIdx: 1 ^ 3, modregIdx: 0 ^ 3},
	"RMA": {modrmIdx: 1 ^ 3, modregIdx: 0 ^ 3, zeroregIdx: 2 ^ 3},
	"MRI": {modrmIdx: 0 ^ 3, modregIdx: 1 ^ 3, immIdx: 2 ^ 3, immControl: 4},
	"RMI": {modrmIdx: 1 ^ 3, modregIdx: 0 ^ 3, immIdx: 2 ^ 3, immControl: 4},
	"MRC": {modrmIdx: 0 ^ 3, modregIdx: 1 ^ 3, zeroregIdx: 2 ^ 3, zeroregVal: 1},
	"I":   {immIdx: 0 ^ 3, immControl: 4},
	"IA":  {zeroregIdx: 0 ^ 3, immIdx: 1 ^ 3, immControl: 4},
	"O":   {modregIdx: 0 ^ 3},
	"OI":  {modregIdx: 0 ^ 3, immIdx: 1 ^ 3, immControl: 4},
	"OA":  {modregIdx: 0 ^ 3, zeroregIdx: 1 ^ 3},
	"AO":  {modregIdx: 1 ^ 3, zeroregIdx: 0 ^ 3},
	"A":   {zeroregIdx: 0 ^ 3},
	"D":   {immIdx: 0 ^ 3, immControl: 6},
	"FD":  {zeroregIdx: 0 ^ 3, immIdx: 1 ^ 3, immControl: 2},
	"TD":  {zeroregIdx: 1 ^ 3, immIdx: 0 ^ 3, immControl: 2},

	"RVM":  {modrmIdx: 2 ^ 3, modregIdx: 0 ^ 3, vexregIdx: 1 ^ 3},
	"RVMI": {modrmIdx: 2 ^ 3, modregIdx: 0 ^ 3, vexregIdx: 1 ^ 3, immIdx: 3 ^ 3, immControl: 4},
	"RVMR": {modrmIdx: 2 ^ 3, modregIdx: 0 ^ 3, vexregIdx: 1 ^ 3, immIdx: 3 ^ 3, immControl: 3},
	"RMV":  {modrmIdx: 1 ^ 3, modregIdx: 0 ^ 3, vexregIdx: 2 ^ 3},
	"VM":   {modrmIdx: 1 ^ 3, vexregIdx: 0 ^ 3},
	"VMI":  {modrmIdx: 1 ^ 3, vexregIdx: 0 ^ 3, immIdx: 2 ^ 3, immControl: 4},
	"MVR":  {modrmIdx: 0 ^ 3, modregIdx: 2 ^ 3, vexregIdx: 1 ^ 3},
}

// InstrDesc is the logical (unencoded) instruction descriptor of §3: a
// mnemonic, an encoding form, its operand list, and a set of boolean
// flags.
type InstrDesc struct {
	Mnemonic string
	Encoding string
	Operands []OperandKind
	Flags    map[string]bool
}

func (d *InstrDesc) hasFlag(name string) bool { return d.Flags[name] }

// EncodedDesc is the physical (packed) form of an InstrDesc: three
// little-endian 16-bit words holding the 48-bit record, plus the
// mnemonic it should be tagged with once the mnemonic pool is built.
type EncodedDesc struct {
	Mnemonic            string
	Word0, Word1, Word2 uint16
}

// sizeCode normalises an OperandKind's size to the range {-3,-2,0..6}
// described by §4.1 step 2.
func sizeCode(sz int) int {
	switch sz {
	case 0, 10:
		return 0
	case 1:
		return 1
	case 2:
		return 2
	case 4:
		return 3
	case 8:
		return 4
	case 16:
		return 5
	case 32:
		return 6
	case SZOp:
		return -2
	case SZVec:
		return -3
	default:
		return 0
	}
}

// Encode packs d into its physical form, per the algorithm of §4.1.
func (d *InstrDesc) Encode() (EncodedDesc, error) {
	base, ok := encodingForms[d.Encoding]
	if !ok {
		return EncodedDesc{}, Errorf(0, "unknown encoding form %q", d.Encoding)
	}
	f := base

	// Step 2: compute operand size slots.
	seen := map[int]bool{}
	var distinct []int
	for _, op := range d.Operands {
		c := sizeCode(op.Size)
		if !seen[c] {
			seen[c] = true
			distinct = append(distinct, c)
		}
	}

	var fixed []int
	for _, c := range distinct {
		if c >= 0 {
			fixed = append(fixed, c)
		}
	}
	// Stable sort: codes in 1..4 come second.
	sort.SliceStable(fixed, func(i, j int) bool {
		return !inOneToFour(fixed[i]) && inOneToFour(fixed[j])
	})

	if len(fixed) > 2 {
		return EncodedDesc{}, Errorf(0, "invalid fixed operand sizes: %v", fixed)
	}
	if len(fixed) == 2 && !inOneToFour(fixed[1]) {
		return EncodedDesc{}, Errorf(0, "invalid fixed operand sizes: %v", fixed)
	}

	sizes := [4]int{1, 1, -2, -3}
	if len(fixed) >= 1 {
		sizes[0] = fixed[0]
	}
	if len(fixed) >= 2 {
		sizes[1] = fixed[1]
	}
	f.sizeFix1 = sizes[0]
	f.sizeFix2 = sizes[1] - 1

	sizeIndex := func(c int) (int, bool) {
		for i, s := range sizes {
			if s == c {
				return i, true
			}
		}
		return 0, false
	}

	opSizeSlots := [4]*int{&f.op0Size, &f.op1Size, &f.op2Size, &f.op3Size}
	opRegtySlots := [3]*int{&f.op0Regty, &f.op1Regty, &f.op2Regty}

	for i, op := range d.Operands {
		if i >= 4 {
			break
		}
		c := sizeCode(op.Size)
		idx, ok := sizeIndex(c)
		if !ok {
			return EncodedDesc{}, Errorf(0, "operand %d size %v not among %v", i, c, sizes)
		}
		*opSizeSlots[i] = idx

		regty := regtyFor(op.Cat)
		if i < 3 {
			*opRegtySlots[i] = regty
		} else if regty != regtyOther && regty != regtyValues[CatXMM] {
			return EncodedDesc{}, Errorf(0, "operand 3 has invalid register type %v, must be XMM or other", op.Cat)
		}
	}

	// Step 4: miscellaneous flags.
	if d.hasFlag("DEF64") {
		f.sized64 = 1
	}
	if d.hasFlag("SIZE_8") {
		f.size8 = 1
	}
	if d.hasFlag("INSTR_WIDTH") {
		f.instrWidth = 1
	}
	if d.hasFlag("LOCK") {
		f.lock = 1
	}
	if d.hasFlag("VSIB") {
		f.vsib = 1
	}

	// Step 5: immediate width refinement.
	if f.immControl >= 4 {
		var immOp *OperandKind
		for i := range d.Operands {
			if d.Operands[i].Cat == CatImm {
				immOp = &d.Operands[i]
				break
			}
		}
		if immOp == nil {
			return EncodedDesc{}, Errorf(0, "encoding %q expects an immediate operand", d.Encoding)
		}
		if d.hasFlag("IMM_8") || immOp.Size == 1 || (immOp.Size == SZOp && f.size8 == 1) {
			f.immControl |= 1
		}
	}

	w0, w1, w2 := f.encode()
	return EncodedDesc{Mnemonic: d.Mnemonic, Word0: w0, Word1: w1, Word2: w2}, nil
}

func inOneToFour(x int) bool { return x >= 1 && x <= 4 }

// encode packs the instrFlags bit-struct into three little-endian
// 16-bit words, LSB first, per the field layout of §3. Each field is
// masked to its declared width before being shifted into place.
func (f *instrFlags) encode() (uint16, uint16, uint16) {
	var acc uint64
	put := func(val, width, offset int) {
		mask := uint64(1)<<uint(width) - 1
		acc |= (uint64(val) & mask) << uint(offset)
	}

	put(f.modrmIdx, 2, 0)
	put(f.modregIdx, 2, 2)
	put(f.vexregIdx, 2, 4)
	put(f.zeroregIdx, 2, 6)
	put(f.immIdx, 2, 8)
	put(f.zeroregVal, 1, 10)
	put(f.lock, 1, 11)
	put(f.immControl, 3, 12)
	put(f.vsib, 1, 15)
	put(f.op0Size, 2, 16)
	put(f.op1Size, 2, 18)
	put(f.op2Size, 2, 20)
	put(f.op3Size, 2, 22)
	put(f.size8, 1, 24)
	put(f.sized64, 1, 25)
	put(f.sizeFix1, 3, 26)
	put(f.sizeFix2, 2, 29)
	put(f.instrWidth, 1, 31)
	put(f.op0Regty, 3, 32)
	put(f.op1Regty, 3, 35)
	put(f.op2Regty, 3, 38)
	// bits 41..47 are _unused and left zero.

	return uint16(acc), uint16(acc >> 16), uint16(acc >> 32)
}
