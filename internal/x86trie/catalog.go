// Copyright 2024 The Instrie Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package x86trie

import (
	"bufio"
	"io"
	"strings"
)

// CatalogEntry is one parsed, non-comment, non-blank catalog line
// (§6): a parsed opcode pattern paired with its logical descriptor.
type CatalogEntry struct {
	Opcode *Opcode
	Desc   *InstrDesc
	Line   int
}

// validFlags is the closed flag vocabulary of §3.
var validFlags = map[string]bool{
	"DEF64":       true,
	"SIZE_8":      true,
	"INSTR_WIDTH": true,
	"LOCK":        true,
	"VSIB":        true,
	"IMM_8":       true,
	"ONLY32":      true,
	"ONLY64":      true,
}

// ParseCatalog reads a catalog file (§6): UTF-8 text, one instruction
// per non-blank line, '#' introduces a full-line comment. Each line is
// "<opcode-pattern> <encoding-form> <op0> <op1> <op2> <op3> <mnemonic>
// [<flag>...]" with '-' as the placeholder for an absent operand.
func ParseCatalog(r io.Reader) ([]CatalogEntry, error) {
	var entries []CatalogEntry

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		entry, err := parseCatalogLine(line, lineNo)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

func parseCatalogLine(line string, lineNo int) (CatalogEntry, error) {
	fields := strings.Fields(line)
	if len(fields) < 7 {
		return CatalogEntry{}, Errorf(lineNo, "too few fields: want opcode, encoding, 4 operands, mnemonic, got %d", len(fields))
	}

	opcodeStr, encoding, mnemonic := fields[0], fields[1], fields[6]
	operandStrs := fields[2:6]
	flagStrs := fields[7:]

	opc, err := ParseOpcode(opcodeStr)
	if err != nil {
		return CatalogEntry{}, Errorf(lineNo, "%v", err)
	}

	var operands []OperandKind
	for _, opStr := range operandStrs {
		if opStr == "-" {
			continue
		}
		kind, ok := Kinds[opStr]
		if !ok {
			return CatalogEntry{}, Errorf(lineNo, "unknown operand kind %q", opStr)
		}
		operands = append(operands, kind)
	}

	flags := make(map[string]bool, len(flagStrs))
	for _, f := range flagStrs {
		if !validFlags[f] {
			return CatalogEntry{}, Errorf(lineNo, "unknown flag %q", f)
		}
		flags[f] = true
	}

	return CatalogEntry{
		Opcode: opc,
		Desc: &InstrDesc{
			Mnemonic: mnemonic,
			Encoding: encoding,
			Operands: operands,
			Flags:    flags,
		},
		Line: lineNo,
	}, nil
}
