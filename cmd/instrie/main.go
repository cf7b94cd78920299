// Copyright 2024 The Instrie Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Command instrie compiles a flat text instruction catalog into a
// packed decision trie and writes it out as generated Go source for a
// runtime decoder.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"firefly-os.dev/tools/instrie/internal/compile"
	"firefly-os.dev/tools/instrie/internal/x86trie"
)

var program = filepath.Base(os.Args[0])

func init() {
	log.SetFlags(0)
	log.SetOutput(os.Stderr)
	log.SetPrefix(program + ": ")
}

func main() {
	var want32, want64 bool
	var output, pkg string
	flag.BoolVar(&want32, "32", false, "Build the 32-bit mode root.")
	flag.BoolVar(&want64, "64", false, "Build the 64-bit mode root.")
	flag.StringVar(&output, "out", "", "Path to the generated Go source file.")
	flag.StringVar(&pkg, "pkg", "decode", "Package name for the generated file.")

	flag.Usage = func() {
		log.Printf("Usage:\n  %s [OPTIONS] CATALOG\n\n", program)
		flag.PrintDefaults()
		os.Exit(2)
	}

	flag.Parse()

	if !want32 && !want64 {
		log.Println("at least one of -32 or -64 is required")
		flag.Usage()
	}
	if output == "" {
		log.Println("-out is required")
		flag.Usage()
	}
	if flag.NArg() != 1 {
		log.Println("expected exactly one catalog path")
		flag.Usage()
	}

	var modes []int
	if want32 {
		modes = append(modes, 32)
	}
	if want64 {
		modes = append(modes, 64)
	}

	if err := run(flag.Arg(0), output, pkg, modes); err != nil {
		log.Fatal(err)
	}
}

func run(catalogPath, output, pkg string, modes []int) error {
	raw, err := os.ReadFile(catalogPath)
	if err != nil {
		return err
	}

	entries, err := x86trie.ParseCatalog(strings.NewReader(string(raw)))
	if err != nil {
		return fmt.Errorf("%s: %w", catalogPath, err)
	}

	stats := x86trie.NewStats()
	stats.Start()

	result, err := x86trie.BuildTables(entries, modes, stats)
	if err != nil {
		return fmt.Errorf("%s: %w", catalogPath, err)
	}

	command := program + " " + strings.Join(os.Args[1:], " ")
	generated, err := compile.Render(command, pkg, result, modes)
	if err != nil {
		return err
	}

	if err := os.WriteFile(output, generated, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}

	fmt.Fprint(os.Stderr, stats.String())
	return nil
}
