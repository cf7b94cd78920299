// Copyright 2024 The Instrie Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package x86trie

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

var ignoredStats Stats

// Stats accumulates node-kind counts and other build statistics.
// These are reported to the operator but, per §4.4, never affect the
// output: a build with statistics disabled (stats == nil) produces an
// identical table.
type Stats struct {
	t0 time.Time

	Lines        int
	Paths        int
	NodesCreated int
	NodesMerged  int
	KindCounts   map[EntryKind]int
}

// NewStats returns a ready-to-use Stats tracker.
func NewStats() *Stats {
	return &Stats{KindCounts: map[EntryKind]int{}}
}

func (s *Stats) notnil() *Stats {
	if s != nil {
		return s
	}
	return &ignoredStats
}

func (s *Stats) Start()                  { s.notnil().t0 = time.Now() }
func (s *Stats) Line()                   { s.notnil().Lines++ }
func (s *Stats) Path()                   { s.notnil().Paths++ }
func (s *Stats) NodeCreated(k EntryKind) { s = s.notnil(); s.NodesCreated++; s.countKind(k, 1) }
func (s *Stats) NodeMerged(k EntryKind)  { s = s.notnil(); s.NodesMerged++; s.countKind(k, -1) }

func (s *Stats) countKind(k EntryKind, delta int) {
	if s.KindCounts == nil {
		s.KindCounts = map[EntryKind]int{}
	}
	s.KindCounts[k] += delta
}

func (s *Stats) String() string {
	if s == nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Processed %d catalog lines.\n", s.Lines)
	fmt.Fprintf(&b, "Expanded %d opcode paths.\n", s.Paths)
	fmt.Fprintf(&b, "Created %d trie nodes.\n", s.NodesCreated)
	fmt.Fprintf(&b, "Deduplication merged %d nodes.\n", s.NodesMerged)

	kinds := make([]EntryKind, 0, len(s.KindCounts))
	for k := range s.KindCounts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	for _, k := range kinds {
		fmt.Fprintf(&b, "  %s: %d surviving\n", k, s.KindCounts[k])
	}

	if !s.t0.IsZero() {
		fmt.Fprintf(&b, "Runtime: %s.\n", time.Since(s.t0).Round(time.Millisecond))
	}

	return b.String()
}
