// Copyright 2024 The Instrie Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package x86trie

import "testing"

func TestEntryKindFanOut(t *testing.T) {
	want := map[EntryKind]int{
		KindTableRoot:      8,
		KindTable256:       256,
		KindTable8:         8,
		KindTable72:        72,
		KindTablePrefix:    4,
		KindTableVEX:       4,
		KindTablePrefixRep: 4,
	}
	for k, n := range want {
		if got := fanOut[k]; got != n {
			t.Errorf("fanOut[%s] = %d, want %d", k, got, n)
		}
	}
}

func TestEntryKindStringUnknown(t *testing.T) {
	if got := EntryKind(42).String(); got == "" {
		t.Error("String() of an unknown kind should not be empty")
	}
}
