// Copyright 2024 The Instrie Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package x86trie

import (
	"errors"
	"fmt"
	"runtime"
)

// Error is a fatal build error raised while parsing the catalog,
// encoding a descriptor, inserting a path into the trie, or laying out
// the compiled table. There is no recoverable error kind: every Error
// aborts the build.
type Error struct {
	Path string // file:line of the Go code where the error originated.
	Line int    // the catalog line number the error relates to, or 0.
	Err  string // the error message.
}

func (err *Error) Error() string {
	if err.Line == 0 {
		return fmt.Sprintf("%s%s", err.Path, err.Err)
	}

	return fmt.Sprintf("%sline %d: %s", err.Path, err.Line, err.Err)
}

// Errorf builds an Error for the given catalog line. If the last
// argument in v is itself an *Error (or wraps one), its location is
// preserved rather than doubled up, so a high-level caller can wrap a
// low-level parse failure without losing where it happened.
func Errorf(line int, format string, v ...any) error {
	if len(v) != 0 {
		last := v[len(v)-1]
		switch e := last.(type) {
		case *Error:
			v[len(v)-1] = e.Err
			ln := e.Line
			if ln == 0 {
				ln = line
			}
			return &Error{
				Path: e.Path,
				Line: ln,
				Err:  fmt.Sprintf(format, v...),
			}
		case error:
			var inner *Error
			if errors.As(e, &inner) {
				path, ln := inner.Path, inner.Line
				if ln == 0 {
					ln = line
				}
				inner.Path = ""
				inner.Line = 0
				return &Error{
					Path: path,
					Line: ln,
					Err:  fmt.Sprintf(format, v...),
				}
			}
		}
	}

	var path string
	_, file, lineno, ok := runtime.Caller(1)
	if ok {
		path = fmt.Sprintf("%s:%d: ", file, lineno)
	}

	return &Error{
		Path: path,
		Line: line,
		Err:  fmt.Sprintf(format, v...),
	}
}
