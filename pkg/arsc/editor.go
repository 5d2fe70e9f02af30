package arsc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yingcaihuang/web-to-app/internal/logger"
)

// ErrNameNotFound is returned when neither encoding holds the old name.
// The table is returned unmodified alongside it.
var ErrNameNotFound = errors.New("app name not found in resource table")

// Strategy identifies which rename pass produced a hit.
type Strategy int

const (
	StrategyNone Strategy = iota
	StrategyExact
	StrategyHeuristic
)

func (s Strategy) String() string {
	switch s {
	case StrategyExact:
		return "exact"
	case StrategyHeuristic:
		return "heuristic"
	default:
		return "none"
	}
}

// Result summarizes a rename.
type Result struct {
	Strategy Strategy
	// Encoding is the encoding of an exact hit. Heuristic hits may span both.
	Encoding Encoding
	// Replacements counts substituted spans per encoding.
	Replacements map[Encoding]int
}

// Total returns the number of substituted spans across encodings.
func (r Result) Total() int {
	n := 0
	for _, c := range r.Replacements {
		n += c
	}

	return n
}

// RenameApp replaces the display name oldName with newName in table and
// returns a new slice of identical length. Passes, in order: exact match in
// UTF8, exact match in UTF16LE, then a NameMarker scan in both encodings when
// oldName starts with the marker literal.
func RenameApp(ctx context.Context, table []byte, oldName, newName string) ([]byte, Result, error) {
	if oldName == "" {
		return table, Result{}, fmt.Errorf("%w: empty old name", ErrNameNotFound)
	}

	for _, enc := range Encodings {
		out, n, err := replaceExact(table, oldName, newName, enc)
		if err != nil {
			return table, Result{}, err
		}
		if n > 0 {
			logger.DebugKV(ctx, "app name replaced", "strategy", StrategyExact, "encoding", enc, "count", n)

			return out, Result{
				Strategy:     StrategyExact,
				Encoding:     enc,
				Replacements: map[Encoding]int{enc: n},
			}, nil
		}
		logger.DebugKV(ctx, "exact app name not found", "encoding", enc)
	}

	if !strings.HasPrefix(oldName, NameMarker.Literal) {
		return table, Result{}, fmt.Errorf("%w: %q", ErrNameNotFound, oldName)
	}

	out := bytes.Clone(table)
	res := Result{Strategy: StrategyHeuristic, Replacements: map[Encoding]int{}}

	for _, enc := range Encodings {
		n, err := replaceMarker(out, NameMarker, newName, enc)
		if err != nil {
			return table, Result{}, err
		}
		logger.DebugKV(ctx, "marker scan", "encoding", enc, "count", n)
		if n > 0 {
			res.Replacements[enc] = n
			res.Encoding = enc
		}
	}

	if res.Total() == 0 {
		return table, Result{}, fmt.Errorf("%w: %q (marker scan found no span)", ErrNameNotFound, oldName)
	}

	return out, res, nil
}

// replaceExact substitutes every non-overlapping occurrence of oldName in enc
// with newName fitted to the same byte length.
func replaceExact(table []byte, oldName, newName string, enc Encoding) ([]byte, int, error) {
	pattern, err := enc.Encode(oldName)
	if err != nil {
		return nil, 0, err
	}
	if !bytes.Contains(table, pattern) {
		return table, 0, nil
	}

	repl, err := Fit(newName, len(pattern), enc)
	if err != nil {
		return nil, 0, err
	}

	out := bytes.Clone(table)

	return out, replaceAll(out, pattern, repl), nil
}

// replaceMarker finds every m.Literal immediately followed by at least one
// filler character and overwrites literal plus run with newName.
func replaceMarker(buf []byte, m Marker, newName string, enc Encoding) (int, error) {
	literal, err := m.LiteralBytes(enc)
	if err != nil {
		return 0, err
	}
	filler, err := m.FillerBytes(enc)
	if err != nil {
		return 0, err
	}

	count := 0
	for i := 0; i < len(buf); {
		j := bytes.Index(buf[i:], literal)
		if j < 0 {
			break
		}
		start := i + j
		end := start + len(literal)

		run := 0
		for bytes.HasPrefix(buf[end:], filler) {
			end += len(filler)
			run++
		}
		if run == 0 {
			i = start + len(literal)

			continue
		}

		repl, err := Fit(newName, end-start, enc)
		if err != nil {
			return count, err
		}
		copy(buf[start:end], repl)
		count++
		i = end
	}

	return count, nil
}

// replaceAll overwrites non-overlapping occurrences of pattern in buf with
// repl, which must have the same length.
func replaceAll(buf, pattern, repl []byte) int {
	if len(pattern) == 0 || len(pattern) != len(repl) {
		return 0
	}

	n := 0
	for i := 0; i <= len(buf)-len(pattern); {
		j := bytes.Index(buf[i:], pattern)
		if j < 0 {
			break
		}
		copy(buf[i+j:], repl)
		n++
		i += j + len(pattern)
	}

	return n
}
