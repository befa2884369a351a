package ingest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"iter"
)

// maxLineSize bounds a single NDJSON record.
const maxLineSize = 4 << 20

// Source decodes one JSON value of type T per non-blank line.
type Source[T any] struct {
	r         io.Reader
	onInvalid func(line int, err error)
	err       error
	line      int
}

// SourceOption configures a Source.
type SourceOption func(*sourceOptions)

type sourceOptions struct {
	onInvalid func(line int, err error)
}

// SkipInvalid reports each malformed line to fn and keeps decoding the
// lines after it.
func SkipInvalid(fn func(line int, err error)) SourceOption {
	return func(o *sourceOptions) { o.onInvalid = fn }
}

// NewSource returns a Source reading from r.
func NewSource[T any](r io.Reader, opts ...SourceOption) *Source[T] {
	var o sourceOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &Source[T]{r: r, onInvalid: o.onInvalid}
}

// All yields the decoded records lazily. Without SkipInvalid decoding stops
// at the first malformed line; Err reports it once the sequence is
// exhausted. Read errors always stop decoding.
func (s *Source[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		sc := bufio.NewScanner(s.r)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for sc.Scan() {
			s.line++
			b := bytes.TrimSpace(sc.Bytes())
			if len(b) == 0 {
				continue
			}
			var v T
			if err := json.Unmarshal(b, &v); err != nil {
				if s.onInvalid != nil {
					s.onInvalid(s.line, err)
					continue
				}
				s.err = fmt.Errorf("line %d: %w", s.line, err)
				return
			}
			if !yield(v) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			s.err = fmt.Errorf("line %d: %w", s.line+1, err)
		}
	}
}

// Err returns the first read or decode error.
func (s *Source[T]) Err() error { return s.err }

// Lines returns the number of lines consumed so far.
func (s *Source[T]) Lines() int { return s.line }
