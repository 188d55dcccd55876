// Package flatten drains the preprocessor's token stream into a single
// reformatted text buffer plus an ordered list of collected errors.
package flatten

import (
	"github.com/standardbeagle/spp/internal/alloc"
	"github.com/standardbeagle/spp/internal/pp"
	"github.com/standardbeagle/spp/internal/token"
)

// Error is one preprocessing error lifted out of the token stream, in
// arrival order.
type Error struct {
	Message  string
	Filename string // "" when the source had no name
	Line     uint
}

// Result is the outcome of a flatten run. Output holds the reformatted
// source; its backing buffer carries one extra zero byte past the end.
type Result struct {
	Output []byte
	Errors []Error

	alloc alloc.Allocator
	oom   bool
}

// outOfMemoryResult is the shared sentinel returned when any allocation in
// the pass fails: one error, no output.
var outOfMemoryResult = &Result{
	Errors: []Error{{Message: "Out of memory"}},
	oom:    true,
}

// OutOfMemory reports whether this result is the shared allocation-failure
// sentinel.
func (r *Result) OutOfMemory() bool {
	return r.oom
}

// Free releases the output buffer. Idempotent, and a no-op on the shared
// out-of-memory sentinel.
func (r *Result) Free() {
	if r == nil || r.oom {
		return
	}
	if r.alloc != nil && r.Output != nil {
		r.alloc.Free(r.Output)
	}
	r.Output = nil
	r.Errors = nil
}

// Preprocess runs the full pipeline over one translation unit and reformats
// the surviving tokens:
//
//   - raw newline tokens are suppressed; a fresh-line flag carries forward
//   - '{' gets its own line and opens an indent level
//   - '}' closes the level (floored at zero) and gets its own line
//   - ';' ends its line
//   - everything else is separated by indent on a fresh line, one space
//     otherwise
//
// Preprocessing errors never reach the output; they land in Result.Errors in
// arrival order.
func Preprocess(opts pp.Options) *Result {
	if opts.Allocator == nil {
		opts.Allocator = alloc.NewHeap()
	}
	p, err := pp.New(opts)
	if err != nil {
		return outOfMemoryResult
	}
	defer p.Close()

	buf := newBuffer(opts.Allocator)
	var errs []Error
	indent := 0
	freshLine := true

	for {
		tok := p.NextToken()
		if tok.Tag == token.EOI {
			break
		}
		switch tok.Tag {
		case token.PreprocessingError:
			filename, line := p.SourcePosition()
			e := Error{Message: string(tok.Bytes), Line: line}
			if filename != nil {
				e.Filename = *filename
			}
			errs = append(errs, e)

		case token.Newline:
			// the flag carries the newline forward; runs of blank lines
			// collapse to one line break
			if !freshLine {
				if !buf.write(lineEnding) {
					return outOfMemoryResult
				}
				freshLine = true
			}

		case token.Tag('{'):
			if !freshLine && !buf.write(lineEnding) {
				return outOfMemoryResult
			}
			if !buf.writeIndent(indent) || !buf.writeByte('{') || !buf.write(lineEnding) {
				return outOfMemoryResult
			}
			indent++
			freshLine = true

		case token.Tag('}'):
			if indent > 0 {
				indent--
			}
			if !freshLine && !buf.write(lineEnding) {
				return outOfMemoryResult
			}
			if !buf.writeIndent(indent) || !buf.writeByte('}') || !buf.write(lineEnding) {
				return outOfMemoryResult
			}
			freshLine = true

		case token.Tag(';'):
			if !buf.writeByte(';') || !buf.write(lineEnding) {
				return outOfMemoryResult
			}
			freshLine = true

		default:
			if freshLine {
				if !buf.writeIndent(indent) {
					return outOfMemoryResult
				}
			} else if !buf.writeByte(' ') {
				return outOfMemoryResult
			}
			if !buf.write(tok.Bytes) {
				return outOfMemoryResult
			}
			freshLine = false
		}
	}

	if p.OutOfMemory() {
		return outOfMemoryResult
	}
	out := buf.flatten()
	if out == nil {
		return outOfMemoryResult
	}
	return &Result{Output: out, Errors: errs, alloc: opts.Allocator}
}
