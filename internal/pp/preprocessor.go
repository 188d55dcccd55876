// Package pp implements the preprocessor core: a byte-at-a-time lexer over an
// include stack, conditional-compilation state, a define table, and the
// pull-based token stream handed to downstream consumers.
package pp

import (
	"errors"
	"fmt"

	"github.com/standardbeagle/spp/internal/alloc"
	"github.com/standardbeagle/spp/internal/token"
)

// failureBufLen bounds a latched error message, mirroring the fixed failure
// buffer of the wire-compatible implementations (255 content bytes plus the
// reserved terminator).
const failureBufLen = 256

// ErrOutOfMemory is returned by New when the allocator cannot satisfy the
// initial allocations.
var ErrOutOfMemory = errors.New("out of memory")

// IncludeKind distinguishes the two #include spellings.
type IncludeKind int

const (
	// IncludeLocal is a quoted include: #include "file".
	IncludeLocal IncludeKind = iota
	// IncludeSystem is an angle-bracket include: #include <file>.
	IncludeSystem
)

// Resolver is the include capability the core consumes. Open returns the
// included unit's bytes; parentFilename is the name of the including unit
// (possibly "") so resolvers can disambiguate relative includes. Close gives
// back a buffer previously returned by Open once its frame pops.
type Resolver interface {
	Open(kind IncludeKind, filename, parentFilename string) ([]byte, error)
	Close(source []byte)
}

// Define is one predefined macro binding supplied at start.
type Define struct {
	Name  string
	Value string
}

// Options configures a Preprocessor.
type Options struct {
	Filename   string          // name of the root translation unit; may be ""
	Source     []byte          // root source bytes, owned by the caller
	Resolver   Resolver        // nil makes every #include fail
	Predefines []Define        // inserted before the first token is pulled
	Allocator  alloc.Allocator // nil selects the heap allocator
}

// Preprocessor is a single-threaded pull transducer from source bytes to
// preprocessed tokens. Multiple instances may run concurrently; one instance
// must be used from one goroutine at a time.
type Preprocessor struct {
	alloc    alloc.Allocator
	resolver Resolver

	includeStack    *includeState
	defines         [defineTableSize]*define
	filenameCache   *cachedFilename
	conditionalPool *conditional

	failBuf     [failureBufLen]byte
	failLen     int
	isFail      bool
	outOfMemory bool
}

// New starts a preprocessor over the given root unit. Duplicate predefines
// latch an error that surfaces as the first pulled token.
func New(opts Options) (*Preprocessor, error) {
	a := opts.Allocator
	if a == nil {
		a = alloc.NewHeap()
	}
	p := &Preprocessor{alloc: a, resolver: opts.Resolver}

	for _, d := range opts.Predefines {
		if err := p.addDefine([]byte(d.Name), []byte(d.Value)); err != nil {
			p.failf("%q already defined", d.Name)
		}
		if p.outOfMemory {
			return nil, ErrOutOfMemory
		}
	}

	if !p.pushInclude(opts.Filename, opts.Source, false) {
		return nil, ErrOutOfMemory
	}
	return p, nil
}

// Close tears the preprocessor down: every open include frame pops (returning
// resolver-owned buffers), the define table clears, and the filename cache
// and conditional pool drain. The instance must not be used afterwards.
func (p *Preprocessor) Close() {
	for p.includeStack != nil {
		p.popInclude()
	}
	p.freeDefines()
	p.freeFilenameCache()
	p.conditionalPool = nil
}

// OutOfMemory reports the latched allocation-failure state. Once set, the
// token stream drains to EOI.
func (p *Preprocessor) OutOfMemory() bool {
	return p.outOfMemory
}

// SourcePosition reports the interned filename (nil when the stack is empty
// or the unit is unnamed) and current line of the unit being lexed.
func (p *Preprocessor) SourcePosition() (filename *string, line uint) {
	if s := p.includeStack; s != nil {
		return s.filename, s.line
	}
	return nil, 0
}

// NextToken advances the stream and returns the next surviving lexeme. A
// previously latched error is flushed first as a PREPROCESSING_ERROR token;
// end of all input is a token with tag EOI and nil bytes.
func (p *Preprocessor) NextToken() token.Token {
	for {
		if p.isFail {
			p.isFail = false
			return token.Token{Bytes: p.failBuf[:p.failLen], Tag: token.PreprocessingError}
		}
		if p.outOfMemory {
			return token.Token{Tag: token.EOI}
		}
		s := p.includeStack
		if s == nil {
			return token.Token{Tag: token.EOI}
		}

		tag := s.nextToken()

		switch tag {
		case token.EOI:
			if cond := s.conditionalStack; cond != nil {
				// one error per unclosed frame, kind taken from the frame
				p.failf("Unterminated %s", cond.ctype.DirectiveName())
				s.conditionalStack = cond.next
				cond.next = nil
				p.putConditionals(cond)
				continue
			}
			p.popInclude()
			continue

		case token.IncompleteComment:
			p.fail("Incomplete multiline comment")
			continue

		// Conditional directives run even in skipping regions; nesting has
		// to be tracked to find the matching #endif.
		case token.PPIfdef:
			p.handleIfdef(s, token.PPIfdef)
			continue
		case token.PPIfndef:
			p.handleIfdef(s, token.PPIfndef)
			continue
		case token.PPElse:
			p.handleElse(s)
			continue
		case token.PPEndif:
			p.handleEndif(s)
			continue
		case token.PPIf:
			p.handleIf(s)
			continue
		case token.PPElif:
			p.handleElif(s)
			continue
		}

		if s.currentSkipping() {
			continue
		}

		switch tag {
		case token.PPInclude:
			p.handleInclude(s)
			continue
		case token.PPLine:
			p.handleLine(s)
			continue
		case token.PPDefine:
			p.handleDefine(s)
			continue
		case token.PPUndef:
			p.handleUndef(s)
			continue
		case token.PPError:
			p.handleError(s)
			continue
		case token.Unknown:
			if b := s.tokenBytes(); len(b) > 0 && b[0] == '#' {
				p.failUnknownDirective(b)
				continue
			}
		}

		return token.Token{Bytes: s.tokenBytes(), Tag: tag}
	}
}

// fail latches an error for delivery as the next pulled token. At most one
// error is pending at a time; the dispatcher flushes it before lexing on.
func (p *Preprocessor) fail(msg string) {
	p.failLen = copy(p.failBuf[:failureBufLen-1], msg)
	p.isFail = true
}

func (p *Preprocessor) failf(format string, args ...any) {
	p.fail(fmt.Sprintf(format, args...))
}

// allocBytes requests n bytes from the allocator capability, latching the
// out-of-memory state on failure.
func (p *Preprocessor) allocBytes(n int) []byte {
	b := p.alloc.Alloc(n)
	if b == nil {
		p.outOfMemory = true
	}
	return b
}
