package pp

import (
	"bytes"
	"strconv"

	"github.com/standardbeagle/spp/internal/diag"
	"github.com/standardbeagle/spp/internal/token"
)

// requireNewline peeks at the next lexeme and rewinds. A directive is
// properly terminated by a newline, end-of-input, or an incomplete comment;
// the terminator itself is redelivered as an ordinary token afterwards.
func (s *includeState) requireNewline() bool {
	tag := s.nextToken()
	s.pushback()
	return tag == token.Newline || tag == token.EOI || tag == token.IncompleteComment
}

func (p *Preprocessor) handleIfdef(s *includeState, ctype token.Tag) {
	if s.nextToken() != token.Identifier {
		p.failf("Invalid %s directive", ctype.DirectiveName())
		return
	}
	sym := s.tokenBytes()
	line := s.line
	if !s.requireNewline() {
		p.failf("Invalid %s directive", ctype.DirectiveName())
		return
	}

	cond := p.getConditional()
	cond.ctype = ctype
	cond.linenum = line

	parent := s.conditionalStack
	if parent != nil && parent.skipping {
		// an outer skip dominates: nothing in this group may ever run
		cond.skipping = true
		cond.chosen = true
	} else {
		found := p.findDefine(sym) != nil
		if ctype == token.PPIfdef {
			cond.skipping = !found
		} else {
			cond.skipping = found
		}
		cond.chosen = !cond.skipping
	}
	cond.next = parent
	s.conditionalStack = cond
}

func (p *Preprocessor) handleElse(s *includeState) {
	cond := s.conditionalStack
	switch {
	case !s.requireNewline():
		p.fail("Invalid #else directive")
	case cond == nil:
		p.fail("#else without #if")
	case cond.ctype == token.PPElse:
		p.fail("#else after #else")
	default:
		// the else arm runs iff no earlier arm ran
		cond.ctype = token.PPElse
		cond.skipping = cond.chosen
		cond.chosen = true
	}
}

func (p *Preprocessor) handleEndif(s *includeState) {
	cond := s.conditionalStack
	switch {
	case !s.requireNewline():
		p.fail("Invalid #endif directive")
	case cond == nil:
		p.fail("#endif without #if")
	default:
		s.conditionalStack = cond.next
		cond.next = nil
		p.putConditionals(cond)
	}
}

// handleIf tracks an #if group without evaluating its expression: the whole
// group is skipped so its #endif still balances, and an occurrence outside a
// skipped region reports the limitation.
func (p *Preprocessor) handleIf(s *includeState) {
	if !s.currentSkipping() {
		p.fail("#if expressions are not supported")
	}
	cond := p.getConditional()
	cond.ctype = token.PPIf
	cond.linenum = s.line
	cond.skipping = true
	cond.chosen = true
	cond.next = s.conditionalStack
	s.conditionalStack = cond
}

func (p *Preprocessor) handleElif(s *includeState) {
	cond := s.conditionalStack
	switch {
	case cond == nil:
		p.fail("#elif without #if")
	case cond.next != nil && cond.next.skipping:
		// the whole group sits in a skipped region
	default:
		p.fail("#elif expressions are not supported")
	}
}

func (p *Preprocessor) handleInclude(s *includeState) {
	var kind IncludeKind
	var filename string

	switch s.nextToken() {
	case token.StringLiteral:
		b := s.tokenBytes()
		filename = string(b[1 : len(b)-1])
		kind = IncludeLocal
	case token.Tag('<'):
		// raw scan to the closing angle bracket; the lexer has no tag for
		// this spelling
		src := s.source
		n := len(src)
		start := s.cursor
		for s.cursor < n && src[s.cursor] != '>' && src[s.cursor] != '\n' {
			s.cursor++
		}
		if s.cursor >= n || src[s.cursor] != '>' {
			p.fail("Invalid #include directive")
			return
		}
		filename = string(src[start:s.cursor])
		s.cursor++
		kind = IncludeSystem
	default:
		p.fail("Invalid #include directive")
		return
	}
	if !s.requireNewline() {
		p.fail("Invalid #include directive")
		return
	}

	if p.resolver == nil {
		p.fail("Include callback failed")
		return
	}
	var parent string
	if s.filename != nil {
		parent = *s.filename
	}
	data, err := p.resolver.Open(kind, filename, parent)
	if err != nil || data == nil {
		p.fail("Include callback failed")
		return
	}
	p.pushInclude(filename, data, true)
}

func (p *Preprocessor) handleLine(s *includeState) {
	if s.nextToken() != token.IntLiteral {
		p.fail("Invalid #line directive")
		return
	}
	linenum, err := strconv.ParseUint(string(s.tokenBytes()), 10, 32)
	if err != nil {
		p.fail("Invalid #line directive")
		return
	}
	if s.nextToken() != token.StringLiteral {
		p.fail("Invalid #line directive")
		return
	}
	b := s.tokenBytes()
	filename := string(b[1 : len(b)-1])
	if !s.requireNewline() {
		p.fail("Invalid #line directive")
		return
	}
	interned := p.internFilename(filename)
	if interned == nil && p.outOfMemory {
		return
	}
	s.filename = interned
	s.line = uint(linenum)
}

func (p *Preprocessor) handleUndef(s *includeState) {
	if s.nextToken() != token.Identifier {
		p.fail("Invalid #undef directive")
		return
	}
	sym := s.tokenBytes()
	if !s.requireNewline() {
		p.fail("Invalid #undef directive")
		return
	}
	p.removeDefine(sym)
}

func (p *Preprocessor) handleDefine(s *includeState) {
	if s.nextToken() != token.Identifier {
		p.fail("Macro names must be identifiers")
		return
	}
	sym := s.tokenBytes()
	src := s.source
	n := len(src)

	if s.cursor < n && src[s.cursor] == '(' {
		// an open paren glued to the name introduces parameters
		for s.cursor < n && src[s.cursor] != '\n' {
			s.cursor++
		}
		p.failf("function-like macro %q is not supported", sym)
		return
	}

	// replacement text is the raw remainder of the line; the terminating
	// newline stays unconsumed and arrives as the next token
	for s.cursor < n && isSpace(src[s.cursor]) {
		s.cursor++
	}
	start := s.cursor
	for s.cursor < n && src[s.cursor] != '\n' {
		s.cursor++
	}
	text := bytes.TrimRight(src[start:s.cursor], " \t\r")

	if err := p.addDefine(sym, text); err != nil {
		p.failf("%q already defined", sym)
	}
}

// handleError latches "#error " plus the raw bytes from just past the
// keyword (leading blanks skipped) up to the end of the line, truncated to
// the failure buffer. The terminating newline is left for the lexer.
func (p *Preprocessor) handleError(s *includeState) {
	src := s.source
	n := len(src)
	for s.cursor < n && isSpace(src[s.cursor]) {
		s.cursor++
	}
	start := s.cursor
	for s.cursor < n && src[s.cursor] != '\n' {
		s.cursor++
	}
	p.failf("#error %s", src[start:s.cursor])
}

// failUnknownDirective reports a line-leading #name the lexer did not
// recognize, with a nearest-directive hint when one is close enough.
func (p *Preprocessor) failUnknownDirective(lexeme []byte) {
	i := 1
	for i < len(lexeme) && !isIdentStart(lexeme[i]) {
		i++
	}
	name := string(lexeme[i:])
	if suggestion, ok := diag.SuggestDirective(name); ok {
		p.failf("unknown preprocessor directive \"#%s\" (did you mean \"#%s\"?)", name, suggestion)
		return
	}
	p.failf("unknown preprocessor directive \"#%s\"", name)
}
