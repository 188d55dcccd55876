package pp

import "github.com/standardbeagle/spp/internal/token"

// includeState is one active translation unit on the include stack: the root
// source plus one frame per open #include.
type includeState struct {
	filename *string // interned; nil when the unit was started without a name
	included bool    // true when source came from the resolver and must be returned to it

	source     []byte
	cursor     int // next byte to scan
	tokenStart int // first byte of the current lexeme
	line       uint

	tokenTag   token.Tag // tag of the current lexeme, for pushback redelivery
	pushedBack bool
	lineStart  bool // true when no token has been produced yet on this line

	conditionalStack *conditional
	next             *includeState
}

// tokenBytes returns the current lexeme's bytes. The slice aliases source and
// stays valid until the frame pops.
func (s *includeState) tokenBytes() []byte {
	return s.source[s.tokenStart:s.cursor]
}

// pushback arranges for the current lexeme to be redelivered by the next
// nextToken call. Only one level deep, which is all the peek-and-rewind
// directive terminators need.
func (s *includeState) pushback() {
	s.pushedBack = true
}

// bytesLeft reports how many bytes of the unit remain unscanned.
func (s *includeState) bytesLeft() int {
	return len(s.source) - s.cursor
}

// pushInclude puts a new translation unit on top of the stack. filename may
// be empty for an unnamed root. Reports false when interning the name fails
// (out-of-memory is latched by then).
func (p *Preprocessor) pushInclude(filename string, source []byte, included bool) bool {
	var interned *string
	if filename != "" {
		interned = p.internFilename(filename)
		if interned == nil && p.outOfMemory {
			return false
		}
	}
	p.includeStack = &includeState{
		filename:  interned,
		included:  included,
		source:    source,
		line:      1,
		lineStart: true,
		next:      p.includeStack,
	}
	return true
}

// popInclude tears down the top frame: any unreturned conditional frames go
// back to the pool in one chain, and resolver-owned bytes are handed back.
func (p *Preprocessor) popInclude() {
	s := p.includeStack
	if s == nil {
		return
	}
	if s.conditionalStack != nil {
		p.putConditionals(s.conditionalStack)
		s.conditionalStack = nil
	}
	if s.included && p.resolver != nil {
		p.resolver.Close(s.source)
	}
	p.includeStack = s.next
}
