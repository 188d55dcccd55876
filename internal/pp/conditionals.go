package pp

import "github.com/standardbeagle/spp/internal/token"

// conditional is one frame of a translation unit's #if…/#endif stack.
//
// skipping is true while tokens under this frame are being discarded. chosen
// records whether any arm of the group has been selected, which is what a
// later #else consults: the else arm runs iff nothing before it ran.
type conditional struct {
	ctype    token.Tag // PPIf, PPIfdef, PPIfndef, PPElse, PPElif
	linenum  uint
	skipping bool
	chosen   bool
	next     *conditional
}

// getConditional issues a zeroed frame from the free pool, allocating when
// the pool is dry. The pool outlives individual frames; it is drained only at
// preprocessor teardown.
func (p *Preprocessor) getConditional() *conditional {
	cond := p.conditionalPool
	if cond != nil {
		p.conditionalPool = cond.next
		*cond = conditional{}
	} else {
		cond = &conditional{}
	}
	return cond
}

// putConditionals prepends a chain of one or more frames back onto the pool.
// An include frame's whole stack is returned in one call when the frame pops.
func (p *Preprocessor) putConditionals(cond *conditional) {
	if cond == nil {
		return
	}
	tail := cond
	for tail.next != nil {
		tail = tail.next
	}
	tail.next = p.conditionalPool
	p.conditionalPool = cond
}

// currentSkipping reports whether the unit's top conditional frame is
// discarding tokens.
func (s *includeState) currentSkipping() bool {
	return s.conditionalStack != nil && s.conditionalStack.skipping
}
