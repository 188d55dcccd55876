package pp

import "github.com/standardbeagle/spp/internal/token"

// The lexer walks the top include frame's cursor one byte at a time and tags
// the next lexeme. It consumes exactly the lexeme's bytes, records the start
// offset in tokenStart, and counts every '\n' it actually swallows.

var directiveTags = map[string]token.Tag{
	"include": token.PPInclude,
	"line":    token.PPLine,
	"define":  token.PPDefine,
	"undef":   token.PPUndef,
	"if":      token.PPIf,
	"ifdef":   token.PPIfdef,
	"ifndef":  token.PPIfndef,
	"else":    token.PPElse,
	"elif":    token.PPElif,
	"endif":   token.PPEndif,
	"error":   token.PPError,
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\v' || c == '\f'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isSinglePunct(c byte) bool {
	switch c {
	case '(', ')', '[', ']', '{', '}', ',', ';', ':', '?', '~':
		return true
	}
	return false
}

// isTokenStart reports whether c can begin some recognized lexeme; a run of
// bytes for which this is false lexes as one BAD_CHARS token.
func isTokenStart(c byte) bool {
	if isSpace(c) || c == '\n' || isIdentChar(c) || isSinglePunct(c) {
		return true
	}
	switch c {
	case '"', '#', '/', '=', '!', '<', '>', '+', '-', '*', '%', '^', '&', '|', '.':
		return true
	}
	return false
}

// nextToken delivers the next lexeme's tag, honoring a pending pushback.
func (s *includeState) nextToken() token.Tag {
	if s.pushedBack {
		s.pushedBack = false
	} else {
		s.tokenTag = s.scan()
	}
	s.lineStart = s.tokenTag == token.Newline
	return s.tokenTag
}

// scan classifies the next lexeme. Whitespace other than '\n' and complete
// comments are swallowed silently.
func (s *includeState) scan() token.Tag {
	src := s.source
	n := len(src)
	for {
		s.tokenStart = s.cursor
		if s.cursor >= n {
			return token.EOI
		}
		c := src[s.cursor]

		if c == '\n' {
			s.cursor++
			s.line++
			return token.Newline
		}
		if isSpace(c) {
			s.cursor++
			continue
		}

		switch c {
		case '/':
			if s.cursor+1 < n && src[s.cursor+1] == '/' {
				// line comment; the terminating newline is the next lexeme
				s.cursor += 2
				for s.cursor < n && src[s.cursor] != '\n' {
					s.cursor++
				}
				continue
			}
			if s.cursor+1 < n && src[s.cursor+1] == '*' {
				if !s.skipBlockComment() {
					return token.IncompleteComment
				}
				continue
			}
			return s.op2('=', token.DivAssign, token.Tag('/'))

		case '"':
			return s.scanString()

		case '#':
			if s.cursor+1 < n && src[s.cursor+1] == '#' {
				s.cursor += 2
				return token.HashHash
			}
			if s.lineStart {
				return s.scanDirective()
			}
			s.cursor++
			return token.Tag('#')

		case '+':
			return s.op3('+', token.Increment, '=', token.AddAssign, token.Tag('+'))
		case '-':
			return s.op3('-', token.Decrement, '=', token.SubAssign, token.Tag('-'))
		case '*':
			return s.op2('=', token.MultAssign, token.Tag('*'))
		case '%':
			return s.op2('=', token.ModAssign, token.Tag('%'))
		case '^':
			return s.op2('=', token.XorAssign, token.Tag('^'))
		case '&':
			return s.op3('&', token.AndAnd, '=', token.AndAssign, token.Tag('&'))
		case '|':
			return s.op3('|', token.OrOr, '=', token.OrAssign, token.Tag('|'))
		case '<':
			return s.op3('<', token.LShift, '=', token.Leq, token.Tag('<'))
		case '>':
			return s.op3('>', token.RShift, '=', token.Geq, token.Tag('>'))
		case '=':
			return s.op2('=', token.Eql, token.Tag('='))
		case '!':
			return s.op2('=', token.Neq, token.Tag('!'))

		case '.':
			if s.cursor+1 < n && isDigit(src[s.cursor+1]) {
				return s.scanNumber()
			}
			s.cursor++
			return token.Tag('.')
		}

		switch {
		case isDigit(c):
			return s.scanNumber()
		case isIdentStart(c):
			for s.cursor < n && isIdentChar(src[s.cursor]) {
				s.cursor++
			}
			return token.Identifier
		case isSinglePunct(c):
			s.cursor++
			return token.Tag(c)
		default:
			for s.cursor < n && !isTokenStart(src[s.cursor]) {
				s.cursor++
			}
			return token.BadChars
		}
	}
}

// op2 consumes a one- or two-byte operator: the current byte plus optionally
// second, mapping to twoTag or oneTag.
func (s *includeState) op2(second byte, twoTag, oneTag token.Tag) token.Tag {
	s.cursor++
	if s.cursor < len(s.source) && s.source[s.cursor] == second {
		s.cursor++
		return twoTag
	}
	return oneTag
}

// op3 is op2 with two possible second bytes (e.g. '+' then '+' or '=').
func (s *includeState) op3(secondA byte, tagA token.Tag, secondB byte, tagB, oneTag token.Tag) token.Tag {
	s.cursor++
	if s.cursor < len(s.source) {
		switch s.source[s.cursor] {
		case secondA:
			s.cursor++
			return tagA
		case secondB:
			s.cursor++
			return tagB
		}
	}
	return oneTag
}

// skipBlockComment consumes a slash-star comment, counting contained
// newlines. Reports false when input ends before the terminator; the cursor
// is then at end-of-input and the lexeme is INCOMPLETE_COMMENT.
func (s *includeState) skipBlockComment() bool {
	src := s.source
	n := len(src)
	s.cursor += 2
	for s.cursor < n {
		switch src[s.cursor] {
		case '\n':
			s.line++
		case '*':
			if s.cursor+1 < n && src[s.cursor+1] == '/' {
				s.cursor += 2
				return true
			}
		}
		s.cursor++
	}
	return false
}

// scanString consumes a double-quoted literal with backslash escapes. A
// literal left open at end-of-line or end-of-input lexes as BAD_CHARS; the
// newline itself is not consumed.
func (s *includeState) scanString() token.Tag {
	src := s.source
	n := len(src)
	s.cursor++
	for s.cursor < n {
		switch src[s.cursor] {
		case '"':
			s.cursor++
			return token.StringLiteral
		case '\n':
			return token.BadChars
		case '\\':
			if s.cursor+1 < n && src[s.cursor+1] != '\n' {
				s.cursor++
			}
		}
		s.cursor++
	}
	return token.BadChars
}

// scanNumber consumes an integer or float literal. INT covers decimal, 0x…
// hex and 0… octal with an optional uUlL suffix run; FLOAT is marked by a
// fraction dot or an exponent, with an optional f/F suffix.
func (s *includeState) scanNumber() token.Tag {
	src := s.source
	n := len(src)

	if src[s.cursor] == '0' && s.cursor+1 < n && (src[s.cursor+1] == 'x' || src[s.cursor+1] == 'X') {
		s.cursor += 2
		for s.cursor < n && isHexDigit(src[s.cursor]) {
			s.cursor++
		}
		s.scanIntSuffix()
		return token.IntLiteral
	}

	isFloat := false
	for s.cursor < n && isDigit(src[s.cursor]) {
		s.cursor++
	}
	if s.cursor < n && src[s.cursor] == '.' {
		isFloat = true
		s.cursor++
		for s.cursor < n && isDigit(src[s.cursor]) {
			s.cursor++
		}
	}
	if s.cursor < n && (src[s.cursor] == 'e' || src[s.cursor] == 'E') {
		// exponent counts only when digits actually follow
		j := s.cursor + 1
		if j < n && (src[j] == '+' || src[j] == '-') {
			j++
		}
		if j < n && isDigit(src[j]) {
			isFloat = true
			s.cursor = j
			for s.cursor < n && isDigit(src[s.cursor]) {
				s.cursor++
			}
		}
	}

	if isFloat {
		if s.cursor < n && (src[s.cursor] == 'f' || src[s.cursor] == 'F') {
			s.cursor++
		}
		return token.FloatLiteral
	}
	s.scanIntSuffix()
	return token.IntLiteral
}

func (s *includeState) scanIntSuffix() {
	src := s.source
	n := len(src)
	for s.cursor < n {
		switch src[s.cursor] {
		case 'u', 'U', 'l', 'L':
			s.cursor++
		default:
			return
		}
	}
}

// scanDirective classifies a line-leading '#'. Horizontal whitespace may sit
// between the hash and the keyword; the lexeme spans from the hash through
// the keyword. An unrecognized keyword is UNKNOWN; a bare hash is the
// single-byte '#' token.
func (s *includeState) scanDirective() token.Tag {
	src := s.source
	n := len(src)
	cur := s.cursor + 1
	for cur < n && (src[cur] == ' ' || src[cur] == '\t') {
		cur++
	}
	if cur >= n || !isIdentStart(src[cur]) {
		s.cursor++
		return token.Tag('#')
	}
	nameStart := cur
	for cur < n && isIdentChar(src[cur]) {
		cur++
	}
	s.cursor = cur
	if tag, ok := directiveTags[string(src[nameStart:cur])]; ok {
		return tag
	}
	return token.Unknown
}
