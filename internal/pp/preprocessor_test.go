package pp

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/spp/internal/alloc"
	"github.com/standardbeagle/spp/internal/token"
)

// fakeResolver serves includes from an in-memory map and records traffic.
type fakeResolver struct {
	files  map[string]string
	opens  []string
	kinds  []IncludeKind
	closes int
}

func (r *fakeResolver) Open(kind IncludeKind, filename, parentFilename string) ([]byte, error) {
	r.opens = append(r.opens, filename)
	r.kinds = append(r.kinds, kind)
	data, ok := r.files[filename]
	if !ok {
		return nil, errors.New("no such include")
	}
	return []byte(data), nil
}

func (r *fakeResolver) Close(source []byte) {
	r.closes++
}

// drain pulls the whole stream, returning every non-EOI token with copied
// bytes.
func drain(t *testing.T, p *Preprocessor) []token.Token {
	t.Helper()
	var out []token.Token
	for i := 0; i < 10000; i++ {
		tok := p.NextToken()
		if tok.Tag == token.EOI {
			return out
		}
		out = append(out, token.Token{Bytes: append([]byte(nil), tok.Bytes...), Tag: tok.Tag})
	}
	t.Fatal("stream did not reach EOI")
	return nil
}

func run(t *testing.T, opts Options) []token.Token {
	t.Helper()
	p, err := New(opts)
	require.NoError(t, err)
	defer p.Close()
	return drain(t, p)
}

func identifiers(toks []token.Token) []string {
	var out []string
	for _, tok := range toks {
		if tok.Tag == token.Identifier {
			out = append(out, string(tok.Bytes))
		}
	}
	return out
}

func errorMessages(toks []token.Token) []string {
	var out []string
	for _, tok := range toks {
		if tok.Tag == token.PreprocessingError {
			out = append(out, string(tok.Bytes))
		}
	}
	return out
}

func TestDefineThenIfdef(t *testing.T) {
	toks := run(t, Options{Source: []byte("#define FOO 1\n#ifdef FOO\nA\n#else\nB\n#endif\n")})
	assert.Equal(t, []string{"A"}, identifiers(toks))
	assert.Empty(t, errorMessages(toks))
}

func TestIfndefUndefined(t *testing.T) {
	toks := run(t, Options{Source: []byte("#ifndef BAR\nX\n#endif\nY\n")})
	assert.Equal(t, []string{"X", "Y"}, identifiers(toks))
	assert.Empty(t, errorMessages(toks))
}

func TestNestedSkippedConditionals(t *testing.T) {
	toks := run(t, Options{Source: []byte("#ifdef A\n#ifdef B\nZ\n#endif\n#endif\n")})
	assert.Empty(t, identifiers(toks))
	assert.Empty(t, errorMessages(toks))
}

func TestElseExclusivity(t *testing.T) {
	src := "#ifdef FOO\nA\n#else\nB\n#endif\n"
	cases := []struct {
		name       string
		predefines []Define
		want       []string
	}{
		{"defined picks the first arm", []Define{{Name: "FOO", Value: "1"}}, []string{"A"}},
		{"undefined picks the else arm", nil, []string{"B"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			toks := run(t, Options{Source: []byte(src), Predefines: tc.predefines})
			assert.Equal(t, tc.want, identifiers(toks))
		})
	}
}

func TestOuterSkipDominatesElseArm(t *testing.T) {
	// OUTER is undefined, so nothing in the group may surface, not even the
	// else arm of the inner conditional whose predicate is true
	src := "#ifdef OUTER\n#ifdef INNER\nA\n#else\nB\n#endif\n#endif\nTAIL\n"
	toks := run(t, Options{
		Source:     []byte(src),
		Predefines: []Define{{Name: "INNER", Value: "1"}},
	})
	assert.Equal(t, []string{"TAIL"}, identifiers(toks))
	assert.Empty(t, errorMessages(toks))
}

func TestSkipContainmentSuppressesDirectives(t *testing.T) {
	res := &fakeResolver{files: map[string]string{"x.h": "SHOULD_NOT_APPEAR\n"}}
	src := "#ifdef NOPE\n#include \"x.h\"\n#define HIDDEN 1\n#error invisible\n#endif\n#ifdef HIDDEN\nLEAK\n#endif\nOK\n"
	toks := run(t, Options{Source: []byte(src), Resolver: res})
	assert.Equal(t, []string{"OK"}, identifiers(toks))
	assert.Empty(t, errorMessages(toks))
	assert.Empty(t, res.opens, "skipped #include must not hit the resolver")
}

func TestUndef(t *testing.T) {
	src := "#define FOO 1\n#undef FOO\n#ifdef FOO\nX\n#endif\nY\n"
	toks := run(t, Options{Source: []byte(src)})
	assert.Equal(t, []string{"Y"}, identifiers(toks))

	// removing an unknown name is not an error
	toks = run(t, Options{Source: []byte("#undef NEVER\nZ\n")})
	assert.Equal(t, []string{"Z"}, identifiers(toks))
	assert.Empty(t, errorMessages(toks))
}

func TestInclude(t *testing.T) {
	res := &fakeResolver{files: map[string]string{"x.h": "P\n"}}
	p, err := New(Options{
		Filename: "main.fx",
		Source:   []byte("#include \"x.h\"\nQ\n"),
		Resolver: res,
	})
	require.NoError(t, err)
	defer p.Close()

	tok := p.NextToken()
	require.Equal(t, token.Identifier, tok.Tag)
	assert.Equal(t, "P", string(tok.Bytes))
	filename, line := p.SourcePosition()
	require.NotNil(t, filename)
	assert.Equal(t, "x.h", *filename)
	assert.Equal(t, uint(1), line)

	var q token.Token
	for q = p.NextToken(); q.Tag == token.Newline; q = p.NextToken() {
	}
	require.Equal(t, token.Identifier, q.Tag)
	assert.Equal(t, "Q", string(q.Bytes))
	filename, line = p.SourcePosition()
	require.NotNil(t, filename)
	assert.Equal(t, "main.fx", *filename)
	assert.Equal(t, uint(2), line)

	drain(t, p)
	assert.Equal(t, []string{"x.h"}, res.opens)
	assert.Equal(t, []IncludeKind{IncludeLocal}, res.kinds)
	assert.Equal(t, 1, res.closes, "included source must be returned to the resolver")
}

func TestIncludeSystemSpelling(t *testing.T) {
	res := &fakeResolver{files: map[string]string{"sys.h": "S\n"}}
	toks := run(t, Options{Source: []byte("#include <sys.h>\nR\n"), Resolver: res})
	assert.Equal(t, []string{"S", "R"}, identifiers(toks))
	assert.Equal(t, []IncludeKind{IncludeSystem}, res.kinds)
}

func TestIncludeFailure(t *testing.T) {
	res := &fakeResolver{files: map[string]string{}}
	toks := run(t, Options{Source: []byte("#include \"gone.h\"\nA\n"), Resolver: res})
	assert.Equal(t, []string{"Include callback failed"}, errorMessages(toks))
	assert.Equal(t, []string{"A"}, identifiers(toks), "tokenization resumes after the error")
}

func TestIncludeWithoutResolver(t *testing.T) {
	toks := run(t, Options{Source: []byte("#include \"x.h\"\n")})
	assert.Equal(t, []string{"Include callback failed"}, errorMessages(toks))
}

func TestErrorDirective(t *testing.T) {
	p, err := New(Options{Source: []byte("#error bad thing\nafter\n")})
	require.NoError(t, err)
	defer p.Close()

	tok := p.NextToken()
	require.Equal(t, token.PreprocessingError, tok.Tag)
	assert.Equal(t, "#error bad thing", string(tok.Bytes))

	rest := drain(t, p)
	assert.Equal(t, []string{"after"}, identifiers(rest))
}

func TestErrorDirectiveTruncation(t *testing.T) {
	long := strings.Repeat("x", 600)
	toks := run(t, Options{Source: []byte("#error " + long + "\n")})
	msgs := errorMessages(toks)
	require.Len(t, msgs, 1)
	assert.Len(t, msgs[0], failureBufLen-1)
	assert.True(t, strings.HasPrefix(msgs[0], "#error xxx"))
}

func TestRedefinition(t *testing.T) {
	p, err := New(Options{Source: []byte("#define A x\n#define A y\n")})
	require.NoError(t, err)
	defer p.Close()

	toks := drain(t, p)
	assert.Equal(t, []string{`"A" already defined`}, errorMessages(toks))
	assert.Equal(t, []byte("x"), p.findDefine([]byte("A")), "failed redefinition must not mutate the table")
}

func TestPredefines(t *testing.T) {
	toks := run(t, Options{
		Source:     []byte("#ifdef FROM_CALLER\nYES\n#endif\n"),
		Predefines: []Define{{Name: "FROM_CALLER", Value: "1"}},
	})
	assert.Equal(t, []string{"YES"}, identifiers(toks))
}

func TestDuplicatePredefines(t *testing.T) {
	p, err := New(Options{
		Source:     []byte("A\n"),
		Predefines: []Define{{Name: "X", Value: "1"}, {Name: "X", Value: "2"}},
	})
	require.NoError(t, err)
	defer p.Close()
	toks := drain(t, p)
	assert.Equal(t, []string{`"X" already defined`}, errorMessages(toks))
	assert.Equal(t, []byte("1"), p.findDefine([]byte("X")))
}

func TestUnterminatedConditional(t *testing.T) {
	toks := run(t, Options{Source: []byte("#ifdef FOO\nX\n")})
	assert.Equal(t, []string{"Unterminated #ifdef"}, errorMessages(toks))
}

func TestUnterminatedNestedConditionals(t *testing.T) {
	// one error per unclosed frame, innermost first
	toks := run(t, Options{Source: []byte("#ifndef A\n#ifdef B\n")})
	assert.Equal(t, []string{"Unterminated #ifdef", "Unterminated #ifndef"}, errorMessages(toks))
}

func TestConditionalBalance(t *testing.T) {
	p, err := New(Options{Source: []byte("#ifdef A\n#endif\n#ifndef B\n#endif\nEND\n")})
	require.NoError(t, err)
	defer p.Close()
	toks := drain(t, p)
	assert.Empty(t, errorMessages(toks))
	assert.Equal(t, []string{"END"}, identifiers(toks))
}

func TestElseErrors(t *testing.T) {
	cases := []struct {
		src  string
		want string
	}{
		{"#else\n", "#else without #if"},
		{"#endif\n", "#endif without #if"},
		{"#ifdef X\n#else\n#else\n#endif\n", "#else after #else"},
		{"#elif\n", "#elif without #if"},
	}
	for _, tc := range cases {
		toks := run(t, Options{Source: []byte(tc.src)})
		assert.Contains(t, errorMessages(toks), tc.want, "source %q", tc.src)
	}
}

func TestIfReportsUnsupported(t *testing.T) {
	toks := run(t, Options{Source: []byte("#if 1\nA\n#endif\nB\n")})
	assert.Equal(t, []string{"#if expressions are not supported"}, errorMessages(toks))
	// the group is skipped wholesale but its #endif still balances
	assert.Equal(t, []string{"B"}, identifiers(toks))
}

func TestIfInsideSkippedRegionStaysBalanced(t *testing.T) {
	src := "#ifdef NOPE\n#if 1\nA\n#endif\nB\n#endif\nC\n"
	toks := run(t, Options{Source: []byte(src)})
	assert.Empty(t, errorMessages(toks))
	assert.Equal(t, []string{"C"}, identifiers(toks))
}

func TestLineDirective(t *testing.T) {
	p, err := New(Options{Filename: "root.fx", Source: []byte("#line 40 \"pixel.fx\"\nZ\n")})
	require.NoError(t, err)
	defer p.Close()

	var tok token.Token
	for tok = p.NextToken(); tok.Tag == token.Newline; tok = p.NextToken() {
	}
	require.Equal(t, token.Identifier, tok.Tag)
	assert.Equal(t, "Z", string(tok.Bytes))
	filename, line := p.SourcePosition()
	require.NotNil(t, filename)
	assert.Equal(t, "pixel.fx", *filename)
	assert.Equal(t, uint(40), line)
}

func TestInvalidDirectives(t *testing.T) {
	cases := []struct {
		src  string
		want string
	}{
		{"#include x\n", "Invalid #include directive"},
		{"#include \"x.h\" extra\n", "Invalid #include directive"},
		{"#line \"no-number\"\n", "Invalid #line directive"},
		{"#line 10\n", "Invalid #line directive"},
		{"#undef 123\n", "Invalid #undef directive"},
		{"#ifdef\n", "Invalid #ifdef directive"},
		{"#ifndef\n", "Invalid #ifndef directive"},
		{"#define 99\n", "Macro names must be identifiers"},
	}
	for _, tc := range cases {
		toks := run(t, Options{Source: []byte(tc.src)})
		assert.Contains(t, errorMessages(toks), tc.want, "source %q", tc.src)
	}
}

func TestFunctionLikeDefineRejected(t *testing.T) {
	p, err := New(Options{Source: []byte("#define F(x) x\n")})
	require.NoError(t, err)
	defer p.Close()
	toks := drain(t, p)
	assert.Equal(t, []string{`function-like macro "F" is not supported`}, errorMessages(toks))
	assert.Nil(t, p.findDefine([]byte("F")))
}

func TestDefineWithoutValue(t *testing.T) {
	toks := run(t, Options{Source: []byte("#define FLAG\n#ifdef FLAG\nON\n#endif\n")})
	assert.Equal(t, []string{"ON"}, identifiers(toks))
}

func TestUnknownDirective(t *testing.T) {
	toks := run(t, Options{Source: []byte("#ifdfe FOO\n")})
	msgs := errorMessages(toks)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], `unknown preprocessor directive "#ifdfe"`)
	assert.Contains(t, msgs[0], `did you mean "#ifdef"`)
}

func TestIncompleteCommentReported(t *testing.T) {
	toks := run(t, Options{Source: []byte("A /* open")})
	assert.Equal(t, []string{"A"}, identifiers(toks))
	assert.Equal(t, []string{"Incomplete multiline comment"}, errorMessages(toks))
}

func TestOutOfMemoryLatch(t *testing.T) {
	failing := alloc.NewFailAfter(alloc.NewHeap(), 0)
	p, err := New(Options{Source: []byte("#define A b\nC\n"), Allocator: failing})
	require.NoError(t, err)
	defer p.Close()

	for i := 0; i < 100; i++ {
		if p.NextToken().Tag == token.EOI {
			break
		}
	}
	assert.True(t, p.OutOfMemory())
	// once latched the stream stays at EOI
	assert.Equal(t, token.EOI, p.NextToken().Tag)
}

func TestNewOutOfMemory(t *testing.T) {
	failing := alloc.NewFailAfter(alloc.NewHeap(), 0)
	_, err := New(Options{Filename: "x.fx", Source: []byte("A\n"), Allocator: failing})
	assert.ErrorIs(t, err, ErrOutOfMemory)
}

func TestSourcePositionEmptyStack(t *testing.T) {
	p, err := New(Options{Source: []byte("")})
	require.NoError(t, err)
	defer p.Close()
	require.Equal(t, token.EOI, p.NextToken().Tag)
	filename, line := p.SourcePosition()
	assert.Nil(t, filename)
	assert.Equal(t, uint(0), line)
}
