package textgrammar

import (
	"fmt"
	"strings"

	"github.com/gfesatidis/guidance/grammar/byteearley"
)

// Compile parses src and returns the grammar expression it denotes.
//
//	expr     := alt
//	alt      := concat ( "|" concat )*
//	concat   := postfix+
//	postfix  := atom ( "*" | "+" | "?" )?
//	atom     := STRING | CLASS | "(" expr ")"
//	          | "<hidden>" expr "</hidden>"
//	          | "<capture name=\"x\">" expr "</capture>"
func Compile(src string) (byteearley.Expr, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	e, err := p.parseAlt()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, fmt.Errorf("textgrammar: unexpected trailing input at token %q", p.peek().text)
	}
	return e, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(kind tokKind, what string) (token, error) {
	if p.peek().kind != kind {
		return token{}, fmt.Errorf("textgrammar: expected %s, got %q", what, p.peek().text)
	}
	return p.advance(), nil
}

func (p *parser) parseAlt() (byteearley.Expr, error) {
	first, err := p.parseConcat()
	if err != nil {
		return nil, err
	}
	options := []byteearley.Expr{first}
	for p.peek().kind == tokPipe {
		p.advance()
		next, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		options = append(options, next)
	}
	if len(options) == 1 {
		return options[0], nil
	}
	return byteearley.Alt(options...), nil
}

func (p *parser) parseConcat() (byteearley.Expr, error) {
	var items []byteearley.Expr
	for isAtomStart(p.peek().kind) {
		item, err := p.parsePostfix()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("textgrammar: expected a grammar atom, got %q", p.peek().text)
	}
	if len(items) == 1 {
		return items[0], nil
	}
	return byteearley.Seq(items...), nil
}

func isAtomStart(k tokKind) bool {
	switch k {
	case tokString, tokClass, tokLParen, tokHiddenOpen, tokCaptureOpen:
		return true
	}
	return false
}

func (p *parser) parsePostfix() (byteearley.Expr, error) {
	atom, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	switch p.peek().kind {
	case tokStar:
		p.advance()
		return byteearley.Star(atom), nil
	case tokPlus:
		p.advance()
		return byteearley.Plus(atom), nil
	case tokQuestion:
		p.advance()
		return byteearley.Opt(atom), nil
	}
	return atom, nil
}

func (p *parser) parseAtom() (byteearley.Expr, error) {
	switch p.peek().kind {
	case tokString:
		t := p.advance()
		return byteearley.Lit(unquote(t.text)), nil

	case tokClass:
		t := p.advance()
		ranges, err := classRanges(t.text)
		if err != nil {
			return nil, err
		}
		return byteearley.Class(ranges...), nil

	case tokLParen:
		p.advance()
		inner, err := p.parseAlt()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "\")\""); err != nil {
			return nil, err
		}
		return inner, nil

	case tokHiddenOpen:
		p.advance()
		inner, err := p.parseAlt()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokHiddenClose, "\"</hidden>\""); err != nil {
			return nil, err
		}
		return byteearley.Hidden(inner), nil

	case tokCaptureOpen:
		open := p.advance()
		name := captureName(open.text)
		inner, err := p.parseAlt()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokCaptureClose, "\"</capture>\""); err != nil {
			return nil, err
		}
		return byteearley.Capture(name, inner), nil
	}
	return nil, fmt.Errorf("textgrammar: expected a grammar atom, got %q", p.peek().text)
}

// unquote strips the surrounding quotes from a STRING lexeme and resolves
// its backslash escapes.
func unquote(lexeme string) string {
	body := lexeme[1 : len(lexeme)-1]
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) {
			i++
		}
		b.WriteByte(body[i])
	}
	return b.String()
}

// classRanges turns a CLASS lexeme like "[a-zA-Z0-9_]" into the two-byte
// range strings byteearley.Class expects.
func classRanges(lexeme string) ([]string, error) {
	body := lexeme[1 : len(lexeme)-1]
	var chars []byte
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) {
			i++
		}
		chars = append(chars, body[i])
	}
	var ranges []string
	for i := 0; i < len(chars); i++ {
		if i+2 < len(chars) && chars[i+1] == '-' {
			ranges = append(ranges, string([]byte{chars[i], chars[i+2]}))
			i += 2
			continue
		}
		ranges = append(ranges, string([]byte{chars[i], chars[i]}))
	}
	if len(ranges) == 0 {
		return nil, fmt.Errorf("textgrammar: empty character class %q", lexeme)
	}
	return ranges, nil
}

// captureName extracts the quoted name from a CAPTURE_OPEN lexeme like
// `<capture name="n">`.
func captureName(lexeme string) string {
	start := strings.IndexByte(lexeme, '"')
	end := strings.LastIndexByte(lexeme, '"')
	if start < 0 || end <= start {
		return ""
	}
	return lexeme[start+1 : end]
}
