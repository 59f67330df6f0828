// Package textgrammar compiles a small textual grammar notation into a
// byteearley.Expr, so tests and the CLI can write grammars as source text
// instead of nested Go constructor calls.
//
// Notation: "literal" strings, [a-zA-Z0-9_]-style byte classes, postfix
// quantifiers * + ?, alternation with |, grouping with ( ), and the two
// wrapper tags <hidden>...</hidden> and <capture name="x">...</capture>.
// Concatenation is juxtaposition: "a" "b" matches "ab".
//
// Tokenizing uses a lexmachine.Lexer built once from a table of patterns,
// scanned with (*lexmachine.Scanner).Next(). The token shape here is local
// to this package, since this notation has no need for a broader
// general-purpose scanner abstraction.
package textgrammar

import (
	"fmt"

	"github.com/npillmayer/schuko/tracing"
	"github.com/timtadh/lexmachine"
	"github.com/timtadh/lexmachine/machines"
)

func tracer() tracing.Trace {
	return tracing.Select("guidance.textgrammar")
}

type tokKind int

const (
	tokString tokKind = iota
	tokClass
	tokStar
	tokPlus
	tokQuestion
	tokPipe
	tokLParen
	tokRParen
	tokHiddenOpen
	tokHiddenClose
	tokCaptureOpen
	tokCaptureClose
	tokEOF
)

type token struct {
	kind tokKind
	text string
}

var lexer *lexmachine.Lexer

func init() {
	lexer = lexmachine.NewLexer()
	add := func(pattern string, kind tokKind) {
		lexer.Add([]byte(pattern), makeToken(kind))
	}
	add(`<capture name="[A-Za-z_][A-Za-z0-9_]*">`, tokCaptureOpen)
	add(`</capture>`, tokCaptureClose)
	add(`<hidden>`, tokHiddenOpen)
	add(`</hidden>`, tokHiddenClose)
	add(`"(\\.|[^"\\])*"`, tokString)
	add(`\[(\\.|[^\]\\])*\]`, tokClass)
	add(`\*`, tokStar)
	add(`\+`, tokPlus)
	add(`\?`, tokQuestion)
	add(`\|`, tokPipe)
	add(`\(`, tokLParen)
	add(`\)`, tokRParen)
	lexer.Add([]byte(`( |\t|\n|\r)+`), func(*lexmachine.Scanner, *machines.Match) (interface{}, error) {
		return nil, nil // skip whitespace
	})
	if err := lexer.Compile(); err != nil {
		panic(fmt.Sprintf("textgrammar: compiling lexer DFA: %v", err))
	}
}

func makeToken(kind tokKind) lexmachine.Action {
	return func(s *lexmachine.Scanner, m *machines.Match) (interface{}, error) {
		return token{kind: kind, text: string(m.Bytes)}, nil
	}
}

// tokenize runs the lexer over src, returning its full token stream
// followed by a trailing tokEOF.
func tokenize(src string) ([]token, error) {
	scan, err := lexer.Scanner([]byte(src))
	if err != nil {
		return nil, fmt.Errorf("textgrammar: %w", err)
	}
	var toks []token
	for {
		tok, err, eof := scan.Next()
		if eof {
			break
		}
		if err != nil {
			if ui, ok := err.(*machines.UnconsumedInput); ok {
				tracer().Errorf("textgrammar: unconsumed input: %v", ui)
				scan.TC = ui.FailTC
				continue
			}
			return nil, fmt.Errorf("textgrammar: %w", err)
		}
		toks = append(toks, tok.(token))
	}
	toks = append(toks, token{kind: tokEOF})
	return toks, nil
}
