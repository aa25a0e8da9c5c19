package irtext

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"

	"gbe/internal/ir"
)

// TokenKind classifies a token for highlighting
type TokenKind int

const (
	KindDirective TokenKind = iota
	KindKeyword
	KindOpcode
	KindModifier
	KindRegister
	KindLabel
	KindNumber
	KindName
	KindComment
)

// Token is one highlighted span. Line and Column are 1-based.
type Token struct {
	Kind   TokenKind
	Line   int
	Column int
	Length int
	Value  string
}

var keywords = map[string]bool{
	"decl_reg": true, "decl_input": true, "decl_output": true, "decl_pushed": true,
	"decl_loop": true, "kernel": true, "uniform": true,
}

// Tokens lexes source into highlighted spans, skipping whitespace and
// punctuation. It works on text that does not parse.
func Tokens(source string) ([]Token, error) {
	lx, err := GirLexer.Lex("", strings.NewReader(source))
	if err != nil {
		return nil, err
	}
	raw, err := lexer.ConsumeAll(lx)
	if err != nil {
		return nil, err
	}
	symbols := lexer.SymbolsByRune(GirLexer)

	var out []Token
	for _, tok := range raw {
		if tok.EOF() {
			break
		}
		kind, ok := classify(symbols[tok.Type], tok.Value)
		if !ok {
			continue
		}
		out = append(out, Token{
			Kind:   kind,
			Line:   tok.Pos.Line,
			Column: tok.Pos.Column,
			Length: len(tok.Value),
			Value:  tok.Value,
		})
	}
	return out, nil
}

func classify(symbol, value string) (TokenKind, bool) {
	switch symbol {
	case "Comment":
		return KindComment, true
	case "Register":
		return KindRegister, true
	case "Label":
		return KindLabel, true
	case "Number":
		return KindNumber, true
	case "Suffix":
		switch value {
		case ".constant", ".decl_function", ".end_function":
			return KindDirective, true
		}
		return KindModifier, true
	case "Ident":
		if keywords[value] {
			return KindKeyword, true
		}
		if _, ok := ir.OpcodeByName(value); ok {
			return KindOpcode, true
		}
		return KindName, true
	}
	return 0, false
}
