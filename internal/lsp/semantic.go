package lsp

import (
	"strings"

	"gbe/internal/irtext"
)

// SemanticToken represents a single LSP semantic token entry
// Line and StartChar are 0-based positions
// TokenType is an index into SemanticTokenTypes
// TokenModifiers is a bitmask based on SemanticTokenModifiers
type SemanticToken struct {
	Line           uint32
	StartChar      uint32
	Length         uint32
	TokenType      int
	TokenModifiers int
}

var kindTypes = map[irtext.TokenKind]string{
	irtext.KindDirective: "macro",
	irtext.KindKeyword:   "keyword",
	irtext.KindOpcode:    "function",
	irtext.KindModifier:  "type",
	irtext.KindRegister:  "variable",
	irtext.KindLabel:     "enumMember",
	irtext.KindNumber:    "number",
	irtext.KindName:      "property",
	irtext.KindComment:   "comment",
}

// collectSemanticTokens maps lexed tokens onto the legend. The first
// register of a decl_* line is a declaration and the label operand of
// LABEL is a definition.
func collectSemanticTokens(lexed []irtext.Token) []SemanticToken {
	var tokens []SemanticToken

	line := -1
	var declLine, labelLine, declared bool
	for _, tok := range lexed {
		if tok.Line != line {
			line = tok.Line
			declLine, labelLine, declared = false, false, false
		}

		modifiers := 0
		switch tok.Kind {
		case irtext.KindKeyword:
			if strings.HasPrefix(tok.Value, "decl_") {
				declLine = true
			}
		case irtext.KindOpcode:
			labelLine = tok.Value == "LABEL"
		case irtext.KindRegister:
			if declLine && !declared {
				modifiers = 1 << indexOf("declaration", SemanticTokenModifiers)
				declared = true
			}
		case irtext.KindLabel:
			if labelLine {
				modifiers = 1 << indexOf("definition", SemanticTokenModifiers)
				labelLine = false
			}
		}

		tokens = append(tokens, makeToken(tok, kindTypes[tok.Kind], modifiers))
	}

	return tokens
}

func makeToken(tok irtext.Token, tokenType string, modifiers int) SemanticToken {
	return SemanticToken{
		Line:           uint32(tok.Line - 1),
		StartChar:      uint32(tok.Column - 1),
		Length:         uint32(tok.Length),
		TokenType:      indexOf(tokenType, SemanticTokenTypes),
		TokenModifiers: modifiers,
	}
}

func indexOf(target string, list []string) int {
	for i, v := range list {
		if v == target {
			return i
		}
	}
	return 0
}
