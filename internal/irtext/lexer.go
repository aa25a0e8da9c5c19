package irtext

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// GirLexer tokenizes textual IR. Newlines are significant: every
// declaration and instruction ends at one.
var GirLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		// Comments, including the block banners of dumps
		{"Comment", `#[^\n]*`, nil},

		{"Arrow", `->`, nil},

		// Operands
		{"Register", `%[A-Za-z0-9_]+`, nil},
		{"Label", `\$[0-9]+`, nil},
		{"Number", `[-+]?(0[xX][0-9a-fA-F]+|[0-9]+(\.[0-9]+)?([eE][-+]?[0-9]+)?)|(NaN|[-+]Inf)\b`, nil},

		// Directives and opcode modifiers both lex as .name
		{"Suffix", `\.[A-Za-z_][A-Za-z0-9_]*`, nil},
		{"Ident", `[A-Za-z_][A-Za-z0-9_]*`, nil},

		{"Punctuation", `[(){}!,:@]`, nil},

		{"EOL", `\n`, nil},
		{"Whitespace", `[ \t\r]+`, nil},
	},
})
