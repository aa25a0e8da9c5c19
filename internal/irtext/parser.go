// Package irtext reads the textual IR printed by the ir package back into
// a unit.
package irtext

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"gbe/internal/errors"
)

var parser = participle.MustBuild[File](
	participle.Lexer(GirLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(2),
)

// Parse parses source into its syntax tree. A syntax error comes back as
// a single E0001 diagnostic.
func Parse(filename, source string) (*File, []errors.CompilerError) {
	file, err := parser.ParseString(filename, source)
	if err != nil {
		return nil, []errors.CompilerError{syntaxError(filename, err)}
	}
	return file, nil
}

// ParseFile reads and parses the file at path
func ParseFile(path string) (*File, []errors.CompilerError, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read file: %w", err)
	}
	file, diags := Parse(path, string(source))
	return file, diags, nil
}

func syntaxError(filename string, err error) errors.CompilerError {
	pe, ok := err.(participle.Error)
	if !ok {
		return errors.NewError(errors.ErrorSyntax, errors.Position{Filename: filename, Line: 1, Column: 1}, "%s", err)
	}
	msg := pe.Message()
	d := errors.NewError(errors.ErrorSyntax, position(pe.Position()), "%s", msg)
	if strings.Contains(msg, "EOL") {
		d = d.WithHelp("every declaration and instruction sits on its own line")
	}
	return d
}

func position(pos lexer.Position) errors.Position {
	return errors.Position{Filename: pos.Filename, Line: pos.Line, Column: pos.Column}
}
