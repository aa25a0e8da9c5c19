package lsp

import (
	"strings"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"gbe/internal/errors"
)

const diagnosticSource = "gbe"

// ConvertDiagnostics turns reader and lowering diagnostics into LSP
// diagnostics. Notes and help text are appended to the message.
func ConvertDiagnostics(diags []errors.CompilerError) []protocol.Diagnostic {
	out := make([]protocol.Diagnostic, 0, len(diags))

	for _, d := range diags {
		line := d.Position.Line - 1
		if line < 0 {
			line = 0
		}
		column := d.Position.Column - 1
		if column < 0 {
			column = 0
		}
		length := d.Length
		if length <= 0 {
			length = 1
		}

		message := d.Message
		for _, note := range d.Notes {
			message += "\nnote: " + note
		}
		if d.HelpText != "" {
			message += "\nhelp: " + d.HelpText
		}

		diagnostic := protocol.Diagnostic{
			Range: protocol.Range{
				Start: protocol.Position{Line: uint32(line), Character: uint32(column)},
				End:   protocol.Position{Line: uint32(line), Character: uint32(column + length)},
			},
			Severity: ptrSeverity(severity(d.Level)),
			Source:   ptrString(diagnosticSource),
			Message:  message,
		}
		if d.Code != "" {
			diagnostic.Code = &protocol.IntegerOrString{Value: d.Code}
		}
		out = append(out, diagnostic)
	}

	return out
}

// internalDiagnostic reports an aborted compilation at the top of the file
func internalDiagnostic(err error) protocol.Diagnostic {
	message := err.Error()
	if code := errors.Code(err); code != "" && !strings.Contains(message, code) {
		message = code + ": " + message
	}
	return protocol.Diagnostic{
		Range: protocol.Range{
			End: protocol.Position{Line: 0, Character: 1},
		},
		Severity: ptrSeverity(protocol.DiagnosticSeverityError),
		Source:   ptrString(diagnosticSource),
		Message:  "internal compiler error: " + message,
	}
}

func severity(level errors.ErrorLevel) protocol.DiagnosticSeverity {
	switch level {
	case errors.Warning:
		return protocol.DiagnosticSeverityWarning
	case errors.Note:
		return protocol.DiagnosticSeverityInformation
	}
	return protocol.DiagnosticSeverityError
}

func ptrSeverity(s protocol.DiagnosticSeverity) *protocol.DiagnosticSeverity {
	return &s
}

func ptrString(s string) *string {
	return &s
}
