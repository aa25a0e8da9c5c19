package errors

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// ErrorLevel represents the severity of a diagnostic
type ErrorLevel string

const (
	Error   ErrorLevel = "error"
	Warning ErrorLevel = "warning"
	Note    ErrorLevel = "note"
)

// Position is a 1-based location in a textual IR file
type Position struct {
	Filename string
	Line     int
	Column   int
}

func (p Position) String() string {
	return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
}

// CompilerError is a diagnostic tied to a source location
type CompilerError struct {
	Level    ErrorLevel
	Code     string   // Error code like E0003
	Message  string   // Primary message
	Position Position // Location in source
	Length   int      // Length of the offending token
	Notes    []string // Additional context notes
	HelpText string   // Help text for the error
}

func (e CompilerError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s[%s]: %s", e.Position, e.Level, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Position, e.Level, e.Message)
}

// NewError creates an error-level diagnostic
func NewError(code string, pos Position, format string, args ...interface{}) CompilerError {
	return CompilerError{
		Level:    Error,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Position: pos,
		Length:   1,
	}
}

// NewWarning creates a warning-level diagnostic
func NewWarning(code string, pos Position, format string, args ...interface{}) CompilerError {
	d := NewError(code, pos, format, args...)
	d.Level = Warning
	return d
}

// WithLength sets the underline width
func (e CompilerError) WithLength(length int) CompilerError {
	e.Length = length
	return e
}

// WithNote appends a note
func (e CompilerError) WithNote(note string) CompilerError {
	e.Notes = append(e.Notes, note)
	return e
}

// WithHelp sets the help line
func (e CompilerError) WithHelp(help string) CompilerError {
	e.HelpText = help
	return e
}

// HasErrors reports whether any diagnostic is error-level
func HasErrors(diags []CompilerError) bool {
	for _, d := range diags {
		if d.Level == Error {
			return true
		}
	}
	return false
}

// ErrorReporter renders diagnostics against the source they came from
type ErrorReporter struct {
	filename string
	lines    []string
}

// NewErrorReporter creates a new error reporter for a file
func NewErrorReporter(filename, source string) *ErrorReporter {
	return &ErrorReporter{
		filename: filename,
		lines:    strings.Split(source, "\n"),
	}
}

// FormatError formats a diagnostic with a header, the offending line and a marker
func (er *ErrorReporter) FormatError(err CompilerError) string {
	var result strings.Builder

	levelColor := levelColor(err.Level)
	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	// Header: error[E0003]: message
	if err.Code != "" {
		result.WriteString(fmt.Sprintf("%s[%s]: %s\n", levelColor(string(err.Level)), err.Code, err.Message))
	} else {
		result.WriteString(fmt.Sprintf("%s: %s\n", levelColor(string(err.Level)), err.Message))
	}

	width := lineNumberWidth(err.Position.Line)
	indent := strings.Repeat(" ", width)

	result.WriteString(fmt.Sprintf("%s %s %s:%d:%d\n",
		indent, dim("-->"), er.filename, err.Position.Line, err.Position.Column))
	result.WriteString(fmt.Sprintf("%s %s\n", indent, dim("│")))

	if err.Position.Line > 0 && err.Position.Line <= len(er.lines) {
		result.WriteString(fmt.Sprintf("%s %s %s\n",
			bold(fmt.Sprintf("%*d", width, err.Position.Line)),
			dim("│"),
			er.lines[err.Position.Line-1]))
		result.WriteString(fmt.Sprintf("%s %s %s\n",
			indent, dim("│"), marker(err.Position.Column, err.Length, err.Level)))
	}

	for _, note := range err.Notes {
		noteColor := color.New(color.FgBlue).SprintFunc()
		result.WriteString(fmt.Sprintf("%s %s %s %s\n", indent, dim("│"), noteColor("note:"), note))
	}

	if err.HelpText != "" {
		helpColor := color.New(color.FgGreen).SprintFunc()
		result.WriteString(fmt.Sprintf("%s %s %s %s\n", indent, dim("│"), helpColor("help:"), err.HelpText))
	}

	result.WriteString("\n")
	return result.String()
}

// FormatInternal formats an internal compiler error raised by the core
func (er *ErrorReporter) FormatInternal(err *InternalError) string {
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	return fmt.Sprintf("%s[%s]: %s\n  while compiling %s\n\n",
		red("internal compiler error"), err.Code, err.Message, er.filename)
}

func levelColor(level ErrorLevel) func(...interface{}) string {
	switch level {
	case Warning:
		return color.New(color.FgYellow, color.Bold).SprintFunc()
	case Note:
		return color.New(color.FgBlue, color.Bold).SprintFunc()
	default:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	}
}

func marker(column, length int, level ErrorLevel) string {
	if length <= 0 {
		length = 1
	}
	spaces := strings.Repeat(" ", max(0, column-1))
	return spaces + levelColor(level)(strings.Repeat("^", length))
}

func lineNumberWidth(line int) int {
	width := len(fmt.Sprintf("%d", line))
	if width < 3 {
		width = 3 // minimum width for visual alignment
	}
	return width
}
