package parser

import (
	"fmt"
	"strings"
)

// Position is a location in the source text.
type Position struct {
	Filename string
	Line     int
	Column   int
}

func (p Position) String() string {
	if p.Filename == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
}

// LexErrorKind categorizes tokenization failures.
type LexErrorKind int

const (
	ErrCharBadFormat LexErrorKind = iota
	ErrStringBadFormat
	ErrNumberBadFormat
	ErrInvalidCharacter
	ErrEmpty
)

func (k LexErrorKind) String() string {
	switch k {
	case ErrCharBadFormat:
		return "malformed character literal"
	case ErrStringBadFormat:
		return "malformed string literal"
	case ErrNumberBadFormat:
		return "malformed number"
	case ErrInvalidCharacter:
		return "invalid character"
	case ErrEmpty:
		return "empty input"
	}
	return fmt.Sprintf("LexErrorKind(%d)", int(k))
}

// LexError is a tokenization error with its source position.
type LexError struct {
	Pos  Position
	Kind LexErrorKind
	Text string // the offending source text
}

func (e *LexError) Error() string {
	if e.Text == "" {
		return fmt.Sprintf("%s: %s", e.Pos, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %q", e.Pos, e.Kind, e.Text)
}

// UnexpectedTokenError reports a token that does not fit the grammar at its
// position.
type UnexpectedTokenError struct {
	Expected string
	Received Token
}

func (e *UnexpectedTokenError) Error() string {
	return fmt.Sprintf("%s: expected %s, received %s", e.Received.Pos, e.Expected, e.Received)
}

// InvalidRuleError reports a statement that matches no production.
type InvalidRuleError struct {
	Token Token
}

func (e *InvalidRuleError) Error() string {
	return fmt.Sprintf("%s: no rule matches %s", e.Token.Pos, e.Token)
}

// DuplicateLabelError reports a label defined twice.
type DuplicateLabelError struct {
	Name string
	Pos  Position
}

func (e *DuplicateLabelError) Error() string {
	return fmt.Sprintf("%s: duplicate label %q", e.Pos, e.Name)
}

// UndefinedLabelError reports an identifier that resolves to no label.
type UndefinedLabelError struct {
	Name string
	Pos  Position
}

func (e *UndefinedLabelError) Error() string {
	return fmt.Sprintf("%s: undefined label %q", e.Pos, e.Name)
}

// ErrorList collects the errors found while assembling a source file.
type ErrorList struct {
	Errors []error
}

// Add appends an error to the list.
func (el *ErrorList) Add(err error) {
	el.Errors = append(el.Errors, err)
}

// HasErrors reports whether any error was collected.
func (el *ErrorList) HasErrors() bool {
	return len(el.Errors) > 0
}

// Error implements the error interface by joining the collected messages.
func (el *ErrorList) Error() string {
	var sb strings.Builder
	for i, err := range el.Errors {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(err.Error())
	}
	return sb.String()
}
