package modelfile

import (
	"errors"
	"fmt"
)

// SyntaxError reports a malformed document. Parsing never yields a partial result.
type SyntaxError struct {
	Offset int
	Line   int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("modelfile: syntax error at line %d: %s", e.Line, e.Msg)
}

// Reason classifies a ValidationError.
type Reason int

const (
	UnknownParameter Reason = iota
	InvalidType
	UnknownRole
	MalformedArgument
	MissingFrom
)

func (r Reason) String() string {
	switch r {
	case UnknownParameter:
		return "unknown parameter"
	case InvalidType:
		return "invalid type"
	case UnknownRole:
		return "unknown role"
	case MalformedArgument:
		return "malformed argument"
	case MissingFrom:
		return "missing FROM"
	}
	return "unknown"
}

// ValidationError reports a well-formed command that carries an invalid value.
// Name is the offending parameter name or role token.
type ValidationError struct {
	Instruction Instruction
	Name        string
	Value       string
	Want        Kind
	Reason      Reason
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case UnknownParameter:
		return fmt.Sprintf("modelfile: unknown parameter %q", e.Name)
	case InvalidType:
		return fmt.Sprintf("modelfile: parameter %q: %q is not %s", e.Name, e.Value, e.Want.article())
	case UnknownRole:
		return fmt.Sprintf("modelfile: %q is not a valid message role (want system, user or assistant)", e.Name)
	case MalformedArgument:
		return fmt.Sprintf("modelfile: malformed %s argument %q", e.Instruction, e.Value)
	case MissingFrom:
		return "modelfile: missing FROM instruction"
	}
	return "modelfile: invalid " + string(e.Instruction)
}

// IsSyntax reports whether err is (or wraps) a *SyntaxError.
func IsSyntax(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
}

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
