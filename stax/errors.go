package stax

import (
	"fmt"
	"strings"
)

// Trap is a runtime fault. A trap aborts the current run; the VM's stack and
// pointer remain inspectable afterwards.
type Trap int

const (
	TrapStackOverflow Trap = iota
	TrapStackUnderflow
	TrapDivByZero
	TrapOperandNotProvided
	TrapAddersOutOfBounds
	TrapProgramEndedWithoutHalt
	TrapTypeMismatch
)

func (t Trap) String() string {
	return []string{
		"StackOverflow",
		"StackUnderflow",
		"DivByZero",
		"OperandNotProvided",
		"AddersOutOfBounds",
		"ProgramEndedWithoutHalt",
		"TypeMismatch",
	}[t]
}

func (t Trap) Error() string {
	return fmt.Sprintf("trap: %s", t.String())
}

type ErrorType int

const (
	ErrorLexer ErrorType = iota
	ErrorParser
	ErrorCompile
)

func (t ErrorType) String() string {
	return []string{
		"LexerError",
		"ParserError",
		"CompileError",
	}[t]
}

type StaxError struct {
	Type ErrorType
	Msg  string
	Loc  Loc
}

func (e *StaxError) Error() string {
	if e.Loc.FileName != "" {
		return fmt.Sprintf("%s: %s at %s:%s", e.Type.String(), e.Msg, e.Loc.FileName, e.Loc.String())
	}
	return fmt.Sprintf("%s: %s", e.Type.String(), e.Msg)
}

func (e *StaxError) GetLocation() Loc {
	return e.Loc
}

// ShowSource renders the error with the offending source line underlined.
func (e *StaxError) ShowSource(source string) string {
	lines := strings.Split(source, "\n")
	if e.Loc.Line > 0 && e.Loc.Line <= len(lines) {
		line := lines[e.Loc.Line-1]
		width := 1
		if e.Loc.ColEnd != nil && *e.Loc.ColEnd >= e.Loc.ColStart {
			width = *e.Loc.ColEnd - e.Loc.ColStart + 1
		}
		underline := strings.Repeat(" ", e.Loc.ColStart-1) + strings.Repeat("^", width)
		return fmt.Sprintf("%s\n%s\n%s", e.Error(), line, underline)
	}
	return e.Error()
}

func NewLexerError(msg string, loc Loc) *StaxError {
	return &StaxError{Type: ErrorLexer, Msg: msg, Loc: loc}
}

func NewParserError(msg string, loc Loc) *StaxError {
	return &StaxError{Type: ErrorParser, Msg: msg, Loc: loc}
}

func NewCompileError(msg string, loc Loc) *StaxError {
	return &StaxError{Type: ErrorCompile, Msg: msg, Loc: loc}
}

func CompileErrorf(loc Loc, format string, args ...any) *StaxError {
	return NewCompileError(fmt.Sprintf(format, args...), loc)
}
