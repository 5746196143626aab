// Package util holds the compiler's diagnostic machinery: the error
// taxonomy, the fatal Error path, and warning emission.
package util

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/cmm-lang/cmm/pkg/token"
)

type ErrCode int

const (
	// Generator errors
	ErrVariableNotDeclared ErrCode = iota
	ErrVariableAlreadyDeclared
	ErrVariableNotMutable

	// Scanner errors
	ErrStringTooLong
	ErrUnidentifiedToken

	// Parser errors
	ErrExpectedExpression
	ErrExpectedOpenParenthesis
	ErrExpectedCloseParenthesis
	ErrExpectedOpenCurly
	ErrExpectedCloseCurly
	ErrExpectedScope
	ErrExpectedIntegerLiteral
	ErrExpectedEndOfLine
	ErrUnknownOperator

	// Driver errors
	ErrInvalidProgram
	ErrInvalidUsage
	ErrOpenFileError
)

var errorMessages = map[ErrCode]string{
	ErrVariableNotDeclared:      "Variable is not declared: ",
	ErrVariableAlreadyDeclared:  "Variable already declared",
	ErrVariableNotMutable:       "Variable is not mutable",
	ErrStringTooLong:            "Syntax error: string too long",
	ErrUnidentifiedToken:        "Syntax error: unidentified token",
	ErrExpectedExpression:       "Syntax error: expected expression",
	ErrExpectedOpenParenthesis:  "Syntax error: expected (",
	ErrExpectedCloseParenthesis: "Syntax error: expected )",
	ErrExpectedOpenCurly:        "Syntax error: expected {",
	ErrExpectedCloseCurly:       "Syntax error: expected }",
	ErrExpectedScope:            "Syntax error: expected scope",
	ErrExpectedIntegerLiteral:   "Syntax error: expected integer literal",
	ErrExpectedEndOfLine:        "Syntax error: expected ;",
	ErrUnknownOperator:          "Syntax error: unknown operator",
	ErrInvalidProgram:           "Invalid program",
	ErrInvalidUsage:             "Invalid usage",
	ErrOpenFileError:            "Error opening file",
}

func Message(code ErrCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return "Unknown error"
}

// ConstructErrorMessage renders the single diagnostic line. Line and column
// are omitted when zero.
func ConstructErrorMessage(code ErrCode, detail string, line, column int) string {
	var sb strings.Builder
	sb.WriteString(Message(code))
	sb.WriteString(detail)
	if line != 0 {
		fmt.Fprintf(&sb, ", at line: %d", line)
	}
	if column != 0 {
		fmt.Fprintf(&sb, ", column: %d", column)
	}
	sb.WriteString(".\n")
	return sb.String()
}

// exit is the process exit used by the fatal path, held in a variable so it
// can be replaced.
var exit = os.Exit

func stderrIsTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// Error writes one diagnostic line for the token's position and terminates
// the process.
func Error(code ErrCode, tok token.Token) {
	ErrorDetail(code, "", tok)
}

// ErrorDetail is Error with a fragment appended to the base message, used by
// the codes whose message ends in a separator (e.g. the undeclared-variable
// name).
func ErrorDetail(code ErrCode, detail string, tok token.Token) {
	msg := ConstructErrorMessage(code, detail, tok.Line, tok.Column)
	if stderrIsTerminal() {
		fmt.Fprintf(os.Stderr, "\033[31m%s\033[0m", msg)
	} else {
		fmt.Fprint(os.Stderr, msg)
	}
	exit(1)
}

// Fatal reports a driver-level error with no source position.
func Fatal(code ErrCode, detail string) {
	ErrorDetail(code, detail, token.Token{})
}

// Warn writes a non-fatal diagnostic and keeps going.
func Warn(tok token.Token, format string, args ...interface{}) {
	if stderrIsTerminal() {
		fmt.Fprint(os.Stderr, "\033[33mwarning:\033[0m ")
	} else {
		fmt.Fprint(os.Stderr, "warning: ")
	}
	fmt.Fprintf(os.Stderr, format, args...)
	if tok.Line != 0 {
		fmt.Fprintf(os.Stderr, ", at line: %d", tok.Line)
		if tok.Column != 0 {
			fmt.Fprintf(os.Stderr, ", column: %d", tok.Column)
		}
	}
	fmt.Fprintln(os.Stderr)
}
