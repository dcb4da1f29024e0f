package lang

import (
	"errors"
	"fmt"
	"strings"
)

// Violation is one lint finding, tagged with its S1-S13 code (spec.md
// §4.5).
type Violation struct {
	Code    string
	Message string
	Line    int
}

func (v Violation) String() string {
	return fmt.Sprintf("line %d: %s: %s", v.Line, v.Code, v.Message)
}

// LintError wraps every violation found in one Stage-1 pass. Violations are
// collected rather than reported fail-fast so a submitter sees every
// problem at once.
type LintError struct {
	Violations []Violation
}

func (e *LintError) Error() string {
	lines := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		lines[i] = v.String()
	}
	return "lang: lint failed:\n" + strings.Join(lines, "\n")
}

// ErrContractNotFound is S5 raised as a sentinel for errors.Is checks
// outside this package (e.g. the module loader).
var ErrContractNotFound = errors.New("lang: imported contract not found")

// ErrRecursionLimit is raised when the call stack would exceed
// params.Config.RecursionLimit.
var ErrRecursionLimit = errors.New("lang: recursion limit exceeded")

// ErrUnknownName is raised when an expression references an identifier
// that resolves to nothing in scope.
var ErrUnknownName = errors.New("lang: unknown identifier")

// ErrNotCallable is raised when a call expression's callee does not
// resolve to a function value.
var ErrNotCallable = errors.New("lang: value is not callable")

// ErrMalformedArgs is raised when a builtin receives arguments of the wrong
// shape or type.
var ErrMalformedArgs = errors.New("lang: malformed builtin arguments")

// ErrMemoryLimit is raised when a call's cumulative assigned-value size
// would exceed params.Config.MemoryLimit.
var ErrMemoryLimit = errors.New("lang: memory limit exceeded")

// ErrUnsupportedExponent is raised by the "**" operator for a negative or
// fractional exponent, which the fixed-point Decimal type cannot represent
// exactly.
var ErrUnsupportedExponent = errors.New("lang: ** requires a non-negative integer exponent")

// RevertError is the contract-level assertion failure (spec.md §7's
// RevertRequested kind): raised by a failing `assert` statement inside a
// contract call.
type RevertError struct {
	Message string
}

func (e *RevertError) Error() string {
	if e.Message == "" {
		return "lang: assertion failed"
	}
	return "lang: assertion failed: " + e.Message
}
