// Package hosterror implements the ABI-stable host-panic error convention
// of spec.md §6: admission failures are raised to the host as ASCII byte
// strings of the form ERR_<DOMAIN>_<CAUSE>, distinct from execution errors
// (which are reported inside SubmitResult.status instead). Using
// github.com/pkg/errors here — rather than plain errors.New — gives every
// host-panic error a stack trace at the point it was raised, which matters
// because these errors cross the host boundary and the relayer sees only
// the flat string; the stack is what a human debugging the engine sees in
// the log next to it.
package hosterror

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error is a host-panic-style admission error. Its Error() string is always
// exactly Code, keeping the ABI stable; additional context is available via
// Unwrap for structured logging without polluting the on-the-wire string.
type Error struct {
	Code string
	wrapped error
}

func (e *Error) Error() string { return e.Code }
func (e *Error) Unwrap() error { return e.wrapped }

// New constructs a bare host-panic error with a stack trace attached.
func New(code string) *Error {
	return &Error{Code: code, wrapped: errors.New(code)}
}

// Newf formats a code with extra detail, e.g. "ERR_INCORRECT_NONCE: ac: 0, tx: 1".
// Code holds the full formatted string (prefix, ": ", detail), which Error()
// returns so relayers see the detail the spec's concrete scenario (§8.3)
// requires; Is matches such an error by its prefix alone.
func Newf(prefix, format string, args ...interface{}) *Error {
	detail := fmt.Sprintf(format, args...)
	full := prefix + ": " + detail
	return &Error{Code: full, wrapped: errors.New(full)}
}

// Is reports whether err is a hosterror.Error whose Code has the given
// prefix — used by tests and by callers that only care about the error
// class, not the exact formatted detail.
func Is(err error, prefix string) bool {
	var he *Error
	if !errors.As(err, &he) {
		return false
	}
	return len(he.Code) >= len(prefix) && he.Code[:len(prefix)] == prefix
}

// Common admission error codes (spec.md §6, §7).
const (
	CodePaused              = "ERR_PAUSED"
	CodeNotAllowed          = "ERR_NOT_ALLOWED"
	CodeParseTransaction    = "ERR_PARSE_TRANSACTION"
	CodeInvalidChainID      = "ERR_INVALID_CHAIN_ID"
	CodeInvalidSignature    = "ERR_INVALID_SIGNATURE"
	CodeIncorrectNonce      = "ERR_INCORRECT_NONCE"
	CodeIntrinsicGas        = "ERR_INTRINSIC_GAS"
	CodeFixedGasOverflow    = "ERR_FIXED_GAS_OVERFLOW"
	CodeMaxGasPriceExceeded = "ERR_MAX_GAS_PRICE_EXCEEDED"
	CodeOutOfFund           = "ERR_OUT_OF_FUND"
	CodeStateCorrupt        = "ERR_STATE_CORRUPT"
	CodeDiffInvalid         = "ERR_DIFF_INVALID"
	CodeAlreadyInitialized  = "ERR_ALREADY_INITIALIZED"
	CodeInvalidValue        = "ERR_INVALID_VALUE"
	CodeNotInitialized      = "ERR_NOT_INITIALIZED"
)
