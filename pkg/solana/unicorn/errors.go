package unicorn

import (
	"errors"
	"fmt"
)

// Kind classifies every error surfaced by this package.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindAddressDerivation
	KindNotFound
	KindMalformedAccount
	KindRemoteRejected
	KindTimeout
	KindTransport
	KindPriceMismatch
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrAddressDerivation = errors.New("address derivation failed")
	ErrNotFound          = errors.New("account not found")
	ErrMalformedAccount  = errors.New("malformed account")
	ErrRemoteRejected    = errors.New("rejected by program")
	ErrTimeout           = errors.New("timed out")
	ErrTransport         = errors.New("transport failure")
	ErrPriceMismatch     = errors.New("price mismatch")

	// ErrInvalidAmount is an InvalidInput raised by unit conversion.
	ErrInvalidAmount = fmt.Errorf("%w: amount", ErrInvalidInput)
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "InvalidInput"
	case KindAddressDerivation:
		return "AddressDerivationFailure"
	case KindNotFound:
		return "NotFound"
	case KindMalformedAccount:
		return "MalformedAccount"
	case KindRemoteRejected:
		return "RemoteRejected"
	case KindTimeout:
		return "Timeout"
	case KindTransport:
		return "TransportFailure"
	case KindPriceMismatch:
		return "PriceMismatch"
	}
	return "Unknown"
}

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidInput:
		return ErrInvalidInput
	case KindAddressDerivation:
		return ErrAddressDerivation
	case KindNotFound:
		return ErrNotFound
	case KindMalformedAccount:
		return ErrMalformedAccount
	case KindRemoteRejected:
		return ErrRemoteRejected
	case KindTimeout:
		return ErrTimeout
	case KindTransport:
		return ErrTransport
	case KindPriceMismatch:
		return ErrPriceMismatch
	}
	return nil
}

// Error is a classified failure. Msg carries remote diagnostics verbatim
// for RemoteRejected.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	s := e.Op + ": " + e.Kind.String()
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind, so errors.Is(err, ErrNotFound)
// works on any wrapped *Error.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && s == target
}

func newError(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

func invalidInput(op, format string, args ...any) *Error {
	return newError(KindInvalidInput, op, fmt.Sprintf(format, args...), nil)
}

func malformed(op, format string, args ...any) *Error {
	return newError(KindMalformedAccount, op, fmt.Sprintf(format, args...), nil)
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Retryable reports whether re-submitting could help. The caller still has
// to confirm the previous attempt did not commit.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTimeout, KindTransport:
		return true
	}
	return false
}

// PriceMismatchError reports a disagreement between the local curve and the
// price stored on the project account.
type PriceMismatchError struct {
	Project  string
	Expected uint64
	Actual   uint64
}

func (e *PriceMismatchError) Error() string {
	return fmt.Sprintf("project %s: curve price %d, account price %d", e.Project, e.Expected, e.Actual)
}

func (e *PriceMismatchError) Is(target error) bool {
	return target == ErrPriceMismatch
}

// Custom error codes raised by the launchpad program.
var programErrors = []string{
	"ProjectNotActive",
	"FundingGoalReached",
	"Overflow",
	"InvalidAmount",
	"InvalidProjectAccount",
	"InvalidAuthority",
}

// ProgramErrorName names a custom program error code, or returns "" for
// codes the program does not define.
func ProgramErrorName(code uint32) string {
	if int(code) < len(programErrors) {
		return programErrors[code]
	}
	return ""
}
