package messaging

import (
	"errors"
	"fmt"
)

// kindError is a sentinel that specializes a broader sentinel.
type kindError struct {
	kind   string
	parent error
}

func (e *kindError) Error() string { return e.kind }
func (e *kindError) Unwrap() error { return e.parent }

// Sentinel error kinds (stable for errors.Is and for mapping to API status codes).
var (
	ErrInvalidInput = errors.New("invalid_input")
	ErrNotFound     = errors.New("not_found")
	ErrForbidden    = errors.New("forbidden")
	ErrAlreadyRead  = errors.New("already_read")

	// ErrRecipientNotFound also matches ErrNotFound.
	ErrRecipientNotFound error = &kindError{kind: "recipient_not_found", parent: ErrNotFound}
)

// OpError carries the failing operation alongside a sentinel kind.
type OpError struct {
	Op   string
	Kind error
	Msg  string
}

func (e OpError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

func (e OpError) Unwrap() error { return e.Kind }

func opErr(op string, kind error, msg string) error {
	return OpError{Op: op, Kind: kind, Msg: msg}
}
