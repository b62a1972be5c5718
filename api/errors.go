package api

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every failure surfaced by isocheck matches exactly one of these
// through errors.Is.
var (
	// ErrConnection reports that the backend could not be reached.
	ErrConnection = errors.New("isocheck: backend unreachable")
	// ErrQuery reports that the backend rejected a query or mutation.
	ErrQuery = errors.New("isocheck: query rejected")
	// ErrCommit reports that the backend refused to commit, typically on a
	// write-write conflict. Under strong isolation this is an expected outcome.
	ErrCommit = errors.New("isocheck: commit rejected")
	// ErrEmptyResult reports that a read expected to match fixture data
	// matched nothing.
	ErrEmptyResult = errors.New("isocheck: empty result")
	// ErrDecode reports that a raw result did not have the expected shape.
	ErrDecode = errors.New("isocheck: decode failed")
	// ErrParam reports a missing or mistyped scenario parameter.
	ErrParam = errors.New("isocheck: invalid parameter")
	// ErrTxnDone reports use of a transaction handle after commit or abort.
	ErrTxnDone = errors.New("isocheck: transaction already finished")
)

// Error carries the kind of a failure together with where it happened.
type Error struct {
	// Kind is one of the Err* sentinels.
	Kind error
	// Op is the catalog operation (g1a1, wsInit, ...), when known.
	Op string
	// Step is the backend step that failed (g1a.lookup, ...), when known.
	Step string
	// Err is the underlying cause.
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	var inner *Error
	nested := e.Err != nil && errors.As(e.Err, &inner)
	switch {
	case nested:
		b.WriteString("isocheck:")
	case e.Kind != nil:
		b.WriteString(e.Kind.Error())
	default:
		b.WriteString("isocheck: error")
	}
	if e.Op != "" && (!nested || e.Op != inner.Op) {
		b.WriteString(" op=")
		b.WriteString(e.Op)
	}
	if e.Step != "" && (!nested || e.Step != inner.Step) {
		b.WriteString(" step=")
		b.WriteString(e.Step)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Wrap returns err as an *Error of the given kind. Errors that already carry
// a kind keep it; missing step context is filled in.
func Wrap(kind error, step string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if !errors.As(err, &existing) {
		return &Error{Kind: kind, Step: step, Err: err}
	}
	if existing.Step != "" || step == "" {
		return err
	}
	return annotate(err, existing, existing.Op, step)
}

// WithOp annotates err with the catalog operation name.
func WithOp(op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if !errors.As(err, &existing) {
		return &Error{Op: op, Err: err}
	}
	if existing.Op != "" {
		return err
	}
	return annotate(err, existing, op, existing.Step)
}

// annotate sets op and step on err, whose chain holds existing. A bare *Error
// is copied; otherwise err becomes the cause of a new *Error of the same kind
// so context added by intermediate wrappers is kept.
func annotate(err error, existing *Error, op, step string) error {
	if direct, ok := err.(*Error); ok && direct == existing {
		clone := *existing
		clone.Op, clone.Step = op, step
		return &clone
	}
	return &Error{Kind: existing.Kind, Op: op, Step: step, Err: err}
}

// ParamError reports a bad parameter.
func ParamError(key string, err error) error {
	return &Error{Kind: ErrParam, Err: fmt.Errorf("%s: %w", key, err)}
}

// EmptyResult reports that step matched nothing.
func EmptyResult(step string) error {
	return &Error{Kind: ErrEmptyResult, Step: step, Err: errors.New("no rows")}
}

// DecodeError reports that step returned a result of unexpected shape.
func DecodeError(step string, format string, args ...any) error {
	return &Error{Kind: ErrDecode, Step: step, Err: fmt.Errorf(format, args...)}
}

// KindOf returns a short label for the kind of err.
func KindOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrConnection):
		return "connection"
	case errors.Is(err, ErrCommit):
		return "commit"
	case errors.Is(err, ErrQuery):
		return "query"
	case errors.Is(err, ErrEmptyResult):
		return "empty_result"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrParam):
		return "param"
	case errors.Is(err, ErrTxnDone):
		return "txn_done"
	default:
		return "unknown"
	}
}

// Rejected reports whether err means the backend refused the transaction,
// which scenarios treat as an expected outcome rather than a harness fault.
func Rejected(err error) bool {
	return errors.Is(err, ErrCommit) || errors.Is(err, ErrQuery)
}
