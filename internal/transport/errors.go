package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind classifies why a remote call failed so that callers can branch on the
// cause rather than on the absence of a result.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindTimeout
	KindHTTPStatus
	KindParse
	KindNotFound
	KindMissingFile
	KindCanceled
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindHTTPStatus:
		return "http-status"
	case KindParse:
		return "parse"
	case KindNotFound:
		return "not-found"
	case KindMissingFile:
		return "missing-file"
	case KindCanceled:
		return "canceled"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// Error is returned by every remote operation.
type Error struct {
	Kind   Kind
	Op     string
	URL    string
	Status int
	// Body holds at most MaxBodyExcerpt characters of an unexpected response.
	Body string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.URL != "" {
		b.WriteString(" ")
		b.WriteString(e.URL)
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf reports the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUnknown
}

// Classify wraps a transport level error returned by http.Client.Do.
func Classify(op, url string, err error) *Error {
	return &Error{Kind: classifyKind(err), Op: op, URL: url, Err: err}
}

func classifyKind(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}
