package errors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
)

// Kind classifies a failure for retry decisions and reporting
type Kind string

const (
	KindTimeout    Kind = "timeout"
	KindConnection Kind = "connection"
	KindProtocol   Kind = "protocol"
	KindServer     Kind = "server"
	KindStatus     Kind = "status"
	KindDecode     Kind = "decode"
	KindRequest    Kind = "request"
	KindFilesystem Kind = "filesystem"
	KindCanceled   Kind = "canceled"
	KindUnknown    Kind = "unknown"
)

// Error represents a classified failure of a single network or storage operation
type Error struct {
	Kind       Kind
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Op == "" {
		b.WriteString("request")
	}
	fmt.Fprintf(&b, " %s error", e.Kind)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.URL != "" {
		fmt.Fprintf(&b, " for %s", e.URL)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a classified error, deriving the kind from err
func New(op, url string, err error) *Error {
	return &Error{
		Kind: Classify(err),
		Op:   op,
		URL:  url,
		Err:  err,
	}
}

// Status builds an error for an HTTP response that carried a failing status code
func Status(op, url string, code int) *Error {
	kind := KindStatus
	if code >= 500 && code < 600 {
		kind = KindServer
	}
	return &Error{
		Kind:       kind,
		Op:         op,
		URL:        url,
		StatusCode: code,
		Err:        fmt.Errorf("unexpected status code: %d", code),
	}
}

// KindOf returns the kind of a classified error, or classifies err on the fly
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Classify(err)
}

// Classify maps transport level errors onto a Kind
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindConnection
	}
	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.EHOSTUNREACH):
		return KindConnection
	case errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF):
		return KindProtocol
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return KindConnection
	}

	// net/http reports framing problems only as text
	msg := err.Error()
	if strings.Contains(msg, "malformed HTTP") ||
		strings.Contains(msg, "server closed idle connection") ||
		strings.Contains(msg, "transport connection broken") {
		return KindProtocol
	}

	return KindUnknown
}

// IsRetryable checks if a failure kind belongs to the transient set
func IsRetryable(kind Kind) bool {
	switch kind {
	case KindTimeout, KindConnection, KindProtocol, KindServer:
		return true
	default:
		return false
	}
}
