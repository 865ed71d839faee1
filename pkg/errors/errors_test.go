package errors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"canceled", context.Canceled, KindCanceled},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"net timeout", &net.OpError{Op: "read", Err: timeoutErr{}}, KindTimeout},
		{"dns", &net.DNSError{Err: "no such host", Name: "civitai.invalid"}, KindConnection},
		{"refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, KindConnection},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("network down")}, KindConnection},
		{"reset", fmt.Errorf("read: %w", syscall.ECONNRESET), KindProtocol},
		{"unexpected eof", io.ErrUnexpectedEOF, KindProtocol},
		{"malformed", errors.New(`net/http: HTTP/1.x transport connection broken: malformed HTTP response "xx"`), KindProtocol},
		{"already classified", fmt.Errorf("wrapped: %w", &Error{Kind: KindDecode}), KindDecode},
		{"plain", errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	if got := Status("fetch page", "u", 503); got.Kind != KindServer || got.StatusCode != 503 {
		t.Errorf("Expected server kind for 503, got %s", got.Kind)
	}
	if got := Status("fetch page", "u", 404); got.Kind != KindStatus {
		t.Errorf("Expected status kind for 404, got %s", got.Kind)
	}
	if got := Status("fetch page", "u", 429); got.Kind != KindStatus {
		t.Errorf("Expected status kind for 429, got %s", got.Kind)
	}
}

func TestIsRetryable(t *testing.T) {
	retryable := []Kind{KindTimeout, KindConnection, KindProtocol, KindServer}
	for _, k := range retryable {
		if !IsRetryable(k) {
			t.Errorf("Expected %s to be retryable", k)
		}
	}

	fatal := []Kind{KindStatus, KindDecode, KindRequest, KindFilesystem, KindCanceled, KindUnknown}
	for _, k := range fatal {
		if IsRetryable(k) {
			t.Errorf("Expected %s to be fatal", k)
		}
	}
}

func TestErrorMessageAndUnwrap(t *testing.T) {
	inner := io.ErrUnexpectedEOF
	e := New("download", "https://img.example/1.png", inner)

	if e.Kind != KindProtocol {
		t.Errorf("Expected protocol kind, got %s", e.Kind)
	}
	if !errors.Is(e, io.ErrUnexpectedEOF) {
		t.Error("Expected error to unwrap to io.ErrUnexpectedEOF")
	}

	want := "download protocol error for https://img.example/1.png: unexpected EOF"
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}

	status := Status("download", "https://img.example/2.png", 404)
	want = "download status error (status 404) for https://img.example/2.png: unexpected status code: 404"
	if status.Error() != want {
		t.Errorf("Error() = %q, want %q", status.Error(), want)
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", &Error{Kind: KindFilesystem})
	if KindOf(wrapped) != KindFilesystem {
		t.Errorf("Expected filesystem kind, got %s", KindOf(wrapped))
	}
	if KindOf(context.DeadlineExceeded) != KindTimeout {
		t.Errorf("Expected timeout kind for deadline")
	}
}
