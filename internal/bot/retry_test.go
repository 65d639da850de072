package bot

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/sony/gobreaker/v2"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o deadline exceeded" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify_Transient(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"connection reset", &net.OpError{Op: "read", Err: syscall.ECONNRESET}},
		{"wrapped econnreset", fmt.Errorf("cycle failed: %w", syscall.ECONNRESET)},
		{"dns failure", &net.DNSError{Err: "no such host", Name: "ais.usvisa-info.com", IsNotFound: true}},
		{"timeout", timeoutErr{}},
		{"socket hang up message", errors.New("socket hang up")},
		{"generic network message", errors.New("network is unreachable")},
		{"generic connection message", errors.New("connection closed before response")},
		{"open circuit breaker", fmt.Errorf("login: %w", gobreaker.ErrOpenState)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != FailureTransientNetwork {
				t.Fatalf("Classify(%v) = %s, want transient-network", tc.err, got)
			}
		})
	}
}

func TestClassify_Other(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"nil", nil},
		{"auth failure", errors.New("sign in rejected: status=401 (check EMAIL/PASSWORD)")},
		{"server error", errors.New("available dates facility=89: status=500")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != FailureOther {
				t.Fatalf("Classify(%v) = %s, want other", tc.err, got)
			}
		})
	}
}
