package bot

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/sony/gobreaker/v2"
)

// FailureClass drives the recovery policy for errors that escape a polling
// cycle: transient network trouble gets a long cooldown before the session is
// re-established, everything else retries immediately.
type FailureClass int

const (
	FailureOther FailureClass = iota
	FailureTransientNetwork
)

func (c FailureClass) String() string {
	if c == FailureTransientNetwork {
		return "transient-network"
	}
	return "other"
}

// transientSignatures matches failure messages from layers that don't expose
// typed errors (proxies, the remote service's own wording).
var transientSignatures = []string{
	"socket hang up",
	"network",
	"connection",
	"timeout",
	"no such host",
	"reset by peer",
}

// Classify reports whether err looks like transient network trouble:
// connection resets, DNS failures, timeouts, an open circuit breaker, or a
// generic network/connection failure signature.
func Classify(err error) FailureClass {
	if err == nil {
		return FailureOther
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return FailureTransientNetwork
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return FailureTransientNetwork
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return FailureTransientNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTransientNetwork
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return FailureTransientNetwork
	}

	msg := strings.ToLower(err.Error())
	for _, sig := range transientSignatures {
		if strings.Contains(msg, sig) {
			return FailureTransientNetwork
		}
	}
	return FailureOther
}
