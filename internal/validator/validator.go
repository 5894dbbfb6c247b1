// Package validator probes announced game servers before they are listed.
package validator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/a2s/pkg/a2s"
)

// Validation modes.
const (
	ModeNone = "none"
	ModeTCP  = "tcp"
	ModeA2S  = "a2s"
)

var (
	// ErrUnknownMode is returned by New for an unsupported mode.
	ErrUnknownMode = errors.New("unknown validation mode")

	// ErrNotIPv4 is returned by the A2S probe for addresses it cannot query.
	ErrNotIPv4 = errors.New("A2S probe requires an IPv4 address")
)

// Validator checks that a game server is reachable at addr ("host:port").
// An error means the check could not be performed; callers treat it as unreachable.
type Validator interface {
	Validate(ctx context.Context, addr, key string, timeout time.Duration) (bool, error)
}

// Options configures the probing validators.
type Options struct {
	Mode       string
	Retries    int
	BufferSize uint16
}

// New returns the validator for opts.Mode.
func New(opts Options) (Validator, error) {
	retries := max(opts.Retries, 1)

	switch opts.Mode {
	case "", ModeNone:
		return Noop{}, nil
	case ModeTCP:
		return &TCP{retries: retries}, nil
	case ModeA2S:
		return &A2S{retries: retries, bufferSize: opts.BufferSize}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, opts.Mode)
	}
}

// Noop accepts every server.
type Noop struct{}

// Validate always succeeds.
func (Noop) Validate(context.Context, string, string, time.Duration) (bool, error) {
	return true, nil
}

// TCP accepts a server if a TCP connection to its port can be opened.
type TCP struct {
	retries int
}

// Validate dials addr up to the configured number of attempts, each bounded by timeout.
func (v *TCP) Validate(ctx context.Context, addr, _ string, timeout time.Duration) (bool, error) {
	dialer := net.Dialer{Timeout: timeout}

	return retry(ctx, addr, v.retries, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		conn, err := dialer.DialContext(attemptCtx, "tcp", addr)
		if err != nil {
			return err
		}

		return conn.Close()
	})
}

// A2S accepts a server if it answers an A2S_INFO query.
type A2S struct {
	retries    int
	bufferSize uint16
}

// Validate queries addr over UDP; each attempt is bounded by timeout.
func (v *A2S) Validate(ctx context.Context, addr, _ string, timeout time.Duration) (bool, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return false, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return false, err
	}

	ip, err := netip.ParseAddr(host)
	if err != nil {
		return false, err
	}
	if ip.IsLoopback() {
		ip = netip.AddrFrom4([4]byte{127, 0, 0, 1})
	}
	ip = ip.Unmap()
	if !ip.Is4() {
		return false, ErrNotIPv4
	}
	host = ip.String()

	return retry(ctx, addr, v.retries, func() error {
		return v.query(host, port, timeout)
	})
}

func (v *A2S) query(host string, port int, timeout time.Duration) error {
	client, err := a2s.New(host, port)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	if v.bufferSize > 0 {
		client.BufferSize = v.bufferSize
	}
	client.Timeout = timeout

	_, err = client.GetInfo()
	return err
}

// retry runs attempt until it succeeds, attempts are exhausted or ctx is done.
// Exhausted attempts report false without error.
func retry(ctx context.Context, addr string, attempts int, attempt func() error) (bool, error) {
	var last error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		if last = attempt(); last == nil {
			return true, nil
		}
	}

	log.Debug().Err(last).Str("addr", addr).Int("attempts", attempts).Msg("Server is not reachable")
	return false, nil
}
