package validator

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	v, err := New(Options{Mode: ModeNone})
	require.NoError(t, err)
	assert.IsType(t, Noop{}, v)

	v, err = New(Options{})
	require.NoError(t, err)
	assert.IsType(t, Noop{}, v)

	v, err = New(Options{Mode: ModeTCP, Retries: 0})
	require.NoError(t, err)
	require.IsType(t, &TCP{}, v)
	assert.Equal(t, 1, v.(*TCP).retries)

	v, err = New(Options{Mode: ModeA2S, Retries: 3, BufferSize: 1400})
	require.NoError(t, err)
	assert.IsType(t, &A2S{}, v)

	_, err = New(Options{Mode: "icmp"})
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestNoop(t *testing.T) {
	ok, err := Noop{}.Validate(context.Background(), "192.0.2.1:1", "", time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTCP_Reachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	v := &TCP{retries: 1}
	ok, err := v.Validate(context.Background(), ln.Addr().String(), "key", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTCP_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	v := &TCP{retries: 2}
	ok, err := v.Validate(context.Background(), addr, "key", 200*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTCP_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v := &TCP{retries: 3}
	ok, err := v.Validate(ctx, "127.0.0.1:1", "key", time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)
}

func TestA2S_BadAddress(t *testing.T) {
	v := &A2S{retries: 1}
	ok, err := v.Validate(context.Background(), "no-port", "key", time.Millisecond)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestA2S_IPv6Rejected(t *testing.T) {
	v := &A2S{retries: 1}
	ok, err := v.Validate(context.Background(), "[2001:db8::1]:27015", "key", time.Millisecond)
	assert.ErrorIs(t, err, ErrNotIPv4)
	assert.False(t, ok)
}
