package channel

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type singleBinder struct {
	mu      sync.Mutex
	bound   Invoker
	unbinds int
}

func (b *singleBinder) Bind(inv Invoker) (Handler, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bound != nil {
		return nil, errors.New("already bound")
	}
	b.bound = inv
	return HandlerFunc(func(ctx context.Context, call MethodCall) Result {
		return Success(call.Method)
	}), nil
}

func (b *singleBinder) Unbind(inv Invoker) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bound == inv {
		b.bound = nil
		b.unbinds++
	}
}

func (b *singleBinder) state() (bool, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bound != nil, b.unbinds
}

func dialStream(t *testing.T, addr string) *Stream {
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	return NewStream(conn, JSON)
}

func TestServeListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	b := &singleBinder{}
	served := make(chan error, 1)
	go func() { served <- ServeListener(ctx, ln, JSON, b) }()

	first := dialStream(t, ln.Addr().String())
	go first.Serve(ctx, nil)
	callCtx, callCancel := context.WithTimeout(ctx, time.Second)
	defer callCancel()
	r, err := first.InvokeMethod(callCtx, "configure", nil)
	require.NoError(t, err)
	assert.Equal(t, "configure", r.Value)

	second := dialStream(t, ln.Addr().String())
	secondDone := make(chan error, 1)
	go func() { secondDone <- second.Serve(ctx, nil) }()
	select {
	case err := <-secondDone:
		assert.NoError(t, err, "rejected connection ends cleanly")
	case <-time.After(time.Second):
		t.Fatal("second consumer was not rejected")
	}

	first.Close()
	assert.Eventually(t, func() bool {
		bound, unbinds := b.state()
		return !bound && unbinds == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("listener did not stop")
	}
}
