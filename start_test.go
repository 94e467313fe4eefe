package main

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/callebjorkell/nfc-bridge/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(address string) *config.Config {
	cfg := config.Default()
	cfg.StateDB = ":memory:"
	cfg.Reader.Enabled = false
	cfg.Control.Address = ""
	cfg.UI.SwitchPin = ""
	cfg.Transport.Address = address
	return cfg
}

func TestRunServerStopsWhenTransportFails(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	done := make(chan error, 1)
	go func() { done <- runServer(context.Background(), testConfig(taken.Addr().String())) }()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("bridge kept running without a consumer transport")
	}
}

func TestRunServerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServer(ctx, testConfig("127.0.0.1:0")) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not stop")
	}
}

func TestRunServerRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig("")
	assert.Error(t, runServer(context.Background(), cfg))
}
