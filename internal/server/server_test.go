package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerRunStopsOnCancel(t *testing.T) {
	conf := Config{
		Server: ServerConfig{Host: "127.0.0.1", Port: 18408},
		Auth:   AuthConfig{AccessTokens: []string{"secret"}},
	}
	require.NoError(t, conf.Validate())

	srv, err := NewServer(conf)
	require.NoError(t, err)
	defer func() { assert.NoError(t, srv.Shutdown()) }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(300 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not stop")
	}
}
