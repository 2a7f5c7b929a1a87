package server

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/AlibekovAA/session-auth/internal/common/logger"
)

func TestRun_RunsHooksOnShutdown(t *testing.T) {
	log := logger.NewWriter(io.Discard, "test", "ERROR")
	srv := NewServer(DefaultServerConfig("0"), http.NotFoundHandler())
	srv.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())

	var order []string
	hooks := []ShutdownHook{
		func(context.Context) error { order = append(order, "first"); return nil },
		func(context.Context) error { order = append(order, "second"); return nil },
	}

	done := make(chan error, 1)
	go func() { done <- Run(ctx, srv, log, "test", hooks) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("unexpected hook order: %v", order)
	}
}

func TestRun_ReportsListenError(t *testing.T) {
	log := logger.NewWriter(io.Discard, "test", "ERROR")
	srv := NewServer(DefaultServerConfig("0"), http.NotFoundHandler())
	srv.Addr = "invalid-address:::"

	err := Run(context.Background(), srv, log, "test", nil)
	if err == nil {
		t.Fatal("expected listen error")
	}
}
