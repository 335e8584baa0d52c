//go:build linux

package server_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/godzie44/go-uring/uring"
	"go.uber.org/zap"

	"github.com/momentics/hioload-echo/internal/session"
	"github.com/momentics/hioload-echo/pool"
	"github.com/momentics/hioload-echo/server"
)

// requireURing skips tests in environments without io_uring support
// (locked-down kernels, some container runtimes).
func requireURing(t *testing.T) {
	t.Helper()
	ring, err := uring.New(8)
	if err != nil {
		t.Skipf("io_uring unavailable: %v", err)
	}
	ring.Close()
}

func startServer(t *testing.T) (addr string) {
	t.Helper()
	requireURing(t)

	cfg := server.DefaultConfig()
	cfg.Port = 0
	srv, err := server.New(cfg, server.WithLogger(zap.NewNop()))
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				t.Errorf("Run: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("reactor did not stop")
		}
		srv.Close()
	})

	port, err := srv.Port()
	if err != nil {
		t.Fatalf("Port: %v", err)
	}
	return fmt.Sprintf("127.0.0.1:%d", port)
}

func echoOnce(t *testing.T, conn net.Conn, msg []byte) {
	t.Helper()
	if _, err := conn.Write(msg); err != nil {
		t.Fatalf("write: %v", err)
	}
	got := make([]byte, len(msg))
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := io.ReadFull(conn, got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, msg) {
		t.Fatalf("echo mismatch: sent %q, got %q", msg, got)
	}
}

func TestEchoSequence(t *testing.T) {
	addr := startServer(t)

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	echoOnce(t, conn, []byte("hello"))
	echoOnce(t, conn, []byte("world"))
}

func TestSlotReuseAcrossSerialConnections(t *testing.T) {
	addr := startServer(t)

	// More serial connections than the table holds: every one must succeed,
	// which proves slots are released and reused.
	for i := 0; i < session.MaxConnections+1; i++ {
		conn, err := net.DialTimeout("tcp", addr, time.Second)
		if err != nil {
			t.Fatalf("dial %d: %v", i, err)
		}
		echoOnce(t, conn, []byte("ping"))
		conn.Close()
	}
}

func TestBackpressurePageBurst(t *testing.T) {
	addr := startServer(t)

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// A full ring worth of bytes written before any read: the server must
	// echo every byte in order once the client drains.
	msg := bytes.Repeat([]byte("abcdefgh"), pool.Size/8)
	echoOnce(t, conn, msg)

	// Several pages through the same connection.
	for i := 0; i < 4; i++ {
		echoOnce(t, conn, msg)
	}
}
