// File: cmd/hioload-echo/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// hioload-echo binary. Usage:
//
//	hioload-echo [port]
//
// The single optional positional argument is the TCP port (default 8000).

//go:build linux

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/momentics/hioload-echo/internal/logging"
	"github.com/momentics/hioload-echo/server"
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [port]\n", os.Args[0])
	}
	pflag.Parse()

	port, err := parsePort(pflag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
		pflag.Usage()
		os.Exit(2)
	}

	log := logging.New(logging.Options{Name: "hioload-echo", Debug: true})
	defer log.Sync()

	cfg := server.DefaultConfig()
	cfg.Port = port

	srv, err := server.New(cfg, server.WithLogger(log))
	if err != nil {
		log.Fatal("server init failed", zap.Error(err))
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go statsTicker(ctx, srv, log)

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("reactor failed", zap.Error(err))
	}
}

// parsePort accepts at most one positional decimal port in 0..65535.
func parsePort(args []string) (int, error) {
	switch len(args) {
	case 0:
		return server.DefaultPort, nil
	case 1:
		port, err := strconv.Atoi(args[0])
		if err != nil || port < 0 || port > 65535 {
			return 0, fmt.Errorf("invalid port %q", args[0])
		}
		return port, nil
	default:
		return 0, fmt.Errorf("too many arguments")
	}
}

// statsTicker records a metrics snapshot and dumps the debug probes
// periodically.
func statsTicker(ctx context.Context, srv *server.Server, log *zap.Logger) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := srv.Metrics().Record()
			log.Info("stats",
				zap.Int64("accepted", s.Accepted),
				zap.Int64("rejected", s.Rejected),
				zap.Int64("closed", s.Closed),
				zap.Int64("bytes_in", s.BytesIn),
				zap.Int64("bytes_out", s.BytesOut),
				zap.Any("probes", srv.Probes().Dump()))
		}
	}
}
