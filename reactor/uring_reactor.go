// File: reactor/uring_reactor.go
//go:build linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor - Linux io_uring implementation.

package reactor

import (
	"context"
	"syscall"

	"github.com/godzie44/go-uring/uring"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/momentics/hioload-echo/api"
	"github.com/momentics/hioload-echo/control"
	"github.com/momentics/hioload-echo/internal/session"
)

const (
	// Entries is the submission/completion ring capacity.
	Entries = 1024

	// cqBatch bounds how many completions one Tick harvests.
	cqBatch = 1024
)

// Reactor owns the kernel ring and drives every socket through a strict
// recv -> send -> recv cycle, plus a continuously re-armed accept on the
// listening socket. For every active handle there is exactly one
// outstanding kernel operation between the accept completion that created
// it and the terminal completion that removes it; that serialization is
// what keeps ring-buffer commits race-free without locks.
type Reactor struct {
	ring     *uring.Ring
	registry *session.Registry
	listenFD int
	log      *zap.Logger
	metrics  *control.Metrics
	cqes     []*uring.CQEvent // reused harvest buffer, one batch deep
}

// New initializes the kernel ring. Failure to obtain io_uring support is a
// fatal initialization error for the process.
func New(listenFD int, reg *session.Registry, log *zap.Logger, m *control.Metrics) (*Reactor, error) {
	ring, err := uring.New(Entries)
	if err != nil {
		return nil, errors.Wrap(err, "io_uring init")
	}
	return &Reactor{
		ring:     ring,
		registry: reg,
		listenFD: listenFD,
		log:      log,
		metrics:  m,
		cqes:     make([]*uring.CQEvent, cqBatch),
	}, nil
}

// Close releases the kernel ring. Outstanding operations are abandoned;
// their resources die with the process.
func (r *Reactor) Close() error {
	return r.ring.Close()
}

// Run arms the initial accept and spins on Tick until the context is done.
// The drain is non-blocking; the loop re-enters immediately.
func (r *Reactor) Run(ctx context.Context) error {
	if err := r.start(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := r.Tick(); err != nil {
			return err
		}
	}
}

// start submits the bootstrap accept and flushes it to the kernel.
func (r *Reactor) start() error {
	if err := r.submitAccept(); err != nil {
		return err
	}
	if _, err := r.ring.Submit(); err != nil {
		return errors.Wrap(err, "flush bootstrap accept")
	}
	r.log.Info("reactor armed", zap.Int("listen_fd", r.listenFD))
	return nil
}

// Tick harvests one batch of completions, dispatches them in kernel
// delivery order, and flushes whatever the dispatch queued.
func (r *Reactor) Tick() error {
	n := r.ring.PeekCQEventBatch(r.cqes)
	if n == 0 {
		return nil
	}
	for _, cqe := range r.cqes[:n] {
		op := unpack(cqe.UserData)
		res := cqe.Res
		cqeErr := cqe.Error()
		r.ring.SeenCQE(cqe)

		// A failed completion is logged and skipped without touching
		// connection state. For accepts this means no re-arm happens from
		// this completion; a spurious accept failure would silence the
		// listener. See the design notes in DESIGN.md.
		if cqeErr != nil {
			r.log.Warn("completion failed",
				zap.Stringer("op", op.kind),
				zap.Uint32("payload", op.val),
				zap.Error(cqeErr))
			continue
		}

		var err error
		switch op.kind {
		case opAccept:
			err = r.completeAccept(res)
		case opRecv:
			err = r.completeRecv(op.handle(), res)
		case opSend:
			err = r.completeSend(op.handle(), res)
		default:
			r.log.Warn("completion with unknown tag", zap.Uint64("user_data", cqe.UserData))
		}
		if err != nil {
			return err
		}
	}
	if _, err := r.ring.Submit(); err != nil {
		return errors.Wrap(err, "flush submission queue")
	}
	return nil
}

// completeAccept admits the new socket into the table and arms its first
// recv, then re-arms accept on the listener.
func (r *Reactor) completeAccept(res int32) error {
	if res <= 0 {
		r.log.Warn("accept produced no connection", zap.Int32("res", res))
		return nil
	}
	sock := int(res)

	handle, err := r.registry.Add(sock)
	if err != nil {
		// Table full: the accepted socket is ours to close. The listener
		// stays armed so capacity freed later is usable immediately.
		r.metrics.Rejected.Inc()
		r.log.Warn("connection rejected", zap.Int("sock", sock), zap.Error(err))
		_ = syscall.Close(sock)
		return r.submitAccept()
	}

	r.metrics.Accepted.Inc()
	r.log.Debug("connection accepted", zap.Int("handle", handle), zap.Int("sock", sock))

	if err := r.submitRecv(handle); err != nil {
		return err
	}
	return r.submitAccept()
}

// completeRecv publishes the received bytes and schedules their echo.
// A result of zero is EOF; the handle is released.
func (r *Reactor) completeRecv(handle int, res int32) error {
	if res <= 0 {
		r.metrics.Closed.Inc()
		r.log.Debug("connection closed on recv", zap.Int("handle", handle), zap.Int32("res", res))
		r.registry.Remove(handle)
		return nil
	}
	ring := r.registry.Ring(handle)
	if err := ring.CommitPush(int(res)); err != nil {
		// The kernel never reports more bytes than the slice it was handed.
		return api.NewError(api.ErrCodeUnexpected, "recv overcommit").
			WithContext("handle", handle).WithContext("cause", err.Error())
	}
	r.metrics.BytesIn.Add(int64(res))
	return r.submitSend(handle)
}

// completeSend consumes the echoed bytes and re-arms recv. Bytes the kernel
// did not take stay queued and lead the next send.
func (r *Reactor) completeSend(handle int, res int32) error {
	if res <= 0 {
		r.metrics.Closed.Inc()
		r.log.Debug("connection closed on send", zap.Int("handle", handle), zap.Int32("res", res))
		r.registry.Remove(handle)
		return nil
	}
	ring := r.registry.Ring(handle)
	if err := ring.CommitPop(int(res)); err != nil {
		return api.NewError(api.ErrCodeUnexpected, "send overdrain").
			WithContext("handle", handle).WithContext("cause", err.Error())
	}
	r.metrics.BytesOut.Add(int64(res))
	return r.submitRecv(handle)
}

// queue enqueues one SQE. When the submission queue is full it flushes to
// the kernel and retries once; a second failure is fatal.
func (r *Reactor) queue(op uring.Operation, userData uint64) error {
	if err := r.ring.QueueSQE(op, 0, userData); err == nil {
		return nil
	}
	r.metrics.SubmitRetries.Inc()
	if _, err := r.ring.Submit(); err != nil {
		return errors.Wrap(err, "flush full submission queue")
	}
	if err := r.ring.QueueSQE(op, 0, userData); err != nil {
		return api.NewError(api.ErrCodeUnexpected, "submission queue full after flush").
			WithContext("cause", err.Error())
	}
	return nil
}

func (r *Reactor) submitAccept() error {
	return r.queue(uring.Accept(uintptr(r.listenFD), 0), acceptCtx(r.listenFD).pack())
}

func (r *Reactor) submitRecv(handle int) error {
	buf := r.registry.Ring(handle).AvailSlice()
	if len(buf) == 0 {
		return api.NewError(api.ErrCodeUnexpected, "recv armed with a full ring").
			WithContext("handle", handle)
	}
	return r.queue(uring.Recv(uintptr(r.registry.Sock(handle)), buf, 0), recvCtx(handle).pack())
}

func (r *Reactor) submitSend(handle int) error {
	buf := r.registry.Ring(handle).Slice()
	if len(buf) == 0 {
		return api.NewError(api.ErrCodeUnexpected, "send armed with an empty ring").
			WithContext("handle", handle)
	}
	return r.queue(uring.Send(uintptr(r.registry.Sock(handle)), buf, 0), sendCtx(handle).pack())
}
