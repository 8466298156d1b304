/*
 * Copyright (c) Meta Platforms, Inc. and affiliates.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package throttle limits how many client queries are processed at once.
package throttle

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/coredns/coredns/plugin"
	"github.com/miekg/dns"
	"golang.org/x/sync/semaphore"
)

// Limiter counts in-flight queries against a maximum.
type Limiter struct {
	// A Go semaphore is just a locked FIFO queue.
	sem   *semaphore.Weighted
	count atomic.Int64
}

// NewLimiter returns a Limiter admitting maxWorkers concurrent queries.
func NewLimiter(maxWorkers int) (*Limiter, error) {
	if maxWorkers < 1 {
		return nil, fmt.Errorf("invalid number of workers: %d", maxWorkers)
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(maxWorkers))}, nil
}

func (l *Limiter) acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	l.count.Add(1)
	return nil
}

func (l *Limiter) release() {
	l.count.Add(-1)
	l.sem.Release(1)
}

// Count returns the number of queries currently admitted.
func (l *Limiter) Count() int64 {
	return l.count.Load()
}

// Handler is a [plugin.Handler] that limits how many queries
// are currently being processed.  It should be the first handler in the
// chain, and must be used with the associated [Reader].
//
// Handler does not provide an absolute guarantee, because each
// query is marked as "completed" just _before_ its goroutine terminates.
type Handler struct {
	limiter *Limiter
	Next    plugin.Handler
}

// NewHandler initializes a new concurrency-limiting Handler.
func NewHandler(l *Limiter) *Handler {
	return &Handler{limiter: l}
}

// ServeDNS implements the [plugin.Handler] interface.
func (h *Handler) ServeDNS(ctx context.Context, w dns.ResponseWriter, r *dns.Msg) (int, error) {
	defer h.limiter.release()
	return plugin.NextOrFailure(h.Name(), h.Next, ctx, w, r)
}

// Name returns the handler's name.
func (h *Handler) Name() string { return "throttle" }

// Acquire must be called before accepting each incoming query packet.
func (h *Handler) Acquire(ctx context.Context) error {
	return h.limiter.acquire(ctx)
}

// DecorateReader is a [dns.DecorateReader].
func (h *Handler) DecorateReader(inner dns.Reader) dns.Reader {
	return newReader(inner.(dns.PacketConnReader), h)
}

// MsgInvalid is a [dns.MsgInvalidFunc].
func (h *Handler) MsgInvalid([]byte, error) {
	// If an invalid packet arrives, throttle.Reader will acquire
	// the semaphore, but ServeDNS will never be called to release it.
	// Instead, we need to release it here.
	h.limiter.release()
}

// Attach connects this handler to a Server's message processing path.
// This method must be called before the server starts.
func (h *Handler) Attach(s *dns.Server) {
	s.DecorateReader = h.DecorateReader
	s.MsgInvalidFunc = h.MsgInvalid
}

// Reader is a [dns.PacketConnReader] that holds every query it reads until
// the Limiter admits it.
type Reader struct {
	inner   dns.PacketConnReader
	handler *Handler
}

func newReader(inner dns.PacketConnReader, handler *Handler) *Reader {
	return &Reader{
		inner:   inner,
		handler: handler,
	}
}

// admit runs read and then waits for a slot, giving up at the read timeout.
func (r *Reader) admit(timeout time.Duration, read func() error) error {
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, time.Now().Add(timeout))
		defer cancel()
	}
	if err := read(); err != nil {
		return err
	}
	return r.handler.Acquire(ctx)
}

// ReadUDP implements [dns.Reader].
func (r *Reader) ReadUDP(conn *net.UDPConn, timeout time.Duration) (b []byte, s *dns.SessionUDP, err error) {
	if err = r.admit(timeout, func() (err error) {
		b, s, err = r.inner.ReadUDP(conn, timeout)
		return err
	}); err != nil {
		return nil, nil, err
	}
	return b, s, nil
}

// ReadPacketConn implements [dns.PacketConnReader].
func (r *Reader) ReadPacketConn(conn net.PacketConn, timeout time.Duration) (b []byte, addr net.Addr, err error) {
	if err = r.admit(timeout, func() (err error) {
		b, addr, err = r.inner.ReadPacketConn(conn, timeout)
		return err
	}); err != nil {
		return nil, nil, err
	}
	return b, addr, nil
}

// ReadTCP implements [dns.Reader].
func (r *Reader) ReadTCP(conn net.Conn, timeout time.Duration) (b []byte, err error) {
	if err = r.admit(timeout, func() (err error) {
		b, err = r.inner.ReadTCP(conn, timeout)
		return err
	}); err != nil {
		return nil, err
	}
	return b, nil
}
