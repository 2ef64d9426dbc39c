// Package relay forwards received bytes from a sink queue to a host link,
// typically a serial port.
package relay

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"
)

const DefaultInterval = 100 * time.Millisecond

// Source is drained by the relay; sink.Queue implements it.
type Source interface {
	Drain(p []byte) int
}

type Opt func(*Relay)

func WithInterval(d time.Duration) Opt {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithLogger(l *slog.Logger) Opt {
	return func(r *Relay) {
		r.log = l
	}
}

type Relay struct {
	src      Source
	dst      io.Writer
	interval time.Duration
	log      *slog.Logger
	sent     atomic.Int64
	buf      [64]byte
}

func New(src Source, dst io.Writer, opts ...Opt) *Relay {
	r := &Relay{
		src:      src,
		dst:      dst,
		interval: DefaultInterval,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run drains the source every interval until ctx is done, then flushes what
// is left once more.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return r.Flush()
		case <-ticker.C:
			if err := r.Flush(); err != nil {
				return err
			}
		}
	}
}

// Flush writes everything currently queued. Run and Flush must not be called
// concurrently.
func (r *Relay) Flush() error {
	for {
		n := r.src.Drain(r.buf[:])
		if n == 0 {
			return nil
		}
		if _, err := r.dst.Write(r.buf[:n]); err != nil {
			return fmt.Errorf("could not relay %d bytes: %w", n, err)
		}
		r.sent.Add(int64(n))
		r.log.Debug("relayed", "bytes", n, "total", r.sent.Load())
	}
}

// Sent returns the number of bytes written so far.
func (r *Relay) Sent() int64 {
	return r.sent.Load()
}
