// Package worker runs background maintenance for the server.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper is the slice of auth.Service the sweeper needs.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// Recorder counts removed sessions.
type Recorder interface {
	Swept(n int64)
}

// SessionSweeper deletes expired refresh sessions on a fixed interval.
type SessionSweeper struct {
	sessions Sweeper
	interval time.Duration
	log      *zap.Logger
	rec      Recorder
}

func NewSessionSweeper(s Sweeper, interval time.Duration, log *zap.Logger, rec Recorder) *SessionSweeper {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &SessionSweeper{sessions: s, interval: interval, log: log, rec: rec}
}

// Run sweeps once immediately, then on every tick until ctx is done.
func (w *SessionSweeper) Run(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		w.SweepOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// SweepOnce runs a single pass and returns the number of rows removed.
func (w *SessionSweeper) SweepOnce(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	n, err := w.sessions.Sweep(ctx)
	if err != nil {
		w.log.Warn("session sweep failed", zap.Error(err))
		return 0
	}
	if n > 0 {
		w.log.Info("expired sessions removed", zap.Int64("count", n))
	}
	if w.rec != nil {
		w.rec.Swept(n)
	}
	return n
}
