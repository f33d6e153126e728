// Package worker hosts the background loops that run alongside the
// HTTP server.
package worker

import (
	"context"
	"log"
	"time"

	"github.com/iliyamo/marketplace-slot-booking/internal/engine"
)

// ExpirySweeper periodically reclaims slots held by PENDING bookings
// that never received a payment. It is a thin ticker around
// engine.ReleaseExpiredHolds; the engine owns the TTL and the
// per-booking transaction boundaries.
type ExpirySweeper struct {
	Engine   *engine.ReservationEngine
	Interval time.Duration
}

func NewExpirySweeper(eng *engine.ReservationEngine, interval time.Duration) *ExpirySweeper {
	if eng == nil {
		panic("nil engine passed to NewExpirySweeper")
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &ExpirySweeper{Engine: eng, Interval: interval}
}

// Run blocks until ctx is cancelled, sweeping once per interval. A
// failed sweep is logged and retried on the next tick; the loop never
// exits on errors so a transient database outage does not stop hold
// reclamation for good.
func (w *ExpirySweeper) Run(ctx context.Context) {
	log.Printf("expiry-sweeper: started, interval=%s", w.Interval)
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("expiry-sweeper: stopping: %v", ctx.Err())
			return
		case <-ticker.C:
			n, err := w.Engine.ReleaseExpiredHolds(ctx, time.Now().UTC())
			if err != nil {
				log.Printf("expiry-sweeper: sweep failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("expiry-sweeper: released %d expired hold(s)", n)
			}
		}
	}
}
