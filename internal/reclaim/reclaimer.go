// Package reclaim implements the terminal reclaimer (spec.md §4.6, C6): a
// memory-reclamation worker with no domain logic of its own. It waits for
// the oldest record to be observed by both consumers, then frees it.
package reclaim

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/erbas/sensorgate/pkg/pipebuf"
)

// Reclaimer drains the tail of buf until end of stream.
type Reclaimer struct {
	buf *pipebuf.Buffer
	log *logrus.Entry
}

// New builds a Reclaimer.
func New(buf *pipebuf.Buffer, log *logrus.Entry) *Reclaimer {
	return &Reclaimer{buf: buf, log: log}
}

// Run loops calling ReclaimOne until the buffer reports end of stream. An
// InvariantViolation returned from ReclaimOne is a bug, not a runtime
// condition (spec.md §7): it is logged and then panics via logrus, aborting
// the process rather than spinning. Any other error is returned as-is.
func (r *Reclaimer) Run(ctx context.Context) error {
	var freed uint64
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := r.buf.ReclaimOne()
		if errors.Is(err, pipebuf.ErrEndOfStream) {
			r.log.WithField("freed", freed).Info("reclaimer reached end of stream")
			return nil
		}
		var inv *pipebuf.InvariantViolation
		if errors.As(err, &inv) {
			r.log.WithField("what", inv.What).Panic("buffer invariant violated")
		}
		if err != nil {
			return err
		}
		freed++
	}
}
