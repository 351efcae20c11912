// Package process implements the process consumer (spec.md §4.4, C4): it
// pops the next unprocessed record from the pipeline buffer, validates the
// sensor against the room map, and logs the outcome.
package process

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/erbas/sensorgate/internal/roommap"
	"github.com/erbas/sensorgate/pkg/pipebuf"
)

// Consumer drains the process cursor of buf until end of stream.
type Consumer struct {
	buf   *pipebuf.Buffer
	rooms *roommap.Map
	log   *logrus.Entry
}

// New builds a Consumer. rooms is the read-only singleton built once
// before the consumer starts (spec.md §5 "Shared resources").
func New(buf *pipebuf.Buffer, rooms *roommap.Map, log *logrus.Entry) *Consumer {
	return &Consumer{buf: buf, rooms: rooms, log: log}
}

// Run loops until the buffer reports end of stream, applying the room-map
// check to every reading it takes. A lookup miss is logged and the record
// still counts as processed (spec.md §4.4: "do not roll back the
// observation flag"); it never aborts the loop. ctx is only consulted
// between takes — a take already in flight is not canceled, matching
// spec.md §5's "no cooperative cancellation of in-flight work".
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		snap, err := c.buf.TakeNextToProcess()
		if errors.Is(err, pipebuf.ErrEndOfStream) {
			c.log.Info("process consumer reached end of stream")
			return nil
		}
		if err != nil {
			return err
		}

		room, err := c.rooms.Lookup(snap.SensorID)
		if err != nil {
			c.log.WithFields(logrus.Fields{
				"sensor_id": snap.SensorID,
				"seq":       snap.Seq,
				"kind":      "TransientSideEffectError",
			}).WithError(err).Warn("room lookup failed, record still marked processed")
			continue
		}

		c.log.WithFields(logrus.Fields{
			"sensor_id": snap.SensorID,
			"seq":       snap.Seq,
			"room_id":   room,
			"value":     snap.Value,
		}).Debug("reading processed")
	}
}
