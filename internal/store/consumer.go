// Package store implements the store consumer (spec.md §4.5, C5): it pops
// the next unstored record from the pipeline buffer and durably records it
// into a relational store, owning the one connection exclusively
// (spec.md §5 "Shared resources": one connection, no pooling in the core).
package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gravitational/trace"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // pure-Go, CGO-free driver registered under "sqlite"

	"github.com/erbas/sensorgate/pkg/pipebuf"
)

const schema = `
CREATE TABLE IF NOT EXISTS readings (
	sensor_id INTEGER NOT NULL,
	value     REAL    NOT NULL,
	timestamp INTEGER NOT NULL
);
`

// Consumer drains the store cursor of buf until end of stream, inserting
// one row per reading.
type Consumer struct {
	buf    *pipebuf.Buffer
	db     *sql.DB
	insert *sql.Stmt
	log    *logrus.Entry
}

// Open connects to dsn, bootstraps the schema, and prepares the insert
// statement. A connect or bootstrap failure is a FatalSetupError: the
// caller should abort before entering steady state.
func Open(dsn string, buf *pipebuf.Buffer, log *logrus.Entry) (*Consumer, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, trace.Wrap(err, "opening store %q", dsn)
	}
	// One connection, no pooling in the core (spec.md §5).
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, trace.Wrap(err, "bootstrapping schema")
	}

	stmt, err := db.Prepare(`INSERT INTO readings (sensor_id, value, timestamp) VALUES (?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, trace.Wrap(err, "preparing insert statement")
	}

	return &Consumer{buf: buf, db: db, insert: stmt, log: log}, nil
}

// Close releases the prepared statement and the underlying connection.
func (c *Consumer) Close() error {
	c.insert.Close()
	return c.db.Close()
}

// Run loops until the buffer reports end of stream, inserting one row per
// reading taken. A write failure is a TransientSideEffectError: it is
// logged and the cursor still advances, so one poison record never blocks
// drain (spec.md §4.5, §7).
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		snap, err := c.buf.TakeNextToStore()
		if errors.Is(err, pipebuf.ErrEndOfStream) {
			c.log.Info("store consumer reached end of stream")
			return nil
		}
		if err != nil {
			return err
		}

		if _, err := c.insert.ExecContext(ctx, int64(snap.SensorID), snap.Value, snap.Timestamp); err != nil {
			c.log.WithFields(logrus.Fields{
				"sensor_id": snap.SensorID,
				"seq":       snap.Seq,
				"kind":      "TransientSideEffectError",
			}).WithError(err).Warn("insert failed, record still marked stored")
			continue
		}

		c.log.WithFields(logrus.Fields{
			"sensor_id": snap.SensorID,
			"seq":       snap.Seq,
		}).Debug("reading stored")
	}
}
