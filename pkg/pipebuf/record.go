// Package pipebuf implements the shared pipeline buffer that sits between
// sensor ingress and the two independent downstream consumers (process and
// store). It is the synchronization core of the gateway: every reading
// inserted by a connection handler is delivered exactly once, in order, to
// both consumers before it is reclaimed.
package pipebuf

// Reading is what a connection handler decodes off the wire and hands to
// the buffer. It carries no bookkeeping of its own.
type Reading struct {
	SensorID  uint16
	Value     float64
	Timestamp int64 // seconds since epoch
}

// Snapshot is the immutable view of a Record returned by the take
// operations. It never changes after it is handed to a consumer; the
// consumer observes a point-in-time copy, not a live reference.
type Snapshot struct {
	SensorID  uint16
	Value     float64
	Timestamp int64
	Seq       uint64
}

// record is one live entry in the buffer. It is never copied; cursors and
// list links reference it by pointer. The two observation flags are each
// written by exactly one consumer and read, under the same mutex, by the
// reclaimer.
type record struct {
	next, prev *record // next: toward newer (head side); prev: toward older (tail side)

	sensorID  uint16
	value     float64
	timestamp int64
	seq       uint64

	processed bool
	stored    bool
}

func (r *record) snapshot() Snapshot {
	return Snapshot{
		SensorID:  r.sensorID,
		Value:     r.value,
		Timestamp: r.timestamp,
		Seq:       r.seq,
	}
}
