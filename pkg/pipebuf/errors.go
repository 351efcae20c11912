package pipebuf

import "errors"

// Sentinel errors returned at the buffer's boundary. These mirror the flat,
// comparable sentinel style the teacher's own client package uses
// (kerr.MessageTooLarge, ErrNotInTransaction) rather than a hierarchy of
// custom types: callers compare with errors.Is.
var (
	// ErrClosed is returned by Insert once Close has been called. The
	// buffer is unchanged; the caller should drop the connection that
	// produced the reading.
	ErrClosed = errors.New("pipebuf: buffer is closed")

	// ErrEndOfStream is returned by TakeNextToProcess, TakeNextToStore,
	// and ReclaimOne once the buffer is closed and drained: no record
	// satisfying that operation will ever appear again.
	ErrEndOfStream = errors.New("pipebuf: end of stream")
)

// InvariantViolation signals that an internal assertion about buffer state
// was violated — a bug, not a runtime condition. Callers that receive this
// should abort rather than attempt recovery.
type InvariantViolation struct {
	What string
}

func (e *InvariantViolation) Error() string {
	return "pipebuf: invariant violated: " + e.What
}
