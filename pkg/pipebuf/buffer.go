package pipebuf

import (
	"sync"
	"time"
)

// DefaultWaitTimeout is the per-wait watchdog used when no explicit timeout
// is configured. It exists purely as a liveness safety net: every blocking
// wait re-checks its predicate after this long even without a real wake-up.
// It never changes the outcome of an operation, only how promptly a stuck
// waiter re-examines state.
const DefaultWaitTimeout = 10 * time.Second

// Option configures a Buffer at construction time.
type Option func(*Buffer)

// WithWaitTimeout overrides DefaultWaitTimeout. A non-positive value
// disables the watchdog entirely (waits block until genuinely signalled).
func WithWaitTimeout(d time.Duration) Option {
	return func(b *Buffer) { b.waitTimeout = d }
}

// Buffer is the ordered, multi-cursor pipeline queue described in the
// package doc: every inserted Reading is delivered exactly once, in order,
// to both the process and store cursors before a terminal reclaimer frees
// it. One mutex guards all mutable state; three condition variables built
// on that mutex wake exactly the waiters that can make progress, mirroring
// the mutex-plus-broadcast shape the teacher's producer uses for its own
// flush coordination (flushingCond) rather than a single catch-all signal.
type Buffer struct {
	mu sync.Mutex

	cvProcess *sync.Cond // signalled when nextToProcess goes nil->non-nil, or on close
	cvStore   *sync.Cond // symmetric, for nextToStore
	cvReclaim *sync.Cond // signalled when the tail's second flag is set, or on close

	head *record // newest live record (insertion point), nil if empty
	tail *record // oldest live record (reclamation candidate), nil if empty

	nextToProcess *record // oldest record with processed == false, nil if none
	nextToStore   *record // oldest record with stored == false, nil if none

	nextSeq uint64
	closed  bool

	waitTimeout time.Duration
}

// New constructs an empty, open Buffer.
func New(opts ...Option) *Buffer {
	b := &Buffer{waitTimeout: DefaultWaitTimeout}
	b.cvProcess = sync.NewCond(&b.mu)
	b.cvStore = sync.NewCond(&b.mu)
	b.cvReclaim = sync.NewCond(&b.mu)
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// waitOn blocks on cond until broadcast, with a bounded watchdog so the
// caller's surrounding for-loop always gets a chance to re-check its
// predicate even if a wake-up was somehow missed. Must be called with mu
// held; cond.Wait releases it for the duration of the wait.
func (b *Buffer) waitOn(cond *sync.Cond) {
	if b.waitTimeout > 0 {
		timer := time.AfterFunc(b.waitTimeout, func() {
			b.mu.Lock()
			cond.Broadcast()
			b.mu.Unlock()
		})
		defer timer.Stop()
	}
	cond.Wait()
}

// Insert allocates a record for reading, assigns it the next seq under the
// buffer mutex, and appends it at the head. If either cursor was nil it is
// advanced to the new record and the corresponding condition variable is
// broadcast. Insert fails with ErrClosed, with no partial effect, once
// Close has been called.
func (b *Buffer) Insert(reading Reading) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	b.nextSeq++
	rec := &record{
		sensorID:  reading.SensorID,
		value:     reading.Value,
		timestamp: reading.Timestamp,
		seq:       b.nextSeq,
		prev:      b.head,
	}
	if b.head != nil {
		b.head.next = rec
	}
	b.head = rec
	if b.tail == nil {
		b.tail = rec
	}

	wakeProcess := b.nextToProcess == nil
	if wakeProcess {
		b.nextToProcess = rec
	}
	wakeStore := b.nextToStore == nil
	if wakeStore {
		b.nextToStore = rec
	}

	if wakeProcess {
		b.cvProcess.Broadcast()
	}
	if wakeStore {
		b.cvStore.Broadcast()
	}
	return nil
}

// TakeNextToProcess blocks until a record is available with processed ==
// false, or the buffer is closed and drained of such records. On success it
// marks the record processed, advances the process cursor to its newer-side
// neighbour, and returns a snapshot. It returns ErrEndOfStream once closed
// and no unprocessed record remains or will ever arrive.
func (b *Buffer) TakeNextToProcess() (Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.nextToProcess == nil && !b.closed {
		b.waitOn(b.cvProcess)
	}
	if b.nextToProcess == nil {
		return Snapshot{}, ErrEndOfStream
	}

	rec := b.nextToProcess
	rec.processed = true
	snap := rec.snapshot()
	b.nextToProcess = rec.next

	if rec.stored {
		b.cvReclaim.Broadcast()
	}
	return snap, nil
}

// TakeNextToStore is the symmetric operation for the store cursor and the
// stored flag.
func (b *Buffer) TakeNextToStore() (Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.nextToStore == nil && !b.closed {
		b.waitOn(b.cvStore)
	}
	if b.nextToStore == nil {
		return Snapshot{}, ErrEndOfStream
	}

	rec := b.nextToStore
	rec.stored = true
	snap := rec.snapshot()
	b.nextToStore = rec.next

	if rec.processed {
		b.cvReclaim.Broadcast()
	}
	return snap, nil
}

// ReclaimOne blocks until the tail record has been observed by both
// consumers, then unlinks and frees it. It returns ErrEndOfStream once the
// buffer is closed, empty, and no further record can arrive.
func (b *Buffer) ReclaimOne() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for {
		if b.tail != nil && b.tail.processed && b.tail.stored {
			break
		}
		if b.tail == nil && b.closed {
			return ErrEndOfStream
		}
		b.waitOn(b.cvReclaim)
	}

	rec := b.tail
	if b.nextToProcess == rec || b.nextToStore == rec {
		return &InvariantViolation{What: "reclaiming a record a cursor still points at"}
	}

	b.tail = rec.next
	if b.tail == nil {
		if b.head != rec {
			return &InvariantViolation{What: "reclaiming a non-tail record"}
		}
		b.head = nil
	} else {
		b.tail.prev = nil
	}
	rec.next = nil
	rec.prev = nil
	return nil
}

// Close marks the buffer closed. It is idempotent: a second or later call
// is a no-op. Existing records continue to flow through both consumers and
// the reclaimer; only new inserts are rejected from this point on.
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.cvProcess.Broadcast()
	b.cvStore.Broadcast()
	b.cvReclaim.Broadcast()
}

// IsEmpty reports whether the buffer currently holds no live records.
func (b *Buffer) IsEmpty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tail == nil
}

// IsClosed reports whether Close has been called.
func (b *Buffer) IsClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Destroy asserts the buffer is empty and both cursors are nil, the
// precondition the supervisor must establish (drain, then close, then join
// every worker) before tearing the buffer down. It returns an
// InvariantViolation if the assertion fails; a correctly driven shutdown
// never triggers this.
func (b *Buffer) Destroy() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.head != nil || b.tail != nil {
		return &InvariantViolation{What: "destroy called on non-empty buffer"}
	}
	if b.nextToProcess != nil || b.nextToStore != nil {
		return &InvariantViolation{What: "destroy called with a live cursor"}
	}
	return nil
}
