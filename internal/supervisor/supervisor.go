// Package supervisor implements the lifecycle owner (spec.md §4.7, C7): it
// constructs the pipeline buffer, starts the process, store, and reclaim
// workers, drives ingress until it ends, drains the buffer, closes it, and
// joins every worker before handing control back to main.
package supervisor

import (
	"context"
	"time"

	"github.com/gravitational/trace"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/erbas/sensorgate/internal/config"
	"github.com/erbas/sensorgate/internal/ingest"
	"github.com/erbas/sensorgate/internal/process"
	"github.com/erbas/sensorgate/internal/reclaim"
	"github.com/erbas/sensorgate/internal/roommap"
	"github.com/erbas/sensorgate/internal/store"
	"github.com/erbas/sensorgate/pkg/pipebuf"
)

// Supervisor owns the buffer and outlives every worker (spec.md §3
// "Ownership").
type Supervisor struct {
	cfg config.Config
	log *logrus.Logger

	// OnListening, if set, is called once the listener is bound and
	// before any connection is accepted. It exists so tests can dial an
	// ephemeral (port 0) listener without a side channel into Run.
	OnListening func(addr string)
}

// New builds a Supervisor from cfg.
func New(cfg config.Config, log *logrus.Logger) *Supervisor {
	return &Supervisor{cfg: cfg, log: log}
}

// Run executes the full C7 sequence: build the buffer, spawn C4/C5/C6,
// drive ingress on port until ctx is canceled (SIGINT) or the accept loop
// ends on its own, drain, close, join, and assert the buffer is empty. It
// returns the first fatal error encountered, wrapped with
// github.com/gravitational/trace the way the setup-error boundary is
// specified in spec.md §7.
func (s *Supervisor) Run(ctx context.Context, port int) error {
	rooms, err := roommap.Load(s.cfg.MapPath)
	if err != nil {
		return trace.Wrap(err, "loading sensor room map")
	}
	s.log.WithField("sensors", rooms.Len()).Info("sensor room map loaded")

	buf := pipebuf.New(pipebuf.WithWaitTimeout(s.cfg.WaitTimeout()))

	storeConsumer, err := store.Open(s.cfg.DBURI, buf, s.log.WithField("component", "store"))
	if err != nil {
		return trace.Wrap(err, "opening store")
	}
	defer storeConsumer.Close()

	srv, err := ingest.Listen(port, buf, s.log.WithField("component", "ingest"))
	if err != nil {
		return trace.Wrap(err, "binding listener")
	}
	s.log.WithField("addr", srv.Addr().String()).Info("listening for sensor connections")
	if s.OnListening != nil {
		s.OnListening(srv.Addr().String())
	}

	// Workers run under their own group, rooted independently of the
	// caller's (SIGINT-bearing) ctx: spec.md §4.7 has ingress stop on
	// SIGINT while C4/C5/C6 keep draining the backlog, stopping only
	// once the buffer is closed and they reach end of stream. A worker
	// returning a genuine error still cancels workerCtx for its
	// siblings and for ingress, since a consumer failure is fatal to
	// the process (spec.md §1).
	g, workerCtx := errgroup.WithContext(context.Background())

	procConsumer := process.New(buf, rooms, s.log.WithField("component", "process"))
	reclaimer := reclaim.New(buf, s.log.WithField("component", "reclaim"))

	g.Go(func() error { return procConsumer.Run(workerCtx) })
	g.Go(func() error { return storeConsumer.Run(workerCtx) })
	g.Go(func() error { return reclaimer.Run(workerCtx) })

	ingestCtx, cancelIngest := context.WithCancel(ctx)
	defer cancelIngest()

	ingestDone := make(chan error, 1)
	go func() { ingestDone <- srv.Serve(ingestCtx) }()

	select {
	case err := <-ingestDone:
		if err != nil {
			s.log.WithError(err).Warn("ingress ended with an error; proceeding to drain")
		}
	case <-workerCtx.Done():
		// A consumer failed fatally; stop accepting new connections too.
		cancelIngest()
		<-ingestDone
	}

	s.drain(workerCtx, buf)
	buf.Close()

	if err := g.Wait(); err != nil {
		return trace.Wrap(err, "worker failed")
	}

	if err := buf.Destroy(); err != nil {
		return trace.Wrap(err, "post-shutdown invariant check")
	}
	s.log.Info("shutdown complete")
	return nil
}

// drain polls IsEmpty until it is true, or bails early if gctx is already
// canceled (a worker died and can no longer make progress draining the
// backlog). Either way the caller closes the buffer immediately afterward
// so any still-healthy worker reaches end of stream instead of blocking
// forever on a buffer that will never close.
func (s *Supervisor) drain(gctx context.Context, buf *pipebuf.Buffer) {
	for !buf.IsEmpty() {
		select {
		case <-gctx.Done():
			return
		case <-time.After(s.cfg.DrainPollInterval):
		}
	}
}
