// Package ingest is the producer adapter (spec.md §4.3, C3): it owns the
// listening socket, decodes the per-connection reading stream, and pushes
// each decoded reading into the shared pipeline buffer on behalf of the
// connection's handler goroutine. It carries no state of its own beyond
// the listener — all coordination lives in pkg/pipebuf.
package ingest

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strconv"

	"github.com/hashicorp/go-uuid"
	"github.com/sirupsen/logrus"

	"github.com/erbas/sensorgate/pkg/pipebuf"
)

// Server accepts TCP connections on one port and feeds decoded readings
// into buf. It has no notion of the room map or the store; those belong to
// the consumers on the other side of the buffer.
type Server struct {
	ln  net.Listener
	buf *pipebuf.Buffer
	log *logrus.Entry
}

// Listen binds port and returns a Server ready to Serve. A bind failure is
// a FatalSetupError per spec.md §7: the caller should abort before
// entering steady state.
func Listen(port int, buf *pipebuf.Buffer, log *logrus.Entry) (*Server, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}
	return &Server{ln: ln, buf: buf, log: log}, nil
}

// Addr returns the bound listen address, chiefly for tests that bind to
// port 0 and need to know what was actually assigned.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Serve runs the accept loop until ctx is canceled or the listener errors.
// Each accepted connection is handled in its own goroutine; Serve does not
// wait for in-flight handlers to finish — the caller drains the buffer
// afterward (spec.md §4.7 steps 3-4), which is how in-flight handlers are
// allowed to finish publishing.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.ln.Close()
	}()

	var handlers int
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.log.WithField("handlers_spawned", handlers).Info("ingress accept loop stopping on shutdown")
				return nil
			}
			return err
		}
		handlers++
		connID, err := uuid.GenerateUUID()
		if err != nil {
			connID = "unknown"
		}
		go s.handleConn(conn, connID)
	}
}

// handleConn decodes one connection's stream of readings and inserts each
// into the buffer. A malformed record or a buffer close ends the
// connection, never the process (spec.md §6, §7).
func (s *Server) handleConn(conn net.Conn, connID string) {
	defer conn.Close()
	log := s.log.WithField("conn_id", connID).WithField("remote_addr", conn.RemoteAddr().String())
	log.Debug("connection accepted")

	r := bufio.NewReader(conn)
	var n int
	for {
		reading, err := decodeReading(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.WithField("records", n).Debug("connection closed by peer")
				return
			}
			log.WithField("records", n).WithError(err).Warn("malformed record, closing connection")
			return
		}

		if err := s.buf.Insert(reading); err != nil {
			log.WithError(err).Info("buffer closed, closing connection")
			return
		}
		n++
	}
}
