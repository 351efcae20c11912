package supervisor

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/erbas/sensorgate/internal/config"
)

func encodeReading(sensorID uint16, value float64, ts int64) []byte {
	buf := make([]byte, 18)
	binary.LittleEndian.PutUint16(buf[0:2], sensorID)
	binary.LittleEndian.PutUint64(buf[2:10], math.Float64bits(value))
	binary.LittleEndian.PutUint64(buf[10:18], uint64(ts))
	return buf
}

// TestSupervisorEndToEnd drives the whole gateway through a loopback TCP
// connection: it feeds a handful of readings, asks for a clean shutdown,
// and checks every reading made it into the store.
func TestSupervisorEndToEnd(t *testing.T) {
	dir := t.TempDir()

	mapPath := filepath.Join(dir, "rooms.csv")
	require.NoError(t, os.WriteFile(mapPath, []byte("1,101\n2,102\n3,103\n"), 0o644))

	dbPath := filepath.Join(dir, "readings.db")

	cfg := config.Config{
		MapPath:           mapPath,
		DBURI:             dbPath,
		CVTimeoutMS:       200,
		DrainPollInterval: 10 * time.Millisecond,
	}

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	sup := New(cfg, log)

	addrCh := make(chan string, 1)
	sup.OnListening = func(addr string) { addrCh <- addr }

	ctx, cancel := context.WithCancel(context.Background())

	runErr := make(chan error, 1)
	go func() { runErr <- sup.Run(ctx, 0) }()

	var addr string
	select {
	case addr = <-addrCh:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not start listening in time")
	}

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)

	readings := []struct {
		id  uint16
		val float64
		ts  int64
	}{
		{1, 21.5, 1000},
		{2, 22.0, 1001},
		{3, 19.25, 1002},
	}
	for _, r := range readings {
		_, err := conn.Write(encodeReading(r.id, r.val, r.ts))
		require.NoError(t, err)
	}
	require.NoError(t, conn.Close())

	// Give the handler goroutine a moment to push everything into the
	// buffer before asking for shutdown.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-runErr:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not shut down in time")
	}

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM readings`).Scan(&count))
	require.Equal(t, len(readings), count)

	for _, r := range readings {
		var val float64
		require.NoError(t, db.QueryRow(`SELECT value FROM readings WHERE sensor_id = ?`, int64(r.id)).Scan(&val))
		require.Equal(t, r.val, val)
	}
}
