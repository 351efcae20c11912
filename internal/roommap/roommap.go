// Package roommap loads the static sensor_id -> room_id table the process
// consumer validates readings against. It is a read-only singleton built
// once before the process consumer starts (spec.md §5 "Shared resources")
// and never mutated afterward, so lookups need no locking.
package roommap

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/gravitational/trace"
)

// Map is the read-only sensor_id -> room_id lookup table.
type Map struct {
	rooms map[uint16]uint32
}

// ErrUnknownSensor is returned by Lookup for a sensor_id with no room
// mapping. The process consumer treats this as a TransientSideEffectError:
// logged, and the reading's processed flag still advances.
var ErrUnknownSensor = trace.NotFound("sensor has no room mapping")

// Lookup returns the room_id for sensorID, or ErrUnknownSensor.
func (m *Map) Lookup(sensorID uint16) (uint32, error) {
	room, ok := m.rooms[sensorID]
	if !ok {
		return 0, ErrUnknownSensor
	}
	return room, nil
}

// Len reports how many sensors are mapped, chiefly for logging at startup.
func (m *Map) Len() int { return len(m.rooms) }

// Load reads a two-column `sensor_id,room_id` CSV table from path. Both
// columns are unsigned decimal integers; a header row is tolerated (a row
// that fails to parse as two integers is skipped only if it is the first
// row, otherwise it is a FatalSetupError — the table is assumed clean
// after the first line).
func Load(path string) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, trace.Wrap(err, "opening sensor room map %q", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 2
	r.TrimLeadingSpace = true

	rooms := make(map[uint16]uint32)
	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, trace.Wrap(err, "reading sensor room map %q", path)
		}

		sensorID, sensorErr := strconv.ParseUint(rec[0], 10, 16)
		roomID, roomErr := strconv.ParseUint(rec[1], 10, 32)
		if sensorErr != nil || roomErr != nil {
			if first {
				first = false
				continue // header row
			}
			return nil, trace.BadParameter("sensor room map %q: malformed row %v", path, rec)
		}
		first = false
		rooms[uint16(sensorID)] = uint32(roomID)
	}

	return &Map{rooms: rooms}, nil
}
