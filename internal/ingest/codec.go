package ingest

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/erbas/sensorgate/pkg/pipebuf"
)

// recordWireSize is the on-the-wire size of one reading: u16 sensor_id,
// f64 value, i64 timestamp, all little-endian, back to back with no
// framing or length prefix (spec.md §6 "Wire protocol").
const recordWireSize = 2 + 8 + 8

// decodeReading reads exactly one wire record from r. io.EOF is returned
// unmodified when the connection closes between records (a clean end of
// stream); io.ErrUnexpectedEOF or any other read error means the stream
// was malformed mid-record and the caller should terminate the connection,
// not the process.
func decodeReading(r io.Reader) (pipebuf.Reading, error) {
	var buf [recordWireSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return pipebuf.Reading{}, err
	}

	sensorID := binary.LittleEndian.Uint16(buf[0:2])
	value := math.Float64frombits(binary.LittleEndian.Uint64(buf[2:10]))
	timestamp := int64(binary.LittleEndian.Uint64(buf[10:18]))

	return pipebuf.Reading{
		SensorID:  sensorID,
		Value:     value,
		Timestamp: timestamp,
	}, nil
}
