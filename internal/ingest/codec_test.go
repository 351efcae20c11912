package ingest

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func encodeReading(sensorID uint16, value float64, ts int64) []byte {
	buf := make([]byte, recordWireSize)
	binary.LittleEndian.PutUint16(buf[0:2], sensorID)
	binary.LittleEndian.PutUint64(buf[2:10], math.Float64bits(value))
	binary.LittleEndian.PutUint64(buf[10:18], uint64(ts))
	return buf
}

func TestDecodeReading(t *testing.T) {
	wire := encodeReading(7, 22.5, 1000)
	r, err := decodeReading(bytes.NewReader(wire))
	require.NoError(t, err)
	require.EqualValues(t, 7, r.SensorID)
	require.Equal(t, 22.5, r.Value)
	require.EqualValues(t, 1000, r.Timestamp)
}

func TestDecodeReadingMultiple(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(encodeReading(1, 10.0, 1))
	buf.Write(encodeReading(2, 20.0, 2))

	r1, err := decodeReading(&buf)
	require.NoError(t, err)
	require.EqualValues(t, 1, r1.SensorID)

	r2, err := decodeReading(&buf)
	require.NoError(t, err)
	require.EqualValues(t, 2, r2.SensorID)

	_, err = decodeReading(&buf)
	require.ErrorIs(t, err, io.EOF)
}

func TestDecodeReadingMalformed(t *testing.T) {
	// Half a record: not a clean EOF between records.
	wire := encodeReading(1, 10.0, 1)
	_, err := decodeReading(bytes.NewReader(wire[:10]))
	require.Error(t, err)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
