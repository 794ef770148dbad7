package audio

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeWAV_Header(t *testing.T) {
	var buf bytes.Buffer
	samples := []int16{100, -200, 300}
	require.NoError(t, EncodeWAV(&buf, samples, 44100))

	out := buf.Bytes()
	require.Len(t, out, 44+6)

	assert.Equal(t, "RIFF", string(out[0:4]))
	assert.Equal(t, uint32(36+6), binary.LittleEndian.Uint32(out[4:8]))
	assert.Equal(t, "WAVE", string(out[8:12]))
	assert.Equal(t, "fmt ", string(out[12:16]))
	assert.Equal(t, uint32(16), binary.LittleEndian.Uint32(out[16:20]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(out[20:22]), "format must be PCM")
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(out[22:24]), "channel count must be mono")
	assert.Equal(t, uint32(44100), binary.LittleEndian.Uint32(out[24:28]))
	assert.Equal(t, uint32(88200), binary.LittleEndian.Uint32(out[28:32]))
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(out[32:34]))
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(out[34:36]))
	assert.Equal(t, "data", string(out[36:40]))
	assert.Equal(t, uint32(6), binary.LittleEndian.Uint32(out[40:44]))
}

func TestEncodeWAV_SamplesAreLittleEndian(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeWAV(&buf, []int16{0x1234, -1}, 8000))

	data := buf.Bytes()[44:]
	assert.Equal(t, []byte{0x34, 0x12, 0xFF, 0xFF}, data)
}

func TestEncodeWAV_EmptyCapture(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeWAV(&buf, nil, 44100))

	out := buf.Bytes()
	require.Len(t, out, 44)
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(out[40:44]))
}
