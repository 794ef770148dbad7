package audio

import (
	"encoding/binary"
	"io"
)

// EncodeWAV writes samples as a canonical 44-byte-header RIFF/WAVE file:
// PCM, mono, 16 bits per sample.
func EncodeWAV(w io.Writer, samples []int16, sampleRate int) error {
	dataLen := uint32(len(samples) * 2)

	var header [44]byte
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], 36+dataLen)
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)                    // fmt chunk size
	binary.LittleEndian.PutUint16(header[20:22], 1)                     // PCM
	binary.LittleEndian.PutUint16(header[22:24], 1)                     // mono
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))    // sample rate
	binary.LittleEndian.PutUint32(header[28:32], uint32(sampleRate*2))  // byte rate
	binary.LittleEndian.PutUint16(header[32:34], 2)                     // block align
	binary.LittleEndian.PutUint16(header[34:36], 16)                    // bits per sample
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], dataLen)

	if _, err := w.Write(header[:]); err != nil {
		return err
	}

	return binary.Write(w, binary.LittleEndian, samples)
}
