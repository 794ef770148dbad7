package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os/exec"
	"runtime"

	"go.uber.org/zap"

	"github.com/examproctor/backend/pkg/logger"
)

// Source yields fixed-size chunks of 16-bit mono PCM. ReadChunk blocks until
// a full chunk is available or the stream ends; it returns io.EOF when the
// source is exhausted or closed.
type Source interface {
	ReadChunk(buf []int16) (int, error)
	Close() error
}

// FFmpegSource captures microphone input through an ffmpeg subprocess
// streaming raw s16le on stdout.
type FFmpegSource struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	raw    []byte
}

func NewFFmpegSource(ffmpegPath, device string, sampleRate int) (*FFmpegSource, error) {
	inputFormat := "alsa"
	if runtime.GOOS == "darwin" {
		inputFormat = "avfoundation"
	}

	cmd := exec.Command(ffmpegPath,
		"-f", inputFormat,
		"-i", device,
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-f", "s16le",
		"-",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdout.Close()
		return nil, fmt.Errorf("failed to start audio capture: %w", err)
	}

	logger.Info("Audio capture started",
		zap.String("device", device),
		zap.Int("sample_rate", sampleRate),
	)

	return &FFmpegSource{cmd: cmd, stdout: stdout}, nil
}

func (s *FFmpegSource) ReadChunk(buf []int16) (int, error) {
	need := len(buf) * 2
	if cap(s.raw) < need {
		s.raw = make([]byte, need)
	}
	raw := s.raw[:need]

	n, err := io.ReadFull(s.stdout, raw)
	samples := n / 2
	for i := 0; i < samples; i++ {
		buf[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return samples, err
}

// Close terminates the capture process and reaps it. Safe to call after the
// sampling loop has observed EOF.
func (s *FFmpegSource) Close() error {
	s.stdout.Close()
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	err := s.cmd.Wait()
	if err != nil {
		// Killed on purpose; the exit status is expected to be non-zero.
		logger.Debug("Audio capture process exited", zap.Error(err))
	}
	return nil
}
