package audio

import (
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/examproctor/backend/pkg/logger"
)

// Analysis is the session-end verdict over everything the monitor captured.
type Analysis struct {
	LoudSoundDetected bool
	Peak              int
	Samples           int
}

// Monitor accumulates fixed-size PCM chunks from a Source on a background
// goroutine. Cancellation is cooperative: Stop signals the loop and then
// joins it, so the Source is only closed after the loop has stopped reading.
type Monitor struct {
	src           Source
	chunkSize     int
	peakThreshold int

	mu     sync.Mutex
	chunks [][]int16

	stop    chan struct{}
	done    chan struct{}
	started bool
	stopped bool
}

func NewMonitor(src Source, chunkSize, peakThreshold int) *Monitor {
	return &Monitor{
		src:           src,
		chunkSize:     chunkSize,
		peakThreshold: peakThreshold,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start launches the sampling loop. Calling Start twice is an error in the
// caller; the second call is ignored.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	go m.loop()
}

func (m *Monitor) loop() {
	defer close(m.done)

	for {
		select {
		case <-m.stop:
			return
		default:
		}

		chunk := make([]int16, m.chunkSize)
		n, err := m.src.ReadChunk(chunk)
		if n > 0 {
			m.mu.Lock()
			m.chunks = append(m.chunks, chunk[:n])
			m.mu.Unlock()
		}
		if err != nil {
			if err != io.EOF {
				logger.Warn("Audio sampling failed", zap.Error(err))
			}
			return
		}
	}
}

// Stop halts sampling and waits for the loop to observe the signal before
// closing the source. Stopping a monitor that never started, or stopping
// twice, is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	started := m.started
	m.mu.Unlock()

	close(m.stop)
	if started {
		<-m.done
	}
	m.src.Close()
}

// Analyze reports whether any captured sample exceeded the peak threshold in
// absolute value. Valid once Stop has returned; an empty capture is quiet.
func (m *Monitor) Analyze() Analysis {
	m.mu.Lock()
	defer m.mu.Unlock()

	peak := 0
	samples := 0
	for _, chunk := range m.chunks {
		samples += len(chunk)
		for _, s := range chunk {
			v := int(s)
			if v < 0 {
				v = -v
			}
			if v > peak {
				peak = v
			}
		}
	}

	return Analysis{
		LoudSoundDetected: peak > m.peakThreshold,
		Peak:              peak,
		Samples:           samples,
	}
}

// WriteWAV flushes the captured stream to a 16-bit mono PCM WAV file.
func (m *Monitor) WriteWAV(path string, sampleRate int) error {
	m.mu.Lock()
	total := 0
	for _, chunk := range m.chunks {
		total += len(chunk)
	}
	samples := make([]int16, 0, total)
	for _, chunk := range m.chunks {
		samples = append(samples, chunk...)
	}
	m.mu.Unlock()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create wav file: %w", err)
	}
	defer f.Close()

	if err := EncodeWAV(f, samples, sampleRate); err != nil {
		return fmt.Errorf("failed to encode wav: %w", err)
	}

	logger.Info("Audio written",
		zap.String("path", path),
		zap.Int("samples", len(samples)),
	)

	return nil
}
