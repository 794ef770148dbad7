package media

import (
	"fmt"
	"io"
	"os/exec"
	"sync"

	"go.uber.org/zap"

	"github.com/examproctor/backend/pkg/logger"
)

// Recorder writes the continuous exam video. Incoming JPEG frames are piped
// to an ffmpeg encoder producing an MP4 at a fixed size and frame rate. The
// recorder is exclusively owned by one session controller; frame writes are
// never concurrent for the same session, but Close may race a late write, so
// a mutex guards the pipe.
type Recorder struct {
	path  string
	cmd   *exec.Cmd
	stdin io.WriteCloser

	mu     sync.Mutex
	frames int
	closed bool
}

func StartRecorder(ffmpegPath, outPath string, fps, width, height int) (*Recorder, error) {
	cmd := exec.Command(ffmpegPath,
		"-y",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-framerate", fmt.Sprintf("%d", fps),
		"-i", "-",
		"-vf", fmt.Sprintf("scale=%d:%d", width, height),
		"-an",
		"-vcodec", "libx264",
		"-pix_fmt", "yuv420p",
		outPath,
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		return nil, fmt.Errorf("failed to start video encoder: %w", err)
	}

	logger.Info("Video recorder started",
		zap.String("path", outPath),
		zap.Int("fps", fps),
	)

	return &Recorder{path: outPath, cmd: cmd, stdin: stdin}, nil
}

func (r *Recorder) Path() string {
	return r.path
}

func (r *Recorder) WriteFrame(jpeg []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("recorder already closed")
	}
	if _, err := r.stdin.Write(jpeg); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	r.frames++
	return nil
}

// Close flushes the encoder and waits for it to exit. Safe to call more than
// once; only the first call does the work.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	frames := r.frames
	r.mu.Unlock()

	r.stdin.Close()
	if err := r.cmd.Wait(); err != nil {
		return fmt.Errorf("video encoder exited with error: %w", err)
	}

	logger.Info("Video recorder closed",
		zap.String("path", r.path),
		zap.Int("frames", frames),
	)
	return nil
}
