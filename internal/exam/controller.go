package exam

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/examproctor/backend/internal/audio"
	"github.com/examproctor/backend/internal/cache/redis"
	"github.com/examproctor/backend/internal/face"
	"github.com/examproctor/backend/internal/media"
	"github.com/examproctor/backend/internal/metrics"
	"github.com/examproctor/backend/internal/proctor"
	"github.com/examproctor/backend/internal/report"
	"github.com/examproctor/backend/internal/storage/models"
	"github.com/examproctor/backend/internal/storage/sqlite"
	"github.com/examproctor/backend/internal/vector/milvus"
	"github.com/examproctor/backend/pkg/circuitbreaker"
	"github.com/examproctor/backend/pkg/config"
	"github.com/examproctor/backend/pkg/logger"
	"github.com/examproctor/backend/pkg/retry"
	"github.com/examproctor/backend/pkg/utils"
)

// ErrCameraOpen signals that the video sink could not be opened. The capture
// phase fails fast on it, no retry.
var ErrCameraOpen = errors.New("failed to open video sink")

// ErrGalleryUnavailable signals that the embedding gallery is not configured
// or failed to come up.
var ErrGalleryUnavailable = errors.New("face gallery not available")

// Messages surfaced to the exam page, kept verbatim from the web client's
// expectations.
const (
	MsgNoFace           = "No face detected"
	MsgOutOfFocus       = "Face out of focus"
	MsgRecognized       = "Face recognized"
	MsgNotRecognized    = "Face not recognized"
	MsgRecognitionError = "Error in recognition process"
)

// FrameResult is what /check_person returns for one frame.
type FrameResult struct {
	Recognized bool
	Message    string
	FaceBox    *FaceBox
}

// AudioSourceFactory opens the microphone stream for a new session. A nil
// factory disables audio monitoring.
type AudioSourceFactory func() (audio.Source, error)

// Config wires the controller's collaborators. DB, Cache, Gallery, and
// AudioSource may be nil; each degrades to a no-op.
type Config struct {
	Detector    face.Detector
	Evaluator   *proctor.FrameEvaluator
	Compiler    *report.Compiler
	DB          *sqlite.Client
	Cache       *redis.Client
	Gallery     *milvus.Gallery
	AudioSource AudioSourceFactory
	Media       config.MediaConfig
	Audio       config.AudioConfig
}

// Controller orchestrates exam sessions: enrollment, per-frame evaluation,
// capture sinks, submission, and report compilation. Sessions are keyed by
// id; concurrent sessions are independent.
type Controller struct {
	cfg Config
	cb  *circuitbreaker.CircuitBreaker

	retryConfig retry.Config

	mu       sync.Mutex
	sessions map[string]*Session

	hub *hub
}

func NewController(cfg Config) *Controller {
	cb := circuitbreaker.NewCircuitBreaker("face-detector", circuitbreaker.Config{
		MaxRequests:      3,
		Timeout:          15 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	return &Controller{
		cfg: cfg,
		cb:  cb,
		retryConfig: retry.Config{
			MaxAttempts:  2,
			InitialDelay: 50 * time.Millisecond,
			MaxDelay:     500 * time.Millisecond,
			Logger:       logger.GetLogger(),
		},
		sessions: make(map[string]*Session),
		hub:      newHub(),
	}
}

// Get looks up a live session by id.
func (c *Controller) Get(sessionID string) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess, ok := c.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Subscribe attaches a live verdict listener for one session.
func (c *Controller) Subscribe(sessionID string) (<-chan StatusUpdate, func()) {
	return c.hub.subscribe(sessionID)
}

// StartSession enrolls the subject from the reference images and opens the
// capture sinks. Enrollment is all-or-nothing; a sink open failure is fatal
// for the session.
func (c *Controller) StartSession(ctx context.Context, userID string, refImages [][]byte) (*Session, error) {
	sess := &Session{
		ID:     uuid.New().String(),
		UserID: userID,
		Log:    proctor.NewEventLog(),
		state:  StateEnrolling,
	}

	frames, err := decodeFrames(refImages)
	if err != nil {
		metrics.EnrollmentsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	profile, err := proctor.Enroll(ctx, c.cfg.Detector, frames)
	if err != nil {
		metrics.EnrollmentsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	sess.Profile = profile
	metrics.EnrollmentsTotal.WithLabelValues("ok").Inc()

	c.saveReferenceImages(sess, refImages)
	c.archiveReferences(ctx, sess)

	if err := c.openSinks(sess); err != nil {
		return nil, err
	}

	sess.StartedAt = time.Now()
	if err := sess.transition(StateEnrolling, StateCapturing); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.sessions[sess.ID] = sess
	c.mu.Unlock()
	metrics.ActiveSessions.Inc()

	c.persistSession(ctx, sess)

	logger.Info("Session started",
		zap.String("session_id", sess.ID),
		zap.String("user_id", userID),
		zap.Int("reference_images", profile.Len()),
	)

	return sess, nil
}

// HandleFrame evaluates one captured frame, writes it to the video sink, and
// appends a flagged event when the verdict warrants one. Adapter and runtime
// errors degrade to a soft "recognition error" result; they never abort
// capture.
func (c *Controller) HandleFrame(ctx context.Context, sessionID string, jpegData []byte) (*FrameResult, error) {
	sess, err := c.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.State() != StateCapturing {
		return nil, fmt.Errorf("%w: frame received while %s", ErrSessionState, sess.State())
	}

	if sess.recorder != nil {
		if err := sess.recorder.WriteFrame(jpegData); err != nil {
			logger.Warn("Failed to write frame to video sink", zap.Error(err))
		}
	}

	img, _, err := image.Decode(bytes.NewReader(jpegData))
	if err != nil {
		logger.Error("Failed to decode frame", zap.Error(err))
		metrics.RecognitionErrors.Inc()
		return &FrameResult{Recognized: false, Message: MsgRecognitionError}, nil
	}
	frame := face.Frame{Image: img, JPEG: jpegData}

	var verdict proctor.FrameVerdict
	start := time.Now()
	err = c.cb.Execute(ctx, func() error {
		var evalErr error
		verdict, evalErr = c.cfg.Evaluator.Evaluate(ctx, frame, sess.Profile)
		return evalErr
	})
	metrics.EvaluationDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		logger.Error("Frame evaluation failed",
			zap.Error(err),
			zap.String("session_id", sessionID),
		)
		metrics.RecognitionErrors.Inc()
		return &FrameResult{Recognized: false, Message: MsgRecognitionError}, nil
	}

	metrics.FramesEvaluated.WithLabelValues(verdict.Kind.String()).Inc()

	result := c.applyVerdict(ctx, sess, verdict)
	return result, nil
}

func (c *Controller) applyVerdict(ctx context.Context, sess *Session, verdict proctor.FrameVerdict) *FrameResult {
	result := &FrameResult{}
	if verdict.Box != nil {
		result.FaceBox = &FaceBox{
			X1: verdict.Box.Min.X,
			Y1: verdict.Box.Min.Y,
			X2: verdict.Box.Max.X,
			Y2: verdict.Box.Max.Y,
		}
	}

	var reason proctor.Reason
	flagged := true
	switch verdict.Kind {
	case proctor.VerdictNoFace:
		result.Message = MsgNoFace
		reason = proctor.ReasonNoFace
	case proctor.VerdictOutOfFocus:
		result.Message = MsgOutOfFocus
		reason = proctor.ReasonOutOfFocus
	case proctor.VerdictUnrecognized:
		result.Message = MsgNotRecognized
		reason = proctor.ReasonUnrecognized
	case proctor.VerdictRecognized:
		result.Recognized = true
		result.Message = MsgRecognized
		flagged = false
	}

	timestamp := sess.Elapsed()
	if flagged {
		sess.Log.Append(reason, timestamp)
		metrics.FlaggedEvents.WithLabelValues(string(reason)).Inc()
		c.persistEvent(ctx, sess.ID, reason, timestamp)
		if c.cfg.Cache != nil {
			if err := c.cfg.Cache.IncrementFlag(ctx, sess.ID, string(reason)); err != nil {
				logger.Debug("Failed to bump flag counter", zap.Error(err))
			}
		}
	}

	update := StatusUpdate{
		SessionID:  sess.ID,
		Recognized: result.Recognized,
		Verdict:    verdict.Kind.String(),
		Message:    result.Message,
		FaceBox:    result.FaceBox,
		Timestamp:  timestamp,
	}
	c.hub.publish(sess.ID, update)
	if c.cfg.Cache != nil {
		if err := c.cfg.Cache.SetStatus(ctx, sess.ID, update, time.Minute); err != nil {
			logger.Debug("Failed to publish session status", zap.Error(err))
		}
	}

	return result
}

// Submit ends the capture phase: the audio loop is stopped and joined before
// its source is released, the video sink is flushed, and the session row is
// persisted best-effort. The sinks are torn down and the analysis stored
// before the state flips to Submitted, so a concurrent Report that observes
// Submitted always sees the finalized analysis.
func (c *Controller) Submit(ctx context.Context, sessionID string) error {
	sess, err := c.Get(sessionID)
	if err != nil {
		return err
	}
	if state := sess.State(); state != StateCapturing {
		return fmt.Errorf("%w: submit requested while %s", ErrSessionState, state)
	}

	if sess.monitor != nil {
		sess.monitor.Stop()
		sess.analysis = sess.monitor.Analyze()
		metrics.AudioPeak.Set(float64(sess.analysis.Peak))
		if sess.AudioPath != "" {
			if err := sess.monitor.WriteWAV(sess.AudioPath, c.cfg.Audio.SampleRate); err != nil {
				logger.Warn("Failed to write session audio", zap.Error(err))
			}
		}
	}

	if sess.recorder != nil {
		if err := sess.recorder.Close(); err != nil {
			logger.Warn("Failed to close video sink", zap.Error(err))
		}
	}

	if err := sess.transition(StateCapturing, StateSubmitted); err != nil {
		return err
	}
	metrics.ActiveSessions.Dec()

	c.persistSession(ctx, sess)

	logger.Info("Session submitted",
		zap.String("session_id", sessionID),
		zap.Int("flagged_events", sess.Log.Len()),
		zap.Bool("loud_sound", sess.analysis.LoudSoundDetected),
	)

	return nil
}

// Report compiles (once) and returns the post-session report.
func (c *Controller) Report(ctx context.Context, sessionID string) (*report.Report, error) {
	sess, err := c.Get(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if sess.state == StateReported {
		cached := sess.report
		sess.mu.Unlock()
		return cached, nil
	}
	if sess.state != StateSubmitted {
		state := sess.state
		sess.mu.Unlock()
		return nil, fmt.Errorf("%w: report requested while %s", ErrSessionState, state)
	}
	sess.mu.Unlock()

	rep := c.cfg.Compiler.Compile(ctx, sess.ID, sess.Log.All(), sess.VideoPath, sess.analysis.LoudSoundDetected)
	metrics.ClipsExtracted.Add(float64(len(rep.Clips)))

	sess.mu.Lock()
	sess.report = rep
	sess.state = StateReported
	sess.mu.Unlock()

	if c.cfg.Cache != nil {
		if err := c.cfg.Cache.ClearSession(ctx, sessionID); err != nil {
			logger.Debug("Failed to clear session cache", zap.Error(err))
		}
	}

	return rep, nil
}

// SearchGallery matches the face in imageData against every enrollment ever
// archived, across sessions. Operator-facing; the live proctoring path never
// calls it.
func (c *Controller) SearchGallery(ctx context.Context, imageData []byte, topK int) ([]milvus.Hit, error) {
	if c.cfg.Gallery == nil {
		return nil, ErrGalleryUnavailable
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	detected, err := c.cfg.Detector.Detect(ctx, face.Frame{Image: img, JPEG: imageData})
	if err != nil {
		return nil, fmt.Errorf("failed to detect faces: %w", err)
	}
	if len(detected) == 0 {
		return nil, proctor.ErrNoFaceInImage
	}

	return c.cfg.Gallery.Search(ctx, detected[0].Embedding, topK)
}

// Shutdown stops the capture sinks of every live session.
func (c *Controller) Shutdown(ctx context.Context) {
	c.mu.Lock()
	sessions := make([]*Session, 0, len(c.sessions))
	for _, sess := range c.sessions {
		sessions = append(sessions, sess)
	}
	c.mu.Unlock()

	for _, sess := range sessions {
		if sess.State() == StateCapturing {
			if err := c.Submit(ctx, sess.ID); err != nil {
				logger.Warn("Failed to submit session on shutdown",
					zap.Error(err),
					zap.String("session_id", sess.ID),
				)
			}
		}
	}
}

func (c *Controller) openSinks(sess *Session) error {
	if c.cfg.Media.Enabled {
		videoPath := filepath.Join(c.cfg.Media.DataDir, fmt.Sprintf("%s.mp4", sess.ID))
		recorder, err := media.StartRecorder(
			c.cfg.Media.FFmpegPath,
			videoPath,
			c.cfg.Media.FPS,
			c.cfg.Media.Width,
			c.cfg.Media.Height,
		)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCameraOpen, err)
		}
		sess.recorder = recorder
		sess.VideoPath = videoPath
	}

	if c.cfg.AudioSource != nil {
		src, err := c.cfg.AudioSource()
		if err != nil {
			// Release the video sink on the error path too.
			if sess.recorder != nil {
				sess.recorder.Close()
			}
			return fmt.Errorf("failed to open audio source: %w", err)
		}
		sess.monitor = audio.NewMonitor(src, c.cfg.Audio.ChunkSize, c.cfg.Audio.PeakThreshold)
		sess.AudioPath = filepath.Join(c.cfg.Media.DataDir, fmt.Sprintf("%s.wav", sess.ID))
		sess.monitor.Start()
	}

	return nil
}

func (c *Controller) saveReferenceImages(sess *Session, refImages [][]byte) {
	if c.cfg.Media.DataDir == "" {
		return
	}
	prefix := utils.HashString(sess.UserID)
	for i, data := range refImages {
		path := filepath.Join(c.cfg.Media.DataDir, fmt.Sprintf("ref_%s_%d.jpg", prefix, i))
		if err := os.WriteFile(path, data, 0644); err != nil {
			logger.Warn("Failed to save reference image", zap.Error(err))
		}
	}
}

func (c *Controller) archiveReferences(ctx context.Context, sess *Session) {
	if c.cfg.Gallery == nil {
		return
	}
	refs := make([]milvus.Reference, 0, sess.Profile.Len())
	for i, embedding := range sess.Profile.Embeddings() {
		refs = append(refs, milvus.Reference{
			ID:        fmt.Sprintf("%s-%d", sess.ID, i),
			SessionID: sess.ID,
			UserID:    sess.UserID,
			Embedding: embedding,
		})
	}
	if err := c.cfg.Gallery.Insert(ctx, refs); err != nil {
		logger.Warn("Failed to archive reference embeddings", zap.Error(err))
	}
}

func (c *Controller) persistSession(ctx context.Context, sess *Session) {
	if c.cfg.DB == nil {
		return
	}
	err := retry.Do(ctx, c.retryConfig, func() error {
		return c.cfg.DB.InsertSession(&models.ExamSession{
			ID:        sess.ID,
			UserID:    sess.UserID,
			VideoPath: sess.VideoPath,
			AudioPath: sess.AudioPath,
		})
	})
	if err != nil {
		logger.Warn("Failed to persist session", zap.Error(err), zap.String("session_id", sess.ID))
	}
}

func (c *Controller) persistEvent(ctx context.Context, sessionID string, reason proctor.Reason, timestamp float64) {
	if c.cfg.DB == nil {
		return
	}
	err := retry.Do(ctx, c.retryConfig, func() error {
		return c.cfg.DB.InsertEvent(&models.FlaggedEvent{
			SessionID: sessionID,
			Event:     string(reason),
			Timestamp: timestamp,
		})
	})
	if err != nil {
		logger.Warn("Failed to persist flagged event", zap.Error(err), zap.String("session_id", sessionID))
	}
}

func decodeFrames(images [][]byte) ([]face.Frame, error) {
	frames := make([]face.Frame, 0, len(images))
	for i, data := range images {
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode reference image %d: %w", i, err)
		}
		frames = append(frames, face.Frame{Image: img, JPEG: data})
	}
	return frames, nil
}
