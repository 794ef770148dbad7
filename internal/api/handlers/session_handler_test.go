package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examproctor/backend/internal/exam"
	"github.com/examproctor/backend/internal/face"
	"github.com/examproctor/backend/internal/proctor"
	"github.com/examproctor/backend/internal/report"
	"github.com/examproctor/backend/pkg/config"
	"github.com/examproctor/backend/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init("error", "console", "stdout"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// scriptedDetector replays prepared detection results, repeating the last one
// once the script runs out.
type scriptedDetector struct {
	results [][]face.DetectedFace
	calls   int
}

func (d *scriptedDetector) Detect(ctx context.Context, frame face.Frame) ([]face.DetectedFace, error) {
	i := d.calls
	d.calls++
	if i >= len(d.results) {
		i = len(d.results) - 1
	}
	return d.results[i], nil
}

func subjectFace() []face.DetectedFace {
	return []face.DetectedFace{{Box: image.Rect(10, 10, 60, 60), Embedding: []float32{1, 0, 0}}}
}

func strangerFace() []face.DetectedFace {
	return []face.DetectedFace{{Box: image.Rect(10, 10, 60, 60), Embedding: []float32{5, 5, 5}}}
}

func newTestApp(t *testing.T, detector face.Detector) (*fiber.App, *exam.Controller) {
	t.Helper()

	evaluator := proctor.NewFrameEvaluator(detector, face.NewEuclideanMatcher(0.6), proctor.EvaluatorConfig{})
	compiler := report.NewCompiler(nil, nil, t.TempDir(), 10, 20)
	controller := exam.NewController(exam.Config{
		Detector:  detector,
		Evaluator: evaluator,
		Compiler:  compiler,
		Media:     config.MediaConfig{DataDir: t.TempDir()},
		Audio:     config.AudioConfig{SampleRate: 8000, ChunkSize: 4, PeakThreshold: 1000},
	})

	handler := NewSessionHandler(controller)
	app := fiber.New()
	app.Post("/save_capture", handler.SaveCapture)
	app.Post("/check_person", handler.CheckPerson)
	app.Post("/submit_exam", handler.SubmitExam)

	return app, controller
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.Gray{Y: uint8((x + y) % 256)})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func multipartRequest(t *testing.T, path string, fields map[string]string, fileField string, fileData []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileField != "" {
		part, err := w.CreateFormFile(fileField, "frame.jpg")
		require.NoError(t, err)
		_, err = part.Write(fileData)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func startSession(t *testing.T, app *fiber.App) string {
	t.Helper()

	req := multipartRequest(t, "/save_capture", map[string]string{"user_id": "user-1"}, "webcam", testJPEG(t))
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusFound, resp.StatusCode)

	location := resp.Header.Get("Location")
	require.Contains(t, location, "/exam?session=")
	return location[len("/exam?session="):]
}

func TestSaveCapture_StartsSessionAndRedirects(t *testing.T) {
	app, controller := newTestApp(t, &scriptedDetector{results: [][]face.DetectedFace{subjectFace()}})

	sessionID := startSession(t, app)

	sess, err := controller.Get(sessionID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", sess.UserID)
	assert.Equal(t, exam.StateCapturing, sess.State())
}

func TestSaveCapture_NoFaceInReference(t *testing.T) {
	app, _ := newTestApp(t, &scriptedDetector{results: [][]face.DetectedFace{nil}})

	req := multipartRequest(t, "/save_capture", nil, "webcam", testJPEG(t))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	body := decodeJSON(t, resp)
	assert.Contains(t, body["error"], "No face detected")
}

func TestSaveCapture_RequiresImage(t *testing.T) {
	app, _ := newTestApp(t, &scriptedDetector{results: [][]face.DetectedFace{subjectFace()}})

	req := multipartRequest(t, "/save_capture", map[string]string{"user_id": "user-1"}, "", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCheckPerson_Recognized(t *testing.T) {
	app, _ := newTestApp(t, &scriptedDetector{results: [][]face.DetectedFace{
		subjectFace(), // enrollment
		subjectFace(), // frame
	}})
	sessionID := startSession(t, app)

	req := multipartRequest(t, "/check_person", map[string]string{"session": sessionID}, "webcam", testJPEG(t))
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeJSON(t, resp)
	assert.Equal(t, true, body["recognized"])
	assert.Equal(t, exam.MsgRecognized, body["message"])
	require.Contains(t, body, "face_box")
}

func TestCheckPerson_Unrecognized(t *testing.T) {
	app, _ := newTestApp(t, &scriptedDetector{results: [][]face.DetectedFace{
		subjectFace(),
		strangerFace(),
	}})
	sessionID := startSession(t, app)

	req := multipartRequest(t, "/check_person", map[string]string{"session": sessionID}, "webcam", testJPEG(t))
	resp, err := app.Test(req)
	require.NoError(t, err)

	body := decodeJSON(t, resp)
	assert.Equal(t, false, body["recognized"])
	assert.Equal(t, exam.MsgNotRecognized, body["message"])
}

func TestCheckPerson_NoFaceRedirectsToCapture(t *testing.T) {
	app, _ := newTestApp(t, &scriptedDetector{results: [][]face.DetectedFace{
		subjectFace(),
		nil,
	}})
	sessionID := startSession(t, app)

	req := multipartRequest(t, "/check_person", map[string]string{"session": sessionID}, "webcam", testJPEG(t))
	resp, err := app.Test(req)
	require.NoError(t, err)

	body := decodeJSON(t, resp)
	assert.Equal(t, "/capture", body["redirect"])
}

func TestCheckPerson_UnknownSessionRedirectsToCapture(t *testing.T) {
	app, _ := newTestApp(t, &scriptedDetector{results: [][]face.DetectedFace{subjectFace()}})

	req := multipartRequest(t, "/check_person", map[string]string{"session": "no-such"}, "webcam", testJPEG(t))
	resp, err := app.Test(req)
	require.NoError(t, err)

	body := decodeJSON(t, resp)
	assert.Equal(t, "/capture", body["redirect"])
}

func TestSubmitExam_CleanSessionGoesToThanks(t *testing.T) {
	app, _ := newTestApp(t, &scriptedDetector{results: [][]face.DetectedFace{subjectFace()}})
	sessionID := startSession(t, app)

	req := multipartRequest(t, "/submit_exam", map[string]string{"session": sessionID}, "", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/thanks?session="+sessionID, resp.Header.Get("Location"))
}

func TestSubmitExam_FlaggedSessionGoesToReport(t *testing.T) {
	app, _ := newTestApp(t, &scriptedDetector{results: [][]face.DetectedFace{
		subjectFace(),
		nil, // one flagged frame
	}})
	sessionID := startSession(t, app)

	frameReq := multipartRequest(t, "/check_person", map[string]string{"session": sessionID}, "webcam", testJPEG(t))
	_, err := app.Test(frameReq)
	require.NoError(t, err)

	req := multipartRequest(t, "/submit_exam", map[string]string{"session": sessionID}, "", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/report?session="+sessionID, resp.Header.Get("Location"))
}

func TestSubmitExam_UnknownSession(t *testing.T) {
	app, _ := newTestApp(t, &scriptedDetector{results: [][]face.DetectedFace{subjectFace()}})

	req := multipartRequest(t, "/submit_exam", map[string]string{"session": "no-such"}, "", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestSubmitExam_TwiceConflicts(t *testing.T) {
	app, _ := newTestApp(t, &scriptedDetector{results: [][]face.DetectedFace{subjectFace()}})
	sessionID := startSession(t, app)

	req := multipartRequest(t, "/submit_exam", map[string]string{"session": sessionID}, "", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusFound, resp.StatusCode)

	req = multipartRequest(t, "/submit_exam", map[string]string{"session": sessionID}, "", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}
