package handlers

import (
	"errors"
	"io"
	"mime/multipart"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/examproctor/backend/internal/exam"
	"github.com/examproctor/backend/internal/proctor"
	"github.com/examproctor/backend/pkg/logger"
)

type SessionHandler struct {
	controller *exam.Controller
}

func NewSessionHandler(controller *exam.Controller) *SessionHandler {
	return &SessionHandler{
		controller: controller,
	}
}

// SaveCapture enrolls the subject from one or more webcam reference shots
// and starts the capturing session.
func (h *SessionHandler) SaveCapture(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		logger.Error("Failed to parse multipart form", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid multipart form",
		})
	}

	files := form.File["webcam"]
	if len(files) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "At least one reference image is required",
		})
	}

	images, err := readUploads(files)
	if err != nil {
		logger.Error("Failed to read uploaded images", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to read uploaded images",
		})
	}

	userID := c.FormValue("user_id")
	if userID == "" {
		userID = "anonymous"
	}

	sess, err := h.controller.StartSession(c.Context(), userID, images)
	if err != nil {
		if errors.Is(err, proctor.ErrNoFaceInImage) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "No face detected in the reference image",
			})
		}
		logger.Error("Failed to start session", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to start session",
		})
	}

	return c.Redirect("/exam?session=" + sess.ID)
}

// CheckPerson evaluates one mid-exam webcam frame. No detectable face sends
// the client back to the capture page; everything else answers with the
// verdict and the examined face box.
func (h *SessionHandler) CheckPerson(c *fiber.Ctx) error {
	sessionID := sessionIDFrom(c)
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session is required",
		})
	}

	fileHeader, err := c.FormFile("webcam")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "webcam image is required",
		})
	}

	images, err := readUploads([]*multipart.FileHeader{fileHeader})
	if err != nil {
		logger.Error("Failed to read frame upload", zap.Error(err))
		return c.JSON(fiber.Map{
			"recognized": false,
			"message":    exam.MsgRecognitionError,
		})
	}

	result, err := h.controller.HandleFrame(c.Context(), sessionID, images[0])
	if err != nil {
		if errors.Is(err, exam.ErrSessionNotFound) || errors.Is(err, exam.ErrSessionState) {
			return c.JSON(fiber.Map{"redirect": "/capture"})
		}
		logger.Error("Failed to handle frame", zap.Error(err))
		return c.JSON(fiber.Map{
			"recognized": false,
			"message":    exam.MsgRecognitionError,
		})
	}

	if result.FaceBox == nil {
		return c.JSON(fiber.Map{"redirect": "/capture"})
	}

	return c.JSON(fiber.Map{
		"recognized": result.Recognized,
		"message":    result.Message,
		"face_box":   result.FaceBox,
	})
}

// SubmitExam ends the capture phase and routes to the report, or to the
// thank-you page when the session stayed clean.
func (h *SessionHandler) SubmitExam(c *fiber.Ctx) error {
	sessionID := sessionIDFrom(c)
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session is required",
		})
	}

	if err := h.controller.Submit(c.Context(), sessionID); err != nil {
		if errors.Is(err, exam.ErrSessionNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Session not found",
			})
		}
		if errors.Is(err, exam.ErrSessionState) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Session is not capturing",
			})
		}
		logger.Error("Failed to submit exam", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to submit exam",
		})
	}

	sess, err := h.controller.Get(sessionID)
	if err == nil && sess.Log.IsEmpty() {
		return c.Redirect("/thanks?session=" + sessionID)
	}
	return c.Redirect("/report?session=" + sessionID)
}

func sessionIDFrom(c *fiber.Ctx) string {
	if id := c.FormValue("session"); id != "" {
		return id
	}
	return c.Query("session")
}

func readUploads(files []*multipart.FileHeader) ([][]byte, error) {
	images := make([][]byte, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		images = append(images, data)
	}
	return images, nil
}
