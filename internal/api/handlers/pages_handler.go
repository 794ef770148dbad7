package handlers

import (
	"bytes"
	"errors"
	"html/template"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/examproctor/backend/internal/exam"
	"github.com/examproctor/backend/pkg/logger"
)

// PagesHandler serves the HTML surface: capture page, exam page, thank-you
// page, and the rendered report.
type PagesHandler struct {
	controller *exam.Controller
	templates  *template.Template
}

func NewPagesHandler(controller *exam.Controller) *PagesHandler {
	return &PagesHandler{
		controller: controller,
		templates:  template.Must(template.New("pages").Parse(pageTemplates)),
	}
}

func (h *PagesHandler) Index(c *fiber.Ctx) error {
	return c.Redirect("/capture")
}

func (h *PagesHandler) CapturePage(c *fiber.Ctx) error {
	return h.render(c, "capture", nil)
}

func (h *PagesHandler) ExamPage(c *fiber.Ctx) error {
	return h.render(c, "exam", fiber.Map{
		"SessionID": c.Query("session"),
	})
}

func (h *PagesHandler) ThanksPage(c *fiber.Ctx) error {
	return h.render(c, "thanks", nil)
}

// ReportPage compiles (on first view) and renders the post-exam report.
func (h *PagesHandler) ReportPage(c *fiber.Ctx) error {
	sessionID := c.Query("session")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).SendString("session is required")
	}

	rep, err := h.controller.Report(c.Context(), sessionID)
	if err != nil {
		if errors.Is(err, exam.ErrSessionNotFound) {
			return c.Status(fiber.StatusNotFound).SendString("Session not found")
		}
		if errors.Is(err, exam.ErrSessionState) {
			return c.Status(fiber.StatusConflict).SendString("Exam has not been submitted yet")
		}
		logger.Error("Failed to compile report", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to compile report")
	}

	return h.render(c, "report", rep)
}

// ReportJSON exposes the same report as JSON for non-HTML consumers.
func (h *PagesHandler) ReportJSON(c *fiber.Ctx) error {
	sessionID := c.Query("session")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "session is required"})
	}

	rep, err := h.controller.Report(c.Context(), sessionID)
	if err != nil {
		if errors.Is(err, exam.ErrSessionNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
		}
		if errors.Is(err, exam.ErrSessionState) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Exam has not been submitted yet"})
		}
		logger.Error("Failed to compile report", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to compile report"})
	}

	return c.JSON(rep)
}

func (h *PagesHandler) render(c *fiber.Ctx, name string, data interface{}) error {
	var buf bytes.Buffer
	if err := h.templates.ExecuteTemplate(&buf, name, data); err != nil {
		logger.Error("Failed to render page", zap.Error(err), zap.String("page", name))
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to render page")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(buf.Bytes())
}

const pageTemplates = `
{{define "capture"}}<!DOCTYPE html>
<html>
<head><title>Capture reference photo</title></head>
<body>
<h1>Capture your reference photo</h1>
<video id="video" width="640" height="480" autoplay></video>
<canvas id="canvas" width="640" height="480" style="display:none"></canvas>
<form id="image-form" action="/save_capture" method="post" enctype="multipart/form-data">
  <input type="hidden" id="webcam-input" name="webcam">
  <input type="text" name="user_id" placeholder="User ID">
  <button type="button" id="capture">Capture</button>
</form>
<script src="/static/webcam.js"></script>
</body>
</html>{{end}}

{{define "exam"}}<!DOCTYPE html>
<html>
<head><title>Exam in progress</title></head>
<body data-session="{{.SessionID}}">
<h1>Exam in progress</h1>
<p id="warning-message"></p>
<video id="exam-video" width="640" height="480" autoplay></video>
<form action="/submit_exam" method="post">
  <input type="hidden" name="session" value="{{.SessionID}}">
  <button type="submit">Submit exam</button>
</form>
<script src="/static/exam.js"></script>
</body>
</html>{{end}}

{{define "thanks"}}<!DOCTYPE html>
<html>
<head><title>Thank you</title></head>
<body>
<h1>Exam submitted</h1>
<p>No anomalies were flagged during your session.</p>
</body>
</html>{{end}}

{{define "report"}}<!DOCTYPE html>
<html>
<head><title>Proctoring report</title></head>
<body>
<h1>Proctoring report</h1>
{{if .NoFlaggedEvents}}
<p>No flagged events were recorded during this session.</p>
{{else}}
{{if .Narrative}}<p>{{.Narrative}}</p>{{end}}
<table border="1">
  <tr><th>Event</th><th>Timestamp (s)</th></tr>
  {{range .Events}}<tr><td>{{.Reason}}</td><td>{{printf "%.1f" .Timestamp}}</td></tr>{{end}}
</table>
{{end}}
{{if .LoudSoundDetected}}<p>A loud sound was detected during the session.</p>{{end}}
{{if .Clips}}
<h2>Highlight clips</h2>
<ul>{{range .Clips}}<li>{{.Path}} ({{printf "%.1f" .Start}}s, {{printf "%.1f" .Length}}s)</li>{{end}}</ul>
{{end}}
</body>
</html>{{end}}
`
