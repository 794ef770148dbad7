package handlers

import (
	"errors"
	"mime/multipart"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/examproctor/backend/internal/exam"
	"github.com/examproctor/backend/internal/proctor"
	"github.com/examproctor/backend/pkg/logger"
)

const defaultGalleryTopK = 5

// GalleryHandler exposes the cross-session enrollment archive to operators.
type GalleryHandler struct {
	controller *exam.Controller
}

func NewGalleryHandler(controller *exam.Controller) *GalleryHandler {
	return &GalleryHandler{
		controller: controller,
	}
}

// Search matches an uploaded face photo against every archived enrollment
// and returns the closest sessions.
func (h *GalleryHandler) Search(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("webcam")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "webcam image is required",
		})
	}

	images, err := readUploads([]*multipart.FileHeader{fileHeader})
	if err != nil {
		logger.Error("Failed to read search upload", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to read uploaded image",
		})
	}

	topK := defaultGalleryTopK
	if v := c.FormValue("top_k"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			topK = n
		}
	}

	hits, err := h.controller.SearchGallery(c.Context(), images[0], topK)
	if err != nil {
		if errors.Is(err, exam.ErrGalleryUnavailable) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Face gallery is not available",
			})
		}
		if errors.Is(err, proctor.ErrNoFaceInImage) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "No face detected in the search image",
			})
		}
		logger.Error("Gallery search failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Gallery search failed",
		})
	}

	results := make([]fiber.Map, 0, len(hits))
	for _, hit := range hits {
		results = append(results, fiber.Map{
			"session_id": hit.SessionID,
			"user_id":    hit.UserID,
			"score":      hit.Score,
		})
	}

	return c.JSON(fiber.Map{"hits": results})
}
