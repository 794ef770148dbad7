package handlers

import (
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/examproctor/backend/internal/exam"
	"github.com/examproctor/backend/pkg/logger"
)

type WebSocketHandler struct {
	controller *exam.Controller
}

func NewWebSocketHandler(controller *exam.Controller) *WebSocketHandler {
	return &WebSocketHandler{
		controller: controller,
	}
}

// HandleConnection streams frame verdicts for one session to the exam page
// overlay as they are produced.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	sessionID := c.Params("id")

	logger.Info("WebSocket connection established", zap.String("session_id", sessionID))

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed", zap.String("session_id", sessionID))
	}()

	updates, cancel := h.controller.Subscribe(sessionID)
	defer cancel()

	// Reads are discarded; a read error is the disconnect signal.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case update := <-updates:
			if err := c.WriteJSON(update); err != nil {
				logger.Debug("Failed to push status update", zap.Error(err))
				return
			}
		}
	}
}
