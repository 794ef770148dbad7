package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/examproctor/backend/internal/proctor"
	"github.com/examproctor/backend/pkg/circuitbreaker"
	"github.com/examproctor/backend/pkg/logger"
	"github.com/examproctor/backend/pkg/retry"
)

// Client turns a session's flagged events into a short invigilator-facing
// narrative. The report is complete without it; callers treat failures as
// soft.
type Client struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewClient(apiKey, model string, temperature float32, maxTokens int) *Client {
	client := openai.NewClient(apiKey)

	cb := circuitbreaker.NewCircuitBreaker("llm", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("LLM client initialized", zap.String("model", model))

	return &Client{
		client:      client,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

// Narrate summarizes the flagged events in two or three sentences.
func (c *Client) Narrate(ctx context.Context, events []proctor.Event, loudSoundDetected bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var sb strings.Builder
	for _, e := range events {
		fmt.Fprintf(&sb, "- %s at %.0fs\n", e.Reason, e.Timestamp)
	}
	if loudSoundDetected {
		sb.WriteString("- Loud sound detected during the session\n")
	}

	messages := []openai.ChatCompletionMessage{
		{
			Role: openai.ChatMessageRoleSystem,
			Content: "You summarize exam proctoring anomalies for an invigilator. " +
				"Write two or three plain sentences. Do not speculate beyond the events given.",
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: "Flagged events:\n" + sb.String(),
		},
	}

	var narrative string

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateChatCompletion(
				ctx,
				openai.ChatCompletionRequest{
					Model:       c.model,
					Messages:    messages,
					Temperature: c.temperature,
					MaxTokens:   c.maxTokens,
				},
			)
			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}

			logger.Debug("Narrative generated",
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)

			narrative = resp.Choices[0].Message.Content
			return nil
		})
	})

	if err != nil {
		return "", err
	}

	return narrative, nil
}
