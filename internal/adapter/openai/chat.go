package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/user/listing-aggregator/internal/repository"
)

const (
	systemPrompt = "You are an assistant that analyses Korean secondhand marketplace listings."
	temperature  = 0.7
)

// ChatClient implements repository.Completer.
type ChatClient struct {
	client
	model string
}

func NewChatClient(cfg Config, httpClient *http.Client) *ChatClient {
	model := cfg.ChatModel
	if model == "" {
		model = DefaultChatModel
	}
	return &ChatClient{client: newClient(cfg, httpClient), model: model}
}

func (c *ChatClient) Complete(ctx context.Context, prompt string) (string, error) {
	payload := chatRequest{
		Model:       c.model,
		Temperature: temperature,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
	}

	var body chatResponse
	if err := c.post(ctx, "/chat/completions", payload, &body); err != nil {
		return "", err
	}

	if len(body.Choices) == 0 || strings.TrimSpace(body.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: empty completion", repository.ErrAIBackend)
	}
	return strings.TrimSpace(body.Choices[0].Message.Content), nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
