package openai

import (
	"context"
	"fmt"
	"net/http"

	"github.com/user/listing-aggregator/internal/repository"
)

// EmbeddingClient implements repository.Embedder against the /embeddings endpoint.
type EmbeddingClient struct {
	client
	model string
}

func NewEmbeddingClient(cfg Config, httpClient *http.Client) *EmbeddingClient {
	model := cfg.EmbeddingModel
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &EmbeddingClient{client: newClient(cfg, httpClient), model: model}
}

func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float64, error) {
	var body embedResponse
	if err := c.post(ctx, "/embeddings", embedRequest{Model: c.model, Input: []string{text}}, &body); err != nil {
		return nil, err
	}
	if len(body.Data) == 0 || len(body.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", repository.ErrAIBackend)
	}
	return body.Data[0].Embedding, nil
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}
