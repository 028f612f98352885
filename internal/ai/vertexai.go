package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// maxVertexBatch is the instance limit of one text-embedding request.
const maxVertexBatch = 250

type embedContentFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)

type VertexAIClient struct {
	config *ClientConfig
	client *genai.Client
	// BatchSize caps the texts sent per request. Zero uses the model's limit.
	BatchSize int
	embed     embedContentFunc
}

// NewVertexAIClient creates a new client for the Google Gemini API.
func NewVertexAIClient(ctx context.Context, config *ClientConfig) (*VertexAIClient, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}

	// Defaults for Gemini API
	if config.EmbedModel == "" {
		config.EmbedModel = "text-embedding-005"
	}
	if config.Dim == 0 {
		config.Dim = 768
	}
	if config.Location == "" && strings.TrimSpace(config.APIKey) == "" {
		config.Location = "us-central1"
	}

	cc := genai.ClientConfig{
		Backend: genai.BackendVertexAI,
	}

	if strings.TrimSpace(config.APIKey) != "" {
		cc.APIKey = config.APIKey
	}
	if strings.TrimSpace(config.ProjectID) != "" {
		cc.Project = config.ProjectID
	}
	if strings.TrimSpace(config.Location) != "" {
		cc.Location = config.Location
	}

	client, err := genai.NewClient(ctx, &cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &VertexAIClient{
		config: config,
		client: client,
		embed:  client.Models.EmbedContent,
	}, nil
}

// Embed embeds a single text.
func (c *VertexAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in request-sized sub-batches, sent in order, and
// returns the vectors in input order.
func (c *VertexAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	embed := c.embed
	if embed == nil {
		if c.client == nil {
			return nil, errors.New("vertex client not initialized")
		}
		embed = c.client.Models.EmbedContent
	}

	size := c.batchSize()
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+size, len(texts))
		vecs, err := c.embedRequest(ctx, embed, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", start, end-1, err)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (c *VertexAIClient) embedRequest(ctx context.Context, embed embedContentFunc, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.Text(t)...)
	}
	cfg := genai.EmbedContentConfig{
		TaskType: "SEMANTIC_SIMILARITY",
	}

	res, err := embed(ctx, c.config.EmbedModel, contents, &cfg)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if res == nil || len(res.Embeddings) == 0 {
		return nil, errors.New("no embedding returned")
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("vertex returned %d embeddings for %d inputs", len(res.Embeddings), len(texts))
	}

	out := make([][]float32, len(res.Embeddings))
	for i, e := range res.Embeddings {
		if e == nil {
			return nil, fmt.Errorf("vertex returned empty embedding at %d", i)
		}
		out[i] = e.Values
	}
	return out, nil
}

// batchSize is BatchSize when set, otherwise the per-request limit of the
// model. Gemini embedding models take a single input per request on Vertex.
func (c *VertexAIClient) batchSize() int {
	if c.BatchSize > 0 {
		return c.BatchSize
	}
	if strings.HasPrefix(c.config.EmbedModel, "gemini-embedding") {
		return 1
	}
	return maxVertexBatch
}

func (c *VertexAIClient) Dim() int {
	return c.config.Dim
}
