package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"reelqueue/internal/config"
	"reelqueue/internal/services"
)

// Embedder produces vectors for documents and search queries.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	client         openai.Client
	model          string
	documentPrefix string
	queryPrefix    string
}

// OpenAIOptions configures NewOpenAIEmbedder.
type OpenAIOptions struct {
	BaseURL        string
	APIKey         string
	Model          string
	DocumentPrefix string
	QueryPrefix    string
	Timeout        time.Duration
	HTTPClient     *http.Client
}

// NewOpenAIEmbedder builds an embedder. Local servers usually ignore the API
// key, so a placeholder is sent when none is configured.
func NewOpenAIEmbedder(opts OpenAIOptions) (*OpenAIEmbedder, error) {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		return nil, errors.New("embedding model required")
	}
	baseURL := strings.TrimSpace(opts.BaseURL)
	if baseURL == "" {
		return nil, errors.New("embedding base url required")
	}
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		apiKey = "unused"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	client := openai.NewClient(
		option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"),
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	)
	return &OpenAIEmbedder{
		client:         client,
		model:          model,
		documentPrefix: opts.DocumentPrefix,
		queryPrefix:    opts.QueryPrefix,
	}, nil
}

// NewFromConfig builds an embedder from the [embedding] section.
func NewFromConfig(cfg *config.Config) (*OpenAIEmbedder, error) {
	e := cfg.Embedding
	return NewOpenAIEmbedder(OpenAIOptions{
		BaseURL:        e.BaseURL,
		APIKey:         e.APIKey,
		Model:          e.Model,
		DocumentPrefix: e.DocumentPrefix,
		QueryPrefix:    e.QueryPrefix,
		Timeout:        time.Duration(e.TimeoutSeconds) * time.Second,
	})
}

// Model returns the embedding model name.
func (e *OpenAIEmbedder) Model() string { return e.model }

// EmbedDocuments embeds texts with the document prefix applied.
func (e *OpenAIEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	inputs := make([]string, len(texts))
	for i, t := range texts {
		inputs[i] = e.documentPrefix + t
	}
	return e.embed(ctx, inputs)
}

// EmbedQuery embeds a search query with the query prefix applied.
func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embed(ctx, []string{e.queryPrefix + text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *OpenAIEmbedder) embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	start := time.Now()
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model:          openai.EmbeddingModel(e.model),
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: inputs},
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	})
	latency := time.Since(start)
	if err != nil {
		return nil, classify(err, latency)
	}
	if len(resp.Data) != len(inputs) {
		return nil, services.Wrap(services.ErrExternalService, "embedding", "embed",
			fmt.Sprintf("expected %d vectors, got %d", len(inputs), len(resp.Data)), nil)
	}
	out := make([][]float32, len(inputs))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			return nil, services.Wrap(services.ErrExternalService, "embedding", "embed",
				fmt.Sprintf("vector index %d out of range", d.Index), nil)
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		out[d.Index] = vec
	}
	for i, vec := range out {
		if len(vec) == 0 {
			return nil, services.Wrap(services.ErrExternalService, "embedding", "embed",
				fmt.Sprintf("empty vector for input %d", i), nil)
		}
	}
	return out, nil
}

func classify(err error, latency time.Duration) error {
	detail := fmt.Sprintf("latency=%v", latency)
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		detail = fmt.Sprintf("returned %d (%s)", apiErr.StatusCode, detail)
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return services.Wrap(services.ErrConfiguration, "embedding", "embed", detail+"; check embedding.api_key", err)
		case apiErr.StatusCode == http.StatusNotFound:
			return services.Wrap(services.ErrConfiguration, "embedding", "embed", detail+"; check embedding.model and base_url", err)
		case apiErr.StatusCode == http.StatusBadRequest:
			return services.Wrap(services.ErrValidation, "embedding", "embed", detail, err)
		}
		return services.Wrap(services.ErrTransient, "embedding", "embed", detail, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "embedding", "embed", detail, err)
	}
	return services.Wrap(services.ErrTransient, "embedding", "embed", detail, err)
}
