// Package embedding holds the HTTP clients for remote embedding endpoints.
// Two wire shapes cover the supported providers: the OpenAI embeddings API
// (OPENAI and VLLM) and the Text Embeddings Inference API (TEI).
package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gomem/gomem/pkg/models"
)

const defaultTimeout = 30 * time.Second

// Client computes embeddings for a batch of inputs.
type Client interface {
	// Embed returns one vector per input, in input order.
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	// Dimensions is the expected dimensionality of returned vectors.
	Dimensions() int
}

// NewClient builds a Client for the given embedder configuration.
// credential is the opened (decrypted) endpoint credential; empty means the
// endpoint is unauthenticated.
func NewClient(e *models.Embedder, credential string, httpClient *http.Client) (Client, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	endpoint := strings.TrimSuffix(e.EndpointURL, "/") + e.APIPath

	switch e.ProviderType {
	case models.ProviderOpenAI, models.ProviderVLLM:
		return &openAIClient{
			endpoint:   endpoint,
			model:      e.ModelIdentifier,
			dimensions: int(e.Dimensionality),
			apiKey:     credential,
			httpClient: httpClient,
		}, nil
	case models.ProviderTEI:
		return &teiClient{
			endpoint:   endpoint,
			dimensions: int(e.Dimensionality),
			apiKey:     credential,
			httpClient: httpClient,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", e.ProviderType)
	}
}
