package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// teiClient speaks the Text Embeddings Inference API: a bare JSON array of
// vectors, one per input.
type teiClient struct {
	endpoint   string
	dimensions int
	apiKey     string
	httpClient *http.Client
}

type teiRequest struct {
	Inputs []string `json:"inputs"`
}

func (c *teiClient) Dimensions() int { return c.dimensions }

func (c *teiClient) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(teiRequest{Inputs: inputs})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding endpoint returned %d: %s", resp.StatusCode, string(raw))
	}

	var vectors [][]float32
	if err := json.Unmarshal(raw, &vectors); err != nil {
		return nil, fmt.Errorf("failed to parse embedding response: %w", err)
	}
	if len(vectors) != len(inputs) {
		return nil, fmt.Errorf("embedding endpoint returned %d vectors for %d inputs", len(vectors), len(inputs))
	}
	for _, v := range vectors {
		if c.dimensions > 0 && len(v) != c.dimensions {
			return nil, fmt.Errorf("embedding dimensionality mismatch: got %d, want %d", len(v), c.dimensions)
		}
	}
	return vectors, nil
}
