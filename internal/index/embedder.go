// ABOUTME: Embedding functions for the vector index
// ABOUTME: Local deterministic bag-of-words embedder and an OpenAI-compatible HTTP embedder

package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"net/http"
	"strings"
	"time"

	chromem "github.com/philippgille/chromem-go"
)

const localEmbeddingDim = 256

// LocalEmbedder returns a deterministic embedding function that needs no
// network access. Tokens are hashed into a fixed-size bag-of-words vector
// which is then L2-normalized. Good enough for keyword-overlap similarity;
// swap in the OpenAI embedder for semantic search.
func LocalEmbedder() chromem.EmbeddingFunc {
	return func(_ context.Context, text string) ([]float32, error) {
		vec := make([]float32, localEmbeddingDim)
		for _, token := range tokenize(text) {
			h := fnv.New32a()
			h.Write([]byte(token))
			vec[h.Sum32()%localEmbeddingDim]++
		}
		normalize(vec)
		return vec, nil
	}
}

// OpenAIEmbedder returns an embedding function backed by an
// OpenAI-compatible /embeddings endpoint (LM Studio, Ollama, OpenAI).
func OpenAIEmbedder(baseURL, model string) chromem.EmbeddingFunc {
	client := &http.Client{Timeout: 30 * time.Second}
	url := strings.TrimSuffix(baseURL, "/") + "/embeddings"

	return func(ctx context.Context, text string) ([]float32, error) {
		body, err := json.Marshal(map[string]any{
			"model": model,
			"input": []string{text},
		})
		if err != nil {
			return nil, fmt.Errorf("marshaling embedding request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("creating embedding request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("embedding request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("embedding endpoint returned status %d", resp.StatusCode)
		}

		var result struct {
			Data []struct {
				Embedding []float32 `json:"embedding"`
			} `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, fmt.Errorf("decoding embedding response: %w", err)
		}
		if len(result.Data) == 0 {
			return nil, fmt.Errorf("embedding endpoint returned no data")
		}

		vec := result.Data[0].Embedding
		normalize(vec)
		return vec, nil
	}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
}

// normalize performs L2 normalization in place.
func normalize(v []float32) {
	var sum float64
	for _, val := range v {
		sum += float64(val * val)
	}
	magnitude := float32(math.Sqrt(sum))
	if magnitude <= 0 {
		return
	}
	for i := range v {
		v[i] /= magnitude
	}
}
