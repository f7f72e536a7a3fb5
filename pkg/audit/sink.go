package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// HTTPSink posts blobs to a blob-store endpoint that answers with an opaque
// reference, e.g. a decentralized storage gateway.
type HTTPSink struct {
	endpoint string
	client   *http.Client
}

// NewHTTPSink targets endpoint with a bounded request timeout.
func NewHTTPSink(endpoint string) *HTTPSink {
	return &HTTPSink{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Put uploads the blob and returns the store's reference.
func (s *HTTPSink) Put(ctx context.Context, blob []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(blob))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("blob store returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", err
	}

	var out struct {
		Ref string `json:"ref"`
	}
	if err := json.Unmarshal(body, &out); err != nil || out.Ref == "" {
		return "", fmt.Errorf("blob store returned no reference")
	}
	return out.Ref, nil
}

// MemorySink collects blobs in memory, for tests and demos.
type MemorySink struct {
	mu    sync.Mutex
	blobs [][]byte
	// FailPut, when set, makes Put return this error.
	FailPut error
}

// NewMemorySink builds an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Put stores the blob and returns a sequential reference.
func (s *MemorySink) Put(_ context.Context, blob []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailPut != nil {
		return "", s.FailPut
	}
	s.blobs = append(s.blobs, append([]byte(nil), blob...))
	return fmt.Sprintf("mem-%d", len(s.blobs)), nil
}

// Blobs returns a copy of everything written.
func (s *MemorySink) Blobs() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.blobs))
	copy(out, s.blobs)
	return out
}
