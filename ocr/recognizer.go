package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Result is what the external text-recognition service returns for a document:
// raw text plus optional provider-specific metadata.
type Result struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// Client calls the external OCR service over HTTP. The service itself is a
// collaborator; this client only moves bytes and decodes the response.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds a client from OCR_URL and OCR_API_KEY.
func NewClient() (*Client, error) {
	baseURL := os.Getenv("OCR_URL")
	if baseURL == "" {
		return nil, errors.New("OCR_URL is required")
	}
	return NewClientWithHTTP(baseURL, os.Getenv("OCR_API_KEY"), nil), nil
}

func NewClientWithHTTP(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{baseURL: baseURL, apiKey: apiKey, httpClient: httpClient}
}

// Recognize submits the document bytes and returns the recognized text.
// Errors surface to the caller, who owns the retry policy.
func (c *Client) Recognize(ctx context.Context, data []byte, contentType string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/recognize", bytes.NewReader(data))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", contentType)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Result{}, fmt.Errorf("ocr service returned %d: %s", resp.StatusCode, string(body))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("decoding ocr response: %w", err)
	}
	return result, nil
}
