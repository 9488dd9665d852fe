package tools

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"peraduan/config"
)

// VisionClient calls the Google Cloud Vision REST API in document-text
// mode and returns the recognized lines in reading order.
type VisionClient struct {
	ApiKey   string
	Endpoint string

	HTTPClient *http.Client
}

func NewVisionClient(cfg config.OCRConfig) *VisionClient {
	return &VisionClient{ApiKey: cfg.VisionApiKey, Endpoint: cfg.VisionEndpoint}
}

func (c *VisionClient) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// RecognizeLines runs DOCUMENT_TEXT_DETECTION over the image bytes.
func (c *VisionClient) RecognizeLines(ctx context.Context, image []byte) ([]string, error) {
	if strings.TrimSpace(c.ApiKey) == "" {
		return nil, fmt.Errorf("VISION_API_KEY not set")
	}

	reqBody := map[string]any{
		"requests": []map[string]any{
			{
				"image": map[string]any{
					"content": base64.StdEncoding.EncodeToString(image),
				},
				"features": []map[string]any{
					{"type": "DOCUMENT_TEXT_DETECTION"},
				},
			},
		},
	}

	b, _ := json.Marshal(reqBody)

	url := c.Endpoint + "?key=" + c.ApiKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("vision error %d: %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		Responses []struct {
			FullTextAnnotation struct {
				Text string `json:"text"`
			} `json:"fullTextAnnotation"`
			Error *struct {
				Message string `json:"message"`
			} `json:"error"`
		} `json:"responses"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	if len(parsed.Responses) == 0 {
		return nil, fmt.Errorf("vision: empty response")
	}
	if e := parsed.Responses[0].Error; e != nil {
		return nil, fmt.Errorf("vision: %s", e.Message)
	}

	var lines []string
	for _, line := range strings.Split(parsed.Responses[0].FullTextAnnotation.Text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}
