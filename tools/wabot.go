package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"peraduan/config"
	"peraduan/models"
)

// ErrSendDisabled is returned when the global send-disable switch is on.
// Callers must treat it as non-retryable.
var ErrSendDisabled = errors.New("outbound sending is disabled")

// WabotAPIError carries a non-2xx gateway response.
type WabotAPIError struct {
	StatusCode int
	Body       string
}

func (e WabotAPIError) Error() string {
	return fmt.Sprintf("wabot api error: status=%d body=%s", e.StatusCode, e.Body)
}

// WabotClient is a thin client for the wabot.my WhatsApp gateway.
// One instance per tenant connection.
type WabotClient struct {
	ApiURL      string
	ApiToken    string
	InstanceID  string
	DisableSend bool

	// HTTPClient overrides the default 30 s-timeout client (tests).
	HTTPClient *http.Client
}

// NewWabotClient builds a client from the static configuration.
func NewWabotClient(cfg config.WabotConfig) *WabotClient {
	return &WabotClient{
		ApiURL:      cfg.ApiURL,
		ApiToken:    cfg.ApiToken,
		InstanceID:  cfg.InstanceID,
		DisableSend: cfg.DisableSend,
	}
}

// WabotClientForConnection builds a client for a tenant connection,
// falling back to the static configuration where the row is blank.
func WabotClientForConnection(conn models.WhatsAppConnection, cfg config.WabotConfig) *WabotClient {
	c := NewWabotClient(cfg)
	if strings.TrimSpace(conn.InstanceID) != "" {
		c.InstanceID = conn.InstanceID
	}
	if strings.TrimSpace(conn.AccessTokenRef) != "" {
		c.ApiToken = conn.AccessTokenRef
	}
	return c
}

func (c *WabotClient) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

type wabotSendRequest struct {
	Number      string `json:"number"`
	Type        string `json:"type"`
	Message     string `json:"message"`
	MediaURL    string `json:"media_url,omitempty"`
	Filename    string `json:"filename,omitempty"`
	InstanceID  string `json:"instance_id"`
	AccessToken string `json:"access_token"`
}

type wabotSendResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		MsgID string `json:"msgId"`
		ID    string `json:"id"`
	} `json:"data"`
}

// SendText sends a plain text message and returns the provider message id.
func (c *WabotClient) SendText(ctx context.Context, phone, text string) (string, error) {
	return c.send(ctx, wabotSendRequest{
		Number:  phone,
		Type:    "text",
		Message: text,
	})
}

// SendMedia sends a media message with a caption.
func (c *WabotClient) SendMedia(ctx context.Context, phone, caption, mediaURL, filename string) (string, error) {
	return c.send(ctx, wabotSendRequest{
		Number:   phone,
		Type:     "media",
		Message:  caption,
		MediaURL: mediaURL,
		Filename: filename,
	})
}

func (c *WabotClient) send(ctx context.Context, reqBody wabotSendRequest) (string, error) {
	if c.DisableSend {
		return "", ErrSendDisabled
	}

	normalized, err := NormalizePhone(reqBody.Number)
	if err != nil {
		return "", fmt.Errorf("invalid recipient: %w", err)
	}
	reqBody.Number = normalized
	reqBody.InstanceID = c.InstanceID
	reqBody.AccessToken = c.ApiToken

	b, _ := json.Marshal(reqBody)

	url := strings.TrimRight(c.ApiURL, "/") + "/send"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return "", WabotAPIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var parsed wabotSendResponse
	_ = json.Unmarshal(raw, &parsed)
	msgID := parsed.Data.MsgID
	if msgID == "" {
		msgID = parsed.Data.ID
	}
	return msgID, nil
}

// InstanceStatus is the gateway instance state; QR is set while the
// instance still waits to be linked.
type InstanceStatus struct {
	State string `json:"state"`
	QR    string `json:"qr,omitempty"`
}

// GetInstanceStatus probes the gateway instance.
func (c *WabotClient) GetInstanceStatus(ctx context.Context) (InstanceStatus, error) {
	url := fmt.Sprintf("%s/get_instance_status?instance_id=%s&access_token=%s",
		strings.TrimRight(c.ApiURL, "/"), c.InstanceID, c.ApiToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return InstanceStatus{}, err
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return InstanceStatus{}, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return InstanceStatus{}, WabotAPIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var parsed struct {
		Status string         `json:"status"`
		Data   InstanceStatus `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return InstanceStatus{}, err
	}
	return parsed.Data, nil
}

// FetchMedia downloads media bytes from a provider URL. A browser-like
// User-Agent is required by some media CDNs.
func FetchMedia(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("media download failed: status=%d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
