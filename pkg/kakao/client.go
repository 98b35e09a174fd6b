// Package kakao sends KakaoTalk business notification messages (알림톡)
// through an HTTP messaging gateway.
package kakao

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Client delivers a rendered notification to one recipient.
type Client interface {
	Send(ctx context.Context, msg Message) (*SendResponse, error)
}

// Message is the payload posted to the gateway.
type Message struct {
	SenderKey    string `json:"sender_key,omitempty"`
	Recipient    string `json:"recipient"`
	TemplateCode string `json:"template_code"`
	Text         string `json:"message"`
}

// SendResponse is the gateway's acknowledgement.
type SendResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

// APIError is returned when the gateway responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kakao: HTTP %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// HTTPStatus returns the gateway status code.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

// Option configures the client.
type Option func(*httpClient)

// WithSenderKey sets the business channel sender key stamped on every message.
func WithSenderKey(key string) Option {
	return func(c *httpClient) {
		c.senderKey = key
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	gatewayURL string
	apiKey     string
	senderKey  string
	http       *http.Client
}

// NewClient creates a gateway client posting to gatewayURL.
func NewClient(gatewayURL, apiKey string, opts ...Option) Client {
	c := &httpClient{
		gatewayURL: gatewayURL,
		apiKey:     apiKey,
		http:       &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Send(ctx context.Context, msg Message) (*SendResponse, error) {
	if msg.SenderKey == "" {
		msg.SenderKey = c.senderKey
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, eris.Wrap(err, "kakao: marshal message")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gatewayURL, bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "kakao: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "kakao: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "kakao: read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, eris.Wrap(&APIError{StatusCode: resp.StatusCode, Body: string(body)}, "kakao: send")
	}

	var out SendResponse
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, eris.Wrap(err, "kakao: decode response")
		}
	}
	return &out, nil
}
