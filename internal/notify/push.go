package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type pushPayload struct {
	To       string        `json:"to"`
	Messages []textMessage `json:"messages"`
}

type multicastPayload struct {
	To       []string      `json:"to"`
	Messages []textMessage `json:"messages"`
}

// PushGateway delivers messages through the chat platform's push API.
type PushGateway struct {
	baseURL string
	token   string
	client  *http.Client
}

// Option configures the gateway.
type Option func(*PushGateway)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(g *PushGateway) {
		if client != nil {
			g.client = client
		}
	}
}

// NewPushGateway constructs a push gateway. token is the channel access
// token sent as a bearer credential.
func NewPushGateway(baseURL, token string, opts ...Option) (*PushGateway, error) {
	if baseURL == "" {
		return nil, errors.New("push gateway: empty base url")
	}
	if token == "" {
		return nil, errors.New("push gateway: empty access token")
	}
	gateway := &PushGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(gateway)
	}
	return gateway, nil
}

// PushToUser sends a text message to one chat user.
func (g *PushGateway) PushToUser(ctx context.Context, chatUserID, text string) error {
	if g == nil {
		return errors.New("push gateway: nil gateway")
	}
	if chatUserID == "" {
		return errors.New("push gateway: empty chat user id")
	}
	payload := pushPayload{
		To:       chatUserID,
		Messages: []textMessage{{Type: "text", Text: text}},
	}
	return g.post(ctx, "/push", payload)
}

// BroadcastToAdmins sends one text message to multiple chat users.
func (g *PushGateway) BroadcastToAdmins(ctx context.Context, chatUserIDs []string, text string) error {
	if g == nil {
		return errors.New("push gateway: nil gateway")
	}
	if len(chatUserIDs) == 0 {
		return nil
	}
	payload := multicastPayload{
		To:       chatUserIDs,
		Messages: []textMessage{{Type: "text", Text: text}},
	}
	return g.post(ctx, "/multicast", payload)
}

func (g *PushGateway) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.token)
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("push gateway: non-2xx response %d", resp.StatusCode)
	}
	return nil
}
