package chat

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/wyrdlab/reverie/pkg/utils/json"
)

// Event mirrors the server's streaming event shape.
type Event struct {
	Kind      string `json:"kind"`
	Action    string `json:"action,omitempty"`
	Phase     string `json:"phase,omitempty"`
	Query     string `json:"query,omitempty"`
	Content   string `json:"content,omitempty"`
	Error     string `json:"error,omitempty"`
	SessionID string `json:"session_id"`
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	Streaming bool   `json:"streaming"`
}

// Client is the HTTP client for the lorekeeper /chat endpoint.
type Client struct {
	BaseURL    string
	Token      string
	SessionID  string
	HTTPClient *http.Client
}

// NewClient creates a Client.
func NewClient(baseURL, token, sessionID string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		SessionID:  sessionID,
		HTTPClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// EventCallback receives each intermediate system event.
type EventCallback func(ev *Event)

// Chat sends one message and streams events, calling cb for each system
// event. It returns the final reply text, remembering the session id the
// server minted.
func (c *Client) Chat(ctx context.Context, message string, cb EventCallback) (string, error) {
	body, err := json.Marshal(chatRequest{
		Message:   message,
		SessionID: c.SessionID,
		Streaming: true,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("server returned %s", resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var final string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		if ev.SessionID != "" {
			c.SessionID = ev.SessionID
		}

		switch ev.Kind {
		case "system":
			if cb != nil {
				cb(&ev)
			}
		case "final":
			final = ev.Content
		case "error":
			return "", fmt.Errorf("%s", ev.Error)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read stream: %w", err)
	}
	return final, nil
}
