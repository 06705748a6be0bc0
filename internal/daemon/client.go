// Package daemon talks to the shared background service that hosts
// daemon-resident models, and controls its process lifetime.
package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// NoContent is returned by Chat when the reply carries no message content.
const NoContent = "<no content>"

// StatusError is returned when the daemon answers with an unexpected status.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("daemon %s: http %d", e.Op, e.Status)
	}
	return fmt.Sprintf("daemon %s: http %d: %s", e.Op, e.Status, e.Body)
}

// Client is an HTTP client for the daemon API.
type Client struct {
	BaseURL string
	// PingTimeout bounds a single liveness probe (0 = 2s).
	PingTimeout time.Duration

	http *http.Client
}

// NewClient returns a client for the daemon listening on host:port.
func NewClient(host string, port int) *Client {
	host = strings.TrimSpace(host)
	if host == "" {
		host = "127.0.0.1"
	}
	return NewClientURL("http://" + host + ":" + strconv.Itoa(port))
}

// NewClientURL returns a client for baseURL (scheme://host:port, no trailing slash).
func NewClientURL(baseURL string) *Client {
	// Timeout=0: every call carries its own context deadline.
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), http: &http.Client{Timeout: 0}}
}

// Ping reports nil when the daemon answers /ping with a 2xx status.
func (c *Client) Ping(ctx context.Context) error {
	timeout := c.PingTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/ping", nil)
	if err != nil {
		return err
	}
	resp, err := c.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Op: "ping", Status: resp.StatusCode}
	}
	return nil
}

// LoadRequest is the body of POST /start.
type LoadRequest struct {
	Model      string `json:"model"`
	MemoryPath string `json:"memory_path"`
}

// Load asks the daemon to load model. Only HTTP 200 counts as success.
func (c *Client) Load(ctx context.Context, model, memoryPath string) error {
	resp, err := c.postJSON(ctx, "/start", LoadRequest{Model: model, MemoryPath: memoryPath})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Op: "load", Status: resp.StatusCode, Body: readTail(resp.Body)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /v1/chat/completions.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Chat sends the conversation to the daemon and returns the reply content.
func (c *Client) Chat(ctx context.Context, model string, msgs []Message) (string, error) {
	resp, err := c.postJSON(ctx, "/v1/chat/completions", ChatRequest{Model: model, Messages: msgs})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{Op: "chat", Status: resp.StatusCode, Body: readTail(resp.Body)}
	}
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == nil {
		return NoContent, nil
	}
	return *out.Choices[0].Message.Content, nil
}

func (c *Client) postJSON(ctx context.Context, path string, v any) (*http.Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client().Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return resp, nil
}

func (c *Client) client() *http.Client {
	if c.http == nil {
		return http.DefaultClient
	}
	return c.http
}

func readTail(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 4096))
	return strings.TrimSpace(string(b))
}

// IsStatus reports whether err is a *StatusError.
func IsStatus(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}
