package automation

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
)

// VersionInfo is the reply of /json/version
type VersionInfo struct {
	Browser              string `json:"Browser"`
	ProtocolVersion      string `json:"Protocol-Version"`
	UserAgent            string `json:"User-Agent"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// TargetInfo is one entry of /json/list
type TargetInfo struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// DevTools talks to Chrome's DevTools HTTP endpoints
type DevTools struct {
	client *resty.Client
	base   string
}

// NewDevTools creates a client for the DevTools server at base
// (http://host:port). retries applies to every call.
func NewDevTools(base string, retries int) *DevTools {
	client := resty.New().
		SetBaseURL(strings.TrimRight(base, "/")).
		SetTimeout(5*time.Second).
		SetRetryCount(retries).
		SetRetryWaitTime(250*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Accept", "application/json")
	client.JSONMarshal = sonic.Marshal
	client.JSONUnmarshal = sonic.Unmarshal

	return &DevTools{client: client, base: base}
}

// DevToolsForEndpoint derives the HTTP client from a browser websocket URL
func DevToolsForEndpoint(endpoint string, retries int) (*DevTools, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}

	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	case "http", "https":
	default:
		return nil, fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("endpoint %q has no host", endpoint)
	}

	return NewDevTools(u.Scheme+"://"+u.Host, retries), nil
}

// Base returns the HTTP base URL
func (d *DevTools) Base() string {
	return d.base
}

// Version fetches browser version and websocket endpoint
func (d *DevTools) Version(ctx context.Context) (*VersionInfo, error) {
	var info VersionInfo
	resp, err := d.client.R().SetContext(ctx).SetResult(&info).Get("/json/version")
	if err != nil {
		return nil, fmt.Errorf("devtools version: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("devtools version: status %d", resp.StatusCode())
	}
	if info.WebSocketDebuggerURL == "" {
		return nil, fmt.Errorf("devtools version: no websocket endpoint")
	}
	return &info, nil
}

// Pages lists open page targets
func (d *DevTools) Pages(ctx context.Context) ([]TargetInfo, error) {
	var targets []TargetInfo
	resp, err := d.client.R().SetContext(ctx).SetResult(&targets).Get("/json/list")
	if err != nil {
		return nil, fmt.Errorf("devtools list: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("devtools list: status %d", resp.StatusCode())
	}

	pages := targets[:0]
	for _, t := range targets {
		if t.Type == "page" {
			pages = append(pages, t)
		}
	}
	return pages, nil
}

// NewPage opens a tab on rawURL
func (d *DevTools) NewPage(ctx context.Context, rawURL string) (*TargetInfo, error) {
	var info TargetInfo
	resp, err := d.client.R().SetContext(ctx).SetResult(&info).Put("/json/new?" + rawURL)
	if err != nil {
		return nil, fmt.Errorf("devtools new: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("devtools new: status %d", resp.StatusCode())
	}
	return &info, nil
}

// ClosePage closes a target by id
func (d *DevTools) ClosePage(ctx context.Context, id string) error {
	resp, err := d.client.R().SetContext(ctx).Get("/json/close/" + url.PathEscape(id))
	if err != nil {
		return fmt.Errorf("devtools close: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("devtools close %s: status %d", id, resp.StatusCode())
	}
	return nil
}
