package automation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDevToolsForEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		base     string
		wantErr  bool
	}{
		{"ws://127.0.0.1:9222/devtools/browser/abc", "http://127.0.0.1:9222", false},
		{"wss://chrome.internal:443/devtools/browser/abc", "https://chrome.internal:443", false},
		{"http://localhost:9222", "http://localhost:9222", false},
		{"ftp://localhost:9222", "", true},
		{"ws:///devtools/browser/abc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			d, err := DevToolsForEndpoint(tt.endpoint, 0)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.base, d.Base())
		})
	}
}

func TestDevToolsVersion(t *testing.T) {
	fake := newFakeDevTools(t)
	d := NewDevTools(fake.server.URL, 0)

	info, err := d.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fake.wsEndpoint(), info.WebSocketDebuggerURL)
	assert.Equal(t, "HeadlessChrome/120.0.0.0", info.Browser)
}

func TestDevToolsVersionUnavailable(t *testing.T) {
	fake := newFakeDevTools(t)
	fake.setDown(true)
	d := NewDevTools(fake.server.URL, 0)

	_, err := d.Version(context.Background())
	assert.Error(t, err)
}

func TestDevToolsPagesFiltersTargets(t *testing.T) {
	fake := newFakeDevTools(t,
		TargetInfo{ID: "A", Type: "page", URL: "https://example.com"},
		TargetInfo{ID: "B", Type: "service_worker"},
		TargetInfo{ID: "C", Type: "page", URL: "about:blank"},
	)
	d := NewDevTools(fake.server.URL, 0)

	pages, err := d.Pages(context.Background())
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "A", pages[0].ID)
	assert.Equal(t, "C", pages[1].ID)
}

func TestDevToolsNewAndClosePage(t *testing.T) {
	fake := newFakeDevTools(t)
	d := NewDevTools(fake.server.URL, 0)
	ctx := context.Background()

	info, err := d.NewPage(ctx, "about:blank")
	require.NoError(t, err)
	assert.Equal(t, "about:blank", info.URL)
	assert.Len(t, fake.list(), 1)

	require.NoError(t, d.ClosePage(ctx, info.ID))
	assert.Empty(t, fake.list())

	assert.Error(t, d.ClosePage(ctx, info.ID))
}
