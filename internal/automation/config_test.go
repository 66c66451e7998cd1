package automation

import (
	"testing"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
)

func TestParseFlag(t *testing.T) {
	tests := []struct {
		arg   string
		name  string
		value interface{}
		ok    bool
	}{
		{"--no-sandbox", "no-sandbox", true, true},
		{"--window-size=1280,720", "window-size", "1280,720", true},
		{"-incognito", "incognito", true, true},
		{"  --lang=en-US ", "lang", "en-US", true},
		{"about:blank", "", nil, false},
		{"--", "", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			name, value, ok := parseFlag(tt.arg)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.value, value)
		})
	}
}

func TestAllocatorOptionsKeepsOnlyAllowedFlags(t *testing.T) {
	base := len(chromedp.DefaultExecAllocatorOptions)
	cfg := DefaultConfig()

	opts, dropped := cfg.allocatorOptions([]string{
		"--no-sandbox",
		"--window-size=1280,720",
		"--remote-debugging-port=9999",
		"--user-data-dir=/tmp/steal",
		"--headless=false",
		"--renderer-cmd-prefix=/bin/sh -c id",
		"--utility-cmd-prefix=/bin/sh",
		"--allow-file-access-from-files",
		"not-a-flag",
	})
	// two allowed flags plus the two forced ones
	assert.Len(t, opts, base+4)
	assert.Equal(t, []string{
		"--remote-debugging-port=9999",
		"--user-data-dir=/tmp/steal",
		"--headless=false",
		"--renderer-cmd-prefix=/bin/sh -c id",
		"--utility-cmd-prefix=/bin/sh",
		"--allow-file-access-from-files",
		"not-a-flag",
	}, dropped)
}

func TestAllocatorOptionsForcesSandboxFlags(t *testing.T) {
	base := len(chromedp.DefaultExecAllocatorOptions)
	cfg := DefaultConfig()

	opts, dropped := cfg.allocatorOptions(nil)
	assert.Len(t, opts, base+len(forcedFlags))
	assert.Empty(t, dropped)
	assert.ElementsMatch(t, []string{"no-sandbox", "disable-dev-shm-usage"}, forcedFlags)

	cfg.ChromePath = "/usr/bin/chromium"
	opts, _ = cfg.allocatorOptions(nil, chromedp.WindowSize(800, 600))
	assert.Len(t, opts, base+len(forcedFlags)+2)
}

func TestIsFileURL(t *testing.T) {
	assert.True(t, isFileURL("file:///etc/passwd"))
	assert.True(t, isFileURL("  FILE:///etc/passwd"))
	assert.True(t, isFileURL("File:/etc/passwd"))
	assert.False(t, isFileURL("https://example.com/file:x"))
	assert.False(t, isFileURL("about:blank"))
}
