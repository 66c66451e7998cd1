package sandbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHarnessRender(t *testing.T) {
	h := NewHarness(120 * time.Millisecond)

	out, err := h.Render(&Rewritten{Code: "console.log('user code');", CloseCall: closePage})
	require.NoError(t, err)

	assert.Contains(t, out, "const __fs = fs;")
	assert.Contains(t, out, "const __mime = mime;")
	assert.Contains(t, out, "console.log('user code');")
	assert.Contains(t, out, "await page.close();")
	assert.Contains(t, out, "__sleep(120)")
	assert.Contains(t, out, "__fs.watch('./', {recursive: true}")
}

func TestHarnessDefaultGrace(t *testing.T) {
	h := NewHarness(0)

	out, err := h.Render(&Rewritten{CloseCall: closeBrowser})
	require.NoError(t, err)
	assert.Contains(t, out, "__sleep(150)")
}
