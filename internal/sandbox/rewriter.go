package sandbox

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	closeBrowser = "browser.close()"
	closePage    = "page.close()"

	// targetWatchMarker tags the inserted snippet so a second pass skips it
	targetWatchMarker = "// sandbox:target-watch"

	defaultLaunch = ".launch({args: ['--no-sandbox', '--disable-dev-shm-usage']})"
)

var (
	launchCall = regexp.MustCompile(`\.launch\([\w\W]*?\)`)
	closeCall  = regexp.MustCompile(`\.close\(\)`)
)

// targetWatch blocks file-scheme requests on every page the script opens
const targetWatch = `
    browser.on('targetcreated', async target => { ` + targetWatchMarker + `
      const page = await target.page();
      await page.setRequestInterception(true);
      page.on('request', req => {
        if (req.url().startsWith('file')) {
          req.abort();
        } else {
          req.continue();
        }
      });
    });`

// Rewritten is a script after the static gate, ready for the harness
type Rewritten struct {
	Code      string
	CloseCall string
}

// Rewrite applies the static safety rules to a submitted script.
//
// Matching is textual and best-effort; a script that obfuscates its launch
// call is not rewritten. Applying Rewrite to its own output is a no-op apart
// from the close call.
func Rewrite(script string, opts Options) (*Rewritten, error) {
	if strings.Contains(script, "file:") {
		return nil, errSecurity(ErrFileScheme)
	}

	out := &Rewritten{Code: script, CloseCall: closeBrowser}

	replacement := defaultLaunch
	if opts.ReuseSession != "" {
		replacement = fmt.Sprintf(".connect({browserWSEndpoint: %q})", opts.ReuseSession)
		out.CloseCall = closePage
	}

	code, firstEnd := replaceLaunch(script, replacement)
	if opts.ReuseSession != "" {
		code = commentOutClose(code)
		// commenting shifts offsets on lines before the launch line
		firstEnd = -1
		if loc := strings.Index(code, replacement); loc >= 0 {
			firstEnd = loc + len(replacement)
		}
	}

	if !strings.Contains(code, targetWatchMarker) {
		if firstEnd < 0 {
			firstEnd = strings.Index(code, ".launch(")
		}
		if firstEnd >= 0 {
			code = insertAfterLine(code, firstEnd, targetWatch)
		}
	}

	out.Code = code
	return out, nil
}

// replaceLaunch rewrites every launch call onto a single line and returns the
// offset just past the first replacement, or -1 when there was none
func replaceLaunch(code, replacement string) (string, int) {
	matches := launchCall.FindAllStringIndex(code, -1)
	if len(matches) == 0 {
		return code, -1
	}

	var b strings.Builder
	prev := 0
	firstEnd := -1
	for _, m := range matches {
		b.WriteString(code[prev:m[0]])
		b.WriteString(replacement)
		if firstEnd < 0 {
			firstEnd = b.Len()
		}
		prev = m[1]
	}
	b.WriteString(code[prev:])
	return b.String(), firstEnd
}

// commentOutClose comments out every line that calls .close() and is not
// already a comment
func commentOutClose(code string) string {
	lines := strings.Split(code, "\n")
	for i, line := range lines {
		if !closeCall.MatchString(line) {
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(line), "//") {
			continue
		}
		lines[i] = "// " + line
	}
	return strings.Join(lines, "\n")
}

func insertAfterLine(code string, offset int, snippet string) string {
	nl := strings.IndexByte(code[offset:], '\n')
	if nl < 0 {
		return code + "\n" + strings.TrimPrefix(snippet, "\n")
	}
	at := offset + nl
	return code[:at] + "\n" + strings.TrimPrefix(snippet, "\n") + code[at:]
}
