package sandbox

import (
	"fmt"
	"strings"
	"text/template"
	"time"
)

// harnessGlobals are captured before user code runs so the response
// assembly keeps working even if the script shadows them
var harnessGlobals = []string{"console", "fs", "mime", "setTimeout"}

var harnessTemplate = template.Must(template.New("harness").Parse(`
{{- range .Globals}}const __{{.}} = {{.}};
{{end -}}
const __log = [];

const __logger = (...args) => __log.push(args);
__console.log = __logger;
__console.info = __logger;
__console.warn = __logger;

const __sleep = (ms) => new Promise(resolve => __setTimeout(resolve, ms));
const __fileCreated = new Promise(resolve => {
  const watcher = __fs.watch('./', {recursive: true}, (eventType, filename) => {
    watcher.close();
    resolve(filename);
  });
});

async function __buildResponse(fileCreated, log) {
  const resp = {log: log.join('\n')};
  const filename = await Promise.race([fileCreated, __sleep({{.GraceMillis}})]);
  if (filename) {
    try {
      resp.result = {
        type: __mime.getType(filename),
        buffer: __fs.readFileSync(filename)
      };
    } catch (err) {
      // unreadable artifact, answer with the log only
    } finally {
      try {
        __fs.unlinkSync(filename);
      } catch (err) {
        // noop
      }
    }
  }
  return resp;
}

(async () => {
{{.UserCode}}

  try {
    await {{.CloseCall}};
  } catch (err) {
    // noop
  }
  return __buildResponse(__fileCreated, __log);
})();
`))

type harnessData struct {
	Globals     []string
	UserCode    string
	CloseCall   string
	GraceMillis int64
}

// Harness wraps rewritten scripts into the program the executor runs
type Harness struct {
	grace time.Duration
}

// NewHarness creates a harness that waits at most grace for an artifact
func NewHarness(grace time.Duration) *Harness {
	if grace <= 0 {
		grace = DefaultConfig().ArtifactGrace
	}
	return &Harness{grace: grace}
}

// Render produces the prepared program for one run
func (h *Harness) Render(rw *Rewritten) (string, error) {
	var b strings.Builder
	err := harnessTemplate.Execute(&b, harnessData{
		Globals:     harnessGlobals,
		UserCode:    rw.Code,
		CloseCall:   rw.CloseCall,
		GraceMillis: h.grace.Milliseconds(),
	})
	if err != nil {
		return "", fmt.Errorf("render harness: %w", err)
	}
	return b.String(), nil
}
