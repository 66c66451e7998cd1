package automation

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeDevTools serves the DevTools HTTP endpoints over an in-memory tab list
type fakeDevTools struct {
	mu      sync.Mutex
	targets []TargetInfo
	nextID  int
	down    bool

	server *httptest.Server
}

func newFakeDevTools(t *testing.T, targets ...TargetInfo) *fakeDevTools {
	t.Helper()
	f := &fakeDevTools{targets: targets}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeDevTools) wsEndpoint() string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http") + "/devtools/browser/fake"
}

func (f *fakeDevTools) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

func (f *fakeDevTools) list() []TargetInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]TargetInfo(nil), f.targets...)
}

func (f *fakeDevTools) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.down {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	switch {
	case r.URL.Path == "/json/version":
		writeJSON(w, VersionInfo{
			Browser:              "HeadlessChrome/120.0.0.0",
			ProtocolVersion:      "1.3",
			WebSocketDebuggerURL: f.wsEndpoint(),
		})
	case r.URL.Path == "/json/list":
		writeJSON(w, f.targets)
	case r.URL.Path == "/json/new":
		if r.Method != http.MethodPut {
			http.Error(w, "use PUT", http.StatusMethodNotAllowed)
			return
		}
		f.nextID++
		info := TargetInfo{
			ID:   "T" + string(rune('0'+f.nextID)),
			Type: "page",
			URL:  r.URL.RawQuery,
		}
		f.targets = append(f.targets, info)
		writeJSON(w, info)
	case strings.HasPrefix(r.URL.Path, "/json/close/"):
		id := strings.TrimPrefix(r.URL.Path, "/json/close/")
		for i, t := range f.targets {
			if t.ID == id {
				f.targets = append(f.targets[:i], f.targets[i+1:]...)
				_, _ = w.Write([]byte("Target is closing"))
				return
			}
		}
		http.Error(w, "No such target id: "+id, http.StatusNotFound)
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
