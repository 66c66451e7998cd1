package sandbox

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteCapturesLogInOrder(t *testing.T) {
	svc := newTestService(t, testConfig(t), nil)

	result, err := svc.Execute(context.Background(), `
console.log('first', 1);
console.info('second');
await new Promise(resolve => setTimeout(resolve, 5));
console.warn('third', {a: 1});
console.error('host only');
`, Options{})
	require.NoError(t, err)

	assert.Equal(t, "first,1\nsecond\nthird,[object Object]", result.Log)
	assert.Nil(t, result.Result)
}

func TestExecuteWithoutArtifactWaitsOnlyForGrace(t *testing.T) {
	cfg := testConfig(t)
	svc := newTestService(t, cfg, nil)

	start := time.Now()
	result, err := svc.Execute(context.Background(), `console.log('done');`, Options{})
	require.NoError(t, err)

	assert.Nil(t, result.Result)
	assert.Less(t, time.Since(start), cfg.ArtifactGrace+time.Second)
}

func TestExecuteReturnsArtifact(t *testing.T) {
	dirs := &workDirs{}
	svc := newTestService(t, testConfig(t), dirs)

	result, err := svc.Execute(context.Background(), `
await writeFile('example.png', 'PNGDATA');
console.log('saved');
`, Options{})
	require.NoError(t, err)

	assert.Equal(t, "saved", result.Log)
	require.NotNil(t, result.Result)
	assert.Equal(t, "image/png", result.Result.Type)
	assert.Equal(t, []byte("PNGDATA"), result.Result.Buffer)

	for _, dir := range dirs.list() {
		_, statErr := os.Stat(dir)
		assert.True(t, os.IsNotExist(statErr), "run dir %s should be removed", dir)
	}
}

func TestExecuteDropsUnreadableArtifact(t *testing.T) {
	svc := newTestService(t, testConfig(t), nil)

	result, err := svc.Execute(context.Background(), `
await writeFile('notes.txt', 'text');
console.log('wrote');
`, Options{})
	require.NoError(t, err)

	assert.Equal(t, "wrote", result.Log)
	assert.Nil(t, result.Result)
}

func TestExecuteRefusedReadLooksLikeMissingFile(t *testing.T) {
	svc := newTestService(t, testConfig(t), nil)

	result, err := svc.Execute(context.Background(), `
const describe = (path) => {
  try {
    fs.readFileSync(path);
  } catch (e) {
    console.log(e.message, e.code, e.errno, e.syscall, e.path, e instanceof Error);
  }
};
describe('/etc/passwd');
describe('missing.png');
describe('../escape.png');
`, Options{})
	require.NoError(t, err)

	lines := strings.Split(result.Log, "\n")
	require.Len(t, lines, 3)
	for i, path := range []string{"/etc/passwd", "missing.png", "../escape.png"} {
		want := fmt.Sprintf("ENOENT: no such file or directory, open '%s',ENOENT,-2,open,%s,true", path, path)
		assert.Equal(t, want, lines[i])
	}
}

func TestExecuteRejectsFileScheme(t *testing.T) {
	svc := newTestService(t, testConfig(t), nil)

	_, err := svc.Execute(context.Background(), `await page.goto('file:///etc/passwd');`, Options{})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindSecurityRejected))
}

func TestExecuteTimeout(t *testing.T) {
	scripts := map[string]string{
		"busy loop":     `while (true) {}`,
		"never settles": `await new Promise(() => {});`,
	}

	for name, script := range scripts {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Timeout = 200 * time.Millisecond
			svc := newTestService(t, cfg, nil)

			result, err := svc.Execute(context.Background(), "console.log('partial');\n"+script, Options{})
			require.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, IsKind(err, KindTimeout))
		})
	}
}

func TestExecuteErrors(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		message string
	}{
		{
			name:    "uncaught throw",
			script:  `throw new Error('boom');`,
			message: "Error: boom",
		},
		{
			name:    "throw in timer callback",
			script:  "setTimeout(() => { throw new Error('late'); }, 1);\nawait new Promise(r => setTimeout(r, 200));",
			message: "Error: late",
		},
		{
			name:    "unhandled rejection",
			script:  "Promise.reject(new Error('lost'));\nawait new Promise(r => setTimeout(r, 200));",
			message: "unhandled promise rejection: Error: lost",
		},
		{
			name:    "syntax error",
			script:  `const = ;`,
			message: "SyntaxError",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, testConfig(t), nil)

			_, err := svc.Execute(context.Background(), tt.script, Options{})
			require.Error(t, err)
			assert.True(t, IsKind(err, KindExecution))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestExecuteRemovesAmbientGlobals(t *testing.T) {
	svc := newTestService(t, testConfig(t), nil)

	result, err := svc.Execute(context.Background(), `
console.log(typeof require, typeof process, typeof module, typeof exports, typeof eval, typeof setInterval);
fs = null;
mime = null;
console.log(typeof fs, typeof mime);
`, Options{})
	require.NoError(t, err)

	assert.Equal(t, "undefined,undefined,undefined,undefined,undefined,undefined\nobject,object", result.Log)
}

func TestExecuteMimeCapability(t *testing.T) {
	svc := newTestService(t, testConfig(t), nil)

	result, err := svc.Execute(context.Background(), `
console.log(mime.getType('a.pdf'), mime.getType('b.JPG'), mime.getType('noext'));
console.log(mime.getExtension('image/png'), mime.getExtension('nope/nope'));
`, Options{})
	require.NoError(t, err)

	assert.Equal(t, "application/pdf,image/jpeg,\npng,", result.Log)
}

func TestExecuteIsolatesConcurrentRuns(t *testing.T) {
	svc := newTestService(t, testConfig(t), nil)

	var wg sync.WaitGroup
	results := make([]*Result, 4)
	errs := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			script := fmt.Sprintf("await writeFile('shot%d.png', 'run-%d');\nconsole.log(%d);", i, i, i)
			results[i], errs[i] = svc.Execute(context.Background(), script, Options{})
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i].Result)
		assert.Equal(t, fmt.Sprint(i), results[i].Log)
		assert.Equal(t, []byte(fmt.Sprintf("run-%d", i)), results[i].Result.Buffer)
	}
}

func TestExecuteBusy(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxConcurrent = 1
	cfg.QueueTimeout = 50 * time.Millisecond
	svc := newTestService(t, cfg, nil)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Execute(context.Background(), `await new Promise(r => setTimeout(r, 500));`, Options{})
		done <- err
	}()

	require.Eventually(t, func() bool {
		return svc.Stats()["in_use"] == 1
	}, time.Second, 5*time.Millisecond)

	_, err := svc.Execute(context.Background(), `console.log('second');`, Options{})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindBusy))

	require.NoError(t, <-done)
}

type recordingObserver struct {
	mu        sync.Mutex
	outcomes  []string
	artifacts []string
}

func (r *recordingObserver) ObserveRun(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *recordingObserver) ObserveArtifact(mimeType string, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.artifacts = append(r.artifacts, mimeType)
}

func TestExecuteReportsToObserver(t *testing.T) {
	cfg := testConfig(t)
	exec, err := NewExecutor(cfg, nil)
	require.NoError(t, err)
	obs := &recordingObserver{}
	svc := NewService(exec, cfg, testCapabilities(nil), obs, nil)

	_, err = svc.Execute(context.Background(), `await writeFile('a.pdf', '%PDF-1.4');`, Options{})
	require.NoError(t, err)
	_, err = svc.Execute(context.Background(), `file:`, Options{})
	require.Error(t, err)
	_, err = svc.Execute(context.Background(), `throw new Error('x');`, Options{})
	require.Error(t, err)

	assert.Equal(t, []string{"success", "security_rejected", "execution_error"}, obs.outcomes)
	assert.Equal(t, []string{"application/pdf"}, obs.artifacts)
}
