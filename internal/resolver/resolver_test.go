package resolver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/swimport/internal/assets"
	"github.com/conneroisu/swimport/internal/bundler"
)

const mountPoint = "/@service-worker/"

var digestPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

type recordingWatcher struct {
	mu    sync.Mutex
	files []string
	err   error
}

func (w *recordingWatcher) AddFile(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.files = append(w.files, path)
	return w.err
}

type countingBundler struct {
	calls int32
	err   error
}

func (b *countingBundler) Bundle(_ context.Context, entry string, compress bool) (*bundler.Result, error) {
	atomic.AddInt32(&b.calls, 1)
	if b.err != nil {
		return nil, b.err
	}
	return &bundler.Result{Code: []byte("/*" + entry + "*/"), Minified: compress, Inputs: []string{entry}}, nil
}

// writeApp lays out an app with a main entry importing a worker.
func writeApp(t *testing.T) (dir, main, worker string) {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	main = filepath.Join(dir, "main.ts")
	worker = filepath.Join(dir, "sw.ts")
	require.NoError(t, os.WriteFile(main, []byte(
		"import swURL from './sw.ts?service-worker';\nnavigator.serviceWorker.register(swURL);\n"), 0o644))
	require.NoError(t, os.WriteFile(worker, []byte(
		"const version: string = 'v1';\nself.addEventListener('install', () => console.log(version));\n"), 0o644))
	return dir, main, worker
}

func buildApp(t *testing.T, dir, main string, plugin api.Plugin) api.BuildResult {
	t.Helper()
	return api.Build(api.BuildOptions{
		EntryPoints:   []string{main},
		AbsWorkingDir: dir,
		Bundle:        true,
		Write:         false,
		Format:        api.FormatESModule,
		LogLevel:      api.LogLevelSilent,
		Plugins:       []api.Plugin{plugin},
	})
}

func TestDigest(t *testing.T) {
	assert.Equal(t, "da39a3ee5e6b4b0d3255bfef95601890afd80709", Digest(nil))
	assert.Equal(t, Digest([]byte("a")), Digest([]byte("a")))
	assert.NotEqual(t, Digest([]byte("a")), Digest([]byte("b")))
}

func TestModuleBody(t *testing.T) {
	assert.Equal(t, `export default "/@service-worker//app/sw.ts?abc";`, ModuleBody("/@service-worker//app/sw.ts?abc"))
	assert.Equal(t, `export default "a\"b";`, ModuleBody(`a"b`))
}

func TestAssetName(t *testing.T) {
	assert.Equal(t, "sw.js", AssetName("/app/sw.ts"))
	assert.Equal(t, "worker.js", AssetName("/app/worker.js"))
	assert.Equal(t, "sw.js", AssetName("/app/sw"))
	assert.Equal(t, "cache.worker.js", AssetName("/app/cache.worker.mts"))
}

func TestDevStrategyURL(t *testing.T) {
	_, _, worker := writeApp(t)
	watcher := &recordingWatcher{}
	strategy := NewDevStrategy(mountPoint, watcher, nil)
	ctx := context.Background()

	first, err := strategy.URL(ctx, worker)
	require.NoError(t, err)
	second, err := strategy.URL(ctx, worker)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	prefix := mountPoint + filepath.ToSlash(worker) + "?"
	require.True(t, strings.HasPrefix(first, prefix))
	assert.Regexp(t, digestPattern, strings.TrimPrefix(first, prefix))

	// Registered with the watcher exactly once.
	assert.Equal(t, []string{worker}, watcher.files)

	require.NoError(t, os.WriteFile(worker, []byte("self.skipWaiting();\n"), 0o644))
	third, err := strategy.URL(ctx, worker)
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}

func TestDevStrategyMissingFile(t *testing.T) {
	watcher := &recordingWatcher{err: errors.New("no such file")}
	strategy := NewDevStrategy(mountPoint, watcher, nil)

	_, err := strategy.Load(context.Background(), filepath.Join(t.TempDir(), "gone.ts"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestDevStrategyRetriesFailedWatch(t *testing.T) {
	_, _, worker := writeApp(t)
	watcher := &recordingWatcher{err: errors.New("no such file")}
	strategy := NewDevStrategy(mountPoint, watcher, nil)
	ctx := context.Background()

	_, err := strategy.URL(ctx, worker)
	require.NoError(t, err)

	watcher.mu.Lock()
	watcher.err = nil
	watcher.mu.Unlock()

	for i := 0; i < 2; i++ {
		_, err = strategy.URL(ctx, worker)
		require.NoError(t, err)
	}

	// One failed attempt, one successful registration, then no more.
	watcher.mu.Lock()
	defer watcher.mu.Unlock()
	assert.Equal(t, []string{worker, worker}, watcher.files)
}

func TestDevStrategyNilWatcher(t *testing.T) {
	_, _, worker := writeApp(t)
	body, err := NewDevStrategy(mountPoint, nil, nil).Load(context.Background(), worker)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(body, `export default "`+mountPoint))
}

func TestBuildStrategyOncePerPath(t *testing.T) {
	b := &countingBundler{}
	emitter := assets.NewEmitter("assets")
	strategy := NewBuildStrategy(b, emitter, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	bodies := make([]string, 20)
	for i := range bodies {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body, err := strategy.Load(ctx, "/app/sw.ts")
			assert.NoError(t, err)
			bodies[i] = body
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&b.calls))
	for _, body := range bodies {
		assert.Equal(t, bodies[0], body)
	}
	require.Len(t, emitter.Assets(), 1)
	assert.Equal(t, "sw.js", emitter.Assets()[0].FileName)

	_, err := strategy.Load(ctx, "/app/other/sw.ts")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&b.calls))
}

func TestBuildStrategyBundleError(t *testing.T) {
	boom := errors.New("syntax error")
	strategy := NewBuildStrategy(&countingBundler{err: boom}, assets.NewEmitter("assets"), nil)

	_, err := strategy.Load(context.Background(), "/app/sw.ts")
	assert.ErrorIs(t, err, boom)
}

func TestPluginDevMode(t *testing.T) {
	dir, main, worker := writeApp(t)
	strategy := NewDevStrategy(mountPoint, nil, nil)

	result := buildApp(t, dir, main, Plugin(context.Background(), strategy, nil))
	require.Empty(t, result.Errors)
	require.Len(t, result.OutputFiles, 1)

	out := string(result.OutputFiles[0].Contents)
	url := regexp.MustCompile(`"(/@service-worker/[^"]+)"`).FindStringSubmatch(out)
	require.Len(t, url, 2, out)

	prefix := mountPoint + filepath.ToSlash(worker) + "?"
	require.True(t, strings.HasPrefix(url[1], prefix), url[1])
	assert.Regexp(t, digestPattern, strings.TrimPrefix(url[1], prefix))
}

func TestPluginBuildMode(t *testing.T) {
	dir, main, _ := writeApp(t)
	b, err := bundler.New(bundler.Options{}, nil)
	require.NoError(t, err)
	emitter := assets.NewEmitter("assets")

	result := buildApp(t, dir, main, Plugin(context.Background(), NewBuildStrategy(b, emitter, nil), nil))
	require.Empty(t, result.Errors)

	emitted := emitter.Assets()
	require.Len(t, emitted, 1)
	assert.Equal(t, "sw.js", emitted[0].FileName)
	assert.NotContains(t, string(emitted[0].Code), "\n  ")

	out := result.OutputFiles[0].Contents
	assert.Contains(t, string(out), "__SWIMPORT_ASSET_")

	emitter.Finalize("/")
	rewritten := string(emitter.Rewrite(out))
	assert.Contains(t, rewritten, `"/assets/sw.js"`)
	assert.NotContains(t, rewritten, "__SWIMPORT_ASSET_")
}

func TestPluginUnresolvableWorker(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	main := filepath.Join(dir, "main.js")
	require.NoError(t, os.WriteFile(main, []byte("import u from './missing.js?service-worker';\nconsole.log(u);\n"), 0o644))

	result := buildApp(t, dir, main, Plugin(context.Background(), NewDevStrategy(mountPoint, nil, nil), nil))
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0].Text, "Could not resolve")
}

func TestPluginPropagatesLoadErrors(t *testing.T) {
	dir, main, _ := writeApp(t)
	boom := &countingBundler{err: errors.New("worker bundle exploded")}
	plugin := Plugin(context.Background(), NewBuildStrategy(boom, assets.NewEmitter("assets"), nil), nil)

	result := buildApp(t, dir, main, plugin)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0].Text, "worker bundle exploded")
}
