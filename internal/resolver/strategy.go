// Package resolver turns `?service-worker` imports into modules exporting
// the worker's URL. The URL comes from a Strategy chosen once per session:
// DevStrategy points at the dev middleware, BuildStrategy at an emitted
// asset.
package resolver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/conneroisu/swimport/internal/assets"
	"github.com/conneroisu/swimport/internal/bundler"
	"github.com/conneroisu/swimport/internal/logging"
)

// Strategy produces the synthetic module body for a resolved worker path.
type Strategy interface {
	Load(ctx context.Context, path string) (string, error)
}

// Watcher is the part of the file watcher DevStrategy needs.
type Watcher interface {
	AddFile(path string) error
}

// Bundler is the part of bundler.Bundler BuildStrategy needs.
type Bundler interface {
	Bundle(ctx context.Context, entryFile string, compress bool) (*bundler.Result, error)
}

// Digest returns the hex SHA-1 of data.
func Digest(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

// ModuleBody renders a module whose default export is url.
func ModuleBody(url string) string {
	quoted, _ := json.Marshal(url)
	return "export default " + string(quoted) + ";"
}

// DevStrategy points workers at the dev middleware. The digest query
// changes whenever the file's bytes change, which busts browser caches.
type DevStrategy struct {
	mountPoint string
	watcher    Watcher
	logger     logging.Logger

	mu      sync.Mutex
	watched map[string]struct{}
}

// NewDevStrategy returns a DevStrategy. watcher may be nil.
func NewDevStrategy(mountPoint string, watcher Watcher, logger logging.Logger) *DevStrategy {
	if logger == nil {
		logger = logging.Nop()
	}
	return &DevStrategy{
		mountPoint: mountPoint,
		watcher:    watcher,
		logger:     logger.WithComponent("resolver"),
		watched:    make(map[string]struct{}),
	}
}

// URL returns "<mountPoint><path>?<sha1 of contents>".
func (s *DevStrategy) URL(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.watch(ctx, path)

	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	return s.mountPoint + filepath.ToSlash(path) + "?" + Digest(content), nil
}

// Load implements Strategy.
func (s *DevStrategy) Load(ctx context.Context, path string) (string, error) {
	url, err := s.URL(ctx, path)
	if err != nil {
		return "", err
	}
	return ModuleBody(url), nil
}

func (s *DevStrategy) watch(ctx context.Context, path string) {
	if s.watcher == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.watched[path]; seen {
		return
	}
	// A failed registration is retried on the next load.
	if err := s.watcher.AddFile(path); err != nil {
		s.logger.Warn(ctx, err, "Failed to watch worker file", "path", path)
		return
	}
	s.watched[path] = struct{}{}
}

// BuildStrategy bundles each worker once per build and emits it as an
// asset. The exported URL is a placeholder the emitter rewrites after the
// build finishes.
type BuildStrategy struct {
	bundler Bundler
	emitter *assets.Emitter
	logger  logging.Logger

	group singleflight.Group
	mu    sync.Mutex
	urls  map[string]string
}

// NewBuildStrategy returns a BuildStrategy.
func NewBuildStrategy(b Bundler, emitter *assets.Emitter, logger logging.Logger) *BuildStrategy {
	if logger == nil {
		logger = logging.Nop()
	}
	return &BuildStrategy{
		bundler: b,
		emitter: emitter,
		logger:  logger.WithComponent("resolver"),
		urls:    make(map[string]string),
	}
}

// Load implements Strategy.
func (s *BuildStrategy) Load(ctx context.Context, path string) (string, error) {
	url, err := s.emit(ctx, path)
	if err != nil {
		return "", err
	}
	return ModuleBody(url), nil
}

func (s *BuildStrategy) emit(ctx context.Context, path string) (string, error) {
	if url, ok := s.lookup(path); ok {
		return url, nil
	}

	v, err, _ := s.group.Do(path, func() (interface{}, error) {
		if url, ok := s.lookup(path); ok {
			return url, nil
		}

		result, err := s.bundler.Bundle(ctx, path, true)
		if err != nil {
			return "", err
		}

		handle := s.emitter.Emit(path, AssetName(path), result.Code)
		url := s.emitter.Placeholder(handle)

		s.mu.Lock()
		s.urls[path] = url
		s.mu.Unlock()

		s.logger.Debug(ctx, "Emitted worker", "path", path, "bytes", len(result.Code))
		return url, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *BuildStrategy) lookup(path string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	url, ok := s.urls[path]
	return url, ok
}

// AssetName is the emitted file name for a worker entry:
// its base name with the extension replaced by ".js".
func AssetName(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))] + ".js"
}
