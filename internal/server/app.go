package server

import (
	"context"
	"mime"
	"path"
	"path/filepath"
	"sort"
	"sync"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/conneroisu/swimport/internal/errors"
	"github.com/conneroisu/swimport/internal/logging"
)

// AssetPrefix is the URL prefix application bundles are served under.
const AssetPrefix = "/assets/"

// AppBundle keeps the application entry points bundled in memory. It is
// rebuilt incrementally after source changes.
type AppBundle struct {
	build  api.BuildContext
	outdir string
	logger logging.Logger

	mu      sync.RWMutex
	outputs map[string][]byte
	entries []string
	lastErr error
}

// NewAppBundle creates the esbuild context for entryPoints. Nothing is built
// until Rebuild is called.
func NewAppBundle(root string, entryPoints []string, plugins []api.Plugin, logger logging.Logger) (*AppBundle, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidPath, "invalid root "+root)
	}
	outdir := filepath.Join(absRoot, ".swimport", "dev")

	build, ctxErr := api.Context(api.BuildOptions{
		EntryPoints:   entryPoints,
		AbsWorkingDir: absRoot,
		Outdir:        outdir,
		Bundle:        true,
		Write:         false,
		Format:        api.FormatESModule,
		Platform:      api.PlatformBrowser,
		Sourcemap:     api.SourceMapInline,
		LogLevel:      api.LogLevelSilent,
		Plugins:       plugins,
	})
	if ctxErr != nil {
		if err := errors.FromMessages(errors.ErrCodeBuildFailed, ctxErr.Errors); err != nil {
			return nil, err
		}
		return nil, errors.NewBuildError(errors.ErrCodeBuildFailed, "create esbuild context", ctxErr)
	}

	return &AppBundle{
		build:   build,
		outdir:  outdir,
		logger:  logger.WithComponent("app-bundle"),
		outputs: make(map[string][]byte),
	}, nil
}

// Rebuild bundles the application again. On failure the previous outputs
// stay in place and the error is kept for LastError.
func (a *AppBundle) Rebuild(ctx context.Context) error {
	op := logging.StartOperation(a.logger, "app_rebuild")
	result := a.build.Rebuild()

	if err := errors.FromMessages(errors.ErrCodeBuildFailed, result.Errors); err != nil {
		a.mu.Lock()
		a.lastErr = err
		a.mu.Unlock()
		op.EndWithError(ctx, err)
		return err
	}

	outputs := make(map[string][]byte, len(result.OutputFiles))
	entries := make([]string, 0, len(result.OutputFiles))
	for _, file := range result.OutputFiles {
		rel, err := filepath.Rel(a.outdir, file.Path)
		if err != nil {
			continue
		}
		url := AssetPrefix + filepath.ToSlash(rel)
		outputs[url] = file.Contents
		if path.Ext(url) == ".js" {
			entries = append(entries, url)
		}
	}
	sort.Strings(entries)

	a.mu.Lock()
	a.outputs = outputs
	a.entries = entries
	a.lastErr = nil
	a.mu.Unlock()

	op.End(ctx, "outputs", len(outputs))
	return nil
}

// Get returns the output served at url and its content type.
func (a *AppBundle) Get(url string) ([]byte, string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	content, ok := a.outputs[url]
	if !ok {
		return nil, "", false
	}
	contentType := mime.TypeByExtension(path.Ext(url))
	if contentType == "" || path.Ext(url) == ".js" {
		contentType = "application/javascript"
	}
	return content, contentType, true
}

// Scripts returns the URLs of the JavaScript outputs.
func (a *AppBundle) Scripts() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]string(nil), a.entries...)
}

// LastError returns the error of the most recent failed Rebuild, if the
// build has not succeeded since.
func (a *AppBundle) LastError() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastErr
}

// Dispose releases the esbuild context.
func (a *AppBundle) Dispose() {
	a.build.Dispose()
}
