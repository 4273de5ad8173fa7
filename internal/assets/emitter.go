// Package assets holds the static files emitted during a build. An emitted
// file's public URL is not known until the build finishes, so callers embed
// a placeholder token and the emitter rewrites it once URLs are final.
package assets

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/conneroisu/swimport/internal/errors"
)

// Handle is an opaque reference to an emitted asset.
type Handle struct {
	id int
}

// Asset is one emitted file.
type Asset struct {
	// Source is the file the asset was generated from.
	Source string
	// FileName is the name under the assets directory.
	FileName string
	// URL is the public URL, set by Finalize.
	URL  string
	Code []byte
}

// Emitter collects emitted assets for a single build.
type Emitter struct {
	assetsDir string

	mu        sync.Mutex
	assets    []*Asset
	names     map[string]string // file name -> source
	finalized bool
}

// NewEmitter returns an emitter placing files under assetsDir.
func NewEmitter(assetsDir string) *Emitter {
	return &Emitter{
		assetsDir: strings.Trim(filepath.ToSlash(assetsDir), "/"),
		names:     make(map[string]string),
	}
}

// Emit registers code generated from source under name. A second source
// claiming an already used name gets a name suffixed with a digest of its
// source path.
func (e *Emitter) Emit(source, name string, code []byte) Handle {
	e.mu.Lock()
	defer e.mu.Unlock()

	if owner, taken := e.names[name]; taken && owner != source {
		name = disambiguate(source, name)
	}
	e.names[name] = source

	e.assets = append(e.assets, &Asset{
		Source:   source,
		FileName: name,
		Code:     code,
	})
	return Handle{id: len(e.assets) - 1}
}

func disambiguate(source, name string) string {
	sum := sha1.Sum([]byte(source))
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext) + "-" + hex.EncodeToString(sum[:4]) + ext
}

// Placeholder returns the token standing in for h's URL until Finalize.
func (e *Emitter) Placeholder(h Handle) string {
	return placeholder(h.id)
}

func placeholder(id int) string {
	return fmt.Sprintf("__SWIMPORT_ASSET_%d__", id)
}

// Finalize assigns every asset its public URL under base.
func (e *Emitter) Finalize(base string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	for _, asset := range e.assets {
		if e.assetsDir == "" {
			asset.URL = base + asset.FileName
		} else {
			asset.URL = base + e.assetsDir + "/" + asset.FileName
		}
	}
	e.finalized = true
}

// URL returns the public URL of h. It fails before Finalize.
func (e *Emitter) URL(h Handle) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.finalized || h.id < 0 || h.id >= len(e.assets) {
		return "", errors.NewBuildError(errors.ErrCodeAssetUnresolved,
			"asset URL requested before the build finished", nil)
	}
	return e.assets[h.id].URL, nil
}

// Rewrite replaces every placeholder in content with its final URL.
func (e *Emitter) Rewrite(content []byte) []byte {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.finalized {
		return content
	}
	for id, asset := range e.assets {
		token := []byte(placeholder(id))
		if bytes.Contains(content, token) {
			content = bytes.ReplaceAll(content, token, []byte(asset.URL))
		}
	}
	return content
}

// Assets returns the emitted assets sorted by file name.
func (e *Emitter) Assets() []Asset {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Asset, 0, len(e.assets))
	for _, asset := range e.assets {
		out = append(out, *asset)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FileName < out[j].FileName })
	return out
}

// WriteTo writes every asset under outDir and returns the written paths.
func (e *Emitter) WriteTo(outDir string) ([]string, error) {
	dir := filepath.Join(outDir, filepath.FromSlash(e.assetsDir))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewIOError(errors.ErrCodeWriteFailed, "create assets directory", err)
	}

	var written []string
	for _, asset := range e.Assets() {
		target := filepath.Join(dir, asset.FileName)
		if err := os.WriteFile(target, asset.Code, 0o644); err != nil {
			return written, errors.NewIOError(errors.ErrCodeWriteFailed, "write asset "+asset.FileName, err).
				WithLocation(target, 0, 0)
		}
		written = append(written, target)
	}
	return written, nil
}
