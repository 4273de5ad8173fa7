// Package bundler turns a worker entry file into the JavaScript served or
// emitted for it. Every call runs a fresh esbuild pass; nothing is cached.
package bundler

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sort"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/conneroisu/swimport/internal/errors"
	"github.com/conneroisu/swimport/internal/logging"
)

// Result is the generated code for one worker.
type Result struct {
	Code     []byte
	Minified bool
	// Inputs is the absolute dependency closure of the entry file,
	// including the entry itself.
	Inputs []string
}

// Bundler bundles worker entry files with esbuild.
type Bundler struct {
	target  api.Target
	format  api.Format
	plugins []api.Plugin
	custom  bool
	logger  logging.Logger
}

// New validates opts and returns a Bundler.
func New(opts Options, logger logging.Logger) (*Bundler, error) {
	target, err := ParseTarget(opts.Target)
	if err != nil {
		return nil, err
	}
	format, err := ParseFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Nop()
	}

	return &Bundler{
		target:  target,
		format:  format,
		plugins: opts.Plugins,
		custom:  opts.Plugins != nil,
		logger:  logger.WithComponent("bundler"),
	}, nil
}

// Bundle produces the final code for entryFile. Tree-shaking and the
// minification pass only run when compress is true.
func (b *Bundler) Bundle(ctx context.Context, entryFile string, compress bool) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entry, err := filepath.Abs(entryFile)
	if err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidPath, "invalid worker path "+entryFile)
	}

	op := logging.StartOperation(b.logger, "bundle")

	result := api.Build(b.buildOptions(entry, compress))
	if len(result.Errors) > 0 {
		err := errors.FromMessages(errors.ErrCodeBuildFailed, result.Errors)
		op.EndWithError(ctx, err)
		return nil, err
	}
	if len(result.OutputFiles) == 0 {
		err := errors.NewBuildError(errors.ErrCodeNoOutput, "esbuild produced no output for "+entry, nil)
		op.EndWithError(ctx, err)
		return nil, err
	}

	out := &Result{
		Code:   result.OutputFiles[0].Contents,
		Inputs: metafileInputs(filepath.Dir(entry), result.Metafile),
	}
	if len(out.Inputs) == 0 {
		out.Inputs = []string{entry}
	}

	if compress {
		code, err := b.minify(out.Code)
		if err != nil {
			op.EndWithError(ctx, err)
			return nil, err
		}
		out.Code = code
		out.Minified = true
	}

	op.End(ctx, "entry", entry, "bytes", len(out.Code), "minified", out.Minified)
	return out, nil
}

func (b *Bundler) buildOptions(entry string, compress bool) api.BuildOptions {
	opts := api.BuildOptions{
		EntryPoints:   []string{entry},
		AbsWorkingDir: filepath.Dir(entry),
		Bundle:        true,
		Write:         false,
		Format:        b.format,
		Target:        b.target,
		Platform:      api.PlatformBrowser,
		MainFields:    []string{"browser", "module", "main"},
		Sourcemap:     api.SourceMapNone,
		Metafile:      true,
		LogLevel:      api.LogLevelSilent,
		TreeShaking:   api.TreeShakingFalse,
	}
	if compress {
		opts.TreeShaking = api.TreeShakingTrue
	}
	if b.custom {
		opts.Plugins = b.plugins
	}
	return opts
}

func (b *Bundler) minify(code []byte) ([]byte, error) {
	result := api.Transform(string(code), api.TransformOptions{
		Loader:            api.LoaderJS,
		Target:            b.target,
		MinifyWhitespace:  true,
		MinifyIdentifiers: true,
		MinifySyntax:      true,
		TreeShaking:       api.TreeShakingTrue,
		LogLevel:          api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return nil, errors.FromMessages(errors.ErrCodeMinifyFailed, result.Errors)
	}
	return result.Code, nil
}

type metafile struct {
	Inputs map[string]json.RawMessage `json:"inputs"`
}

// metafileInputs returns the absolute paths of the file-namespace inputs
// listed in an esbuild metafile. Keys are relative to workDir.
func metafileInputs(workDir, raw string) []string {
	if raw == "" {
		return nil
	}
	var meta metafile
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil
	}

	inputs := make([]string, 0, len(meta.Inputs))
	for key := range meta.Inputs {
		// Other namespaces are rendered as "namespace:path".
		if i := strings.Index(key, ":"); i > 1 && !filepath.IsAbs(key) {
			continue
		}
		path := filepath.FromSlash(key)
		if !filepath.IsAbs(path) {
			path = filepath.Join(workDir, path)
		}
		inputs = append(inputs, filepath.Clean(path))
	}
	sort.Strings(inputs)
	return inputs
}
