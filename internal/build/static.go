// Package build produces the static output of an application that imports
// workers: minified application bundles, emitted worker assets, the public
// directory and a manifest.
package build

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/conneroisu/swimport/internal/assets"
	"github.com/conneroisu/swimport/internal/config"
	"github.com/conneroisu/swimport/internal/errors"
	"github.com/conneroisu/swimport/internal/logging"
	"github.com/conneroisu/swimport/pkg/swplugin"
)

// Result describes a finished build.
type Result struct {
	OutDir   string
	Files    []string
	Manifest *Manifest
	Duration time.Duration
}

// Builder runs static builds for one configuration.
type Builder struct {
	config  *config.Config
	logger  logging.Logger
	metrics *BuildMetrics
}

// NewBuilder creates a Builder.
func NewBuilder(cfg *config.Config, logger logging.Logger) *Builder {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Builder{
		config:  cfg,
		logger:  logger.WithComponent("build"),
		metrics: NewBuildMetrics(),
	}
}

// Metrics returns the builder's metrics.
func (b *Builder) Metrics() *BuildMetrics {
	return b.metrics
}

// Build bundles the application with workers emitted as assets. Any worker
// or application error aborts the build before anything is written.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	start := time.Now()
	result, workers, err := b.build(ctx)
	b.metrics.RecordBuild(time.Since(start), workers, err)
	if err != nil {
		return nil, err
	}
	result.Duration = time.Since(start)
	return result, nil
}

func (b *Builder) build(ctx context.Context) (*Result, int, error) {
	cfg := b.config

	root, err := filepath.Abs(cfg.Server.Root)
	if err != nil {
		return nil, 0, errors.NewValidationError(errors.ErrCodeInvalidPath, "invalid root "+cfg.Server.Root)
	}
	outDir := cfg.Build.OutDir
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(root, outDir)
	}
	assetsDir := filepath.Join(outDir, filepath.FromSlash(cfg.Build.AssetsDir))

	emitter := assets.NewEmitter(cfg.Build.AssetsDir)
	plugin, err := swplugin.New(ctx, cfg.WorkerOptions(), swplugin.ModeBuild, swplugin.Deps{
		Emitter: emitter,
		Logger:  b.logger,
	})
	if err != nil {
		return nil, 0, err
	}

	op := logging.StartOperation(b.logger, "static_build")
	built := api.Build(api.BuildOptions{
		EntryPoints:       cfg.Build.EntryPoints,
		AbsWorkingDir:     root,
		Outdir:            assetsDir,
		Bundle:            true,
		Write:             false,
		Format:            api.FormatESModule,
		Platform:          api.PlatformBrowser,
		MinifyWhitespace:  cfg.Build.Minify,
		MinifyIdentifiers: cfg.Build.Minify,
		MinifySyntax:      cfg.Build.Minify,
		Metafile:          true,
		LogLevel:          api.LogLevelSilent,
		Plugins:           []api.Plugin{plugin.ESBuild()},
	})
	if err := errors.FromMessages(errors.ErrCodeBuildFailed, built.Errors); err != nil {
		op.EndWithError(ctx, err)
		return nil, 0, err
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	emitter.Finalize(cfg.Build.Base)
	workers := emitter.Assets()

	if err := checkCollisions(built.OutputFiles, assetsDir, workers); err != nil {
		op.EndWithError(ctx, err)
		return nil, 0, err
	}

	if err := os.MkdirAll(assetsDir, 0o755); err != nil {
		return nil, 0, errors.NewIOError(errors.ErrCodeWriteFailed, "create output directory", err)
	}

	result := &Result{
		OutDir:   outDir,
		Manifest: &Manifest{Entries: map[string]string{}, Workers: map[string]string{}},
	}

	copied, err := copyDir(filepath.Join(root, cfg.Server.PublicDir), outDir)
	if err != nil {
		return nil, 0, err
	}
	result.Files = append(result.Files, copied...)

	for _, file := range built.OutputFiles {
		if err := os.MkdirAll(filepath.Dir(file.Path), 0o755); err != nil {
			return nil, 0, errors.NewIOError(errors.ErrCodeWriteFailed, "create output directory", err)
		}
		if err := os.WriteFile(file.Path, emitter.Rewrite(file.Contents), 0o644); err != nil {
			return nil, 0, errors.NewIOError(errors.ErrCodeWriteFailed, "write bundle", err).WithLocation(file.Path, 0, 0)
		}
		result.Files = append(result.Files, file.Path)
	}

	written, err := emitter.WriteTo(outDir)
	if err != nil {
		return nil, 0, err
	}
	result.Files = append(result.Files, written...)

	for entry, output := range entryOutputs(built.Metafile) {
		rel, err := filepath.Rel(outDir, filepath.Join(root, filepath.FromSlash(output)))
		if err != nil {
			continue
		}
		result.Manifest.Entries[entry] = publicURL(cfg.Build.Base, rel)
	}
	for _, worker := range workers {
		source := worker.Source
		if rel, err := filepath.Rel(root, source); err == nil && !strings.HasPrefix(rel, "..") {
			source = filepath.ToSlash(rel)
		}
		result.Manifest.Workers[source] = worker.URL
	}

	manifestPath, err := WriteManifest(outDir, result.Manifest)
	if err != nil {
		return nil, 0, err
	}
	result.Files = append(result.Files, manifestPath)

	op.End(ctx, "files", len(result.Files), "workers", len(workers))
	return result, len(workers), nil
}

func publicURL(base, rel string) string {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + filepath.ToSlash(rel)
}

// checkCollisions rejects builds where a worker asset would overwrite an
// application bundle.
func checkCollisions(outputs []api.OutputFile, assetsDir string, workers []assets.Asset) error {
	taken := make(map[string]struct{}, len(outputs))
	for _, file := range outputs {
		taken[filepath.Clean(file.Path)] = struct{}{}
	}
	for _, worker := range workers {
		target := filepath.Join(assetsDir, worker.FileName)
		if _, ok := taken[target]; ok {
			return errors.NewBuildError(errors.ErrCodeBuildFailed,
				"worker asset "+worker.FileName+" collides with an application bundle", nil).
				WithLocation(worker.Source, 0, 0)
		}
	}
	return nil
}

// copyDir copies every regular file under src into dst. A missing src is
// not an error.
func copyDir(src, dst string) ([]string, error) {
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil, nil
	}

	var copied []string
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if err := copyFile(path, target); err != nil {
			return err
		}
		copied = append(copied, target)
		return nil
	})
	if err != nil {
		return copied, errors.NewIOError(errors.ErrCodeWriteFailed, "copy public directory", err)
	}
	return copied, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
