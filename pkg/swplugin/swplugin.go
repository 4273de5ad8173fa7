// Package swplugin wires the worker import pipeline together for embedding
// in an esbuild-based toolchain.
//
// A Plugin is created once per session in either ModeDev or ModeBuild. In dev
// mode `?service-worker` imports resolve to a URL served by Middleware and
// changes to served workers trigger a full reload through Coordinator. In
// build mode workers are minified, emitted through Emitter and referenced by
// placeholders that Emitter.Rewrite replaces once the build finishes.
package swplugin

import (
	"context"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/conneroisu/swimport/internal/assets"
	"github.com/conneroisu/swimport/internal/bundler"
	"github.com/conneroisu/swimport/internal/errors"
	"github.com/conneroisu/swimport/internal/logging"
	"github.com/conneroisu/swimport/internal/middleware"
	"github.com/conneroisu/swimport/internal/reload"
	"github.com/conneroisu/swimport/internal/resolver"
)

// Defaults applied by Options.withDefaults.
const (
	DefaultMountPoint    = "/@service-worker/"
	DefaultAllowedHeader = "/"
	DefaultAssetsDir     = "assets"
)

// Mode selects how worker imports are resolved.
type Mode int

const (
	// ModeDev serves workers from the dev middleware.
	ModeDev Mode = iota
	// ModeBuild emits workers as static assets.
	ModeBuild
)

// String returns the string representation of the Mode
func (m Mode) String() string {
	switch m {
	case ModeDev:
		return "dev"
	case ModeBuild:
		return "build"
	default:
		return "unknown"
	}
}

// Options configures the plugin. The zero value is usable.
type Options struct {
	// MountPoint is the URL prefix workers are served under in dev mode.
	MountPoint string
	// WorkerAllowedHeader is the Service-Worker-Allowed value. Nil means
	// DefaultAllowedHeader; a pointer to "" suppresses the header.
	WorkerAllowedHeader *string
	// ESBuildTarget is the worker compile target, e.g. "es2020".
	ESBuildTarget string
	// Format is "iife" (default) or "esm".
	Format string
	// Plugins, when non-nil, replaces the default worker plugin chain.
	Plugins []api.Plugin
}

// AllowedHeader returns the effective Service-Worker-Allowed value.
func (o Options) AllowedHeader() string {
	if o.WorkerAllowedHeader == nil {
		return DefaultAllowedHeader
	}
	return *o.WorkerAllowedHeader
}

func (o Options) withDefaults() Options {
	if o.MountPoint == "" {
		o.MountPoint = DefaultMountPoint
	}
	if o.ESBuildTarget == "" {
		o.ESBuildTarget = bundler.DefaultTarget
	}
	return o
}

// Validate reports configuration errors.
func (o Options) Validate() error {
	o = o.withDefaults()
	if !strings.HasPrefix(o.MountPoint, "/") || !strings.HasSuffix(o.MountPoint, "/") {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid,
			"mount point must start and end with '/': "+o.MountPoint)
	}
	if _, err := bundler.ParseTarget(o.ESBuildTarget); err != nil {
		return err
	}
	if _, err := bundler.ParseFormat(o.Format); err != nil {
		return err
	}
	return nil
}

// Deps are the collaborators supplied by the host.
type Deps struct {
	// Watcher receives worker files in dev mode. Optional.
	Watcher resolver.Watcher
	// Broadcaster receives full reload messages in dev mode. Optional.
	Broadcaster reload.Broadcaster
	// Emitter collects build mode assets. Created when nil.
	Emitter *assets.Emitter
	// ErrorHandler renders middleware failures. Optional.
	ErrorHandler middleware.ErrorHandlerFunc
	Logger       logging.Logger
}

// Plugin is one configured worker pipeline.
type Plugin struct {
	opts        Options
	mode        Mode
	bundler     *bundler.Bundler
	strategy    resolver.Strategy
	tracked     *reload.TrackedSet
	coordinator *reload.Coordinator
	emitter     *assets.Emitter
	esbuild     api.Plugin
	middleware  middleware.Middleware
}

// New builds a Plugin. ctx bounds worker loads made by the esbuild plugin.
func New(ctx context.Context, opts Options, mode Mode, deps Deps) (*Plugin, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	logger := deps.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	b, err := bundler.New(bundler.Options{
		Target:  opts.ESBuildTarget,
		Format:  opts.Format,
		Plugins: opts.Plugins,
	}, logger)
	if err != nil {
		return nil, err
	}

	p := &Plugin{
		opts:    opts,
		mode:    mode,
		bundler: b,
		tracked: reload.NewTrackedSet(),
		emitter: deps.Emitter,
	}
	if p.emitter == nil {
		p.emitter = assets.NewEmitter(DefaultAssetsDir)
	}

	switch mode {
	case ModeDev:
		p.strategy = resolver.NewDevStrategy(opts.MountPoint, deps.Watcher, logger)
	case ModeBuild:
		p.strategy = resolver.NewBuildStrategy(b, p.emitter, logger)
	default:
		return nil, errors.NewConfigError(errors.ErrCodeUnsupportedValue, "unknown plugin mode "+mode.String())
	}

	p.coordinator = reload.NewCoordinator(p.tracked, deps.Broadcaster, logger)
	p.esbuild = resolver.Plugin(ctx, p.strategy, logger)
	p.middleware = middleware.WorkerMiddleware(middleware.WorkerOptions{
		MountPoint:    opts.MountPoint,
		AllowedHeader: opts.AllowedHeader(),
		Bundler:       b,
		Tracked:       p.tracked,
		ErrorHandler:  deps.ErrorHandler,
		Logger:        logger,
	})

	return p, nil
}

// Options returns the effective options.
func (p *Plugin) Options() Options { return p.opts }

// Mode returns the mode the plugin was created in.
func (p *Plugin) Mode() Mode { return p.mode }

// ESBuild returns the esbuild plugin resolving `?service-worker` imports.
func (p *Plugin) ESBuild() api.Plugin { return p.esbuild }

// Middleware returns the dev middleware serving worker bundles.
func (p *Plugin) Middleware() middleware.Middleware { return p.middleware }

// Coordinator returns the reload coordinator fed by the middleware.
func (p *Plugin) Coordinator() *reload.Coordinator { return p.coordinator }

// Tracked returns the set of worker files served so far.
func (p *Plugin) Tracked() *reload.TrackedSet { return p.tracked }

// Emitter returns the asset emitter used in build mode.
func (p *Plugin) Emitter() *assets.Emitter { return p.emitter }

// Bundler returns the worker bundler.
func (p *Plugin) Bundler() *bundler.Bundler { return p.bundler }
