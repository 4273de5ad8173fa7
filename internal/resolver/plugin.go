package resolver

import (
	"context"
	"fmt"
	"regexp"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/conneroisu/swimport/internal/ident"
	"github.com/conneroisu/swimport/internal/logging"
)

// PluginName is the esbuild plugin name reported in diagnostics.
const PluginName = "service-worker"

var workerFilter = "^.*" + regexp.QuoteMeta(ident.Suffix) + "$"

// Plugin returns the esbuild plugin that resolves worker imports through
// strategy. ctx bounds every Load call.
func Plugin(ctx context.Context, strategy Strategy, logger logging.Logger) api.Plugin {
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.WithComponent("resolver")

	return api.Plugin{
		Name: PluginName,
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: workerFilter},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					resolved := build.Resolve(ident.Strip(args.Path), api.ResolveOptions{
						Importer:   args.Importer,
						Namespace:  args.Namespace,
						ResolveDir: args.ResolveDir,
						Kind:       args.Kind,
						PluginData: args.PluginData,
					})
					if len(resolved.Errors) > 0 {
						return api.OnResolveResult{Errors: resolved.Errors, Warnings: resolved.Warnings}, nil
					}

					id, err := ident.Encode(args.Path, resolved.Path)
					if err != nil {
						return api.OnResolveResult{}, err
					}

					return api.OnResolveResult{
						Path:       id.Path,
						Namespace:  ident.Namespace,
						PluginData: id.String(),
					}, nil
				})

			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: ident.Namespace},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					raw, _ := args.PluginData.(string)
					id, ok := ident.Decode(raw)
					if !ok {
						return api.OnLoadResult{}, fmt.Errorf("%s is not a worker identifier", args.Path)
					}

					body, err := strategy.Load(ctx, id.Path)
					if err != nil {
						logger.Debug(ctx, "Worker load failed", "path", id.Path, "error", err.Error())
						return api.OnLoadResult{}, err
					}

					return api.OnLoadResult{
						Contents: &body,
						Loader:   api.LoaderJS,
					}, nil
				})
		},
	}
}
