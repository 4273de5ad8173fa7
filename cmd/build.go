package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/swimport/internal/build"
	"github.com/conneroisu/swimport/internal/config"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Build the application for production",
	Long: `Build the application into the output directory.

Every worker imported with "?service-worker" is bundled once, minified and
written to <out-dir>/<assets-dir>/<name>.js. Imports of it receive the final
public URL. The public directory is copied and a manifest.json is written.

Examples:
  swimport build
  swimport build --out-dir public_html --base https://cdn.example.com/`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringP("out-dir", "o", config.DefaultOutDir, "output directory")
	buildCmd.Flags().String("assets-dir", "assets", "directory under out-dir for bundles and workers")
	buildCmd.Flags().String("base", config.DefaultBase, "public base URL")
	buildCmd.Flags().Bool("minify", true, "minify application bundles")

	bindFlag(buildCmd.Flags(), "build.out_dir", "out-dir")
	bindFlag(buildCmd.Flags(), "build.assets_dir", "assets-dir")
	bindFlag(buildCmd.Flags(), "build.base", "base")
	bindFlag(buildCmd.Flags(), "build.minify", "minify")

	addWorkerFlags(buildCmd)
	addProjectFlags(buildCmd)
}

func runBuild(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}

	result, err := build.NewBuilder(cfg, logger).Build(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, file := range result.Files {
		if rel, err := filepath.Rel(result.OutDir, file); err == nil {
			file = rel
		}
		fmt.Fprintf(out, "  %s\n", filepath.ToSlash(file))
	}
	for source, url := range result.Manifest.Workers {
		fmt.Fprintf(out, "worker %s -> %s\n", source, url)
	}
	fmt.Fprintf(out, "Built %d files into %s in %s\n", len(result.Files), result.OutDir, result.Duration.Round(time.Millisecond))
	return nil
}
