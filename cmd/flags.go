package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// bindFlag binds flag name of fs to the viper key. Only flags the user
// actually sets count as set for viper.IsSet.
func bindFlag(fs *pflag.FlagSet, key, name string) {
	if flag := fs.Lookup(name); flag != nil {
		_ = viper.BindPFlag(key, flag)
	}
}

// addWorkerFlags adds the worker plugin options shared by serve and build.
func addWorkerFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.String("mount-point", "/@service-worker/", "URL prefix workers are served under in dev mode")
	fs.String("allowed-header", "/", `Service-Worker-Allowed header value ("" disables it)`)
	fs.String("esbuild-target", "es2020", "worker compile target (es5, es2015 ... es2022, esnext)")
	fs.String("worker-format", "iife", "worker output format (iife, esm)")

	bindFlag(fs, "worker.mount_point", "mount-point")
	bindFlag(fs, "worker.allowed_header", "allowed-header")
	bindFlag(fs, "worker.esbuild_target", "esbuild-target")
	bindFlag(fs, "worker.format", "worker-format")
}

// addProjectFlags adds the project layout options shared by serve and build.
func addProjectFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.String("root", ".", "project root")
	fs.StringSlice("entry", []string{"src/main.ts"}, "application entry points")
	fs.String("public-dir", "public", "static files copied or served as is")

	bindFlag(fs, "server.root", "root")
	bindFlag(fs, "build.entry_points", "entry")
	bindFlag(fs, "server.public_dir", "public-dir")
}
