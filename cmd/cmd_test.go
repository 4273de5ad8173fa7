package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/swimport/internal/config"
	"github.com/conneroisu/swimport/internal/version"
)

func newTestCommand() (*cobra.Command, *bytes.Buffer) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	return cmd, &out
}

func TestRootCommandHasSubcommands(t *testing.T) {
	for _, name := range []string{"serve", "build", "config", "version"} {
		t.Run(name, func(t *testing.T) {
			found, _, err := rootCmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, found.Name())
		})
	}

	found, _, err := rootCmd.Find([]string{"dev"})
	require.NoError(t, err)
	assert.Equal(t, "serve", found.Name())
}

func TestWorkerFlagsRegistered(t *testing.T) {
	for _, cmd := range []*cobra.Command{serveCmd, buildCmd} {
		for _, name := range []string{"mount-point", "allowed-header", "esbuild-target", "worker-format", "root", "entry"} {
			assert.NotNil(t, cmd.Flags().Lookup(name), "%s --%s", cmd.Name(), name)
		}
	}
	assert.NotNil(t, serveCmd.Flags().Lookup("port"))
	assert.NotNil(t, buildCmd.Flags().Lookup("out-dir"))
}

func TestBindFlag(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("allowed-header", "/", "")
	bindFlag(fs, "worker.allowed_header", "allowed-header")
	bindFlag(fs, "worker.missing", "missing")

	assert.False(t, viper.IsSet("worker.allowed_header"))
	assert.Equal(t, "/", viper.GetString("worker.allowed_header"))

	require.NoError(t, fs.Parse([]string{"--allowed-header="}))
	assert.True(t, viper.IsSet("worker.allowed_header"))
	assert.Equal(t, "", viper.GetString("worker.allowed_header"))
}

func TestConfigShow(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("worker.allowed_header", "")
	viper.Set("worker.format", "esm")

	cmd, out := newTestCommand()
	require.NoError(t, runConfigShow(cmd, nil))

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &cfg))
	require.NotNil(t, cfg.Worker.AllowedHeader)
	assert.Equal(t, "", *cfg.Worker.AllowedHeader)
	assert.Equal(t, "esm", cfg.Worker.Format)
	assert.Equal(t, "/@service-worker/", cfg.Worker.MountPoint)
	assert.Equal(t, config.DefaultPort, cfg.Server.Port)
}

func TestConfigValidate(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cmd, out := newTestCommand()
	require.NoError(t, runConfigValidate(cmd, nil))
	assert.Contains(t, out.String(), "valid")

	viper.Set("worker.mount_point", "no-slashes")
	assert.Error(t, runConfigValidate(cmd, nil))
}

func TestVersionCommand(t *testing.T) {
	t.Cleanup(func() {
		versionFormat = "text"
		versionShort = false
	})

	cmd, out := newTestCommand()
	versionFormat = "json"
	require.NoError(t, runVersionCommand(cmd, nil))

	var info version.BuildInfo
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.Equal(t, version.Version, info.Version)

	out.Reset()
	versionFormat = "text"
	versionShort = true
	require.NoError(t, runVersionCommand(cmd, nil))
	assert.Equal(t, version.Get().Short()+"\n", out.String())

	versionFormat = "xml"
	assert.Error(t, runVersionCommand(cmd, nil))
}

func TestRunBuild(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	files := map[string]string{
		"src/main.ts": "import sw from './sw.ts?service-worker';\nnavigator.serviceWorker.register(sw);\n",
		"src/sw.ts":   "self.addEventListener('fetch', () => {});\n",
	}
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	viper.Set("server.root", root)

	cmd, out := newTestCommand()
	require.NoError(t, runBuild(cmd, nil))

	assert.Contains(t, out.String(), "worker src/sw.ts -> /assets/sw.js")
	assert.Contains(t, out.String(), "assets/sw.js")
	assert.FileExists(t, filepath.Join(root, "dist", "assets", "sw.js"))
	assert.FileExists(t, filepath.Join(root, "dist", "manifest.json"))
}

func TestRunBuildWithoutContext(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	entry := filepath.Join(root, "src", "main.ts")
	require.NoError(t, os.MkdirAll(filepath.Dir(entry), 0o755))
	require.NoError(t, os.WriteFile(entry, []byte("console.log('app');\n"), 0o644))
	viper.Set("server.root", root)

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	require.NoError(t, runBuild(cmd, nil))
	assert.Contains(t, out.String(), "Built")
}
