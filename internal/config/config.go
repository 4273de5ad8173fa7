// Package config provides configuration management for swimport using Viper
// for loading from files, environment variables, and command-line flags.
//
// Settings come from .swimport.yml, SWIMPORT_ prefixed environment variables
// and cobra flags bound to the same keys. Load applies defaults for anything
// left unset and validates the result.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/conneroisu/swimport/internal/bundler"
	"github.com/conneroisu/swimport/pkg/swplugin"
)

type Config struct {
	Worker WorkerConfig `mapstructure:"worker" yaml:"worker"`
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Build  BuildConfig  `mapstructure:"build"  yaml:"build"`
}

type WorkerConfig struct {
	MountPoint string `mapstructure:"mount_point" yaml:"mount_point"`
	// AllowedHeader is nil only before Load; an empty value disables the
	// Service-Worker-Allowed header.
	AllowedHeader *string `mapstructure:"allowed_header" yaml:"allowed_header"`
	ESBuildTarget string  `mapstructure:"esbuild_target" yaml:"esbuild_target"`
	Format        string  `mapstructure:"format"         yaml:"format"`
}

type ServerConfig struct {
	Host           string   `mapstructure:"host"            yaml:"host"`
	Port           int      `mapstructure:"port"            yaml:"port"`
	Root           string   `mapstructure:"root"            yaml:"root"`
	PublicDir      string   `mapstructure:"public_dir"      yaml:"public_dir"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins,omitempty"`
}

type BuildConfig struct {
	EntryPoints []string `mapstructure:"entry_points" yaml:"entry_points"`
	OutDir      string   `mapstructure:"out_dir"      yaml:"out_dir"`
	AssetsDir   string   `mapstructure:"assets_dir"   yaml:"assets_dir"`
	Base        string   `mapstructure:"base"         yaml:"base"`
	Minify      bool     `mapstructure:"minify"       yaml:"minify"`
}

// Default values.
const (
	DefaultHost      = "localhost"
	DefaultPort      = 3000
	DefaultRoot      = "."
	DefaultPublicDir = "public"
	DefaultOutDir    = "dist"
	DefaultBase      = "/"
	DefaultFormat    = "iife"
)

// DefaultEntryPoints are the app entries bundled when none are configured.
var DefaultEntryPoints = []string{"src/main.ts"}

// Load reads the global viper instance into a validated Config.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads v into a validated Config.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// An explicitly empty allowed_header must survive; absent means "/".
	if v.IsSet("worker.allowed_header") {
		header := v.GetString("worker.allowed_header")
		config.Worker.AllowedHeader = &header
	} else {
		header := swplugin.DefaultAllowedHeader
		config.Worker.AllowedHeader = &header
	}

	// Handle entry points set via viper (workaround for viper slice handling)
	if v.IsSet("build.entry_points") && len(config.Build.EntryPoints) == 0 {
		config.Build.EntryPoints = v.GetStringSlice("build.entry_points")
	}
	if v.IsSet("server.allowed_origins") && len(config.Server.AllowedOrigins) == 0 {
		config.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}

	if config.Worker.MountPoint == "" {
		config.Worker.MountPoint = swplugin.DefaultMountPoint
	}
	if config.Worker.ESBuildTarget == "" {
		config.Worker.ESBuildTarget = bundler.DefaultTarget
	}
	if config.Worker.Format == "" {
		config.Worker.Format = DefaultFormat
	}

	if config.Server.Host == "" {
		config.Server.Host = DefaultHost
	}
	if !v.IsSet("server.port") {
		config.Server.Port = DefaultPort
	}
	if config.Server.Root == "" {
		config.Server.Root = DefaultRoot
	}
	if config.Server.PublicDir == "" {
		config.Server.PublicDir = DefaultPublicDir
	}

	if len(config.Build.EntryPoints) == 0 {
		config.Build.EntryPoints = append([]string(nil), DefaultEntryPoints...)
	}
	if config.Build.OutDir == "" {
		config.Build.OutDir = DefaultOutDir
	}
	if config.Build.AssetsDir == "" {
		config.Build.AssetsDir = swplugin.DefaultAssetsDir
	}
	if config.Build.Base == "" {
		config.Build.Base = DefaultBase
	}
	if !strings.HasSuffix(config.Build.Base, "/") {
		config.Build.Base += "/"
	}
	// Handle minify set via viper (workaround for viper bool handling)
	if v.IsSet("build.minify") {
		config.Build.Minify = v.GetBool("build.minify")
	} else {
		config.Build.Minify = true
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// WorkerOptions returns the plugin options described by the worker section.
func (c *Config) WorkerOptions() swplugin.Options {
	opts := swplugin.Options{
		MountPoint:    c.Worker.MountPoint,
		ESBuildTarget: c.Worker.ESBuildTarget,
		Format:        c.Worker.Format,
	}
	if c.Worker.AllowedHeader != nil {
		header := *c.Worker.AllowedHeader
		opts.WorkerAllowedHeader = &header
	}
	return opts
}

// Address returns host:port of the dev server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
