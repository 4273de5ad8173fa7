package bundler

import (
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/conneroisu/swimport/internal/errors"
)

// DefaultTarget is the compile target used when none is configured.
const DefaultTarget = "es2020"

var targets = map[string]api.Target{
	"es5":    api.ES5,
	"es6":    api.ES2015,
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
}

// ParseTarget maps a target name such as "es2020" to the esbuild target.
func ParseTarget(name string) (api.Target, error) {
	if name == "" {
		name = DefaultTarget
	}
	target, ok := targets[strings.ToLower(name)]
	if !ok {
		return api.DefaultTarget, errors.NewConfigError(errors.ErrCodeUnsupportedValue,
			"unsupported esbuild target "+name)
	}
	return target, nil
}

// ParseFormat maps "iife" or "esm" to the esbuild output format.
func ParseFormat(name string) (api.Format, error) {
	switch strings.ToLower(name) {
	case "", "iife":
		return api.FormatIIFE, nil
	case "esm":
		return api.FormatESModule, nil
	default:
		return api.FormatDefault, errors.NewConfigError(errors.ErrCodeUnsupportedValue,
			"unsupported worker format "+name)
	}
}

// Options configures a Bundler.
type Options struct {
	// Target is the compile target name, e.g. "es2020".
	Target string
	// Format is "iife" (classic workers) or "esm" (module workers).
	Format string
	// Plugins, when non-nil, replaces the default plugin chain.
	Plugins []api.Plugin
}
