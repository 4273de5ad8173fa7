package build

import (
	"encoding/json"
)

type metafile struct {
	Outputs map[string]struct {
		EntryPoint string `json:"entryPoint"`
	} `json:"outputs"`
}

// entryOutputs maps entry points to their output paths, both relative to
// the build's working directory, as recorded in an esbuild metafile.
func entryOutputs(raw string) map[string]string {
	out := make(map[string]string)
	if raw == "" {
		return out
	}

	var meta metafile
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return out
	}
	for output, info := range meta.Outputs {
		if info.EntryPoint != "" {
			out[info.EntryPoint] = output
		}
	}
	return out
}
