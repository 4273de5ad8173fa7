package version

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildInfoShort(t *testing.T) {
	assert.Equal(t, "v1.0.0 (abcdef1)", BuildInfo{Version: "v1.0.0", GitCommit: "abcdef123456"}.Short())
	assert.Equal(t, "dev", BuildInfo{Version: "dev", GitCommit: "abc"}.Short())
}

func TestBuildInfoIsRelease(t *testing.T) {
	assert.True(t, BuildInfo{Version: "v0.3.1"}.IsRelease())
	assert.False(t, BuildInfo{Version: "dev"}.IsRelease())
	assert.False(t, BuildInfo{Version: "dev-abcdef1"}.IsRelease())
}

func TestBuildInfoString(t *testing.T) {
	info := BuildInfo{
		Version:   "v1.0.0",
		BuildTime: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		GoVersion: "go1.24.4",
		Platform:  "linux/amd64",
		Dirty:     true,
	}
	out := info.String()
	assert.True(t, strings.HasPrefix(out, "swimport v1.0.0\n"))
	assert.Contains(t, out, "Built: 2024-05-01T12:00:00Z")
	assert.Contains(t, out, "Platform: linux/amd64")
	assert.Contains(t, out, "Working directory: dirty")
}

func TestGetUsesLdflags(t *testing.T) {
	oldVersion, oldCommit, oldTime := Version, GitCommit, BuildTime
	defer func() { Version, GitCommit, BuildTime = oldVersion, oldCommit, oldTime }()

	Version, GitCommit, BuildTime = "v9.9.9", "0123456789", "2024-01-02T03:04:05Z"
	info := Get()
	assert.Equal(t, "v9.9.9", info.Version)
	assert.Equal(t, "0123456789", info.GitCommit)
	assert.Equal(t, 2024, info.BuildTime.Year())
	assert.NotEmpty(t, info.GoVersion)
}

func TestParseTime(t *testing.T) {
	assert.True(t, parseTime("").IsZero())
	assert.True(t, parseTime("unknown").IsZero())
	assert.False(t, parseTime("2024-01-02 03:04:05").IsZero())
}
