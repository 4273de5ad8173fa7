package assets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/swimport/internal/errors"
)

func TestEmitAndFinalize(t *testing.T) {
	e := NewEmitter("assets")

	h := e.Emit("/app/sw.ts", "sw.js", []byte("self.x=1;"))

	_, err := e.URL(h)
	assert.True(t, errors.IsType(err, errors.ErrorTypeBuild), "URL is unknown before Finalize")

	e.Finalize("/")
	url, err := e.URL(h)
	require.NoError(t, err)
	assert.Equal(t, "/assets/sw.js", url)
}

func TestFinalizeBaseWithoutSlash(t *testing.T) {
	e := NewEmitter("")
	h := e.Emit("/app/sw.ts", "sw.js", nil)
	e.Finalize("https://cdn.example.com/app")

	url, err := e.URL(h)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/app/sw.js", url)
}

func TestEmitNameCollision(t *testing.T) {
	e := NewEmitter("assets")

	first := e.Emit("/app/a/sw.ts", "sw.js", []byte("a"))
	second := e.Emit("/app/b/sw.ts", "sw.js", []byte("b"))
	e.Finalize("/")

	firstURL, err := e.URL(first)
	require.NoError(t, err)
	secondURL, err := e.URL(second)
	require.NoError(t, err)

	assert.Equal(t, "/assets/sw.js", firstURL)
	assert.NotEqual(t, firstURL, secondURL)
	assert.Regexp(t, `^/assets/sw-[0-9a-f]{8}\.js$`, secondURL)
}

func TestRewrite(t *testing.T) {
	e := NewEmitter("assets")
	handles := make([]Handle, 0, 12)
	for i := 0; i < 12; i++ {
		handles = append(handles, e.Emit(filepath.Join("/src", string(rune('a'+i)), "w.ts"), string(rune('a'+i))+".js", nil))
	}

	content := []byte(`const a = "` + e.Placeholder(handles[1]) + `", b = "` + e.Placeholder(handles[11]) + `";`)

	assert.Equal(t, content, e.Rewrite(content), "no rewriting before Finalize")

	e.Finalize("/")
	assert.Equal(t, `const a = "/assets/b.js", b = "/assets/l.js";`, string(e.Rewrite(content)))
}

func TestWriteTo(t *testing.T) {
	out := t.TempDir()
	e := NewEmitter("static/js")
	e.Emit("/app/sw.ts", "sw.js", []byte("minified"))
	e.Finalize("/")

	written, err := e.WriteTo(out)
	require.NoError(t, err)
	require.Len(t, written, 1)

	data, err := os.ReadFile(filepath.Join(out, "static", "js", "sw.js"))
	require.NoError(t, err)
	assert.Equal(t, "minified", string(data))

	assets := e.Assets()
	require.Len(t, assets, 1)
	assert.Equal(t, "/static/js/sw.js", assets[0].URL)
}
