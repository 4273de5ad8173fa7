package server

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInjectReloadClient(t *testing.T) {
	out, err := InjectReloadClient([]byte(indexSource))
	require.NoError(t, err)

	doc := string(out)
	assert.Contains(t, doc, "<title>app</title>")
	assert.Contains(t, doc, `<script id="swimport-reload-client">`)
	assert.Contains(t, doc, "window.location.reload()")
	assert.True(t, strings.Index(doc, "<h1>hi</h1>") < strings.Index(doc, "swimport-reload-client"))

	again, err := InjectReloadClient(out)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(again), "swimport-reload-client"))
}

func TestInjectReloadClientFragment(t *testing.T) {
	out, err := InjectReloadClient([]byte("<p>fragment"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "<body><p>fragment</p><script")
}

func TestDefaultIndexScripts(t *testing.T) {
	doc := string(defaultIndex([]string{"/assets/a.js", "/assets/b.js"}))
	assert.True(t, strings.HasPrefix(doc, "<!DOCTYPE html>"))
	assert.Contains(t, doc, `<script type="module" src="/assets/a.js"></script>`)
	assert.Contains(t, doc, `<script type="module" src="/assets/b.js"></script>`)
	assert.Contains(t, doc, `<meta charset="utf-8"/>`)
}
