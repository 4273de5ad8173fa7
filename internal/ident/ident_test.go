package ident

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/swimport/internal/errors"
)

func TestIsWorkerSpecifier(t *testing.T) {
	testCases := []struct {
		specifier string
		expected  bool
	}{
		{"./sw.ts?service-worker", true},
		{"sw?service-worker", true},
		{"./sw.ts", false},
		{"./sw.ts?Service-Worker", false},
		{"./sw.ts?service-worker&x", false},
		{"./sw.ts?service-work", false},
		{"", false},
	}

	for _, tc := range testCases {
		t.Run(tc.specifier, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsWorkerSpecifier(tc.specifier))
		})
	}
}

func TestStrip(t *testing.T) {
	assert.Equal(t, "./sw.ts", Strip("./sw.ts?service-worker"))
	assert.Equal(t, "./sw.ts", Strip("./sw.ts"))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	id, err := Encode("./sw.ts?service-worker", "/app/sw.ts")
	require.NoError(t, err)

	assert.True(t, id.IsWorker())
	assert.Equal(t, "\x00service-worker/app/sw.ts", id.String())

	decoded, ok := Decode(id.String())
	require.True(t, ok)
	assert.Equal(t, Worker("/app/sw.ts"), decoded)
}

func TestEncodeRejects(t *testing.T) {
	_, err := Encode("./sw.ts", "/app/sw.ts")
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = Encode("./sw.ts?service-worker", "")
	assert.True(t, errors.IsType(err, errors.ErrorTypeResolve))
}

func TestDecodeNotMine(t *testing.T) {
	id, ok := Decode("/app/main.ts")
	assert.False(t, ok)
	assert.Equal(t, Real("/app/main.ts"), id)
	assert.Equal(t, "/app/main.ts", id.String())

	_, ok = Decode("service-worker/app/sw.ts")
	assert.False(t, ok, "prefix without the NUL byte must not match")
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "real", KindReal.String())
	assert.Equal(t, "worker", KindWorker.String())
	assert.Equal(t, "unknown", Kind(7).String())
}
