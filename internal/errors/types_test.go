package errors

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSWErrorError(t *testing.T) {
	testCases := []struct {
		name     string
		err      *SWError
		expected string
	}{
		{
			name:     "message only",
			err:      &SWError{Message: "boom"},
			expected: "boom",
		},
		{
			name:     "code and location",
			err:      NewBuildError(ErrCodeBuildFailed, "unexpected token", nil).WithLocation("sw.ts", 3, 7),
			expected: "[ERR_BUILD_FAILED] sw.ts:3:7 unexpected token",
		},
		{
			name:     "line without column",
			err:      NewBuildError(ErrCodeBuildFailed, "bad", nil).WithLocation("sw.ts", 3, 0),
			expected: "[ERR_BUILD_FAILED] sw.ts:3 bad",
		},
		{
			name:     "with cause",
			err:      NewIOError(ErrCodeWriteFailed, "write asset", os.ErrPermission),
			expected: "[ERR_WRITE_FAILED] write asset: permission denied",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.err.Error())
		})
	}
}

func TestSWErrorIsAndUnwrap(t *testing.T) {
	err := NewIOError(ErrCodeWriteFailed, "write asset", os.ErrNotExist)

	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.True(t, errors.Is(err, &SWError{Type: ErrorTypeIO, Code: ErrCodeWriteFailed}))
	assert.False(t, errors.Is(err, &SWError{Type: ErrorTypeBuild, Code: ErrCodeWriteFailed}))
}

func TestFromMessages(t *testing.T) {
	assert.Nil(t, FromMessages(ErrCodeBuildFailed, nil))

	msgs := []api.Message{
		{
			Text:     `Could not resolve "./missing"`,
			Location: &api.Location{File: "/app/sw.ts", Line: 1, Column: 7},
		},
		{Text: "second", PluginName: "service-worker"},
	}

	err := FromMessages(ErrCodeBuildFailed, msgs)
	require.NotNil(t, err)

	assert.Equal(t, ErrorTypeBuild, err.Type)
	assert.Equal(t, "/app/sw.ts", err.FilePath)
	assert.Equal(t, 1, err.Line)
	assert.Equal(t, 7, err.Column)
	assert.Equal(t, 2, err.Context["count"])
	assert.Contains(t, err.Message, `Could not resolve "./missing"`)
	assert.Contains(t, err.Message, "[plugin service-worker] second")
	assert.True(t, IsBuildError(err))
	assert.True(t, IsType(err, ErrorTypeBuild))
	assert.False(t, IsType(os.ErrClosed, ErrorTypeBuild))
}

type recordingLogger struct {
	errors []string
	warns  []string
}

func (r *recordingLogger) Error(_ context.Context, _ error, msg string, _ ...interface{}) {
	r.errors = append(r.errors, msg)
}

func (r *recordingLogger) Warn(_ context.Context, _ error, msg string, _ ...interface{}) {
	r.warns = append(r.warns, msg)
}

func TestErrorHandlerHandle(t *testing.T) {
	logger := &recordingLogger{}
	handler := NewErrorHandler(logger)
	ctx := context.Background()

	handler.Handle(ctx, nil)
	handler.Handle(ctx, NewBuildError(ErrCodeBuildFailed, "bad", nil))
	handler.Handle(ctx, NewValidationError(ErrCodeInvalidPath, "bad path"))
	handler.Handle(ctx, NewConfigError(ErrCodeConfigInvalid, "bad config"))
	handler.Handle(ctx, errors.New("plain"))

	assert.Equal(t, []string{"Worker build failed", "Validation error occurred"}, logger.warns)
	assert.Equal(t, []string{"Error occurred", "Unhandled error occurred"}, logger.errors)
}
