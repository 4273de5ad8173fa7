package middleware

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/conneroisu/swimport/internal/bundler"
	"github.com/conneroisu/swimport/internal/errors"
	"github.com/conneroisu/swimport/internal/logging"
)

// Response header values for served workers.
const (
	ContentTypeJavaScript = "application/javascript"
	WorkerCacheControl    = "max-age=360000"
	HeaderWorkerAllowed   = "Service-Worker-Allowed"
)

// Bundler is the part of bundler.Bundler the worker middleware needs.
type Bundler interface {
	Bundle(ctx context.Context, entryFile string, compress bool) (*bundler.Result, error)
}

// Tracker records served worker files and their inputs.
type Tracker interface {
	Add(paths ...string)
}

// ErrorHandlerFunc writes the server's error response for err.
type ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)

// WorkerOptions configures WorkerMiddleware.
type WorkerOptions struct {
	MountPoint string
	// AllowedHeader is sent as Service-Worker-Allowed when non-empty.
	AllowedHeader string
	Bundler       Bundler
	Tracked       Tracker
	// ErrorHandler defaults to DefaultErrorHandler.
	ErrorHandler ErrorHandlerFunc
	Logger       logging.Logger
}

// DefaultErrorHandler logs err and answers 500 with the error text.
func DefaultErrorHandler(logger logging.Logger) ErrorHandlerFunc {
	if logger == nil {
		logger = logging.Nop()
	}
	handler := errors.NewErrorHandler(logger)

	return func(w http.ResponseWriter, r *http.Request, err error) {
		handler.Handle(r.Context(), err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// WorkerMiddleware serves GET <mount><file>[?anything] with the unminified
// bundle of <file>. It matches on the raw request URI, so it must wrap the
// router rather than be mounted inside it: routers clean the "//" that
// follows the mount point.
func WorkerMiddleware(opts WorkerOptions) Middleware {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.WithComponent("worker-middleware")

	onError := opts.ErrorHandler
	if onError == nil {
		onError = DefaultErrorHandler(logger)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := requestURI(r)
			if raw == "" || !strings.HasPrefix(raw, opts.MountPoint) {
				next.ServeHTTP(w, r)
				return
			}

			filename := WorkerFilename(opts.MountPoint, raw)
			if filename == "" {
				onError(w, r, errors.NewValidationError(errors.ErrCodeInvalidPath,
					"missing worker path in "+raw))
				return
			}

			result, err := opts.Bundler.Bundle(r.Context(), filename, false)
			if err != nil {
				onError(w, r, err)
				return
			}

			if opts.Tracked != nil {
				opts.Tracked.Add(append([]string{filename}, result.Inputs...)...)
			}

			header := w.Header()
			header.Set("Content-Type", ContentTypeJavaScript)
			header.Set("Cache-Control", WorkerCacheControl)
			if opts.AllowedHeader != "" {
				header.Set(HeaderWorkerAllowed, opts.AllowedHeader)
			}
			w.WriteHeader(http.StatusOK)

			if r.Method == http.MethodHead {
				return
			}
			if _, err := w.Write(result.Code); err != nil {
				logger.Debug(r.Context(), "Worker response write failed", "file", filename, "error", err.Error())
			}
		})
	}
}

// WorkerFilename extracts the file between the mount point and the first
// "?" of a request URI. Percent escapes are decoded when valid.
func WorkerFilename(mountPoint, requestURI string) string {
	rest := strings.TrimPrefix(requestURI, mountPoint)
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		rest = rest[:i]
	}
	if decoded, err := url.PathUnescape(rest); err == nil {
		return decoded
	}
	return rest
}

// requestURI returns the unmodified request target, falling back to the
// parsed URL for requests built without one.
func requestURI(r *http.Request) string {
	if r.RequestURI != "" {
		return r.RequestURI
	}
	if r.URL == nil {
		return ""
	}
	return r.URL.RequestURI()
}
