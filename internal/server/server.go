// Package server runs the development server: application bundles served
// from memory, worker bundles served by the worker middleware, and a
// websocket channel telling browsers to reload.
package server

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/go-chi/chi/v5"

	"github.com/conneroisu/swimport/internal/config"
	"github.com/conneroisu/swimport/internal/errors"
	"github.com/conneroisu/swimport/internal/logging"
	"github.com/conneroisu/swimport/internal/middleware"
	"github.com/conneroisu/swimport/internal/watcher"
	"github.com/conneroisu/swimport/internal/websocket"
	"github.com/conneroisu/swimport/pkg/swplugin"
)

const debounceDelay = 100 * time.Millisecond

// DevServer serves an application with worker imports in dev mode.
type DevServer struct {
	config     *config.Config
	logger     logging.Logger
	errHandler *errors.ErrorHandler

	root      string
	publicDir string

	plugin  *swplugin.Plugin
	app     *AppBundle
	watcher *watcher.FileWatcher
	ws      *websocket.WebSocketManager
	handler http.Handler

	serverMutex  sync.RWMutex
	httpServer   *http.Server
	shutdownOnce sync.Once
}

// New wires the dev server and performs the first application build. A
// failing first build is logged, not returned, so the error can be fixed
// while the server runs.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger) (*DevServer, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.WithComponent("server")

	root, err := filepath.Abs(cfg.Server.Root)
	if err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidPath, "invalid root "+cfg.Server.Root)
	}

	fileWatcher, err := watcher.NewFileWatcher(debounceDelay, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	ws := websocket.NewWebSocketManager(
		websocket.NewHostOriginValidator(cfg.Server.Host, cfg.Server.Port, cfg.Server.AllowedOrigins...),
		logger)

	s := &DevServer{
		config:     cfg,
		logger:     logger,
		errHandler: errors.NewErrorHandler(logger),
		root:       root,
		publicDir:  filepath.Join(root, cfg.Server.PublicDir),
		watcher:    fileWatcher,
		ws:         ws,
	}

	s.plugin, err = swplugin.New(ctx, cfg.WorkerOptions(), swplugin.ModeDev, swplugin.Deps{
		Watcher:      fileWatcher,
		Broadcaster:  ws,
		ErrorHandler: s.handleError,
		Logger:       logger,
	})
	if err != nil {
		_ = fileWatcher.Stop()
		_ = ws.Shutdown(ctx)
		return nil, err
	}

	s.app, err = NewAppBundle(root, cfg.Build.EntryPoints, []api.Plugin{s.plugin.ESBuild()}, logger)
	if err != nil {
		_ = fileWatcher.Stop()
		_ = ws.Shutdown(ctx)
		return nil, err
	}

	if err := s.app.Rebuild(ctx); err != nil {
		s.errHandler.Handle(ctx, err)
	}

	s.handler = s.routes()
	return s, nil
}

// Handler returns the complete HTTP handler. The worker middleware wraps
// the router because it matches the raw request URI.
func (s *DevServer) Handler() http.Handler {
	return s.handler
}

func (s *DevServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/ws", s.ws.HandleWebSocket)
	r.Get("/health", s.handleHealth)
	r.Get(AssetPrefix+"*", s.handleAsset)
	r.Get("/*", s.handleStatic)

	return middleware.NewChain(
		middleware.Logging(s.logger),
		s.plugin.Middleware(),
		middleware.NoCache(),
	).Apply(r)
}

// Plugin returns the worker plugin driving this server.
func (s *DevServer) Plugin() *swplugin.Plugin {
	return s.plugin
}

// Start watches the project and serves HTTP until ctx is canceled or the
// server is shut down.
func (s *DevServer) Start(ctx context.Context) error {
	s.watcher.AddFilter(watcher.SourceFilter)
	s.watcher.AddFilter(watcher.NoNodeModulesFilter)
	s.watcher.AddFilter(watcher.NoGitFilter)
	s.watcher.AddHandler(s.handleFileChange)

	if err := s.watcher.AddRecursive(s.root); err != nil {
		s.logger.Warn(ctx, err, "Failed to watch project root", "root", s.root)
	}
	if err := s.watcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}

	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Dev server listening",
		"url", "http://"+s.config.Address(),
		"mount_point", s.config.Worker.MountPoint)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// handleFileChange rebuilds the application and tells clients to reload.
// The rebuild runs first so that reloaded pages see new worker digests.
func (s *DevServer) handleFileChange(ctx context.Context, events []watcher.ChangeEvent) error {
	if len(events) == 0 {
		return nil
	}
	for _, event := range events {
		s.logger.Debug(ctx, "File changed", "path", event.Path, "type", event.Type.String())
	}

	if err := s.app.Rebuild(ctx); err != nil {
		s.errHandler.Handle(ctx, err)
		s.ws.BroadcastMessage(websocket.UpdateMessage{
			Type:    websocket.MessageBuildError,
			Content: err.Error(),
		})
		return nil
	}

	rest := s.plugin.Coordinator().HandleChange(ctx, events)
	if len(rest) == len(events) {
		// No worker was involved; the coordinator stayed silent.
		s.ws.BroadcastMessage(websocket.UpdateMessage{
			Type:   websocket.MessageFullReload,
			Target: events[0].Path,
		})
	}
	return nil
}

// handleError is the server's error path for worker and asset failures.
func (s *DevServer) handleError(w http.ResponseWriter, r *http.Request, err error) {
	s.errHandler.Handle(r.Context(), err)
	s.ws.BroadcastMessage(websocket.UpdateMessage{
		Type:    websocket.MessageBuildError,
		Target:  r.URL.Path,
		Content: err.Error(),
	})
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

// Shutdown gracefully shuts down the server and cleans up resources
func (s *DevServer) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down dev server")

		if err := s.watcher.Stop(); err != nil {
			s.logger.Warn(ctx, err, "Failed to stop file watcher")
		}
		_ = s.ws.Shutdown(ctx)

		s.serverMutex.RLock()
		server := s.httpServer
		s.serverMutex.RUnlock()
		if server != nil {
			shutdownErr = server.Shutdown(ctx)
		}

		s.app.Dispose()
	})

	return shutdownErr
}
