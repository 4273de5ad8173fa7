package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/conneroisu/swimport/internal/version"
)

// handleAsset serves an in-memory application bundle.
func (s *DevServer) handleAsset(w http.ResponseWriter, r *http.Request) {
	content, contentType, ok := s.app.Get(r.URL.Path)
	if !ok {
		if err := s.app.LastError(); err != nil {
			s.handleError(w, r, err)
			return
		}
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

// handleStatic serves the public directory. HTML documents get the reload
// client injected; "/" falls back to a generated index.
func (s *DevServer) handleStatic(w http.ResponseWriter, r *http.Request) {
	urlPath := path.Clean("/" + r.URL.Path)
	if strings.HasSuffix(urlPath, "/") {
		urlPath += "index.html"
	}
	target := filepath.Join(s.publicDir, filepath.FromSlash(urlPath))

	info, err := os.Stat(target)
	if err == nil && info.IsDir() {
		target = filepath.Join(target, "index.html")
		info, err = os.Stat(target)
	}

	if err != nil {
		if urlPath == "/index.html" {
			s.serveHTML(w, r, defaultIndex(s.app.Scripts()))
			return
		}
		http.NotFound(w, r)
		return
	}

	if strings.EqualFold(filepath.Ext(target), ".html") {
		content, err := os.ReadFile(target)
		if err != nil {
			s.handleError(w, r, err)
			return
		}
		s.serveHTML(w, r, content)
		return
	}

	file, err := os.Open(target)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer file.Close()
	http.ServeContent(w, r, info.Name(), info.ModTime(), file)
}

func (s *DevServer) serveHTML(w http.ResponseWriter, r *http.Request, content []byte) {
	injected, err := InjectReloadClient(content)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(injected)
}

// handleHealth returns the server health status for health checks
func (s *DevServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	buildStatus := map[string]interface{}{"status": "healthy"}
	if err := s.app.LastError(); err != nil {
		status = "degraded"
		buildStatus = map[string]interface{}{"status": "failing", "message": err.Error()}
	}

	health := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"version":   version.GetShortVersion(),
		"checks": map[string]interface{}{
			"build":     buildStatus,
			"websocket": map[string]interface{}{"status": "healthy", "clients": s.ws.GetConnectedClients()},
			"watcher":   map[string]interface{}{"status": "healthy", "paths": s.watcher.WatchedPaths()},
			"workers":   map[string]interface{}{"status": "healthy", "tracked": s.plugin.Tracked().Len()},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to encode health response")
	}
}
