// Package server is the browser host of the editor: it serves the drawing
// page, accepts uploads or scans a folder, renders blends as the user draws,
// and offers the result and mask for download or saving.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Fepozopo/nmedit/pkg/blend"
	"github.com/Fepozopo/nmedit/pkg/canvas"
	"github.com/Fepozopo/nmedit/pkg/config"
)

//go:embed static
var staticFS embed.FS

// Server holds the per-session editor state: the image
// catalog, the canvas state and the last render.
type Server struct {
	cfg     config.Config
	engine  *blend.Engine
	log     *slog.Logger
	catalog *catalog
	state   canvas.State
	last    lastRender
	mux     *http.ServeMux
}

// New builds a server. engine must not be nil; log may be nil.
func New(cfg config.Config, engine *blend.Engine, log *slog.Logger) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("server: nil engine")
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		engine:  engine,
		log:     log,
		catalog: newCatalog(cfg.ImageDir, engine.Order, log),
	}
	if err := s.catalog.refresh(); err != nil {
		return nil, err
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	static, _ := fs.Sub(staticFS, "static")
	mux := http.NewServeMux()
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/config", s.handleConfig)
	mux.HandleFunc("GET /api/images", s.handleList)
	mux.HandleFunc("POST /api/images", s.handleUpload)
	mux.HandleFunc("GET /api/images/{name}/source.png", s.handleSource)
	mux.HandleFunc("POST /api/select", s.handleSelect)
	mux.HandleFunc("POST /api/clear", s.handleClear)
	mux.HandleFunc("POST /api/render", s.handleRender)
	mux.HandleFunc("GET /api/result.png", s.handleResult)
	mux.HandleFunc("GET /api/mask.png", s.handleMask)
	mux.HandleFunc("POST /api/save", s.handleSave)
	mux.HandleFunc("GET /ws", s.handleLive)
	s.mux = mux
}

// Handler returns the HTTP handler with request logging.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.mux.ServeHTTP(w, r)
		s.log.Debug("request", "method", r.Method, "path", r.URL.Path, "took", time.Since(start))
	})
}

// Serve runs the server on l until ctx is cancelled. The folder watcher runs
// alongside when an image dir is configured.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	if s.cfg.ImageDir != "" {
		stop, err := s.watchFolder()
		if err != nil {
			s.log.Warn("folder watch disabled", "dir", s.cfg.ImageDir, "err", err)
		} else {
			defer stop()
		}
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(l) }()
	s.log.Info("listening", "addr", l.Addr().String(), "image_dir", s.cfg.ImageDir)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
