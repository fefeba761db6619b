package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net/http"
	"path/filepath"

	"github.com/Fepozopo/nmedit/pkg/blend"
	"github.com/Fepozopo/nmedit/pkg/canvas"
	"github.com/Fepozopo/nmedit/pkg/config"
	"github.com/Fepozopo/nmedit/pkg/imageio"
)

// maxFormMemory bounds the in-memory part of a multipart upload.
const maxFormMemory = 32 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusOf maps an error to the HTTP status the UI shows it with.
func statusOf(err error) int {
	switch {
	case errors.Is(err, errNotFound):
		return http.StatusNotFound
	case errors.Is(err, blend.ErrDimensionMismatch),
		errors.Is(err, blend.ErrInvalidParameter),
		errors.Is(err, canvas.ErrInvalidStroke),
		errors.Is(err, imageio.ErrUnsupportedFormat),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		msg = "An unexpected error occurred while processing the image."
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	b, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(b)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"intensity":         s.cfg.Blend.Intensity,
		"reduce_noise":      s.cfg.Blend.ReduceNoise,
		"noise_available":   s.engine.NoiseReductionAvailable(),
		"target":            s.engine.Target.Hex(),
		"stroke_width":      s.cfg.Canvas.StrokeWidth,
		"stroke_color":      s.cfg.Canvas.StrokeColor,
		"background_color":  s.cfg.Canvas.BackgroundColor,
		"drawing_mode":      s.cfg.Canvas.DrawingMode,
		"modes":             canvas.Modes,
		"extensions":        imageio.Extensions,
		"folder":            s.cfg.ImageDir != "",
		"can_save":          s.cfg.OutputDir != "" || s.cfg.ImageDir != "",
		"canvas_key":        s.state.Key(),
		"selected":          s.state.Selected(),
		"max_upload_bytes":  s.cfg.MaxUploadBytes,
		"max_stroke_width":  config.MaxStrokeWidth,
		"live_frame_budget": s.cfg.Live.MaxFPS,
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"images": s.catalog.list()})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		s.writeError(w, r, fmt.Errorf("%w: no files in field \"files\"", errBadRequest))
		return
	}
	var added []imageio.Entry
	var failed []map[string]string
	for _, fh := range files {
		name := filepath.Base(fh.Filename)
		if !imageio.HasImageExt(name) {
			failed = append(failed, map[string]string{"name": name, "error": "unsupported file type"})
			continue
		}
		f, err := fh.Open()
		if err != nil {
			failed = append(failed, map[string]string{"name": name, "error": err.Error()})
			continue
		}
		src, err := imageio.ReadFrom(name, f, s.cfg.MaxUploadBytes)
		f.Close()
		if err != nil {
			s.log.Warn("upload rejected", "name", name, "err", err)
			failed = append(failed, map[string]string{"name": name, "error": "Failed to load the image. Please ensure it's a valid image file."})
			continue
		}
		added = append(added, s.catalog.addUpload(src))
		s.log.Info("image uploaded", "name", src.Name, "format", src.Format,
			"width", src.Image.Bounds().Dx(), "height", src.Image.Bounds().Dy())
	}
	status := http.StatusOK
	if len(added) == 0 {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]any{"added": added, "failed": failed, "images": s.catalog.list()})
}

func (s *Server) handleSource(w http.ResponseWriter, r *http.Request) {
	it, err := s.catalog.get(r.PathValue("name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writePNG(w, r, it.src.Image, "")
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		s.writeError(w, r, fmt.Errorf("%w: want {\"name\": ...}", errBadRequest))
		return
	}
	it, err := s.catalog.get(body.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	key, changed := s.state.Select(body.Name)
	writeJSON(w, http.StatusOK, map[string]any{
		"name":       body.Name,
		"canvas_key": key,
		"changed":    changed,
		"width":      it.buf.Width,
		"height":     it.buf.Height,
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"canvas_key": s.state.Clear()})
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	out, err := s.render(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writePNG(w, r, out.result, "")
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	last := s.last.get()
	if last == nil {
		s.writeError(w, r, fmt.Errorf("%w: nothing rendered yet", errNotFound))
		return
	}
	name, _ := imageio.OutputNames(last.name)
	s.writePNG(w, r, last.result, name)
}

func (s *Server) handleMask(w http.ResponseWriter, r *http.Request) {
	last := s.last.get()
	if last == nil {
		s.writeError(w, r, fmt.Errorf("%w: nothing rendered yet", errNotFound))
		return
	}
	_, name := imageio.OutputNames(last.name)
	s.writePNG(w, r, last.mask, name)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	last := s.last.get()
	if last == nil {
		s.writeError(w, r, fmt.Errorf("%w: nothing rendered yet", errNotFound))
		return
	}
	dir := s.cfg.OutputDir
	if dir == "" {
		dir = last.dir
	}
	if dir == "" {
		s.writeError(w, r, fmt.Errorf("%w: no output_dir configured for uploaded images", errBadRequest))
		return
	}
	resultPath, maskPath, err := imageio.SaveOutputs(dir, last.name, last.result, last.mask)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info("saved", "result", resultPath, "mask", maskPath)
	writeJSON(w, http.StatusOK, map[string]string{"result": resultPath, "mask": maskPath})
}

// writePNG encodes img; a non-empty download name makes it an attachment
// when the request asks for ?download=1.
func (s *Server) writePNG(w http.ResponseWriter, r *http.Request, img image.Image, download string) {
	b, err := imageio.PNGBytes(img)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if download != "" && r.URL.Query().Get("download") == "1" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download))
	}
	_, _ = w.Write(b)
}
