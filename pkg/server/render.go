package server

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/Fepozopo/nmedit/pkg/canvas"
)

// renderRequest is the body of POST /api/render and of websocket messages.
type renderRequest struct {
	Image       string         `json:"image"` // empty: the selected image
	Drawing     canvas.Drawing `json:"drawing"`
	Intensity   *float64       `json:"intensity"`
	ReduceNoise bool           `json:"reduce_noise"`
}

// rendered is the last result, kept for download and save.
type rendered struct {
	name   string
	dir    string // source folder of folder-scan images, else empty
	result *image.NRGBA
	mask   *image.Gray
}

type lastRender struct {
	mu sync.Mutex
	r  *rendered
}

func (l *lastRender) set(r *rendered) {
	l.mu.Lock()
	l.r = r
	l.mu.Unlock()
}

func (l *lastRender) get() *rendered {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r
}

// render rasterizes the drawing, thresholds it into a binary mask, blends and
// clamps the result for display.
func (s *Server) render(ctx context.Context, req renderRequest) (*rendered, error) {
	name := req.Image
	if name == "" {
		name = s.state.Selected()
	}
	if name == "" {
		return nil, fmt.Errorf("%w: no image selected", errNotFound)
	}
	intensity := s.cfg.Blend.Intensity
	if req.Intensity != nil {
		intensity = *req.Intensity
	}

	it, err := s.catalog.get(name)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	coverage, err := canvas.Rasterize(req.Drawing, it.buf.Width, it.buf.Height)
	if err != nil {
		return nil, err
	}
	mask := coverage.Threshold()

	out, err := s.engine.Blend(it.buf, mask, intensity, req.ReduceNoise)
	if err != nil {
		return nil, err
	}

	r := &rendered{
		name:   name,
		dir:    it.sourceDir(),
		result: out.ToNRGBA(s.engine.Order),
		mask:   mask.ToGray(),
	}
	s.last.set(r)
	s.log.Debug("rendered", "image", name, "intensity", intensity,
		"reduce_noise", req.ReduceNoise, "strokes", len(req.Drawing.Strokes), "selected_px", mask.Coverage())
	return r, nil
}
