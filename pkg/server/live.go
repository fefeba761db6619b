package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/Fepozopo/nmedit/pkg/imageio"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1 << 16,
	WriteBufferSize: 1 << 16,
}

const liveWriteWait = 10 * time.Second

// handleLive streams renders while the user draws. Each text message is a
// render request; the reply is the result PNG as a binary message, or a JSON
// {"error": ...} text message. Requests that arrive faster than the frame
// budget are coalesced: only the newest one is rendered.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade", "err", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(s.cfg.MaxUploadBytes)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	pending := make(chan renderRequest, 1)
	go func() {
		defer cancel()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.log.Debug("websocket read", "err", err)
				}
				return
			}
			var req renderRequest
			if err := json.Unmarshal(msg, &req); err != nil {
				s.log.Debug("websocket bad message", "err", err)
				continue
			}
			select {
			case <-pending:
			default:
			}
			pending <- req
		}
	}()

	limit := rate.Inf
	if s.cfg.Live.MaxFPS > 0 {
		limit = rate.Limit(s.cfg.Live.MaxFPS)
	}
	limiter := rate.NewLimiter(limit, 1)

	for {
		var req renderRequest
		select {
		case <-ctx.Done():
			return
		case req = <-pending:
		}
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		// A newer request may have landed while waiting.
		select {
		case req = <-pending:
		default:
		}

		_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
		out, err := s.render(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			status := statusOf(err)
			msg := err.Error()
			if status >= http.StatusInternalServerError {
				s.log.Error("live render failed", "err", err)
				msg = "An unexpected error occurred while processing the image."
			}
			if err := conn.WriteJSON(map[string]any{"error": msg, "status": status}); err != nil {
				return
			}
			continue
		}
		wr, err := conn.NextWriter(websocket.BinaryMessage)
		if err != nil {
			return
		}
		if err := imageio.EncodePNG(wr, out.result); err != nil {
			s.log.Error("live encode", "err", err)
		}
		if err := wr.Close(); err != nil {
			return
		}
	}
}
