package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fepozopo/nmedit/pkg/config"
)

var flat = color.NRGBA{R: 128, G: 128, B: 255, A: 255}

func sourcePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 10, 20, 30, 255
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	engine, err := cfg.Engine()
	require.NoError(t, err)
	s, err := New(cfg, engine, nil)
	require.NoError(t, err)
	return s
}

func do(t *testing.T, s *Server, method, path, ct string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func postJSON(t *testing.T, s *Server, path string, v any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return do(t, s, http.MethodPost, path, "application/json", bytes.NewReader(b))
}

func upload(t *testing.T, s *Server, files map[string][]byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, b := range files {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write(b)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return do(t, s, http.MethodPost, "/api/images", mw.FormDataContentType(), &body)
}

func decodePNG(t *testing.T, b []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	return img
}

func rectRequest(intensity float64) map[string]any {
	return map[string]any{
		"image": "rock.png",
		"drawing": map[string]any{"strokes": []map[string]any{{
			"mode": "rect", "width": 1,
			"points": []map[string]float64{{"x": 3, "y": 3}, {"x": 7, "y": 7}},
		}}},
		"intensity": intensity,
	}
}

func TestIndexAndConfig(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Normal Map Intensity Editor")

	rec = do(t, s, http.MethodGet, "/static/app.js", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/config", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cfg map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, 0.5, cfg["intensity"])
	assert.Equal(t, "#8080ff", cfg["target"])
	assert.Equal(t, false, cfg["noise_available"])
	assert.Equal(t, "freedraw", cfg["drawing_mode"])
}

func TestUploadSelectRenderDownload(t *testing.T) {
	s := newTestServer(t, nil)

	rec := upload(t, s, map[string][]byte{"rock.png": sourcePNG(t, 10, 10)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = postJSON(t, s, "/api/select", map[string]string{"name": "rock.png"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, s, "/api/render", rectRequest(1))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	out := decodePNG(t, rec.Body.Bytes())
	assert.Equal(t, flat, color.NRGBAModel.Convert(out.At(5, 5)), "selected pixel becomes flat normal")
	assert.Equal(t, color.NRGBA{10, 20, 30, 255}, color.NRGBAModel.Convert(out.At(0, 0)), "unselected pixel untouched")

	rec = do(t, s, http.MethodGet, "/api/result.png?download=1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "rock_modified.png")

	rec = do(t, s, http.MethodGet, "/api/mask.png?download=1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "rock_mask.png")
	mask := decodePNG(t, rec.Body.Bytes())
	assert.Equal(t, color.Gray{255}, color.GrayModel.Convert(mask.At(5, 5)))
	assert.Equal(t, color.Gray{0}, color.GrayModel.Convert(mask.At(0, 0)))
}

func TestRenderHalfIntensity(t *testing.T) {
	s := newTestServer(t, nil)
	upload(t, s, map[string][]byte{"rock.png": sourcePNG(t, 10, 10)})

	rec := postJSON(t, s, "/api/render", rectRequest(0.5))
	require.Equal(t, http.StatusOK, rec.Code)
	c := color.NRGBAModel.Convert(decodePNG(t, rec.Body.Bytes()).At(5, 5)).(color.NRGBA)
	// (10+128)/2, (20+128)/2, (30+255)/2 truncated.
	assert.Equal(t, color.NRGBA{R: 69, G: 74, B: 142, A: 255}, c)
}

func TestRenderErrors(t *testing.T) {
	s := newTestServer(t, nil)

	rec := postJSON(t, s, "/api/render", map[string]any{})
	assert.Equal(t, http.StatusNotFound, rec.Code, "nothing selected")

	upload(t, s, map[string][]byte{"rock.png": sourcePNG(t, 10, 10)})

	rec = postJSON(t, s, "/api/render", rectRequest(1.5))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "intensity")

	rec = postJSON(t, s, "/api/render", map[string]any{
		"image":   "rock.png",
		"drawing": map[string]any{"strokes": []map[string]any{{"mode": "spray", "width": 3}}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/render", "application/json", strings.NewReader("{"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, s, "/api/select", map[string]string{"name": "missing.png"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/result.png", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "nothing rendered yet")
}

func TestUploadRejectsBadFiles(t *testing.T) {
	s := newTestServer(t, nil)

	rec := upload(t, s, map[string][]byte{
		"notes.txt": []byte("hello"),
		"fake.png":  []byte("not an image at all"),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body struct {
		Added  []any `json:"added"`
		Failed []any `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Added)
	assert.Len(t, body.Failed, 2)
}

func TestSelectAndClearKey(t *testing.T) {
	s := newTestServer(t, nil)
	upload(t, s, map[string][]byte{
		"a.png": sourcePNG(t, 4, 4),
		"b.png": sourcePNG(t, 4, 4),
	})

	key := func(rec *httptest.ResponseRecorder) int {
		var v struct {
			Key int `json:"canvas_key"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
		return v.Key
	}

	k0 := key(postJSON(t, s, "/api/select", map[string]string{"name": "a.png"}))
	assert.Equal(t, k0, key(postJSON(t, s, "/api/select", map[string]string{"name": "a.png"})))
	k1 := key(postJSON(t, s, "/api/select", map[string]string{"name": "b.png"}))
	assert.Greater(t, k1, k0)
	k2 := key(postJSON(t, s, "/api/clear", nil))
	assert.Greater(t, k2, k1)
}

func TestFolderScanAndSave(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rock.png"), sourcePNG(t, 10, 10), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0o644))
	s := newTestServer(t, func(c *config.Config) { c.ImageDir = dir })

	rec := do(t, s, http.MethodGet, "/api/images", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"rock.png"`)
	assert.Contains(t, rec.Body.String(), `"origin":"folder"`)
	assert.NotContains(t, rec.Body.String(), "readme.txt")

	rec = do(t, s, http.MethodGet, "/api/images/rock.png/source.png", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, http.StatusOK, postJSON(t, s, "/api/render", rectRequest(1)).Code)
	rec = postJSON(t, s, "/api/save", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.FileExists(t, filepath.Join(dir, "rock_modified.png"))
	assert.FileExists(t, filepath.Join(dir, "rock_mask.png"))

	require.NoError(t, s.catalog.refresh())
	for _, l := range s.catalog.list() {
		assert.Equal(t, "rock.png", l.Name, "saved outputs are not offered for editing")
	}
}

func TestCatalogDecodesFolderImageOnce(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rock.png"), sourcePNG(t, 10, 10), 0o644))
	s := newTestServer(t, func(c *config.Config) { c.ImageDir = dir })
	require.NoError(t, s.catalog.refresh())

	const n = 8
	var wg sync.WaitGroup
	items := make([]*item, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			items[i], errs[i] = s.catalog.get("rock.png")
		}()
	}
	wg.Wait()

	for i := range n {
		require.NoError(t, errs[i])
		require.NotNil(t, items[i].src)
		assert.Same(t, items[0].src, items[i].src)
		assert.Same(t, items[0].buf, items[i].buf)
	}
}

func TestSaveUploadNeedsOutputDir(t *testing.T) {
	s := newTestServer(t, nil)
	upload(t, s, map[string][]byte{"rock.png": sourcePNG(t, 10, 10)})
	require.Equal(t, http.StatusOK, postJSON(t, s, "/api/render", rectRequest(1)).Code)

	rec := postJSON(t, s, "/api/save", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	out := t.TempDir()
	s.cfg.OutputDir = out
	rec = postJSON(t, s, "/api/save", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.FileExists(t, filepath.Join(out, "rock_modified.png"))
}

func TestLiveRender(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Live.MaxFPS = 0 })
	upload(t, s, map[string][]byte{"rock.png": sourcePNG(t, 10, 10)})

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	require.NoError(t, conn.WriteJSON(rectRequest(1)))
	typ, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, typ)
	assert.Equal(t, flat, color.NRGBAModel.Convert(decodePNG(t, msg).At(5, 5)))

	require.NoError(t, conn.WriteJSON(rectRequest(2)))
	typ, msg, err = conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, typ)
	assert.Contains(t, string(msg), "intensity")
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s := newTestServer(t, nil)
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, l) }()

	require.Eventually(t, func() bool {
		res, err := http.Get("http://" + l.Addr().String() + "/api/config")
		if err != nil {
			return false
		}
		res.Body.Close()
		return res.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
}

func TestWatchFolderPicksUpNewImages(t *testing.T) {
	dir := t.TempDir()
	s := newTestServer(t, func(c *config.Config) { c.ImageDir = dir })
	stop, err := s.watchFolder()
	require.NoError(t, err)
	defer stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.png"), sourcePNG(t, 4, 4), 0o644))
	require.Eventually(t, func() bool {
		for _, l := range s.catalog.list() {
			if l.Name == "new.png" {
				return true
			}
		}
		return false
	}, 5*time.Second, 50*time.Millisecond)
}
