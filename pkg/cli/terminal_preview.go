package cli

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"os/exec"
	"strings"

	"github.com/Fepozopo/nmedit/pkg/imageio"
)

// Terminal preview for the blend result.
//
// Backends, in detection order:
//   - iTerm2-style OSC 1337 inline images (iTerm2, WezTerm, Warp, VSCode, ...)
//   - the kitty graphics protocol (kitty, ghostty, Konsole)
//   - chafa on PATH, for any other terminal
//
// PREVIEW_BACKEND=inline|kitty|chafa forces a backend; PREVIEW_DEBUG=1 traces
// the choice on stderr.

func debugf(format string, args ...any) {
	if v := os.Getenv("PREVIEW_DEBUG"); v == "1" || v == "true" {
		fmt.Fprintf(os.Stderr, "nmedit-preview: "+format+"\n", args...)
	}
}

func isKitty() bool {
	if os.Getenv("KITTY_WINDOW_ID") != "" || os.Getenv("KONSOLE_VERSION") != "" {
		return true
	}
	term := strings.ToLower(os.Getenv("TERM"))
	return strings.Contains(term, "kitty") || strings.Contains(term, "ghostty")
}

func isInlineImageCapable() bool {
	switch os.Getenv("TERM_PROGRAM") {
	case "iTerm.app", "WezTerm", "Warp", "Hyper", "vscode", "VSCode", "Tabby", "Bobcat":
		return true
	}
	if os.Getenv("ITERM_SESSION_ID") != "" {
		return true
	}
	term := strings.ToLower(os.Getenv("TERM"))
	return strings.Contains(term, "wezterm") || strings.Contains(term, "warp") || strings.Contains(term, "tabby")
}

func hasChafa() bool {
	if os.Getenv("NO_CHAFA") == "1" {
		return false
	}
	_, err := exec.LookPath("chafa")
	return err == nil
}

// PreviewSupported reports whether some preview backend is likely to work.
func PreviewSupported() bool {
	ok := isInlineImageCapable() || isKitty() || hasChafa()
	debugf("PreviewSupported -> %v", ok)
	return ok
}

// PreviewSize is the placement of a preview in character cells and pixels.
type PreviewSize struct {
	Cols, Rows              int
	PixelWidth, PixelHeight int
}

const (
	cellW   = 8
	cellH   = 16
	maxCols = 80
	maxRows = 40
)

// computePreviewSize fits w x h pixels into at most maxCols x maxRows cells,
// keeping the aspect ratio and never scaling up.
func computePreviewSize(w, h int) PreviewSize {
	scale := math.Min(1, math.Min(float64(maxCols*cellW)/float64(w), float64(maxRows*cellH)/float64(h)))
	cols := min(maxCols, max(6, int(math.Round(float64(w)*scale/cellW))))
	rows := min(maxRows, max(3, int(math.Round(float64(h)*scale/cellH))))
	return PreviewSize{Cols: cols, Rows: rows, PixelWidth: cols * cellW, PixelHeight: rows * cellH}
}

// PreviewImage draws img on the terminal behind w. Large images are scaled
// down before encoding so the escape sequences stay small.
func PreviewImage(w io.Writer, img image.Image) error {
	if img == nil {
		return fmt.Errorf("nil image")
	}
	b := img.Bounds()
	if b.Empty() {
		return fmt.Errorf("empty image")
	}
	size := computePreviewSize(b.Dx(), b.Dy())
	blob, err := imageio.PNGBytes(imageio.Fit(img, size.PixelWidth, size.PixelHeight))
	if err != nil {
		return err
	}

	backends := map[string]func(io.Writer, []byte, PreviewSize) error{
		"inline": sendInlineImage,
		"kitty":  sendKittyImage,
		"chafa":  sendChafaImage,
	}
	if v := strings.ToLower(os.Getenv("PREVIEW_BACKEND")); v != "" {
		if send, ok := backends[v]; ok {
			debugf("PREVIEW_BACKEND override: %s", v)
			if err := send(w, blob, size); err == nil {
				return nil
			} else {
				debugf("override %s failed: %v", v, err)
			}
		} else {
			debugf("unknown PREVIEW_BACKEND value: %s", v)
		}
	}

	var order []string
	if isInlineImageCapable() {
		order = append(order, "inline")
	}
	if isKitty() {
		order = append(order, "kitty")
	}
	if hasChafa() {
		order = append(order, "chafa")
	}
	var last error
	for _, name := range order {
		debugf("attempting %s", name)
		if last = backends[name](w, blob, size); last == nil {
			return nil
		}
		debugf("%s failed: %v", name, last)
	}
	if last != nil {
		return fmt.Errorf("preview failed: %w", last)
	}
	return fmt.Errorf("no preview protocol matched")
}

// postImageNewlines is how many lines to advance after an image so the
// prompt lands under it.
func postImageNewlines(rows int) int {
	switch {
	case rows <= 2:
		return 1
	case rows <= 6:
		return 2
	case rows <= 20:
		return 3
	default:
		return 4
	}
}

// sendKittyImage transmits PNG bytes with the kitty graphics protocol in
// base64 chunks of at most 4096 bytes. The first chunk carries the placement.
func sendKittyImage(w io.Writer, data []byte, size PreviewSize) error {
	enc := base64.StdEncoding.EncodeToString(data)
	const chunkSize = 4096
	for pos := 0; pos < len(enc); pos += chunkSize {
		end := min(pos+chunkSize, len(enc))
		more := "0"
		if end < len(enc) {
			more = "1"
		}
		var seq string
		if pos == 0 {
			// a=T transmit and display, f=100 PNG, q=2 no replies.
			seq = fmt.Sprintf("\x1b_Ga=T,f=100,t=d,q=2,c=%d,r=%d,m=%s;%s\x1b\\", size.Cols, size.Rows, more, enc[pos:end])
		} else {
			seq = "\x1b_Gm=" + more + ";" + enc[pos:end] + "\x1b\\"
		}
		if _, err := io.WriteString(w, seq); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, strings.Repeat("\n", postImageNewlines(size.Rows)))
	return err
}

// sendInlineImage emits the iTerm2 OSC 1337 inline file sequence.
func sendInlineImage(w io.Writer, data []byte, size PreviewSize) error {
	enc := base64.StdEncoding.EncodeToString(data)
	seq := fmt.Sprintf("\x1b]1337;File=name=%s;inline=1;size=%d;width=%dpx;height=%dpx:%s\a",
		base64.StdEncoding.EncodeToString([]byte("preview.png")), len(data), size.PixelWidth, size.PixelHeight, enc)
	if _, err := io.WriteString(w, seq); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// sendChafaImage pipes the PNG through chafa. CHAFA_FILL and CHAFA_SYMBOLS
// override the block rendering defaults.
func sendChafaImage(w io.Writer, data []byte, size PreviewSize) error {
	if !hasChafa() {
		return fmt.Errorf("chafa not available")
	}
	fill, symbols := "block", "block"
	if v := os.Getenv("CHAFA_FILL"); v != "" {
		fill = v
	}
	if v := os.Getenv("CHAFA_SYMBOLS"); v != "" {
		symbols = v
	}
	cmd := exec.Command("chafa", "--fill="+fill, "--symbols="+symbols, "-s", fmt.Sprintf("%dx%d", size.Cols, size.Rows), "-")
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stdout = w
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("chafa failed: %w", err)
	}
	_, err := io.WriteString(w, strings.Repeat("\n", postImageNewlines(size.Rows)))
	return err
}
