// Package imageio loads source images, encodes results and masks as PNG, and
// names and lists the files the editor reads and writes.
package imageio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/h2non/filetype"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
)

// ErrUnsupportedFormat is returned for files that are not png, jpeg or bmp.
var ErrUnsupportedFormat = errors.New("imageio: unsupported image format")

// Formats maps sniffed file extensions to the format names reported in Source.
var Formats = map[string]string{
	"png": "png",
	"jpg": "jpeg",
	"bmp": "bmp",
}

// Source is a decoded image plus where it came from.
type Source struct {
	Name   string // base file name, e.g. "rock_normal.png"
	Format string // "png", "jpeg" or "bmp"
	Size   int64  // encoded size in bytes
	Image  image.Image
	// Oriented is set when an EXIF orientation was applied on load.
	Oriented bool
}

// Load reads and decodes the image at path.
func Load(path string) (*Source, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("imageio: read %s: %w", path, err)
	}
	return Decode(filepath.Base(path), b)
}

// ReadFrom decodes an image read from r, at most limit bytes (limit <= 0: no limit).
func ReadFrom(name string, r io.Reader, limit int64) (*Source, error) {
	if limit > 0 {
		r = io.LimitReader(r, limit+1)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("imageio: read %s: %w", name, err)
	}
	if limit > 0 && int64(len(b)) > limit {
		return nil, fmt.Errorf("imageio: %s exceeds %d bytes", name, limit)
	}
	return Decode(name, b)
}

// Decode sniffs the content of b, decodes it and applies JPEG EXIF orientation.
func Decode(name string, b []byte) (*Source, error) {
	format, err := Sniff(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, name)
	}
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("imageio: decode %s: %w", name, err)
	}
	src := &Source{Name: name, Format: format, Size: int64(len(b)), Image: img}
	if format == "jpeg" {
		if o, err := jpegOrientation(b); err == nil && o > 1 && o <= 8 {
			src.Image = AutoOrient(img, o)
			src.Oriented = true
		}
	}
	return src, nil
}

// Sniff identifies the format of an encoded image by its magic bytes.
func Sniff(b []byte) (string, error) {
	kind, err := filetype.Match(b)
	if err != nil || kind == filetype.Unknown {
		return "", ErrUnsupportedFormat
	}
	format, ok := Formats[kind.Extension]
	if !ok {
		return "", fmt.Errorf("%w (%s)", ErrUnsupportedFormat, kind.MIME.Value)
	}
	return format, nil
}
