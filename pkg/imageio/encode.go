package imageio

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	ResultSuffix = "_modified"
	MaskSuffix   = "_mask"
)

// OutputNames derives the result and mask file names from a source name:
// "rock.jpg" -> "rock_modified.png", "rock_mask.png".
func OutputNames(name string) (result, mask string) {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "image"
	}
	return base + ResultSuffix + ".png", base + MaskSuffix + ".png"
}

// EncodePNG writes img to w as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	if img == nil {
		return fmt.Errorf("imageio: encode: nil image")
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("imageio: encode png: %w", err)
	}
	return nil
}

// PNGBytes encodes img as PNG in memory.
func PNGBytes(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodePNG(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WritePNG encodes img to path, replacing any existing file.
func WritePNG(path string, img image.Image) error {
	b, err := PNGBytes(img)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("imageio: write %s: %w", path, err)
	}
	return nil
}

// SaveOutputs writes result and mask next to each other in dir, named after
// the source image, and returns the two paths.
func SaveOutputs(dir, sourceName string, result, mask image.Image) (resultPath, maskPath string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("imageio: create %s: %w", dir, err)
	}
	rn, mn := OutputNames(sourceName)
	resultPath = filepath.Join(dir, rn)
	maskPath = filepath.Join(dir, mn)
	if err := WritePNG(resultPath, result); err != nil {
		return "", "", err
	}
	if err := WritePNG(maskPath, mask); err != nil {
		return "", "", err
	}
	return resultPath, maskPath, nil
}
