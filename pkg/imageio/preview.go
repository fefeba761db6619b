package imageio

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/transform"
)

// Fit scales img down, preserving aspect ratio, so it fits in maxW x maxH.
// Images that already fit are returned unchanged; it never scales up.
func Fit(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 || maxW <= 0 || maxH <= 0 || (w <= maxW && h <= maxH) {
		return img
	}
	scale := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	tw := max(1, int(math.Round(float64(w)*scale)))
	th := max(1, int(math.Round(float64(h)*scale)))
	return transform.Resize(img, tw, th, transform.Linear)
}
