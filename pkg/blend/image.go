package blend

// Image is a width x height grid of 3-channel float pixels, row-major.
// Pixel (x, y) channel c lives at Pix[(y*Width+x)*3+c]. The meaning of the
// three channels (RGB or BGR) is carried by the Engine, not by the buffer.
type Image struct {
	Width  int
	Height int
	Pix    []float64
}

// Mask is a width x height single-channel coverage grid with values in [0,255].
// Any value greater than zero marks the pixel as selected.
type Mask struct {
	Width  int
	Height int
	Pix    []float64
}

// NewImage allocates a zeroed image buffer.
func NewImage(w, h int) *Image {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return &Image{Width: w, Height: h, Pix: make([]float64, w*h*3)}
}

// NewMask allocates an empty (fully unselected) mask.
func NewMask(w, h int) *Mask {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return &Mask{Width: w, Height: h, Pix: make([]float64, w*h)}
}

// PixOffset returns the index of the first channel of pixel (x, y) in Pix.
func (img *Image) PixOffset(x, y int) int {
	return (y*img.Width + x) * 3
}

// At returns the three channel values of pixel (x, y) in buffer order.
func (img *Image) At(x, y int) [3]float64 {
	i := img.PixOffset(x, y)
	return [3]float64{img.Pix[i], img.Pix[i+1], img.Pix[i+2]}
}

// Set stores the three channel values of pixel (x, y) in buffer order.
func (img *Image) Set(x, y int, px [3]float64) {
	i := img.PixOffset(x, y)
	img.Pix[i+0] = px[0]
	img.Pix[i+1] = px[1]
	img.Pix[i+2] = px[2]
}

// Fill sets every pixel to px.
func (img *Image) Fill(px [3]float64) {
	for i := 0; i+2 < len(img.Pix); i += 3 {
		img.Pix[i+0] = px[0]
		img.Pix[i+1] = px[1]
		img.Pix[i+2] = px[2]
	}
}

// Clone returns a deep copy of img.
func (img *Image) Clone() *Image {
	if img == nil {
		return nil
	}
	out := &Image{Width: img.Width, Height: img.Height, Pix: make([]float64, len(img.Pix))}
	copy(out.Pix, img.Pix)
	return out
}

func (m *Mask) At(x, y int) float64 {
	return m.Pix[y*m.Width+x]
}

func (m *Mask) Set(x, y int, v float64) {
	m.Pix[y*m.Width+x] = v
}

// Fill sets every mask value to v.
func (m *Mask) Fill(v float64) {
	for i := range m.Pix {
		m.Pix[i] = v
	}
}

// Clone returns a deep copy of m.
func (m *Mask) Clone() *Mask {
	if m == nil {
		return nil
	}
	out := &Mask{Width: m.Width, Height: m.Height, Pix: make([]float64, len(m.Pix))}
	copy(out.Pix, m.Pix)
	return out
}

// Empty reports whether no pixel is selected.
func (m *Mask) Empty() bool {
	for _, v := range m.Pix {
		if v > 0 {
			return false
		}
	}
	return true
}

// Threshold returns a binary copy of m: selected pixels become 255, others 0.
func (m *Mask) Threshold() *Mask {
	out := NewMask(m.Width, m.Height)
	for i, v := range m.Pix {
		if v > 0 {
			out.Pix[i] = 255
		}
	}
	return out
}

// Coverage returns the number of selected pixels.
func (m *Mask) Coverage() int {
	n := 0
	for _, v := range m.Pix {
		if v > 0 {
			n++
		}
	}
	return n
}
