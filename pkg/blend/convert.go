package blend

import (
	"image"
	"image/color"
)

// FromImage converts a decoded image into a float buffer laid out in order.
// Alpha is dropped; the bounds origin is moved to (0,0).
func FromImage(src image.Image, order ChannelOrder) *Image {
	b := src.Bounds()
	out := NewImage(b.Dx(), b.Dy())
	nrgba, fast := src.(*image.NRGBA)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var c color.NRGBA
			if fast {
				o := nrgba.PixOffset(x, y)
				c = color.NRGBA{nrgba.Pix[o], nrgba.Pix[o+1], nrgba.Pix[o+2], nrgba.Pix[o+3]}
			} else {
				c = color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			}
			px := Color{R: float64(c.R), G: float64(c.G), B: float64(c.B)}.Channels(order)
			out.Pix[i+0] = px[0]
			out.Pix[i+1] = px[1]
			out.Pix[i+2] = px[2]
			i += 3
		}
	}
	return out
}

// ToNRGBA clamps img to [0,255], truncates, and lays it out as opaque RGB for
// display or encoding.
func (img *Image) ToNRGBA(order ChannelOrder) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	ri, bi := 0, 2
	if order == BGR {
		ri, bi = 2, 0
	}
	for p := 0; p < img.Width*img.Height; p++ {
		s := p * 3
		d := p * 4
		out.Pix[d+0] = clampToByte(img.Pix[s+ri])
		out.Pix[d+1] = clampToByte(img.Pix[s+1])
		out.Pix[d+2] = clampToByte(img.Pix[s+bi])
		out.Pix[d+3] = 0xff
	}
	return out
}

// MaskFromAlpha builds a mask from the alpha (coverage) channel of a drawn layer.
func MaskFromAlpha(src image.Image) *Mask {
	b := src.Bounds()
	out := NewMask(b.Dx(), b.Dy())
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			_, _, _, a := src.At(x, y).RGBA()
			out.Pix[i] = float64(a >> 8)
			i++
		}
	}
	return out
}

// MaskFromGray builds a mask from the luminance of a mask image, such as a
// previously saved _mask.png.
func MaskFromGray(src image.Image) *Mask {
	b := src.Bounds()
	out := NewMask(b.Dx(), b.Dy())
	gray, fast := src.(*image.Gray)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if fast {
				out.Pix[i] = float64(gray.GrayAt(x, y).Y)
			} else {
				out.Pix[i] = float64(color.GrayModel.Convert(src.At(x, y)).(color.Gray).Y)
			}
			i++
		}
	}
	return out
}

// ToGray encodes the mask as an 8-bit grayscale image.
func (m *Mask) ToGray() *image.Gray {
	out := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.Pix {
		out.Pix[i] = clampToByte(v)
	}
	return out
}
