package imageio

import (
	"encoding/binary"
	"errors"
	"image"
	"image/draw"

	"github.com/anthonynsimon/bild/transform"
)

var errNoOrientation = errors.New("imageio: no exif orientation")

// AutoOrient applies an EXIF orientation (1..8) so the image displays upright.
func AutoOrient(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return transform.FlipH(img)
	case 3:
		return transform.FlipV(transform.FlipH(img))
	case 4:
		return transform.FlipV(img)
	case 5:
		return transpose(img)
	case 6:
		return transform.FlipH(transpose(img))
	case 7:
		return transform.FlipV(transform.FlipH(transpose(img)))
	case 8:
		return transform.FlipV(transpose(img))
	default:
		return img
	}
}

// transpose mirrors img across its main diagonal.
func transpose(img image.Image) *image.NRGBA {
	b := img.Bounds()
	src := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(src, src.Bounds(), img, b.Min, draw.Src)
	out := image.NewNRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			si := src.PixOffset(x, y)
			di := out.PixOffset(y, x)
			copy(out.Pix[di:di+4], src.Pix[si:si+4])
		}
	}
	return out
}

// jpegOrientation returns the orientation tag (0x0112) of the first IFD in
// the APP1 Exif segment of a JPEG stream.
func jpegOrientation(data []byte) (int, error) {
	tiff, err := exifTIFF(data)
	if err != nil {
		return 0, err
	}
	if len(tiff) < 8 {
		return 0, errNoOrientation
	}
	var order binary.ByteOrder
	switch string(tiff[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return 0, errNoOrientation
	}
	if order.Uint16(tiff[2:4]) != 0x002A {
		return 0, errNoOrientation
	}
	ifd := int(order.Uint32(tiff[4:8]))
	if ifd < 8 || ifd+2 > len(tiff) {
		return 0, errNoOrientation
	}
	n := int(order.Uint16(tiff[ifd : ifd+2]))
	for e := 0; e < n; e++ {
		ent := ifd + 2 + e*12
		if ent+12 > len(tiff) {
			break
		}
		tag := order.Uint16(tiff[ent : ent+2])
		typ := order.Uint16(tiff[ent+2 : ent+4])
		if tag == 0x0112 && typ == 3 {
			return int(order.Uint16(tiff[ent+8 : ent+10])), nil
		}
	}
	return 0, errNoOrientation
}

// exifTIFF returns the TIFF payload of the APP1 Exif segment.
func exifTIFF(data []byte) ([]byte, error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return nil, errNoOrientation
	}
	i := 2
	for i+4 <= len(data) {
		if data[i] != 0xFF {
			return nil, errNoOrientation
		}
		marker := data[i+1]
		if marker == 0xDA || marker == 0xD9 {
			break
		}
		segLen := int(data[i+2])<<8 | int(data[i+3])
		if segLen < 2 || i+2+segLen > len(data) {
			break
		}
		seg := data[i+4 : i+2+segLen]
		if marker == 0xE1 && len(seg) >= 6 && string(seg[:6]) == "Exif\x00\x00" {
			return seg[6:], nil
		}
		i += 2 + segLen
	}
	return nil, errNoOrientation
}
