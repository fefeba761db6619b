package canvas

import (
	"image"
	"math"

	"golang.org/x/image/vector"

	"github.com/Fepozopo/nmedit/pkg/blend"
)

// circleSegments is the polygon resolution used for round caps and circles.
const circleSegments = 32

// Rasterize paints the strokes of d, in order, into a w x h coverage mask
// with values in [0,255]. Painting strokes accumulate coverage; erase
// strokes remove it. Shapes are antialiased.
func Rasterize(d Drawing, w, h int) (*blend.Mask, error) {
	if w <= 0 || h <= 0 {
		return nil, &blend.InvalidParameterError{Name: "canvas size", Value: image.Pt(w, h), Reason: "must be positive"}
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	acc := make([]float64, w*h) // coverage in [0,1]
	z := vector.NewRasterizer(w, h)
	layer := image.NewAlpha(image.Rect(0, 0, w, h))
	for _, s := range d.Strokes {
		if s.Mode == ModeTransform {
			continue
		}
		z.Reset(w, h)
		addStroke(z, s, float64(w), float64(h))
		clear(layer.Pix)
		z.Draw(layer, layer.Bounds(), image.Opaque, image.Point{})
		for i, a := range layer.Pix {
			if a == 0 {
				continue
			}
			c := float64(a) / 255.0
			if s.Mode == ModeErase {
				acc[i] *= 1 - c
			} else {
				acc[i] += c * (1 - acc[i])
			}
		}
	}
	mask := blend.NewMask(w, h)
	for i, c := range acc {
		mask.Pix[i] = math.Round(c * 255)
	}
	return mask, nil
}

func addStroke(z *vector.Rasterizer, s Stroke, w, h float64) {
	add := func(pts []Point) { addPolygon(z, clipPolygon(pts, w, h)) }
	r := s.Width / 2
	switch s.Mode {
	case ModeRect:
		a, b := s.Points[0], s.Points[len(s.Points)-1]
		x0, x1 := math.Min(a.X, b.X)-r, math.Max(a.X, b.X)+r
		y0, y1 := math.Min(a.Y, b.Y)-r, math.Max(a.Y, b.Y)+r
		add([]Point{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}})
	case ModeCircle:
		c, rim := s.Points[0], s.Points[len(s.Points)-1]
		radius := math.Hypot(rim.X-c.X, rim.Y-c.Y) + r
		add(circle(c, radius))
	case ModeLine:
		addPolyline(add, []Point{s.Points[0], s.Points[len(s.Points)-1]}, r)
	default:
		addPolyline(add, s.Points, r)
	}
}

// addPolyline strokes pts with round joins and caps: one quad per segment
// plus a disc at every vertex.
func addPolyline(add func([]Point), pts []Point, r float64) {
	for i, p := range pts {
		add(circle(p, r))
		if i == 0 {
			continue
		}
		q := pts[i-1]
		dx, dy := p.X-q.X, p.Y-q.Y
		l := math.Hypot(dx, dy)
		if l == 0 {
			continue
		}
		nx, ny := -dy/l*r, dx/l*r
		add([]Point{
			{q.X + nx, q.Y + ny},
			{p.X + nx, p.Y + ny},
			{p.X - nx, p.Y - ny},
			{q.X - nx, q.Y - ny},
		})
	}
}

func circle(c Point, r float64) []Point {
	pts := make([]Point, circleSegments)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / circleSegments
		pts[i] = Point{c.X + r*math.Cos(a), c.Y + r*math.Sin(a)}
	}
	return pts
}

// addPolygon adds a closed path. The rasterizer sums signed areas, so every
// polygon is emitted with the same winding to keep overlaps from cancelling.
func addPolygon(z *vector.Rasterizer, pts []Point) {
	if len(pts) < 3 {
		return
	}
	if signedArea(pts) < 0 {
		for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
			pts[i], pts[j] = pts[j], pts[i]
		}
	}
	z.MoveTo(float32(pts[0].X), float32(pts[0].Y))
	for _, p := range pts[1:] {
		z.LineTo(float32(p.X), float32(p.Y))
	}
	z.ClosePath()
}

func signedArea(pts []Point) float64 {
	var a float64
	for i, p := range pts {
		q := pts[(i+1)%len(pts)]
		a += p.X*q.Y - q.X*p.Y
	}
	return a / 2
}

// clipPolygon clips pts to the rectangle [0,w]x[0,h] (Sutherland-Hodgman).
// Clipping keeps the winding of the input.
func clipPolygon(pts []Point, w, h float64) []Point {
	edges := []struct {
		inside func(Point) bool
		cross  func(a, b Point) Point
	}{
		{func(p Point) bool { return p.X >= 0 }, func(a, b Point) Point { return lerpAtX(a, b, 0) }},
		{func(p Point) bool { return p.X <= w }, func(a, b Point) Point { return lerpAtX(a, b, w) }},
		{func(p Point) bool { return p.Y >= 0 }, func(a, b Point) Point { return lerpAtY(a, b, 0) }},
		{func(p Point) bool { return p.Y <= h }, func(a, b Point) Point { return lerpAtY(a, b, h) }},
	}
	out := pts
	for _, e := range edges {
		if len(out) == 0 {
			break
		}
		in := out
		out = make([]Point, 0, len(in)+4)
		prev := in[len(in)-1]
		for _, cur := range in {
			switch {
			case e.inside(cur) && e.inside(prev):
				out = append(out, cur)
			case e.inside(cur):
				out = append(out, e.cross(prev, cur), cur)
			case e.inside(prev):
				out = append(out, e.cross(prev, cur))
			}
			prev = cur
		}
	}
	return out
}

func lerpAtX(a, b Point, x float64) Point {
	t := (x - a.X) / (b.X - a.X)
	return Point{x, a.Y + t*(b.Y-a.Y)}
}

func lerpAtY(a, b Point, y float64) Point {
	t := (y - a.Y) / (b.Y - a.Y)
	return Point{a.X + t*(b.X-a.X), y}
}
