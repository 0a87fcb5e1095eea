package planes

import (
	"image"
	"image/color"
	"math"
)

// Luminance weights, shared with the usual YUV conversion matrices.
const (
	lr = 0.299
	lg = 0.587
	lb = 0.114
)

// Planes holds an image as float64 channel planes with values in [0, 255].
// One plane for grayscale, three (R, G, B) for color. Row-major layout.
type Planes struct {
	Width, Height int
	Ch            [][]float64
}

// Gray reports whether the image carries a single luminance plane.
func (p Planes) Gray() bool { return len(p.Ch) == 1 }

// Area returns the pixel count of one plane.
func (p Planes) Area() int { return p.Width * p.Height }

// FromImage splits src into three R, G, B planes.
func FromImage(src image.Image) Planes {
	p := newPlanes(src, 3)
	idx := 0
	b := src.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r32, g32, b32, _ := src.At(x, y).RGBA()
			p.Ch[0][idx] = float64(r32 >> 8)
			p.Ch[1][idx] = float64(g32 >> 8)
			p.Ch[2][idx] = float64(b32 >> 8)
			idx++
		}
	}
	return p
}

// GrayFromImage collapses src into a single luminance plane.
func GrayFromImage(src image.Image) Planes {
	p := newPlanes(src, 1)
	idx := 0
	b := src.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r32, g32, b32, _ := src.At(x, y).RGBA()
			r := float64(r32 >> 8)
			g := float64(g32 >> 8)
			bl := float64(b32 >> 8)
			p.Ch[0][idx] = lr*r + lg*g + lb*bl
			idx++
		}
	}
	return p
}

// Empty allocates zeroed planes with the same shape and channel count as p.
func (p Planes) Empty() Planes {
	out := Planes{Width: p.Width, Height: p.Height, Ch: make([][]float64, len(p.Ch))}
	for i := range out.Ch {
		out.Ch[i] = make([]float64, p.Area())
	}
	return out
}

// ToImage builds an 8-bit image, clamping every value into [0, 255].
// Single-plane input yields *image.Gray, three planes yield *image.RGBA.
func (p Planes) ToImage() image.Image {
	rect := image.Rect(0, 0, p.Width, p.Height)
	if p.Gray() {
		dst := image.NewGray(rect)
		for i, v := range p.Ch[0] {
			dst.Pix[i] = clamp8(v)
		}
		return dst
	}
	dst := image.NewRGBA(rect)
	idx := 0
	for y := range p.Height {
		for x := range p.Width {
			dst.SetRGBA(x, y, color.RGBA{
				R: clamp8(p.Ch[0][idx]),
				G: clamp8(p.Ch[1][idx]),
				B: clamp8(p.Ch[2][idx]),
				A: 0xff,
			})
			idx++
		}
	}
	return dst
}

// RescaleJoint min-max normalizes all planes together, using the global
// minimum and maximum across every channel, and maps the result onto
// [0, 255] in place. A constant image maps to all zeros.
func RescaleJoint(ch [][]float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, plane := range ch {
		for _, v := range plane {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	span := hi - lo
	if span == 0 {
		for _, plane := range ch {
			for i := range plane {
				plane[i] = 0
			}
		}
		return
	}
	for _, plane := range ch {
		for i := range plane {
			plane[i] = (plane[i] - lo) / span * 255
		}
	}
}

// PSNR returns the peak signal-to-noise ratio between two equally shaped
// plane sets, in decibels against a 255 peak. Identical inputs return +Inf.
func PSNR(a, b Planes) float64 {
	var sq float64
	var n int
	for c := range a.Ch {
		for i := range a.Ch[c] {
			d := a.Ch[c][i] - b.Ch[c][i]
			sq += d * d
			n++
		}
	}
	if n == 0 || sq == 0 {
		return math.Inf(1)
	}
	mse := sq / float64(n)
	return 20*math.Log10(255) - 10*math.Log10(mse)
}

func newPlanes(src image.Image, channels int) Planes {
	b := src.Bounds()
	p := Planes{Width: b.Dx(), Height: b.Dy(), Ch: make([][]float64, channels)}
	for i := range p.Ch {
		p.Ch[i] = make([]float64, p.Area())
	}
	return p
}

func clamp8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
