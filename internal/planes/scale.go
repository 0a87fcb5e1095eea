package planes

import (
	"image"

	"golang.org/x/image/draw"
)

// Fit downscales src so that neither side exceeds maxDim pixels, keeping
// the aspect ratio. Images already inside the bound are returned as-is;
// maxDim <= 0 disables scaling.
func Fit(src image.Image, maxDim int) image.Image {
	if maxDim <= 0 {
		return src
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return src
	}

	tw, th := maxDim, maxDim
	if w > h {
		th = h * maxDim / w
	} else {
		tw = w * maxDim / h
	}
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}

	// resize with higher quality filter
	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
