package svdimage

import "fmt"

type Option func(*Compressor) error

// WithMaxDimension downscales registered images so that neither side
// exceeds px, preserving aspect ratio. Smaller images are kept as is.
// Zero (the default) disables scaling.
func WithMaxDimension(px int) Option {
	return func(c *Compressor) error {
		if px < 0 {
			return fmt.Errorf("max dimension must not be negative: %d", px)
		}
		c.maxDim = px
		return nil
	}
}
