package svdimage

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sort"
	"sync"

	"github.com/yyyoichi/mllab/internal/lowrank"
	"github.com/yyyoichi/mllab/internal/planes"
)

var (
	ErrUnknownImage   = errors.New("image is not registered")
	ErrRankOutOfRange = errors.New("rank is out of range for image")
)

// Compress is a convenience function that registers img in a throwaway
// Compressor and reconstructs it from its top-k singular triplets.
func Compress(ctx context.Context, img image.Image, k int, opts ...Option) (*Result, error) {
	c, err := New(opts...)
	if err != nil {
		return nil, err
	}
	c.Add("image", img)
	return c.Compress(ctx, "image", k)
}

// CompressGray behaves like Compress but collapses img to a single
// luminance plane first.
func CompressGray(ctx context.Context, img image.Image, k int, opts ...Option) (*Result, error) {
	c, err := New(opts...)
	if err != nil {
		return nil, err
	}
	c.AddGray("image", img)
	return c.Compress(ctx, "image", k)
}

// PSNR measures how closely recon reproduces orig, as a peak
// signal-to-noise ratio in decibels against a 255 peak. The images must
// share dimensions. Identical pixels yield +Inf.
func PSNR(orig, recon image.Image) (float64, error) {
	a := planes.FromImage(orig)
	b := planes.FromImage(recon)
	if a.Width != b.Width || a.Height != b.Height {
		return 0, fmt.Errorf("size mismatch: %dx%d vs %dx%d", a.Width, a.Height, b.Width, b.Height)
	}
	return planes.PSNR(a, b), nil
}

// Compressor keeps a registry of named images together with their
// singular value decompositions. A decomposition is computed once, on
// the first operation that needs it, and kept for the lifetime of the
// Compressor; truncations are sliced fresh on every call.
// A Compressor is safe for concurrent use.
type Compressor struct {
	mu      sync.Mutex
	maxDim  int
	qbits   int
	images  map[string]planes.Planes
	factors map[string][]*lowrank.Factors
}

// New initializes an empty Compressor with the given options.
func New(opts ...Option) (*Compressor, error) {
	c := &Compressor{
		images:  make(map[string]planes.Planes),
		factors: make(map[string][]*lowrank.Factors),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add registers img under name as a three-channel color image.
// Re-registering a name replaces the image and discards its cached
// decomposition.
func (c *Compressor) Add(name string, img image.Image) {
	c.put(name, planes.FromImage(planes.Fit(img, c.maxDim)))
}

// AddGray registers img under name as a single luminance plane.
func (c *Compressor) AddGray(name string, img image.Image) {
	c.put(name, planes.GrayFromImage(planes.Fit(img, c.maxDim)))
}

// Result is a single rank-k reconstruction.
type Result struct {
	// Image is the reconstructed picture, 8-bit gray or RGBA.
	Image image.Image
	Name  string
	Rank  int
	Width, Height int
	// Ratio is the storage advantage of keeping k triplets instead of
	// the full pixel grid.
	Ratio float64
	// PSNR measures reconstruction quality against the registered
	// original, in dB. +Inf for an exact reproduction.
	PSNR float64
	// Energy is the fraction of singular value mass retained at rank k,
	// averaged over channels.
	Energy float64
}

// Compress reconstructs the named image from its top-k singular
// triplets.
//
// Process:
//  1. Looks up the cached decomposition, factorizing on first use.
//  2. Slices the leading k triplets of every channel and multiplies
//     them back into dense planes, one goroutine per channel.
//  3. Grayscale output is clamped into [0, 255]; color output is
//     jointly min-max rescaled by the global extrema across all three
//     channels before the 8-bit cast.
//
// k must satisfy 1 <= k <= min(width, height), otherwise
// ErrRankOutOfRange is returned.
func (c *Compressor) Compress(ctx context.Context, name string, k int) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, fs, err := c.lookup(name)
	if err != nil {
		return nil, err
	}
	maxRank := fs[0].Rank()
	if k < 1 || k > maxRank {
		return nil, fmt.Errorf("%w: k=%d not in [1, %d] for %q", ErrRankOutOfRange, k, maxRank, name)
	}

	out := src.Empty()
	errs := make([]error, len(fs))
	var wg sync.WaitGroup
	wg.Add(len(fs))
	for ch := range fs {
		go func(ch int) {
			defer wg.Done()
			tr, err := fs[ch].Truncate(k)
			if err != nil {
				errs[ch] = err
				return
			}
			rec := tr.Reconstruct()
			copy(out.Ch[ch], rec.RawMatrix().Data)
		}(ch)
	}
	wg.Wait()
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if !out.Gray() {
		planes.RescaleJoint(out.Ch)
	}

	var energy float64
	for _, f := range fs {
		energy += f.Energy()[k-1]
	}
	energy /= float64(len(fs))

	return &Result{
		Image:  out.ToImage(),
		Name:   name,
		Rank:   k,
		Width:  src.Width,
		Height: src.Height,
		Ratio:  lowrank.Ratio(src.Height, src.Width, k),
		PSNR:   planes.PSNR(src, out),
		Energy: energy,
	}, nil
}

// Spectrum returns the singular values of every channel of the named
// image, largest first. One slice for grayscale, three for color.
func (c *Compressor) Spectrum(name string) ([][]float64, error) {
	_, fs, err := c.lookup(name)
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(fs))
	for i, f := range fs {
		out[i] = f.Values()
	}
	return out, nil
}

// Energy returns the cumulative retained-energy curve of every channel:
// curve[i] is the fraction of singular value mass kept at rank i+1.
// The curves are diagnostic; no rank is selected automatically.
func (c *Compressor) Energy(name string) ([][]float64, error) {
	_, fs, err := c.lookup(name)
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(fs))
	for i, f := range fs {
		out[i] = f.Energy()
	}
	return out, nil
}

// Ratio reports the compression ratio of the named image at rank k:
// the original pixel count over the count needed for k columns of U,
// k singular values and k rows of V^T.
func (c *Compressor) Ratio(name string, k int) (float64, error) {
	src, fs, err := c.lookup(name)
	if err != nil {
		return 0, err
	}
	if k < 1 || k > fs[0].Rank() {
		return 0, fmt.Errorf("%w: k=%d not in [1, %d] for %q", ErrRankOutOfRange, k, fs[0].Rank(), name)
	}
	return lowrank.Ratio(src.Height, src.Width, k), nil
}

// Info describes a registered image.
type Info struct {
	Name    string `json:"name"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	MaxRank int    `json:"maxRank"`
	Gray    bool   `json:"gray"`
}

// Info returns the dimensions and maximum usable rank of the named image.
func (c *Compressor) Info(name string) (Info, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.images[name]
	if !ok {
		return Info{}, fmt.Errorf("%w: %q", ErrUnknownImage, name)
	}
	return Info{
		Name:    name,
		Width:   p.Width,
		Height:  p.Height,
		MaxRank: min(p.Width, p.Height),
		Gray:    p.Gray(),
	}, nil
}

// Names lists the registered image names in sorted order.
func (c *Compressor) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.images))
	for name := range c.images {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Compressor) put(name string, p planes.Planes) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.images[name] = p
	delete(c.factors, name)
}

// lookup returns the planes and the per-channel decomposition of name,
// factorizing and caching the decomposition on first use.
func (c *Compressor) lookup(name string) (planes.Planes, []*lowrank.Factors, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.images[name]
	if !ok {
		return planes.Planes{}, nil, fmt.Errorf("%w: %q", ErrUnknownImage, name)
	}
	if fs, ok := c.factors[name]; ok {
		return p, fs, nil
	}

	fs := make([]*lowrank.Factors, len(p.Ch))
	errs := make([]error, len(p.Ch))
	var wg sync.WaitGroup
	wg.Add(len(p.Ch))
	for ch := range p.Ch {
		go func(ch int) {
			defer wg.Done()
			fs[ch], errs[ch] = lowrank.Decompose(p.Ch[ch], p.Width, p.Height)
		}(ch)
	}
	wg.Wait()
	if err := errors.Join(errs...); err != nil {
		return planes.Planes{}, nil, err
	}
	c.factors[name] = fs
	return p, fs, nil
}
