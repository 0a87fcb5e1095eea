package svdimage_test

import (
	"context"
	"image"
	"image/color"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yyyoichi/mllab/svdimage"
)

func grayNoise(w, h int, seed int64) *image.Gray {
	rd := rand.New(rand.NewSource(seed))
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(rd.Intn(256))
	}
	return img
}

func colorNoise(w, h int, seed int64) *image.RGBA {
	rd := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(rd.Intn(256)),
				G: uint8(rd.Intn(256)),
				B: uint8(rd.Intn(256)),
				A: 0xff,
			})
		}
	}
	return img
}

func TestCompressGray(t *testing.T) {
	t.Parallel()
	c, err := svdimage.New()
	require.NoError(t, err)
	c.AddGray("noise", grayNoise(100, 100, 1))

	res, err := c.Compress(context.Background(), "noise", 10)
	require.NoError(t, err)

	assert.Equal(t, "noise", res.Name)
	assert.Equal(t, 10, res.Rank)
	assert.Equal(t, 100, res.Width)
	assert.Equal(t, 100, res.Height)

	gray, ok := res.Image.(*image.Gray)
	require.True(t, ok, "grayscale input must reconstruct to *image.Gray")
	b := gray.Bounds()
	assert.Equal(t, 100, b.Dx())
	assert.Equal(t, 100, b.Dy())

	// (100*100) / (10*(100+100+1))
	assert.InDelta(t, 10000.0/2010.0, res.Ratio, 1e-12)
	assert.Greater(t, res.PSNR, 0.0)
	assert.Greater(t, res.Energy, 0.0)
	assert.LessOrEqual(t, res.Energy, 1.0+1e-9)
}

func TestCompressFullRankIsExact(t *testing.T) {
	t.Parallel()
	src := grayNoise(8, 8, 2)
	res, err := svdimage.CompressGray(context.Background(), src, 8)
	require.NoError(t, err)

	gray, ok := res.Image.(*image.Gray)
	require.True(t, ok)
	assert.Equal(t, src.Pix, gray.Pix, "full-rank reconstruction must reproduce every pixel")
	assert.Greater(t, res.PSNR, 100.0)
	assert.InDelta(t, 1.0, res.Energy, 1e-9)
}

func TestPSNR(t *testing.T) {
	t.Parallel()
	src := colorNoise(32, 24, 13)

	t.Run("identical images", func(t *testing.T) {
		v, err := svdimage.PSNR(src, src)
		require.NoError(t, err)
		assert.True(t, math.IsInf(v, 1))
	})
	t.Run("heavier damage scores lower", func(t *testing.T) {
		small := colorNoise(32, 24, 13)
		large := colorNoise(32, 24, 13)
		for i := 0; i < len(small.Pix); i += 4 {
			small.Pix[i] ^= 0x01
			large.Pix[i] ^= 0x80
		}
		ps, err := svdimage.PSNR(src, small)
		require.NoError(t, err)
		pl, err := svdimage.PSNR(src, large)
		require.NoError(t, err)
		assert.Greater(t, ps, pl)
		assert.Greater(t, pl, 0.0)
	})
	t.Run("size mismatch", func(t *testing.T) {
		_, err := svdimage.PSNR(src, colorNoise(16, 24, 13))
		assert.Error(t, err)
	})
}

func TestCompressColor(t *testing.T) {
	t.Parallel()
	res, err := svdimage.Compress(context.Background(), colorNoise(60, 40, 3), 5)
	require.NoError(t, err)

	rgba, ok := res.Image.(*image.RGBA)
	require.True(t, ok, "color input must reconstruct to *image.RGBA")
	b := rgba.Bounds()
	assert.Equal(t, 60, b.Dx())
	assert.Equal(t, 40, b.Dy())
	for i := 3; i < len(rgba.Pix); i += 4 {
		require.EqualValues(t, 0xff, rgba.Pix[i], "alpha must stay opaque")
	}
	// (40*60) / (5*(40+60+1))
	assert.InDelta(t, 2400.0/505.0, res.Ratio, 1e-12)
}

func TestCompressErrors(t *testing.T) {
	t.Parallel()
	c, err := svdimage.New()
	require.NoError(t, err)
	c.AddGray("noise", grayNoise(30, 20, 4))

	ctx := context.Background()
	t.Run("unknown image", func(t *testing.T) {
		_, err := c.Compress(ctx, "missing", 5)
		assert.ErrorIs(t, err, svdimage.ErrUnknownImage)
	})
	t.Run("rank too small", func(t *testing.T) {
		_, err := c.Compress(ctx, "noise", 0)
		assert.ErrorIs(t, err, svdimage.ErrRankOutOfRange)
	})
	t.Run("rank above min dimension", func(t *testing.T) {
		_, err := c.Compress(ctx, "noise", 21)
		assert.ErrorIs(t, err, svdimage.ErrRankOutOfRange)
	})
	t.Run("canceled context", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := c.Compress(canceled, "noise", 5)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRatio(t *testing.T) {
	t.Parallel()
	c, err := svdimage.New()
	require.NoError(t, err)
	c.AddGray("noise", grayNoise(640, 480, 5))

	prev, err := c.Ratio("noise", 1)
	require.NoError(t, err)
	for k := 2; k <= 480; k++ {
		r, err := c.Ratio("noise", k)
		require.NoError(t, err)
		require.LessOrEqual(t, r, prev, "ratio must not grow with k")
		if k < 240 {
			require.Greater(t, r, 1.0, "k=%d should still compress", k)
		}
		prev = r
	}

	_, err = c.Ratio("noise", 481)
	assert.ErrorIs(t, err, svdimage.ErrRankOutOfRange)
	_, err = c.Ratio("missing", 1)
	assert.ErrorIs(t, err, svdimage.ErrUnknownImage)
}

func TestSpectrumAndEnergy(t *testing.T) {
	t.Parallel()
	c, err := svdimage.New()
	require.NoError(t, err)
	c.AddGray("gray", grayNoise(50, 40, 6))
	c.Add("color", colorNoise(50, 40, 7))

	t.Run("grayscale has one channel", func(t *testing.T) {
		sv, err := c.Spectrum("gray")
		require.NoError(t, err)
		require.Len(t, sv, 1)
		require.Len(t, sv[0], 40)
		for i := 1; i < len(sv[0]); i++ {
			require.LessOrEqual(t, sv[0][i], sv[0][i-1], "singular values must descend")
			require.GreaterOrEqual(t, sv[0][i], 0.0)
		}
	})
	t.Run("color has three channels", func(t *testing.T) {
		sv, err := c.Spectrum("color")
		require.NoError(t, err)
		require.Len(t, sv, 3)
		for _, ch := range sv {
			require.Len(t, ch, 40)
		}
	})
	t.Run("energy climbs to one", func(t *testing.T) {
		curves, err := c.Energy("color")
		require.NoError(t, err)
		require.Len(t, curves, 3)
		for _, curve := range curves {
			prev := 0.0
			for _, e := range curve {
				require.GreaterOrEqual(t, e, prev)
				require.LessOrEqual(t, e, 1.0+1e-9)
				prev = e
			}
			require.InDelta(t, 1.0, curve[len(curve)-1], 1e-9)
		}
	})
	t.Run("unknown image", func(t *testing.T) {
		_, err := c.Spectrum("missing")
		assert.ErrorIs(t, err, svdimage.ErrUnknownImage)
		_, err = c.Energy("missing")
		assert.ErrorIs(t, err, svdimage.ErrUnknownImage)
	})
}

func TestInfoAndNames(t *testing.T) {
	t.Parallel()
	c, err := svdimage.New()
	require.NoError(t, err)
	c.Add("zebra", colorNoise(64, 48, 8))
	c.AddGray("ant", grayNoise(30, 20, 9))

	assert.Equal(t, []string{"ant", "zebra"}, c.Names())

	info, err := c.Info("ant")
	require.NoError(t, err)
	assert.Equal(t, svdimage.Info{Name: "ant", Width: 30, Height: 20, MaxRank: 20, Gray: true}, info)

	info, err = c.Info("zebra")
	require.NoError(t, err)
	assert.False(t, info.Gray)
	assert.Equal(t, 48, info.MaxRank)

	_, err = c.Info("missing")
	assert.ErrorIs(t, err, svdimage.ErrUnknownImage)
}

func TestReAddReplacesImage(t *testing.T) {
	t.Parallel()
	c, err := svdimage.New()
	require.NoError(t, err)
	c.Add("pic", colorNoise(40, 30, 10))
	_, err = c.Spectrum("pic") // force the decomposition
	require.NoError(t, err)

	c.AddGray("pic", grayNoise(16, 16, 11))
	info, err := c.Info("pic")
	require.NoError(t, err)
	assert.True(t, info.Gray)
	assert.Equal(t, 16, info.Width)

	sv, err := c.Spectrum("pic")
	require.NoError(t, err)
	assert.Len(t, sv, 1, "stale decomposition must be dropped on re-add")
	assert.Len(t, sv[0], 16)
}

func TestWithMaxDimension(t *testing.T) {
	t.Parallel()
	c, err := svdimage.New(svdimage.WithMaxDimension(100))
	require.NoError(t, err)
	c.Add("wide", colorNoise(400, 200, 12))

	info, err := c.Info("wide")
	require.NoError(t, err)
	assert.Equal(t, 100, info.Width)
	assert.Equal(t, 50, info.Height)

	_, err = svdimage.New(svdimage.WithMaxDimension(-1))
	assert.Error(t, err)
}
