package bench

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/yyyoichi/mllab/internal/lowrank"
)

func BenchmarkDecompose(b *testing.B) {
	genSrc := func(w, h int) []float64 {
		src := make([]float64, w*h)
		for i := range src {
			src[i] = rand.Float64() * 255.0
		}
		return src
	}

	for _, size := range [][2]int{{256, 256}, {512, 512}, {768, 512}} {
		w, h := size[0], size[1]
		src := genSrc(w, h)
		b.Run(fmt.Sprintf("%dx%d", w, h), func(b *testing.B) {
			for b.Loop() {
				f, err := lowrank.Decompose(src, w, h)
				if err != nil {
					b.Fatal(err)
				}
				_ = f
			}
		})
	}
}

func BenchmarkReconstruct(b *testing.B) {
	// factorize once, reconstruct many: the access pattern a rank sweep
	// relies on
	w, h := 512, 512
	src := make([]float64, w*h)
	for i := range src {
		src[i] = rand.Float64() * 255.0
	}
	f, err := lowrank.Decompose(src, w, h)
	if err != nil {
		b.Fatal(err)
	}

	for _, k := range []int{5, 20, 50, 100} {
		b.Run(fmt.Sprintf("k%03d", k), func(b *testing.B) {
			for b.Loop() {
				t, err := f.Truncate(k)
				if err != nil {
					b.Fatal(err)
				}
				rec := t.Reconstruct()
				_ = rec
			}
		})
	}
}
