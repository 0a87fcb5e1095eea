package lowrank

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Factors holds the thin singular value decomposition of an m x n matrix:
// A = U * diag(s) * V^T with r = min(m, n) retained triplets.
// Factors are immutable once computed and can be truncated any number of times.
type Factors struct {
	m, n int
	u    *mat.Dense // m x r
	s    []float64  // r values, descending, non-negative
	v    *mat.Dense // n x r
}

// Decompose factorizes the matrix held in data (row-major, h rows x w columns).
func Decompose(data []float64, w, h int) (*Factors, error) {
	if w < 1 || h < 1 || len(data) != w*h {
		return nil, fmt.Errorf("invalid matrix shape %dx%d for %d values", h, w, len(data))
	}

	a := mat.NewDense(h, w, data)
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, fmt.Errorf("cannot factorize %dx%d matrix", h, w)
	}

	f := &Factors{m: h, n: w, s: svd.Values(nil)}
	f.u = new(mat.Dense)
	f.v = new(mat.Dense)
	svd.UTo(f.u)
	svd.VTo(f.v)
	return f, nil
}

// Dims returns the shape of the decomposed matrix as (rows, cols).
func (f *Factors) Dims() (m, n int) { return f.m, f.n }

// Rank returns the number of retained singular triplets, min(rows, cols).
func (f *Factors) Rank() int { return len(f.s) }

// Values returns a copy of the singular values in descending order.
func (f *Factors) Values() []float64 {
	s := make([]float64, len(f.s))
	copy(s, f.s)
	return s
}

// Energy returns the cumulative energy curve of the singular values:
// Energy()[i] is the fraction sum(s[:i+1])/sum(s). The curve is
// non-decreasing and lies in [0, 1]. A zero matrix yields all zeros.
func (f *Factors) Energy() []float64 {
	e := make([]float64, len(f.s))
	floats.CumSum(e, f.s)
	total := e[len(e)-1]
	if total == 0 {
		return e
	}
	floats.Scale(1/total, e)
	return e
}

// Truncation holds the leading k triplets of a decomposition, the data
// actually stored by a rank-k approximation.
type Truncation struct {
	M, N, K int
	U       []float64 // m x k, row-major
	S       []float64 // k values
	V       []float64 // n x k, row-major
}

// Truncate copies the leading k columns of U and V and the k largest
// singular values. k must satisfy 1 <= k <= Rank().
func (f *Factors) Truncate(k int) (*Truncation, error) {
	if k < 1 || k > len(f.s) {
		return nil, fmt.Errorf("rank %d outside [1, %d]", k, len(f.s))
	}
	t := &Truncation{M: f.m, N: f.n, K: k}
	t.S = make([]float64, k)
	copy(t.S, f.s[:k])
	t.U = sliceCopy(f.u, f.m, k)
	t.V = sliceCopy(f.v, f.n, k)
	return t, nil
}

// Reconstruct multiplies the truncated factors back into a dense
// approximation of the original matrix: U_k * diag(s_k) * V_k^T.
func (t *Truncation) Reconstruct() *mat.Dense {
	u := mat.NewDense(t.M, t.K, t.U)
	v := mat.NewDense(t.N, t.K, t.V)
	d := mat.NewDiagDense(t.K, t.S)

	var rec mat.Dense
	rec.Product(u, d, v.T())
	return &rec
}

// Ratio reports the storage advantage of a rank-k truncation of an
// m x n matrix: the original value count over the count needed for
// k columns of U, k singular values and k rows of V^T.
func Ratio(m, n, k int) float64 {
	return float64(m*n) / float64(k*(m+n+1))
}

func sliceCopy(a *mat.Dense, rows, cols int) []float64 {
	out := make([]float64, rows*cols)
	for i := range rows {
		for j := range cols {
			out[i*cols+j] = a.At(i, j)
		}
	}
	return out
}
