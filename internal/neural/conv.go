package neural

import (
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// convNet scores a token sequence with a one-dimensional convolution
// over the embedded positions followed by global max pooling:
//
//	embed(L, D) -> conv1d(C, K) relu -> global max pool -> dense(1) sigmoid
//
// Because the embeddings are flattened position-major, the window of
// the convolution at position p is the contiguous slice
// x[p*D : (p+K)*D].
type convNet struct {
	vocab, seqLen, embedDim, filters, kernel int

	emb *param // vocab x embedDim, row 0 is the padding id
	cw  *param // filters x (kernel*embedDim)
	cb  *param // filters
	w   *param // filters
	b   *param // 1
}

func newConvNet(vocab, seqLen, embedDim, filters, kernel int, rd *rand.Rand) *convNet {
	n := &convNet{
		vocab:    vocab,
		seqLen:   seqLen,
		embedDim: embedDim,
		filters:  filters,
		kernel:   kernel,
		emb:      newParam(vocab * embedDim),
		cw:       newParam(filters * kernel * embedDim),
		cb:       newParam(filters),
		w:        newParam(filters),
		b:        newParam(1),
	}
	n.emb.initUniform(rd, 0.05)
	n.cw.initGlorot(rd, kernel*embedDim, filters)
	n.w.initGlorot(rd, filters, 1)
	return n
}

func (n *convNet) params() []*param {
	return []*param{n.emb, n.cw, n.cb, n.w, n.b}
}

func (n *convNet) paramNames() []string {
	return []string{"embedding", "conv", "convBias", "w", "b"}
}

func (n *convNet) lookup(seq []int, x []float64) {
	for t, id := range seq {
		if id < 0 || id >= n.vocab {
			id = 0
		}
		copy(x[t*n.embedDim:(t+1)*n.embedDim], n.emb.w[id*n.embedDim:(id+1)*n.embedDim])
	}
}

// pool computes the relu conv activations of x and their global max
// per filter. argmax[c] is the winning window position, or -1 when
// every activation of filter c is non-positive.
func (n *convNet) pool(x []float64) (m []float64, argmax []int) {
	wsize := n.kernel * n.embedDim
	windows := n.seqLen - n.kernel + 1
	m = make([]float64, n.filters)
	argmax = make([]int, n.filters)
	for c := range n.filters {
		argmax[c] = -1
		row := n.cw.w[c*wsize : (c+1)*wsize]
		for pos := range windows {
			pre := floats.Dot(row, x[pos*n.embedDim:pos*n.embedDim+wsize]) + n.cb.w[c]
			if pre > m[c] {
				m[c] = pre
				argmax[c] = pos
			}
		}
	}
	return m, argmax
}

func (n *convNet) score(seq []int) float64 {
	x := make([]float64, n.seqLen*n.embedDim)
	n.lookup(seq, x)
	m, _ := n.pool(x)
	return sigmoid(floats.Dot(n.w.w, m) + n.b.w[0])
}

// step runs one forward and backward pass for a single example,
// accumulating the parameter gradients of the cross entropy loss.
// The pooling gradient flows only into the winning window of each
// filter. It returns the predicted probability.
func (n *convNet) step(seq []int, y float64) float64 {
	x := make([]float64, n.seqLen*n.embedDim)
	n.lookup(seq, x)
	m, argmax := n.pool(x)
	z := floats.Dot(n.w.w, m) + n.b.w[0]
	p := sigmoid(z)

	dz := p - y
	n.b.g[0] += dz
	wsize := n.kernel * n.embedDim
	dx := make([]float64, len(x))
	for c, mc := range m {
		n.w.g[c] += dz * mc
		if argmax[c] < 0 {
			continue
		}
		dpre := dz * n.w.w[c]
		n.cb.g[c] += dpre
		win := argmax[c] * n.embedDim
		floats.AddScaled(n.cw.g[c*wsize:(c+1)*wsize], dpre, x[win:win+wsize])
		floats.AddScaled(dx[win:win+wsize], dpre, n.cw.w[c*wsize:(c+1)*wsize])
	}
	n.scatter(seq, dx)
	return p
}

func (n *convNet) scatter(seq []int, dx []float64) {
	for t, id := range seq {
		if id < 0 || id >= n.vocab {
			id = 0
		}
		floats.AddScaled(n.emb.g[id*n.embedDim:(id+1)*n.embedDim], 1, dx[t*n.embedDim:(t+1)*n.embedDim])
	}
}
