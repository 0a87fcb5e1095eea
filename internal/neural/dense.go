package neural

import (
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// denseNet scores a token sequence by flattening its embeddings into
// one long vector and passing it through a single hidden layer:
//
//	embed(L, D) -> flatten(L*D) -> dense(H) relu -> dense(1) sigmoid
type denseNet struct {
	vocab, seqLen, embedDim, hidden int

	emb *param // vocab x embedDim, row 0 is the padding id
	w1  *param // hidden x (seqLen*embedDim)
	b1  *param // hidden
	w2  *param // hidden
	b2  *param // 1
}

func newDenseNet(vocab, seqLen, embedDim, hidden int, rd *rand.Rand) *denseNet {
	n := &denseNet{
		vocab:    vocab,
		seqLen:   seqLen,
		embedDim: embedDim,
		hidden:   hidden,
		emb:      newParam(vocab * embedDim),
		w1:       newParam(hidden * seqLen * embedDim),
		b1:       newParam(hidden),
		w2:       newParam(hidden),
		b2:       newParam(1),
	}
	n.emb.initUniform(rd, 0.05)
	n.w1.initGlorot(rd, seqLen*embedDim, hidden)
	n.w2.initGlorot(rd, hidden, 1)
	return n
}

func (n *denseNet) params() []*param {
	return []*param{n.emb, n.w1, n.b1, n.w2, n.b2}
}

func (n *denseNet) paramNames() []string {
	return []string{"embedding", "w1", "b1", "w2", "b2"}
}

// lookup writes the flattened embeddings of seq into x. Ids outside
// the table fall back to the padding row.
func (n *denseNet) lookup(seq []int, x []float64) {
	for t, id := range seq {
		if id < 0 || id >= n.vocab {
			id = 0
		}
		copy(x[t*n.embedDim:(t+1)*n.embedDim], n.emb.w[id*n.embedDim:(id+1)*n.embedDim])
	}
}

func (n *denseNet) score(seq []int) float64 {
	in := n.seqLen * n.embedDim
	x := make([]float64, in)
	n.lookup(seq, x)

	z := n.b2.w[0]
	for i := range n.hidden {
		pre := floats.Dot(n.w1.w[i*in:(i+1)*in], x) + n.b1.w[i]
		if pre > 0 {
			z += n.w2.w[i] * pre
		}
	}
	return sigmoid(z)
}

// step runs one forward and backward pass for a single example,
// accumulating the parameter gradients of the cross entropy loss.
// It returns the predicted probability.
func (n *denseNet) step(seq []int, y float64) float64 {
	in := n.seqLen * n.embedDim
	x := make([]float64, in)
	n.lookup(seq, x)

	h := make([]float64, n.hidden)
	for i := range n.hidden {
		pre := floats.Dot(n.w1.w[i*in:(i+1)*in], x) + n.b1.w[i]
		if pre > 0 {
			h[i] = pre
		}
	}
	z := floats.Dot(n.w2.w, h) + n.b2.w[0]
	p := sigmoid(z)

	// d(loss)/dz of sigmoid plus cross entropy collapses to p-y.
	dz := p - y
	n.b2.g[0] += dz
	dx := make([]float64, in)
	for i, hi := range h {
		n.w2.g[i] += dz * hi
		if hi <= 0 {
			// relu gate is closed, nothing flows further down
			continue
		}
		dpre := dz * n.w2.w[i]
		n.b1.g[i] += dpre
		floats.AddScaled(n.w1.g[i*in:(i+1)*in], dpre, x)
		floats.AddScaled(dx, dpre, n.w1.w[i*in:(i+1)*in])
	}
	n.scatter(seq, dx)
	return p
}

// scatter adds the input gradient back onto the embedding rows that
// produced it. Repeated ids accumulate.
func (n *denseNet) scatter(seq []int, dx []float64) {
	for t, id := range seq {
		if id < 0 || id >= n.vocab {
			id = 0
		}
		floats.AddScaled(n.emb.g[id*n.embedDim:(id+1)*n.embedDim], 1, dx[t*n.embedDim:(t+1)*n.embedDim])
	}
}
