// Package neural implements the two small binary text classifiers the
// repository trains: a flattened embedding network and a convolutional
// network with global max pooling. Both take fixed-length sequences of
// token ids, emit a probability through a sigmoid, and learn with Adam
// on cross entropy. Training is single-threaded and fully determined
// by the seeds, so a run can be reproduced exactly.
package neural

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
)

var ErrBadConfig = errors.New("invalid network configuration")

// Kind selects the network architecture.
type Kind string

const (
	// Dense flattens the embedded sequence into one vector and feeds
	// it through a relu hidden layer.
	Dense Kind = "dense"
	// Conv slides one-dimensional filters over the embedded sequence
	// and keeps the strongest response of each.
	Conv Kind = "conv"
)

// Config fixes the shape of a network before training.
type Config struct {
	Kind Kind `json:"kind"`
	// VocabSize counts the embedding rows, including the padding id 0.
	VocabSize int `json:"vocabSize"`
	SeqLen    int `json:"seqLen"`
	EmbedDim  int `json:"embedDim"`
	// Hidden is the width of the hidden layer (Dense only).
	Hidden int `json:"hidden,omitempty"`
	// Filters and Kernel shape the convolution (Conv only).
	Filters int `json:"filters,omitempty"`
	Kernel  int `json:"kernel,omitempty"`
	// Seed determines the initial weights.
	Seed int64 `json:"seed"`
}

func (cfg Config) validate() error {
	if cfg.VocabSize < 2 {
		return fmt.Errorf("%w: vocab size %d", ErrBadConfig, cfg.VocabSize)
	}
	if cfg.SeqLen < 1 {
		return fmt.Errorf("%w: sequence length %d", ErrBadConfig, cfg.SeqLen)
	}
	if cfg.EmbedDim < 1 {
		return fmt.Errorf("%w: embedding dimension %d", ErrBadConfig, cfg.EmbedDim)
	}
	switch cfg.Kind {
	case Dense:
		if cfg.Hidden < 1 {
			return fmt.Errorf("%w: hidden width %d", ErrBadConfig, cfg.Hidden)
		}
	case Conv:
		if cfg.Filters < 1 {
			return fmt.Errorf("%w: filter count %d", ErrBadConfig, cfg.Filters)
		}
		if cfg.Kernel < 1 || cfg.Kernel > cfg.SeqLen {
			return fmt.Errorf("%w: kernel %d for sequence length %d", ErrBadConfig, cfg.Kernel, cfg.SeqLen)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrBadConfig, cfg.Kind)
	}
	return nil
}

type model interface {
	score(seq []int) float64
	step(seq []int, y float64) float64
	params() []*param
	paramNames() []string
}

// Network is a binary sequence classifier.
type Network struct {
	cfg Config
	mdl model
}

// New initializes a network with seeded random weights.
func New(cfg Config) (*Network, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	rd := rand.New(rand.NewSource(cfg.Seed))
	n := &Network{cfg: cfg}
	switch cfg.Kind {
	case Dense:
		n.mdl = newDenseNet(cfg.VocabSize, cfg.SeqLen, cfg.EmbedDim, cfg.Hidden, rd)
	case Conv:
		n.mdl = newConvNet(cfg.VocabSize, cfg.SeqLen, cfg.EmbedDim, cfg.Filters, cfg.Kernel, rd)
	}
	return n, nil
}

// Config returns the shape the network was built with.
func (n *Network) Config() Config {
	return n.cfg
}

// Score returns the probability that seq belongs to the positive
// class. Sequences are padded or cut to the configured length.
func (n *Network) Score(seq []int) float64 {
	return n.mdl.score(fitSeq(seq, n.cfg.SeqLen))
}

// FitConfig controls one training run. Zero fields fall back to
// 10 epochs, batches of 32 and a learning rate of 0.001.
type FitConfig struct {
	Epochs    int
	BatchSize int
	LearnRate float64
	// Seed determines the example order of every epoch.
	Seed int64
}

func (cfg FitConfig) withDefaults() FitConfig {
	if cfg.Epochs == 0 {
		cfg.Epochs = 10
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 32
	}
	if cfg.LearnRate == 0 {
		cfg.LearnRate = 0.001
	}
	return cfg
}

// EpochStats records the metrics of one pass over the data. The
// validation fields stay zero when no validation set was given.
type EpochStats struct {
	Epoch    int     `json:"epoch"`
	Loss     float64 `json:"loss"`
	Accuracy float64 `json:"accuracy"`
	ValLoss  float64 `json:"valLoss,omitempty"`
	ValAcc   float64 `json:"valAccuracy,omitempty"`
}

// Fit trains the network on xs and ys for a fixed number of epochs,
// reshuffling every epoch and updating with Adam once per mini batch.
// There is no early stopping. valXs and valYs are scored after every
// epoch without influencing the weights; both pairs must be equal in
// length and the labels must be 0 or 1.
func (n *Network) Fit(ctx context.Context, xs [][]int, ys []float64, valXs [][]int, valYs []float64, cfg FitConfig) ([]EpochStats, error) {
	if len(xs) == 0 {
		return nil, fmt.Errorf("%w: no training examples", ErrBadConfig)
	}
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("%w: %d examples with %d labels", ErrBadConfig, len(xs), len(ys))
	}
	if len(valXs) != len(valYs) {
		return nil, fmt.Errorf("%w: %d validation examples with %d labels", ErrBadConfig, len(valXs), len(valYs))
	}
	cfg = cfg.withDefaults()
	if cfg.Epochs < 0 || cfg.BatchSize < 1 || cfg.LearnRate <= 0 {
		return nil, fmt.Errorf("%w: epochs=%d batch=%d rate=%g", ErrBadConfig, cfg.Epochs, cfg.BatchSize, cfg.LearnRate)
	}

	seqs := make([][]int, len(xs))
	for i, x := range xs {
		seqs[i] = fitSeq(x, n.cfg.SeqLen)
	}

	rd := rand.New(rand.NewSource(cfg.Seed))
	opt := newAdam(cfg.LearnRate, n.mdl.params())
	stats := make([]EpochStats, 0, cfg.Epochs)
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		var train Accumulator
		order := rd.Perm(len(seqs))
		for start := 0; start < len(order); start += cfg.BatchSize {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			end := min(start+cfg.BatchSize, len(order))
			for _, idx := range order[start:end] {
				p := n.mdl.step(seqs[idx], ys[idx])
				train.Add(p, ys[idx])
			}
			opt.step(n.mdl.params(), 1/float64(end-start))
		}

		st := EpochStats{
			Epoch:    epoch,
			Loss:     train.Loss(),
			Accuracy: train.Accuracy(),
		}
		if len(valXs) > 0 {
			var val Accumulator
			for i, x := range valXs {
				val.Add(n.Score(x), valYs[i])
			}
			st.ValLoss = val.Loss()
			st.ValAcc = val.Accuracy()
		}
		stats = append(stats, st)
	}
	return stats, nil
}

// fitSeq pads seq with the padding id or cuts it so that it has
// exactly length L.
func fitSeq(seq []int, L int) []int {
	if len(seq) == L {
		return seq
	}
	if len(seq) > L {
		return seq[:L]
	}
	out := make([]int, L)
	copy(out, seq)
	return out
}
