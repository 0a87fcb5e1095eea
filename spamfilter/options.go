package spamfilter

import "fmt"

// Model selects the classifier architecture.
type Model string

const (
	// ModelDense flattens the embedded sequence through one relu
	// hidden layer.
	ModelDense Model = "dense"
	// ModelConv slides one-dimensional filters over the sequence and
	// keeps the strongest response of each.
	ModelConv Model = "conv"
)

type TrainOption func(*trainConfig) error

type trainConfig struct {
	model     Model
	seqLen    int
	maxWords  int
	embedDim  int
	hidden    int
	filters   int
	kernel    int
	epochs    int
	batchSize int
	learnRate float64
	holdout   float64
	seed      int64
}

func defaultTrainConfig() trainConfig {
	return trainConfig{
		model:     ModelDense,
		seqLen:    50,
		maxWords:  2000,
		embedDim:  16,
		hidden:    16,
		filters:   32,
		kernel:    3,
		epochs:    10,
		batchSize: 32,
		learnRate: 0.001,
		holdout:   0.2,
		seed:      42,
	}
}

// WithModel picks the network architecture, ModelDense by default.
func WithModel(m Model) TrainOption {
	return func(cfg *trainConfig) error {
		if m != ModelDense && m != ModelConv {
			return fmt.Errorf("unknown model %q", m)
		}
		cfg.model = m
		return nil
	}
}

// WithSequenceLength sets how many token ids a message is padded or
// cut to.
func WithSequenceLength(n int) TrainOption {
	return func(cfg *trainConfig) error {
		if n < 1 {
			return fmt.Errorf("sequence length must be positive: %d", n)
		}
		cfg.seqLen = n
		return nil
	}
}

// WithMaxWords caps the vocabulary at the n most frequent tokens.
// Zero lifts the cap.
func WithMaxWords(n int) TrainOption {
	return func(cfg *trainConfig) error {
		if n < 0 {
			return fmt.Errorf("max words must not be negative: %d", n)
		}
		cfg.maxWords = n
		return nil
	}
}

// WithEmbeddingDim sets the width of each embedding vector.
func WithEmbeddingDim(n int) TrainOption {
	return func(cfg *trainConfig) error {
		if n < 1 {
			return fmt.Errorf("embedding dimension must be positive: %d", n)
		}
		cfg.embedDim = n
		return nil
	}
}

// WithHiddenUnits sets the hidden layer width of ModelDense.
func WithHiddenUnits(n int) TrainOption {
	return func(cfg *trainConfig) error {
		if n < 1 {
			return fmt.Errorf("hidden units must be positive: %d", n)
		}
		cfg.hidden = n
		return nil
	}
}

// WithFilters sets the filter count and window width of ModelConv.
func WithFilters(count, width int) TrainOption {
	return func(cfg *trainConfig) error {
		if count < 1 || width < 1 {
			return fmt.Errorf("filters must be positive: %dx%d", count, width)
		}
		cfg.filters = count
		cfg.kernel = width
		return nil
	}
}

// WithEpochs sets the fixed number of training passes.
func WithEpochs(n int) TrainOption {
	return func(cfg *trainConfig) error {
		if n < 1 {
			return fmt.Errorf("epochs must be positive: %d", n)
		}
		cfg.epochs = n
		return nil
	}
}

// WithBatchSize sets the mini batch size of each Adam update.
func WithBatchSize(n int) TrainOption {
	return func(cfg *trainConfig) error {
		if n < 1 {
			return fmt.Errorf("batch size must be positive: %d", n)
		}
		cfg.batchSize = n
		return nil
	}
}

// WithLearnRate sets the Adam learning rate.
func WithLearnRate(r float64) TrainOption {
	return func(cfg *trainConfig) error {
		if r <= 0 {
			return fmt.Errorf("learning rate must be positive: %g", r)
		}
		cfg.learnRate = r
		return nil
	}
}

// WithHoldout reserves a fraction of the records for validation.
func WithHoldout(frac float64) TrainOption {
	return func(cfg *trainConfig) error {
		if frac < 0 || frac >= 1 {
			return fmt.Errorf("holdout must be in [0, 1): %g", frac)
		}
		cfg.holdout = frac
		return nil
	}
}

// WithSeed fixes the randomness of the split, the initial weights and
// the shuffles. Two trainings with the same records, options and seed
// produce identical pipelines.
func WithSeed(seed int64) TrainOption {
	return func(cfg *trainConfig) error {
		cfg.seed = seed
		return nil
	}
}
