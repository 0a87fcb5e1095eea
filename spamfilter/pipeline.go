package spamfilter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/yyyoichi/mllab/internal/neural"
)

var (
	ErrNoData      = errors.New("no usable training data")
	ErrBadPipeline = errors.New("invalid pipeline file")
)

// EpochStats records the metrics of one training epoch. The validation
// fields stay zero when no holdout was reserved.
type EpochStats struct {
	Epoch       int     `json:"epoch"`
	Loss        float64 `json:"loss"`
	Accuracy    float64 `json:"accuracy"`
	ValLoss     float64 `json:"valLoss,omitempty"`
	ValAccuracy float64 `json:"valAccuracy,omitempty"`
}

// Pipeline is a trained classifier together with the vocabulary that
// feeds it. It is safe for concurrent Classify calls.
type Pipeline struct {
	vocab   *Vocabulary
	net     *neural.Network
	history []EpochStats
}

// Train fits a spam classifier end to end: it cleans every message,
// reserves the holdout split, builds the vocabulary from the training
// split only, and trains the selected network for a fixed number of
// epochs with Adam on cross entropy. There is no early stopping.
// Identical records, options and seed produce an identical pipeline.
func Train(ctx context.Context, recs []Record, opts ...TrainOption) (*Pipeline, error) {
	cfg := defaultTrainConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	cleaned := make([]Record, len(recs))
	for i, rec := range recs {
		cleaned[i] = Record{Label: rec.Label, Text: Clean(rec.Text)}
	}
	train, val := Split(cleaned, cfg.holdout, cfg.seed)
	if len(train) == 0 {
		return nil, ErrNoData
	}

	texts := make([]string, len(train))
	for i, rec := range train {
		texts[i] = rec.Text
	}
	vocab := BuildVocabulary(texts, cfg.maxWords)
	if vocab.Words() == 0 {
		return nil, fmt.Errorf("%w: no tokens survive cleaning", ErrNoData)
	}

	ncfg := neural.Config{
		Kind:      neural.Dense,
		VocabSize: vocab.Rows(),
		SeqLen:    cfg.seqLen,
		EmbedDim:  cfg.embedDim,
		Hidden:    cfg.hidden,
		Seed:      cfg.seed,
	}
	if cfg.model == ModelConv {
		ncfg.Kind = neural.Conv
		ncfg.Hidden = 0
		ncfg.Filters = cfg.filters
		ncfg.Kernel = cfg.kernel
	}
	net, err := neural.New(ncfg)
	if err != nil {
		return nil, err
	}

	xs, ys := encodeAll(vocab, train, cfg.seqLen)
	valXs, valYs := encodeAll(vocab, val, cfg.seqLen)
	stats, err := net.Fit(ctx, xs, ys, valXs, valYs, neural.FitConfig{
		Epochs:    cfg.epochs,
		BatchSize: cfg.batchSize,
		LearnRate: cfg.learnRate,
		Seed:      cfg.seed,
	})
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		vocab:   vocab,
		net:     net,
		history: convertStats(stats),
	}, nil
}

func encodeAll(vocab *Vocabulary, recs []Record, seqLen int) ([][]int, []float64) {
	xs := make([][]int, len(recs))
	ys := make([]float64, len(recs))
	for i, rec := range recs {
		xs[i] = vocab.Encode(rec.Text, seqLen)
		ys[i] = float64(rec.Label)
	}
	return xs, ys
}

func convertStats(stats []neural.EpochStats) []EpochStats {
	out := make([]EpochStats, len(stats))
	for i, st := range stats {
		out[i] = EpochStats{
			Epoch:       st.Epoch,
			Loss:        st.Loss,
			Accuracy:    st.Accuracy,
			ValLoss:     st.ValLoss,
			ValAccuracy: st.ValAcc,
		}
	}
	return out
}

// Classification is the verdict for one message.
type Classification struct {
	// Text is the cleaned form that was scored.
	Text        string  `json:"text"`
	Probability float64 `json:"probability"`
	Spam        bool    `json:"spam"`
}

// Classify cleans and scores one message. A probability of at least
// 0.5 labels it spam. Input without a single known token is scored as
// the all-padding sequence.
func (p *Pipeline) Classify(text string) Classification {
	cleaned := Clean(text)
	prob := p.net.Score(p.vocab.Encode(cleaned, p.net.Config().SeqLen))
	return Classification{
		Text:        cleaned,
		Probability: prob,
		Spam:        prob >= 0.5,
	}
}

// History returns the per-epoch training metrics.
func (p *Pipeline) History() []EpochStats {
	return p.history
}

// Vocabulary exposes the fitted token index.
func (p *Pipeline) Vocabulary() *Vocabulary {
	return p.vocab
}

const pipelineVersion = 1

type pipelineFile struct {
	Version int             `json:"version"`
	Vocab   *Vocabulary     `json:"vocab"`
	Network neural.Snapshot `json:"network"`
	History []EpochStats    `json:"history,omitempty"`
}

// Save writes the pipeline as versioned json, complete enough to
// restore classification behavior bit for bit.
func (p *Pipeline) Save(w io.Writer) error {
	return json.NewEncoder(w).Encode(pipelineFile{
		Version: pipelineVersion,
		Vocab:   p.vocab,
		Network: p.net.Snapshot(),
		History: p.history,
	})
}

// LoadPipeline reads a pipeline written by Save.
func LoadPipeline(r io.Reader) (*Pipeline, error) {
	var file pipelineFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadPipeline, err)
	}
	if file.Version != pipelineVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadPipeline, file.Version)
	}
	if file.Vocab == nil || file.Vocab.Index == nil {
		return nil, fmt.Errorf("%w: missing vocabulary", ErrBadPipeline)
	}
	net, err := neural.FromSnapshot(file.Network)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadPipeline, err)
	}
	return &Pipeline{vocab: file.Vocab, net: net, history: file.History}, nil
}
