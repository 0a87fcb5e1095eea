package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/yyyoichi/mllab/internal/chart"
	"github.com/yyyoichi/mllab/internal/runstore"
	"github.com/yyyoichi/mllab/spamfilter"
	"go.uber.org/zap"
)

var (
	trainArch      string
	trainEpochs    int
	trainSynthetic int
	trainOut       string
	trainNote      string

	classifyModel string
)

// spamCmd groups the classifier commands
var spamCmd = &cobra.Command{
	Use:   "spam",
	Short: "Train and run the spam classifier",
}

var spamTrainCmd = &cobra.Command{
	Use:   "train [labeled csv]",
	Short: "Train a classifier on a labeled message corpus",
	Long: `Reads a CSV of (label, text) rows, cleans and deduplicates the
messages, builds the vocabulary on the training split and fits the
configured network. The trained pipeline is saved as JSON and the
epoch history is recorded and charted.

Without a CSV argument a synthetic corpus is generated, which is
handy for smoke-testing the setup.

Example:
  mllab spam train data/spam.csv --arch conv --epochs 20
  mllab spam train --synthetic 400`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSpamTrain,
}

var spamClassifyCmd = &cobra.Command{
	Use:   "classify [text...]",
	Short: "Score text with a trained classifier",
	Long: `Loads a saved pipeline and scores either the argument text or,
without arguments, every line read from standard input.

Example:
  mllab spam classify "FREE MONEY click now"
  cat inbox.txt | mllab spam classify`,
	RunE: runSpamClassify,
}

func init() {
	spamTrainCmd.Flags().StringVar(&trainArch, "arch", "", "Network architecture: dense or conv (default: config)")
	spamTrainCmd.Flags().IntVar(&trainEpochs, "epochs", 0, "Training epochs (default: config)")
	spamTrainCmd.Flags().IntVar(&trainSynthetic, "synthetic", 400, "Synthetic corpus size when no CSV is given")
	spamTrainCmd.Flags().StringVarP(&trainOut, "out", "o", "", "Model output path (default: <data>/models/spam.json)")
	spamTrainCmd.Flags().StringVar(&trainNote, "note", "", "Note to record with the run")

	spamClassifyCmd.Flags().StringVarP(&classifyModel, "model", "m", "", "Model path (default: <data>/models/spam.json)")

	spamCmd.AddCommand(spamTrainCmd)
	spamCmd.AddCommand(spamClassifyCmd)
}

// trainOptions maps the config (plus flag overrides) onto pipeline
// options.
func trainOptions() []spamfilter.TrainOption {
	tc := cfg.Train

	model := spamfilter.Model(tc.Model)
	if trainArch != "" {
		model = spamfilter.Model(trainArch)
	}
	epochs := tc.Epochs
	if trainEpochs > 0 {
		epochs = trainEpochs
	}

	return []spamfilter.TrainOption{
		spamfilter.WithModel(model),
		spamfilter.WithSequenceLength(tc.SequenceLength),
		spamfilter.WithMaxWords(tc.MaxWords),
		spamfilter.WithEmbeddingDim(tc.EmbeddingDim),
		spamfilter.WithHiddenUnits(tc.HiddenUnits),
		spamfilter.WithFilters(tc.Filters, tc.KernelWidth),
		spamfilter.WithEpochs(epochs),
		spamfilter.WithBatchSize(tc.BatchSize),
		spamfilter.WithLearnRate(tc.LearnRate),
		spamfilter.WithHoldout(tc.Holdout),
		spamfilter.WithSeed(tc.Seed),
	}
}

func runSpamTrain(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var recs []spamfilter.Record
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open dataset: %w", err)
		}
		recs, err = spamfilter.LoadCSV(f)
		f.Close()
		if err != nil {
			return err
		}
	} else {
		recs = spamfilter.SyntheticDataset(trainSynthetic, cfg.Train.Seed)
		fmt.Printf("no dataset given, using %d synthetic messages\n", len(recs))
	}

	before := len(recs)
	recs = spamfilter.Dedup(recs)
	logger.Info("dataset loaded",
		zap.Int("messages", before),
		zap.Int("unique", len(recs)))

	pipe, err := spamfilter.Train(ctx, recs, trainOptions()...)
	if err != nil {
		return err
	}
	history := pipe.History()
	last := history[len(history)-1]
	fmt.Printf("trained %d epochs: loss=%.4f acc=%.3f", last.Epoch, last.Loss, last.Accuracy)
	if last.ValAccuracy > 0 {
		fmt.Printf(" valLoss=%.4f valAcc=%.3f", last.ValLoss, last.ValAccuracy)
	}
	fmt.Println()

	out := trainOut
	if out == "" {
		out = artifactPath("models", "spam.json")
	}
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create model file: %w", err)
	}
	if err := pipe.Save(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("model saved to %s (%d words)\n", out, pipe.Vocabulary().Words())

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	run, err := store.CreateRun(runstore.KindTrain, trainNote)
	if err != nil {
		return err
	}
	epochs := make([]runstore.Epoch, len(history))
	for i, st := range history {
		epochs[i] = runstore.Epoch{
			Epoch:       st.Epoch,
			Loss:        st.Loss,
			Accuracy:    st.Accuracy,
			ValLoss:     st.ValLoss,
			ValAccuracy: st.ValAccuracy,
		}
	}
	if err := store.AddEpochs(run.ID, epochs); err != nil {
		return err
	}

	p := artifactPath("charts", "training_curves.html")
	err = writeChart(p, func(w io.Writer) error {
		return chart.TrainingCurves(w, "spam classifier", epochPoints(history))
	})
	if err != nil {
		return err
	}
	fmt.Printf("run %s recorded, curves at %s\n", run.ID, p)
	return nil
}

func epochPoints(history []spamfilter.EpochStats) []chart.EpochPoint {
	points := make([]chart.EpochPoint, len(history))
	for i, st := range history {
		points[i] = chart.EpochPoint{
			Epoch:       st.Epoch,
			Loss:        st.Loss,
			Accuracy:    st.Accuracy,
			ValLoss:     st.ValLoss,
			ValAccuracy: st.ValAccuracy,
		}
	}
	return points
}

func runSpamClassify(cmd *cobra.Command, args []string) error {
	path := classifyModel
	if path == "" {
		path = artifactPath("models", "spam.json")
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open model: %w", err)
	}
	pipe, err := spamfilter.LoadPipeline(f)
	f.Close()
	if err != nil {
		return err
	}

	if len(args) > 0 {
		printVerdict(pipe.Classify(strings.Join(args, " ")))
		return nil
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		printVerdict(pipe.Classify(line))
	}
	return scanner.Err()
}

func printVerdict(c spamfilter.Classification) {
	verdict := "ham "
	if c.Spam {
		verdict = "SPAM"
	}
	fmt.Printf("%s  p=%.3f  %s\n", verdict, c.Probability, c.Text)
}
