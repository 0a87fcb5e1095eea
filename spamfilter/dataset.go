package spamfilter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
)

var ErrBadDataset = errors.New("invalid dataset")

// Record is one labeled message. Label is 1 for spam and 0 for ham.
type Record struct {
	Label int
	Text  string
}

// LoadCSV reads records from two-column csv rows of label and text.
// Labels may be spam/ham or 1/0 in any case. A single leading header
// row is skipped; any other unparsable label fails the load.
func LoadCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	var recs []Record
	line := 0
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadDataset, err)
		}
		line++
		if len(row) < 2 {
			return nil, fmt.Errorf("%w: row %d has %d columns, want 2", ErrBadDataset, line, len(row))
		}
		label, err := parseLabel(row[0])
		if err != nil {
			if line == 1 {
				// a header row
				continue
			}
			return nil, fmt.Errorf("%w: row %d: %w", ErrBadDataset, line, err)
		}
		recs = append(recs, Record{Label: label, Text: row[1]})
	}
	return recs, nil
}

func parseLabel(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spam", "1":
		return 1, nil
	case "ham", "0":
		return 0, nil
	}
	return 0, fmt.Errorf("unknown label %q", s)
}

// Dedup drops records whose exact text already appeared, keeping the
// first occurrence.
func Dedup(recs []Record) []Record {
	seen := make(map[string]struct{}, len(recs))
	out := make([]Record, 0, len(recs))
	for _, rec := range recs {
		if _, ok := seen[rec.Text]; ok {
			continue
		}
		seen[rec.Text] = struct{}{}
		out = append(out, rec)
	}
	return out
}

// Split shuffles recs with the seed and cuts off the trailing holdout
// fraction. The input is left untouched.
func Split(recs []Record, holdout float64, seed int64) (train, test []Record) {
	shuffled := make([]Record, len(recs))
	for i, j := range rand.New(rand.NewSource(seed)).Perm(len(recs)) {
		shuffled[i] = recs[j]
	}
	cut := len(shuffled) - int(float64(len(shuffled))*holdout)
	if cut < 0 {
		cut = 0
	}
	if cut > len(shuffled) {
		cut = len(shuffled)
	}
	return shuffled[:cut], shuffled[cut:]
}

var (
	spamWords = []string{"free", "money", "winner", "click", "prize", "cash", "offer", "urgent", "claim", "bonus"}
	hamWords  = []string{"meeting", "report", "schedule", "project", "lunch", "review", "notes", "agenda", "team", "update"}
)

// SyntheticDataset generates n labeled messages from two disjoint word
// pools, alternating spam and ham. The pools share no words, so any
// working classifier separates them; the set is meant for tests and
// demos, not for benchmarking real mail.
func SyntheticDataset(n int, seed int64) []Record {
	rd := rand.New(rand.NewSource(seed))
	recs := make([]Record, 0, n)
	for i := range n {
		pool := hamWords
		label := 0
		if i%2 == 0 {
			pool = spamWords
			label = 1
		}
		words := make([]string, 4+rd.Intn(5))
		for w := range words {
			words[w] = pool[rd.Intn(len(pool))]
		}
		recs = append(recs, Record{Label: label, Text: strings.Join(words, " ")})
	}
	return recs
}
