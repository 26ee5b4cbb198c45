package evaluation

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/dshills/nfdiff/internal/schema"
)

// Counts is a confusion matrix over labelled verdicts.
type Counts struct {
	TP int `json:"tp"`
	FP int `json:"fp"`
	FN int `json:"fn"`
	TN int `json:"tn"`
}

// Precision is TP/(TP+FP), or NaN when nothing was predicted positive.
func (c Counts) Precision() float64 {
	if c.TP+c.FP == 0 {
		return math.NaN()
	}
	return float64(c.TP) / float64(c.TP+c.FP)
}

// Recall is TP/(TP+FN), or NaN when nothing was labelled malicious.
func (c Counts) Recall() float64 {
	if c.TP+c.FN == 0 {
		return math.NaN()
	}
	return float64(c.TP) / float64(c.TP+c.FN)
}

// Print writes the counts and scores in a fixed text layout.
func (c Counts) Print(w io.Writer) error {
	_, err := fmt.Fprintf(w, "TP = %d\nFP = %d\nFN = %d\nPrecision = %.3f\nRecall    = %.3f\n",
		c.TP, c.FP, c.FN, c.Precision(), c.Recall())
	return err
}

// ParsePositive parses a comma-separated verdict list such as
// "CRITICAL,SUSPICIOUS".
func ParsePositive(s string) ([]schema.Verdict, error) {
	var out []schema.Verdict
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, ok := schema.ParseVerdict(part)
		if !ok {
			return nil, fmt.Errorf("evaluation: unknown verdict %q", part)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, errors.New("evaluation: no positive verdicts given")
	}
	return out, nil
}

// Accuracy scores a label CSV. A row is predicted malicious when its verdict
// is one of positive; it is labelled malicious when its malicious column is 1.
func Accuracy(r io.Reader, positive []schema.Verdict) (Counts, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return Counts{}, fmt.Errorf("evaluation: read header: %w", err)
	}
	malCol, verdictCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case "malicious":
			malCol = i
		case "verdict":
			verdictCol = i
		}
	}
	if malCol < 0 || verdictCol < 0 {
		return Counts{}, errors.New(`evaluation: header needs "malicious" and "verdict" columns`)
	}

	isPositive := make(map[schema.Verdict]bool, len(positive))
	for _, v := range positive {
		isPositive[v] = true
	}

	var c Counts
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Counts{}, fmt.Errorf("evaluation: %w", err)
		}
		mal, err := strconv.Atoi(strings.TrimSpace(rec[malCol]))
		if err != nil || (mal != 0 && mal != 1) {
			return Counts{}, fmt.Errorf("evaluation: line %d: malicious %q must be 0 or 1", line, rec[malCol])
		}
		pred := isPositive[schema.Verdict(strings.TrimSpace(rec[verdictCol]))]
		switch {
		case mal == 1 && pred:
			c.TP++
		case mal == 0 && pred:
			c.FP++
		case mal == 1:
			c.FN++
		default:
			c.TN++
		}
	}
	return c, nil
}
