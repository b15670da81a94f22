package analysis

import (
	"context"
	"regexp"
	"sort"
	"strconv"

	"mailintel/internal/genai"
	"mailintel/internal/model"
	"mailintel/pkg/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// NeutralScore 无法得到分数时的默认值
const NeutralScore = 50

var scorePattern = regexp.MustCompile(`\d{1,3}`)

// ParseScore takes the first run of one to three digits and clamps it to
// [0,100]. Text without digits yields NeutralScore and ok=false.
func ParseScore(text string) (score int, ok bool) {
	m := scorePattern.FindString(text)
	if m == "" {
		return NeutralScore, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return NeutralScore, false
	}
	return clamp(n, 0, 100), true
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// ScorePrompt scores one prompt. Any failure yields NeutralScore with
// fallback=true.
func (o *Orchestrator) ScorePrompt(ctx context.Context, prompt string) (score int, fallback bool) {
	text, err := o.gen.Generate(ctx, genai.KindSentiment, prompt)
	if err != nil {
		metrics.IncrementAnalysisFallback(string(genai.KindSentiment))
		o.log(ctx).Debug("Sentiment call failed, using neutral score", zap.Error(err))
		return NeutralScore, true
	}
	score, ok := ParseScore(text)
	if !ok {
		metrics.IncrementAnalysisFallback(string(genai.KindSentiment))
		o.log(ctx).Debug("Sentiment reply has no number", zap.String("reply", text))
		return NeutralScore, true
	}
	return score, false
}

// ScoreSentiment scores each non-noise message with one call per message
// and bounded parallelism. Results are sorted ascending by score once every
// call has settled; ties keep input order.
func (o *Orchestrator) ScoreSentiment(ctx context.Context, msgs []model.Message) []model.SentimentResult {
	kept := o.filter.Apply(msgs)
	results := make([]model.SentimentResult, len(kept))
	if len(kept) == 0 {
		return results
	}

	g := new(errgroup.Group)
	g.SetLimit(o.cfg.SentimentConcurrency)
	for i, m := range kept {
		i, m := i, m
		g.Go(func() error {
			score, fallback := o.ScorePrompt(ctx, SentimentPrompt(m.Body))
			results[i] = model.SentimentResult{Message: m, Score: score, Fallback: fallback}
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score < results[j].Score
	})
	return results
}
