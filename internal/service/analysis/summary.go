package analysis

import (
	"context"
	"errors"
	"fmt"

	"mailintel/internal/genai"
	"mailintel/internal/model"
	"mailintel/pkg/metrics"

	"go.uber.org/zap"
)

const (
	SummaryUnavailable = "No summary available."
	SummaryFailed      = "An error occurred while summarizing."
)

// Summarize summarizes at most the first SummaryCap messages. Provider
// problems never surface as a bare error: the result always carries text.
// A transport failure additionally returns an error wrapping ErrProvider.
func (o *Orchestrator) Summarize(ctx context.Context, msgs []model.Message) (model.SummaryResult, error) {
	if !o.gen.Configured() {
		return model.SummaryResult{}, genai.ErrNotConfigured
	}
	if len(msgs) == 0 {
		return model.SummaryResult{}, ErrNoMessages
	}
	if len(msgs) > o.cfg.SummaryCap {
		msgs = msgs[:o.cfg.SummaryCap]
	}

	text, err := o.gen.Generate(ctx, genai.KindSummarize, SummaryPrompt(msgs))
	if err == nil {
		return model.SummaryResult{Text: text}, nil
	}

	metrics.IncrementAnalysisFallback(string(genai.KindSummarize))
	var se *genai.StatusError
	if errors.Is(err, genai.ErrEmptyResponse) || errors.As(err, &se) {
		o.log(ctx).Info("Summary unavailable", zap.Error(err))
		return model.SummaryResult{Text: SummaryUnavailable, Fallback: true}, nil
	}
	o.log(ctx).Error("Summarize failed", zap.Error(err))
	return model.SummaryResult{Text: SummaryFailed, Fallback: true}, fmt.Errorf("%w: %w", ErrProvider, err)
}
