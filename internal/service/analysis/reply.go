package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mailintel/internal/genai"
	"mailintel/internal/model"

	"go.uber.org/zap"
)

// ComposeReply generates a reply for thread following instruction. Any
// provider failure, including an empty reply, returns an error wrapping
// ErrProvider; no partial text is returned.
func (o *Orchestrator) ComposeReply(ctx context.Context, instruction string, thread []model.Message) (string, error) {
	if strings.TrimSpace(instruction) == "" {
		return "", ErrNoInstruction
	}
	if !o.gen.Configured() {
		return "", genai.ErrNotConfigured
	}

	text, err := o.gen.Generate(ctx, genai.KindReply, ReplyPrompt(instruction, thread))
	if err != nil {
		if !errors.Is(err, genai.ErrEmptyResponse) {
			o.log(ctx).Error("Reply generation failed", zap.Error(err))
		}
		return "", fmt.Errorf("%w: %w", ErrProvider, err)
	}
	return strings.TrimSpace(text), nil
}
