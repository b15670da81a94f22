package analysis

import (
	"context"
	"testing"
	"time"

	"mailintel/internal/genai"
	"mailintel/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeReply(t *testing.T) {
	g := newFakeGenerator(func(genai.Kind, string) (string, error) { return "  Dear Jane,\nThanks.\n", nil })
	o := newTestOrchestrator(t, g, nil, Config{})

	thread := []model.Message{
		message("1", "Jane Doe <jane@x.com>", "Lunch", "Are you free on Friday?", time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)),
	}
	out, err := o.ComposeReply(context.Background(), "say yes, casually", thread)
	require.NoError(t, err)
	assert.Equal(t, "Dear Jane,\nThanks.", out)

	p := g.prompts[0]
	assert.True(t, containsAll(p,
		"Email thread:",
		"Are you free on Friday?",
		"The sender's name is Jane Doe.",
		"Match the language used in the original email",
		"professional and respectful tone",
		"Address the sender by name",
		"no extra explanations",
		"omit the sign-off",
		`User instruction: "say yes, casually"`,
	))
	assert.Equal(t, genai.KindReply, g.kinds[0])
}

func TestComposeReply_Errors(t *testing.T) {
	g := newFakeGenerator(func(genai.Kind, string) (string, error) { return "", genai.ErrEmptyResponse })
	o := newTestOrchestrator(t, g, nil, Config{})

	_, err := o.ComposeReply(context.Background(), "  ", nil)
	assert.ErrorIs(t, err, ErrNoInstruction)

	_, err = o.ComposeReply(context.Background(), "reply", nil)
	assert.ErrorIs(t, err, ErrProvider)

	g.configured = false
	_, err = o.ComposeReply(context.Background(), "reply", nil)
	assert.ErrorIs(t, err, genai.ErrNotConfigured)
}

func TestSenderName(t *testing.T) {
	assert.Equal(t, "Jane Doe", SenderName("Jane Doe <jane@x.com>"))
	assert.Equal(t, "山田 太郎", SenderName("=?UTF-8?B?5bGx55SwIOWkqumDjg==?= <t@x.jp>"))
	assert.Equal(t, "", SenderName("jane@x.com"))
	assert.Equal(t, "", SenderName("N/A"))
	assert.Equal(t, "", SenderName(""))
}

func TestReplyPrompt_NoThread(t *testing.T) {
	p := ReplyPrompt("decline politely", nil)
	assert.NotContains(t, p, "Email thread:")
	assert.NotContains(t, p, "The sender's name is")
	assert.Contains(t, p, `User instruction: "decline politely"`)
}
