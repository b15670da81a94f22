package analysis

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"mailintel/internal/genai"
	"mailintel/internal/model"
	"mailintel/pkg/mq"

	"go.uber.org/zap"
)

// fakeGenerator 按 prompt 内容返回预设结果
type fakeGenerator struct {
	mu         sync.Mutex
	configured bool
	respond    func(kind genai.Kind, prompt string) (string, error)
	prompts    []string
	kinds      []genai.Kind
	inFlight   int
	maxFlight  int
	delay      time.Duration
}

func newFakeGenerator(respond func(kind genai.Kind, prompt string) (string, error)) *fakeGenerator {
	return &fakeGenerator{configured: true, respond: respond}
}

func (f *fakeGenerator) Configured() bool { return f.configured }

func (f *fakeGenerator) Generate(ctx context.Context, kind genai.Kind, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.kinds = append(f.kinds, kind)
	f.inFlight++
	if f.inFlight > f.maxFlight {
		f.maxFlight = f.inFlight
	}
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
	return f.respond(kind, prompt)
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type publishedEvent struct {
	key     string
	payload any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, key string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{key: key, payload: payload})
	return p.err
}

var _ mq.EventPublisher = (*fakePublisher)(nil)

func newTestOrchestrator(t *testing.T, gen genai.Generator, pub mq.EventPublisher, cfg Config) *Orchestrator {
	t.Helper()
	o := New(gen, nil, pub, cfg, zap.NewNop())
	o.now = func() time.Time { return time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC) }
	return o
}

func message(id, from, subject, body string, date time.Time) model.Message {
	return model.Message{ID: id, ThreadID: "t1", From: from, Subject: subject, Body: body, Date: date}
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
