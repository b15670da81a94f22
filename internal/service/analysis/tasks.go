package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	contractmq "mailintel/contracts/mq"
	"mailintel/internal/genai"
	"mailintel/internal/model"
	"mailintel/pkg/metrics"
	"mailintel/pkg/trace"

	"go.uber.org/zap"
)

var (
	fenceOpen  = regexp.MustCompile("^```\\w*\\s*")
	fenceClose = regexp.MustCompile("\\s*```$")
)

// StripCodeFence removes a leading ```lang marker and a trailing ```.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = fenceOpen.ReplaceAllString(s, "")
	s = fenceClose.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

type rawTask struct {
	Task string  `json:"task"`
	Date *string `json:"date"`
	Time *string `json:"time"`
}

// ParseTasks parses model output into tasks. Anything that is not a JSON
// array of objects returns ErrTaskParse. An empty array is a valid result.
// Entries without task text, such as null elements, are dropped.
func ParseTasks(text string) ([]model.TaskResult, error) {
	var raw []rawTask
	body := StripCodeFence(text)
	if !strings.HasPrefix(body, "[") {
		return nil, fmt.Errorf("%w: not a JSON array", ErrTaskParse)
	}
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTaskParse, err)
	}

	tasks := make([]model.TaskResult, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r.Task) == "" {
			continue
		}
		t := model.TaskResult{
			Task: strings.TrimSpace(r.Task),
			Date: nonEmpty(r.Date),
			Time: nonEmpty(r.Time),
		}
		t.DateISO = dateISO(t)
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" || strings.EqualFold(v, "null") {
		return nil
	}
	return &v
}

func parseTaskDate(t model.TaskResult) (time.Time, bool) {
	if !t.HasDate() {
		return time.Time{}, false
	}
	d, err := time.Parse("2006-01-02", *t.Date)
	return d, err == nil
}

func parseTaskTime(t model.TaskResult) (time.Duration, bool) {
	if !t.HasTime() {
		return 0, false
	}
	c, err := time.Parse("15:04", *t.Time)
	if err != nil {
		return 0, false
	}
	return time.Duration(c.Hour())*time.Hour + time.Duration(c.Minute())*time.Minute, true
}

// dateISO 日期和时间都有效时为 YYYY-MM-DDTHH:MM，只有日期时为 YYYY-MM-DD
func dateISO(t model.TaskResult) *string {
	d, ok := parseTaskDate(t)
	if !ok {
		return nil
	}
	s := d.Format("2006-01-02")
	if offset, ok := parseTaskTime(t); ok {
		s = d.Add(offset).Format("2006-01-02T15:04")
	}
	return &s
}

// SortTasks orders tasks with date and time first, then date only, then
// the rest. Each band is ascending; ties keep input order.
func SortTasks(tasks []model.TaskResult) {
	type key struct {
		band int
		at   time.Time
	}
	keys := make(map[int]key, len(tasks))
	idx := make([]int, len(tasks))
	for i, t := range tasks {
		idx[i] = i
		d, hasDate := parseTaskDate(t)
		offset, hasTime := parseTaskTime(t)
		switch {
		case hasDate && hasTime:
			keys[i] = key{band: 0, at: d.Add(offset)}
		case hasDate:
			keys[i] = key{band: 1, at: d}
		default:
			keys[i] = key{band: 2}
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ka, kb := keys[idx[a]], keys[idx[b]]
		if ka.band != kb.band {
			return ka.band < kb.band
		}
		return ka.at.Before(kb.at)
	})
	sorted := make([]model.TaskResult, len(tasks))
	for i, j := range idx {
		sorted[i] = tasks[j]
	}
	copy(tasks, sorted)
}

// ExtractTasks runs one extraction over the non-noise messages. When the
// filter removes everything it returns an empty list without calling the
// provider. Provider failures wrap ErrProvider; unparsable output returns
// ErrTaskParse.
func (o *Orchestrator) ExtractTasks(ctx context.Context, msgs []model.Message) ([]model.TaskResult, error) {
	kept := o.filter.Apply(msgs)
	if len(kept) == 0 {
		return []model.TaskResult{}, nil
	}
	if !o.gen.Configured() {
		return nil, genai.ErrNotConfigured
	}

	text, err := o.gen.Generate(ctx, genai.KindTasks, TaskPrompt(kept, o.cfg.TaskLanguage))
	if errors.Is(err, genai.ErrEmptyResponse) {
		text, err = "", nil
	}
	if err != nil {
		metrics.IncrementAnalysisFallback(string(genai.KindTasks))
		return nil, fmt.Errorf("%w: %w", ErrProvider, err)
	}

	tasks, err := ParseTasks(text)
	if err != nil {
		metrics.IncrementAnalysisFallback("tasks_parse")
		o.log(ctx).Error("Failed to parse tasks JSON", zap.String("raw", text), zap.Error(err))
		return nil, err
	}
	SortTasks(tasks)

	o.publishTasks(ctx, len(kept), tasks)
	return tasks, nil
}

func (o *Orchestrator) publishTasks(ctx context.Context, messageCount int, tasks []model.TaskResult) {
	items := make([]contractmq.TaskItem, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, contractmq.TaskItem{Task: t.Task, Date: t.Date, Time: t.Time})
	}
	err := o.publisher.Publish(ctx, contractmq.RoutingKeyTasksExtracted, contractmq.TasksExtractedPayload{
		RequestID:    trace.FromContext(ctx),
		MessageCount: messageCount,
		Tasks:        items,
		ExtractedAt:  o.now().UTC(),
	})
	if err != nil {
		// 事件是旁路通知，失败不影响结果
		o.log(ctx).Warn("Failed to publish tasks.extracted", zap.Error(err))
	}
}
