// Package noise classifies automated, transactional and promotional mail.
package noise

import (
	"fmt"
	"regexp"
	"sort"

	"mailintel/internal/model"
	"mailintel/pkg/metrics"
)

// Field 规则匹配的头部
type Field string

const (
	FieldFrom    Field = "from"
	FieldSubject Field = "subject"
)

// Rule 一条命名的噪声规则（不区分大小写的子串/正则匹配）
type Rule struct {
	Name    string
	Field   Field
	Pattern *regexp.Regexp
}

func (r Rule) Match(m model.Message) bool {
	switch r.Field {
	case FieldFrom:
		return r.Pattern.MatchString(m.From)
	case FieldSubject:
		return r.Pattern.MatchString(m.Subject)
	}
	return false
}

// Config 覆盖默认规则；key 为规则名，value 为正则
type Config struct {
	SenderPatterns  map[string]string `yaml:"sender_patterns"`
	SubjectPatterns map[string]string `yaml:"subject_patterns"`
	// Disabled 中的规则名不参与匹配
	Disabled []string `yaml:"disabled"`
}

// DefaultRules 是发件人和主题规则的统一表
func DefaultRules() []Rule {
	return []Rule{
		mustRule("no_reply", FieldFrom, `no-?reply`),
		mustRule("do_not_reply", FieldFrom, `do-?not-?reply`),
		mustRule("automated", FieldFrom, `automated|mailer-daemon`),
		mustRule("promo_sender", FieldFrom, `promo`),
		mustRule("newsletter", FieldFrom, `newsletter`),
		mustRule("feedback", FieldFrom, `feedback`),
		mustRule("notification", FieldFrom, `notifications?@|notification`),
		mustRule("promo_subject", FieldSubject, `promo`),
		mustRule("unsubscribe", FieldSubject, `unsubscribe`),
		mustRule("verify", FieldSubject, `verify`),
		mustRule("reset", FieldSubject, `reset`),
	}
}

func mustRule(name string, field Field, pattern string) Rule {
	return Rule{Name: name, Field: field, Pattern: regexp.MustCompile(`(?i)` + pattern)}
}

// Filter 按规则表过滤消息
type Filter struct {
	rules []Rule
}

// NewFilter builds the default table, then applies cfg overrides. A
// configured name replaces the default rule of the same name or adds one;
// added rules are appended in name order.
func NewFilter(cfg Config) (*Filter, error) {
	rules := DefaultRules()
	byName := make(map[string]int, len(rules))
	for i, r := range rules {
		byName[r.Name] = i
	}

	apply := func(field Field, patterns map[string]string) error {
		names := make([]string, 0, len(patterns))
		for name := range patterns {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			pattern := patterns[name]
			re, err := regexp.Compile(`(?i)` + pattern)
			if err != nil {
				return fmt.Errorf("noise rule %q: %w", name, err)
			}
			r := Rule{Name: name, Field: field, Pattern: re}
			if i, ok := byName[name]; ok {
				rules[i] = r
				continue
			}
			byName[name] = len(rules)
			rules = append(rules, r)
		}
		return nil
	}
	if err := apply(FieldFrom, cfg.SenderPatterns); err != nil {
		return nil, err
	}
	if err := apply(FieldSubject, cfg.SubjectPatterns); err != nil {
		return nil, err
	}

	if len(cfg.Disabled) > 0 {
		off := make(map[string]bool, len(cfg.Disabled))
		for _, n := range cfg.Disabled {
			off[n] = true
		}
		kept := rules[:0]
		for _, r := range rules {
			if !off[r.Name] {
				kept = append(kept, r)
			}
		}
		rules = kept
	}

	return &Filter{rules: rules}, nil
}

// NewDefaultFilter 使用默认规则表
func NewDefaultFilter() *Filter {
	return &Filter{rules: DefaultRules()}
}

// Classify 返回第一条命中的规则名；未命中返回 ""
func (f *Filter) Classify(m model.Message) string {
	for _, r := range f.rules {
		if r.Match(m) {
			return r.Name
		}
	}
	return ""
}

// IsNoise 命中任一规则即为噪声
func (f *Filter) IsNoise(m model.Message) bool {
	return f.Classify(m) != ""
}

// Apply returns the messages that match no rule, in input order.
func (f *Filter) Apply(messages []model.Message) []model.Message {
	kept := make([]model.Message, 0, len(messages))
	for _, m := range messages {
		if rule := f.Classify(m); rule != "" {
			metrics.IncrementNoiseExcluded(rule)
			continue
		}
		kept = append(kept, m)
	}
	return kept
}

// Rules 返回当前规则表的副本
func (f *Filter) Rules() []Rule {
	return append([]Rule(nil), f.rules...)
}
