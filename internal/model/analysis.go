package model

// SummaryResult 摘要结果；Fallback 为 true 表示 Text 是降级文案
type SummaryResult struct {
	Text     string `json:"summary"`
	Fallback bool   `json:"fallback,omitempty"`
}

// SentimentResult 单封邮件的情绪分，Score 始终在 [0,100]
type SentimentResult struct {
	Message  Message `json:"message"`
	Score    int     `json:"score"`
	Fallback bool    `json:"fallback,omitempty"`
}

// TaskResult 从邮件中提取的任务
type TaskResult struct {
	Task    string  `json:"task"`
	Date    *string `json:"date"`
	DateISO *string `json:"dateISO"`
	Time    *string `json:"time"`
}

// HasDate 任务是否带日期
func (t TaskResult) HasDate() bool { return t.Date != nil && *t.Date != "" }

// HasTime 任务是否带时间
func (t TaskResult) HasTime() bool { return t.Time != nil && *t.Time != "" }
