package mq

import "time"

// 路由键
const (
	RoutingKeyTasksExtracted = "tasks.extracted"
	RoutingKeyReplySent      = "reply.sent"
)

// TaskItem 单条提取出的任务
type TaskItem struct {
	Task string  `json:"task"`
	Date *string `json:"date"`
	Time *string `json:"time"`
}

// TasksExtractedPayload 任务提取完成事件
type TasksExtractedPayload struct {
	RequestID    string     `json:"request_id"`
	MessageCount int        `json:"message_count"`
	Tasks        []TaskItem `json:"tasks"`
	ExtractedAt  time.Time  `json:"extracted_at"`
}

// ReplySentPayload 回复发送成功事件（不包含正文）
type ReplySentPayload struct {
	RequestID string    `json:"request_id"`
	MessageID string    `json:"message_id"`
	ThreadID  string    `json:"thread_id,omitempty"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	SentAt    time.Time `json:"sent_at"`
}
