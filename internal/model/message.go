package model

import (
	"encoding/json"
	"time"

	"mailintel/internal/mailcodec"
)

// 缺失头部的占位值
const (
	HeaderMissing = "N/A"
	UnknownSender = "Unknown Sender"
)

// Message 规范化后的单封邮件，创建后不再修改
type Message struct {
	ID          string    `json:"id"`
	ThreadID    string    `json:"threadId"`
	From        string    `json:"from"`
	Subject     string    `json:"subject"`
	Date        time.Time `json:"date"`
	DateInvalid bool      `json:"dateInvalid,omitempty"`
	Body        string    `json:"body"`
}

// UnmarshalJSON accepts any date form the provider or a client may send.
// Unparsable or missing dates become the Unix epoch and set DateInvalid;
// a dateInvalid flag sent back by a client is kept.
func (m *Message) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID       string `json:"id"`
		ThreadID string `json:"threadId"`
		From     string `json:"from"`
		Subject  string `json:"subject"`
		Date     string `json:"date"`
		Body     string `json:"body"`

		DateInvalid bool `json:"dateInvalid"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	date, ok := mailcodec.ParseDate(raw.Date)
	if raw.DateInvalid {
		date, ok = time.Unix(0, 0).UTC(), false
	}
	*m = Message{
		ID:          raw.ID,
		ThreadID:    raw.ThreadID,
		From:        raw.From,
		Subject:     raw.Subject,
		Date:        date,
		DateInvalid: !ok,
		Body:        raw.Body,
	}
	return nil
}

// SenderGroup 某个发件人的线程集合（按检索顺序，无重复）
type SenderGroup struct {
	Sender    string   `json:"sender"`
	Count     int      `json:"count"`
	ThreadIDs []string `json:"threadIds"`
}

// ConversationGroup 同一线程内同一发件人的连续消息
type ConversationGroup struct {
	Sender   string    `json:"sender"`
	Date     time.Time `json:"date"`
	ThreadID string    `json:"threadId"`
	Messages []string  `json:"messages"`
}

// DateSection 按日期标签分段的会话组
type DateSection struct {
	Label  string              `json:"label"`
	Groups []ConversationGroup `json:"groups"`
}
