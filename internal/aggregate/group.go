// Package aggregate groups, orders and labels decoded messages.
package aggregate

import (
	"sort"

	"mailintel/internal/model"
)

// GroupBySenderAndThread starts a new group whenever the (threadId, from)
// pair differs from the previous message. Input order is preserved.
func GroupBySenderAndThread(messages []model.Message) []model.ConversationGroup {
	groups := make([]model.ConversationGroup, 0)
	var lastThread, lastFrom string
	for i, msg := range messages {
		if i == 0 || msg.ThreadID != lastThread || msg.From != lastFrom {
			groups = append(groups, model.ConversationGroup{
				Sender:   msg.From,
				Date:     msg.Date,
				ThreadID: msg.ThreadID,
				Messages: []string{msg.Body},
			})
			lastThread, lastFrom = msg.ThreadID, msg.From
			continue
		}
		last := &groups[len(groups)-1]
		last.Messages = append(last.Messages, msg.Body)
	}
	return groups
}

// SortByDate returns a copy sorted ascending by date. Equal dates keep
// their input order.
func SortByDate(messages []model.Message) []model.Message {
	out := make([]model.Message, len(messages))
	copy(out, messages)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// SenderIndex 按发件人累积线程，保持首次出现顺序
type SenderIndex struct {
	order  []string
	groups map[string]*model.SenderGroup
}

func NewSenderIndex() *SenderIndex {
	return &SenderIndex{groups: make(map[string]*model.SenderGroup)}
}

// Add records threadID under sender. A thread already recorded for the
// sender is ignored so counts stay distinct.
func (s *SenderIndex) Add(sender, threadID string) {
	g, ok := s.groups[sender]
	if !ok {
		g = &model.SenderGroup{Sender: sender}
		s.groups[sender] = g
		s.order = append(s.order, sender)
	}
	for _, id := range g.ThreadIDs {
		if id == threadID {
			return
		}
	}
	g.ThreadIDs = append(g.ThreadIDs, threadID)
	g.Count = len(g.ThreadIDs)
}

// Groups 返回发件人分组（首次出现顺序）
func (s *SenderIndex) Groups() []model.SenderGroup {
	out := make([]model.SenderGroup, 0, len(s.order))
	for _, sender := range s.order {
		g := s.groups[sender]
		out = append(out, model.SenderGroup{
			Sender:    g.Sender,
			Count:     g.Count,
			ThreadIDs: append([]string(nil), g.ThreadIDs...),
		})
	}
	return out
}
