package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"mailintel/internal/gmail"
	"mailintel/internal/model"
	"mailintel/internal/service/compose"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeMail struct {
	cred     string
	limit    int
	messages []model.Message
	err      error
}

func (f *fakeMail) ListSenders(_ context.Context, cred string, limit int) ([]model.SenderGroup, error) {
	f.cred, f.limit = cred, limit
	if f.err != nil {
		return nil, f.err
	}
	return []model.SenderGroup{{Sender: "Alice <alice@x.com>", Count: 2, ThreadIDs: []string{"t1", "t2"}}}, nil
}

func (f *fakeMail) FetchMessages(_ context.Context, cred string, ids []string) ([]model.Message, error) {
	f.cred = cred
	if len(ids) == 0 {
		return nil, gmail.ErrNoThreads
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.messages, nil
}

func (f *fakeMail) FetchThreadSubjects(_ context.Context, cred string, ids []string) (map[string]string, error) {
	f.cred = cred
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		out[id] = "Subject " + id
	}
	return out, nil
}

type fakeSender struct {
	err   error
	calls int
}

func (f *fakeSender) SendMessage(context.Context, string, string, string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "sent-1", nil
}

var bearer = map[string]string{"Authorization": "Bearer gmail-token"}

func newMailRouter(mail *fakeMail, sender *fakeSender) *gin.Engine {
	h := NewMailHandler(mail, compose.New(sender, nil, zap.NewNop()), 20, zap.NewNop())
	h.now = func() time.Time { return time.Date(2025, 7, 1, 15, 0, 0, 0, time.UTC) }

	r := gin.New()
	api := r.Group("/api")
	api.GET("/senders", h.Senders)
	api.POST("/messages", h.Messages)
	api.POST("/threads/subjects", h.ThreadSubjects)
	api.POST("/threads/view", h.ThreadView)
	api.POST("/send", h.Send)
	return r
}

func TestSenders(t *testing.T) {
	mail := &fakeMail{}
	r := newMailRouter(mail, &fakeSender{})

	w := do(r, http.MethodGet, "/api/senders", "", bearer)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gmail-token", mail.cred)
	assert.Equal(t, 20, mail.limit)
	assert.Len(t, decode(t, w)["senders"], 1)

	w = do(r, http.MethodGet, "/api/senders?limit=5", "", bearer)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, mail.limit)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/senders?limit=abc", "", bearer).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/api/senders", "", nil).Code)
}

func TestMailErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{gmail.ErrUnauthorized, http.StatusUnauthorized},
		{fmt.Errorf("%w: %w", gmail.ErrAllThreadsFailed, errors.New("boom")), http.StatusBadGateway},
		{errors.New("network"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		r := newMailRouter(&fakeMail{err: tt.err}, &fakeSender{})
		w := do(r, http.MethodPost, "/api/messages", `{"threadIds":["t1"]}`, bearer)
		assert.Equal(t, tt.want, w.Code, tt.err.Error())
	}
}

func TestMessages(t *testing.T) {
	date := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	mail := &fakeMail{messages: []model.Message{{ID: "m1", ThreadID: "t1", From: "Alice", Subject: "Hi", Date: date, Body: "hello"}}}
	r := newMailRouter(mail, &fakeSender{})

	w := do(r, http.MethodPost, "/api/messages", `{"threadIds":["t1"]}`, bearer)
	require.Equal(t, http.StatusOK, w.Code)
	msgs := decode(t, w)["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].(map[string]any)["id"])

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/messages", `{"threadIds":[]}`, bearer).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/messages", `oops`, bearer).Code)
}

func TestThreadSubjects(t *testing.T) {
	r := newMailRouter(&fakeMail{}, &fakeSender{})
	w := do(r, http.MethodPost, "/api/threads/subjects", `{"threadIds":["a","b"]}`, bearer)
	require.Equal(t, http.StatusOK, w.Code)
	subjects := decode(t, w)["subjects"].(map[string]any)
	assert.Equal(t, "Subject a", subjects["a"])
	assert.Equal(t, "Subject b", subjects["b"])
}

func TestThreadView(t *testing.T) {
	today := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)
	mail := &fakeMail{messages: []model.Message{
		{ID: "m1", ThreadID: "t1", From: "Alice", Date: yesterday, Body: "one"},
		{ID: "m2", ThreadID: "t1", From: "Alice", Date: yesterday.Add(time.Hour), Body: "two"},
		{ID: "m3", ThreadID: "t2", From: "Bob", Date: today, Body: "three"},
	}}
	r := newMailRouter(mail, &fakeSender{})

	w := do(r, http.MethodPost, "/api/threads/view", `{"threadIds":["t1","t2"]}`, bearer)
	require.Equal(t, http.StatusOK, w.Code)

	sections := decode(t, w)["sections"].([]any)
	require.Len(t, sections, 2)
	first := sections[0].(map[string]any)
	assert.Equal(t, "Yesterday", first["label"])
	groups := first["groups"].([]any)
	require.Len(t, groups, 1)
	assert.Equal(t, []any{"one", "two"}, groups[0].(map[string]any)["messages"])
	assert.Equal(t, "Today", sections[1].(map[string]any)["label"])

	subjects := decode(t, w)["subjects"].(map[string]any)
	assert.Len(t, subjects, 2)
}

func TestSend(t *testing.T) {
	sender := &fakeSender{}
	r := newMailRouter(&fakeMail{}, sender)

	w := do(r, http.MethodPost, "/api/send", `{"to":"bob@x.com","subject":"Re: Plan","body":"OK","threadId":"t1"}`, bearer)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sent-1", decode(t, w)["id"])

	w = do(r, http.MethodPost, "/api/send", `{"to":"","subject":"x","body":"y"}`, bearer)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 1, sender.calls)

	sender.err = gmail.ErrUnauthorized
	w = do(r, http.MethodPost, "/api/send", `{"to":"bob@x.com","subject":"s","body":"b"}`, bearer)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	sender.err = errors.New("quota")
	w = do(r, http.MethodPost, "/api/send", `{"to":"bob@x.com","subject":"s","body":"b"}`, bearer)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
