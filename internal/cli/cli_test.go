package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	contractmq "mailintel/contracts/mq"
	"mailintel/pkg/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method, path, auth, session, requestKey string
	body                                    map[string]any
}

func fakeServer(t *testing.T, routes map[string]string) (*httptest.Server, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{
			method:     r.Method,
			path:       r.URL.Path,
			auth:       r.Header.Get("Authorization"),
			session:    r.Header.Get(util.SessionHeader),
			requestKey: r.Header.Get("X-Request-Key"),
		}
		if b, _ := io.ReadAll(r.Body); len(b) > 0 {
			_ = json.Unmarshal(b, &rec.body)
		}
		calls = append(calls, rec)

		resp, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not found"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(resp))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func run(t *testing.T, srv *httptest.Server, stdin string, args ...string) (string, error) {
	t.Helper()
	msgFile, msgThreads, requestKey = "", nil, ""
	replyInstruction, replyThread, replyTo, replySubject, replySend = "", "", "", "", false
	sendersLimit, jsonOutput = 0, false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append([]string{"--server", srv.URL, "--gmail-token", "g-tok", "--session-token", "s-tok"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

const messagesJSON = `[{"id":"m1","threadId":"t1","from":"Alice <alice@x.com>","subject":"Plan","date":"2025-06-30T10:00:00Z","body":"Let's meet Friday"}]`

func TestSendersCommand(t *testing.T) {
	srv, calls := fakeServer(t, map[string]string{
		"GET /api/senders": `{"senders":[{"sender":"Alice <alice@x.com>","count":3,"threadIds":["t1","t2","t3"]}]}`,
	})

	out, err := run(t, srv, "", "senders", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "3  Alice <alice@x.com>")

	require.Len(t, *calls, 1)
	c := (*calls)[0]
	assert.Equal(t, "Bearer g-tok", c.auth)
	assert.Equal(t, "s-tok", c.session)
}

func TestThreadViewCommand(t *testing.T) {
	srv, calls := fakeServer(t, map[string]string{
		"POST /api/threads/view": `{"sections":[{"label":"Today","groups":[{"sender":"Bob","date":"2025-07-01T09:00:00Z","threadId":"t1","messages":["hello\nsecond line"]}]}]}`,
	})

	out, err := run(t, srv, "", "thread", "view", "t1", "t2")
	require.NoError(t, err)
	assert.Contains(t, out, "== Today ==")
	assert.Contains(t, out, "    hello\n")
	assert.NotContains(t, out, "second line")
	assert.Equal(t, []any{"t1", "t2"}, (*calls)[0].body["threadIds"])
}

func TestSummarizeFromStdin(t *testing.T) {
	srv, calls := fakeServer(t, map[string]string{
		"POST /api/summarize": `{"summary":"Alice wants to meet."}`,
	})

	out, err := run(t, srv, messagesJSON, "summarize", "--file", "-", "--request-key", "inbox")
	require.NoError(t, err)
	assert.Equal(t, "Alice wants to meet.\n", out)

	c := (*calls)[0]
	assert.Equal(t, "inbox", c.requestKey)
	msgs := c.body["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].(map[string]any)["id"])
}

func TestTasksFromThreads(t *testing.T) {
	srv, calls := fakeServer(t, map[string]string{
		"POST /api/messages": `{"messages":` + messagesJSON + `}`,
		"POST /api/tasks":    `{"tasks":[{"task":"Meet Alice","date":"2025-07-04","time":null,"dateISO":"2025-07-04"}]}`,
	})

	out, err := run(t, srv, "", "tasks", "--threads", "t1")
	require.NoError(t, err)
	assert.Contains(t, out, "2025-07-04")
	assert.Contains(t, out, "Meet Alice")

	require.Len(t, *calls, 2)
	assert.Equal(t, "/api/messages", (*calls)[0].path)
	assert.Equal(t, "/api/tasks", (*calls)[1].path)
}

func TestSentimentFromFile(t *testing.T) {
	srv, _ := fakeServer(t, map[string]string{
		"POST /api/sentiment": `{"results":[{"message":{"id":"m1","from":"Alice","subject":"Plan","date":"2025-06-30T10:00:00Z"},"score":20},{"message":{"id":"m2","from":"Bob","subject":"Yay","date":""},"score":50,"fallback":true}]}`,
	})

	path := filepath.Join(t.TempDir(), "msgs.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"messages":`+messagesJSON+`}`), 0o644))

	out, err := run(t, srv, "", "sentiment", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, " 20  Alice  Plan")
	assert.Contains(t, out, " 50 (fallback)  Bob  Yay")
}

func TestReplyAndSend(t *testing.T) {
	srv, calls := fakeServer(t, map[string]string{
		"POST /api/messages": `{"messages":` + messagesJSON + `}`,
		"POST /api/generate": `{"response":"Friday works."}`,
		"POST /api/send":     `{"id":"sent-9","status":"sent"}`,
	})

	out, err := run(t, srv, "", "reply", "--thread", "t1", "-i", "accept", "--send")
	require.NoError(t, err)
	assert.Contains(t, out, "Sent (id sent-9)")

	require.Len(t, *calls, 3)
	gen := (*calls)[1]
	assert.Equal(t, "accept", gen.body["instruction"])
	assert.Equal(t, "t1", gen.body["threadId"])

	send := (*calls)[2]
	assert.Equal(t, "Alice <alice@x.com>", send.body["to"])
	assert.Equal(t, "Re: Plan", send.body["subject"])
	assert.Equal(t, "Friday works.", send.body["body"])
}

func TestAPIErrorSurfaces(t *testing.T) {
	srv, _ := fakeServer(t, map[string]string{})

	_, err := run(t, srv, "", "senders")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestMissingMessageSource(t *testing.T) {
	srv, _ := fakeServer(t, map[string]string{})
	_, err := run(t, srv, "", "summarize")
	assert.Error(t, err)
}

func TestPrintEvent(t *testing.T) {
	var buf bytes.Buffer
	date := "2025-07-04"
	tasks, _ := json.Marshal(contractmq.TasksExtractedPayload{
		MessageCount: 2,
		Tasks:        []contractmq.TaskItem{{Task: "Pay rent", Date: &date}},
		ExtractedAt:  time.Now(),
	})
	require.NoError(t, printEvent(&buf, contractmq.RoutingKeyTasksExtracted, tasks))
	assert.Contains(t, buf.String(), "1 task(s) from 2 message(s)")
	assert.Contains(t, buf.String(), "- Pay rent")

	buf.Reset()
	sent, _ := json.Marshal(contractmq.ReplySentPayload{To: "bob@x.com", Subject: "Re: Hi", SentAt: time.Now()})
	require.NoError(t, printEvent(&buf, contractmq.RoutingKeyReplySent, sent))
	assert.Contains(t, buf.String(), "reply sent to bob@x.com: Re: Hi")

	assert.Error(t, printEvent(&buf, contractmq.RoutingKeyReplySent, []byte("{")))
}
