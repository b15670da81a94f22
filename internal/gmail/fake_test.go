package gmail

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeMessage struct {
	ID       string
	ThreadID string
	From     string
	Subject  string
	Date     string
	Body     string
	HTML     bool
}

// fakeGmail 模拟 Gmail REST API 的最小子集
type fakeGmail struct {
	mu         sync.Mutex
	token      string
	threads    []string
	messages   map[string][]fakeMessage
	failing    map[string]int
	delays     map[string]time.Duration
	sentRaw    []string
	sentThread []string
	requests   []string
}

func newFakeGmail() *fakeGmail {
	return &fakeGmail{
		token:    "good-token",
		messages: make(map[string][]fakeMessage),
		failing:  make(map[string]int),
		delays:   make(map[string]time.Duration),
	}
}

func (f *fakeGmail) addThread(id string, msgs ...fakeMessage) {
	f.threads = append(f.threads, id)
	for i := range msgs {
		msgs[i].ThreadID = id
	}
	f.messages[id] = msgs
}

func (f *fakeGmail) start(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func apiError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": map[string]any{"code": status, "message": msg}})
}

func (f *fakeGmail) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	token := f.token
	f.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer "+token {
		apiError(w, http.StatusUnauthorized, "Invalid Credentials")
		return
	}

	const prefix = "/gmail/v1/users/me/"
	path := strings.TrimPrefix(r.URL.Path, prefix)
	switch {
	case r.Method == http.MethodGet && path == "threads":
		f.listThreads(w, r)
	case r.Method == http.MethodGet && strings.HasPrefix(path, "threads/"):
		f.getThread(w, r, strings.TrimPrefix(path, "threads/"))
	case r.Method == http.MethodPost && path == "messages/send":
		f.send(w, r)
	default:
		apiError(w, http.StatusNotFound, "not found")
	}
}

func (f *fakeGmail) listThreads(w http.ResponseWriter, r *http.Request) {
	limit := len(f.threads)
	if v := r.URL.Query().Get("maxResults"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n < limit {
			limit = n
		}
	}
	var stubs []map[string]string
	for _, id := range f.threads[:limit] {
		stubs = append(stubs, map[string]string{"id": id})
	}
	writeJSON(w, http.StatusOK, map[string]any{"threads": stubs})
}

func (f *fakeGmail) getThread(w http.ResponseWriter, r *http.Request, id string) {
	f.mu.Lock()
	delay := f.delays[id]
	status := f.failing[id]
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if status != 0 {
		apiError(w, status, "thread failure")
		return
	}
	msgs, ok := f.messages[id]
	if !ok {
		apiError(w, http.StatusNotFound, "thread not found")
		return
	}

	full := r.URL.Query().Get("format") == "full"
	var out []map[string]any
	for _, m := range msgs {
		headers := []map[string]string{}
		if m.From != "" {
			headers = append(headers, map[string]string{"name": "From", "value": m.From})
		}
		if m.Subject != "" {
			headers = append(headers, map[string]string{"name": "Subject", "value": m.Subject})
		}
		if m.Date != "" {
			headers = append(headers, map[string]string{"name": "Date", "value": m.Date})
		}
		payload := map[string]any{"mimeType": "multipart/alternative", "headers": headers}
		if full {
			data := base64.RawURLEncoding.EncodeToString([]byte(m.Body))
			mime := "text/plain"
			if m.HTML {
				mime = "text/html"
			}
			payload["parts"] = []map[string]any{
				{"mimeType": mime, "body": map[string]any{"data": data}},
			}
		}
		out = append(out, map[string]any{"id": m.ID, "threadId": m.ThreadID, "payload": payload})
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "messages": out})
}

func (f *fakeGmail) send(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var req struct {
		Raw      string `json:"raw"`
		ThreadID string `json:"threadId"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.Raw == "" {
		apiError(w, http.StatusBadRequest, "raw required")
		return
	}
	f.mu.Lock()
	f.sentRaw = append(f.sentRaw, req.Raw)
	f.sentThread = append(f.sentThread, req.ThreadID)
	n := len(f.sentRaw)
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"id": "sent-" + string(rune('0'+n))})
}
