package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"mailintel/internal/mailcodec"
	"mailintel/internal/model"

	"github.com/spf13/cobra"
)

var (
	msgFile    string
	msgThreads []string
	requestKey string

	replyInstruction string
	replyThread      string
	replyTo          string
	replySubject     string
	replySend        bool
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Summarize messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := getClient()
		msgs, err := loadMessages(cmd, c)
		if err != nil {
			return err
		}

		var resp model.SummaryResult
		if _, err := c.do(cmd.Context(), http.MethodPost, "/api/summarize", map[string]any{"messages": msgs}, &resp); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, resp)
		}
		printf(out, "%s\n", resp.Text)
		return nil
	},
}

var sentimentCmd = &cobra.Command{
	Use:   "sentiment",
	Short: "Score each message from 0 (negative) to 100 (positive)",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := getClient()
		msgs, err := loadMessages(cmd, c)
		if err != nil {
			return err
		}

		var resp struct {
			Results []model.SentimentResult `json:"results"`
		}
		if _, err := c.do(cmd.Context(), http.MethodPost, "/api/sentiment", map[string]any{"messages": msgs}, &resp); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, resp.Results)
		}
		for _, r := range resp.Results {
			mark := ""
			if r.Fallback {
				mark = " (fallback)"
			}
			printf(out, "%3d%s  %s  %s\n", r.Score, mark, r.Message.From, r.Message.Subject)
		}
		return nil
	},
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Extract actionable tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := getClient()
		msgs, err := loadMessages(cmd, c)
		if err != nil {
			return err
		}

		var resp struct {
			Tasks []model.TaskResult `json:"tasks"`
		}
		if _, err := c.do(cmd.Context(), http.MethodPost, "/api/tasks", map[string]any{"messages": msgs}, &resp); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, resp.Tasks)
		}
		if len(resp.Tasks) == 0 {
			printf(out, "No tasks found.\n")
			return nil
		}
		for _, t := range resp.Tasks {
			when := "-"
			if t.DateISO != nil {
				when = *t.DateISO
			}
			printf(out, "%-16s  %s\n", when, t.Task)
		}
		return nil
	},
}

var replyCmd = &cobra.Command{
	Use:   "reply",
	Short: "Draft a reply for a thread, optionally sending it",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := getClient()
		if len(msgThreads) == 0 && msgFile == "" {
			msgThreads = []string{replyThread}
		}
		msgs, err := loadMessages(cmd, c)
		if err != nil {
			return err
		}

		var resp struct {
			Response string `json:"response"`
		}
		req := map[string]any{
			"instruction": replyInstruction,
			"threadId":    replyThread,
			"messages":    msgs,
		}
		if _, err := c.do(cmd.Context(), http.MethodPost, "/api/generate", req, &resp); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if !replySend {
			if jsonOutput {
				return printJSON(out, resp)
			}
			printf(out, "%s\n", resp.Response)
			return nil
		}

		to, subject := replyTo, replySubject
		if to == "" || subject == "" {
			lastFrom, lastSubject := lastHeaders(msgs)
			if to == "" {
				to = lastFrom
			}
			if subject == "" {
				subject = mailcodec.ReplySubject(lastSubject)
			}
		}

		var sent struct {
			ID string `json:"id"`
		}
		send := map[string]string{"to": to, "subject": subject, "body": resp.Response, "threadId": replyThread}
		if _, err := c.do(cmd.Context(), http.MethodPost, "/api/send", send, &sent); err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(out, map[string]string{"response": resp.Response, "id": sent.ID})
		}
		printf(out, "%s\n\nSent (id %s)\n", resp.Response, sent.ID)
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{summarizeCmd, sentimentCmd, tasksCmd, replyCmd} {
		cmd.Flags().StringVarP(&msgFile, "file", "f", "", "Read messages from a JSON file ('-' for stdin)")
		cmd.Flags().StringSliceVarP(&msgThreads, "threads", "t", nil, "Fetch messages for these thread ids")
		cmd.Flags().StringVar(&requestKey, "request-key", "", "Key that lets a newer request supersede this one")
	}

	replyCmd.Flags().StringVarP(&replyInstruction, "instruction", "i", "", "What the reply should say (required)")
	replyCmd.Flags().StringVar(&replyThread, "thread", "", "Thread id to reply to (required)")
	replyCmd.Flags().StringVar(&replyTo, "to", "", "Recipient (defaults to the last sender)")
	replyCmd.Flags().StringVar(&replySubject, "subject", "", "Subject (defaults to Re: <last subject>)")
	replyCmd.Flags().BoolVar(&replySend, "send", false, "Send the generated reply")
	replyCmd.MarkFlagRequired("instruction")
	replyCmd.MarkFlagRequired("thread")
}

// loadMessages 从文件、stdin 或服务端读取消息
func loadMessages(cmd *cobra.Command, c *Client) ([]model.Message, error) {
	c.requestKey = requestKey

	switch {
	case msgFile != "":
		var r io.Reader = cmd.InOrStdin()
		if msgFile != "-" {
			f, err := os.Open(msgFile)
			if err != nil {
				return nil, err
			}
			defer f.Close()
			r = f
		}
		return decodeMessages(r)
	case len(msgThreads) > 0:
		return fetchMessages(cmd.Context(), c, msgThreads)
	default:
		return nil, errors.New("provide messages with --file or --threads")
	}
}

// decodeMessages 接受消息数组或 {"messages": [...]}
func decodeMessages(r io.Reader) ([]model.Message, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(string(raw))

	var msgs []model.Message
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal([]byte(trimmed), &msgs); err != nil {
			return nil, fmt.Errorf("decode messages: %w", err)
		}
		return msgs, nil
	}

	var wrapped struct {
		Messages []model.Message `json:"messages"`
	}
	if err := json.Unmarshal([]byte(trimmed), &wrapped); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	return wrapped.Messages, nil
}

func lastHeaders(msgs []model.Message) (from, subject string) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if from == "" && msgs[i].From != model.HeaderMissing {
			from = msgs[i].From
		}
		if subject == "" && msgs[i].Subject != model.HeaderMissing {
			subject = msgs[i].Subject
		}
	}
	return from, subject
}
