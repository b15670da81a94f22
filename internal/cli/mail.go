package cli

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"mailintel/internal/model"

	"github.com/spf13/cobra"
)

var sendersLimit int

var sendersCmd = &cobra.Command{
	Use:   "senders",
	Short: "List recent threads grouped by sender",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/api/senders"
		if sendersLimit > 0 {
			path += "?limit=" + strconv.Itoa(sendersLimit)
		}

		var resp struct {
			Senders []model.SenderGroup `json:"senders"`
		}
		if _, err := getClient().do(cmd.Context(), http.MethodGet, path, nil, &resp); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, resp.Senders)
		}
		for _, s := range resp.Senders {
			printf(out, "%3d  %s\n", s.Count, s.Sender)
		}
		return nil
	},
}

var threadCmd = &cobra.Command{
	Use:   "thread",
	Short: "Inspect threads",
}

var threadViewCmd = &cobra.Command{
	Use:   "view <thread-id>...",
	Short: "Show threads grouped by sender and day",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Sections []model.DateSection `json:"sections"`
		}
		req := map[string][]string{"threadIds": args}
		if _, err := getClient().do(cmd.Context(), http.MethodPost, "/api/threads/view", req, &resp); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, resp.Sections)
		}
		for _, section := range resp.Sections {
			printf(out, "== %s ==\n", section.Label)
			for _, g := range section.Groups {
				printf(out, "%s  [%s]\n", g.Sender, g.Date.Local().Format("15:04"))
				for _, body := range g.Messages {
					printf(out, "    %s\n", firstLine(body))
				}
			}
		}
		return nil
	},
}

var threadSubjectsCmd = &cobra.Command{
	Use:   "subjects <thread-id>...",
	Short: "Show the subject of each thread",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Subjects map[string]string `json:"subjects"`
		}
		req := map[string][]string{"threadIds": args}
		if _, err := getClient().do(cmd.Context(), http.MethodPost, "/api/threads/subjects", req, &resp); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, resp.Subjects)
		}
		for _, id := range args {
			if s, ok := resp.Subjects[id]; ok {
				printf(out, "%s  %s\n", id, s)
			}
		}
		return nil
	},
}

func init() {
	sendersCmd.Flags().IntVarP(&sendersLimit, "limit", "n", 0, "Number of recent threads to scan (server default when 0)")

	threadCmd.AddCommand(threadViewCmd)
	threadCmd.AddCommand(threadSubjectsCmd)
}

// fetchMessages 通过服务端拉取线程消息
func fetchMessages(ctx context.Context, c *Client, threadIDs []string) ([]model.Message, error) {
	var resp struct {
		Messages []model.Message `json:"messages"`
	}
	req := map[string][]string{"threadIds": threadIDs}
	if _, err := c.do(ctx, http.MethodPost, "/api/messages", req, &resp); err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	return resp.Messages, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if r := []rune(s); len(r) > 100 {
		s = string(r[:100]) + "..."
	}
	return s
}
