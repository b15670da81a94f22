// Package cli implements mailctl, a command line client for a running
// mailintel server and its event stream.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

var (
	serverAddr   string
	gmailToken   string
	sessionToken string
	jsonOutput   bool
)

var rootCmd = &cobra.Command{
	Use:           "mailctl",
	Short:         "Email intelligence from the command line",
	Long:          `mailctl lists senders, views threads, and runs summary, sentiment, task and reply analysis against a mailintel server.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", getEnv("MAILINTEL_SERVER", "http://localhost:8080"), "mailintel server address")
	rootCmd.PersistentFlags().StringVar(&gmailToken, "gmail-token", getEnv("GMAIL_TOKEN", ""), "Gmail OAuth access token")
	rootCmd.PersistentFlags().StringVar(&sessionToken, "session-token", getEnv("MAILINTEL_SESSION", ""), "Session token for the internal API")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	rootCmd.AddCommand(sendersCmd)
	rootCmd.AddCommand(threadCmd)
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(sentimentCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(replyCmd)
	rootCmd.AddCommand(eventsCmd)
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getClient() *Client {
	return NewClient(serverAddr, gmailToken, sessionToken)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printf(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}
