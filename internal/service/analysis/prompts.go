package analysis

import (
	"fmt"
	"net/mail"
	"strings"

	"mailintel/internal/model"
)

const messageSeparator = "\n\n---\n\n"

func formatDate(m model.Message) string {
	if m.DateInvalid || m.Date.IsZero() {
		return "unknown"
	}
	return m.Date.Format("Mon, 02 Jan 2006 15:04:05 -0700")
}

// serializeMessages 每封邮件序列化为 FROM / DATE / MESSAGE 块
func serializeMessages(msgs []model.Message) string {
	blocks := make([]string, 0, len(msgs))
	for _, m := range msgs {
		blocks = append(blocks, fmt.Sprintf("FROM: %s\nDATE: %s\nMESSAGE:\n%s", m.From, formatDate(m), m.Body))
	}
	return strings.Join(blocks, messageSeparator)
}

// SummaryPrompt builds the summarization prompt.
func SummaryPrompt(msgs []model.Message) string {
	return "Summarize the following email conversation in 3–5 bullet points.\n" +
		"Focus on the key points, actions, and requests.\n\n" +
		serializeMessages(msgs)
}

// SentimentPrompt asks for a single 0–100 number.
func SentimentPrompt(body string) string {
	return "On a scale from 0 (super grumpy) to 100 (super friendly), rate the sentiment of this email:\n\n" +
		body +
		"\n\nRespond with only the number."
}

// TaskPrompt builds the extraction prompt. Each message carries its sent
// date so relative phrases resolve against it.
func TaskPrompt(msgs []model.Message, language string) string {
	var b strings.Builder
	b.WriteString("Extract tasks from the following email messages. ")
	b.WriteString("For each task, provide a JSON object with keys: task (string), date (YYYY-MM-DD or null), time (HH:MM or null). ")
	b.WriteString("There may be multiple tasks in one email. ")
	b.WriteString("Resolve relative dates such as \"tomorrow\" against the SENT date of the email that mentions them, not today's date. ")
	b.WriteString("Return a JSON array of these objects only, with no other text. ")
	if language != "" {
		fmt.Fprintf(&b, "Write each task in %s. ", language)
	} else {
		b.WriteString("Write each task in the language of the email it comes from. ")
	}
	b.WriteString("Order the array as follows: first the tasks with both date and time, from earliest to latest; ")
	b.WriteString("next the tasks with a date only, from earliest to latest; last the tasks with neither.\n\n")

	blocks := make([]string, 0, len(msgs))
	for _, m := range msgs {
		sent := "unknown"
		if !m.DateInvalid && !m.Date.IsZero() {
			sent = m.Date.Format("2006-01-02 (Mon) 15:04")
		}
		blocks = append(blocks, fmt.Sprintf("SENT: %s\nMESSAGE:\n%s", sent, m.Body))
	}
	b.WriteString(strings.Join(blocks, messageSeparator))
	return b.String()
}

// ReplyPrompt embeds the thread and the user's instruction.
func ReplyPrompt(instruction string, thread []model.Message) string {
	var b strings.Builder
	b.WriteString("You are composing a professional reply to the following email.")
	if len(thread) > 0 {
		b.WriteString("\n\nEmail thread:\n")
		b.WriteString(serializeMessages(thread))
		b.WriteString("\n\n")
	} else {
		b.WriteString("\n")
	}
	if name := SenderName(lastFrom(thread)); name != "" {
		fmt.Fprintf(&b, "The sender's name is %s.\n", name)
	}
	b.WriteString("Please consider the context and write a response based on the instruction below.\n")
	b.WriteString("The reply must:\n")
	b.WriteString("- Match the language used in the original email\n")
	b.WriteString("- Maintain a professional and respectful tone, even if the user instruction is casual or informal\n")
	b.WriteString("- Address the sender by name if available\n")
	b.WriteString("- Include no extra explanations or brackets, just the reply email content itself\n")
	b.WriteString("- If the sender's name is known, end the email with a sign-off; otherwise, omit the sign-off\n\n")
	fmt.Fprintf(&b, "User instruction: %q\n\n", instruction)
	b.WriteString("Write the email reply below:\n")
	return b.String()
}

func lastFrom(thread []model.Message) string {
	for i := len(thread) - 1; i >= 0; i-- {
		if f := thread[i].From; f != "" && f != model.HeaderMissing {
			return f
		}
	}
	return ""
}

// SenderName returns the display name of a From header, or "" when the
// header has none.
func SenderName(from string) string {
	if from == "" {
		return ""
	}
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(addr.Name)
}
