package mailcodec

import (
	"encoding/base64"
	"errors"
	"strings"
)

// ErrInvalidReply 收件人、主题或正文为空
var ErrInvalidReply = errors.New("reply requires non-empty to, subject and body")

// Encode 使用 URL-safe、无 padding 的 base64 编码
func Encode(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

// BuildRawMessage assembles an RFC 5322 message with CRLF line endings and
// returns it in the provider's transport encoding.
func BuildRawMessage(to, subject, body string) (string, error) {
	if strings.TrimSpace(to) == "" || strings.TrimSpace(subject) == "" || strings.TrimSpace(body) == "" {
		return "", ErrInvalidReply
	}
	var b strings.Builder
	b.WriteString("To: ")
	b.WriteString(singleLine(to))
	b.WriteString("\r\n")
	b.WriteString("Subject: ")
	b.WriteString(singleLine(subject))
	b.WriteString("\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return Encode(b.String()), nil
}

// ReplySubject 在主题前加 "Re: "（已有时不重复）
func ReplySubject(subject string) string {
	s := strings.TrimSpace(subject)
	if s == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(s), "re:") {
		return s
	}
	return "Re: " + s
}

// 头部值中的换行会注入额外头部
func singleLine(s string) string {
	return strings.Join(strings.Fields(strings.NewReplacer("\r", " ", "\n", " ").Replace(s)), " ")
}
