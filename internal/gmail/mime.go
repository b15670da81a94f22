package gmail

import (
	"strings"

	"mailintel/internal/mailcodec"
	"mailintel/internal/model"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	gmailv1 "google.golang.org/api/gmail/v1"
)

func toMessage(m *gmailv1.Message, threadID string) model.Message {
	if m.ThreadId != "" {
		threadID = m.ThreadId
	}
	date, ok := mailcodec.ParseDate(headerOr(m.Payload, "Date", ""))
	return model.Message{
		ID:          m.Id,
		ThreadID:    threadID,
		From:        headerOr(m.Payload, "From", model.HeaderMissing),
		Subject:     headerOr(m.Payload, "Subject", model.HeaderMissing),
		Date:        date,
		DateInvalid: !ok,
		Body:        extractBody(m.Payload),
	}
}

func headerOr(p *gmailv1.MessagePart, name, fallback string) string {
	if p == nil {
		return fallback
	}
	for _, h := range p.Headers {
		if strings.EqualFold(h.Name, name) && h.Value != "" {
			return h.Value
		}
	}
	return fallback
}

// extractBody prefers the first text/plain part anywhere in the tree, then
// the top-level payload body, then a text/html part with tags stripped.
func extractBody(p *gmailv1.MessagePart) string {
	if p == nil {
		return ""
	}
	if part := findPart(p, "text/plain"); part != nil {
		return mailcodec.Decode(part.Body.Data)
	}
	if p.Body != nil && p.Body.Data != "" {
		text := mailcodec.Decode(p.Body.Data)
		if strings.EqualFold(p.MimeType, "text/html") && text != mailcodec.DecodeFailed {
			return stripHTMLTags(text)
		}
		return text
	}
	if part := findPart(p, "text/html"); part != nil {
		text := mailcodec.Decode(part.Body.Data)
		if text == mailcodec.DecodeFailed {
			return text
		}
		return stripHTMLTags(text)
	}
	return ""
}

// findPart 深度优先查找第一个带数据的指定类型 part
func findPart(p *gmailv1.MessagePart, mimeType string) *gmailv1.MessagePart {
	if strings.EqualFold(p.MimeType, mimeType) && p.Body != nil && p.Body.Data != "" {
		return p
	}
	for _, sub := range p.Parts {
		if sub == nil {
			continue
		}
		if found := findPart(sub, mimeType); found != nil {
			return found
		}
	}
	return nil
}

// stripHTMLTags 解析 HTML 取可见文本，实体由解析器解码；块级元素结束和 <br> 处换行
func stripHTMLTags(src string) string {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return strings.TrimSpace(html.UnescapeString(src))
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Head, atom.Noscript:
				return
			case atom.Br:
				b.WriteString("\n")
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.P, atom.Div, atom.Tr, atom.Li, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
				b.WriteString("\n")
			}
		}
	}
	walk(doc)

	result := strings.ReplaceAll(b.String(), "\u00a0", " ")
	for strings.Contains(result, "\n\n\n") {
		result = strings.ReplaceAll(result, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(result)
}
