// Package mailcodec converts between provider transport encodings and text.
package mailcodec

import (
	"encoding/base64"
	"strings"
	"unicode/utf8"
)

// DecodeFailed 是无法解码时返回的标记文本
const DecodeFailed = "[Unable to decode message]"

// Decode turns a URL-safe base64 body into text. Padding is optional and
// standard-alphabet input is tolerated. Malformed input yields DecodeFailed.
func Decode(data string) string {
	if data == "" {
		return ""
	}
	s := strings.TrimRight(data, "=")
	s = strings.NewReplacer("+", "-", "/", "_", "\r", "", "\n", "").Replace(s)

	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil || !utf8.Valid(b) {
		return DecodeFailed
	}
	return string(b)
}
