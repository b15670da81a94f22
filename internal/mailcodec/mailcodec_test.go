package mailcodec

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"unpadded", "SGVsbG8", "Hello"},
		{"padded", "SGVsbG8=", "Hello"},
		{"utf8 url alphabet", base64.RawURLEncoding.EncodeToString([]byte("こんにちは ~~~??")), "こんにちは ~~~??"},
		{"std alphabet", base64.StdEncoding.EncodeToString([]byte("a?>b")), "a?>b"},
		{"malformed", "!!!not base64!!!", DecodeFailed},
		{"invalid utf8", base64.RawURLEncoding.EncodeToString([]byte{0xff, 0xfe}), DecodeFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Decode(tc.in))
		})
	}
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	properties := gopter.NewProperties(params)

	properties.Property("decode(encode(x)) == x", prop.ForAll(
		func(s string) bool {
			return Decode(Encode(s)) == s
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestBuildRawMessage(t *testing.T) {
	raw, err := BuildRawMessage("bob@example.com", "Re: Lunch", "Sounds good.\nSee you.")
	require.NoError(t, err)
	assert.NotContains(t, raw, "=")
	assert.NotContains(t, raw, "+")
	assert.NotContains(t, raw, "/")

	decoded := Decode(raw)
	assert.True(t, strings.HasPrefix(decoded, "To: bob@example.com\r\nSubject: Re: Lunch\r\n"))
	assert.True(t, strings.HasSuffix(decoded, "\r\n\r\nSounds good.\nSee you."))
}

func TestBuildRawMessage_RejectsEmptyFields(t *testing.T) {
	for _, args := range [][3]string{
		{"", "s", "b"},
		{"t@x", " ", "b"},
		{"t@x", "s", ""},
	} {
		_, err := BuildRawMessage(args[0], args[1], args[2])
		assert.ErrorIs(t, err, ErrInvalidReply)
	}
}

func TestBuildRawMessage_HeaderInjection(t *testing.T) {
	raw, err := BuildRawMessage("a@x.com\r\nBcc: evil@x.com", "hi", "body")
	require.NoError(t, err)
	assert.NotContains(t, Decode(raw), "\r\nBcc:")
}

func TestReplySubject(t *testing.T) {
	assert.Equal(t, "Re: Lunch", ReplySubject("Lunch"))
	assert.Equal(t, "RE: Lunch", ReplySubject("RE: Lunch"))
	assert.Equal(t, "", ReplySubject("  "))
}

func TestParseDate(t *testing.T) {
	d, ok := ParseDate("Tue, 1 Jul 2025 10:00:00 +0900")
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 7, 1, 1, 0, 0, 0, time.UTC), d.UTC())

	d, ok = ParseDate("2025-07-01T10:00:00Z")
	require.True(t, ok)
	assert.Equal(t, 2025, d.Year())

	for _, bad := range []string{"", "N/A", "yesterday-ish"} {
		d, ok = ParseDate(bad)
		assert.False(t, ok)
		assert.Equal(t, int64(0), d.Unix())
	}
}
