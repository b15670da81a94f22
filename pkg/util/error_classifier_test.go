package util

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
)

func TestClassifyError(t *testing.T) {
	var syntaxErr error
	syntaxErr = json.Unmarshal([]byte("{"), &struct{}{})

	cases := []struct {
		name      string
		err       error
		transient bool
		kind      string
	}{
		{"nil", nil, false, ""},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), true, "timeout"},
		{"canceled", context.Canceled, false, "context_canceled"},
		{"json", syntaxErr, false, "json_decode_error"},
		{"unauthorized", &googleapi.Error{Code: 401}, false, "unauthorized"},
		{"forbidden", &googleapi.Error{Code: 403}, false, "unauthorized"},
		{"rate limited", &googleapi.Error{Code: 429}, true, "rate_limited"},
		{"server", &googleapi.Error{Code: 503}, true, "provider_error"},
		{"bad request", &googleapi.Error{Code: 400}, false, "provider_rejected"},
		{"url", &url.Error{Op: "Get", URL: "http://x", Err: errors.New("refused")}, true, "network_error"},
		{"breaker", errors.New("circuit breaker is open"), true, "circuit_open"},
		{"other", errors.New("weird"), false, "unknown_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			transient, kind := ClassifyError(tc.err)
			assert.Equal(t, tc.transient, transient)
			assert.Equal(t, tc.kind, kind)
		})
	}
}
