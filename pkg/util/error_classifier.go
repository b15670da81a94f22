package util

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/url"
	"strings"

	"google.golang.org/api/googleapi"
)

// ClassifyError 给错误打标签，用于日志和指标
// 返回: (isTransient, errorType)
func ClassifyError(err error) (bool, string) {
	if err == nil {
		return false, ""
	}

	// Context 超时 / 取消
	if errors.Is(err, context.DeadlineExceeded) {
		return true, "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return false, "context_canceled"
	}

	// JSON 解析错误 - 数据格式错误
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return false, "json_decode_error"
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return false, "json_decode_error"
	}

	// Gmail API 错误，按状态码区分
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		switch {
		case gErr.Code == 401 || gErr.Code == 403:
			return false, "unauthorized"
		case gErr.Code == 404:
			return false, "not_found"
		case gErr.Code == 429:
			return true, "rate_limited"
		case gErr.Code >= 500:
			return true, "provider_error"
		default:
			return false, "provider_rejected"
		}
	}

	// 网络错误
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return true, "network_timeout"
		}
		return true, "network_error"
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true, "network_timeout"
		}
		return true, "network_error"
	}

	if strings.Contains(err.Error(), "circuit breaker is open") {
		return true, "circuit_open"
	}

	// 默认：未知错误
	return false, "unknown_error"
}
