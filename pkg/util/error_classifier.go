package util

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/url"

	"emailwriter/pkg/circuitbreaker"
)

// 失败类型，用于日志字段和 metrics label
const (
	KindNetworkTimeout  = "network_timeout"
	KindNetworkError    = "network_error"
	KindJSONDecodeError = "json_decode_error"
	KindCircuitOpen     = "circuit_open"
	KindCanceled        = "canceled"
	KindUnknown         = "unknown_error"
)

// kinded 由下游客户端的错误实现，自带失败类型
type kinded interface {
	FailureKind() string
}

// ClassifyGenerationError 把一次生成失败归类
func ClassifyGenerationError(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
		return KindCircuitOpen
	}

	var k kinded
	if errors.As(err, &k) {
		return k.FailureKind()
	}

	// JSON 解析失败（包括响应不是 JSON）
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return KindJSONDecodeError
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetworkTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return KindNetworkTimeout
		}
		return KindNetworkError
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindNetworkTimeout
		}
		return KindNetworkError
	}

	return KindUnknown
}

// IsCallerCanceled 调用方主动取消，不应算作下游故障
func IsCallerCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
