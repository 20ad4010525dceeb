package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrorClass represents a classification of catalog request errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors (not retried).
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassThrottle represents throttling: either HTTP 429 or the
	// catalog-specific signal embedded in an error body.
	ErrorClassThrottle ErrorClass = "throttle"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// Common errors returned by the catalog client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrThrottled is returned when the throttle tracker blocks a request
	// during a cooldown window.
	ErrThrottled = errors.New("catalog requests throttled")
)

// UpstreamError represents a catalog-specific error with additional context.
type UpstreamError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("catalog %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("catalog %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// classify categorizes an error for retry handling and observability.
func classify(err error) ErrorClass {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.ErrorClass
	}
	return ErrorClassNetwork
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// 4xx errors are not retried: the request itself is wrong.
		return false
	case ErrorClassServer:
		return true
	case ErrorClassThrottle:
		return true
	case ErrorClassNetwork:
		return true
	default:
		return false
	}
}

// errorBody is the catalog's error envelope. Throttling is sometimes
// reported with HTTP 200 semantics broken: a 4xx/5xx status whose body
// carries a rate-limit code instead of a dedicated 429.
type errorBody struct {
	Errors []struct {
		Message    string `json:"message"`
		Extensions struct {
			Code string `json:"code"`
		} `json:"extensions"`
	} `json:"errors"`
}

// isThrottleSignal reports whether a non-success response carries the
// catalog's throttling signal, either as HTTP 429 or embedded in the body.
func isThrottleSignal(statusCode int, body []byte) bool {
	if statusCode == 429 {
		return true
	}
	if len(body) == 0 {
		return false
	}

	var eb errorBody
	if err := json.Unmarshal(bytes.TrimSpace(body), &eb); err != nil {
		return false
	}
	for _, e := range eb.Errors {
		code := strings.ToLower(e.Extensions.Code)
		if code == "rate-limited" || code == "rate_limited" || code == "throttled" {
			return true
		}
		msg := strings.ToLower(e.Message)
		if strings.Contains(msg, "rate limit") || strings.Contains(msg, "throttl") {
			return true
		}
	}
	return false
}

// classifyStatus maps a non-success HTTP status plus its body to an error class.
func classifyStatus(statusCode int, body []byte) ErrorClass {
	switch {
	case isThrottleSignal(statusCode, body):
		return ErrorClassThrottle
	case statusCode >= 400 && statusCode < 500:
		return ErrorClassClient
	case statusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}
