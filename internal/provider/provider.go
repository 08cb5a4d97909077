// Package provider defines the capability set every LLM research provider
// must expose to the fallback manager and cross-validator (C5 Provider
// Abstraction). The provider set is closed at the interface level; callers
// depend only on this abstraction, never on a concrete vendor client.
package provider

import (
	"context"
	"fmt"
	"time"
)

// Provider is the capability set every research provider exposes.
type Provider interface {
	// Name identifies the provider for logging, metrics, and error
	// attribution (e.g. "anthropic", "openai").
	Name() string

	// ResearchQuery answers a normalized query with free-form text, or a
	// *Error on failure.
	ResearchQuery(ctx context.Context, query string) (string, error)

	// Metadata describes the provider's identity and declared capabilities.
	Metadata() Metadata

	// HealthCheck probes the provider and reports its current Health.
	HealthCheck(ctx context.Context) Health

	// EstimateCost projects the resource cost of answering query without
	// actually issuing the call.
	EstimateCost(ctx context.Context, query string) (CostEstimate, error)

	// UsageStats returns cumulative counters since the provider was
	// constructed or last reset.
	UsageStats() UsageStats
}

// Metadata is a provider's static identity and capability declaration.
type Metadata struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities"`
}

// HealthState is the provider's current standing, as tracked by the
// fallback manager's health monitor.
type HealthState string

const (
	HealthHealthy   HealthState = "healthy"
	HealthDegraded  HealthState = "degraded"
	HealthUnhealthy HealthState = "unhealthy"
)

// Health carries a HealthState plus the reason for a non-healthy state.
type Health struct {
	State  HealthState `json:"state"`
	Reason string      `json:"reason,omitempty"`
}

// Healthy reports a Healthy result with no reason attached.
func Healthy() Health { return Health{State: HealthHealthy} }

// Degraded reports a Degraded result carrying why.
func Degraded(reason string) Health { return Health{State: HealthDegraded, Reason: reason} }

// Unhealthy reports an Unhealthy result carrying why.
func Unhealthy(reason string) Health { return Health{State: HealthUnhealthy, Reason: reason} }

// CostEstimate projects the resource cost of a query before issuing it.
type CostEstimate struct {
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	Duration     time.Duration `json:"duration"`
	CostUSD      *float64      `json:"cost_usd,omitempty"`
}

// UsageStats is the cumulative counters a provider reports.
type UsageStats struct {
	TotalRequests      int64 `json:"total_requests"`
	SuccessfulRequests int64 `json:"successful_requests"`
	FailedRequests     int64 `json:"failed_requests"`
	TotalInputTokens   int64 `json:"total_input_tokens"`
	TotalOutputTokens  int64 `json:"total_output_tokens"`
}

// ErrorCode names a ProviderError variant, mirroring §4.5's closed set.
type ErrorCode string

const (
	CodeQueryFailed         ErrorCode = "query_failed"
	CodeServiceUnavailable  ErrorCode = "service_unavailable"
	CodeRateLimitExceeded   ErrorCode = "rate_limit_exceeded"
	CodeAuthenticationFailed ErrorCode = "authentication_failed"
	CodeInvalidResponse     ErrorCode = "invalid_response"
	CodeTimeout             ErrorCode = "timeout"
)

// Error is the provider-attributed error returned by any Provider method.
// Every variant carries the provider name, per §4.5.
type Error struct {
	Provider string
	Code     ErrorCode
	Message  string

	// QueryFailed
	InternalCode string

	// ServiceUnavailable
	EstimatedRecovery *time.Duration

	// RateLimitExceeded
	Current int
	Limit   int
}

func (e *Error) Error() string {
	switch e.Code {
	case CodeRateLimitExceeded:
		return fmt.Sprintf("%s: rate limit exceeded (%d/%d)", e.Provider, e.Current, e.Limit)
	default:
		return fmt.Sprintf("%s: %s: %s", e.Provider, e.Code, e.Message)
	}
}

// Retryable reports whether the failover protocol should treat this error
// as transient (§4.6 Failure semantics): Timeout, RateLimitExceeded, and
// ServiceUnavailable are retried via failover; AuthenticationFailed and
// InvalidResponse are fatal for the request within that provider.
func (e *Error) Retryable() bool {
	switch e.Code {
	case CodeTimeout, CodeRateLimitExceeded, CodeServiceUnavailable:
		return true
	default:
		return false
	}
}

// QueryFailed builds a QueryFailed ProviderError.
func QueryFailed(provider, message, code string) *Error {
	return &Error{Provider: provider, Code: CodeQueryFailed, Message: message, InternalCode: code}
}

// ServiceUnavailable builds a ServiceUnavailable ProviderError.
func ServiceUnavailable(provider, message string, estimatedRecovery *time.Duration) *Error {
	return &Error{Provider: provider, Code: CodeServiceUnavailable, Message: message, EstimatedRecovery: estimatedRecovery}
}

// RateLimitExceeded builds a RateLimitExceeded ProviderError.
func RateLimitExceeded(provider string, current, limit int) *Error {
	return &Error{Provider: provider, Code: CodeRateLimitExceeded, Current: current, Limit: limit}
}

// AuthenticationFailed builds an AuthenticationFailed ProviderError.
func AuthenticationFailed(provider, message string) *Error {
	return &Error{Provider: provider, Code: CodeAuthenticationFailed, Message: message}
}

// InvalidResponse builds an InvalidResponse ProviderError.
func InvalidResponse(provider, message string) *Error {
	return &Error{Provider: provider, Code: CodeInvalidResponse, Message: message}
}

// Timeout builds a Timeout ProviderError.
func Timeout(provider, message string) *Error {
	return &Error{Provider: provider, Code: CodeTimeout, Message: message}
}
