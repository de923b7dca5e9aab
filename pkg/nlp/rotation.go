package nlp

import "strings"

// Quota and balance exhaustion hints, most common in gateway deployments
// where each model carries a separate quota.
var quotaHints = []string{
	"insufficient_quota",
	"quota",
	"billing",
	"balance",
	"credit",
	"exceeded",
	"payment required",
	"no remaining",
	"out of credits",
}

// Model availability hints.
var modelHints = []string{
	"model_not_found",
	"does not exist",
	"not found",
	"unknown model",
	"no such model",
}

// shouldRotate classifies an upstream error and decides whether the caller
// should advance to the next model in the pool. The returned reason tags the
// usage log record.
func shouldRotate(err error) (bool, string) {
	info := extractErrorInfo(err)
	code := strings.TrimSpace(strings.ToLower(info.Code))
	msg := strings.TrimSpace(strings.ToLower(info.Message))

	// Explicit codes first.
	if code == "insufficient_quota" || code == "model_not_found" {
		return true, code
	}

	// HTTP-based heuristics.
	switch info.StatusCode {
	case 402:
		return true, "payment_required"
	case 429:
		// Gateways commonly reuse 429 for quota depletion. Rotate to keep
		// the simulation making progress.
		return true, "rate_limit_or_quota"
	case 403:
		if containsAny(msg, quotaHints) {
			return true, "forbidden_quota"
		}
	case 404:
		if strings.Contains(msg, "model") && containsAny(msg, modelHints) {
			return true, "model_not_found"
		}
	}

	// Message-only fallbacks for errors without a structured status.
	if containsAny(msg, quotaHints) {
		return true, "quota_hint"
	}
	if strings.Contains(msg, "model") && containsAny(msg, modelHints) {
		return true, "model_hint"
	}

	return false, "non_rotatable"
}

func containsAny(s string, hints []string) bool {
	for _, h := range hints {
		if strings.Contains(s, h) {
			return true
		}
	}
	return false
}
