// Package recovery classifies session failures from page state and
// drives retry/backoff around fallible automation actions.
package recovery

import (
	"strings"
	"time"
)

// Kind is the classified failure kind.
type Kind int

const (
	KindNone Kind = iota
	KindCaptcha
	KindRateLimit
	KindSessionTimeout
	KindLoginRequired
	KindNetworkError
	KindFormNotFound
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindCaptcha:
		return "captcha"
	case KindRateLimit:
		return "rate_limit"
	case KindSessionTimeout:
		return "session_timeout"
	case KindLoginRequired:
		return "login_required"
	case KindNetworkError:
		return "network_error"
	case KindFormNotFound:
		return "form_not_found"
	default:
		return "unknown"
	}
}

// Recoverable reports whether the kind is retried with backoff.
func (k Kind) Recoverable() bool {
	return k == KindRateLimit || k == KindNetworkError
}

// Fatal reports whether the kind ends the current action immediately and
// requires the caller to re-authenticate.
func (k Kind) Fatal() bool {
	return k == KindSessionTimeout || k == KindLoginRequired
}

// Classification is one detected failure. Ephemeral: created per failed
// attempt and discarded after handling.
type Classification struct {
	Kind       Kind
	Message    string
	DetectedAt time.Time
}

var (
	captchaPageIndicators = []string{
		"verify it's you",
		"are you human",
		"captcha",
		"security check",
		"verify you're not a robot",
		"solve this puzzle",
	}
	captchaURLIndicators = []string{"checkpoint", "challenge", "/security/"}

	rateLimitIndicators = []string{
		"too many requests",
		"slow down",
		"try again later",
		"temporarily unavailable",
		"too many attempts",
		"rate limit",
	}

	sessionTimeoutIndicators = []string{
		"session expired",
		"session has expired",
		"session timed out",
	}

	loginPageIndicators = []string{
		"login required",
		"you must be logged in",
		"sign in to continue",
	}
	loginURLIndicators = []string{"/login", "/uas/login", "/signin"}

	networkIndicators = []string{
		"connection refused",
		"connection timeout",
		"unable to connect",
		"no internet",
		"network error",
		"502 bad gateway",
		"503 service unavailable",
		"504 gateway timeout",
	}
)

// rule is one (predicate, kind) pair. Rules are evaluated in priority
// order; the first hit wins.
type rule struct {
	kind    Kind
	message string
	match   func(page, url string) bool
}

// DetectorConfig tunes detection.
type DetectorConfig struct {
	// FormMarkers are phrases whose absence from the page means the
	// expected application form is gone. Defaults to easy-apply markers.
	FormMarkers []string
}

// Detector inspects page content and URL and classifies failures. It is
// stateless and never panics; matching is plain case-insensitive
// substring search, so arbitrary input is safe.
type Detector struct {
	rules []rule
}

func NewDetector(cfg DetectorConfig) *Detector {
	markers := cfg.FormMarkers
	if len(markers) == 0 {
		markers = []string{"easy-apply", "apply"}
	}
	return &Detector{rules: []rule{
		{
			kind:    KindCaptcha,
			message: "verification challenge detected on page",
			match: func(page, url string) bool {
				return containsAny(url, captchaURLIndicators) || containsAny(page, captchaPageIndicators)
			},
		},
		{
			kind:    KindRateLimit,
			message: "rate limit or throttling detected",
			match: func(page, _ string) bool {
				return containsAny(page, rateLimitIndicators)
			},
		},
		{
			kind:    KindSessionTimeout,
			message: "session expired, re-login required",
			match: func(page, _ string) bool {
				return containsAny(page, sessionTimeoutIndicators)
			},
		},
		{
			kind:    KindLoginRequired,
			message: "login required",
			match: func(page, url string) bool {
				return containsAny(url, loginURLIndicators) || containsAny(page, loginPageIndicators)
			},
		},
		{
			kind:    KindNetworkError,
			message: "network error detected",
			match: func(page, _ string) bool {
				return containsAny(page, networkIndicators)
			},
		},
		{
			kind:    KindFormNotFound,
			message: "application form not found",
			match: func(page, _ string) bool {
				return !containsAny(page, markers)
			},
		},
	}}
}

// Detect classifies the current page state. The priority order when
// several indicators match at once is fixed: captcha, rate limit,
// session timeout, login required, network error, form not found.
// Returns KindNone when nothing matches.
func (d *Detector) Detect(pageSource, currentURL string) Classification {
	page := strings.ToLower(pageSource)
	url := strings.ToLower(currentURL)
	now := time.Now()
	for _, r := range d.rules {
		if r.match(page, url) {
			return Classification{Kind: r.kind, Message: r.message, DetectedAt: now}
		}
	}
	return Classification{Kind: KindNone, DetectedAt: now}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
