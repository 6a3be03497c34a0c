package recovery

import "time"

// StrategyConfig tunes the retry/backoff behavior.
type StrategyConfig struct {
	MaxRetries               int
	InitialBackoff           time.Duration
	MaxBackoff               time.Duration
	Multiplier               float64
	MaxConsecutiveRateLimits int
}

// DefaultStrategyConfig returns the production defaults: 3 retries,
// 5s initial backoff doubling up to 5 minutes, and a stop after 3
// consecutive rate-limit hits.
func DefaultStrategyConfig() StrategyConfig {
	return StrategyConfig{
		MaxRetries:               3,
		InitialBackoff:           5 * time.Second,
		MaxBackoff:               300 * time.Second,
		Multiplier:               2.0,
		MaxConsecutiveRateLimits: 3,
	}
}

func (c StrategyConfig) withDefaults() StrategyConfig {
	def := DefaultStrategyConfig()
	if c.MaxRetries <= 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = def.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = def.MaxBackoff
	}
	if c.Multiplier <= 1 {
		c.Multiplier = def.Multiplier
	}
	if c.MaxConsecutiveRateLimits <= 0 {
		c.MaxConsecutiveRateLimits = def.MaxConsecutiveRateLimits
	}
	return c
}

// Strategy holds the per-attempt retry state. One instance is created
// per recovery call; backoff is monotonically non-decreasing within a
// sequence and resets only via Reset.
type Strategy struct {
	cfg                   StrategyConfig
	attempt               int
	backoff               time.Duration
	consecutiveRateLimits int
}

func NewStrategy(cfg StrategyConfig) *Strategy {
	cfg = cfg.withDefaults()
	return &Strategy{cfg: cfg, backoff: cfg.InitialBackoff}
}

// ShouldRetry decides whether the failed attempt is worth repeating.
// Captcha is never auto-retried (manual intervention path), session
// timeout and login are fatal for the action, form-not-found means skip
// the item, and an unknown failure gets a single cautious retry.
func (s *Strategy) ShouldRetry(kind Kind) bool {
	if kind != KindRateLimit {
		s.consecutiveRateLimits = 0
	}
	switch kind {
	case KindRateLimit:
		s.consecutiveRateLimits++
		if s.consecutiveRateLimits >= s.cfg.MaxConsecutiveRateLimits {
			return false
		}
		return s.attempt < s.cfg.MaxRetries
	case KindNetworkError:
		return s.attempt < s.cfg.MaxRetries
	case KindUnknown:
		return s.attempt < 1
	default:
		return false
	}
}

// NextBackoff returns the wait before the next attempt and advances the
// schedule: the current backoff doubles (per Multiplier) up to MaxBackoff.
func (s *Strategy) NextBackoff() time.Duration {
	wait := s.backoff
	if wait > s.cfg.MaxBackoff {
		wait = s.cfg.MaxBackoff
	}
	s.attempt++
	next := time.Duration(float64(s.backoff) * s.cfg.Multiplier)
	if next > s.cfg.MaxBackoff {
		next = s.cfg.MaxBackoff
	}
	s.backoff = next
	return wait
}

// Attempt returns how many retries have been consumed.
func (s *Strategy) Attempt() int {
	return s.attempt
}

// Reset clears the retry state after a success.
func (s *Strategy) Reset() {
	s.attempt = 0
	s.backoff = s.cfg.InitialBackoff
	s.consecutiveRateLimits = 0
}
