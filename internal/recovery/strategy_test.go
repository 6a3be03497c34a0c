package recovery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffSchedule(t *testing.T) {
	s := NewStrategy(StrategyConfig{})
	want := []time.Duration{
		5 * time.Second,
		10 * time.Second,
		20 * time.Second,
		40 * time.Second,
		80 * time.Second,
		160 * time.Second,
		300 * time.Second,
		300 * time.Second,
	}
	for i, w := range want {
		assert.Equal(t, w, s.NextBackoff(), "step %d", i)
	}
}

func TestBackoffResets(t *testing.T) {
	s := NewStrategy(StrategyConfig{})
	s.NextBackoff()
	s.NextBackoff()
	s.Reset()
	assert.Equal(t, 5*time.Second, s.NextBackoff())
	assert.Equal(t, 1, s.Attempt())
}

func TestShouldRetryNetworkErrorBoundedByMaxRetries(t *testing.T) {
	s := NewStrategy(StrategyConfig{MaxRetries: 2})
	assert.True(t, s.ShouldRetry(KindNetworkError))
	s.NextBackoff()
	assert.True(t, s.ShouldRetry(KindNetworkError))
	s.NextBackoff()
	assert.False(t, s.ShouldRetry(KindNetworkError))
}

func TestShouldRetryConsecutiveRateLimitsStop(t *testing.T) {
	s := NewStrategy(StrategyConfig{MaxRetries: 10, MaxConsecutiveRateLimits: 3})
	assert.True(t, s.ShouldRetry(KindRateLimit))
	s.NextBackoff()
	assert.True(t, s.ShouldRetry(KindRateLimit))
	s.NextBackoff()
	assert.False(t, s.ShouldRetry(KindRateLimit), "third consecutive rate limit must stop")
}

func TestShouldRetryRateLimitCounterResetsOnOtherKind(t *testing.T) {
	s := NewStrategy(StrategyConfig{MaxRetries: 10, MaxConsecutiveRateLimits: 3})
	s.ShouldRetry(KindRateLimit)
	s.ShouldRetry(KindRateLimit)
	s.ShouldRetry(KindNetworkError)
	assert.True(t, s.ShouldRetry(KindRateLimit))
	assert.True(t, s.ShouldRetry(KindRateLimit))
	assert.False(t, s.ShouldRetry(KindRateLimit))
}

func TestShouldRetryUnknownOnce(t *testing.T) {
	s := NewStrategy(StrategyConfig{})
	assert.True(t, s.ShouldRetry(KindUnknown))
	s.NextBackoff()
	assert.False(t, s.ShouldRetry(KindUnknown))
}

func TestShouldRetryNeverForTerminalKinds(t *testing.T) {
	s := NewStrategy(StrategyConfig{})
	for _, k := range []Kind{KindCaptcha, KindSessionTimeout, KindLoginRequired, KindFormNotFound} {
		assert.False(t, s.ShouldRetry(k), "kind %s", k)
	}
}

func TestWithDefaultsFillsZeroValues(t *testing.T) {
	s := NewStrategy(StrategyConfig{InitialBackoff: time.Second, Multiplier: 3})
	assert.Equal(t, time.Second, s.NextBackoff())
	assert.Equal(t, 3*time.Second, s.NextBackoff())
	assert.Equal(t, 9*time.Second, s.NextBackoff())
}
