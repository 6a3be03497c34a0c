package recovery

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// PageState supplies the current page content and URL for error
// detection. Implemented by session.Session.
type PageState interface {
	PageSource(ctx context.Context) (string, error)
	CurrentURL(ctx context.Context) (string, error)
}

// Action is one fallible automation step. It reports success; on false
// the manager inspects the page to classify what went wrong.
type Action func(ctx context.Context) bool

// Failure is the terminal error returned by Attempt. It carries the
// classification so callers can distinguish skip-this-item failures
// from fatal ones.
type Failure struct {
	Classification Classification
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Classification.Kind, f.Classification.Message)
}

// Skippable reports that the current item should be skipped, not the
// whole session aborted.
func (f *Failure) Skippable() bool {
	return f.Classification.Kind == KindFormNotFound
}

// Fatal reports that the caller must re-authenticate before continuing.
func (f *Failure) Fatal() bool {
	return f.Classification.Kind.Fatal()
}

// ManagerConfig tunes one recovery manager.
type ManagerConfig struct {
	Strategy StrategyConfig
	// CaptchaMaxWait bounds the manual-intervention wait. Default 5m.
	CaptchaMaxWait time.Duration
	// CaptchaBlockingWait makes the manager block for RequestResume
	// after a captcha instead of returning control to the caller.
	CaptchaBlockingWait bool
}

// Manager wraps fallible actions with detection and retry. Construct
// one per session and pass it to every caller that needs it; there is
// no process-wide instance. Attempts within one call are strictly
// sequential, waits are synchronous and cancellable through ctx.
type Manager struct {
	cfg      ManagerConfig
	page     PageState
	detector *Detector
	logger   zerolog.Logger
	resume   chan struct{}
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewManager(page PageState, detector *Detector, cfg ManagerConfig, logger zerolog.Logger) *Manager {
	if cfg.CaptchaMaxWait <= 0 {
		cfg.CaptchaMaxWait = 300 * time.Second
	}
	if detector == nil {
		detector = NewDetector(DetectorConfig{})
	}
	return &Manager{
		cfg:      cfg,
		page:     page,
		detector: detector,
		logger:   logger,
		resume:   make(chan struct{}, 1),
		sleep:    sleepCtx,
	}
}

// Attempt runs action with detection and recovery using the configured
// retry limit. It never panics; every failure mode is a returned error.
func (m *Manager) Attempt(ctx context.Context, name string, action Action) (bool, error) {
	return m.attempt(ctx, name, action, m.cfg.Strategy)
}

// AttemptWithRetries overrides the retry limit for a single call.
func (m *Manager) AttemptWithRetries(ctx context.Context, name string, action Action, maxRetries int) (bool, error) {
	cfg := m.cfg.Strategy
	if maxRetries > 0 {
		cfg.MaxRetries = maxRetries
	}
	return m.attempt(ctx, name, action, cfg)
}

func (m *Manager) attempt(ctx context.Context, name string, action Action, cfg StrategyConfig) (bool, error) {
	strategy := NewStrategy(cfg)
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		m.logger.Info().Str("action", name).Int("attempt", attempt).Msg("attempting")

		if action(ctx) {
			strategy.Reset()
			m.logger.Info().Str("action", name).Int("attempt", attempt).Msg("succeeded")
			return true, nil
		}

		cls := m.classify(ctx)
		switch {
		case cls.Kind == KindCaptcha:
			m.logger.Warn().Str("action", name).Str("kind", cls.Kind.String()).
				Msg("verification challenge detected, automation paused")
			if !m.cfg.CaptchaBlockingWait {
				return false, &Failure{Classification: cls}
			}
			if err := m.waitForResume(ctx); err != nil {
				m.logger.Error().Err(err).Str("action", name).Msg("challenge wait ended without resume")
				return false, &Failure{Classification: cls}
			}
			m.logger.Info().Str("action", name).Msg("resumed after verification challenge")

		case cls.Kind.Recoverable() || cls.Kind == KindUnknown:
			if !strategy.ShouldRetry(cls.Kind) {
				m.logger.Error().Str("action", name).Str("kind", cls.Kind.String()).
					Int("retries", strategy.Attempt()).Msg("giving up")
				return false, &Failure{Classification: cls}
			}
			wait := strategy.NextBackoff()
			m.logger.Warn().Str("action", name).Str("kind", cls.Kind.String()).
				Dur("backoff", wait).Msg("recoverable failure, backing off")
			if err := m.sleep(ctx, wait); err != nil {
				return false, err
			}

		default:
			// Session timeout, login required, form not found.
			m.logger.Error().Str("action", name).Str("kind", cls.Kind.String()).
				Str("reason", cls.Message).Msg("failed without retry")
			return false, &Failure{Classification: cls}
		}
	}
}

// RequestResume unblocks a manager waiting on a verification challenge.
// Safe to call from another goroutine (a prompt loop, a GUI).
func (m *Manager) RequestResume() {
	select {
	case m.resume <- struct{}{}:
	default:
	}
}

func (m *Manager) classify(ctx context.Context) Classification {
	page, err := m.page.PageSource(ctx)
	if err != nil {
		return Classification{
			Kind:       KindUnknown,
			Message:    fmt.Sprintf("page source unavailable: %v", err),
			DetectedAt: time.Now(),
		}
	}
	url, err := m.page.CurrentURL(ctx)
	if err != nil {
		url = ""
	}
	cls := m.detector.Detect(page, url)
	if cls.Kind == KindNone {
		// The action reported failure but the page looks fine.
		cls.Kind = KindUnknown
		cls.Message = "action failed without a recognizable page error"
	}
	return cls
}

func (m *Manager) waitForResume(ctx context.Context) error {
	timer := time.NewTimer(m.cfg.CaptchaMaxWait)
	defer timer.Stop()
	select {
	case <-m.resume:
		return nil
	case <-timer.C:
		return fmt.Errorf("manual intervention wait timed out after %s", m.cfg.CaptchaMaxWait)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
