package alert

import (
	"context"
	"sync"
	"time"

	"margin_maker/internal/core"

	"golang.org/x/time/rate"
)

type AlertLevel string

const (
	Info     AlertLevel = "INFO"
	Warning  AlertLevel = "WARNING"
	Error    AlertLevel = "ERROR"
	Critical AlertLevel = "CRITICAL"
)

const sendTimeout = 10 * time.Second

type AlertPayload struct {
	Level     AlertLevel
	Title     string
	Message   string
	Timestamp time.Time
	Fields    map[string]string
}

type AlertChannel interface {
	Send(ctx context.Context, alert AlertPayload) error
	Name() string
}

// AlertManager fans alerts out to every channel. Repeats of the same title
// are throttled to one per minInterval so a position parked in the danger
// zone does not page on every poll.
type AlertManager struct {
	channels    []AlertChannel
	logger      core.ILogger
	minInterval time.Duration
	limiters    map[string]*rate.Limiter
	inflight    sync.WaitGroup
	mu          sync.RWMutex
}

// NewAlertManager creates a manager. A non-positive minInterval disables throttling.
func NewAlertManager(logger core.ILogger, minInterval time.Duration) *AlertManager {
	return &AlertManager{
		channels:    make([]AlertChannel, 0),
		logger:      logger.WithField("component", "alert_manager"),
		minInterval: minInterval,
		limiters:    make(map[string]*rate.Limiter),
	}
}

func (am *AlertManager) AddChannel(ch AlertChannel) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.channels = append(am.channels, ch)
	am.logger.Info("Added alert channel", "name", ch.Name())
}

// Alert dispatches asynchronously and reports whether the alert was sent or throttled.
func (am *AlertManager) Alert(ctx context.Context, title, message string, level AlertLevel, fields map[string]string) bool {
	if !am.allow(title) {
		am.logger.Debug("Alert throttled", "title", title, "level", level)
		return false
	}

	payload := AlertPayload{
		Level:     level,
		Title:     title,
		Message:   message,
		Timestamp: time.Now(),
		Fields:    fields,
	}

	am.logger.Info("Triggering alert", "title", title, "level", level)

	am.mu.RLock()
	defer am.mu.RUnlock()

	for _, ch := range am.channels {
		am.inflight.Add(1)
		go func(c AlertChannel) {
			defer am.inflight.Done()
			timeoutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
			defer cancel()

			if err := c.Send(timeoutCtx, payload); err != nil {
				am.logger.Error("Failed to send alert", "channel", c.Name(), "error", err)
			}
		}(ch)
	}
	return true
}

// Flush blocks until every dispatched alert has been delivered or failed
func (am *AlertManager) Flush() {
	am.inflight.Wait()
}

func (am *AlertManager) allow(title string) bool {
	if am.minInterval <= 0 {
		return true
	}

	am.mu.Lock()
	defer am.mu.Unlock()

	lim, ok := am.limiters[title]
	if !ok {
		lim = rate.NewLimiter(rate.Every(am.minInterval), 1)
		am.limiters[title] = lim
	}
	return lim.Allow()
}
