package health

import (
	"sort"
	"sync"
	"time"

	"margin_maker/internal/core"
)

// ComponentStatus is the result of one component's check
type ComponentStatus struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// Report is the outcome of running every registered check once
type Report struct {
	Healthy    bool                       `json:"healthy"`
	CheckedAt  time.Time                  `json:"checked_at"`
	Components map[string]ComponentStatus `json:"components"`
}

// HealthManager aggregates health status from different components
type HealthManager struct {
	logger core.ILogger
	now    func() time.Time

	mu     sync.Mutex
	checks map[string]func() error
	last   map[string]bool // previous result per component, for transition logs
}

func NewHealthManager(logger core.ILogger) *HealthManager {
	hm := &HealthManager{
		now:    time.Now,
		checks: make(map[string]func() error),
		last:   make(map[string]bool),
	}
	if logger != nil {
		hm.logger = logger.WithField("component", "health_manager")
	}
	return hm
}

// Register adds or replaces the check for a component
func (hm *HealthManager) Register(component string, check func() error) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checks[component] = check
	delete(hm.last, component)
	if hm.logger != nil {
		hm.logger.Debug("Registered health check", "component", component)
	}
}

// Check runs each registered check once. An empty manager is healthy.
func (hm *HealthManager) Check() Report {
	hm.mu.Lock()
	names := make([]string, 0, len(hm.checks))
	for name := range hm.checks {
		names = append(names, name)
	}
	checks := make(map[string]func() error, len(hm.checks))
	for name, fn := range hm.checks {
		checks[name] = fn
	}
	hm.mu.Unlock()
	sort.Strings(names)

	report := Report{
		Healthy:    true,
		CheckedAt:  hm.now(),
		Components: make(map[string]ComponentStatus, len(names)),
	}
	for _, name := range names {
		st := ComponentStatus{Healthy: true}
		if err := checks[name](); err != nil {
			st = ComponentStatus{Error: err.Error()}
			report.Healthy = false
		}
		report.Components[name] = st
		hm.observe(name, st)
	}
	return report
}

func (hm *HealthManager) observe(name string, st ComponentStatus) {
	hm.mu.Lock()
	prev, seen := hm.last[name]
	hm.last[name] = st.Healthy
	hm.mu.Unlock()

	if hm.logger == nil || (seen && prev == st.Healthy) {
		return
	}
	if st.Healthy {
		if seen {
			hm.logger.Info("Component recovered", "health_check", name)
		}
		return
	}
	hm.logger.Warn("Component unhealthy", "health_check", name, "error", st.Error)
}
