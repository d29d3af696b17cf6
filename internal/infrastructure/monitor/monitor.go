// Package monitor periodically pings the initialized connection pools.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/svckit/pkg/dbconn"
)

// Check describes the health check of one backing store. Ping is only called once Ready reports
// true, so the monitor never forces a lazy pool open.
type Check struct {
	Name    string
	Enabled bool
	Ready   func() bool
	Ping    func(ctx context.Context) error
}

// ResolverCheck builds a check that borrows a connection from an initialized
// resolver and pings through it.
func ResolverCheck[C any](name string, enabled bool, r *dbconn.Resolver[C], ping func(context.Context, C) error) Check {
	return Check{
		Name:    name,
		Enabled: enabled && r != nil,
		Ready: func() bool {
			return r != nil && r.Ready()
		},
		Ping: func(ctx context.Context) error {
			return dbconn.Exec(ctx, r, dbconn.Absent[C](), ping)
		},
	}
}

type Monitor struct {
	checks  []Check
	timeout time.Duration
	logger  *zap.Logger
	cron    *cron.Cron

	mu     sync.RWMutex
	status Status
}

// New schedules refreshes with a robfig/cron spec such as "@every 10s".
func New(schedule string, timeout time.Duration, logger *zap.Logger, checks ...Check) (*Monitor, error) {
	if schedule == "" {
		schedule = "@every 10s"
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Monitor{
		checks:  checks,
		timeout: timeout,
		logger:  logger,
		cron:    cron.New(),
	}
	m.status = m.initialStatus()

	if _, err := m.cron.AddFunc(schedule, func() { m.Refresh(context.Background()) }); err != nil {
		return nil, fmt.Errorf("monitor schedule %q: %w", schedule, err)
	}
	return m, nil
}

func (m *Monitor) Start() {
	m.cron.Start()
	m.logger.Info("connection monitor started", zap.Int("checks", len(m.checks)))
}

// Stop waits for a running refresh to finish or ctx to expire.
func (m *Monitor) Stop(ctx context.Context) error {
	stopCtx := m.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	m.logger.Info("connection monitor stopped")
	return nil
}

func (m *Monitor) IsOnline() bool {
	return m.GetStatus().Healthy()
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	components := make(map[string]ComponentStatus, len(m.status.Components))
	for k, v := range m.status.Components {
		components[k] = v
	}
	return Status{Components: components, LastCheck: m.status.LastCheck}
}

// Refresh runs every check once and replaces the stored status.
func (m *Monitor) Refresh(ctx context.Context) {
	status := Status{
		Components: make(map[string]ComponentStatus, len(m.checks)),
		LastCheck:  time.Now(),
	}
	for _, p := range m.checks {
		status.Components[p.Name] = m.inspect(ctx, p)
	}

	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
}

func (m *Monitor) inspect(ctx context.Context, p Check) ComponentStatus {
	st := ComponentStatus{Enabled: p.Enabled}
	if !p.Enabled || p.Ready == nil || !p.Ready() {
		return st
	}
	st.Ready = true
	if p.Ping == nil {
		st.Reachable = true
		return st
	}

	pingCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if err := p.Ping(pingCtx); err != nil {
		m.logger.Warn("connection check failed", zap.String("component", p.Name), zap.Error(err))
		st.Error = err.Error()
		return st
	}
	st.Reachable = true
	return st
}

func (m *Monitor) initialStatus() Status {
	components := make(map[string]ComponentStatus, len(m.checks))
	for _, p := range m.checks {
		components[p.Name] = ComponentStatus{Enabled: p.Enabled}
	}
	return Status{Components: components}
}
