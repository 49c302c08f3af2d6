// Package health periodically probes the diarization backend so the
// HTTP health endpoint can report reachability without calling out on
// every request.
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/audiostudio/conductor/pkg/ports"
)

// Monitor probes the processing backend on an interval.
type Monitor struct {
	processing ports.Processing
	interval   time.Duration
	logger     *zap.Logger

	mu      sync.RWMutex
	running bool
	status  Status
	stopCh  chan struct{}
}

// Status is the outcome of the most recent probe.
type Status struct {
	Healthy   bool
	LastError string
	CheckedAt time.Time
}

// NewMonitor creates a health monitor for the processing backend.
func NewMonitor(processing ports.Processing, interval time.Duration, logger *zap.Logger) *Monitor {
	return &Monitor{
		processing: processing,
		interval:   interval,
		logger:     logger,
		stopCh:     make(chan struct{}),
	}
}

// Start starts the probe loop. A probe runs immediately so the first
// status read does not report an unchecked backend.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	m.check()
	go m.run()
}

// Stop stops the probe loop.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	close(m.stopCh)
}

func (m *Monitor) run() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.check()
		}
	}
}

func (m *Monitor) check() {
	ctx, cancel := context.WithTimeout(context.Background(), m.interval)
	defer cancel()

	status := Status{Healthy: true, CheckedAt: time.Now()}
	if err := m.processing.Health(ctx); err != nil {
		status.Healthy = false
		status.LastError = err.Error()
		m.logger.Warn("processing backend unreachable", zap.Error(err))
	}

	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
}

// GetStatus returns the most recent probe outcome.
func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// IsHealthy returns true if the last probe succeeded.
func (m *Monitor) IsHealthy() bool {
	return m.GetStatus().Healthy
}
