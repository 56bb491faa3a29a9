// Package health runs periodic checks on the lobby's scarce resources:
// the relay port pool, the client directory and host cpu/memory. Level
// transitions are logged and emitted as health.alert events for the
// telemetry publisher and the dashboard stream.
package health

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ringleader-project/ringleader/internal/events"
	"github.com/ringleader-project/ringleader/internal/lobby"
	"github.com/ringleader-project/ringleader/internal/util"
)

// Alert levels, ordered. A check returning to ok emits a recovery
// alert so subscribers can clear state.
const (
	levelOK       = "ok"
	levelWarning  = "warning"
	levelCritical = "critical"
)

const (
	poolCheckInterval   = 15 * time.Second
	clientCheckInterval = 30 * time.Second
	systemCheckInterval = 60 * time.Second

	utilizationWarnPercent = 80
	systemWarnPercent      = 90.0
)

// checkResult is one evaluation of a health check.
type checkResult struct {
	level   string
	message string
}

// Manager runs each health check on its own ticker goroutine.
type Manager struct {
	bus   *events.EventBus
	coord *lobby.Coordinator
}

// NewManager creates a new health check manager.
func NewManager(bus *events.EventBus, coord *lobby.Coordinator) *Manager {
	return &Manager{
		bus:   bus,
		coord: coord,
	}
}

// Start launches all health check goroutines and blocks until ctx is
// cancelled.
func (m *Manager) Start(ctx context.Context) {
	checks := []struct {
		name     string
		interval time.Duration
		fn       func() checkResult
	}{
		{"port_pool", poolCheckInterval, m.checkPortPool},
		{"client_directory", clientCheckInterval, m.checkClientDirectory},
		{"system_cpu", systemCheckInterval, m.checkCPU},
		{"system_memory", systemCheckInterval, m.checkMemory},
	}

	for _, check := range checks {
		check := check
		go m.runCheck(ctx, check.name, check.interval, check.fn)
	}

	log.Info().Int("checks", len(checks)).Msg("health check manager started")

	<-ctx.Done()
	log.Info().Msg("health check manager stopped")
}

// runCheck evaluates one check immediately and then on every tick,
// emitting an alert only when the level changes.
func (m *Manager) runCheck(ctx context.Context, name string, interval time.Duration, fn func() checkResult) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := levelOK
	evaluate := func() {
		res := fn()
		if res.level == last {
			return
		}

		entry := log.Warn()
		if res.level == levelOK {
			entry = log.Info()
		}
		entry.
			Str("check", name).
			Str("level", res.level).
			Str("previous", last).
			Msg(res.message)

		m.bus.Emit(ctx, events.Event{
			Type:   events.EventHealthAlert,
			Source: "health",
			Payload: events.HealthAlertPayload{
				Check:   name,
				Level:   res.level,
				Message: res.message,
			},
		})
		last = res.level
	}

	evaluate()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evaluate()
		}
	}
}

// checkPortPool alerts when relay ports run low. Exhaustion is
// critical: the next full game fails to activate.
func (m *Manager) checkPortPool() checkResult {
	st := m.coord.Status()
	level := classifyUtilization(st.PortsReserved, st.PortsTotal)

	return checkResult{
		level: level,
		message: fmt.Sprintf("relay port pool at %d of %d reserved",
			st.PortsReserved, st.PortsTotal),
	}
}

// checkClientDirectory alerts when client slots run low.
func (m *Manager) checkClientDirectory() checkResult {
	st := m.coord.Status()
	level := classifyUtilization(st.Clients, st.ClientCapacity)

	return checkResult{
		level: level,
		message: fmt.Sprintf("client directory at %d of %d slots",
			st.Clients, st.ClientCapacity),
	}
}

// checkCPU alerts on sustained high host CPU.
func (m *Manager) checkCPU() checkResult {
	pct, err := util.GetCPUUsage()
	if err != nil {
		log.Warn().Err(err).Msg("cpu check failed")
		return checkResult{level: levelOK, message: "cpu usage unavailable"}
	}

	return checkResult{
		level:   classifyPercent(pct, systemWarnPercent),
		message: fmt.Sprintf("host cpu at %.1f%%", pct),
	}
}

// checkMemory alerts on high host memory usage.
func (m *Manager) checkMemory() checkResult {
	mem, err := util.GetMemoryUsage()
	if err != nil {
		log.Warn().Err(err).Msg("memory check failed")
		return checkResult{level: levelOK, message: "memory usage unavailable"}
	}

	return checkResult{
		level: classifyPercent(mem.UsedPercent, systemWarnPercent),
		message: fmt.Sprintf("host memory at %.1f%% (%d of %d MB)",
			mem.UsedPercent, mem.Used, mem.Total),
	}
}

// classifyUtilization grades a slot-style resource: warning at 80%
// occupancy, critical when nothing is left.
func classifyUtilization(used, capacity int) string {
	if capacity <= 0 {
		return levelOK
	}
	switch {
	case used >= capacity:
		return levelCritical
	case used*100 >= capacity*utilizationWarnPercent:
		return levelWarning
	default:
		return levelOK
	}
}

// classifyPercent grades a percentage-style resource against one
// warning threshold.
func classifyPercent(pct, warnAt float64) string {
	if pct >= warnAt {
		return levelWarning
	}
	return levelOK
}
