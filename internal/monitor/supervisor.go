package monitor

import (
	"context"
	"fmt"
	"time"

	"swmon/internal/config"
	"swmon/internal/sampler"
	"swmon/internal/utils"
	"swmon/internal/watchdog"
)

// State is the supervisor lifecycle state.
type State int

const (
	StateStarting State = iota
	StateRunning
	// StateShutdown is reached on operator interrupt or on a device
	// failure during a feed; the watchdog is stopped best effort.
	StateShutdown
	// StateRebootPending deliberately leaves the device armed so the
	// hardware reboots the host. Entered only on a critical CPU
	// condition or on exceeding the inactivity limit.
	StateRebootPending
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateShutdown:
		return "shutdown"
	case StateRebootPending:
		return "reboot-pending"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const (
	// detailedLogWindow throttles per-resource activity lines.
	detailedLogWindow = 30 * time.Second
	// healthyLogEvery emits a terse summary line every Nth feed.
	healthyLogEvery = 6
)

// Supervisor owns the activity-driven feeding loop. All state lives on a
// single goroutine inside Run; nothing here needs locking.
type Supervisor struct {
	cfg    *config.Config
	log    *utils.Logger
	handle *watchdog.Handle
	samp   sampler.Sampler

	state          State
	prev           map[sampler.Kind]*sampler.Counters
	inactiveCycles int
	feeds          uint64

	activeSinceCheck bool
	lastDetailedLog  time.Time
	lastReadErrLog   map[sampler.Kind]time.Time

	deviceErr error

	now func() time.Time
}

// New builds a supervisor around a started-elsewhere configuration. The
// handle must be stopped; Run arms it.
func New(cfg *config.Config, log *utils.Logger, handle *watchdog.Handle, samp sampler.Sampler) *Supervisor {
	return &Supervisor{
		cfg:            cfg,
		log:            log,
		handle:         handle,
		samp:           samp,
		state:          StateStarting,
		prev:           make(map[sampler.Kind]*sampler.Counters),
		lastReadErrLog: make(map[sampler.Kind]time.Time),
		now:            time.Now,
	}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State { return s.state }

// FeedCount returns the number of successful watchdog feeds.
func (s *Supervisor) FeedCount() uint64 { return s.feeds }

// InactiveCycles returns the current consecutive-inactivity count.
func (s *Supervisor) InactiveCycles() int { return s.inactiveCycles }

// Run arms the watchdog and drives the monitoring loop until the context
// is cancelled or a terminal state is reached. It returns the terminal
// state; a non-nil error means the device failed (start or mid-run feed).
func (s *Supervisor) Run(ctx context.Context) (State, error) {
	if err := s.start(); err != nil {
		return StateStarting, err
	}

	cpuTick := time.NewTicker(s.cfg.CPUInterval)
	memTick := time.NewTicker(s.cfg.MemInterval)
	netTick := time.NewTicker(s.cfg.NetInterval)
	// The inactivity check runs at a quarter of the hard timeout, which
	// also bounds the maximum wait of the loop; grace feeds happen at
	// half the hard timeout so the process stays in control of the
	// reboot decision.
	inactivityTick := time.NewTicker(s.cfg.WatchdogTimeout / 4)
	graceTick := time.NewTicker(s.cfg.WatchdogTimeout / 2)
	defer func() {
		cpuTick.Stop()
		memTick.Stop()
		netTick.Stop()
		inactivityTick.Stop()
		graceTick.Stop()
	}()

	for s.state == StateRunning {
		select {
		case <-ctx.Done():
			s.log.Write("Signal received, shutting down...")
			s.state = StateShutdown
		case <-cpuTick.C:
			s.observe(ctx, sampler.KindCPU)
		case <-memTick.C:
			s.observe(ctx, sampler.KindMemory)
		case <-netTick.C:
			s.observe(ctx, sampler.KindNetwork)
		case <-inactivityTick.C:
			s.inactivityCheck()
		case <-graceTick.C:
			s.graceFeed()
		}
	}

	return s.finish()
}

func (s *Supervisor) start() error {
	params := watchdog.Params{Reset: s.cfg.WatchdogTimeout, Type: watchdog.EventNone}
	if err := s.handle.Start(params); err != nil {
		s.log.Writef("Failed to start watchdog: %v", err)
		return err
	}
	s.log.Writef("Watchdog started with timeout: %d seconds", int(s.cfg.WatchdogTimeout.Seconds()))
	s.state = StateRunning
	return nil
}

func (s *Supervisor) finish() (State, error) {
	switch s.state {
	case StateRebootPending:
		s.log.Write("System will reboot via watchdog timeout")
		// Leave the device counting down.
		s.handle.Abandon()
		return StateRebootPending, nil
	default:
		if s.deviceErr == nil {
			s.log.Write("Shutting down normally")
		}
		if err := s.handle.Stop(); err != nil {
			s.log.Writef("Warning: failed to stop watchdog: %v", err)
		} else {
			s.log.Write("Watchdog stopped successfully")
		}
		return StateShutdown, s.deviceErr
	}
}

// observe samples one resource, classifies the delta, and feeds or
// withholds accordingly. A read failure skips the resource this cycle.
func (s *Supervisor) observe(ctx context.Context, kind sampler.Kind) {
	if s.state != StateRunning {
		return
	}

	counters, err := s.samp.Sample(ctx, kind)
	if err != nil {
		if now := s.now(); now.Sub(s.lastReadErrLog[kind]) >= detailedLogWindow {
			s.log.Writef("Failed to read %s counters: %v", kind, err)
			s.lastReadErrLog[kind] = now
		}
		return
	}

	verdict, detail := Evaluate(kind, counters, s.prev[kind], s.thresholds())
	s.prev[kind] = &counters

	switch verdict {
	case VerdictCritical:
		s.log.Writef("CRITICAL: CPU usage %.2f%% exceeds maximum threshold %.2f%%!",
			detail.BusyPercent, s.cfg.MaxCPUThreshold)
		s.enterRebootPending()
	case VerdictActive:
		s.recordActivity(kind, detail)
	case VerdictInactive, VerdictNoBaseline:
		// No immediate feed; the inactivity ticker accounts for this.
	}
}

func (s *Supervisor) thresholds() Thresholds {
	return Thresholds{
		CPULow:  s.cfg.CPUThreshold,
		CPUHigh: s.cfg.MaxCPUThreshold,
		Mem:     s.cfg.MemThreshold,
		Net:     s.cfg.NetThreshold,
	}
}

// recordActivity feeds the watchdog immediately and resets the inactivity
// counter. Log output is throttled so a busy host does not flood the log.
func (s *Supervisor) recordActivity(kind sampler.Kind, detail Detail) {
	if s.state != StateRunning {
		return
	}
	if err := s.handle.Trigger(); err != nil {
		s.log.Writef("Error feeding watchdog: %v", err)
		s.deviceFailure(err)
		return
	}
	s.feeds++
	s.inactiveCycles = 0
	s.activeSinceCheck = true

	now := s.now()
	if now.Sub(s.lastDetailedLog) >= detailedLogWindow || s.feeds == 1 {
		s.log.Write(s.activityLine(kind, detail))
		s.log.Writef("System activity detected - watchdog fed #%d", s.feeds)
		s.lastDetailedLog = now
	} else if s.feeds%healthyLogEvery == 0 {
		s.log.Writef("Watchdog fed #%d - system healthy", s.feeds)
	}
}

func (s *Supervisor) activityLine(kind sampler.Kind, detail Detail) string {
	switch kind {
	case sampler.KindCPU:
		return fmt.Sprintf("CPU activity: %.2f%% (threshold: %.2f%%, max: %.2f%%)",
			detail.BusyPercent, s.cfg.CPUThreshold, s.cfg.MaxCPUThreshold)
	case sampler.KindMemory:
		return fmt.Sprintf("Memory activity: %d bytes change (threshold: %d)",
			detail.MemDelta, s.cfg.MemThreshold)
	case sampler.KindNetwork:
		return fmt.Sprintf("Network activity: RX:%d TX:%d bytes (threshold: %d)",
			detail.RXDelta, detail.TXDelta, s.cfg.NetThreshold)
	default:
		return fmt.Sprintf("%s activity detected", kind)
	}
}

// inactivityCheck runs at a quarter of the hard timeout. When no resource
// reported activity since the previous check, the inactivity counter
// advances; reaching the configured maximum stops all feeding.
func (s *Supervisor) inactivityCheck() {
	if s.state != StateRunning {
		return
	}
	if s.activeSinceCheck {
		s.activeSinceCheck = false
		return
	}
	s.inactiveCycles++
	s.log.Writef("No system activity detected (cycle %d/%d)", s.inactiveCycles, s.cfg.MaxInactiveCycles)
	if s.inactiveCycles >= s.cfg.MaxInactiveCycles {
		s.log.Write("CRITICAL: No system activity detected for too long!")
		s.enterRebootPending()
	}
}

// graceFeed keeps the process, not the hardware, in control while the
// inactivity counter is still below the maximum.
func (s *Supervisor) graceFeed() {
	if s.state != StateRunning {
		return
	}
	if s.inactiveCycles == 0 || s.inactiveCycles >= s.cfg.MaxInactiveCycles {
		return
	}
	if err := s.handle.Trigger(); err != nil {
		s.log.Writef("Error feeding watchdog: %v", err)
		s.deviceFailure(err)
		return
	}
	s.feeds++
	s.log.Write("Watchdog fed (grace period)")
}

// enterRebootPending is idempotent; once pending, nothing reverts it.
func (s *Supervisor) enterRebootPending() {
	if s.state == StateRebootPending {
		return
	}
	s.state = StateRebootPending
	s.log.Write("Stopping watchdog feed - system will reboot automatically")
}

// deviceFailure ends the run as a distinct shutdown: the device is broken,
// so forcing a reboot through it would be meaningless. Cleanup still
// attempts a stop.
func (s *Supervisor) deviceFailure(err error) {
	if s.state != StateRunning {
		return
	}
	s.state = StateShutdown
	s.deviceErr = err
	s.log.Write("Watchdog device failure - exiting monitor")
}
