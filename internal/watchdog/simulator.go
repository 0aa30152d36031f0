package watchdog

import (
	"errors"
	"sync"
)

// Simulator is an in-memory Port for tests and for --dry-run operation,
// where arming a real device would risk rebooting the host.
type Simulator struct {
	mu       sync.Mutex
	running  bool
	params   Params
	triggers int
	starts   int
	stops    int

	FailStart   bool
	FailTrigger bool
	FailStop    bool
}

var errSimulatedFailure = errors.New("simulated device failure")

// NewSimulator returns a simulator with SUSI-like capability values.
func NewSimulator() *Simulator {
	return &Simulator{}
}

func (s *Simulator) Start(p Params) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailStart {
		return errSimulatedFailure
	}
	s.running = true
	s.params = p
	s.starts++
	return nil
}

func (s *Simulator) Trigger() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailTrigger {
		return errSimulatedFailure
	}
	if !s.running {
		return ErrNotRunning
	}
	s.triggers++
	return nil
}

func (s *Simulator) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailStop {
		return errSimulatedFailure
	}
	s.running = false
	s.stops++
	return nil
}

func (s *Simulator) Capability(key CapKey) (uint32, bool) {
	switch key {
	case CapSupportFlags:
		return 1, true
	case CapUnitMinimum:
		return 1000, true
	case CapDelayMinimum, CapResetMinimum:
		return 1000, true
	case CapDelayMaximum, CapResetMaximum:
		return 65535000, true
	default:
		return 0, false
	}
}

// TriggerCount reports how many feeds the simulator accepted.
func (s *Simulator) TriggerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.triggers
}

// Armed reports whether the simulated device is counting down.
func (s *Simulator) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// ArmedParams returns the parameters the device was last started with.
func (s *Simulator) ArmedParams() Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// StopCount reports how many times Stop succeeded.
func (s *Simulator) StopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}
