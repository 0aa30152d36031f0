// Package sampler reads instantaneous host counters for the resources the
// supervisor watches. Each read returns a typed snapshot or an error; the
// sampler itself holds no state between calls.
package sampler

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/net"
)

// Kind tags which resource a timer event or snapshot belongs to. It is
// carried explicitly through the supervisor loop; nothing is inferred from
// timer identity.
type Kind int

const (
	KindCPU Kind = iota
	KindMemory
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindCPU:
		return "cpu"
	case KindMemory:
		return "memory"
	case KindNetwork:
		return "network"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Kinds lists every monitored resource.
var Kinds = []Kind{KindCPU, KindMemory, KindNetwork}

// Counters is a raw snapshot for one resource kind. Only the fields of the
// sampled kind are populated. Tick and byte counters are unsigned 64-bit;
// monotonic-counter wraparound is handled by the evaluator.
type Counters struct {
	CPUTotal uint64 // cumulative ticks, all classes
	CPUIdle  uint64 // cumulative idle ticks

	MemAvailable uint64 // bytes

	NetRX uint64 // cumulative receive bytes, loopback excluded
	NetTX uint64 // cumulative transmit bytes, loopback excluded

	SampledAt time.Time
}

// Sampler reads one resource kind.
type Sampler interface {
	Sample(ctx context.Context, kind Kind) (Counters, error)
}

// System samples the local host through gopsutil.
type System struct{}

func NewSystem() *System { return &System{} }

// userHZ converts gopsutil's seconds back into scheduler ticks so deltas
// stay in unsigned integer arithmetic.
const userHZ = 100

func toTicks(seconds float64) uint64 {
	if seconds <= 0 {
		return 0
	}
	return uint64(seconds*userHZ + 0.5)
}

func (s *System) Sample(ctx context.Context, kind Kind) (Counters, error) {
	switch kind {
	case KindCPU:
		return sampleCPU(ctx)
	case KindMemory:
		return sampleMemory(ctx)
	case KindNetwork:
		return sampleNetwork(ctx)
	default:
		return Counters{}, fmt.Errorf("unknown resource kind %d", kind)
	}
}

func sampleCPU(ctx context.Context) (Counters, error) {
	stats, err := cpu.TimesWithContext(ctx, false)
	if err != nil {
		return Counters{}, fmt.Errorf("read cpu times: %w", err)
	}
	if len(stats) == 0 {
		return Counters{}, fmt.Errorf("read cpu times: no aggregate cpu line")
	}
	total, idle := cpuTicks(stats[0])
	return Counters{CPUTotal: total, CPUIdle: idle, SampledAt: time.Now()}, nil
}

// cpuTicks folds the aggregate time classes into total and idle tick
// counters: user, nice, system, idle, iowait, irq, softirq, steal.
func cpuTicks(stat cpu.TimesStat) (total, idle uint64) {
	seconds := stat.User + stat.Nice + stat.System + stat.Idle +
		stat.Iowait + stat.Irq + stat.Softirq + stat.Steal
	return toTicks(seconds), toTicks(stat.Idle)
}

func sampleMemory(ctx context.Context) (Counters, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Counters{}, fmt.Errorf("read memory info: %w", err)
	}
	return Counters{MemAvailable: vm.Available, SampledAt: time.Now()}, nil
}

func sampleNetwork(ctx context.Context) (Counters, error) {
	counters, err := net.IOCountersWithContext(ctx, true)
	if err != nil {
		return Counters{}, fmt.Errorf("read network counters: %w", err)
	}
	rx, tx := sumInterfaceBytes(counters)
	return Counters{NetRX: rx, NetTX: tx, SampledAt: time.Now()}, nil
}

// sumInterfaceBytes aggregates cumulative byte counters across interfaces,
// excluding loopback by exact name match.
func sumInterfaceBytes(counters []net.IOCountersStat) (rx, tx uint64) {
	for _, ctr := range counters {
		if ctr.Name == "lo" {
			continue
		}
		rx += ctr.BytesRecv
		tx += ctr.BytesSent
	}
	return rx, tx
}
