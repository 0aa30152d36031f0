package monitor

import (
	"fmt"

	"swmon/internal/sampler"
)

// Verdict classifies one resource reading against its previous snapshot.
type Verdict int

const (
	// VerdictNoBaseline means no usable previous snapshot exists; the
	// reading only establishes a baseline and must never feed the
	// watchdog nor count as inactivity.
	VerdictNoBaseline Verdict = iota
	VerdictInactive
	VerdictActive
	// VerdictCritical is CPU-only: usage at or above the maximum
	// threshold, treated as a fault requiring reboot.
	VerdictCritical
)

func (v Verdict) String() string {
	switch v {
	case VerdictNoBaseline:
		return "no-baseline"
	case VerdictInactive:
		return "inactive"
	case VerdictActive:
		return "active"
	case VerdictCritical:
		return "critical"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Thresholds are the activity classification limits.
type Thresholds struct {
	CPULow  float64 // percent; above this is activity
	CPUHigh float64 // percent; at or above this is critical
	Mem     uint64  // bytes of available-memory change
	Net     uint64  // bytes of rx or tx delta
}

// Detail carries the derived signal for logging.
type Detail struct {
	BusyPercent float64
	MemDelta    int64
	RXDelta     uint64
	TXDelta     uint64
}

// Evaluate classifies the current reading of kind against prev. A nil prev
// yields VerdictNoBaseline, as does a decrease in any monotonic counter
// (ticks, cumulative bytes), which indicates a counter reset.
func Evaluate(kind sampler.Kind, cur sampler.Counters, prev *sampler.Counters, th Thresholds) (Verdict, Detail) {
	if prev == nil {
		return VerdictNoBaseline, Detail{}
	}
	switch kind {
	case sampler.KindCPU:
		return evaluateCPU(cur, *prev, th)
	case sampler.KindMemory:
		return evaluateMemory(cur, *prev, th)
	case sampler.KindNetwork:
		return evaluateNetwork(cur, *prev, th)
	default:
		return VerdictNoBaseline, Detail{}
	}
}

func evaluateCPU(cur, prev sampler.Counters, th Thresholds) (Verdict, Detail) {
	if prev.CPUTotal == 0 {
		return VerdictNoBaseline, Detail{}
	}
	if cur.CPUTotal < prev.CPUTotal || cur.CPUIdle < prev.CPUIdle {
		// Tick counters went backwards; re-baseline.
		return VerdictNoBaseline, Detail{}
	}
	totalDiff := cur.CPUTotal - prev.CPUTotal
	idleDiff := cur.CPUIdle - prev.CPUIdle

	var busy float64
	if totalDiff > 0 && idleDiff <= totalDiff {
		busy = 100.0 * float64(totalDiff-idleDiff) / float64(totalDiff)
	}
	d := Detail{BusyPercent: busy}

	// Critical takes precedence over activity classification.
	if busy >= th.CPUHigh {
		return VerdictCritical, d
	}
	if busy > th.CPULow {
		return VerdictActive, d
	}
	return VerdictInactive, d
}

func evaluateMemory(cur, prev sampler.Counters, th Thresholds) (Verdict, Detail) {
	delta := int64(cur.MemAvailable) - int64(prev.MemAvailable)
	d := Detail{MemDelta: delta}
	abs := delta
	if abs < 0 {
		abs = -abs
	}
	if uint64(abs) > th.Mem {
		return VerdictActive, d
	}
	return VerdictInactive, d
}

func evaluateNetwork(cur, prev sampler.Counters, th Thresholds) (Verdict, Detail) {
	// Deltas are only meaningful once both sides of the comparison have
	// seen traffic.
	if cur.NetRX == 0 || cur.NetTX == 0 || prev.NetRX == 0 || prev.NetTX == 0 {
		return VerdictNoBaseline, Detail{}
	}
	if cur.NetRX < prev.NetRX || cur.NetTX < prev.NetTX {
		// An interface counter reset; re-baseline.
		return VerdictNoBaseline, Detail{}
	}
	d := Detail{RXDelta: cur.NetRX - prev.NetRX, TXDelta: cur.NetTX - prev.NetTX}
	if d.RXDelta > th.Net || d.TXDelta > th.Net {
		return VerdictActive, d
	}
	return VerdictInactive, d
}
