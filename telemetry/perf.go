package telemetry

import (
	"log/slog"
	"time"
)

// Phase names for the simulation step.
const (
	PhaseNeighborGrid = "neighbor_grid"
	PhaseForces       = "forces"
	PhaseAdvection    = "advection"
	PhaseTelemetry    = "telemetry"
)

// PerfSample holds timing data for a single tick.
type PerfSample struct {
	TickDuration time.Duration
	Phases       map[string]time.Duration
}

// PerfCollector tracks performance metrics over a rolling window.
type PerfCollector struct {
	windowSize    int
	samples       []PerfSample
	writeIndex    int
	sampleCount   int
	currentPhases map[string]time.Duration
	tickStart     time.Time
	phaseStart    time.Time
	lastPhase     string
}

// NewPerfCollector creates a new performance collector averaging over
// windowSize ticks.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	return &PerfCollector{
		windowSize:    windowSize,
		samples:       make([]PerfSample, windowSize),
		currentPhases: make(map[string]time.Duration),
	}
}

// StartTick begins timing a new simulation tick.
func (p *PerfCollector) StartTick() {
	p.tickStart = time.Now()
	p.currentPhases = make(map[string]time.Duration)
	p.lastPhase = ""
}

// StartPhase begins timing a specific phase, ending the previous one.
func (p *PerfCollector) StartPhase(phase string) {
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
	p.lastPhase = phase
}

// EndTick finishes timing the current tick and records the sample.
func (p *PerfCollector) EndTick() {
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}

	p.samples[p.writeIndex] = PerfSample{
		TickDuration: now.Sub(p.tickStart),
		Phases:       p.currentPhases,
	}
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	AvgTickDuration time.Duration
	MinTickDuration time.Duration
	MaxTickDuration time.Duration

	// Phase breakdown (average durations and percentage of tick time)
	PhaseAvg map[string]time.Duration
	PhasePct map[string]float64

	TicksPerSecond float64
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	if p.sampleCount == 0 {
		return PerfStats{
			PhaseAvg: make(map[string]time.Duration),
			PhasePct: make(map[string]float64),
		}
	}

	var totalTick, minTick, maxTick time.Duration
	phaseSum := make(map[string]time.Duration)

	for i := 0; i < p.sampleCount; i++ {
		s := p.samples[i]
		totalTick += s.TickDuration
		if i == 0 || s.TickDuration < minTick {
			minTick = s.TickDuration
		}
		if s.TickDuration > maxTick {
			maxTick = s.TickDuration
		}
		for phase, dur := range s.Phases {
			phaseSum[phase] += dur
		}
	}

	avgTick := totalTick / time.Duration(p.sampleCount)
	phaseAvg := make(map[string]time.Duration)
	phasePct := make(map[string]float64)
	for phase, sum := range phaseSum {
		phaseAvg[phase] = sum / time.Duration(p.sampleCount)
		if avgTick > 0 {
			phasePct[phase] = float64(phaseAvg[phase]) / float64(avgTick) * 100
		}
	}

	var ticksPerSec float64
	if avgTick > 0 {
		ticksPerSec = float64(time.Second) / float64(avgTick)
	}

	return PerfStats{
		AvgTickDuration: avgTick,
		MinTickDuration: minTick,
		MaxTickDuration: maxTick,
		PhaseAvg:        phaseAvg,
		PhasePct:        phasePct,
		TicksPerSecond:  ticksPerSec,
	}
}

// LogStats logs performance statistics via slog.
func (s PerfStats) LogStats() {
	attrs := []any{
		"avg_tick_us", s.AvgTickDuration.Microseconds(),
		"min_tick_us", s.MinTickDuration.Microseconds(),
		"max_tick_us", s.MaxTickDuration.Microseconds(),
		"ticks_per_sec", int(s.TicksPerSecond),
	}

	phases := []string{PhaseNeighborGrid, PhaseForces, PhaseAdvection, PhaseTelemetry}
	for _, phase := range phases {
		if pct, ok := s.PhasePct[phase]; ok && pct > 0.1 {
			attrs = append(attrs, phase+"_pct", int(pct*10)/10.0)
		}
	}

	slog.Info("perf", attrs...)
}

// PerfStatsCSV is the flattened CSV row for a perf window.
type PerfStatsCSV struct {
	WindowEnd      uint64  `csv:"window_end"`
	AvgTickUs      int64   `csv:"avg_tick_us"`
	MinTickUs      int64   `csv:"min_tick_us"`
	MaxTickUs      int64   `csv:"max_tick_us"`
	TicksPerSecond float64 `csv:"ticks_per_sec"`
	NeighborPct    float64 `csv:"neighbor_grid_pct"`
	ForcesPct      float64 `csv:"forces_pct"`
	AdvectionPct   float64 `csv:"advection_pct"`
	TelemetryPct   float64 `csv:"telemetry_pct"`
}

// ToCSV flattens the stats into a CSV row.
func (s PerfStats) ToCSV(windowEnd uint64) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:      windowEnd,
		AvgTickUs:      s.AvgTickDuration.Microseconds(),
		MinTickUs:      s.MinTickDuration.Microseconds(),
		MaxTickUs:      s.MaxTickDuration.Microseconds(),
		TicksPerSecond: s.TicksPerSecond,
		NeighborPct:    s.PhasePct[PhaseNeighborGrid],
		ForcesPct:      s.PhasePct[PhaseForces],
		AdvectionPct:   s.PhasePct[PhaseAdvection],
		TelemetryPct:   s.PhasePct[PhaseTelemetry],
	}
}
