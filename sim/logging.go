package sim

import (
	"fmt"
	"io"
	"time"
)

// logWriter is the destination for log output.
var logWriter io.Writer

// SetLogWriter sets the log output destination.
func SetLogWriter(w io.Writer) {
	logWriter = w
}

// Logf writes a formatted log message.
func Logf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if logWriter != nil {
		fmt.Fprintln(logWriter, msg)
	} else {
		fmt.Println(msg)
	}
}

// LogPerf writes a human-readable perf breakdown.
func (s *Sim) LogPerf() {
	stats := s.perf.Stats()
	Logf("=== Perf @ Tick %d ===", s.tick)
	Logf("Avg step time: %s (%d steps/s)", stats.AvgTickDuration.Round(time.Microsecond), int(stats.TicksPerSecond))
	for phase, avg := range stats.PhaseAvg {
		Logf("  %-14s %10s  %5.1f%%", phase, avg.Round(time.Microsecond), stats.PhasePct[phase])
	}
	Logf("")
}

// LogState writes a one-line summary of the swarm.
func (s *Sim) LogState() {
	Logf("tick %d | n=%d | polar order %.4f", s.tick, s.store.N(), s.Order())
}
