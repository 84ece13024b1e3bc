package pipeline

import (
	"sort"
	"sync"
	"time"

	"github.com/dgallion1/plandag/internal/outline"
)

type sample struct {
	timestamp  time.Time
	durationUs int64
}

// LatencySnapshot is a point-in-time aggregate of compile latency samples.
type LatencySnapshot struct {
	Count int     `json:"count"`
	MinUs int64   `json:"min_us"`
	MaxUs int64   `json:"max_us"`
	AvgUs float64 `json:"avg_us"`
	P50Us float64 `json:"p50_us"`
	P95Us float64 `json:"p95_us"`
	P99Us float64 `json:"p99_us"`
}

// StatsSnapshot pairs windowed latency with lifetime outcome counters.
type StatsSnapshot struct {
	Latency  LatencySnapshot  `json:"latency"`
	Outcomes map[string]int64 `json:"outcomes"`
}

// Outcome names counted besides outline error kinds.
const (
	OutcomeOK         = "ok"
	OutcomeSuperseded = "superseded"
	OutcomeUnchanged  = "unchanged"
	OutcomeParseError = "parse_error"
)

// CompileStats tracks recent compile latencies within a rolling window and
// counts outcomes since start.
type CompileStats struct {
	mu       sync.Mutex
	samples  []sample
	maxAge   time.Duration
	outcomes map[string]int64
}

func NewCompileStats(maxAge time.Duration) *CompileStats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &CompileStats{
		samples:  make([]sample, 0, 256),
		maxAge:   maxAge,
		outcomes: make(map[string]int64),
	}
}

// Record adds one compile. err is the compile result; outline errors are
// counted by kind.
func (s *CompileStats) Record(d time.Duration, err error) {
	us := d.Microseconds()
	if us < 0 {
		us = 0
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = "error"
		if kind, ok := outline.KindOf(err); ok {
			outcome = kind.String()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.pruneLocked(now)
	s.samples = append(s.samples, sample{
		timestamp:  now,
		durationUs: us,
	})
	s.outcomes[outcome]++
}

// Count bumps a non-compile outcome such as a superseded revision.
func (s *CompileStats) Count(outcome string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes[outcome]++
}

func (s *CompileStats) Snapshot() StatsSnapshot {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	outcomes := make(map[string]int64, len(s.outcomes))
	for k, v := range s.outcomes {
		outcomes[k] = v
	}
	snap := StatsSnapshot{Outcomes: outcomes}
	if len(s.samples) == 0 {
		return snap
	}

	values := make([]int64, 0, len(s.samples))
	var sum int64
	for _, sm := range s.samples {
		values = append(values, sm.durationUs)
		sum += sm.durationUs
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	snap.Latency = LatencySnapshot{
		Count: len(values),
		MinUs: values[0],
		MaxUs: values[len(values)-1],
		AvgUs: float64(sum) / float64(len(values)),
		P50Us: percentile(values, 50),
		P95Us: percentile(values, 95),
		P99Us: percentile(values, 99),
	}
	return snap
}

func (s *CompileStats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.maxAge)
	i := sort.Search(len(s.samples), func(i int) bool {
		return !s.samples[i].timestamp.Before(cutoff)
	})
	if i > 0 {
		s.samples = append(s.samples[:0], s.samples[i:]...)
	}
}

// percentile interpolates linearly between the two nearest ranks.
func percentile(sorted []int64, pct float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case pct <= 0:
		return float64(sorted[0])
	case pct >= 100:
		return float64(sorted[len(sorted)-1])
	}

	rank := float64(len(sorted)-1) * pct / 100
	lower := int(rank)
	if lower+1 >= len(sorted) {
		return float64(sorted[lower])
	}
	lo, hi := float64(sorted[lower]), float64(sorted[lower+1])
	return lo + (hi-lo)*(rank-float64(lower))
}
