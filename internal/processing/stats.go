package processing

import (
	"sync"
	"time"
)

type FilterStats struct {
	Frames uint64 `json:"frames"`
	Pixels uint64 `json:"pixels"`
	Errors uint64 `json:"errors"`
	Nanos  uint64 `json:"nanos"`
}

// MeanMillis is the average processing time per frame.
func (s FilterStats) MeanMillis() float64 {
	if s.Frames == 0 {
		return 0
	}
	return float64(s.Nanos) / float64(s.Frames) / 1e6
}

// Stats aggregates per-filter processing counters. It is safe for
// concurrent use by the worker pool.
type Stats struct {
	mu   sync.Mutex
	data map[string]*FilterStats
}

func NewStats() *Stats {
	return &Stats{data: make(map[string]*FilterStats)}
}

func (s *Stats) entry(name string) *FilterStats {
	fs, ok := s.data[name]
	if !ok {
		fs = &FilterStats{}
		s.data[name] = fs
	}
	return fs
}

func (s *Stats) Add(name string, pixels int, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fs := s.entry(name)
	fs.Frames++
	fs.Pixels += uint64(pixels)
	fs.Nanos += uint64(elapsed.Nanoseconds())
}

func (s *Stats) AddError(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry(name).Errors++
}

func (s *Stats) SnapshotCopy() map[string]FilterStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make(map[string]FilterStats, len(s.data))
	for name, fs := range s.data {
		snapshot[name] = *fs
	}
	return snapshot
}

func Timestamp() string {
	return time.Now().Format("20060102_150405")
}
