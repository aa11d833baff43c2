package voxroom

import (
	"sync"
	"time"
)

// Stats are the library-wide processing counters.
type Stats struct {
	Rooms        int `json:"rooms"`
	Participants int `json:"participants"`

	InputBlocks    uint64 `json:"input_blocks"`
	OutputBlocks   uint64 `json:"output_blocks"`
	NoInputOutputs uint64 `json:"no_input_outputs"`
	ClippedSamples uint64 `json:"clipped_samples"`
	RejectedCalls  uint64 `json:"rejected_calls"`

	LastMixTime    time.Duration `json:"last_mix_time"`
	AverageMixTime time.Duration `json:"average_mix_time"`
	MaxMixTime     time.Duration `json:"max_mix_time"`

	LastUpdate time.Time `json:"last_update"`
}

// statsCollector accumulates Stats as audio flows through the library.
type statsCollector struct {
	mu    sync.Mutex
	stats Stats
	total time.Duration
	clock TimeProvider
}

func newStatsCollector(clock TimeProvider) *statsCollector {
	return &statsCollector{clock: clock}
}

func (sc *statsCollector) recordInput() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.stats.InputBlocks++
	sc.stats.LastUpdate = sc.clock.Now()
}

func (sc *statsCollector) recordRejected() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.stats.RejectedCalls++
}

func (sc *statsCollector) recordNoInput() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.stats.OutputBlocks++
	sc.stats.NoInputOutputs++
	sc.stats.LastUpdate = sc.clock.Now()
}

// recordOutput adds one mixed block that took elapsed and clipped samples.
func (sc *statsCollector) recordOutput(elapsed time.Duration, clipped int) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.stats.OutputBlocks++
	sc.stats.ClippedSamples += uint64(clipped)
	sc.stats.LastMixTime = elapsed
	if elapsed > sc.stats.MaxMixTime {
		sc.stats.MaxMixTime = elapsed
	}
	sc.total += elapsed
	mixed := sc.stats.OutputBlocks - sc.stats.NoInputOutputs
	if mixed > 0 {
		sc.stats.AverageMixTime = sc.total / time.Duration(mixed)
	}
	sc.stats.LastUpdate = sc.clock.Now()
}

func (sc *statsCollector) snapshot() Stats {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.stats
}
