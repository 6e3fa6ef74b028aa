package datasync

import (
	"log"
	"math"

	"gonum.org/v1/gonum/stat"
)

const (
	LOW_PULSE_MS          = 1    // (ms) nominal length of a "0" code pulse
	HIGH_PULSE_MS         = 2    // (ms) nominal length of a "1" code pulse
	INTER_BLOCK_MS        = 6    // (ms) gap pulse separating sync blocks
	DROPPED_BLOCK_MS      = 106  // (ms) gap pulse left by a block the encoder dropped
	CODE_PULSE_COUNT      = 32   // code pulses per sync block (one 32-bit time stamp)
	BLOCK_TAIL_PULSES     = 63   // pulses that must follow a block start for a full time stamp
	TIME_UNITS_PER_SECOND = 10   // encoded time stamps count deciseconds
	CORRUPTED_WARN_RATIO  = 0.10 // corrupted block ratio above which decoding is suspect
)

type DecodeConfig struct {
	MaxSampleErr int     // (samples) per-pulse tolerance when classifying code pulses
	MaxTimeStep  float64 // (s) maximum forward time step between consecutive blocks
}

func DefaultDecodeConfig() DecodeConfig {
	return DecodeConfig{
		MaxSampleErr: 2,
		MaxTimeStep:  0.2,
	}
}

type SyncBlock struct {
	Id      int     `codec:"-" db:"id"          json:"-"`
	Session int     `codec:"-" db:"session_id"  json:"-"`
	Start   int     `codec:"," db:"block_start" json:"start"`
	Time    float64 `codec:"," db:"block_time"  json:"time"`

	code      []int
	corrupted bool
}

type EmptySignalError struct{}

func (e *EmptySignalError) Error() string {
	return "Sync signal is empty"
}

type InvalidSampleRateError struct{}

func (e *InvalidSampleRateError) Error() string {
	return "Sample rate must be positive"
}

type InsufficientSignalError struct{}

func (e *InsufficientSignalError) Error() string {
	return "Fewer than two edges in binarized sync signal"
}

// DecodeSyncSignal recovers the time stamps embedded in the dedicated sync
// channel of a continuous recording. Each block of 32 pulse-width-modulated
// code pulses encodes one 32-bit decisecond counter value; blocks are
// separated by longer gap pulses. Corrupted blocks are dropped from the
// returned slice, which is ordered by start sample.
func DecodeSyncSignal(signal []float64, fs float64, cfg DecodeConfig) ([]*SyncBlock, error) {
	if len(signal) == 0 {
		return nil, &EmptySignalError{}
	}
	if fs <= 0 {
		return nil, &InvalidSampleRateError{}
	}

	// Binarize against the signal's own mean. The encoded square wave is
	// assumed to dominate the amplitude distribution.
	m := stat.Mean(signal, nil)
	binarized := make([]bool, len(signal))
	for i, v := range signal {
		binarized[i] = v > m
	}

	var edges []int
	for i := 1; i < len(binarized); i++ {
		if binarized[i] != binarized[i-1] {
			edges = append(edges, i)
		}
	}
	if len(edges) < 2 {
		return nil, &InsufficientSignalError{}
	}

	samplesPerMs := int(math.Round(fs / 1000.0))
	low := LOW_PULSE_MS * samplesPerMs
	high := HIGH_PULSE_MS * samplesPerMs
	interBlock := INTER_BLOCK_MS * samplesPerMs
	droppedBlock := DROPPED_BLOCK_MS * samplesPerMs

	pulses := diff(edges)

	// Remove partial leading and trailing blocks so that only complete
	// gap-delimited runs remain.
	first, last := -1, -1
	for i, p := range pulses {
		if p >= interBlock {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return []*SyncBlock{}, nil
	}
	edges = edges[first+1 : last+1]

	pulses = diff(edges)
	if len(pulses) == 0 {
		return []*SyncBlock{}, nil
	}

	// Snap each observed pulse length to the nearest canonical class.
	canonical := []int{low, high, interBlock, droppedBlock}
	snap := func(p int) int {
		nearest := canonical[0]
		for _, c := range canonical[1:] {
			if abs(p-c) < abs(p-nearest) {
				nearest = c
			}
		}
		return nearest
	}

	// A block starts on the first pulse and after every gap pulse.
	var starts []int
	starts = append(starts, 0)
	for i := 1; i < len(pulses); i++ {
		if snap(pulses[i-1]) > high {
			starts = append(starts, i)
		}
	}

	var blocks []*SyncBlock
	for _, s := range starts {
		// Blocks without a full time stamp's worth of trailing pulses are
		// excluded outright.
		if s+BLOCK_TAIL_PULSES >= len(pulses) {
			continue
		}
		code := make([]int, CODE_PULSE_COUNT)
		for i := range code {
			code[i] = pulses[s+2*i]
		}
		blocks = append(blocks, &SyncBlock{Start: edges[s], code: code})
	}
	if len(blocks) == 0 {
		return []*SyncBlock{}, nil
	}

	for _, block := range blocks {
		for _, c := range block.code {
			if min(abs(c-low), abs(c-high)) > cfg.MaxSampleErr {
				block.corrupted = true
				break
			}
		}
		if block.corrupted {
			block.Time = math.NaN()
			continue
		}
		var value uint64
		for i, c := range block.code {
			bit := uint64(math.Round(float64(c-low) / float64(low)))
			value |= bit << uint(i)
		}
		block.Time = float64(value) / TIME_UNITS_PER_SECOND
	}

	// The first block's time stamp plus the recording duration bounds every
	// later stamp. Blocks beyond the bound decoded cleanly but cannot be
	// trusted.
	tMax := blocks[0].Time + float64(len(signal))/fs
	for _, block := range blocks {
		if !block.corrupted && block.Time > tMax {
			block.corrupted = true
		}
	}

	// Time stamps must advance, and never by more than MaxTimeStep, between
	// consecutive uncorrupted blocks.
	prev := math.NaN()
	for _, block := range blocks {
		if block.corrupted {
			continue
		}
		if !math.IsNaN(prev) && (block.Time < prev || block.Time > prev+cfg.MaxTimeStep) {
			block.corrupted = true
			continue
		}
		prev = block.Time
	}

	corrupted := 0
	for _, block := range blocks {
		if block.corrupted {
			corrupted++
		}
	}
	if ratio := float64(corrupted) / float64(len(blocks)); ratio > CORRUPTED_WARN_RATIO {
		log.Printf("[WARN] %.2f%% corrupted sync blocks. Timing estimate may be unreliable.", 100*ratio)
	}

	clean := make([]*SyncBlock, 0, len(blocks)-corrupted)
	for _, block := range blocks {
		if !block.corrupted {
			block.Id = len(clean)
			clean = append(clean, block)
		}
	}
	return clean, nil
}
