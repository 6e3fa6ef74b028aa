package datasync

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"gosync/internal/filter"
)

const (
	TRIAL_START_LATENCY    = 0.1   // (s) controller-to-encoder latency subtracted from coarse starts
	LAG_SMOOTHING_SD       = 0.025 // (s) Gaussian smoothing applied to each lag-search slice
	DEFAULT_MAX_LAG        = 0.2   // (s) default half-width of the lag search
	DEFAULT_ALIGN_STATE    = 5     // task state marking the alignment reference event
	STATIC_TARGET_VARIANCE = 1e-12 // target variance below which the lag search is skipped
)

// UNALIGNED marks a trial that could not be matched to the sync block span.
const UNALIGNED = -1

type AlignConfig struct {
	StartLatency   float64 // (s) constant latency between controller trial start and the encoded signal
	AlignmentState int     // task state code anchoring the analysis window
	MaxLag         float64 // (s) half-width of the phase correction search
	SmoothingSD    float64 // (s) Gaussian kernel SD for lag-search smoothing
}

func DefaultAlignConfig() AlignConfig {
	return AlignConfig{
		StartLatency:   TRIAL_START_LATENCY,
		AlignmentState: DEFAULT_ALIGN_STATE,
		MaxLag:         DEFAULT_MAX_LAG,
		SmoothingSD:    LAG_SMOOTHING_SD,
	}
}

// Trial carries one trial's controller-clock vectors, already calibrated.
type Trial struct {
	Number     int
	Time       []float64 // simulation clock stamps, one per sample
	TaskState  []int
	Force      []float64 // measured force (calibrated)
	Successful bool
}

// Alignment maps every sample of a trial's analysis window to absolute
// positions in both the controller and recording clocks.
type Alignment struct {
	Lag      int     `codec:","`
	Score    float64 `codec:","`
	Behavior []int   `codec:","` // sample indices into the trial vectors
	Ephys    []int   `codec:","` // absolute sample indices in the recording
}

type EmptyTrialTimeError struct{}

func (e *EmptyTrialTimeError) Error() string {
	return "Trial has an empty simulation time vector"
}

type NoCandidateSampleError struct{}

func (e *NoCandidateSampleError) Error() string {
	return "No candidate sample reaches the trial start time; sync blocks are inconsistent"
}

type NoAlignmentStateError struct{}

func (e *NoAlignmentStateError) Error() string {
	return "Trial never reaches the alignment state"
}

type EmptyTargetError struct{}

func (e *EmptyTargetError) Error() string {
	return "Condition target is empty"
}

type TrialTooShortError struct{}

func (e *TrialTooShortError) Error() string {
	return "Trial is too short for the alignment window"
}

type AlignmentRangeError struct{}

func (e *AlignmentRangeError) Error() string {
	return "Alignment index falls outside the recording"
}

// EphysTrialStart maps each trial's controller-clock start time to the
// nearest sample index in the recording, anchored on the nearest decoded
// sync block. Trials starting outside the span covered by sync blocks get
// UNALIGNED.
func EphysTrialStart(fsEphys float64, trialTimes [][]float64, blocks []*SyncBlock, cfg AlignConfig) ([]int, error) {
	starts := make([]int, len(trialTimes))

	if len(blocks) == 0 {
		for i := range starts {
			starts[i] = UNALIGNED
		}
		return starts, nil
	}

	// Midpoints between consecutive blocks, in both clocks, bound the
	// "nearest block" bins and the candidate sample windows.
	midTime := make([]float64, len(blocks)-1)
	midStart := make([]float64, len(blocks)-1)
	for i := 0; i+1 < len(blocks); i++ {
		midTime[i] = (blocks[i].Time + blocks[i+1].Time) / 2
		midStart[i] = float64(blocks[i].Start+blocks[i+1].Start) / 2
	}

	latency := int(math.Round(cfg.StartLatency * fsEphys))

	for i, t := range trialTimes {
		if len(t) == 0 {
			return nil, &EmptyTrialTimeError{}
		}
		t0 := t[0]

		if t0 < blocks[0].Time || t0 > blocks[len(blocks)-1].Time {
			starts[i] = UNALIGNED
			continue
		}

		nearest := 0
		for nearest < len(midTime) && midTime[nearest] <= t0 {
			nearest++
		}

		lo := 0
		if nearest > 0 {
			lo = int(math.Floor(midStart[nearest-1]))
		}
		upper := float64(blocks[len(blocks)-1].Start)
		if len(midStart) > 0 {
			upper = midStart[len(midStart)-1]
		}
		end := int(math.Ceil(upper))

		anchor := blocks[nearest]
		found := UNALIGNED
		for s := lo; s <= end; s++ {
			implied := round6(anchor.Time + float64(s-anchor.Start)/fsEphys)
			if implied >= t0 {
				found = s
				break
			}
		}
		if found == UNALIGNED {
			return nil, &NoCandidateSampleError{}
		}

		found -= latency
		if found < 0 {
			// The latency correction can push very early trials before the
			// recording started; those cannot be trialized.
			found = UNALIGNED
		}
		starts[i] = found
	}

	return starts, nil
}

// AlignTrial refines a coarse trial start into per-sample alignment index
// arrays for both clocks, searching over small lags of the measured force
// against the condition target. Static (flat) targets make the objective
// uninformative, so they skip the search.
func AlignTrial(trial *Trial, target []float64, coarseStart int, fsBehavior, fsEphys float64, totalSamples int, cfg AlignConfig) (*Alignment, error) {
	if len(target) == 0 {
		return nil, &EmptyTargetError{}
	}

	ref := -1
	for i, s := range trial.TaskState {
		if s == cfg.AlignmentState {
			ref = i
			break
		}
	}
	if ref < 0 {
		return nil, &NoAlignmentStateError{}
	}

	n := len(target)
	if ref+n > len(trial.Force) {
		return nil, &TrialTooShortError{}
	}

	lag := 0
	score := 0.0
	if stat.Variance(target, nil) > STATIC_TARGET_VARIANCE {
		maxLag := int(math.Round(fsBehavior * cfg.MaxLag))
		best := math.Inf(-1)
		for l := -maxLag; l <= maxLag; l++ {
			if ref+l < 0 || ref+l+n > len(trial.Force) {
				continue
			}
			slice := trial.Force[ref+l : ref+l+n]
			smoothed := filter.Gaussian(slice, fsBehavior, cfg.SmoothingSD)
			s := nmse(smoothed, target)
			if s > best {
				best = s
				lag = l
			}
		}
		score = best
	}

	behavior := make([]int, n)
	ephys := make([]int, n)
	for i := range behavior {
		behavior[i] = ref + lag + i
		ephys[i] = coarseStart + int(math.Round(float64(behavior[i])*fsEphys/fsBehavior))
		if ephys[i] < 0 || ephys[i] >= totalSamples {
			return nil, &AlignmentRangeError{}
		}
	}

	return &Alignment{
		Lag:      lag,
		Score:    score,
		Behavior: behavior,
		Ephys:    ephys,
	}, nil
}

// nmse scores how well a measured slice matches the target trajectory:
// 1 - sqrt(MSE/var(target)). 1 is a perfect match.
func nmse(measured, target []float64) float64 {
	var sq float64
	for i := range measured {
		d := measured[i] - target[i]
		sq += d * d
	}
	mse := sq / float64(len(measured))
	return 1 - math.Sqrt(mse/stat.Variance(target, nil))
}
