package datasync

import (
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/pconstantinou/savitzkygolay"
)

const (
	FORCE_FILTER_WINDOW = 51 // (samples) Savitzky-Golay window for offline force filtering
	FORCE_FILTER_ORDER  = 3
)

// Sessions recorded on or before this date predate the acquisition chain
// that introduced the constant trial-start latency, so the correction is
// added back. Empirically determined on the original rig.
var LegacyLatencyCutoff = time.Date(2018, time.October, 11, 0, 0, 0, 0, time.UTC)

type Config struct {
	Decode       DecodeConfig
	Align        AlignConfig
	SessionDate  time.Time // zero value disables the legacy latency rule
	LegacyCutoff time.Time
}

func DefaultConfig() Config {
	return Config{
		Decode:       DefaultDecodeConfig(),
		Align:        DefaultAlignConfig(),
		LegacyCutoff: LegacyLatencyCutoff,
	}
}

type Meta struct {
	Id                 uuid.UUID `codec:","`
	Name               string    `codec:","`
	SampleRateEphys    float64   `codec:","`
	SampleRateBehavior float64   `codec:","`
	Timestamp          int64     `codec:","`
}

type TrialResult struct {
	Number     int        `codec:","`
	Successful bool       `codec:","`
	Start      int        `codec:","` // trial start in the ephys time base, UNALIGNED when uncovered
	ForceRaw   []float64  `codec:","` // online force as recorded (Volts)
	ForceFilt  []float64  `codec:","` // calibrated and offline-filtered force (Newtons)
	Alignment  *Alignment `codec:","`
}

type Processed struct {
	Meta
	Blocks []*SyncBlock   `codec:","`
	Trials []*TrialResult `codec:","`
}

// ProcessSession runs the whole offline pipeline for one recording: decode
// the sync channel, anchor every trial's start in the ephys time base, and
// refine successful trials with the phase-corrected alignment. A failing
// trial is reported and skipped; it never aborts the batch.
func ProcessSession(syncSignal []float64, trials []*Trial, cond *Condition, cal *Calibration, meta Meta, cfg Config) (*Processed, error) {
	var pd Processed
	pd.Meta = meta
	if pd.Id == uuid.Nil {
		pd.Id = uuid.New()
	}

	blocks, err := DecodeSyncSignal(syncSignal, meta.SampleRateEphys, cfg.Decode)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		log.Printf("[WARN] no usable timing track in '%s'; trials will not be aligned", meta.Name)
	}
	pd.Blocks = blocks

	trialTimes := make([][]float64, len(trials))
	for i, trial := range trials {
		trialTimes[i] = trial.Time
	}
	starts, err := EphysTrialStart(meta.SampleRateEphys, trialTimes, blocks, cfg.Align)
	if err != nil {
		return nil, err
	}

	if !cfg.SessionDate.IsZero() && !cfg.SessionDate.After(cfg.LegacyCutoff) {
		readd := int(math.Round(cfg.Align.StartLatency * meta.SampleRateEphys))
		for i, s := range starts {
			if s != UNALIGNED {
				starts[i] = s + readd
			}
		}
	}

	sgf, _ := savitzkygolay.NewFilter(FORCE_FILTER_WINDOW, 0, FORCE_FILTER_ORDER)

	for i, trial := range trials {
		result := &TrialResult{
			Number:     trial.Number,
			Successful: trial.Successful,
			Start:      starts[i],
			ForceRaw:   trial.Force,
		}
		pd.Trials = append(pd.Trials, result)

		newtons := make([]float64, len(trial.Force))
		for j, v := range trial.Force {
			if cal != nil {
				newtons[j] = cal.Convert(v)
			} else {
				newtons[j] = v
			}
		}

		t := make([]float64, len(newtons))
		for j := range t {
			t[j] = float64(j) / meta.SampleRateBehavior
		}
		if len(newtons) >= FORCE_FILTER_WINDOW {
			result.ForceFilt, _ = sgf.Process(newtons, t)
		} else {
			result.ForceFilt = newtons
		}

		if !trial.Successful || result.Start == UNALIGNED || cond == nil {
			continue
		}

		calibrated := *trial
		calibrated.Force = newtons
		alignment, err := AlignTrial(&calibrated, cond.Target, result.Start,
			meta.SampleRateBehavior, meta.SampleRateEphys, len(syncSignal), cfg.Align)
		if err != nil {
			log.Printf("[WARN] trial %d could not be aligned: %s", trial.Number, err.Error())
			continue
		}
		result.Alignment = alignment
	}

	return &pd, nil
}
