package datasync

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionTrial(t0 float64, n int) *Trial {
	trial := &Trial{Number: 1, Successful: true}
	trial.Time = make([]float64, n)
	trial.Force = make([]float64, n)
	trial.TaskState = make([]int, n)
	for i := range trial.Time {
		trial.Time[i] = t0 + float64(i)/1000
		if i >= n/2 {
			trial.TaskState[i] = DEFAULT_ALIGN_STATE
		} else {
			trial.TaskState[i] = 1
		}
	}
	return trial
}

func TestProcessSession(t *testing.T) {
	signal := encodeSyncSignal([]uint32{100, 101, 102, 103, 104}, 30000, false)
	trial := sessionTrial(10.25, 300)
	meta := Meta{
		Name:               "00001.NSX",
		SampleRateEphys:    30000,
		SampleRateBehavior: 1000,
		Timestamp:          1700000000,
	}

	pd, err := ProcessSession(signal, []*Trial{trial}, nil, nil, meta, DefaultConfig())

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, pd.Id)
	assert.Len(t, pd.Blocks, 5)
	require.Len(t, pd.Trials, 1)

	result := pd.Trials[0]
	assert.Equal(t, 1, result.Number)
	assert.NotEqual(t, UNALIGNED, result.Start)
	assert.Equal(t, trial.Force, result.ForceRaw)
	require.Len(t, result.ForceFilt, len(trial.Force))
	assert.InDeltaSlice(t, trial.Force, result.ForceFilt, 1e-9)
	// no condition target, so no refined alignment
	assert.Nil(t, result.Alignment)
}

func TestProcessSessionLegacyLatency(t *testing.T) {
	signal := encodeSyncSignal([]uint32{100, 101, 102, 103, 104}, 30000, false)
	meta := Meta{
		Name:               "00001.NSX",
		SampleRateEphys:    30000,
		SampleRateBehavior: 1000,
		Timestamp:          1700000000,
	}

	recent := DefaultConfig()
	recent.SessionDate = time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC)
	pdRecent, err := ProcessSession(signal, []*Trial{sessionTrial(10.25, 300)}, nil, nil, meta, recent)
	require.NoError(t, err)

	legacy := DefaultConfig()
	legacy.SessionDate = time.Date(2018, time.January, 1, 0, 0, 0, 0, time.UTC)
	pdLegacy, err := ProcessSession(signal, []*Trial{sessionTrial(10.25, 300)}, nil, nil, meta, legacy)
	require.NoError(t, err)

	// sessions predating the latency fix get the correction added back
	assert.Equal(t, pdRecent.Trials[0].Start+3000, pdLegacy.Trials[0].Start)
}

func TestProcessSessionEmptySignal(t *testing.T) {
	meta := Meta{SampleRateEphys: 30000, SampleRateBehavior: 1000}

	_, err := ProcessSession(nil, nil, nil, nil, meta, DefaultConfig())

	assert.IsType(t, &EmptySignalError{}, err)
}
