package datasync

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// synthSyncSignal builds a square wave carrying the given decisecond
// stamps, in the same pulse-width scheme the decoder expects. perturb may
// adjust each emitted pulse's sample count by its ordinal.
func synthSyncSignal(stamps []uint32, fs float64, perturb func(pulse, samples int) int) []float64 {
	spm := int(math.Round(fs / 1000))
	var signal []float64
	level := 0.0
	pulse := 0
	emit := func(ms int) {
		n := perturb(pulse, ms*spm)
		pulse++
		for i := 0; i < n; i++ {
			signal = append(signal, level)
		}
		if level == 0 {
			level = 5
		} else {
			level = 0
		}
	}

	emit(1) // lead-in, dropped as a partial block
	emit(6)
	for _, v := range stamps {
		for i := 0; i < 32; i++ {
			if v>>uint(i)&1 == 1 {
				emit(HIGH_PULSE_MS)
			} else {
				emit(LOW_PULSE_MS)
			}
			emit(1) // spacer
		}
		emit(6)
	}
	emit(1) // tail, dropped as a partial block

	return signal
}

// encodeSyncSignal is synthSyncSignal with optional one-sample jitter on
// every pulse.
func encodeSyncSignal(stamps []uint32, fs float64, jitter bool) []float64 {
	flip := 1
	return synthSyncSignal(stamps, fs, func(_, n int) int {
		if jitter {
			n += flip
			flip = -flip
		}
		return n
	})
}

// codePulseOrdinal locates code pulse j of block k in the emission order of
// synthSyncSignal: lead-in, gap, then 65 pulses per block (64 code+spacer
// plus the closing gap).
func codePulseOrdinal(block, j int) int {
	return 2 + block*65 + 2*j
}

func blockTimes(blocks []*SyncBlock) []float64 {
	times := make([]float64, len(blocks))
	for i, b := range blocks {
		times[i] = b.Time
	}
	return times
}

func TestDecodeSyncSignalRoundTrip(t *testing.T) {
	signal := encodeSyncSignal([]uint32{100, 101, 102}, 30000, false)

	blocks, err := DecodeSyncSignal(signal, 30000, DefaultDecodeConfig())

	require.NoError(t, err)
	require.Len(t, blocks, 3)
	assert.InDeltaSlice(t, []float64{10.0, 10.1, 10.2}, blockTimes(blocks), 1e-9)
	for i, b := range blocks {
		assert.Equal(t, i, b.Id)
		if i > 0 {
			assert.Greater(t, b.Start, blocks[i-1].Start)
		}
	}
}

func TestDecodeSyncSignalLowSampleRate(t *testing.T) {
	signal := encodeSyncSignal([]uint32{0, 1, 2}, 1000, false)

	blocks, err := DecodeSyncSignal(signal, 1000, DefaultDecodeConfig())

	require.NoError(t, err)
	require.Len(t, blocks, 3)
	assert.InDeltaSlice(t, []float64{0.0, 0.1, 0.2}, blockTimes(blocks), 1e-9)
}

func TestDecodeSyncSignalToleratesJitter(t *testing.T) {
	signal := encodeSyncSignal([]uint32{100, 101, 102}, 30000, true)

	blocks, err := DecodeSyncSignal(signal, 30000, DefaultDecodeConfig())

	require.NoError(t, err)
	require.Len(t, blocks, 3)
	assert.InDeltaSlice(t, []float64{10.0, 10.1, 10.2}, blockTimes(blocks), 1e-9)
}

func TestDecodeSyncSignalCorruptionInjection(t *testing.T) {
	// Stretch a single code pulse of the middle block past the per-pulse
	// tolerance; only that block may be dropped.
	target := codePulseOrdinal(1, 4)
	signal := synthSyncSignal([]uint32{100, 101, 102}, 30000, func(pulse, n int) int {
		if pulse == target {
			return n + 4
		}
		return n
	})

	blocks, err := DecodeSyncSignal(signal, 30000, DefaultDecodeConfig())

	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.InDeltaSlice(t, []float64{10.0, 10.2}, blockTimes(blocks), 1e-9)
}

func TestDecodeSyncSignalSecondScaleStamps(t *testing.T) {
	// Stamps one second apart; trailing silence keeps the duration bound
	// satisfied and the time step limit is widened to match the cadence.
	signal := encodeSyncSignal([]uint32{0, 10, 20}, 30000, false)
	signal = append(signal, make([]float64, 3*30000)...)
	cfg := DefaultDecodeConfig()
	cfg.MaxTimeStep = 1.0

	blocks, err := DecodeSyncSignal(signal, 30000, cfg)

	require.NoError(t, err)
	require.Len(t, blocks, 3)
	assert.InDeltaSlice(t, []float64{0.0, 1.0, 2.0}, blockTimes(blocks), 1e-4)
	for i := 1; i < len(blocks); i++ {
		assert.Greater(t, blocks[i].Start, blocks[i-1].Start)
	}
}

func TestDecodeSyncSignalRejectsImplausibleStamp(t *testing.T) {
	// The last stamp decodes cleanly but lies far past the end of the
	// recording.
	signal := encodeSyncSignal([]uint32{100, 101, 4000000}, 30000, false)

	blocks, err := DecodeSyncSignal(signal, 30000, DefaultDecodeConfig())

	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.InDeltaSlice(t, []float64{10.0, 10.1}, blockTimes(blocks), 1e-9)
}

func TestDecodeSyncSignalRejectsNonSequentialStamp(t *testing.T) {
	// 10.5 jumps forward by more than the allowed step; 10.2 still follows
	// from the last trusted stamp. Trailing silence keeps the recording long
	// enough that 10.5 is plausible on duration alone.
	signal := encodeSyncSignal([]uint32{100, 101, 105, 102}, 30000, false)
	signal = append(signal, make([]float64, 30*30000)...)

	blocks, err := DecodeSyncSignal(signal, 30000, DefaultDecodeConfig())

	require.NoError(t, err)
	require.Len(t, blocks, 3)
	assert.InDeltaSlice(t, []float64{10.0, 10.1, 10.2}, blockTimes(blocks), 1e-9)
}

func TestDecodeSyncSignalRejectsBackwardStamp(t *testing.T) {
	// 9.9 steps backward in time; its neighbors still chain from the last
	// trusted stamp and survive.
	signal := encodeSyncSignal([]uint32{100, 99, 101}, 30000, false)

	blocks, err := DecodeSyncSignal(signal, 30000, DefaultDecodeConfig())

	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.InDeltaSlice(t, []float64{10.0, 10.1}, blockTimes(blocks), 1e-9)
}

func TestDecodeSyncSignalNoGaps(t *testing.T) {
	// Alternating short pulses only: no gap pulse, so no complete block.
	var signal []float64
	for i := 0; i < 50; i++ {
		level := 0.0
		if i%2 == 1 {
			level = 5
		}
		for j := 0; j < 30; j++ {
			signal = append(signal, level)
		}
	}

	blocks, err := DecodeSyncSignal(signal, 30000, DefaultDecodeConfig())

	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestDecodeSyncSignalErrors(t *testing.T) {
	_, err := DecodeSyncSignal(nil, 30000, DefaultDecodeConfig())
	assert.IsType(t, &EmptySignalError{}, err)

	_, err = DecodeSyncSignal([]float64{1, 2, 3}, 0, DefaultDecodeConfig())
	assert.IsType(t, &InvalidSampleRateError{}, err)

	constant := make([]float64, 1000)
	_, err = DecodeSyncSignal(constant, 30000, DefaultDecodeConfig())
	assert.IsType(t, &InsufficientSignalError{}, err)
}
