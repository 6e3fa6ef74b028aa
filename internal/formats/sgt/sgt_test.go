package sgt

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSummary = "Version:=1;TaskState0:='Idle';TaskState1:='Reach';TaskState5:='Success';TaskState6:='Failure';"

func writeLogDir(t *testing.T) string {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.summary"), []byte(testSummary), 0644))
	return dir
}

// buildTrialData packs a task state ('U') and a force ('D') channel into a
// fixed-layout packet stream, one packet per sample.
func buildTrialData(t *testing.T, clock []float64, states []byte, force []float64) []byte {
	buf := new(bytes.Buffer)
	for p := range clock {
		binary.Write(buf, binary.LittleEndian, clock[p])
		binary.Write(buf, binary.LittleEndian, uint16(21))
		buf.WriteString("tst")
		buf.WriteByte('U')
		binary.Write(buf, binary.LittleEndian, uint16(1))
		buf.WriteByte(states[p])
		buf.WriteString("for")
		buf.WriteByte('D')
		binary.Write(buf, binary.LittleEndian, uint16(1))
		binary.Write(buf, binary.LittleEndian, force[p])
	}
	return buf.Bytes()
}

func clockAt(rate float64, n int) []float64 {
	clock := make([]float64, n)
	for i := range clock {
		clock[i] = 10.0 + float64(i)/rate
	}
	return clock
}

func TestParserIndexesTrialFiles(t *testing.T) {
	dir := writeLogDir(t)
	data := buildTrialData(t, clockAt(1000, 3), []byte{1, 1, 5}, []float64{0.1, 0.2, 0.3})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "beh_1.data"), data, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "beh_1.params"), []byte("x"), 0644))
	// no params file, should be ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "beh_2.data"), data, 0644))

	parser, err := NewParser(dir, 1000)

	require.NoError(t, err)
	assert.Equal(t, []int{1}, parser.Trials())
	assert.Equal(t, 5, parser.TaskStates["Success"])
	assert.Equal(t, 0, parser.TaskStates["Idle"])
}

func TestMissingSummary(t *testing.T) {
	_, err := NewParser(t.TempDir(), 1000)
	assert.IsType(t, &MissingSummaryError{}, err)
}

func TestMissingSuccessState(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.summary"),
		[]byte("TaskState0:='Idle';"), 0644))

	_, err := NewParser(dir, 1000)
	assert.IsType(t, &MissingSuccessStateError{}, err)
}

func TestReadTrialData(t *testing.T) {
	dir := writeLogDir(t)
	clock := clockAt(1000, 5)
	force := []float64{0.1, 0.2, 0.3, 0.4, 0.5}
	data := buildTrialData(t, clock, []byte{1, 1, 1, 5, 5}, force)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "beh_1.data"), data, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "beh_1.params"), []byte("x"), 0644))

	parser, err := NewParser(dir, 1000)
	require.NoError(t, err)

	td, err := parser.ReadTrialData(1)
	require.NoError(t, err)
	require.NotNil(t, td)
	assert.True(t, td.Successful)
	assert.InDeltaSlice(t, clock, td.SimulationTime, 1e-12)
	assert.Equal(t, []int{1, 1, 1, 5, 5}, td.TaskState)
	assert.InDeltaSlice(t, force, td.Signals["force_y_raw"], 1e-12)
	// channels the controller never emitted are NaN-filled
	require.Len(t, td.Signals["stim"], 5)
	assert.True(t, math.IsNaN(td.Signals["stim"][0]))
}

func TestReadTrialDataFailedTrial(t *testing.T) {
	dir := writeLogDir(t)
	data := buildTrialData(t, clockAt(1000, 3), []byte{1, 5, 6}, []float64{0, 0, 0})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "beh_1.data"), data, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "beh_1.params"), []byte("x"), 0644))

	parser, err := NewParser(dir, 1000)
	require.NoError(t, err)

	td, err := parser.ReadTrialData(1)
	require.NoError(t, err)
	require.NotNil(t, td)
	assert.False(t, td.Successful)
}

func TestReadTrialDataIncompleteTrial(t *testing.T) {
	dir := writeLogDir(t)
	data := buildTrialData(t, clockAt(1000, 3), []byte{1, 1, 1}, []float64{0, 0, 0})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "beh_1.data"), data, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "beh_1.params"), []byte("x"), 0644))

	parser, err := NewParser(dir, 1000)
	require.NoError(t, err)

	td, err := parser.ReadTrialData(1)
	require.NoError(t, err)
	assert.Nil(t, td)
}

func TestReadTrialDataDroppedPackets(t *testing.T) {
	dir := writeLogDir(t)
	clock := []float64{10.0, 10.001, 10.004, 10.005}
	data := buildTrialData(t, clock, []byte{1, 1, 5, 5}, []float64{0, 0, 0, 0})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "beh_1.data"), data, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "beh_1.params"), []byte("x"), 0644))

	parser, err := NewParser(dir, 1000)
	require.NoError(t, err)

	td, err := parser.ReadTrialData(1)
	require.NoError(t, err)
	assert.Nil(t, td)
}

func TestReadTrialDataMalformed(t *testing.T) {
	dir := writeLogDir(t)
	data := buildTrialData(t, clockAt(1000, 2), []byte{1, 5}, []float64{0, 0})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "beh_1.data"), data[:len(data)-3], 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "beh_1.params"), []byte("x"), 0644))

	parser, err := NewParser(dir, 1000)
	require.NoError(t, err)

	_, err = parser.ReadTrialData(1)
	assert.IsType(t, &MalformedTrialFileError{}, err)

	_, err = parser.ReadTrialData(9)
	assert.IsType(t, &NoSuchTrialError{}, err)
}

// buildPacket wraps one raw payload in a single whole packet.
func buildPacket(payload []byte) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, 10.0)
	binary.Write(buf, binary.LittleEndian, uint16(len(payload)))
	buf.Write(payload)
	return buf.Bytes()
}

func TestReadTrialDataRejectsOversizedChannelLength(t *testing.T) {
	dir := writeLogDir(t)
	// a 'D' channel claiming far more values than the packet holds
	payload := new(bytes.Buffer)
	payload.WriteString("for")
	payload.WriteByte('D')
	binary.Write(payload, binary.LittleEndian, uint16(1000))
	payload.Write(make([]byte, 4))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "beh_1.data"), buildPacket(payload.Bytes()), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "beh_1.params"), []byte("x"), 0644))

	parser, err := NewParser(dir, 1000)
	require.NoError(t, err)

	_, err = parser.ReadTrialData(1)
	assert.IsType(t, &MalformedTrialFileError{}, err)
}

func TestReadTrialDataRejectsTruncatedChannelEntry(t *testing.T) {
	dir := writeLogDir(t)
	// a 'U' channel cut off before its value byte
	payload := new(bytes.Buffer)
	payload.WriteString("tst")
	payload.WriteByte('U')
	binary.Write(payload, binary.LittleEndian, uint16(1))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "beh_1.data"), buildPacket(payload.Bytes()), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "beh_1.params"), []byte("x"), 0644))

	parser, err := NewParser(dir, 1000)
	require.NoError(t, err)

	_, err = parser.ReadTrialData(1)
	assert.IsType(t, &MalformedTrialFileError{}, err)
}

func TestReadTrialParams(t *testing.T) {
	dir := writeLogDir(t)
	data := buildTrialData(t, clockAt(1000, 2), []byte{1, 5}, []float64{0, 0})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "beh_1.data"), data, 0644))
	params := append(make([]byte, CLOCK_BYTES),
		[]byte("type:=[103,97,105,110];stim:=[0];force_max:=-[1.5,2];")...)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "beh_1.params"), params, 0644))

	parser, err := NewParser(dir, 1000)
	require.NoError(t, err)

	tp, err := parser.ReadTrialParams(1)
	require.NoError(t, err)
	assert.Equal(t, "gain", tp.Type)
	assert.Equal(t, []float64{0}, tp.Values["stim"])
	assert.Equal(t, []float64{-1.5, 2}, tp.Values["force_max"])
	assert.NotContains(t, tp.Values, "type")
}

func TestParseMatrix(t *testing.T) {
	v, err := parseMatrix("[1,2,3]")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, v)

	v, err = parseMatrix("-[1,2]")
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, 2}, v)

	v, err = parseMatrix("[[1,2],[3,4]]")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4}, v)

	v, err = parseMatrix("[]")
	require.NoError(t, err)
	assert.Empty(t, v)

	_, err = parseMatrix("oops")
	assert.IsType(t, &MalformedParamsError{}, err)

	_, err = parseMatrix("[1,oops]")
	assert.IsType(t, &MalformedParamsError{}, err)
}
