package sgt

import (
	"encoding/binary"
	"log"
	"math"
	"os"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	CLOCK_BYTES         = 8 // simulation clock stamp (float64) heading every packet
	LEN_BYTES           = 2 // payload length (uint16) following the clock stamp
	CODE_BYTES          = 3 // channel code length inside the payload
	DEFAULT_SAMPLE_RATE = 1000
	SUCCESS_STATE_NAME  = "Success"
)

// Channel codes emitted by the controller, mapped to channel names. A fresh
// copy is handed to every Parser so the mapping can be amended per rig
// without touching shared state.
func defaultDataCodes() map[string]string {
	return map[string]string{
		"tst": "task_state",
		"frx": "force_x_raw",
		"fry": "force_y_raw",
		"for": "force_y_raw",
		"frz": "force_z_raw",
		"fof": "cursor_position",
		"cur": "cursor_position",
		"rew": "reward",
		"stm": "stim",
		"per": "perturbation_offset",
		"frm": "photobox",
	}
}

type MissingSummaryError struct{}

func (e *MissingSummaryError) Error() string {
	return "No summary file in log directory"
}

type MissingSuccessStateError struct{}

func (e *MissingSuccessStateError) Error() string {
	return "Success state is not among the task states"
}

type NoSuchTrialError struct{}

func (e *NoSuchTrialError) Error() string {
	return "Trial number is not in the log directory"
}

type MalformedTrialFileError struct{}

func (e *MalformedTrialFileError) Error() string {
	return "Trial file does not divide into whole packets"
}

// TrialData is one trial's decoded controller log. Channels the controller
// did not emit are filled with NaN for backwards compatibility with older
// summary versions.
type TrialData struct {
	Number         int
	SimulationTime []float64
	Signals        map[string][]float64
	TaskState      []int
	Successful     bool
}

type Parser struct {
	Dir        string
	SampleRate float64
	TaskStates map[string]int

	successState int
	trialFiles   map[int]map[string]string
	codes        map[string]string
}

var trialFilePattern = regexp.MustCompile(`.*beh_(\d+)\.(\w+)$`)

func NewParser(dir string, sampleRate float64) (*Parser, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}

	this := &Parser{
		Dir:        dir,
		SampleRate: sampleRate,
		codes:      defaultDataCodes(),
	}
	if err := this.readTaskStates(names); err != nil {
		return nil, err
	}
	this.hashTrialFiles(names)

	return this, nil
}

func (this *Parser) readTaskStates(names []string) error {
	summary := ""
	for _, n := range names {
		if strings.HasSuffix(n, ".summary") {
			summary = n
			break
		}
	}
	if summary == "" {
		return &MissingSummaryError{}
	}

	text, err := os.ReadFile(path.Join(this.Dir, summary))
	if err != nil {
		return err
	}

	statePattern := regexp.MustCompile(`^TaskState(\d+)$`)
	this.TaskStates = map[string]int{}
	for _, e := range parseEntries(string(text)) {
		m := statePattern.FindStringSubmatch(e.Key)
		if m == nil {
			continue
		}
		number, _ := strconv.Atoi(m[1])
		name := strings.Trim(e.Value, "'\"")
		this.TaskStates[name] = number
	}

	success, ok := this.TaskStates[SUCCESS_STATE_NAME]
	if !ok {
		return &MissingSuccessStateError{}
	}
	this.successState = success

	return nil
}

// hashTrialFiles indexes beh_<n>.data / beh_<n>.params pairs by trial
// number. Trials missing either half are dropped with a warning.
func (this *Parser) hashTrialFiles(names []string) {
	this.trialFiles = map[int]map[string]string{}
	for _, n := range names {
		m := trialFilePattern.FindStringSubmatch(n)
		if m == nil {
			continue
		}
		number, _ := strconv.Atoi(m[1])
		if this.trialFiles[number] == nil {
			this.trialFiles[number] = map[string]string{}
		}
		this.trialFiles[number][m[2]] = n
	}
	for number, files := range this.trialFiles {
		if files["data"] == "" || files["params"] == "" {
			log.Printf("[WARN] trial %d is missing a data or params file; ignoring", number)
			delete(this.trialFiles, number)
		}
	}
}

// Trials lists the available trial numbers in ascending order.
func (this *Parser) Trials() []int {
	var numbers []int
	for n := range this.trialFiles {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers
}

// ReadTrialData decodes one trial's packet stream. Trials with dropped
// packets or an incomplete terminal state return (nil, nil): they are
// skipped, not failed.
func (this *Parser) ReadTrialData(number int) (*TrialData, error) {
	data, err := this.readFile(number, "data")
	if err != nil {
		return nil, err
	}
	if len(data) < CLOCK_BYTES+LEN_BYTES {
		return nil, &MalformedTrialFileError{}
	}

	packetSize := CLOCK_BYTES + LEN_BYTES + int(binary.LittleEndian.Uint16(data[CLOCK_BYTES:CLOCK_BYTES+LEN_BYTES]))
	if len(data)%packetSize != 0 {
		return nil, &MalformedTrialFileError{}
	}
	packets := len(data) / packetSize

	simTime := make([]float64, packets)
	for p := 0; p < packets; p++ {
		simTime[p] = math.Float64frombits(binary.LittleEndian.Uint64(data[p*packetSize:]))
	}

	// A dropped packet shows up as a clock step well beyond one packet
	// period.
	period := 1.0 / this.SampleRate
	for p := 1; p < packets; p++ {
		if simTime[p]-simTime[p-1] > 1.5*period {
			log.Printf("[WARN] ignoring trial %d due to dropped packets", number)
			return nil, nil
		}
	}

	trial := &TrialData{
		Number:         number,
		SimulationTime: simTime,
		Signals:        map[string][]float64{},
	}
	if err := this.decodeStream(trial, data, packetSize, packets); err != nil {
		return nil, err
	}

	for _, name := range this.codes {
		if _, ok := trial.Signals[name]; !ok {
			filler := make([]float64, packets)
			for i := range filler {
				filler[i] = math.NaN()
			}
			trial.Signals[name] = filler
		}
	}

	states, ok := trial.Signals["task_state"]
	if !ok || len(states) == 0 || math.IsNaN(states[0]) {
		log.Printf("[WARN] trial %d has no task state channel; ignoring", number)
		return nil, nil
	}
	trial.TaskState = make([]int, len(states))
	for i, s := range states {
		trial.TaskState[i] = int(s)
	}

	last := trial.TaskState[len(trial.TaskState)-1]
	if last < this.successState {
		log.Printf("[WARN] trial %d was incomplete and excluded", number)
		return nil, nil
	}
	trial.Successful = last == this.successState

	return trial, nil
}

// decodeStream walks the payload layout of packet zero; the layout repeats
// identically in every packet, so each channel is gathered column-wise
// across packets. Declared channel lengths come from the file and must stay
// inside the packet.
func (this *Parser) decodeStream(trial *TrialData, data []byte, packetSize, packets int) error {
	idx := CLOCK_BYTES + LEN_BYTES
	for idx < packetSize {
		if idx+CODE_BYTES >= packetSize {
			break
		}
		code := strings.ToLower(string(data[idx : idx+CODE_BYTES]))
		dType := data[idx+CODE_BYTES]

		var values []float64
		switch dType {
		case 'D':
			if idx+CODE_BYTES+3 > packetSize {
				return &MalformedTrialFileError{}
			}
			dLen := int(binary.LittleEndian.Uint16(data[idx+CODE_BYTES+1 : idx+CODE_BYTES+3]))
			if idx+CODE_BYTES+3+8*dLen > packetSize {
				return &MalformedTrialFileError{}
			}
			values = make([]float64, 0, packets*dLen)
			for p := 0; p < packets; p++ {
				base := p*packetSize + idx + CODE_BYTES + 3
				for k := 0; k < dLen; k++ {
					values = append(values, math.Float64frombits(binary.LittleEndian.Uint64(data[base+8*k:])))
				}
			}
			idx += CODE_BYTES + 3 + 8*dLen
		case 'U':
			if idx+CODE_BYTES+4 > packetSize {
				return &MalformedTrialFileError{}
			}
			values = make([]float64, packets)
			for p := 0; p < packets; p++ {
				values[p] = float64(data[p*packetSize+idx+CODE_BYTES+3])
			}
			idx += CODE_BYTES + 4
		default:
			log.Printf("[WARN] unrecognized data type %q in trial %d", dType, trial.Number)
			idx++
			continue
		}

		if name, ok := this.codes[code]; ok {
			trial.Signals[name] = values
		}
	}

	return nil
}

func (this *Parser) readFile(number int, fileType string) ([]byte, error) {
	files, ok := this.trialFiles[number]
	if !ok {
		return nil, &NoSuchTrialError{}
	}
	return os.ReadFile(path.Join(this.Dir, files[fileType]))
}
