package main

import (
	"log"
	"os"
	"path"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/ugorji/go/codec"

	datasync "gosync/internal/datasync"
	filter "gosync/internal/filter"
	nsx "gosync/internal/formats/nsx"
	sgt "gosync/internal/formats/sgt"
)

func loadTrials(logDir string, sampleRate float64) ([]*datasync.Trial, error) {
	parser, err := sgt.NewParser(logDir, sampleRate)
	if err != nil {
		return nil, err
	}

	var trials []*datasync.Trial
	for _, number := range parser.Trials() {
		td, err := parser.ReadTrialData(number)
		if err != nil {
			return nil, err
		}
		if td == nil {
			continue
		}
		trials = append(trials, &datasync.Trial{
			Number:     td.Number,
			Time:       td.SimulationTime,
			Force:      td.Signals["force_y_raw"],
			TaskState:  td.TaskState,
			Successful: td.Successful,
		})
	}

	return trials, nil
}

func main() {
	var opts struct {
		RecordingFile string  `short:"r" long:"recording" description:"Continuous recording file (.NSX)" required:"true"`
		LogDir        string  `short:"l" long:"logdir" description:"Controller trial log directory" required:"true"`
		SyncChannel   int     `short:"s" long:"syncchannel" description:"Recording channel carrying the sync signal" required:"true"`
		Calibration   string  `short:"c" long:"calibration" description:"Load cell calibration file (volts,newtons lines)"`
		Target        string  `short:"g" long:"target" description:"Condition target force file (one value per line)"`
		Date          string  `short:"d" long:"date" description:"Session date (YYYY-MM-DD)"`
		Boxcar        int     `short:"b" long:"boxcar" description:"Boxcar width (samples) for sync channel denoising"`
		SampleRate    float64 `short:"q" long:"samplerate" description:"Controller sample rate (Hz)" default:"1000"`
		OutputFile    string  `short:"o" long:"output" description:"Output file"`
	}
	_, err := flags.Parse(&opts)
	if err != nil {
		return
	}

	rb, err := os.ReadFile(opts.RecordingFile)
	if err != nil {
		log.Fatalln(err)
	}
	recording, err := nsx.Read(rb)
	if err != nil {
		log.Fatalln(err)
	}
	syncSignal, err := recording.Channel(uint32(opts.SyncChannel))
	if err != nil {
		log.Fatalln(err)
	}
	if opts.Boxcar > 1 {
		syncSignal = filter.Boxcar(syncSignal, opts.Boxcar)
	}

	trials, err := loadTrials(opts.LogDir, opts.SampleRate)
	if err != nil {
		log.Fatalln(err)
	}

	var calibration *datasync.Calibration
	if opts.Calibration != "" {
		cb, err := os.ReadFile(opts.Calibration)
		if err != nil {
			log.Fatalln(err)
		}
		calibration = &datasync.Calibration{Name: path.Base(opts.Calibration), RawData: string(cb)}
		if err := calibration.ProcessRawData(); err != nil {
			log.Fatalln(err)
		}
	}

	var condition *datasync.Condition
	if opts.Target != "" {
		tb, err := os.ReadFile(opts.Target)
		if err != nil {
			log.Fatalln(err)
		}
		condition = &datasync.Condition{Name: path.Base(opts.Target), RawData: string(tb)}
		if err := condition.ProcessRawData(); err != nil {
			log.Fatalln(err)
		}
	}

	cfg := datasync.DefaultConfig()
	if opts.Date != "" {
		cfg.SessionDate, err = time.Parse("2006-01-02", opts.Date)
		if err != nil {
			log.Fatalln(err)
		}
	}

	meta := datasync.Meta{
		Name:               path.Base(opts.RecordingFile),
		SampleRateEphys:    recording.SampleRate,
		SampleRateBehavior: opts.SampleRate,
		Timestamp:          time.Now().Unix(),
	}
	pd, err := datasync.ProcessSession(syncSignal, trials, condition, calibration, meta, cfg)
	if err != nil {
		log.Fatalln(err)
	}

	var output = opts.OutputFile
	if output == "" {
		ext := path.Ext(opts.RecordingFile)
		if ext == "" {
			output = opts.RecordingFile + ".PSYN"
		} else {
			n := strings.LastIndex(opts.RecordingFile, ext)
			output = opts.RecordingFile[:n] + ".PSYN"
		}
	}
	fo, err := os.Create(output)
	if err != nil {
		log.Fatalln(err)
	}
	defer fo.Close()

	var h codec.MsgpackHandle
	enc := codec.NewEncoder(fo, &h)
	enc.Encode(pd)
}
