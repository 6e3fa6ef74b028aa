package nsx

import (
	"bytes"
	"encoding/binary"

	datasync "gosync/internal/datasync"
)

const (
	BASE_CLOCK_HZ   = 30000 // acquisition base clock; the header period divides this
	HEADER_SIZE     = 32
	BYTES_PER_VALUE = 2 // samples are little-endian int16
)

type header struct {
	Magic        [8]byte
	Label        [16]byte
	Period       uint32
	ChannelCount uint32
}

type NotNSXError struct{}

func (e *NotNSXError) Error() string {
	return "Data is not NSX format"
}

type NoSuchChannelError struct{}

func (e *NoSuchChannelError) Error() string {
	return "Channel id is not in the recording"
}

type ChannelRangeError struct{}

func (e *ChannelRangeError) Error() string {
	return "Sample window is outside the recording"
}

// File is one continuous recording: a fixed header, the channel id list,
// then channel-interleaved int16 samples. Reads are random access and
// read-only, so a File may be shared across goroutines.
type File struct {
	Label      string
	SampleRate float64
	Channels   []uint32

	samples [][]int16
}

func Read(data []byte) (*File, error) {
	r := bytes.NewReader(data)
	var fileHeader header
	if err := binary.Read(r, binary.LittleEndian, &fileHeader); err != nil {
		return nil, &NotNSXError{}
	}
	if string(fileHeader.Magic[:]) != "NEURALSG" {
		return nil, &NotNSXError{}
	}
	if fileHeader.Period == 0 || fileHeader.ChannelCount == 0 {
		return nil, &NotNSXError{}
	}

	var f File
	f.Label = string(bytes.TrimRight(fileHeader.Label[:], "\x00"))
	f.SampleRate = float64(BASE_CLOCK_HZ) / float64(fileHeader.Period)

	f.Channels = make([]uint32, fileHeader.ChannelCount)
	if err := binary.Read(r, binary.LittleEndian, &f.Channels); err != nil {
		return nil, &NotNSXError{}
	}

	count := int(fileHeader.ChannelCount)
	payload := len(data) - HEADER_SIZE - 4*count
	records := payload / (BYTES_PER_VALUE * count)
	if records <= 0 {
		return nil, &NotNSXError{}
	}

	flat := make([]int16, records*count)
	if err := binary.Read(r, binary.LittleEndian, &flat); err != nil {
		return nil, &NotNSXError{}
	}

	f.samples = make([][]int16, count)
	for c := range f.samples {
		f.samples[c] = make([]int16, records)
	}
	for i, v := range flat {
		f.samples[i%count][i/count] = v
	}

	return &f, nil
}

func (this *File) SampleCount() int {
	return len(this.samples[0])
}

func (this *File) channelIndex(id uint32) (int, error) {
	for i, c := range this.Channels {
		if c == id {
			return i, nil
		}
	}
	return 0, &NoSuchChannelError{}
}

// Channel returns the full sample stream of one channel.
func (this *File) Channel(id uint32) ([]float64, error) {
	i, err := this.channelIndex(id)
	if err != nil {
		return nil, err
	}
	return datasync.ToFloat64(this.samples[i]), nil
}

// ChannelWindow returns samples [start, end) of one channel.
func (this *File) ChannelWindow(id uint32, start, end int) ([]float64, error) {
	i, err := this.channelIndex(id)
	if err != nil {
		return nil, err
	}
	if start < 0 || end > len(this.samples[i]) || start >= end {
		return nil, &ChannelRangeError{}
	}
	return datasync.ToFloat64(this.samples[i][start:end]), nil
}
