package stt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// WAV header is 44 bytes for standard PCM files
const wavHeaderSize = 44

// WAVFormat describes the PCM stream following a WAV header.
type WAVFormat struct {
	Channels      int
	SampleRateHz  int
	BitsPerSample int
}

// ReadWAVHeader consumes a canonical 44-byte PCM WAV header from r.
func ReadWAVHeader(r io.Reader) (WAVFormat, error) {
	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return WAVFormat{}, fmt.Errorf("read WAV header: %w", err)
	}

	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return WAVFormat{}, errors.New("not a valid WAV file")
	}

	if audioFormat := binary.LittleEndian.Uint16(header[20:22]); audioFormat != 1 {
		return WAVFormat{}, fmt.Errorf("only PCM format supported, got %d", audioFormat)
	}

	return WAVFormat{
		Channels:      int(binary.LittleEndian.Uint16(header[22:24])),
		SampleRateHz:  int(binary.LittleEndian.Uint32(header[24:28])),
		BitsPerSample: int(binary.LittleEndian.Uint16(header[34:36])),
	}, nil
}
