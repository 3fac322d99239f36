package stt

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func wavHeader(format uint16, channels uint16, rate uint32, bits uint16) []byte {
	h := make([]byte, wavHeaderSize)
	copy(h[0:4], "RIFF")
	copy(h[8:12], "WAVE")
	binary.LittleEndian.PutUint16(h[20:22], format)
	binary.LittleEndian.PutUint16(h[22:24], channels)
	binary.LittleEndian.PutUint32(h[24:28], rate)
	binary.LittleEndian.PutUint16(h[34:36], bits)
	return h
}

func TestReadWAVHeader(t *testing.T) {
	r := bytes.NewReader(append(wavHeader(1, 1, 16000, 16), 0x01, 0x02))

	f, err := ReadWAVHeader(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Channels != 1 || f.SampleRateHz != 16000 || f.BitsPerSample != 16 {
		t.Errorf("unexpected format %+v", f)
	}
	if r.Len() != 2 {
		t.Errorf("expected PCM payload to remain unread, %d bytes left", r.Len())
	}
}

func TestReadWAVHeader_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"short", []byte("RIFF")},
		{"not wav", make([]byte, wavHeaderSize)},
		{"not pcm", wavHeader(3, 1, 16000, 32)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadWAVHeader(bytes.NewReader(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}
