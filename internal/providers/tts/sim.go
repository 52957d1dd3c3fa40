package tts

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const (
	simSampleRate = 16000
	simBitDepth   = 16
	simChannels   = 1
)

// SimTTS is the deterministic offline backend: it writes a structurally
// valid but silent LINEAR16 WAV whose length matches the estimated spoken
// duration, so the pipeline stays exercisable with no vendor configured.
type SimTTS struct {
	Dir string
}

func NewSimTTS(dir string) (*SimTTS, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "hirevox-tts")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &SimTTS{Dir: dir}, nil
}

func (s *SimTTS) Name() string { return "sim" }

func (s *SimTTS) Synthesize(ctx context.Context, text, voice string) (*Audio, error) {
	dur := EstimateDuration(text)
	data := silentWAV(dur)

	path := filepath.Join(s.Dir, fmt.Sprintf("%s.wav", uuid.NewString()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, err
	}

	return &Audio{
		Path:            path,
		DurationSeconds: dur,
		SizeBytes:       int64(len(data)),
	}, nil
}

// silentWAV builds a RIFF/WAVE container of zero samples.
func silentWAV(durationSeconds float64) []byte {
	samples := int(durationSeconds * simSampleRate)
	dataLen := samples * simChannels * simBitDepth / 8

	var buf bytes.Buffer
	le := binary.LittleEndian

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, le, uint32(36+dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(&buf, le, uint32(16)) // fmt chunk size
	_ = binary.Write(&buf, le, uint16(1))  // PCM
	_ = binary.Write(&buf, le, uint16(simChannels))
	_ = binary.Write(&buf, le, uint32(simSampleRate))
	_ = binary.Write(&buf, le, uint32(simSampleRate*simChannels*simBitDepth/8)) // byte rate
	_ = binary.Write(&buf, le, uint16(simChannels*simBitDepth/8))               // block align
	_ = binary.Write(&buf, le, uint16(simBitDepth))

	buf.WriteString("data")
	_ = binary.Write(&buf, le, uint32(dataLen))
	buf.Write(make([]byte, dataLen))

	return buf.Bytes()
}
