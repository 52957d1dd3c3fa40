package tts

import (
	"context"
	"encoding/binary"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateDuration(t *testing.T) {
	assert.Equal(t, 0.0, EstimateDuration(""))

	// 220 chars is exactly one minute of speech
	assert.InDelta(t, 60.0, EstimateDuration(strings.Repeat("a", 220)), 0.001)
	assert.InDelta(t, 30.0, EstimateDuration(strings.Repeat("a", 110)), 0.001)

	// very short text is clamped to one second
	assert.Equal(t, 1.0, EstimateDuration("hi"))
}

func TestSimTTSWritesValidWAV(t *testing.T) {
	s, err := NewSimTTS(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "sim", s.Name())

	text := strings.Repeat("tell me about yourself ", 10)
	audio, err := s.Synthesize(context.Background(), text, "")
	require.NoError(t, err)
	assert.Empty(t, audio.URL)
	assert.NotEmpty(t, audio.Path)
	assert.InDelta(t, EstimateDuration(text), audio.DurationSeconds, 0.001)

	data, err := os.ReadFile(audio.Path)
	require.NoError(t, err)
	assert.Equal(t, audio.SizeBytes, int64(len(data)))

	require.GreaterOrEqual(t, len(data), 44)
	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, "WAVE", string(data[8:12]))
	assert.Equal(t, "fmt ", string(data[12:16]))
	assert.Equal(t, "data", string(data[36:40]))

	le := binary.LittleEndian
	assert.Equal(t, uint16(1), le.Uint16(data[20:22]), "PCM format")
	assert.Equal(t, uint16(1), le.Uint16(data[22:24]), "mono")
	assert.Equal(t, uint32(16000), le.Uint32(data[24:28]), "sample rate")
	assert.Equal(t, uint16(16), le.Uint16(data[34:36]), "bit depth")

	// declared data length matches the actual payload
	dataLen := le.Uint32(data[40:44])
	assert.Equal(t, int(dataLen), len(data)-44)
	assert.Equal(t, uint32(36+dataLen), le.Uint32(data[4:8]))
}

func TestSilentWAVDurationScales(t *testing.T) {
	one := silentWAV(1)
	two := silentWAV(2)
	// one second of 16kHz 16-bit mono is 32000 payload bytes
	assert.Equal(t, 44+32000, len(one))
	assert.Equal(t, 44+64000, len(two))
}
