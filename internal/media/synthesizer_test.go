package media

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirevox/hirevox/internal/providers/avatar"
	"github.com/hirevox/hirevox/internal/providers/tts"
	"github.com/hirevox/hirevox/internal/utils"
)

type fakeSpeech struct {
	name  string
	err   error
	calls int
}

func (f *fakeSpeech) Name() string { return f.name }

func (f *fakeSpeech) Synthesize(ctx context.Context, text, voice string) (*tts.Audio, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &tts.Audio{URL: "https://cdn/" + f.name + ".mp3", DurationSeconds: 8}, nil
}

type fakeRenderer struct {
	name  string
	err   error
	calls int
}

func (f *fakeRenderer) Name() string { return f.name }

func (f *fakeRenderer) Render(ctx context.Context, promptText, audioRef string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "https://cdn/" + f.name + ".mp4", nil
}

func TestSynthesizeSpeechFirstSuccessWins(t *testing.T) {
	primary := &fakeSpeech{name: "google"}
	backup := &fakeSpeech{name: "sim"}
	s := NewSynthesizer([]tts.Provider{primary, backup}, nil, nil)

	out, err := s.SynthesizeSpeech(context.Background(), "hello", "")
	require.NoError(t, err)
	assert.Equal(t, "google", out.Strategy)
	assert.Equal(t, "https://cdn/google.mp3", out.AudioURL)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, backup.calls, "backup must not run when primary succeeds")
}

func TestSynthesizeSpeechFallsBack(t *testing.T) {
	primary := &fakeSpeech{name: "google", err: errors.New("quota exceeded")}
	backup := &fakeSpeech{name: "sim"}
	s := NewSynthesizer([]tts.Provider{primary, backup}, nil, nil)

	out, err := s.SynthesizeSpeech(context.Background(), "hello", "")
	require.NoError(t, err)
	assert.Equal(t, "sim", out.Strategy)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, backup.calls)
}

func TestSynthesizeSpeechAllFail(t *testing.T) {
	s := NewSynthesizer([]tts.Provider{
		&fakeSpeech{name: "a", err: errors.New("down")},
		&fakeSpeech{name: "b", err: errors.New("also down")},
	}, nil, nil)

	_, err := s.SynthesizeSpeech(context.Background(), "hello", "")
	require.Error(t, err)
	var ae *utils.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, utils.CodeMediaFailed, ae.Code)
}

func TestRenderVideoChain(t *testing.T) {
	remote := &fakeRenderer{name: "http", err: errors.New("timeout")}
	static := &fakeRenderer{name: "static"}
	s := NewSynthesizer(nil, []avatar.Renderer{remote, static}, nil)

	out, err := s.RenderVideo(context.Background(), "question", "https://cdn/a.mp3")
	require.NoError(t, err)
	assert.Equal(t, "static", out.Strategy)
	assert.Equal(t, "https://cdn/static.mp4", out.VideoURL)
	assert.Equal(t, 1, remote.calls)
}
