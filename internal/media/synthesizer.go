package media

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/hirevox/hirevox/internal/providers/avatar"
	"github.com/hirevox/hirevox/internal/providers/tts"
	"github.com/hirevox/hirevox/internal/utils"
)

type SpeechResult struct {
	AudioURL        string
	AudioPath       string
	DurationSeconds float64
	SizeBytes       int64

	// Strategy names the backend that satisfied the request.
	Strategy string
}

type VideoResult struct {
	VideoURL string
	Strategy string
}

// Synthesizer tries each configured backend in order and takes the first
// success. The pipeline above never branches on provider identity, only on
// the success/failure contract here.
type Synthesizer struct {
	Speech []tts.Provider
	Video  []avatar.Renderer
	Log    *logrus.Logger
}

func NewSynthesizer(speech []tts.Provider, video []avatar.Renderer, log *logrus.Logger) *Synthesizer {
	if log == nil {
		log = logrus.New()
	}
	return &Synthesizer{Speech: speech, Video: video, Log: log}
}

func (s *Synthesizer) SynthesizeSpeech(ctx context.Context, text, voice string) (*SpeechResult, error) {
	const op = "Synthesizer.SynthesizeSpeech"

	var lastErr error
	for _, p := range s.Speech {
		audio, err := p.Synthesize(ctx, text, voice)
		if err != nil {
			lastErr = err
			s.Log.WithError(err).WithField("strategy", p.Name()).Warn("speech backend failed, trying next")
			continue
		}
		return &SpeechResult{
			AudioURL:        audio.URL,
			AudioPath:       audio.Path,
			DurationSeconds: audio.DurationSeconds,
			SizeBytes:       audio.SizeBytes,
			Strategy:        p.Name(),
		}, nil
	}
	return nil, utils.E(utils.CodeMediaFailed, op, "all speech backends failed", lastErr)
}

func (s *Synthesizer) RenderVideo(ctx context.Context, promptText, audioRef string) (*VideoResult, error) {
	const op = "Synthesizer.RenderVideo"

	var lastErr error
	for _, r := range s.Video {
		url, err := r.Render(ctx, promptText, audioRef)
		if err != nil {
			lastErr = err
			s.Log.WithError(err).WithField("strategy", r.Name()).Warn("video backend failed, trying next")
			continue
		}
		return &VideoResult{VideoURL: url, Strategy: r.Name()}, nil
	}
	return nil, utils.E(utils.CodeMediaFailed, op, "all video backends failed", lastErr)
}
