package tts

import "context"

// charsPerMinute is the speaking-rate assumption used to estimate spoken
// duration when a backend does not report one.
const charsPerMinute = 220

type Audio struct {
	URL  string
	Path string

	DurationSeconds float64
	SizeBytes       int64
}

type Provider interface {
	// Name identifies the strategy in logs and results.
	Name() string
	Synthesize(ctx context.Context, text, voice string) (*Audio, error)
}

// EstimateDuration derives spoken duration in seconds from text length.
func EstimateDuration(text string) float64 {
	n := len([]rune(text))
	if n == 0 {
		return 0
	}
	sec := float64(n) / charsPerMinute * 60
	if sec < 1 {
		sec = 1
	}
	return sec
}
