package avatar

import "context"

// Renderer produces a talking-head video for synthesized speech.
type Renderer interface {
	Name() string
	// Render returns a playable video URL. audioRef is a URL or local path
	// to the speech audio the head should lip-sync to.
	Render(ctx context.Context, promptText, audioRef string) (videoURL string, err error)
}
