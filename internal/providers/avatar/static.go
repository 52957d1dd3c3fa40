package avatar

import (
	"context"
	"errors"
)

// StaticRenderer returns a pre-rendered fallback clip. Last strategy in the
// video chain so renderer failure never blocks question presentation.
type StaticRenderer struct {
	URL string
}

func (s *StaticRenderer) Name() string { return "static" }

func (s *StaticRenderer) Render(ctx context.Context, promptText, audioRef string) (string, error) {
	if s.URL == "" {
		return "", errors.New("no fallback video URL configured")
	}
	return s.URL, nil
}
