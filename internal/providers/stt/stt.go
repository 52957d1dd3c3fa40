package stt

import "context"

type Result struct {
	Text       string
	Confidence float64
	IsFinal    bool
}

type Provider interface {
	Recognize(ctx context.Context, audio []byte, sampleRateHz int32) (*Result, error)
	Close() error
}

// StreamingProvider is implemented by backends that can return incremental
// partial results. Callers that hold a plain Provider degrade to buffering
// all chunks and recognizing once on the final one.
type StreamingProvider interface {
	Provider

	// StreamRecognize feeds one chunk into the per-session stream. A nil
	// result means nothing new is available yet. When isFinal is true the
	// stream is closed and the final result returned.
	StreamRecognize(ctx context.Context, sessionID string, chunk []byte, isFinal bool, sampleRateHz int32) (*Result, error)
}
