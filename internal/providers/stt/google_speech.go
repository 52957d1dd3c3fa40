package stt

import (
	"context"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
)

type GoogleSpeech struct {
	c *speech.Client

	Encoding speechpb.RecognitionConfig_AudioEncoding
	Language string

	mu      sync.Mutex
	streams map[string]*recogStream
}

func NewGoogleSpeech(ctx context.Context, language string) (*GoogleSpeech, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	if language == "" {
		language = "en-US"
	}
	return &GoogleSpeech{
		c:        c,
		Encoding: speechpb.RecognitionConfig_LINEAR16,
		Language: language,
		streams:  map[string]*recogStream{},
	}, nil
}

func (g *GoogleSpeech) Close() error {
	g.mu.Lock()
	for id, s := range g.streams {
		s.close()
		delete(g.streams, id)
	}
	g.mu.Unlock()
	return g.c.Close()
}

func (g *GoogleSpeech) Recognize(ctx context.Context, audio []byte, sampleRateHz int32) (*Result, error) {
	if sampleRateHz <= 0 {
		sampleRateHz = 16000
	}

	resp, err := g.c.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   g.Encoding,
			SampleRateHertz:            sampleRateHz,
			LanguageCode:               g.Language,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return nil, err
	}

	var bestText string
	var bestConf float64
	for _, r := range resp.Results {
		for _, alt := range r.Alternatives {
			if alt.Transcript != "" && float64(alt.Confidence) >= bestConf {
				bestText = alt.Transcript
				bestConf = float64(alt.Confidence)
			}
		}
	}

	return &Result{Text: bestText, Confidence: bestConf, IsFinal: true}, nil
}

// recogStream holds one session's open bidirectional stream. The receiver
// goroutine owns the read side and publishes the latest result under mu.
type recogStream struct {
	stream speechpb.Speech_StreamingRecognizeClient
	cancel context.CancelFunc

	mu     sync.Mutex
	latest *Result
	done   chan struct{}
}

func (s *recogStream) close() {
	_ = s.stream.CloseSend()
	s.cancel()
}

func (s *recogStream) receive() {
	defer close(s.done)
	for {
		resp, err := s.stream.Recv()
		if err == io.EOF || err != nil {
			return
		}
		for _, r := range resp.Results {
			if len(r.Alternatives) == 0 {
				continue
			}
			alt := r.Alternatives[0]
			s.mu.Lock()
			s.latest = &Result{
				Text:       alt.Transcript,
				Confidence: float64(alt.Confidence),
				IsFinal:    r.IsFinal,
			}
			s.mu.Unlock()
		}
	}
}

func (g *GoogleSpeech) StreamRecognize(ctx context.Context, sessionID string, chunk []byte, isFinal bool, sampleRateHz int32) (*Result, error) {
	g.mu.Lock()
	s, ok := g.streams[sessionID]
	if !ok {
		var err error
		s, err = g.openStream(sampleRateHz)
		if err != nil {
			g.mu.Unlock()
			return nil, err
		}
		g.streams[sessionID] = s
	}
	g.mu.Unlock()

	if len(chunk) > 0 {
		req := &speechpb.StreamingRecognizeRequest{
			StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{AudioContent: chunk},
		}
		if err := s.stream.Send(req); err != nil {
			g.dropStream(sessionID)
			return nil, err
		}
	}

	if !isFinal {
		s.mu.Lock()
		res := s.latest
		s.mu.Unlock()
		return res, nil
	}

	// final chunk: close the send side and wait for the receiver to drain
	_ = s.stream.CloseSend()
	select {
	case <-s.done:
	case <-ctx.Done():
		g.dropStream(sessionID)
		return nil, ctx.Err()
	}

	s.mu.Lock()
	res := s.latest
	s.mu.Unlock()
	g.dropStream(sessionID)

	if res == nil {
		return &Result{IsFinal: true}, nil
	}
	res.IsFinal = true
	return res, nil
}

func (g *GoogleSpeech) openStream(sampleRateHz int32) (*recogStream, error) {
	if sampleRateHz <= 0 {
		sampleRateHz = 16000
	}

	// streams outlive individual chunk requests, so they get their own context
	sctx, cancel := context.WithCancel(context.Background())
	stream, err := g.c.StreamingRecognize(sctx)
	if err != nil {
		cancel()
		return nil, err
	}

	cfg := &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   g.Encoding,
					SampleRateHertz:            sampleRateHz,
					LanguageCode:               g.Language,
					EnableAutomaticPunctuation: true,
				},
				InterimResults: true,
			},
		},
	}
	if err := stream.Send(cfg); err != nil {
		cancel()
		return nil, err
	}

	s := &recogStream{stream: stream, cancel: cancel, done: make(chan struct{})}
	go s.receive()
	return s, nil
}

func (g *GoogleSpeech) dropStream(sessionID string) {
	g.mu.Lock()
	if s, ok := g.streams[sessionID]; ok {
		s.cancel()
		delete(g.streams, sessionID)
	}
	g.mu.Unlock()
}
