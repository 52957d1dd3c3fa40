package tts

import (
	"bytes"
	"context"
	"fmt"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	texttospeechpb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/google/uuid"

	"github.com/hirevox/hirevox/internal/storage"
)

type GoogleTTS struct {
	c        *texttospeech.Client
	uploader storage.Uploader

	Language string
}

func NewGoogleTTS(ctx context.Context, uploader storage.Uploader, language string) (*GoogleTTS, error) {
	c, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	if language == "" {
		language = "en-US"
	}
	return &GoogleTTS{c: c, uploader: uploader, Language: language}, nil
}

func (g *GoogleTTS) Close() error { return g.c.Close() }

func (g *GoogleTTS) Name() string { return "google-tts" }

func (g *GoogleTTS) Synthesize(ctx context.Context, text, voice string) (*Audio, error) {
	req := &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: g.Language,
			Name:         voice,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
		},
	}

	resp, err := g.c.SynthesizeSpeech(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.AudioContent) == 0 {
		return nil, fmt.Errorf("empty audio content")
	}

	objectName := fmt.Sprintf("tts/%s.mp3", uuid.NewString())
	url, err := g.uploader.Upload(ctx, objectName, "audio/mpeg", bytes.NewReader(resp.AudioContent))
	if err != nil {
		return nil, err
	}

	// the API does not report spoken duration
	return &Audio{
		URL:             url,
		DurationSeconds: EstimateDuration(text),
		SizeBytes:       int64(len(resp.AudioContent)),
	}, nil
}
