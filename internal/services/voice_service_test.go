package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirevox/hirevox/internal/media"
	"github.com/hirevox/hirevox/internal/models"
	"github.com/hirevox/hirevox/internal/providers/stt"
	"github.com/hirevox/hirevox/internal/utils"
)

type fakeSTT struct {
	text       string
	confidence float64
	err        error

	gotAudio []byte
}

func (f *fakeSTT) Recognize(ctx context.Context, audio []byte, sampleRateHz int32) (*stt.Result, error) {
	f.gotAudio = append([]byte(nil), audio...)
	if f.err != nil {
		return nil, f.err
	}
	return &stt.Result{Text: f.text, Confidence: f.confidence, IsFinal: true}, nil
}

func (f *fakeSTT) Close() error { return nil }

type fakeStreamSTT struct {
	fakeSTT
	partials []string
	final    string
	i        int
}

func (f *fakeStreamSTT) StreamRecognize(ctx context.Context, sessionID string, chunk []byte, isFinal bool, sampleRateHz int32) (*stt.Result, error) {
	if isFinal {
		return &stt.Result{Text: f.final, IsFinal: true}, nil
	}
	if f.i < len(f.partials) {
		r := &stt.Result{Text: f.partials[f.i]}
		f.i++
		return r, nil
	}
	return nil, nil
}

type fakeTTS struct {
	err      error
	duration float64
	calls    int
}

func (f *fakeTTS) SynthesizeSpeech(ctx context.Context, text, voice string) (*media.SpeechResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &media.SpeechResult{AudioURL: "https://cdn/reply.mp3", DurationSeconds: f.duration, Strategy: "sim"}, nil
}

type fakeTurns struct {
	mu   sync.Mutex
	logs []models.TurnLog
}

func (f *fakeTurns) Insert(ctx context.Context, t *models.TurnLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, *t)
	return nil
}

func (f *fakeTurns) ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.TurnLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.TurnLog(nil), f.logs...), nil
}

// answerRecorder implements the answer hand-off slice of InterviewService.
type answerRecorder struct {
	InterviewService
	sessionID string
	index     int
	text      string
	calls     int
}

func (a *answerRecorder) SubmitAnswer(ctx context.Context, sessionID string, index int, req AnswerRequest) (*AnswerResult, error) {
	a.calls++
	a.sessionID = sessionID
	a.index = index
	a.text = req.Text
	return &AnswerResult{}, nil
}

func newVoice(t *testing.T, sttP stt.Provider, gen *fakeLLM, synth SpeechSynthesizer, mode TTSMode) (VoiceService, *TurnStore) {
	t.Helper()
	store := NewTurnStore(time.Minute)
	t.Cleanup(func() { store.Close() })
	return NewVoiceService(store, sttP, gen, synth, nil, nil, nil, mode, nil), store
}

func TestProcessTurnClientModeTextOnly(t *testing.T) {
	gen := &fakeLLM{reply: "tell me more"}
	synth := &fakeTTS{duration: 8}
	v, store := newVoice(t, nil, gen, synth, TTSModeClient)

	out, err := v.ProcessTurn(context.Background(), "sess-1", TurnInput{Text: "I worked on payments"}, TurnContext{JobRole: "backend engineer"})
	require.NoError(t, err)
	assert.Equal(t, "tell me more", out.ReplyText)
	assert.Equal(t, TTSModeClient, out.TTSMode)
	assert.Empty(t, out.AudioURL)
	assert.False(t, out.Interrupted)
	assert.Equal(t, 0, synth.calls, "client mode never synthesizes server-side")
	assert.False(t, store.Speaking("sess-1"), "client mode never raises the speaking flag")
}

func TestProcessTurnServerModeSpeaks(t *testing.T) {
	gen := &fakeLLM{reply: "interesting, go on"}
	synth := &fakeTTS{duration: 8}
	v, store := newVoice(t, nil, gen, synth, TTSModeServer)

	out, err := v.ProcessTurn(context.Background(), "sess-1", TurnInput{Text: "hello"}, TurnContext{})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/reply.mp3", out.AudioURL)
	assert.Equal(t, 8.0, out.DurationSeconds)
	assert.True(t, store.Speaking("sess-1"))
}

func TestProcessTurnBargeIn(t *testing.T) {
	gen := &fakeLLM{reply: "reply"}
	synth := &fakeTTS{duration: 3600} // pending clear timer far in the future
	v, store := newVoice(t, nil, gen, synth, TTSModeServer)

	first, err := v.ProcessTurn(context.Background(), "sess-1", TurnInput{Text: "one"}, TurnContext{})
	require.NoError(t, err)
	assert.False(t, first.Interrupted)
	require.True(t, store.Speaking("sess-1"))

	// the next user turn arrives while the utterance is still playing
	second, err := v.ProcessTurn(context.Background(), "sess-1", TurnInput{Text: "two"}, TurnContext{})
	require.NoError(t, err)
	assert.True(t, second.Interrupted, "new turn wins over in-flight speech")
}

func TestProcessTurnBusy(t *testing.T) {
	gen := &fakeLLM{reply: "reply"}
	v, store := newVoice(t, nil, gen, nil, TTSModeClient)

	require.True(t, store.TryAcquire("sess-1"))
	_, err := v.ProcessTurn(context.Background(), "sess-1", TurnInput{Text: "x"}, TurnContext{})
	var ae *utils.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, utils.CodeBusy, ae.Code)

	// once the in-flight turn settles, the session accepts turns again
	store.Release("sess-1")
	_, err = v.ProcessTurn(context.Background(), "sess-1", TurnInput{Text: "x"}, TurnContext{})
	require.NoError(t, err)
}

func TestProcessTurnInputValidation(t *testing.T) {
	gen := &fakeLLM{reply: "reply"}
	v, _ := newVoice(t, nil, gen, nil, TTSModeClient)

	var ae *utils.AppError

	_, err := v.ProcessTurn(context.Background(), "", TurnInput{Text: "x"}, TurnContext{})
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, utils.CodeInvalidArgument, ae.Code)

	_, err = v.ProcessTurn(context.Background(), "sess-1", TurnInput{}, TurnContext{})
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, utils.CodeInvalidArgument, ae.Code)

	// audio input with no recognition backend configured
	_, err = v.ProcessTurn(context.Background(), "sess-1", TurnInput{Audio: []byte{1, 2}}, TurnContext{})
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, utils.CodeUnavailable, ae.Code)
}

func TestProcessTurnRequiresReplyGenerator(t *testing.T) {
	store := NewTurnStore(time.Minute)
	defer store.Close()

	// the server boots without a generator when none is configured; a
	// turn in that setup must fail cleanly, not crash
	v := NewVoiceService(store, nil, nil, nil, nil, nil, nil, TTSModeClient, nil)

	var out *TurnResult
	var err error
	require.NotPanics(t, func() {
		out, err = v.ProcessTurn(context.Background(), "sess-1", TurnInput{Text: "hello"}, TurnContext{})
	})
	require.Nil(t, out)
	var ae *utils.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, utils.CodeUnavailable, ae.Code)
}

func TestProcessTurnEmptyRecognition(t *testing.T) {
	gen := &fakeLLM{reply: "reply"}
	recognizer := &fakeSTT{text: "   "}
	v, _ := newVoice(t, recognizer, gen, nil, TTSModeClient)

	_, err := v.ProcessTurn(context.Background(), "sess-1", TurnInput{Audio: []byte{1, 2}}, TurnContext{})
	var ae *utils.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, utils.CodeEmptyRecognition, ae.Code)
	assert.Equal(t, 0, gen.replyCalls, "no reply is generated for silence")
}

func TestProcessTurnReplyFailureLeavesSessionClean(t *testing.T) {
	gen := &fakeLLM{rErr: errors.New("model overloaded")}
	v, _ := newVoice(t, nil, gen, nil, TTSModeClient)

	_, err := v.ProcessTurn(context.Background(), "sess-1", TurnInput{Text: "x"}, TurnContext{})
	var ae *utils.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, utils.CodeGenerationFailed, ae.Code)

	// the busy guard was released, a retry goes through
	gen.rErr = nil
	gen.reply = "recovered"
	out, err := v.ProcessTurn(context.Background(), "sess-1", TurnInput{Text: "x"}, TurnContext{})
	require.NoError(t, err)
	assert.Equal(t, "recovered", out.ReplyText)
}

func TestProcessTurnTTSFailureDegradesToText(t *testing.T) {
	gen := &fakeLLM{reply: "reply text"}
	synth := &fakeTTS{err: errors.New("all speech backends failed")}
	v, store := newVoice(t, nil, gen, synth, TTSModeServer)

	out, err := v.ProcessTurn(context.Background(), "sess-1", TurnInput{Text: "x"}, TurnContext{})
	require.NoError(t, err, "synthesis failure must not fail the turn")
	assert.Equal(t, "reply text", out.ReplyText)
	assert.Empty(t, out.AudioURL)
	assert.False(t, store.Speaking("sess-1"))
}

func TestProcessTurnArchivesAndRecordsAnswer(t *testing.T) {
	gen := &fakeLLM{reply: "noted"}
	recognizer := &fakeSTT{text: "my answer", confidence: 0.92}
	turns := &fakeTurns{}
	rec := &answerRecorder{}

	store := NewTurnStore(time.Minute)
	defer store.Close()
	v := NewVoiceService(store, recognizer, gen, nil, rec, turns, nil, TTSModeClient, nil)

	idx := 2
	out, err := v.ProcessTurn(context.Background(), "sess-1", TurnInput{Audio: []byte{1, 2, 3}, SampleRateHz: 16000}, TurnContext{AnswerIndex: &idx})
	require.NoError(t, err)
	assert.Equal(t, "noted", out.ReplyText)

	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, "sess-1", rec.sessionID)
	assert.Equal(t, 2, rec.index)
	assert.Equal(t, "my answer", rec.text)

	logs, _ := turns.ListBySession(context.Background(), "sess-1", 0)
	require.Len(t, logs, 1)
	assert.Equal(t, "my answer", logs[0].UserText)
	assert.Equal(t, 0.92, logs[0].STTConfidence)
	assert.Equal(t, "noted", logs[0].ReplyText)
	assert.False(t, logs[0].ExpiresAt.IsZero(), "turn logs must carry a TTL")
}

func TestProcessTurnCarriesConversationHistory(t *testing.T) {
	gen := &fakeLLM{reply: "why that stack?"}
	turns := &fakeTurns{}

	store := NewTurnStore(time.Minute)
	defer store.Close()
	v := NewVoiceService(store, nil, gen, nil, nil, turns, nil, TTSModeClient, nil)

	_, err := v.ProcessTurn(context.Background(), "sess-1", TurnInput{Text: "I mostly use Go"}, TurnContext{})
	require.NoError(t, err)
	assert.Empty(t, gen.lastCtx.History, "first turn has no prior context")

	_, err = v.ProcessTurn(context.Background(), "sess-1", TurnInput{Text: "for about five years"}, TurnContext{})
	require.NoError(t, err)
	require.NotEmpty(t, gen.lastCtx.History)
	assert.Contains(t, gen.lastCtx.History[0], "I mostly use Go")
	assert.Contains(t, gen.lastCtx.History[1], "why that stack?")
}

func TestStreamChunkBuffersForBatchBackend(t *testing.T) {
	gen := &fakeLLM{reply: "go on"}
	recognizer := &fakeSTT{text: "full utterance"}
	v, store := newVoice(t, recognizer, gen, nil, TTSModeClient)

	ev, err := v.StreamChunk(context.Background(), "sess-1", []byte("aa"), false, 16000, TurnContext{})
	require.NoError(t, err)
	assert.Equal(t, "partial", ev.Type)

	ev, err = v.StreamChunk(context.Background(), "sess-1", []byte("bb"), false, 16000, TurnContext{})
	require.NoError(t, err)
	assert.Equal(t, "partial", ev.Type)

	ev, err = v.StreamChunk(context.Background(), "sess-1", []byte("cc"), true, 16000, TurnContext{})
	require.NoError(t, err)
	require.Equal(t, "final", ev.Type)
	require.NotNil(t, ev.Turn)
	assert.Equal(t, "go on", ev.Turn.ReplyText)

	// the batch backend got the whole concatenated utterance
	assert.Equal(t, []byte("aabbcc"), recognizer.gotAudio)
	// buffer state is cleared for the next turn
	assert.Empty(t, store.Buffered("sess-1"))
}

func TestStreamChunkStreamingPartials(t *testing.T) {
	gen := &fakeLLM{reply: "and then?"}
	recognizer := &fakeStreamSTT{partials: []string{"hel", "hello wor"}, final: "hello world"}
	v, store := newVoice(t, recognizer, gen, nil, TTSModeClient)

	ev, err := v.StreamChunk(context.Background(), "sess-1", []byte("aa"), false, 16000, TurnContext{})
	require.NoError(t, err)
	assert.Equal(t, "hel", ev.PartialText)

	ev, err = v.StreamChunk(context.Background(), "sess-1", []byte("bb"), false, 16000, TurnContext{})
	require.NoError(t, err)
	assert.Equal(t, "hello wor", ev.PartialText)

	ev, err = v.StreamChunk(context.Background(), "sess-1", []byte("cc"), true, 16000, TurnContext{})
	require.NoError(t, err)
	require.Equal(t, "final", ev.Type)
	assert.Equal(t, "and then?", ev.Turn.ReplyText)
	assert.Empty(t, store.Partial("sess-1"))
}

func TestEndSessionDropsState(t *testing.T) {
	gen := &fakeLLM{reply: "bye"}
	v, store := newVoice(t, nil, gen, nil, TTSModeClient)

	store.AppendChunk("sess-1", []byte("x"))
	require.Equal(t, 1, store.Len())

	v.EndSession("sess-1")
	assert.Equal(t, 0, store.Len())
}
