package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/hirevox/hirevox/internal/media"
	"github.com/hirevox/hirevox/internal/models"
	"github.com/hirevox/hirevox/internal/providers/llm"
	"github.com/hirevox/hirevox/internal/providers/stt"
	mongorepo "github.com/hirevox/hirevox/internal/repositories/mongo"
	"github.com/hirevox/hirevox/internal/utils"
)

type TTSMode string

const (
	// TTSModeClient returns text only; the client plays speech itself and
	// the server never raises the speaking flag.
	TTSModeClient TTSMode = "client"
	// TTSModeServer synthesizes speech and tracks the speaking window.
	TTSModeServer TTSMode = "server"
)

const turnLogTTL = 24 * time.Hour

// SpeechSynthesizer is the slice of the media synthesizer the voice
// pipeline needs.
type SpeechSynthesizer interface {
	SynthesizeSpeech(ctx context.Context, text, voice string) (*media.SpeechResult, error)
}

type TurnInput struct {
	Audio        []byte
	Text         string
	SampleRateHz int32
}

type TurnContext struct {
	JobRole    string
	Background string
	Prompt     string

	// AnswerIndex, when set, records the recognized text as the answer to
	// that question for scoring continuity (best-effort).
	AnswerIndex *int
}

type TurnResult struct {
	SessionID       string  `json:"session_id"`
	ReplyText       string  `json:"reply_text"`
	AudioURL        string  `json:"audio_url,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	TTSMode         TTSMode `json:"tts_mode"`
	// Interrupted reports a barge-in: the previous synthetic utterance was
	// still playing when this turn arrived.
	Interrupted bool `json:"interrupted"`
}

type StreamEvent struct {
	Type        string      `json:"type"` // partial|final
	PartialText string      `json:"partial_text,omitempty"`
	Turn        *TurnResult `json:"turn,omitempty"`
}

type VoiceService interface {
	ProcessTurn(ctx context.Context, sessionID string, in TurnInput, tc TurnContext) (*TurnResult, error)
	StreamChunk(ctx context.Context, sessionID string, chunk []byte, isFinal bool, sampleRateHz int32, tc TurnContext) (*StreamEvent, error)
	EndSession(sessionID string)
}

type voiceService struct {
	store      *TurnStore
	stt        stt.Provider // nil means text-only turns
	llm        llm.Provider // nil rejects turns as unavailable
	synth      SpeechSynthesizer
	interviews InterviewService         // optional answer hand-off
	turns      mongorepo.TurnRepository // optional best-effort archive
	rdb        *redis.Client            // optional status publishing
	mode       TTSMode
	log        *logrus.Logger
}

func NewVoiceService(
	store *TurnStore,
	sttProvider stt.Provider,
	llmProvider llm.Provider,
	synth SpeechSynthesizer,
	interviews InterviewService,
	turns mongorepo.TurnRepository,
	rdb *redis.Client,
	mode TTSMode,
	log *logrus.Logger,
) VoiceService {
	if mode != TTSModeServer {
		mode = TTSModeClient
	}
	if log == nil {
		log = logrus.New()
	}
	return &voiceService{
		store:      store,
		stt:        sttProvider,
		llm:        llmProvider,
		synth:      synth,
		interviews: interviews,
		turns:      turns,
		rdb:        rdb,
		mode:       mode,
		log:        log,
	}
}

func (v *voiceService) publish(ctx context.Context, sessionID, channel string, payload any) {
	if v.rdb == nil {
		return
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_ = v.rdb.Publish(ctx, "session:"+sessionID+":"+channel, string(b)).Err()
}

func (v *voiceService) ProcessTurn(ctx context.Context, sessionID string, in TurnInput, tc TurnContext) (*TurnResult, error) {
	const op = "VoiceService.ProcessTurn"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	if v.llm == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "no reply generator configured", nil)
	}

	// turns are serialized per session; a concurrent attempt is rejected
	// and the caller retries once the in-flight turn settles
	if !v.store.TryAcquire(sessionID) {
		return nil, utils.E(utils.CodeBusy, op, "another turn is in flight for this session", nil)
	}
	defer v.store.Release(sessionID)

	start := time.Now()
	log := v.log.WithField("session_id", sessionID)

	userText := strings.TrimSpace(in.Text)
	var confidence float64
	if userText == "" {
		if len(in.Audio) == 0 {
			return nil, utils.E(utils.CodeInvalidArgument, op, "audio or text input is required", nil)
		}
		if v.stt == nil {
			return nil, utils.E(utils.CodeUnavailable, op, "no speech recognition backend configured", nil)
		}
		res, err := v.stt.Recognize(ctx, in.Audio, in.SampleRateHz)
		if err != nil {
			return nil, utils.E(utils.CodeUnavailable, op, "speech recognition failed", err)
		}
		userText = strings.TrimSpace(res.Text)
		confidence = res.Confidence
	}
	if userText == "" {
		return nil, utils.E(utils.CodeEmptyRecognition, op, "no speech recognized", nil)
	}

	// barge-in: the new user turn always wins over an in-flight synthetic
	// utterance; clearing the flag is logical, not a network abort
	interrupted := v.store.ClearSpeaking(sessionID)
	if interrupted {
		log.Debug("barge-in: cleared speaking flag")
		v.publish(ctx, sessionID, "status", map[string]any{"type": "status", "status": "interrupted"})
	}

	reply, err := v.llm.Reply(ctx, userText, llm.SessionContext{
		JobRole:    tc.JobRole,
		Background: tc.Background,
		Prompt:     tc.Prompt,
		History:    v.recentHistory(ctx, sessionID),
	})
	if err != nil {
		// turn fails with no session mutation; the caller may retry
		return nil, utils.E(utils.CodeGenerationFailed, op, "reply generation failed", err)
	}

	result := &TurnResult{
		SessionID:   sessionID,
		ReplyText:   reply,
		TTSMode:     v.mode,
		Interrupted: interrupted,
	}

	var strategy string
	if v.mode == TTSModeServer && v.synth != nil {
		speech, serr := v.synth.SynthesizeSpeech(ctx, reply, "")
		if serr != nil {
			// degrade to text-only rather than failing the turn
			log.WithError(serr).Warn("reply synthesis failed, returning text only")
		} else {
			result.AudioURL = speech.AudioURL
			if result.AudioURL == "" {
				result.AudioURL = speech.AudioPath
			}
			result.DurationSeconds = speech.DurationSeconds
			strategy = speech.Strategy
			v.store.SetSpeaking(sessionID, time.Duration(speech.DurationSeconds*float64(time.Second)))
		}
	}

	v.archiveTurn(sessionID, userText, confidence, result, strategy, time.Since(start))
	v.recordAnswer(ctx, sessionID, userText, tc, log)
	v.publish(ctx, sessionID, "response", result)

	return result, nil
}

const historyTurns = 6

// recentHistory rebuilds the tail of the conversation from the turn log so
// replies stay coherent across turns. The archive is best-effort, so an
// empty history is acceptable.
func (v *voiceService) recentHistory(ctx context.Context, sessionID string) []string {
	if v.turns == nil {
		return nil
	}
	logs, err := v.turns.ListBySession(ctx, sessionID, 0)
	if err != nil {
		return nil
	}
	if len(logs) > historyTurns {
		logs = logs[len(logs)-historyTurns:]
	}

	var out []string
	for _, tl := range logs {
		if tl.UserText != "" {
			out = append(out, "Candidate: "+tl.UserText)
		}
		if tl.ReplyText != "" {
			out = append(out, "Interviewer: "+tl.ReplyText)
		}
	}
	return out
}

// archiveTurn writes the turn log to Mongo; losing it is acceptable.
func (v *voiceService) archiveTurn(sessionID, userText string, confidence float64, r *TurnResult, strategy string, elapsed time.Duration) {
	if v.turns == nil {
		return
	}
	now := time.Now().UTC()
	t := &models.TurnLog{
		SessionID:        sessionID,
		TurnIndex:        v.store.TurnIndex(sessionID),
		UserText:         userText,
		STTConfidence:    confidence,
		ReplyText:        r.ReplyText,
		AudioURL:         r.AudioURL,
		TTSMode:          string(r.TTSMode),
		Strategy:         strategy,
		ProcessingTimeMS: elapsed.Milliseconds(),
		Timestamp:        now,
		ExpiresAt:        now.Add(turnLogTTL),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := v.turns.Insert(ctx, t); err != nil {
		v.log.WithError(err).WithField("session_id", sessionID).Warn("turn archive failed")
	}
}

// recordAnswer hands recognized speech to the answer-submission path when
// the turn is marked as answering a question. Failures are logged only; the
// turn already succeeded.
func (v *voiceService) recordAnswer(ctx context.Context, sessionID, userText string, tc TurnContext, log *logrus.Entry) {
	if tc.AnswerIndex == nil || v.interviews == nil {
		return
	}
	if _, err := v.interviews.SubmitAnswer(ctx, sessionID, *tc.AnswerIndex, AnswerRequest{Text: userText}); err != nil {
		log.WithError(err).WithField("answer_index", *tc.AnswerIndex).Warn("answer hand-off failed")
	}
}

func (v *voiceService) StreamChunk(ctx context.Context, sessionID string, chunk []byte, isFinal bool, sampleRateHz int32, tc TurnContext) (*StreamEvent, error) {
	const op = "VoiceService.StreamChunk"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	if len(chunk) > 0 {
		v.store.AppendChunk(sessionID, chunk)
	}

	streamer, streaming := v.stt.(stt.StreamingProvider)

	if !isFinal {
		if streaming {
			res, err := streamer.StreamRecognize(ctx, sessionID, chunk, false, sampleRateHz)
			if err != nil {
				v.log.WithError(err).WithField("session_id", sessionID).Warn("streaming recognition error, buffering only")
			} else if res != nil && res.Text != "" {
				v.store.SetPartial(sessionID, res.Text)
				v.publish(ctx, sessionID, "response", map[string]any{
					"type": "stt_partial", "text": res.Text, "is_final": false,
				})
			}
		}
		// non-streaming backends just buffer; the partial is whatever we
		// know so far
		return &StreamEvent{Type: "partial", PartialText: v.store.Partial(sessionID)}, nil
	}

	// final chunk: run the full turn and clear per-session buffer state
	var in TurnInput
	if streaming {
		res, err := streamer.StreamRecognize(ctx, sessionID, chunk, true, sampleRateHz)
		if err != nil {
			v.store.ClearBuffer(sessionID)
			return nil, utils.E(utils.CodeUnavailable, op, "streaming recognition failed", err)
		}
		if res != nil {
			in.Text = res.Text
		}
	} else {
		in.Audio = v.store.Buffered(sessionID)
		in.SampleRateHz = sampleRateHz
	}
	v.store.ClearBuffer(sessionID)

	turn, err := v.ProcessTurn(ctx, sessionID, in, tc)
	if err != nil {
		return nil, err
	}
	return &StreamEvent{Type: "final", Turn: turn}, nil
}

func (v *voiceService) EndSession(sessionID string) {
	v.store.Drop(sessionID)
}
