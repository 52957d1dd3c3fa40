package media

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/hirevox/hirevox/internal/models"
	pgrepo "github.com/hirevox/hirevox/internal/repositories/postgres"
	"github.com/hirevox/hirevox/internal/utils"
)

// SpeechVideoSynthesizer is what the pipeline needs from the synthesizer.
type SpeechVideoSynthesizer interface {
	SynthesizeSpeech(ctx context.Context, text, voice string) (*SpeechResult, error)
	RenderVideo(ctx context.Context, promptText, audioRef string) (*VideoResult, error)
}

// QuestionOutcome records one question's result for logging and retries.
type QuestionOutcome struct {
	Index    int
	Status   models.QuestionStatus
	Skipped  bool
	Strategy string
	Err      error
}

// Pipeline renders speech and talking-head video for a session's questions.
// Best-effort per question: one failure never aborts the batch.
type Pipeline struct {
	Sessions  pgrepo.SessionRepository
	Questions pgrepo.QuestionRepository
	Synth     SpeechVideoSynthesizer
	Log       *logrus.Logger
}

func NewPipeline(sessions pgrepo.SessionRepository, questions pgrepo.QuestionRepository, synth SpeechVideoSynthesizer, log *logrus.Logger) *Pipeline {
	if log == nil {
		log = logrus.New()
	}
	return &Pipeline{Sessions: sessions, Questions: questions, Synth: synth, Log: log}
}

func (p *Pipeline) ProcessSession(ctx context.Context, sessionID string, missingOnly bool) ([]QuestionOutcome, error) {
	const op = "Pipeline.ProcessSession"

	sess, err := p.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load session", err)
	}

	questions, err := p.Questions.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list questions", err)
	}

	outcomes := make([]QuestionOutcome, 0, len(questions))
	for i := range questions {
		q := questions[i]
		out := p.processQuestion(ctx, sess, &q, missingOnly)
		outcomes = append(outcomes, out)
	}

	// Media readiness nudges a fresh session into IN_PROGRESS; it never
	// touches terminal sessions and never moves the answer pointer.
	if sess.Status.CanTransition(models.SessionInProgress) {
		sess.Status = models.SessionInProgress
		if err := p.Sessions.Update(ctx, sess); err != nil {
			p.Log.WithError(err).WithField("session_id", sessionID).Error("failed to nudge session status")
		}
	}

	return outcomes, nil
}

// transition moves a question to the next status through the central
// table and persists the whole row. Same-status moves are allowed so an
// interrupted run can be picked back up.
func (p *Pipeline) transition(ctx context.Context, q *models.InterviewQuestion, to models.QuestionStatus) error {
	const op = "Pipeline.transition"

	if q.Status != to && !q.Status.CanTransition(to) {
		return utils.E(utils.CodeInvalidState, op,
			fmt.Sprintf("question cannot move %s -> %s", q.Status, to), nil)
	}
	q.Status = to
	return p.Questions.Update(ctx, q)
}

func (p *Pipeline) processQuestion(ctx context.Context, sess *models.InterviewSession, q *models.InterviewQuestion, missingOnly bool) QuestionOutcome {
	log := p.Log.WithFields(logrus.Fields{
		"session_id":     sess.ID,
		"question_index": q.QuestionIndex,
	})

	if missingOnly && q.MediaReady() {
		return QuestionOutcome{Index: q.QuestionIndex, Status: q.Status, Skipped: true}
	}

	if err := p.transition(ctx, q, models.QuestionProcessing); err != nil {
		log.WithError(err).Error("failed to mark question processing")
		return QuestionOutcome{Index: q.QuestionIndex, Status: q.Status, Err: err}
	}

	speech, err := p.Synth.SynthesizeSpeech(ctx, q.QuestionText, "")
	if err != nil {
		// non-fatal: record and move on to the next question
		log.WithError(err).Warn("speech synthesis failed")
		if uerr := p.transition(ctx, q, models.QuestionFailed); uerr != nil {
			log.WithError(uerr).Error("failed to persist FAILED status")
		}
		return QuestionOutcome{Index: q.QuestionIndex, Status: models.QuestionFailed, Err: err}
	}

	q.AudioURL = speech.AudioURL
	q.AudioPath = speech.AudioPath
	if err := p.transition(ctx, q, models.QuestionAudioReady); err != nil {
		log.WithError(err).Error("failed to persist audio fields")
		return QuestionOutcome{Index: q.QuestionIndex, Status: q.Status, Err: err}
	}

	audioRef := speech.AudioURL
	if audioRef == "" {
		audioRef = speech.AudioPath
	}

	video, err := p.Synth.RenderVideo(ctx, q.QuestionText, audioRef)
	if err != nil {
		// question is usable with audio only
		log.WithError(err).Warn("video render failed, question stays AUDIO_READY")
		return QuestionOutcome{Index: q.QuestionIndex, Status: models.QuestionAudioReady, Strategy: speech.Strategy, Err: err}
	}

	q.VideoURL = video.VideoURL
	if err := p.transition(ctx, q, models.QuestionReady); err != nil {
		log.WithError(err).Error("failed to persist READY status")
		return QuestionOutcome{Index: q.QuestionIndex, Status: q.Status, Err: err}
	}

	log.WithFields(logrus.Fields{
		"speech_strategy": speech.Strategy,
		"video_strategy":  video.Strategy,
		"duration_sec":    speech.DurationSeconds,
	}).Debug("question media ready")

	return QuestionOutcome{Index: q.QuestionIndex, Status: models.QuestionReady, Strategy: video.Strategy}
}
