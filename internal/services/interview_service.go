package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hirevox/hirevox/internal/cache"
	"github.com/hirevox/hirevox/internal/models"
	"github.com/hirevox/hirevox/internal/providers/llm"
	pgrepo "github.com/hirevox/hirevox/internal/repositories/postgres"
	"github.com/hirevox/hirevox/internal/utils"
)

const (
	// interview budget: 15 minutes at ~2.5 minutes per question
	defaultBudgetMinutes = 15
	minutesPerQuestion   = 2.5
	maxQuestions         = 20

	sessionCacheTTL = 30 * time.Second
)

// MediaDispatcher triggers asynchronous media generation for a session.
type MediaDispatcher interface {
	Dispatch(ctx context.Context, sessionID string, missingOnly bool)
}

type CreateInterviewRequest struct {
	JobRole        string
	JobID          string
	JobCategory    string
	JobSubCategory string
	Company        string
	Background     string
	QuestionCount  int
}

type CreateInterviewResult struct {
	Session   *models.InterviewSession
	Questions []models.InterviewQuestion
	// Resumed means an existing non-terminal session was returned.
	Resumed bool
	// Reused means questions were cloned from a prior terminal session.
	Reused bool
}

type AnswerRequest struct {
	Text            string
	VideoURL        string
	VideoPath       string
	DurationSeconds float64
}

type AnswerResult struct {
	Session  *models.InterviewSession
	Complete bool
}

type InterviewService interface {
	Create(ctx context.Context, userID string, req CreateInterviewRequest) (*CreateInterviewResult, error)
	Start(ctx context.Context, sessionID string) (*models.InterviewSession, error)
	Get(ctx context.Context, sessionID string) (*models.InterviewSession, error)
	Questions(ctx context.Context, sessionID string) ([]models.InterviewQuestion, error)
	SubmitAnswer(ctx context.Context, sessionID string, index int, req AnswerRequest) (*AnswerResult, error)
	NextQuestion(ctx context.Context, sessionID string) (*models.InterviewQuestion, error)
	Cancel(ctx context.Context, sessionID string) error
	Delete(ctx context.Context, sessionID string) error
}

type interviewService struct {
	sessions  pgrepo.SessionRepository
	questions pgrepo.QuestionRepository
	generator llm.Provider // nil means fallback questions only
	media     MediaDispatcher
	cache     cache.Cache // optional
	log       *logrus.Logger

	budgetMinutes float64
}

func NewInterviewService(
	sessions pgrepo.SessionRepository,
	questions pgrepo.QuestionRepository,
	generator llm.Provider,
	media MediaDispatcher,
	c cache.Cache,
	log *logrus.Logger,
) InterviewService {
	if log == nil {
		log = logrus.New()
	}
	return &interviewService{
		sessions:      sessions,
		questions:     questions,
		generator:     generator,
		media:         media,
		cache:         c,
		log:           log,
		budgetMinutes: defaultBudgetMinutes,
	}
}

// questionCount derives the target count: the 15-minute budget implies ~6
// questions; an explicit request is honored but clamped to [1,20] and still
// capped by the budget.
func (s *interviewService) questionCount(requested int) int {
	capByBudget := int(s.budgetMinutes / minutesPerQuestion)
	if capByBudget < 1 {
		capByBudget = 1
	}

	n := capByBudget
	if requested > 0 {
		n = requested
	}
	if n < 1 {
		n = 1
	}
	if n > maxQuestions {
		n = maxQuestions
	}
	if n > capByBudget {
		n = capByBudget
	}
	return n
}

func personaPrompt(role, category, subCategory string) string {
	domain := category
	if subCategory != "" {
		domain = fmt.Sprintf("%s / %s", category, subCategory)
	}
	if domain == "" {
		domain = role
	}
	return fmt.Sprintf(
		"You are a senior %s interviewer with over ten years of experience hiring for %q positions. "+
			"You ask focused, practical questions, one at a time, and keep a professional but friendly tone.",
		domain, role)
}

// fallbackQuestions is the static set used when the generator is
// unavailable, so a session is never created without content.
func fallbackQuestions(role string, n int) []string {
	base := []string{
		fmt.Sprintf("Please introduce yourself and walk me through your experience relevant to the %s role.", role),
		"Tell me about a project you are most proud of. What was your contribution?",
		fmt.Sprintf("What do you consider the most important skills for a %s, and why?", role),
		"Describe a difficult technical or professional problem you faced and how you solved it.",
		"How do you keep your skills up to date in your field?",
		"Where do you see yourself in three years, and why are you interested in this position?",
	}
	if n > len(base) {
		n = len(base)
	}
	return base[:n]
}

func sessionCacheKey(id string) string { return "interview:session:" + id }

func (s *interviewService) invalidate(ctx context.Context, sessionID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, sessionCacheKey(sessionID)); err != nil {
		s.log.WithError(err).WithField("session_id", sessionID).Warn("cache invalidation failed")
	}
}

func (s *interviewService) Create(ctx context.Context, userID string, req CreateInterviewRequest) (*CreateInterviewResult, error) {
	const op = "InterviewService.Create"

	if userID == "" || req.JobRole == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id and job_role are required", nil)
	}

	// 1) resume: at most one non-terminal session per (user, job)
	if existing, err := s.sessions.FindActiveByUserJob(ctx, userID, req.JobRole, req.JobID); err == nil {
		qs, qerr := s.questions.ListBySession(ctx, existing.ID)
		if qerr != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to list questions", qerr)
		}
		for i := range qs {
			if !qs[i].MediaReady() {
				s.media.Dispatch(ctx, existing.ID, true)
				break
			}
		}
		return &CreateInterviewResult{Session: existing, Questions: qs, Resumed: true}, nil
	} else if !errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeInternal, op, "failed to look up active session", err)
	}

	// 2) reuse: clone questions from the latest terminal session for the
	// same job target, skipping the generator entirely
	if prior, err := s.sessions.FindLatestTerminalByUserJob(ctx, userID, req.JobRole, req.JobCategory, req.JobSubCategory); err == nil {
		priorQs, qerr := s.questions.ListBySession(ctx, prior.ID)
		if qerr != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to list prior questions", qerr)
		}
		if len(priorQs) > 0 {
			return s.createFromHistory(ctx, userID, req, prior, priorQs)
		}
	} else if !errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeInternal, op, "failed to look up prior session", err)
	}

	// 3) fresh generation
	return s.createFresh(ctx, userID, req)
}

func (s *interviewService) createFromHistory(ctx context.Context, userID string, req CreateInterviewRequest, prior *models.InterviewSession, priorQs []models.InterviewQuestion) (*CreateInterviewResult, error) {
	const op = "InterviewService.Create"

	now := time.Now().UTC()
	sess := &models.InterviewSession{
		ID:              uuid.NewString(),
		UserID:          userID,
		JobRole:         req.JobRole,
		JobID:           req.JobID,
		JobCategory:     req.JobCategory,
		JobSubCategory:  req.JobSubCategory,
		Company:         req.Company,
		Status:          models.SessionPreparing,
		CurrentQuestion: 0,
		TotalQuestions:  len(priorQs),
		PlannedDuration: int(math.Ceil(float64(len(priorQs)) * minutesPerQuestion)),
		Prompt:          prior.Prompt,
		CreatedAt:       now,
	}
	if req.Background != "" {
		sess.SetMeta(models.SessionMetadata{Background: req.Background})
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create session", err)
	}

	cloned := make([]*models.InterviewQuestion, 0, len(priorQs))
	for i := range priorQs {
		p := priorQs[i]
		status := models.QuestionPreparing
		if p.AudioURL != "" && p.VideoURL != "" {
			status = models.QuestionReady
		}
		cloned = append(cloned, &models.InterviewQuestion{
			ID:            uuid.NewString(),
			SessionID:     sess.ID,
			QuestionIndex: p.QuestionIndex,
			QuestionText:  p.QuestionText,
			AudioURL:      p.AudioURL,
			AudioPath:     p.AudioPath,
			VideoURL:      p.VideoURL,
			Status:        status,
			CreatedAt:     now,
		})
	}
	if err := s.questions.CreateBatch(ctx, cloned); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to clone questions", err)
	}

	s.media.Dispatch(ctx, sess.ID, true)
	s.log.WithFields(logrus.Fields{
		"session_id":    sess.ID,
		"prior_session": prior.ID,
		"questions":     len(cloned),
	}).Info("session created from history")

	out := make([]models.InterviewQuestion, len(cloned))
	for i, q := range cloned {
		out[i] = *q
	}
	return &CreateInterviewResult{Session: sess, Questions: out, Reused: true}, nil
}

func (s *interviewService) createFresh(ctx context.Context, userID string, req CreateInterviewRequest) (*CreateInterviewResult, error) {
	const op = "InterviewService.Create"

	count := s.questionCount(req.QuestionCount)
	planned := int(math.Ceil(float64(count) * minutesPerQuestion))
	prompt := personaPrompt(req.JobRole, req.JobCategory, req.JobSubCategory)

	var texts []string
	if s.generator != nil {
		set, err := s.generator.GenerateQuestions(ctx, llm.QuestionRequest{
			PersonaPrompt:   prompt,
			JobRole:         req.JobRole,
			JobCategory:     req.JobCategory,
			JobSubCategory:  req.JobSubCategory,
			Background:      req.Background,
			Count:           count,
			DurationMinutes: planned,
		})
		if err != nil {
			s.log.WithError(err).Warn("question generation failed, using fallback set")
		} else {
			texts = set.Questions
			prompt = set.Prompt
		}
	}
	if len(texts) == 0 {
		texts = fallbackQuestions(req.JobRole, count)
	}
	if len(texts) == 0 {
		return nil, utils.E(utils.CodeGenerationFailed, op, "no questions could be generated", nil)
	}

	now := time.Now().UTC()
	sess := &models.InterviewSession{
		ID:              uuid.NewString(),
		UserID:          userID,
		JobRole:         req.JobRole,
		JobID:           req.JobID,
		JobCategory:     req.JobCategory,
		JobSubCategory:  req.JobSubCategory,
		Company:         req.Company,
		Status:          models.SessionPreparing,
		CurrentQuestion: 0,
		TotalQuestions:  len(texts),
		PlannedDuration: planned,
		Prompt:          prompt,
		CreatedAt:       now,
	}
	if req.Background != "" {
		sess.SetMeta(models.SessionMetadata{Background: req.Background})
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create session", err)
	}

	qs := make([]*models.InterviewQuestion, 0, len(texts))
	for i, text := range texts {
		qs = append(qs, &models.InterviewQuestion{
			ID:            uuid.NewString(),
			SessionID:     sess.ID,
			QuestionIndex: i,
			QuestionText:  text,
			Status:        models.QuestionPreparing,
			CreatedAt:     now,
		})
	}
	if err := s.questions.CreateBatch(ctx, qs); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create questions", err)
	}

	s.media.Dispatch(ctx, sess.ID, false)
	s.log.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"questions":  len(qs),
	}).Info("session created")

	out := make([]models.InterviewQuestion, len(qs))
	for i, q := range qs {
		out[i] = *q
	}
	return &CreateInterviewResult{Session: sess, Questions: out}, nil
}

func (s *interviewService) Get(ctx context.Context, sessionID string) (*models.InterviewSession, error) {
	const op = "InterviewService.Get"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}

	if s.cache != nil {
		var cached models.InterviewSession
		if hit, err := s.cache.GetJSON(ctx, sessionCacheKey(sessionID), &cached); err == nil && hit {
			return &cached, nil
		}
	}

	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get session", err)
	}

	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, sessionCacheKey(sessionID), sess, sessionCacheTTL)
	}
	return sess, nil
}

func (s *interviewService) Questions(ctx context.Context, sessionID string) ([]models.InterviewQuestion, error) {
	const op = "InterviewService.Questions"

	if _, err := s.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	qs, err := s.questions.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list questions", err)
	}
	return qs, nil
}

func (s *interviewService) Start(ctx context.Context, sessionID string) (*models.InterviewSession, error) {
	const op = "InterviewService.Start"

	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != models.SessionPreparing {
		return nil, utils.E(utils.CodeInvalidState, op, fmt.Sprintf("cannot start session in status %s", sess.Status), nil)
	}

	now := time.Now().UTC()
	sess.Status = models.SessionInProgress
	sess.StartedAt = &now
	if err := s.sessions.Update(ctx, sess); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to start session", err)
	}
	s.invalidate(ctx, sessionID)
	return sess, nil
}

func (s *interviewService) SubmitAnswer(ctx context.Context, sessionID string, index int, req AnswerRequest) (*AnswerResult, error) {
	const op = "InterviewService.SubmitAnswer"

	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status.Terminal() {
		return nil, utils.E(utils.CodeInvalidState, op, fmt.Sprintf("cannot answer session in status %s", sess.Status), nil)
	}
	if index < 0 || index >= sess.TotalQuestions {
		return nil, utils.E(utils.CodeInvalidArgument, op, "question index out of range", nil)
	}

	q, err := s.questions.GetByIndex(ctx, sessionID, index)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "question not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get question", err)
	}

	now := time.Now().UTC()
	q.AnswerText = req.Text
	q.AnswerVideoURL = req.VideoURL
	q.AnswerVideoPath = req.VideoPath
	q.AnswerDuration = req.DurationSeconds
	q.AnsweredAt = &now
	if err := s.questions.Update(ctx, q); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to record answer", err)
	}

	// pointer is monotonic: an out-of-order (repeated) answer never moves
	// it backwards
	if next := index + 1; next > sess.CurrentQuestion {
		sess.CurrentQuestion = next
	}

	complete := sess.CurrentQuestion >= sess.TotalQuestions
	if complete {
		// a PREPARING session steps through IN_PROGRESS so only
		// table-approved transitions happen
		if sess.Status.CanTransition(models.SessionInProgress) {
			sess.Status = models.SessionInProgress
		}
		if sess.Status.CanTransition(models.SessionCompleted) {
			sess.Status = models.SessionCompleted
			sess.CompletedAt = &now
		}
	}
	if err := s.sessions.Update(ctx, sess); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to advance session", err)
	}
	s.invalidate(ctx, sessionID)

	return &AnswerResult{Session: sess, Complete: complete}, nil
}

func (s *interviewService) NextQuestion(ctx context.Context, sessionID string) (*models.InterviewQuestion, error) {
	const op = "InterviewService.NextQuestion"

	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status.Terminal() {
		return nil, utils.E(utils.CodeInvalidState, op, fmt.Sprintf("session is %s", sess.Status), nil)
	}
	if sess.CurrentQuestion >= sess.TotalQuestions {
		return nil, utils.E(utils.CodeNotFound, op, "no more questions", nil)
	}

	q, err := s.questions.GetByIndex(ctx, sessionID, sess.CurrentQuestion)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "question not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get question", err)
	}

	// self-healing: if the question is still missing its video, re-trigger
	// missing-only generation in the background
	if q.VideoURL == "" {
		s.media.Dispatch(ctx, sessionID, true)
	}

	sess.CurrentQuestion++
	if err := s.sessions.Update(ctx, sess); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to advance question pointer", err)
	}
	s.invalidate(ctx, sessionID)

	return q, nil
}

func (s *interviewService) Cancel(ctx context.Context, sessionID string) error {
	const op = "InterviewService.Cancel"

	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if !sess.Status.CanTransition(models.SessionCancelled) {
		return utils.E(utils.CodeInvalidState, op, fmt.Sprintf("cannot cancel session in status %s", sess.Status), nil)
	}

	sess.Status = models.SessionCancelled
	if err := s.sessions.Update(ctx, sess); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to cancel session", err)
	}
	s.invalidate(ctx, sessionID)
	return nil
}

func (s *interviewService) Delete(ctx context.Context, sessionID string) error {
	const op = "InterviewService.Delete"

	if _, err := s.Get(ctx, sessionID); err != nil {
		return err
	}
	if err := s.questions.DeleteBySession(ctx, sessionID); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to delete questions", err)
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to delete session", err)
	}
	s.invalidate(ctx, sessionID)
	return nil
}
