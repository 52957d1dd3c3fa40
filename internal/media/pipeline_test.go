package media

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirevox/hirevox/internal/models"
	"github.com/hirevox/hirevox/internal/utils"
)

type memSessionRepo struct {
	sessions map[string]*models.InterviewSession
}

func (m *memSessionRepo) Create(ctx context.Context, s *models.InterviewSession) error {
	m.sessions[s.ID] = s
	return nil
}

func (m *memSessionRepo) GetByID(ctx context.Context, id string) (*models.InterviewSession, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSessionRepo) FindActiveByUserJob(ctx context.Context, userID, jobRole, jobID string) (*models.InterviewSession, error) {
	return nil, utils.ErrNotFound
}

func (m *memSessionRepo) FindLatestTerminalByUserJob(ctx context.Context, userID, jobRole, category, subCategory string) (*models.InterviewSession, error) {
	return nil, utils.ErrNotFound
}

func (m *memSessionRepo) Update(ctx context.Context, s *models.InterviewSession) error {
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memSessionRepo) Delete(ctx context.Context, id string) error {
	delete(m.sessions, id)
	return nil
}

type memQuestionRepo struct {
	byID map[string]*models.InterviewQuestion
}

func (m *memQuestionRepo) CreateBatch(ctx context.Context, qs []*models.InterviewQuestion) error {
	for _, q := range qs {
		cp := *q
		m.byID[q.ID] = &cp
	}
	return nil
}

func (m *memQuestionRepo) ListBySession(ctx context.Context, sessionID string) ([]models.InterviewQuestion, error) {
	var out []models.InterviewQuestion
	for i := 0; ; i++ {
		q, err := m.GetByIndex(ctx, sessionID, i)
		if err != nil {
			break
		}
		out = append(out, *q)
	}
	return out, nil
}

func (m *memQuestionRepo) GetByIndex(ctx context.Context, sessionID string, index int) (*models.InterviewQuestion, error) {
	for _, q := range m.byID {
		if q.SessionID == sessionID && q.QuestionIndex == index {
			cp := *q
			return &cp, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (m *memQuestionRepo) Update(ctx context.Context, q *models.InterviewQuestion) error {
	cp := *q
	m.byID[q.ID] = &cp
	return nil
}

func (m *memQuestionRepo) DeleteBySession(ctx context.Context, sessionID string) error {
	for id, q := range m.byID {
		if q.SessionID == sessionID {
			delete(m.byID, id)
		}
	}
	return nil
}

// fakeSynth fails speech or video for specific question texts.
type fakeSynth struct {
	speechErr map[string]error
	videoErr  map[string]error

	speechCalls int
	videoCalls  int
}

func (f *fakeSynth) SynthesizeSpeech(ctx context.Context, text, voice string) (*SpeechResult, error) {
	f.speechCalls++
	if err := f.speechErr[text]; err != nil {
		return nil, err
	}
	return &SpeechResult{AudioURL: "https://cdn/audio.mp3", DurationSeconds: 8, Strategy: "sim"}, nil
}

func (f *fakeSynth) RenderVideo(ctx context.Context, promptText, audioRef string) (*VideoResult, error) {
	f.videoCalls++
	if err := f.videoErr[promptText]; err != nil {
		return nil, err
	}
	return &VideoResult{VideoURL: "https://cdn/video.mp4", Strategy: "static"}, nil
}

func seedSession(t *testing.T, sessions *memSessionRepo, questions *memQuestionRepo, texts []string, status models.SessionStatus) string {
	t.Helper()
	sess := &models.InterviewSession{ID: "sess-1", UserID: "user-1", JobRole: "backend engineer", Status: status, TotalQuestions: len(texts)}
	require.NoError(t, sessions.Create(context.Background(), sess))

	qs := make([]*models.InterviewQuestion, 0, len(texts))
	for i, text := range texts {
		qs = append(qs, &models.InterviewQuestion{
			ID:            "q-" + string(rune('a'+i)),
			SessionID:     sess.ID,
			QuestionIndex: i,
			QuestionText:  text,
			Status:        models.QuestionPreparing,
		})
	}
	require.NoError(t, questions.CreateBatch(context.Background(), qs))
	return sess.ID
}

func newMemRepos() (*memSessionRepo, *memQuestionRepo) {
	return &memSessionRepo{sessions: map[string]*models.InterviewSession{}},
		&memQuestionRepo{byID: map[string]*models.InterviewQuestion{}}
}

func TestProcessSessionHappyPath(t *testing.T) {
	sessions, questions := newMemRepos()
	synth := &fakeSynth{}
	id := seedSession(t, sessions, questions, []string{"q one", "q two"}, models.SessionPreparing)

	p := NewPipeline(sessions, questions, synth, nil)
	outcomes, err := p.ProcessSession(context.Background(), id, false)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	for _, o := range outcomes {
		assert.Equal(t, models.QuestionReady, o.Status)
		assert.NoError(t, o.Err)
	}
	qs, _ := questions.ListBySession(context.Background(), id)
	for _, q := range qs {
		assert.True(t, q.MediaReady())
	}

	// media readiness nudges PREPARING into IN_PROGRESS
	sess, _ := sessions.GetByID(context.Background(), id)
	assert.Equal(t, models.SessionInProgress, sess.Status)
	assert.Equal(t, 0, sess.CurrentQuestion, "nudge must not move the answer pointer")
}

func TestProcessSessionOneFailureDoesNotAbortBatch(t *testing.T) {
	sessions, questions := newMemRepos()
	synth := &fakeSynth{speechErr: map[string]error{"q two": errors.New("tts down")}}
	id := seedSession(t, sessions, questions, []string{"q one", "q two", "q three"}, models.SessionPreparing)

	p := NewPipeline(sessions, questions, synth, nil)
	outcomes, err := p.ProcessSession(context.Background(), id, false)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	assert.Equal(t, models.QuestionReady, outcomes[0].Status)
	assert.Equal(t, models.QuestionFailed, outcomes[1].Status)
	assert.Error(t, outcomes[1].Err)
	assert.Equal(t, models.QuestionReady, outcomes[2].Status)

	q, _ := questions.GetByIndex(context.Background(), id, 1)
	assert.Equal(t, models.QuestionFailed, q.Status)
}

func TestProcessSessionVideoFailureLeavesAudioReady(t *testing.T) {
	sessions, questions := newMemRepos()
	synth := &fakeSynth{videoErr: map[string]error{"q one": errors.New("render down")}}
	id := seedSession(t, sessions, questions, []string{"q one"}, models.SessionPreparing)

	p := NewPipeline(sessions, questions, synth, nil)
	outcomes, err := p.ProcessSession(context.Background(), id, false)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, models.QuestionAudioReady, outcomes[0].Status)

	q, _ := questions.GetByIndex(context.Background(), id, 0)
	assert.Equal(t, models.QuestionAudioReady, q.Status)
	assert.NotEmpty(t, q.AudioURL)
	assert.Empty(t, q.VideoURL)
}

func TestProcessSessionMissingOnlySkipsReady(t *testing.T) {
	sessions, questions := newMemRepos()
	synth := &fakeSynth{}
	id := seedSession(t, sessions, questions, []string{"q one", "q two"}, models.SessionInProgress)

	// mark everything ready up front
	qs, _ := questions.ListBySession(context.Background(), id)
	for i := range qs {
		qs[i].Status = models.QuestionReady
		qs[i].AudioURL = "https://cdn/a.mp3"
		qs[i].VideoURL = "https://cdn/v.mp4"
		require.NoError(t, questions.Update(context.Background(), &qs[i]))
	}

	p := NewPipeline(sessions, questions, synth, nil)
	outcomes, err := p.ProcessSession(context.Background(), id, true)
	require.NoError(t, err)
	for _, o := range outcomes {
		assert.True(t, o.Skipped)
	}
	assert.Equal(t, 0, synth.speechCalls)
	assert.Equal(t, 0, synth.videoCalls)
}

func TestProcessSessionResumesStaleProcessingQuestion(t *testing.T) {
	sessions, questions := newMemRepos()
	synth := &fakeSynth{}
	id := seedSession(t, sessions, questions, []string{"q one"}, models.SessionInProgress)

	// a crashed run can leave a question stuck in PROCESSING
	q, _ := questions.GetByIndex(context.Background(), id, 0)
	q.Status = models.QuestionProcessing
	require.NoError(t, questions.Update(context.Background(), q))

	p := NewPipeline(sessions, questions, synth, nil)
	outcomes, err := p.ProcessSession(context.Background(), id, false)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, models.QuestionReady, outcomes[0].Status)
	assert.NoError(t, outcomes[0].Err)
}

func TestProcessSessionRegeneratesFailedQuestion(t *testing.T) {
	sessions, questions := newMemRepos()
	synth := &fakeSynth{}
	id := seedSession(t, sessions, questions, []string{"q one"}, models.SessionInProgress)

	q, _ := questions.GetByIndex(context.Background(), id, 0)
	q.Status = models.QuestionFailed
	require.NoError(t, questions.Update(context.Background(), q))

	p := NewPipeline(sessions, questions, synth, nil)
	outcomes, err := p.ProcessSession(context.Background(), id, true)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Skipped)
	assert.Equal(t, models.QuestionReady, outcomes[0].Status)

	got, _ := questions.GetByIndex(context.Background(), id, 0)
	assert.True(t, got.MediaReady())
}

func TestTransitionRejectsInvalidMove(t *testing.T) {
	sessions, questions := newMemRepos()
	id := seedSession(t, sessions, questions, []string{"q one"}, models.SessionInProgress)

	q, _ := questions.GetByIndex(context.Background(), id, 0)
	p := NewPipeline(sessions, questions, &fakeSynth{}, nil)

	// PREPARING cannot jump straight to READY
	err := p.transition(context.Background(), q, models.QuestionReady)
	require.Error(t, err)
	var ae *utils.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, utils.CodeInvalidState, ae.Code)

	stored, _ := questions.GetByIndex(context.Background(), id, 0)
	assert.Equal(t, models.QuestionPreparing, stored.Status, "rejected move must not persist")
}

func TestProcessSessionUnknownSession(t *testing.T) {
	sessions, questions := newMemRepos()
	p := NewPipeline(sessions, questions, &fakeSynth{}, nil)

	_, err := p.ProcessSession(context.Background(), "nope", false)
	require.Error(t, err)
	var ae *utils.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, utils.CodeNotFound, ae.Code)
}
