package models

import "time"

type QuestionStatus string

const (
	QuestionPreparing  QuestionStatus = "PREPARING"
	QuestionProcessing QuestionStatus = "PROCESSING"
	QuestionAudioReady QuestionStatus = "AUDIO_READY"
	QuestionReady      QuestionStatus = "READY"
	QuestionFailed     QuestionStatus = "FAILED"
)

// Non-terminal failure model: FAILED ends the media attempt, not the
// question; re-entering PROCESSING is how a regeneration run picks a
// question back up.
var questionTransitions = map[QuestionStatus][]QuestionStatus{
	QuestionPreparing:  {QuestionProcessing},
	QuestionProcessing: {QuestionAudioReady, QuestionFailed},
	QuestionAudioReady: {QuestionReady, QuestionProcessing},
	QuestionReady:      {QuestionProcessing},
	QuestionFailed:     {QuestionProcessing},
}

func (s QuestionStatus) CanTransition(to QuestionStatus) bool {
	for _, t := range questionTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

type InterviewQuestion struct {
	ID        string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SessionID string `gorm:"column:session_id;type:uuid;index:idx_session_question,unique" json:"session_id"`

	// QuestionIndex is 0-based and defines presentation order.
	QuestionIndex int    `gorm:"column:question_index;index:idx_session_question,unique" json:"question_index"`
	QuestionText  string `gorm:"column:question_text;type:text" json:"question_text"`

	AudioURL  string         `gorm:"column:audio_url;type:text" json:"audio_url,omitempty"`
	AudioPath string         `gorm:"column:audio_path;type:text" json:"audio_path,omitempty"`
	VideoURL  string         `gorm:"column:video_url;type:text" json:"video_url,omitempty"`
	Status    QuestionStatus `gorm:"column:status;type:text" json:"status"`

	AnswerText      string     `gorm:"column:answer_text;type:text" json:"answer_text,omitempty"`
	AnswerVideoURL  string     `gorm:"column:answer_video_url;type:text" json:"answer_video_url,omitempty"`
	AnswerVideoPath string     `gorm:"column:answer_video_path;type:text" json:"answer_video_path,omitempty"`
	AnswerDuration  float64    `gorm:"column:answer_duration" json:"answer_duration,omitempty"`
	AnsweredAt      *time.Time `gorm:"column:answered_at;type:timestamptz" json:"answered_at,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (InterviewQuestion) TableName() string { return "interview_questions" }

// MediaReady reports whether the question needs no further media work.
func (q *InterviewQuestion) MediaReady() bool {
	return q.Status == QuestionReady && q.AudioURL != "" && q.VideoURL != ""
}
