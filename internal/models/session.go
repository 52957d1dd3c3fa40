package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type SessionStatus string

const (
	SessionPreparing  SessionStatus = "PREPARING"
	SessionInProgress SessionStatus = "IN_PROGRESS"
	SessionCompleted  SessionStatus = "COMPLETED"
	SessionCancelled  SessionStatus = "CANCELLED"
)

// sessionTransitions is the closed transition table. Any transition not
// listed here is rejected; there is no way out of a terminal state.
var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionPreparing:  {SessionInProgress, SessionCancelled},
	SessionInProgress: {SessionCompleted, SessionCancelled},
	SessionCompleted:  {},
	SessionCancelled:  {},
}

func (s SessionStatus) CanTransition(to SessionStatus) bool {
	for _, t := range sessionTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionCancelled
}

type InterviewSession struct {
	ID     string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID string `gorm:"column:user_id;type:uuid;index" json:"user_id"`

	JobRole        string `gorm:"column:job_role;type:text" json:"job_role"`
	JobID          string `gorm:"column:job_id;type:text" json:"job_id,omitempty"`
	JobCategory    string `gorm:"column:job_category;type:text" json:"job_category,omitempty"`
	JobSubCategory string `gorm:"column:job_sub_category;type:text" json:"job_sub_category,omitempty"`
	Company        string `gorm:"column:company;type:text" json:"company,omitempty"`

	Status          SessionStatus `gorm:"column:status;type:text;index" json:"status"`
	CurrentQuestion int           `gorm:"column:current_question" json:"current_question"`
	TotalQuestions  int           `gorm:"column:total_questions" json:"total_questions"`

	// PlannedDuration is in minutes.
	PlannedDuration int    `gorm:"column:planned_duration" json:"planned_duration"`
	Prompt          string `gorm:"column:prompt;type:text" json:"-"`

	Metadata datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`

	CreatedAt   time.Time  `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	StartedAt   *time.Time `gorm:"column:started_at;type:timestamptz" json:"started_at,omitempty"`
	CompletedAt *time.Time `gorm:"column:completed_at;type:timestamptz" json:"completed_at,omitempty"`
}

func (InterviewSession) TableName() string { return "interview_sessions" }

// SessionMetadata is the free-form creation context kept in the jsonb
// metadata column.
type SessionMetadata struct {
	Background string `json:"background,omitempty"`
}

func (s *InterviewSession) Meta() SessionMetadata {
	var m SessionMetadata
	if len(s.Metadata) > 0 {
		_ = json.Unmarshal(s.Metadata, &m)
	}
	return m
}

func (s *InterviewSession) SetMeta(m SessionMetadata) {
	b, err := json.Marshal(m)
	if err != nil {
		return
	}
	s.Metadata = datatypes.JSON(b)
}
