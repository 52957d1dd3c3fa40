package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TurnLog is the transient archive of one completed voice turn. It lives in
// Mongo behind a TTL index and is safe to lose; the durable interview state
// stays in Postgres.
type TurnLog struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID string             `bson:"session_id" json:"session_id"`
	TurnIndex int64              `bson:"turn_index" json:"turn_index"`

	UserText      string  `bson:"user_text,omitempty" json:"user_text,omitempty"`
	STTConfidence float64 `bson:"stt_confidence,omitempty" json:"stt_confidence,omitempty"`

	ReplyText string `bson:"reply_text,omitempty" json:"reply_text,omitempty"`
	AudioURL  string `bson:"audio_url,omitempty" json:"audio_url,omitempty"`
	TTSMode   string `bson:"tts_mode" json:"tts_mode"`
	Strategy  string `bson:"strategy,omitempty" json:"strategy,omitempty"`

	ProcessingTimeMS int64     `bson:"processing_time_ms,omitempty" json:"processing_time_ms,omitempty"`
	Timestamp        time.Time `bson:"timestamp" json:"timestamp"`

	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"` // for TTL index
}
