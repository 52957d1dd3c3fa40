package handlers

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hirevox/hirevox/internal/models"
	mongorepo "github.com/hirevox/hirevox/internal/repositories/mongo"
	"github.com/hirevox/hirevox/internal/services"
	"github.com/hirevox/hirevox/internal/utils"
)

type VoiceHandler struct {
	voice      services.VoiceService
	interviews services.InterviewService
	turns      mongorepo.TurnRepository
}

func NewVoiceHandler(voice services.VoiceService, interviews services.InterviewService, turns mongorepo.TurnRepository) *VoiceHandler {
	return &VoiceHandler{voice: voice, interviews: interviews, turns: turns}
}

type TurnRequest struct {
	AudioBase64  string `json:"audio_base64"`
	Text         string `json:"text"`
	SampleRateHz int32  `json:"sample_rate_hz"`
	AnswerIndex  *int   `json:"answer_index"`
}

func (h *VoiceHandler) authorize(c *gin.Context, op string) (*models.InterviewSession, bool) {
	userID, ok := requireUserID(c)
	if !ok {
		return nil, false
	}

	sess, err := h.interviews.Get(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	if sess.UserID != userID {
		writeError(c, utils.E(utils.CodeForbidden, op, "forbidden", nil))
		return nil, false
	}
	return sess, true
}

func (h *VoiceHandler) ProcessTurn(c *gin.Context) {
	const op = "VoiceHandler.ProcessTurn"

	sess, ok := h.authorize(c, op)
	if !ok {
		return
	}

	var req TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid request body", err))
		return
	}

	var audio []byte
	if req.AudioBase64 != "" {
		raw := req.AudioBase64
		if i := strings.Index(raw, ","); i >= 0 {
			raw = raw[i+1:] // strip data:...;base64,
		}
		decoded, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid audio_base64", err))
			return
		}
		audio = decoded
	}
	if len(audio) == 0 && req.Text == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "audio_base64 or text required", nil))
		return
	}

	out, err := h.voice.ProcessTurn(c.Request.Context(), sess.ID,
		services.TurnInput{Audio: audio, Text: req.Text, SampleRateHz: req.SampleRateHz},
		services.TurnContext{
			JobRole:     sess.JobRole,
			Background:  sess.Meta().Background,
			Prompt:      sess.Prompt,
			AnswerIndex: req.AnswerIndex,
		})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, out)
}

func (h *VoiceHandler) ListTurns(c *gin.Context) {
	const op = "VoiceHandler.ListTurns"

	sess, ok := h.authorize(c, op)
	if !ok {
		return
	}
	if h.turns == nil {
		writeError(c, utils.E(utils.CodeUnavailable, op, "turn log storage not configured", nil))
		return
	}

	limit := parseLimit(c, 50)
	out, err := h.turns.ListBySession(c.Request.Context(), sess.ID, int64(limit))
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to list turns", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"turns": out})
}
