package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/hirevox/hirevox/internal/services"
	"github.com/hirevox/hirevox/internal/utils"
)

type WSHandler struct {
	voice      services.VoiceService
	interviews services.InterviewService
	upgrader   websocket.Upgrader
}

func NewWSHandler(voice services.VoiceService, interviews services.InterviewService) *WSHandler {
	return &WSHandler{
		voice:      voice,
		interviews: interviews,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origin in prod
		},
	}
}

type wsClientMsg struct {
	Type         string `json:"type"`
	AudioBase64  string `json:"audio_base64"`
	Text         string `json:"text"`
	IsFinal      bool   `json:"is_final"`
	SampleRateHz int32  `json:"sample_rate_hz"`
	AnswerIndex  *int   `json:"answer_index"`
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

func (w *wsConn) writeError(err error) {
	var code utils.Code = utils.CodeInternal
	msg := "internal error"
	if ae, ok := err.(*utils.AppError); ok {
		code = ae.Code
		msg = ae.Message
	}
	_ = w.writeJSON(gin.H{"type": "error", "code": code, "message": msg})
}

// SessionWS is the streaming turn channel: the client sends audio chunks,
// the server replies with partial transcripts and, on the final chunk, the
// full turn result.
func (h *WSHandler) SessionWS(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")
	if sessionID == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, "WSHandler.SessionWS", "missing session_id", nil))
		return
	}

	// authorize session ownership
	sess, err := h.interviews.Get(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	if sess.UserID != userID {
		writeError(c, utils.E(utils.CodeForbidden, "WSHandler.SessionWS", "forbidden", nil))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx := c.Request.Context()

	tc := services.TurnContext{
		JobRole:    sess.JobRole,
		Background: sess.Meta().Background,
		Prompt:     sess.Prompt,
	}

	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, data, rerr := conn.ReadMessage()
		if rerr != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		var msg wsClientMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			wc.writeError(utils.E(utils.CodeInvalidArgument, "WSHandler.SessionWS", "invalid json", err))
			continue
		}

		switch msg.Type {
		case "audio_chunk":
			chunk, derr := decodeChunk(msg.AudioBase64)
			if derr != nil {
				wc.writeError(utils.E(utils.CodeInvalidArgument, "WSHandler.SessionWS", "invalid audio_base64", derr))
				continue
			}

			turnCtx := tc
			turnCtx.AnswerIndex = msg.AnswerIndex

			ev, perr := h.voice.StreamChunk(ctx, sessionID, chunk, msg.IsFinal, msg.SampleRateHz, turnCtx)
			if perr != nil {
				wc.writeError(perr)
				continue
			}
			if err := wc.writeJSON(ev); err != nil {
				return
			}

		case "text_turn":
			turnCtx := tc
			turnCtx.AnswerIndex = msg.AnswerIndex

			out, perr := h.voice.ProcessTurn(ctx, sessionID, services.TurnInput{Text: msg.Text}, turnCtx)
			if perr != nil {
				wc.writeError(perr)
				continue
			}
			if err := wc.writeJSON(gin.H{"type": "turn", "turn": out}); err != nil {
				return
			}

		case "end_session":
			h.voice.EndSession(sessionID)
			_ = wc.writeJSON(gin.H{"type": "status", "status": "ended"})
			return

		default:
			wc.writeError(utils.E(utils.CodeInvalidArgument, "WSHandler.SessionWS", "unknown message type", nil))
		}
	}
}

func decodeChunk(b64 string) ([]byte, error) {
	if b64 == "" {
		return nil, nil
	}
	raw := b64
	if i := strings.Index(raw, ","); i >= 0 {
		raw = raw[i+1:] // strip data:...;base64,
	}
	return base64.StdEncoding.DecodeString(raw)
}
