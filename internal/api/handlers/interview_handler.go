package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hirevox/hirevox/internal/models"
	"github.com/hirevox/hirevox/internal/services"
	"github.com/hirevox/hirevox/internal/utils"
)

type InterviewHandler struct {
	svc services.InterviewService
}

func NewInterviewHandler(svc services.InterviewService) *InterviewHandler {
	return &InterviewHandler{svc: svc}
}

type CreateInterviewRequest struct {
	JobRole        string `json:"job_role" binding:"required"`
	JobID          string `json:"job_id"`
	JobCategory    string `json:"job_category"`
	JobSubCategory string `json:"job_sub_category"`
	Company        string `json:"company"`
	Background     string `json:"background"`
	QuestionCount  int    `json:"question_count"`
}

type CreateInterviewResponse struct {
	Session   *models.InterviewSession   `json:"session"`
	Questions []models.InterviewQuestion `json:"questions"`
	Resumed   bool                       `json:"resumed"`
	Reused    bool                       `json:"reused"`
}

func (h *InterviewHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req CreateInterviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "InterviewHandler.Create", "invalid request body", err))
		return
	}

	out, err := h.svc.Create(c.Request.Context(), userID, services.CreateInterviewRequest{
		JobRole:        req.JobRole,
		JobID:          req.JobID,
		JobCategory:    req.JobCategory,
		JobSubCategory: req.JobSubCategory,
		Company:        req.Company,
		Background:     req.Background,
		QuestionCount:  req.QuestionCount,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, CreateInterviewResponse{
		Session:   out.Session,
		Questions: out.Questions,
		Resumed:   out.Resumed,
		Reused:    out.Reused,
	})
}

// authorize loads the session and enforces ownership.
func (h *InterviewHandler) authorize(c *gin.Context, op string) (*models.InterviewSession, string, bool) {
	userID, ok := requireUserID(c)
	if !ok {
		return nil, "", false
	}

	sessionID := c.Param("session_id")
	sess, err := h.svc.Get(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return nil, "", false
	}
	if sess.UserID != userID {
		writeError(c, utils.E(utils.CodeForbidden, op, "forbidden", nil))
		return nil, "", false
	}
	return sess, sessionID, true
}

func (h *InterviewHandler) Get(c *gin.Context) {
	sess, sessionID, ok := h.authorize(c, "InterviewHandler.Get")
	if !ok {
		return
	}

	qs, err := h.svc.Questions(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": sess, "questions": qs})
}

func (h *InterviewHandler) Start(c *gin.Context) {
	_, sessionID, ok := h.authorize(c, "InterviewHandler.Start")
	if !ok {
		return
	}

	sess, err := h.svc.Start(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

type SubmitAnswerRequest struct {
	QuestionIndex   *int    `json:"question_index" binding:"required"`
	Text            string  `json:"text"`
	VideoURL        string  `json:"video_url"`
	VideoPath       string  `json:"video_path"`
	DurationSeconds float64 `json:"duration_seconds"`
}

func (h *InterviewHandler) SubmitAnswer(c *gin.Context) {
	_, sessionID, ok := h.authorize(c, "InterviewHandler.SubmitAnswer")
	if !ok {
		return
	}

	var req SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "InterviewHandler.SubmitAnswer", "invalid request body", err))
		return
	}

	out, err := h.svc.SubmitAnswer(c.Request.Context(), sessionID, *req.QuestionIndex, services.AnswerRequest{
		Text:            req.Text,
		VideoURL:        req.VideoURL,
		VideoPath:       req.VideoPath,
		DurationSeconds: req.DurationSeconds,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session":  out.Session,
		"complete": out.Complete,
	})
}

func (h *InterviewHandler) NextQuestion(c *gin.Context) {
	_, sessionID, ok := h.authorize(c, "InterviewHandler.NextQuestion")
	if !ok {
		return
	}

	q, err := h.svc.NextQuestion(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *InterviewHandler) Cancel(c *gin.Context) {
	_, sessionID, ok := h.authorize(c, "InterviewHandler.Cancel")
	if !ok {
		return
	}

	if err := h.svc.Cancel(c.Request.Context(), sessionID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(models.SessionCancelled)})
}

func (h *InterviewHandler) Delete(c *gin.Context) {
	_, sessionID, ok := h.authorize(c, "InterviewHandler.Delete")
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), sessionID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// parseLimit is shared by list-style endpoints.
func parseLimit(c *gin.Context, def int) int {
	v := c.Query("limit")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
