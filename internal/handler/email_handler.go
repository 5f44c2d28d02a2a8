package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"emailwriter/internal/model"
	"emailwriter/internal/service/reply"
)

// ReplyGenerator 由 reply.Service 实现
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, req model.EmailRequest) reply.Result
}

type EmailHandler struct {
	generator     ReplyGenerator
	failureStatus int
}

// NewEmailHandler failureStatus 为生成失败时的状态码，0 或非法值沿用 200
func NewEmailHandler(generator ReplyGenerator, failureStatus int) *EmailHandler {
	if failureStatus < 100 || failureStatus > 599 {
		failureStatus = http.StatusOK
	}
	return &EmailHandler{
		generator:     generator,
		failureStatus: failureStatus,
	}
}

// GenerateReply handles POST /api/email/generate
func (h *EmailHandler) GenerateReply(c *gin.Context) {
	var req model.EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	result := h.generator.GenerateReply(c.Request.Context(), req)

	status := http.StatusOK
	if !result.OK() {
		status = h.failureStatus
	}
	c.Data(status, "text/plain; charset=utf-8", []byte(result.Reply()))
}
