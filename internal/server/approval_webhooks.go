package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	approvaldomain "github.com/smallbiznis/redress/internal/approval/domain"
)

// HandleApprovalWebhook applies a signed approve/reject decision from the chat-ops channel.
func (s *Server) HandleApprovalWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.approvalSvc.VerifySignature(c.Request.Header, body, s.now()); err != nil {
		AbortWithError(c, err)
		return
	}

	var decision approvaldomain.Decision
	if err := json.Unmarshal(body, &decision); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	approval, err := s.approvalSvc.Decide(c.Request.Context(), decision)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": approval})
}
