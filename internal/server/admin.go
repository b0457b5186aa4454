package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	creditdomain "github.com/smallbiznis/redress/internal/credit/domain"
)

type adjustCreditsRequest struct {
	Amount         int64  `json:"amount"`
	Note           string `json:"note"`
	IdempotencyKey string `json:"idempotency_key"`
}

// AdjustCredits applies an operator grant or debit to an account. Amounts may be negative.
func (s *Server) AdjustCredits(c *gin.Context) {
	accountID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req adjustCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		AbortWithError(c, newValidationError("idempotency_key", "invalid_idempotency_key", "idempotency_key is required"))
		return
	}

	balance, err := s.creditSvc.Grant(c.Request.Context(), creditdomain.GrantRequest{
		AccountID:      accountID,
		Amount:         req.Amount,
		Kind:           creditdomain.KindAdminAdjustment,
		IdempotencyKey: "admin:" + key,
		Note:           strings.TrimSpace(req.Note),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"account_id": accountID.String(),
		"balance":    balance,
	}})
}
