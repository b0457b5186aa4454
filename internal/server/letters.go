package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	casedomain "github.com/smallbiznis/redress/internal/casefile/domain"
	letterdomain "github.com/smallbiznis/redress/internal/letter/domain"
	pipelinedomain "github.com/smallbiznis/redress/internal/pipeline/domain"
	"go.uber.org/zap"
)

type generateLetterRequest struct {
	Type     string `json:"type"`
	Feedback string `json:"feedback"`
}

type sendLetterRequest struct {
	Recipient string `json:"recipient"`
}

func (s *Server) GenerateLetter(c *gin.Context) {
	accountID, caseID, err := s.caseParams(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req generateLetterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	letter, err := s.pipelineSvc.GenerateFollowUp(c.Request.Context(), accountID, caseID, req.Type, req.Feedback)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": letter})
}

func (s *Server) ListLetters(c *gin.Context) {
	accountID, caseID, err := s.caseParams(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.caseSvc.Authorize(c.Request.Context(), accountID, caseID, casedomain.ActionRead); err != nil {
		AbortWithError(c, err)
		return
	}

	letters, err := s.letterSvc.List(c.Request.Context(), caseID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": letters})
}

// LatestLetters returns the newest letter of each type, keyed by type.
func (s *Server) LatestLetters(c *gin.Context) {
	accountID, caseID, err := s.caseParams(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.caseSvc.Authorize(c.Request.Context(), accountID, caseID, casedomain.ActionRead); err != nil {
		AbortWithError(c, err)
		return
	}

	latest, err := s.letterSvc.Latest(c.Request.Context(), caseID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": latest})
}

func (s *Server) DownloadLetterPDF(c *gin.Context) {
	accountID, caseID, err := s.caseParams(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	letterID, err := parseIDParam(c, "letterID")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	found, err := s.caseSvc.Get(ctx, accountID, caseID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	letter, err := s.letterSvc.Get(ctx, caseID, letterID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	sender, err := s.accountSvc.Profile(ctx, found.AccountID)
	if err != nil {
		s.log.Warn("sender profile unavailable for pdf",
			zap.String("case_id", caseID.String()),
			zap.Error(err),
		)
		sender = nil
	}

	doc, err := s.letterSvc.RenderPDF(ctx, letter, letterdomain.PDFMeta{
		Reference:   found.Reference,
		CompanyName: found.CompanyName,
		Sender:      sender,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	filename := fmt.Sprintf("%s-%s.pdf", found.Reference, letter.LetterType)
	c.DataFromReader(http.StatusOK, -1, "application/pdf", doc, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", filename),
	})
}

// SendLetter answers 200 when the letter went out and 202 when it is waiting for approval.
func (s *Server) SendLetter(c *gin.Context) {
	accountID, caseID, err := s.caseParams(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	letterID, err := parseIDParam(c, "letterID")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req sendLetterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.pipelineSvc.SendLetter(c.Request.Context(), accountID, caseID, letterID, req.Recipient)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := http.StatusOK
	if result.Status == pipelinedomain.SendStatusPendingApproval {
		status = http.StatusAccepted
	}
	c.JSON(status, gin.H{"data": result})
}

func (s *Server) ListSends(c *gin.Context) {
	accountID, caseID, err := s.caseParams(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.caseSvc.Authorize(c.Request.Context(), accountID, caseID, casedomain.ActionRead); err != nil {
		AbortWithError(c, err)
		return
	}

	sends, err := s.dispatchSvc.ListByCase(c.Request.Context(), caseID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sends})
}
