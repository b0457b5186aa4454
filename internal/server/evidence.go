package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	evidencedomain "github.com/smallbiznis/redress/internal/evidence/domain"
)

func (s *Server) AddEvidence(c *gin.Context) {
	accountID, caseID, err := s.caseParams(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req evidencedomain.AddEvidenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ev, err := s.evidenceSvc.Add(c.Request.Context(), accountID, caseID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": ev})
}

func (s *Server) ListEvidence(c *gin.Context) {
	accountID, caseID, err := s.caseParams(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items, err := s.evidenceSvc.ListForAccount(c.Request.Context(), accountID, caseID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}
