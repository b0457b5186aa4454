package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	casedomain "github.com/smallbiznis/redress/internal/casefile/domain"
	"github.com/smallbiznis/redress/pkg/db/pagination"
)

type resolveCaseRequest struct {
	ResolutionOutcome string `json:"resolution_outcome"`
}

type addNoteRequest struct {
	Body string `json:"body"`
}

func (s *Server) CreateCase(c *gin.Context) {
	accountID, err := s.accountIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req casedomain.CreateCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	created, err := s.pipelineSvc.CreateCase(c.Request.Context(), accountID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": created})
}

func (s *Server) ListCases(c *gin.Context) {
	accountID, err := s.accountIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	page.PageToken = strings.TrimSpace(page.PageToken)

	resp, err := s.caseSvc.List(c.Request.Context(), casedomain.ListCasesRequest{
		Pagination: page,
		AccountID:  accountID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Cases, "page_info": resp.PageInfo})
}

func (s *Server) GetCase(c *gin.Context) {
	accountID, caseID, err := s.caseParams(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	found, err := s.caseSvc.Get(c.Request.Context(), accountID, caseID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": found})
}

func (s *Server) UpdateCase(c *gin.Context) {
	accountID, caseID, err := s.caseParams(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req casedomain.UpdateCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	updated, err := s.pipelineSvc.UpdateCase(c.Request.Context(), accountID, caseID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondRun(c, updated)
}

// AnalyzeCase retries analysis of a case left in draft by a failed run.
func (s *Server) AnalyzeCase(c *gin.Context) {
	accountID, caseID, err := s.caseParams(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	updated, err := s.pipelineSvc.Retry(c.Request.Context(), accountID, caseID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondRun(c, updated)
}

func (s *Server) ReanalyzeCase(c *gin.Context) {
	accountID, caseID, err := s.caseParams(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	updated, err := s.pipelineSvc.Reanalyze(c.Request.Context(), accountID, caseID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondRun(c, updated)
}

func (s *Server) ResolveCase(c *gin.Context) {
	accountID, caseID, err := s.caseParams(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req resolveCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resolved, err := s.caseSvc.Resolve(c.Request.Context(), accountID, caseID, req.ResolutionOutcome)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resolved})
}

func (s *Server) AddNote(c *gin.Context) {
	accountID, caseID, err := s.caseParams(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req addNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	note, err := s.caseSvc.AddNote(c.Request.Context(), accountID, caseID, req.Body)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": note})
}

func (s *Server) ListNotes(c *gin.Context) {
	accountID, caseID, err := s.caseParams(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	notes, err := s.caseSvc.ListNotes(c.Request.Context(), accountID, caseID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": notes})
}

// respondRun answers 202 while the case is still being analyzed in the background.
func respondRun(c *gin.Context, updated *casedomain.Case) {
	status := http.StatusOK
	if updated != nil && updated.Status == casedomain.StatusAnalyzing {
		status = http.StatusAccepted
	}
	c.JSON(status, gin.H{"data": updated})
}
