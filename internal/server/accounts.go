package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	accountdomain "github.com/smallbiznis/redress/internal/account/domain"
	creditdomain "github.com/smallbiznis/redress/internal/credit/domain"
	"github.com/smallbiznis/redress/pkg/db/pagination"
)

func (s *Server) GetMe(c *gin.Context) {
	accountID, err := s.accountIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	account, err := s.accountSvc.GetByID(c.Request.Context(), accountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if account == nil {
		AbortWithError(c, accountdomain.ErrNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": account})
}

func (s *Server) UpdateProfile(c *gin.Context) {
	accountID, err := s.accountIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req accountdomain.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	account, err := s.accountSvc.UpdateProfile(c.Request.Context(), accountID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": account})
}

func (s *Server) ListCreditTransactions(c *gin.Context) {
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

	resp, err := s.creditSvc.ListTransactions(c.Request.Context(), creditdomain.ListTransactionsRequest{
		Pagination: page,
		AccountID:  accountID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Transactions, "page_info": resp.PageInfo})
}
