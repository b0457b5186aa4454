package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func parseIDParam(c *gin.Context, name string) (snowflake.ID, error) {
	trimmed := strings.TrimSpace(c.Param(name))
	parsed, err := snowflake.ParseString(trimmed)
	if err != nil || parsed <= 0 {
		return 0, newValidationError(name, "invalid_"+name, "invalid "+name)
	}
	return parsed, nil
}

func parseOptionalSnowflakeID(value string) (*snowflake.ID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := snowflake.ParseString(trimmed)
	if err != nil || parsed <= 0 {
		return nil, ErrInvalidRequest
	}
	return &parsed, nil
}

// caseParams resolves the caller and the :id case from the request.
func (s *Server) caseParams(c *gin.Context) (snowflake.ID, snowflake.ID, error) {
	accountID, err := s.accountIDFromRequest(c)
	if err != nil {
		return 0, 0, err
	}
	caseID, err := parseIDParam(c, "id")
	if err != nil {
		return 0, 0, err
	}
	return accountID, caseID, nil
}
