package server

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// authorizeAction gates a route on a casbin permission held by the caller's role.
func (s *Server) authorizeAction(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authorizeActionWithContext(c, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) authorizeActionWithContext(c *gin.Context, object string, action string) error {
	accountID, err := s.accountIDFromRequest(c)
	if err != nil {
		return err
	}
	if s.authzSvc == nil {
		return ErrForbidden
	}
	return s.authzSvc.Authorize(c.Request.Context(), accountID, strings.TrimSpace(object), strings.TrimSpace(action))
}
